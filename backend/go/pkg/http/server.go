package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"minerva/backend/go/internal/config"
	"minerva/backend/go/pkg/circuitbreaker"
	"minerva/backend/go/pkg/httpmiddleware"
	"minerva/backend/go/pkg/logger"
	"minerva/backend/go/pkg/ratelimiter"
)

// Server wraps http.Server and applies the configured middleware chain
// in front of whatever handlers are mounted on it.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	log        *logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddress sets the listen address.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a Server from the middleware section of the config.
// Rate limiting and circuit breaking are only installed when enabled.
func NewServer(cfg *config.AppConfig, opts ...ServerOption) (*Server, error) {
	mux := http.NewServeMux()
	srv := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Address,
			ReadHeaderTimeout: 10 * time.Second,
		},
		mux: mux,
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	var middlewares []httpmiddleware.Middleware
	if cfg.Middleware.RateLimiter.Enabled {
		limiter, err := createRateLimiter(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.WithPayload(map[string]interface{}{"algorithm": cfg.Middleware.RateLimiter.Algorithm}).
			Info("rate limiter middleware enabled")
		middlewares = append(middlewares, httpmiddleware.RateLimit(limiter))
	}
	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := NewBreaker("http-server", cfg.Middleware.CircuitBreaker, srv.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("circuit breaker middleware enabled")
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}
	srv.httpServer.Handler = httpmiddleware.Chain(mux, middlewares...)

	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8080"
	}
	return srv, nil
}

// Handle registers the handler for the given pattern.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// HandleFunc registers the handler function for the given pattern.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.log.WithPayload(map[string]interface{}{"address": s.httpServer.Addr}).Info("starting http server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func createRateLimiter(cfg config.RateLimiterConfig) (ratelimiter.RateLimiter, error) {
	var window time.Duration
	if cfg.Algorithm == "fixedWindow" {
		var err error
		window, err = time.ParseDuration(cfg.FixedWindow.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid fixedWindow duration: %w", err)
		}
	}
	return ratelimiter.New(cfg.Algorithm, cfg.TokenBucket.Rate, cfg.TokenBucket.Capacity, cfg.FixedWindow.Limit, window)
}

// NewBreaker builds a named circuit breaker from config and logs its transitions.
func NewBreaker(name string, cfg config.CircuitBreakerConfig, log *logger.Logger) (circuitbreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return circuitbreaker.New(cfg.FailureThreshold, cfg.SuccessThreshold, timeout,
		circuitbreaker.WithName(name),
		circuitbreaker.WithStateChange(func(name string, from, to circuitbreaker.State) {
			log.WithPayload(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		}),
	), nil
}
