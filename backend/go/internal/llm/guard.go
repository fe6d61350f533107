package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/pkg/circuitbreaker"
)

// Guarded wraps a Provider with a per-call timeout and an optional circuit
// breaker, and maps low-level failures onto ErrTimeout and ErrUnavailable.
type Guarded struct {
	inner   Provider
	breaker circuitbreaker.CircuitBreaker
	timeout time.Duration
}

// GuardOption configures Guarded.
type GuardOption func(*Guarded)

// WithTimeout caps every call. A shorter deadline on the caller's context still wins.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guarded) { g.timeout = d }
}

// WithBreaker protects the provider with cb.
func WithBreaker(cb circuitbreaker.CircuitBreaker) GuardOption {
	return func(g *Guarded) { g.breaker = cb }
}

// NewGuarded wraps inner.
func NewGuarded(inner Provider, opts ...GuardOption) *Guarded {
	g := &Guarded{inner: inner, timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the wrapped provider's model name.
func (g *Guarded) Model() string { return ModelName(g.inner) }

// Ping forwards to the wrapped provider when it implements Pinger.
func (g *Guarded) Ping(ctx context.Context) error {
	if p, ok := g.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Complete runs one completion.
func (g *Guarded) Complete(ctx context.Context, req *models.CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := circuitbreaker.Do(g.breaker, func() (string, error) {
		return g.inner.Complete(callCtx, req)
	})
	if err != nil {
		return "", classify(ctx, callCtx, err)
	}
	return out, nil
}

func classify(parent, call context.Context, err error) error {
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(parent.Err(), context.Canceled):
		return parent.Err()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(call.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, context.DeadlineExceeded)
	case isDialError(err):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

func isDialError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsDegraded reports whether err means the provider could not be reached in time,
// which is when callers fall back to non-LLM behaviour.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}
