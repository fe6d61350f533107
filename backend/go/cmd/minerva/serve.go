package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"minerva/backend/go/internal/api"
	mhttp "minerva/backend/go/pkg/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, logStdout)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.checkLLM(ctx); err != nil {
			return err
		}

		workersCtx, cancelWorkers := context.WithCancel(context.Background())
		a.startWorkers(workersCtx)

		gin.SetMode(gin.ReleaseMode)
		handler := api.NewHandler(a.router, a.history, a.engine, facts(a), api.Options{
			SearchLimit:     a.cfg.Retrieval.MaxChunks,
			SearchThreshold: a.cfg.Retrieval.SearchThreshold,
			RecallLimit:     a.cfg.Memory.RecallLimit,
			Checks:          a.checks,
		}, a.log)

		srv, err := mhttp.NewServer(a.cfg, mhttp.WithLogger(a.log.WithComponent("http")))
		if err != nil {
			cancelWorkers()
			return err
		}
		srv.Handle("/", api.SetupRouter(handler, a.log.WithComponent("api")))

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err = <-errCh:
		case <-ctx.Done():
			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err = srv.Shutdown(shutdownCtx)
			cancel()
		}

		cancelWorkers()
		a.stopWorkers(shutdownTimeout)
		a.log.Info("server stopped")
		return err
	},
}

// facts keeps a disabled memory a nil interface.
func facts(a *app) api.Facts {
	if a.memory == nil {
		return nil
	}
	return a.memory
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
