package main

import (
	"context"
	"os/signal"
	"syscall"

	"minerva/backend/go/internal/api"
	"minerva/backend/go/internal/mcpserver"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve Minerva as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, logQuiet)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.checkLLM(ctx); err != nil {
			return err
		}

		workersCtx, cancelWorkers := context.WithCancel(context.Background())
		a.startWorkers(workersCtx)
		defer func() {
			cancelWorkers()
			a.stopWorkers(shutdownTimeout)
		}()

		tools := mcpserver.NewTools(a.router, a.history, a.engine, facts(a), api.Options{
			SearchLimit:     a.cfg.Retrieval.MaxChunks,
			SearchThreshold: a.cfg.Retrieval.SearchThreshold,
			RecallLimit:     a.cfg.Memory.RecallLimit,
		}, a.log)
		a.log.Info("mcp server listening on stdio")
		return mcpserver.ServeStdio(mcpserver.NewServer(tools, a.cfg.App.Version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
