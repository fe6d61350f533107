package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"minerva/backend/go/internal/models"

	"github.com/spf13/cobra"
)

var chatConversation string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with Minerva in the terminal",
	Long: `Starts an interactive conversation. Type /nueva to start a new conversation
and /salir (or Ctrl-D) to quit.`,
	Args: cobra.NoArgs,
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

		convID := chatConversation
		if convID == "" {
			if convID, err = a.history.CreateConversation(ctx, "Terminal"); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Minerva lista. Conversación %s\n", convID)

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			fmt.Fprint(out, "\nTú: ")
			var line string
			select {
			case <-ctx.Done():
				fmt.Fprintln(out)
				return nil
			case l, ok := <-lines:
				if !ok {
					fmt.Fprintln(out)
					return nil
				}
				line = strings.TrimSpace(l)
			}
			switch line {
			case "":
				continue
			case "/salir", "/exit":
				return nil
			case "/nueva":
				if convID, err = a.history.CreateConversation(ctx, "Terminal"); err != nil {
					return err
				}
				fmt.Fprintf(out, "Nueva conversación %s\n", convID)
				continue
			}

			res := a.router.Route(ctx, convID, line)
			printAnswer(out, res)
		}
	},
}

func printAnswer(out io.Writer, res *models.RouteResult) {
	fmt.Fprintf(out, "\nMinerva [%s, %s]: %s\n", res.AgentUsed, res.Confidence, res.Answer)
	if res.AgentUsed == models.AgentSourceRequest {
		return
	}
	for i, s := range res.Sources {
		name := s.Title
		if s.URL != "" {
			name += " <" + s.URL + ">"
		}
		fmt.Fprintf(out, "  [%d] %s\n", i+1, name)
	}
}

func init() {
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "continue an existing conversation")
	rootCmd.AddCommand(chatCmd)
}
