package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var errMemoryDisabled = errors.New("memory is disabled in the configuration")

var (
	recallLimit int
	clearYes    bool
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Inspect and manage what Minerva remembers about you",
}

var factsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every remembered fact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newMemoryApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		facts, err := a.memory.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tFACT\tUPDATED")
		for _, f := range facts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, f.Category, f.Text, f.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var factsRecallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Show the facts relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newMemoryApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		limit := recallLimit
		if limit <= 0 {
			limit = a.cfg.Memory.RecallLimit
		}
		facts := a.memory.Recall(cmd.Context(), strings.Join(args, " "), limit)
		if len(facts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No relevant facts.")
			return nil
		}
		for _, f := range facts {
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f  %s  (%s)\n", f.Score, f.Text, f.ID)
		}
		return nil
	},
}

var factsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Forget specific facts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newMemoryApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		for _, id := range args {
			if err := a.memory.Delete(cmd.Context(), id); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d fact(s) deleted\n", len(args))
		return nil
	},
}

var factsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget everything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return errors.New("refusing to delete every fact without --yes")
		}
		a, err := newMemoryApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.memory.DeleteAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All facts deleted")
		return nil
	},
}

func newMemoryApp(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd.Context(), logQuiet)
	if err != nil {
		return nil, err
	}
	if a.memory == nil {
		a.close()
		return nil, errMemoryDisabled
	}
	return a, nil
}

func init() {
	factsRecallCmd.Flags().IntVar(&recallLimit, "limit", 0, "maximum number of facts (default from config)")
	factsClearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deleting every fact")
	factsCmd.AddCommand(factsListCmd, factsRecallCmd, factsDeleteCmd, factsClearCmd)
	rootCmd.AddCommand(factsCmd)
}
