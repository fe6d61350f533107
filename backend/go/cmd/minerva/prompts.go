package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"minerva/backend/go/internal/prompts"

	"github.com/spf13/cobra"
)

var (
	promptFile        string
	promptContent     string
	promptDescription string
	promptNoActivate  bool
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List and version the prompt templates",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active prompt templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), logQuiet)
		if err != nil {
			return err
		}
		defer a.close()

		lister, ok := a.prompts.(prompts.Lister)
		if !ok {
			return errors.New("the configured prompt store cannot list templates")
		}
		active, err := lister.ListActive(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAGENT\tNAME\tVERSION\tDESCRIPTION")
		for _, p := range active {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", p.ID, p.AgentType, p.PromptName, p.Version, p.Description)
		}
		return w.Flush()
	},
}

var promptsSetCmd = &cobra.Command{
	Use:   "set <agent_type> <prompt_name>",
	Short: "Store a new version of a prompt template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := promptContent
		if promptFile != "" {
			raw, err := os.ReadFile(promptFile)
			if err != nil {
				return err
			}
			content = string(raw)
		}
		if content == "" {
			return errors.New("one of --file or --content is required")
		}

		a, store, err := newPromptApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		v, err := store.CreateVersion(cmd.Context(), args[0], args[1], content, promptDescription, "cli", !promptNoActivate)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s version %d stored (id %d, active=%t)\n", v.AgentType, v.PromptName, v.Version, v.ID, v.Active)
		return nil
	},
}

var promptsActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a stored prompt version the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid prompt version id %q", args[0])
		}
		a, store, err := newPromptApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := store.Activate(cmd.Context(), uint(id)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "prompt version %d activated\n", id)
		return nil
	},
}

func newPromptApp(cmd *cobra.Command) (*app, *prompts.GormStore, error) {
	a, err := newApp(cmd.Context(), logQuiet)
	if err != nil {
		return nil, nil, err
	}
	store, ok := a.prompts.(*prompts.GormStore)
	if !ok {
		a.close()
		return nil, nil, errors.New("prompt versioning needs prompts.source: database")
	}
	return a, store, nil
}

func init() {
	promptsSetCmd.Flags().StringVar(&promptFile, "file", "", "read the template from a file")
	promptsSetCmd.Flags().StringVar(&promptContent, "content", "", "template text")
	promptsSetCmd.Flags().StringVar(&promptDescription, "description", "", "what changed in this version")
	promptsSetCmd.Flags().BoolVar(&promptNoActivate, "no-activate", false, "store without activating")
	promptsCmd.AddCommand(promptsListCmd, promptsSetCmd, promptsActivateCmd)
	rootCmd.AddCommand(promptsCmd)
}
