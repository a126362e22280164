package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "UserPromptSubmit hook: print project context for the prompt",
	Long: `Context reads a UserPromptSubmit event from stdin and prints a single line of
context: date, git branch, working directory and, depending on the prompt,
recent errors, project frameworks and recently changed files.

It always exits 0. If anything goes wrong it prints only the date.`,
	Args: cobra.NoArgs,
	Run:  runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res := newProcessor().Context(ctx, cmd.InOrStdin())
	finish(cmd, res)
}
