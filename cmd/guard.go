package cmd

import (
	"github.com/spf13/cobra"
)

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "PreToolUse hook: block writes to sensitive files",
	Long: `Guard reads a PreToolUse event from stdin and checks the target path for
traversal, sensitive extensions, filenames and patterns, and blocked
directories.

Exit codes:
  0  allowed, or nothing to evaluate
  2  blocked; the reason is printed to stderr

Any internal error also exits 2.`,
	Args: cobra.NoArgs,
	Run:  runGuard,
}

func init() {
	rootCmd.AddCommand(guardCmd)
}

func runGuard(cmd *cobra.Command, args []string) {
	res := newProcessor().Guard(cmd.InOrStdin())
	finish(cmd, res)
}
