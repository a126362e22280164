package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/patterns"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and show compiled rules",
	Long: `Validate validates the hookgate configuration file and displays the compiled
security tables, intent classes, error patterns and timeouts.

This is useful for:
- Checking that your config.toml syntax is correct
- Seeing what rules will actually be used
- Debugging why a path is blocked or a prompt gets no context`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("failed to load configuration")
	}
	if err := config.InitError(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration valid!")
	if path := config.GetConfigPath(); path != "" {
		fmt.Fprintf(out, "Loaded from: %s\n", path)
	}
	fmt.Fprintln(out)

	sec := cfg.Security
	printList(out, "Sensitive extensions", sec.SensitiveExtensions)
	printList(out, "Sensitive filenames", sec.SensitiveFilenames)
	printPatterns(out, "Sensitive patterns", sec.SensitivePatterns)
	printList(out, "Blocked directories", sec.BlockedDirectories)
	printList(out, "Allowed exceptions", sec.AllowedExceptions)
	printList(out, "High severity terms", sec.HighSeverityTerms)

	fmt.Fprintf(out, "Intents: %d\n", len(cfg.Intents))
	for _, in := range cfg.Intents {
		fmt.Fprintf(out, "  - %s: %s\n", in.Name, strings.Join(in.Keywords, ", "))
	}
	fmt.Fprintln(out)

	printPatterns(out, "Error patterns", cfg.Context.ErrorPatterns)
	printList(out, "Recognized extensions", cfg.Context.RecognizedExtensions)
	printList(out, "Log globs", cfg.Context.LogGlobs)

	t := cfg.Timeouts
	fmt.Fprintln(out, "Timeouts:")
	fmt.Fprintf(out, "  git: %s, log scan: %s, project scan: %s, tool probe: %s, self-test: %s\n",
		t.Git, t.LogScan, t.ProjectScan, t.ToolProbe, t.SelfTest)

	return nil
}

func printList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "%s: %d\n", title, len(items))
	if len(items) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(items, ", "))
	}
	fmt.Fprintln(w)
}

func printPatterns(w io.Writer, title string, ps []patterns.Pattern) {
	fmt.Fprintf(w, "%s: %d\n", title, len(ps))
	for _, p := range ps {
		fmt.Fprintf(w, "  - %s: %s\n", p.Name, p.Regex.String())
	}
	fmt.Fprintln(w)
}
