package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookgate/internal/audit"
	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/security"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Run the security checks on paths",
	Long: `Check runs the same analysis as the guard hook on each path and prints the
verdicts. It exits 2 if any path would be blocked.

Paths are evaluated against the project root (CLAUDE_PROJECT_DIR or the
current directory).`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeCheckPaths,
	RunE:              runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print verdicts as JSON")
}

type checkOutput struct {
	Path           string          `json:"path"`
	Safe           bool            `json:"safe"`
	Severity       string          `json:"severity"`
	Recommendation string          `json:"recommendation"`
	Exempt         bool            `json:"exempt,omitempty"`
	Findings       []audit.Finding `json:"findings,omitempty"`
}

func toAuditFindings(findings []security.Finding) []audit.Finding {
	out := make([]audit.Finding, 0, len(findings))
	for _, f := range findings {
		out = append(out, audit.Finding{Check: f.Check, Message: f.Message, Severity: f.Severity.String()})
	}
	return out
}

func runCheck(cmd *cobra.Command, args []string) error {
	analyzer := newProcessor().Analyzer()
	out := cmd.OutOrStdout()

	blocked := false
	var results []checkOutput
	for _, path := range args {
		v := analyzer.Analyze(path)
		if v.Blocked() {
			blocked = true
		}

		if checkJSON {
			results = append(results, checkOutput{
				Path:           path,
				Safe:           v.IsSafe,
				Severity:       v.Severity.String(),
				Recommendation: v.Recommendation.String(),
				Exempt:         v.Exempt,
				Findings:       toAuditFindings(v.Findings),
			})
			continue
		}

		switch {
		case v.Exempt:
			fmt.Fprintf(out, "ALLOWED: %s (allow-listed)\n", path)
		case v.Blocked():
			fmt.Fprintf(out, "BLOCKED: %s (severity: %s)\n", path, v.Severity)
			for _, f := range v.Findings {
				fmt.Fprintf(out, "  - [%s] %s\n", f.Severity, f.Message)
			}
		default:
			fmt.Fprintf(out, "ALLOWED: %s\n", path)
		}
	}

	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode verdicts: %w", err)
		}
	}

	if blocked {
		exit(constants.ExitBlock)
	}
	return nil
}
