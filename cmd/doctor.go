package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookgate/internal/audit"
	"github.com/dgerlanc/hookgate/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the project's hook setup",
	Long: `Doctor checks the project's .claude directory and settings.json, resolves
every registered hook command, probes commonly used tools, runs both hooks
in-process against canned inputs and reports on the audit log.

It exits non-zero when any check fails.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var (
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorRed    = lipgloss.Color("#ff5555")
	colorDim    = lipgloss.Color("#6272a4")
)

type doctorStyles struct {
	title  lipgloss.Style
	header lipgloss.Style
	pass   lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	detail lipgloss.Style
}

func newDoctorStyles(r *lipgloss.Renderer) doctorStyles {
	return doctorStyles{
		title:  r.NewStyle().Bold(true),
		header: r.NewStyle().Bold(true).Underline(true),
		pass:   r.NewStyle().Foreground(colorGreen),
		warn:   r.NewStyle().Foreground(colorYellow),
		fail:   r.NewStyle().Foreground(colorRed).Bold(true),
		detail: r.NewStyle().Foreground(colorDim),
	}
}

func (s doctorStyles) mark(status doctor.Status) string {
	switch status {
	case doctor.Pass:
		return s.pass.Render("✓")
	case doctor.Warn:
		return s.warn.Render("!")
	default:
		return s.fail.Render("✗")
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d := doctor.New(newProcessor(), audit.Path())
	report := d.Run(ctx)

	out := cmd.OutOrStdout()
	styles := newDoctorStyles(lipgloss.NewRenderer(out))

	fmt.Fprintln(out, styles.title.Render("hookgate doctor: "+d.Root))
	for _, section := range report.Sections() {
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.header.Render(section))
		for _, c := range report.InSection(section) {
			line := fmt.Sprintf("  %s %s", styles.mark(c.Status), c.Name)
			if c.Detail != "" {
				line += "  " + styles.detail.Render(c.Detail)
			}
			fmt.Fprintln(out, line)
		}
	}

	fmt.Fprintln(out)
	failed := report.Count(doctor.Fail)
	warned := report.Count(doctor.Warn)
	if failed > 0 {
		fmt.Fprintln(out, styles.fail.Render(fmt.Sprintf("%d problem(s) found, %d warning(s)", failed, warned)))
		return fmt.Errorf("doctor found %d problem(s)", failed)
	}
	fmt.Fprintln(out, styles.pass.Render(fmt.Sprintf("All checks passed (%d warning(s))", warned)))
	return nil
}
