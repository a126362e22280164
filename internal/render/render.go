// Package render turns pipeline results into the text and exit code a hook
// hands back to the host.
package render

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/security"
)

// MaxListedViolations bounds how many findings a block message spells out.
const MaxListedViolations = 3

// DateLayout renders e.g. "Monday, January 02, 2006 at 03:04 PM MST".
const DateLayout = "Monday, January 02, 2006 at 03:04 PM MST"

var severityIcons = map[security.Severity]string{
	security.High:   "🚨",
	security.Medium: "⚠️",
	security.Low:    "ℹ️",
}

// Icon returns the marker shown in front of a block message.
func Icon(s security.Severity) string {
	if icon, ok := severityIcons[s]; ok {
		return icon
	}
	return "⚠️"
}

// BlockMessage formats the stderr text for a blocked operation.
func BlockMessage(v security.Verdict) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s Security Policy Violation\n", Icon(v.Severity))
	fmt.Fprintf(&b, "File: %s\n", filepath.Base(filepath.FromSlash(strings.ReplaceAll(v.Path, `\`, "/"))))
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(v.Severity.String()))

	if msgs := v.Messages(); len(msgs) > 0 {
		b.WriteString("Violations:\n")
		for i, msg := range msgs {
			if i == MaxListedViolations {
				fmt.Fprintf(&b, "  ... and %d more\n", len(msgs)-MaxListedViolations)
				break
			}
			fmt.Fprintf(&b, "  %d. %s\n", i+1, msg)
		}
	}

	b.WriteString("\n💡 This file appears to contain sensitive information and cannot be modified.")
	b.WriteString("\nIf this is incorrect, please check your security configuration.")
	return b.String()
}

// Security renders a verdict as (stderr text, exit code). Allowed operations
// produce no text.
func Security(v security.Verdict) (string, int) {
	if !v.Blocked() {
		return "", constants.ExitAllow
	}
	return BlockMessage(v), constants.ExitBlock
}

// SecurityError renders a failure of the guard hook itself. It always blocks.
func SecurityError(cause any) (string, int) {
	return fmt.Sprintf("Security validation error: %v", cause), constants.ExitBlock
}

// FormatDate formats t in the layout used by the context line.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FallbackContext is the degraded context line emitted when assembly fails.
func FallbackContext(now time.Time) string {
	return "Current date/time: " + FormatDate(now)
}

// Interrupted is printed to stderr when a signal stops a hook.
const Interrupted = "hookgate: interrupted"
