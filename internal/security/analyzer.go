package security

import (
	"fmt"
	"strings"

	"github.com/dgerlanc/hookgate/internal/logger"
	"github.com/dgerlanc/hookgate/internal/pipeline"
)

// Severity ranks findings. The zero value is Low.
type Severity int

const (
	Low Severity = iota
	Medium
	High
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Recommendation is the final decision.
type Recommendation int

const (
	Allow Recommendation = iota
	Block
)

func (r Recommendation) String() string {
	if r == Block {
		return "block"
	}
	return "allow"
}

// Finding is one violation reported by a check.
type Finding struct {
	Check    string
	Message  string
	Severity Severity
}

// Verdict is the aggregated outcome for one path. Only the analyzer
// constructs it.
type Verdict struct {
	Path           string
	IsSafe         bool
	Findings       []Finding
	Severity       Severity
	Recommendation Recommendation
	// Exempt is set when the allow-list short-circuited every check.
	Exempt bool
}

// Messages returns the finding messages in check order.
func (v Verdict) Messages() []string {
	msgs := make([]string, len(v.Findings))
	for i, f := range v.Findings {
		msgs[i] = f.Message
	}
	return msgs
}

// Blocked reports whether the operation must be denied.
func (v Verdict) Blocked() bool {
	return v.Recommendation == Block
}

// CheckAnalysisError names the synthetic finding produced when analysis
// itself fails.
const CheckAnalysisError = "analysis_error"

// Analyzer runs a check registry against paths.
type Analyzer struct {
	rules  *Rules
	checks []Check
}

// NewAnalyzer returns an Analyzer over rules. With no checks given it uses
// DefaultChecks.
func NewAnalyzer(rules *Rules, checks ...Check) *Analyzer {
	if len(checks) == 0 {
		checks = DefaultChecks(rules)
	}
	return &Analyzer{rules: rules, checks: checks}
}

// Analyze runs every check against path and aggregates the findings. Any
// failure during analysis produces a blocking verdict.
func (a *Analyzer) Analyze(path string) Verdict {
	return pipeline.FailSecure("security",
		func() (Verdict, error) {
			if a.rules.IsAllowed(path) {
				logger.Debug("allow-listed file, skipping checks", "path", path)
				return Verdict{Path: path, IsSafe: true, Severity: Low, Recommendation: Allow, Exempt: true}, nil
			}

			var findings []Finding
			for _, c := range a.checks {
				msg := c.Run(path)
				if msg == "" {
					continue
				}
				findings = append(findings, Finding{Check: c.Name, Message: msg, Severity: a.Classify(msg)})
			}
			return Aggregate(path, findings), nil
		},
		func(err error) Verdict {
			return Aggregate(path, []Finding{{
				Check:    CheckAnalysisError,
				Message:  "Security analysis error: " + err.Error(),
				Severity: High,
			}})
		})
}

// Classify returns High when the message mentions a high-severity term,
// otherwise Medium.
func (a *Analyzer) Classify(msg string) Severity {
	lower := strings.ToLower(msg)
	for _, term := range a.rules.highTerms {
		if strings.Contains(lower, term) {
			return High
		}
	}
	return Medium
}

// Aggregate reduces findings to a Verdict: the highest severity wins, and
// any finding at Medium or above blocks.
func Aggregate(path string, findings []Finding) Verdict {
	v := Verdict{Path: path, Findings: findings, IsSafe: len(findings) == 0, Severity: Low}
	for _, f := range findings {
		if f.Severity > v.Severity {
			v.Severity = f.Severity
		}
	}
	if v.Severity >= Medium {
		v.Recommendation = Block
	}
	return v
}
