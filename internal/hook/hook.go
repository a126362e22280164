// Package hook runs one hook invocation end to end: decode the event, run
// the pipeline, render the answer and record it in the audit log. It is the
// last line of defense: every panic is recovered and every path returns a
// defined exit code.
package hook

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/dgerlanc/hookgate/internal/audit"
	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/event"
	"github.com/dgerlanc/hookgate/internal/inject"
	"github.com/dgerlanc/hookgate/internal/logger"
	"github.com/dgerlanc/hookgate/internal/render"
	"github.com/dgerlanc/hookgate/internal/runner"
	"github.com/dgerlanc/hookgate/internal/security"
)

// Result contains the outcome of one invocation.
type Result struct {
	Hook     string
	Decision string
	Stdout   string
	Stderr   string
	ExitCode int
	// Verdict is set when the guard analyzed a path.
	Verdict *security.Verdict
	// Context is set when the context hook assembled a line.
	Context *inject.Result
}

// Processor holds what an invocation needs from its environment.
type Processor struct {
	Config *config.Config
	Root   string
	Runner runner.Runner
	Now    func() time.Time
	// SkipAudit keeps invocations out of the audit log.
	SkipAudit bool
}

// NewProcessor returns a Processor using the global configuration, the
// project root designated by the host and the real subprocess runner.
func NewProcessor() *Processor {
	return &Processor{
		Config: config.Get(),
		Root:   constants.ProjectDir(),
		Runner: runner.New(),
		Now:    time.Now,
	}
}

func (p *Processor) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Analyzer builds the security analyzer for the project root.
func (p *Processor) Analyzer() *security.Analyzer {
	rules := security.NewRules(p.Config.Security, p.Root)
	return security.NewAnalyzer(rules, security.DefaultChecks(rules)...)
}

// Guard evaluates one PreToolUse event read from r. Undecodable input is a
// no-op; a blocked path or an internal failure exits with code 2.
func (p *Processor) Guard(r io.Reader) (res Result) {
	start := time.Now()
	var ev event.Event

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("guard panicked", "panic", rec)
			stderr, code := render.SecurityError(rec)
			res = Result{Hook: audit.HookGuard, Decision: audit.DecisionError, Stderr: stderr, ExitCode: code}
		}
		if !p.SkipAudit {
			logGuard(ev, res, start)
		}
	}()

	ev, ok := event.Decode(r, event.KindFileOperation)
	if !ok {
		return Result{Hook: audit.HookGuard, Decision: audit.DecisionNoop, ExitCode: constants.ExitAllow}
	}

	verdict := p.Analyzer().Analyze(ev.Path)
	stderr, code := render.Security(verdict)

	res = Result{Hook: audit.HookGuard, Decision: audit.DecisionAllow, Stderr: stderr, ExitCode: code, Verdict: &verdict}
	if verdict.Blocked() {
		res.Decision = audit.DecisionBlock
		logger.Info("blocked file operation", "path", ev.Path, "severity", verdict.Severity.String(), "findings", len(verdict.Findings))
	}
	return res
}

// Context assembles the context line for one UserPromptSubmit event read
// from r. It always exits 0; undecodable input is treated as an empty
// prompt.
func (p *Processor) Context(ctx context.Context, r io.Reader) (res Result) {
	start := time.Now()
	var ev event.Event

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("context hook panicked", "panic", rec)
			res = Result{
				Hook:     audit.HookContext,
				Decision: audit.DecisionFallback,
				Stdout:   render.FallbackContext(p.now()),
				ExitCode: constants.ExitAllow,
			}
		}
		if !p.SkipAudit {
			logContext(ev, res, start)
		}
	}()

	ev, _ = event.Decode(r, event.KindPromptSubmission)

	cwd := ev.Cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}

	a := inject.New(p.Config, p.Root, cwd, p.Runner)
	a.Now = p.now
	assembled := a.Assemble(ctx, ev.Prompt)

	res = Result{
		Hook:     audit.HookContext,
		Decision: audit.DecisionContext,
		Stdout:   assembled.Text,
		ExitCode: constants.ExitAllow,
		Context:  &assembled,
	}
	if assembled.Degraded {
		res.Decision = audit.DecisionFallback
	}
	return res
}

func baseEntry(res Result, ev event.Event, start time.Time) audit.Entry {
	var configError string
	if err := config.InitError(); err != nil {
		configError = err.Error()
	}
	return audit.Entry{
		Hook:        res.Hook,
		SessionID:   ev.SessionID,
		DurationMs:  float64(time.Since(start).Microseconds()) / 1000.0,
		Decision:    res.Decision,
		Cwd:         ev.Cwd,
		ExitCode:    res.ExitCode,
		ConfigPath:  config.GetConfigPath(),
		ConfigError: configError,
	}
}

// logGuard logs a guard decision to the audit log.
func logGuard(ev event.Event, res Result, start time.Time) {
	entry := baseEntry(res, ev, start)
	entry.Path = ev.Path
	if v := res.Verdict; v != nil {
		entry.Severity = v.Severity.String()
		for _, f := range v.Findings {
			entry.Findings = append(entry.Findings, audit.Finding{
				Check:    f.Check,
				Message:  f.Message,
				Severity: f.Severity.String(),
			})
		}
	}
	if err := audit.Log(entry); err != nil {
		logger.Debug("failed to write audit entry", "error", err)
	}
}

// logContext logs a context injection. The prompt itself is never recorded.
func logContext(ev event.Event, res Result, start time.Time) {
	entry := baseEntry(res, ev, start)
	entry.PromptLength = len(ev.Prompt)
	if c := res.Context; c != nil {
		entry.Intents = c.Intents.Strings()
		entry.Fragments = c.Fragments
	}
	if err := audit.Log(entry); err != nil {
		logger.Debug("failed to write audit entry", "error", err)
	}
}
