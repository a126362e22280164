// Package inject assembles the context line the prompt hook prints. Every
// analyzer runs fail-soft: a failed or timed-out analyzer drops its
// fragments and assembly carries on.
package inject

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgerlanc/hookgate/internal/changes"
	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/git"
	"github.com/dgerlanc/hookgate/internal/intent"
	"github.com/dgerlanc/hookgate/internal/logger"
	"github.com/dgerlanc/hookgate/internal/logscan"
	"github.com/dgerlanc/hookgate/internal/pipeline"
	"github.com/dgerlanc/hookgate/internal/project"
	"github.com/dgerlanc/hookgate/internal/render"
	"github.com/dgerlanc/hookgate/internal/runner"
)

// ComplexThreshold is the complexity score above which a project is called
// out as complex.
const ComplexThreshold = 5

// GitSource reports branch state.
type GitSource interface {
	Status(ctx context.Context) (git.Status, bool)
}

// ChangeSource summarises recent changes.
type ChangeSource interface {
	Analyze(ctx context.Context) (changes.Summary, error)
}

// LogSource scans logs for recent errors.
type LogSource interface {
	Scan(ctx context.Context) (logscan.Report, error)
}

// ProjectSource profiles the project.
type ProjectSource interface {
	Analyze(ctx context.Context) (project.Intelligence, error)
}

// Assembler builds the context line for one prompt.
type Assembler struct {
	Root     string
	Cwd      string
	Timeouts config.Timeouts

	Detector  *intent.Detector
	Relevance func(prompt string) bool

	Git     GitSource
	Changes ChangeSource
	Logs    LogSource
	Project ProjectSource

	Now func() time.Time
}

// New wires an Assembler for the project at root, running subprocesses
// through r.
func New(cfg *config.Config, root, cwd string, r runner.Runner) *Assembler {
	gitClient := git.New(r, root, cfg.Timeouts.Git)
	relevance := cfg.Context.Relevance
	return &Assembler{
		Root:     root,
		Cwd:      cwd,
		Timeouts: cfg.Timeouts,
		Detector: intent.NewDetector(cfg.Intents),
		Relevance: func(prompt string) bool {
			return strings.TrimSpace(prompt) == "" || relevance.MatchString(prompt)
		},
		Git:     gitClient,
		Changes: changes.New(gitClient, root, cfg.Context.RecognizedExtensions),
		Logs:    logscan.New(root, cfg.Context),
		Project: project.New(root),
		Now:     time.Now,
	}
}

// Result is the rendered context and what went into it.
type Result struct {
	Text      string
	Intents   intent.Set
	Fragments int
	// Degraded is set when assembly failed and only the date line was
	// produced.
	Degraded bool
}

// Assemble builds the context line for prompt. It never fails: any error
// or panic outside the per-analyzer guards yields the date-only fallback.
func (a *Assembler) Assemble(ctx context.Context, prompt string) Result {
	res, err := pipeline.Run("assemble", func() (Result, error) {
		return a.assemble(ctx, prompt)
	})
	if err != nil {
		logger.Error("context assembly failed", "error", err)
		return Result{Text: render.FallbackContext(a.now()), Intents: intent.Set{intent.General}, Fragments: 1, Degraded: true}
	}
	return res
}

func (a *Assembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Assembler) assemble(ctx context.Context, prompt string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	intents := a.Detector.Detect(prompt)
	logger.Debug("detected intents", "intents", intents.String())

	var b Bundle
	b.AddLabeled("Date: ", render.FormatDate(a.now()))

	if st, ok := a.gitStatus(ctx); ok {
		b.AddLabeled("Git: ", formatGit(st))
	}
	b.AddLabeled("Dir: ", relativeDir(a.Root, a.Cwd))

	var report logscan.Report
	if intents.Has(intent.Debug) {
		report, _ = softWithTimeout(ctx, "logscan", a.Timeouts.LogScan, a.Logs.Scan)
		if report.Any() {
			b.Add("DEBUG: Recent errors detected")
			addCount(&b, "Build errors: %d recent", report.Count(logscan.BuildError))
			addCount(&b, "Test failures: %d detected", report.Count(logscan.TestFailure))
			addCount(&b, "Lint issues: %d", report.Count(logscan.LintWarning))
			addCount(&b, "Dependency issues: %d", report.Count(logscan.DependencyError))
		}
	}

	var intel project.Intelligence
	var haveIntel bool
	if intents.Has(intent.Architecture) || intents.Has(intent.Feature) {
		intel, haveIntel = softWithTimeout(ctx, "project", a.Timeouts.ProjectScan, a.Project.Analyze)
		if haveIntel && len(intel.Frameworks) > 0 {
			b.Add(fmt.Sprintf("ARCH: Project: %s | Frameworks: %s", intel.Type, strings.Join(intel.Frameworks, ", ")))
		}
	}

	summary, _ := softWithTimeout(ctx, "changes", a.Timeouts.Git, a.Changes.Analyze)
	addCount(&b, "FILES: %d recently modified files analyzed", len(summary.Files))

	if a.Relevance != nil && a.Relevance(prompt) {
		name := intel.Name
		if name == "" {
			name = filepath.Base(a.Root)
		}
		b.AddLabeled("Project: ", name)
		if haveIntel {
			if intel.Complexity > ComplexThreshold {
				b.Add(fmt.Sprintf("Complex project (score: %d/%d)", intel.Complexity, project.MaxComplexity))
			}
			b.AddLabeled("Patterns: ", strings.Join(intel.Patterns, ", "))
		}
		addCount(&b, "API changes detected in %d files", summary.APIChanges())
		addCount(&b, "Config changes in %d files", summary.ConfigChanges())
		b.AddLabeled("New dependencies: ", strings.Join(summary.NewDependencies, ", "))
	}

	return Result{Text: b.String(), Intents: intents, Fragments: b.Len()}, nil
}

func (a *Assembler) gitStatus(ctx context.Context) (git.Status, bool) {
	if a.Git == nil {
		return git.Status{}, false
	}
	type status struct {
		st git.Status
		ok bool
	}
	res, ok := pipeline.FailSoft("git", func() (status, error) {
		st, ok := a.Git.Status(ctx)
		return status{st, ok}, nil
	})
	return res.st, ok && res.ok
}

// softWithTimeout runs fn fail-soft under its own deadline.
func softWithTimeout[T any](ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) (T, error)) (T, bool) {
	if fn == nil {
		var zero T
		return zero, false
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return pipeline.FailSoft(stage, func() (T, error) {
		return fn(ctx)
	})
}

func formatGit(st git.Status) string {
	if !st.Known {
		return st.Branch
	}
	if st.Dirty {
		return st.Branch + " (with uncommitted changes)"
	}
	return st.Branch + " (clean)"
}

// relativeDir returns cwd relative to root, or "" when cwd is the root or
// lies outside it.
func relativeDir(root, cwd string) string {
	if root == "" || cwd == "" {
		return ""
	}
	rel, err := filepath.Rel(root, cwd)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

func addCount(b *Bundle, format string, n int) {
	if n > 0 {
		b.Add(fmt.Sprintf(format, n))
	}
}
