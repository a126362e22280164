package inject

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgerlanc/hookgate/internal/changes"
	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/git"
	"github.com/dgerlanc/hookgate/internal/intent"
	"github.com/dgerlanc/hookgate/internal/logscan"
	"github.com/dgerlanc/hookgate/internal/project"
	"github.com/dgerlanc/hookgate/internal/runner"
	"github.com/dgerlanc/hookgate/internal/testutil"
)

var fixedNow = time.Date(2025, time.March, 3, 14, 5, 0, 0, time.UTC)

const dateFragment = "Date: Monday, March 03, 2025 at 02:05 PM UTC"

type fakeGit struct {
	st git.Status
	ok bool
}

func (f fakeGit) Status(context.Context) (git.Status, bool) { return f.st, f.ok }

type fakeChanges struct {
	summary changes.Summary
	err     error
}

func (f fakeChanges) Analyze(context.Context) (changes.Summary, error) { return f.summary, f.err }

type fakeLogs struct {
	report logscan.Report
	err    error
	calls  *int
}

func (f fakeLogs) Scan(context.Context) (logscan.Report, error) {
	if f.calls != nil {
		*f.calls++
	}
	return f.report, f.err
}

type fakeProject struct {
	intel project.Intelligence
	err   error
	panic bool
}

func (f fakeProject) Analyze(context.Context) (project.Intelligence, error) {
	if f.panic {
		panic("manifest exploded")
	}
	return f.intel, f.err
}

func newAssembler(t *testing.T) *Assembler {
	t.Helper()
	cfg, err := config.LoadConfig(nil)
	require.NoError(t, err)

	a := New(cfg, "/work/shop", "/work/shop", runner.Func(func(context.Context, string, time.Duration, string, ...string) runner.Result {
		return runner.Result{Status: runner.StatusUnavailable, Err: runner.ErrUnavailable}
	}))
	a.Now = func() time.Time { return fixedNow }
	a.Git = fakeGit{}
	a.Changes = fakeChanges{}
	a.Logs = fakeLogs{}
	a.Project = fakeProject{}
	return a
}

func errorReport() logscan.Report {
	return logscan.Report{Files: 1, Matches: map[string][]logscan.Match{
		logscan.BuildError:      {{File: "build.log", Text: "error: compile failed"}, {File: "build.log", Text: "Error: exception"}},
		logscan.DependencyError: {{File: "build.log", Text: "module x not found"}},
	}}
}

func TestAssembleDebugPrompt(t *testing.T) {
	a := newAssembler(t)
	a.Git = fakeGit{st: git.Status{Branch: "main", Known: true}, ok: true}
	a.Logs = fakeLogs{report: errorReport()}

	res := a.Assemble(context.Background(), "why is this failing with an exception")

	assert.True(t, res.Intents.Has(intent.Debug))
	assert.Equal(t, strings.Join([]string{
		dateFragment,
		"Git: main (clean)",
		"DEBUG: Recent errors detected",
		"Build errors: 2 recent",
		"Dependency issues: 1",
	}, Separator), res.Text)
	assert.Equal(t, 5, res.Fragments)
	assert.False(t, res.Degraded)
}

func TestAssembleDebugPromptRealLogs(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"logs/build.log": "step 1 ok\nERROR: build failed in module core\n",
	})
	cfg, err := config.LoadConfig(nil)
	require.NoError(t, err)

	a := newAssembler(t)
	a.Root, a.Cwd = root, root
	a.Logs = logscan.New(root, cfg.Context)

	res := a.Assemble(context.Background(), "why is this failing with an exception")
	assert.Contains(t, res.Text, "Build errors: 1 recent")
}

func TestAssembleSkipsLogsWithoutDebugIntent(t *testing.T) {
	calls := 0
	a := newAssembler(t)
	a.Logs = fakeLogs{report: errorReport(), calls: &calls}

	res := a.Assemble(context.Background(), "add a new endpoint")
	assert.Zero(t, calls)
	assert.NotContains(t, res.Text, "DEBUG")
}

func TestAssembleArchitecturePrompt(t *testing.T) {
	a := newAssembler(t)
	a.Project = fakeProject{intel: project.Intelligence{
		Name:       "shop",
		Frameworks: []string{"Next.js", "React"},
		Patterns:   []string{"Component-based", "API-first"},
		Type:       project.TypeWebApplication,
		Complexity: 7,
	}}
	a.Changes = fakeChanges{summary: changes.Summary{
		Files: []changes.FileFacts{
			{Path: "api/routes.ts", Routes: []string{"/users"}},
			{Path: "package.json", ConfigKeys: []string{"package_dependencies"}},
			{Path: "README.md"},
		},
		NewDependencies: []string{"zod"},
	}}

	res := a.Assemble(context.Background(), "help me design the architecture for the project")
	assert.Equal(t, strings.Join([]string{
		dateFragment,
		"ARCH: Project: web_application | Frameworks: Next.js, React",
		"FILES: 3 recently modified files analyzed",
		"Project: shop",
		"Complex project (score: 7/10)",
		"Patterns: Component-based, API-first",
		"API changes detected in 1 files",
		"Config changes in 1 files",
		"New dependencies: zod",
	}, Separator), res.Text)
}

func TestAssembleIrrelevantPromptSkipsDetails(t *testing.T) {
	a := newAssembler(t)
	a.Changes = fakeChanges{summary: changes.Summary{
		Files: []changes.FileFacts{{Path: "a.go", Routes: []string{"/x"}}},
	}}

	res := a.Assemble(context.Background(), "rename this variable")
	assert.Equal(t, dateFragment+Separator+"FILES: 1 recently modified files analyzed", res.Text)
	assert.Equal(t, intent.Set{intent.General}, res.Intents)
}

func TestAssembleEmptyPromptIsRelevant(t *testing.T) {
	a := newAssembler(t)
	res := a.Assemble(context.Background(), "")
	assert.Equal(t, dateFragment+Separator+"Project: shop", res.Text)
}

func TestAssembleGitStates(t *testing.T) {
	tests := []struct {
		name string
		git  fakeGit
		want string
	}{
		{"clean", fakeGit{git.Status{Branch: "main", Known: true}, true}, "Git: main (clean)"},
		{"dirty", fakeGit{git.Status{Branch: "feat/x", Dirty: true, Known: true}, true}, "Git: feat/x (with uncommitted changes)"},
		{"status unknown", fakeGit{git.Status{Branch: "main"}, true}, "Git: main"},
		{"no repo", fakeGit{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssembler(t)
			a.Git = tt.git
			res := a.Assemble(context.Background(), "rename x")
			if tt.want == "" {
				assert.NotContains(t, res.Text, "Git:")
				return
			}
			assert.Contains(t, res.Text, Separator+tt.want)
		})
	}
}

func TestAssembleWorkingDirectory(t *testing.T) {
	a := newAssembler(t)
	a.Cwd = filepath.Join(a.Root, "services", "api")
	res := a.Assemble(context.Background(), "rename x")
	assert.Equal(t, dateFragment+Separator+"Dir: services/api", res.Text)
}

func TestAssembleAnalyzerFailuresAreSoft(t *testing.T) {
	a := newAssembler(t)
	a.Logs = fakeLogs{err: errors.New("permission denied")}
	a.Project = fakeProject{panic: true}
	a.Changes = fakeChanges{err: errors.New("not a git repository")}

	res := a.Assemble(context.Background(), "debug the failing architecture")
	assert.False(t, res.Degraded)
	assert.Equal(t, dateFragment, res.Text)
	assert.Equal(t, intent.Set{intent.Debug, intent.Architecture}, res.Intents)
}

func TestAssembleFallsBackOnFailure(t *testing.T) {
	a := newAssembler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := a.Assemble(ctx, "anything")
	assert.True(t, res.Degraded)
	assert.Equal(t, "Current date/time: Monday, March 03, 2025 at 02:05 PM UTC", res.Text)
}

func TestAssembleFallsBackOnPanic(t *testing.T) {
	a := newAssembler(t)
	a.Detector = nil

	res := a.Assemble(context.Background(), "anything")
	assert.True(t, res.Degraded)
	assert.True(t, strings.HasPrefix(res.Text, "Current date/time: "))
}

func TestFragmentsNeverContainNewlines(t *testing.T) {
	a := newAssembler(t)
	a.Git = fakeGit{git.Status{Branch: "weird\nbranch", Known: true}, true}
	a.Project = fakeProject{intel: project.Intelligence{Name: "multi\nline", Frameworks: []string{"A\nB"}}}

	res := a.Assemble(context.Background(), "plan the architecture")
	assert.NotContains(t, res.Text, "\n")
	assert.Contains(t, res.Text, "Git: weird branch (clean)")
}

func TestBundle(t *testing.T) {
	var b Bundle
	b.Add("  one\r\ntwo  ")
	b.Add("   ")
	b.AddLabeled("Label: ", "")
	b.AddLabeled("Label: ", "value")

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, "one two | Label: value", b.String())
}

func TestRelativeDir(t *testing.T) {
	root := filepath.FromSlash("/p/root")
	tests := map[string]string{
		root:                                  "",
		filepath.FromSlash("/p/root/a/b"):     "a/b",
		filepath.FromSlash("/p/other"):        "",
		filepath.FromSlash("/p/root/../root"): "",
		"":                                    "",
	}
	for cwd, want := range tests {
		assert.Equal(t, want, relativeDir(root, cwd), cwd)
	}
}

func TestRelevanceMatchesInsideWords(t *testing.T) {
	a := newAssembler(t)

	tests := map[string]bool{
		"acknowledge the subtask": true,
		"I know what is up":       true,
		"what  should I do":       true,
		"rename this variable":    false,
		"   ":                     true,
	}
	for prompt, want := range tests {
		assert.Equal(t, want, a.Relevance(prompt), prompt)
	}
}
