package hook

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgerlanc/hookgate/internal/audit"
	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/runner"
)

var fixedNow = time.Date(2025, time.March, 3, 14, 5, 0, 0, time.UTC)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	return &Processor{
		Config: cfg,
		Root:   t.TempDir(),
		Runner: runner.Func(func(context.Context, string, time.Duration, string, ...string) runner.Result {
			return runner.Result{Status: runner.StatusUnavailable, Err: runner.ErrUnavailable}
		}),
		Now: func() time.Time { return fixedNow },
	}
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantExit     int
		wantDecision string
		wantStderr   string
	}{
		{
			name:         "ordinary source file",
			input:        `{"tool_name":"Write","tool_input":{"file_path":"src/app.py"}}`,
			wantExit:     0,
			wantDecision: audit.DecisionAllow,
		},
		{
			name:         "path traversal",
			input:        `{"tool_name":"Edit","tool_input":{"file_path":"../../etc/shadow"}}`,
			wantExit:     2,
			wantDecision: audit.DecisionBlock,
			wantStderr:   "🚨 Security Policy Violation\nFile: shadow\nSeverity: HIGH\nViolations:\n",
		},
		{
			name:         "env file",
			input:        `{"tool_name":"Write","tool_input":{"file_path":"config/.env"}}`,
			wantExit:     2,
			wantDecision: audit.DecisionBlock,
			wantStderr:   "Security Policy Violation\nFile: .env\nSeverity: MEDIUM\n",
		},
		{
			name:         "notebook path",
			input:        `{"tool_name":"NotebookEdit","tool_input":{"notebook_path":"secrets/analysis.ipynb"}}`,
			wantExit:     2,
			wantDecision: audit.DecisionBlock,
			wantStderr:   "File: analysis.ipynb",
		},
		{
			name:         "allow-listed file",
			input:        `{"tool_name":"Write","tool_input":{"file_path":"README.md"}}`,
			wantExit:     0,
			wantDecision: audit.DecisionAllow,
		},
		{
			name:         "invalid json",
			input:        `{"tool_input":`,
			wantExit:     0,
			wantDecision: audit.DecisionNoop,
		},
		{
			name:         "missing path",
			input:        `{"tool_name":"Write","tool_input":{}}`,
			wantExit:     0,
			wantDecision: audit.DecisionNoop,
		},
		{
			name:         "empty input",
			input:        ``,
			wantExit:     0,
			wantDecision: audit.DecisionNoop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t)
			res := p.Guard(strings.NewReader(tt.input))

			if res.ExitCode != tt.wantExit {
				t.Errorf("Guard() exit = %d, want %d (stderr %q)", res.ExitCode, tt.wantExit, res.Stderr)
			}
			if res.Decision != tt.wantDecision {
				t.Errorf("Guard() decision = %q, want %q", res.Decision, tt.wantDecision)
			}
			if tt.wantStderr == "" && res.Stderr != "" {
				t.Errorf("Guard() stderr = %q, want none", res.Stderr)
			}
			if !strings.Contains(res.Stderr, tt.wantStderr) {
				t.Errorf("Guard() stderr = %q, want it to contain %q", res.Stderr, tt.wantStderr)
			}
			if res.Stdout != "" {
				t.Errorf("Guard() stdout = %q, want none", res.Stdout)
			}
		})
	}
}

func TestGuardAbsolutePaths(t *testing.T) {
	p := newTestProcessor(t)

	inside := filepath.Join(p.Root, "src", "main.go")
	input, _ := json.Marshal(map[string]any{"tool_input": map[string]string{"file_path": inside}})
	if res := p.Guard(strings.NewReader(string(input))); res.ExitCode != 0 {
		t.Errorf("Guard(%s) exit = %d, want 0: %s", inside, res.ExitCode, res.Stderr)
	}

	outside := filepath.Join(filepath.Dir(p.Root), "elsewhere", "main.go")
	input, _ = json.Marshal(map[string]any{"tool_input": map[string]string{"file_path": outside}})
	res := p.Guard(strings.NewReader(string(input)))
	if res.ExitCode != 2 {
		t.Errorf("Guard(%s) exit = %d, want 2", outside, res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "Absolute path outside project detected") {
		t.Errorf("Guard() stderr = %q", res.Stderr)
	}
}

func TestGuardPanicFailsSecure(t *testing.T) {
	p := newTestProcessor(t)
	p.Config = nil

	res := p.Guard(strings.NewReader(`{"tool_input":{"file_path":"src/app.py"}}`))
	if res.ExitCode != 2 {
		t.Errorf("Guard() exit = %d, want 2", res.ExitCode)
	}
	if res.Decision != audit.DecisionError {
		t.Errorf("Guard() decision = %q, want %q", res.Decision, audit.DecisionError)
	}
	if !strings.HasPrefix(res.Stderr, "Security validation error: ") {
		t.Errorf("Guard() stderr = %q", res.Stderr)
	}
}

func TestContext(t *testing.T) {
	p := newTestProcessor(t)

	res := p.Context(context.Background(), strings.NewReader(`{"prompt":"rename this variable","cwd":"`+filepath.ToSlash(p.Root)+`"}`))
	if res.ExitCode != 0 {
		t.Errorf("Context() exit = %d, want 0", res.ExitCode)
	}
	want := "Date: Monday, March 03, 2025 at 02:05 PM UTC"
	if res.Stdout != want {
		t.Errorf("Context() stdout = %q, want %q", res.Stdout, want)
	}
	if res.Decision != audit.DecisionContext {
		t.Errorf("Context() decision = %q", res.Decision)
	}
	if res.Stderr != "" {
		t.Errorf("Context() stderr = %q, want none", res.Stderr)
	}
}

func TestContextUndecodableInput(t *testing.T) {
	p := newTestProcessor(t)

	res := p.Context(context.Background(), strings.NewReader(`not json`))
	if res.ExitCode != 0 {
		t.Errorf("Context() exit = %d, want 0", res.ExitCode)
	}
	// The empty prompt passes the relevance gate.
	if !strings.Contains(res.Stdout, "Project: "+filepath.Base(p.Root)) {
		t.Errorf("Context() stdout = %q, want project fragment", res.Stdout)
	}
}

func TestContextPanicFallsBack(t *testing.T) {
	p := newTestProcessor(t)
	p.Config = nil

	res := p.Context(context.Background(), strings.NewReader(`{"prompt":"hi"}`))
	if res.ExitCode != 0 {
		t.Errorf("Context() exit = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "Current date/time: Monday, March 03, 2025 at 02:05 PM UTC" {
		t.Errorf("Context() stdout = %q", res.Stdout)
	}
	if res.Decision != audit.DecisionFallback {
		t.Errorf("Context() decision = %q", res.Decision)
	}
}

func readAuditEntries(t *testing.T, path string) []audit.Entry {
	t.Helper()
	audit.Close()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	var entries []audit.Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var e audit.Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("parsing audit line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditEntries(t *testing.T) {
	defer audit.Reset()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := audit.Init(logPath, false, audit.Rotation{}); err != nil {
		t.Fatal(err)
	}

	p := newTestProcessor(t)
	p.Guard(strings.NewReader(`{"session_id":"s1","cwd":"/w","tool_input":{"file_path":"keys/id_rsa"}}`))
	p.Context(context.Background(), strings.NewReader(`{"session_id":"s1","prompt":"fix the secret bug"}`))

	entries := readAuditEntries(t, logPath)
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}

	guard := entries[0]
	if guard.Hook != audit.HookGuard || guard.Decision != audit.DecisionBlock || guard.ExitCode != 2 {
		t.Errorf("guard entry = %+v", guard)
	}
	if guard.Path != "keys/id_rsa" || guard.SessionID != "s1" || guard.Cwd != "/w" {
		t.Errorf("guard entry context = %+v", guard)
	}
	if guard.Severity != "high" || len(guard.Findings) < 2 {
		t.Errorf("guard entry findings = %s %+v", guard.Severity, guard.Findings)
	}

	ctxEntry := entries[1]
	if ctxEntry.Hook != audit.HookContext || ctxEntry.PromptLength != len("fix the secret bug") {
		t.Errorf("context entry = %+v", ctxEntry)
	}
	if len(ctxEntry.Intents) == 0 || ctxEntry.Intents[0] != "debug" {
		t.Errorf("context entry intents = %v", ctxEntry.Intents)
	}
	raw, _ := os.ReadFile(logPath)
	if strings.Contains(string(raw), "secret bug") {
		t.Error("audit log must not contain prompt text")
	}
}

func TestSkipAuditWritesNothing(t *testing.T) {
	defer audit.Reset()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := audit.Init(logPath, false, audit.Rotation{}); err != nil {
		t.Fatal(err)
	}

	p := newTestProcessor(t)
	p.SkipAudit = true
	p.Guard(strings.NewReader(`{"tool_input":{"file_path":".env"}}`))
	p.Context(context.Background(), strings.NewReader(`{"prompt":"fix the bug"}`))
	audit.Close()

	data, err := os.ReadFile(logPath)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("audit log = %q, want empty", data)
	}
}
