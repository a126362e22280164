package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/event"
	"github.com/dgerlanc/hookgate/internal/hook"
	"github.com/dgerlanc/hookgate/internal/intent"
	"github.com/dgerlanc/hookgate/internal/runner"
	"github.com/dgerlanc/hookgate/internal/security"
	"github.com/dgerlanc/hookgate/internal/settings"
)

// getTestProcessor returns a processor with default rules rooted at dir and
// no external tools.
func getTestProcessor(dir string) *hook.Processor {
	return &hook.Processor{
		Config: config.Get(),
		Root:   dir,
		Runner: runner.Func(func(context.Context, string, time.Duration, string, ...string) runner.Result {
			return runner.Result{Status: runner.StatusUnavailable, Err: runner.ErrUnavailable}
		}),
		Now: time.Now,
	}
}

// FuzzDecode tests event decoding for crashes
func FuzzDecode(f *testing.F) {
	f.Add(`{"tool_name":"Write","tool_input":{"file_path":"src/app.py"}}`)
	f.Add(`{"tool_name":"NotebookEdit","tool_input":{"notebook_path":"a.ipynb"}}`)
	f.Add(`{"prompt":"fix the bug","cwd":"/tmp"}`)
	f.Add(`{"tool_input":null}`)
	f.Add(`{}`)
	f.Add(`not json`)
	f.Add(``)

	f.Fuzz(func(t *testing.T, input string) {
		for _, kind := range []event.Kind{event.KindFileOperation, event.KindPromptSubmission} {
			ev, ok := event.DecodeBytes([]byte(input), kind)
			if !ok && ev != (event.Event{}) {
				t.Errorf("failed decode returned a non-empty event: %+v", ev)
			}
		}
	})
}

// FuzzAnalyze tests the security analyzer: it must never panic and a path
// that starts above the project root is never allowed.
func FuzzAnalyze(f *testing.F) {
	f.Add("src/app.py")
	f.Add(".env")
	f.Add("../../etc/passwd")
	f.Add("config/%2e%2e/secret")
	f.Add("/abs/path/outside")
	f.Add("C:\\Users\\me\\.ssh\\id_rsa")
	f.Add("README.md")
	f.Add("")

	p := getTestProcessor(f.TempDir())
	analyzer := p.Analyzer()

	f.Fuzz(func(t *testing.T, path string) {
		v := analyzer.Analyze(path)
		if v.IsSafe == v.Blocked() {
			t.Errorf("Analyze(%q): IsSafe=%v but Blocked=%v", path, v.IsSafe, v.Blocked())
		}
		if strings.HasPrefix(path, "../") && !v.Exempt && v.IsSafe {
			t.Errorf("Analyze(%q) allowed a traversal", path)
		}
		if v.Blocked() && len(v.Findings) == 0 {
			t.Errorf("Analyze(%q) blocked without findings", path)
		}
		_ = security.Aggregate(path, v.Findings)
	})
}

// FuzzGuard tests the full guard hook for crashes and exit codes
func FuzzGuard(f *testing.F) {
	f.Add(`{"tool_name":"Write","tool_input":{"file_path":"src/app.py"}}`)
	f.Add(`{"tool_name":"Write","tool_input":{"file_path":".env"}}`)
	f.Add(`{"tool_name":"Edit","tool_input":{"file_path":"../../etc/shadow"}}`)
	f.Add(`{"tool_name":"Write","tool_input":{}}`)
	f.Add(`{}`)
	f.Add(`not json`)

	p := getTestProcessor(f.TempDir())

	f.Fuzz(func(t *testing.T, input string) {
		res := p.Guard(strings.NewReader(input))
		if res.ExitCode != 0 && res.ExitCode != 2 {
			t.Errorf("Guard() exit = %d, want 0 or 2", res.ExitCode)
		}
		if res.Stdout != "" {
			t.Errorf("Guard() wrote to stdout: %q", res.Stdout)
		}
	})
}

// FuzzDetect tests intent classification for crashes
func FuzzDetect(f *testing.F) {
	f.Add("why is this failing with an exception")
	f.Add("refactor the architecture")
	f.Add("add a new feature")
	f.Add("review my code")
	f.Add("")
	f.Add("((((")

	d := intent.NewDetector(config.Get().Intents)

	f.Fuzz(func(t *testing.T, prompt string) {
		_ = d.Detect(prompt).Strings()
	})
}

// FuzzExecutables tests hook command parsing for crashes
func FuzzExecutables(f *testing.F) {
	f.Add("hookgate guard")
	f.Add(`"$CLAUDE_PROJECT_DIR"/bin/hookgate context`)
	f.Add("timeout 30 env FOO=1 python3 hook.py")
	f.Add("echo $(date) | tee `whoami`")
	f.Add("cat <<'EOF'\n$(x)\nEOF")
	f.Add("")

	f.Fuzz(func(t *testing.T, cmd string) {
		_, _ = settings.Executables(cmd)
		_ = settings.ContainsSubstitution(cmd)
	})
}
