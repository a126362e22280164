// Package doctor diagnoses a project's hook setup: the .claude structure,
// the commands registered in settings.json, tool availability, in-process
// self-tests of both hooks and the state of the audit log.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/shlex"

	"github.com/dgerlanc/hookgate/internal/audit"
	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/hook"
	"github.com/dgerlanc/hookgate/internal/logger"
	"github.com/dgerlanc/hookgate/internal/runner"
	"github.com/dgerlanc/hookgate/internal/settings"
)

// Status is the outcome of one check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Report sections, in the order Run produces them.
const (
	SectionStructure = "Project structure"
	SectionSettings  = "Settings"
	SectionTools     = "Tools"
	SectionSelfTest  = "Self-tests"
	SectionAudit     = "Audit log"
)

// Check is one diagnostic line.
type Check struct {
	Section string
	Name    string
	Status  Status
	Detail  string
}

// Report collects checks in the order they ran.
type Report struct {
	Checks []Check
}

func (r *Report) add(section, name string, status Status, detail string) {
	r.Checks = append(r.Checks, Check{Section: section, Name: name, Status: status, Detail: detail})
}

// Sections returns section names in order of first appearance.
func (r Report) Sections() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range r.Checks {
		if !seen[c.Section] {
			seen[c.Section] = true
			out = append(out, c.Section)
		}
	}
	return out
}

// InSection returns the checks of one section.
func (r Report) InSection(section string) []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Section == section {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many checks have the given status.
func (r Report) Count(s Status) int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == s {
			n++
		}
	}
	return n
}

// Tool is an availability probe. Command is split like a shell would.
type Tool struct {
	Name    string
	Command string
}

// DefaultTools are the tools hook setups commonly depend on.
var DefaultTools = []Tool{
	{Name: "git", Command: "git --version"},
	{Name: "python", Command: "python3 --version"},
	{Name: "node", Command: "node --version"},
	{Name: "npm", Command: "npm --version"},
	{Name: "npx", Command: "npx --version"},
}

// Self-test prompt and paths.
const (
	SelfTestPrompt    = "What should I work on today?"
	SelfTestAllowPath = "test.js"
	SelfTestBlockPath = ".env"
)

// Doctor runs the diagnostics for one project root.
type Doctor struct {
	Root      string
	Processor *hook.Processor
	Runner    runner.Runner
	Timeouts  config.Timeouts
	Tools     []Tool
	// AuditPath is empty when audit logging is disabled.
	AuditPath string
	LookPath  func(string) (string, error)
}

// New returns a Doctor that shares the processor's root, runner and
// timeouts.
func New(p *hook.Processor, auditPath string) *Doctor {
	return &Doctor{
		Root:      p.Root,
		Processor: p,
		Runner:    p.Runner,
		Timeouts:  p.Config.Timeouts,
		Tools:     DefaultTools,
		AuditPath: auditPath,
		LookPath:  exec.LookPath,
	}
}

// Run executes every diagnostic. It never fails; problems are reported as
// checks.
func (d *Doctor) Run(ctx context.Context) Report {
	var r Report
	d.checkStructure(&r)
	d.checkSettings(&r)
	d.checkTools(ctx, &r)
	d.selfTest(ctx, &r)
	d.checkAudit(&r)
	logger.Debug("diagnostics finished", "checks", len(r.Checks), "failed", r.Count(Fail))
	return r
}

func (d *Doctor) checkStructure(r *Report) {
	dir := filepath.Join(d.Root, constants.ClaudeConfigDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		r.add(SectionStructure, constants.ClaudeConfigDir, Fail, "missing: "+dir)
	} else {
		r.add(SectionStructure, constants.ClaudeConfigDir, Pass, dir)
	}

	path := settings.Path(d.Root)
	if _, err := os.Stat(path); err != nil {
		r.add(SectionStructure, constants.ClaudeSettingsFile, Fail, "missing: "+path)
		return
	}
	r.add(SectionStructure, constants.ClaudeSettingsFile, Pass, path)
}

func (d *Doctor) checkSettings(r *Report) {
	s, err := settings.Load(settings.Path(d.Root))
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		r.add(SectionSettings, constants.ClaudeSettingsFile, Fail, err.Error())
		return
	}
	r.add(SectionSettings, constants.ClaudeSettingsFile, Pass, "valid JSON")

	if !s.HasSection("permissions") {
		r.add(SectionSettings, "permissions", Warn, "section missing")
	}
	if !s.HasSection("hooks") {
		r.add(SectionSettings, "hooks", Fail, "section missing")
		return
	}

	registered := false
	for _, reg := range s.Registrations() {
		name := reg.Event
		if reg.Matcher != "" {
			name += " (" + reg.Matcher + ")"
		}

		exes, err := settings.Executables(reg.Command.Command)
		if err != nil {
			r.add(SectionSettings, name, Fail, fmt.Sprintf("%s: %v", reg.Command.Command, err))
			continue
		}

		var missing, resolved []string
		for _, exe := range exes {
			if filepath.Base(exe) == constants.AppName {
				registered = true
			}
			path, err := d.resolve(exe)
			if err != nil {
				missing = append(missing, exe)
				continue
			}
			resolved = append(resolved, path)
		}

		switch {
		case len(missing) > 0:
			r.add(SectionSettings, name, Fail, "executable not found: "+strings.Join(missing, ", "))
		case settings.ContainsSubstitution(reg.Command.Command):
			r.add(SectionSettings, name, Warn, "command uses shell substitution: "+reg.Command.Command)
		default:
			detail := strings.Join(resolved, ", ")
			if reg.UsesProjectDir() {
				detail += " (uses $" + constants.EnvProjectDir + ")"
			}
			r.add(SectionSettings, name, Pass, detail)
		}
	}

	if !registered {
		r.add(SectionSettings, constants.AppName, Warn, "no hook runs "+constants.AppName)
	}
}

// resolve finds an executable named in a hook command. Names with a path
// separator are taken relative to the project root, with the project
// directory variable expanded; bare names are looked up on PATH.
func (d *Doctor) resolve(exe string) (string, error) {
	expanded := os.Expand(exe, func(key string) string {
		if key == constants.EnvProjectDir {
			return d.Root
		}
		return os.Getenv(key)
	})

	if !strings.ContainsRune(expanded, '/') && !strings.ContainsRune(expanded, filepath.Separator) {
		lookPath := d.LookPath
		if lookPath == nil {
			lookPath = exec.LookPath
		}
		return lookPath(expanded)
	}

	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(d.Root, expanded)
	}
	if _, err := os.Stat(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}

func (d *Doctor) checkTools(ctx context.Context, r *Report) {
	for _, t := range d.Tools {
		argv, err := shlex.Split(t.Command)
		if err != nil || len(argv) == 0 {
			r.add(SectionTools, t.Name, Fail, fmt.Sprintf("invalid probe command %q", t.Command))
			continue
		}

		res := d.Runner.Run(ctx, d.Root, d.Timeouts.ToolProbe, argv[0], argv[1:]...)
		if !res.OK() {
			r.add(SectionTools, t.Name, Warn, res.Status.String())
			continue
		}
		r.add(SectionTools, t.Name, Pass, firstLine(string(res.Stdout)))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

type selfTestCase struct {
	name     string
	run      func(ctx context.Context, p *hook.Processor) hook.Result
	wantExit int
	check    func(hook.Result) error
}

func guardInput(path string) string {
	return fmt.Sprintf(`{"hook_event_name":"PreToolUse","tool_name":"Write","tool_input":{"file_path":%q}}`, path)
}

var selfTests = []selfTestCase{
	{
		name: "guard allows " + SelfTestAllowPath,
		run: func(_ context.Context, p *hook.Processor) hook.Result {
			return p.Guard(strings.NewReader(guardInput(SelfTestAllowPath)))
		},
		wantExit: constants.ExitAllow,
	},
	{
		name: "guard blocks " + SelfTestBlockPath,
		run: func(_ context.Context, p *hook.Processor) hook.Result {
			return p.Guard(strings.NewReader(guardInput(SelfTestBlockPath)))
		},
		wantExit: constants.ExitBlock,
	},
	{
		name: "context answers a prompt",
		run: func(ctx context.Context, p *hook.Processor) hook.Result {
			in := fmt.Sprintf(`{"hook_event_name":"UserPromptSubmit","prompt":%q}`, SelfTestPrompt)
			return p.Context(ctx, strings.NewReader(in))
		},
		wantExit: constants.ExitAllow,
		check: func(res hook.Result) error {
			if !strings.HasPrefix(res.Stdout, "Date: ") {
				return fmt.Errorf("unexpected output %q", res.Stdout)
			}
			return nil
		},
	},
}

func (d *Doctor) selfTest(ctx context.Context, r *Report) {
	if d.Processor == nil {
		r.add(SectionSelfTest, "hooks", Fail, "no processor")
		return
	}

	for _, tc := range selfTests {
		res, err := d.runBounded(ctx, tc.run)
		if err == nil && res.ExitCode != tc.wantExit {
			err = fmt.Errorf("exit %d, want %d", res.ExitCode, tc.wantExit)
		}
		if err == nil && tc.check != nil {
			err = tc.check(res)
		}
		if err != nil {
			r.add(SectionSelfTest, tc.name, Fail, err.Error())
			continue
		}
		r.add(SectionSelfTest, tc.name, Pass, fmt.Sprintf("exit %d", res.ExitCode))
	}
}

// runBounded runs one self-test under the self-test timeout. A test that
// overruns is reported as failed and left to finish in the background.
func (d *Doctor) runBounded(ctx context.Context, fn func(context.Context, *hook.Processor) hook.Result) (hook.Result, error) {
	if d.Timeouts.SelfTest > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeouts.SelfTest)
		defer cancel()
	}

	// Canned inputs are not real decisions.
	p := *d.Processor
	p.SkipAudit = true

	done := make(chan hook.Result, 1)
	go func() {
		done <- fn(ctx, &p)
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return hook.Result{}, fmt.Errorf("self-test did not finish: %w", ctx.Err())
	}
}

func (d *Doctor) checkAudit(r *Report) {
	if d.AuditPath == "" {
		r.add(SectionAudit, "audit log", Warn, "disabled")
		return
	}

	info, err := os.Stat(d.AuditPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.add(SectionAudit, "audit log", Pass, "no entries yet: "+d.AuditPath)
	case err != nil:
		r.add(SectionAudit, "audit log", Warn, err.Error())
	default:
		r.add(SectionAudit, "audit log", Pass, fmt.Sprintf("%s (%s)", d.AuditPath, humanize.Bytes(uint64(info.Size()))))
	}

	archives, err := audit.Archives(d.AuditPath)
	if err != nil {
		r.add(SectionAudit, "archives", Warn, err.Error())
		return
	}
	var total int64
	for _, a := range archives {
		if info, err := os.Stat(a); err == nil {
			total += info.Size()
		}
	}
	r.add(SectionAudit, "archives", Pass, fmt.Sprintf("%d (%s)", len(archives), humanize.Bytes(uint64(total))))
}
