package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookgate/internal/audit"
	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/hook"
)

// resetGlobalState resets all global flags to their default values
func resetGlobalState() {
	verbose = false
	jsonLog = false
	profile = ""
	noAuditLog = false
	checkJSON = false
	initForce = false
	initConfigOnly = false
	initClaudeSettings = ""
	config.Reset()
	audit.Reset()
}

// captureExit replaces the exit func and returns a pointer to the last code
// passed to it, or -1 when exit was not called.
func captureExit(t *testing.T) *int {
	t.Helper()
	code := -1
	orig := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = orig })
	return &code
}

func TestIsVerbose(t *testing.T) {
	tests := []struct {
		name     string
		value    bool
		expected bool
	}{
		{"verbose false", false, false},
		{"verbose true", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobalState()
			verbose = tt.value
			if got := IsVerbose(); got != tt.expected {
				t.Errorf("IsVerbose() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetProfile(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"empty profile", "", ""},
		{"named profile", "strict", "strict"},
		{"profile with dash", "my-profile", "my-profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobalState()
			profile = tt.value
			if got := GetProfile(); got != tt.expected {
				t.Errorf("GetProfile() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// setupConfigDir points HOOKGATE_CONFIG and HOME at temp dirs and writes
// files into the config dir.
func setupConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	resetGlobalState()
	t.Cleanup(resetGlobalState)

	dir := t.TempDir()
	t.Setenv("HOOKGATE_CONFIG", dir)
	t.Setenv("HOME", t.TempDir())
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestInitAppWithEnvProfile(t *testing.T) {
	setupConfigDir(t, map[string]string{
		"test-profile.toml": "[audit]\nkeep = 2\n",
	})
	t.Setenv("HOOKGATE_PROFILE", "test-profile")
	noAuditLog = true

	initApp()

	if config.GetProfile() != "test-profile" {
		t.Errorf("expected profile 'test-profile' from env var, got %q", config.GetProfile())
	}
	if got := config.Get().Audit.Keep; got != 2 {
		t.Errorf("Audit.Keep = %d, want 2 from profile file", got)
	}
}

func TestInitAppProfileFlagOverridesEnv(t *testing.T) {
	setupConfigDir(t, map[string]string{
		"flag-profile.toml": "[audit]\nkeep = 7\n",
	})
	t.Setenv("HOOKGATE_PROFILE", "env-profile")
	noAuditLog = true

	// Simulates --profile
	profile = "flag-profile"

	initApp()

	if config.GetProfile() != "flag-profile" {
		t.Errorf("expected profile 'flag-profile' from flag, got %q", config.GetProfile())
	}
}

func TestInitAppOpensAuditLog(t *testing.T) {
	setupConfigDir(t, nil)

	initApp()

	if !audit.IsEnabled() {
		t.Fatal("audit logging should be enabled")
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".local", "share", "hookgate", "audit.log")
	if audit.Path() != want {
		t.Errorf("audit.Path() = %q, want %q", audit.Path(), want)
	}
}

func TestInitAppNoAuditLog(t *testing.T) {
	setupConfigDir(t, nil)
	noAuditLog = true

	initApp()

	if audit.IsEnabled() {
		t.Error("audit logging should be disabled with --no-audit-log")
	}
}

func TestInitAppFallsBackOnBadConfig(t *testing.T) {
	setupConfigDir(t, map[string]string{"config.toml": "[security\n"})
	noAuditLog = true

	initApp()

	if config.InitError() == nil {
		t.Error("expected config.InitError() for malformed config")
	}
	if config.Get() == nil {
		t.Error("config.Get() should fall back to defaults")
	}
}

func TestRootCmdFlags(t *testing.T) {
	resetGlobalState()

	// Create a fresh root command for testing
	cmd := &cobra.Command{Use: "test"}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Write logs as JSON")
	cmd.PersistentFlags().StringVar(&profile, "profile", "", "Config profile to use")
	cmd.PersistentFlags().BoolVar(&noAuditLog, "no-audit-log", false, "Disable audit logging")

	tests := []struct {
		name          string
		args          []string
		expectVerbose bool
		expectJSON    bool
		expectProfile string
		expectNoAudit bool
	}{
		{name: "no flags", args: []string{}},
		{name: "verbose short flag", args: []string{"-v"}, expectVerbose: true},
		{name: "verbose long flag", args: []string{"--verbose"}, expectVerbose: true},
		{name: "json-log flag", args: []string{"--json-log"}, expectJSON: true},
		{name: "profile flag", args: []string{"--profile", "strict"}, expectProfile: "strict"},
		{name: "no-audit-log flag", args: []string{"--no-audit-log"}, expectNoAudit: true},
		{
			name:          "multiple flags",
			args:          []string{"-v", "--json-log", "--profile", "test"},
			expectVerbose: true,
			expectJSON:    true,
			expectProfile: "test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags
			verbose = false
			jsonLog = false
			profile = ""
			noAuditLog = false

			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.Run = func(cmd *cobra.Command, args []string) {} // noop

			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			if verbose != tt.expectVerbose {
				t.Errorf("verbose = %v, want %v", verbose, tt.expectVerbose)
			}
			if jsonLog != tt.expectJSON {
				t.Errorf("jsonLog = %v, want %v", jsonLog, tt.expectJSON)
			}
			if profile != tt.expectProfile {
				t.Errorf("profile = %q, want %q", profile, tt.expectProfile)
			}
			if noAuditLog != tt.expectNoAudit {
				t.Errorf("noAuditLog = %v, want %v", noAuditLog, tt.expectNoAudit)
			}
		})
	}
}

func TestRootCmdHasExpectedSubcommands(t *testing.T) {
	expectedCommands := []string{"guard", "context", "check", "init", "validate", "doctor", "completion"}

	for _, cmdName := range expectedCommands {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == cmdName {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q not found", cmdName)
		}
	}
}

func TestRootCmdUsageContainsDescription(t *testing.T) {
	if rootCmd.Short == "" {
		t.Error("rootCmd.Short should not be empty")
	}
	if !strings.Contains(rootCmd.Long, "hookgate guard") || !strings.Contains(rootCmd.Long, "hookgate context") {
		t.Error("rootCmd.Long should describe both hooks")
	}
	if rootCmd.Use != "hookgate" {
		t.Errorf("rootCmd.Use = %q, want 'hookgate'", rootCmd.Use)
	}
}

func TestFinish(t *testing.T) {
	tests := []struct {
		name       string
		res        hook.Result
		wantStdout string
		wantStderr string
		wantExit   int
	}{
		{name: "silent allow", res: hook.Result{}, wantExit: -1},
		{name: "context line", res: hook.Result{Stdout: "Date: today"}, wantStdout: "Date: today\n", wantExit: -1},
		{name: "block", res: hook.Result{Stderr: "Security Policy Violation", ExitCode: 2}, wantStderr: "Security Policy Violation\n", wantExit: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := captureExit(t)
			cmd := &cobra.Command{}
			var stdout, stderr bytes.Buffer
			cmd.SetOut(&stdout)
			cmd.SetErr(&stderr)

			finish(cmd, tt.res)

			if stdout.String() != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantStdout)
			}
			if stderr.String() != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
			if *code != tt.wantExit {
				t.Errorf("exit code = %d, want %d", *code, tt.wantExit)
			}
		})
	}
}
