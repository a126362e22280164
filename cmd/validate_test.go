package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgerlanc/hookgate/internal/config"
)

func TestRunValidateWithValidConfig(t *testing.T) {
	dir := setupConfigDir(t, map[string]string{
		"config.toml": `
[security]
sensitive_extensions = [".key", ".PEM"]
sensitive_patterns = ['.*_secret$']

[timeouts]
git = "2s"
`,
	})
	config.Init()

	cmd, stdout, _ := newTestCommand("")
	if err := runValidate(cmd, []string{}); err != nil {
		t.Fatalf("runValidate() error = %v", err)
	}

	output := stdout.String()
	expectedStrings := []string{
		"Configuration valid!",
		"Loaded from: " + filepath.Join(dir, "config.toml"),
		"Sensitive extensions: 2\n  .key, .pem\n",
		"Sensitive patterns: 1\n  - .*_secret$: .*_secret$\n",
		"Blocked directories:",
		"Intents: 4\n  - debug: debug, fix,",
		"Error patterns: 4\n  - build_error: ",
		"git: 2s, log scan: 10s",
	}
	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("output should contain %q, got:\n%s", expected, output)
		}
	}
}

func TestRunValidateWithEmptyConfig(t *testing.T) {
	setupConfigDir(t, map[string]string{"config.toml": ""})
	config.Init()

	cmd, stdout, _ := newTestCommand("")
	if err := runValidate(cmd, []string{}); err != nil {
		t.Fatalf("runValidate() error = %v", err)
	}

	// An empty file keeps every default.
	defaults, err := config.LoadConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	want := "Sensitive filenames: " + itoa(len(defaults.Security.SensitiveFilenames))
	if !strings.Contains(stdout.String(), want) {
		t.Errorf("output should contain %q, got:\n%s", want, stdout.String())
	}
}

func TestRunValidateWithInvalidConfig(t *testing.T) {
	setupConfigDir(t, map[string]string{
		"config.toml": "[security]\nsensitive_patterns = ['([']\n",
	})
	config.Init()

	cmd, stdout, _ := newTestCommand("")
	err := runValidate(cmd, []string{})
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}
	if !strings.Contains(err.Error(), "invalid sensitive pattern") {
		t.Errorf("error = %v", err)
	}
	if strings.Contains(stdout.String(), "Configuration valid!") {
		t.Error("invalid config must not be reported as valid")
	}
}

func TestValidateCmdUsage(t *testing.T) {
	if validateCmd.Use != "validate" {
		t.Errorf("validateCmd.Use = %q, want 'validate'", validateCmd.Use)
	}
	if validateCmd.Short == "" {
		t.Error("validateCmd.Short should not be empty")
	}
}
