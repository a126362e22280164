// Package testutil provides shared test utilities for hookgate tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/constants"
)

// SetupTestConfig creates a temporary config directory with test configuration.
// Returns a cleanup function that should be deferred.
func SetupTestConfig(t *testing.T, configContent string) func() {
	t.Helper()

	tmpDir := t.TempDir()
	t.Setenv(constants.EnvConfigDir, tmpDir)

	if configContent != "" {
		configPath := filepath.Join(tmpDir, constants.ConfigFileName)
		if err := os.WriteFile(configPath, []byte(configContent), constants.FileMode); err != nil {
			t.Fatal(err)
		}
	}

	config.Reset()
	config.Init()

	return func() {
		config.Reset()
	}
}

// WriteTree creates files under root from a map of slash-separated relative
// paths to contents. Parent directories are created as needed.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), constants.DirMode); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), constants.FileMode); err != nil {
			t.Fatal(err)
		}
	}
}

// ProjectDir creates a temporary project populated with files and points
// CLAUDE_PROJECT_DIR at it for the duration of the test.
func ProjectDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	WriteTree(t, dir, files)
	t.Setenv(constants.EnvProjectDir, dir)
	return dir
}

// MinimalTestConfig is a minimal config for testing.
const MinimalTestConfig = `
[security]
sensitive_extensions = [".pem"]
sensitive_filenames = ["id_rsa"]
sensitive_patterns = ['.*password.*']
blocked_directories = [".ssh/"]
allowed_exceptions = ["readme.md"]

[context]
relevance_keywords = ["project"]
`
