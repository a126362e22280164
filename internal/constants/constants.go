// Package constants defines shared constants used across the hookgate codebase.
package constants

import (
	"os"
	"time"
)

// File permissions
const (
	DirMode  os.FileMode = 0755
	FileMode os.FileMode = 0644
)

// Environment variables
const (
	EnvConfigDir  = "HOOKGATE_CONFIG"
	EnvProfile    = "HOOKGATE_PROFILE"
	EnvProjectDir = "CLAUDE_PROJECT_DIR"
)

// Application paths
const (
	AppName            = "hookgate"
	XDGConfigSubdir    = ".config"
	ClaudeConfigDir    = ".claude"
	ClaudeSettingsFile = "settings.json"
	ConfigFileName     = "config.toml"
)

// Exit codes understood by the host.
const (
	ExitAllow       = 0
	ExitInterrupted = 1
	ExitBlock       = 2
)

// MaxInputSize bounds how much of stdin a hook will read.
const MaxInputSize = 10 * 1024 * 1024

// Default timeouts for subordinate tools, used when config omits them.
const (
	DefaultGitTimeout         = 5 * time.Second
	DefaultLogScanTimeout     = 10 * time.Second
	DefaultProjectScanTimeout = 10 * time.Second
	DefaultToolProbeTimeout   = 10 * time.Second
	DefaultSelfTestTimeout    = 30 * time.Second
)

// ProjectDir returns the project root designated by the host, falling back
// to the current working directory.
func ProjectDir() string {
	if dir := os.Getenv(EnvProjectDir); dir != "" {
		return dir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
