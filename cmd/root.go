// Package cmd implements the CLI commands for hookgate.
package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookgate/internal/audit"
	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/hook"
	"github.com/dgerlanc/hookgate/internal/logger"
	"github.com/dgerlanc/hookgate/internal/render"
)

var (
	// Global flags
	verbose    bool
	jsonLog    bool
	profile    string
	noAuditLog bool
)

// exit terminates the process with a hook exit code. Tests replace it.
var exit = os.Exit

// newProcessor builds the hook processor for guard, context, check and
// doctor. Tests replace it.
var newProcessor = hook.NewProcessor

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hookgate",
	Short: "Security gate and context injector for Claude Code hooks",
	Long: `hookgate answers Claude Code hook events.

  hookgate guard     PreToolUse hook: blocks writes to sensitive paths (exit 2)
  hookgate context   UserPromptSubmit hook: prints a one-line project context

Each invocation reads one JSON event on stdin and answers through its exit
code, stdout and stderr.

Usage in .claude/settings.json:
  "hooks": {
    "PreToolUse": [{
      "matcher": "Write|Edit|MultiEdit|NotebookEdit",
      "hooks": [{"type": "command", "command": "hookgate guard"}]
    }],
    "UserPromptSubmit": [{
      "hooks": [{"type": "command", "command": "hookgate context"}]
    }]
  }`,
	// Silence usage on errors
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	stop := handleSignals(os.Stderr)
	defer stop()
	return rootCmd.Execute()
}

func init() {
	// Initialize before running any command
	cobra.OnInitialize(initApp)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Config profile to use (or set HOOKGATE_PROFILE env var)")
	rootCmd.PersistentFlags().BoolVar(&noAuditLog, "no-audit-log", false, "Disable audit logging")

	_ = rootCmd.RegisterFlagCompletionFunc("profile", completeProfiles)
}

// initApp initializes the application (logger, config, audit)
func initApp() {
	// Check for profile from env var if not set via flag
	if profile == "" {
		profile = os.Getenv(constants.EnvProfile)
	}

	// Initialize logger
	logger.Init(logger.Options{Verbose: verbose, JSON: jsonLog, Attrs: []any{"pid", os.Getpid()}})

	// Set profile before initializing config
	if profile != "" {
		config.SetProfile(profile)
	}

	// Initialize config
	if err := config.Init(); err != nil {
		logger.Warn("using default configuration", "error", err)
	}

	// Initialize audit logging (unless disabled)
	cfg := config.Get()
	rot := audit.Rotation{MaxBytes: cfg.Audit.MaxBytes, Keep: cfg.Audit.Keep}
	if err := audit.Init("", noAuditLog, rot); err != nil {
		logger.Debug("audit logging unavailable", "error", err)
	}
}

// handleSignals prints a short diagnostic and exits with the interrupted
// code on SIGINT or SIGTERM. Nothing is cleaned up. The returned func stops
// listening.
func handleSignals(w io.Writer) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigs:
			fmt.Fprintln(w, render.Interrupted)
			exit(constants.ExitInterrupted)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// finish writes a hook result to the command's streams and exits with its
// code when it is non-zero.
func finish(cmd *cobra.Command, res hook.Result) {
	if res.Stdout != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Stderr)
	}
	if err := audit.Close(); err != nil {
		logger.Debug("failed to close audit log", "error", err)
	}
	if res.ExitCode != constants.ExitAllow {
		exit(res.ExitCode)
	}
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// GetProfile returns the current profile name
func GetProfile() string {
	return profile
}
