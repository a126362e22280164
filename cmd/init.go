package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/settings"
)

var (
	initForce          bool
	initConfigOnly     bool
	initClaudeSettings string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hookgate configuration and register its hooks",
	Long: `Initialize creates a new hookgate configuration file with default settings
and registers the guard and context hooks in the project's
.claude/settings.json.

The config file is written to ~/.config/hookgate/config.toml (or the path
specified by HOOKGATE_CONFIG environment variable). With --profile the file
is named <profile>.toml instead. An existing config file is kept unless
--force is given.

Existing settings, events and hooks are preserved. Use --config-only to skip
settings.json.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().BoolVar(&initConfigOnly, "config-only", false, "Only write the config file")
	initCmd.Flags().StringVar(&initClaudeSettings, "claude-settings", "", "Path to settings.json (default: <project>/.claude/settings.json)")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	configPath := filepath.Join(configDir, config.ConfigFileName())

	// Keep an existing config unless forced
	if _, err := os.Stat(configPath); err == nil && !initForce {
		fmt.Fprintf(out, "Config file already exists at %s (use --force to overwrite)\n", configPath)
	} else {
		if err := os.MkdirAll(configDir, constants.DirMode); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, config.GetDefaultConfig(), constants.FileMode); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Fprintf(out, "Configuration written to: %s\n", configPath)
	}

	if !initConfigOnly {
		path := initClaudeSettings
		if path == "" {
			path = settings.Path(constants.ProjectDir())
		}
		added, err := settings.Register(path, settings.DefaultHooks)
		if err != nil {
			return fmt.Errorf("failed to configure Claude settings: %w", err)
		}
		if len(added) == 0 {
			fmt.Fprintf(out, "Hooks already registered in %s\n", path)
		}
		for _, h := range added {
			fmt.Fprintf(out, "Registered %s hook %q in %s\n", h.Event, h.Command, path)
		}
	}

	fmt.Fprintln(out, "Run 'hookgate validate' to verify your configuration.")
	return nil
}
