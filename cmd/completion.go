package cmd

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/constants"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for hookgate.

Completions cover subcommands, flags, the profiles found in the config
directory (--profile) and file paths for 'hookgate check'.

  bash:        source <(hookgate completion bash)
  zsh:         hookgate completion zsh > "${fpath[1]}/_hookgate"
  fish:        hookgate completion fish | source
  powershell:  hookgate completion powershell | Out-String | Invoke-Expression

The guard and context hooks read stdin and are run by the host, not from an
interactive shell.`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeProfiles offers the profile names in the config directory. The
// default config file is not a profile.
func completeProfiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var names []string
	for _, m := range matches {
		base := filepath.Base(m)
		if base == constants.ConfigFileName {
			continue
		}
		name := strings.TrimSuffix(base, ".toml")
		if strings.HasPrefix(name, toComplete) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completeCheckPaths lets the shell complete file names for every path
// argument.
func completeCheckPaths(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveDefault
}
