package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/mobilelessons/internal/content"
)

func completionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for lessons.

Besides commands and flags, completion knows the platform names and, once a
platform is typed, the lesson slugs in curriculum order:

  lessons show ios <TAB>        # getting-started, navigation, ...
  lessons search --platform <TAB>

Load completions:

  Bash:        source <(lessons completion bash)
  Zsh:         lessons completion zsh > "${fpath[1]}/_lessons"
  Fish:        lessons completion fish | source
  PowerShell:  lessons completion powershell | Out-String | Invoke-Expression
`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, fish, or powershell)", args[0])
			}
		},
	}
	return cmd
}

// completePlatforms offers platform keys with their display names.
func completePlatforms(toComplete string) []string {
	var out []string
	for _, p := range content.Platforms() {
		if strings.HasPrefix(string(p), strings.ToLower(toComplete)) {
			out = append(out, string(p)+"\t"+p.Title())
		}
	}
	return out
}

// completeLessonArgs completes "<platform> <slug>" positional arguments.
// Slugs come from the current content tree; a tree that does not build
// completes nothing.
func completeLessonArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return completePlatforms(toComplete), cobra.ShellCompDirectiveNoFileComp
	case 1:
		ix, err := loadIndex()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		lessons, err := ix.Lessons(content.Platform(strings.ToLower(args[0])))
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var out []string
		for _, l := range lessons {
			if strings.HasPrefix(l.Slug, toComplete) {
				out = append(out, l.Slug+"\t"+l.Title)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveKeepOrder
	default:
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}

func completePlatformFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completePlatforms(toComplete), cobra.ShellCompDirectiveNoFileComp
}
