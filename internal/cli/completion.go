package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var completionInstall bool

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Set up shell completions for v3t",
	Long: `Print or install shell tab-completions for v3t commands, flags and task IDs.

Supported shells: bash, zsh, fish, powershell

  eval "$(v3t completion bash)"
  v3t completion zsh --install
  v3t completion fish | source`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MaximumNArgs(1),
	RunE:      runCompletion,
}

// shellCompletion describes how to generate and where to install the
// completion script for one shell. An empty dir means no --install support.
type shellCompletion struct {
	generate func(w io.Writer) error
	dir      func(home string) string
	file     string
	hint     string
}

var shellCompletions = map[string]shellCompletion{
	"bash": {
		generate: func(w io.Writer) error { return rootCmd.GenBashCompletionV2(w, true) },
		dir: func(home string) string {
			return filepath.Join(home, ".local", "share", "bash-completion", "completions")
		},
		file: "v3t",
		hint: "Restart your shell to load completions.",
	},
	"zsh": {
		generate: func(w io.Writer) error { return rootCmd.GenZshCompletion(w) },
		dir: func(home string) string {
			return filepath.Join(home, ".local", "share", "zsh", "site-functions")
		},
		file: "_v3t",
		hint: "Ensure the directory is in your fpath, then run: autoload -Uz compinit && compinit",
	},
	"fish": {
		generate: func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
		dir: func(home string) string {
			return filepath.Join(home, ".config", "fish", "completions")
		},
		file: "v3t.fish",
		hint: "Completions will be available in new fish sessions.",
	},
	"powershell": {
		generate: func(w io.Writer) error { return rootCmd.GenPowerShellCompletionWithDesc(w) },
	},
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false,
		"Install completions into your shell's completion directory")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	sc, ok := shellCompletions[args[0]]
	if !ok {
		return fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, powershell)", args[0])
	}
	if !completionInstall {
		return sc.generate(cmd.OutOrStdout())
	}
	if sc.dir == nil {
		return fmt.Errorf("automatic install is not supported for %s; add the output of 'v3t completion %s' to your profile", args[0], args[0])
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("detecting home directory: %w", err)
	}
	target, err := installCompletion(sc, home)
	if err != nil {
		return err
	}
	fmt.Printf("%s completions installed to %s\n%s\n", args[0], target, sc.hint)
	return nil
}

// installCompletion writes the completion script below home and returns
// its path.
func installCompletion(sc shellCompletion, home string) (string, error) {
	dir := sc.dir(home)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating completion directory: %w", err)
	}
	target := filepath.Join(dir, sc.file)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating completion file %s: %w", target, err)
	}
	writeErr := sc.generate(f)
	closeErr := f.Close()
	if writeErr != nil {
		return "", writeErr
	}
	if closeErr != nil {
		return "", fmt.Errorf("closing completion file %s: %w", target, closeErr)
	}
	return target, nil
}
