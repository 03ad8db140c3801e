package cli

import (
	"fmt"
	"path/filepath"

	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

// WorkspaceInit is the WorkspaceInitializer used by the init command.
// Set during application wiring.
var WorkspaceInit core.WorkspaceInitializer

var (
	initDriver      string
	initStorePath   string
	initGranularity string
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a v3t workspace",
	Long: `Initialize a directory as a v3t workspace: a .taskconfig with the
default engine settings, an empty task store and a .gitignore for the
event log and lock files.

Safe to run on existing workspaces: files that already exist are skipped
and not overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if WorkspaceInit == nil {
			return fmt.Errorf("workspace initializer not initialized")
		}

		basePath := "."
		if len(args) > 0 {
			basePath = args[0]
		}
		absPath, err := filepath.Abs(basePath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		result, err := WorkspaceInit.Init(core.InitConfig{
			BasePath:    absPath,
			StoreDriver: initDriver,
			StorePath:   initStorePath,
			Granularity: models.Granularity(initGranularity),
		})
		if err != nil {
			return fmt.Errorf("initializing workspace: %w", err)
		}

		printPaths("Created:", absPath, result.Created)
		printPaths("Skipped (already exist):", absPath, result.Skipped)
		fmt.Printf("\nWorkspace initialized at %s\n", absPath)
		return nil
	},
}

func printPaths(label, base string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Println(label)
	for _, p := range paths {
		rel, err := filepath.Rel(base, p)
		if err != nil {
			rel = p
		}
		fmt.Printf("  %s\n", rel)
	}
}

func init() {
	initCmd.Flags().StringVar(&initDriver, "driver", "", "Task store driver: yaml (default) or sqlite")
	initCmd.Flags().StringVar(&initStorePath, "store", "", "Task store path relative to the workspace (default tasks.yaml, or tasks.db for sqlite)")
	_ = initCmd.RegisterFlagCompletionFunc("driver", completeDrivers)
	initCmd.Flags().StringVar(&initGranularity, "granularity", "", "Default timeline granularity: day, week, month")
	_ = initCmd.RegisterFlagCompletionFunc("granularity", completeGranularities)
	rootCmd.AddCommand(initCmd)
}
