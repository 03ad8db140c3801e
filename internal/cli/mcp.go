package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	v3tmcp "github.com/palazero/v3tasks/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the v3t MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the v3t MCP server on stdio",
	Long: `Start the v3t MCP server on stdio transport.

The server exposes the task graph as MCP tools that AI coding assistants
can call: get_task, list_tasks, get_tree, create_task, update_task_status,
update_task_priority, move_task, add_dependency, remove_dependency,
dependency_status, validate_dependencies, critical_path, auto_schedule,
get_metrics and get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		srv := v3tmcp.NewServer(TaskGraph, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
