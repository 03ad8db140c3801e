package cli

import (
	"fmt"

	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

var priorityCmd = &cobra.Command{
	Use:   "priority <task-id> [task-id...]",
	Short: "Reorder task priorities",
	Long: `Reorder task priorities by specifying task IDs in priority order.

The first task becomes urgent, the second high, the third medium and
every later task low. Use 'v3t task priority' to set a single level.

Examples:
  v3t priority 3f2a 9c1d 77e0
  # 3f2a -> urgent, 9c1d -> high, 77e0 -> medium`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		fmt.Println("Priorities updated:")
		for i, taskID := range args {
			p := rankedPriority(i)
			if err := TaskGraph.SetPriority(taskID, p); err != nil {
				return fmt.Errorf("reordering priorities: %w", err)
			}
			fmt.Printf("  %s -> %s\n", taskID, p)
		}
		return nil
	},
}

var taskPriorityCmd = &cobra.Command{
	Use:   "priority <task-id> <priority>",
	Short: "Set a task's priority",
	Long:  "Set a task's priority. Valid priorities: urgent, high, medium, low.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		if err := TaskGraph.SetPriority(args[0], models.Priority(args[1])); err != nil {
			return err
		}
		fmt.Printf("Task %s priority set to %s\n", args[0], args[1])
		return nil
	},
}

// rankedPriority maps a position in a ranked list onto a priority level.
func rankedPriority(rank int) models.Priority {
	if rank < len(models.ValidPriorities) {
		return models.ValidPriorities[rank]
	}
	return models.PriorityLow
}

func init() {
	priorityCmd.ValidArgsFunction = completeTaskIDs(models.StatusDone, models.StatusCancelled)
	taskPriorityCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 1 {
			return completePriorities(cmd, args, toComplete)
		}
		return completeFirstArg(completeTaskIDs())(cmd, args, toComplete)
	}
	taskCmd.AddCommand(taskPriorityCmd)
	rootCmd.AddCommand(priorityCmd)
}
