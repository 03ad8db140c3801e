package cli

import (
	"fmt"
	"strings"

	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

var statusFilter string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display tasks grouped by status",
	Long: `Display all tasks organized by their lifecycle status.

Optionally filter to a single status using --filter (e.g. --filter in_progress).
Each group lists the task ID, priority, whether its dependencies are met
and the title. Tasks keep their outline order within a group.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		order := models.ValidStatuses
		if statusFilter != "" {
			status := models.TaskStatus(statusFilter)
			if !status.IsValid() {
				return fmt.Errorf("invalid status %q (valid: todo, in_progress, done, cancelled)", statusFilter)
			}
			order = []models.TaskStatus{status}
		}

		tasks, err := TaskGraph.Tasks()
		if err != nil {
			return fmt.Errorf("fetching tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		ready, err := TaskGraph.ReadyTasks()
		if err != nil {
			return fmt.Errorf("fetching ready tasks: %w", err)
		}
		readyIDs := make(map[string]bool, len(ready))
		for _, t := range ready {
			readyIDs[t.ID] = true
		}

		grouped := make(map[models.TaskStatus][]models.Task)
		for _, task := range tasks {
			grouped[task.Status] = append(grouped[task.Status], task)
		}

		printed := false
		for _, status := range order {
			group := grouped[status]
			if len(group) == 0 && statusFilter == "" {
				continue
			}
			if printed {
				fmt.Println()
			}
			printStatusGroup(status, group, readyIDs)
			printed = true
		}
		return nil
	},
}

// printStatusGroup prints a table of tasks under a status heading. Open
// tasks are marked "ready" or "blocked" by their dependencies.
func printStatusGroup(status models.TaskStatus, tasks []models.Task, ready map[string]bool) {
	fmt.Printf("== %s (%d) ==\n", strings.ToUpper(string(status)), len(tasks))
	if len(tasks) == 0 {
		return
	}
	fmt.Printf("  %-10s %-8s %-8s %s\n", "ID", "PRIO", "DEPS", "TITLE")
	fmt.Printf("  %-10s %-8s %-8s %s\n", "--", "----", "----", "-----")
	for _, task := range tasks {
		deps := "-"
		switch {
		case ready[task.ID]:
			deps = "ready"
		case task.Status == models.StatusTodo || task.Status == models.StatusInProgress:
			deps = "blocked"
		}
		fmt.Printf("  %-10s %-8s %-8s %s\n", shortID(task.ID), task.Priority, deps, task.Title)
	}
}

func init() {
	statusCmd.Flags().StringVar(&statusFilter, "filter", "", "Filter by status (todo, in_progress, done, cancelled)")
	_ = statusCmd.RegisterFlagCompletionFunc("filter", completeStatuses)
	rootCmd.AddCommand(statusCmd)
}
