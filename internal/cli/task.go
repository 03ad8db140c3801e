package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (add, child, rm, status, dates, move, indent, outdent)",
	Long: `Manage the task outline.

Tasks form a forest: each task may have a parent, and siblings are kept in
a stable order. Structural commands (indent, outdent, move) keep levels and
ordering consistent across the whole subtree.`,
}

var (
	taskAddParent   string
	taskAddPriority string
	taskAddStart    string
	taskAddEnd      string

	taskDatesStart string
	taskDatesEnd   string
	taskDatesClear bool

	taskMovePosition string
	taskListJSON     bool
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task with the given title.

Without --parent the task becomes a root appended after the existing roots.
With --parent it becomes the last child of that task.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		start, err := parseDateFlag("start", taskAddStart)
		if err != nil {
			return err
		}
		end, err := parseDateFlag("end", taskAddEnd)
		if err != nil {
			return err
		}

		task, err := TaskGraph.CreateTask(core.NewTaskInput{
			Title:     strings.Join(args, " "),
			ParentID:  taskAddParent,
			Priority:  models.Priority(taskAddPriority),
			StartDate: start,
			EndDate:   end,
		})
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}

		fmt.Printf("Created task %s\n", task.ID)
		fmt.Printf("  Title:    %s\n", task.Title)
		fmt.Printf("  Level:    %d\n", task.Level)
		fmt.Printf("  Priority: %s\n", task.Priority)
		return nil
	},
}

var taskChildCmd = &cobra.Command{
	Use:   "child <parent-id> <title>",
	Short: "Create a child task under a parent",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		task, err := TaskGraph.CreateChild(args[0], strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("creating child of %s: %w", args[0], err)
		}

		fmt.Printf("Created task %s under %s (level %d)\n", task.ID, args[0], task.Level)
		return nil
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <task-id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Long: `Delete a task. Its children move up to its parent and every
dependency edge that references it is removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		if err := TaskGraph.DeleteTask(args[0]); err != nil {
			return fmt.Errorf("deleting task %s: %w", args[0], err)
		}
		fmt.Printf("Deleted task %s\n", args[0])
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id> <status>",
	Short: "Set a task's status (todo, in_progress, done, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		status := models.TaskStatus(args[1])
		if !status.IsValid() {
			return fmt.Errorf("invalid status %q: must be one of todo, in_progress, done, cancelled", args[1])
		}
		if err := TaskGraph.SetStatus(args[0], status); err != nil {
			return fmt.Errorf("updating status of %s: %w", args[0], err)
		}

		fmt.Printf("Task %s status set to %s\n", args[0], status)
		if status == models.StatusInProgress {
			ds, err := TaskGraph.DependencyStatus(args[0])
			if err == nil && !ds.CanStart {
				fmt.Printf("Warning: %d unfinished dependency(ies) still block this task\n", len(ds.BlockedBy))
			}
		}
		return nil
	},
}

var taskDatesCmd = &cobra.Command{
	Use:   "dates <task-id>",
	Short: "Set or clear a task's planned start and end dates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		if taskDatesClear {
			if err := TaskGraph.ClearDates(args[0]); err != nil {
				return fmt.Errorf("clearing dates of %s: %w", args[0], err)
			}
			fmt.Printf("Task %s dates cleared\n", args[0])
			return nil
		}

		start, err := parseDateFlag("start", taskDatesStart)
		if err != nil {
			return err
		}
		end, err := parseDateFlag("end", taskDatesEnd)
		if err != nil {
			return err
		}
		if start == nil && end == nil {
			return fmt.Errorf("nothing to change: pass --start, --end or --clear")
		}

		if err := TaskGraph.SetDates(args[0], start, end); err != nil {
			return fmt.Errorf("setting dates of %s: %w", args[0], err)
		}
		task, err := TaskGraph.Task(args[0])
		if err != nil {
			return fmt.Errorf("loading task %s: %w", args[0], err)
		}
		fmt.Printf("Task %s dates: %s -> %s\n", args[0], formatDate(task.StartDate), formatDate(task.EndDate))
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task with its dependency status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		task, err := TaskGraph.Task(args[0])
		if err != nil {
			return fmt.Errorf("loading task %s: %w", args[0], err)
		}
		ds, err := TaskGraph.DependencyStatus(args[0])
		if err != nil {
			return fmt.Errorf("loading dependency status of %s: %w", args[0], err)
		}

		fmt.Printf("%s  %s\n", task.ID, task.Title)
		fmt.Printf("  Status:     %s\n", styleForStatus(task.Status).Render(string(task.Status)))
		fmt.Printf("  Priority:   %s\n", task.Priority)
		fmt.Printf("  Level:      %d\n", task.Level)
		if task.ParentID != "" {
			fmt.Printf("  Parent:     %s\n", task.ParentID)
		}
		fmt.Printf("  Dates:      %s -> %s\n", formatDate(task.StartDate), formatDate(task.EndDate))
		fmt.Printf("  Can start:  %t\n", ds.CanStart)
		fmt.Printf("  Completion: %.0f%% of %d dependency(ies)\n", ds.CompletionRate*100, len(ds.DependsOn))
		printTaskRefs("Depends on", ds.DependsOn)
		printTaskRefs("Blocking", ds.Blocking)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks in outline order",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}

		tasks, err := TaskGraph.Tasks()
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if taskListJSON {
			return printJSON(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		fmt.Printf("%-10s %-12s %-8s %-10s %-10s %s\n", "ID", "STATUS", "PRIO", "START", "END", "TITLE")
		for _, t := range tasks {
			fmt.Printf("%-10s %-12s %-8s %-10s %-10s %s%s\n",
				shortID(t.ID), t.Status, t.Priority,
				formatDate(t.StartDate), formatDate(t.EndDate),
				strings.Repeat("  ", t.Level), t.Title,
			)
		}
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the task hierarchy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		forest, err := TaskGraph.Tree()
		if err != nil {
			return fmt.Errorf("building tree: %w", err)
		}
		fmt.Print(renderTree(forest))
		return nil
	},
}

var taskIndentCmd = &cobra.Command{
	Use:   "indent <task-id>",
	Short: "Make a task the last child of its previous sibling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		if err := TaskGraph.Indent(args[0]); err != nil {
			return fmt.Errorf("indenting %s: %w", args[0], err)
		}
		fmt.Printf("Indented task %s\n", args[0])
		return nil
	},
}

var taskOutdentCmd = &cobra.Command{
	Use:   "outdent <task-id>",
	Short: "Move a task up one level, right after its former parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		if err := TaskGraph.Outdent(args[0]); err != nil {
			return fmt.Errorf("outdenting %s: %w", args[0], err)
		}
		fmt.Printf("Outdented task %s\n", args[0])
		return nil
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <task-id> <target-id>",
	Short: "Move a task before, after or under another task",
	Long: `Move a task relative to a target task.

--position before|after places it as a sibling of the target; --position
child makes it the last child of the target. A task cannot be moved into
its own subtree.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		pos, err := core.ParsePosition(taskMovePosition)
		if err != nil {
			return err
		}
		if err := TaskGraph.Move(args[0], args[1], pos); err != nil {
			return fmt.Errorf("moving %s: %w", args[0], err)
		}
		fmt.Printf("Moved task %s %s %s\n", args[0], pos, args[1])
		return nil
	},
}

var taskNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Rewrite sibling order keys to evenly spaced values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		n, err := TaskGraph.Normalize()
		if err != nil {
			return fmt.Errorf("normalizing order: %w", err)
		}
		fmt.Printf("Normalized %d task(s)\n", n)
		return nil
	},
}

// parseDateFlag parses a YYYY-MM-DD flag value. Empty input yields nil.
func parseDateFlag(name, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, value)
	}
	return &t, nil
}

func printTaskRefs(label string, tasks []models.Task) {
	if len(tasks) == 0 {
		return
	}
	fmt.Printf("  %s:\n", label)
	for _, t := range tasks {
		fmt.Printf("    %s %s  %s\n", styleForStatus(t.Status).Render(statusGlyph(t.Status)), t.Title, idStyle.Render(shortID(t.ID)))
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddParent, "parent", "", "Parent task ID")
	taskAddCmd.Flags().StringVar(&taskAddPriority, "priority", "", "Task priority (low, medium, high, urgent)")
	taskAddCmd.Flags().StringVar(&taskAddStart, "start", "", "Planned start date (YYYY-MM-DD)")
	taskAddCmd.Flags().StringVar(&taskAddEnd, "end", "", "Planned end date (YYYY-MM-DD)")
	_ = taskAddCmd.RegisterFlagCompletionFunc("parent", completeTaskIDs())
	_ = taskAddCmd.RegisterFlagCompletionFunc("priority", completePriorities)

	taskDatesCmd.Flags().StringVar(&taskDatesStart, "start", "", "Planned start date (YYYY-MM-DD)")
	taskDatesCmd.Flags().StringVar(&taskDatesEnd, "end", "", "Planned end date (YYYY-MM-DD)")
	taskDatesCmd.Flags().BoolVar(&taskDatesClear, "clear", false, "Remove both dates")

	taskMoveCmd.Flags().StringVar(&taskMovePosition, "position", string(core.PositionAfter), "Placement relative to the target: before, after, child")
	_ = taskMoveCmd.RegisterFlagCompletionFunc("position", completePositions)

	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output tasks as JSON")

	taskStatusCmd.ValidArgsFunction = completeStatusArgs
	for _, c := range []*cobra.Command{taskRmCmd, taskDatesCmd, taskShowCmd, taskIndentCmd, taskOutdentCmd} {
		c.ValidArgsFunction = completeTaskIDs()
	}
	taskChildCmd.ValidArgsFunction = completeFirstArg(completeTaskIDs())
	taskMoveCmd.ValidArgsFunction = completeTaskPair()

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskChildCmd)
	taskCmd.AddCommand(taskRmCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskDatesCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskIndentCmd)
	taskCmd.AddCommand(taskOutdentCmd)
	taskCmd.AddCommand(taskMoveCmd)
	taskCmd.AddCommand(taskNormalizeCmd)

	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(treeCmd)
}
