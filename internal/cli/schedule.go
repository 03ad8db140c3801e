package cli

import (
	"fmt"
	"sort"

	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/pkg/models"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Critical-path scheduling (cpm, auto, slack, timeline)",
	Long: `Compute and apply a critical-path schedule.

Durations come from each task's planned dates; undated tasks get the
configured default duration. Dependencies are finish-to-start.`,
}

var (
	scheduleJSON        bool
	scheduleGranularity string
)

var scheduleCPMCmd = &cobra.Command{
	Use:   "cpm",
	Short: "Show early/late dates and the critical path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		res, err := TaskGraph.Schedule()
		if err != nil {
			return fmt.Errorf("computing schedule: %w", err)
		}
		if scheduleJSON {
			return printJSON(res)
		}
		if len(res.Tasks) == 0 {
			fmt.Println("No tasks to schedule.")
			return nil
		}

		fmt.Printf("%-10s %-10s %-10s %-10s %-10s %6s  %s\n", "ID", "ES", "EF", "LS", "LF", "SLACK", "TITLE")
		for _, t := range res.Tasks {
			title := t.Title
			if t.Critical {
				title = criticalBarStyle.Render(title + " *")
			}
			fmt.Printf("%-10s %-10s %-10s %-10s %-10s %6.1f  %s\n",
				shortID(t.ID),
				t.EarlyStart.Format(dateLayout), t.EarlyFinish.Format(dateLayout),
				t.LateStart.Format(dateLayout), t.LateFinish.Format(dateLayout),
				res.Slack[t.ID], title,
			)
		}
		printCriticalPath(res)
		return nil
	},
}

var scheduleAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Shift tasks to their earliest start and save the new dates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		n, err := TaskGraph.AutoSchedule()
		if err != nil {
			return fmt.Errorf("auto-scheduling: %w", err)
		}
		if n == 0 {
			fmt.Println("Schedule already consistent, no tasks moved.")
			return nil
		}
		fmt.Printf("Rescheduled %d task(s)\n", n)
		return nil
	},
}

var scheduleSlackCmd = &cobra.Command{
	Use:   "slack",
	Short: "List total float per task, least slack first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		res, err := TaskGraph.Schedule()
		if err != nil {
			return fmt.Errorf("computing schedule: %w", err)
		}
		if scheduleJSON {
			return printJSON(res.Slack)
		}
		if len(res.Tasks) == 0 {
			fmt.Println("No tasks to schedule.")
			return nil
		}

		tasks := slackOrder(res)
		for _, t := range tasks {
			fmt.Printf("  %6.1fd  %-10s %s\n", res.Slack[t.ID], shortID(t.ID), t.Title)
		}
		return nil
	},
}

var scheduleTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show the padded timeline range and its period labels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskGraph == nil {
			return fmt.Errorf("task graph service not initialized")
		}
		g, err := granularityFlag(scheduleGranularity)
		if err != nil {
			return err
		}
		tl, err := TaskGraph.Timeline(g)
		if err != nil {
			return fmt.Errorf("computing timeline: %w", err)
		}
		if scheduleJSON {
			return printJSON(tl)
		}

		fmt.Printf("Timeline %s -> %s (%s)\n\n", tl.Start.Format(dateLayout), tl.End.Format(dateLayout), tl.Granularity)
		for _, l := range tl.Labels {
			fmt.Printf("  %s  %s\n", l.Date.Format(dateLayout), l.Label)
		}
		return nil
	},
}

// slackOrder sorts schedule rows by ascending slack, then early start.
func slackOrder(res *core.ScheduleResult) []models.ScheduleTask {
	tasks := append([]models.ScheduleTask(nil), res.Tasks...)
	sort.SliceStable(tasks, func(i, j int) bool {
		si, sj := res.Slack[tasks[i].ID], res.Slack[tasks[j].ID]
		if si != sj {
			return si < sj
		}
		return tasks[i].EarlyStart.Before(tasks[j].EarlyStart)
	})
	return tasks
}

func printCriticalPath(res *core.ScheduleResult) {
	cp := res.CriticalPath
	if len(cp.TaskIDs) == 0 {
		return
	}
	titles := make(map[string]string, len(res.Tasks))
	for _, t := range res.Tasks {
		titles[t.ID] = t.Title
	}
	fmt.Printf("\nCritical path (%.1f days, ends %s):\n", cp.TotalDuration, cp.EndDate.Format(dateLayout))
	for i, id := range cp.TaskIDs {
		fmt.Printf("  %d. %s\n", i+1, titles[id])
	}
}

// granularityFlag parses an optional granularity. Empty means the
// configured default.
func granularityFlag(s string) (models.Granularity, error) {
	if s == "" {
		return "", nil
	}
	return core.ParseGranularity(s)
}

func init() {
	scheduleCmd.PersistentFlags().BoolVar(&scheduleJSON, "json", false, "Output as JSON")
	scheduleTimelineCmd.Flags().StringVar(&scheduleGranularity, "granularity", "", "Label granularity: day, week, month")
	_ = scheduleTimelineCmd.RegisterFlagCompletionFunc("granularity", completeGranularities)

	scheduleCmd.AddCommand(scheduleCPMCmd)
	scheduleCmd.AddCommand(scheduleAutoCmd)
	scheduleCmd.AddCommand(scheduleSlackCmd)
	scheduleCmd.AddCommand(scheduleTimelineCmd)

	rootCmd.AddCommand(scheduleCmd)
}
