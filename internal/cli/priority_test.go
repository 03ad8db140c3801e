package cli

import (
	"strings"
	"testing"

	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/pkg/models"
)

func TestPriorityCmd_NilTaskGraph(t *testing.T) {
	withoutTaskGraph(t)

	for _, cmd := range []struct {
		name string
		run  func() error
	}{
		{"priority", func() error { return priorityCmd.RunE(priorityCmd, []string{"a"}) }},
		{"task priority", func() error { return taskPriorityCmd.RunE(taskPriorityCmd, []string{"a", "high"}) }},
	} {
		err := cmd.run()
		if err == nil || !strings.Contains(err.Error(), "task graph service not initialized") {
			t.Errorf("%s: unexpected error: %v", cmd.name, err)
		}
	}
}

func TestPriorityCmd_Reorders(t *testing.T) {
	g := useTaskGraph(t)
	var ids []string
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		ids = append(ids, mustCreateTask(t, g, core.NewTaskInput{Title: title}).ID)
	}

	output := captureStdout(t, func() {
		if err := priorityCmd.RunE(priorityCmd, ids); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	want := []models.Priority{
		models.PriorityUrgent, models.PriorityHigh, models.PriorityMedium,
		models.PriorityLow, models.PriorityLow,
	}
	for i, id := range ids {
		task, err := g.Task(id)
		if err != nil {
			t.Fatal(err)
		}
		if task.Priority != want[i] {
			t.Errorf("task %d priority = %s, want %s", i, task.Priority, want[i])
		}
	}
	if !strings.Contains(output, ids[0]+" -> urgent") {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestPriorityCmd_UnknownTask(t *testing.T) {
	useTaskGraph(t)

	var err error
	captureStdout(t, func() {
		err = priorityCmd.RunE(priorityCmd, []string{"missing"})
	})
	if err == nil || !strings.Contains(err.Error(), "reordering priorities") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTaskPriorityCmd(t *testing.T) {
	g := useTaskGraph(t)
	task := mustCreateTask(t, g, core.NewTaskInput{Title: "A"})

	output := captureStdout(t, func() {
		if err := taskPriorityCmd.RunE(taskPriorityCmd, []string{task.ID, "high"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	if !strings.Contains(output, "priority set to high") {
		t.Errorf("unexpected output: %s", output)
	}
	got, _ := g.Task(task.ID)
	if got.Priority != models.PriorityHigh {
		t.Errorf("priority = %s, want high", got.Priority)
	}

	if err := taskPriorityCmd.RunE(taskPriorityCmd, []string{task.ID, "P0"}); err == nil {
		t.Error("expected error for invalid priority")
	}
}

func TestRankedPriority(t *testing.T) {
	tests := map[int]models.Priority{
		0: models.PriorityUrgent,
		1: models.PriorityHigh,
		2: models.PriorityMedium,
		3: models.PriorityLow,
		9: models.PriorityLow,
	}
	for rank, want := range tests {
		if got := rankedPriority(rank); got != want {
			t.Errorf("rankedPriority(%d) = %s, want %s", rank, got, want)
		}
	}
}
