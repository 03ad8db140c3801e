package core

import (
	"testing"
	"time"

	"github.com/palazero/v3tasks/pkg/models"
)

var day0 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func dayN(n float64) time.Time {
	return day0.Add(time.Duration(n * float64(models.Day)))
}

func schedTask(id string, start, dur float64, deps ...string) models.ScheduleTask {
	return models.ScheduleTask{
		ID:           id,
		Title:        "task " + id,
		Start:        dayN(start),
		End:          dayN(start + dur),
		Dependencies: deps,
	}
}

func newTestScheduleEngine() ScheduleEngine {
	return NewScheduleEngine(models.DefaultEngineConfig(), func() time.Time { return day0 })
}

func byID(tasks []models.ScheduleTask) map[string]models.ScheduleTask {
	out := make(map[string]models.ScheduleTask, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t
	}
	return out
}

func TestComputeCriticalPath_Chain(t *testing.T) {
	e := newTestScheduleEngine()
	tasks := []models.ScheduleTask{
		schedTask("A", 0, 1),
		schedTask("B", 0, 2, "A"),
		schedTask("C", 0, 3, "B"),
	}

	out, cp := e.ComputeCriticalPath(tasks)

	for _, task := range out {
		if !task.Critical {
			t.Errorf("expected %s to be critical", task.ID)
		}
	}
	if cp.TotalDuration != 6 {
		t.Errorf("expected total duration 6, got %v", cp.TotalDuration)
	}
	if !cp.EndDate.Equal(dayN(6)) {
		t.Errorf("expected end date %v, got %v", dayN(6), cp.EndDate)
	}
	if len(cp.TaskIDs) != 3 {
		t.Errorf("expected 3 critical tasks, got %v", cp.TaskIDs)
	}

	got := byID(out)
	if !got["C"].EarlyStart.Equal(dayN(3)) || !got["C"].LateFinish.Equal(dayN(6)) {
		t.Errorf("unexpected C window: %+v", got["C"])
	}
	if tasks[0].Critical || !tasks[2].EarlyStart.IsZero() {
		t.Error("input tasks were mutated")
	}
}

func TestComputeCriticalPath_ParallelBranch(t *testing.T) {
	e := newTestScheduleEngine()
	tasks := []models.ScheduleTask{
		schedTask("short", 0, 1),
		schedTask("long", 0, 3),
		schedTask("join", 0, 1, "short", "long"),
	}

	out, cp := e.ComputeCriticalPath(tasks)
	got := byID(out)
	if got["short"].Critical {
		t.Error("expected short branch to have slack")
	}
	if !got["long"].Critical || !got["join"].Critical {
		t.Error("expected long and join to be critical")
	}
	if cp.TotalDuration != 4 {
		t.Errorf("expected total 4, got %v", cp.TotalDuration)
	}
}

func TestComputeSlack(t *testing.T) {
	e := newTestScheduleEngine()
	tasks := []models.ScheduleTask{
		schedTask("short", 0, 1),
		schedTask("long", 0, 3),
		schedTask("join", 0, 1, "short", "long"),
		schedTask("alone", 5, 2),
	}

	slack := e.ComputeSlack(tasks)
	want := map[string]float64{"short": 2, "long": 0, "join": 0, "alone": 0}
	for id, w := range want {
		if slack[id] != w {
			t.Errorf("slack[%s] = %v, want %v", id, slack[id], w)
		}
	}
}

func TestAutoSchedule(t *testing.T) {
	e := newTestScheduleEngine()
	tasks := []models.ScheduleTask{
		schedTask("A", 0, 2),
		schedTask("B", 0, 3, "A"),
		schedTask("C", 10, 1, "A"),
	}

	got := byID(e.AutoSchedule(tasks))
	if !got["B"].Start.Equal(dayN(2)) || !got["B"].End.Equal(dayN(5)) {
		t.Errorf("expected B shifted to day 2-5, got %v - %v", got["B"].Start, got["B"].End)
	}
	if !got["C"].Start.Equal(dayN(10)) {
		t.Errorf("expected C to keep its later start, got %v", got["C"].Start)
	}
	if !got["A"].Start.Equal(dayN(0)) {
		t.Errorf("expected A unchanged, got %v", got["A"].Start)
	}
}

func TestSchedule_IgnoresUnknownDependencies(t *testing.T) {
	e := newTestScheduleEngine()
	tasks := []models.ScheduleTask{schedTask("A", 0, 1, "ghost")}

	out, cp := e.ComputeCriticalPath(tasks)
	if !out[0].Critical || cp.TotalDuration != 1 {
		t.Fatalf("expected lone task to be critical with total 1, got %+v %+v", out[0], cp)
	}
}

func TestToScheduleTasks(t *testing.T) {
	e := newTestScheduleEngine()
	start := dayN(1)
	backwards := dayN(0)
	tasks := []models.Task{
		{ID: "nodates", Status: models.StatusTodo},
		{ID: "inverted", Status: models.StatusDone, StartDate: &start, EndDate: &backwards},
		{ID: "started", Status: models.StatusInProgress, DependencyIDs: []string{"nodates"}},
	}

	got := byID(e.ToScheduleTasks(tasks))

	nd := got["nodates"]
	if !nd.Start.Equal(day0) || !nd.End.Equal(dayN(7)) {
		t.Errorf("expected default window day 0-7, got %v - %v", nd.Start, nd.End)
	}
	inv := got["inverted"]
	if !inv.End.Equal(dayN(2)) {
		t.Errorf("expected end clamped to one day after start, got %v", inv.End)
	}
	if inv.Progress != 100 || got["started"].Progress != 50 || nd.Progress != 0 {
		t.Errorf("unexpected progress values: %d %d %d", inv.Progress, got["started"].Progress, nd.Progress)
	}
	if len(got["started"].Dependencies) != 1 {
		t.Errorf("expected dependencies to be carried over")
	}
}

func TestTimelineRange(t *testing.T) {
	e := newTestScheduleEngine()

	start, end := e.TimelineRange(nil)
	if !start.Equal(day0) || !end.Equal(dayN(30)) {
		t.Errorf("unexpected empty range %v - %v", start, end)
	}

	start, end = e.TimelineRange([]models.ScheduleTask{schedTask("a", 10, 2), schedTask("b", 12, 5)})
	if !start.Equal(dayN(3)) || !end.Equal(dayN(24)) {
		t.Errorf("expected padded range day 3-24, got %v - %v", start, end)
	}
}

func TestGenerateTimelineLabels(t *testing.T) {
	e := newTestScheduleEngine()
	jan1 := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		g    models.Granularity
		want []string
	}{
		{"day", time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), models.GranularityDay, []string{"Jan 1", "Jan 2", "Jan 3"}},
		{"week", time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), models.GranularityWeek, []string{"Wk 01 Dec 29", "Wk 02 Jan 5"}},
		{"month", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), models.GranularityMonth, []string{"Jan 2026", "Feb 2026", "Mar 2026"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := e.GenerateTimelineLabels(jan1, tt.end, tt.g)
			if len(labels) != len(tt.want) {
				t.Fatalf("expected %d labels, got %+v", len(tt.want), labels)
			}
			for i, w := range tt.want {
				if labels[i].Label != w {
					t.Errorf("label %d = %q, want %q", i, labels[i].Label, w)
				}
			}
		})
	}
}

func TestTimelineLabels_StopsEarly(t *testing.T) {
	e := newTestScheduleEngine()
	n := 0
	for range e.TimelineLabels(day0, dayN(365), models.GranularityDay) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("expected to stop after 3 labels, got %d", n)
	}
}

func TestParseGranularity(t *testing.T) {
	for _, in := range []string{"day", "Week", " month "} {
		if _, err := ParseGranularity(in); err != nil {
			t.Errorf("ParseGranularity(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseGranularity("year"); err == nil {
		t.Error("expected error for unknown granularity")
	}
}
