package observability

import (
	"fmt"
	"testing"
	"time"
)

var alertNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestAlertEngine(log EventLog, th AlertThresholds) *alertEngine {
	ae := NewAlertEngine(log, th).(*alertEngine)
	ae.now = func() time.Time { return alertNow }
	return ae
}

func findAlert(alerts []Alert, id string) *Alert {
	for i := range alerts {
		if alerts[i].ID == id {
			return &alerts[i]
		}
	}
	return nil
}

func TestAlertEngine_StaleTask(t *testing.T) {
	log, _ := newTestEventLog(t)
	writeAll(t, log, []Event{
		{Time: alertNow.Add(-10 * 24 * time.Hour), Type: EventTaskCreated, Data: map[string]any{"task_id": "a"}},
		{Time: alertNow.Add(-5 * 24 * time.Hour), Type: EventTaskStatusChanged, Data: map[string]any{"task_id": "a", "new_status": "in_progress"}},
		{Time: alertNow.Add(-10 * 24 * time.Hour), Type: EventTaskCreated, Data: map[string]any{"task_id": "b"}},
		{Time: alertNow.Add(-1 * 24 * time.Hour), Type: EventTaskStatusChanged, Data: map[string]any{"task_id": "b", "new_status": "in_progress"}},
	})

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}

	a := findAlert(alerts, "stale-a")
	if a == nil {
		t.Fatalf("expected stale alert for a, got %+v", alerts)
	}
	if a.Condition != ConditionTaskStale || a.Severity != SeverityMedium || a.TaskID != "a" {
		t.Errorf("unexpected alert: %+v", a)
	}
	if findAlert(alerts, "stale-b") != nil {
		t.Error("did not expect stale alert for recently started b")
	}
}

func TestAlertEngine_RecentActivityClearsStale(t *testing.T) {
	log, _ := newTestEventLog(t)
	writeAll(t, log, []Event{
		{Time: alertNow.Add(-5 * 24 * time.Hour), Type: EventTaskStatusChanged, Data: map[string]any{"task_id": "a", "new_status": "in_progress"}},
		{Time: alertNow.Add(-time.Hour), Type: EventDependencyAdded, Data: map[string]any{"task_id": "a", "dependency_id": "b"}},
	})

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if findAlert(alerts, "stale-a") != nil {
		t.Error("expected recent dependency activity to count as activity")
	}
}

func TestAlertEngine_DeletedTaskNeverAlerts(t *testing.T) {
	log, _ := newTestEventLog(t)
	writeAll(t, log, []Event{
		{Time: alertNow.Add(-9 * 24 * time.Hour), Type: EventTaskStatusChanged, Data: map[string]any{"task_id": "a", "new_status": "in_progress"}},
		{Time: alertNow.Add(-8 * 24 * time.Hour), Type: EventTaskDeleted, Data: map[string]any{"task_id": "a"}},
	})

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %+v", alerts)
	}
}

func TestAlertEngine_OpenTasks(t *testing.T) {
	log, _ := newTestEventLog(t)
	for i := range 4 {
		writeAll(t, log, []Event{{Time: alertNow, Type: EventTaskCreated, Data: map[string]any{"task_id": fmt.Sprintf("t%d", i)}}})
	}
	writeAll(t, log, []Event{{Time: alertNow, Type: EventTaskStatusChanged, Data: map[string]any{"task_id": "t0", "new_status": "done"}}})

	th := DefaultAlertThresholds()
	th.MaxOpenTasks = 2
	alerts, err := newTestAlertEngine(log, th).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	a := findAlert(alerts, "open-tasks")
	if a == nil {
		t.Fatalf("expected open-tasks alert, got %+v", alerts)
	}
	if a.Message != "3 tasks are still todo, exceeding the maximum of 2" {
		t.Errorf("unexpected message: %q", a.Message)
	}
	if a.Observed != 3 || a.Limit != 2 || a.TaskID != "" {
		t.Errorf("unexpected counts: observed %d limit %d task %q", a.Observed, a.Limit, a.TaskID)
	}

	th.MaxOpenTasks = 3
	alerts, _ = newTestAlertEngine(log, th).Evaluate()
	if findAlert(alerts, "open-tasks") != nil {
		t.Error("expected no alert at the threshold")
	}
}

func TestAlertEngine_DependencyRejections(t *testing.T) {
	log, _ := newTestEventLog(t)
	for range 3 {
		writeAll(t, log, []Event{{Time: alertNow, Type: EventDependencyRejected, Data: map[string]any{"reason": "cycle"}}})
	}

	th := DefaultAlertThresholds()
	th.MaxRejectedEdges = 2
	alerts, err := newTestAlertEngine(log, th).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	a := findAlert(alerts, "dependency-rejections")
	if a == nil || a.Condition != ConditionDependencyRejections {
		t.Fatalf("expected dependency rejection alert, got %+v", alerts)
	}
}

func TestAlertEngine_NoAlertsOnCleanState(t *testing.T) {
	log, _ := newTestEventLog(t)

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected 0 alerts on empty log, got %d", len(alerts))
	}
}
