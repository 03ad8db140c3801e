package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionTaskStale            = "task_stale"
	ConditionDependencyRejections = "dependency_rejections"
	ConditionOpenTasks            = "open_tasks_too_many"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`

	// TaskID is set for alerts about a single task.
	TaskID string `json:"task_id,omitempty"`
	// Observed and Limit describe count-based conditions.
	Observed int `json:"observed,omitempty"`
	Limit    int `json:"limit,omitempty"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	StaleDays        int `yaml:"stale_days" json:"stale_days"`
	MaxOpenTasks     int `yaml:"max_open_tasks" json:"max_open_tasks"`
	MaxRejectedEdges int `yaml:"max_rejected_edges" json:"max_rejected_edges"`
}

// DefaultAlertThresholds returns the thresholds used when none are configured.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		StaleDays:        3,
		MaxOpenTasks:     25,
		MaxRejectedEdges: 5,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine over eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// taskState is the latest status and activity time of one task as replayed
// from the log.
type taskState struct {
	status       string
	lastActivity time.Time
	deleted      bool
}

// Evaluate replays the whole log once and checks every condition. Alerts are
// returned sorted by ID.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}
	now := ae.now()

	tasks := make(map[string]*taskState)
	rejected := 0
	for _, event := range events {
		if event.Type == EventDependencyRejected {
			rejected++
		}
		id := event.TaskID()
		if id == "" {
			continue
		}
		st, ok := tasks[id]
		if !ok {
			st = &taskState{}
			tasks[id] = st
		}
		if event.Time.After(st.lastActivity) {
			st.lastActivity = event.Time
		}
		switch event.Type {
		case EventTaskCreated:
			st.status = "todo"
		case EventTaskStatusChanged:
			if s, ok := event.Data["new_status"].(string); ok {
				st.status = s
			}
		case EventTaskDeleted:
			st.deleted = true
		}
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkStaleTasks(tasks, now)...)
	alerts = append(alerts, ae.checkOpenTasks(tasks, now)...)
	if rejected > ae.thresholds.MaxRejectedEdges {
		alerts = append(alerts, Alert{
			ID:          "dependency-rejections",
			Condition:   ConditionDependencyRejections,
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("%d dependency edges were rejected, exceeding the maximum of %d", rejected, ae.thresholds.MaxRejectedEdges),
			TriggeredAt: now,
			Observed:    rejected,
			Limit:       ae.thresholds.MaxRejectedEdges,
		})
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts, nil
}

// checkStaleTasks reports in-progress tasks with no recent activity.
func (ae *alertEngine) checkStaleTasks(tasks map[string]*taskState, now time.Time) []Alert {
	threshold := time.Duration(ae.thresholds.StaleDays) * 24 * time.Hour
	var alerts []Alert
	for id, st := range tasks {
		if st.deleted || st.status != "in_progress" || now.Sub(st.lastActivity) <= threshold {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          "stale-" + id,
			Condition:   ConditionTaskStale,
			Severity:    SeverityMedium,
			Message:     fmt.Sprintf("task %s has had no activity for more than %d days", id, ae.thresholds.StaleDays),
			TriggeredAt: now,
			TaskID:      id,
		})
	}
	return alerts
}

// checkOpenTasks counts live tasks still in todo.
func (ae *alertEngine) checkOpenTasks(tasks map[string]*taskState, now time.Time) []Alert {
	open := 0
	for _, st := range tasks {
		if !st.deleted && st.status == "todo" {
			open++
		}
	}
	if open <= ae.thresholds.MaxOpenTasks {
		return nil
	}
	return []Alert{{
		ID:          "open-tasks",
		Condition:   ConditionOpenTasks,
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d tasks are still todo, exceeding the maximum of %d", open, ae.thresholds.MaxOpenTasks),
		TriggeredAt: now,
		Observed:    open,
		Limit:       ae.thresholds.MaxOpenTasks,
	}}
}
