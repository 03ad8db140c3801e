package observability

import (
	"fmt"
	"time"
)

// Metrics holds counters derived from the event log.
type Metrics struct {
	TasksCreated        int            `json:"tasks_created"`
	TasksDeleted        int            `json:"tasks_deleted"`
	TasksCompleted      int            `json:"tasks_completed"`
	TasksMoved          int            `json:"tasks_moved"`
	Reprioritized       int            `json:"reprioritized"`
	TasksByStatus       map[string]int `json:"tasks_by_status"`
	DependenciesAdded   int            `json:"dependencies_added"`
	DependenciesRemoved int            `json:"dependencies_removed"`
	RejectedEdges       map[string]int `json:"rejected_edges"`
	SchedulesApplied    int            `json:"schedules_applied"`
	TasksRescheduled    int            `json:"tasks_rescheduled"`
	Normalizations      int            `json:"normalizations"`
	EventCount          int            `json:"event_count"`
	OldestEvent         *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent         *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event at or after since.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		TasksByStatus: make(map[string]int),
		RejectedEdges: make(map[string]int),
		EventCount:    len(events),
	}

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		switch event.Type {
		case EventTaskCreated:
			m.TasksCreated++
		case EventTaskDeleted:
			m.TasksDeleted++
		case EventTaskMoved:
			m.TasksMoved++
		case EventTaskPriorityChanged:
			m.Reprioritized++
		case EventTaskStatusChanged:
			status, ok := event.Data["new_status"].(string)
			if !ok {
				continue
			}
			m.TasksByStatus[status]++
			if status == "done" {
				m.TasksCompleted++
			}
		case EventDependencyAdded:
			m.DependenciesAdded++
		case EventDependencyRemoved:
			m.DependenciesRemoved++
		case EventDependencyRejected:
			reason, _ := event.Data["reason"].(string)
			if reason == "" {
				reason = "unknown"
			}
			m.RejectedEdges[reason]++
		case EventScheduleApplied:
			m.SchedulesApplied++
			// JSON numbers decode as float64.
			if n, ok := event.Data["count"].(float64); ok {
				m.TasksRescheduled += int(n)
			}
		case EventOrderNormalized:
			m.Normalizations++
		}
	}

	return m, nil
}
