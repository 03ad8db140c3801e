package models

import "time"

// Day is the unit the schedule engine reports durations and slack in.
const Day = 24 * time.Hour

// ScheduleTask is a working copy of a task enriched with the fields the
// schedule engine derives. None of these values are authoritative; they are
// recomputed on every call.
type ScheduleTask struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Status       TaskStatus `json:"status"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	Progress     int        `json:"progress"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Critical     bool       `json:"critical"`

	EarlyStart  time.Time `json:"early_start"`
	EarlyFinish time.Time `json:"early_finish"`
	LateStart   time.Time `json:"late_start"`
	LateFinish  time.Time `json:"late_finish"`
}

// Duration is the length of the task's schedule window.
func (s ScheduleTask) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// CriticalPath summarises the result of a critical path computation.
type CriticalPath struct {
	TaskIDs       []string  `json:"task_ids"`
	TotalDuration float64   `json:"total_duration_days"`
	EndDate       time.Time `json:"end_date"`
}

// Granularity is the calendar unit used to step timeline labels.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// TimelineLabel is one axis tick of a Gantt timeline.
type TimelineLabel struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
}
