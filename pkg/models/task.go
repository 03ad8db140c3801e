package models

import (
	"slices"
	"time"
)

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

// ValidStatuses lists every TaskStatus in lifecycle order.
var ValidStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone, StatusCancelled}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	return slices.Contains(ValidStatuses, s)
}

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriorities lists every Priority from most to least urgent.
var ValidPriorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	return slices.Contains(ValidPriorities, p)
}

// Task is a single node of the project: a position in the parent/child
// hierarchy, a vertex in the dependency graph, and an optional schedule window.
//
// BlockedByIDs is a denormalized inverse of DependencyIDs. Whoever applies
// dependency patches must apply both halves together to keep it symmetric.
type Task struct {
	ID            string     `yaml:"id" json:"id"`
	Title         string     `yaml:"title" json:"title"`
	ParentID      string     `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	Order         float64    `yaml:"order" json:"order"`
	Level         int        `yaml:"level" json:"level"`
	DependencyIDs []string   `yaml:"dependency_ids,omitempty" json:"dependency_ids,omitempty"`
	BlockedByIDs  []string   `yaml:"blocked_by_ids,omitempty" json:"blocked_by_ids,omitempty"`
	Status        TaskStatus `yaml:"status" json:"status"`
	Priority      Priority   `yaml:"priority" json:"priority"`
	StartDate     *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate       *time.Time `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Created       time.Time  `yaml:"created" json:"created"`
	Updated       time.Time  `yaml:"updated" json:"updated"`
}

// IsRoot reports whether the task has no parent reference.
func (t Task) IsRoot() bool {
	return t.ParentID == ""
}

// DependsOn reports whether id is listed in the task's DependencyIDs.
func (t Task) DependsOn(id string) bool {
	return slices.Contains(t.DependencyIDs, id)
}

// Clone returns a deep copy of the task so callers can mutate the result
// without touching the snapshot it came from.
func (t Task) Clone() Task {
	c := t
	c.DependencyIDs = slices.Clone(t.DependencyIDs)
	c.BlockedByIDs = slices.Clone(t.BlockedByIDs)
	if t.StartDate != nil {
		s := *t.StartDate
		c.StartDate = &s
	}
	if t.EndDate != nil {
		e := *t.EndDate
		c.EndDate = &e
	}
	return c
}

// TaskPatch is a proposed partial update to a single task. Nil pointer and
// nil slice fields leave the corresponding task field untouched; a non-nil
// empty slice clears it.
type TaskPatch struct {
	ID            string      `json:"id"`
	ParentID      *string     `json:"parent_id,omitempty"`
	Order         *float64    `json:"order,omitempty"`
	Level         *int        `json:"level,omitempty"`
	DependencyIDs []string    `json:"dependency_ids,omitempty"`
	BlockedByIDs  []string    `json:"blocked_by_ids,omitempty"`
	Status        *TaskStatus `json:"status,omitempty"`
	Priority      *Priority   `json:"priority,omitempty"`
	StartDate     *time.Time  `json:"start_date,omitempty"`
	EndDate       *time.Time  `json:"end_date,omitempty"`

	// ClearDates removes both dates before StartDate and EndDate apply.
	ClearDates bool `json:"clear_dates,omitempty"`
}

// IsEmpty reports whether applying the patch would change nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.ParentID == nil && p.Order == nil && p.Level == nil &&
		p.DependencyIDs == nil && p.BlockedByIDs == nil && p.Status == nil && p.Priority == nil &&
		p.StartDate == nil && p.EndDate == nil && !p.ClearDates
}

// Apply writes every set field of the patch onto t. The patch ID is not
// checked against t.ID; matching patches to tasks is the caller's job.
func (p TaskPatch) Apply(t *Task) {
	if p.ParentID != nil {
		t.ParentID = *p.ParentID
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.Level != nil {
		t.Level = *p.Level
	}
	if p.DependencyIDs != nil {
		t.DependencyIDs = slices.Clone(p.DependencyIDs)
	}
	if p.BlockedByIDs != nil {
		t.BlockedByIDs = slices.Clone(p.BlockedByIDs)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDates {
		t.StartDate, t.EndDate = nil, nil
	}
	if p.StartDate != nil {
		s := *p.StartDate
		t.StartDate = &s
	}
	if p.EndDate != nil {
		e := *p.EndDate
		t.EndDate = &e
	}
}

// ApplyPatches returns a copy of tasks with every patch applied in order.
// Patches whose ID matches no task are ignored.
func ApplyPatches(tasks []Task, patches []TaskPatch) []Task {
	out := make([]Task, len(tasks))
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
		index[t.ID] = i
	}
	for _, p := range patches {
		if i, ok := index[p.ID]; ok {
			p.Apply(&out[i])
		}
	}
	return out
}
