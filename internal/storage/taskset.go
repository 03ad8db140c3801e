package storage

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/palazero/v3tasks/pkg/models"
)

// taskSet is the in-memory task collection behind every TaskStore backend.
// Backends only differ in how Load and Save move it to and from disk.
type taskSet struct {
	tasks map[string]models.Task
	now   func() time.Time
}

func newTaskSet() taskSet {
	return taskSet{
		tasks: make(map[string]models.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Add inserts a task, assigning a UUID when the ID is empty and stamping
// creation and update times.
func (s *taskSet) Add(task models.Task) (models.Task, error) {
	task.ID = strings.TrimSpace(task.ID)
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, exists := s.tasks[task.ID]; exists {
		return models.Task{}, fmt.Errorf("adding task: task %s already exists", task.ID)
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if !task.Status.IsValid() {
		return models.Task{}, fmt.Errorf("adding task: invalid status %q", task.Status)
	}
	now := s.now()
	if task.Created.IsZero() {
		task.Created = now
	}
	task.Updated = now
	s.tasks[task.ID] = task.Clone()
	return task, nil
}

func (s *taskSet) Get(taskID string) (*models.Task, error) {
	t, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task %s not found", taskID)
	}
	c := t.Clone()
	return &c, nil
}

// All returns a snapshot of every task sorted by ID.
func (s *taskSet) All() ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// Remove deletes a task and scrubs every reference to it: dependency edges
// in both directions are dropped and its children move up to its parent.
func (s *taskSet) Remove(taskID string) error {
	removed, exists := s.tasks[taskID]
	if !exists {
		return fmt.Errorf("removing task: task %s not found", taskID)
	}
	delete(s.tasks, taskID)

	promoted := s.subtreeOf(taskID)
	now := s.now()
	for id, t := range s.tasks {
		changed := false
		if slices.Contains(t.DependencyIDs, taskID) {
			t.DependencyIDs = slices.DeleteFunc(t.DependencyIDs, func(d string) bool { return d == taskID })
			changed = true
		}
		if slices.Contains(t.BlockedByIDs, taskID) {
			t.BlockedByIDs = slices.DeleteFunc(t.BlockedByIDs, func(b string) bool { return b == taskID })
			changed = true
		}
		if t.ParentID == taskID {
			t.ParentID = removed.ParentID
			changed = true
		}
		if promoted[id] && t.Level > 0 {
			t.Level--
			changed = true
		}
		if changed {
			t.Updated = now
			s.tasks[id] = t
		}
	}
	return nil
}

// subtreeOf returns the IDs of every remaining descendant of rootID.
func (s *taskSet) subtreeOf(rootID string) map[string]bool {
	children := make(map[string][]string)
	for id, t := range s.tasks {
		children[t.ParentID] = append(children[t.ParentID], id)
	}
	out := make(map[string]bool)
	queue := []string{rootID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if !out[c] {
				out[c] = true
				queue = append(queue, c)
			}
		}
	}
	return out
}

// Apply applies a batch of patches all-or-nothing: if any patch refers to an
// unknown task or carries an invalid enum value, nothing is changed.
func (s *taskSet) Apply(patches []models.TaskPatch) error {
	for _, p := range patches {
		if _, exists := s.tasks[p.ID]; !exists {
			return fmt.Errorf("applying patches: task %s not found", p.ID)
		}
		if p.Status != nil && !p.Status.IsValid() {
			return fmt.Errorf("applying patches: invalid status %q for task %s", *p.Status, p.ID)
		}
		if p.Priority != nil && !p.Priority.IsValid() {
			return fmt.Errorf("applying patches: invalid priority %q for task %s", *p.Priority, p.ID)
		}
	}
	now := s.now()
	for _, p := range patches {
		if p.IsEmpty() {
			continue
		}
		t := s.tasks[p.ID]
		p.Apply(&t)
		t.Updated = now
		s.tasks[p.ID] = t
	}
	return nil
}
