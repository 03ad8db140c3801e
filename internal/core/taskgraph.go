package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/palazero/v3tasks/pkg/models"
)

// ScheduleResult is a computed CPM schedule over every task.
type ScheduleResult struct {
	Tasks        []models.ScheduleTask `json:"tasks"`
	CriticalPath models.CriticalPath   `json:"critical_path"`
	Slack        map[string]float64    `json:"slack_days"`
	Start        time.Time             `json:"timeline_start"`
	End          time.Time             `json:"timeline_end"`
}

// Timeline is the padded display range of the schedule with its header labels.
type Timeline struct {
	Start       time.Time              `json:"start"`
	End         time.Time              `json:"end"`
	Granularity models.Granularity     `json:"granularity"`
	Labels      []models.TimelineLabel `json:"labels"`
}

// NewTaskInput carries the fields a caller may set when creating a task.
type NewTaskInput struct {
	Title     string
	ParentID  string
	Priority  models.Priority
	StartDate *time.Time
	EndDate   *time.Time
}

// TaskGraphService binds the hierarchy, dependency and schedule engines to a
// TaskStore. Every mutation loads a fresh snapshot, asks the engine for
// patches, applies them in one batch and saves.
type TaskGraphService interface {
	CreateTask(in NewTaskInput) (*models.Task, error)
	CreateChild(parentID, title string) (*models.Task, error)
	DeleteTask(taskID string) error
	SetStatus(taskID string, status models.TaskStatus) error
	SetPriority(taskID string, priority models.Priority) error
	SetDates(taskID string, start, end *time.Time) error
	ClearDates(taskID string) error
	Indent(taskID string) error
	Outdent(taskID string) error
	Move(draggedID, targetID string, position Position) error
	Normalize() (int, error)

	AddDependency(taskID, dependencyID string) error
	RemoveDependency(taskID, dependencyID string) error
	DependencyStatus(taskID string) (*DependencyStatus, error)
	Graph() (*Graph, error)
	ReadyTasks() ([]models.Task, error)
	Validate() (*ValidationReport, error)
	Reconcile() (int, error)

	Task(taskID string) (*models.Task, error)
	Tasks() ([]models.Task, error)
	Tree() ([]*TreeNode, error)

	Schedule() (*ScheduleResult, error)
	AutoSchedule() (int, error)
	Timeline(g models.Granularity) (*Timeline, error)
}

type taskGraphService struct {
	store     TaskStore
	hierarchy HierarchyManager
	deps      DependencyManager
	schedule  ScheduleEngine
	cfg       models.EngineConfig
	maxLevel  int
	priority  models.Priority
	events    EventLogger
}

// NewTaskGraphService creates a TaskGraphService. events may be nil.
func NewTaskGraphService(store TaskStore, cfg *models.GlobalConfig, events EventLogger) TaskGraphService {
	if cfg == nil {
		cfg = DefaultGlobalConfig()
	}
	return NewTaskGraphServiceWithEngines(
		store,
		NewHierarchyManager(cfg.Engine),
		NewDependencyManager(),
		NewScheduleEngine(cfg.Engine, nil),
		cfg,
		events,
	)
}

// NewTaskGraphServiceWithEngines creates a TaskGraphService from explicit
// engine instances, which lets callers pin the schedule clock.
func NewTaskGraphServiceWithEngines(store TaskStore, h HierarchyManager, d DependencyManager, s ScheduleEngine, cfg *models.GlobalConfig, events EventLogger) TaskGraphService {
	priority := cfg.DefaultPriority
	if priority == "" {
		priority = models.PriorityMedium
	}
	maxLevel := cfg.Engine.MaxLevel
	if maxLevel <= 0 {
		maxLevel = models.DefaultEngineConfig().MaxLevel
	}
	return &taskGraphService{
		store:     store,
		hierarchy: h,
		deps:      d,
		schedule:  s,
		cfg:       cfg.Engine,
		maxLevel:  maxLevel,
		priority:  priority,
		events:    events,
	}
}

// snapshot reloads the store and returns every task.
func (s *taskGraphService) snapshot() ([]models.Task, error) {
	if err := s.store.Load(); err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	all, err := s.store.All()
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return all, nil
}

// commit applies patches as one batch and persists the result.
func (s *taskGraphService) commit(patches []models.TaskPatch) error {
	if len(patches) == 0 {
		return nil
	}
	if err := s.store.Apply(patches); err != nil {
		return fmt.Errorf("applying changes: %w", err)
	}
	if err := s.store.Save(); err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	return nil
}

func (s *taskGraphService) logEvent(eventType string, data map[string]any) {
	if s.events != nil {
		_ = s.events.LogEvent(eventType, data)
	}
}

func lookup(all []models.Task, taskID string) (models.Task, error) {
	t, ok := findTask(all, taskID)
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	return t, nil
}

func (s *taskGraphService) CreateTask(in NewTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("creating task: title is required")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, fmt.Errorf("creating task: end date is before start date")
	}
	if in.Priority != "" && !in.Priority.IsValid() {
		return nil, fmt.Errorf("creating task: invalid priority %q", in.Priority)
	}
	all, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	var task models.Task
	if in.ParentID != "" {
		parent, err := lookup(all, in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("creating task: parent: %w", err)
		}
		if parent.Level >= s.maxLevel {
			return nil, fmt.Errorf("creating task under %s: %w: maximum depth reached", parent.ID, ErrStructural)
		}
		task = s.hierarchy.CreateChild(parent, title, all)
	} else {
		task = models.Task{
			Title:  title,
			Order:  s.hierarchy.NextOrder(siblingsOf("", all)),
			Status: models.StatusTodo,
		}
	}
	task.Priority = s.priority
	if in.Priority != "" {
		task.Priority = in.Priority
	}
	task.StartDate = in.StartDate
	task.EndDate = in.EndDate

	added, err := s.store.Add(task)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	if err := s.store.Save(); err != nil {
		return nil, fmt.Errorf("creating task: saving: %w", err)
	}
	s.logEvent("task.created", map[string]any{
		"task_id":   added.ID,
		"title":     added.Title,
		"parent_id": added.ParentID,
		"level":     added.Level,
	})
	return &added, nil
}

func (s *taskGraphService) CreateChild(parentID, title string) (*models.Task, error) {
	if parentID == "" {
		return nil, fmt.Errorf("creating child: parent ID is required")
	}
	return s.CreateTask(NewTaskInput{Title: title, ParentID: parentID})
}

func (s *taskGraphService) DeleteTask(taskID string) error {
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if _, err := lookup(all, taskID); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if err := s.store.Remove(taskID); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if err := s.store.Save(); err != nil {
		return fmt.Errorf("deleting task: saving: %w", err)
	}
	s.logEvent("task.deleted", map[string]any{"task_id": taskID})
	return nil
}

func (s *taskGraphService) SetStatus(taskID string, status models.TaskStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("setting status: invalid status %q", status)
	}
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("setting status: %w", err)
	}
	task, err := lookup(all, taskID)
	if err != nil {
		return fmt.Errorf("setting status: %w", err)
	}
	if task.Status == status {
		return nil
	}
	if err := s.commit([]models.TaskPatch{{ID: taskID, Status: &status}}); err != nil {
		return fmt.Errorf("setting status: %w", err)
	}
	s.logEvent("task.status_changed", map[string]any{
		"task_id":    taskID,
		"old_status": string(task.Status),
		"new_status": string(status),
		"can_start":  s.deps.CanStart(task, all),
	})
	return nil
}

func (s *taskGraphService) SetPriority(taskID string, priority models.Priority) error {
	if !priority.IsValid() {
		return fmt.Errorf("setting priority: invalid priority %q", priority)
	}
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("setting priority: %w", err)
	}
	task, err := lookup(all, taskID)
	if err != nil {
		return fmt.Errorf("setting priority: %w", err)
	}
	if task.Priority == priority {
		return nil
	}
	if err := s.commit([]models.TaskPatch{{ID: taskID, Priority: &priority}}); err != nil {
		return fmt.Errorf("setting priority: %w", err)
	}
	s.logEvent("task.priority_changed", map[string]any{
		"task_id":      taskID,
		"old_priority": string(task.Priority),
		"new_priority": string(priority),
	})
	return nil
}

func (s *taskGraphService) SetDates(taskID string, start, end *time.Time) error {
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("setting dates: %w", err)
	}
	task, err := lookup(all, taskID)
	if err != nil {
		return fmt.Errorf("setting dates: %w", err)
	}
	newStart, newEnd := task.StartDate, task.EndDate
	if start != nil {
		newStart = start
	}
	if end != nil {
		newEnd = end
	}
	if newStart != nil && newEnd != nil && newEnd.Before(*newStart) {
		return fmt.Errorf("setting dates: end date is before start date")
	}
	patch := models.TaskPatch{ID: taskID, StartDate: start, EndDate: end}
	if err := s.commit([]models.TaskPatch{patch}); err != nil {
		return fmt.Errorf("setting dates: %w", err)
	}
	s.logEvent("schedule.applied", map[string]any{"task_id": taskID, "count": 1, "source": "manual"})
	return nil
}

// ClearDates removes both planned dates so the task falls back to the
// default duration starting today.
func (s *taskGraphService) ClearDates(taskID string) error {
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("clearing dates: %w", err)
	}
	task, err := lookup(all, taskID)
	if err != nil {
		return fmt.Errorf("clearing dates: %w", err)
	}
	if task.StartDate == nil && task.EndDate == nil {
		return nil
	}
	if err := s.commit([]models.TaskPatch{{ID: taskID, ClearDates: true}}); err != nil {
		return fmt.Errorf("clearing dates: %w", err)
	}
	s.logEvent("schedule.applied", map[string]any{"task_id": taskID, "count": 1, "source": "clear"})
	return nil
}

// applyMove commits a structural change and logs it as a move.
func (s *taskGraphService) applyMove(action, taskID string, patches []models.TaskPatch) error {
	if err := s.commit(patches); err != nil {
		return fmt.Errorf("%s %s: %w", action, taskID, err)
	}
	data := map[string]any{"task_id": taskID, "action": action}
	if p := patches[0]; p.ParentID != nil {
		data["parent_id"] = *p.ParentID
		data["level"] = *p.Level
	}
	s.logEvent("task.moved", data)
	return nil
}

func (s *taskGraphService) Indent(taskID string) error {
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("indenting: %w", err)
	}
	task, err := lookup(all, taskID)
	if err != nil {
		return fmt.Errorf("indenting: %w", err)
	}
	patch := s.hierarchy.Indent(task, all)
	if patch == nil {
		return fmt.Errorf("indenting %s: %w: no previous sibling or maximum depth reached", taskID, ErrStructural)
	}
	return s.applyMove("indent", taskID, withDescendantLevels(*patch, task, all))
}

func (s *taskGraphService) Outdent(taskID string) error {
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("outdenting: %w", err)
	}
	task, err := lookup(all, taskID)
	if err != nil {
		return fmt.Errorf("outdenting: %w", err)
	}
	patch := s.hierarchy.Outdent(task, all)
	if patch == nil {
		return fmt.Errorf("outdenting %s: %w: task is already at the top level", taskID, ErrStructural)
	}
	return s.applyMove("outdent", taskID, withDescendantLevels(*patch, task, all))
}

// withDescendantLevels extends a single-task patch with level patches for
// the task's subtree so stored levels stay equal to tree depth.
func withDescendantLevels(patch models.TaskPatch, task models.Task, all []models.Task) []models.TaskPatch {
	patches := []models.TaskPatch{patch}
	if patch.Level == nil || *patch.Level == task.Level {
		return patches
	}
	for _, d := range descendantDepths(task.ID, all) {
		patches = append(patches, models.TaskPatch{ID: d.id, Level: ptr(*patch.Level + d.depth)})
	}
	return patches
}

func (s *taskGraphService) Move(draggedID, targetID string, position Position) error {
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("moving: %w", err)
	}
	dragged, err := lookup(all, draggedID)
	if err != nil {
		return fmt.Errorf("moving: %w", err)
	}
	target, err := lookup(all, targetID)
	if err != nil {
		return fmt.Errorf("moving: target: %w", err)
	}
	patches := s.hierarchy.Reorder(dragged, target, position, all)
	if len(patches) == 0 {
		return fmt.Errorf("moving %s %s %s: %w", draggedID, position, targetID, ErrStructural)
	}
	return s.applyMove("move", draggedID, patches)
}

func (s *taskGraphService) Normalize() (int, error) {
	all, err := s.snapshot()
	if err != nil {
		return 0, fmt.Errorf("normalizing: %w", err)
	}
	patches := s.hierarchy.Normalize(all)
	if err := s.commit(patches); err != nil {
		return 0, fmt.Errorf("normalizing: %w", err)
	}
	if len(patches) > 0 {
		s.logEvent("order.normalized", map[string]any{"count": len(patches)})
	}
	return len(patches), nil
}

func (s *taskGraphService) AddDependency(taskID, dependencyID string) error {
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("adding dependency: %w", err)
	}
	patches, err := s.deps.AddDependency(taskID, dependencyID, all)
	if err != nil {
		s.logEvent("dependency.rejected", map[string]any{
			"task_id":       taskID,
			"dependency_id": dependencyID,
			"reason":        rejectionReason(err),
		})
		return fmt.Errorf("adding dependency: %w", err)
	}
	if err := s.commit(patches); err != nil {
		return fmt.Errorf("adding dependency: %w", err)
	}
	s.logEvent("dependency.added", map[string]any{"task_id": taskID, "dependency_id": dependencyID})
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrCycle):
		return "cycle"
	case errors.Is(err, ErrDuplicateEdge):
		return "duplicate"
	case errors.Is(err, ErrTaskNotFound):
		return "not_found"
	default:
		return "other"
	}
}

func (s *taskGraphService) RemoveDependency(taskID, dependencyID string) error {
	all, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("removing dependency: %w", err)
	}
	patches, err := s.deps.RemoveDependency(taskID, dependencyID, all)
	if err != nil {
		return fmt.Errorf("removing dependency: %w", err)
	}
	if err := s.commit(patches); err != nil {
		return fmt.Errorf("removing dependency: %w", err)
	}
	s.logEvent("dependency.removed", map[string]any{"task_id": taskID, "dependency_id": dependencyID})
	return nil
}

func (s *taskGraphService) DependencyStatus(taskID string) (*DependencyStatus, error) {
	all, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("dependency status: %w", err)
	}
	task, err := lookup(all, taskID)
	if err != nil {
		return nil, fmt.Errorf("dependency status: %w", err)
	}
	st := s.deps.DependencyStatus(task, all)
	return &st, nil
}

func (s *taskGraphService) Graph() (*Graph, error) {
	all, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	g := s.deps.BuildDependencyGraph(all)
	return &g, nil
}

func (s *taskGraphService) ReadyTasks() ([]models.Task, error) {
	all, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("listing ready tasks: %w", err)
	}
	return s.deps.ReadyTasks(all), nil
}

func (s *taskGraphService) Validate() (*ValidationReport, error) {
	all, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("validating dependencies: %w", err)
	}
	report := s.deps.ValidateDependencies(all)
	return &report, nil
}

func (s *taskGraphService) Reconcile() (int, error) {
	all, err := s.snapshot()
	if err != nil {
		return 0, fmt.Errorf("reconciling: %w", err)
	}
	patches := s.deps.ReconcileBlockedBy(all)
	if err := s.commit(patches); err != nil {
		return 0, fmt.Errorf("reconciling: %w", err)
	}
	return len(patches), nil
}

func (s *taskGraphService) Task(taskID string) (*models.Task, error) {
	all, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	t, err := lookup(all, taskID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Tasks returns every task in tree pre-order.
func (s *taskGraphService) Tasks() ([]models.Task, error) {
	forest, err := s.Tree()
	if err != nil {
		return nil, err
	}
	return s.hierarchy.FlattenTree(forest), nil
}

func (s *taskGraphService) Tree() ([]*TreeNode, error) {
	all, err := s.snapshot()
	if err != nil {
		return nil, fmt.Errorf("building tree: %w", err)
	}
	return s.hierarchy.BuildTree(all), nil
}

// Schedule computes the critical path and slack over the tasks in tree
// order. The dependency graph must be acyclic.
func (s *taskGraphService) Schedule() (*ScheduleResult, error) {
	all, err := s.Tasks()
	if err != nil {
		return nil, fmt.Errorf("scheduling: %w", err)
	}
	if report := s.deps.ValidateDependencies(all); hasCycle(report) {
		return nil, fmt.Errorf("scheduling: %w", ErrCycle)
	}
	working := s.schedule.ToScheduleTasks(all)
	computed, cp := s.schedule.ComputeCriticalPath(working)
	start, end := s.schedule.TimelineRange(computed)
	return &ScheduleResult{
		Tasks:        computed,
		CriticalPath: cp,
		Slack:        s.schedule.ComputeSlack(working),
		Start:        start,
		End:          end,
	}, nil
}

func hasCycle(report ValidationReport) bool {
	for _, e := range report.Errors {
		if e.Kind == ValidationCycle {
			return true
		}
	}
	return false
}

// AutoSchedule shifts tasks after their dependencies and persists the new
// dates of every task that moved. It returns the number of tasks moved.
func (s *taskGraphService) AutoSchedule() (int, error) {
	all, err := s.Tasks()
	if err != nil {
		return 0, fmt.Errorf("auto-scheduling: %w", err)
	}
	if report := s.deps.ValidateDependencies(all); hasCycle(report) {
		return 0, fmt.Errorf("auto-scheduling: %w", ErrCycle)
	}
	working := s.schedule.ToScheduleTasks(all)
	shifted := s.schedule.AutoSchedule(working)

	var patches []models.TaskPatch
	for i, t := range shifted {
		if t.Start.Equal(working[i].Start) {
			continue
		}
		start, end := t.Start, t.End
		patches = append(patches, models.TaskPatch{ID: t.ID, StartDate: &start, EndDate: &end})
	}
	if err := s.commit(patches); err != nil {
		return 0, fmt.Errorf("auto-scheduling: %w", err)
	}
	if len(patches) > 0 {
		s.logEvent("schedule.applied", map[string]any{"count": len(patches), "source": "auto"})
	}
	return len(patches), nil
}

func (s *taskGraphService) Timeline(g models.Granularity) (*Timeline, error) {
	if g == "" {
		g = s.cfg.DefaultGranularity
	}
	if g == "" {
		g = models.GranularityWeek
	}
	if _, err := ParseGranularity(string(g)); err != nil {
		return nil, err
	}
	all, err := s.Tasks()
	if err != nil {
		return nil, fmt.Errorf("building timeline: %w", err)
	}
	start, end := s.schedule.TimelineRange(s.schedule.ToScheduleTasks(all))
	return &Timeline{
		Start:       start,
		End:         end,
		Granularity: g,
		Labels:      s.schedule.GenerateTimelineLabels(start, end, g),
	}, nil
}
