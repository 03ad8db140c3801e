package core

import (
	"fmt"
	"slices"

	"github.com/palazero/v3tasks/pkg/models"
)

// DependencyStatus summarises where a task stands in the dependency graph.
type DependencyStatus struct {
	CanStart       bool          `json:"can_start"`
	DependsOn      []models.Task `json:"depends_on"`
	BlockedBy      []models.Task `json:"blocked_by"`
	Blocking       []models.Task `json:"blocking"`
	CompletionRate float64       `json:"completion_rate"`
}

// GraphNode is a vertex of the exported dependency graph.
type GraphNode struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Status models.TaskStatus `json:"status"`
}

// GraphEdge points from a dependency to the task that waits on it.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a visualization/export view of the dependency relation.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// ValidationErrorKind classifies a finding of ValidateDependencies.
type ValidationErrorKind string

const (
	ValidationDangling ValidationErrorKind = "dangling"
	ValidationCycle    ValidationErrorKind = "cycle"
)

// ValidationError is a single integrity finding.
type ValidationError struct {
	Kind         ValidationErrorKind `json:"kind"`
	TaskID       string              `json:"task_id"`
	DependencyID string              `json:"dependency_id"`
	Message      string              `json:"message"`
}

// ValidationReport is the result of a global integrity sweep.
type ValidationReport struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// DependencyManager validates and mutates predecessor/successor edges between
// tasks. Mutations are returned as patches; nothing is applied here.
type DependencyManager interface {
	CanStart(task models.Task, allTasks []models.Task) bool
	DependenciesOf(task models.Task, allTasks []models.Task) ([]models.Task, error)
	BlockedTasksOf(task models.Task, allTasks []models.Task) ([]models.Task, error)
	WouldCreateCycle(fromID, toID string, allTasks []models.Task) bool
	AddDependency(taskID, dependencyID string, allTasks []models.Task) ([]models.TaskPatch, error)
	RemoveDependency(taskID, dependencyID string, allTasks []models.Task) ([]models.TaskPatch, error)
	DependencyStatus(task models.Task, allTasks []models.Task) DependencyStatus
	BuildDependencyGraph(tasks []models.Task) Graph
	ValidateDependencies(tasks []models.Task) ValidationReport
	ReconcileBlockedBy(tasks []models.Task) []models.TaskPatch
	ReadyTasks(tasks []models.Task) []models.Task
}

type dependencyManager struct{}

// NewDependencyManager creates a stateless DependencyManager.
func NewDependencyManager() DependencyManager {
	return &dependencyManager{}
}

// taskIndex is a by-ID view over a snapshot, built once per call.
type taskIndex struct {
	tasks []models.Task
	byID  map[string]int
}

func newTaskIndex(tasks []models.Task) *taskIndex {
	idx := &taskIndex{tasks: tasks, byID: make(map[string]int, len(tasks))}
	for i, t := range tasks {
		if _, dup := idx.byID[t.ID]; !dup {
			idx.byID[t.ID] = i
		}
	}
	return idx
}

func (x *taskIndex) get(id string) (models.Task, bool) {
	i, ok := x.byID[id]
	if !ok {
		return models.Task{}, false
	}
	return x.tasks[i], true
}

// resolve returns the tasks for ids that exist, skipping unknown ids.
func (x *taskIndex) resolve(ids []string) []models.Task {
	out := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := x.get(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// successors returns every task that lists id as a dependency. It scans
// DependencyIDs rather than trusting the BlockedByIDs cache.
func (x *taskIndex) successors(id string) []models.Task {
	var out []models.Task
	for _, t := range x.tasks {
		if t.DependsOn(id) {
			out = append(out, t)
		}
	}
	return out
}

// reaches reports whether target is reachable from start by following
// DependencyIDs edges. start itself counts as reachable.
func (x *taskIndex) reaches(start, target string) bool {
	visited := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		t, ok := x.get(cur)
		if !ok {
			continue
		}
		for _, dep := range t.DependencyIDs {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return false
}

// CanStart reports whether every resolvable dependency of task is done.
// Dependency IDs that match no task do not block.
func (m *dependencyManager) CanStart(task models.Task, allTasks []models.Task) bool {
	if len(task.DependencyIDs) == 0 {
		return true
	}
	for _, dep := range newTaskIndex(allTasks).resolve(task.DependencyIDs) {
		if dep.Status != models.StatusDone {
			return false
		}
	}
	return true
}

// DependenciesOf returns the resolvable predecessors of task. It fails when
// task itself is not part of allTasks.
func (m *dependencyManager) DependenciesOf(task models.Task, allTasks []models.Task) ([]models.Task, error) {
	idx := newTaskIndex(allTasks)
	if _, ok := idx.get(task.ID); !ok {
		return nil, fmt.Errorf("looking up dependencies of %s: %w", task.ID, ErrTaskNotFound)
	}
	return idx.resolve(task.DependencyIDs), nil
}

// BlockedTasksOf returns the tasks that depend on task. It fails when task
// itself is not part of allTasks.
func (m *dependencyManager) BlockedTasksOf(task models.Task, allTasks []models.Task) ([]models.Task, error) {
	idx := newTaskIndex(allTasks)
	if _, ok := idx.get(task.ID); !ok {
		return nil, fmt.Errorf("looking up tasks blocked by %s: %w", task.ID, ErrTaskNotFound)
	}
	return idx.successors(task.ID), nil
}

// WouldCreateCycle reports whether adding the edge "fromID depends on toID"
// would close a cycle, i.e. whether toID already depends on fromID.
func (m *dependencyManager) WouldCreateCycle(fromID, toID string, allTasks []models.Task) bool {
	return newTaskIndex(allTasks).reaches(toID, fromID)
}

// AddDependency proposes making taskID depend on dependencyID. On success it
// returns two patches that must be applied together.
func (m *dependencyManager) AddDependency(taskID, dependencyID string, allTasks []models.Task) ([]models.TaskPatch, error) {
	idx := newTaskIndex(allTasks)
	task, ok := idx.get(taskID)
	if !ok {
		return nil, graphErrorf(ErrTaskNotFound, taskID, dependencyID, "task %s", taskID)
	}
	dep, ok := idx.get(dependencyID)
	if !ok {
		return nil, graphErrorf(ErrTaskNotFound, taskID, dependencyID, "dependency %s", dependencyID)
	}
	if task.DependsOn(dependencyID) {
		return nil, graphErrorf(ErrDuplicateEdge, taskID, dependencyID, "%s already depends on %s", taskID, dependencyID)
	}
	if idx.reaches(dependencyID, taskID) {
		return nil, graphErrorf(ErrCycle, taskID, dependencyID, "%s already depends on %s", dependencyID, taskID)
	}

	blockedBy := slices.Clone(dep.BlockedByIDs)
	if !slices.Contains(blockedBy, taskID) {
		blockedBy = append(blockedBy, taskID)
	}
	return []models.TaskPatch{
		{ID: taskID, DependencyIDs: append(slices.Clone(task.DependencyIDs), dependencyID)},
		{ID: dependencyID, BlockedByIDs: blockedBy},
	}, nil
}

// RemoveDependency proposes dropping the edge between taskID and
// dependencyID. Removing a missing edge is a valid no-op change.
func (m *dependencyManager) RemoveDependency(taskID, dependencyID string, allTasks []models.Task) ([]models.TaskPatch, error) {
	idx := newTaskIndex(allTasks)
	task, ok := idx.get(taskID)
	if !ok {
		return nil, graphErrorf(ErrTaskNotFound, taskID, dependencyID, "task %s", taskID)
	}
	dep, ok := idx.get(dependencyID)
	if !ok {
		return nil, graphErrorf(ErrTaskNotFound, taskID, dependencyID, "dependency %s", dependencyID)
	}
	return []models.TaskPatch{
		{ID: taskID, DependencyIDs: without(task.DependencyIDs, dependencyID)},
		{ID: dependencyID, BlockedByIDs: without(dep.BlockedByIDs, taskID)},
	}, nil
}

// DependencyStatus reports readiness and progress of task's predecessors.
func (m *dependencyManager) DependencyStatus(task models.Task, allTasks []models.Task) DependencyStatus {
	idx := newTaskIndex(allTasks)
	dependsOn := idx.resolve(task.DependencyIDs)

	status := DependencyStatus{
		DependsOn:      dependsOn,
		BlockedBy:      []models.Task{},
		Blocking:       idx.successors(task.ID),
		CompletionRate: 1,
	}
	done := 0
	for _, d := range dependsOn {
		if d.Status == models.StatusDone {
			done++
		} else {
			status.BlockedBy = append(status.BlockedBy, d)
		}
	}
	if len(dependsOn) > 0 {
		status.CompletionRate = float64(done) / float64(len(dependsOn))
	}
	status.CanStart = len(status.BlockedBy) == 0
	return status
}

// BuildDependencyGraph exports the dependency relation as nodes and
// dependency -> task edges. Edges to unknown tasks are left out.
func (m *dependencyManager) BuildDependencyGraph(tasks []models.Task) Graph {
	idx := newTaskIndex(tasks)
	g := Graph{
		Nodes: make([]GraphNode, 0, len(tasks)),
		Edges: []GraphEdge{},
	}
	for _, t := range tasks {
		g.Nodes = append(g.Nodes, GraphNode{ID: t.ID, Title: t.Title, Status: t.Status})
		for _, dep := range t.DependencyIDs {
			if _, ok := idx.get(dep); ok {
				g.Edges = append(g.Edges, GraphEdge{From: dep, To: t.ID})
			}
		}
	}
	return g
}

// ValidateDependencies flags dangling dependency ids and edges that sit on a
// cycle. It never fails; findings are returned in the report.
func (m *dependencyManager) ValidateDependencies(tasks []models.Task) ValidationReport {
	idx := newTaskIndex(tasks)
	report := ValidationReport{Errors: []ValidationError{}}
	for _, t := range tasks {
		for _, dep := range t.DependencyIDs {
			if _, ok := idx.get(dep); !ok {
				report.Errors = append(report.Errors, ValidationError{
					Kind:         ValidationDangling,
					TaskID:       t.ID,
					DependencyID: dep,
					Message:      fmt.Sprintf("task %s depends on unknown task %s", t.ID, dep),
				})
				continue
			}
			if idx.reaches(dep, t.ID) {
				report.Errors = append(report.Errors, ValidationError{
					Kind:         ValidationCycle,
					TaskID:       t.ID,
					DependencyID: dep,
					Message:      fmt.Sprintf("dependency %s -> %s is part of a cycle", dep, t.ID),
				})
			}
		}
	}
	report.Valid = len(report.Errors) == 0
	return report
}

// ReconcileBlockedBy recomputes every BlockedByIDs cache from DependencyIDs
// and returns patches for the tasks whose cache has drifted.
func (m *dependencyManager) ReconcileBlockedBy(tasks []models.Task) []models.TaskPatch {
	expected := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		for _, dep := range t.DependencyIDs {
			if !slices.Contains(expected[dep], t.ID) {
				expected[dep] = append(expected[dep], t.ID)
			}
		}
	}

	var patches []models.TaskPatch
	for _, t := range tasks {
		want := expected[t.ID]
		if sameSet(t.BlockedByIDs, want) {
			continue
		}
		if want == nil {
			want = []string{}
		}
		patches = append(patches, models.TaskPatch{ID: t.ID, BlockedByIDs: want})
	}
	return patches
}

// ReadyTasks returns the open tasks whose dependencies are all done.
func (m *dependencyManager) ReadyTasks(tasks []models.Task) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if t.Status == models.StatusDone || t.Status == models.StatusCancelled {
			continue
		}
		if m.CanStart(t, tasks) {
			out = append(out, t)
		}
	}
	return out
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(slices.Compact(as), slices.Compact(bs))
}
