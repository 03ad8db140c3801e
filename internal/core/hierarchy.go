package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/palazero/v3tasks/pkg/models"
)

// Position says where Reorder places the dragged task relative to the target.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
	PositionChild  Position = "child"
)

// ParsePosition converts user input into a Position.
func ParsePosition(s string) (Position, error) {
	switch p := Position(strings.ToLower(strings.TrimSpace(s))); p {
	case PositionBefore, PositionAfter, PositionChild:
		return p, nil
	default:
		return "", fmt.Errorf("invalid position %q: must be one of before, after, child", s)
	}
}

// TreeNode is one task in a forest built by BuildTree.
type TreeNode struct {
	Task     models.Task
	Children []*TreeNode
}

// HierarchyManager organizes tasks into a parent/child forest and proposes
// the patches needed to indent, outdent and reorder them. It never mutates
// its inputs.
type HierarchyManager interface {
	BuildTree(tasks []models.Task) []*TreeNode
	FlattenTree(forest []*TreeNode) []models.Task
	CreateChild(parent models.Task, title string, allTasks []models.Task) models.Task
	Indent(task models.Task, allTasks []models.Task) *models.TaskPatch
	Outdent(task models.Task, allTasks []models.Task) *models.TaskPatch
	Reorder(dragged, target models.Task, position Position, allTasks []models.Task) []models.TaskPatch
	NextOrder(siblings []models.Task) float64
	Normalize(tasks []models.Task) []models.TaskPatch
	Descendants(taskID string, allTasks []models.Task) []models.Task
}

type hierarchyManager struct {
	maxLevel int
	spacing  float64
}

// NewHierarchyManager creates a HierarchyManager using the depth limit and
// order spacing from cfg. Zero values fall back to the defaults.
func NewHierarchyManager(cfg models.EngineConfig) HierarchyManager {
	def := models.DefaultEngineConfig()
	h := &hierarchyManager{maxLevel: cfg.MaxLevel, spacing: cfg.OrderSpacing}
	if h.maxLevel <= 0 {
		h.maxLevel = def.MaxLevel
	}
	if h.spacing <= 0 {
		h.spacing = def.OrderSpacing
	}
	return h
}

// BuildTree resolves ParentID references into nested children. Tasks whose
// parent is not in the input become roots. Every level is sorted by Order,
// keeping input order for ties.
func (h *hierarchyManager) BuildTree(tasks []models.Task) []*TreeNode {
	nodes := make(map[string]*TreeNode, len(tasks))
	ordered := make([]*TreeNode, 0, len(tasks))
	for _, t := range tasks {
		n := &TreeNode{Task: t.Clone()}
		if _, dup := nodes[t.ID]; !dup {
			nodes[t.ID] = n
		}
		ordered = append(ordered, n)
	}

	var roots []*TreeNode
	for _, n := range ordered {
		parent, ok := nodes[n.Task.ParentID]
		if n.Task.ParentID == "" || !ok || parent == n {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	sortForest(roots)
	return roots
}

func sortForest(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Task.Order < nodes[j].Task.Order
	})
	for _, n := range nodes {
		sortForest(n.Children)
	}
}

// FlattenTree walks the forest depth-first in pre-order and returns the tasks
// with Level recomputed from their actual depth.
func (h *hierarchyManager) FlattenTree(forest []*TreeNode) []models.Task {
	var out []models.Task
	var walk func(nodes []*TreeNode, level int)
	walk = func(nodes []*TreeNode, level int) {
		for _, n := range nodes {
			t := n.Task.Clone()
			t.Level = level
			out = append(out, t)
			walk(n.Children, level+1)
		}
	}
	walk(forest, 0)
	return out
}

// CreateChild returns the skeleton of a new last child of parent. The ID is
// left empty: identity is assigned by whoever persists the task.
func (h *hierarchyManager) CreateChild(parent models.Task, title string, allTasks []models.Task) models.Task {
	return models.Task{
		Title:    title,
		ParentID: parent.ID,
		Order:    h.NextOrder(childrenOf(parent.ID, allTasks)),
		Level:    parent.Level + 1,
		Status:   models.StatusTodo,
		Priority: models.PriorityMedium,
	}
}

// Indent makes task the last child of its immediately preceding sibling.
// It returns nil when there is no preceding sibling or the task or any of
// its descendants would end up deeper than the configured maximum.
func (h *hierarchyManager) Indent(task models.Task, allTasks []models.Task) *models.TaskPatch {
	if task.Level >= h.maxLevel {
		return nil
	}
	siblings := sortedByOrder(siblingsOf(task.ParentID, allTasks))
	idx := indexOf(siblings, task.ID)
	if idx <= 0 {
		return nil
	}
	prev := siblings[idx-1]
	level := prev.Level + 1
	if level+subtreeHeight(task.ID, allTasks) > h.maxLevel {
		return nil
	}
	return &models.TaskPatch{
		ID:       task.ID,
		ParentID: ptr(prev.ID),
		Order:    ptr(h.NextOrder(childrenOf(prev.ID, allTasks))),
		Level:    ptr(level),
	}
}

// Outdent promotes task to a sibling of its current parent, placed right
// after it. It returns nil for root tasks and when the parent cannot be found.
func (h *hierarchyManager) Outdent(task models.Task, allTasks []models.Task) *models.TaskPatch {
	if task.Level == 0 || task.ParentID == "" {
		return nil
	}
	parent, ok := findTask(allTasks, task.ParentID)
	if !ok {
		return nil
	}
	return &models.TaskPatch{
		ID:       task.ID,
		ParentID: ptr(parent.ParentID),
		Order:    ptr(parent.Order + 0.5),
		Level:    ptr(parent.Level),
	}
}

// Reorder moves dragged before, after, or under target. The first patch is
// always for dragged; descendants follow when the move changes its depth.
// An empty result means the move is not allowed, including moves that would
// push any task of the dragged subtree past the maximum level.
func (h *hierarchyManager) Reorder(dragged, target models.Task, position Position, allTasks []models.Task) []models.TaskPatch {
	if dragged.ID == target.ID {
		return nil
	}
	descendants := h.Descendants(dragged.ID, allTasks)
	if indexOf(descendants, target.ID) >= 0 {
		return nil
	}

	var (
		parentID string
		order    float64
		level    int
	)
	switch position {
	case PositionBefore:
		parentID, order, level = target.ParentID, target.Order-0.5, target.Level
	case PositionAfter:
		parentID, order, level = target.ParentID, target.Order+0.5, target.Level
	case PositionChild:
		if target.Level >= h.maxLevel {
			return nil
		}
		var children []models.Task
		for _, c := range childrenOf(target.ID, allTasks) {
			if c.ID != dragged.ID {
				children = append(children, c)
			}
		}
		parentID, order, level = target.ID, h.NextOrder(children), target.Level+1
	default:
		return nil
	}
	if level+subtreeHeight(dragged.ID, allTasks) > h.maxLevel {
		return nil
	}

	patches := []models.TaskPatch{{
		ID:       dragged.ID,
		ParentID: ptr(parentID),
		Order:    ptr(order),
		Level:    ptr(level),
	}}
	if level == dragged.Level {
		return patches
	}
	for _, d := range descendantDepths(dragged.ID, allTasks) {
		patches = append(patches, models.TaskPatch{ID: d.id, Level: ptr(level + d.depth)})
	}
	return patches
}

// NextOrder returns the order key for a new last sibling.
func (h *hierarchyManager) NextOrder(siblings []models.Task) float64 {
	if len(siblings) == 0 {
		return h.spacing
	}
	maxOrder := siblings[0].Order
	for _, s := range siblings[1:] {
		if s.Order > maxOrder {
			maxOrder = s.Order
		}
	}
	return maxOrder + h.spacing
}

// Normalize reassigns evenly spaced orders within every sibling group while
// keeping relative order. Only tasks whose order changes get a patch.
func (h *hierarchyManager) Normalize(tasks []models.Task) []models.TaskPatch {
	groups := make(map[string][]models.Task)
	var keys []string
	for _, t := range tasks {
		if _, seen := groups[t.ParentID]; !seen {
			keys = append(keys, t.ParentID)
		}
		groups[t.ParentID] = append(groups[t.ParentID], t)
	}

	var patches []models.TaskPatch
	for _, key := range keys {
		for i, t := range sortedByOrder(groups[key]) {
			want := float64(i+1) * h.spacing
			if t.Order != want {
				patches = append(patches, models.TaskPatch{ID: t.ID, Order: ptr(want)})
			}
		}
	}
	return patches
}

// Descendants returns every transitive child of taskID in breadth-first order.
func (h *hierarchyManager) Descendants(taskID string, allTasks []models.Task) []models.Task {
	byID := make(map[string]models.Task, len(allTasks))
	for _, t := range allTasks {
		byID[t.ID] = t
	}
	var out []models.Task
	for _, d := range descendantDepths(taskID, allTasks) {
		out = append(out, byID[d.id])
	}
	return out
}

type descendant struct {
	id    string
	depth int
}

func descendantDepths(rootID string, allTasks []models.Task) []descendant {
	children := make(map[string][]string)
	for _, t := range allTasks {
		if t.ParentID != "" {
			children[t.ParentID] = append(children[t.ParentID], t.ID)
		}
	}

	visited := map[string]bool{rootID: true}
	var out []descendant
	queue := []descendant{{id: rootID}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur.id] {
			if visited[c] {
				continue
			}
			visited[c] = true
			d := descendant{id: c, depth: cur.depth + 1}
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	return out
}

// subtreeHeight is the depth of the deepest descendant of rootID relative
// to rootID, 0 for a leaf.
func subtreeHeight(rootID string, allTasks []models.Task) int {
	height := 0
	for _, d := range descendantDepths(rootID, allTasks) {
		height = max(height, d.depth)
	}
	return height
}

func siblingsOf(parentID string, allTasks []models.Task) []models.Task {
	var out []models.Task
	for _, t := range allTasks {
		if t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out
}

func childrenOf(parentID string, allTasks []models.Task) []models.Task {
	if parentID == "" {
		return nil
	}
	return siblingsOf(parentID, allTasks)
}

func sortedByOrder(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

func indexOf(tasks []models.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func findTask(tasks []models.Task, id string) (models.Task, bool) {
	if i := indexOf(tasks, id); i >= 0 {
		return tasks[i], true
	}
	return models.Task{}, false
}

func ptr[T any](v T) *T {
	return &v
}
