// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the v3t task graph as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/internal/observability"
	"github.com/palazero/v3tasks/pkg/models"
)

// Server wraps v3t services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	graph       core.TaskGraphService
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server over the given task graph.
// metricsCalc and alertEngine may be nil if observability is disabled.
func NewServer(graph core.TaskGraphService, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		graph:       graph,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "v3t", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskOutput struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	ParentID     string   `json:"parent_id,omitempty"`
	Level        int      `json:"level"`
	Order        float64  `json:"order"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	StartDate    string   `json:"start_date,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	BlockedBy    []string `json:"blocked_by,omitempty"`
}

type getTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task identifier"`
}

type listTasksInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter tasks by status (todo, in_progress, done, cancelled)"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type getTreeInput struct{}

// treeNodeOutput is one task of the flattened tree. Nodes are listed in
// pre-order so a client can rebuild the nesting from Depth alone.
type treeNodeOutput struct {
	Task     taskOutput `json:"task"`
	Depth    int        `json:"depth"`
	ChildIDs []string   `json:"child_ids"`
}

type getTreeOutput struct {
	RootIDs []string         `json:"root_ids"`
	Nodes   []treeNodeOutput `json:"nodes"`
}

type createTaskInput struct {
	Title    string `json:"title" jsonschema:"required,the task title"`
	ParentID string `json:"parent_id,omitempty" jsonschema:"optional parent task ID; the task becomes its last child"`
	Priority string `json:"priority,omitempty" jsonschema:"low, medium, high or urgent"`
}

type updateTaskStatusInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the task identifier"`
	Status string `json:"status" jsonschema:"required,the new status (todo, in_progress, done, cancelled)"`
}

type updateTaskPriorityInput struct {
	TaskID   string `json:"task_id" jsonschema:"required,the task identifier"`
	Priority string `json:"priority" jsonschema:"required,the new priority (urgent, high, medium, low)"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type dependencyInput struct {
	TaskID       string `json:"task_id" jsonschema:"required,the task that waits"`
	DependencyID string `json:"dependency_id" jsonschema:"required,the task that must finish first"`
}

type dependencyStatusOutput struct {
	CanStart       bool     `json:"can_start"`
	DependsOn      []string `json:"depends_on"`
	BlockedBy      []string `json:"blocked_by"`
	Blocking       []string `json:"blocking"`
	CompletionRate float64  `json:"completion_rate"`
}

type emptyInput struct{}

type moveTaskInput struct {
	TaskID   string `json:"task_id" jsonschema:"required,the task to move"`
	TargetID string `json:"target_id" jsonschema:"required,the task to move relative to"`
	Position string `json:"position" jsonschema:"required,before, after or child"`
}

type scheduleTaskOutput struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	EarlyStart  string  `json:"early_start"`
	EarlyFinish string  `json:"early_finish"`
	LateStart   string  `json:"late_start"`
	LateFinish  string  `json:"late_finish"`
	SlackDays   float64 `json:"slack_days"`
	Critical    bool    `json:"critical"`
}

type criticalPathOutput struct {
	TaskIDs       []string             `json:"task_ids"`
	TotalDuration float64              `json:"total_duration_days"`
	EndDate       string               `json:"end_date,omitempty"`
	Tasks         []scheduleTaskOutput `json:"tasks"`
}

type autoScheduleOutput struct {
	Rescheduled int `json:"rescheduled"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
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
	EventCount          int            `json:"event_count"`
	OldestEvent         string         `json:"oldest_event,omitempty"`
	NewestEvent         string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get a task by ID, including its parent, level, dates and dependency edges.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks in outline order with an optional status filter.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_tree",
		Description: "Return the task hierarchy as nested roots and children, siblings ordered.",
	}, s.handleGetTree)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a task, optionally as the last child of a parent task.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_status",
		Description: "Update a task's status. Valid statuses: todo, in_progress, done, cancelled.",
	}, s.handleUpdateTaskStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_priority",
		Description: "Update a task's priority. Valid priorities: urgent, high, medium, low.",
	}, s.handleUpdateTaskPriority)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_task",
		Description: "Move a task before, after or under a target task. Moving a task into its own subtree is rejected.",
	}, s.handleMoveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_dependency",
		Description: "Make task_id wait for dependency_id (finish-to-start). Rejected if it would create a cycle.",
	}, s.handleAddDependency)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "remove_dependency",
		Description: "Remove the edge between task_id and dependency_id.",
	}, s.handleRemoveDependency)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "dependency_status",
		Description: "Report whether a task can start, what it depends on, what still blocks it and what it blocks.",
	}, s.handleDependencyStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "validate_dependencies",
		Description: "Check every dependency edge for dangling references and cycles.",
	}, s.handleValidateDependencies)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "critical_path",
		Description: "Compute the CPM schedule: early/late dates, slack per task and the critical path.",
	}, s.handleCriticalPath)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "auto_schedule",
		Description: "Shift every task to its earliest start given its dependencies and save the new dates.",
	}, s.handleAutoSchedule)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated task graph activity from the event log.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (stale tasks, too many open tasks, repeated rejected dependencies).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	task, err := s.graph.Task(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(*task), nil
}

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if input.Status != "" && !models.TaskStatus(input.Status).IsValid() {
		return errorResult(fmt.Sprintf("invalid status %q: must be one of todo, in_progress, done, cancelled", input.Status)), listTasksOutput{}, nil
	}

	tasks, err := s.graph.Tasks()
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{Tasks: make([]taskOutput, 0, len(tasks))}
	for _, t := range tasks {
		if input.Status != "" && string(t.Status) != input.Status {
			continue
		}
		out.Tasks = append(out.Tasks, taskToOutput(t))
	}
	out.Count = len(out.Tasks)
	return nil, out, nil
}

func (s *Server) handleGetTree(_ context.Context, _ *gomcp.CallToolRequest, _ getTreeInput) (*gomcp.CallToolResult, getTreeOutput, error) {
	forest, err := s.graph.Tree()
	if err != nil {
		return errorResult(fmt.Sprintf("building tree: %s", err)), getTreeOutput{}, nil
	}
	return nil, flattenTree(forest), nil
}

func (s *Server) handleCreateTask(_ context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Title == "" {
		return errorResult("title is required"), taskOutput{}, nil
	}

	task, err := s.graph.CreateTask(core.NewTaskInput{
		Title:    input.Title,
		ParentID: input.ParentID,
		Priority: models.Priority(input.Priority),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("creating task: %s", err)), taskOutput{}, nil
	}
	return nil, taskToOutput(*task), nil
}

func (s *Server) handleUpdateTaskStatus(_ context.Context, _ *gomcp.CallToolRequest, input updateTaskStatusInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), messageOutput{}, nil
	}
	status := models.TaskStatus(input.Status)
	if !status.IsValid() {
		return errorResult(fmt.Sprintf("invalid status %q: must be one of todo, in_progress, done, cancelled", input.Status)), messageOutput{}, nil
	}

	if err := s.graph.SetStatus(input.TaskID, status); err != nil {
		return errorResult(fmt.Sprintf("updating task %s status: %s", input.TaskID, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s status updated to %s", input.TaskID, status)}, nil
}

func (s *Server) handleUpdateTaskPriority(_ context.Context, _ *gomcp.CallToolRequest, input updateTaskPriorityInput) (*gomcp.CallToolResult, messageOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), messageOutput{}, nil
	}
	priority := models.Priority(input.Priority)
	if !priority.IsValid() {
		return errorResult(fmt.Sprintf("invalid priority %q: must be one of urgent, high, medium, low", input.Priority)), messageOutput{}, nil
	}

	if err := s.graph.SetPriority(input.TaskID, priority); err != nil {
		return errorResult(fmt.Sprintf("updating task %s priority: %s", input.TaskID, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s priority updated to %s", input.TaskID, priority)}, nil
}

func (s *Server) handleMoveTask(_ context.Context, _ *gomcp.CallToolRequest, input moveTaskInput) (*gomcp.CallToolResult, messageOutput, error) {
	pos, err := core.ParsePosition(input.Position)
	if err != nil {
		return errorResult(err.Error()), messageOutput{}, nil
	}
	if err := s.graph.Move(input.TaskID, input.TargetID, pos); err != nil {
		return errorResult(fmt.Sprintf("moving task %s: %s", input.TaskID, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s moved %s %s", input.TaskID, pos, input.TargetID)}, nil
}

func (s *Server) handleAddDependency(_ context.Context, _ *gomcp.CallToolRequest, input dependencyInput) (*gomcp.CallToolResult, messageOutput, error) {
	if err := s.graph.AddDependency(input.TaskID, input.DependencyID); err != nil {
		return errorResult(err.Error()), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s now depends on %s", input.TaskID, input.DependencyID)}, nil
}

func (s *Server) handleRemoveDependency(_ context.Context, _ *gomcp.CallToolRequest, input dependencyInput) (*gomcp.CallToolResult, messageOutput, error) {
	if err := s.graph.RemoveDependency(input.TaskID, input.DependencyID); err != nil {
		return errorResult(err.Error()), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %s no longer depends on %s", input.TaskID, input.DependencyID)}, nil
}

func (s *Server) handleDependencyStatus(_ context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, dependencyStatusOutput, error) {
	ds, err := s.graph.DependencyStatus(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("dependency status of %s: %s", input.TaskID, err)), dependencyStatusOutput{}, nil
	}
	return nil, dependencyStatusOutput{
		CanStart:       ds.CanStart,
		DependsOn:      taskIDs(ds.DependsOn),
		BlockedBy:      taskIDs(ds.BlockedBy),
		Blocking:       taskIDs(ds.Blocking),
		CompletionRate: ds.CompletionRate,
	}, nil
}

func (s *Server) handleValidateDependencies(_ context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, core.ValidationReport, error) {
	report, err := s.graph.Validate()
	if err != nil {
		return errorResult(fmt.Sprintf("validating dependencies: %s", err)), core.ValidationReport{}, nil
	}
	if report.Errors == nil {
		report.Errors = []core.ValidationError{}
	}
	return nil, *report, nil
}

func (s *Server) handleCriticalPath(_ context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, criticalPathOutput, error) {
	res, err := s.graph.Schedule()
	if err != nil {
		return errorResult(fmt.Sprintf("computing schedule: %s", err)), criticalPathOutput{}, nil
	}

	out := criticalPathOutput{
		TaskIDs:       res.CriticalPath.TaskIDs,
		TotalDuration: res.CriticalPath.TotalDuration,
		Tasks:         make([]scheduleTaskOutput, len(res.Tasks)),
	}
	if out.TaskIDs == nil {
		out.TaskIDs = []string{}
	}
	if !res.CriticalPath.EndDate.IsZero() {
		out.EndDate = res.CriticalPath.EndDate.Format(time.RFC3339)
	}
	for i, t := range res.Tasks {
		out.Tasks[i] = scheduleTaskOutput{
			ID:          t.ID,
			Title:       t.Title,
			EarlyStart:  t.EarlyStart.Format(time.RFC3339),
			EarlyFinish: t.EarlyFinish.Format(time.RFC3339),
			LateStart:   t.LateStart.Format(time.RFC3339),
			LateFinish:  t.LateFinish.Format(time.RFC3339),
			SlackDays:   res.Slack[t.ID],
			Critical:    t.Critical,
		}
	}
	return nil, out, nil
}

func (s *Server) handleAutoSchedule(_ context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, autoScheduleOutput, error) {
	n, err := s.graph.AutoSchedule()
	if err != nil {
		return errorResult(fmt.Sprintf("auto-scheduling: %s", err)), autoScheduleOutput{}, nil
	}
	return nil, autoScheduleOutput{Rescheduled: n}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:        metrics.TasksCreated,
		TasksDeleted:        metrics.TasksDeleted,
		TasksCompleted:      metrics.TasksCompleted,
		TasksMoved:          metrics.TasksMoved,
		Reprioritized:       metrics.Reprioritized,
		TasksByStatus:       metrics.TasksByStatus,
		DependenciesAdded:   metrics.DependenciesAdded,
		DependenciesRemoved: metrics.DependenciesRemoved,
		RejectedEdges:       metrics.RejectedEdges,
		SchedulesApplied:    metrics.SchedulesApplied,
		TasksRescheduled:    metrics.TasksRescheduled,
		EventCount:          metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:           t.ID,
		Title:        t.Title,
		ParentID:     t.ParentID,
		Level:        t.Level,
		Order:        t.Order,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		Dependencies: t.DependencyIDs,
		BlockedBy:    t.BlockedByIDs,
	}
	if t.StartDate != nil {
		out.StartDate = t.StartDate.Format(time.DateOnly)
	}
	if t.EndDate != nil {
		out.EndDate = t.EndDate.Format(time.DateOnly)
	}
	return out
}

func flattenTree(forest []*core.TreeNode) getTreeOutput {
	type frame struct {
		node  *core.TreeNode
		depth int
	}

	out := getTreeOutput{RootIDs: make([]string, len(forest)), Nodes: []treeNodeOutput{}}
	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		out.RootIDs[i] = forest[i].Task.ID
		stack = append(stack, frame{node: forest[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		childIDs := make([]string, len(f.node.Children))
		for i, c := range f.node.Children {
			childIDs[i] = c.Task.ID
		}
		out.Nodes = append(out.Nodes, treeNodeOutput{
			Task:     taskToOutput(f.node.Task),
			Depth:    f.depth,
			ChildIDs: childIDs,
		})
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: f.node.Children[i], depth: f.depth + 1})
		}
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		TasksByStatus: make(map[string]int),
		RejectedEdges: make(map[string]int),
	}
}

func taskIDs(tasks []models.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
