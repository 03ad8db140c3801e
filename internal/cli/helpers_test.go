package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/internal/storage"
	"github.com/palazero/v3tasks/pkg/models"
)

// captureStdout captures stdout output during fn execution.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	return string(out)
}

// useTaskGraph installs a task graph backed by a temporary tasks.yaml as the
// package-level TaskGraph and restores the previous one on cleanup.
func useTaskGraph(t *testing.T) core.TaskGraphService {
	t.Helper()
	orig := TaskGraph
	t.Cleanup(func() { TaskGraph = orig })

	store := storage.NewTaskStore(filepath.Join(t.TempDir(), "tasks.yaml"))
	TaskGraph = core.NewTaskGraphService(store, nil, nil)
	return TaskGraph
}

// useTaskGraphYAML is like useTaskGraph but seeds tasks.yaml with content,
// which lets tests load graphs the service itself would refuse to build.
func useTaskGraphYAML(t *testing.T, content string) core.TaskGraphService {
	t.Helper()
	orig := TaskGraph
	t.Cleanup(func() { TaskGraph = orig })

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing tasks.yaml: %v", err)
	}
	TaskGraph = core.NewTaskGraphService(storage.NewTaskStore(path), nil, nil)
	return TaskGraph
}

// cyclicTasksYAML holds two tasks that depend on each other.
const cyclicTasksYAML = `version: "1.0"
tasks:
  a:
    id: a
    title: Alpha
    order: 1000
    level: 0
    status: todo
    priority: medium
    dependency_ids: [b]
    blocked_by_ids: [b]
  b:
    id: b
    title: Beta
    order: 2000
    level: 0
    status: todo
    priority: medium
    dependency_ids: [a]
    blocked_by_ids: [a]
`

// withoutTaskGraph clears TaskGraph for the duration of the test.
func withoutTaskGraph(t *testing.T) {
	t.Helper()
	orig := TaskGraph
	t.Cleanup(func() { TaskGraph = orig })
	TaskGraph = nil
}

func mustCreateTask(t *testing.T, g core.TaskGraphService, in core.NewTaskInput) *models.Task {
	t.Helper()
	task, err := g.CreateTask(in)
	if err != nil {
		t.Fatalf("CreateTask(%q): %v", in.Title, err)
	}
	return task
}

func day(d int) *time.Time {
	v := time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
	return &v
}

// setFlagVar sets a flag-bound package variable and restores it on cleanup.
func setFlagVar[T any](t *testing.T, p *T, v T) {
	t.Helper()
	orig := *p
	t.Cleanup(func() { *p = orig })
	*p = v
}
