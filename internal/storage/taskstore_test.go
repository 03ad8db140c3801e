package storage

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/palazero/v3tasks/pkg/models"
)

func newTestTaskStore(t *testing.T) *fileTaskStore {
	t.Helper()
	dir := t.TempDir()
	return NewTaskStore(filepath.Join(dir, "tasks.yaml")).(*fileTaskStore)
}

func sampleTask(id string) models.Task {
	return models.Task{
		ID:       id,
		Title:    "Test task " + id,
		Status:   models.StatusTodo,
		Priority: models.PriorityMedium,
		Order:    1000,
	}
}

func mustAdd(t *testing.T, s TaskStore, task models.Task) models.Task {
	t.Helper()
	got, err := s.Add(task)
	if err != nil {
		t.Fatalf("unexpected error adding %q: %v", task.ID, err)
	}
	return got
}

func TestTaskStore_Add(t *testing.T) {
	s := newTestTaskStore(t)
	added := mustAdd(t, s, sampleTask("a"))

	if added.Created.IsZero() || added.Updated.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Test task a" {
		t.Fatalf("expected title %q, got %q", "Test task a", got.Title)
	}
}

func TestTaskStore_Add_AssignsID(t *testing.T) {
	s := newTestTaskStore(t)
	a := mustAdd(t, s, models.Task{Title: "first"})
	b := mustAdd(t, s, models.Task{Title: "second"})

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected generated IDs")
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct IDs, both were %q", a.ID)
	}
	if a.Status != models.StatusTodo {
		t.Fatalf("expected default status todo, got %q", a.Status)
	}
}

func TestTaskStore_Add_Duplicate(t *testing.T) {
	s := newTestTaskStore(t)
	mustAdd(t, s, sampleTask("a"))
	if _, err := s.Add(sampleTask("a")); err == nil {
		t.Fatal("expected error for duplicate ID")
	}
}

func TestTaskStore_Add_InvalidStatus(t *testing.T) {
	s := newTestTaskStore(t)
	task := sampleTask("a")
	task.Status = "blocked"
	if _, err := s.Add(task); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestTaskStore_Get_NotFound(t *testing.T) {
	s := newTestTaskStore(t)
	if _, err := s.Get("missing"); err == nil {
		t.Fatal("expected error for missing task")
	}
}

func TestTaskStore_Get_ReturnsCopy(t *testing.T) {
	s := newTestTaskStore(t)
	task := sampleTask("a")
	task.DependencyIDs = []string{"b"}
	mustAdd(t, s, task)

	got, _ := s.Get("a")
	got.DependencyIDs[0] = "mutated"

	again, _ := s.Get("a")
	if again.DependencyIDs[0] != "b" {
		t.Fatalf("store was mutated through returned task: %v", again.DependencyIDs)
	}
}

func TestTaskStore_All_SortedByID(t *testing.T) {
	s := newTestTaskStore(t)
	for _, id := range []string{"c", "a", "b"} {
		mustAdd(t, s, sampleTask(id))
	}
	all, err := s.All()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []string
	for _, task := range all {
		ids = append(ids, task.ID)
	}
	if !slices.Equal(ids, []string{"a", "b", "c"}) {
		t.Fatalf("expected sorted IDs, got %v", ids)
	}
}

func TestTaskStore_Remove_ScrubsReferences(t *testing.T) {
	s := newTestTaskStore(t)

	parent := sampleTask("parent")
	mid := sampleTask("mid")
	mid.ParentID = "parent"
	mid.Level = 1
	mid.DependencyIDs = []string{"other"}
	leaf := sampleTask("leaf")
	leaf.ParentID = "mid"
	leaf.Level = 2
	other := sampleTask("other")
	other.BlockedByIDs = []string{"mid", "dependent"}
	dependent := sampleTask("dependent")
	dependent.DependencyIDs = []string{"mid", "other"}

	for _, task := range []models.Task{parent, mid, leaf, other, dependent} {
		mustAdd(t, s, task)
	}

	if err := s.Remove("mid"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.Get("mid"); err == nil {
		t.Fatal("expected removed task to be gone")
	}
	gotLeaf, _ := s.Get("leaf")
	if gotLeaf.ParentID != "parent" {
		t.Fatalf("expected leaf to move to parent, got %q", gotLeaf.ParentID)
	}
	if gotLeaf.Level != 1 {
		t.Fatalf("expected leaf level 1, got %d", gotLeaf.Level)
	}
	gotOther, _ := s.Get("other")
	if !slices.Equal(gotOther.BlockedByIDs, []string{"dependent"}) {
		t.Fatalf("expected other blocked_by [dependent], got %v", gotOther.BlockedByIDs)
	}
	gotDependent, _ := s.Get("dependent")
	if !slices.Equal(gotDependent.DependencyIDs, []string{"other"}) {
		t.Fatalf("expected dependent deps [other], got %v", gotDependent.DependencyIDs)
	}
}

func TestTaskStore_Remove_NotFound(t *testing.T) {
	s := newTestTaskStore(t)
	if err := s.Remove("missing"); err == nil {
		t.Fatal("expected error for missing task")
	}
}

func TestTaskStore_Apply(t *testing.T) {
	s := newTestTaskStore(t)
	mustAdd(t, s, sampleTask("a"))
	mustAdd(t, s, sampleTask("b"))

	order := 1500.0
	done := models.StatusDone
	err := s.Apply([]models.TaskPatch{
		{ID: "a", Order: &order},
		{ID: "b", Status: &done, DependencyIDs: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := s.Get("a")
	if a.Order != 1500 {
		t.Fatalf("expected order 1500, got %v", a.Order)
	}
	b, _ := s.Get("b")
	if b.Status != models.StatusDone || !slices.Equal(b.DependencyIDs, []string{"a"}) {
		t.Fatalf("patch not applied to b: %+v", b)
	}
}

func TestTaskStore_Apply_AllOrNothing(t *testing.T) {
	s := newTestTaskStore(t)
	mustAdd(t, s, sampleTask("a"))

	order := 42.0
	err := s.Apply([]models.TaskPatch{
		{ID: "a", Order: &order},
		{ID: "missing", Order: &order},
	})
	if err == nil {
		t.Fatal("expected error for unknown task in batch")
	}
	a, _ := s.Get("a")
	if a.Order != 1000 {
		t.Fatalf("expected first patch to be rolled back, order is %v", a.Order)
	}
}

func TestTaskStore_Apply_InvalidStatus(t *testing.T) {
	s := newTestTaskStore(t)
	mustAdd(t, s, sampleTask("a"))

	bad := models.TaskStatus("archived")
	if err := s.Apply([]models.TaskPatch{{ID: "a", Status: &bad}}); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestTaskStore_Apply_InvalidPriority(t *testing.T) {
	s := newTestTaskStore(t)
	mustAdd(t, s, sampleTask("a"))

	bad := models.Priority("P0")
	if err := s.Apply([]models.TaskPatch{{ID: "a", Priority: &bad}}); err == nil {
		t.Fatal("expected error for invalid priority")
	}
	if got, _ := s.Get("a"); got.Priority != models.PriorityMedium {
		t.Errorf("priority changed to %s after rejected patch", got.Priority)
	}
}

func TestTaskStore_SaveAndLoad(t *testing.T) {
	s := newTestTaskStore(t)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * models.Day)

	task := sampleTask("a")
	task.StartDate = &start
	task.EndDate = &end
	task.DependencyIDs = []string{"b"}
	mustAdd(t, s, task)
	b := sampleTask("b")
	b.BlockedByIDs = []string{"a"}
	mustAdd(t, s, b)

	if err := s.Save(); err != nil {
		t.Fatalf("unexpected error saving: %v", err)
	}

	s2 := NewTaskStore(s.path)
	if err := s2.Load(); err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	all, _ := s2.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}
	got, _ := s2.Get("a")
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Fatalf("start date mismatch: %v", got.StartDate)
	}
	if got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Fatalf("end date mismatch: %v", got.EndDate)
	}
	if !slices.Equal(got.DependencyIDs, []string{"b"}) {
		t.Fatalf("dependency mismatch: %v", got.DependencyIDs)
	}
}

func TestTaskStore_Load_NoFile(t *testing.T) {
	s := newTestTaskStore(t)
	if err := s.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all, _ := s.All()
	if len(all) != 0 {
		t.Fatalf("expected empty store, got %d tasks", len(all))
	}
}

func TestTaskStore_Load_InvalidYAML(t *testing.T) {
	s := newTestTaskStore(t)
	if err := os.WriteFile(s.path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestTaskStore_Load_FillsMissingIDs(t *testing.T) {
	s := newTestTaskStore(t)
	content := "version: \"1.0\"\ntasks:\n  abc:\n    title: keyed only\n    status: todo\n"
	if err := os.WriteFile(s.path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Get("abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "abc" {
		t.Fatalf("expected ID filled from key, got %q", got.ID)
	}
}
