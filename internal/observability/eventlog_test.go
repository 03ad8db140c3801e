package observability

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestEventLog(t *testing.T) (EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func writeAll(t *testing.T, log EventLog, events []Event) {
	t.Helper()
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log, _ := newTestEventLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	writeAll(t, log, []Event{
		{
			Time:    now,
			Level:   LevelInfo,
			Type:    EventTaskCreated,
			Message: "task created",
			Data:    map[string]any{"task_id": "a"},
		},
		{
			Time:    now.Add(time.Second),
			Level:   LevelWarn,
			Type:    EventDependencyRejected,
			Message: "dependency rejected",
			Data:    map[string]any{"task_id": "a", "dependency_id": "b", "reason": "cycle"},
		},
	})

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Type != EventTaskCreated {
		t.Errorf("expected type %s, got %s", EventTaskCreated, result[0].Type)
	}
	if result[0].TaskID() != "a" {
		t.Errorf("expected task_id a, got %q", result[0].TaskID())
	}
	if result[1].Level != LevelWarn {
		t.Errorf("expected level WARN, got %s", result[1].Level)
	}
}

func TestEventLog_WriteDefaults(t *testing.T) {
	log, _ := newTestEventLog(t)
	writeAll(t, log, []Event{{Type: EventOrderNormalized}})

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result))
	}
	if result[0].Time.IsZero() {
		t.Error("expected time to be stamped")
	}
	if result[0].Level != LevelInfo {
		t.Errorf("expected default level INFO, got %s", result[0].Level)
	}
}

func TestEventLog_Filters(t *testing.T) {
	log, _ := newTestEventLog(t)

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	writeAll(t, log, []Event{
		{Time: base, Level: LevelInfo, Type: EventTaskCreated, Message: "first", Data: map[string]any{"task_id": "a"}},
		{Time: base.Add(time.Hour), Level: LevelInfo, Type: EventDependencyAdded, Message: "second", Data: map[string]any{"task_id": "b"}},
		{Time: base.Add(2 * time.Hour), Level: LevelWarn, Type: EventDependencyRejected, Message: "third", Data: map[string]any{"task_id": "a"}},
		{Time: base.Add(3 * time.Hour), Level: LevelInfo, Type: EventTaskCreated, Message: "fourth", Data: map[string]any{"task_id": "c"}},
	})

	since := base.Add(30 * time.Minute)
	until := base.Add(2*time.Hour + 30*time.Minute)

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"all", EventFilter{}, []string{"first", "second", "third", "fourth"}},
		{"by type", EventFilter{Type: EventTaskCreated}, []string{"first", "fourth"}},
		{"by level", EventFilter{Level: LevelWarn}, []string{"third"}},
		{"by task", EventFilter{TaskID: "a"}, []string{"first", "third"}},
		{"by time range", EventFilter{Since: &since, Until: &until}, []string{"second", "third"}},
		{"combined", EventFilter{Since: &since, TaskID: "a"}, []string{"third"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := log.Read(tt.filter)
			if err != nil {
				t.Fatalf("reading events: %v", err)
			}
			if len(result) != len(tt.want) {
				t.Fatalf("expected %d events, got %d", len(tt.want), len(result))
			}
			for i, msg := range tt.want {
				if result[i].Message != msg {
					t.Errorf("event %d: expected %q, got %q", i, msg, result[i].Message)
				}
			}
		})
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	log, path := newTestEventLog(t)
	writeAll(t, log, []Event{{Type: EventTaskCreated, Message: "ok"}})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("not json\n\n")
	_ = f.Close()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected malformed lines to be skipped, got %d events", len(result))
	}
}

func TestEventLog_EmptyLog(t *testing.T) {
	log, _ := newTestEventLog(t)

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading empty log: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected 0 events from empty log, got %d", len(result))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log, _ := newTestEventLog(t)

	const goroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := range goroutines {
		go func(id int) {
			defer wg.Done()
			for i := range eventsPerGoroutine {
				event := Event{
					Type:    EventTaskMoved,
					Message: "concurrent event",
					Data:    map[string]any{"goroutine": id, "index": i},
				}
				if err := log.Write(event); err != nil {
					t.Errorf("concurrent write error: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events after concurrent writes: %v", err)
	}
	if expected := goroutines * eventsPerGoroutine; len(result) != expected {
		t.Errorf("expected %d events, got %d", expected, len(result))
	}
}
