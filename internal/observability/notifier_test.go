package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSlackNotifier_NoAlerts(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL)
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if called {
		t.Fatal("expected no HTTP request for empty alerts")
	}
}

func TestSlackNotifier_SendsAlerts(t *testing.T) {
	var body []byte
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	triggered := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	alerts := []Alert{
		{
			ID:          "open-tasks",
			Condition:   ConditionOpenTasks,
			Severity:    SeverityLow,
			Message:     "30 tasks are still todo, exceeding the maximum of 25",
			TriggeredAt: triggered,
			Observed:    30,
			Limit:       25,
		},
		{
			ID:          "stale-a",
			Condition:   ConditionTaskStale,
			Severity:    SeverityMedium,
			Message:     "task a has had no activity for more than 3 days",
			TriggeredAt: triggered,
			TaskID:      "a",
		},
	}
	if err := NewSlackNotifier(srv.URL).Notify(context.Background(), alerts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("expected application/json, got %q", contentType)
	}
	var msg slackMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	var types []string
	for _, b := range msg.Blocks {
		types = append(types, b.Type)
	}
	want := []string{"header", "section", "section", "divider", "section", "section", "context"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("block layout = %v, want %v", types, want)
	}

	// Medium severity sorts ahead of low.
	if got := msg.Blocks[1].Text.Text; got != "*Stale in-progress tasks*" {
		t.Errorf("first group title = %q", got)
	}
	stale := fieldTexts(msg.Blocks[2])
	if !strings.Contains(stale, "*Task*\n`a`") || !strings.Contains(stale, "MEDIUM") {
		t.Errorf("stale alert fields = %q", stale)
	}
	if !strings.Contains(stale, "2026-01-15 10:30 UTC") {
		t.Errorf("expected trigger time in fields, got %q", stale)
	}
	if got := msg.Blocks[4].Text.Text; got != "*Open task backlog*" {
		t.Errorf("second group title = %q", got)
	}
	if open := fieldTexts(msg.Blocks[5]); !strings.Contains(open, "*Observed*\n30 (limit 25)") || strings.Contains(open, "*Task*") {
		t.Errorf("open tasks alert fields = %q", open)
	}
	if !strings.Contains(msg.Text, "2 task graph alert(s), highest severity medium") {
		t.Errorf("unexpected fallback text %q", msg.Text)
	}
}

func fieldTexts(b slackBlock) string {
	var parts []string
	for _, f := range b.Fields {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " | ")
}

func TestBuildSlackMessage_GroupsByCondition(t *testing.T) {
	msg := buildSlackMessage([]Alert{
		{ID: "stale-b", Condition: ConditionTaskStale, Severity: SeverityMedium, Message: "b", TaskID: "b"},
		{ID: "rejections", Condition: ConditionDependencyRejections, Severity: SeverityHigh, Message: "r", Observed: 6, Limit: 5},
		{ID: "stale-a", Condition: ConditionTaskStale, Severity: SeverityMedium, Message: "a", TaskID: "a"},
	})

	var titles []string
	dividers := 0
	for _, b := range msg.Blocks {
		switch {
		case b.Type == "divider":
			dividers++
		case b.Type == "section" && len(b.Fields) == 0:
			titles = append(titles, b.Text.Text)
		}
	}
	if strings.Join(titles, ",") != "*Rejected dependency edges*,*Stale in-progress tasks*" {
		t.Errorf("group titles = %v", titles)
	}
	if dividers != 1 {
		t.Errorf("expected one divider between two groups, got %d", dividers)
	}
	// Within a group alerts keep ID order.
	if got := msg.Blocks[5].Text.Text; !strings.HasSuffix(got, " a") {
		t.Errorf("expected stale-a first in its group, got %q", got)
	}
}

func TestSlackNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewSlackNotifier(srv.URL).Notify(context.Background(), []Alert{{ID: "x", Severity: SeverityHigh}})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestSeverityEmoji(t *testing.T) {
	tests := []struct {
		severity AlertSeverity
		want     string
	}{
		{SeverityHigh, "\U0001f534"},
		{SeverityMedium, "\U0001f7e1"},
		{SeverityLow, "\U0001f535"},
		{"other", "❓"},
	}
	for _, tt := range tests {
		if got := severityEmoji(tt.severity); got != tt.want {
			t.Errorf("severityEmoji(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}
