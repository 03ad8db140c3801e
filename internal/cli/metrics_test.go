package cli

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/palazero/v3tasks/internal/observability"
)

// --- parseSinceDuration unit tests ---

func TestParseSinceDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{"empty defaults to 7d", "", false, ""},
		{"whitespace defaults to 7d", "  ", false, ""},
		{"valid 7d", "7d", false, ""},
		{"valid 30d", "30d", false, ""},
		{"valid 24h", "24h", false, ""},
		{"invalid suffix", "abc", true, "unsupported duration format"},
		{"invalid day number", "xd", true, "invalid day duration"},
		{"invalid hour number", "yh", true, "invalid hour duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSinceDuration(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseSinceDuration_Window(t *testing.T) {
	got, err := parseSinceDuration("2d")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Now().UTC().AddDate(0, 0, -2)
	if diff := want.Sub(got); diff < 0 || diff > time.Minute {
		t.Errorf("parseSinceDuration(2d) = %v, want about %v", got, want)
	}
}

// --- metricsCmd tests ---

type metricsMock struct {
	calcFn func(since time.Time) (*observability.Metrics, error)
}

func (m *metricsMock) Calculate(since time.Time) (*observability.Metrics, error) {
	return m.calcFn(since)
}

func staticMetrics(m *observability.Metrics) *metricsMock {
	return &metricsMock{calcFn: func(time.Time) (*observability.Metrics, error) { return m, nil }}
}

func useMetricsCalc(t *testing.T, calc observability.MetricsCalculator) {
	t.Helper()
	orig := MetricsCalc
	t.Cleanup(func() { MetricsCalc = orig })
	MetricsCalc = calc
}

func sampleMetrics() *observability.Metrics {
	newest := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	return &observability.Metrics{
		TasksCreated:      5,
		TasksCompleted:    3,
		TasksMoved:        2,
		DependenciesAdded: 4,
		TasksRescheduled:  6,
		EventCount:        42,
		TasksByStatus:     map[string]int{"done": 3, "in_progress": 4},
		RejectedEdges:     map[string]int{"cycle": 2, "duplicate": 1},
		NewestEvent:       &newest,
	}
}

func TestMetricsCmd_NilCalculator(t *testing.T) {
	useMetricsCalc(t, nil)

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil {
		t.Fatal("expected error when MetricsCalc is nil")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMetricsCmd_InvalidSince(t *testing.T) {
	useMetricsCalc(t, staticMetrics(&observability.Metrics{}))
	setFlagVar(t, &metricsSince, "fortnight")

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "parsing --since") {
		t.Fatalf("expected --since error, got %v", err)
	}
}

func TestMetricsCmd_TableFormat(t *testing.T) {
	useMetricsCalc(t, staticMetrics(sampleMetrics()))
	setFlagVar(t, &metricsSince, "7d")
	setFlagVar(t, &metricsJSON, false)

	output := captureStdout(t, func() {
		if err := metricsCmd.RunE(metricsCmd, []string{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	for _, want := range []string{"Events recorded:", "42", "Status transitions:", "Rejected dependencies:", "Newest event:"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Index(output, "cycle:") > strings.Index(output, "duplicate:") {
		t.Errorf("expected rejected reasons sorted by key:\n%s", output)
	}
}

func TestMetricsCmd_JSONFormat(t *testing.T) {
	useMetricsCalc(t, staticMetrics(sampleMetrics()))
	setFlagVar(t, &metricsJSON, true)

	output := captureStdout(t, func() {
		if err := metricsCmd.RunE(metricsCmd, []string{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	var got observability.Metrics
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, output)
	}
	if got.TasksCreated != 5 || got.RejectedEdges["cycle"] != 2 {
		t.Errorf("unexpected metrics: %+v", got)
	}
}

func TestPrintCounts_Empty(t *testing.T) {
	output := captureStdout(t, func() {
		printCounts("Nothing", nil)
	})
	if output != "" {
		t.Errorf("expected no output for empty counts, got %q", output)
	}
}
