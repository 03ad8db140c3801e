package cli

import (
	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/internal/observability"
)

// Service instances, set during app initialization in app.go.
var (
	TaskGraph core.TaskGraphService
	BasePath  string
)

// Observability service instances. Nil when events are disabled.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
