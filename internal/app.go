// Package internal provides the App struct that wires all components of
// v3t together and initializes the CLI layer.
package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/palazero/v3tasks/internal/cli"
	"github.com/palazero/v3tasks/internal/core"
	"github.com/palazero/v3tasks/internal/observability"
	"github.com/palazero/v3tasks/internal/storage"
	"github.com/palazero/v3tasks/pkg/models"
)

// eventLogFile is the JSONL event log, relative to the base path.
const eventLogFile = ".v3t_events.jsonl"

// configFiles are the names ResolveBasePath looks for when walking up.
var configFiles = []string{".taskconfig", ".taskconfig.yaml", ".taskconfig.yml"}

// App holds all service dependencies for v3t.
type App struct {
	BasePath string
	Config   *models.GlobalConfig

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	Store storage.TaskStore

	// Core services
	TaskGraph     core.TaskGraphService
	WorkspaceInit core.WorkspaceInitializer

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components. basePath is the workspace root
// holding .taskconfig, the task store and the event log.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Storage layer ---
	storePath := cfg.StorePath
	if !filepath.IsAbs(storePath) {
		storePath = filepath.Join(basePath, storePath)
	}
	app.Store, err = storage.Open(cfg.StoreDriver, storePath)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}

	// --- Observability ---
	var events core.EventLogger
	if cfg.EventsEnabled {
		app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, eventLogFile))
		if err != nil {
			// Non-fatal: run without observability if the log can't be opened.
			app.EventLog = nil
		}
	}
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, alertThresholds(cfg.Alerts))
		if cfg.SlackWebhook != "" {
			app.Notifier = observability.NewSlackNotifier(cfg.SlackWebhook)
		}
	}

	// --- Core services ---
	app.TaskGraph = core.NewTaskGraphService(app.Store, cfg, events)
	app.WorkspaceInit = core.NewWorkspaceInitializer()

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.TaskGraph = app.TaskGraph
	cli.WorkspaceInit = app.WorkspaceInit

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// alertThresholds maps the configured alert limits onto the engine's
// thresholds, keeping defaults for unset values.
func alertThresholds(c models.AlertConfig) observability.AlertThresholds {
	t := observability.DefaultAlertThresholds()
	if c.StaleDays > 0 {
		t.StaleDays = c.StaleDays
	}
	if c.MaxOpenTasks > 0 {
		t.MaxOpenTasks = c.MaxOpenTasks
	}
	if c.MaxRejectedEdges > 0 {
		t.MaxRejectedEdges = c.MaxRejectedEdges
	}
	return t
}

// Close releases resources held by the App: the event log file handle and,
// for database-backed stores, the database. It is safe to call Close on an
// App whose EventLog is nil.
func (a *App) Close() error {
	var errs []error
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	if c, ok := a.Store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the workspace root. It checks the V3T_HOME env
// var, then walks up from the current directory looking for .taskconfig,
// then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("V3T_HOME"); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; {
		for _, name := range configFiles {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	level := observability.LevelInfo
	if eventType == observability.EventDependencyRejected {
		level = observability.LevelWarn
	}
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
