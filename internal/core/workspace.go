package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/palazero/v3tasks/pkg/models"
)

// InitConfig holds the parameters for initializing a workspace.
type InitConfig struct {
	BasePath    string
	StoreDriver string
	StorePath   string
	Granularity models.Granularity
}

// InitResult holds a summary of what was created vs. skipped.
type InitResult struct {
	Created []string
	Skipped []string
}

// WorkspaceInitializer lays out a new v3t workspace: configuration, an empty
// task store and ignore rules for runtime files.
type WorkspaceInitializer interface {
	Init(config InitConfig) (*InitResult, error)
}

type workspaceInitializer struct {
	tmpl *template.Template
}

// NewWorkspaceInitializer creates a new WorkspaceInitializer.
func NewWorkspaceInitializer() WorkspaceInitializer {
	return &workspaceInitializer{
		tmpl: template.Must(template.New(".taskconfig").Parse(taskconfigTemplate)),
	}
}

const taskconfigTemplate = `# v3t workspace configuration.
# Every key can be overridden with an environment variable, e.g.
# V3T_HIERARCHY_MAX_LEVEL=5.

hierarchy:
  max_level: {{.Engine.MaxLevel}}
  order_spacing: {{.Engine.OrderSpacing}}

schedule:
  default_duration_days: {{.Engine.DefaultDurationDays}}
  min_duration_days: {{.Engine.MinDurationDays}}

timeline:
  padding_days: {{.Engine.TimelinePaddingDays}}
  empty_days: {{.Engine.EmptyTimelineDays}}
  granularity: {{.Engine.DefaultGranularity}}

defaults:
  priority: {{.DefaultPriority}}

store:
  driver: {{.StoreDriver}}
  path: {{.StorePath}}

events:
  enabled: {{.EventsEnabled}}

alerts:
  stale_days: {{.Alerts.StaleDays}}
  max_open_tasks: {{.Alerts.MaxOpenTasks}}
  max_rejected_edges: {{.Alerts.MaxRejectedEdges}}

notify:
  slack_webhook: ""
`

const emptyTaskStore = "version: \"1.0\"\ntasks: {}\n"

const workspaceGitignore = `# v3t runtime files
.v3t_events.jsonl
*.lock
*.db-wal
*.db-shm
`

// Init creates the workspace files. It is safe to run on an existing
// workspace: files that already exist are skipped and not overwritten.
func (wi *workspaceInitializer) Init(config InitConfig) (*InitResult, error) {
	result := &InitResult{}

	cfg := DefaultGlobalConfig()
	switch config.StoreDriver {
	case "", models.StoreDriverYAML:
	case models.StoreDriverSQLite:
		cfg.StoreDriver = models.StoreDriverSQLite
		cfg.StorePath = "tasks.db"
	default:
		return nil, fmt.Errorf("initializing workspace: unknown store driver %q", config.StoreDriver)
	}
	if config.StorePath != "" {
		cfg.StorePath = config.StorePath
	}
	if config.Granularity != "" {
		g, err := ParseGranularity(string(config.Granularity))
		if err != nil {
			return nil, fmt.Errorf("initializing workspace: %w", err)
		}
		cfg.Engine.DefaultGranularity = g
	}

	created, err := ensureDir(config.BasePath)
	if err != nil {
		return nil, fmt.Errorf("initializing workspace: creating %s: %w", config.BasePath, err)
	}
	if created {
		result.Created = append(result.Created, config.BasePath)
	}

	storePath := cfg.StorePath
	if !filepath.IsAbs(storePath) {
		storePath = filepath.Join(config.BasePath, storePath)
	}
	if created, err := ensureDir(filepath.Dir(storePath)); err != nil {
		return nil, fmt.Errorf("initializing workspace: creating store directory: %w", err)
	} else if created {
		result.Created = append(result.Created, filepath.Dir(storePath))
	}

	type workspaceFile struct {
		path    string
		content func() ([]byte, error)
	}
	files := []workspaceFile{
		{filepath.Join(config.BasePath, ".taskconfig"), func() ([]byte, error) { return wi.render(cfg) }},
		{filepath.Join(config.BasePath, ".gitignore"), staticContent(workspaceGitignore)},
	}
	// The SQLite store creates its own schema on first open.
	if cfg.StoreDriver == models.StoreDriverYAML {
		files = append(files, workspaceFile{storePath, staticContent(emptyTaskStore)})
	}
	for _, f := range files {
		if err := writeFileIfNotExists(f.path, f.content, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (wi *workspaceInitializer) render(cfg *models.GlobalConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := wi.tmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("rendering .taskconfig: %w", err)
	}
	return buf.Bytes(), nil
}

func staticContent(s string) func() ([]byte, error) {
	return func() ([]byte, error) { return []byte(s), nil }
}

// ensureDir creates a directory if it does not exist. Returns true if created.
func ensureDir(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return false, err
	}
	return true, nil
}

// writeFileIfNotExists writes content from contentFn if the file does not
// exist, recording the outcome in result.
func writeFileIfNotExists(path string, contentFn func() ([]byte, error), result *InitResult) error {
	if _, err := os.Stat(path); err == nil {
		result.Skipped = append(result.Skipped, path)
		return nil
	}
	content, err := contentFn()
	if err != nil {
		return fmt.Errorf("initializing workspace: generating content for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("initializing workspace: writing %s: %w", path, err)
	}
	result.Created = append(result.Created, path)
	return nil
}
