package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/palazero/v3tasks/pkg/models"
	"gopkg.in/yaml.v3"
)

const taskFileVersion = "1.0"

// TaskFile represents the top-level structure of tasks.yaml.
type TaskFile struct {
	Version string                 `yaml:"version"`
	Tasks   map[string]models.Task `yaml:"tasks"`
}

// TaskStore is the authoritative task collection. It owns identity and
// persistence and applies the patches computed by the engine.
type TaskStore interface {
	Add(task models.Task) (models.Task, error)
	Get(taskID string) (*models.Task, error)
	All() ([]models.Task, error)
	Remove(taskID string) error
	Apply(patches []models.TaskPatch) error
	Load() error
	Save() error
}

// ErrUnknownDriver is returned by Open for an unsupported store driver.
var ErrUnknownDriver = errors.New("unknown store driver")

// Open creates the TaskStore for driver at path. An empty driver selects
// the YAML store.
func Open(driver, path string) (TaskStore, error) {
	switch driver {
	case "", models.StoreDriverYAML:
		return NewTaskStore(path), nil
	case models.StoreDriverSQLite:
		return NewSQLiteTaskStore(path)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, driver)
	}
}

type fileTaskStore struct {
	taskSet
	path string
}

// NewTaskStore creates a TaskStore backed by the YAML file at path.
func NewTaskStore(path string) TaskStore {
	return &fileTaskStore{
		taskSet: newTaskSet(),
		path:    path,
	}
}

func (s *fileTaskStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.tasks = make(map[string]models.Task)
			return nil
		}
		return fmt.Errorf("loading tasks: %w", err)
	}

	var tf TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("loading tasks: parsing YAML: %w", err)
	}
	if tf.Tasks == nil {
		tf.Tasks = make(map[string]models.Task)
	}
	for id, t := range tf.Tasks {
		if t.ID == "" {
			t.ID = id
			tf.Tasks[id] = t
		}
	}
	s.tasks = tf.Tasks
	return nil
}

func (s *fileTaskStore) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("saving tasks: creating directory: %w", err)
	}
	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	defer func() { _ = unlock() }()

	data, err := yaml.Marshal(&TaskFile{Version: taskFileVersion, Tasks: s.tasks})
	if err != nil {
		return fmt.Errorf("saving tasks: marshaling YAML: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("saving tasks: writing file: %w", err)
	}
	return nil
}
