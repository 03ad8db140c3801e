package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/palazero/v3tasks/pkg/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	parent_id  TEXT NOT NULL DEFAULT '',
	sort_order REAL NOT NULL,
	level      INTEGER NOT NULL,
	status     TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT '',
	start_date TEXT,
	end_date   TEXT,
	created    TEXT NOT NULL,
	updated    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS task_edges (
	task_id  TEXT NOT NULL,
	other_id TEXT NOT NULL,
	kind     TEXT NOT NULL CHECK (kind IN ('depends_on', 'blocked_by')),
	position INTEGER NOT NULL,
	PRIMARY KEY (task_id, kind, position)
);`

const (
	edgeDependsOn = "depends_on"
	edgeBlockedBy = "blocked_by"
)

type sqliteTaskStore struct {
	taskSet
	db *sql.DB
}

// NewSQLiteTaskStore creates a TaskStore backed by the SQLite database at
// path. Dependency lists live in a separate task_edges table in list order.
// Close releases the database handle.
func NewSQLiteTaskStore(path string) (TaskStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("opening task database: creating directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening task database: %w", err)
	}
	// One connection serialises writers and keeps PRAGMAs in effect.
	db.SetMaxOpenConns(1)

	s := &sqliteTaskStore{taskSet: newTaskSet(), db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening task database: %w", err)
	}
	return s, nil
}

func (s *sqliteTaskStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *sqliteTaskStore) Load() error {
	ctx := context.Background()
	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}
	if err := s.loadEdges(ctx, tasks); err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}
	s.tasks = tasks
	return nil
}

func (s *sqliteTaskStore) loadTasks(ctx context.Context) (map[string]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, parent_id, sort_order, level, status, priority,
		       start_date, end_date, created, updated
		FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := make(map[string]models.Task)
	for rows.Next() {
		var (
			t                models.Task
			start, end       sql.NullString
			created, updated string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.ParentID, &t.Order, &t.Level, &t.Status, &t.Priority,
			&start, &end, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		if t.StartDate, err = parseNullTime(start); err != nil {
			return nil, fmt.Errorf("task %s start_date: %w", t.ID, err)
		}
		if t.EndDate, err = parseNullTime(end); err != nil {
			return nil, fmt.Errorf("task %s end_date: %w", t.ID, err)
		}
		if t.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("task %s created: %w", t.ID, err)
		}
		if t.Updated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("task %s updated: %w", t.ID, err)
		}
		tasks[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}
	return tasks, nil
}

func (s *sqliteTaskStore) loadEdges(ctx context.Context, tasks map[string]models.Task) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, other_id, kind FROM task_edges
		ORDER BY task_id, kind, position`)
	if err != nil {
		return fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, otherID, kind string
		if err := rows.Scan(&taskID, &otherID, &kind); err != nil {
			return fmt.Errorf("scanning edge: %w", err)
		}
		t, ok := tasks[taskID]
		if !ok {
			continue
		}
		switch kind {
		case edgeDependsOn:
			t.DependencyIDs = append(t.DependencyIDs, otherID)
		case edgeBlockedBy:
			t.BlockedByIDs = append(t.BlockedByIDs, otherID)
		}
		tasks[taskID] = t
	}
	return rows.Err()
}

// Save replaces the database contents with the in-memory set in a single
// transaction.
func (s *sqliteTaskStore) Save() (err error) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{"DELETE FROM task_edges", "DELETE FROM tasks"} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("saving tasks: clearing: %w", err)
		}
	}

	insertTask, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, title, parent_id, sort_order, level, status, priority,
		                   start_date, end_date, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	defer insertTask.Close()
	insertEdge, err := tx.PrepareContext(ctx, `
		INSERT INTO task_edges (task_id, other_id, kind, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	defer insertEdge.Close()

	all, err := s.All()
	if err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	for _, t := range all {
		if _, err = insertTask.ExecContext(ctx, t.ID, t.Title, t.ParentID, t.Order, t.Level,
			string(t.Status), string(t.Priority), formatNullTime(t.StartDate), formatNullTime(t.EndDate),
			t.Created.Format(time.RFC3339Nano), t.Updated.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("saving task %s: %w", t.ID, err)
		}
		for kind, ids := range map[string][]string{edgeDependsOn: t.DependencyIDs, edgeBlockedBy: t.BlockedByIDs} {
			for i, other := range ids {
				if _, err = insertEdge.ExecContext(ctx, t.ID, other, kind, i); err != nil {
					return fmt.Errorf("saving edges of %s: %w", t.ID, err)
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("saving tasks: committing: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *sqliteTaskStore) Close() error {
	return s.db.Close()
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
