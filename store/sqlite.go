package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/hybridflow/core"
)

const taskSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id    TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteStore persists task records in a SQLite database. The version column
// backs the optimistic write protocol; the full record is stored as JSON.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.TaskStore = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) a SQLite task store at the given DSN.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite task store: %w", err)
	}
	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an existing database handle and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(taskSchema); err != nil {
		return nil, fmt.Errorf("create tasks table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create implements core.TaskStore.
func (s *SQLiteStore) Create(ctx context.Context, rec core.TaskRecord) error {
	if rec.TaskID == "" {
		return errors.New("task id must not be empty")
	}
	rec.Version = 1
	rec.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", rec.TaskID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, version, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(task_id) DO NOTHING`,
		rec.TaskID, rec.Version, payload, rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert task %s: %w", rec.TaskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskExists, rec.TaskID)
	}
	return nil
}

// Get implements core.TaskStore.
func (s *SQLiteStore) Get(ctx context.Context, taskID string) (core.TaskRecord, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM tasks WHERE task_id = ?`, taskID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TaskRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return core.TaskRecord{}, fmt.Errorf("load task %s: %w", taskID, err)
	}
	var rec core.TaskRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return core.TaskRecord{}, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return rec, nil
}

// Put implements core.TaskStore.
func (s *SQLiteStore) Put(ctx context.Context, rec core.TaskRecord) error {
	basedOn := rec.Version
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", rec.TaskID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET version = ?, payload = ?, updated_at = ? WHERE task_id = ? AND version = ?`,
		rec.Version, payload, rec.UpdatedAt.Format(time.RFC3339Nano), rec.TaskID, basedOn)
	if err != nil {
		return fmt.Errorf("update task %s: %w", rec.TaskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM tasks WHERE task_id = ?`, rec.TaskID).Scan(&exists); err == nil && exists == 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, rec.TaskID)
		}
		return fmt.Errorf("%w: task %s, write based on version %d", core.ErrVersionConflict, rec.TaskID, basedOn)
	}
	return nil
}
