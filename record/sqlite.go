package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/hybridflow/core"
)

const recordSchema = `
CREATE TABLE IF NOT EXISTS execution_records (
	trace_id    TEXT PRIMARY KEY,
	intent_id   TEXT NOT NULL,
	status      TEXT NOT NULL,
	reason_code TEXT NOT NULL DEFAULT '',
	payload     BLOB NOT NULL,
	at          TEXT NOT NULL
);`

// SQLiteSink persists execution records to SQLite for audit and replay.
// Rows are only ever inserted.
type SQLiteSink struct {
	db *sql.DB
}

var _ core.RecordSink = (*SQLiteSink)(nil)

// OpenSQLite opens (or creates) a SQLite record sink at the given DSN.
func OpenSQLite(dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite record sink: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteSink(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSink wraps an existing database handle and ensures the schema.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if _, err := db.Exec(recordSchema); err != nil {
		return nil, fmt.Errorf("create execution_records table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error { return s.db.Close() }

// Append implements core.RecordSink.
func (s *SQLiteSink) Append(ctx context.Context, rec core.ExecutionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.TraceID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_records (trace_id, intent_id, status, reason_code, payload, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.IntentID, string(rec.Status), rec.ReasonCode, payload, rec.At.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append record %s: %w", rec.TraceID, err)
	}
	return nil
}

// List returns all records in append order.
func (s *SQLiteSink) List(ctx context.Context) ([]core.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM execution_records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	var out []core.ExecutionRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec core.ExecutionRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
