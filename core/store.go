package core

import "context"

// TaskStore persists per-task state with optimistic concurrency. It is the
// only component multiple tasks write concurrently.
//
// Write protocol: read a record, mutate a copy, then Put with the version
// you read. If the stored version has advanced, Put fails with
// ErrVersionConflict and the caller must re-read and retry (bounded retry
// count enforced by the task tracker).
type TaskStore interface {
	// Create inserts a new record at version 1. Fails if the task already
	// exists.
	Create(ctx context.Context, rec TaskRecord) error

	// Get returns the current record for the task ID.
	Get(ctx context.Context, taskID string) (TaskRecord, error)

	// Put stores rec if and only if the persisted version equals
	// rec.Version; on success the persisted version becomes rec.Version+1.
	// Returns ErrVersionConflict when the check fails.
	Put(ctx context.Context, rec TaskRecord) error
}
