package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
)

// Tracker mediates all task-store writes. Updates follow the optimistic
// protocol: read, mutate a copy, Put with the read version, retry on
// conflict up to the configured bound.
type Tracker struct {
	store   core.TaskStore
	retries int
	logger  logging.Logger
}

// NewTracker returns a tracker over the given store.
func NewTracker(store core.TaskStore, retries int, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Tracker{store: store, retries: retries, logger: logger}
}

// Create inserts the initial record for a task.
func (t *Tracker) Create(ctx context.Context, rec core.TaskRecord) error {
	return t.store.Create(ctx, rec)
}

// Get reads the current record.
func (t *Tracker) Get(ctx context.Context, taskID string) (core.TaskRecord, error) {
	return t.store.Get(ctx, taskID)
}

// Update applies mutate to a fresh read of the record and writes it back,
// retrying on version conflicts. After the retry budget is spent the
// conflict is surfaced to the caller.
func (t *Tracker) Update(ctx context.Context, taskID string, mutate func(rec *core.TaskRecord)) error {
	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		rec, err := t.store.Get(ctx, taskID)
		if err != nil {
			return err
		}
		mutate(&rec)
		err = t.store.Put(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrVersionConflict) {
			return err
		}
		lastErr = err
		t.logger.Debug("task state write conflict, retrying", "task_id", taskID, "attempt", attempt+1)
	}
	return fmt.Errorf("update task %s: retries exhausted: %w", taskID, lastErr)
}
