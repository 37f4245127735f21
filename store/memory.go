package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/hybridflow/core"
)

var (
	// ErrTaskNotFound indicates the task ID has no stored record.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskExists indicates Create was called for an existing task ID.
	ErrTaskExists = errors.New("task already exists")
)

// MemoryStore is an in-memory TaskStore guarded by a RWMutex. Records are
// copied on read and write so callers can never alias stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]core.TaskRecord
}

var _ core.TaskStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]core.TaskRecord)}
}

// Create implements core.TaskStore.
func (s *MemoryStore) Create(ctx context.Context, rec core.TaskRecord) error {
	if rec.TaskID == "" {
		return errors.New("task id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[rec.TaskID]; ok {
		return fmt.Errorf("%w: %s", ErrTaskExists, rec.TaskID)
	}
	rec.Version = 1
	rec.UpdatedAt = time.Now().UTC()
	s.tasks[rec.TaskID] = cloneRecord(rec)
	return nil
}

// Get implements core.TaskStore.
func (s *MemoryStore) Get(ctx context.Context, taskID string) (core.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tasks[taskID]
	if !ok {
		return core.TaskRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return cloneRecord(rec), nil
}

// Put implements core.TaskStore.
func (s *MemoryStore) Put(ctx context.Context, rec core.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tasks[rec.TaskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, rec.TaskID)
	}
	if stored.Version != rec.Version {
		return fmt.Errorf("%w: task %s at version %d, write based on %d",
			core.ErrVersionConflict, rec.TaskID, stored.Version, rec.Version)
	}
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	s.tasks[rec.TaskID] = cloneRecord(rec)
	return nil
}

func cloneRecord(rec core.TaskRecord) core.TaskRecord {
	out := rec
	out.DAG.Nodes = make([]core.TaskDAGNode, len(rec.DAG.Nodes))
	for i, n := range rec.DAG.Nodes {
		out.DAG.Nodes[i] = n
		out.DAG.Nodes[i].DependsOn = append([]string(nil), n.DependsOn...)
	}
	out.Strategy.Fallback = append([]core.EngineID(nil), rec.Strategy.Fallback...)
	if rec.HybridState != nil {
		out.HybridState = rec.HybridState.Clone()
	}
	out.SwitchHistory = append([]core.SwitchEvent(nil), rec.SwitchHistory...)
	out.NodeResults = append([]core.NodeResult(nil), rec.NodeResults...)
	return out
}
