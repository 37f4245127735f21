package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hupe1980/hybridflow/core"
)

func testRecord(taskID string) core.TaskRecord {
	return core.TaskRecord{
		TaskID: taskID,
		Status: core.StatusPending,
		DAG: core.TaskDAG{Nodes: []core.TaskDAGNode{
			{ID: "a", Capability: "web.search"},
			{ID: "b", Capability: "report.compose", DependsOn: []string{"a"}},
		}},
		Strategy: core.WorkflowStrategy{Mode: core.ModeSingle, Primary: core.EngineStateMachine},
	}
}

func openStores(t *testing.T) map[string]core.TaskStore {
	t.Helper()
	sqliteStore, err := OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqliteStore.Close() })
	return map[string]core.TaskStore{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Create(ctx, testRecord("t1")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			got, err := s.Get(ctx, "t1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Version != 1 {
				t.Errorf("new record must start at version 1, got %d", got.Version)
			}
			if len(got.DAG.Nodes) != 2 || got.DAG.Nodes[1].DependsOn[0] != "a" {
				t.Errorf("dag not persisted: %+v", got.DAG)
			}

			if err := s.Create(ctx, testRecord("t1")); !errors.Is(err, ErrTaskExists) {
				t.Errorf("duplicate Create: got %v, want ErrTaskExists", err)
			}
			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
				t.Errorf("Get missing: got %v, want ErrTaskNotFound", err)
			}
		})
	}
}

func TestTaskStore_PutEnforcesVersion(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Create(ctx, testRecord("t1")); err != nil {
				t.Fatal(err)
			}
			rec, _ := s.Get(ctx, "t1")
			rec.Status = core.StatusRunning
			if err := s.Put(ctx, rec); err != nil {
				t.Fatalf("Put at current version: %v", err)
			}

			// A second write based on the same stale read must be rejected.
			stale := rec
			stale.Status = core.StatusFailed
			if err := s.Put(ctx, stale); !errors.Is(err, core.ErrVersionConflict) {
				t.Fatalf("stale Put: got %v, want ErrVersionConflict", err)
			}

			// Re-read and retry succeeds and the failed write left no trace.
			fresh, err := s.Get(ctx, "t1")
			if err != nil {
				t.Fatal(err)
			}
			if fresh.Version != 2 || fresh.Status != core.StatusRunning {
				t.Errorf("store state after conflict: version=%d status=%s", fresh.Version, fresh.Status)
			}
			fresh.Status = core.StatusCompleted
			if err := s.Put(ctx, fresh); err != nil {
				t.Errorf("retry after re-read: %v", err)
			}
		})
	}
}

func TestTaskStore_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Create(ctx, testRecord("t1")); err != nil {
				t.Fatal(err)
			}
			base, _ := s.Get(ctx, "t1")

			const writers = 8
			var wg sync.WaitGroup
			errs := make([]error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rec := base
					rec.Status = core.StatusRunning
					errs[i] = s.Put(ctx, rec)
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, err := range errs {
				if err == nil {
					wins++
				} else if !errors.Is(err, core.ErrVersionConflict) {
					t.Errorf("unexpected error: %v", err)
				}
			}
			if wins != 1 {
				t.Errorf("exactly one writer must win, got %d", wins)
			}
		})
	}
}

func TestMemoryStore_CopiesOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	rec := testRecord("t1")
	rec.HybridState = core.NewHybridState([]core.HybridStep{{NodeID: "a", Capability: "web.search"}})
	if err := s.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(ctx, "t1")
	got.DAG.Nodes[0].Capability = "mutated"
	got.HybridState.Outputs[0] = "mutated"

	again, _ := s.Get(ctx, "t1")
	if again.DAG.Nodes[0].Capability != "web.search" {
		t.Error("caller mutation leaked into stored dag")
	}
	if len(again.HybridState.Outputs) != 0 {
		t.Error("caller mutation leaked into stored hybrid state")
	}
}
