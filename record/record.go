// Package record provides RecordSink implementations for the execution &
// observation layer. Sinks are append-only; replay tooling reads records
// back in insertion order.
package record

import (
	"context"
	"sync"

	"github.com/hupe1980/hybridflow/core"
)

// MemorySink keeps execution records in memory, in append order.
type MemorySink struct {
	mu      sync.RWMutex
	records []core.ExecutionRecord
}

var _ core.RecordSink = (*MemorySink)(nil)

// NewMemorySink returns an empty in-memory record sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements core.RecordSink.
func (s *MemorySink) Append(ctx context.Context, rec core.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// List returns a copy of all records in append order.
func (s *MemorySink) List() []core.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.ExecutionRecord(nil), s.records...)
}

// ByTrace returns the record for a trace ID, if present.
func (s *MemorySink) ByTrace(traceID string) (core.ExecutionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.TraceID == traceID {
			return rec, true
		}
	}
	return core.ExecutionRecord{}, false
}
