package registry

import (
	"sync"

	"github.com/hupe1980/hybridflow/core"
)

// CapabilityRegistry is an in-memory core.CapabilityRegistry. Request-time
// readers take the read lock; Replace swaps the whole catalog atomically.
type CapabilityRegistry struct {
	mu      sync.RWMutex
	entries []core.CapabilityEntry
	byCap   map[string][]string // capability -> agent ids, registration order
}

// NewCapabilityRegistry builds a registry from the initial catalog.
func NewCapabilityRegistry(entries ...core.CapabilityEntry) *CapabilityRegistry {
	r := &CapabilityRegistry{}
	r.Replace(entries)
	return r
}

// Replace swaps the catalog. Intended for out-of-band updates; request-time
// readers never block on it longer than one map rebuild.
func (r *CapabilityRegistry) Replace(entries []core.CapabilityEntry) {
	byCap := make(map[string][]string)
	for _, e := range entries {
		byCap[e.CapabilityID] = append(byCap[e.CapabilityID], e.AgentID)
	}
	r.mu.Lock()
	r.entries = append([]core.CapabilityEntry(nil), entries...)
	r.byCap = byCap
	r.mu.Unlock()
}

// ListCapabilities implements core.CapabilityRegistry.
func (r *CapabilityRegistry) ListCapabilities() ([]core.CapabilityEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.CapabilityEntry(nil), r.entries...), nil
}

// Resolve implements core.CapabilityRegistry. An empty result is a valid
// answer, not an error.
func (r *CapabilityRegistry) Resolve(capabilityID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.byCap[capabilityID]...), nil
}
