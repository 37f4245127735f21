package registry

import (
	"fmt"
	"sync"

	"github.com/hupe1980/hybridflow/core"
)

// ErrNoFallbackIntent is returned when a catalog update would leave the
// registry without exactly one fallback intent.
var ErrNoFallbackIntent = fmt.Errorf("intent catalog must contain exactly one fallback intent")

// IntentRegistry is an in-memory core.IntentRegistry holding versioned
// intent catalogs. One version is active at a time; older versions remain
// queryable for reproducibility.
type IntentRegistry struct {
	mu       sync.RWMutex
	versions map[string][]core.Intent
	active   string
}

// NewIntentRegistry builds a registry with an initial catalog under the
// given version. The catalog must contain exactly one fallback intent.
func NewIntentRegistry(version string, intents []core.Intent) (*IntentRegistry, error) {
	r := &IntentRegistry{versions: map[string][]core.Intent{}}
	if err := r.Publish(version, intents); err != nil {
		return nil, err
	}
	return r, nil
}

// Publish stores a catalog version and makes it active. Out-of-band
// operation; request-time readers keep seeing consistent snapshots.
func (r *IntentRegistry) Publish(version string, intents []core.Intent) error {
	fallbacks := 0
	for _, in := range intents {
		if in.IsFallback {
			fallbacks++
		}
	}
	if fallbacks != 1 {
		return fmt.Errorf("%w: got %d", ErrNoFallbackIntent, fallbacks)
	}
	r.mu.Lock()
	r.versions[version] = append([]core.Intent(nil), intents...)
	r.active = version
	r.mu.Unlock()
	return nil
}

// ListIntents implements core.IntentRegistry.
func (r *IntentRegistry) ListIntents(version string) ([]core.Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if version == "" {
		version = r.active
	}
	intents, ok := r.versions[version]
	if !ok {
		return nil, fmt.Errorf("unknown intent catalog version %q", version)
	}
	return append([]core.Intent(nil), intents...), nil
}

// Fallback implements core.IntentRegistry.
func (r *IntentRegistry) Fallback() (core.Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, in := range r.versions[r.active] {
		if in.IsFallback {
			return in, nil
		}
	}
	return core.Intent{}, ErrNoFallbackIntent
}

// ActiveVersion returns the currently active catalog version.
func (r *IntentRegistry) ActiveVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}
