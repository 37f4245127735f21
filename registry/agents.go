package registry

import (
	"fmt"
	"sync"

	"github.com/hupe1980/hybridflow/core"
)

// ErrAgentNotFound is returned when no agent is registered under an ID.
var ErrAgentNotFound = fmt.Errorf("agent not found")

// AgentRegistry holds the concrete agent instances the delegator dispatches
// to. Registration order per capability is preserved so substitution on
// unavailability is deterministic.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	order  []string
}

// NewAgentRegistry returns an empty agent registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: map[string]core.Agent{}}
}

// Register adds (or replaces) an agent by its ID.
func (r *AgentRegistry) Register(a core.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID()]; !exists {
		r.order = append(r.order, a.ID())
	}
	r.agents[a.ID()] = a
}

// Get returns the agent registered under id.
func (r *AgentRegistry) Get(id string) (core.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a, nil
}

// ByCapability returns registered agents serving the capability, in
// registration order.
func (r *AgentRegistry) ByCapability(capabilityID string) []core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Agent
	for _, id := range r.order {
		a := r.agents[id]
		for _, c := range a.Capabilities() {
			if c == capabilityID {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// Entries derives the capability catalog advertised by registered agents.
// Useful to seed a CapabilityRegistry from live agents.
func (r *AgentRegistry) Entries() []core.CapabilityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.CapabilityEntry
	for _, id := range r.order {
		a := r.agents[id]
		for _, c := range a.Capabilities() {
			out = append(out, core.CapabilityEntry{CapabilityID: c, AgentID: id})
		}
	}
	return out
}
