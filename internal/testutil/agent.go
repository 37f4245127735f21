package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/hybridflow/core"
)

// ScriptedAgent is a deterministic core.Agent for tests. By default every
// invocation completes immediately with a canned output; scripts can inject
// multi-iteration reasoning (NeedsMore) and failures.
type ScriptedAgent struct {
	mu           sync.Mutex
	id           string
	capabilities []string
	available    bool
	script       []core.Observation
	errs         []error
	invocations  int
}

// NewScriptedAgent returns an available agent serving the capabilities.
func NewScriptedAgent(id string, capabilities []string) *ScriptedAgent {
	return &ScriptedAgent{id: id, capabilities: capabilities, available: true}
}

// Script queues observations returned by successive Invoke calls. Once the
// script is exhausted, Invoke returns a default completed observation.
func (a *ScriptedAgent) Script(obs ...core.Observation) *ScriptedAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.script = append(a.script, obs...)
	return a
}

// FailWith queues errors returned before any scripted observations.
func (a *ScriptedAgent) FailWith(errs ...error) *ScriptedAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = append(a.errs, errs...)
	return a
}

// SetAvailable toggles availability.
func (a *ScriptedAgent) SetAvailable(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.available = v
}

// Invocations returns how many times Invoke ran.
func (a *ScriptedAgent) Invocations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invocations
}

// ID implements core.Agent.
func (a *ScriptedAgent) ID() string { return a.id }

// Capabilities implements core.Agent.
func (a *ScriptedAgent) Capabilities() []string { return a.capabilities }

// Available implements core.Agent.
func (a *ScriptedAgent) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available
}

// Invoke implements core.Agent.
func (a *ScriptedAgent) Invoke(ctx context.Context, capabilityID, input string) (core.Observation, error) {
	if err := ctx.Err(); err != nil {
		return core.Observation{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invocations++
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		return core.Observation{}, err
	}
	if len(a.script) > 0 {
		obs := a.script[0]
		a.script = a.script[1:]
		return obs, nil
	}
	return core.Observation{Output: fmt.Sprintf("%s(%s) by %s", capabilityID, input, a.id)}, nil
}
