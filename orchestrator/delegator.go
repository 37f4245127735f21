package orchestrator

import (
	"fmt"

	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/registry"
)

// Delegator binds DAG nodes to concrete agents at dispatch time. The
// planner's candidate is preferred; if it is gone or unavailable the
// delegator substitutes another registered agent with the same capability
// before giving up.
type Delegator struct {
	agents *registry.AgentRegistry
}

// NewDelegator returns a delegator over the given agent registry.
func NewDelegator(agents *registry.AgentRegistry) *Delegator {
	return &Delegator{agents: agents}
}

// Resolve picks the agent that will execute the node. Returns
// core.ErrRoutingFailed when no available agent serves the capability.
func (d *Delegator) Resolve(node core.TaskDAGNode) (core.Agent, error) {
	if node.CandidateAgentID != "" {
		if a, err := d.agents.Get(node.CandidateAgentID); err == nil && a.Available() {
			return a, nil
		}
	}
	for _, a := range d.agents.ByCapability(node.Capability) {
		if a.Available() {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: capability %q (node %s)", core.ErrRoutingFailed, node.Capability, node.ID)
}
