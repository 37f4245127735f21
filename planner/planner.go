// Package planner implements the L3 capability mapping & planning layer:
// it expands a matched intent into a Task DAG of capability-bound steps,
// resolves each capability to a concrete agent through the capability
// registry, and validates the DAG topologically before it ever reaches the
// policy layer.
//
// Retrieval context is a guardrail only: it can veto optional enrichment
// steps whose capability is reported unavailable, but it never overrides
// registry truth and never resolves agents on its own.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
)

// RetrievalContext carries externally supplied capability/usage examples
// consulted during planning.
type RetrievalContext struct {
	// AvailableCapabilities lists capabilities the retrieval layer believes
	// are currently usable. Empty means "no signal", not "nothing works".
	AvailableCapabilities []string
	// Examples are free-form usage snippets; informative only.
	Examples []string
}

func (r RetrievalContext) flagsUnavailable(capabilityID string) bool {
	if len(r.AvailableCapabilities) == 0 {
		return false
	}
	for _, c := range r.AvailableCapabilities {
		if c == capabilityID {
			return false
		}
	}
	return true
}

// signalCapabilities maps digest action signals to enrichment capabilities
// the planner may add ahead of the intent's target capability.
var signalCapabilities = map[string]string{
	"research":  "web.search",
	"search":    "web.search",
	"analyze":   "data.analyze",
	"summarize": "text.summarize",
}

// Planner expands intents into Task DAGs.
type Planner struct {
	capabilities core.CapabilityRegistry
	logger       logging.Logger
}

// Options configures a Planner.
type Options struct {
	Logger logging.Logger
}

// New builds a Planner over the capability registry.
func New(capabilities core.CapabilityRegistry, optFns ...func(o *Options)) *Planner {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Planner{capabilities: capabilities, logger: opts.Logger}
}

// Plan expands the intent into a validated Task DAG. Deep intents get
// enrichment steps derived from the digest's action signals, each feeding
// the final target-capability step. A capability without a registered agent
// yields a node with an empty CandidateAgentID; rejection is the policy
// layer's call, not the planner's.
func (p *Planner) Plan(_ context.Context, in core.Intent, sem core.SemanticOutput, retrieval RetrievalContext, request string) (core.TaskDAG, error) {
	var steps []string
	if in.Depth == "deep" {
		for _, sig := range sem.ActionSignals {
			capability, ok := signalCapabilities[sig]
			if !ok || capability == in.TargetCapability {
				continue
			}
			if retrieval.flagsUnavailable(capability) {
				p.logger.Debug("retrieval guardrail vetoed enrichment step", "capability", capability)
				continue
			}
			if !contains(steps, capability) {
				steps = append(steps, capability)
			}
		}
	}

	var nodes []core.TaskDAGNode
	var enrichmentIDs []string
	for i, capability := range steps {
		agentID, err := p.resolveAgent(capability)
		if err != nil {
			return core.TaskDAG{}, err
		}
		node := core.TaskDAGNode{
			ID:               fmt.Sprintf("step-%d", i+1),
			Capability:       capability,
			CandidateAgentID: agentID,
			Input:            request,
		}
		nodes = append(nodes, node)
		enrichmentIDs = append(enrichmentIDs, node.ID)
	}

	targetAgent, err := p.resolveAgent(in.TargetCapability)
	if err != nil {
		return core.TaskDAG{}, err
	}
	nodes = append(nodes, core.TaskDAGNode{
		ID:               "target",
		Capability:       in.TargetCapability,
		CandidateAgentID: targetAgent,
		DependsOn:        enrichmentIDs,
		Input:            request,
	})

	dag := core.TaskDAG{
		Nodes:     nodes,
		Reasoning: reasoning(in, steps),
	}
	if err := dag.Validate(); err != nil {
		return core.TaskDAG{}, err
	}
	return dag, nil
}

// resolveAgent returns the first registered agent for the capability, or
// empty when none exists. Registry truth only.
func (p *Planner) resolveAgent(capabilityID string) (string, error) {
	agents, err := p.capabilities.Resolve(capabilityID)
	if err != nil {
		return "", fmt.Errorf("resolve capability %q: %w", capabilityID, err)
	}
	if len(agents) == 0 {
		return "", nil
	}
	return agents[0], nil
}

func reasoning(in core.Intent, steps []string) string {
	if len(steps) == 0 {
		return fmt.Sprintf("intent %s maps directly to %s", in.ID, in.TargetCapability)
	}
	return fmt.Sprintf("intent %s: enrich via %s, then %s",
		in.ID, strings.Join(steps, ", "), in.TargetCapability)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
