// Package decision implements the workflow decision engine: a deterministic
// ordered rule chain mapping plan characteristics onto a workflow strategy.
// Given identical inputs and thresholds, the engine always yields the same
// strategy; this is a tested property, not an aspiration.
package decision

import (
	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
)

// Inputs are the features the decision rules consume.
type Inputs struct {
	// Complexity is the normalized plan complexity score (see Complexity).
	Complexity float64
	// StepCount is the number of DAG nodes.
	StepCount int
	// ObservabilityRequired asks for step-level transparency.
	ObservabilityRequired bool
	// LongHorizonRequired asks for plan lookahead.
	LongHorizonRequired bool
	// FailureHistory reports recent failures for this task class.
	FailureHistory bool
}

// Engine selects execution strategies.
type Engine struct {
	cfg config.DecisionConfig
}

// New builds an Engine with the given thresholds.
func New(cfg config.DecisionConfig) *Engine { return &Engine{cfg: cfg} }

// Complexity computes the normalized complexity score of a plan as a
// weighted mix of node count, dependency depth and capability diversity.
// Weights and the node-count normalization scale come from configuration.
func (e *Engine) Complexity(dag core.TaskDAG) float64 {
	n := float64(len(dag.Nodes)) / e.cfg.NodeCountScale
	if n > 1 {
		n = 1
	}
	depth := float64(dag.MaxDepth()) / e.cfg.NodeCountScale
	if depth > 1 {
		depth = 1
	}
	caps := float64(dag.DistinctCapabilities()) / e.cfg.NodeCountScale
	if caps > 1 {
		caps = 1
	}
	return e.cfg.NodeCountWeight*n + e.cfg.DepthWeight*depth + e.cfg.CapabilityWeight*caps
}

// Decide applies the rule chain in order, first match wins:
//
//  1. high complexity or many steps -> hybrid, planner primary
//  2. observability without long-horizon -> single, state machine
//  3. long-horizon without observability -> single, planner
//  4. failure history -> hybrid (fallback available)
//  5. default -> single, state machine
func (e *Engine) Decide(in Inputs) core.WorkflowStrategy {
	switch {
	case in.Complexity >= e.cfg.HybridComplexity || in.StepCount > e.cfg.HybridSteps:
		return core.WorkflowStrategy{
			Mode:     core.ModeHybrid,
			Primary:  core.EnginePlanner,
			Fallback: []core.EngineID{core.EngineStateMachine},
			Reason:   "complexity or step count above hybrid threshold",
		}
	case in.ObservabilityRequired && !in.LongHorizonRequired:
		return core.WorkflowStrategy{
			Mode:    core.ModeSingle,
			Primary: core.EngineStateMachine,
			Reason:  "observability required",
		}
	case in.LongHorizonRequired && !in.ObservabilityRequired:
		return core.WorkflowStrategy{
			Mode:    core.ModeSingle,
			Primary: core.EnginePlanner,
			Reason:  "long-horizon planning required",
		}
	case in.FailureHistory:
		return core.WorkflowStrategy{
			Mode:     core.ModeHybrid,
			Primary:  core.EnginePlanner,
			Fallback: []core.EngineID{core.EngineStateMachine},
			Reason:   "failure history for this task class",
		}
	default:
		return core.WorkflowStrategy{
			Mode:    core.ModeSingle,
			Primary: core.EngineStateMachine,
			Reason:  "default",
		}
	}
}
