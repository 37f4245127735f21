package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
)

// reactPhase names the states of the per-node reasoning loop.
type reactPhase string

const (
	phaseThought     reactPhase = "thought"
	phaseAction      reactPhase = "action"
	phaseObservation reactPhase = "observation"
	phaseDone        reactPhase = "done"
	phaseFailed      reactPhase = "failed"
)

// Executor runs one DAG node as a bounded reason-act loop. Each iteration
// performs exactly one agent invocation; an observation that needs more
// work feeds the next iteration's input. The loop ends in done, failed, or
// core.ErrIterationLimit once the iteration budget is spent.
type Executor struct {
	maxIterations int
	agentTimeout  time.Duration
	logger        logging.Logger
}

// NewExecutor returns an executor with the given bounds.
func NewExecutor(maxIterations int, agentTimeout time.Duration, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Executor{maxIterations: maxIterations, agentTimeout: agentTimeout, logger: logger}
}

// RunNode executes the node on the given agent and returns its final
// output. The returned output is the last observation even on iteration
// exhaustion, so partial work is never discarded.
func (e *Executor) RunNode(ctx context.Context, node core.TaskDAGNode, agent core.Agent) (string, error) {
	input := node.Input
	var last string
	for iter := 1; iter <= e.maxIterations; iter++ {
		e.logger.Debug("react transition", "node", node.ID, "iteration", iter,
			"from", phaseThought, "to", phaseAction, "agent", agent.ID())

		actionCtx, cancel := context.WithTimeout(ctx, e.agentTimeout)
		obs, err := agent.Invoke(actionCtx, node.Capability, input)
		cancel()
		if err != nil {
			e.logger.Debug("react transition", "node", node.ID, "iteration", iter,
				"from", phaseAction, "to", phaseFailed, "error", err)
			return "", fmt.Errorf("node %s iteration %d: %w", node.ID, iter, err)
		}

		last = obs.Output
		if !obs.NeedsMore {
			e.logger.Debug("react transition", "node", node.ID, "iteration", iter,
				"from", phaseObservation, "to", phaseDone)
			return last, nil
		}
		// Observation feeds the next thought.
		e.logger.Debug("react transition", "node", node.ID, "iteration", iter,
			"from", phaseObservation, "to", phaseThought)
		input = obs.Output
	}
	return last, fmt.Errorf("%w: node %s after %d iterations", core.ErrIterationLimit, node.ID, e.maxIterations)
}
