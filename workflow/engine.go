// Package workflow abstracts the two interchangeable execution engines
// behind one Engine interface. Engine-specific internals stay opaque blobs
// behind the translation functions in translate.go; nothing outside the
// switch controller ever sees a native representation.
package workflow

import (
	"context"
	"fmt"

	"github.com/hupe1980/hybridflow/core"
)

// StepRunner executes one plan step on behalf of an engine. The orchestrator
// supplies a runner that delegates the step to an agent; engines themselves
// never talk to agents directly.
type StepRunner func(ctx context.Context, stepIndex int, step core.HybridStep) (string, error)

// Engine drives execution of a hybrid plan. Exactly one engine holds write
// access to the state at any time; the switch controller quiesces an engine
// (cancels its Run) before exporting.
type Engine interface {
	ID() core.EngineID

	// Load seeds the engine from neutral state, converting it into the
	// engine's native representation. Any prior native state is replaced.
	Load(state *core.HybridState)

	// Step executes the next pending plan step. It returns done=true when
	// the plan is complete. State advances only at step boundaries, so an
	// interrupted engine is always exportable.
	Step(ctx context.Context, run StepRunner) (done bool, err error)

	// Run drains Step until completion, a step error or ctx cancellation.
	Run(ctx context.Context, run StepRunner) error

	// Snapshot returns the neutral view of current progress. The returned
	// state is a copy; mutating it does not affect the engine.
	Snapshot() *core.HybridState

	// ExportState serializes the engine's native representation.
	ExportState() ([]byte, error)

	// ImportState replaces the engine's native state from a blob previously
	// produced by ExportState (or by Translate targeting this engine).
	ImportState(data []byte) error
}

// New constructs an engine by ID.
func New(id core.EngineID) (Engine, error) {
	switch id {
	case core.EngineStateMachine:
		return NewStateMachineEngine(), nil
	case core.EnginePlanner:
		return NewPlannerEngine(), nil
	default:
		return nil, fmt.Errorf("unknown workflow engine %q", id)
	}
}

// drain is the shared Run implementation.
func drain(ctx context.Context, e Engine, run StepRunner) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := e.Step(ctx, run)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
