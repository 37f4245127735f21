package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/hybridflow/core"
)

// smPhase is the explicit phase of the state-machine engine. The phase
// ledger is what buys this engine its observability: every transition is
// visible in the exported state.
type smPhase string

const (
	smIdle      smPhase = "idle"
	smExecuting smPhase = "executing"
	smDone      smPhase = "done"
)

// smStep is one plan step in the engine's native representation.
type smStep struct {
	NodeID     string `json:"node_id"`
	Capability string `json:"capability"`
	AgentID    string `json:"agent_id,omitempty"`
	Input      string `json:"input,omitempty"`
	Completed  bool   `json:"completed"`
	Output     string `json:"output,omitempty"`
}

// smState is the state-machine engine's native representation: a cursor
// over an ordered step ledger plus a context bag.
type smState struct {
	Phase  smPhase           `json:"phase"`
	Steps  []smStep          `json:"steps"`
	Cursor int               `json:"cursor"`
	Bag    map[string]string `json:"bag,omitempty"`
}

// StateMachineEngine executes plan steps strictly in order with explicit
// phase transitions.
type StateMachineEngine struct {
	mu    sync.Mutex
	state smState
}

// NewStateMachineEngine returns an idle engine.
func NewStateMachineEngine() *StateMachineEngine {
	return &StateMachineEngine{state: smState{Phase: smIdle, Bag: map[string]string{}}}
}

// ID implements Engine.
func (e *StateMachineEngine) ID() core.EngineID { return core.EngineStateMachine }

// Load implements Engine.
func (e *StateMachineEngine) Load(state *core.HybridState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = neutralToSM(state)
}

// Step implements Engine.
func (e *StateMachineEngine) Step(ctx context.Context, run StepRunner) (bool, error) {
	e.mu.Lock()
	if e.state.Cursor >= len(e.state.Steps) {
		e.state.Phase = smDone
		e.mu.Unlock()
		return true, nil
	}
	idx := e.state.Cursor
	step := e.state.Steps[idx]
	e.state.Phase = smExecuting
	e.mu.Unlock()

	output, err := run(ctx, idx, core.HybridStep{
		NodeID: step.NodeID, Capability: step.Capability, AgentID: step.AgentID, Input: step.Input,
	})
	if err != nil {
		return false, fmt.Errorf("state machine step %d (%s): %w", idx, step.Capability, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Steps[idx].Completed = true
	e.state.Steps[idx].Output = output
	e.state.Cursor = idx + 1
	if e.state.Cursor >= len(e.state.Steps) {
		e.state.Phase = smDone
		return true, nil
	}
	e.state.Phase = smIdle
	return false, nil
}

// Run implements Engine.
func (e *StateMachineEngine) Run(ctx context.Context, run StepRunner) error {
	return drain(ctx, e, run)
}

// Snapshot implements Engine.
func (e *StateMachineEngine) Snapshot() *core.HybridState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return smToNeutral(e.state)
}

// ExportState implements Engine.
func (e *StateMachineEngine) ExportState() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(e.state)
}

// ImportState implements Engine.
func (e *StateMachineEngine) ImportState(data []byte) error {
	var s smState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("import state machine state: %w", err)
	}
	if s.Cursor < 0 || s.Cursor > len(s.Steps) {
		return fmt.Errorf("import state machine state: cursor %d out of range", s.Cursor)
	}
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	return nil
}

func neutralToSM(h *core.HybridState) smState {
	steps := make([]smStep, len(h.Plan))
	for i, p := range h.Plan {
		steps[i] = smStep{NodeID: p.NodeID, Capability: p.Capability, AgentID: p.AgentID, Input: p.Input}
		if out, ok := h.Outputs[i]; ok {
			steps[i].Completed = true
			steps[i].Output = out
		}
	}
	bag := make(map[string]string, len(h.Context))
	for k, v := range h.Context {
		bag[k] = v
	}
	phase := smIdle
	if h.CurrentStep >= len(h.Plan) {
		phase = smDone
	}
	return smState{Phase: phase, Steps: steps, Cursor: h.CurrentStep, Bag: bag}
}

func smToNeutral(s smState) *core.HybridState {
	h := &core.HybridState{
		Plan:        make([]core.HybridStep, len(s.Steps)),
		Outputs:     map[int]string{},
		CurrentStep: s.Cursor,
		Context:     map[string]string{},
	}
	for i, st := range s.Steps {
		h.Plan[i] = core.HybridStep{NodeID: st.NodeID, Capability: st.Capability, AgentID: st.AgentID, Input: st.Input}
		if st.Completed {
			h.Outputs[i] = st.Output
		}
	}
	for k, v := range s.Bag {
		h.Context[k] = v
	}
	return h
}
