package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/hybridflow/core"
)

// plStep is one plan entry in the planner engine's native representation.
type plStep struct {
	Ref     string `json:"ref"`
	Action  string `json:"action"`
	AgentID string `json:"agent_id,omitempty"`
	Payload string `json:"payload,omitempty"`
	Done    bool   `json:"done"`
	Result  string `json:"result,omitempty"`
}

// plState is the planner engine's native representation: a goal sketch, the
// remaining-plan outline it maintains ahead of execution, and a scratchpad.
type plState struct {
	Goal     string            `json:"goal"`
	Plan     []plStep          `json:"plan"`
	Frontier int               `json:"frontier"`
	Outline  []string          `json:"outline,omitempty"`
	Scratch  map[string]string `json:"scratch,omitempty"`
}

// PlannerEngine is the long-horizon engine: before each step it refreshes
// an outline of the remaining plan so downstream steps see the projected
// path, trading per-step transparency for lookahead.
type PlannerEngine struct {
	mu    sync.Mutex
	state plState
}

// NewPlannerEngine returns an empty planner engine.
func NewPlannerEngine() *PlannerEngine {
	return &PlannerEngine{state: plState{Scratch: map[string]string{}}}
}

// ID implements Engine.
func (e *PlannerEngine) ID() core.EngineID { return core.EnginePlanner }

// Load implements Engine.
func (e *PlannerEngine) Load(state *core.HybridState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = neutralToPL(state)
	e.refreshOutline()
}

// Step implements Engine.
func (e *PlannerEngine) Step(ctx context.Context, run StepRunner) (bool, error) {
	e.mu.Lock()
	if e.state.Frontier >= len(e.state.Plan) {
		e.mu.Unlock()
		return true, nil
	}
	e.refreshOutline()
	idx := e.state.Frontier
	step := e.state.Plan[idx]
	e.mu.Unlock()

	result, err := run(ctx, idx, core.HybridStep{
		NodeID: step.Ref, Capability: step.Action, AgentID: step.AgentID, Input: step.Payload,
	})
	if err != nil {
		return false, fmt.Errorf("planner step %d (%s): %w", idx, step.Action, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Plan[idx].Done = true
	e.state.Plan[idx].Result = result
	e.state.Frontier = idx + 1
	return e.state.Frontier >= len(e.state.Plan), nil
}

// Run implements Engine.
func (e *PlannerEngine) Run(ctx context.Context, run StepRunner) error {
	return drain(ctx, e, run)
}

// Snapshot implements Engine.
func (e *PlannerEngine) Snapshot() *core.HybridState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return plToNeutral(e.state)
}

// ExportState implements Engine.
func (e *PlannerEngine) ExportState() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(e.state)
}

// ImportState implements Engine.
func (e *PlannerEngine) ImportState(data []byte) error {
	var s plState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("import planner state: %w", err)
	}
	if s.Frontier < 0 || s.Frontier > len(s.Plan) {
		return fmt.Errorf("import planner state: frontier %d out of range", s.Frontier)
	}
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	return nil
}

// refreshOutline rebuilds the projected remaining path. Caller holds e.mu.
func (e *PlannerEngine) refreshOutline() {
	outline := make([]string, 0, len(e.state.Plan)-e.state.Frontier)
	for _, s := range e.state.Plan[e.state.Frontier:] {
		outline = append(outline, s.Action)
	}
	e.state.Outline = outline
}

func neutralToPL(h *core.HybridState) plState {
	plan := make([]plStep, len(h.Plan))
	for i, p := range h.Plan {
		plan[i] = plStep{Ref: p.NodeID, Action: p.Capability, AgentID: p.AgentID, Payload: p.Input}
		if out, ok := h.Outputs[i]; ok {
			plan[i].Done = true
			plan[i].Result = out
		}
	}
	scratch := make(map[string]string, len(h.Context))
	for k, v := range h.Context {
		scratch[k] = v
	}
	goal := "execute plan"
	if len(h.Plan) > 0 {
		actions := make([]string, len(h.Plan))
		for i, p := range h.Plan {
			actions[i] = p.Capability
		}
		goal = "execute: " + strings.Join(actions, " -> ")
	}
	return plState{Goal: goal, Plan: plan, Frontier: h.CurrentStep, Scratch: scratch}
}

func plToNeutral(s plState) *core.HybridState {
	h := &core.HybridState{
		Plan:        make([]core.HybridStep, len(s.Plan)),
		Outputs:     map[int]string{},
		CurrentStep: s.Frontier,
		Context:     map[string]string{},
	}
	for i, st := range s.Plan {
		h.Plan[i] = core.HybridStep{NodeID: st.Ref, Capability: st.Action, AgentID: st.AgentID, Input: st.Payload}
		if st.Done {
			h.Outputs[i] = st.Result
		}
	}
	for k, v := range s.Scratch {
		h.Context[k] = v
	}
	return h
}
