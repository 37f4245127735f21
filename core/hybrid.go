package core

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"time"
)

// HybridStep describes one plan step inside a HybridState. Steps mirror DAG
// nodes but are index-addressed because both engines reason about plan
// positions, not graph IDs.
type HybridStep struct {
	NodeID     string `json:"node_id"`
	Capability string `json:"capability"`
	AgentID    string `json:"agent_id,omitempty"`
	Input      string `json:"input,omitempty"`
}

// HybridState is the engine-neutral execution state of a hybrid task. It is
// owned by whichever engine currently drives execution; ownership transfers
// atomically during a switch and exactly one engine holds write access at
// any time (enforced by the switch controller, which quiesces the source
// engine before translation).
type HybridState struct {
	Plan        []HybridStep      `json:"plan"`
	Outputs     map[int]string    `json:"outputs"`
	CurrentStep int               `json:"current_step"`
	Context     map[string]string `json:"context,omitempty"`
}

// NewHybridState builds the initial state for a plan.
func NewHybridState(plan []HybridStep) *HybridState {
	return &HybridState{
		Plan:    append([]HybridStep(nil), plan...),
		Outputs: make(map[int]string),
		Context: make(map[string]string),
	}
}

// Clone returns a deep copy.
func (h *HybridState) Clone() *HybridState {
	cp := &HybridState{
		Plan:        append([]HybridStep(nil), h.Plan...),
		Outputs:     make(map[int]string, len(h.Outputs)),
		CurrentStep: h.CurrentStep,
		Context:     make(map[string]string, len(h.Context)),
	}
	for k, v := range h.Outputs {
		cp.Outputs[k] = v
	}
	for k, v := range h.Context {
		cp.Context[k] = v
	}
	return cp
}

// Hash returns a stable FNV-1a digest over the canonical form of the state.
// Switch events record the digest before and after translation so an audit
// can prove no progress was lost.
func (h *HybridState) Hash() string {
	f := fnv.New64a()
	fmt.Fprintf(f, "steps=%d cur=%d", len(h.Plan), h.CurrentStep)
	keys := make([]int, 0, len(h.Outputs))
	for k := range h.Outputs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		fmt.Fprintf(f, "|%d=%s", k, h.Outputs[k])
	}
	ctxKeys := make([]string, 0, len(h.Context))
	for k := range h.Context {
		ctxKeys = append(ctxKeys, k)
	}
	sort.Strings(ctxKeys)
	for _, k := range ctxKeys {
		fmt.Fprintf(f, "|%s=%s", k, h.Context[k])
	}
	return fmt.Sprintf("%016x", f.Sum64())
}

// Equivalent reports structural equivalence with another state: same step
// count, same cursor and identical completed-step outputs. This is the
// post-translation verification used by the switch controller.
func (h *HybridState) Equivalent(other *HybridState) bool {
	if other == nil || len(h.Plan) != len(other.Plan) || h.CurrentStep != other.CurrentStep {
		return false
	}
	if len(h.Outputs) != len(other.Outputs) {
		return false
	}
	for k, v := range h.Outputs {
		if ov, ok := other.Outputs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// MarshalJSON keeps the int-keyed outputs map stable across encoders.
func (h *HybridState) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(h.Outputs))
	for k, v := range h.Outputs {
		out[fmt.Sprintf("%d", k)] = v
	}
	type wire struct {
		Plan        []HybridStep      `json:"plan"`
		Outputs     map[string]string `json:"outputs"`
		CurrentStep int               `json:"current_step"`
		Context     map[string]string `json:"context,omitempty"`
	}
	return json.Marshal(wire{Plan: h.Plan, Outputs: out, CurrentStep: h.CurrentStep, Context: h.Context})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (h *HybridState) UnmarshalJSON(data []byte) error {
	type wire struct {
		Plan        []HybridStep      `json:"plan"`
		Outputs     map[string]string `json:"outputs"`
		CurrentStep int               `json:"current_step"`
		Context     map[string]string `json:"context,omitempty"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	h.Plan = w.Plan
	h.CurrentStep = w.CurrentStep
	h.Context = w.Context
	if h.Context == nil {
		h.Context = map[string]string{}
	}
	h.Outputs = make(map[int]string, len(w.Outputs))
	for k, v := range w.Outputs {
		var i int
		if _, err := fmt.Sscanf(k, "%d", &i); err != nil {
			return fmt.Errorf("invalid output index %q: %w", k, err)
		}
		h.Outputs[i] = v
	}
	return nil
}

// SwitchEvent is one append-only audit entry describing an attempted engine
// switch. Events are never mutated or removed, including on task
// cancellation.
type SwitchEvent struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	FromEngine      EngineID  `json:"from_engine"`
	ToEngine        EngineID  `json:"to_engine"`
	Reason          string    `json:"reason"`
	CostDelta       float64   `json:"cost_delta"`
	Success         bool      `json:"success"`
	StateHashBefore string    `json:"state_hash_before"`
	StateHashAfter  string    `json:"state_hash_after,omitempty"`
	At              time.Time `json:"at"`
}
