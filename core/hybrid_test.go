package core

import (
	"encoding/json"
	"testing"
)

func sampleState() *HybridState {
	s := NewHybridState([]HybridStep{
		{NodeID: "a", Capability: "search", Input: "q"},
		{NodeID: "b", Capability: "summarize"},
	})
	s.Outputs[0] = "found it"
	s.CurrentStep = 1
	s.Context["topic"] = "geography"
	return s
}

func TestHybridState_HashStable(t *testing.T) {
	a, b := sampleState(), sampleState()
	if a.Hash() != b.Hash() {
		t.Error("identical states must hash identically")
	}
	b.Outputs[1] = "different"
	if a.Hash() == b.Hash() {
		t.Error("divergent states must hash differently")
	}
}

func TestHybridState_Equivalent(t *testing.T) {
	a, b := sampleState(), sampleState()
	if !a.Equivalent(b) {
		t.Fatal("clones should be equivalent")
	}
	b.CurrentStep = 0
	if a.Equivalent(b) {
		t.Error("cursor mismatch should break equivalence")
	}
}

func TestHybridState_JSONRoundTrip(t *testing.T) {
	a := sampleState()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back HybridState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !a.Equivalent(&back) {
		t.Errorf("round trip lost state: %+v vs %+v", a, &back)
	}
	if back.Context["topic"] != "geography" {
		t.Error("context entry lost in round trip")
	}
}

func TestHybridState_CloneIsDeep(t *testing.T) {
	a := sampleState()
	cp := a.Clone()
	cp.Outputs[0] = "mutated"
	cp.Context["topic"] = "mutated"
	if a.Outputs[0] != "found it" || a.Context["topic"] != "geography" {
		t.Error("clone aliases original maps")
	}
}
