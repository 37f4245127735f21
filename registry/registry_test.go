package registry

import (
	"errors"
	"testing"

	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/internal/testutil"
)

func TestCapabilityRegistry_ResolveOrderAndEmpty(t *testing.T) {
	r := NewCapabilityRegistry(
		core.CapabilityEntry{CapabilityID: "search", AgentID: "a1"},
		core.CapabilityEntry{CapabilityID: "search", AgentID: "a2"},
		core.CapabilityEntry{CapabilityID: "compose", AgentID: "a3"},
	)
	agents, err := r.Resolve("search")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 2 || agents[0] != "a1" || agents[1] != "a2" {
		t.Errorf("Resolve order wrong: %v", agents)
	}
	none, err := r.Resolve("unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("unknown capability should resolve to empty list, got %v", none)
	}
}

func TestIntentRegistry_RequiresExactlyOneFallback(t *testing.T) {
	_, err := NewIntentRegistry("v1", []core.Intent{
		{ID: "a", Version: "v1"},
	})
	if !errors.Is(err, ErrNoFallbackIntent) {
		t.Fatalf("expected ErrNoFallbackIntent, got %v", err)
	}

	_, err = NewIntentRegistry("v1", []core.Intent{
		{ID: "a", Version: "v1", IsFallback: true},
		{ID: "b", Version: "v1", IsFallback: true},
	})
	if !errors.Is(err, ErrNoFallbackIntent) {
		t.Fatalf("two fallbacks must be rejected, got %v", err)
	}
}

func TestIntentRegistry_VersionedCatalogs(t *testing.T) {
	r, err := NewIntentRegistry("v1", []core.Intent{
		{ID: "research", Version: "v1"},
		{ID: "chitchat", Version: "v1", IsFallback: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Publish("v2", []core.Intent{
		{ID: "research", Version: "v2"},
		{ID: "report", Version: "v2"},
		{ID: "chitchat", Version: "v2", IsFallback: true},
	}); err != nil {
		t.Fatal(err)
	}
	if r.ActiveVersion() != "v2" {
		t.Errorf("active = %s, want v2", r.ActiveVersion())
	}
	v1, err := r.ListIntents("v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(v1) != 2 {
		t.Errorf("old version must stay queryable, got %d intents", len(v1))
	}
	active, err := r.ListIntents("")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 3 {
		t.Errorf("empty version should serve active catalog, got %d", len(active))
	}
	fb, err := r.Fallback()
	if err != nil {
		t.Fatal(err)
	}
	if fb.ID != "chitchat" || fb.Version != "v2" {
		t.Errorf("fallback = %+v", fb)
	}
}

func TestAgentRegistry_ByCapabilityOrder(t *testing.T) {
	r := NewAgentRegistry()
	r.Register(testutil.NewScriptedAgent("a1", []string{"search"}))
	r.Register(testutil.NewScriptedAgent("a2", []string{"search", "compose"}))

	got := r.ByCapability("search")
	if len(got) != 2 || got[0].ID() != "a1" || got[1].ID() != "a2" {
		ids := make([]string, len(got))
		for i, a := range got {
			ids[i] = a.ID()
		}
		t.Errorf("ByCapability order wrong: %v", ids)
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
	entries := r.Entries()
	if len(entries) != 3 {
		t.Errorf("Entries = %d, want 3", len(entries))
	}
}
