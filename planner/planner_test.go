package planner

import (
	"context"
	"testing"

	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/registry"
)

func testRegistry() *registry.CapabilityRegistry {
	return registry.NewCapabilityRegistry(
		core.CapabilityEntry{CapabilityID: "web.search", AgentID: "searcher"},
		core.CapabilityEntry{CapabilityID: "report.compose", AgentID: "writer"},
		core.CapabilityEntry{CapabilityID: "text.summarize", AgentID: "writer"},
	)
}

var deepIntent = core.Intent{
	ID: "report.generate", TargetCapability: "report.compose", Depth: "deep", Version: "1.0.0",
}

func TestPlan_DeepIntentExpandsEnrichmentSteps(t *testing.T) {
	p := New(testRegistry())
	sem := core.SemanticOutput{ActionSignals: []string{"research", "summarize"}}
	dag, err := p.Plan(context.Background(), deepIntent, sem, RetrievalContext{}, "prepare the report")
	if err != nil {
		t.Fatal(err)
	}
	if len(dag.Nodes) != 3 {
		t.Fatalf("expected 3 nodes (2 enrichment + target), got %d", len(dag.Nodes))
	}
	target := dag.Nodes[len(dag.Nodes)-1]
	if target.Capability != "report.compose" || len(target.DependsOn) != 2 {
		t.Errorf("target node wrong: %+v", target)
	}
	if err := dag.Validate(); err != nil {
		t.Errorf("planned DAG must validate: %v", err)
	}
}

func TestPlan_ShallowIntentSingleNode(t *testing.T) {
	p := New(testRegistry())
	in := core.Intent{ID: "general.chat", TargetCapability: "text.summarize", Depth: "shallow"}
	dag, err := p.Plan(context.Background(), in, core.SemanticOutput{ActionSignals: []string{"research"}}, RetrievalContext{}, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if len(dag.Nodes) != 1 {
		t.Fatalf("shallow intent should not expand, got %d nodes", len(dag.Nodes))
	}
	if dag.Nodes[0].CandidateAgentID != "writer" {
		t.Errorf("agent = %q, want writer", dag.Nodes[0].CandidateAgentID)
	}
}

func TestPlan_UnresolvedCapabilityYieldsEmptyAgent(t *testing.T) {
	p := New(registry.NewCapabilityRegistry()) // nothing registered
	in := core.Intent{ID: "x", TargetCapability: "report.compose", Depth: "shallow"}
	dag, err := p.Plan(context.Background(), in, core.SemanticOutput{}, RetrievalContext{}, "go")
	if err != nil {
		t.Fatal(err)
	}
	if dag.Nodes[0].CandidateAgentID != "" {
		t.Errorf("unresolvable capability must yield empty candidate agent, got %q", dag.Nodes[0].CandidateAgentID)
	}
}

func TestPlan_RetrievalGuardrailVetoesEnrichmentOnly(t *testing.T) {
	p := New(testRegistry())
	sem := core.SemanticOutput{ActionSignals: []string{"research"}}
	// Retrieval claims only the target capability works.
	retrieval := RetrievalContext{AvailableCapabilities: []string{"report.compose"}}
	dag, err := p.Plan(context.Background(), deepIntent, sem, retrieval, "prepare the report")
	if err != nil {
		t.Fatal(err)
	}
	if len(dag.Nodes) != 1 {
		t.Fatalf("vetoed enrichment should leave only the target node, got %d", len(dag.Nodes))
	}
	// Registry truth wins for the target even if retrieval had omitted it.
	if dag.Nodes[0].CandidateAgentID != "writer" {
		t.Errorf("registry resolution must not be overridden by retrieval: %+v", dag.Nodes[0])
	}
}
