package testutil

import "github.com/hupe1980/hybridflow/core"

// LinearDAG builds a chain a -> b -> c ... over the given capabilities,
// each node resolved to the given agent.
func LinearDAG(agentID string, capabilities ...string) core.TaskDAG {
	nodes := make([]core.TaskDAGNode, len(capabilities))
	for i, capability := range capabilities {
		n := core.TaskDAGNode{
			ID:               nodeID(i),
			Capability:       capability,
			CandidateAgentID: agentID,
		}
		if i > 0 {
			n.DependsOn = []string{nodeID(i - 1)}
		}
		nodes[i] = n
	}
	return core.TaskDAG{Nodes: nodes, Reasoning: "test fixture"}
}

func nodeID(i int) string {
	return string(rune('a' + i))
}

// Intents returns a small versioned catalog with one fallback.
func Intents() []core.Intent {
	return []core.Intent{
		{
			ID: "research.topic", Domain: "research", TargetCapability: "web.search",
			OutputFormat: "markdown", Depth: "deep", Version: "1.0.0",
			Keywords: []string{"research", "investigate", "find", "sources"},
		},
		{
			ID: "report.generate", Domain: "reporting", TargetCapability: "report.compose",
			OutputFormat: "document", Depth: "deep", Version: "1.0.0",
			Keywords: []string{"report", "summary", "quarterly", "charts"},
		},
		{
			ID: "general.chat", Domain: "general", TargetCapability: "chat.respond",
			OutputFormat: "text", Depth: "shallow", Version: "1.0.0",
			IsFallback: true,
		},
	}
}
