package orchestrator

import (
	"fmt"
	"strings"

	"github.com/hupe1980/hybridflow/core"
)

// Aggregator merges terminal node results into one task outcome.
type Aggregator struct{}

// Merge returns the combined output, the terminal task status, and node
// results ordered by DAG position. Completed outputs are concatenated in
// plan order; in a partial result, failed and aborted nodes are flagged
// inline so the caller can see exactly what is missing.
func (Aggregator) Merge(dag core.TaskDAG, results map[string]core.NodeResult) (string, core.TaskStatus, []core.NodeResult) {
	ordered := make([]core.NodeResult, 0, len(dag.Nodes))
	completed, failed := 0, 0
	var parts []string
	for _, node := range dag.Nodes {
		res, ok := results[node.ID]
		if !ok {
			res = core.NodeResult{NodeID: node.ID, Status: core.NodeAborted, Reason: "never dispatched"}
		}
		ordered = append(ordered, res)
		switch res.Status {
		case core.NodeCompleted:
			completed++
			if res.Output != "" {
				parts = append(parts, res.Output)
			}
		case core.NodeFailed:
			failed++
			parts = append(parts, fmt.Sprintf("[node %s failed: %s]", res.NodeID, res.Reason))
		default:
			parts = append(parts, fmt.Sprintf("[node %s not executed]", res.NodeID))
		}
	}

	status := core.StatusCompleted
	switch {
	case completed == len(dag.Nodes):
		status = core.StatusCompleted
	case completed > 0:
		status = core.StatusPartial
	default:
		status = core.StatusFailed
	}
	return strings.Join(parts, "\n\n"), status, ordered
}
