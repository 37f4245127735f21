package core

import "fmt"

// TaskDAGNode is one capability-bound step of an executable plan.
type TaskDAGNode struct {
	ID         string `json:"id"`
	Capability string `json:"capability"`
	// CandidateAgentID is the agent the planner resolved for this step. An
	// empty value means no registered agent provides the capability; the
	// policy layer treats such nodes as rejectable, they are never
	// auto-resolved downstream.
	CandidateAgentID string `json:"candidate_agent_id,omitempty"`
	// DependsOn lists node IDs that must reach a terminal state before this
	// node may start. Order is preserved for deterministic planning output.
	DependsOn []string `json:"depends_on,omitempty"`
	// Input is the payload handed to the agent when the node executes.
	Input string `json:"input,omitempty"`
}

// TaskDAG is a directed acyclic graph of capability-bound steps representing
// the executable plan for one request. A DAG is immutable after policy
// approval; a rejected DAG is discarded, never edited.
type TaskDAG struct {
	Nodes     []TaskDAGNode `json:"nodes"`
	Reasoning string        `json:"reasoning,omitempty"`
}

// Validate checks structural integrity: every dependency must reference a
// node in the same DAG, and the dependency graph must be acyclic. Cycle
// detection is a Kahn-style pass over an index-based adjacency arena so the
// DAG is rejected up front rather than discovered mid-execution.
func (d TaskDAG) Validate() error {
	index := make(map[string]int, len(d.Nodes))
	for i, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node %d has empty id", ErrInvalidDAG, i)
		}
		if _, dup := index[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidDAG, n.ID)
		}
		index[n.ID] = i
	}

	indegree := make([]int, len(d.Nodes))
	dependents := make([][]int, len(d.Nodes))
	for i, n := range d.Nodes {
		for _, dep := range n.DependsOn {
			j, ok := index[dep]
			if !ok {
				return fmt.Errorf("%w: node %q depends on unknown node %q", ErrInvalidDAG, n.ID, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(d.Nodes))
	for i, deg := range indegree {
		if deg == 0 {
			queue = append(queue, i)
		}
	}
	visited := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		visited++
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if visited != len(d.Nodes) {
		return fmt.Errorf("%w: dependency cycle detected", ErrCircularDependency)
	}
	return nil
}

// TopoOrder returns node indices in a valid execution order. Validate must
// have succeeded; an error here indicates the DAG was mutated afterwards.
func (d TaskDAG) TopoOrder() ([]int, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	index := make(map[string]int, len(d.Nodes))
	for i, n := range d.Nodes {
		index[n.ID] = i
	}
	indegree := make([]int, len(d.Nodes))
	dependents := make([][]int, len(d.Nodes))
	for i, n := range d.Nodes {
		for _, dep := range n.DependsOn {
			j := index[dep]
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}
	order := make([]int, 0, len(d.Nodes))
	queue := make([]int, 0, len(d.Nodes))
	for i, deg := range indegree {
		if deg == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	return order, nil
}

// MaxDepth returns the length of the longest dependency chain. Used by the
// decision engine's complexity score.
func (d TaskDAG) MaxDepth() int {
	index := make(map[string]int, len(d.Nodes))
	for i, n := range d.Nodes {
		index[n.ID] = i
	}
	memo := make([]int, len(d.Nodes))
	var depth func(i int) int
	depth = func(i int) int {
		if memo[i] != 0 {
			return memo[i]
		}
		best := 1
		for _, dep := range d.Nodes[i].DependsOn {
			if j, ok := index[dep]; ok {
				if v := depth(j) + 1; v > best {
					best = v
				}
			}
		}
		memo[i] = best
		return best
	}
	max := 0
	for i := range d.Nodes {
		if v := depth(i); v > max {
			max = v
		}
	}
	return max
}

// DistinctCapabilities counts unique capabilities across nodes.
func (d TaskDAG) DistinctCapabilities() int {
	seen := map[string]struct{}{}
	for _, n := range d.Nodes {
		seen[n.Capability] = struct{}{}
	}
	return len(seen)
}
