// Package orchestrator executes approved task DAGs. The delegator binds
// each node to an available agent, the executor drives a bounded
// reason-act loop per node, the aggregator merges node outputs into the
// task result, and the tracker persists task state through the optimistic
// store protocol. Hybrid-mode tasks run through a workflow engine behind
// the switch controller so execution can move between engines mid-flight.
package orchestrator
