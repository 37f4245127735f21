// Package core defines the shared contracts and data model of HybridFlow:
// the semantic digest produced by the understanding layer, versioned intents,
// the Task DAG, policy results, workflow strategies, hybrid execution state,
// switch audit events, execution records and the service interfaces
// (registries, policy service, agents, task store, record sink) that
// concrete implementations plug into.
//
// Types in this package are intentionally free of behavior beyond validation
// and cloning so that every layer of the pipeline can depend on them without
// import cycles.
package core
