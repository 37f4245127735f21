package core

import "context"

// Observation is what one agent invocation returned to the reasoning loop.
type Observation struct {
	Output string
	// NeedsMore signals the agent wants another reasoning iteration (a
	// further tool/action step) before it can complete.
	NeedsMore bool
}

// Agent is the invocation interface the orchestrator drives. Idempotent
// retries are the caller's responsibility, not the agent's.
type Agent interface {
	ID() string

	// Capabilities lists the capability IDs this agent serves.
	Capabilities() []string

	// Available reports whether the agent can currently accept work. The
	// delegator uses this to substitute another agent with the same
	// capability before failing a node.
	Available() bool

	// Invoke performs one action for the given capability. Implementations
	// must respect ctx cancellation and deadlines.
	Invoke(ctx context.Context, capabilityID, input string) (Observation, error)
}
