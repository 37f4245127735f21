package core

// CapabilityEntry is one row of the capability catalog: an agent advertising
// a unit of functionality addressable independent of the agent providing it.
type CapabilityEntry struct {
	CapabilityID string `json:"capability_id"`
	AgentID      string `json:"agent_id"`
	// InputContract and OutputContract describe the payload shapes the
	// owning agent accepts and produces. Informative for planning.
	InputContract  string `json:"input_contract,omitempty"`
	OutputContract string `json:"output_contract,omitempty"`
}

// CapabilityRegistry provides read-mostly lookup over registered agent
// capabilities. The registry is updated out-of-band; request-time readers
// need no locking coordination with writers beyond the implementation's own.
type CapabilityRegistry interface {
	// ListCapabilities returns a snapshot of the full catalog.
	ListCapabilities() ([]CapabilityEntry, error)

	// Resolve returns agent IDs providing the capability, in registration
	// order. An empty list is a valid answer, not an error; the planner
	// emits an unresolved node and leaves the rejection to policy.
	Resolve(capabilityID string) ([]string, error)
}
