package core

// Intent is a fixed, versioned abstraction of "what the user wants",
// decoupled from any specific agent. Intents are loaded from the intent
// registry and never mutated at runtime; the rest of the system refers to
// them by ID.
type Intent struct {
	ID               string `json:"id"`
	Domain           string `json:"domain"`
	TargetCapability string `json:"target_capability"`
	OutputFormat     string `json:"output_format"`
	// Depth hints how much expansion the planner should apply ("shallow"
	// or "deep").
	Depth string `json:"depth"`
	// Version is a semver-like string identifying the intent definition.
	Version string `json:"version"`
	// IsFallback marks the single designated catch-all intent the matcher
	// returns when nothing clears the confidence floor.
	IsFallback bool `json:"is_fallback"`
	// Keywords seed the matcher's scoring; they are part of the versioned
	// intent definition, not runtime state.
	Keywords []string `json:"keywords,omitempty"`
}

// IntentRegistry provides read-mostly access to the versioned intent
// catalog. Implementations are updated out-of-band; readers never observe a
// catalog without exactly one fallback intent.
type IntentRegistry interface {
	// ListIntents returns the intents for the given catalog version, or the
	// active version when version is empty. The returned slice is a
	// snapshot safe for caller iteration.
	ListIntents(version string) ([]Intent, error)

	// Fallback returns the designated fallback intent.
	Fallback() (Intent, error)
}
