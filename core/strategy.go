package core

// EngineID names a workflow engine implementation.
type EngineID string

const (
	// EngineStateMachine is the step-by-step state-machine execution engine.
	// It favors observability: every step transition is explicit.
	EngineStateMachine EngineID = "state_machine"
	// EnginePlanner is the long-horizon planning engine. It favors plan
	// lookahead over per-step transparency.
	EnginePlanner EngineID = "planner"
)

// StrategyMode selects how a task is executed.
type StrategyMode string

const (
	// ModeSingle runs the whole task on one engine.
	ModeSingle StrategyMode = "single"
	// ModeHybrid runs with a primary engine and permits mid-flight switches
	// to a fallback engine.
	ModeHybrid StrategyMode = "hybrid"
)

// WorkflowStrategy is the decision engine's verdict for one task. The
// original record is retained for audit even when later switch events move
// execution to a different engine.
type WorkflowStrategy struct {
	Mode     StrategyMode `json:"mode"`
	Primary  EngineID     `json:"primary"`
	Fallback []EngineID   `json:"fallback,omitempty"`
	// Reason summarizes which decision rule fired.
	Reason string `json:"reason,omitempty"`
}
