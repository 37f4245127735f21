package core

import "context"

// RiskLevel grades how sensitive an evaluated request+plan is.
type RiskLevel string

const (
	// RiskLow marks routine requests.
	RiskLow RiskLevel = "low"
	// RiskMedium marks requests needing caution or confirmation.
	RiskMedium RiskLevel = "medium"
	// RiskHigh marks requests that policy typically denies.
	RiskHigh RiskLevel = "high"
)

// PolicyResult is the ephemeral outcome of evaluating one request+plan
// against policy rules. It has no lifecycle of its own.
type PolicyResult struct {
	Allowed              bool      `json:"allowed"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	RiskLevel            RiskLevel `json:"risk_level"`
	Reasons              []string  `json:"reasons,omitempty"`
}

// CallerContext identifies the requester for policy evaluation.
type CallerContext struct {
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id,omitempty"`
	Roles     []string          `json:"roles,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PolicyService evaluates a plan against configured rules. Implementations
// must respect ctx deadlines; the policy check layer converts a deadline
// overrun into a DENY, never an ALLOW.
type PolicyService interface {
	Evaluate(ctx context.Context, dag TaskDAG, caller CallerContext) (PolicyResult, error)
}
