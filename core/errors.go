package core

import "errors"

// Reason codes surfaced to callers alongside terminal task statuses. Every
// failure path maps to exactly one code so clients can branch without
// parsing error strings.
const (
	ReasonRoutingFailed        = "ROUTING_FAILED"
	ReasonPolicyDenied         = "POLICY_DENIED"
	ReasonPolicyTimeout        = "POLICY_TIMEOUT"
	ReasonStateVersionConflict = "STATE_VERSION_CONFLICT"
	ReasonCircularDependency   = "CIRCULAR_DEPENDENCY"
	ReasonSwitchFailed         = "SWITCH_FAILED"
	ReasonIterationLimit       = "ITERATION_LIMIT"
	ReasonAllProvidersFailed   = "ALL_PROVIDERS_FAILED"
)

var (
	// ErrRoutingFailed indicates no registered agent can serve a required
	// capability.
	ErrRoutingFailed = errors.New("no agent available for required capability")
	// ErrPolicyDenied indicates the policy service rejected the plan.
	ErrPolicyDenied = errors.New("policy denied execution")
	// ErrPolicyTimeout indicates the policy service missed its deadline;
	// the contract is fail-closed, so this always accompanies a denial.
	ErrPolicyTimeout = errors.New("policy evaluation timed out")
	// ErrVersionConflict indicates an optimistic-lock collision in the task
	// store; the writer must re-read and retry.
	ErrVersionConflict = errors.New("task state version conflict")
	// ErrCircularDependency indicates the planned DAG contains a cycle.
	ErrCircularDependency = errors.New("circular dependency in task dag")
	// ErrInvalidDAG indicates a structurally broken DAG (unknown or
	// duplicate node references).
	ErrInvalidDAG = errors.New("invalid task dag")
	// ErrSwitchFailed indicates hybrid state translation or verification
	// failed and execution rolled back to the prior engine.
	ErrSwitchFailed = errors.New("engine switch failed")
	// ErrIterationLimit indicates a reasoning loop exhausted its bounded
	// iteration budget.
	ErrIterationLimit = errors.New("reasoning iteration limit exceeded")
	// ErrAllProvidersFailed indicates every configured model provider and
	// the local fallback failed.
	ErrAllProvidersFailed = errors.New("all model providers failed")
)

// ReasonFor maps a pipeline error to its caller-visible reason code.
// Unrecognized errors map to the empty string.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrRoutingFailed):
		return ReasonRoutingFailed
	case errors.Is(err, ErrPolicyTimeout):
		return ReasonPolicyTimeout
	case errors.Is(err, ErrPolicyDenied):
		return ReasonPolicyDenied
	case errors.Is(err, ErrVersionConflict):
		return ReasonStateVersionConflict
	case errors.Is(err, ErrCircularDependency):
		return ReasonCircularDependency
	case errors.Is(err, ErrSwitchFailed):
		return ReasonSwitchFailed
	case errors.Is(err, ErrIterationLimit):
		return ReasonIterationLimit
	case errors.Is(err, ErrAllProvidersFailed):
		return ReasonAllProvidersFailed
	default:
		return ""
	}
}
