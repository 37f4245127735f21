package config

import "fmt"

// Validate checks cross-field consistency. A zero or negative bound that
// would disable a safety limit is rejected rather than silently treated as
// unlimited.
func (c Config) Validate() error {
	if c.Gate.MaxDirectLength <= 0 {
		return fmt.Errorf("gate.max_direct_length must be positive, got %d", c.Gate.MaxDirectLength)
	}
	if c.Intent.ConfidenceFloor < 0 || c.Intent.ConfidenceFloor > 1 {
		return fmt.Errorf("intent.confidence_floor must be in [0,1], got %g", c.Intent.ConfidenceFloor)
	}
	if c.Decision.HybridSteps <= 0 {
		return fmt.Errorf("decision.hybrid_steps must be positive, got %d", c.Decision.HybridSteps)
	}
	if c.Decision.NodeCountScale <= 0 {
		return fmt.Errorf("decision.node_count_scale must be positive, got %g", c.Decision.NodeCountScale)
	}
	if c.Policy.Timeout <= 0 {
		return fmt.Errorf("policy.timeout must be positive, got %s", c.Policy.Timeout)
	}
	if c.Switch.MaxSwitches <= 0 {
		return fmt.Errorf("switch.max_switches must be positive, got %d", c.Switch.MaxSwitches)
	}
	if c.Switch.ErrorRateWindow <= 0 {
		return fmt.Errorf("switch.error_rate_window must be positive, got %d", c.Switch.ErrorRateWindow)
	}
	if c.Switch.ErrorRateThreshold <= 0 || c.Switch.ErrorRateThreshold > 1 {
		return fmt.Errorf("switch.error_rate_threshold must be in (0,1], got %g", c.Switch.ErrorRateThreshold)
	}
	if c.Orchestrator.MaxParallelPerTask <= 0 {
		return fmt.Errorf("orchestrator.max_parallel_per_task must be positive, got %d", c.Orchestrator.MaxParallelPerTask)
	}
	if c.Orchestrator.MaxIterations <= 0 {
		return fmt.Errorf("orchestrator.max_iterations must be positive, got %d", c.Orchestrator.MaxIterations)
	}
	if c.Orchestrator.StateRetries <= 0 {
		return fmt.Errorf("orchestrator.state_retries must be positive, got %d", c.Orchestrator.StateRetries)
	}
	if len(c.Model.Providers) == 0 && c.Model.LocalFallback == "" {
		return fmt.Errorf("model: at least one provider or a local fallback is required")
	}
	return nil
}
