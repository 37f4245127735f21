// Package config holds every tunable of the analysis pipeline and the
// orchestration layer in one YAML-serializable structure. The behavioral
// knobs (intent confidence floor, decision thresholds, switch limits) are
// deliberately configuration rather than constants buried in code.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GateConfig tunes the L0 cheap gate.
type GateConfig struct {
	// MaxDirectLength is the request length ceiling (runes) for a direct
	// candidate.
	MaxDirectLength int `yaml:"max_direct_length"`
	// FactoidPatterns are regexes identifying trivially answerable factoid
	// questions.
	FactoidPatterns []string `yaml:"factoid_patterns"`
	// RiskKeywords force NEEDS_ANALYSIS regardless of other rules.
	RiskKeywords []string `yaml:"risk_keywords"`
}

// IntentConfig tunes the L2 intent matcher.
type IntentConfig struct {
	// ConfidenceFloor is the minimum normalized score for a non-fallback
	// match.
	ConfidenceFloor float64 `yaml:"confidence_floor"`
	// TopicWeight, EntityWeight and ActionWeight weight the three overlap
	// terms of the scoring function.
	TopicWeight  float64 `yaml:"topic_weight"`
	EntityWeight float64 `yaml:"entity_weight"`
	ActionWeight float64 `yaml:"action_weight"`
	// ScorerVersion identifies the scoring function; recorded with every
	// match for reproducibility.
	ScorerVersion string `yaml:"scorer_version"`
}

// DecisionConfig tunes the workflow decision engine.
type DecisionConfig struct {
	// HybridComplexity is the normalized complexity score at or above which
	// hybrid mode is selected.
	HybridComplexity float64 `yaml:"hybrid_complexity"`
	// HybridSteps is the step count above which hybrid mode is selected.
	HybridSteps int `yaml:"hybrid_steps"`
	// Complexity score weights over (node count, max depth, distinct
	// capabilities), normalized by NodeCountScale.
	NodeCountWeight  float64 `yaml:"node_count_weight"`
	DepthWeight      float64 `yaml:"depth_weight"`
	CapabilityWeight float64 `yaml:"capability_weight"`
	NodeCountScale   float64 `yaml:"node_count_scale"`
}

// PolicyConfig tunes the L4 policy check layer.
type PolicyConfig struct {
	// Timeout bounds one policy evaluation; overruns resolve to DENY.
	Timeout time.Duration `yaml:"timeout"`
}

// SwitchConfig tunes the hybrid switch controller.
type SwitchConfig struct {
	// ErrorRateThreshold over the sliding window triggers a switch.
	ErrorRateThreshold float64 `yaml:"error_rate_threshold"`
	// ErrorRateWindow is the sliding window size in observations.
	ErrorRateWindow int `yaml:"error_rate_window"`
	// CostThreshold triggers a switch when projected cost exceeds it.
	CostThreshold float64 `yaml:"cost_threshold"`
	// LatencyThreshold triggers a switch when a step exceeds it.
	LatencyThreshold time.Duration `yaml:"latency_threshold"`
	// Cooldown is the minimum interval between switch attempts.
	Cooldown time.Duration `yaml:"cooldown"`
	// MaxSwitches caps switches per task; the controller locks afterwards.
	MaxSwitches int `yaml:"max_switches"`
}

// OrchestratorConfig tunes DAG dispatch.
type OrchestratorConfig struct {
	// MaxParallelPerTask bounds concurrently running nodes of one task.
	MaxParallelPerTask int `yaml:"max_parallel_per_task"`
	// MaxParallelPerAgent bounds concurrent invocations per agent.
	MaxParallelPerAgent int `yaml:"max_parallel_per_agent"`
	// StateRetries bounds optimistic-write retries before surfacing
	// STATE_VERSION_CONFLICT.
	StateRetries int `yaml:"state_retries"`
	// AgentTimeout bounds one agent invocation.
	AgentTimeout time.Duration `yaml:"agent_timeout"`
	// MaxIterations bounds one ReAct reasoning loop.
	MaxIterations int `yaml:"max_iterations"`
}

// SemanticConfig tunes the L1 understanding layer.
type SemanticConfig struct {
	// Timeout bounds one semantic backend call.
	Timeout time.Duration `yaml:"timeout"`
}

// ModelConfig tunes the model routing layer.
type ModelConfig struct {
	// Providers is the ordered preference list attempted on each request.
	Providers []string `yaml:"providers"`
	// LocalFallback names the designated offline model attempted when all
	// configured providers fail.
	LocalFallback string `yaml:"local_fallback"`
}

// Config aggregates all sections.
type Config struct {
	Gate         GateConfig         `yaml:"gate"`
	Intent       IntentConfig       `yaml:"intent"`
	Decision     DecisionConfig     `yaml:"decision"`
	Policy       PolicyConfig       `yaml:"policy"`
	Switch       SwitchConfig       `yaml:"switch"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Semantic     SemanticConfig     `yaml:"semantic"`
	Model        ModelConfig        `yaml:"model"`
}

// Default returns the baseline configuration. All values here are starting
// points meant to be overridden per deployment.
func Default() Config {
	return Config{
		Gate: GateConfig{
			MaxDirectLength: 120,
			FactoidPatterns: []string{
				`(?i)^what\s+is\s+the\s+\w+\s+of\s+`,
				`(?i)^who\s+(is|was)\s+`,
				`(?i)^when\s+(did|was|is)\s+`,
				`(?i)^how\s+(many|much|tall|far|old)\s+`,
			},
			RiskKeywords: []string{"delete", "drop", "payment", "credential", "password", "wire transfer"},
		},
		Intent: IntentConfig{
			ConfidenceFloor: 0.35,
			TopicWeight:     2.0,
			EntityWeight:    1.0,
			ActionWeight:    1.5,
			ScorerVersion:   "v1",
		},
		Decision: DecisionConfig{
			HybridComplexity: 0.7,
			HybridSteps:      5,
			NodeCountWeight:  0.2,
			DepthWeight:      0.5,
			CapabilityWeight: 0.3,
			NodeCountScale:   10,
		},
		Policy: PolicyConfig{Timeout: 2 * time.Second},
		Switch: SwitchConfig{
			ErrorRateThreshold: 0.5,
			ErrorRateWindow:    10,
			CostThreshold:      100,
			LatencyThreshold:   30 * time.Second,
			Cooldown:           15 * time.Second,
			MaxSwitches:        3,
		},
		Orchestrator: OrchestratorConfig{
			MaxParallelPerTask:  4,
			MaxParallelPerAgent: 2,
			StateRetries:        3,
			AgentTimeout:        60 * time.Second,
			MaxIterations:       8,
		},
		Semantic: SemanticConfig{Timeout: 5 * time.Second},
		Model: ModelConfig{
			Providers:     []string{"openai", "anthropic"},
			LocalFallback: "local",
		},
	}
}

// Load reads a YAML file and merges it over Default. Absent keys keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
