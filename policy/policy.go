// Package policy implements the policy service and the L4 policy check
// layer. The service evaluates a Task DAG plus caller context against an
// ordered rule set; conflicting outcomes resolve by priority (highest wins)
// and ties resolve to DENY. The check layer bounds evaluation with a
// timeout whose contract is fail-closed: an overrun is a denial, never an
// allow.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
)

// Effect is a rule's verdict when it matches.
type Effect string

const (
	// EffectAllow permits execution.
	EffectAllow Effect = "allow"
	// EffectDeny blocks execution.
	EffectDeny Effect = "deny"
	// EffectConfirm permits execution after explicit user confirmation.
	EffectConfirm Effect = "confirm"
)

// Rule is one policy rule. Higher Priority wins conflicts.
type Rule struct {
	Name     string
	Priority int
	Effect   Effect
	Risk     core.RiskLevel
	// Matches reports whether the rule applies to this plan+caller.
	Matches func(dag core.TaskDAG, caller core.CallerContext) bool
	// Reason is included in the result when the rule fires.
	Reason string
}

// Service is a rule-based core.PolicyService.
type Service struct {
	rules  []Rule
	logger logging.Logger
}

// Options configures a Service.
type Options struct {
	Logger logging.Logger
	// ExtraRules are appended to the default rule set.
	ExtraRules []Rule
}

// NewService builds the service with the default rule set plus any extras.
func NewService(optFns ...func(o *Options)) *Service {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	rules := append(defaultRules(), opts.ExtraRules...)
	return &Service{rules: rules, logger: opts.Logger}
}

// defaultRules encodes the baseline posture: unroutable plans are denied,
// oversized plans and sensitive capabilities need confirmation, everything
// else is allowed at low risk.
func defaultRules() []Rule {
	return []Rule{
		{
			Name: "deny_unresolved_capability", Priority: 100, Effect: EffectDeny, Risk: core.RiskHigh,
			Reason: "plan contains a capability with no registered agent",
			Matches: func(dag core.TaskDAG, _ core.CallerContext) bool {
				for _, n := range dag.Nodes {
					if n.CandidateAgentID == "" {
						return true
					}
				}
				return false
			},
		},
		{
			Name: "confirm_destructive_capability", Priority: 80, Effect: EffectConfirm, Risk: core.RiskMedium,
			Reason: "plan touches a destructive capability",
			Matches: func(dag core.TaskDAG, _ core.CallerContext) bool {
				for _, n := range dag.Nodes {
					if strings.HasPrefix(n.Capability, "data.delete") || strings.HasPrefix(n.Capability, "system.") {
						return true
					}
				}
				return false
			},
		},
		{
			Name: "confirm_large_plan", Priority: 60, Effect: EffectConfirm, Risk: core.RiskMedium,
			Reason: "plan exceeds the unattended step budget",
			Matches: func(dag core.TaskDAG, _ core.CallerContext) bool {
				return len(dag.Nodes) > 10
			},
		},
		{
			Name: "allow_default", Priority: 0, Effect: EffectAllow, Risk: core.RiskLow,
			Matches: func(core.TaskDAG, core.CallerContext) bool { return true },
		},
	}
}

// Evaluate implements core.PolicyService. All matching rules are collected,
// then resolved by priority; a priority tie between different effects
// resolves to DENY.
func (s *Service) Evaluate(ctx context.Context, dag core.TaskDAG, caller core.CallerContext) (core.PolicyResult, error) {
	if err := ctx.Err(); err != nil {
		return denyResult("policy evaluation cancelled"), err
	}

	var fired []Rule
	for _, r := range s.rules {
		if r.Matches(dag, caller) {
			fired = append(fired, r)
		}
	}
	if len(fired) == 0 {
		// No rule matched at all, including the default: treat as deny so
		// a misconfigured rule set cannot silently allow.
		return denyResult("no policy rule matched"), nil
	}

	sort.SliceStable(fired, func(i, j int) bool { return fired[i].Priority > fired[j].Priority })
	top := fired[0]
	effect := top.Effect
	for _, r := range fired[1:] {
		if r.Priority != top.Priority {
			break
		}
		if r.Effect != effect {
			effect = EffectDeny
			break
		}
	}

	result := core.PolicyResult{
		Allowed:              effect != EffectDeny,
		RequiresConfirmation: effect == EffectConfirm,
		RiskLevel:            top.Risk,
	}
	for _, r := range fired {
		if r.Reason != "" {
			result.Reasons = append(result.Reasons, r.Reason)
		}
	}
	return result, nil
}

func denyResult(reason string) core.PolicyResult {
	return core.PolicyResult{Allowed: false, RiskLevel: core.RiskHigh, Reasons: []string{reason}}
}

// CheckLayer is the L4 pipeline stage wrapping a core.PolicyService with
// the bounded-timeout, fail-closed contract.
type CheckLayer struct {
	service core.PolicyService
	cfg     config.PolicyConfig
	logger  logging.Logger
}

// NewCheckLayer builds the L4 stage.
func NewCheckLayer(service core.PolicyService, cfg config.PolicyConfig, optFns ...func(o *Options)) *CheckLayer {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &CheckLayer{service: service, cfg: cfg, logger: opts.Logger}
}

// Check evaluates the plan within the configured timeout. A timeout or
// evaluation error resolves to DENY with core.ErrPolicyTimeout /
// core.ErrPolicyDenied; there is no path from failure to ALLOW.
func (l *CheckLayer) Check(ctx context.Context, dag core.TaskDAG, caller core.CallerContext) (core.PolicyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	type outcome struct {
		result core.PolicyResult
		err    error
	}
	ch := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := l.service.Evaluate(ctx, dag, caller)
		ch <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		l.logger.Warn("policy evaluation timed out, denying", "elapsed", time.Since(start))
		return denyResult("policy evaluation timed out"), fmt.Errorf("%w after %s", core.ErrPolicyTimeout, l.cfg.Timeout)
	case out := <-ch:
		if out.err != nil {
			return denyResult("policy evaluation failed"), fmt.Errorf("%w: %v", core.ErrPolicyDenied, out.err)
		}
		if !out.result.Allowed {
			return out.result, fmt.Errorf("%w: %s", core.ErrPolicyDenied, strings.Join(out.result.Reasons, "; "))
		}
		return out.result, nil
	}
}
