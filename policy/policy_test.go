package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/internal/testutil"
)

func TestEvaluate_AllowsRoutinePlan(t *testing.T) {
	s := NewService()
	dag := testutil.LinearDAG("a1", "web.search", "report.compose")
	res, err := s.Evaluate(context.Background(), dag, core.CallerContext{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed || res.RequiresConfirmation {
		t.Errorf("routine plan should be allowed without confirmation: %+v", res)
	}
	if res.RiskLevel != core.RiskLow {
		t.Errorf("risk = %s, want low", res.RiskLevel)
	}
}

func TestEvaluate_DeniesUnresolvedCapability(t *testing.T) {
	s := NewService()
	dag := core.TaskDAG{Nodes: []core.TaskDAGNode{
		{ID: "a", Capability: "exotic.capability"}, // no agent
	}}
	res, err := s.Evaluate(context.Background(), dag, core.CallerContext{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Error("unresolved capability must be denied")
	}
	if res.RiskLevel != core.RiskHigh {
		t.Errorf("risk = %s, want high", res.RiskLevel)
	}
}

func TestEvaluate_ConfirmDestructiveCapability(t *testing.T) {
	s := NewService()
	dag := testutil.LinearDAG("a1", "data.delete.records")
	res, err := s.Evaluate(context.Background(), dag, core.CallerContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed || !res.RequiresConfirmation {
		t.Errorf("destructive plan should require confirmation: %+v", res)
	}
}

func TestEvaluate_PriorityTieResolvesToDeny(t *testing.T) {
	s := NewService(func(o *Options) {
		o.ExtraRules = []Rule{
			{Name: "tie_allow", Priority: 50, Effect: EffectAllow, Risk: core.RiskLow,
				Matches: func(core.TaskDAG, core.CallerContext) bool { return true }},
			{Name: "tie_confirm", Priority: 50, Effect: EffectConfirm, Risk: core.RiskMedium,
				Matches: func(core.TaskDAG, core.CallerContext) bool { return true }},
		}
	})
	dag := testutil.LinearDAG("a1", "web.search")
	res, err := s.Evaluate(context.Background(), dag, core.CallerContext{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Errorf("conflicting effects at equal priority must deny: %+v", res)
	}
}

func TestEvaluate_HighestPriorityWins(t *testing.T) {
	s := NewService(func(o *Options) {
		o.ExtraRules = []Rule{
			{Name: "vip_allow", Priority: 200, Effect: EffectAllow, Risk: core.RiskLow,
				Matches: func(_ core.TaskDAG, c core.CallerContext) bool { return c.UserID == "vip" }},
		}
	})
	dag := core.TaskDAG{Nodes: []core.TaskDAGNode{{ID: "a", Capability: "x"}}} // unresolved, would deny at 100
	res, err := s.Evaluate(context.Background(), dag, core.CallerContext{UserID: "vip"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Errorf("priority 200 allow must win over priority 100 deny: %+v", res)
	}
}

// slowService blocks until the context is cancelled.
type slowService struct{}

func (slowService) Evaluate(ctx context.Context, _ core.TaskDAG, _ core.CallerContext) (core.PolicyResult, error) {
	<-ctx.Done()
	return core.PolicyResult{Allowed: true}, ctx.Err()
}

func TestCheck_TimeoutFailsClosed(t *testing.T) {
	cfg := config.PolicyConfig{Timeout: 20 * time.Millisecond}
	l := NewCheckLayer(slowService{}, cfg)
	res, err := l.Check(context.Background(), testutil.LinearDAG("a1", "web.search"), core.CallerContext{})
	if !errors.Is(err, core.ErrPolicyTimeout) {
		t.Fatalf("expected ErrPolicyTimeout, got %v", err)
	}
	if res.Allowed {
		t.Error("timeout must resolve to DENY, never ALLOW")
	}
}

func TestCheck_DenialSurfacesPolicyDenied(t *testing.T) {
	l := NewCheckLayer(NewService(), config.Default().Policy)
	dag := core.TaskDAG{Nodes: []core.TaskDAGNode{{ID: "a", Capability: "x"}}}
	_, err := l.Check(context.Background(), dag, core.CallerContext{})
	if !errors.Is(err, core.ErrPolicyDenied) {
		t.Fatalf("expected ErrPolicyDenied, got %v", err)
	}
}

func TestCheck_AllowPassesThrough(t *testing.T) {
	l := NewCheckLayer(NewService(), config.Default().Policy)
	res, err := l.Check(context.Background(), testutil.LinearDAG("a1", "web.search"), core.CallerContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Errorf("expected allow: %+v", res)
	}
}
