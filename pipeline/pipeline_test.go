package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/decision"
	"github.com/hupe1980/hybridflow/gate"
	"github.com/hupe1980/hybridflow/intent"
	"github.com/hupe1980/hybridflow/internal/testutil"
	"github.com/hupe1980/hybridflow/model"
	"github.com/hupe1980/hybridflow/orchestrator"
	"github.com/hupe1980/hybridflow/planner"
	"github.com/hupe1980/hybridflow/policy"
	"github.com/hupe1980/hybridflow/record"
	"github.com/hupe1980/hybridflow/registry"
	"github.com/hupe1980/hybridflow/semantic"
	"github.com/hupe1980/hybridflow/store"
)

type pipeOpts struct {
	models      []model.Model
	agents      []core.Agent
	policyLayer *policy.CheckLayer
	mutateCfg   func(cfg *config.Config)
}

func newTestPipeline(t *testing.T, opts pipeOpts) (*Pipeline, *record.MemorySink) {
	t.Helper()
	cfg := config.Default()
	if opts.mutateCfg != nil {
		opts.mutateCfg(&cfg)
	}

	g, err := gate.New(cfg.Gate)
	if err != nil {
		t.Fatal(err)
	}

	var router *model.Router
	if len(opts.models) > 0 {
		router = model.NewRouter(opts.models)
	}
	analyzer := semantic.New(router, cfg.Semantic)

	intentReg, err := registry.NewIntentRegistry("1.0.0", testutil.Intents())
	if err != nil {
		t.Fatal(err)
	}
	matcher := intent.NewMatcher(intentReg, cfg.Intent)

	agentReg := registry.NewAgentRegistry()
	for _, a := range opts.agents {
		agentReg.Register(a)
	}
	capReg := registry.NewCapabilityRegistry(agentReg.Entries()...)

	check := opts.policyLayer
	if check == nil {
		check = policy.NewCheckLayer(policy.NewService(), cfg.Policy)
	}

	sink := record.NewMemorySink()
	p := New(cfg, Components{
		Gate:         g,
		Analyzer:     analyzer,
		Matcher:      matcher,
		Planner:      planner.New(capReg),
		Policy:       check,
		Decider:      decision.New(cfg.Decision),
		Orchestrator: orchestrator.New(agentReg, store.NewMemoryStore(), cfg),
		Sink:         sink,
	})
	return p, sink
}

func TestProcess_DirectAnswerShortCircuit(t *testing.T) {
	question := "What is the capital of France?"
	mock := model.NewMockModel("gpt-test", "openai")
	mock.AddResponse(question, "Paris.")

	p, sink := newTestPipeline(t, pipeOpts{models: []model.Model{mock}})
	resp, err := p.Process(context.Background(), Request{Text: question, Caller: core.CallerContext{UserID: "u1"}})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Direct || resp.Answer != "Paris." {
		t.Fatalf("direct=%v answer=%q", resp.Direct, resp.Answer)
	}
	if resp.Status != core.StatusCompleted {
		t.Errorf("status = %s", resp.Status)
	}

	recs := sink.List()
	if len(recs) != 1 {
		t.Fatalf("expected exactly one execution record, got %d", len(recs))
	}
	if recs[0].TaskCount != 0 || !recs[0].Success {
		t.Errorf("direct answers record zero tasks: %+v", recs[0])
	}
	if len(recs[0].ModelAttempts) == 0 || !recs[0].ModelAttempts[0].Success {
		t.Errorf("model attempt missing: %+v", recs[0].ModelAttempts)
	}
}

func TestProcess_DirectCandidateFallsBackWithoutBackend(t *testing.T) {
	chatter := testutil.NewScriptedAgent("chatter", []string{"chat.respond"})
	p, sink := newTestPipeline(t, pipeOpts{agents: []core.Agent{chatter}})

	resp, err := p.Process(context.Background(), Request{
		Text:   "What is the capital of France?",
		Caller: core.CallerContext{UserID: "u1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Direct {
		t.Fatal("no backend: must fall back to full analysis, not a guessed answer")
	}
	if !resp.UsedFallback || resp.Intent.ID != "general.chat" {
		t.Errorf("expected fallback intent, got %q (fallback=%v)", resp.Intent.ID, resp.UsedFallback)
	}
	if resp.Status != core.StatusCompleted {
		t.Errorf("status = %s, results %+v", resp.Status, resp.NodeResults)
	}
	if chatter.Invocations() != 1 {
		t.Errorf("fallback plan should invoke the chat agent once, got %d", chatter.Invocations())
	}
	recs := sink.List()
	if len(recs) != 1 || recs[0].TaskCount != 1 {
		t.Errorf("record: %+v", recs)
	}
}

func TestProcess_ResearchReportFullPath(t *testing.T) {
	searcher := testutil.NewScriptedAgent("searcher", []string{"web.search"})
	writer := testutil.NewScriptedAgent("writer", []string{"report.compose", "chat.respond"})
	p, sink := newTestPipeline(t, pipeOpts{agents: []core.Agent{searcher, writer}})

	resp, err := p.Process(context.Background(), Request{
		Text:   "Research quarterly sales and write a report",
		Caller: core.CallerContext{UserID: "u1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Intent.ID != "report.generate" || resp.UsedFallback {
		t.Fatalf("intent = %q fallback=%v", resp.Intent.ID, resp.UsedFallback)
	}
	if resp.Status != core.StatusCompleted {
		t.Fatalf("status = %s, results %+v", resp.Status, resp.NodeResults)
	}
	if len(resp.NodeResults) != 2 {
		t.Fatalf("deep intent with a research signal should plan 2 nodes, got %d", len(resp.NodeResults))
	}
	if resp.Strategy.Mode != core.ModeSingle {
		t.Errorf("small plan should run single mode, got %s", resp.Strategy.Mode)
	}
	if !strings.Contains(resp.Answer, "report.compose") {
		t.Errorf("answer missing composed output: %q", resp.Answer)
	}

	recs := sink.List()
	if len(recs) != 1 {
		t.Fatalf("records: %d", len(recs))
	}
	if recs[0].IntentID != "report.generate" || recs[0].TaskCount != 2 || !recs[0].Success {
		t.Errorf("record: %+v", recs[0])
	}
	if len(recs[0].AgentIDs) != 2 {
		t.Errorf("both agents must be recorded: %v", recs[0].AgentIDs)
	}
	for _, stage := range []string{"gate", "semantic", "intent", "planning", "policy", "execution"} {
		if _, ok := resp.Timings[stage]; !ok {
			t.Errorf("missing timing for stage %q", stage)
		}
	}
}

func TestProcess_PolicyDeniesUnroutablePlan(t *testing.T) {
	// No web.search agent: the research enrichment step stays unresolved
	// and the default deny rule must reject the plan before execution.
	writer := testutil.NewScriptedAgent("writer", []string{"report.compose"})
	p, sink := newTestPipeline(t, pipeOpts{agents: []core.Agent{writer}})

	resp, err := p.Process(context.Background(), Request{
		Text:   "Research quarterly sales and write a report",
		Caller: core.CallerContext{UserID: "u1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != core.StatusFailed {
		t.Fatalf("status = %s", resp.Status)
	}
	if resp.ReasonCode != core.ReasonPolicyDenied {
		t.Errorf("reason = %q, want %q", resp.ReasonCode, core.ReasonPolicyDenied)
	}
	if resp.Policy.Allowed {
		t.Error("policy result must record the denial")
	}
	if len(resp.NodeResults) != 0 {
		t.Error("denied plan must never reach the orchestrator")
	}
	if writer.Invocations() != 0 {
		t.Error("denied plan must not invoke agents")
	}
	recs := sink.List()
	if len(recs) != 1 || recs[0].Success || recs[0].ReasonCode != core.ReasonPolicyDenied {
		t.Errorf("record: %+v", recs)
	}
}

// slowPolicy simulates a policy backend that misses its deadline.
type slowPolicy struct{ delay time.Duration }

func (s slowPolicy) Evaluate(ctx context.Context, dag core.TaskDAG, caller core.CallerContext) (core.PolicyResult, error) {
	select {
	case <-time.After(s.delay):
		return core.PolicyResult{Allowed: true, RiskLevel: core.RiskLow}, nil
	case <-ctx.Done():
		return core.PolicyResult{}, ctx.Err()
	}
}

func TestProcess_PolicyTimeoutFailsClosed(t *testing.T) {
	chatter := testutil.NewScriptedAgent("chatter", []string{"chat.respond"})
	cfg := config.Default()
	cfg.Policy.Timeout = 10 * time.Millisecond
	check := policy.NewCheckLayer(slowPolicy{delay: 500 * time.Millisecond}, cfg.Policy)

	p, sink := newTestPipeline(t, pipeOpts{agents: []core.Agent{chatter}, policyLayer: check})
	resp, err := p.Process(context.Background(), Request{
		Text:   "chat with me about the weather",
		Caller: core.CallerContext{UserID: "u1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != core.StatusFailed {
		t.Fatalf("status = %s, want FAILED", resp.Status)
	}
	if resp.ReasonCode != core.ReasonPolicyTimeout {
		t.Errorf("reason = %q, want %q", resp.ReasonCode, core.ReasonPolicyTimeout)
	}
	if chatter.Invocations() != 0 {
		t.Error("fail-closed: no execution after a policy timeout")
	}
	recs := sink.List()
	if len(recs) != 1 || recs[0].ReasonCode != core.ReasonPolicyTimeout {
		t.Errorf("record: %+v", recs)
	}
}

func TestProcess_RiskKeywordSkipsDirectPath(t *testing.T) {
	mock := model.NewMockModel("gpt-test", "openai")
	chatter := testutil.NewScriptedAgent("chatter", []string{"chat.respond"})
	p, _ := newTestPipeline(t, pipeOpts{models: []model.Model{mock}, agents: []core.Agent{chatter}})

	resp, err := p.Process(context.Background(), Request{
		Text:   "What is the password of the admin account?",
		Caller: core.CallerContext{UserID: "u1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Direct {
		t.Fatal("risk keyword must force full analysis")
	}
	if mock.Calls() != 0 {
		t.Errorf("direct-answer backend must not be consulted, calls=%d", mock.Calls())
	}
}

func TestProcess_FailureHistoryBiasesNextStrategy(t *testing.T) {
	// First run fails at execution (agent error). The next request with the
	// same intent must pick a hybrid strategy via the failure-history rule.
	chatter := testutil.NewScriptedAgent("chatter", []string{"chat.respond"})
	chatter.FailWith(context.DeadlineExceeded)
	p, _ := newTestPipeline(t, pipeOpts{agents: []core.Agent{chatter}})

	req := Request{Text: "hello there friend", Caller: core.CallerContext{UserID: "u1"}}
	first, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != core.StatusFailed {
		t.Fatalf("first run status = %s, want FAILED", first.Status)
	}

	second, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if second.Strategy.Mode != core.ModeHybrid {
		t.Errorf("failure history must select hybrid, got %s (%s)", second.Strategy.Mode, second.Strategy.Reason)
	}
	if second.Status != core.StatusCompleted {
		t.Errorf("second run status = %s", second.Status)
	}
}
