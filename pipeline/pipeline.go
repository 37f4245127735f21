// Package pipeline wires the analysis layers and the orchestrator into one
// request flow: cheap gate, semantic digest, intent match, plan expansion,
// policy check, strategy decision, execution, and finally an execution
// record. Every terminal outcome, including the direct-answer short
// circuit and every failure, produces exactly one record.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/decision"
	"github.com/hupe1980/hybridflow/gate"
	"github.com/hupe1980/hybridflow/intent"
	"github.com/hupe1980/hybridflow/logging"
	"github.com/hupe1980/hybridflow/orchestrator"
	"github.com/hupe1980/hybridflow/planner"
	"github.com/hupe1980/hybridflow/policy"
	"github.com/hupe1980/hybridflow/semantic"
)

// Request is one inbound user request plus its session envelope.
type Request struct {
	Text   string
	Caller core.CallerContext
	// SessionContext carries prior-turn facts the digest may reuse.
	SessionContext map[string]string
	// CatalogVersion pins the intent catalog; empty means active.
	CatalogVersion string
	// Retrieval is the optional planning guardrail context.
	Retrieval planner.RetrievalContext
	// ObservabilityRequired and LongHorizonRequired are caller hints fed to
	// the strategy decision.
	ObservabilityRequired bool
	LongHorizonRequired   bool
}

// Response is the pipeline's terminal outcome for one request.
type Response struct {
	TraceID string
	// Direct is true when the gate short-circuited into a model answer and
	// no plan was executed.
	Direct       bool
	Answer       string
	Status       core.TaskStatus
	ReasonCode   string
	Intent       core.Intent
	UsedFallback bool
	Strategy     core.WorkflowStrategy
	Policy       core.PolicyResult
	NodeResults  []core.NodeResult
	SwitchEvents []core.SwitchEvent
	// Timings holds per-stage wall-clock durations, keyed by stage name.
	Timings map[string]time.Duration
}

// Components are the pipeline's stage implementations.
type Components struct {
	Gate         *gate.Gate
	Analyzer     *semantic.Analyzer
	Matcher      *intent.Matcher
	Planner      *planner.Planner
	Policy       *policy.CheckLayer
	Decider      *decision.Engine
	Orchestrator *orchestrator.Orchestrator
	Sink         core.RecordSink
}

// Options configures a Pipeline.
type Options struct {
	Logger logging.Logger
}

// Pipeline runs requests through the staged flow.
type Pipeline struct {
	cfg    config.Config
	c      Components
	logger logging.Logger

	// failureMu guards failure history per intent, consumed by decision
	// rule 4 on subsequent requests.
	failureMu sync.RWMutex
	failures  map[string]bool
}

// New builds a pipeline from its components.
func New(cfg config.Config, c Components, optFns ...func(o *Options)) *Pipeline {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Pipeline{cfg: cfg, c: c, logger: opts.Logger, failures: map[string]bool{}}
}

// Process runs one request to a terminal response. Analysis failures are
// returned inside the Response (terminal status plus reason code); the
// error return is reserved for broken pipeline wiring.
func (p *Pipeline) Process(ctx context.Context, req Request) (Response, error) {
	traceID := core.NewID()
	start := time.Now()
	timings := map[string]time.Duration{}
	resp := Response{TraceID: traceID, Timings: timings}

	var directAttempts []core.ModelAttempt

	// L0: cheap gate.
	stageStart := time.Now()
	outcome := p.c.Gate.Classify(req.Text)
	timings["gate"] = time.Since(stageStart)

	if outcome == gate.DirectCandidate {
		stageStart = time.Now()
		answer, attempts, err := p.c.Analyzer.AnswerDirect(ctx, req.Text)
		timings["direct_answer"] = time.Since(stageStart)
		directAttempts = attempts
		if err == nil {
			resp.Direct = true
			resp.Answer = answer
			resp.Status = core.StatusCompleted
			p.record(ctx, core.ExecutionRecord{
				TraceID:       traceID,
				TaskCount:     0,
				Success:       true,
				LatencyMS:     time.Since(start).Milliseconds(),
				ModelAttempts: attempts,
				Status:        core.StatusCompleted,
				At:            time.Now().UTC(),
			})
			return resp, nil
		}
		// No backend or all providers failed: fall back to full analysis,
		// never to a guessed answer.
		p.logger.Debug("direct answer unavailable, entering full analysis",
			"trace_id", traceID, "error", err)
	}

	// L1: semantic digest.
	stageStart = time.Now()
	sem, err := p.c.Analyzer.Analyze(ctx, req.Text, req.SessionContext)
	timings["semantic"] = time.Since(stageStart)
	if err != nil {
		return p.fail(ctx, resp, core.ExecutionRecord{TraceID: traceID, At: time.Now().UTC()}, start, directAttempts, err)
	}

	// L2: intent match. Absence of a confident match resolves to the
	// fallback intent, never to an error.
	stageStart = time.Now()
	match, err := p.c.Matcher.Resolve(ctx, sem, req.CatalogVersion)
	timings["intent"] = time.Since(stageStart)
	if err != nil {
		return p.fail(ctx, resp, core.ExecutionRecord{TraceID: traceID, At: time.Now().UTC()}, start, directAttempts, err)
	}
	resp.Intent = match.Intent
	resp.UsedFallback = match.UsedFallback

	rec := core.ExecutionRecord{TraceID: traceID, IntentID: match.Intent.ID, At: time.Now().UTC()}

	// L3: plan expansion and topological validation.
	stageStart = time.Now()
	dag, err := p.c.Planner.Plan(ctx, match.Intent, sem, req.Retrieval, req.Text)
	timings["planning"] = time.Since(stageStart)
	if err != nil {
		return p.fail(ctx, resp, rec, start, directAttempts, err)
	}
	rec.TaskCount = len(dag.Nodes)

	// L4: policy check, fail-closed.
	stageStart = time.Now()
	polRes, err := p.c.Policy.Check(ctx, dag, req.Caller)
	timings["policy"] = time.Since(stageStart)
	resp.Policy = polRes
	if err != nil {
		return p.fail(ctx, resp, rec, start, directAttempts, err)
	}

	// Strategy decision.
	strategy := p.c.Decider.Decide(decision.Inputs{
		Complexity:            p.c.Decider.Complexity(dag),
		StepCount:             len(dag.Nodes),
		ObservabilityRequired: req.ObservabilityRequired,
		LongHorizonRequired:   req.LongHorizonRequired,
		FailureHistory:        p.hasFailureHistory(match.Intent.ID),
	})
	resp.Strategy = strategy

	// Execute.
	stageStart = time.Now()
	result, err := p.c.Orchestrator.Execute(ctx, traceID, dag, strategy)
	timings["execution"] = time.Since(stageStart)
	if err != nil {
		return p.fail(ctx, resp, rec, start, directAttempts, err)
	}

	p.noteOutcome(match.Intent.ID, result.Status)

	resp.Status = result.Status
	resp.Answer = result.Output
	resp.NodeResults = result.NodeResults
	resp.SwitchEvents = result.SwitchEvents
	resp.ReasonCode = reasonFromNodes(result.NodeResults)

	rec.Success = result.Status == core.StatusCompleted
	rec.LatencyMS = time.Since(start).Milliseconds()
	rec.TaskResults = result.NodeResults
	rec.AgentIDs = result.AgentIDs
	rec.ModelAttempts = directAttempts
	rec.Status = result.Status
	rec.ReasonCode = resp.ReasonCode
	p.record(ctx, rec)

	p.logger.Info("request processed", "trace_id", traceID, "status", resp.Status,
		"intent", match.Intent.ID, "strategy", strategy.Mode, "latency_ms", rec.LatencyMS)
	return resp, nil
}

// fail finalizes a response for an analysis-stage error: terminal FAILED
// status, mapped reason code, and an execution record.
func (p *Pipeline) fail(ctx context.Context, resp Response, rec core.ExecutionRecord, start time.Time, attempts []core.ModelAttempt, err error) (Response, error) {
	resp.Status = core.StatusFailed
	resp.ReasonCode = core.ReasonFor(err)
	if resp.Intent.ID != "" {
		p.noteOutcome(resp.Intent.ID, core.StatusFailed)
	}

	rec.Success = false
	rec.LatencyMS = time.Since(start).Milliseconds()
	rec.ModelAttempts = attempts
	rec.Status = core.StatusFailed
	rec.ReasonCode = resp.ReasonCode
	p.record(ctx, rec)

	p.logger.Warn("request failed", "trace_id", resp.TraceID, "reason", resp.ReasonCode, "error", err)
	return resp, nil
}

// record appends the execution record. Sink failures are logged, never
// propagated: observability must not break the data path.
func (p *Pipeline) record(ctx context.Context, rec core.ExecutionRecord) {
	if p.c.Sink == nil {
		return
	}
	if err := p.c.Sink.Append(ctx, rec); err != nil {
		p.logger.Error("execution record write failed", "trace_id", rec.TraceID, "error", err)
	}
}

func (p *Pipeline) hasFailureHistory(intentID string) bool {
	p.failureMu.RLock()
	defer p.failureMu.RUnlock()
	return p.failures[intentID]
}

func (p *Pipeline) noteOutcome(intentID string, status core.TaskStatus) {
	p.failureMu.Lock()
	defer p.failureMu.Unlock()
	switch status {
	case core.StatusFailed:
		p.failures[intentID] = true
	case core.StatusCompleted:
		delete(p.failures, intentID)
	}
}

// reasonFromNodes surfaces a node-level reason code when the task did not
// complete cleanly and a node carries a recognized code.
func reasonFromNodes(results []core.NodeResult) string {
	for _, res := range results {
		if res.Status != core.NodeFailed {
			continue
		}
		switch res.Reason {
		case core.ReasonRoutingFailed, core.ReasonIterationLimit:
			return res.Reason
		}
	}
	return ""
}
