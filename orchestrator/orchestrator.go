package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
	"github.com/hupe1980/hybridflow/registry"
	"github.com/hupe1980/hybridflow/switchctl"
	"github.com/hupe1980/hybridflow/workflow"
)

// Result is the terminal outcome of one orchestrated task.
type Result struct {
	TaskID       string
	Status       core.TaskStatus
	Output       string
	NodeResults  []core.NodeResult
	AgentIDs     []string
	SwitchEvents []core.SwitchEvent
}

// Options configures the orchestrator.
type Options struct {
	Logger logging.Logger
}

// Orchestrator runs approved DAGs to a terminal status. Single-mode tasks
// dispatch independent nodes in parallel under per-task and per-agent
// concurrency bounds; hybrid-mode tasks execute through a workflow engine
// supervised by the switch controller.
type Orchestrator struct {
	cfg       config.OrchestratorConfig
	switchCfg config.SwitchConfig
	delegator *Delegator
	executor  *Executor
	agg       Aggregator
	tracker   *Tracker
	logger    logging.Logger

	agentSemMu sync.Mutex
	agentSems  map[string]*semaphore.Weighted
}

// New builds an orchestrator over the given agents and task store.
func New(agents *registry.AgentRegistry, store core.TaskStore, cfg config.Config, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		cfg:       cfg.Orchestrator,
		switchCfg: cfg.Switch,
		delegator: NewDelegator(agents),
		executor:  NewExecutor(cfg.Orchestrator.MaxIterations, cfg.Orchestrator.AgentTimeout, opts.Logger),
		tracker:   NewTracker(store, cfg.Orchestrator.StateRetries, opts.Logger),
		logger:    opts.Logger,
		agentSems: map[string]*semaphore.Weighted{},
	}
}

// Execute runs the DAG under the given strategy and always returns a
// terminal status with the best available partial result. The returned
// error is reserved for infrastructure failures (store writes, broken
// DAGs); node-level failures surface through Result instead.
func (o *Orchestrator) Execute(ctx context.Context, taskID string, dag core.TaskDAG, strategy core.WorkflowStrategy) (Result, error) {
	if err := dag.Validate(); err != nil {
		return Result{TaskID: taskID, Status: core.StatusFailed}, err
	}
	if err := o.tracker.Create(ctx, core.TaskRecord{
		TaskID:   taskID,
		Status:   core.StatusPending,
		DAG:      dag,
		Strategy: strategy,
	}); err != nil {
		return Result{TaskID: taskID, Status: core.StatusFailed}, err
	}
	if err := o.tracker.Update(ctx, taskID, func(rec *core.TaskRecord) {
		rec.Status = core.StatusRunning
	}); err != nil {
		return Result{TaskID: taskID, Status: core.StatusFailed}, err
	}

	var (
		results map[string]core.NodeResult
		events  []core.SwitchEvent
	)
	if strategy.Mode == core.ModeHybrid {
		results, events = o.runHybrid(ctx, taskID, dag, strategy)
	} else {
		results = o.runSingle(ctx, taskID, dag)
	}

	output, status, ordered := o.agg.Merge(dag, results)
	if ctx.Err() != nil {
		status = core.StatusCancelled
	}

	agentIDs := collectAgentIDs(ordered)
	// Final write happens on a background context so a cancelled task still
	// reaches a persisted terminal state.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.tracker.Update(persistCtx, taskID, func(rec *core.TaskRecord) {
		rec.Status = status
		rec.NodeResults = ordered
		rec.SwitchHistory = events
	}); err != nil {
		return Result{TaskID: taskID, Status: core.StatusFailed, NodeResults: ordered}, err
	}

	o.logger.Info("task finished", "task_id", taskID, "status", status,
		"nodes", len(dag.Nodes), "switches", len(events))
	return Result{
		TaskID:       taskID,
		Status:       status,
		Output:       output,
		NodeResults:  ordered,
		AgentIDs:     agentIDs,
		SwitchEvents: events,
	}, nil
}

// runSingle dispatches DAG nodes as their dependencies complete. A failed
// or aborted dependency aborts all transitive dependents; independent
// branches keep running.
func (o *Orchestrator) runSingle(ctx context.Context, taskID string, dag core.TaskDAG) map[string]core.NodeResult {
	n := len(dag.Nodes)
	index := make(map[string]int, n)
	for i, node := range dag.Nodes {
		index[node.ID] = i
	}
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i, node := range dag.Nodes {
		for _, dep := range node.DependsOn {
			indegree[i]++
			dependents[index[dep]] = append(dependents[index[dep]], i)
		}
	}

	results := make(map[string]core.NodeResult, n)
	taskSem := semaphore.NewWeighted(int64(o.cfg.MaxParallelPerTask))
	doneCh := make(chan core.NodeResult)

	launch := func(i int) {
		node := dag.Nodes[i]
		go func() {
			doneCh <- o.runNode(ctx, taskSem, node)
		}()
	}

	// finish records a terminal node result and returns dependents that
	// became dispatchable, aborting those whose dependency did not complete.
	pendingAborts := []core.NodeResult{}
	finish := func(res core.NodeResult) []int {
		results[res.NodeID] = res
		var ready []int
		for _, j := range dependents[index[res.NodeID]] {
			indegree[j]--
			if indegree[j] > 0 {
				continue
			}
			if o.depsCompleted(dag.Nodes[j], results) {
				ready = append(ready, j)
			} else {
				pendingAborts = append(pendingAborts, core.NodeResult{
					NodeID: dag.Nodes[j].ID,
					Status: core.NodeAborted,
					Reason: "upstream dependency did not complete",
				})
			}
		}
		return ready
	}

	inFlight := 0
	for i, deg := range indegree {
		if deg == 0 {
			launch(i)
			inFlight++
		}
	}
	recorded := 0
	for recorded < n {
		var res core.NodeResult
		if len(pendingAborts) > 0 {
			res = pendingAborts[0]
			pendingAborts = pendingAborts[1:]
		} else if inFlight > 0 {
			res = <-doneCh
			inFlight--
		} else {
			break
		}
		recorded++
		for _, j := range finish(res) {
			launch(j)
			inFlight++
		}
		// Node results are persisted as they arrive so a crash never loses
		// more than the in-flight nodes.
		if err := o.tracker.Update(ctx, taskID, func(rec *core.TaskRecord) {
			rec.NodeResults = append(rec.NodeResults, res)
		}); err != nil {
			o.logger.Warn("node result persistence failed", "task_id", taskID, "node", res.NodeID, "error", err)
		}
	}
	return results
}

// runNode resolves an agent and drives the reasoning loop for one node.
func (o *Orchestrator) runNode(ctx context.Context, taskSem *semaphore.Weighted, node core.TaskDAGNode) core.NodeResult {
	if err := taskSem.Acquire(ctx, 1); err != nil {
		return core.NodeResult{NodeID: node.ID, Status: core.NodeAborted, Reason: "task cancelled"}
	}
	defer taskSem.Release(1)

	agent, err := o.delegator.Resolve(node)
	if err != nil {
		return core.NodeResult{NodeID: node.ID, Status: core.NodeFailed, Reason: core.ReasonFor(err)}
	}

	agentSem := o.semFor(agent.ID())
	if err := agentSem.Acquire(ctx, 1); err != nil {
		return core.NodeResult{NodeID: node.ID, Status: core.NodeAborted, AgentID: agent.ID(), Reason: "task cancelled"}
	}
	defer agentSem.Release(1)

	output, err := o.executor.RunNode(ctx, node, agent)
	if err != nil {
		res := core.NodeResult{NodeID: node.ID, Status: core.NodeFailed, AgentID: agent.ID(), Reason: err.Error()}
		if errors.Is(err, context.Canceled) {
			res.Status = core.NodeAborted
			res.Reason = "task cancelled"
		}
		if errors.Is(err, core.ErrIterationLimit) {
			res.Reason = core.ReasonIterationLimit
			res.Output = output
		}
		return res
	}
	return core.NodeResult{NodeID: node.ID, Status: core.NodeCompleted, AgentID: agent.ID(), Output: output}
}

const hybridStepRetries = 2

// runHybrid linearizes the DAG into a step plan and executes it through a
// workflow engine under switch-controller supervision. A failed step is
// retried after a successful engine switch; once the controller declines to
// switch, the step fails and the remaining plan is aborted.
func (o *Orchestrator) runHybrid(ctx context.Context, taskID string, dag core.TaskDAG, strategy core.WorkflowStrategy) (map[string]core.NodeResult, []core.SwitchEvent) {
	order, err := dag.TopoOrder()
	if err != nil {
		return map[string]core.NodeResult{}, nil
	}
	plan := make([]core.HybridStep, 0, len(order))
	nodeByID := make(map[string]core.TaskDAGNode, len(order))
	for _, i := range order {
		node := dag.Nodes[i]
		nodeByID[node.ID] = node
		plan = append(plan, core.HybridStep{
			NodeID:     node.ID,
			Capability: node.Capability,
			AgentID:    node.CandidateAgentID,
			Input:      node.Input,
		})
	}

	engine, err := workflow.New(strategy.Primary)
	if err != nil {
		o.logger.Error("unknown primary engine", "task_id", taskID, "engine", strategy.Primary)
		return map[string]core.NodeResult{}, nil
	}
	engine.Load(core.NewHybridState(plan))
	ctrl := switchctl.NewController(taskID, engine, strategy, o.switchCfg, func(co *switchctl.Options) {
		co.Logger = o.logger
	})

	agentByStep := map[string]string{}
	var mu sync.Mutex
	runner := func(ctx context.Context, idx int, step core.HybridStep) (string, error) {
		node, ok := nodeByID[step.NodeID]
		if !ok {
			node = core.TaskDAGNode{ID: step.NodeID, Capability: step.Capability, CandidateAgentID: step.AgentID, Input: step.Input}
		}
		agent, err := o.delegator.Resolve(node)
		if err != nil {
			return "", err
		}
		mu.Lock()
		agentByStep[step.NodeID] = agent.ID()
		mu.Unlock()
		return o.executor.RunNode(ctx, node, agent)
	}

	var stepErr error
	for ctx.Err() == nil {
		active := ctrl.Active()
		start := time.Now()
		done, err := active.Step(ctx, runner)
		ctrl.Observe(err, time.Since(start), 1)

		o.persistHybrid(ctx, taskID, ctrl)

		if err != nil {
			stepErr = err
			retried := false
			for attempt := 0; attempt < hybridStepRetries; attempt++ {
				reason, fire := ctrl.CheckTriggers()
				if !fire {
					break
				}
				if swErr := ctrl.Switch(reason); swErr != nil {
					continue
				}
				start = time.Now()
				done, err = ctrl.Active().Step(ctx, runner)
				ctrl.Observe(err, time.Since(start), 1)
				o.persistHybrid(ctx, taskID, ctrl)
				if err == nil {
					stepErr = nil
					retried = true
					break
				}
				stepErr = err
			}
			if stepErr != nil {
				break
			}
			if retried && done {
				break
			}
			continue
		}

		// Opportunistic switch between steps.
		if reason, fire := ctrl.CheckTriggers(); fire {
			if swErr := ctrl.Switch(reason); swErr != nil {
				o.logger.Warn("engine switch declined", "task_id", taskID, "reason", reason, "error", swErr)
			}
		}
		if done {
			break
		}
	}

	snap := ctrl.Active().Snapshot()
	results := make(map[string]core.NodeResult, len(plan))
	for i, step := range plan {
		agentID := agentByStep[step.NodeID]
		switch {
		case i < snap.CurrentStep:
			results[step.NodeID] = core.NodeResult{
				NodeID: step.NodeID, Status: core.NodeCompleted, AgentID: agentID, Output: snap.Outputs[i],
			}
		case i == snap.CurrentStep && stepErr != nil:
			results[step.NodeID] = core.NodeResult{
				NodeID: step.NodeID, Status: core.NodeFailed, AgentID: agentID, Reason: stepErr.Error(),
			}
		default:
			reason := "upstream step did not complete"
			if ctx.Err() != nil {
				reason = "task cancelled"
			}
			results[step.NodeID] = core.NodeResult{NodeID: step.NodeID, Status: core.NodeAborted, Reason: reason}
		}
	}
	return results, ctrl.Events()
}

// persistHybrid snapshots engine state and switch history into the task
// record after every step boundary.
func (o *Orchestrator) persistHybrid(ctx context.Context, taskID string, ctrl *switchctl.Controller) {
	snap := ctrl.Active().Snapshot()
	events := ctrl.Events()
	if err := o.tracker.Update(ctx, taskID, func(rec *core.TaskRecord) {
		rec.HybridState = snap
		rec.SwitchHistory = events
	}); err != nil {
		o.logger.Warn("hybrid state persistence failed", "task_id", taskID, "error", err)
	}
}

func (o *Orchestrator) semFor(agentID string) *semaphore.Weighted {
	o.agentSemMu.Lock()
	defer o.agentSemMu.Unlock()
	sem, ok := o.agentSems[agentID]
	if !ok {
		sem = semaphore.NewWeighted(int64(o.cfg.MaxParallelPerAgent))
		o.agentSems[agentID] = sem
	}
	return sem
}

func (o *Orchestrator) depsCompleted(node core.TaskDAGNode, results map[string]core.NodeResult) bool {
	for _, dep := range node.DependsOn {
		if res, ok := results[dep]; !ok || res.Status != core.NodeCompleted {
			return false
		}
	}
	return true
}

func collectAgentIDs(results []core.NodeResult) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, res := range results {
		if res.AgentID == "" {
			continue
		}
		if _, ok := seen[res.AgentID]; ok {
			continue
		}
		seen[res.AgentID] = struct{}{}
		out = append(out, res.AgentID)
	}
	return out
}
