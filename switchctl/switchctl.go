// Package switchctl implements the hybrid switch controller: a state
// machine over a running hybrid task that monitors error rate, projected
// cost and latency, performs engine switches with verified state
// translation, and locks the task against further switching after repeated
// rollbacks or when the switch budget is exhausted.
package switchctl

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/logging"
	"github.com/hupe1980/hybridflow/workflow"
)

// State is the controller's own lifecycle state.
type State string

const (
	// StateRunning means the active engine may execute steps and triggers
	// are being evaluated.
	StateRunning State = "running"
	// StateSwitching means a translation is in progress; the source engine
	// is quiesced and holds no write access anymore.
	StateSwitching State = "switching"
	// StateLocked means no further switching is permitted for this task.
	StateLocked State = "locked"
)

// Trigger reasons recorded in switch events.
const (
	ReasonErrorRate = "error_rate_over_threshold"
	ReasonCost      = "projected_cost_over_threshold"
	ReasonLatency   = "latency_over_threshold"
	ReasonManual    = "manual_override"
)

// Controller supervises one hybrid task. It owns the task's switch event
// list and is the only component allowed to move HybridState between
// engines.
type Controller struct {
	cfg    config.SwitchConfig
	logger logging.Logger

	mu          sync.Mutex
	taskID      string
	state       State
	active      workflow.Engine
	pool        []core.EngineID // primary + fallbacks, switch targets
	events      []core.SwitchEvent
	switches    int
	rollbacks   int
	lastAttempt time.Time

	window        []bool // sliding error window, true = step error
	projectedCost float64
	lastLatency   time.Duration
	manualReason  string

	now func() time.Time
}

// Options configures a Controller.
type Options struct {
	Logger logging.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewController builds a controller for one task. active is the engine
// currently driving execution; strategy supplies the switch target pool.
func NewController(taskID string, active workflow.Engine, strategy core.WorkflowStrategy, cfg config.SwitchConfig, optFns ...func(o *Options)) *Controller {
	opts := Options{Logger: logging.NoOpLogger{}, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	pool := append([]core.EngineID{strategy.Primary}, strategy.Fallback...)
	return &Controller{
		cfg:    cfg,
		logger: opts.Logger,
		taskID: taskID,
		state:  StateRunning,
		active: active,
		pool:   pool,
		now:    opts.Now,
	}
}

// Active returns the engine currently holding write access.
func (c *Controller) Active() workflow.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// State returns the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns a copy of the append-only switch audit trail.
func (c *Controller) Events() []core.SwitchEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.SwitchEvent(nil), c.events...)
}

// Observe feeds per-step execution metrics into the trigger windows.
func (c *Controller) Observe(stepErr error, latency time.Duration, stepCost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = append(c.window, stepErr != nil)
	if len(c.window) > c.cfg.ErrorRateWindow {
		c.window = c.window[len(c.window)-c.cfg.ErrorRateWindow:]
	}
	c.projectedCost += stepCost
	c.lastLatency = latency
}

// RequestSwitch arms a manual override; the next trigger check fires it.
func (c *Controller) RequestSwitch(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reason == "" {
		reason = ReasonManual
	}
	c.manualReason = reason
}

// CheckTriggers evaluates the configured triggers. It returns the firing
// reason, or false when no switch should happen (including while locked or
// inside the cooldown window).
func (c *Controller) CheckTriggers() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return "", false
	}
	if !c.lastAttempt.IsZero() && c.now().Sub(c.lastAttempt) < c.cfg.Cooldown {
		return "", false
	}
	if c.manualReason != "" {
		return c.manualReason, true
	}
	if len(c.window) == c.cfg.ErrorRateWindow {
		errs := 0
		for _, failed := range c.window {
			if failed {
				errs++
			}
		}
		if rate := float64(errs) / float64(len(c.window)); rate > c.cfg.ErrorRateThreshold {
			return ReasonErrorRate, true
		}
	}
	if c.projectedCost > c.cfg.CostThreshold {
		return ReasonCost, true
	}
	if c.lastLatency > c.cfg.LatencyThreshold {
		return ReasonLatency, true
	}
	return "", false
}

// Switch moves execution to the next engine in the pool. The source engine
// must be quiesced (not executing a step) when this is called. On
// translation or verification failure the original engine stays active, a
// failed SwitchEvent is appended, and the controller locks after a second
// rollback. Reaching max_switches also locks.
func (c *Controller) Switch(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateLocked {
		return fmt.Errorf("%w: controller locked for task %s", core.ErrSwitchFailed, c.taskID)
	}
	if !c.lastAttempt.IsZero() && c.now().Sub(c.lastAttempt) < c.cfg.Cooldown {
		return fmt.Errorf("%w: cooldown active", core.ErrSwitchFailed)
	}

	target := c.nextTarget()
	if target == "" {
		return fmt.Errorf("%w: no alternate engine in pool", core.ErrSwitchFailed)
	}

	c.state = StateSwitching
	c.lastAttempt = c.now()
	c.manualReason = ""
	start := c.now()

	before := c.active.Snapshot()
	event := core.SwitchEvent{
		ID:              core.NewID(),
		TaskID:          c.taskID,
		FromEngine:      c.active.ID(),
		ToEngine:        target,
		Reason:          reason,
		CostDelta:       c.projectedCost,
		StateHashBefore: before.Hash(),
		At:              c.lastAttempt,
	}

	err := c.performSwitch(target, before)
	if err == nil {
		c.switches++
		event.Success = true
		event.StateHashAfter = c.active.Snapshot().Hash()
		c.state = StateRunning
		if c.switches >= c.cfg.MaxSwitches {
			c.state = StateLocked
		}
	} else {
		c.rollbacks++
		c.state = StateRunning
		if c.rollbacks >= 2 || c.switches >= c.cfg.MaxSwitches {
			c.state = StateLocked
		}
	}

	c.events = append(c.events, event)
	c.logger.Info("engine switch attempted",
		"task_id", c.taskID, "from", event.FromEngine, "to", event.ToEngine,
		"reason", reason, "success", event.Success, "duration", c.now().Sub(start), "state", c.state)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSwitchFailed, err)
	}
	return nil
}

// performSwitch translates and verifies. Caller holds c.mu.
func (c *Controller) performSwitch(target core.EngineID, before *core.HybridState) error {
	blob, err := c.active.ExportState()
	if err != nil {
		return fmt.Errorf("export from %s: %w", c.active.ID(), err)
	}
	translated, err := workflow.Translate(blob, c.active.ID(), target)
	if err != nil {
		return fmt.Errorf("translate %s -> %s: %w", c.active.ID(), target, err)
	}
	after, err := workflow.DecodeNeutral(translated, target)
	if err != nil {
		return fmt.Errorf("decode translated state: %w", err)
	}
	if !before.Equivalent(after) {
		return fmt.Errorf("verification failed: translated state not equivalent (steps %d->%d, cursor %d->%d)",
			len(before.Plan), len(after.Plan), before.CurrentStep, after.CurrentStep)
	}

	next, err := workflow.New(target)
	if err != nil {
		return err
	}
	if err := next.ImportState(translated); err != nil {
		return fmt.Errorf("import into %s: %w", target, err)
	}
	// Ownership transfer: from here the target engine holds write access.
	c.active = next
	return nil
}

// nextTarget picks the first pool engine that differs from the active one.
// Caller holds c.mu.
func (c *Controller) nextTarget() core.EngineID {
	for _, id := range c.pool {
		if id != c.active.ID() {
			return id
		}
	}
	return ""
}
