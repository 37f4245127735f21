package switchctl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/hybridflow/config"
	"github.com/hupe1980/hybridflow/core"
	"github.com/hupe1980/hybridflow/workflow"
)

func testSwitchConfig() config.SwitchConfig {
	return config.SwitchConfig{
		ErrorRateThreshold: 0.5,
		ErrorRateWindow:    4,
		CostThreshold:      10,
		LatencyThreshold:   5 * time.Second,
		Cooldown:           15 * time.Second,
		MaxSwitches:        3,
	}
}

func hybridStrategy() core.WorkflowStrategy {
	return core.WorkflowStrategy{
		Mode:     core.ModeHybrid,
		Primary:  core.EngineStateMachine,
		Fallback: []core.EngineID{core.EnginePlanner},
	}
}

// fakeClock lets tests step through cooldown windows.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController(t *testing.T, cfg config.SwitchConfig) (*Controller, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sm := workflow.NewStateMachineEngine()
	sm.Load(core.NewHybridState([]core.HybridStep{
		{NodeID: "a", Capability: "web.search", AgentID: "searcher"},
		{NodeID: "b", Capability: "report.compose", AgentID: "writer"},
	}))
	if _, err := sm.Step(context.Background(), func(ctx context.Context, idx int, step core.HybridStep) (string, error) {
		return "searched", nil
	}); err != nil {
		t.Fatal(err)
	}
	ctrl := NewController("task-1", sm, hybridStrategy(), cfg, func(o *Options) {
		o.Now = clock.now
	})
	return ctrl, clock
}

func TestSwitch_TranslatesStateAndRecordsEvent(t *testing.T) {
	ctrl, _ := newTestController(t, testSwitchConfig())
	before := ctrl.Active().Snapshot()

	if err := ctrl.Switch(ReasonCost); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := ctrl.Active().ID(); got != core.EnginePlanner {
		t.Fatalf("active engine = %s, want planner", got)
	}
	after := ctrl.Active().Snapshot()
	if !before.Equivalent(after) {
		t.Error("translated state is not equivalent to the source state")
	}

	events := ctrl.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 switch event, got %d", len(events))
	}
	ev := events[0]
	if !ev.Success || ev.FromEngine != core.EngineStateMachine || ev.ToEngine != core.EnginePlanner {
		t.Errorf("event mismatch: %+v", ev)
	}
	if ev.StateHashBefore == "" || ev.StateHashBefore != ev.StateHashAfter {
		t.Errorf("state hashes should match across a verified switch: %q vs %q", ev.StateHashBefore, ev.StateHashAfter)
	}

	// The target engine can keep executing from where the source stopped.
	if err := ctrl.Active().Run(context.Background(), func(ctx context.Context, idx int, step core.HybridStep) (string, error) {
		return "composed", nil
	}); err != nil {
		t.Fatal(err)
	}
	snap := ctrl.Active().Snapshot()
	if snap.Outputs[0] != "searched" || snap.Outputs[1] != "composed" {
		t.Errorf("resumed execution lost outputs: %+v", snap.Outputs)
	}
}

func TestCheckTriggers_ErrorRateOverWindow(t *testing.T) {
	ctrl, _ := newTestController(t, testSwitchConfig())
	boom := errors.New("step failed")
	ctrl.Observe(nil, time.Second, 0)
	ctrl.Observe(boom, time.Second, 0)
	ctrl.Observe(boom, time.Second, 0)
	if _, fire := ctrl.CheckTriggers(); fire {
		t.Fatal("window not full yet, must not fire")
	}
	ctrl.Observe(boom, time.Second, 0)
	reason, fire := ctrl.CheckTriggers()
	if !fire || reason != ReasonErrorRate {
		t.Fatalf("expected error rate trigger, got %q fire=%v", reason, fire)
	}
}

func TestCheckTriggers_CostAndLatency(t *testing.T) {
	ctrl, _ := newTestController(t, testSwitchConfig())
	ctrl.Observe(nil, time.Second, 6)
	ctrl.Observe(nil, time.Second, 6)
	if reason, fire := ctrl.CheckTriggers(); !fire || reason != ReasonCost {
		t.Errorf("projected cost 12 > 10 must fire, got %q fire=%v", reason, fire)
	}

	ctrl2, _ := newTestController(t, testSwitchConfig())
	ctrl2.Observe(nil, 6*time.Second, 0)
	if reason, fire := ctrl2.CheckTriggers(); !fire || reason != ReasonLatency {
		t.Errorf("latency 6s > 5s must fire, got %q fire=%v", reason, fire)
	}
}

func TestCheckTriggers_ManualOverride(t *testing.T) {
	ctrl, _ := newTestController(t, testSwitchConfig())
	ctrl.RequestSwitch("")
	if reason, fire := ctrl.CheckTriggers(); !fire || reason != ReasonManual {
		t.Errorf("manual override must fire, got %q fire=%v", reason, fire)
	}
}

func TestSwitch_CooldownSuppressesNextAttempt(t *testing.T) {
	ctrl, clock := newTestController(t, testSwitchConfig())
	if err := ctrl.Switch(ReasonManual); err != nil {
		t.Fatal(err)
	}

	ctrl.RequestSwitch(ReasonManual)
	if _, fire := ctrl.CheckTriggers(); fire {
		t.Error("trigger must be suppressed during cooldown")
	}
	if err := ctrl.Switch(ReasonManual); !errors.Is(err, core.ErrSwitchFailed) {
		t.Errorf("switch during cooldown must fail, got %v", err)
	}

	clock.advance(16 * time.Second)
	if _, fire := ctrl.CheckTriggers(); !fire {
		t.Error("armed manual override must fire once cooldown elapses")
	}
	if err := ctrl.Switch(ReasonManual); err != nil {
		t.Errorf("switch after cooldown: %v", err)
	}
}

func TestSwitch_MaxSwitchesLocks(t *testing.T) {
	cfg := testSwitchConfig()
	cfg.MaxSwitches = 1
	ctrl, clock := newTestController(t, cfg)

	if err := ctrl.Switch(ReasonManual); err != nil {
		t.Fatal(err)
	}
	if ctrl.State() != StateLocked {
		t.Fatalf("controller must lock at max_switches, state=%s", ctrl.State())
	}

	clock.advance(time.Minute)
	ctrl.RequestSwitch(ReasonManual)
	if _, fire := ctrl.CheckTriggers(); fire {
		t.Error("locked controller must not fire triggers")
	}
	if err := ctrl.Switch(ReasonManual); !errors.Is(err, core.ErrSwitchFailed) {
		t.Errorf("locked controller must refuse switches, got %v", err)
	}
}

// brokenEngine reports an engine id the translator does not know, so every
// switch attempt fails during translation and rolls back.
type brokenEngine struct {
	workflow.Engine
}

func (brokenEngine) ID() core.EngineID { return core.EngineID("experimental") }

func TestSwitch_TwoRollbacksLock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sm := workflow.NewStateMachineEngine()
	sm.Load(core.NewHybridState([]core.HybridStep{{NodeID: "a", Capability: "web.search"}}))
	ctrl := NewController("task-2", brokenEngine{sm}, hybridStrategy(), testSwitchConfig(), func(o *Options) {
		o.Now = clock.now
	})

	if err := ctrl.Switch(ReasonManual); !errors.Is(err, core.ErrSwitchFailed) {
		t.Fatalf("expected first rollback, got %v", err)
	}
	if ctrl.State() != StateRunning {
		t.Fatalf("one rollback keeps the controller running, state=%s", ctrl.State())
	}

	clock.advance(time.Minute)
	if err := ctrl.Switch(ReasonManual); !errors.Is(err, core.ErrSwitchFailed) {
		t.Fatalf("expected second rollback, got %v", err)
	}
	if ctrl.State() != StateLocked {
		t.Fatalf("two rollbacks must lock the controller, state=%s", ctrl.State())
	}

	events := ctrl.Events()
	if len(events) != 2 {
		t.Fatalf("both failed attempts must be audited, got %d events", len(events))
	}
	for _, ev := range events {
		if ev.Success {
			t.Errorf("rollback event marked successful: %+v", ev)
		}
	}
	if got := ctrl.Active().ID(); got != core.EngineID("experimental") {
		t.Errorf("failed switch must keep the source engine active, got %s", got)
	}
}
