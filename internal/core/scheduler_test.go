package core

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

// faultyTracker wraps a real tracker and breaks its Update.
type faultyTracker struct {
	plugin.Tracker
	fault string
}

func (f *faultyTracker) Update(s types.VehicleState, last *types.AttitudeCommand) (*types.PositionCommand, error) {
	switch f.fault {
	case "panic":
		panic("tracker exploded")
	case "error":
		return nil, errors.New("tracker diverged")
	default:
		return &types.PositionCommand{Position: s.Position, Heading: math.NaN()}, nil
	}
}

// faultyController wraps a real controller and breaks its Update.
type faultyController struct {
	plugin.Controller
	fault string
}

func (f *faultyController) Update(s types.VehicleState, cmd *types.PositionCommand) (*types.AttitudeCommand, error) {
	switch f.fault {
	case "panic":
		panic("controller exploded")
	case "error":
		return nil, errors.New("controller diverged")
	default:
		return &types.AttitudeCommand{Attitude: types.Identity, Thrust: math.NaN()}, nil
	}
}

func (r *testRig) breakActiveTracker(fault string) {
	r.m.activeMu.Lock()
	slot := &r.m.trackers[r.m.activeTracker]
	slot.Tracker = &faultyTracker{Tracker: slot.Tracker, fault: fault}
	r.m.activeMu.Unlock()
}

func (r *testRig) breakActiveController(fault string) {
	r.m.activeMu.Lock()
	slot := &r.m.controllers[r.m.activeController]
	slot.Controller = &faultyController{Controller: slot.Controller, fault: fault}
	r.m.activeMu.Unlock()
}

// ===== Plugin Fault Tests =====

func TestPluginFaultElands(t *testing.T) {
	tests := []struct {
		name       string
		controller bool
		fault      string
	}{
		{"tracker panic", false, "panic"},
		{"tracker error", false, "error"},
		{"tracker non-finite", false, "nan"},
		{"controller panic", true, "panic"},
		{"controller error", true, "error"},
		{"controller non-finite", true, "nan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestControlManager(t)
			rig.takeOff(t)
			if tt.controller {
				rig.breakActiveController(tt.fault)
			} else {
				rig.breakActiveTracker(tt.fault)
			}

			rig.m.controlCycle()

			if got := rig.m.landing(); got != types.LandingLanding {
				t.Errorf("Expected emergency landing, got %s", got)
			}
			if got := rig.m.ActiveTracker(); got != "LandoffTracker" {
				t.Errorf("Expected LandoffTracker active, got %s", got)
			}
			if rig.m.latchSnapshot().failsafeActive {
				t.Error("Expected no failsafe for a first fault")
			}
		})
	}
}

func TestPluginFaultWhileLandingFailsafes(t *testing.T) {
	tests := []struct {
		name       string
		controller bool
	}{
		{"landing tracker", false},
		{"controller", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestControlManager(t)
			rig.takeOff(t)
			if resp := rig.m.Eland(); !resp.Success {
				t.Fatalf("Eland failed: %s", resp.Message)
			}
			if tt.controller {
				rig.breakActiveController("error")
			} else {
				rig.breakActiveTracker("error")
			}

			rig.m.controlCycle()

			if !rig.m.latchSnapshot().failsafeActive {
				t.Error("Expected failsafe after a fault during landing")
			}
			if got := rig.m.landing(); got != types.LandingIdle {
				t.Errorf("Expected the landing aborted, got %s", got)
			}
		})
	}
}

func TestLandingTrackerFaultOutsideLanding(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	if req := rig.m.trackerFault(rig.m.elandTracker, false); req != requestFailsafe {
		t.Errorf("Expected failsafe for a faulty landing tracker, got %v", req)
	}
}

func TestInactiveTrackerPanicElands(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	rig.m.activeMu.Lock()
	slot := &rig.m.trackers[rig.m.elandTracker]
	slot.Tracker = &faultyTracker{Tracker: slot.Tracker, fault: "panic"}
	rig.m.activeMu.Unlock()

	reqs := rig.m.updatePasses(rig.hoverState())
	if !reqs.has(requestEland) {
		t.Errorf("Expected eland for a panicking inactive tracker, got %v", reqs)
	}
}

// ===== Control Cycle Scheduling Tests =====

// blockingTracker holds Update until released and counts the calls.
type blockingTracker struct {
	plugin.Tracker

	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTracker) Update(s types.VehicleState, last *types.AttitudeCommand) (*types.PositionCommand, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()

	if first {
		close(b.entered)
		<-b.release
	}
	return b.Tracker.Update(s, last)
}

func TestStateDuringCycleIsDropped(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	m := rig.m

	blocker := &blockingTracker{entered: make(chan struct{}), release: make(chan struct{})}
	m.activeMu.Lock()
	slot := &m.trackers[m.activeTracker]
	blocker.Tracker = slot.Tracker
	slot.Tracker = blocker
	m.activeMu.Unlock()

	m.OnVehicleState(rig.hoverState())
	select {
	case <-blocker.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("Control cycle never reached the tracker")
	}

	rig.clock.Advance(10 * time.Millisecond)
	m.OnVehicleState(rig.hoverState())

	close(blocker.release)
	m.wg.Wait()

	blocker.mu.Lock()
	calls := blocker.calls
	blocker.mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected one tracker update, got %d", calls)
	}
	if _, n := rig.fs.last(); n != 1 {
		t.Errorf("Expected one published command, got %d", n)
	}
}

// switchObserver records whether the failsafe task was running while the
// controller was told about an odometry switch.
type switchObserver struct {
	plugin.Controller
	m              *ControlManager
	switches       int
	failsafeDuring bool
}

func (o *switchObserver) SwitchOdometrySource(s types.VehicleState) {
	o.switches++
	o.failsafeDuring = o.failsafeDuring || o.m.failsafeTask.Running()
	o.Controller.SwitchOdometrySource(s)
}

func TestOdometrySwitchPausesFailsafeTask(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	m := rig.m

	if resp := m.Failsafe(); !resp.Success {
		t.Fatalf("Failsafe failed: %s", resp.Message)
	}
	if !m.failsafeTask.Running() {
		t.Fatal("Expected the failsafe task running")
	}

	obs := &switchObserver{m: m}
	m.activeMu.Lock()
	slot := &m.controllers[m.activeController]
	obs.Controller = slot.Controller
	slot.Controller = obs
	m.activeMu.Unlock()

	s := rig.hoverState()
	s.EstimatorEpoch = 1
	m.ingestState(s)

	if obs.switches != 1 {
		t.Fatalf("Expected one odometry switch, got %d", obs.switches)
	}
	if obs.failsafeDuring {
		t.Error("Expected the failsafe task paused during the switch")
	}
	if !m.failsafeTask.Running() {
		t.Error("Expected the failsafe task resumed after the switch")
	}
}
