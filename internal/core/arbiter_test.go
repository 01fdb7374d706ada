package core

import (
	"strings"
	"testing"
	"time"

	"uav-control-manager/internal/types"
)

// ===== Tracker Switch Tests =====

func TestSwitchTrackerUnknownName(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	resp := rig.m.SwitchTracker("NoSuchTracker")
	if resp.Success {
		t.Fatal("Expected switching to an unknown tracker to fail")
	}
	if got := rig.m.ActiveTracker(); got != "PointTracker" {
		t.Errorf("Expected PointTracker to stay active, got %s", got)
	}
}

func TestSwitchTrackerIdempotent(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	before := rig.m.active().lastSwitch
	switches := rig.journal.count(types.EventTrackerSwitch)

	rig.clock.Advance(5 * time.Second)
	resp := rig.m.SwitchTracker("PointTracker")
	if !resp.Success {
		t.Fatalf("Expected switching to the active tracker to succeed, got %s", resp.Message)
	}
	if !strings.Contains(resp.Message, "already active") {
		t.Errorf("Expected an already-active message, got %q", resp.Message)
	}
	if after := rig.m.active().lastSwitch; !after.Equal(before) {
		t.Error("Expected the switch timestamp to stay unchanged")
	}
	if got := rig.journal.count(types.EventTrackerSwitch); got != switches {
		t.Errorf("Expected no new switch event, got %d (was %d)", got, switches)
	}
}

func TestSwitchTrackerNeedsLiveness(t *testing.T) {
	rig := newTestControlManager(t)

	if resp := rig.m.Motors(true); !resp.Success {
		t.Fatalf("Motors(true) failed: %s", resp.Message)
	}
	if resp := rig.m.SwitchTracker("PointTracker"); resp.Success {
		t.Error("Expected switch without vehicle state to fail")
	}

	rig.feed()
	if resp := rig.m.SwitchTracker("PointTracker"); resp.Success {
		t.Error("Expected switch without flight-stack odometry to fail")
	}

	rig.m.OnFlightStackStatus(types.FlightStackStatus{Armed: true, Offboard: true, HaveOdometry: true})
	if resp := rig.m.SwitchTracker("PointTracker"); !resp.Success {
		t.Errorf("Expected switch with liveness to succeed, got %s", resp.Message)
	}
}

func TestSwitchTrackerNeedsMotors(t *testing.T) {
	rig := newTestControlManager(t)
	rig.m.OnFlightStackStatus(types.FlightStackStatus{HaveOdometry: true})
	rig.feed()

	if resp := rig.m.SwitchTracker("PointTracker"); resp.Success {
		t.Error("Expected switch with motors off to fail")
	}
}

func TestSwitchTrackerNotHumanSwitchable(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	if resp := rig.m.SwitchTracker("LandoffTracker"); resp.Success {
		t.Error("Expected manual switch to LandoffTracker to fail")
	}
	if resp := rig.m.switchTracker("LandoffTracker", false); !resp.Success {
		t.Errorf("Expected internal switch to LandoffTracker to succeed, got %s", resp.Message)
	}
}

func TestSwitchToNullTrackerDeactivatesController(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	if resp := rig.m.SwitchTracker("NullTracker"); !resp.Success {
		t.Fatalf("Expected switch to NullTracker to succeed, got %s", resp.Message)
	}
	if rig.m.controllers[rig.m.activeController].Controller.Status().Active {
		t.Error("Expected the controller to be inactive under the null tracker")
	}
	if _, att := rig.m.commands(); att != nil {
		t.Error("Expected no attitude command under the null tracker")
	}
}

// ===== Controller Switch Tests =====

func TestSwitchControllerUnknownName(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	if resp := rig.m.SwitchController("NoSuchController"); resp.Success {
		t.Error("Expected switching to an unknown controller to fail")
	}
}

func TestSwitchControllerNotHumanSwitchable(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	if resp := rig.m.SwitchController("FailsafeController"); resp.Success {
		t.Error("Expected manual switch to FailsafeController to fail")
	}
	if got := rig.m.ActiveController(); got != "PDController" {
		t.Errorf("Expected PDController to stay active, got %s", got)
	}
}

func TestSwitchControllerRestartsCooldown(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	rig.clock.Advance(3 * time.Second)
	if resp := rig.m.switchController("FailsafeController", false); !resp.Success {
		t.Fatalf("Expected internal controller switch to succeed, got %s", resp.Message)
	}
	if got := rig.m.active().lastSwitch; !got.Equal(rig.clock.Now()) {
		t.Errorf("Expected switch time %v, got %v", rig.clock.Now(), got)
	}
	if !rig.m.trackers[rig.m.activeTracker].Tracker.Status().Active {
		t.Error("Expected the tracker to stay active across a controller switch")
	}
}
