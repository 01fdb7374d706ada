package core

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/config"
	"uav-control-manager/internal/types"
)

// commandError makes the latest position command lie err metres away from
// the hover state.
func (r *testRig) commandError(err float64) {
	r.m.setCommands(&types.PositionCommand{
		Position:              r3.Vec{X: err, Z: 2},
		UsePositionHorizontal: true,
		UsePositionVertical:   true,
	}, types.DefaultAttitudeCommand(r.m.cfg.UAV.Mass, r.clock.Now()))
}

// ===== Cooldown Tests =====

func TestSafetyCooldownAfterSwitch(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	rig.commandError(10)

	rig.clock.Advance(500 * time.Millisecond)
	rig.feed()
	if reqs := rig.m.runSafety(); reqs.has(requestFailsafe) {
		t.Fatal("Expected no failsafe 0.5 s after a switch")
	}

	rig.clock.Advance(510 * time.Millisecond)
	rig.feed()
	if reqs := rig.m.runSafety(); !reqs.has(requestFailsafe) {
		t.Fatal("Expected failsafe 1.01 s after a switch")
	}

	rig.clock.Advance(100 * time.Millisecond)
	rig.feed()
	if reqs := rig.m.runSafety(); reqs.has(requestFailsafe) {
		t.Error("Expected failsafe to be requested exactly once")
	}
}

func TestSafetyCooldownAfterControllerSwitch(t *testing.T) {
	rig := newTestControlManager(t, withSecondController)
	rig.takeOff(t)

	rig.clock.Advance(2 * time.Second)
	rig.feed()
	if resp := rig.m.SwitchController("PDSoft"); !resp.Success {
		t.Fatalf("SwitchController failed: %s", resp.Message)
	}
	rig.commandError(10)

	rig.clock.Advance(500 * time.Millisecond)
	rig.feed()
	if reqs := rig.m.runSafety(); len(reqs) != 0 {
		t.Errorf("Expected nothing during the cooldown, got %v", reqs)
	}
}

// ===== Latch Tests =====

func TestElandLatchFiresOnce(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	rig.commandError(2)

	rig.clock.Advance(1100 * time.Millisecond)
	rig.feed()
	reqs := rig.m.runSafety()
	if !reqs.has(requestEland) {
		t.Fatal("Expected eland for an error above the eland threshold")
	}
	if reqs.has(requestFailsafe) {
		t.Error("Expected no failsafe below the failsafe threshold")
	}

	for i := 0; i < 5; i++ {
		rig.clock.Advance(10 * time.Millisecond)
		rig.feed()
		rig.commandError(2.4)
		if again := rig.m.runSafety(); again.has(requestEland) {
			t.Fatalf("Expected the eland latch to hold, fired again on evaluation %d", i+2)
		}
	}
}

func TestElandExecutedOnce(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	rig.commandError(2)

	rig.clock.Advance(1100 * time.Millisecond)
	rig.feed()
	rig.m.execute(rig.m.runSafety())

	if rig.m.landing() != types.LandingLanding {
		t.Fatalf("Expected landing, got %s", rig.m.landing())
	}
	if got := rig.m.ActiveTracker(); got != "LandoffTracker" {
		t.Errorf("Expected LandoffTracker, got %s", got)
	}

	for i := 0; i < 3; i++ {
		rig.clock.Advance(2 * time.Second)
		rig.feed()
		rig.commandError(2.4)
		rig.m.execute(rig.m.runSafety())
	}
	if got := rig.journal.count(types.EventEland); got != 1 {
		t.Errorf("Expected one eland event, got %d", got)
	}
}

func TestPayloadReleasedAtHalfThreshold(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	rig.commandError(1)

	rig.clock.Advance(1100 * time.Millisecond)
	rig.feed()
	reqs := rig.m.runSafety()
	if !reqs.has(requestReleasePayload) {
		t.Fatal("Expected payload release above half the eland threshold")
	}
	if reqs.has(requestEland) {
		t.Error("Expected no eland below the eland threshold")
	}
	rig.m.execute(reqs)

	rig.gripper.mu.Lock()
	releases := rig.gripper.releases
	rig.gripper.mu.Unlock()
	if releases != 1 {
		t.Errorf("Expected one release, got %d", releases)
	}
	if rig.m.landing() != types.LandingIdle {
		t.Error("Expected payload release to leave the landing state alone")
	}
}

// ===== Attitude Tests =====

func TestTiltDisarmBypassesCooldown(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	s := rig.hoverState()
	s.Orientation = types.Normalize(quatAboutX(1.6))
	rig.m.ingestState(s)

	reqs := rig.m.runSafety()
	if !reqs.has(requestDisarm) {
		t.Fatal("Expected disarm for a tilt above the disarm limit during the cooldown")
	}
	rig.m.execute(reqs)

	rig.fs.mu.Lock()
	disarms := rig.fs.disarms
	rig.fs.mu.Unlock()
	if disarms != 1 {
		t.Errorf("Expected one disarm, got %d", disarms)
	}
	if rig.m.latchSnapshot().motorsOn {
		t.Error("Expected motors off after disarm")
	}
}

func TestSustainedTiltErrorDisarms(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	rig.clock.Advance(2 * time.Second)

	// commanded attitude tilted 0.8 rad, actual level
	tilted := types.DefaultAttitudeCommand(rig.m.cfg.UAV.Mass, rig.clock.Now())
	tilted.Attitude = types.Normalize(quatAboutX(0.8))
	pos := &types.PositionCommand{Position: r3.Vec{Z: 2}, UsePositionHorizontal: true, UsePositionVertical: true}

	rig.m.setCommands(pos, tilted)
	rig.feed()
	if reqs := rig.m.runSafety(); reqs.has(requestDisarm) {
		t.Fatal("Expected no disarm on the first evaluation")
	}

	rig.clock.Advance(300 * time.Millisecond)
	rig.feed()
	if reqs := rig.m.runSafety(); reqs.has(requestDisarm) {
		t.Fatal("Expected no disarm before the timeout")
	}

	rig.clock.Advance(300 * time.Millisecond)
	rig.feed()
	if reqs := rig.m.runSafety(); !reqs.has(requestDisarm) {
		t.Fatal("Expected disarm after the tilt error outlasted the timeout")
	}
}

func TestYawErrorElands(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	rig.clock.Advance(2 * time.Second)
	rig.feed()

	rig.m.setCommands(&types.PositionCommand{
		Position:   r3.Vec{Z: 2},
		Heading:    1.2,
		UseHeading: true,
	}, types.DefaultAttitudeCommand(rig.m.cfg.UAV.Mass, rig.clock.Now()))

	reqs := rig.m.runSafety()
	if !reqs.has(requestEland) || !reqs.has(requestReleasePayload) {
		t.Errorf("Expected eland and payload release for a yaw error of 1.2 rad, got %v", reqs)
	}
}

func TestHeadingJumpUsesControllerThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		eland     bool
	}{
		{"inherits the global threshold", 0, false},
		{"tighter controller threshold", 0.2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestControlManager(t, func(cfg *config.Config) {
				if tt.threshold > 0 {
					cfg.Controllers[0].OdometryInnovationHeading = tt.threshold
				}
			})
			rig.takeOff(t)
			rig.clock.Advance(2 * time.Second)
			rig.feed()
			rig.commandError(0)

			rig.clock.Advance(10 * time.Millisecond)
			s := rig.hoverState()
			s.Orientation = quat.Number{Real: math.Cos(0.15), Kmag: math.Sin(0.15)}
			rig.m.ingestState(s)

			reqs := rig.m.runSafety()
			if got := reqs.has(requestEland); got != tt.eland {
				t.Errorf("Expected eland %v for a 0.3 rad heading jump, got %v", tt.eland, reqs)
			}
		})
	}
}

// ===== Flight Stack Tests =====

func TestOffboardLossCutsMotors(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	rig.m.OnFlightStackStatus(types.FlightStackStatus{Armed: true, Offboard: false, HaveOdometry: true})
	reqs := rig.m.runSafety()
	if !reqs.has(requestMotorsOff) {
		t.Fatal("Expected motor cut on offboard loss")
	}
	rig.m.execute(reqs)

	if rig.m.latchSnapshot().motorsOn {
		t.Error("Expected motors off")
	}
	if rig.m.landing() != types.LandingIdle || rig.m.latchSnapshot().failsafeActive {
		t.Error("Expected no landing or failsafe after a motor cut")
	}
}

func TestStateTimeoutTriggersFailsafe(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	rig.clock.Advance(61 * time.Second)
	reqs := rig.m.runSafety()
	if !reqs.has(requestFailsafe) {
		t.Fatal("Expected failsafe after the state feed went silent")
	}
	rig.m.execute(reqs)
	if !rig.m.latchSnapshot().failsafeActive {
		t.Error("Expected failsafe to be active")
	}
	if got := rig.m.ActiveController(); got != "FailsafeController" {
		t.Errorf("Expected FailsafeController, got %s", got)
	}
}

// ===== Transition Tests =====

func TestExecuteMostSevereWins(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	var reqs requests
	reqs = reqs.add(requestEland, "test")
	reqs = reqs.add(requestFailsafe, "test")
	reqs = reqs.add(requestEland, "duplicate")
	if len(reqs) != 2 {
		t.Fatalf("Expected duplicates dropped, got %d requests", len(reqs))
	}

	rig.m.execute(reqs)
	if rig.m.landing() == types.LandingLanding {
		t.Error("Expected failsafe to win over eland")
	}
	if !rig.m.latchSnapshot().failsafeActive {
		t.Error("Expected failsafe active")
	}
}

func quatAboutX(angle float64) quat.Number {
	return quat.Number{Real: math.Cos(angle / 2), Imag: math.Sin(angle / 2)}
}

func withSecondController(cfg *config.Config) {
	cfg.Controllers = append(cfg.Controllers, config.ControllerConfig{
		Name:                        "PDSoft",
		Kind:                        "pd",
		HumanSwitchable:             true,
		ElandThreshold:              3,
		FailsafeThreshold:           5,
		OdometryInnovationThreshold: 3,
		OdometryInnovationHeading:   0.5,
	})
}
