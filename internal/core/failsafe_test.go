package core

import (
	"strings"
	"testing"
	"time"

	"uav-control-manager/internal/config"
	"uav-control-manager/internal/types"
)

// ===== Escalating Failsafe Tests =====

func TestEscalationOrder(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	m := rig.m

	want := []types.EscalationState{
		types.EscalationEHover,
		types.EscalationEland,
		types.EscalationFailsafe,
	}
	for i, stage := range want {
		rig.clock.Advance(3 * time.Second)
		rig.feed()
		resp := m.EscalatingFailsafe()
		if !resp.Success {
			t.Fatalf("Call %d: expected success, got %s", i+1, resp.Message)
		}
		if got := m.escalation(); got != stage {
			t.Fatalf("Call %d: expected %s, got %s", i+1, stage, got)
		}
	}
	if !m.latchSnapshot().failsafeActive {
		t.Error("Expected failsafe active after the third stage")
	}

	rig.clock.Advance(3 * time.Second)
	resp := m.EscalatingFailsafe()
	if resp.Success {
		t.Error("Expected the fourth call to fail")
	}
	if !strings.Contains(resp.Message, "nothing more to do") {
		t.Errorf("Expected a nothing-more-to-do message, got %q", resp.Message)
	}
	if got := m.escalation(); got != types.EscalationFinished {
		t.Errorf("Expected finished, got %s", got)
	}
	if got := rig.journal.count(types.EventEscalation); got != 3 {
		t.Errorf("Expected 3 escalation events, got %d", got)
	}
}

func TestEscalationTooSoon(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	rig.clock.Advance(3 * time.Second)
	rig.feed()
	if resp := rig.m.EscalatingFailsafe(); !resp.Success {
		t.Fatalf("Expected first call to succeed, got %s", resp.Message)
	}

	rig.clock.Advance(500 * time.Millisecond)
	resp := rig.m.EscalatingFailsafe()
	if resp.Success || !strings.Contains(resp.Message, "too soon") {
		t.Errorf("Expected a too-soon failure, got %+v", resp)
	}
	if got := rig.m.escalation(); got != types.EscalationEHover {
		t.Errorf("Expected escalation to stay at ehover, got %s", got)
	}
}

func TestEscalationSkipsDisabledStages(t *testing.T) {
	rig := newTestControlManager(t, func(cfg *config.Config) {
		cfg.Safety.Escalation.EHover = false
	})
	rig.takeOff(t)

	rig.clock.Advance(3 * time.Second)
	rig.feed()
	if resp := rig.m.EscalatingFailsafe(); !resp.Success {
		t.Fatalf("Expected success, got %s", resp.Message)
	}
	if got := rig.m.escalation(); got != types.EscalationEland {
		t.Errorf("Expected eland as the first enabled stage, got %s", got)
	}
	if rig.m.landing() != types.LandingLanding {
		t.Error("Expected the vehicle to be landing")
	}
}

func TestEscalationNeedsOffboard(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	rig.m.OnFlightStackStatus(types.FlightStackStatus{Armed: true, Offboard: false, HaveOdometry: true})

	rig.clock.Advance(3 * time.Second)
	if resp := rig.m.EscalatingFailsafe(); resp.Success {
		t.Error("Expected escalation outside offboard mode to fail")
	}
	if got := rig.m.escalation(); got != types.EscalationNone {
		t.Errorf("Expected no escalation, got %s", got)
	}
}

func TestRefusedEscalationRestartsWindow(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	m := rig.m

	m.OnFlightStackStatus(types.FlightStackStatus{Armed: true, Offboard: false, HaveOdometry: true})
	rig.clock.Advance(3 * time.Second)
	if resp := m.EscalatingFailsafe(); resp.Success {
		t.Fatal("Expected escalation outside offboard mode to fail")
	}

	m.OnFlightStackStatus(types.FlightStackStatus{Armed: true, Offboard: true, HaveOdometry: true})
	rig.clock.Advance(500 * time.Millisecond)
	rig.feed()
	resp := m.EscalatingFailsafe()
	if resp.Success || !strings.Contains(resp.Message, "too soon") {
		t.Errorf("Expected a too-soon failure after a refused call, got %+v", resp)
	}

	rig.clock.Advance(3 * time.Second)
	rig.feed()
	if resp := m.EscalatingFailsafe(); !resp.Success {
		t.Errorf("Expected escalation once the window passed, got %s", resp.Message)
	}
	if got := m.escalation(); got != types.EscalationEHover {
		t.Errorf("Expected ehover, got %s", got)
	}
}

func TestMotorsOnResetsEscalation(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)

	rig.clock.Advance(3 * time.Second)
	rig.feed()
	if resp := rig.m.EscalatingFailsafe(); !resp.Success {
		t.Fatalf("Expected success, got %s", resp.Message)
	}

	rig.m.Motors(false)
	rig.m.Motors(true)
	if got := rig.m.escalation(); got != types.EscalationNone {
		t.Errorf("Expected a fresh episode after motors on, got %s", got)
	}
}

func TestRCEscalationFiresOnRisingEdge(t *testing.T) {
	rig := newTestControlManager(t, func(cfg *config.Config) {
		cfg.Safety.Escalation.RC = config.RCChannelConfig{Enabled: true, Channel: 2, Threshold: 0.5}
	})
	rig.takeOff(t)
	rig.clock.Advance(3 * time.Second)
	rig.feed()

	low := types.RCChannels{Channels: []float64{0, 0, 0.1}}
	high := types.RCChannels{Channels: []float64{0, 0, 0.9}}

	rig.m.OnRCChannels(low)
	if got := rig.m.escalation(); got != types.EscalationNone {
		t.Fatalf("Expected no escalation on a low channel, got %s", got)
	}

	rig.m.OnRCChannels(high)
	if got := rig.m.escalation(); got != types.EscalationEHover {
		t.Fatalf("Expected ehover on the rising edge, got %s", got)
	}

	// holding the switch high must not escalate further
	rig.clock.Advance(3 * time.Second)
	rig.m.OnRCChannels(high)
	if got := rig.m.escalation(); got != types.EscalationEHover {
		t.Errorf("Expected escalation to hold while the channel stays high, got %s", got)
	}
}

// ===== Failsafe Tests =====

func TestFailsafeUnderNullTrackerCutsMotors(t *testing.T) {
	rig := newTestControlManager(t)
	rig.feed()
	rig.m.Motors(true)

	if err := rig.m.failsafe("test"); err != nil {
		t.Fatalf("failsafe failed: %v", err)
	}
	l := rig.m.latchSnapshot()
	if l.motorsOn || l.failsafeActive {
		t.Errorf("Expected a plain motor cut, got %+v", l)
	}
}

func TestFailsafeAbortsLanding(t *testing.T) {
	rig := newTestControlManager(t)
	rig.takeOff(t)
	rig.clock.Advance(2 * time.Second)
	rig.feed()

	if err := rig.m.eland("test"); err != nil {
		t.Fatalf("eland failed: %v", err)
	}
	if err := rig.m.failsafe("test"); err != nil {
		t.Fatalf("failsafe failed: %v", err)
	}
	if rig.m.landing() != types.LandingIdle {
		t.Error("Expected failsafe to abort the landing")
	}
	if err := rig.m.failsafe("again"); err != errAlreadyFailsafe {
		t.Errorf("Expected errAlreadyFailsafe, got %v", err)
	}
}
