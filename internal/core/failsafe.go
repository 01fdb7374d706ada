package core

import (
	"fmt"
	"time"

	"uav-control-manager/internal/config"
	"uav-control-manager/internal/fsm"
	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

// failsafe hands the vehicle to the failsafe controller, which needs no
// state feedback, and starts the failsafe task that drives it from then on.
func (m *ControlManager) failsafe(reason string) error {
	l := m.latchSnapshot()
	if l.failsafeActive {
		return errAlreadyFailsafe
	}
	if !l.motorsOn {
		return errMotorsOff
	}

	m.logger.Errorf("Failsafe: %s", reason)
	m.stopAuxiliary()

	if m.active().tracker == m.nullTracker {
		m.motorsOff("failsafe without an active tracker")
		return nil
	}

	if m.landing() == types.LandingLanding {
		if err := m.sendLandingEvent(fsm.EvLandingAbort); err != nil {
			m.logger.Warnf("Failed to abort landing: %v", err)
		}
		m.setLandingState(types.LandingIdle)
	}

	seed := m.latestAttitude()
	if seed == nil {
		seed = types.DefaultAttitudeCommand(m.cfg.UAV.Mass, m.now())
	}

	m.activeMu.Lock()
	prev := m.activeController
	if err := m.controllers[m.failsafeController].Controller.Activate(seed); err != nil {
		m.activeMu.Unlock()
		return fmt.Errorf("failed to activate failsafe controller: %w", err)
	}
	if prev != m.failsafeController {
		m.controllers[prev].Controller.Deactivate()
	}
	m.activeController = m.failsafeController
	m.lastSwitch = m.now()
	m.activeMu.Unlock()

	mass := seed.Mass
	if mass <= 0 {
		mass = m.cfg.UAV.Mass
	}
	m.failsafeMu.Lock()
	m.failsafeStartMass = mass
	m.failsafeBelow = time.Time{}
	m.failsafeMu.Unlock()

	m.updateLatches(func(l *latches) {
		l.failsafeActive = true
		l.failsafeTriggered = true
	})
	m.failsafeTask.Start()
	m.setIndicator(true)

	m.record(types.EventFailsafe, "failsafe: %s", reason)
	return nil
}

// failsafeTick replaces the control cycle while failsafe is active. It runs
// the failsafe controller on the last known state stamped with the current
// time, publishes, and cuts the motors once the vehicle has settled.
func (m *ControlManager) failsafeTick() {
	if !m.latchSnapshot().failsafeActive {
		m.failsafeTask.Stop()
		return
	}
	state, ok := m.vehicleState()
	if !ok {
		return
	}
	state.Stamp = m.now()

	m.activeMu.Lock()
	slot := m.controllers[m.activeController]
	out, err := plugin.UpdateController(slot.Controller, state, nil)
	m.activeMu.Unlock()

	switch {
	case err != nil:
		m.logger.ThrottledErrorf(throttlePeriod, "Failsafe controller %s failed: %v", slot.Name, err)
	case out == nil || !out.IsFinite():
		m.logger.ThrottledErrorf(throttlePeriod, "Failsafe controller %s produced no usable command", slot.Name)
	default:
		m.cmdMu.Lock()
		m.lastAttitude = out
		m.cmdMu.Unlock()
	}
	m.publish(state)

	if out == nil || err != nil {
		return
	}

	cfg := m.cfg.Safety.Failsafe
	now := m.now()
	m.failsafeMu.Lock()
	below := out.Mass < cfg.CutoffMassFactor*m.failsafeStartMass
	if !below {
		m.failsafeBelow = time.Time{}
	} else if m.failsafeBelow.IsZero() {
		m.failsafeBelow = now
	}
	touchdown := below && now.Sub(m.failsafeBelow) > config.Seconds(cfg.CutoffTimeout)
	m.failsafeMu.Unlock()

	if !touchdown {
		return
	}

	m.failsafeTask.Stop()
	m.record(types.EventTouchdown, "touchdown in failsafe")
	if cfg.Disarm {
		m.disarm("failsafe landed")
		return
	}
	m.motorsOff("failsafe landed")
}

// EscalatingFailsafe moves one step further through ehover, eland and
// failsafe, skipping disabled stages. The escalation state only advances
// when the stage itself could be entered.
func (m *ControlManager) EscalatingFailsafe() types.Response {
	m.escalateSerial.Lock()
	defer m.escalateSerial.Unlock()

	cfg := m.cfg.Safety.Escalation
	now := m.now()

	m.escMu.Lock()
	current, last := m.escalationState, m.lastEscalation
	m.escMu.Unlock()

	if !last.IsZero() && now.Sub(last) < config.Seconds(cfg.Timeout) {
		return types.Fail("too soon for escalating failsafe")
	}
	// the window runs from the last call, refused or not
	m.escMu.Lock()
	m.lastEscalation = now
	m.escMu.Unlock()
	if !m.latchSnapshot().motorsOn {
		return types.Fail("cannot escalate: motors are off")
	}
	fs, ok := m.flightStatus()
	if !ok || !fs.Armed || !fs.Offboard {
		return types.Fail("cannot escalate: vehicle is not armed in offboard mode")
	}
	if current == types.EscalationFinished {
		return types.Fail("escalating failsafe has nothing more to do")
	}

	next, ev := fsm.NextEscalation(current, fsm.Stages{
		EHover:   cfg.EHover,
		Eland:    cfg.Eland,
		Failsafe: cfg.Failsafe,
	})

	var err error
	switch next {
	case types.EscalationEHover:
		err = m.ehover("escalating failsafe")
	case types.EscalationEland:
		err = m.eland("escalating failsafe")
	case types.EscalationFailsafe:
		err = m.failsafe("escalating failsafe")
	}
	if err != nil {
		m.logger.Warnf("Escalating failsafe could not enter %s: %v", next, err)
		return types.Fail("escalating failsafe could not enter %s: %v", next, err)
	}

	if err := m.sendEscalationEvent(ev); err != nil {
		return types.Fail("escalating failsafe transition failed: %v", err)
	}
	m.escMu.Lock()
	m.escalationState = next
	m.escMu.Unlock()

	if next == types.EscalationFinished {
		return types.Fail("escalating failsafe has nothing more to do")
	}
	m.record(types.EventEscalation, "escalating failsafe entered %s", next)
	return types.Ok("escalating failsafe entered %s", next)
}

// resetEscalation starts a new escalation episode.
func (m *ControlManager) resetEscalation() {
	m.escalateSerial.Lock()
	defer m.escalateSerial.Unlock()

	if m.escalation() != types.EscalationNone {
		if err := m.sendEscalationEvent(fsm.EvEscalationReset); err != nil {
			m.logger.Warnf("Failed to reset escalation: %v", err)
		}
	}
	m.escMu.Lock()
	m.escalationState = types.EscalationNone
	m.lastEscalation = time.Time{}
	m.escMu.Unlock()
}

// checkRCEscalation fires the escalating failsafe once per rising edge of
// the configured RC channel.
func (m *ControlManager) checkRCEscalation(rc types.RCChannels) {
	cfg := m.cfg.Safety.Escalation.RC
	if !cfg.Enabled {
		return
	}
	v, ok := rc.Channel(cfg.Channel)
	if !ok {
		return
	}
	high := v > cfg.Threshold

	m.escMu.Lock()
	rising := high && !m.rcEscalateHigh
	m.rcEscalateHigh = high
	m.escMu.Unlock()

	if !rising {
		return
	}
	r := m.EscalatingFailsafe()
	m.logger.Infof("RC escalating failsafe: %s", r.Message)
}
