package core

import (
	"math"
	"time"

	"uav-control-manager/internal/config"
	"uav-control-manager/internal/types"
)

func (m *ControlManager) safetyTick() {
	m.execute(m.runSafety())
}

// runSafety evaluates every safety check once and returns the transitions
// they ask for. Each trigger is latched when detected so it fires once per
// flight.
func (m *ControlManager) runSafety() requests {
	m.safetyMu.Lock()
	defer m.safetyMu.Unlock()

	now := m.now()
	l := m.latchSnapshot()
	if !l.motorsOn {
		m.tiltErrSince = time.Time{}
		return nil
	}

	var reqs requests
	snap := m.stateSnapshot()
	fs, haveFS := m.flightStatus()
	safety := m.cfg.Safety

	if snap.ok && fs.Armed && now.Sub(snap.arrival) > config.Seconds(safety.StateInputTimeout) {
		if !l.failsafeTriggered && !l.failsafeActive {
			m.updateLatches(func(l *latches) { l.failsafeTriggered = true })
			m.logger.Errorf("Vehicle state timed out after %v", now.Sub(snap.arrival))
			reqs = reqs.add(requestFailsafe, "vehicle state timed out")
		}
		return reqs
	}
	if !snap.ok {
		return nil
	}

	act := m.active()
	if act.tracker == m.nullTracker {
		m.tiltErrSince = time.Time{}
		return nil
	}
	state := snap.state

	// Tilt disarm is the last line of defence and ignores the cooldown.
	if tilt := state.Tilt(); tilt > safety.TiltLimitDisarm {
		if !l.disarmTriggered {
			m.updateLatches(func(l *latches) { l.disarmTriggered = true })
			m.logger.Errorf("Tilt %.2f rad exceeds the disarm limit %.2f rad", tilt, safety.TiltLimitDisarm)
			reqs = reqs.add(requestDisarm, "tilt exceeds the disarm limit")
		}
		return reqs
	}

	if l.failsafeActive {
		return reqs
	}

	if haveFS && fs.Armed && !fs.Offboard {
		if !l.offboardCut {
			m.updateLatches(func(l *latches) { l.offboardCut = true })
			m.logger.Errorf("Flight stack left offboard mode while flying")
			reqs = reqs.add(requestMotorsOff, "offboard mode lost")
		}
		return reqs
	}

	if now.Sub(act.lastSwitch) < config.Seconds(safety.SwitchCooldown) {
		return reqs
	}

	pos, att := m.commands()
	if pos == nil {
		return reqs
	}
	slot := m.controllers[act.controller]
	landing := m.landing() == types.LandingLanding

	canEland := func() bool {
		return !l.elandTriggered && !l.failsafeTriggered && !landing
	}
	eland := func(reason string) {
		if !canEland() {
			return
		}
		l.elandTriggered = true
		m.updateLatches(func(l *latches) { l.elandTriggered = true })
		m.logger.ThrottledErrorf(throttlePeriod, "Triggering emergency landing: %s", reason)
		reqs = reqs.add(requestEland, reason)
	}
	release := func(reason string) {
		if l.payloadReleased {
			return
		}
		l.payloadReleased = true
		m.updateLatches(func(l *latches) { l.payloadReleased = true })
		reqs = reqs.add(requestReleasePayload, reason)
	}

	controlErr := pos.ControlError(state)
	if controlErr > slot.FailsafeThreshold && !l.failsafeTriggered {
		l.failsafeTriggered = true
		m.updateLatches(func(l *latches) { l.failsafeTriggered = true })
		m.logger.Errorf("Control error %.2f m exceeds the failsafe threshold %.2f m", controlErr, slot.FailsafeThreshold)
		reqs = reqs.add(requestFailsafe, "control error exceeds the failsafe threshold")
	}

	if snap.innovation > slot.OdometryInnovationThreshold {
		eland("odometry innovation too large")
	}
	if snap.headingJump > slot.OdometryInnovationHeading {
		eland("odometry heading jumped")
	}

	var tiltErr float64
	if att != nil {
		tiltErr = types.AngleBetween(types.BodyUp(att.Attitude), state.BodyUp())
		if tiltErr > safety.TiltLimitEland {
			eland("tilt error exceeds the eland limit")
		}
	}

	if controlErr > slot.ElandThreshold/2 {
		release("control error exceeds half the eland threshold")
	}
	if controlErr > slot.ElandThreshold {
		eland("control error exceeds the eland threshold")
	}

	if pos.UseHeading {
		yawErr := math.Abs(types.AngleDiff(pos.Heading, state.Heading()))
		if yawErr > safety.YawErrorEland/2 {
			release("yaw error exceeds half the eland limit")
		}
		if yawErr > safety.YawErrorEland {
			eland("yaw error exceeds the eland limit")
		}
	}

	ted := safety.TiltErrorDisarm
	if !ted.Enabled || att == nil || att.RampingUp || !fs.Armed || tiltErr <= ted.Threshold {
		m.tiltErrSince = time.Time{}
		return reqs
	}
	if m.tiltErrSince.IsZero() {
		m.tiltErrSince = now
		return reqs
	}
	if now.Sub(m.tiltErrSince) > config.Seconds(ted.Timeout) && !l.disarmTriggered {
		m.updateLatches(func(l *latches) { l.disarmTriggered = true })
		m.logger.Errorf("Tilt error %.2f rad above %.2f rad for %v", tiltErr, ted.Threshold, now.Sub(m.tiltErrSince))
		reqs = reqs.add(requestDisarm, "sustained tilt error")
	}
	return reqs
}
