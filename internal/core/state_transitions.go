package core

import (
	"errors"
	"sort"

	"uav-control-manager/internal/fsm"
	"uav-control-manager/internal/types"
)

// request is a state transition asked for by a safety check or an update
// pass. Requests are collected while locks are held and executed after.
type request int

const (
	requestReleasePayload request = iota + 1
	requestEland
	requestFailsafe
	requestMotorsOff
	requestDisarm
)

func (r request) String() string {
	switch r {
	case requestReleasePayload:
		return "release-payload"
	case requestEland:
		return "eland"
	case requestFailsafe:
		return "failsafe"
	case requestMotorsOff:
		return "motors-off"
	case requestDisarm:
		return "disarm"
	default:
		return "unknown"
	}
}

type transition struct {
	kind   request
	reason string
}

type requests []transition

// add appends a request unless one of the same kind is already pending.
func (rs requests) add(kind request, reason string) requests {
	if rs.has(kind) {
		return rs
	}
	return append(rs, transition{kind: kind, reason: reason})
}

func (rs requests) has(kind request) bool {
	for _, t := range rs {
		if t.kind == kind {
			return true
		}
	}
	return false
}

var (
	errAlreadyLanding  = errors.New("emergency landing is already in progress")
	errAlreadyFailsafe = errors.New("failsafe is already active")
	errMotorsOff       = errors.New("motors are off")
	errCannotLand      = errors.New("active tracker cannot land")
)

// execute runs the collected requests. The payload goes first, then the
// most severe of the remaining requests wins: disarm over motor cut over
// failsafe over eland. An eland that cannot start falls back to failsafe.
func (m *ControlManager) execute(reqs requests) {
	if len(reqs) == 0 {
		return
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].kind < reqs[j].kind })

	for _, t := range reqs {
		switch t.kind {
		case requestReleasePayload:
			m.releasePayload(t.reason)
		case requestEland:
			if reqs.has(requestFailsafe) || reqs.has(requestMotorsOff) || reqs.has(requestDisarm) {
				continue
			}
			err := m.eland(t.reason)
			if err == nil || errors.Is(err, errAlreadyLanding) || errors.Is(err, errAlreadyFailsafe) || errors.Is(err, errMotorsOff) {
				continue
			}
			m.logger.Errorf("Emergency landing failed (%v), falling back to failsafe", err)
			if err := m.failsafe("eland failed: " + t.reason); err != nil && !errors.Is(err, errAlreadyFailsafe) {
				m.logger.Errorf("Failsafe failed: %v", err)
			}
		case requestFailsafe:
			if reqs.has(requestMotorsOff) || reqs.has(requestDisarm) {
				continue
			}
			if err := m.failsafe(t.reason); err != nil && !errors.Is(err, errAlreadyFailsafe) {
				m.logger.Errorf("Failsafe failed: %v", err)
			}
		case requestMotorsOff:
			if reqs.has(requestDisarm) {
				continue
			}
			m.motorsOff(t.reason)
		case requestDisarm:
			m.disarm(t.reason)
		}
	}
}

// motorsOff cuts the motors without going through eland or failsafe. The
// landing monitor and the failsafe task have nothing left to do afterwards.
func (m *ControlManager) motorsOff(reason string) {
	wasOn := m.latchSnapshot().motorsOn

	m.updateLatches(func(l *latches) {
		l.motorsOn = false
		l.failsafeActive = false
	})
	m.failsafeTask.Stop()
	m.stopAuxiliary()

	if m.landing() == types.LandingLanding {
		if err := m.sendLandingEvent(fsm.EvLandingAbort); err != nil {
			m.logger.Warnf("Failed to abort landing: %v", err)
		}
		m.setLandingState(types.LandingIdle)
	}

	m.switchToNull()
	m.setIndicator(false)

	if wasOn {
		m.logger.Warnf("Motors off: %s", reason)
		m.record(types.EventMotors, "motors off: %s", reason)
	}
}

// disarm cuts the motors and asks the flight stack to disarm.
func (m *ControlManager) disarm(reason string) error {
	m.motorsOff(reason)

	m.logger.Errorf("Disarming: %s", reason)
	m.record(types.EventDisarm, "disarm: %s", reason)
	if err := m.deps.FlightStack.Disarm(); err != nil {
		m.logger.Errorf("Flight stack refused to disarm: %v", err)
		return err
	}
	return nil
}

func (m *ControlManager) releasePayload(reason string) {
	if m.deps.Gripper == nil {
		return
	}
	m.logger.Warnf("Releasing payload: %s", reason)
	if err := m.deps.Gripper.ReleasePayload(); err != nil {
		m.logger.Errorf("Failed to release payload: %v", err)
		return
	}
	m.record(types.EventPayload, "payload released: %s", reason)
}

// stopAuxiliary cancels behaviours that drive the reference on their own.
func (m *ControlManager) stopAuxiliary() {
	m.cancelPirouette()

	m.auxMu.Lock()
	m.rcGotoActive = false
	m.auxMu.Unlock()
}
