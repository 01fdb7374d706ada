package core

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

const throttlePeriod = time.Second

// OnVehicleState is the state-input callback. It stores the state and
// starts a control cycle unless one is already in flight.
func (m *ControlManager) OnVehicleState(s types.VehicleState) {
	if m.ingestState(s) {
		m.triggerCycle()
	}
}

// ingestState stores a new vehicle state and reports whether a control cycle
// should follow.
func (m *ControlManager) ingestState(s types.VehicleState) bool {
	if !s.IsFinite() {
		m.logger.ThrottledErrorf(throttlePeriod, "Dropping non-finite vehicle state")
		return false
	}

	m.stateMu.Lock()
	prev, had := m.state, m.haveState
	m.stateMu.Unlock()

	if had && !prev.SameSource(s) {
		m.switchOdometrySource(prev, s)
		return true
	}

	innovation, headingJump := 0.0, 0.0
	if had {
		dt := s.Stamp.Sub(prev.Stamp).Seconds()
		if dt < 0 {
			dt = 0
		}
		predicted := r3.Add(prev.Position, r3.Scale(dt, prev.Velocity))
		innovation = r3.Norm(r3.Sub(s.Position, predicted))
		headingJump = math.Abs(types.AngleDiff(s.Heading(), prev.Heading()+prev.AngularVelocity.Z*dt))
	}

	m.storeState(s, innovation, headingJump)
	return true
}

func (m *ControlManager) storeState(s types.VehicleState, innovation, headingJump float64) {
	m.stateMu.Lock()
	m.state = s
	m.haveState = true
	m.stateArrival = m.now()
	m.innovation = innovation
	m.headingJump = headingJump
	m.stateMu.Unlock()

	m.deps.Transformer.UpdateVehicle(s)
}

// triggerCycle starts an asynchronous control cycle. Arrivals while a cycle
// is in flight are dropped.
func (m *ControlManager) triggerCycle() {
	if !m.cycleRunning.CompareAndSwap(false, true) {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.cycleRunning.Store(false)
		m.controlCycle()
	}()
}

// controlCycle runs safety, the update passes, constraint reconciliation
// and publishing, in that order. In failsafe the failsafe task drives the
// controller and publishing instead.
func (m *ControlManager) controlCycle() {
	if m.latchSnapshot().failsafeActive {
		return
	}

	m.execute(m.runSafety())
	if m.latchSnapshot().failsafeActive {
		return
	}

	state, ok := m.vehicleState()
	if !ok {
		return
	}

	m.execute(m.updatePasses(state))
	m.reconcileConstraints()
	m.publish(state)
}

// updatePasses updates every tracker, then every controller, keeping the
// active plugins fixed for the whole pass.
func (m *ControlManager) updatePasses(state types.VehicleState) requests {
	var reqs requests

	m.activeMu.Lock()
	defer m.activeMu.Unlock()

	ti, ci := m.activeTracker, m.activeController
	lastPos, lastAtt := m.commands()
	landing := m.landing() == types.LandingLanding

	posCmd := lastPos
	for i, slot := range m.trackers {
		cmd, err := plugin.UpdateTracker(slot.Tracker, state, lastAtt)
		if i != ti {
			if errors.Is(err, plugin.ErrPanic) {
				m.logger.ThrottledErrorf(throttlePeriod, "Inactive tracker %s: %v", slot.Name, err)
				reqs = reqs.add(requestEland, "inactive tracker "+slot.Name+" panicked")
			}
			continue
		}
		switch {
		case err != nil:
			m.logger.ThrottledErrorf(throttlePeriod, "Tracker %s failed: %v", slot.Name, err)
			reqs = reqs.add(m.trackerFault(i, landing), "tracker "+slot.Name+" failed")
		case cmd != nil && !cmd.IsFinite():
			m.logger.ThrottledErrorf(throttlePeriod, "Tracker %s produced a non-finite command", slot.Name)
			reqs = reqs.add(m.trackerFault(i, landing), "tracker "+slot.Name+" produced a non-finite command")
		case cmd != nil:
			cmd.FrameID = m.cfg.UAV.WorkingFrame
			posCmd = cmd
		}
	}

	if ti == m.nullTracker {
		m.setCommands(nil, nil)
		return reqs
	}

	attCmd := lastAtt
	for i, slot := range m.controllers {
		out, err := plugin.UpdateController(slot.Controller, state, posCmd)
		if i != ci {
			if errors.Is(err, plugin.ErrPanic) {
				m.logger.ThrottledErrorf(throttlePeriod, "Inactive controller %s: %v", slot.Name, err)
				reqs = reqs.add(requestEland, "inactive controller "+slot.Name+" panicked")
			}
			continue
		}
		switch {
		case err != nil:
			m.logger.ThrottledErrorf(throttlePeriod, "Controller %s failed: %v", slot.Name, err)
			reqs = reqs.add(m.controllerFault(landing), "controller "+slot.Name+" failed")
		case out != nil && !out.IsFinite():
			m.logger.ThrottledErrorf(throttlePeriod, "Controller %s produced a non-finite command", slot.Name)
			reqs = reqs.add(m.controllerFault(landing), "controller "+slot.Name+" produced a non-finite command")
		case out != nil:
			attCmd = out
		}
	}

	m.setCommands(posCmd, attCmd)
	return reqs
}

// trackerFault decides how to escalate a fault of the tracker at idx.
func (m *ControlManager) trackerFault(idx int, landing bool) request {
	if idx == m.elandTracker || landing {
		return requestFailsafe
	}
	return requestEland
}

func (m *ControlManager) controllerFault(landing bool) request {
	if landing {
		return requestFailsafe
	}
	return requestEland
}

// switchOdometrySource quiesces the safety and failsafe tasks and the
// control cycle, stores the new state and tells the active plugins about the
// jump.
func (m *ControlManager) switchOdometrySource(prev, s types.VehicleState) {
	m.logger.Warnf("Odometry source changed: frame %s epoch %d -> frame %s epoch %d",
		prev.FrameID, prev.EstimatorEpoch, s.FrameID, s.EstimatorEpoch)

	wasRunning := m.safetyTask.Running()
	m.safetyTask.Stop()
	failsafeRunning := m.failsafeTask.Running()
	m.failsafeTask.Stop()

	for !m.cycleRunning.CompareAndSwap(false, true) {
		time.Sleep(time.Millisecond)
	}
	m.safetyMu.Lock()

	m.storeState(s, 0, 0)

	m.activeMu.Lock()
	m.trackers[m.activeTracker].Tracker.SwitchOdometrySource(s)
	m.controllers[m.activeController].Controller.SwitchOdometrySource(s)
	m.activeMu.Unlock()

	m.safetyMu.Unlock()
	m.cycleRunning.Store(false)

	if wasRunning {
		m.safetyTask.Start()
	}
	if failsafeRunning && m.latchSnapshot().failsafeActive {
		m.failsafeTask.Start()
	}
	m.record(types.EventOdometry, "odometry source switched to frame %s epoch %d", s.FrameID, s.EstimatorEpoch)
}

// OnFlightStackStatus stores the autopilot liveness report.
func (m *ControlManager) OnFlightStackStatus(st types.FlightStackStatus) {
	m.fsMu.Lock()
	m.fs = st
	m.haveFS = true
	m.fsMu.Unlock()
}

// OnRCChannels stores the RC channels and fires the RC escalating failsafe
// on a rising edge of its channel.
func (m *ControlManager) OnRCChannels(rc types.RCChannels) {
	m.fsMu.Lock()
	m.rc = rc
	m.fsMu.Unlock()

	m.checkRCEscalation(rc)
}
