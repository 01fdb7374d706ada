package core

import (
	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

// SwitchTracker activates the named tracker on behalf of an operator.
func (m *ControlManager) SwitchTracker(name string) types.Response {
	return m.switchTracker(name, true)
}

// SwitchController activates the named controller on behalf of an operator.
func (m *ControlManager) SwitchController(name string) types.Response {
	return m.switchController(name, true)
}

// switchTracker hands the vehicle over to another tracker. human switches
// are refused for slots that are not human switchable.
func (m *ControlManager) switchTracker(name string, human bool) types.Response {
	idx := plugin.TrackerIndex(m.trackers, name)
	if idx < 0 {
		return types.Fail("tracker %s does not exist", name)
	}
	slot := m.trackers[idx]
	if human && !slot.HumanSwitchable && idx != m.nullTracker {
		return types.Fail("tracker %s cannot be switched to manually", name)
	}
	if !m.haveLiveness() {
		return types.Fail("cannot switch tracker: missing vehicle state or flight-stack odometry")
	}
	if idx != m.nullTracker && !m.latchSnapshot().motorsOn {
		return types.Fail("cannot switch tracker: motors are off")
	}

	seed := m.latestAttitude()
	resp, switched := m.handOverTracker(idx, seed)
	if switched {
		m.logger.Infof("Switched tracker to %s", name)
		m.record(types.EventTrackerSwitch, "switched tracker to %s", name)
	}
	return resp
}

// handOverTracker does the actual switch under activeMu.
func (m *ControlManager) handOverTracker(idx int, seed *types.AttitudeCommand) (types.Response, bool) {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()

	name := m.trackers[idx].Name
	prev := m.activeTracker
	if idx == prev {
		return types.Ok("tracker %s is already active", name), false
	}

	if err := m.trackers[idx].Tracker.Activate(seed); err != nil {
		return types.Fail("failed to activate tracker %s: %v", name, err), false
	}

	ctrl := m.controllers[m.activeController].Controller
	switch {
	case prev == m.nullTracker:
		fresh := types.DefaultAttitudeCommand(m.cfg.UAV.Mass, m.now())
		if err := ctrl.Activate(fresh); err != nil {
			m.trackers[idx].Tracker.Deactivate()
			return types.Fail("failed to activate controller %s: %v", m.controllers[m.activeController].Name, err), false
		}
		m.setCommands(nil, fresh)
	case idx == m.nullTracker:
		ctrl.Deactivate()
		m.setCommands(nil, nil)
	}

	m.trackers[prev].Tracker.Deactivate()
	m.activeTracker = idx
	m.lastSwitch = m.now()
	return types.Ok("switched to tracker %s", name), true
}

// switchController hands the vehicle over to another controller.
func (m *ControlManager) switchController(name string, human bool) types.Response {
	idx := plugin.ControllerIndex(m.controllers, name)
	if idx < 0 {
		return types.Fail("controller %s does not exist", name)
	}
	if human && !m.controllers[idx].HumanSwitchable {
		return types.Fail("controller %s cannot be switched to manually", name)
	}
	if !m.haveLiveness() {
		return types.Fail("cannot switch controller: missing vehicle state or flight-stack odometry")
	}

	resp, switched := m.handOverController(idx, m.latestAttitude())
	if !switched {
		return resp
	}

	m.constraintsMu.Lock()
	c := m.sanitized
	m.constraintsMu.Unlock()
	m.applyConstraints(c)

	m.logger.Infof("Switched controller to %s", name)
	m.record(types.EventControllerSwitch, "switched controller to %s", name)
	return resp
}

func (m *ControlManager) handOverController(idx int, seed *types.AttitudeCommand) (types.Response, bool) {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()

	name := m.controllers[idx].Name
	prev := m.activeController
	if idx == prev {
		return types.Ok("controller %s is already active", name), false
	}

	// With the null tracker in charge controllers stay inactive; the new one
	// is activated when a tracker takes over.
	if m.activeTracker != m.nullTracker {
		if err := m.controllers[idx].Controller.Activate(seed); err != nil {
			return types.Fail("failed to activate controller %s: %v", name, err), false
		}
		m.controllers[prev].Controller.Deactivate()

		tracker := m.trackers[m.activeTracker]
		if err := tracker.Tracker.Activate(nil); err != nil {
			m.logger.Warnf("Tracker %s failed to re-activate after controller switch: %v", tracker.Name, err)
		}
	}

	m.activeController = idx
	m.lastSwitch = m.now()
	return types.Ok("switched to controller %s", name), true
}

// switchToNull forces the null tracker and the initial controller. It only
// needs the plugins themselves, not a vehicle state.
func (m *ControlManager) switchToNull() {
	m.activeMu.Lock()
	if m.activeTracker != m.nullTracker {
		m.controllers[m.activeController].Controller.Deactivate()
		m.trackers[m.activeTracker].Tracker.Deactivate()
		if err := m.trackers[m.nullTracker].Tracker.Activate(nil); err != nil {
			m.logger.Errorf("Failed to activate null tracker: %v", err)
		}
		m.activeTracker = m.nullTracker
		m.lastSwitch = m.now()
	}
	m.activeController = m.initialController
	m.activeMu.Unlock()

	m.setCommands(nil, nil)
}

// withActiveTracker runs fn against the active tracker so it cannot
// interleave with a switch.
func (m *ControlManager) withActiveTracker(fn func(slot plugin.TrackerSlot) error) error {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	return fn(m.trackers[m.activeTracker])
}

// applyConstraints hands c to every tracker and controller.
func (m *ControlManager) applyConstraints(c types.Constraints) {
	for _, t := range m.trackers {
		if err := t.Tracker.SetConstraints(c); err != nil {
			m.logger.Warnf("Tracker %s refused constraints: %v", t.Name, err)
		}
	}
	for _, ctrl := range m.controllers {
		if err := ctrl.Controller.SetConstraints(c); err != nil {
			m.logger.Warnf("Controller %s refused constraints: %v", ctrl.Name, err)
		}
	}
}
