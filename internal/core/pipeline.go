package core

import (
	"uav-control-manager/internal/types"
)

// publish turns the latest attitude command into the flight-stack command.
// With the motors off nothing is sent at all.
func (m *ControlManager) publish(state types.VehicleState) {
	if !m.latchSnapshot().motorsOn {
		return
	}

	out, ok := m.outputCommand(state)
	if !ok {
		return
	}

	if err := m.deps.FlightStack.Publish(out); err != nil {
		m.logger.ThrottledErrorf(throttlePeriod, "Failed to publish command: %v", err)
		return
	}

	m.cmdMu.Lock()
	m.lastOutput = &out
	m.cmdMu.Unlock()
}

// outputCommand selects what to send: the neutral hold under the null
// tracker or on a missing or broken attitude command, the attitude or rate
// command otherwise.
func (m *ControlManager) outputCommand(state types.VehicleState) (types.OutputCommand, bool) {
	now := m.now()
	neutral := types.NeutralCommand(state, m.cfg.UAV.MinThrustNullTracker, now)

	if m.active().tracker == m.nullTracker {
		return neutral, true
	}

	att := m.latestAttitude()
	switch {
	case att == nil:
		m.logger.ThrottledErrorf(throttlePeriod, "No attitude command available, sending neutral command")
		return neutral, true
	case !att.IsFinite():
		m.logger.ThrottledErrorf(throttlePeriod, "Attitude command is not finite, sending neutral command")
		return neutral, true
	}

	out := types.OutputCommand{
		Stamp:  now,
		Mode:   att.Mode,
		Thrust: att.Thrust,
	}
	switch att.Mode {
	case types.ModeRate:
		out.Rate = att.AttitudeRate
		out.Attitude = types.Normalize(att.Attitude)
	default:
		out.Mode = types.ModeAttitude
		out.Attitude = types.Normalize(att.Attitude)
	}

	if !out.IsFinite() {
		m.logger.ThrottledErrorf(throttlePeriod, "Output command is not finite, sending neutral command")
		if !neutral.IsFinite() {
			return types.OutputCommand{}, false
		}
		return neutral, true
	}
	return out, true
}
