package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

// joystickTick drives RC goto. While its channel is high the sticks command
// a body-aligned velocity and a heading rate.
func (m *ControlManager) joystickTick() {
	cfg := m.cfg.Joystick.RCGoto

	m.fsMu.Lock()
	rc := m.rc
	m.fsMu.Unlock()

	high := false
	if v, ok := rc.Channel(cfg.Channel); ok {
		high = v > cfg.Threshold
	}
	eligible := cfg.Enabled && m.toggles.Snapshot().Joystick && m.flyingNormally()

	m.auxMu.Lock()
	was := m.rcGotoActive
	engaged := high && eligible && !m.pirouette.active && !m.bumperEngaged
	m.rcGotoActive = engaged
	m.auxMu.Unlock()

	switch {
	case was && !engaged:
		m.logger.Infof("RC goto released")
		if eligible {
			if r := m.trackerCommand("hover", plugin.Tracker.Hover); !r.Success {
				m.logger.Warnf("Failed to hover after RC goto: %s", r.Message)
			}
		}
		return
	case !engaged:
		return
	case !was:
		m.logger.Infof("RC goto engaged")
	}

	state, ok := m.vehicleState()
	if !ok {
		return
	}
	axis := func(i int) float64 {
		v, _ := rc.Channel(i)
		return v
	}
	forward, left := axis(cfg.AxisX)*cfg.Speed, axis(cfg.AxisY)*cfg.Speed
	h := state.Heading()

	vel := types.VelocityReference{
		FrameID: m.cfg.UAV.WorkingFrame,
		Velocity: r3.Vec{
			X: forward*math.Cos(h) - left*math.Sin(h),
			Y: forward*math.Sin(h) + left*math.Cos(h),
			Z: axis(cfg.AxisZ) * cfg.Speed,
		},
		UseHeadingRate: true,
		HeadingRate:    axis(cfg.AxisHeading) * cfg.HeadingRate,
	}
	if r := m.setVelocityReference(vel); !r.Success {
		m.logger.ThrottledWarnf(throttlePeriod, "RC goto: %s", r.Message)
	}
}

// HandleJoystickButton runs the command bound to a named joystick button.
func (m *ControlManager) HandleJoystickButton(button string) types.Response {
	if !m.toggles.Snapshot().Joystick {
		return types.Fail("joystick is disabled")
	}

	var r types.Response
	switch button {
	case "eland":
		r = m.Eland()
	case "failsafe":
		r = m.Failsafe()
	case "escalating_failsafe":
		r = m.EscalatingFailsafe()
	case "start_tracking":
		r = m.StartTrajectoryTracking()
	case "stop_tracking":
		r = m.StopTrajectoryTracking()
	case "goto_start":
		r = m.GotoTrajectoryStart()
	case "pirouette":
		r = m.Pirouette()
	case "fallback":
		r = m.EHover()
	default:
		return types.Fail("unknown joystick button %s", button)
	}

	m.logger.Infof("Joystick button %s: %s", button, describe(r))
	return r
}
