package core

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

// === References ===

// referenceBlocked reports why external references are refused right now.
func (m *ControlManager) referenceBlocked() (string, bool) {
	m.auxMu.Lock()
	defer m.auxMu.Unlock()
	switch {
	case m.pirouette.active:
		return "pirouette is in progress", true
	case m.bumperEngaged:
		return "bumper repulsion is in progress", true
	case m.rcGotoActive:
		return "rc goto is in control", true
	}
	return "", false
}

// SetReference validates ref and hands it to the active tracker.
func (m *ControlManager) SetReference(ref types.Reference) types.Response {
	if reason, blocked := m.referenceBlocked(); blocked {
		return types.Fail("reference refused: %s", reason)
	}
	return m.setReference(ref)
}

func (m *ControlManager) setReference(ref types.Reference) types.Response {
	state, ok := m.vehicleState()
	if !ok {
		return types.Fail("reference refused: no vehicle state")
	}
	out, modified, err := m.validator.ValidateReference(ref, state, state.Position)
	if err != nil {
		return types.Fail("reference refused: %v", err)
	}
	if err := m.withActiveTracker(func(slot plugin.TrackerSlot) error {
		return slot.Tracker.SetReference(out)
	}); err != nil {
		return types.Fail("tracker refused reference: %v", err)
	}
	if modified {
		return types.Ok("reference set, clamped by the bumper")
	}
	return types.Ok("reference set")
}

// SetVelocityReference validates vel against the stopping point it implies
// and hands it to the active tracker.
func (m *ControlManager) SetVelocityReference(vel types.VelocityReference) types.Response {
	if reason, blocked := m.referenceBlocked(); blocked {
		return types.Fail("velocity reference refused: %s", reason)
	}
	return m.setVelocityReference(vel)
}

func (m *ControlManager) setVelocityReference(vel types.VelocityReference) types.Response {
	state, ok := m.vehicleState()
	if !ok {
		return types.Fail("velocity reference refused: no vehicle state")
	}
	_, sanitized := m.Constraints()
	out, err := m.validator.ValidateVelocityReference(vel, state, sanitized, state.Position)
	if err != nil {
		return types.Fail("velocity reference refused: %v", err)
	}
	if err := m.withActiveTracker(func(slot plugin.TrackerSlot) error {
		return slot.Tracker.SetVelocityReference(out)
	}); err != nil {
		return types.Fail("tracker refused velocity reference: %v", err)
	}
	return types.Ok("velocity reference set")
}

// SetTrajectory validates traj and offers it to every tracker, so a tracker
// switched to later already has it. The call succeeds when the active
// tracker accepted it.
func (m *ControlManager) SetTrajectory(traj types.Trajectory) types.TrajectoryResponse {
	if reason, blocked := m.referenceBlocked(); blocked {
		return types.TrajectoryResponse{Response: types.Fail("trajectory refused: %s", reason)}
	}
	state, ok := m.vehicleState()
	if !ok {
		return types.TrajectoryResponse{Response: types.Fail("trajectory refused: no vehicle state")}
	}
	out, modified, err := m.validator.ValidateTrajectory(traj, state, state.Position)
	if err != nil {
		return types.TrajectoryResponse{Response: types.Fail("trajectory refused: %v", err)}
	}

	resp := types.TrajectoryResponse{Modified: modified}
	var activeErr error

	m.activeMu.Lock()
	for i, slot := range m.trackers {
		if i == m.nullTracker {
			continue
		}
		err := slot.Tracker.SetTrajectory(out)
		acc := types.TrackerAcceptance{Name: slot.Name, Success: err == nil, Message: "trajectory loaded"}
		if err != nil {
			acc.Message = err.Error()
		}
		resp.Trackers = append(resp.Trackers, acc)
		if i == m.activeTracker {
			activeErr = err
			if err == nil {
				resp.Response = types.Ok("trajectory loaded by %s", slot.Name)
			}
		}
	}
	activeTracker := m.activeTracker
	m.activeMu.Unlock()

	switch {
	case activeTracker == m.nullTracker:
		resp.Response = types.Fail("trajectory stored, but the null tracker is active")
	case activeErr != nil:
		resp.Response = types.Fail("active tracker refused trajectory: %v", activeErr)
	}
	if resp.Success && modified {
		resp.Message += ", modified to fit the safety area"
	}
	return resp
}

// ValidateReference checks ref without sending it anywhere.
func (m *ControlManager) ValidateReference(ref types.Reference) types.Response {
	state, ok := m.vehicleState()
	if !ok {
		return types.Fail("no vehicle state")
	}
	if _, _, err := m.validator.ValidateReference(ref, state, state.Position); err != nil {
		return types.Fail("reference is not valid: %v", err)
	}
	return types.Ok("reference is valid")
}

// ValidateReferences checks every reference of refs independently.
func (m *ControlManager) ValidateReferences(refs []types.Reference) types.ValidationResponse {
	state, ok := m.vehicleState()
	if !ok {
		return types.ValidationResponse{Response: types.Fail("no vehicle state")}
	}
	resp := types.ValidationResponse{Valid: make([]bool, len(refs))}
	valid := 0
	for i, ref := range refs {
		if _, _, err := m.validator.ValidateReference(ref, state, state.Position); err == nil {
			resp.Valid[i] = true
			valid++
		}
	}
	resp.Response = types.Ok("%d of %d references are valid", valid, len(refs))
	return resp
}

// Goto flies to a point of the working frame.
func (m *ControlManager) Goto(x, y, z, heading float64) types.Response {
	return m.SetReference(types.Reference{
		FrameID:  m.cfg.UAV.WorkingFrame,
		Position: r3.Vec{X: x, Y: y, Z: z},
		Heading:  heading,
	})
}

// GotoRelative flies by an offset from the current position command, or
// from the vehicle position when there is none.
func (m *ControlManager) GotoRelative(dx, dy, dz, dheading float64) types.Response {
	state, ok := m.vehicleState()
	if !ok {
		return types.Fail("no vehicle state")
	}
	origin, heading := state.Position, state.Heading()
	if pos, _ := m.commands(); pos != nil {
		origin, heading = pos.Position, pos.Heading
	}
	return m.SetReference(types.Reference{
		FrameID:  m.cfg.UAV.WorkingFrame,
		Position: r3.Add(origin, r3.Vec{X: dx, Y: dy, Z: dz}),
		Heading:  types.WrapAngle(heading + dheading),
	})
}

// === Tracker commands ===

func (m *ControlManager) trackerCommand(name string, fn func(t plugin.Tracker) error) types.Response {
	if err := m.withActiveTracker(func(slot plugin.TrackerSlot) error {
		return fn(slot.Tracker)
	}); err != nil {
		return types.Fail("%s failed: %v", name, err)
	}
	return types.Ok("%s done", name)
}

// Hover stops the vehicle where it is.
func (m *ControlManager) Hover() types.Response {
	if _, blocked := m.referenceBlocked(); blocked {
		m.stopAuxiliary()
		// the bumper task sets it again if the obstacle is still close
		m.setBumperEngaged(false)
	}
	return m.trackerCommand("hover", plugin.Tracker.Hover)
}

func (m *ControlManager) StartTrajectoryTracking() types.Response {
	return m.trackerCommand("start trajectory tracking", plugin.Tracker.StartTrajectoryTracking)
}

func (m *ControlManager) StopTrajectoryTracking() types.Response {
	return m.trackerCommand("stop trajectory tracking", plugin.Tracker.StopTrajectoryTracking)
}

func (m *ControlManager) ResumeTrajectoryTracking() types.Response {
	return m.trackerCommand("resume trajectory tracking", plugin.Tracker.ResumeTrajectoryTracking)
}

func (m *ControlManager) GotoTrajectoryStart() types.Response {
	return m.trackerCommand("goto trajectory start", plugin.Tracker.GotoTrajectoryStart)
}

// ResetTracker snaps the active tracker to the current vehicle position.
func (m *ControlManager) ResetTracker() types.Response {
	return m.trackerCommand("reset tracker", plugin.Tracker.ResetStatic)
}

// EnableCallbacks lets plugins accept or refuse external references.
func (m *ControlManager) EnableCallbacks(enabled bool) types.Response {
	m.toggles.SetCallbacks(enabled)

	m.activeMu.Lock()
	for _, t := range m.trackers {
		t.Tracker.EnableCallbacks(enabled)
	}
	for _, c := range m.controllers {
		c.Controller.EnableCallbacks(enabled)
	}
	m.activeMu.Unlock()

	return types.Ok("callbacks %s", onOff(enabled))
}

// === Emergency commands ===

func (m *ControlManager) EHover() types.Response {
	if err := m.ehover("requested"); err != nil {
		return types.Fail("ehover refused: %v", err)
	}
	return types.Ok("emergency hover")
}

func (m *ControlManager) Eland() types.Response {
	if err := m.eland("requested"); err != nil {
		return types.Fail("eland refused: %v", err)
	}
	return types.Ok("emergency landing")
}

func (m *ControlManager) Failsafe() types.Response {
	if err := m.failsafe("requested"); err != nil {
		return types.Fail("failsafe refused: %v", err)
	}
	return types.Ok("failsafe")
}

func (m *ControlManager) Disarm() types.Response {
	fs, ok := m.flightStatus()
	if ok && !fs.Armed {
		return types.Ok("already disarmed")
	}
	m.updateLatches(func(l *latches) { l.disarmTriggered = true })
	if err := m.disarm("requested"); err != nil {
		return types.Fail("disarm failed: %v", err)
	}
	return types.Ok("disarmed")
}

// Motors switches the motors on or off. Switching them on starts a new
// flight: every safety latch and the escalation episode are cleared.
func (m *ControlManager) Motors(on bool) types.Response {
	if !on {
		m.motorsOff("requested")
		return types.Ok("motors off")
	}
	if m.latchSnapshot().motorsOn {
		return types.Ok("motors are already on")
	}

	m.safetyMu.Lock()
	m.tiltErrSince = time.Time{}
	m.updateLatches(func(l *latches) { *l = latches{motorsOn: true} })
	m.safetyMu.Unlock()

	m.resetEscalation()

	m.logger.Infof("Motors on")
	m.record(types.EventMotors, "motors on")
	return types.Ok("motors on")
}

// === Toggles ===

func (m *ControlManager) SetSafetyArea(enabled bool) types.Response {
	m.toggles.SetSafetyArea(enabled)
	return types.Ok("safety area %s", onOff(enabled))
}

func (m *ControlManager) SetBumper(enabled bool) types.Response {
	m.toggles.SetBumper(enabled)
	return types.Ok("bumper %s", onOff(enabled))
}

func (m *ControlManager) SetBumperRepulsion(enabled bool) types.Response {
	m.toggles.SetBumperRepulsion(enabled)
	return types.Ok("bumper repulsion %s", onOff(enabled))
}

var errNoSafetyArea = errors.New("no safety area configured")

// SetMinHeight moves the floor of the safety area.
func (m *ControlManager) SetMinHeight(h float64) types.Response {
	if m.deps.SafetyArea == nil {
		return types.Fail("%v", errNoSafetyArea)
	}
	if err := m.deps.SafetyArea.SetMinHeight(h); err != nil {
		return types.Fail("failed to set min height: %v", err)
	}
	return types.Ok("min height set to %.2f", h)
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

// String renders a response for logs.
func describe(r types.Response) string {
	if r.Success {
		return r.Message
	}
	return fmt.Sprintf("failed: %s", r.Message)
}
