package core

import (
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/bumper"
	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

// flyingNormally reports whether the active tracker is flying the vehicle
// outside of any emergency procedure.
func (m *ControlManager) flyingNormally() bool {
	l := m.latchSnapshot()
	return l.motorsOn && !l.failsafeActive &&
		m.landing() == types.LandingIdle &&
		m.active().tracker != m.nullTracker
}

// bumperTick pushes the vehicle away from obstacles closer than the
// repulsion distance. The push skips the bumper gate, it only has to stay
// inside the safety area. The vehicle hovers once it is clear.
func (m *ControlManager) bumperTick() {
	t := m.toggles.Snapshot()
	if !t.Bumper || !t.BumperRepulsion || m.deps.Bumper == nil || !m.flyingNormally() {
		m.setBumperEngaged(false)
		return
	}
	snap, ok := m.deps.Bumper.Latest()
	if !ok {
		return
	}
	state, ok := m.vehicleState()
	if !ok {
		return
	}

	rc := m.cfg.Bumper.Repulsion
	push, engaged := bumper.Repulsion(snap, state.Heading(), bumper.RepulsionParams{
		HorizontalDistance: rc.HorizontalDistance,
		VerticalDistance:   rc.VerticalDistance,
		HorizontalOffset:   rc.HorizontalOffset,
		VerticalOffset:     rc.VerticalOffset,
	})

	if !engaged {
		if m.setBumperEngaged(false) {
			m.logger.Infof("Bumper repulsion finished")
			if r := m.trackerCommand("hover", plugin.Tracker.Hover); !r.Success {
				m.logger.Warnf("Failed to hover after repulsion: %s", r.Message)
			}
		}
		return
	}

	ref, err := m.validator.ValidateGeofence(types.Reference{
		FrameID:  m.cfg.UAV.WorkingFrame,
		Position: r3.Add(state.Position, push),
		Heading:  state.Heading(),
	}, state.Position)
	if err != nil {
		m.logger.ThrottledWarnf(throttlePeriod, "Bumper repulsion refused: %v", err)
		return
	}
	if err := m.withActiveTracker(func(slot plugin.TrackerSlot) error {
		return slot.Tracker.SetReference(ref)
	}); err != nil {
		m.logger.ThrottledWarnf(throttlePeriod, "Tracker refused repulsion reference: %v", err)
		return
	}

	if !m.setBumperEngaged(true) {
		m.logger.Warnf("Bumper repulsion engaged, pushing by %.2f m", r3.Norm(push))
		m.stopAuxiliary()
	}
}

// setBumperEngaged stores v and returns the previous value.
func (m *ControlManager) setBumperEngaged(v bool) bool {
	m.auxMu.Lock()
	defer m.auxMu.Unlock()
	was := m.bumperEngaged
	m.bumperEngaged = v
	return was
}
