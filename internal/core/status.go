package core

import (
	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

// Status assembles the supervisory snapshot.
func (m *ControlManager) Status() types.Status {
	now := m.now()
	act := m.active()
	l := m.latchSnapshot()
	snap := m.stateSnapshot()
	fs, _ := m.flightStatus()
	t := m.toggles.Snapshot()
	_, sanitized := m.Constraints()

	st := types.Status{
		Stamp:             now,
		UAV:               m.cfg.UAV.Name,
		ActiveTracker:     m.trackers[act.tracker].Name,
		ActiveController:  m.controllers[act.controller].Name,
		Landing:           m.landing(),
		Escalation:        m.escalation(),
		MotorsOn:          l.motorsOn,
		Armed:             fs.Armed,
		Offboard:          fs.Offboard,
		HaveState:         snap.ok,
		LastSwitchAt:      act.lastSwitch,
		ElandTriggered:    l.elandTriggered,
		FailsafeTriggered: l.failsafeTriggered,
		DisarmTriggered:   l.disarmTriggered,
		FailsafeActive:    l.failsafeActive,
		SafetyArea:        t.SafetyArea,
		Bumper:            t.Bumper,
		BumperRepulsion:   t.BumperRepulsion,
		Callbacks:         t.Callbacks,
		MinHeight:         m.cfg.SafetyArea.MinHeight,
		Constraints:       sanitized,
	}
	if snap.ok {
		st.StateAge = now.Sub(snap.arrival)
	}
	if m.deps.SafetyArea != nil {
		st.MinHeight = m.deps.SafetyArea.MinHeight()
	}
	for _, s := range m.trackers {
		st.Trackers = append(st.Trackers, s.Name)
	}
	for _, s := range m.controllers {
		st.Controllers = append(st.Controllers, s.Name)
	}
	_ = m.withActiveTracker(func(slot plugin.TrackerSlot) error {
		st.TrackerStatus = slot.Tracker.Status()
		return nil
	})

	m.auxMu.Lock()
	st.BumperEngaged = m.bumperEngaged
	st.PirouetteActive = m.pirouette.active
	st.RCGotoActive = m.rcGotoActive
	m.auxMu.Unlock()

	return st
}

// AddStatusPublisher registers a publisher for a surface that needs the
// manager itself to be built. Call it before Start.
func (m *ControlManager) AddStatusPublisher(p StatusPublisher) {
	m.deps.Status = append(m.deps.Status, p)
}

func (m *ControlManager) statusTick() {
	if len(m.deps.Status) == 0 {
		return
	}
	st := m.Status()
	for _, p := range m.deps.Status {
		if err := p.PublishStatus(st); err != nil {
			m.logger.ThrottledWarnf(throttlePeriod, "Failed to publish status: %v", err)
		}
	}
}
