package core

import (
	"fmt"
	"time"

	"uav-control-manager/internal/config"
	"uav-control-manager/internal/fsm"
	"uav-control-manager/internal/plugin"
	"uav-control-manager/internal/types"
)

// eland hands the vehicle to the eland controller and tracker and starts the
// landing monitor.
func (m *ControlManager) eland(reason string) error {
	if m.landing() == types.LandingLanding {
		return errAlreadyLanding
	}
	l := m.latchSnapshot()
	if !l.motorsOn {
		return errMotorsOff
	}
	if l.failsafeActive {
		return errAlreadyFailsafe
	}

	m.logger.Warnf("Emergency landing: %s", reason)
	m.stopAuxiliary()

	mass := m.cfg.UAV.Mass
	if att := m.latestAttitude(); att != nil && att.Mass > 0 {
		mass = att.Mass
	}

	if r := m.switchController(m.controllers[m.elandController].Name, false); !r.Success {
		return fmt.Errorf("%s", r.Message)
	}
	if r := m.switchTracker(m.trackers[m.elandTracker].Name, false); !r.Success {
		return fmt.Errorf("%s", r.Message)
	}
	err := m.withActiveTracker(func(slot plugin.TrackerSlot) error {
		lander, ok := slot.Tracker.(plugin.Lander)
		if !ok {
			return errCannotLand
		}
		return lander.Land()
	})
	if err != nil {
		return fmt.Errorf("eland tracker refused to land: %w", err)
	}

	m.landMu.Lock()
	m.landStartMass = mass
	m.landBelow = time.Time{}
	m.landMu.Unlock()

	if err := m.sendLandingEvent(fsm.EvElandStart); err != nil {
		return fmt.Errorf("failed to start landing: %w", err)
	}
	m.setLandingState(types.LandingLanding)
	m.updateLatches(func(l *latches) { l.elandTriggered = true })

	m.record(types.EventEland, "emergency landing: %s", reason)
	return nil
}

// elandTick watches the mass estimate of the landing controller. The vehicle
// has touched down once the estimate stays below a fraction of the mass at
// the start of the landing for long enough.
func (m *ControlManager) elandTick() {
	if m.landing() != types.LandingLanding {
		return
	}
	att := m.latestAttitude()
	if att == nil {
		return
	}

	cfg := m.cfg.Safety.Eland
	now := m.now()

	m.landMu.Lock()
	below := att.Mass < cfg.CutoffMassFactor*m.landStartMass
	if !below {
		m.landBelow = time.Time{}
	} else if m.landBelow.IsZero() {
		m.landBelow = now
	}
	touchdown := below && now.Sub(m.landBelow) > config.Seconds(cfg.CutoffTimeout)
	m.landMu.Unlock()

	if !touchdown {
		return
	}

	if err := m.sendLandingEvent(fsm.EvTouchdown); err != nil {
		m.logger.Errorf("Failed to finish landing: %v", err)
		return
	}
	m.setLandingState(types.LandingIdle)
	m.record(types.EventTouchdown, "touchdown after emergency landing")

	if cfg.Disarm {
		m.disarm("landed")
		return
	}
	m.motorsOff("landed")
}

// ehover hands the vehicle to the ehover controller and tracker and stops it
// where it is.
func (m *ControlManager) ehover(reason string) error {
	l := m.latchSnapshot()
	if !l.motorsOn {
		return errMotorsOff
	}
	if l.failsafeActive {
		return errAlreadyFailsafe
	}
	if m.landing() == types.LandingLanding {
		return errAlreadyLanding
	}

	m.logger.Warnf("Emergency hover: %s", reason)
	m.stopAuxiliary()

	if r := m.switchController(m.controllers[m.ehoverController].Name, false); !r.Success {
		return fmt.Errorf("%s", r.Message)
	}
	if r := m.switchTracker(m.trackers[m.ehoverTracker].Name, false); !r.Success {
		return fmt.Errorf("%s", r.Message)
	}
	if err := m.withActiveTracker(func(slot plugin.TrackerSlot) error {
		return slot.Tracker.Hover()
	}); err != nil {
		return fmt.Errorf("ehover tracker refused to hover: %w", err)
	}

	m.record(types.EventEHover, "emergency hover: %s", reason)
	return nil
}
