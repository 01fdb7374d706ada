package core

import (
	"context"
	"errors"

	"github.com/librescoot/librefsm"

	"uav-control-manager/internal/fsm"
	"uav-control-manager/internal/types"
)

// Ensure ControlManager implements the FSM actions
var (
	_ fsm.LandingActions    = (*ControlManager)(nil)
	_ fsm.EscalationActions = (*ControlManager)(nil)
)

var errFSMNotStarted = errors.New("state machines are not started")

// initFSM builds and starts the landing and escalation machines. Their
// states are mirrored into plain fields so readers never query a machine
// from inside one of its callbacks.
func (m *ControlManager) initFSM(ctx context.Context) error {
	landing, err := fsm.NewLandingDefinition(m).Build()
	if err != nil {
		return err
	}
	escalation, err := fsm.NewEscalationDefinition(m).Build()
	if err != nil {
		return err
	}

	landing.OnStateChange(func(from, to librefsm.StateID) {
		m.setLandingState(fsm.LandingStateOf(to))
		m.logger.Infof("Landing transition: %s -> %s", from, to)
	})
	escalation.OnStateChange(func(from, to librefsm.StateID) {
		m.setEscalationState(fsm.EscalationStateOf(to))
		m.logger.Infof("Escalation transition: %s -> %s", from, to)
	})

	if err := landing.Start(ctx); err != nil {
		return err
	}
	if err := escalation.Start(ctx); err != nil {
		return err
	}
	m.landingFSM = landing
	m.escalationFSM = escalation

	m.logger.Infof("librefsm state machines started")
	return nil
}

func (m *ControlManager) sendLandingEvent(event librefsm.EventID) error {
	if m.landingFSM == nil {
		return errFSMNotStarted
	}
	return m.landingFSM.SendSync(librefsm.Event{ID: event})
}

func (m *ControlManager) sendEscalationEvent(event librefsm.EventID) error {
	if m.escalationFSM == nil {
		return errFSMNotStarted
	}
	return m.escalationFSM.SendSync(librefsm.Event{ID: event})
}

func (m *ControlManager) setLandingState(s types.LandingState) {
	m.landMu.Lock()
	m.landingState = s
	m.landMu.Unlock()
}

func (m *ControlManager) setEscalationState(s types.EscalationState) {
	m.escMu.Lock()
	m.escalationState = s
	m.escMu.Unlock()
}

// === Landing actions ===

func (m *ControlManager) EnterLanding(c *librefsm.Context) error {
	m.elandTask.Start()
	m.setIndicator(true)
	return nil
}

func (m *ControlManager) ExitLanding(c *librefsm.Context) error {
	m.elandTask.Stop()
	if !m.latchSnapshot().failsafeActive {
		m.setIndicator(false)
	}
	return nil
}

func (m *ControlManager) OnTouchdown(c *librefsm.Context) error {
	m.logger.Infof("Touchdown detected")
	return nil
}

// === Escalation actions ===

func (m *ControlManager) EnterEscalationStage(c *librefsm.Context) error {
	m.logger.Debugf("Entered escalation stage")
	return nil
}

func (m *ControlManager) OnEscalationReset(c *librefsm.Context) error {
	m.logger.Debugf("Escalation episode reset")
	return nil
}
