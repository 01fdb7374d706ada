package fsm

import "github.com/librescoot/librefsm"

// LandingActions is implemented by the control manager to react to the
// landing FSM. Callbacks run with the machine locked and must not query it.
type LandingActions interface {
	EnterLanding(c *librefsm.Context) error
	ExitLanding(c *librefsm.Context) error
	OnTouchdown(c *librefsm.Context) error
}

// EscalationActions is implemented by the control manager to react to the
// escalating failsafe FSM.
type EscalationActions interface {
	EnterEscalationStage(c *librefsm.Context) error
	OnEscalationReset(c *librefsm.Context) error
}
