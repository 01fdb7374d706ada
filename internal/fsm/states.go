package fsm

import "github.com/librescoot/librefsm"

// Landing states
const (
	StateLandingIdle librefsm.StateID = "idle"
	StateLanding     librefsm.StateID = "landing"
)

// Escalating failsafe states
const (
	StateEscalationNone     librefsm.StateID = "none"
	StateEscalationEHover   librefsm.StateID = "ehover"
	StateEscalationEland    librefsm.StateID = "eland"
	StateEscalationFailsafe librefsm.StateID = "failsafe"
	StateEscalationFinished librefsm.StateID = "finished"
)

// Landing events
const (
	EvElandStart   librefsm.EventID = "eland-start"
	EvTouchdown    librefsm.EventID = "touchdown"
	EvLandingAbort librefsm.EventID = "landing-abort"
)

// Escalation events. Each names its target so the machine itself refuses
// any step backwards.
const (
	EvEscalateEHover   librefsm.EventID = "escalate-ehover"
	EvEscalateEland    librefsm.EventID = "escalate-eland"
	EvEscalateFailsafe librefsm.EventID = "escalate-failsafe"
	EvEscalateFinish   librefsm.EventID = "escalate-finish"
	EvEscalationReset  librefsm.EventID = "escalation-reset"
)
