package fsm

import (
	"github.com/librescoot/librefsm"

	"uav-control-manager/internal/types"
)

// NewLandingDefinition creates the emergency landing FSM definition.
func NewLandingDefinition(actions LandingActions) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateLandingIdle).
		State(StateLanding,
			librefsm.WithOnEnter(actions.EnterLanding),
			librefsm.WithOnExit(actions.ExitLanding),
		).

		// === Transitions ===
		Transition(StateLandingIdle, EvElandStart, StateLanding).
		Transition(StateLanding, EvTouchdown, StateLandingIdle,
			librefsm.WithAction(actions.OnTouchdown),
		).
		Transition(StateLanding, EvLandingAbort, StateLandingIdle).
		Initial(StateLandingIdle)
}

// escalationOrder lists the stages in the only order they may be entered.
var escalationOrder = []struct {
	state librefsm.StateID
	event librefsm.EventID
}{
	{StateEscalationEHover, EvEscalateEHover},
	{StateEscalationEland, EvEscalateEland},
	{StateEscalationFailsafe, EvEscalateFailsafe},
	{StateEscalationFinished, EvEscalateFinish},
}

// NewEscalationDefinition creates the escalating failsafe FSM definition.
// From every state there is a transition to each later stage, so skipping a
// disabled stage is a single step; there are none back except the reset.
func NewEscalationDefinition(actions EscalationActions) *librefsm.Definition {
	def := librefsm.NewDefinition().
		State(StateEscalationNone)
	for _, s := range escalationOrder {
		def = def.State(s.state, librefsm.WithOnEnter(actions.EnterEscalationStage))
	}

	from := []librefsm.StateID{StateEscalationNone}
	for _, s := range escalationOrder {
		for _, f := range from {
			def = def.Transition(f, s.event, s.state)
		}
		from = append(from, s.state)
	}

	for _, s := range escalationOrder {
		def = def.Transition(s.state, EvEscalationReset, StateEscalationNone,
			librefsm.WithAction(actions.OnEscalationReset),
		)
	}

	return def.Initial(StateEscalationNone)
}

// Stages says which escalation stages are enabled.
type Stages struct {
	EHover   bool
	Eland    bool
	Failsafe bool
}

// NextEscalation returns the stage that follows current, skipping disabled
// stages, and the event that enters it. Finished is absorbing.
func NextEscalation(current types.EscalationState, stages Stages) (types.EscalationState, librefsm.EventID) {
	candidates := []struct {
		state   types.EscalationState
		event   librefsm.EventID
		enabled bool
	}{
		{types.EscalationEHover, EvEscalateEHover, stages.EHover},
		{types.EscalationEland, EvEscalateEland, stages.Eland},
		{types.EscalationFailsafe, EvEscalateFailsafe, stages.Failsafe},
	}
	for _, c := range candidates {
		if c.enabled && c.state.Rank() > current.Rank() {
			return c.state, c.event
		}
	}
	return types.EscalationFinished, EvEscalateFinish
}

// LandingStateOf converts a machine state to the landing state.
func LandingStateOf(id librefsm.StateID) types.LandingState {
	if id == StateLanding {
		return types.LandingLanding
	}
	return types.LandingIdle
}

// EscalationStateOf converts a machine state to the escalation state.
func EscalationStateOf(id librefsm.StateID) types.EscalationState {
	switch id {
	case StateEscalationEHover:
		return types.EscalationEHover
	case StateEscalationEland:
		return types.EscalationEland
	case StateEscalationFailsafe:
		return types.EscalationFailsafe
	case StateEscalationFinished:
		return types.EscalationFinished
	default:
		return types.EscalationNone
	}
}
