package types

// LandingState is the state of the emergency landing monitor.
type LandingState string

const (
	LandingIdle    LandingState = "idle"
	LandingLanding LandingState = "landing"
)

// EscalationState is the state of the escalating failsafe. It only ever
// moves forward within one episode.
type EscalationState string

const (
	EscalationNone     EscalationState = "none"
	EscalationEHover   EscalationState = "ehover"
	EscalationEland    EscalationState = "eland"
	EscalationFailsafe EscalationState = "failsafe"
	EscalationFinished EscalationState = "finished"
)

// Rank orders escalation states; a higher rank is a more severe stage.
func (s EscalationState) Rank() int {
	switch s {
	case EscalationEHover:
		return 1
	case EscalationEland:
		return 2
	case EscalationFailsafe:
		return 3
	case EscalationFinished:
		return 4
	default:
		return 0
	}
}

// CommandMode selects the wire representation of an attitude command.
type CommandMode string

const (
	ModeAttitude CommandMode = "attitude"
	ModeRate     CommandMode = "rate"
)
