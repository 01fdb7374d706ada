package types

import "time"

// EventKind classifies journal entries.
type EventKind string

const (
	EventTrackerSwitch    EventKind = "tracker-switch"
	EventControllerSwitch EventKind = "controller-switch"
	EventEHover           EventKind = "ehover"
	EventEland            EventKind = "eland"
	EventFailsafe         EventKind = "failsafe"
	EventEscalation       EventKind = "escalation"
	EventTouchdown        EventKind = "touchdown"
	EventMotors           EventKind = "motors"
	EventDisarm           EventKind = "disarm"
	EventPayload          EventKind = "payload"
	EventOdometry         EventKind = "odometry"
)

// Event is one entry of the flight journal.
type Event struct {
	Stamp      time.Time `json:"stamp"`
	Kind       EventKind `json:"kind"`
	Message    string    `json:"message"`
	Tracker    string    `json:"tracker"`
	Controller string    `json:"controller"`
}
