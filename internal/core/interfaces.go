package core

import (
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

// FlightStack is the outbound link to the autopilot.
type FlightStack interface {
	Publish(cmd types.OutputCommand) error
	Disarm() error
}

// Transformer resolves frames and follows the vehicle pose.
type Transformer interface {
	TransformReference(ref types.Reference, target string) (types.Reference, error)
	TransformVector(v r3.Vec, from, target string) (r3.Vec, error)
	UpdateVehicle(s types.VehicleState)
	WorkingFrame() string
}

// SafetyArea is the geofence engine.
type SafetyArea interface {
	IsPointValid2d(p r3.Vec) bool
	IsPointValid3d(p r3.Vec) bool
	IsPathValid2d(from, to r3.Vec) bool
	IsPathValid3d(from, to r3.Vec) bool
	MinHeight() float64
	SetMinHeight(h float64) error
}

// BumperSource yields the latest fresh bumper snapshot.
type BumperSource interface {
	Latest() (types.BumperSnapshot, bool)
}

// Gripper releases a carried payload.
type Gripper interface {
	ReleasePayload() error
}

// Indicator shows whether an emergency procedure is running.
type Indicator interface {
	SetEmergency(on bool) error
}

// Journal records flight events. Record must not block.
type Journal interface {
	Record(ev types.Event)
}

// StatusPublisher receives the periodic status snapshot.
type StatusPublisher interface {
	PublishStatus(st types.Status) error
}

// Dependencies are the collaborators of the control manager. Only
// FlightStack and Transformer are required.
type Dependencies struct {
	FlightStack FlightStack
	Transformer Transformer
	SafetyArea  SafetyArea
	Bumper      BumperSource
	Gripper     Gripper
	Indicator   Indicator
	Journal     Journal
	Status      []StatusPublisher
}
