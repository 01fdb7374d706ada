// Package plugin defines the tracker and controller contract and builds the
// closed set of built-in plugins from configuration.
package plugin

import (
	"errors"
	"fmt"

	"uav-control-manager/internal/types"
)

var (
	ErrUnknownKind = errors.New("unknown plugin kind")
	ErrPanic       = errors.New("plugin panicked")
)

// Plugin is the capability set shared by trackers and controllers.
type Plugin interface {
	Deactivate()
	EnableCallbacks(enabled bool)
	Status() types.PluginStatus
	SetConstraints(c types.Constraints) error
	SwitchOdometrySource(s types.VehicleState)
}

// Tracker turns references into a feasible position command every cycle.
// Update returning (nil, nil) means the tracker has nothing to command yet.
type Tracker interface {
	Plugin
	Activate(seed *types.AttitudeCommand) error
	Update(s types.VehicleState, last *types.AttitudeCommand) (*types.PositionCommand, error)

	SetReference(ref types.Reference) error
	SetVelocityReference(ref types.VelocityReference) error
	SetTrajectory(t types.Trajectory) error
	Hover() error
	ResetStatic() error
	StartTrajectoryTracking() error
	StopTrajectoryTracking() error
	ResumeTrajectoryTracking() error
	GotoTrajectoryStart() error
}

// Controller turns a position command into an attitude command.
type Controller interface {
	Plugin
	Activate(seed *types.AttitudeCommand) error
	Update(s types.VehicleState, cmd *types.PositionCommand) (*types.AttitudeCommand, error)
}

// Lander is implemented by trackers that can perform an emergency landing.
type Lander interface {
	Land() error
}

// UpdateTracker calls t.Update and turns a panic into an error wrapping
// ErrPanic.
func UpdateTracker(t Tracker, s types.VehicleState, last *types.AttitudeCommand) (cmd *types.PositionCommand, err error) {
	defer func() {
		if r := recover(); r != nil {
			cmd, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return t.Update(s, last)
}

// UpdateController calls c.Update and turns a panic into an error wrapping
// ErrPanic.
func UpdateController(c Controller, s types.VehicleState, pc *types.PositionCommand) (cmd *types.AttitudeCommand, err error) {
	defer func() {
		if r := recover(); r != nil {
			cmd, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return c.Update(s, pc)
}
