package trackers

import (
	"sync"

	"uav-control-manager/internal/types"
)

// Null produces no command. It is active whenever the vehicle is not flying
// under manager control.
type Null struct {
	mu        sync.Mutex
	active    bool
	callbacks bool
}

func NewNull() *Null {
	return &Null{callbacks: true}
}

func (n *Null) Activate(*types.AttitudeCommand) error {
	n.mu.Lock()
	n.active = true
	n.mu.Unlock()
	return nil
}

func (n *Null) Deactivate() {
	n.mu.Lock()
	n.active = false
	n.mu.Unlock()
}

func (n *Null) Update(types.VehicleState, *types.AttitudeCommand) (*types.PositionCommand, error) {
	return nil, nil
}

func (n *Null) EnableCallbacks(enabled bool) {
	n.mu.Lock()
	n.callbacks = enabled
	n.mu.Unlock()
}

func (n *Null) Status() types.PluginStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return types.PluginStatus{Active: n.active, CallbacksEnabled: n.callbacks}
}

func (n *Null) SetConstraints(types.Constraints) error { return nil }

func (n *Null) SwitchOdometrySource(types.VehicleState) {}

func (n *Null) SetReference(types.Reference) error { return ErrNotSupported }

func (n *Null) SetVelocityReference(types.VelocityReference) error { return ErrNotSupported }

func (n *Null) SetTrajectory(types.Trajectory) error { return ErrNotSupported }

func (n *Null) Hover() error { return ErrNotSupported }

func (n *Null) ResetStatic() error { return ErrNotSupported }

func (n *Null) StartTrajectoryTracking() error { return ErrNotSupported }

func (n *Null) StopTrajectoryTracking() error { return ErrNotSupported }

func (n *Null) ResumeTrajectoryTracking() error { return ErrNotSupported }

func (n *Null) GotoTrajectoryStart() error { return ErrNotSupported }
