package controllers

import (
	"math"
	"sync"
	"time"

	"uav-control-manager/internal/types"
)

// Failsafe ignores the position command. It holds a level attitude at the
// heading it found on activation and feeds forward slightly less than hover
// thrust, so the vehicle sinks without any position feedback. Once vertical
// motion has stopped for ground_time the thrust decays to zero, which the
// reported mass follows.
type Failsafe struct {
	mu        sync.Mutex
	uav       UAV
	active    bool
	callbacks bool

	descentFactor float64
	rampTime      float64
	groundSpeed   float64
	groundTime    float64
	cutoffRate    float64

	startThrust  float64
	targetThrust float64
	heading      float64
	started      time.Time
	groundSince  time.Time
}

// NewFailsafe creates a failsafe controller. Recognised params:
// descent_factor (fraction of hover thrust), ramp_time (s), ground_speed
// (m/s), ground_time (s), cutoff_rate (1/s).
func NewFailsafe(params map[string]float64, uav UAV) *Failsafe {
	return &Failsafe{
		uav:           uav,
		callbacks:     true,
		descentFactor: param(params, "descent_factor", 0.95),
		rampTime:      param(params, "ramp_time", 1.0),
		groundSpeed:   param(params, "ground_speed", 0.1),
		groundTime:    param(params, "ground_time", 1.0),
		cutoffRate:    param(params, "cutoff_rate", 0.5),
	}
}

func (f *Failsafe) Activate(seed *types.AttitudeCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	mass := f.uav.Mass
	if seed != nil && seed.Mass > 0 {
		mass = seed.Mass
	}
	hover := f.uav.Thrust.HoverThrust(mass)
	f.startThrust = hover
	if seed != nil && seed.Thrust > 0 {
		f.startThrust = seed.Thrust
	}
	f.targetThrust = hover * f.descentFactor
	f.started = time.Time{}
	f.groundSince = time.Time{}
	f.active = true
	return nil
}

func (f *Failsafe) Deactivate() {
	f.mu.Lock()
	f.active = false
	f.mu.Unlock()
}

func (f *Failsafe) EnableCallbacks(enabled bool) {
	f.mu.Lock()
	f.callbacks = enabled
	f.mu.Unlock()
}

func (f *Failsafe) Status() types.PluginStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.PluginStatus{Active: f.active, CallbacksEnabled: f.callbacks}
}

func (f *Failsafe) SetConstraints(c types.Constraints) error {
	if !c.Valid() {
		return ErrInvalidConstraints
	}
	return nil
}

func (f *Failsafe) SwitchOdometrySource(types.VehicleState) {}

func (f *Failsafe) Update(s types.VehicleState, _ *types.PositionCommand) (*types.AttitudeCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.active {
		return nil, nil
	}
	if f.started.IsZero() {
		f.started = s.Stamp
		f.heading = s.Heading()
	}
	elapsed := s.Stamp.Sub(f.started).Seconds()

	thrust := f.targetThrust
	if f.rampTime > 0 && elapsed < f.rampTime {
		thrust = f.startThrust + (f.targetThrust-f.startThrust)*elapsed/f.rampTime
	}

	if elapsed >= f.rampTime && math.Abs(s.Velocity.Z) < f.groundSpeed {
		if f.groundSince.IsZero() {
			f.groundSince = s.Stamp
		}
		if grounded := s.Stamp.Sub(f.groundSince).Seconds() - f.groundTime; grounded > 0 {
			thrust *= math.Max(0, 1-f.cutoffRate*grounded)
		}
	} else {
		f.groundSince = time.Time{}
	}

	return &types.AttitudeCommand{
		Stamp:    s.Stamp,
		Mode:     types.ModeAttitude,
		Attitude: types.FromHeading(f.heading),
		Thrust:   thrust,
		Mass:     f.uav.Thrust.ThrustToMass(thrust),
	}, nil
}
