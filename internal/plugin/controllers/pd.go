package controllers

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

// PD is a position/velocity PD controller with an integral mass estimator.
// After activation from a low-thrust seed it ramps the thrust up over
// ramp_time.
type PD struct {
	mu        sync.Mutex
	uav       UAV
	active    bool
	callbacks bool

	kpXY, kdXY  float64
	kpZ, kdZ    float64
	kiMass      float64
	maxMassDiff float64
	rampTime    float64
	rateMode    bool
	kpRate      float64
	maxDt       float64
	tilt        float64

	massDiff   float64
	seedThrust float64
	ramping    bool
	rampStart  time.Time
	lastStamp  time.Time
}

// NewPD creates a PD controller. Recognised params: kp_xy, kd_xy, kp_z,
// kd_z, ki_mass, max_mass_difference (kg), ramp_time (s), rate_mode (>0 for
// rate output), kp_rate, max_dt (s).
func NewPD(params map[string]float64, uav UAV, c types.Constraints) *PD {
	return &PD{
		uav:         uav,
		callbacks:   true,
		kpXY:        param(params, "kp_xy", 3),
		kdXY:        param(params, "kd_xy", 2),
		kpZ:         param(params, "kp_z", 8),
		kdZ:         param(params, "kd_z", 4),
		kiMass:      param(params, "ki_mass", 0.5),
		maxMassDiff: param(params, "max_mass_difference", 0.5*uav.Mass),
		rampTime:    param(params, "ramp_time", 1.0),
		rateMode:    param(params, "rate_mode", 0) > 0,
		kpRate:      param(params, "kp_rate", 5),
		maxDt:       param(params, "max_dt", 0.1),
		tilt:        c.Tilt,
	}
}

// Activate seeds the mass estimate and the ramp from the previous command.
func (p *PD) Activate(seed *types.AttitudeCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.massDiff = 0
	p.seedThrust = 0
	if seed != nil && seed.Mass > 0 {
		p.massDiff = clamp(seed.Mass-p.uav.Mass, -p.maxMassDiff, p.maxMassDiff)
		p.seedThrust = seed.Thrust
	}
	hover := p.uav.Thrust.HoverThrust(p.uav.Mass + p.massDiff)
	p.ramping = p.rampTime > 0 && p.seedThrust < 0.9*hover
	p.rampStart = time.Time{}
	p.lastStamp = time.Time{}
	p.active = true
	return nil
}

func (p *PD) Deactivate() {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
}

func (p *PD) EnableCallbacks(enabled bool) {
	p.mu.Lock()
	p.callbacks = enabled
	p.mu.Unlock()
}

func (p *PD) Status() types.PluginStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.PluginStatus{Active: p.active, CallbacksEnabled: p.callbacks}
}

func (p *PD) SetConstraints(c types.Constraints) error {
	if !c.Valid() {
		return ErrInvalidConstraints
	}
	p.mu.Lock()
	p.tilt = c.Tilt
	p.mu.Unlock()
	return nil
}

func (p *PD) SwitchOdometrySource(types.VehicleState) {
	p.mu.Lock()
	p.lastStamp = time.Time{}
	p.mu.Unlock()
}

func (p *PD) Update(s types.VehicleState, cmd *types.PositionCommand) (*types.AttitudeCommand, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || cmd == nil {
		return nil, nil
	}

	dt := 0.0
	if !p.lastStamp.IsZero() && s.Stamp.After(p.lastStamp) {
		dt = math.Min(s.Stamp.Sub(p.lastStamp).Seconds(), p.maxDt)
	}
	p.lastStamp = s.Stamp

	var ep, ev r3.Vec
	if cmd.UsePositionHorizontal {
		ep.X, ep.Y = cmd.Position.X-s.Position.X, cmd.Position.Y-s.Position.Y
	}
	if cmd.UsePositionVertical {
		ep.Z = cmd.Position.Z - s.Position.Z
	}
	if cmd.UseVelocityHorizontal {
		ev.X, ev.Y = cmd.Velocity.X-s.Velocity.X, cmd.Velocity.Y-s.Velocity.Y
	}
	if cmd.UseVelocityVertical {
		ev.Z = cmd.Velocity.Z - s.Velocity.Z
	}

	a := r3.Vec{
		X: p.kpXY*ep.X + p.kdXY*ev.X,
		Y: p.kpXY*ep.Y + p.kdXY*ev.Y,
		Z: p.kpZ*ep.Z + p.kdZ*ev.Z,
	}
	if cmd.UseAcceleration {
		a = r3.Add(a, cmd.Acceleration)
	}

	if !p.ramping {
		p.massDiff = clamp(p.massDiff+p.kiMass*ep.Z*dt, -p.maxMassDiff, p.maxMassDiff)
	}
	mass := p.uav.Mass + p.massDiff

	f := r3.Scale(mass, r3.Add(a, r3.Vec{Z: types.Gravity}))
	if f.Z <= 0 {
		f = r3.Vec{Z: 1e-3}
	}
	if p.tilt > 0 {
		h := math.Hypot(f.X, f.Y)
		if maxH := f.Z * math.Tan(p.tilt); h > maxH {
			f.X *= maxH / h
			f.Y *= maxH / h
		}
	}

	heading := s.Heading()
	if cmd.UseHeading {
		heading = cmd.Heading
	}
	att := alignUp(f, heading)
	thrust := p.uav.Thrust.ForceToThrust(r3.Norm(f))

	if p.ramping {
		if p.rampStart.IsZero() {
			p.rampStart = s.Stamp
		}
		frac := s.Stamp.Sub(p.rampStart).Seconds() / p.rampTime
		if frac >= 1 {
			p.ramping = false
		} else {
			thrust = p.seedThrust + (thrust-p.seedThrust)*frac
		}
	}

	out := &types.AttitudeCommand{
		Stamp:            s.Stamp,
		Mode:             types.ModeAttitude,
		Attitude:         att,
		Thrust:           thrust,
		Mass:             mass,
		MassDifference:   p.massDiff,
		DisturbanceWorld: r3.Vec{Z: -p.massDiff * types.Gravity},
		RampingUp:        p.ramping,
	}
	if p.rateMode {
		out.Mode = types.ModeRate
		out.AttitudeRate = rateTowards(s.Orientation, att, p.kpRate)
	}
	return out, nil
}
