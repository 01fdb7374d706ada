package trackers

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

type mode int

const (
	modeHold mode = iota
	modeVelocity
	modeTrajectory
)

// Point moves a setpoint towards a goal at the constrained speed. It also
// follows velocity references and samples loaded trajectories.
type Point struct {
	mu          sync.Mutex
	active      bool
	callbacks   bool
	constraints types.Constraints

	maxDt        float64
	trajectoryDt time.Duration

	initialized bool
	setpoint    r3.Vec
	velocity    r3.Vec
	heading     float64
	last        types.VehicleState
	lastStamp   time.Time

	mode     mode
	goal     types.Reference
	haveGoal bool
	velRef   types.VelocityReference

	traj        types.Trajectory
	haveTraj    bool
	tracking    bool
	trajIdx     int
	trajElapsed time.Duration

	// landing is only ever set through Landoff.
	landing   bool
	landSpeed float64
}

// NewPoint creates a point tracker. Recognised params: max_dt (s),
// trajectory_dt (s, used when a trajectory carries no sampling period).
func NewPoint(params map[string]float64, c types.Constraints) *Point {
	return &Point{
		callbacks:    true,
		constraints:  c,
		maxDt:        param(params, "max_dt", 0.1),
		trajectoryDt: time.Duration(param(params, "trajectory_dt", 0.2) * float64(time.Second)),
	}
}

func (p *Point) Activate(*types.AttitudeCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = true
	p.initialized = false
	p.haveGoal = false
	p.mode = modeHold
	p.tracking = false
	p.landing = false
	return nil
}

func (p *Point) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = false
	p.tracking = false
	p.landing = false
}

func (p *Point) EnableCallbacks(enabled bool) {
	p.mu.Lock()
	p.callbacks = enabled
	p.mu.Unlock()
}

func (p *Point) Status() types.PluginStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := types.PluginStatus{
		Active:           p.active,
		CallbacksEnabled: p.callbacks,
		HaveGoal:         p.haveGoal,
		Tracking:         p.tracking,
		TrajectoryIndex:  p.trajIdx,
	}
	if p.haveTraj {
		st.TrajectoryLength = len(p.traj.Points)
	}
	if p.landing {
		st.Message = "landing"
	}
	return st
}

func (p *Point) SetConstraints(c types.Constraints) error {
	if !c.Valid() {
		return ErrInvalidConstraints
	}
	p.mu.Lock()
	p.constraints = c
	p.mu.Unlock()
	return nil
}

// SwitchOdometrySource shifts everything the tracker holds by the jump
// between the old and the new estimate, so the vehicle does not move.
func (p *Point) SwitchOdometrySource(s types.VehicleState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		p.last = s
		return
	}
	delta := r3.Sub(s.Position, p.last.Position)
	dh := types.AngleDiff(s.Heading(), p.last.Heading())

	p.setpoint = r3.Add(p.setpoint, delta)
	p.heading = types.WrapAngle(p.heading + dh)
	p.goal.Position = r3.Add(p.goal.Position, delta)
	p.goal.Heading = types.WrapAngle(p.goal.Heading + dh)
	for i := range p.traj.Points {
		p.traj.Points[i].Position = r3.Add(p.traj.Points[i].Position, delta)
		p.traj.Points[i].Heading = types.WrapAngle(p.traj.Points[i].Heading + dh)
	}
	p.last = s
}

func (p *Point) Update(s types.VehicleState, _ *types.AttitudeCommand) (*types.PositionCommand, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dt := p.advance(s)
	if !p.active {
		return nil, nil
	}

	switch {
	case p.landing:
		p.stepLanding(dt)
	case p.mode == modeVelocity:
		p.stepVelocity(dt)
	case p.mode == modeTrajectory:
		p.stepTrajectory(dt)
		p.stepGoal(dt)
	case p.haveGoal:
		p.stepGoal(dt)
	default:
		p.velocity = r3.Vec{}
	}

	return p.command(s.Stamp), nil
}

// advance records the new state and returns the bounded time step.
func (p *Point) advance(s types.VehicleState) float64 {
	dt := 0.0
	if !p.lastStamp.IsZero() && s.Stamp.After(p.lastStamp) {
		dt = math.Min(s.Stamp.Sub(p.lastStamp).Seconds(), p.maxDt)
	}
	p.lastStamp = s.Stamp
	p.last = s

	if p.active && !p.initialized {
		p.setpoint = s.Position
		p.heading = s.Heading()
		p.velocity = r3.Vec{}
		p.initialized = true
		return 0
	}
	return dt
}

func (p *Point) stepGoal(dt float64) {
	d := r3.Sub(p.goal.Position, p.setpoint)

	h := types.Horizontal(d)
	hn := r3.Norm(h)
	hs := p.constraints.Horizontal.Speed * dt
	if hn > hs && hn > 0 {
		h = r3.Scale(hs/hn, h)
	}
	vs := p.constraints.VerticalFor(d.Z).Speed * dt
	step := r3.Vec{X: h.X, Y: h.Y, Z: clamp(d.Z, -vs, vs)}

	p.setpoint = r3.Add(p.setpoint, step)
	if dt > 0 {
		p.velocity = r3.Scale(1/dt, step)
	} else {
		p.velocity = r3.Vec{}
	}
	p.stepHeading(p.goal.Heading, dt)
}

func (p *Point) stepHeading(target, dt float64) {
	hs := p.constraints.Heading.Speed * dt
	dh := clamp(types.AngleDiff(target, p.heading), -hs, hs)
	p.heading = types.WrapAngle(p.heading + dh)
}

func (p *Point) stepVelocity(dt float64) {
	v := p.velRef.Velocity

	h := types.Horizontal(v)
	if n := r3.Norm(h); n > p.constraints.Horizontal.Speed && n > 0 {
		h = r3.Scale(p.constraints.Horizontal.Speed/n, h)
	}
	v.X, v.Y = h.X, h.Y

	if p.velRef.UseAltitude {
		vs := p.constraints.VerticalFor(p.velRef.Altitude - p.setpoint.Z).Speed
		if dt > 0 {
			v.Z = clamp((p.velRef.Altitude-p.setpoint.Z)/dt, -vs, vs)
		} else {
			v.Z = 0
		}
	} else {
		vs := p.constraints.VerticalFor(v.Z).Speed
		v.Z = clamp(v.Z, -vs, vs)
	}

	p.setpoint = r3.Add(p.setpoint, r3.Scale(dt, v))
	p.velocity = v

	switch {
	case p.velRef.UseHeading:
		p.stepHeading(p.velRef.Heading, dt)
	case p.velRef.UseHeadingRate:
		rate := clamp(p.velRef.HeadingRate, -p.constraints.Heading.Speed, p.constraints.Heading.Speed)
		p.heading = types.WrapAngle(p.heading + rate*dt)
	}
}

func (p *Point) sampleDt() time.Duration {
	if p.traj.Dt > 0 {
		return p.traj.Dt
	}
	return p.trajectoryDt
}

func (p *Point) stepTrajectory(dt float64) {
	if p.tracking {
		p.trajElapsed += time.Duration(dt * float64(time.Second))
		idx := int(p.trajElapsed / p.sampleDt())
		if idx >= len(p.traj.Points)-1 {
			idx = len(p.traj.Points) - 1
			p.tracking = false
		}
		p.trajIdx = idx
	}

	p.goal = p.traj.Points[p.trajIdx]
	if !p.traj.UseHeading {
		p.goal.Heading = p.heading
	}
	p.haveGoal = true
}

func (p *Point) stepLanding(dt float64) {
	p.setpoint.Z -= p.landSpeed * dt
	p.velocity = r3.Vec{Z: -p.landSpeed}
}

func (p *Point) command(stamp time.Time) *types.PositionCommand {
	return &types.PositionCommand{
		Stamp:                 stamp,
		Position:              p.setpoint,
		Velocity:              p.velocity,
		Heading:               p.heading,
		UsePositionHorizontal: true,
		UsePositionVertical:   true,
		UseVelocityHorizontal: true,
		UseVelocityVertical:   true,
		UseHeading:            true,
	}
}

// accepting checks that an external reference may be taken. Callers hold mu.
func (p *Point) accepting() error {
	switch {
	case !p.active:
		return ErrNotActive
	case !p.callbacks:
		return ErrCallbacksDisabled
	case p.landing:
		return ErrLanding
	}
	return nil
}

func (p *Point) SetReference(ref types.Reference) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.accepting(); err != nil {
		return err
	}
	p.goal = ref
	p.haveGoal = true
	p.mode = modeHold
	p.tracking = false
	return nil
}

func (p *Point) SetVelocityReference(ref types.VelocityReference) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.accepting(); err != nil {
		return err
	}
	p.velRef = ref
	p.mode = modeVelocity
	p.tracking = false
	return nil
}

// SetTrajectory loads a trajectory. Inactive trackers keep it for later;
// only the active tracker starts flying when FlyNow is set.
func (p *Point) SetTrajectory(t types.Trajectory) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.callbacks {
		return ErrCallbacksDisabled
	}
	if p.landing {
		return ErrLanding
	}
	if len(t.Points) == 0 {
		return ErrNoTrajectory
	}
	p.traj = t.Clone()
	p.haveTraj = true
	p.trajIdx = 0
	p.trajElapsed = 0
	p.tracking = false

	if t.FlyNow && p.active {
		p.mode = modeTrajectory
		p.tracking = true
	}
	return nil
}

// Hover stops wherever the setpoint currently is.
func (p *Point) Hover() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return ErrNotActive
	}
	p.landing = false
	p.goal = types.Reference{Position: p.setpoint, Heading: p.heading}
	p.haveGoal = p.initialized
	p.mode = modeHold
	p.tracking = false
	p.velocity = r3.Vec{}
	return nil
}

// ResetStatic snaps the setpoint to the current vehicle position.
func (p *Point) ResetStatic() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return ErrNotActive
	}
	p.setpoint = p.last.Position
	p.heading = p.last.Heading()
	p.goal = types.Reference{Position: p.setpoint, Heading: p.heading}
	p.haveGoal = true
	p.initialized = true
	p.mode = modeHold
	p.tracking = false
	p.velocity = r3.Vec{}
	return nil
}

func (p *Point) StartTrajectoryTracking() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.accepting(); err != nil {
		return err
	}
	if !p.haveTraj {
		return ErrNoTrajectory
	}
	p.mode = modeTrajectory
	p.tracking = true
	p.trajIdx = 0
	p.trajElapsed = 0
	return nil
}

func (p *Point) StopTrajectoryTracking() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return ErrNotActive
	}
	if p.mode != modeTrajectory {
		return ErrNotTracking
	}
	p.tracking = false
	p.goal = types.Reference{Position: p.setpoint, Heading: p.heading}
	p.haveGoal = true
	p.mode = modeHold
	return nil
}

func (p *Point) ResumeTrajectoryTracking() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.accepting(); err != nil {
		return err
	}
	if !p.haveTraj {
		return ErrNoTrajectory
	}
	if p.trajIdx >= len(p.traj.Points)-1 {
		return ErrTrajectoryFinished
	}
	p.mode = modeTrajectory
	p.tracking = true
	p.trajElapsed = time.Duration(p.trajIdx) * p.sampleDt()
	return nil
}

func (p *Point) GotoTrajectoryStart() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.accepting(); err != nil {
		return err
	}
	if !p.haveTraj {
		return ErrNoTrajectory
	}
	p.goal = p.traj.Points[0]
	if !p.traj.UseHeading {
		p.goal.Heading = p.heading
	}
	p.haveGoal = true
	p.mode = modeHold
	p.tracking = false
	p.trajIdx = 0
	p.trajElapsed = 0
	return nil
}
