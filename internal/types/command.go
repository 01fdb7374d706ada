package types

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const Gravity = 9.80665

// PositionCommand is the output of a tracker.
type PositionCommand struct {
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id"`

	Position     r3.Vec `json:"position"`
	Velocity     r3.Vec `json:"velocity"`
	Acceleration r3.Vec `json:"acceleration"`
	Jerk         r3.Vec `json:"jerk"`
	Snap         r3.Vec `json:"snap"`

	Heading             float64 `json:"heading"`
	HeadingRate         float64 `json:"heading_rate"`
	HeadingAcceleration float64 `json:"heading_acceleration"`
	Thrust              float64 `json:"thrust"`

	UsePositionHorizontal bool `json:"use_position_horizontal"`
	UsePositionVertical   bool `json:"use_position_vertical"`
	UseVelocityHorizontal bool `json:"use_velocity_horizontal"`
	UseVelocityVertical   bool `json:"use_velocity_vertical"`
	UseAcceleration       bool `json:"use_acceleration"`
	UseJerk               bool `json:"use_jerk"`
	UseSnap               bool `json:"use_snap"`
	UseHeading            bool `json:"use_heading"`
	UseHeadingRate        bool `json:"use_heading_rate"`
	UseThrust             bool `json:"use_thrust"`
}

func (c *PositionCommand) IsFinite() bool {
	return VecFinite(c.Position) && VecFinite(c.Velocity) &&
		VecFinite(c.Acceleration) && VecFinite(c.Jerk) && VecFinite(c.Snap) &&
		IsFinite(c.Heading, c.HeadingRate, c.HeadingAcceleration, c.Thrust)
}

// ControlError is the Euclidean tracking error over the axes the command
// declares meaningful. Position axes take precedence over velocity axes.
func (c *PositionCommand) ControlError(s VehicleState) float64 {
	var e r3.Vec
	switch {
	case c.UsePositionHorizontal || c.UsePositionVertical:
		d := r3.Sub(c.Position, s.Position)
		if c.UsePositionHorizontal {
			e.X, e.Y = d.X, d.Y
		}
		if c.UsePositionVertical {
			e.Z = d.Z
		}
	case c.UseVelocityHorizontal || c.UseVelocityVertical:
		d := r3.Sub(c.Velocity, s.Velocity)
		if c.UseVelocityHorizontal {
			e.X, e.Y = d.X, d.Y
		}
		if c.UseVelocityVertical {
			e.Z = d.Z
		}
	}
	return r3.Norm(e)
}

// ConstraintOverride is what a controller reports it enforces itself.
type ConstraintOverride struct {
	Enabled bool        `json:"enabled"`
	Limits  Constraints `json:"limits"`
}

// AttitudeCommand is the output of a controller.
type AttitudeCommand struct {
	Stamp            time.Time          `json:"stamp"`
	Mode             CommandMode        `json:"mode"`
	Attitude         quat.Number        `json:"attitude"`
	AttitudeRate     r3.Vec             `json:"attitude_rate"`
	Thrust           float64            `json:"thrust"`
	Mass             float64            `json:"mass"`
	MassDifference   float64            `json:"mass_difference"`
	DisturbanceBody  r3.Vec             `json:"disturbance_body"`
	DisturbanceWorld r3.Vec             `json:"disturbance_world"`
	Enforcing        ConstraintOverride `json:"enforcing"`
	RampingUp        bool               `json:"ramping_up"`
}

func (c *AttitudeCommand) IsFinite() bool {
	return QuatFinite(c.Attitude) && VecFinite(c.AttitudeRate) &&
		IsFinite(c.Thrust, c.Mass, c.MassDifference) &&
		VecFinite(c.DisturbanceBody) && VecFinite(c.DisturbanceWorld)
}

// DefaultAttitudeCommand is the conservative seed used at start-up and on
// every plugin hand-off.
func DefaultAttitudeCommand(mass float64, at time.Time) *AttitudeCommand {
	return &AttitudeCommand{
		Stamp:    at,
		Mode:     ModeAttitude,
		Attitude: Identity,
		Mass:     mass,
	}
}

// OutputCommand is the message sent to the flight stack.
type OutputCommand struct {
	Stamp    time.Time   `json:"stamp"`
	Mode     CommandMode `json:"mode"`
	Attitude quat.Number `json:"attitude"`
	Rate     r3.Vec      `json:"rate"`
	Thrust   float64     `json:"thrust"`
}

func (c OutputCommand) IsFinite() bool {
	return QuatFinite(c.Attitude) && VecFinite(c.Rate) && finite(c.Thrust)
}

// NeutralCommand holds the current orientation with zero rate and the given
// minimum thrust.
func NeutralCommand(s VehicleState, thrust float64, at time.Time) OutputCommand {
	att := s.Orientation
	if !QuatFinite(att) {
		att = Identity
	}
	return OutputCommand{
		Stamp:    at,
		Mode:     ModeAttitude,
		Attitude: Normalize(att),
		Thrust:   thrust,
	}
}

// ThrustModel maps between collective force and normalised thrust.
type ThrustModel struct {
	MaxForce float64 `yaml:"max_force" json:"max_force"`
}

// ForceToThrust converts a force in newtons into a 0..1 thrust.
func (m ThrustModel) ForceToThrust(force float64) float64 {
	if m.MaxForce <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, force/m.MaxForce))
}

// ThrustToMass returns the mass that the given thrust would hold in hover.
func (m ThrustModel) ThrustToMass(thrust float64) float64 {
	return thrust * m.MaxForce / Gravity
}

// HoverThrust returns the thrust needed to hover the given mass.
func (m ThrustModel) HoverThrust(mass float64) float64 {
	return m.ForceToThrust(mass * Gravity)
}
