package types

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// AxisLimits bounds the derivatives of motion along one axis group.
type AxisLimits struct {
	Speed        float64 `yaml:"speed" json:"speed"`
	Acceleration float64 `yaml:"acceleration" json:"acceleration"`
	Jerk         float64 `yaml:"jerk" json:"jerk"`
	Snap         float64 `yaml:"snap" json:"snap"`
}

// Constraints are the dynamics limits handed to every plugin.
type Constraints struct {
	Horizontal         AxisLimits `yaml:"horizontal" json:"horizontal"`
	VerticalAscending  AxisLimits `yaml:"vertical_ascending" json:"vertical_ascending"`
	VerticalDescending AxisLimits `yaml:"vertical_descending" json:"vertical_descending"`
	Heading            AxisLimits `yaml:"heading" json:"heading"`
	AngularRate        r3.Vec     `yaml:"angular_rate" json:"angular_rate"`
	Tilt               float64    `yaml:"tilt" json:"tilt"`
}

func (a AxisLimits) isFinite() bool {
	return IsFinite(a.Speed, a.Acceleration, a.Jerk, a.Snap)
}

func (a AxisLimits) nonNegative() bool {
	return a.Speed >= 0 && a.Acceleration >= 0 && a.Jerk >= 0 && a.Snap >= 0
}

// Valid reports whether all limits are finite and non-negative.
func (c Constraints) Valid() bool {
	axes := []AxisLimits{c.Horizontal, c.VerticalAscending, c.VerticalDescending, c.Heading}
	for _, a := range axes {
		if !a.isFinite() || !a.nonNegative() {
			return false
		}
	}
	return VecFinite(c.AngularRate) && finite(c.Tilt) &&
		c.AngularRate.X >= 0 && c.AngularRate.Y >= 0 && c.AngularRate.Z >= 0 && c.Tilt >= 0
}

// clipLimit lowers requested to override when the override is positive.
func clipLimit(requested, override float64) float64 {
	if override > 0 && override < requested {
		return override
	}
	return requested
}

func (a AxisLimits) clip(o AxisLimits) AxisLimits {
	return AxisLimits{
		Speed:        clipLimit(a.Speed, o.Speed),
		Acceleration: clipLimit(a.Acceleration, o.Acceleration),
		Jerk:         clipLimit(a.Jerk, o.Jerk),
		Snap:         clipLimit(a.Snap, o.Snap),
	}
}

// Clip returns c with every limit lowered to what the override enforces.
// Zero override fields leave the requested value untouched.
func (c Constraints) Clip(o ConstraintOverride) Constraints {
	if !o.Enabled {
		return c
	}
	return Constraints{
		Horizontal:         c.Horizontal.clip(o.Limits.Horizontal),
		VerticalAscending:  c.VerticalAscending.clip(o.Limits.VerticalAscending),
		VerticalDescending: c.VerticalDescending.clip(o.Limits.VerticalDescending),
		Heading:            c.Heading.clip(o.Limits.Heading),
		AngularRate: r3.Vec{
			X: clipLimit(c.AngularRate.X, o.Limits.AngularRate.X),
			Y: clipLimit(c.AngularRate.Y, o.Limits.AngularRate.Y),
			Z: clipLimit(c.AngularRate.Z, o.Limits.AngularRate.Z),
		},
		Tilt: clipLimit(c.Tilt, o.Limits.Tilt),
	}
}

// VerticalFor returns the vertical limits that apply to motion with the given
// sign of vertical velocity.
func (c Constraints) VerticalFor(vz float64) AxisLimits {
	if vz < 0 {
		return c.VerticalDescending
	}
	return c.VerticalAscending
}

// Inf is a convenience for disabled thresholds.
var Inf = math.Inf(1)
