// Package controllers contains the built-in attitude controllers.
package controllers

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

var ErrInvalidConstraints = errors.New("constraints must be finite and non-negative")

// UAV is the static vehicle model a controller works with.
type UAV struct {
	Mass   float64
	Thrust types.ThrustModel
}

func param(p map[string]float64, key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// alignUp returns the orientation whose body z axis points along axis and
// whose heading is heading.
func alignUp(axis r3.Vec, heading float64) quat.Number {
	n := r3.Unit(axis)
	c := r3.Cross(types.UnitZ, n)
	s := r3.Norm(c)
	if s < 1e-9 {
		return types.FromHeading(heading)
	}
	angle := math.Acos(clamp(n.Z, -1, 1))
	k := math.Sin(angle/2) / s
	tilt := quat.Number{Real: math.Cos(angle / 2), Imag: c.X * k, Jmag: c.Y * k, Kmag: c.Z * k}
	return types.Normalize(quat.Mul(tilt, types.FromHeading(heading)))
}

// rateTowards returns the body rate that rotates from towards to, scaled by
// gain.
func rateTowards(from, to quat.Number, gain float64) r3.Vec {
	e := quat.Mul(quat.Conj(types.Normalize(from)), types.Normalize(to))
	if e.Real < 0 {
		e = quat.Scale(-1, e)
	}
	return r3.Scale(2*gain, r3.Vec{X: e.Imag, Y: e.Jmag, Z: e.Kmag})
}
