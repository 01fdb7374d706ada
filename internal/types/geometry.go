package types

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Identity is the neutral orientation.
var Identity = quat.Number{Real: 1}

// UnitZ is the world up axis.
var UnitZ = r3.Vec{Z: 1}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsFinite reports whether every argument is a finite number.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if !finite(v) {
			return false
		}
	}
	return true
}

// VecFinite reports whether all components of v are finite.
func VecFinite(v r3.Vec) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

// QuatFinite reports whether all components of q are finite.
func QuatFinite(q quat.Number) bool {
	return finite(q.Real) && finite(q.Imag) && finite(q.Jmag) && finite(q.Kmag)
}

// Normalize returns q scaled to unit length. A zero quaternion maps to Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || !finite(n) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// FromHeading builds a level orientation with the given heading.
func FromHeading(heading float64) quat.Number {
	return quat.Number{Real: math.Cos(heading / 2), Kmag: math.Sin(heading / 2)}
}

// HeadingOf extracts the heading (rotation of the body x axis about world z)
// from an orientation.
func HeadingOf(q quat.Number) float64 {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return math.Atan2(2*(x*y+w*z), 1-2*(y*y+z*z))
}

// BodyUp returns the body z axis expressed in the world frame.
func BodyUp(q quat.Number) r3.Vec {
	return Rotate(Normalize(q), UnitZ)
}

// TiltOf is the angle between the body z axis and world up.
func TiltOf(q quat.Number) float64 {
	return AngleBetween(BodyUp(q), UnitZ)
}

// AngleBetween returns the angle between two vectors in radians.
func AngleBetween(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	c := r3.Dot(a, b) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// WithHeading returns an orientation with the tilt of q and the given heading.
func WithHeading(q quat.Number, heading float64) quat.Number {
	return quat.Mul(FromHeading(heading-HeadingOf(q)), Normalize(q))
}

// WrapAngle maps an angle into (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDiff returns the signed shortest rotation from b to a.
func AngleDiff(a, b float64) float64 {
	return WrapAngle(a - b)
}

// Horizontal drops the z component of v.
func Horizontal(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y}
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}
