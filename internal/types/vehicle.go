package types

import (
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// VehicleState is the estimator output the manager runs on. It is passed by
// value; nothing outside the state-input path mutates it.
type VehicleState struct {
	Stamp           time.Time   `json:"stamp"`
	FrameID         string      `json:"frame_id"`
	Position        r3.Vec      `json:"position"`
	Orientation     quat.Number `json:"orientation"`
	Velocity        r3.Vec      `json:"velocity"`
	AngularVelocity r3.Vec      `json:"angular_velocity"`
	Acceleration    r3.Vec      `json:"acceleration"`
	EstimatorEpoch  uint64      `json:"estimator_epoch"`
}

// IsFinite reports whether every numeric field is finite.
func (s VehicleState) IsFinite() bool {
	return VecFinite(s.Position) && QuatFinite(s.Orientation) &&
		VecFinite(s.Velocity) && VecFinite(s.AngularVelocity) &&
		VecFinite(s.Acceleration)
}

func (s VehicleState) Heading() float64 {
	return HeadingOf(s.Orientation)
}

func (s VehicleState) Tilt() float64 {
	return TiltOf(s.Orientation)
}

func (s VehicleState) BodyUp() r3.Vec {
	return BodyUp(s.Orientation)
}

// SameSource reports whether two states come from the same estimator source.
func (s VehicleState) SameSource(o VehicleState) bool {
	return s.FrameID == o.FrameID && s.EstimatorEpoch == o.EstimatorEpoch
}

// FlightStackStatus is the liveness and mode report of the autopilot.
type FlightStackStatus struct {
	Stamp        time.Time `json:"stamp"`
	Armed        bool      `json:"armed"`
	Offboard     bool      `json:"offboard"`
	HaveOdometry bool      `json:"have_odometry"`
}

// RCChannels carries normalised (0..1) remote-control channel values.
type RCChannels struct {
	Stamp    time.Time `json:"stamp"`
	Channels []float64 `json:"channels"`
}

// Channel returns the value of channel i and whether it exists.
func (rc RCChannels) Channel(i int) (float64, bool) {
	if i < 0 || i >= len(rc.Channels) {
		return 0, false
	}
	return rc.Channels[i], true
}
