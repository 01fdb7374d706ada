// Package trackers contains the built-in reference trackers.
package trackers

import (
	"errors"
	"math"
)

var (
	ErrNotActive          = errors.New("tracker is not active")
	ErrCallbacksDisabled  = errors.New("tracker callbacks are disabled")
	ErrNotSupported       = errors.New("not supported by this tracker")
	ErrNoTrajectory       = errors.New("no trajectory loaded")
	ErrNotTracking        = errors.New("not tracking a trajectory")
	ErrTrajectoryFinished = errors.New("trajectory already finished")
	ErrLanding            = errors.New("tracker is landing")
	ErrInvalidConstraints = errors.New("constraints must be finite and non-negative")
)

func param(p map[string]float64, key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
