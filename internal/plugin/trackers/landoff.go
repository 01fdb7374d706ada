package trackers

import "uav-control-manager/internal/types"

// Landoff is a point tracker that can also descend until touchdown.
type Landoff struct {
	*Point
}

// NewLandoff creates a landing tracker. Recognised params are those of
// NewPoint plus landing_speed (m/s, defaults to the descending speed limit).
func NewLandoff(params map[string]float64, c types.Constraints) *Landoff {
	p := NewPoint(params, c)
	p.landSpeed = param(params, "landing_speed", c.VerticalDescending.Speed)
	return &Landoff{Point: p}
}

// Land starts a descent at the landing speed, holding the horizontal
// setpoint. References are refused until the tracker is re-activated or told
// to hover.
func (l *Landoff) Land() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return ErrNotActive
	}
	l.landing = true
	l.mode = modeHold
	l.tracking = false
	return nil
}
