package types

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Reference is a desired position and heading in a named frame.
type Reference struct {
	FrameID  string  `json:"frame_id"`
	Position r3.Vec  `json:"position"`
	Heading  float64 `json:"heading"`
}

func (r Reference) IsFinite() bool {
	return VecFinite(r.Position) && finite(r.Heading)
}

// VelocityReference asks the tracker to move at a velocity. Vertical motion is
// either a velocity or a held altitude, heading is either absolute or a rate.
type VelocityReference struct {
	FrameID        string  `json:"frame_id"`
	Velocity       r3.Vec  `json:"velocity"`
	UseAltitude    bool    `json:"use_altitude"`
	Altitude       float64 `json:"altitude"`
	UseHeading     bool    `json:"use_heading"`
	Heading        float64 `json:"heading"`
	UseHeadingRate bool    `json:"use_heading_rate"`
	HeadingRate    float64 `json:"heading_rate"`
}

func (v VelocityReference) IsFinite() bool {
	return VecFinite(v.Velocity) && IsFinite(v.Altitude, v.Heading, v.HeadingRate)
}

// Trajectory is a sequence of references sampled every Dt.
type Trajectory struct {
	FrameID    string        `json:"frame_id"`
	Points     []Reference   `json:"points"`
	Dt         time.Duration `json:"dt"`
	FlyNow     bool          `json:"fly_now"`
	UseHeading bool          `json:"use_heading"`
}

// Clone returns a deep copy so validation never aliases the caller's points.
func (t Trajectory) Clone() Trajectory {
	c := t
	c.Points = append([]Reference(nil), t.Points...)
	return c
}
