package types

import "time"

// SectorKind says whether a bumper sector carries a usable distance.
type SectorKind int

const (
	SectorNoData SectorKind = iota
	SectorNotDetected
	SectorDistance
)

// SectorReading is one bumper sector measurement.
type SectorReading struct {
	Kind     SectorKind `json:"kind"`
	Distance float64    `json:"distance"`
}

// Obstacle reports whether the reading carries a finite obstacle distance.
func (r SectorReading) Obstacle() (float64, bool) {
	if r.Kind != SectorDistance || !finite(r.Distance) {
		return 0, false
	}
	return r.Distance, true
}

// BumperSnapshot holds per-sector obstacle distances. Horizontal sector 0 is
// centered on the body x axis; sectors follow counter-clockwise.
type BumperSnapshot struct {
	Stamp       time.Time       `json:"stamp"`
	FrameID     string          `json:"frame_id"`
	VerticalFOV float64         `json:"vertical_fov"`
	Horizontal  []SectorReading `json:"horizontal"`
	Up          SectorReading   `json:"up"`
	Down        SectorReading   `json:"down"`
}
