// Package geofence decides whether points and straight paths lie inside the
// admissible flight volume: a border polygon with height limits and
// polygonal obstacle cut-outs.
package geofence

import (
	"errors"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrBorderTooSmall is returned for a border with fewer than three vertices.
var ErrBorderTooSmall = errors.New("geofence border needs at least three points")

// Obstacle is a vertical prism cut out of the safety area.
type Obstacle struct {
	Polygon []r3.Vec
	MinZ    float64
	MaxZ    float64
}

func (o Obstacle) coversHeight(z float64) bool {
	return z >= o.MinZ && z <= o.MaxZ
}

func (o Obstacle) overlapsHeights(z1, z2 float64) bool {
	lo, hi := math.Min(z1, z2), math.Max(z1, z2)
	return hi >= o.MinZ && lo <= o.MaxZ
}

// Geofence is safe for concurrent use. Only the height limits may change
// after construction.
type Geofence struct {
	border    []r3.Vec
	obstacles []Obstacle

	mu        sync.RWMutex
	minHeight float64
	maxHeight float64
}

// New builds a geofence. Z components of polygon vertices are ignored.
func New(border []r3.Vec, obstacles []Obstacle, minHeight, maxHeight float64) (*Geofence, error) {
	if len(border) < 3 {
		return nil, ErrBorderTooSmall
	}
	for _, o := range obstacles {
		if len(o.Polygon) < 3 {
			return nil, errors.New("geofence obstacle needs at least three points")
		}
	}
	return &Geofence{
		border:    append([]r3.Vec(nil), border...),
		obstacles: append([]Obstacle(nil), obstacles...),
		minHeight: minHeight,
		maxHeight: maxHeight,
	}, nil
}

// Border returns a copy of the border polygon.
func (g *Geofence) Border() []r3.Vec {
	return append([]r3.Vec(nil), g.border...)
}

// Obstacles returns a copy of the obstacle list.
func (g *Geofence) Obstacles() []Obstacle {
	return append([]Obstacle(nil), g.obstacles...)
}

func (g *Geofence) heights() (float64, float64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.minHeight, g.maxHeight
}

// MinHeight returns the current lower height limit.
func (g *Geofence) MinHeight() float64 {
	lo, _ := g.heights()
	return lo
}

// SetMinHeight changes the lower height limit. It fails when the new limit
// would be above the upper one.
func (g *Geofence) SetMinHeight(h float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if math.IsNaN(h) || h > g.maxHeight {
		return errors.New("min height must not exceed max height")
	}
	g.minHeight = h
	return nil
}

// IsPointValid2d checks the border and every obstacle regardless of height.
func (g *Geofence) IsPointValid2d(p r3.Vec) bool {
	if !insidePolygon(g.border, p) {
		return false
	}
	for _, o := range g.obstacles {
		if insidePolygon(o.Polygon, p) {
			return false
		}
	}
	return true
}

// IsPointValid3d checks the border, height limits and the obstacles whose
// height range contains the point.
func (g *Geofence) IsPointValid3d(p r3.Vec) bool {
	lo, hi := g.heights()
	if p.Z < lo || p.Z > hi {
		return false
	}
	if !insidePolygon(g.border, p) {
		return false
	}
	for _, o := range g.obstacles {
		if o.coversHeight(p.Z) && insidePolygon(o.Polygon, p) {
			return false
		}
	}
	return true
}

// IsPathValid2d reports whether the whole straight segment stays inside the
// border and outside every obstacle.
func (g *Geofence) IsPathValid2d(from, to r3.Vec) bool {
	if !g.IsPointValid2d(from) || !g.IsPointValid2d(to) {
		return false
	}
	if crossesPolygon(g.border, from, to) {
		return false
	}
	for _, o := range g.obstacles {
		if crossesPolygon(o.Polygon, from, to) {
			return false
		}
	}
	return true
}

// IsPathValid3d is IsPathValid2d with height limits; obstacles only count
// when their height range overlaps the segment.
func (g *Geofence) IsPathValid3d(from, to r3.Vec) bool {
	if !g.IsPointValid3d(from) || !g.IsPointValid3d(to) {
		return false
	}
	if crossesPolygon(g.border, from, to) {
		return false
	}
	for _, o := range g.obstacles {
		if o.overlapsHeights(from.Z, to.Z) && crossesPolygon(o.Polygon, from, to) {
			return false
		}
	}
	return true
}
