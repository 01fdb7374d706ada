// Package bumper keeps the latest obstacle sector snapshot and implements the
// sector geometry used to veto, clamp or repel motion near obstacles.
package bumper

import (
	"errors"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

var (
	ErrObstacle = errors.New("reference is closer to an obstacle than the bumper margin")
	ErrTooClose = errors.New("obstacle is inside the bumper margin, no admissible point on this bearing")
)

// Store holds the latest snapshot from the sensor feed.
type Store struct {
	mu      sync.RWMutex
	snap    types.BumperSnapshot
	have    bool
	timeout time.Duration
	now     func() time.Time
}

// NewStore creates a store whose data expires after timeout.
func NewStore(timeout time.Duration) *Store {
	return &Store{timeout: timeout, now: time.Now}
}

// SetClock replaces the time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Update replaces the snapshot.
func (s *Store) Update(snap types.BumperSnapshot) {
	snap.Horizontal = append([]types.SectorReading(nil), snap.Horizontal...)
	s.mu.Lock()
	s.snap = snap
	s.have = true
	s.mu.Unlock()
}

// Latest returns the snapshot if one exists and is not stale.
func (s *Store) Latest() (types.BumperSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.have || len(s.snap.Horizontal) == 0 {
		return types.BumperSnapshot{}, false
	}
	if s.now().Sub(s.snap.Stamp) > s.timeout {
		return types.BumperSnapshot{}, false
	}
	snap := s.snap
	snap.Horizontal = append([]types.SectorReading(nil), s.snap.Horizontal...)
	return snap, true
}

// SectorIndex returns the sector containing a point given relative to the
// vehicle in its heading-aligned frame. Horizontal sectors are 0..n-1, n is
// up and n+1 is down.
func SectorIndex(snap types.BumperSnapshot, rel r3.Vec) int {
	n := len(snap.Horizontal)
	vertical := math.Atan2(rel.Z, math.Hypot(rel.X, rel.Y))
	half := snap.VerticalFOV / 2
	if vertical > half {
		return n
	}
	if vertical < -half {
		return n + 1
	}

	heading := math.Atan2(rel.Y, rel.X)
	if heading < 0 {
		heading += 2 * math.Pi
	}
	size := 2 * math.Pi / float64(n)
	idx := int(math.Floor((heading + size/2) / size))
	if idx > n-1 {
		idx -= n
	}
	return idx
}

// SectorDirection is the unit bearing of the centre of horizontal sector i.
func SectorDirection(n, i int) r3.Vec {
	a := 2 * math.Pi * float64(i) / float64(n)
	return r3.Vec{X: math.Cos(a), Y: math.Sin(a)}
}

func reading(snap types.BumperSnapshot, idx int) types.SectorReading {
	n := len(snap.Horizontal)
	switch {
	case idx < n:
		return snap.Horizontal[idx]
	case idx == n:
		return snap.Up
	default:
		return snap.Down
	}
}

// Params configures the point check.
type Params struct {
	HorizontalMargin float64
	VerticalMargin   float64
	Hugging          bool
}

// toBody expresses a world point relative to the vehicle, heading-aligned.
func toBody(origin r3.Vec, heading float64, p r3.Vec) r3.Vec {
	d := r3.Sub(p, origin)
	s, c := math.Sincos(-heading)
	return r3.Vec{X: c*d.X - s*d.Y, Y: s*d.X + c*d.Y, Z: d.Z}
}

func fromBody(origin r3.Vec, heading float64, b r3.Vec) r3.Vec {
	s, c := math.Sincos(heading)
	return r3.Add(origin, r3.Vec{X: c*b.X - s*b.Y, Y: s*b.X + c*b.Y, Z: b.Z})
}

// CheckPoint tests a world-frame point against the snapshot as seen from the
// vehicle at origin with the given heading. With hugging enabled a violating
// point is pulled back along its bearing to the margin distance and the
// second result is true.
func CheckPoint(snap types.BumperSnapshot, origin r3.Vec, heading float64, point r3.Vec, p Params) (r3.Vec, bool, error) {
	rel := toBody(origin, heading, point)
	idx := SectorIndex(snap, rel)

	obstacle, ok := reading(snap, idx).Obstacle()
	if !ok {
		return point, false, nil
	}

	horizontal := idx < len(snap.Horizontal)
	var dist, limit float64
	if horizontal {
		dist = math.Hypot(rel.X, rel.Y)
		limit = obstacle - p.HorizontalMargin
	} else {
		dist = math.Abs(rel.Z)
		limit = obstacle - p.VerticalMargin
	}

	if dist <= limit {
		return point, false, nil
	}
	if !p.Hugging {
		return point, false, ErrObstacle
	}
	if limit <= 0 {
		return point, false, ErrTooClose
	}

	if horizontal {
		k := limit / dist
		rel.X *= k
		rel.Y *= k
	} else {
		rel.Z = math.Copysign(limit, rel.Z)
	}
	return fromBody(origin, heading, rel), true, nil
}

// RepulsionParams configures the repulsion behaviour.
type RepulsionParams struct {
	HorizontalDistance float64
	VerticalDistance   float64
	HorizontalOffset   float64
	VerticalOffset     float64
}

// Repulsion returns the world-frame displacement that moves the vehicle out
// of every sector closer than the repulsion distance, and whether any sector
// required it.
func Repulsion(snap types.BumperSnapshot, heading float64, p RepulsionParams) (r3.Vec, bool) {
	var push r3.Vec
	engaged := false
	n := len(snap.Horizontal)

	for i, r := range snap.Horizontal {
		d, ok := r.Obstacle()
		if !ok || d >= p.HorizontalDistance {
			continue
		}
		engaged = true
		push = r3.Sub(push, r3.Scale(p.HorizontalDistance-d+p.HorizontalOffset, SectorDirection(n, i)))
	}
	if d, ok := snap.Up.Obstacle(); ok && d < p.VerticalDistance {
		engaged = true
		push.Z -= p.VerticalDistance - d + p.VerticalOffset
	}
	if d, ok := snap.Down.Obstacle(); ok && d < p.VerticalDistance {
		engaged = true
		push.Z += p.VerticalDistance - d + p.VerticalOffset
	}

	return fromBody(r3.Vec{}, heading, push), engaged
}
