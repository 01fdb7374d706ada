// Package transform resolves references between the working frame, static
// frames from the configuration and the vehicle body frame.
package transform

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

// BodyFrame is the heading-aligned frame centred on the vehicle.
const BodyFrame = "fcu"

var (
	ErrUnknownFrame   = errors.New("unknown frame")
	ErrNoVehicleState = errors.New("body frame requested before any vehicle state")
)

// Transform maps points from a source frame into a target frame: a rotation
// about z followed by a translation.
type Transform struct {
	Translation r3.Vec
	Yaw         float64
}

// Identity leaves points unchanged.
var Identity = Transform{}

// Apply maps a point.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(t.Rotate(p), t.Translation)
}

// Rotate maps a free vector (velocity, offset) and ignores translation.
func (t Transform) Rotate(v r3.Vec) r3.Vec {
	s, c := math.Sincos(t.Yaw)
	return r3.Vec{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y, Z: v.Z}
}

// ApplyHeading maps a heading.
func (t Transform) ApplyHeading(h float64) float64 {
	return types.WrapAngle(h + t.Yaw)
}

// Inverse maps from the target frame back to the source frame.
func (t Transform) Inverse() Transform {
	inv := Transform{Yaw: -t.Yaw}
	inv.Translation = r3.Scale(-1, inv.Rotate(t.Translation))
	return inv
}

// Then returns the transform that applies t first and next second.
func (t Transform) Then(next Transform) Transform {
	return Transform{
		Translation: r3.Add(next.Rotate(t.Translation), next.Translation),
		Yaw:         t.Yaw + next.Yaw,
	}
}

// Tree knows every frame relative to the working frame.
type Tree struct {
	working string
	static  map[string]Transform

	mu       sync.RWMutex
	body     Transform
	haveBody bool
}

// Frame is a static frame given by its pose in the working frame.
type Frame struct {
	Name        string
	Translation r3.Vec
	Yaw         float64
}

// NewTree builds a transform tree rooted at the working frame.
func NewTree(working string, frames []Frame) *Tree {
	t := &Tree{
		working: working,
		static:  make(map[string]Transform, len(frames)),
	}
	for _, f := range frames {
		t.static[f.Name] = Transform{Translation: f.Translation, Yaw: f.Yaw}
	}
	return t
}

// WorkingFrame returns the frame every reference is validated in.
func (t *Tree) WorkingFrame() string {
	return t.working
}

// UpdateVehicle moves the body frame to the latest vehicle pose.
func (t *Tree) UpdateVehicle(s types.VehicleState) {
	t.mu.Lock()
	t.body = Transform{Translation: s.Position, Yaw: s.Heading()}
	t.haveBody = true
	t.mu.Unlock()
}

// toWorking returns the transform from frame into the working frame.
func (t *Tree) toWorking(frame string) (Transform, error) {
	switch frame {
	case "", t.working:
		return Identity, nil
	case BodyFrame:
		t.mu.RLock()
		defer t.mu.RUnlock()
		if !t.haveBody {
			return Transform{}, ErrNoVehicleState
		}
		return t.body, nil
	}
	tf, ok := t.static[frame]
	if !ok {
		return Transform{}, fmt.Errorf("%w: %q", ErrUnknownFrame, frame)
	}
	return tf, nil
}

// GetTransform returns the transform from one frame to another. All frames
// are static except the body frame, so the time only documents intent.
func (t *Tree) GetTransform(from, to string, _ time.Time) (Transform, error) {
	a, err := t.toWorking(from)
	if err != nil {
		return Transform{}, err
	}
	b, err := t.toWorking(to)
	if err != nil {
		return Transform{}, err
	}
	return a.Then(b.Inverse()), nil
}

// TransformReference expresses ref in the target frame.
func (t *Tree) TransformReference(ref types.Reference, target string) (types.Reference, error) {
	tf, err := t.GetTransform(ref.FrameID, target, time.Time{})
	if err != nil {
		return types.Reference{}, err
	}
	if target == "" {
		target = t.working
	}
	return types.Reference{
		FrameID:  target,
		Position: tf.Apply(ref.Position),
		Heading:  tf.ApplyHeading(ref.Heading),
	}, nil
}

// TransformVector rotates a free vector from one frame into another.
func (t *Tree) TransformVector(v r3.Vec, from, target string) (r3.Vec, error) {
	tf, err := t.GetTransform(from, target, time.Time{})
	if err != nil {
		return r3.Vec{}, err
	}
	return tf.Rotate(v), nil
}
