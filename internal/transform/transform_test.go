package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

func assertVec(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
	assert.InDelta(t, want.Z, got.Z, 1e-9)
}

func TestInverseRoundTrip(t *testing.T) {
	tf := Transform{Translation: r3.Vec{X: 1, Y: 2, Z: 3}, Yaw: 0.7}
	p := r3.Vec{X: -4, Y: 5, Z: 1}
	assertVec(t, p, tf.Inverse().Apply(tf.Apply(p)))
	assertVec(t, p, tf.Then(tf.Inverse()).Apply(p))
}

func TestStaticFrame(t *testing.T) {
	tree := NewTree("world", []Frame{{Name: "gps_origin", Translation: r3.Vec{X: 10}, Yaw: math.Pi / 2}})

	ref := types.Reference{FrameID: "gps_origin", Position: r3.Vec{X: 1}, Heading: 0}
	out, err := tree.TransformReference(ref, "world")
	require.NoError(t, err)

	assert.Equal(t, "world", out.FrameID)
	assertVec(t, r3.Vec{X: 10, Y: 1}, out.Position)
	assert.InDelta(t, math.Pi/2, out.Heading, 1e-9)

	back, err := tree.TransformReference(out, "gps_origin")
	require.NoError(t, err)
	assertVec(t, ref.Position, back.Position)
}

func TestEmptyFrameIsWorking(t *testing.T) {
	tree := NewTree("world", nil)
	out, err := tree.TransformReference(types.Reference{Position: r3.Vec{X: 1}}, "")
	require.NoError(t, err)
	assert.Equal(t, "world", out.FrameID)
	assertVec(t, r3.Vec{X: 1}, out.Position)
}

func TestBodyFrame(t *testing.T) {
	tree := NewTree("world", nil)

	_, err := tree.GetTransform(BodyFrame, "world", time.Now())
	assert.ErrorIs(t, err, ErrNoVehicleState)

	tree.UpdateVehicle(types.VehicleState{
		Position:    r3.Vec{X: 5, Y: 5, Z: 2},
		Orientation: types.FromHeading(math.Pi),
	})

	out, err := tree.TransformReference(types.Reference{FrameID: BodyFrame, Position: r3.Vec{X: 1}}, "world")
	require.NoError(t, err)
	assertVec(t, r3.Vec{X: 4, Y: 5, Z: 2}, out.Position)

	vel, err := tree.TransformVector(r3.Vec{X: 1}, BodyFrame, "world")
	require.NoError(t, err)
	assertVec(t, r3.Vec{X: -1}, vel)
}

func TestUnknownFrame(t *testing.T) {
	tree := NewTree("world", nil)
	_, err := tree.TransformReference(types.Reference{FrameID: "nowhere"}, "world")
	assert.ErrorIs(t, err, ErrUnknownFrame)
}
