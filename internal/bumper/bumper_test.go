package bumper

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

func notDetected() types.SectorReading {
	return types.SectorReading{Kind: types.SectorNotDetected}
}

func at(d float64) types.SectorReading {
	return types.SectorReading{Kind: types.SectorDistance, Distance: d}
}

// snapshot has eight clear sectors and an obstacle at 2 m straight ahead.
func snapshot(stamp time.Time) types.BumperSnapshot {
	h := make([]types.SectorReading, 8)
	for i := range h {
		h[i] = notDetected()
	}
	h[0] = at(2.0)
	return types.BumperSnapshot{
		Stamp:       stamp,
		VerticalFOV: math.Pi / 2,
		Horizontal:  h,
		Up:          notDetected(),
		Down:        notDetected(),
	}
}

func TestSectorIndex(t *testing.T) {
	snap := snapshot(time.Now())

	assert.Equal(t, 0, SectorIndex(snap, r3.Vec{X: 1}))
	assert.Equal(t, 0, SectorIndex(snap, r3.Vec{X: 1, Y: -0.1}))
	assert.Equal(t, 2, SectorIndex(snap, r3.Vec{Y: 1}))
	assert.Equal(t, 4, SectorIndex(snap, r3.Vec{X: -1}))
	assert.Equal(t, 6, SectorIndex(snap, r3.Vec{Y: -1}))
	assert.Equal(t, 8, SectorIndex(snap, r3.Vec{Z: 1}))
	assert.Equal(t, 9, SectorIndex(snap, r3.Vec{X: 0.1, Z: -1}))
}

func TestCheckPointRejectsWithoutHugging(t *testing.T) {
	snap := snapshot(time.Now())
	p := Params{HorizontalMargin: 1.0, VerticalMargin: 0.5}

	// 1.5 m ahead leaves only 0.5 m to the obstacle.
	_, _, err := CheckPoint(snap, r3.Vec{}, 0, r3.Vec{X: 1.5, Z: 0}, p)
	assert.ErrorIs(t, err, ErrObstacle)

	out, modified, err := CheckPoint(snap, r3.Vec{}, 0, r3.Vec{X: 0.5}, p)
	require.NoError(t, err)
	assert.False(t, modified)
	assert.Equal(t, r3.Vec{X: 0.5}, out)
}

func TestCheckPointClampsWithHugging(t *testing.T) {
	snap := snapshot(time.Now())
	p := Params{HorizontalMargin: 1.0, VerticalMargin: 0.5, Hugging: true}

	out, modified, err := CheckPoint(snap, r3.Vec{}, 0, r3.Vec{X: 1.5, Z: 0.2}, p)
	require.NoError(t, err)
	assert.True(t, modified)
	assert.InDelta(t, 1.0, out.X, 1e-9)
	assert.InDelta(t, 0.0, out.Y, 1e-9)
	assert.InDelta(t, 0.2, out.Z, 1e-9)
}

func TestCheckPointRespectsVehiclePose(t *testing.T) {
	snap := snapshot(time.Now())
	p := Params{HorizontalMargin: 1.0, Hugging: true}

	// Vehicle at (10,0) facing +y: the obstacle sector points along world +y.
	origin := r3.Vec{X: 10}
	out, modified, err := CheckPoint(snap, origin, math.Pi/2, r3.Vec{X: 10, Y: 3}, p)
	require.NoError(t, err)
	assert.True(t, modified)
	assert.InDelta(t, 10, out.X, 1e-9)
	assert.InDelta(t, 1, out.Y, 1e-9)

	// Behind the vehicle nothing is detected.
	out, modified, err = CheckPoint(snap, origin, math.Pi/2, r3.Vec{X: 10, Y: -3}, p)
	require.NoError(t, err)
	assert.False(t, modified)
	assert.Equal(t, r3.Vec{X: 10, Y: -3}, out)
}

func TestCheckPointObstacleInsideMargin(t *testing.T) {
	snap := snapshot(time.Now())
	snap.Horizontal[0] = at(0.8)

	_, _, err := CheckPoint(snap, r3.Vec{}, 0, r3.Vec{X: 0.5}, Params{HorizontalMargin: 1.0, Hugging: true})
	assert.ErrorIs(t, err, ErrTooClose)
}

func TestCheckPointVertical(t *testing.T) {
	snap := snapshot(time.Now())
	snap.Up = at(1.0)

	out, modified, err := CheckPoint(snap, r3.Vec{}, 0, r3.Vec{Z: 2}, Params{VerticalMargin: 0.5, Hugging: true})
	require.NoError(t, err)
	assert.True(t, modified)
	assert.InDelta(t, 0.5, out.Z, 1e-9)
}

func TestStoreStaleness(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewStore(time.Second)
	s.SetClock(func() time.Time { return now })

	_, ok := s.Latest()
	assert.False(t, ok)

	s.Update(snapshot(now))
	_, ok = s.Latest()
	assert.True(t, ok)

	now = now.Add(1500 * time.Millisecond)
	_, ok = s.Latest()
	assert.False(t, ok, "data older than the timeout counts as no bumper")
}

func TestRepulsion(t *testing.T) {
	snap := snapshot(time.Now())
	snap.Horizontal[0] = at(1.0)
	p := RepulsionParams{HorizontalDistance: 1.5, VerticalDistance: 0.8, HorizontalOffset: 0.2}

	push, engaged := Repulsion(snap, 0, p)
	assert.True(t, engaged)
	assert.InDelta(t, -0.7, push.X, 1e-9)
	assert.InDelta(t, 0, push.Y, 1e-9)

	push, _ = Repulsion(snap, math.Pi/2, p)
	assert.InDelta(t, 0, push.X, 1e-9)
	assert.InDelta(t, -0.7, push.Y, 1e-9)

	snap.Horizontal[0] = at(3.0)
	_, engaged = Repulsion(snap, 0, p)
	assert.False(t, engaged)
}
