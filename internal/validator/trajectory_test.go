package validator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/geofence"
	"uav-control-manager/internal/types"
)

// tenPoints returns a trajectory along y = 5 whose points 3..5 are pushed
// outside the 20 x 10 safety area.
func tenPoints() types.Trajectory {
	traj := types.Trajectory{FrameID: "world", Dt: 200 * time.Millisecond}
	for i := 0; i < 10; i++ {
		y := 5.0
		if i >= 3 && i <= 5 {
			y = 15
		}
		traj.Points = append(traj.Points, types.Reference{Position: v3(1+2*float64(i), y, 2)})
	}
	return traj
}

func TestTrajectorySnappingRepairsInteriorRun(t *testing.T) {
	f := newFixture(t)
	f.cfg.SafetyArea.SnapTrajectories = true

	in := tenPoints()
	out, modified, err := f.validator().ValidateTrajectory(in, f.state, f.state.Position)
	require.NoError(t, err)

	assert.True(t, modified)
	require.Len(t, out.Points, 10)
	for i, p := range out.Points {
		assert.True(t, f.area.IsPointValid3d(p.Position), "point %d", i)
	}
	assert.InDelta(t, 7.0, out.Points[3].Position.X, 1e-9)
	assert.InDelta(t, 5.0, out.Points[4].Position.Y, 1e-9)

	assert.Equal(t, 15.0, in.Points[4].Position.Y, "input is not mutated")
}

func TestTrajectoryWithoutSnappingTruncates(t *testing.T) {
	f := newFixture(t)
	f.cfg.SafetyArea.SnapTrajectories = false

	out, modified, err := f.validator().ValidateTrajectory(tenPoints(), f.state, f.state.Position)
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Len(t, out.Points, 3)
}

func TestTrajectoryRunTouchingEndIsShortened(t *testing.T) {
	f := newFixture(t)
	f.cfg.SafetyArea.SnapTrajectories = true

	traj := tenPoints()
	for i := 7; i < 10; i++ {
		traj.Points[i].Position.Y = 15
	}
	// restore the interior run so only the tail is invalid
	for i := 3; i <= 5; i++ {
		traj.Points[i].Position.Y = 5
	}

	out, modified, err := f.validator().ValidateTrajectory(traj, f.state, f.state.Position)
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Len(t, out.Points, 7)
}

func TestTrajectoryInvalidStartIsRejected(t *testing.T) {
	f := newFixture(t)
	traj := tenPoints()
	traj.Points[0].Position.Y = 15

	_, _, err := f.validator().ValidateTrajectory(traj, f.state, f.state.Position)
	assert.ErrorIs(t, err, ErrGeofence)
}

func TestTrajectoryEmptyAndNonFinite(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.validator().ValidateTrajectory(types.Trajectory{}, f.state, f.state.Position)
	assert.ErrorIs(t, err, ErrEmptyTrajectory)

	traj := tenPoints()
	traj.Points[4].Heading = math.NaN()
	_, _, err = f.validator().ValidateTrajectory(traj, f.state, f.state.Position)
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestTrajectoryUnrepairableRunIsRejected(t *testing.T) {
	f := newFixture(t)
	f.cfg.SafetyArea.SnapTrajectories = true

	// an obstacle sits on the straight line between points 2 and 6
	area, err := geofence.New(
		[]r3.Vec{v3(0, 0, 0), v3(20, 0, 0), v3(20, 10, 0), v3(0, 10, 0)},
		[]geofence.Obstacle{{Polygon: []r3.Vec{v3(8, 4, 0), v3(10, 4, 0), v3(10, 6, 0), v3(8, 6, 0)}, MinZ: 0, MaxZ: 10}},
		0.5, 20)
	require.NoError(t, err)
	f.area = area

	_, _, err = f.validator().ValidateTrajectory(tenPoints(), f.state, f.state.Position)
	assert.ErrorIs(t, err, ErrGeofence)
}

func TestTrajectorySnappingTruncatesCrossingSegment(t *testing.T) {
	// a thin wall between points 2 and 3; every point is valid
	area, err := geofence.New(
		[]r3.Vec{v3(0, 0, 0), v3(20, 0, 0), v3(20, 10, 0), v3(0, 10, 0)},
		[]geofence.Obstacle{{Polygon: []r3.Vec{v3(6.9, 3, 0), v3(7.1, 3, 0), v3(7.1, 7, 0), v3(6.9, 7, 0)}, MinZ: 0, MaxZ: 10}},
		0.5, 20)
	require.NoError(t, err)

	traj := types.Trajectory{FrameID: "world", Dt: 200 * time.Millisecond}
	for i := 0; i < 10; i++ {
		traj.Points = append(traj.Points, types.Reference{Position: v3(1.2+2*float64(i), 5, 2)})
	}

	for _, snap := range []bool{false, true} {
		f := newFixture(t)
		f.area = area
		f.cfg.SafetyArea.SnapTrajectories = snap

		out, modified, err := f.validator().ValidateTrajectory(traj, f.state, f.state.Position)
		require.NoError(t, err, "snap=%v", snap)
		assert.True(t, modified, "snap=%v", snap)
		assert.Len(t, out.Points, 3, "snap=%v", snap)
	}
}
