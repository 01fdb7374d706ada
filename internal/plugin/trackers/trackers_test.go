package trackers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"uav-control-manager/internal/types"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testConstraints() types.Constraints {
	return types.Constraints{
		Horizontal:         types.AxisLimits{Speed: 2, Acceleration: 2},
		VerticalAscending:  types.AxisLimits{Speed: 1, Acceleration: 1},
		VerticalDescending: types.AxisLimits{Speed: 0.5, Acceleration: 1},
		Heading:            types.AxisLimits{Speed: 1, Acceleration: 1},
		AngularRate:        r3.Vec{X: 1, Y: 1, Z: 1},
		Tilt:               0.5,
	}
}

func stateAt(pos r3.Vec, dt time.Duration) types.VehicleState {
	return types.VehicleState{
		Stamp:       t0.Add(dt),
		FrameID:     "world",
		Position:    pos,
		Orientation: types.Identity,
	}
}

func TestNullTrackerProducesNothing(t *testing.T) {
	n := NewNull()
	require.NoError(t, n.Activate(nil))

	cmd, err := n.Update(stateAt(r3.Vec{}, 0), nil)
	assert.NoError(t, err)
	assert.Nil(t, cmd)
	assert.ErrorIs(t, n.SetReference(types.Reference{}), ErrNotSupported)
	assert.True(t, n.Status().Active)
}

func TestPointRefusesWhenInactive(t *testing.T) {
	p := NewPoint(nil, testConstraints())
	assert.ErrorIs(t, p.SetReference(types.Reference{}), ErrNotActive)

	cmd, err := p.Update(stateAt(r3.Vec{}, 0), nil)
	assert.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestPointRefusesWithCallbacksDisabled(t *testing.T) {
	p := NewPoint(nil, testConstraints())
	require.NoError(t, p.Activate(nil))
	p.EnableCallbacks(false)

	assert.ErrorIs(t, p.SetReference(types.Reference{}), ErrCallbacksDisabled)
	assert.ErrorIs(t, p.SetTrajectory(types.Trajectory{Points: []types.Reference{{}}}), ErrCallbacksDisabled)
}

func TestPointMovesAtConstrainedSpeed(t *testing.T) {
	p := NewPoint(nil, testConstraints())
	require.NoError(t, p.Activate(nil))

	cmd, err := p.Update(stateAt(r3.Vec{Z: 2}, 0), nil)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, r3.Vec{Z: 2}, cmd.Position)

	require.NoError(t, p.SetReference(types.Reference{Position: r3.Vec{X: 10, Z: 2}}))

	cmd, err = p.Update(stateAt(r3.Vec{Z: 2}, 100*time.Millisecond), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, cmd.Position.X, 1e-9)
	assert.InDelta(t, 2.0, cmd.Velocity.X, 1e-9)
	assert.True(t, cmd.UsePositionHorizontal)
}

func TestPointDescendsWithDescendingLimit(t *testing.T) {
	p := NewPoint(nil, testConstraints())
	require.NoError(t, p.Activate(nil))
	_, _ = p.Update(stateAt(r3.Vec{Z: 5}, 0), nil)

	require.NoError(t, p.SetReference(types.Reference{Position: r3.Vec{Z: 0}}))
	cmd, err := p.Update(stateAt(r3.Vec{Z: 5}, 100*time.Millisecond), nil)
	require.NoError(t, err)
	assert.InDelta(t, 4.95, cmd.Position.Z, 1e-9)
}

func TestPointTrajectoryFlyNow(t *testing.T) {
	p := NewPoint(nil, testConstraints())
	require.NoError(t, p.Activate(nil))
	_, _ = p.Update(stateAt(r3.Vec{}, 0), nil)

	traj := types.Trajectory{
		Points: []types.Reference{
			{Position: r3.Vec{X: 0.1}},
			{Position: r3.Vec{X: 0.2}},
			{Position: r3.Vec{X: 0.3}},
		},
		Dt:     100 * time.Millisecond,
		FlyNow: true,
	}
	require.NoError(t, p.SetTrajectory(traj))
	assert.True(t, p.Status().Tracking)

	for i := 1; i <= 5; i++ {
		_, err := p.Update(stateAt(r3.Vec{}, time.Duration(i)*100*time.Millisecond), nil)
		require.NoError(t, err)
	}
	st := p.Status()
	assert.False(t, st.Tracking)
	assert.Equal(t, 2, st.TrajectoryIndex)
	assert.Equal(t, 3, st.TrajectoryLength)
	assert.ErrorIs(t, p.ResumeTrajectoryTracking(), ErrTrajectoryFinished)

	require.NoError(t, p.GotoTrajectoryStart())
	assert.NoError(t, p.ResumeTrajectoryTracking())
}

func TestPointStopWithoutTrajectory(t *testing.T) {
	p := NewPoint(nil, testConstraints())
	require.NoError(t, p.Activate(nil))

	assert.ErrorIs(t, p.StartTrajectoryTracking(), ErrNoTrajectory)
	assert.ErrorIs(t, p.StopTrajectoryTracking(), ErrNotTracking)
}

func TestPointSwitchOdometrySourceShiftsSetpoint(t *testing.T) {
	p := NewPoint(nil, testConstraints())
	require.NoError(t, p.Activate(nil))
	_, _ = p.Update(stateAt(r3.Vec{X: 1, Z: 2}, 0), nil)

	p.SwitchOdometrySource(stateAt(r3.Vec{X: 11, Z: 2}, 10*time.Millisecond))
	cmd, err := p.Update(stateAt(r3.Vec{X: 11, Z: 2}, 20*time.Millisecond), nil)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, cmd.Position.X, 1e-9)
}

func TestLandoffDescendsAndRefusesReferences(t *testing.T) {
	l := NewLandoff(nil, testConstraints())
	assert.ErrorIs(t, l.Land(), ErrNotActive)

	require.NoError(t, l.Activate(nil))
	_, _ = l.Update(stateAt(r3.Vec{Z: 3}, 0), nil)
	require.NoError(t, l.Land())

	cmd, err := l.Update(stateAt(r3.Vec{Z: 3}, 100*time.Millisecond), nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.95, cmd.Position.Z, 1e-9)
	assert.InDelta(t, -0.5, cmd.Velocity.Z, 1e-9)
	assert.Equal(t, "landing", l.Status().Message)

	assert.ErrorIs(t, l.SetReference(types.Reference{}), ErrLanding)

	require.NoError(t, l.Hover())
	assert.NoError(t, l.SetReference(types.Reference{Position: r3.Vec{Z: 3}}))
}
