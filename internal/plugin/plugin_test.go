package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uav-control-manager/internal/config"
	"uav-control-manager/internal/plugin/trackers"
	"uav-control-manager/internal/types"
)

type panickyTracker struct {
	*trackers.Null
}

func (panickyTracker) Update(types.VehicleState, *types.AttitudeCommand) (*types.PositionCommand, error) {
	panic("boom")
}

func TestBuildFromDefaultConfig(t *testing.T) {
	cfg := config.Default()
	env := EnvFromConfig(cfg)

	ts, err := BuildTrackers(cfg.Trackers, env)
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.Equal(t, 0, TrackerIndex(ts, cfg.NullTracker))
	assert.Equal(t, -1, TrackerIndex(ts, "Missing"))

	_, isLander := ts[TrackerIndex(ts, "LandoffTracker")].Tracker.(Lander)
	assert.True(t, isLander)

	cs, err := BuildControllers(cfg.Controllers, env)
	require.NoError(t, err)
	pd := cs[ControllerIndex(cs, "PDController")]
	assert.Equal(t, 1.5, pd.ElandThreshold)
	assert.True(t, pd.HumanSwitchable)
}

func TestUnknownKind(t *testing.T) {
	_, err := BuildTrackers([]config.TrackerConfig{{Name: "x", Kind: "mpc"}}, Env{})
	assert.True(t, errors.Is(err, ErrUnknownKind))

	_, err = NewController("lqr", nil, Env{})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestUpdateTrackerRecoversPanic(t *testing.T) {
	cmd, err := UpdateTracker(panickyTracker{trackers.NewNull()}, types.VehicleState{}, nil)
	assert.Nil(t, cmd)
	assert.ErrorIs(t, err, ErrPanic)
}
