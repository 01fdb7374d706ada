package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uav-control-manager/internal/types"
)

func TestEquivalentReference(t *testing.T) {
	f := newFixture(t)
	val := f.validator()
	c := f.cfg.Constraints // horizontal accel 2, descending accel 1

	eq := val.EquivalentReference(types.VelocityReference{Velocity: v3(2, 0, -0.5)}, f.state, c)

	// horizontal: 1.5 * 2/2 + 1 = 2.5 s at 2 m/s
	assert.InDelta(t, 1+5, eq.Position.X, 1e-9)
	assert.InDelta(t, 5, eq.Position.Y, 1e-9)
	// vertical: 1.5 * 0.5/1 + 1 = 1.75 s at -0.5 m/s
	assert.InDelta(t, 2-0.875, eq.Position.Z, 1e-9)
}

func TestEquivalentReferenceTunable(t *testing.T) {
	f := newFixture(t)
	f.cfg.VelocityReference.StoppingFactor = 0
	f.cfg.VelocityReference.TimeMargin = 2

	eq := f.validator().EquivalentReference(types.VelocityReference{
		Velocity:    v3(0, 1, 0),
		UseAltitude: true,
		Altitude:    4,
		UseHeading:  true,
		Heading:     1.2,
	}, f.state, f.cfg.Constraints)

	assert.InDelta(t, 7, eq.Position.Y, 1e-9)
	assert.Equal(t, 4.0, eq.Position.Z)
	assert.Equal(t, 1.2, eq.Heading)
}

func TestValidateVelocityReference(t *testing.T) {
	f := newFixture(t)
	val := f.validator()

	out, err := val.ValidateVelocityReference(types.VelocityReference{FrameID: "world", Velocity: v3(1, 0, 0)}, f.state, f.cfg.Constraints, f.state.Position)
	require.NoError(t, err)
	assert.Equal(t, v3(1, 0, 0), out.Velocity, "tracker keeps velocity semantics")

	// 10 m/s towards the near border stops outside the area
	_, err = val.ValidateVelocityReference(types.VelocityReference{Velocity: v3(0, -10, 0)}, f.state, f.cfg.Constraints, f.state.Position)
	assert.ErrorIs(t, err, ErrGeofence)
}
