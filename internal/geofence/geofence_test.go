package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func v(x, y, z float64) r3.Vec { return r3.Vec{X: x, Y: y, Z: z} }

// uShape is a concave "U": two 2 m wide arms joined at the bottom.
func uShape() []r3.Vec {
	return []r3.Vec{
		v(0, 0, 0), v(10, 0, 0), v(10, 10, 0), v(8, 10, 0),
		v(8, 2, 0), v(2, 2, 0), v(2, 10, 0), v(0, 10, 0),
	}
}

func square(x0, y0, x1, y1 float64) []r3.Vec {
	return []r3.Vec{v(x0, y0, 0), v(x1, y0, 0), v(x1, y1, 0), v(x0, y1, 0)}
}

func TestNewRejectsDegenerateBorder(t *testing.T) {
	_, err := New([]r3.Vec{v(0, 0, 0), v(1, 0, 0)}, nil, 0, 10)
	assert.ErrorIs(t, err, ErrBorderTooSmall)
}

func TestPointValidity(t *testing.T) {
	g, err := New(uShape(), nil, 0.5, 20)
	require.NoError(t, err)

	assert.True(t, g.IsPointValid2d(v(1, 9, 0)))
	assert.False(t, g.IsPointValid2d(v(5, 5, 0)), "inside the notch")
	assert.False(t, g.IsPointValid2d(v(-1, 5, 0)))

	assert.True(t, g.IsPointValid3d(v(1, 9, 2)))
	assert.False(t, g.IsPointValid3d(v(1, 9, 0.1)), "below min height")
	assert.False(t, g.IsPointValid3d(v(1, 9, 25)), "above max height")
}

func TestPathThatLeavesAndReentersIsRejected(t *testing.T) {
	g, err := New(uShape(), nil, 0.5, 20)
	require.NoError(t, err)

	from, to := v(1, 9, 2), v(9, 9, 2)
	require.True(t, g.IsPointValid2d(to))
	require.True(t, g.IsPointValid3d(to))

	assert.False(t, g.IsPathValid2d(from, to))
	assert.False(t, g.IsPathValid3d(from, to))

	assert.True(t, g.IsPathValid2d(v(1, 9, 2), v(1, 1, 2)))
	assert.True(t, g.IsPathValid3d(v(1, 1, 2), v(9, 1, 2)))
}

func TestObstacles(t *testing.T) {
	obstacle := Obstacle{Polygon: square(4, 4, 6, 6), MinZ: 0, MaxZ: 3}
	g, err := New(square(0, 0, 10, 10), []Obstacle{obstacle}, 0, 20)
	require.NoError(t, err)

	assert.False(t, g.IsPointValid2d(v(5, 5, 10)))
	assert.False(t, g.IsPointValid3d(v(5, 5, 2)))
	assert.True(t, g.IsPointValid3d(v(5, 5, 5)), "above the obstacle")

	assert.False(t, g.IsPathValid3d(v(1, 5, 2), v(9, 5, 2)))
	assert.True(t, g.IsPathValid3d(v(1, 5, 5), v(9, 5, 5)))
	assert.False(t, g.IsPathValid2d(v(1, 5, 5), v(9, 5, 5)))
}

func TestSetMinHeight(t *testing.T) {
	g, err := New(square(0, 0, 10, 10), nil, 0.5, 20)
	require.NoError(t, err)

	require.NoError(t, g.SetMinHeight(3))
	assert.Equal(t, 3.0, g.MinHeight())
	assert.False(t, g.IsPointValid3d(v(5, 5, 2)))

	assert.Error(t, g.SetMinHeight(30))
	assert.Equal(t, 3.0, g.MinHeight())
}

func TestAccessorsCopy(t *testing.T) {
	g, err := New(square(0, 0, 10, 10), nil, 0, 1)
	require.NoError(t, err)

	b := g.Border()
	b[0] = v(100, 100, 0)
	assert.Equal(t, v(0, 0, 0), g.Border()[0])
}
