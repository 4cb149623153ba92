package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/remesh/mesh"
)

// tetCubeMesh is the unit cube split into 6 tets, with one boundary patch
// per cube side.
func tetCubeMesh(t *testing.T) *mesh.SimplexMesh {
	t.Helper()
	coords := []float64{
		0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0,
		0, 0, 1, 1, 0, 1, 1, 1, 1, 0, 1, 1,
	}
	elems := []int{
		0, 1, 2, 6,
		0, 2, 3, 6,
		0, 3, 7, 6,
		0, 7, 4, 6,
		0, 4, 5, 6,
		0, 5, 1, 6,
	}
	etags := []int{1, 1, 1, 1, 1, 1}
	m, err := mesh.New(3, 3, coords, elems, etags, []int{}, []int{})
	require.NoError(t, err)
	require.Equal(t, 12, m.AddBoundaryFaces())
	n, err := m.Autotag(45)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.NoError(t, m.Check())
	return m
}

func TestCurvatureMetric2d(t *testing.T) {
	m := diskMesh(t, 32)
	g, err := New(m, nil)
	require.NoError(t, err)

	ms, err := g.CurvatureMetric2d(m, 4, 2, 0.5, 0.01, 1, nil)
	require.NoError(t, err)
	require.Len(t, ms, m.NVerts())

	// Ring vertices: curvature ~ 1/R = 1, so the tangential size is 1/rH
	// and the normal size the fraction t of it.
	for v := 1; v < m.NVerts(); v++ {
		s := ms[v].Sizes()
		assert.InDelta(t, 0.125, s[0], 0.01, "vertex %d", v)
		assert.InDelta(t, 0.25, s[1], 0.01, "vertex %d", v)
	}

	// The center vertex starts at hMax and is only reduced by gradation.
	s := ms[0].Sizes()
	assert.Greater(t, s[0], 0.125)
	assert.LessOrEqual(t, s[1], 1.0+1e-9)

	t.Run("NormalSizeOverride", func(t *testing.T) {
		ms, err := g.CurvatureMetric2d(m, 4, 2, 0.5, 0.01, 1, map[int]float64{1: 0.05})
		require.NoError(t, err)
		s := ms[1].Sizes()
		assert.InDelta(t, 0.05, s[0], 0.005)
	})

	t.Run("BadArgs", func(t *testing.T) {
		_, err := g.CurvatureMetric2d(m, 0, 2, 0.5, 0.01, 1, nil)
		assert.Error(t, err)
		_, err = g.CurvatureMetric2d(m, 4, 1, 0.5, 0.01, 1, nil)
		assert.Error(t, err)
		_, err = g.CurvatureMetric2d(m, 4, 2, 0.5, 1, 0.01, nil)
		assert.Error(t, err)
	})
}

func TestCurvatureMetric3d(t *testing.T) {
	m := tetCubeMesh(t)
	g, err := New(m, nil)
	require.NoError(t, err)

	// Each patch is flat: the tangential sizes stay at hMax and the normal
	// size is the fraction t of hMax.
	ms, err := g.CurvatureMetric3d(m, 2, 3, 0.5, 0.01, 0.4, nil)
	require.NoError(t, err)
	require.Len(t, ms, m.NVerts())
	info, err := mesh.FieldInfo(m, ms)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, info.HMin, 0.02)
	assert.LessOrEqual(t, info.HMax, 0.4+1e-9)

	t.Run("WrongDim", func(t *testing.T) {
		g2, err := New(diskMesh(t, 8), nil)
		require.NoError(t, err)
		_, err = g2.CurvatureMetric3d(m, 2, 3, 0.5, 0.01, 0.4, nil)
		assert.Error(t, err)
		_, err = g.CurvatureMetric2d(m, 2, 3, 0.5, 0.01, 0.4, nil)
		assert.Error(t, err)
	})
}
