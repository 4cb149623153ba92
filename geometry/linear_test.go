package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/remesh/mesh"
)

// diskMesh is a fan triangulation of the unit disk: a center vertex, n ring
// vertices and n boundary edges tagged 1.
func diskMesh(t *testing.T, n int) *mesh.SimplexMesh {
	t.Helper()
	coords := make([]float64, 0, 2*(n+1))
	coords = append(coords, 0, 0)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		coords = append(coords, math.Cos(a), math.Sin(a))
	}
	elems := make([]int, 0, 3*n)
	etags := make([]int, 0, n)
	faces := make([]int, 0, 2*n)
	ftags := make([]int, 0, n)
	for i := 0; i < n; i++ {
		j := 1 + (i+1)%n
		elems = append(elems, 0, 1+i, j)
		etags = append(etags, 1)
		faces = append(faces, 1+i, j)
		ftags = append(ftags, 1)
	}
	m, err := mesh.New(2, 2, coords, elems, etags, faces, ftags)
	require.NoError(t, err)
	require.NoError(t, m.Check())
	return m
}

// boxMesh is the unit square split along the diagonal, sides tagged 1..4.
func boxMesh(t *testing.T) *mesh.SimplexMesh {
	t.Helper()
	m, err := mesh.New(2, 2,
		[]float64{0, 0, 1, 0, 1, 1, 0, 1},
		[]int{0, 1, 2, 0, 2, 3},
		[]int{1, 1},
		[]int{0, 1, 1, 2, 2, 3, 3, 0},
		[]int{1, 2, 3, 4})
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	t.Run("FromMesh", func(t *testing.T) {
		g, err := New(diskMesh(t, 16), nil)
		require.NoError(t, err)
		require.NotNil(t, g)
	})

	t.Run("ExplicitBoundary", func(t *testing.T) {
		m := boxMesh(t)
		bdy, _ := m.Boundary()
		g, err := New(m, bdy)
		require.NoError(t, err)
		q, d, err := g.Project([]float64{0.5, -1}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, q[0], 1e-12)
		assert.InDelta(t, 0.0, q[1], 1e-12)
		assert.InDelta(t, 1.0, d, 1e-12)
	})

	t.Run("BadBoundaryDim", func(t *testing.T) {
		m := boxMesh(t)
		bdy, err := m.ExtractTags([]int{1})
		require.NoError(t, err)
		// The extracted triangle is a volume mesh, not a boundary mesh.
		_, err = New(m, bdy.Mesh)
		assert.Error(t, err)
	})

	t.Run("MissingPatchTag", func(t *testing.T) {
		m := boxMesh(t)
		bdy, _ := m.Boundary()
		for i := range bdy.Etags {
			bdy.Etags[i] = 9
		}
		// The mesh face tags 1..4 have no matching geometry patch.
		_, err := New(m, bdy)
		assert.Error(t, err)
	})

	t.Run("NilMesh", func(t *testing.T) {
		_, err := New(nil, nil)
		assert.Error(t, err)
	})
}

func TestProject(t *testing.T) {
	g, err := New(diskMesh(t, 32), nil)
	require.NoError(t, err)

	t.Run("Outside", func(t *testing.T) {
		q, d, err := g.Project([]float64{2, 0}, 0)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, q[0], 1e-12)
		assert.InDelta(t, 0.0, q[1], 1e-12)
		assert.InDelta(t, 1.0, d, 1e-12)
	})

	t.Run("Inside", func(t *testing.T) {
		// From the center every polygon point is at least cos(pi/32) away.
		_, d, err := g.Project([]float64{0, 0}, 0)
		require.NoError(t, err)
		assert.InDelta(t, math.Cos(math.Pi/32), d, 1e-9)
	})

	t.Run("OnBoundary", func(t *testing.T) {
		q, d, err := g.Project([]float64{1, 0}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, d, 1e-12)
		assert.InDelta(t, 1.0, q[0], 1e-12)
	})

	t.Run("UnknownTag", func(t *testing.T) {
		_, _, err := g.Project([]float64{2, 0}, 99)
		assert.Error(t, err)
	})

	t.Run("BadDimension", func(t *testing.T) {
		_, _, err := g.Project([]float64{2, 0, 0}, 0)
		assert.Error(t, err)
	})
}

func TestProjectByTag(t *testing.T) {
	g, err := New(boxMesh(t), nil)
	require.NoError(t, err)

	// Projection onto the far patch, not the nearest one.
	q, d, err := g.Project([]float64{0.5, -1}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, q[0], 1e-12)
	assert.InDelta(t, 1.0, q[1], 1e-12)
	assert.InDelta(t, 2.0, d, 1e-12)
}

func TestNormal(t *testing.T) {
	g, err := New(boxMesh(t), nil)
	require.NoError(t, err)

	cases := []struct {
		name string
		pt   []float64
		tag  int
		want []float64
	}{
		{"Bottom", []float64{0.5, -1}, 1, []float64{0, -1}},
		{"Right", []float64{2, 0.5}, 2, []float64{1, 0}},
		{"Top", []float64{0.5, 2}, 3, []float64{0, 1}},
		{"Left", []float64{-1, 0.5}, 4, []float64{-1, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := g.Normal(tc.pt, tc.tag)
			require.NoError(t, err)
			assert.InDelta(t, tc.want[0], n[0], 1e-12)
			assert.InDelta(t, tc.want[1], n[1], 1e-12)
		})
	}
}

func TestGeometryDeviation(t *testing.T) {
	m := diskMesh(t, 32)
	g, err := New(m, nil)
	require.NoError(t, err)

	// The mesh the geometry was built from deviates by nothing.
	assert.InDelta(t, 0.0, g.MaxDistance(m), 1e-12)
	assert.InDelta(t, 0.0, g.MaxNormalAngle(m), 1e-9)

	// A coarser boundary mesh of the same disk deviates in angle.
	coarse := diskMesh(t, 8)
	assert.Greater(t, g.MaxNormalAngle(coarse), 5.0)
}
