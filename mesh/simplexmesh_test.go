package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareMesh is the unit square split into two triangles with distinct
// element tags; the diagonal is the tagged internal interface.
func squareMesh(t *testing.T) *SimplexMesh {
	t.Helper()
	m, err := New(2, 2,
		[]float64{0, 0, 1, 0, 1, 1, 0, 1},
		[]int{0, 1, 2, 0, 2, 3},
		[]int{1, 2},
		[]int{0, 1, 1, 2, 2, 3, 3, 0, 0, 2},
		[]int{1, 2, 3, 4, 5})
	require.NoError(t, err)
	return m
}

// gridMesh is a structured n x n triangulation of the unit square with
// outward-oriented boundary faces tagged 1..4 (bottom, right, top, left).
func gridMesh(t *testing.T, n int) *SimplexMesh {
	t.Helper()
	vid := func(i, j int) int { return i*(n+1) + j }
	coords := make([]float64, 0, 2*(n+1)*(n+1))
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			coords = append(coords, float64(i)/float64(n), float64(j)/float64(n))
		}
	}
	elems := make([]int, 0, 6*n*n)
	etags := make([]int, 0, 2*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a, b := vid(i, j), vid(i+1, j)
			c, d := vid(i+1, j+1), vid(i, j+1)
			elems = append(elems, a, b, c, a, c, d)
			etags = append(etags, 1, 1)
		}
	}
	faces := make([]int, 0, 8*n)
	ftags := make([]int, 0, 4*n)
	for k := 0; k < n; k++ {
		faces = append(faces, vid(k, 0), vid(k+1, 0))
		ftags = append(ftags, 1)
		faces = append(faces, vid(n, k), vid(n, k+1))
		ftags = append(ftags, 2)
		faces = append(faces, vid(k+1, n), vid(k, n))
		ftags = append(ftags, 3)
		faces = append(faces, vid(0, k+1), vid(0, k))
		ftags = append(ftags, 4)
	}
	m, err := New(2, 2, coords, elems, etags, faces, ftags)
	require.NoError(t, err)
	return m
}

// cubeMesh splits the unit cube into 6 tetrahedra around the main diagonal.
func cubeMesh(t *testing.T) *SimplexMesh {
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
	m, err := New(3, 3, coords, elems, etags, []int{}, []int{})
	require.NoError(t, err)
	require.Equal(t, 12, m.AddBoundaryFaces())
	require.NoError(t, m.Check())
	return m
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name   string
		dim    int
		coords []float64
		elems  []int
	}{
		{"BadDim", 4, []float64{0, 0, 0, 0}, []int{}},
		{"BadCoordsLen", 2, []float64{0, 0, 1}, []int{}},
		{"BadElemIndex", 2, []float64{0, 0, 1, 0, 0, 1}, []int{0, 1, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			etags := make([]int, len(tc.elems)/3)
			_, err := New(tc.dim, 2, tc.coords, tc.elems, etags, []int{}, []int{})
			assert.Error(t, err)
		})
	}
}

func TestVolumes(t *testing.T) {
	m := squareMesh(t)
	assert.InDelta(t, 1.0, m.Vol(), 1e-12)
	assert.InDelta(t, 0.5, m.ElemVol(0), 1e-12)

	var sum float64
	for _, w := range m.VertVols() {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	m3 := cubeMesh(t)
	assert.InDelta(t, 1.0, m3.Vol(), 1e-12)
}

func TestCheck(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, squareMesh(t).Check())
		require.NoError(t, gridMesh(t, 4).Check())
	})

	t.Run("InvertedElement", func(t *testing.T) {
		m := squareMesh(t)
		m.Elems[0], m.Elems[1] = m.Elems[1], m.Elems[0]
		assert.Error(t, m.Check())
	})

	t.Run("MissingBoundaryFace", func(t *testing.T) {
		m := squareMesh(t)
		m.Faces = m.Faces[:8]
		m.Ftags = m.Ftags[:4]
		// The internal interface between tags 1 and 2 is no longer tagged.
		assert.Error(t, m.Check())
	})

	t.Run("SpuriousInternalFace", func(t *testing.T) {
		m := squareMesh(t)
		m.Etags[1] = 1 // same tag on both sides of the tagged diagonal
		assert.Error(t, m.Check())
	})

	t.Run("OrphanTaggedFace", func(t *testing.T) {
		m := squareMesh(t)
		m.Faces = append(m.Faces, 1, 3)
		m.Ftags = append(m.Ftags, 9)
		assert.Error(t, m.Check())
	})
}

func TestAddBoundaryFaces(t *testing.T) {
	m, err := New(2, 2,
		[]float64{0, 0, 1, 0, 1, 1, 0, 1},
		[]int{0, 1, 2, 0, 2, 3},
		[]int{1, 1},
		[]int{}, []int{})
	require.NoError(t, err)
	assert.Equal(t, 4, m.AddBoundaryFaces())
	require.NoError(t, m.Check())

	// Outward orientation: every face normal points away from its element.
	for f := 0; f < m.NFaces(); f++ {
		n := m.FaceNormal(f)
		c := m.FaceCenter(f)
		// For the unit square all outward normals satisfy n . (c - center) > 0.
		dot := n[0]*(c[0]-0.5) + n[1]*(c[1]-0.5)
		assert.Greater(t, dot, 0.0, "face %d", f)
	}
}

func TestConnectivity(t *testing.T) {
	m := squareMesh(t)

	t.Run("VertToElems", func(t *testing.T) {
		assert.ElementsMatch(t, []int{0, 1}, m.VertElems(0))
		assert.ElementsMatch(t, []int{0}, m.VertElems(1))
	})

	t.Run("FaceToElems", func(t *testing.T) {
		e0, e1 := m.FaceElems([]int{0, 2})
		assert.ElementsMatch(t, []int{0, 1}, []int{e0, e1})
		e0, e1 = m.FaceElems([]int{0, 1})
		assert.Equal(t, 0, e0)
		assert.Equal(t, -1, e1)
	})

	t.Run("ElemNeighbors", func(t *testing.T) {
		n := m.ElemNeighbors(0)
		assert.Contains(t, n, 1)
		assert.Contains(t, n, -1)
	})

	t.Run("Edges", func(t *testing.T) {
		assert.Len(t, m.Edges(), 5)
		assert.ElementsMatch(t, []int{1, 2, 3}, m.VertNeighbors(0))
	})
}

func TestCacheInvalidation(t *testing.T) {
	m, err := New(2, 2,
		[]float64{0, 0, 1, 0, 1, 1, 0, 1},
		[]int{0, 1, 2, 0, 2, 3},
		[]int{1, 1},
		[]int{}, []int{})
	require.NoError(t, err)
	assert.Len(t, m.Edges(), 5)
	m.ComputeVertexToElems()

	m.AddBoundaryFaces()
	// The structural edit cleared the caches; recomputed values match a
	// fresh mesh.
	assert.Len(t, m.Edges(), 5)
	assert.ElementsMatch(t, []int{0, 1}, m.VertElems(0))

	split := m.Split()
	assert.Len(t, split.Edges(), 16)
}

func TestFaceNormal3d(t *testing.T) {
	m := cubeMesh(t)
	for f := 0; f < m.NFaces(); f++ {
		n := m.FaceNormal(f)
		c := m.FaceCenter(f)
		dot := n[0]*(c[0]-0.5) + n[1]*(c[1]-0.5) + n[2]*(c[2]-0.5)
		assert.Greater(t, dot, 0.0, "face %d", f)
		var l2 float64
		for _, x := range n {
			l2 += x * x
		}
		assert.InDelta(t, 1.0, math.Sqrt(l2), 1e-12)
	}
}
