package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundary(t *testing.T) {
	m := squareMesh(t)
	bdy, vertIds := m.Boundary()
	assert.Equal(t, 1, bdy.ElemDim)
	assert.Equal(t, 2, bdy.Dim)
	assert.Equal(t, 5, bdy.NElems())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, bdy.Etags)
	for v := 0; v < bdy.NVerts(); v++ {
		assert.Equal(t, m.Vert(vertIds[v]), bdy.Vert(v))
	}
}

func TestExtractTags(t *testing.T) {
	m := squareMesh(t)
	sub, err := m.ExtractTags([]int{1})
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Mesh.NElems())
	assert.Equal(t, []int{0}, sub.ElemIds)
	// The extracted triangle carries its two boundary sides and the
	// interface diagonal.
	assert.Equal(t, 3, sub.Mesh.NFaces())
	require.NoError(t, sub.Mesh.Check())
	assert.InDelta(t, 0.5, sub.Mesh.Vol(), 1e-12)

	_, err = m.ExtractTags([]int{99})
	assert.Error(t, err)
}

func TestExtractElems(t *testing.T) {
	m := gridMesh(t, 4)
	ids := []int{0, 1, 2, 3}
	sub, err := m.ExtractElems(ids)
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Mesh.NElems())
	assert.Equal(t, ids, sub.ElemIds)
	for v := 0; v < sub.Mesh.NVerts(); v++ {
		assert.Equal(t, m.Vert(sub.VertIds[v]), sub.Mesh.Vert(v))
	}

	_, err = m.ExtractElems([]int{-1})
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	t.Run("Triangles", func(t *testing.T) {
		m := squareMesh(t)
		s := m.Split()
		assert.Equal(t, 8, s.NElems())
		assert.Equal(t, 9, s.NVerts())
		assert.Equal(t, 10, s.NFaces())
		assert.InDelta(t, m.Vol(), s.Vol(), 1e-12)
		require.NoError(t, s.Check())
	})

	t.Run("Tets", func(t *testing.T) {
		m := cubeMesh(t)
		s := m.Split()
		assert.Equal(t, 48, s.NElems())
		assert.Equal(t, 48, s.NFaces())
		assert.InDelta(t, 1.0, s.Vol(), 1e-12)
		require.NoError(t, s.Check())
	})
}

func TestHilbertReorder(t *testing.T) {
	m := gridMesh(t, 4)
	vol := m.Vol()

	t.Run("OrderIsPermutation", func(t *testing.T) {
		order := m.ElemHilbertOrder()
		require.Len(t, order, m.NElems())
		seen := make([]bool, m.NElems())
		for _, e := range order {
			require.False(t, seen[e])
			seen[e] = true
		}
	})

	t.Run("ReorderPreservesMesh", func(t *testing.T) {
		vp, ep, fp := m.ReorderHilbert()
		assert.Len(t, vp, m.NVerts())
		assert.Len(t, ep, m.NElems())
		assert.Len(t, fp, m.NFaces())
		require.NoError(t, m.Check())
		assert.InDelta(t, vol, m.Vol(), 1e-12)
	})
}

func TestAutotag(t *testing.T) {
	t.Run("Square", func(t *testing.T) {
		m := squareMesh(t)
		// 30 degrees keeps the four sides and the diagonal apart.
		n, err := m.Autotag(30)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("CubeBoundary", func(t *testing.T) {
		bdy, _ := cubeMesh(t).Boundary()
		n, err := bdy.AutotagBoundary(45)
		require.NoError(t, err)
		assert.Equal(t, 6, n)
	})

	t.Run("NoFaces", func(t *testing.T) {
		m, err := New(2, 2,
			[]float64{0, 0, 1, 0, 0, 1},
			[]int{0, 1, 2}, []int{1}, []int{}, []int{})
		require.NoError(t, err)
		_, err = m.Autotag(30)
		assert.Error(t, err)
	})
}
