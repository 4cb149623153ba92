package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElemQuality(t *testing.T) {
	t.Run("EquilateralIsUnit", func(t *testing.T) {
		m, err := New(2, 2,
			[]float64{0, 0, 1, 0, 0.5, math.Sqrt(3.0) / 2.0},
			[]int{0, 1, 2}, []int{1}, []int{}, []int{})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, ElemGammas(m)[0], 1e-12)
	})

	t.Run("RightTriangle", func(t *testing.T) {
		m := squareMesh(t)
		// vol 0.5, edge lengths 1, 1, sqrt(2): q = 4 sqrt(3) * 0.5 / 4.
		g := ElemGammas(m)
		assert.InDelta(t, math.Sqrt(3.0)/2.0, g[0], 1e-12)
		assert.InDelta(t, g[0], g[1], 1e-12)
	})

	t.Run("RegularTetIsUnit", func(t *testing.T) {
		// Regular tetrahedron from alternating cube corners, edge sqrt(2).
		m, err := New(3, 3,
			[]float64{0, 0, 0, 1, 1, 0, 1, 0, 1, 0, 1, 1},
			[]int{0, 1, 3, 2}, []int{1}, []int{}, []int{})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, ElemGammas(m)[0], 1e-12)
	})

	t.Run("InvertedIsZero", func(t *testing.T) {
		m, err := New(2, 2,
			[]float64{0, 0, 1, 0, 0, 1},
			[]int{0, 1, 2}, []int{1}, []int{}, []int{})
		require.NoError(t, err)
		m.Elems[0], m.Elems[1] = m.Elems[1], m.Elems[0]
		assert.Equal(t, 0.0, ElemQuality(m, 0, isoField(m, 1)))
	})

	t.Run("MetricScaleInvariant", func(t *testing.T) {
		// Shape quality ignores uniform size mismatch.
		m := squareMesh(t)
		q1 := Qualities(m, isoField(m, 1))
		q2 := Qualities(m, isoField(m, 0.1))
		for e := range q1 {
			assert.InDelta(t, q1[e], q2[e], 1e-9)
		}
	})
}

func TestEdgeLengths(t *testing.T) {
	m := squareMesh(t)
	ls := EdgeLengths(m, isoField(m, 0.5))
	edges := m.Edges()
	require.Len(t, ls, len(edges))
	for i, ed := range edges {
		p0, p1 := m.Vert(ed[0]), m.Vert(ed[1])
		var l2 float64
		for k := 0; k < 2; k++ {
			d := p1[k] - p0[k]
			l2 += d * d
		}
		assert.InDelta(t, math.Sqrt(l2)/0.5, ls[i], 1e-12)
	}
}

func TestFaceSkewnesses(t *testing.T) {
	t.Run("SymmetricIsZero", func(t *testing.T) {
		// The square diagonal sits exactly between the two centroids.
		m := squareMesh(t)
		pairs, vals := m.FaceSkewnesses()
		require.Len(t, pairs, 1)
		require.Len(t, vals, 1)
		assert.Equal(t, [2]int{0, 1}, pairs[0])
		assert.InDelta(t, 0.0, vals[0], 1e-12)
	})

	t.Run("SkewedQuad", func(t *testing.T) {
		// Stretching one corner to (0, 2) offsets the face center from the
		// centroid line by exactly a tenth of the centroid distance.
		m, err := New(2, 2,
			[]float64{0, 0, 1, 0, 1, 1, 0, 2},
			[]int{0, 1, 2, 0, 2, 3}, []int{1, 1}, []int{}, []int{})
		require.NoError(t, err)
		_, vals := m.FaceSkewnesses()
		require.Len(t, vals, 1)
		assert.InDelta(t, 0.1, vals[0], 1e-12)
	})

	t.Run("UniformGrid", func(t *testing.T) {
		m := gridMesh(t, 3)
		pairs, vals := m.FaceSkewnesses()
		require.NotEmpty(t, pairs)
		require.Len(t, vals, len(pairs))
		for i, v := range vals {
			assert.InDelta(t, 0.0, v, 1e-12, "face %v", pairs[i])
		}
	})
}

func TestEdgeLengthRatios(t *testing.T) {
	m := squareMesh(t)
	r := m.EdgeLengthRatios()
	assert.InDelta(t, math.Sqrt2, r[0], 1e-12)
	assert.InDelta(t, math.Sqrt2, r[1], 1e-12)
}
