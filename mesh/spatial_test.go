package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearestElem(t *testing.T) {
	m := gridMesh(t, 4)

	t.Run("Inside", func(t *testing.T) {
		e, bary, viol := m.NearestElem([]float64{0.51, 0.49})
		require.GreaterOrEqual(t, e, 0)
		assert.Equal(t, 0.0, viol)
		var sum float64
		for _, b := range bary {
			assert.GreaterOrEqual(t, b, 0.0)
			sum += b
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	})

	t.Run("Outside", func(t *testing.T) {
		e, _, viol := m.NearestElem([]float64{1.5, 0.5})
		require.GreaterOrEqual(t, e, 0)
		assert.Greater(t, viol, 0.0)
	})
}

func TestNearestVert(t *testing.T) {
	m := gridMesh(t, 4)
	v, d := m.NearestVert([]float64{0.01, 0.01})
	assert.Equal(t, 0, v)
	assert.InDelta(t, 0.01414, d, 1e-4)
}

func TestInterpolateLinear(t *testing.T) {
	src := gridMesh(t, 4)
	dst := gridMesh(t, 3)
	f := make([]float64, src.NVerts())
	for v := range f {
		p := src.Vert(v)
		f[v] = 2*p[0] - p[1] + 0.5
	}

	t.Run("LinearExact", func(t *testing.T) {
		g, err := src.InterpolateLinear(dst, f, 1e-9)
		require.NoError(t, err)
		for v := 0; v < dst.NVerts(); v++ {
			p := dst.Vert(v)
			assert.InDelta(t, 2*p[0]-p[1]+0.5, g[v], 1e-9, "vertex %d", v)
		}
	})

	t.Run("FallbackOutside", func(t *testing.T) {
		far, err := New(2, 2,
			[]float64{2, 0, 3, 0, 2, 1},
			[]int{0, 1, 2}, []int{1}, []int{}, []int{})
		require.NoError(t, err)
		g, err := src.InterpolateLinear(far, f, 1e-9)
		require.NoError(t, err)
		// (2,0) falls back to the nearest source vertex (1,0).
		assert.InDelta(t, 2.5, g[0], 1e-9)
	})

	t.Run("BadLength", func(t *testing.T) {
		_, err := src.InterpolateLinear(dst, f[:3], 1e-9)
		assert.Error(t, err)
	})
}

func TestInterpolateNearest(t *testing.T) {
	src := gridMesh(t, 2)
	f := make([]float64, src.NVerts())
	for v := range f {
		f[v] = float64(v)
	}
	g, err := src.InterpolateNearest(src, f)
	require.NoError(t, err)
	assert.Equal(t, f, g)
}

func TestTransferEtags(t *testing.T) {
	src := squareMesh(t)
	dst := squareMesh(t).Split()
	require.NoError(t, src.TransferEtags(dst))
	// Children inherit the tag of their parent triangle.
	for e := 0; e < dst.NElems(); e++ {
		c := dst.ElemCenter(e)
		want := 1
		if c[1] > c[0] { // above the diagonal
			want = 2
		}
		assert.Equal(t, want, dst.Etags[e], "element %d", e)
	}
}
