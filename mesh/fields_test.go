package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldTransfer(t *testing.T) {
	m := squareMesh(t)

	t.Run("ElemToVert", func(t *testing.T) {
		// Equal element volumes: shared vertices get the plain average.
		p1, err := m.ElemDataToVertexData([]float64{1, 3})
		require.NoError(t, err)
		assert.InDelta(t, 2.0, p1[0], 1e-12) // vertex 0 touches both
		assert.InDelta(t, 1.0, p1[1], 1e-12) // vertex 1 only element 0
		assert.InDelta(t, 2.0, p1[2], 1e-12)
		assert.InDelta(t, 3.0, p1[3], 1e-12)
	})

	t.Run("VertToElem", func(t *testing.T) {
		p0, err := m.VertexDataToElemData([]float64{0, 3, 6, 9})
		require.NoError(t, err)
		assert.InDelta(t, 3.0, p0[0], 1e-12) // (0+3+6)/3
		assert.InDelta(t, 5.0, p0[1], 1e-12) // (0+6+9)/3
	})

	t.Run("MultiComponent", func(t *testing.T) {
		p1, err := m.ElemDataToVertexData([]float64{1, 10, 3, 30})
		require.NoError(t, err)
		assert.Len(t, p1, 8)
		assert.InDelta(t, 2.0, p1[0], 1e-12)
		assert.InDelta(t, 20.0, p1[1], 1e-12)
	})

	t.Run("BadLength", func(t *testing.T) {
		_, err := m.ElemDataToVertexData([]float64{1, 2, 3})
		assert.Error(t, err)
		_, err = m.VertexDataToElemData([]float64{1, 2, 3})
		assert.Error(t, err)
	})
}

func TestGradient(t *testing.T) {
	m := gridMesh(t, 4)
	f := make([]float64, m.NVerts())
	for v := range f {
		p := m.Vert(v)
		f[v] = 2*p[0] + 3*p[1] - 1
	}
	// The least-squares fit is exact on linear fields.
	g, err := m.Gradient(f, 2)
	require.NoError(t, err)
	for v := 0; v < m.NVerts(); v++ {
		assert.InDelta(t, 2.0, g[2*v], 1e-9, "vertex %d", v)
		assert.InDelta(t, 3.0, g[2*v+1], 1e-9, "vertex %d", v)
	}
}

func TestHessian(t *testing.T) {
	m := gridMesh(t, 5)
	f := make([]float64, m.NVerts())
	for v := range f {
		p := m.Vert(v)
		f[v] = p[0]*p[0] + 2*p[1]*p[1] + 3*p[0]*p[1]
	}
	// The second-order fit is exact on quadratics: H = [2 4 3].
	h, err := m.Hessian(f, 2)
	require.NoError(t, err)
	for v := 0; v < m.NVerts(); v++ {
		assert.InDelta(t, 2.0, h[3*v], 1e-8, "vertex %d", v)
		assert.InDelta(t, 4.0, h[3*v+1], 1e-8, "vertex %d", v)
		assert.InDelta(t, 3.0, h[3*v+2], 1e-8, "vertex %d", v)
	}
}

func TestGradientL2Proj(t *testing.T) {
	t.Run("LinearExact", func(t *testing.T) {
		m := gridMesh(t, 4)
		f := make([]float64, m.NVerts())
		for v := range f {
			p := m.Vert(v)
			f[v] = 2*p[0] + 3*p[1] - 1
		}
		// Every element gradient is exact, so every projection is too.
		g, err := m.GradientL2Proj(f)
		require.NoError(t, err)
		for v := 0; v < m.NVerts(); v++ {
			assert.InDelta(t, 2.0, g[2*v], 1e-12, "vertex %d", v)
			assert.InDelta(t, 3.0, g[2*v+1], 1e-12, "vertex %d", v)
		}
	})

	t.Run("BadLength", func(t *testing.T) {
		m := gridMesh(t, 2)
		_, err := m.GradientL2Proj([]float64{1, 2, 3})
		assert.Error(t, err)
	})

	t.Run("BoundaryMesh", func(t *testing.T) {
		m := gridMesh(t, 2)
		bdy, _ := m.Boundary()
		_, err := bdy.GradientL2Proj(make([]float64, bdy.NVerts()))
		assert.Error(t, err)
	})
}

func TestHessianL2Proj(t *testing.T) {
	t.Run("LinearIsZero", func(t *testing.T) {
		m := gridMesh(t, 3)
		f := make([]float64, m.NVerts())
		for v := range f {
			p := m.Vert(v)
			f[v] = 5*p[0] - 2*p[1]
		}
		h, err := m.HessianL2Proj(f)
		require.NoError(t, err)
		for _, v := range h {
			assert.InDelta(t, 0.0, v, 1e-12)
		}
	})

	t.Run("QuadraticInterior", func(t *testing.T) {
		m := gridMesh(t, 6)
		f := make([]float64, m.NVerts())
		for v := range f {
			p := m.Vert(v)
			f[v] = p[0]*p[0] + 2*p[1]*p[1] + 3*p[0]*p[1]
		}
		// Both projections see full symmetric stencils two rings away from
		// the boundary, where H = [2 4 3] is recovered exactly.
		h, err := m.HessianL2Proj(f)
		require.NoError(t, err)
		for i := 2; i <= 4; i++ {
			for j := 2; j <= 4; j++ {
				v := i*7 + j
				assert.InDelta(t, 2.0, h[3*v], 1e-9, "vertex %d", v)
				assert.InDelta(t, 4.0, h[3*v+1], 1e-9, "vertex %d", v)
				assert.InDelta(t, 3.0, h[3*v+2], 1e-9, "vertex %d", v)
			}
		}
	})
}

func TestSmoothField(t *testing.T) {
	m := gridMesh(t, 4)
	f := make([]float64, m.NVerts())
	for v := range f {
		p := m.Vert(v)
		f[v] = 5*p[0] - 2*p[1]
	}
	// Linear fields are fixed points of the smoother.
	s, err := m.SmoothField(f, 2)
	require.NoError(t, err)
	for v := range f {
		assert.InDelta(t, f[v], s[v], 1e-9)
	}
}
