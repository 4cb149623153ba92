package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsoMetric(t *testing.T) {
	t.Run("Length", func(t *testing.T) {
		m := NewIsoMetric(0.1, 2)
		assert.InDelta(t, 10.0, m.Length([]float64{1, 0}), 1e-12)
		assert.InDelta(t, 10.0*math.Sqrt2, m.Length([]float64{1, 1}), 1e-12)
	})

	t.Run("Vol", func(t *testing.T) {
		assert.InDelta(t, 0.01, NewIsoMetric(0.1, 2).Vol(), 1e-12)
		assert.InDelta(t, 0.001, NewIsoMetric(0.1, 3).Vol(), 1e-12)
	})

	t.Run("Scale", func(t *testing.T) {
		// Scaling the tensor by 4 halves the size.
		m := NewIsoMetric(0.1, 2).Scale(4)
		assert.InDelta(t, 0.05, m.H, 1e-12)
	})

	t.Run("ScaleWithBounds", func(t *testing.T) {
		m := NewIsoMetric(0.1, 2).ScaleWithBounds(4, 0.08, 1.0)
		assert.InDelta(t, 0.08, m.H, 1e-12)
	})

	t.Run("Intersect", func(t *testing.T) {
		m := NewIsoMetric(0.1, 2).Intersect(NewIsoMetric(0.3, 2))
		assert.InDelta(t, 0.1, m.H, 1e-12)
	})

	t.Run("Interpolate", func(t *testing.T) {
		// Log-Euclidean interpolation of sizes is geometric.
		m := NewIsoMetric(0.1, 2).Interpolate(NewIsoMetric(0.4, 2), 0.5)
		assert.InDelta(t, 0.2, m.H, 1e-12)
	})

	t.Run("Check", func(t *testing.T) {
		require.NoError(t, NewIsoMetric(0.1, 2).Check())
		assert.Error(t, NewIsoMetric(-1, 2).Check())
		assert.Error(t, NewIsoMetric(math.NaN(), 2).Check())
		assert.Error(t, NewIsoMetric(0.1, 4).Check())
	})
}

func TestAnisoMetric2d(t *testing.T) {
	t.Run("FromSizes", func(t *testing.T) {
		m := AnisoMetric2dFromSizes(0.1, 0.2)
		assert.InDelta(t, 10.0, m.Length([]float64{1, 0}), 1e-12)
		assert.InDelta(t, 5.0, m.Length([]float64{0, 1}), 1e-12)
		assert.InDelta(t, 0.1*0.2, m.Vol(), 1e-12)
		s := m.Sizes()
		assert.InDelta(t, 0.1, s[0], 1e-9)
		assert.InDelta(t, 0.2, s[1], 1e-9)
	})

	t.Run("Intersect", func(t *testing.T) {
		a := AnisoMetric2dFromSizes(0.1, 0.4)
		b := AnisoMetric2dFromSizes(0.4, 0.1)
		m := a.Intersect(b)
		require.NoError(t, m.Check())
		s := m.Sizes()
		assert.InDelta(t, 0.1, s[0], 1e-9)
		assert.InDelta(t, 0.1, s[1], 1e-9)
	})

	t.Run("IntersectContainment", func(t *testing.T) {
		// The intersection is at least as restrictive as both inputs in
		// every direction.
		a := NewAnisoMetric2d([]float64{4, 1, 0.5})
		b := NewAnisoMetric2d([]float64{1, 9, -1})
		m := a.Intersect(b)
		require.NoError(t, m.Check())
		for _, e := range [][]float64{{1, 0}, {0, 1}, {1, 1}, {1, -2}, {3, 1}} {
			assert.GreaterOrEqual(t, m.Length(e)+1e-9, a.Length(e))
			assert.GreaterOrEqual(t, m.Length(e)+1e-9, b.Length(e))
		}
	})

	t.Run("Interpolate", func(t *testing.T) {
		a := AnisoMetric2dFromSizes(0.1, 0.1)
		b := AnisoMetric2dFromSizes(0.4, 0.4)
		m := a.Interpolate(b, 0.5)
		s := m.Sizes()
		assert.InDelta(t, 0.2, s[0], 1e-9)
		assert.InDelta(t, 0.2, s[1], 1e-9)
	})

	t.Run("Span", func(t *testing.T) {
		m := AnisoMetric2dFromSizes(0.1, 0.1).Span(2.0, math.E)
		// Sizes grow by 1 + l*ln(beta) = 3.
		assert.InDelta(t, 0.3, m.Sizes()[0], 1e-9)
	})

	t.Run("Check", func(t *testing.T) {
		require.NoError(t, AnisoMetric2dFromSizes(0.1, 0.2).Check())
		assert.Error(t, NewAnisoMetric2d([]float64{1, 1, 2}).Check()) // indefinite
		assert.Error(t, NewAnisoMetric2d([]float64{math.NaN(), 1, 0}).Check())
	})
}

func TestAnisoMetric3d(t *testing.T) {
	t.Run("FromSizes", func(t *testing.T) {
		m := AnisoMetric3dFromSizes(0.1, 0.2, 0.5)
		assert.InDelta(t, 10.0, m.Length([]float64{1, 0, 0}), 1e-12)
		assert.InDelta(t, 2.0, m.Length([]float64{0, 0, 1}), 1e-12)
		assert.InDelta(t, 0.01, m.Vol(), 1e-12)
		s := m.Sizes()
		assert.InDelta(t, 0.1, s[0], 1e-9)
		assert.InDelta(t, 0.5, s[2], 1e-9)
	})

	t.Run("ScaleWithBounds", func(t *testing.T) {
		m := AnisoMetric3dFromSizes(0.1, 0.2, 0.5).ScaleWithBounds(1, 0.15, 0.4)
		s := m.Sizes()
		assert.InDelta(t, 0.15, s[0], 1e-9)
		assert.InDelta(t, 0.4, s[2], 1e-9)
		require.NoError(t, m.Check())
	})

	t.Run("Intersect", func(t *testing.T) {
		a := AnisoMetric3dFromSizes(0.1, 0.4, 0.4)
		b := AnisoMetric3dFromSizes(0.4, 0.1, 0.4)
		s := a.Intersect(b).Sizes()
		assert.InDelta(t, 0.1, s[0], 1e-9)
		assert.InDelta(t, 0.1, s[1], 1e-9)
		assert.InDelta(t, 0.4, s[2], 1e-9)
	})
}

func TestEdgeLength(t *testing.T) {
	t.Run("Uniform", func(t *testing.T) {
		m := NewIsoMetric(0.1, 2)
		assert.InDelta(t, 10.0, EdgeLength([]float64{1, 0}, m, m), 1e-12)
	})

	t.Run("GeometricQuadrature", func(t *testing.T) {
		m0 := NewIsoMetric(0.1, 2)
		m1 := NewIsoMetric(0.2, 2)
		// l0 = 10, l1 = 5, r = 2: l = 10 * 1 / (2 ln 2).
		want := 10.0 / (2.0 * math.Log(2.0))
		assert.InDelta(t, want, EdgeLength([]float64{1, 0}, m0, m1), 1e-9)
		assert.InDelta(t, want, EdgeLength([]float64{1, 0}, m1, m0), 1e-9)
	})
}

func TestFromHessian(t *testing.T) {
	t.Run("NoRescale", func(t *testing.T) {
		// exponent 0 keeps the eigenvalue ratio of |H|.
		m := FromHessian2d([]float64{8, 2, 0}, 0)
		require.NoError(t, m.Check())
		s := m.Sizes()
		assert.InDelta(t, 2.0, s[1]/s[0], 1e-9)
	})

	t.Run("NegativeEigenvalues", func(t *testing.T) {
		a := FromHessian2d([]float64{8, 2, 0}, 0)
		b := FromHessian2d([]float64{-8, -2, 0}, 0)
		assert.InDelta(t, a.Vol(), b.Vol(), 1e-12)
	})

	t.Run("LpExponent", func(t *testing.T) {
		assert.InDelta(t, -2.0/6.0, LpExponent(2, 2), 1e-12)
		assert.InDelta(t, -2.0/7.0, LpExponent(2, 3), 1e-12)
		assert.Equal(t, 0.0, LpExponent(0, 3))
	})

	t.Run("Hessian3d", func(t *testing.T) {
		m := FromHessian3d([]float64{2, 4, 8, 0, 0, 0}, LpExponent(2, 3))
		require.NoError(t, m.Check())
	})
}
