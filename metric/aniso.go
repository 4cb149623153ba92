package metric

import (
	"fmt"
	"math"
)

// AnisoMetric2d is a 2D anisotropic metric tensor with components stored as
// [xx yy xy].
type AnisoMetric2d [3]float64

// AnisoMetric3d is a 3D anisotropic metric tensor with components stored as
// [xx yy zz xy yz xz].
type AnisoMetric3d [6]float64

// NewAnisoMetric2d builds a metric from its 3 components [xx yy xy].
func NewAnisoMetric2d(c []float64) AnisoMetric2d {
	return AnisoMetric2d{c[0], c[1], c[2]}
}

// NewAnisoMetric3d builds a metric from its 6 components
// [xx yy zz xy yz xz].
func NewAnisoMetric3d(c []float64) AnisoMetric3d {
	return AnisoMetric3d{c[0], c[1], c[2], c[3], c[4], c[5]}
}

// AnisoMetric2dFromSizes returns the axis-aligned metric with target sizes
// hx and hy.
func AnisoMetric2dFromSizes(hx, hy float64) AnisoMetric2d {
	return AnisoMetric2d{1.0 / (hx * hx), 1.0 / (hy * hy), 0}
}

// AnisoMetric3dFromSizes returns the axis-aligned metric with target sizes
// hx, hy and hz.
func AnisoMetric3dFromSizes(hx, hy, hz float64) AnisoMetric3d {
	return AnisoMetric3d{1.0 / (hx * hx), 1.0 / (hy * hy), 1.0 / (hz * hz), 0, 0, 0}
}

func (m AnisoMetric2d) N() int   { return 3 }
func (m AnisoMetric2d) Dim() int { return 2 }
func (m AnisoMetric3d) N() int   { return 6 }
func (m AnisoMetric3d) Dim() int { return 3 }

func (m AnisoMetric2d) Length(e []float64) float64 {
	q := m[0]*e[0]*e[0] + m[1]*e[1]*e[1] + 2.0*m[2]*e[0]*e[1]
	return math.Sqrt(math.Max(q, 0))
}

func (m AnisoMetric3d) Length(e []float64) float64 {
	q := m[0]*e[0]*e[0] + m[1]*e[1]*e[1] + m[2]*e[2]*e[2] +
		2.0*(m[3]*e[0]*e[1]+m[4]*e[1]*e[2]+m[5]*e[0]*e[2])
	return math.Sqrt(math.Max(q, 0))
}

func (m AnisoMetric2d) det() float64 {
	return m[0]*m[1] - m[2]*m[2]
}

func (m AnisoMetric3d) det() float64 {
	return m[0]*(m[1]*m[2]-m[4]*m[4]) -
		m[3]*(m[3]*m[2]-m[4]*m[5]) +
		m[5]*(m[3]*m[4]-m[1]*m[5])
}

func (m AnisoMetric2d) Vol() float64 {
	return 1.0 / math.Sqrt(math.Max(m.det(), minSize))
}

func (m AnisoMetric3d) Vol() float64 {
	return 1.0 / math.Sqrt(math.Max(m.det(), minSize))
}

func (m AnisoMetric2d) Scale(f float64) AnisoMetric2d {
	return AnisoMetric2d{m[0] * f, m[1] * f, m[2] * f}
}

func (m AnisoMetric3d) Scale(f float64) AnisoMetric3d {
	var out AnisoMetric3d
	for i, c := range m {
		out[i] = c * f
	}
	return out
}

func (m AnisoMetric2d) ScaleWithBounds(f, hMin, hMax float64) AnisoMetric2d {
	s := symClampSizes(symFromComps(2, m.Scale(f).Components()), hMin, hMax)
	return NewAnisoMetric2d(compsFromSym(2, s))
}

func (m AnisoMetric3d) ScaleWithBounds(f, hMin, hMax float64) AnisoMetric3d {
	s := symClampSizes(symFromComps(3, m.Scale(f).Components()), hMin, hMax)
	return NewAnisoMetric3d(compsFromSym(3, s))
}

func (m AnisoMetric2d) Intersect(o AnisoMetric2d) AnisoMetric2d {
	s := symIntersect(symFromComps(2, m.Components()), symFromComps(2, o.Components()))
	return NewAnisoMetric2d(compsFromSym(2, s))
}

func (m AnisoMetric3d) Intersect(o AnisoMetric3d) AnisoMetric3d {
	s := symIntersect(symFromComps(3, m.Components()), symFromComps(3, o.Components()))
	return NewAnisoMetric3d(compsFromSym(3, s))
}

func logEuclidean(dim int, a, b float64, ca, cb []float64) []float64 {
	la := symFunc(symFromComps(dim, ca), func(l float64) float64 {
		return math.Log(clamp(l, 1.0/(maxSize*maxSize), 1.0/(minSize*minSize)))
	})
	lb := symFunc(symFromComps(dim, cb), func(l float64) float64 {
		return math.Log(clamp(l, 1.0/(maxSize*maxSize), 1.0/(minSize*minSize)))
	})
	sum := symFromComps(dim, make([]float64, dim*(dim+1)/2))
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			sum.SetSym(i, j, a*la.At(i, j)+b*lb.At(i, j))
		}
	}
	return compsFromSym(dim, symFunc(sum, math.Exp))
}

func (m AnisoMetric2d) Interpolate(o AnisoMetric2d, t float64) AnisoMetric2d {
	return NewAnisoMetric2d(logEuclidean(2, 1.0-t, t, m.Components(), o.Components()))
}

func (m AnisoMetric3d) Interpolate(o AnisoMetric3d, t float64) AnisoMetric3d {
	return NewAnisoMetric3d(logEuclidean(3, 1.0-t, t, m.Components(), o.Components()))
}

func (m AnisoMetric2d) Span(l, beta float64) AnisoMetric2d {
	c := 1.0 + l*math.Log(beta)
	return m.Scale(1.0 / (c * c))
}

func (m AnisoMetric3d) Span(l, beta float64) AnisoMetric3d {
	c := 1.0 + l*math.Log(beta)
	return m.Scale(1.0 / (c * c))
}

func (m AnisoMetric2d) Sizes() []float64 {
	return symSizes(symFromComps(2, m.Components()))
}

func (m AnisoMetric3d) Sizes() []float64 {
	return symSizes(symFromComps(3, m.Components()))
}

func (m AnisoMetric2d) Components() []float64 { return []float64{m[0], m[1], m[2]} }

func (m AnisoMetric3d) Components() []float64 {
	return []float64{m[0], m[1], m[2], m[3], m[4], m[5]}
}

func checkComps(dim int, c []float64) error {
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("anisotropic metric: non-finite component %v", v)
		}
	}
	vals, _ := eigSym(symFromComps(dim, c))
	for _, l := range vals {
		if !(l > 0) {
			return fmt.Errorf("anisotropic metric: not positive definite (eigenvalue %v)", l)
		}
	}
	return nil
}

func (m AnisoMetric2d) Check() error { return checkComps(2, m.Components()) }
func (m AnisoMetric3d) Check() error { return checkComps(3, m.Components()) }

// FromHessian2d converts a Hessian [xx yy xy] into an error-optimal metric:
// the absolute value of the Hessian scaled by vol^exponent, with
// exponent = -2/(2p+d) for an Lp-norm target (exponent 0 leaves the Hessian
// magnitude unscaled).
func FromHessian2d(h []float64, exponent float64) AnisoMetric2d {
	s := symFunc(symFromComps(2, h), func(l float64) float64 {
		return clamp(math.Abs(l), 1.0/(maxSize*maxSize), 1.0/(minSize*minSize))
	})
	m := NewAnisoMetric2d(compsFromSym(2, s))
	scale := math.Pow(m.Vol(), exponent)
	if !math.IsNaN(scale) && !math.IsInf(scale, 0) {
		m = m.Scale(scale)
	}
	return m
}

// FromHessian3d converts a Hessian [xx yy zz xy yz xz] into an error-optimal
// metric; see FromHessian2d.
func FromHessian3d(h []float64, exponent float64) AnisoMetric3d {
	s := symFunc(symFromComps(3, h), func(l float64) float64 {
		return clamp(math.Abs(l), 1.0/(maxSize*maxSize), 1.0/(minSize*minSize))
	})
	m := NewAnisoMetric3d(compsFromSym(3, s))
	scale := math.Pow(m.Vol(), exponent)
	if !math.IsNaN(scale) && !math.IsInf(scale, 0) {
		m = m.Scale(scale)
	}
	return m
}

// LpExponent returns the Hessian-to-metric exponent -2/(2p+d); p <= 0 means
// no rescaling.
func LpExponent(p, dim int) float64 {
	if p <= 0 {
		return 0
	}
	return -2.0 / (2.0*float64(p) + float64(dim))
}
