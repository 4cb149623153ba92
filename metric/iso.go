package metric

import (
	"fmt"
	"math"
)

// IsoMetric is an isotropic metric: a single target size h, identical in all
// directions. The associated tensor is (1/h^2) * I.
type IsoMetric struct {
	H float64
	D int // space dimension (2 or 3)
}

// NewIsoMetric returns an isotropic metric of size h in dimension dim.
func NewIsoMetric(h float64, dim int) IsoMetric {
	return IsoMetric{H: h, D: dim}
}

func (m IsoMetric) N() int   { return 1 }
func (m IsoMetric) Dim() int { return m.D }

func (m IsoMetric) Length(edge []float64) float64 {
	var l2 float64
	for _, x := range edge {
		l2 += x * x
	}
	return math.Sqrt(l2) / m.H
}

func (m IsoMetric) Vol() float64 {
	return math.Pow(m.H, float64(m.D))
}

func (m IsoMetric) Scale(f float64) IsoMetric {
	return IsoMetric{H: m.H / math.Sqrt(f), D: m.D}
}

func (m IsoMetric) ScaleWithBounds(f, hMin, hMax float64) IsoMetric {
	h := clamp(m.H/math.Sqrt(f), hMin, hMax)
	return IsoMetric{H: h, D: m.D}
}

func (m IsoMetric) Intersect(other IsoMetric) IsoMetric {
	return IsoMetric{H: math.Min(m.H, other.H), D: m.D}
}

func (m IsoMetric) Interpolate(other IsoMetric, t float64) IsoMetric {
	// Log-Euclidean interpolation reduces to geometric interpolation of the
	// sizes in the isotropic case.
	h := math.Exp((1.0-t)*math.Log(m.H) + t*math.Log(other.H))
	return IsoMetric{H: h, D: m.D}
}

func (m IsoMetric) Span(l, beta float64) IsoMetric {
	c := 1.0 + l*math.Log(beta)
	return IsoMetric{H: clamp(m.H*c, minSize, maxSize), D: m.D}
}

func (m IsoMetric) Sizes() []float64 {
	s := make([]float64, m.D)
	for i := range s {
		s[i] = m.H
	}
	return s
}

func (m IsoMetric) Components() []float64 { return []float64{m.H} }

func (m IsoMetric) Check() error {
	if math.IsNaN(m.H) || math.IsInf(m.H, 0) {
		return fmt.Errorf("isotropic metric: non-finite size %v", m.H)
	}
	if m.H <= 0 {
		return fmt.Errorf("isotropic metric: non-positive size %v", m.H)
	}
	if m.D != 2 && m.D != 3 {
		return fmt.Errorf("isotropic metric: invalid dimension %d", m.D)
	}
	return nil
}
