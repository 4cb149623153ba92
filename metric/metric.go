// Package metric implements the size-field algebra that drives metric-based
// remeshing: isotropic scalar metrics and anisotropic symmetric-tensor
// metrics in 2D and 3D, together with the operations needed by the remesher
// (length measurement, volume, scaling, intersection, interpolation and
// gradation span).
//
// A metric at a point is a symmetric positive-definite matrix M defining the
// target edge length in direction e as |e|_M = sqrt(e^T M e); the target is
// |e|_M = 1. The principal sizes are 1/sqrt(lambda_i) for the eigenvalues
// lambda_i of M.
package metric

import "math"

// Metric is the capability set shared by the isotropic and anisotropic
// metric kinds. It is a self-referential constraint so that the algebra
// stays closed over the concrete type: code generic over the metric kind is
// written as [M metric.Metric[M]].
type Metric[M any] interface {
	// N returns the number of stored components (1, 3 or 6).
	N() int
	// Dim returns the space dimension.
	Dim() int
	// Length returns the length of the edge vector measured in the metric.
	Length(edge []float64) float64
	// Vol returns the volume of the unit ball, i.e. the product of the
	// principal sizes (up to the unit-ball constant, which cancels in all
	// complexity ratios).
	Vol() float64
	// Scale multiplies the tensor by f; the principal sizes scale by
	// 1/sqrt(f).
	Scale(f float64) M
	// ScaleWithBounds multiplies the tensor by f and then clamps the
	// principal sizes into [hMin, hMax].
	ScaleWithBounds(f, hMin, hMax float64) M
	// Intersect returns the most restrictive metric contained in both the
	// receiver and other (largest ellipsoid included in both unit balls).
	Intersect(other M) M
	// Interpolate returns the log-Euclidean interpolation between the
	// receiver (t=0) and other (t=1).
	Interpolate(other M, t float64) M
	// Span relaxes the metric as seen across an edge of metric length l
	// under gradation coefficient beta: the principal sizes grow by the
	// factor 1 + l*ln(beta). Intersecting a vertex metric with the span of
	// its neighbor's metric enforces the gradation bound.
	Span(l, beta float64) M
	// Sizes returns the principal sizes in ascending order.
	Sizes() []float64
	// Components returns the stored components ([h], [xx yy xy] or
	// [xx yy zz xy yz xz]).
	Components() []float64
	// Check returns an error for degenerate, non-positive-definite or
	// non-finite metrics.
	Check() error
}

// EdgeLength returns the metric length of an edge whose endpoints carry
// metrics m0 and m1, using the geometric-mean quadrature
//
//	l = l0 * (r - 1) / (r * ln(r)),  r = l0/l1
//
// which is exact for a geometric size progression along the edge and reduces
// to l0 when the two measurements agree.
func EdgeLength[M Metric[M]](edge []float64, m0, m1 M) float64 {
	l0 := m0.Length(edge)
	l1 := m1.Length(edge)
	if l0 < l1 {
		l0, l1 = l1, l0
	}
	if l1 < 1e-300 {
		return l0
	}
	r := l0 / l1
	if r < 1.0+1e-12 {
		return 0.5 * (l0 + l1)
	}
	return l0 * (r - 1.0) / (r * math.Log(r))
}

// minSize and maxSize bound the principal sizes everywhere; they guard the
// algebra against NaN and infinite eigenvalues rather than enforce a user
// size range.
const (
	minSize = 1e-12
	maxSize = 1e12
)

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
