package metric

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Symmetric-tensor helpers shared by the 2D and 3D anisotropic metrics.
// Components are stored in the order [xx yy xy] (2D) and
// [xx yy zz xy yz xz] (3D).

func symFromComps(dim int, c []float64) *mat.SymDense {
	s := mat.NewSymDense(dim, nil)
	switch dim {
	case 2:
		s.SetSym(0, 0, c[0])
		s.SetSym(1, 1, c[1])
		s.SetSym(0, 1, c[2])
	case 3:
		s.SetSym(0, 0, c[0])
		s.SetSym(1, 1, c[1])
		s.SetSym(2, 2, c[2])
		s.SetSym(0, 1, c[3])
		s.SetSym(1, 2, c[4])
		s.SetSym(0, 2, c[5])
	}
	return s
}

func compsFromSym(dim int, s *mat.SymDense) []float64 {
	switch dim {
	case 2:
		return []float64{s.At(0, 0), s.At(1, 1), s.At(0, 1)}
	default:
		return []float64{
			s.At(0, 0), s.At(1, 1), s.At(2, 2),
			s.At(0, 1), s.At(1, 2), s.At(0, 2),
		}
	}
}

// eigSym returns the eigenvalues (ascending) and eigenvectors of s.
func eigSym(s *mat.SymDense) (vals []float64, vecs *mat.Dense) {
	var es mat.EigenSym
	if ok := es.Factorize(s, true); !ok {
		// A symmetric factorization only fails on non-finite input; fall
		// back to the identity so the caller's Check reports it.
		n, _ := s.Dims()
		vals = make([]float64, n)
		for i := range vals {
			vals[i] = math.NaN()
		}
		return vals, mat.NewDense(n, n, nil)
	}
	vals = es.Values(nil)
	vecs = &mat.Dense{}
	es.VectorsTo(vecs)
	return vals, vecs
}

// symFunc applies f to the eigenvalues of s: Q f(L) Q^T.
func symFunc(s *mat.SymDense, f func(float64) float64) *mat.SymDense {
	n, _ := s.Dims()
	vals, q := eigSym(s)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var v float64
			for k := 0; k < n; k++ {
				v += q.At(i, k) * f(vals[k]) * q.At(j, k)
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}

// symIntersect computes the metric intersection by simultaneous reduction:
// in the basis where a is the identity, b is diagonalized and the
// intersection takes the eigenvalue-wise maximum with 1.
func symIntersect(a, b *mat.SymDense) *mat.SymDense {
	n, _ := a.Dims()
	invSqrtA := symFunc(a, func(l float64) float64 {
		return 1.0 / math.Sqrt(clamp(l, 1.0/(maxSize*maxSize), 1.0/(minSize*minSize)))
	})
	sqrtA := symFunc(a, func(l float64) float64 {
		return math.Sqrt(clamp(l, 1.0/(maxSize*maxSize), 1.0/(minSize*minSize)))
	})

	var tmp, bb mat.Dense
	tmp.Mul(invSqrtA, b)
	bb.Mul(&tmp, invSqrtA)
	bsym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			bsym.SetSym(i, j, 0.5*(bb.At(i, j)+bb.At(j, i)))
		}
	}

	vals, p := eigSym(bsym)
	var r mat.Dense
	r.Mul(sqrtA, p)

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var v float64
			for k := 0; k < n; k++ {
				v += r.At(i, k) * math.Max(1.0, vals[k]) * r.At(j, k)
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}

// symSizes returns the principal sizes 1/sqrt(lambda) in ascending order.
func symSizes(s *mat.SymDense) []float64 {
	n, _ := s.Dims()
	vals, _ := eigSym(s)
	out := make([]float64, 0, n)
	// Eigenvalues come out ascending, so sizes come out descending.
	for i := n - 1; i >= 0; i-- {
		out = append(out, 1.0/math.Sqrt(clamp(vals[i], 1.0/(maxSize*maxSize), 1.0/(minSize*minSize))))
	}
	return out
}

// symClampSizes clamps the principal sizes into [hMin, hMax].
func symClampSizes(s *mat.SymDense, hMin, hMax float64) *mat.SymDense {
	return symFunc(s, func(l float64) float64 {
		h := 1.0 / math.Sqrt(clamp(l, 1.0/(maxSize*maxSize), 1.0/(minSize*minSize)))
		h = clamp(h, hMin, hMax)
		return 1.0 / (h * h)
	})
}
