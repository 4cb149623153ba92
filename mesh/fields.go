package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Field transfer and least-squares derivative reconstruction.
//
// P0 fields carry one row per element, P1 fields one row per vertex; both
// are flat row-major with an arbitrary number of components per row.

// ElemDataToVertexData converts a P0 field to a P1 field by volume-weighted
// averaging of the adjacent element values.
func (m *SimplexMesh) ElemDataToVertexData(f []float64) ([]float64, error) {
	ne := m.NElems()
	if ne == 0 || len(f)%ne != 0 {
		return nil, fmt.Errorf("field length %d does not match %d elements", len(f), ne)
	}
	nc := len(f) / ne
	m.ComputeVolumes()
	m.ComputeVertexToElems()
	nv := m.NVerts()
	out := make([]float64, nv*nc)
	for v := 0; v < nv; v++ {
		var wSum float64
		for _, e := range m.VertElems(v) {
			w := m.vols[e]
			wSum += w
			for c := 0; c < nc; c++ {
				out[v*nc+c] += w * f[e*nc+c]
			}
		}
		if wSum < 1e-300 {
			return nil, fmt.Errorf("vertex %d has no adjacent element volume", v)
		}
		for c := 0; c < nc; c++ {
			out[v*nc+c] /= wSum
		}
	}
	return out, nil
}

// VertexDataToElemData converts a P1 field to a P0 field by averaging the
// element vertex values.
func (m *SimplexMesh) VertexDataToElemData(f []float64) ([]float64, error) {
	nv := m.NVerts()
	if nv == 0 || len(f)%nv != 0 {
		return nil, fmt.Errorf("field length %d does not match %d vertices", len(f), nv)
	}
	nc := len(f) / nv
	ne := m.NElems()
	nev := m.ElemDim + 1
	out := make([]float64, ne*nc)
	for e := 0; e < ne; e++ {
		for _, v := range m.Elem(e) {
			for c := 0; c < nc; c++ {
				out[e*nc+c] += f[v*nc+c] / float64(nev)
			}
		}
	}
	return out, nil
}

// neighborhood returns the first-ring neighbors of v, extended to the
// second ring when fewer than want vertices are available.
func (m *SimplexMesh) neighborhood(v, want int) []int {
	first := m.VertNeighbors(v)
	if len(first) >= want {
		return first
	}
	seen := map[int]bool{v: true}
	out := make([]int, 0, 2*len(first))
	for _, n := range first {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range first {
		for _, n2 := range m.VertNeighbors(n) {
			if !seen[n2] {
				seen[n2] = true
				out = append(out, n2)
			}
		}
	}
	return out
}

// lsFit solves the weighted least-squares system at vertex v for the given
// row basis. basis fills one design-matrix row from the offset dx; rhs is
// f(neighbor) - f(v) when diff is true, f(neighbor) otherwise.
func (m *SimplexMesh) lsFit(v int, f []float64, weightExp, nUnknowns int,
	diff bool, basis func(dx []float64, row []float64)) ([]float64, error) {

	neigh := m.neighborhood(v, nUnknowns+1)
	nRows := len(neigh)
	if diff {
		if nRows < nUnknowns {
			return nil, fmt.Errorf("vertex %d: %d neighbors for %d unknowns", v, nRows, nUnknowns)
		}
	} else {
		nRows++ // the vertex itself contributes a row
		if nRows < nUnknowns {
			return nil, fmt.Errorf("vertex %d: %d rows for %d unknowns", v, nRows, nUnknowns)
		}
	}

	a := mat.NewDense(nRows, nUnknowns, nil)
	b := mat.NewDense(nRows, 1, nil)
	row := make([]float64, nUnknowns)
	dx := make([]float64, m.Dim)
	p0 := m.Vert(v)
	r := 0
	if !diff {
		basis(make([]float64, m.Dim), row)
		a.SetRow(0, row)
		b.Set(0, 0, f[v])
		r = 1
	}
	for _, n := range neigh {
		pn := m.Vert(n)
		var d2 float64
		for k := 0; k < m.Dim; k++ {
			dx[k] = pn[k] - p0[k]
			d2 += dx[k] * dx[k]
		}
		w := 1.0
		if weightExp != 0 {
			w = math.Pow(d2, -float64(weightExp)/2.0)
		}
		basis(dx, row)
		for c := range row {
			row[c] *= w
		}
		a.SetRow(r, row)
		val := f[n]
		if diff {
			val -= f[v]
		}
		b.Set(r, 0, w*val)
		r++
	}

	var qr mat.QR
	qr.Factorize(a)
	var x mat.Dense
	if err := qr.SolveTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("vertex %d: least-squares solve failed: %w", v, err)
	}
	out := make([]float64, nUnknowns)
	for c := 0; c < nUnknowns; c++ {
		out[c] = x.At(c, 0)
	}
	return out, nil
}

// GradientL2Proj reconstructs the gradient of a scalar P1 field by projecting
// the element-wise constant gradients back onto the vertices with
// volume-weighted averaging. It requires a volume mesh.
func (m *SimplexMesh) GradientL2Proj(f []float64) ([]float64, error) {
	if len(f) != m.NVerts() {
		return nil, fmt.Errorf("field length %d does not match %d vertices", len(f), m.NVerts())
	}
	if m.ElemDim != m.Dim {
		return nil, fmt.Errorf("gradient projection requires a volume mesh")
	}
	d := m.Dim
	eg := make([]float64, m.NElems()*d)
	a := mat.NewDense(d, d, nil)
	b := mat.NewVecDense(d, nil)
	var x mat.VecDense
	for e := 0; e < m.NElems(); e++ {
		conn := m.Elem(e)
		p0 := m.Vert(conn[0])
		for i := 1; i <= d; i++ {
			pi := m.Vert(conn[i])
			for k := 0; k < d; k++ {
				a.Set(i-1, k, pi[k]-p0[k])
			}
			b.SetVec(i-1, f[conn[i]]-f[conn[0]])
		}
		if err := x.SolveVec(a, b); err != nil {
			return nil, fmt.Errorf("element %d: gradient solve failed: %w", e, err)
		}
		for k := 0; k < d; k++ {
			eg[e*d+k] = x.AtVec(k)
		}
	}
	return m.ElemDataToVertexData(eg)
}

// HessianL2Proj reconstructs the Hessian of a scalar P1 field by two
// successive L2 gradient projections, symmetrizing the result. Components
// per vertex follow the Hessian order [xx yy xy] (2D) or
// [xx yy zz xy yz xz] (3D).
func (m *SimplexMesh) HessianL2Proj(f []float64) ([]float64, error) {
	grad, err := m.GradientL2Proj(f)
	if err != nil {
		return nil, err
	}
	d := m.Dim
	comps := make([][]float64, d)
	scratch := make([]float64, m.NVerts())
	for c := 0; c < d; c++ {
		for v := range scratch {
			scratch[v] = grad[v*d+c]
		}
		if comps[c], err = m.GradientL2Proj(scratch); err != nil {
			return nil, err
		}
	}
	nh := d * (d + 1) / 2
	out := make([]float64, m.NVerts()*nh)
	for v := 0; v < m.NVerts(); v++ {
		h := func(i, j int) float64 {
			return 0.5 * (comps[i][v*d+j] + comps[j][v*d+i])
		}
		if d == 2 {
			out[v*nh+0] = h(0, 0)
			out[v*nh+1] = h(1, 1)
			out[v*nh+2] = h(0, 1)
		} else {
			out[v*nh+0] = h(0, 0)
			out[v*nh+1] = h(1, 1)
			out[v*nh+2] = h(2, 2)
			out[v*nh+3] = h(0, 1)
			out[v*nh+4] = h(1, 2)
			out[v*nh+5] = h(0, 2)
		}
	}
	return out, nil
}

// SmoothField smooths a scalar P1 field by evaluating, at each vertex, the
// constant term of a first-order weighted least-squares fit over the vertex
// neighborhood. weightExp is the inverse-distance weight exponent (2 in the
// usual setting).
func (m *SimplexMesh) SmoothField(f []float64, weightExp int) ([]float64, error) {
	if len(f) != m.NVerts() {
		return nil, fmt.Errorf("field length %d does not match %d vertices", len(f), m.NVerts())
	}
	k := 1 + m.Dim
	out := make([]float64, len(f))
	for v := range out {
		sol, err := m.lsFit(v, f, weightExp, k, false, func(dx, row []float64) {
			row[0] = 1
			copy(row[1:], dx)
		})
		if err != nil {
			return nil, err
		}
		out[v] = sol[0]
	}
	return out, nil
}

// Gradient reconstructs the gradient of a scalar P1 field with a
// first-order weighted least-squares fit; the result has Dim components per
// vertex.
func (m *SimplexMesh) Gradient(f []float64, weightExp int) ([]float64, error) {
	if len(f) != m.NVerts() {
		return nil, fmt.Errorf("field length %d does not match %d vertices", len(f), m.NVerts())
	}
	d := m.Dim
	out := make([]float64, m.NVerts()*d)
	for v := 0; v < m.NVerts(); v++ {
		sol, err := m.lsFit(v, f, weightExp, d, true, func(dx, row []float64) {
			copy(row, dx)
		})
		if err != nil {
			return nil, err
		}
		copy(out[v*d:(v+1)*d], sol)
	}
	return out, nil
}

// Hessian reconstructs the Hessian of a scalar P1 field with a second-order
// weighted least-squares fit, extending to second-ring neighbors where the
// first ring is too small. The result has Dim*(Dim+1)/2 components per
// vertex in the order [xx yy xy] (2D) or [xx yy zz xy yz xz] (3D).
func (m *SimplexMesh) Hessian(f []float64, weightExp int) ([]float64, error) {
	if len(f) != m.NVerts() {
		return nil, fmt.Errorf("field length %d does not match %d vertices", len(f), m.NVerts())
	}
	d := m.Dim
	nh := d * (d + 1) / 2
	k := d + nh
	out := make([]float64, m.NVerts()*nh)
	for v := 0; v < m.NVerts(); v++ {
		sol, err := m.lsFit(v, f, weightExp, k, true, func(dx, row []float64) {
			copy(row, dx)
			if d == 2 {
				row[2] = 0.5 * dx[0] * dx[0]
				row[3] = 0.5 * dx[1] * dx[1]
				row[4] = dx[0] * dx[1]
			} else {
				row[3] = 0.5 * dx[0] * dx[0]
				row[4] = 0.5 * dx[1] * dx[1]
				row[5] = 0.5 * dx[2] * dx[2]
				row[6] = dx[0] * dx[1]
				row[7] = dx[1] * dx[2]
				row[8] = dx[0] * dx[2]
			}
		})
		if err != nil {
			return nil, err
		}
		copy(out[v*nh:(v+1)*nh], sol[d:])
	}
	return out, nil
}
