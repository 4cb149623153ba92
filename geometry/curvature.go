package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

// vertCurv holds the curvature data of a boundary vertex: the unit normal,
// the principal directions (1 in 2D, 2 in 3D) and the matching curvatures.
type vertCurv struct {
	normal []float64
	dirs   [][]float64
	kappas []float64
}

// vertexPatchTag returns the smallest patch tag among the boundary faces
// adjacent to vertex v, and those faces. Restricting the curvature fit to a
// single patch keeps sharp feature edges from polluting it.
func (g *LinearGeometry) vertexPatchTag(v int) (int, []int) {
	elems := g.bdy.VertElems(v)
	tag := g.bdy.Etags[elems[0]]
	for _, e := range elems[1:] {
		if g.bdy.Etags[e] < tag {
			tag = g.bdy.Etags[e]
		}
	}
	faces := make([]int, 0, len(elems))
	for _, e := range elems {
		if g.bdy.Etags[e] == tag {
			faces = append(faces, e)
		}
	}
	return tag, faces
}

// ComputeCurvature estimates per-vertex principal curvatures of the
// geometry: in 3D a least-squares shape-operator fit from the adjacent face
// normals, in 2D the turning angle between the adjacent boundary edges. It
// is idempotent.
func (g *LinearGeometry) ComputeCurvature() error {
	if g.curv != nil {
		return nil
	}
	curv := make([]vertCurv, g.bdy.NVerts())
	var err error
	for v := range curv {
		if g.dim == 2 {
			curv[v] = g.curvature2d(v)
		} else {
			curv[v], err = g.curvature3d(v)
			if err != nil {
				return fmt.Errorf("geometry: curvature at vertex %d: %w", v, err)
			}
		}
	}
	g.curv = curv
	return nil
}

func (g *LinearGeometry) curvature2d(v int) vertCurv {
	_, faces := g.vertexPatchTag(v)
	p := g.bdy.Vert(v)
	n := make([]float64, 2)
	for _, e := range faces {
		for k := 0; k < 2; k++ {
			n[k] += g.normals[e*2+k]
		}
	}
	unit(n)

	if len(faces) < 2 {
		conn := g.bdy.Elem(faces[0])
		other := conn[0]
		if other == v {
			other = conn[1]
		}
		t := unit([]float64{g.bdy.Vert(other)[0] - p[0], g.bdy.Vert(other)[1] - p[1]})
		return vertCurv{normal: n, dirs: [][]float64{t}, kappas: []float64{0}}
	}

	// Outward edge directions and lengths toward the two neighbors.
	dirs := make([][]float64, 2)
	lens := make([]float64, 2)
	for i, e := range faces[:2] {
		conn := g.bdy.Elem(e)
		other := conn[0]
		if other == v {
			other = conn[1]
		}
		q := g.bdy.Vert(other)
		d := []float64{q[0] - p[0], q[1] - p[1]}
		lens[i] = math.Sqrt(d[0]*d[0] + d[1]*d[1])
		dirs[i] = unit(d)
	}
	dot := dirs[0][0]*dirs[1][0] + dirs[0][1]*dirs[1][1]
	if dot > 1 {
		dot = 1
	}
	if dot < -1 {
		dot = -1
	}
	turn := math.Pi - math.Acos(dot)
	kappa := 0.0
	if h := 0.5 * (lens[0] + lens[1]); h > 1e-300 {
		kappa = turn / h
	}
	t := unit([]float64{dirs[0][0] - dirs[1][0], dirs[0][1] - dirs[1][1]})
	return vertCurv{normal: n, dirs: [][]float64{t}, kappas: []float64{kappa}}
}

func (g *LinearGeometry) curvature3d(v int) (vertCurv, error) {
	_, faces := g.vertexPatchTag(v)
	p := g.bdy.Vert(v)
	areas := g.bdy.ElemVols()

	n := make([]float64, 3)
	for _, e := range faces {
		for k := 0; k < 3; k++ {
			n[k] += areas[e] * g.normals[e*3+k]
		}
	}
	unit(n)

	// Tangent basis: t1 orthogonal to n, seeded from the axis least aligned
	// with it.
	seed := []float64{1, 0, 0}
	if math.Abs(n[0]) > math.Abs(n[1]) {
		seed = []float64{0, 1, 0}
		if math.Abs(n[1]) > math.Abs(n[2]) {
			seed = []float64{0, 0, 1}
		}
	}
	t1 := make([]float64, 3)
	var sn float64
	for k := 0; k < 3; k++ {
		sn += seed[k] * n[k]
	}
	for k := 0; k < 3; k++ {
		t1[k] = seed[k] - sn*n[k]
	}
	unit(t1)
	t2 := []float64{
		n[1]*t1[2] - n[2]*t1[1],
		n[2]*t1[0] - n[0]*t1[2],
		n[0]*t1[1] - n[1]*t1[0],
	}

	flat := vertCurv{normal: n, dirs: [][]float64{t1, t2}, kappas: []float64{0, 0}}
	if len(faces) < 2 {
		return flat, nil
	}

	// Least-squares shape operator S (symmetric 2x2): S * dx ~ dn in the
	// tangent basis, one pair of rows per adjacent face.
	a := mat.NewDense(2*len(faces), 3, nil)
	b := mat.NewDense(2*len(faces), 1, nil)
	for i, e := range faces {
		c := g.bdy.ElemCenter(e)
		var x1, x2, y1, y2 float64
		for k := 0; k < 3; k++ {
			dc := c[k] - p[k]
			dn := g.normals[e*3+k] - n[k]
			x1 += dc * t1[k]
			x2 += dc * t2[k]
			y1 += dn * t1[k]
			y2 += dn * t2[k]
		}
		a.SetRow(2*i, []float64{x1, x2, 0})
		b.Set(2*i, 0, y1)
		a.SetRow(2*i+1, []float64{0, x1, x2})
		b.Set(2*i+1, 0, y2)
	}
	var qr mat.QR
	qr.Factorize(a)
	var x mat.Dense
	if err := qr.SolveTo(&x, false, b); err != nil {
		// Degenerate neighborhoods (collinear face centers) fall back to a
		// flat estimate.
		return flat, nil
	}
	s11, s12, s22 := x.At(0, 0), x.At(1, 0), x.At(2, 0)

	// Closed-form symmetric 2x2 eigen decomposition.
	half := 0.5 * (s11 + s22)
	disc := math.Sqrt(math.Max(0.25*(s11-s22)*(s11-s22)+s12*s12, 0))
	k1, k2 := half+disc, half-disc
	dir := func(k float64) []float64 {
		c1, c2 := s12, k-s11
		if math.Abs(k-s22) > math.Abs(c2) {
			c1, c2 = k-s22, s12
		}
		l := math.Sqrt(c1*c1 + c2*c2)
		if l < 1e-300 {
			c1, c2, l = 1, 0, 1
		}
		c1, c2 = c1/l, c2/l
		return []float64{
			c1*t1[0] + c2*t2[0],
			c1*t1[1] + c2*t2[1],
			c1*t1[2] + c2*t2[2],
		}
	}
	return vertCurv{
		normal: n,
		dirs:   [][]float64{dir(k1), dir(k2)},
		kappas: []float64{k1, k2},
	}, nil
}

// curvSize converts a curvature into a target size: rH elements per radius
// of curvature, clamped into [hMin, hMax].
func curvSize(kappa, rH, hMin, hMax float64) float64 {
	ak := math.Abs(kappa)
	if ak < 1e-12 {
		return hMax
	}
	h := 1.0 / (rH * ak)
	if h < hMin {
		return hMin
	}
	if h > hMax {
		return hMax
	}
	return h
}

// normalSize returns the target size along the geometry normal: the per-tag
// override when present, otherwise the fraction t of the smallest tangential
// size.
func normalSize(tag int, hN map[int]float64, t, hTanMin, hMin, hMax float64) float64 {
	if h, ok := hN[tag]; ok {
		return math.Min(math.Max(h, hMin), hMax)
	}
	return math.Min(math.Max(t*hTanMin, hMin), hMax)
}

func (g *LinearGeometry) checkCurvatureArgs(m *mesh.SimplexMesh, rH, beta, t, hMin, hMax float64) error {
	if m.Dim != g.dim || m.ElemDim != g.dim {
		return fmt.Errorf("geometry: curvature metric needs a %dD volume mesh", g.dim)
	}
	if rH <= 0 || beta <= 1 || t <= 0 || t > 1 || hMin <= 0 || hMax < hMin {
		return fmt.Errorf("geometry: invalid curvature metric parameters (rH %v, beta %v, t %v, hMin %v, hMax %v)",
			rH, beta, t, hMin, hMax)
	}
	return nil
}

// volVertex maps boundary vertex i to the matching volume-mesh vertex.
func (g *LinearGeometry) volVertex(m *mesh.SimplexMesh, i int) int {
	if g.vertIds[i] >= 0 {
		return g.vertIds[i]
	}
	v, _ := m.NearestVert(g.bdy.Vert(i))
	return v
}

// CurvatureMetric2d builds a vertex metric field on the volume mesh m that
// resolves the boundary curvature with rH elements per radius of curvature:
// boundary vertices get an anisotropic tensor aligned with the curve tangent
// and normal, interior vertices get the isotropic hMax size, and the result
// is gradation-limited with coefficient beta. The normal size is the per-tag
// hN entry when present, otherwise the fraction t of the tangential size.
func (g *LinearGeometry) CurvatureMetric2d(m *mesh.SimplexMesh, rH, beta, t, hMin, hMax float64,
	hN map[int]float64) ([]metric.AnisoMetric2d, error) {

	if g.dim != 2 {
		return nil, fmt.Errorf("geometry: not a 2D geometry")
	}
	if err := g.checkCurvatureArgs(m, rH, beta, t, hMin, hMax); err != nil {
		return nil, err
	}
	if err := g.ComputeCurvature(); err != nil {
		return nil, err
	}
	ms := make([]metric.AnisoMetric2d, m.NVerts())
	iso := 1.0 / (hMax * hMax)
	for v := range ms {
		ms[v] = metric.AnisoMetric2d{iso, iso, 0}
	}
	for i := range g.curv {
		c := &g.curv[i]
		tag, _ := g.vertexPatchTag(i)
		ht := curvSize(c.kappas[0], rH, hMin, hMax)
		hn := normalSize(tag, hN, t, ht, hMin, hMax)
		wt, wn := 1.0/(ht*ht), 1.0/(hn*hn)
		td, nd := c.dirs[0], c.normal
		ms[g.volVertex(m, i)] = metric.AnisoMetric2d{
			wt*td[0]*td[0] + wn*nd[0]*nd[0],
			wt*td[1]*td[1] + wn*nd[1]*nd[1],
			wt*td[0]*td[1] + wn*nd[0]*nd[1],
		}
	}
	if _, err := mesh.ApplyMetricGradation(m, ms, beta, 10); err != nil {
		return nil, err
	}
	return ms, nil
}

// CurvatureMetric3d is CurvatureMetric2d for 3D geometries: two tangential
// sizes from the principal curvatures plus a normal size.
func (g *LinearGeometry) CurvatureMetric3d(m *mesh.SimplexMesh, rH, beta, t, hMin, hMax float64,
	hN map[int]float64) ([]metric.AnisoMetric3d, error) {

	if g.dim != 3 {
		return nil, fmt.Errorf("geometry: not a 3D geometry")
	}
	if err := g.checkCurvatureArgs(m, rH, beta, t, hMin, hMax); err != nil {
		return nil, err
	}
	if err := g.ComputeCurvature(); err != nil {
		return nil, err
	}
	ms := make([]metric.AnisoMetric3d, m.NVerts())
	iso := 1.0 / (hMax * hMax)
	for v := range ms {
		ms[v] = metric.AnisoMetric3d{iso, iso, iso, 0, 0, 0}
	}
	for i := range g.curv {
		c := &g.curv[i]
		tag, _ := g.vertexPatchTag(i)
		h1 := curvSize(c.kappas[0], rH, hMin, hMax)
		h2 := curvSize(c.kappas[1], rH, hMin, hMax)
		hn := normalSize(tag, hN, t, math.Min(h1, h2), hMin, hMax)
		var comps metric.AnisoMetric3d
		for j, d := range [][]float64{c.dirs[0], c.dirs[1], c.normal} {
			w := 1.0 / (hn * hn)
			if j == 0 {
				w = 1.0 / (h1 * h1)
			} else if j == 1 {
				w = 1.0 / (h2 * h2)
			}
			comps[0] += w * d[0] * d[0]
			comps[1] += w * d[1] * d[1]
			comps[2] += w * d[2] * d[2]
			comps[3] += w * d[0] * d[1]
			comps[4] += w * d[1] * d[2]
			comps[5] += w * d[0] * d[2]
		}
		ms[g.volVertex(m, i)] = comps
	}
	if _, err := mesh.ApplyMetricGradation(m, ms, beta, 10); err != nil {
		return nil, err
	}
	return ms, nil
}
