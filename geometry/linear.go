// Package geometry provides the piecewise-linear geometry model used to
// constrain boundary vertices during remeshing: projection onto tagged
// boundary patches, surface curvature estimation and curvature-driven metric
// construction.
package geometry

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	log "github.com/sirupsen/logrus"

	"github.com/notargets/remesh/mesh"
)

// LinearGeometry represents the boundary of a volume mesh as a simplex mesh
// of dimension Dim-1 (a polyline in 2D, a triangulation in 3D) whose element
// tags identify the geometric patches. Projection queries are served by an
// R-tree over the boundary faces.
//
// The geometry is frozen after construction: it keeps its own copy of the
// boundary and never follows later modifications of the volume mesh it was
// built from.
type LinearGeometry struct {
	dim     int
	bdy     *mesh.SimplexMesh
	vertIds []int // volume-mesh vertex id per boundary vertex, -1 if unknown
	normals []float64
	tree    *rtreego.Rtree
	tags    map[int]bool
	curv    []vertCurv // nil until ComputeCurvature
}

type geomFace struct {
	id   int
	rect rtreego.Rect
}

func (f *geomFace) Bounds() rtreego.Rect { return f.rect }

// New builds a linear geometry for m. When bdy is nil the representation is
// extracted from the tagged faces of m; an explicit bdy must have the same
// space dimension, element dimension Dim-1, and carry (at least) the face
// tags of m as element tags. Explicit boundaries are trusted to be oriented
// outward.
func New(m *mesh.SimplexMesh, bdy *mesh.SimplexMesh) (*LinearGeometry, error) {
	if m == nil {
		return nil, fmt.Errorf("geometry: nil mesh")
	}
	var vertIds []int
	if bdy == nil {
		bdy, vertIds = m.Boundary()
	} else {
		if bdy.Dim != m.Dim {
			return nil, fmt.Errorf("geometry: boundary dimension %d does not match mesh dimension %d",
				bdy.Dim, m.Dim)
		}
		vertIds = make([]int, bdy.NVerts())
		for i := range vertIds {
			vertIds[i] = -1
		}
	}
	if bdy.ElemDim != m.Dim-1 {
		return nil, fmt.Errorf("geometry: boundary element dimension %d, expected %d",
			bdy.ElemDim, m.Dim-1)
	}
	if bdy.NElems() == 0 {
		return nil, fmt.Errorf("geometry: empty boundary representation")
	}
	tags := make(map[int]bool)
	for _, t := range bdy.Etags {
		tags[t] = true
	}
	for i, t := range m.Ftags {
		if !tags[t] {
			return nil, fmt.Errorf("geometry: mesh face %d has tag %d with no geometry patch", i, t)
		}
	}

	g := &LinearGeometry{
		dim:     m.Dim,
		bdy:     bdy,
		vertIds: vertIds,
		normals: make([]float64, bdy.NElems()*m.Dim),
		tree:    rtreego.NewTree(m.Dim, 8, 16),
		tags:    tags,
	}
	for e := 0; e < bdy.NElems(); e++ {
		copy(g.normals[e*m.Dim:(e+1)*m.Dim], g.faceNormal(e))
		lo := make([]float64, m.Dim)
		hi := make([]float64, m.Dim)
		for d := 0; d < m.Dim; d++ {
			lo[d] = math.Inf(1)
			hi[d] = math.Inf(-1)
		}
		for _, v := range bdy.Elem(e) {
			pt := bdy.Vert(v)
			for d := 0; d < m.Dim; d++ {
				lo[d] = math.Min(lo[d], pt[d])
				hi[d] = math.Max(hi[d], pt[d])
			}
		}
		lengths := make([]float64, m.Dim)
		for d := range lengths {
			lengths[d] = hi[d] - lo[d] + 1e-10
		}
		rect, err := rtreego.NewRect(rtreego.Point(lo), lengths)
		if err != nil {
			return nil, fmt.Errorf("geometry: face %d: %w", e, err)
		}
		g.tree.Insert(&geomFace{id: e, rect: rect})
	}
	log.WithFields(log.Fields{
		"dim":      m.Dim,
		"nFaces":   bdy.NElems(),
		"nPatches": len(tags),
	}).Info("created linear geometry")
	return g, nil
}

// faceNormal returns the unit normal of boundary face e, following the
// stored orientation.
func (g *LinearGeometry) faceNormal(e int) []float64 {
	conn := g.bdy.Elem(e)
	if g.dim == 2 {
		p0, p1 := g.bdy.Vert(conn[0]), g.bdy.Vert(conn[1])
		n := []float64{p1[1] - p0[1], p0[0] - p1[0]}
		return unit(n)
	}
	p0, p1, p2 := g.bdy.Vert(conn[0]), g.bdy.Vert(conn[1]), g.bdy.Vert(conn[2])
	var a, b [3]float64
	for k := 0; k < 3; k++ {
		a[k] = p1[k] - p0[k]
		b[k] = p2[k] - p0[k]
	}
	return unit([]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	})
}

func unit(v []float64) []float64 {
	var l2 float64
	for _, x := range v {
		l2 += x * x
	}
	l := math.Sqrt(l2)
	if l < 1e-300 {
		return v
	}
	for k := range v {
		v[k] /= l
	}
	return v
}

// closestOnSegment returns the closest point to p on segment [a, b].
func closestOnSegment(p, a, b []float64) []float64 {
	var ab2, t float64
	for k := range p {
		d := b[k] - a[k]
		ab2 += d * d
		t += (p[k] - a[k]) * d
	}
	if ab2 > 1e-300 {
		t /= ab2
	} else {
		t = 0
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	out := make([]float64, len(p))
	for k := range p {
		out[k] = a[k] + t*(b[k]-a[k])
	}
	return out
}

// closestOnTriangle returns the closest point to p on triangle (a, b, c).
func closestOnTriangle(p, a, b, c []float64) []float64 {
	var ab, ac, ap [3]float64
	for k := 0; k < 3; k++ {
		ab[k] = b[k] - a[k]
		ac[k] = c[k] - a[k]
		ap[k] = p[k] - a[k]
	}
	d1 := ab[0]*ap[0] + ab[1]*ap[1] + ab[2]*ap[2]
	d2 := ac[0]*ap[0] + ac[1]*ap[1] + ac[2]*ap[2]
	if d1 <= 0 && d2 <= 0 {
		return append([]float64(nil), a...)
	}
	var bp [3]float64
	for k := 0; k < 3; k++ {
		bp[k] = p[k] - b[k]
	}
	d3 := ab[0]*bp[0] + ab[1]*bp[1] + ab[2]*bp[2]
	d4 := ac[0]*bp[0] + ac[1]*bp[1] + ac[2]*bp[2]
	if d3 >= 0 && d4 <= d3 {
		return append([]float64(nil), b...)
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		t := d1 / (d1 - d3)
		out := make([]float64, 3)
		for k := 0; k < 3; k++ {
			out[k] = a[k] + t*ab[k]
		}
		return out
	}
	var cp [3]float64
	for k := 0; k < 3; k++ {
		cp[k] = p[k] - c[k]
	}
	d5 := ab[0]*cp[0] + ab[1]*cp[1] + ab[2]*cp[2]
	d6 := ac[0]*cp[0] + ac[1]*cp[1] + ac[2]*cp[2]
	if d6 >= 0 && d5 <= d6 {
		return append([]float64(nil), c...)
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		t := d2 / (d2 - d6)
		out := make([]float64, 3)
		for k := 0; k < 3; k++ {
			out[k] = a[k] + t*ac[k]
		}
		return out
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		t := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		out := make([]float64, 3)
		for k := 0; k < 3; k++ {
			out[k] = b[k] + t*(c[k]-b[k])
		}
		return out
	}
	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	out := make([]float64, 3)
	for k := 0; k < 3; k++ {
		out[k] = a[k] + v*ab[k] + w*ac[k]
	}
	return out
}

func (g *LinearGeometry) closestOnFace(e int, pt []float64) []float64 {
	conn := g.bdy.Elem(e)
	if g.dim == 2 {
		return closestOnSegment(pt, g.bdy.Vert(conn[0]), g.bdy.Vert(conn[1]))
	}
	return closestOnTriangle(pt, g.bdy.Vert(conn[0]), g.bdy.Vert(conn[1]), g.bdy.Vert(conn[2]))
}

func dist(a, b []float64) float64 {
	var d2 float64
	for k := range a {
		d := a[k] - b[k]
		d2 += d * d
	}
	return math.Sqrt(d2)
}

// projectFace returns the boundary face realizing the projection of pt onto
// the patch with the given tag (any patch when tag is 0), the projected
// point and the distance.
func (g *LinearGeometry) projectFace(pt []float64, tag int) (int, []float64, float64) {
	const nCandidates = 16
	best := -1
	var bestPt []float64
	bestD := math.Inf(1)
	consider := func(e int) {
		if tag != 0 && g.bdy.Etags[e] != tag {
			return
		}
		q := g.closestOnFace(e, pt)
		if d := dist(pt, q); d < bestD {
			best, bestPt, bestD = e, q, d
		}
	}
	for _, c := range g.tree.NearestNeighbors(nCandidates, rtreego.Point(pt)) {
		if c != nil {
			consider(c.(*geomFace).id)
		}
	}
	if best < 0 {
		// Tag not among the nearest candidates: scan the patch.
		for e := 0; e < g.bdy.NElems(); e++ {
			consider(e)
		}
	}
	return best, bestPt, bestD
}

// Project returns the closest point to pt on the patch with the given tag
// (tag 0: the whole boundary) and its distance.
func (g *LinearGeometry) Project(pt []float64, tag int) ([]float64, float64, error) {
	if len(pt) != g.dim {
		return nil, 0, fmt.Errorf("geometry: point dimension %d, expected %d", len(pt), g.dim)
	}
	if tag != 0 && !g.tags[tag] {
		return nil, 0, fmt.Errorf("geometry: unknown patch tag %d", tag)
	}
	e, q, d := g.projectFace(pt, tag)
	if e < 0 {
		return nil, 0, fmt.Errorf("geometry: no face with tag %d", tag)
	}
	return q, d, nil
}

// Normal returns the outward geometry normal at the projection of pt onto
// the patch with the given tag.
func (g *LinearGeometry) Normal(pt []float64, tag int) ([]float64, error) {
	if tag != 0 && !g.tags[tag] {
		return nil, fmt.Errorf("geometry: unknown patch tag %d", tag)
	}
	e, _, _ := g.projectFace(pt, tag)
	if e < 0 {
		return nil, fmt.Errorf("geometry: no face with tag %d", tag)
	}
	n := make([]float64, g.dim)
	copy(n, g.normals[e*g.dim:(e+1)*g.dim])
	return n, nil
}

// MaxDistance returns the largest distance between the tagged-face vertices
// of m and their projection onto the matching geometry patch.
func (g *LinearGeometry) MaxDistance(m *mesh.SimplexMesh) float64 {
	var dMax float64
	for f := 0; f < m.NFaces(); f++ {
		tag := m.Ftags[f]
		for _, v := range m.Face(f) {
			_, _, d := g.projectFace(m.Vert(v), tag)
			dMax = math.Max(dMax, d)
		}
	}
	return dMax
}

// MaxNormalAngle returns the largest angle (degrees) between the tagged-face
// normals of m and the geometry normal at the face center projection.
func (g *LinearGeometry) MaxNormalAngle(m *mesh.SimplexMesh) float64 {
	var aMax float64
	for f := 0; f < m.NFaces(); f++ {
		e, _, _ := g.projectFace(m.FaceCenter(f), m.Ftags[f])
		if e < 0 {
			continue
		}
		n := m.FaceNormal(f)
		var dot float64
		for k := 0; k < g.dim; k++ {
			dot += n[k] * g.normals[e*g.dim+k]
		}
		if dot > 1 {
			dot = 1
		}
		if dot < -1 {
			dot = -1
		}
		aMax = math.Max(aMax, math.Acos(dot)*180.0/math.Pi)
	}
	return aMax
}
