package remesher

import (
	"math"
	"sort"

	"github.com/notargets/remesh/metric"
)

// Cavity-operator building blocks: every remeshing operation proposes a
// local reconnection, validates it against element validity, quality gates
// and boundary constraints, and either commits it atomically or leaves the
// arena untouched.

// connVol returns the signed measure of the simplex with the given arena
// vertices.
func (r *Remesher[M]) connVol(conn []int) float64 {
	if r.dim == 2 {
		p0, p1, p2 := r.vert(conn[0]), r.vert(conn[1]), r.vert(conn[2])
		return 0.5 * ((p1[0]-p0[0])*(p2[1]-p0[1]) - (p1[1]-p0[1])*(p2[0]-p0[0]))
	}
	p0 := r.vert(conn[0])
	var a, b, c [3]float64
	for k := 0; k < 3; k++ {
		a[k] = r.vert(conn[1])[k] - p0[k]
		b[k] = r.vert(conn[2])[k] - p0[k]
		c[k] = r.vert(conn[3])[k] - p0[k]
	}
	det := a[0]*(b[1]*c[2]-b[2]*c[1]) -
		a[1]*(b[0]*c[2]-b[2]*c[0]) +
		a[2]*(b[0]*c[1]-b[1]*c[0])
	return det / 6.0
}

// connQuality returns the metric shape quality of the simplex with the given
// arena vertices; inverted simplices get 0.
func (r *Remesher[M]) connQuality(conn []int) float64 {
	var mean M
	for i, v := range conn {
		if i == 0 {
			mean = r.metrics[v]
		} else {
			mean = mean.Interpolate(r.metrics[v], 1.0/float64(i+1))
		}
	}
	volM := r.connVol(conn) / mean.Vol()
	if !(volM > 0) {
		return 0
	}
	var l2 float64
	edge := make([]float64, r.dim)
	for i := 0; i < len(conn); i++ {
		for j := i + 1; j < len(conn); j++ {
			p0, p1 := r.vert(conn[i]), r.vert(conn[j])
			for k := 0; k < r.dim; k++ {
				edge[k] = p1[k] - p0[k]
			}
			l := metric.EdgeLength(edge, r.metrics[conn[i]], r.metrics[conn[j]])
			l2 += l * l
		}
	}
	if l2 < 1e-300 {
		return 0
	}
	cst := 4.0 * math.Sqrt(3.0)
	if r.dim == 3 {
		cst = 6.0 * math.Pow(6.0*math.Sqrt(2.0), 2.0/3.0)
	}
	return cst * math.Pow(volM, 2.0/float64(r.dim)) / l2
}

// qualityGate combines the absolute quality floor with a fraction of the
// pre-operation cavity quality.
func qualityGate(preMin, qRel, qAbs float64) float64 {
	return math.Min(qAbs, qRel*preMin)
}

// cavityMinQuality returns the worst quality among the given live elements.
func (r *Remesher[M]) cavityMinQuality(elems []int) float64 {
	q := math.Inf(1)
	for _, e := range elems {
		q = math.Min(q, r.connQuality(r.elem(e)))
	}
	return q
}

// edgeElems returns the live elements containing both vertices.
func (r *Remesher[M]) edgeElems(v0, v1 int) []int {
	out := make([]int, 0, 8)
	for e := range r.vToE[v0] {
		if _, ok := r.vToE[v1][e]; ok {
			out = append(out, e)
		}
	}
	sort.Ints(out)
	return out
}

// edgeFaces returns the boundary faces containing both vertices.
func (r *Remesher[M]) edgeFaces(v0, v1 int) []fkey {
	out := make([]fkey, 0, 2)
	for k := range r.vToF[v0] {
		if _, ok := r.vToF[v1][k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// addVertex allocates a vertex, reusing the free list.
func (r *Remesher[M]) addVertex(pt []float64, m M, topo vertTopo) int {
	if n := len(r.vFree); n > 0 {
		v := r.vFree[n-1]
		r.vFree = r.vFree[:n-1]
		copy(r.vert(v), pt)
		r.metrics[v] = m
		r.topo[v] = topo
		r.vDel[v] = false
		r.vToE[v] = make(map[int]struct{}, 8)
		r.vToF[v] = make(map[fkey]struct{})
		return v
	}
	v := len(r.vDel)
	r.coords = append(r.coords, pt...)
	r.metrics = append(r.metrics, m)
	r.topo = append(r.topo, topo)
	r.vDel = append(r.vDel, false)
	r.vToE = append(r.vToE, make(map[int]struct{}, 8))
	r.vToF = append(r.vToF, make(map[fkey]struct{}))
	return v
}

// deleteVertex tombstones a vertex. The caller must have disconnected it.
func (r *Remesher[M]) deleteVertex(v int) {
	r.vDel[v] = true
	r.vToE[v] = nil
	r.vToF[v] = nil
	r.vFree = append(r.vFree, v)
}

// addElem allocates an element and connects its vertices.
func (r *Remesher[M]) addElem(conn []int, tag int) int {
	var e int
	if n := len(r.eFree); n > 0 {
		e = r.eFree[n-1]
		r.eFree = r.eFree[:n-1]
		copy(r.elem(e), conn)
		r.etags[e] = tag
		r.eDel[e] = false
	} else {
		e = r.nElemsTotal()
		r.elems = append(r.elems, conn...)
		r.etags = append(r.etags, tag)
		r.eDel = append(r.eDel, false)
	}
	for _, v := range conn {
		r.vToE[v][e] = struct{}{}
	}
	return e
}

// deleteElem tombstones an element and disconnects its vertices.
func (r *Remesher[M]) deleteElem(e int) {
	for _, v := range r.elem(e) {
		delete(r.vToE[v], e)
	}
	r.eDel[e] = true
	r.eFree = append(r.eFree, e)
}

// addFace records a tagged boundary face with its orientation.
func (r *Remesher[M]) addFace(verts []int, tag int) {
	k := newFkey(verts)
	r.faces[k] = faceRec{verts: verts, tag: tag}
	for _, v := range verts {
		r.vToF[v][k] = struct{}{}
	}
}

// deleteFace removes a tagged boundary face.
func (r *Remesher[M]) deleteFace(k fkey) {
	f, ok := r.faces[k]
	if !ok {
		return
	}
	for _, v := range f.verts {
		delete(r.vToF[v], k)
	}
	delete(r.faces, k)
}

// elemExists reports whether a live element has exactly the given vertex
// set.
func (r *Remesher[M]) elemExists(conn []int) bool {
	for e := range r.vToE[conn[0]] {
		have := r.elem(e)
		match := true
		for _, v := range conn[1:] {
			found := false
			for _, w := range have {
				if w == v {
					found = true
					break
				}
			}
			if !found {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// faceAngleOK checks the deviation between the face normal (from the stored
// vertex order) and the geometry normal at the face center for the given
// tag. Without a geometry every deviation is acceptable.
func (r *Remesher[M]) faceAngleOK(verts []int, tag int) bool {
	if r.geom == nil {
		return true
	}
	c := make([]float64, r.dim)
	for _, v := range verts {
		pt := r.vert(v)
		for k := 0; k < r.dim; k++ {
			c[k] += pt[k] / float64(len(verts))
		}
	}
	gn, err := r.geom.Normal(c, tag)
	if err != nil {
		return false
	}
	var n []float64
	if r.dim == 2 {
		p0, p1 := r.vert(verts[0]), r.vert(verts[1])
		n = []float64{p1[1] - p0[1], p0[0] - p1[0]}
	} else {
		p0, p1, p2 := r.vert(verts[0]), r.vert(verts[1]), r.vert(verts[2])
		var a, b [3]float64
		for k := 0; k < 3; k++ {
			a[k] = p1[k] - p0[k]
			b[k] = p2[k] - p0[k]
		}
		n = []float64{
			a[1]*b[2] - a[2]*b[1],
			a[2]*b[0] - a[0]*b[2],
			a[0]*b[1] - a[1]*b[0],
		}
	}
	var l2, dot float64
	for k := 0; k < r.dim; k++ {
		l2 += n[k] * n[k]
		dot += n[k] * gn[k]
	}
	if l2 < 1e-300 {
		return false
	}
	cosA := dot / math.Sqrt(l2)
	return cosA >= math.Cos(r.params.MaxAngle*math.Pi/180.0)
}

// frozenFace reports whether any of the boundary faces has a frozen tag.
func (r *Remesher[M]) frozenFace(keys []fkey) bool {
	for _, k := range keys {
		if r.isFrozenTag(r.faces[k].tag) {
			return true
		}
	}
	return false
}

func (r *Remesher[M]) isFrozenTag(tag int) bool {
	for _, t := range r.params.FrozenTags {
		if t == tag {
			return true
		}
	}
	return false
}
