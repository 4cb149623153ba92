package remesher

import (
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/remesh/geometry"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

type vertKind uint8

const (
	vInterior vertKind = iota
	vBoundary          // on a single geometry patch
	vCorner            // on two or more patches: never moved or removed
)

// vertTopo classifies a vertex with respect to the tagged boundary.
type vertTopo struct {
	kind   vertKind
	tags   []int // sorted distinct patch tags
	frozen bool
}

// fkey is the canonical (sorted) vertex tuple of a boundary face; unused
// slots are -1.
type fkey [3]int

func newFkey(verts []int) fkey {
	k := fkey{-1, -1, -1}
	copy(k[:], verts)
	sort.Ints(k[:len(verts)])
	return k
}

// faceRec is a tagged boundary face with its stored (outward) orientation.
type faceRec struct {
	verts []int
	tag   int
}

// Remesher adapts a volume mesh to a vertex metric field. Vertices and
// elements live in tombstoned arenas with free lists so that cavity
// operators can add and remove entities without global renumbering; the
// vertex-to-element connectivity is maintained incrementally.
type Remesher[M metric.Metric[M]] struct {
	dim  int
	geom *geometry.LinearGeometry

	coords  []float64
	metrics []M
	topo    []vertTopo
	vToE    []map[int]struct{}
	vToF    []map[fkey]struct{}
	vDel    []bool
	vFree   []int

	elems []int
	etags []int
	eDel  []bool
	eFree []int

	faces map[fkey]faceRec

	params Params
	stats  Stats
}

// New builds a remesher from a volume mesh, its vertex metric field and an
// optional geometry. The mesh must pass Check; the metrics must be valid.
func New[M metric.Metric[M]](msh *mesh.SimplexMesh, metrics []M,
	geom *geometry.LinearGeometry) (*Remesher[M], error) {

	if msh.ElemDim != msh.Dim {
		return nil, fmt.Errorf("remesher: not a volume mesh (dim %d, elemDim %d)", msh.Dim, msh.ElemDim)
	}
	if len(metrics) != msh.NVerts() {
		return nil, fmt.Errorf("remesher: %d metrics for %d vertices", len(metrics), msh.NVerts())
	}
	for v, m := range metrics {
		if m.Dim() != msh.Dim {
			return nil, fmt.Errorf("remesher: metric %d has dimension %d", v, m.Dim())
		}
		if err := m.Check(); err != nil {
			return nil, fmt.Errorf("remesher: metric %d: %w", v, err)
		}
	}
	if err := msh.Check(); err != nil {
		return nil, fmt.Errorf("remesher: invalid input mesh: %w", err)
	}

	nv := msh.NVerts()
	r := &Remesher[M]{
		dim:     msh.Dim,
		geom:    geom,
		coords:  append([]float64(nil), msh.Coords...),
		metrics: append([]M(nil), metrics...),
		topo:    make([]vertTopo, nv),
		vToE:    make([]map[int]struct{}, nv),
		vToF:    make([]map[fkey]struct{}, nv),
		vDel:    make([]bool, nv),
		elems:   append([]int(nil), msh.Elems...),
		etags:   append([]int(nil), msh.Etags...),
		eDel:    make([]bool, msh.NElems()),
		faces:   make(map[fkey]faceRec, msh.NFaces()),
	}
	for v := 0; v < nv; v++ {
		r.vToE[v] = make(map[int]struct{}, 8)
		r.vToF[v] = make(map[fkey]struct{})
	}
	for e := 0; e < msh.NElems(); e++ {
		for _, v := range msh.Elem(e) {
			r.vToE[v][e] = struct{}{}
		}
	}
	tagSets := make([]map[int]bool, nv)
	for f := 0; f < msh.NFaces(); f++ {
		verts := append([]int(nil), msh.Face(f)...)
		k := newFkey(verts)
		r.faces[k] = faceRec{verts: verts, tag: msh.Ftags[f]}
		for _, v := range verts {
			if tagSets[v] == nil {
				tagSets[v] = make(map[int]bool, 2)
			}
			tagSets[v][msh.Ftags[f]] = true
			r.vToF[v][k] = struct{}{}
		}
	}
	for v := 0; v < nv; v++ {
		if tagSets[v] == nil {
			continue
		}
		tags := make([]int, 0, len(tagSets[v]))
		for t := range tagSets[v] {
			tags = append(tags, t)
		}
		sort.Ints(tags)
		kind := vBoundary
		if len(tags) > 1 {
			kind = vCorner
		}
		r.topo[v] = vertTopo{kind: kind, tags: tags}
	}
	log.WithFields(log.Fields{
		"dim":    r.dim,
		"nVerts": nv,
		"nElems": msh.NElems(),
		"nFaces": len(r.faces),
	}).Info("created remesher")
	return r, nil
}

// NVerts returns the number of live vertices.
func (r *Remesher[M]) NVerts() int {
	n := 0
	for v := range r.vDel {
		if !r.vDel[v] {
			n++
		}
	}
	return n
}

// NElems returns the number of live elements.
func (r *Remesher[M]) NElems() int {
	n := 0
	for e := range r.eDel {
		if !r.eDel[e] {
			n++
		}
	}
	return n
}

// NEdges returns the number of live edges.
func (r *Remesher[M]) NEdges() int { return len(r.liveEdges()) }

func (r *Remesher[M]) nElemsTotal() int { return len(r.elems) / (r.dim + 1) }

func (r *Remesher[M]) elem(e int) []int {
	nv := r.dim + 1
	return r.elems[e*nv : (e+1)*nv]
}

func (r *Remesher[M]) vert(v int) []float64 {
	return r.coords[v*r.dim : (v+1)*r.dim]
}

// liveEdges returns the unique edges of the live elements.
func (r *Remesher[M]) liveEdges() [][2]int {
	seen := make(map[[2]int]bool, r.nElemsTotal()*3)
	out := make([][2]int, 0, r.nElemsTotal()*3)
	for e := 0; e < r.nElemsTotal(); e++ {
		if r.eDel[e] {
			continue
		}
		conn := r.elem(e)
		for i := 0; i < len(conn); i++ {
			for j := i + 1; j < len(conn); j++ {
				ed := [2]int{conn[i], conn[j]}
				if ed[0] > ed[1] {
					ed[0], ed[1] = ed[1], ed[0]
				}
				if !seen[ed] {
					seen[ed] = true
					out = append(out, ed)
				}
			}
		}
	}
	return out
}

// edgeLength returns the metric length of the edge between two vertices.
func (r *Remesher[M]) edgeLength(v0, v1 int) float64 {
	e := make([]float64, r.dim)
	p0, p1 := r.vert(v0), r.vert(v1)
	for k := 0; k < r.dim; k++ {
		e[k] = p1[k] - p0[k]
	}
	return metric.EdgeLength(e, r.metrics[v0], r.metrics[v1])
}

// Lengths returns the metric lengths of all live edges.
func (r *Remesher[M]) Lengths() []float64 {
	edges := r.liveEdges()
	out := make([]float64, len(edges))
	for i, ed := range edges {
		out[i] = r.edgeLength(ed[0], ed[1])
	}
	return out
}

// Qualities returns the metric qualities of all live elements.
func (r *Remesher[M]) Qualities() []float64 {
	out := make([]float64, 0, r.NElems())
	for e := 0; e < r.nElemsTotal(); e++ {
		if !r.eDel[e] {
			out = append(out, r.connQuality(r.elem(e)))
		}
	}
	return out
}

// Complexity returns the ideal element count implied by the current metric
// field, evaluated with the live vertex volumes.
func (r *Remesher[M]) Complexity() float64 {
	v0 := math.Sqrt(3.0) / 4.0
	if r.dim == 3 {
		v0 = math.Sqrt(2.0) / 12.0
	}
	vertVols := make([]float64, len(r.vDel))
	share := float64(r.dim + 1)
	for e := 0; e < r.nElemsTotal(); e++ {
		if r.eDel[e] {
			continue
		}
		vol := r.connVol(r.elem(e)) / share
		for _, v := range r.elem(e) {
			vertVols[v] += vol
		}
	}
	var c float64
	for v, w := range vertVols {
		if !r.vDel[v] {
			c += w / (v0 * r.metrics[v].Vol())
		}
	}
	return c
}

// Stats returns the statistics accumulated by the last Remesh call.
func (r *Remesher[M]) Stats() *Stats { return &r.stats }

// ToMesh compacts the arena into a SimplexMesh. With onlyBdyFaces, tagged
// faces shared by two live elements (internal interfaces) are dropped.
func (r *Remesher[M]) ToMesh(onlyBdyFaces bool) (*mesh.SimplexMesh, []M, error) {
	old2new := make([]int, len(r.vDel))
	coords := make([]float64, 0, len(r.coords))
	metrics := make([]M, 0, len(r.metrics))
	n := 0
	for v := range r.vDel {
		if r.vDel[v] {
			old2new[v] = -1
			continue
		}
		old2new[v] = n
		coords = append(coords, r.vert(v)...)
		metrics = append(metrics, r.metrics[v])
		n++
	}
	elems := make([]int, 0, len(r.elems))
	etags := make([]int, 0, len(r.etags))
	for e := 0; e < r.nElemsTotal(); e++ {
		if r.eDel[e] {
			continue
		}
		for _, v := range r.elem(e) {
			elems = append(elems, old2new[v])
		}
		etags = append(etags, r.etags[e])
	}
	faces := make([]int, 0, len(r.faces)*r.dim)
	ftags := make([]int, 0, len(r.faces))
	for k, f := range r.faces {
		if onlyBdyFaces && len(r.faceElems(k)) > 1 {
			continue
		}
		for _, v := range f.verts {
			faces = append(faces, old2new[v])
		}
		ftags = append(ftags, f.tag)
	}
	out, err := mesh.New(r.dim, r.dim, coords, elems, etags, faces, ftags)
	if err != nil {
		return nil, nil, fmt.Errorf("remesher: compaction failed: %w", err)
	}
	return out, metrics, nil
}

// faceElems returns the live elements containing all vertices of a face.
func (r *Remesher[M]) faceElems(k fkey) []int {
	verts := make([]int, 0, 3)
	for _, v := range k {
		if v >= 0 {
			verts = append(verts, v)
		}
	}
	out := make([]int, 0, 2)
	for e := range r.vToE[verts[0]] {
		hasAll := true
		for _, v := range verts[1:] {
			if _, ok := r.vToE[v][e]; !ok {
				hasAll = false
				break
			}
		}
		if hasAll {
			out = append(out, e)
		}
	}
	return out
}

// Check verifies the arena invariants: live elements have positive volume
// and live vertices, connectivity matches the element array, boundary faces
// reference live vertices and exactly one or two live elements.
func (r *Remesher[M]) Check() error {
	for e := 0; e < r.nElemsTotal(); e++ {
		if r.eDel[e] {
			continue
		}
		for _, v := range r.elem(e) {
			if r.vDel[v] {
				return fmt.Errorf("element %d references deleted vertex %d", e, v)
			}
			if _, ok := r.vToE[v][e]; !ok {
				return fmt.Errorf("vertex %d connectivity misses element %d", v, e)
			}
		}
		if vol := r.connVol(r.elem(e)); !(vol > 0) {
			return fmt.Errorf("element %d has non-positive volume %v", e, vol)
		}
	}
	for v := range r.vToE {
		if r.vDel[v] {
			continue
		}
		if len(r.vToE[v]) == 0 {
			return fmt.Errorf("vertex %d has no element", v)
		}
		for e := range r.vToE[v] {
			if r.eDel[e] {
				return fmt.Errorf("vertex %d connectivity references deleted element %d", v, e)
			}
		}
	}
	for k, f := range r.faces {
		for _, v := range f.verts {
			if r.vDel[v] {
				return fmt.Errorf("face %v references deleted vertex %d", f.verts, v)
			}
		}
		if ne := len(r.faceElems(k)); ne < 1 || ne > 2 {
			return fmt.Errorf("face %v adjacent to %d elements", f.verts, ne)
		}
	}
	return nil
}
