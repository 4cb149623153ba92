package mesh

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
)

// Spatial queries are served by an R-tree over element (or vertex) bounding
// boxes. The original engine uses an octree here; the contract is the same:
// an invalidatable index for nearest-entity lookups.

type spatialIndex struct {
	tree *rtreego.Rtree
}

type spatialItem struct {
	id   int
	rect rtreego.Rect
}

func (s *spatialItem) Bounds() rtreego.Rect { return s.rect }

const rectPad = 1e-10

func newRect(lo, hi []float64) rtreego.Rect {
	lengths := make([]float64, len(lo))
	for d := range lo {
		lengths[d] = hi[d] - lo[d] + rectPad
	}
	r, err := rtreego.NewRect(rtreego.Point(lo), lengths)
	if err != nil {
		// Only reachable with non-finite coordinates.
		panic(fmt.Sprintf("invalid bounding box: %v", err))
	}
	return r
}

// ComputeOctree builds the element spatial index.
func (m *SimplexMesh) ComputeOctree() {
	if m.elemTree != nil {
		return
	}
	tree := rtreego.NewTree(m.Dim, 8, 16)
	for e := 0; e < m.NElems(); e++ {
		lo := make([]float64, m.Dim)
		hi := make([]float64, m.Dim)
		for d := 0; d < m.Dim; d++ {
			lo[d] = math.Inf(1)
			hi[d] = math.Inf(-1)
		}
		for _, v := range m.Elem(e) {
			pt := m.Vert(v)
			for d := 0; d < m.Dim; d++ {
				lo[d] = math.Min(lo[d], pt[d])
				hi[d] = math.Max(hi[d], pt[d])
			}
		}
		tree.Insert(&spatialItem{id: e, rect: newRect(lo, hi)})
	}
	m.elemTree = &spatialIndex{tree: tree}
}

// ClearOctree drops the element spatial index.
func (m *SimplexMesh) ClearOctree() { m.elemTree = nil }

func (m *SimplexMesh) computeVertTree() {
	if m.vertTree != nil {
		return
	}
	tree := rtreego.NewTree(m.Dim, 8, 16)
	for v := 0; v < m.NVerts(); v++ {
		pt := m.Vert(v)
		tree.Insert(&spatialItem{id: v, rect: newRect(pt, pt)})
	}
	m.vertTree = &spatialIndex{tree: tree}
}

// barycentric returns the barycentric coordinates of pt in element e
// (volume meshes only). Coordinates are negative outside the element.
func (m *SimplexMesh) barycentric(e int, pt []float64) []float64 {
	conn := m.Elem(e)
	pts := make([][]float64, len(conn))
	for k, v := range conn {
		pts[k] = m.Vert(v)
	}
	vol := simplexVol(m.Dim, m.ElemDim, pts)
	out := make([]float64, len(conn))
	if math.Abs(vol) < 1e-300 {
		for k := range out {
			out[k] = math.Inf(-1)
		}
		return out
	}
	sub := make([][]float64, len(conn))
	for k := range conn {
		copy(sub, pts)
		sub[k] = pt
		out[k] = simplexVol(m.Dim, m.ElemDim, sub) / vol
	}
	return out
}

// NearestElem locates the element containing pt (or the closest candidate)
// using the spatial index. It returns the element, its barycentric
// coordinates for pt, and the containment violation: 0 when pt is inside,
// otherwise the magnitude of the most negative barycentric coordinate.
func (m *SimplexMesh) NearestElem(pt []float64) (int, []float64, float64) {
	m.ComputeOctree()
	const nCandidates = 8
	cands := m.elemTree.tree.NearestNeighbors(nCandidates, rtreego.Point(pt))
	best := -1
	var bestBary []float64
	bestViol := math.Inf(1)
	for _, c := range cands {
		if c == nil {
			continue
		}
		e := c.(*spatialItem).id
		bary := m.barycentric(e, pt)
		viol := 0.0
		for _, b := range bary {
			if -b > viol {
				viol = -b
			}
		}
		if viol < bestViol {
			best, bestBary, bestViol = e, bary, viol
		}
		if viol == 0 {
			break
		}
	}
	return best, bestBary, bestViol
}

// NearestVert returns the vertex closest to pt and its distance.
func (m *SimplexMesh) NearestVert(pt []float64) (int, float64) {
	m.computeVertTree()
	n := m.vertTree.tree.NearestNeighbor(rtreego.Point(pt))
	if n == nil {
		return -1, math.Inf(1)
	}
	v := n.(*spatialItem).id
	var d2 float64
	vp := m.Vert(v)
	for k := 0; k < m.Dim; k++ {
		d := vp[k] - pt[k]
		d2 += d * d
	}
	return v, math.Sqrt(d2)
}

// InterpolateLinear interpolates a P1 field defined on m to the vertices of
// other using barycentric interpolation in the containing element. Target
// vertices whose containment violation exceeds tol fall back to the value
// at the nearest source vertex.
func (m *SimplexMesh) InterpolateLinear(other *SimplexMesh, f []float64, tol float64) ([]float64, error) {
	nv := m.NVerts()
	if nv == 0 || len(f)%nv != 0 {
		return nil, fmt.Errorf("field length %d does not match %d vertices", len(f), nv)
	}
	if other.Dim != m.Dim {
		return nil, fmt.Errorf("dimension mismatch: %d vs %d", m.Dim, other.Dim)
	}
	nc := len(f) / nv
	out := make([]float64, other.NVerts()*nc)
	for v := 0; v < other.NVerts(); v++ {
		pt := other.Vert(v)
		e, bary, viol := m.NearestElem(pt)
		if e >= 0 && viol <= tol {
			for k, src := range m.Elem(e) {
				for c := 0; c < nc; c++ {
					out[v*nc+c] += bary[k] * f[src*nc+c]
				}
			}
			continue
		}
		src, _ := m.NearestVert(pt)
		if src < 0 {
			return nil, fmt.Errorf("vertex %d: no source found", v)
		}
		copy(out[v*nc:(v+1)*nc], f[src*nc:(src+1)*nc])
	}
	return out, nil
}

// InterpolateNearest transfers a P1 field defined on m to the vertices of
// other by nearest-vertex lookup.
func (m *SimplexMesh) InterpolateNearest(other *SimplexMesh, f []float64) ([]float64, error) {
	nv := m.NVerts()
	if nv == 0 || len(f)%nv != 0 {
		return nil, fmt.Errorf("field length %d does not match %d vertices", len(f), nv)
	}
	if other.Dim != m.Dim {
		return nil, fmt.Errorf("dimension mismatch: %d vs %d", m.Dim, other.Dim)
	}
	nc := len(f) / nv
	out := make([]float64, other.NVerts()*nc)
	for v := 0; v < other.NVerts(); v++ {
		src, _ := m.NearestVert(other.Vert(v))
		if src < 0 {
			return nil, fmt.Errorf("vertex %d: no source found", v)
		}
		copy(out[v*nc:(v+1)*nc], f[src*nc:(src+1)*nc])
	}
	return out, nil
}

// TransferEtags sets the element tags of dst from the tags of the m element
// containing (or closest to) each dst element center.
func (m *SimplexMesh) TransferEtags(dst *SimplexMesh) error {
	if dst.Dim != m.Dim || dst.ElemDim != m.ElemDim {
		return fmt.Errorf("dimension mismatch")
	}
	for e := 0; e < dst.NElems(); e++ {
		src, _, _ := m.NearestElem(dst.ElemCenter(e))
		if src < 0 {
			return fmt.Errorf("element %d: no source element found", e)
		}
		dst.Etags[e] = m.Etags[src]
	}
	return nil
}
