package mesh

import (
	"math"
	"sort"
)

// Hilbert space-filling-curve encoding (Skilling's transpose algorithm),
// used to reorder meshes for cache locality and as the geometric fallback
// partitioning strategy.

const hilbertBits = 16

// hilbertIndex converts quantized coordinates to their position along the
// Hilbert curve. x is modified in place.
func hilbertIndex(x []uint32) uint64 {
	n := len(x)
	m := uint32(1) << (hilbertBits - 1)

	// Inverse undo
	var t uint32
	for q := m; q > 1; q >>= 1 {
		p := q - 1
		for i := 0; i < n; i++ {
			if x[i]&q != 0 {
				x[0] ^= p
			} else {
				t = (x[0] ^ x[i]) & p
				x[0] ^= t
				x[i] ^= t
			}
		}
	}

	// Gray encode
	for i := 1; i < n; i++ {
		x[i] ^= x[i-1]
	}
	t = 0
	for q := m; q > 1; q >>= 1 {
		if x[n-1]&q != 0 {
			t ^= q - 1
		}
	}
	for i := 0; i < n; i++ {
		x[i] ^= t
	}

	// Interleave bits, most significant first
	var idx uint64
	for b := hilbertBits - 1; b >= 0; b-- {
		for i := 0; i < n; i++ {
			idx = (idx << 1) | uint64((x[i]>>uint(b))&1)
		}
	}
	return idx
}

// bbox returns the coordinate-wise min and max over the vertices.
func (m *SimplexMesh) bbox() (lo, hi []float64) {
	lo = make([]float64, m.Dim)
	hi = make([]float64, m.Dim)
	for d := 0; d < m.Dim; d++ {
		lo[d] = math.Inf(1)
		hi[d] = math.Inf(-1)
	}
	for v := 0; v < m.NVerts(); v++ {
		pt := m.Vert(v)
		for d := 0; d < m.Dim; d++ {
			lo[d] = math.Min(lo[d], pt[d])
			hi[d] = math.Max(hi[d], pt[d])
		}
	}
	return lo, hi
}

// hilbertKey quantizes a point into the mesh bounding box and returns its
// Hilbert index.
func hilbertKey(pt, lo, hi []float64) uint64 {
	x := make([]uint32, len(pt))
	scale := float64(uint32(1)<<hilbertBits - 1)
	for d := range pt {
		w := hi[d] - lo[d]
		if w < 1e-300 {
			w = 1
		}
		f := (pt[d] - lo[d]) / w
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		x[d] = uint32(f * scale)
	}
	return hilbertIndex(x)
}

// ElemHilbertOrder returns the element indices sorted along the Hilbert
// curve of the element centers.
func (m *SimplexMesh) ElemHilbertOrder() []int {
	lo, hi := m.bbox()
	keys := make([]uint64, m.NElems())
	for e := range keys {
		keys[e] = hilbertKey(m.ElemCenter(e), lo, hi)
	}
	order := make([]int, m.NElems())
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return keys[order[i]] < keys[order[j]] })
	return order
}

// ReorderHilbert renumbers vertices, elements and tagged faces along the
// Hilbert curve, in place. It returns the old-to-new index mapping for each
// entity kind so callers can remap external per-entity data.
func (m *SimplexMesh) ReorderHilbert() (vertPerm, elemPerm, facePerm []int) {
	lo, hi := m.bbox()

	// Vertices
	nV := m.NVerts()
	vOrder := make([]int, nV)
	vKeys := make([]uint64, nV)
	for v := 0; v < nV; v++ {
		vOrder[v] = v
		vKeys[v] = hilbertKey(m.Vert(v), lo, hi)
	}
	sort.Slice(vOrder, func(i, j int) bool { return vKeys[vOrder[i]] < vKeys[vOrder[j]] })
	vertPerm = make([]int, nV)
	for newID, oldID := range vOrder {
		vertPerm[oldID] = newID
	}
	coords := make([]float64, len(m.Coords))
	for oldID, newID := range vertPerm {
		copy(coords[newID*m.Dim:(newID+1)*m.Dim], m.Vert(oldID))
	}

	// Elements: remap connectivity, then sort by center key.
	nE := m.NElems()
	nv := m.ElemDim + 1
	eOrder := make([]int, nE)
	eKeys := make([]uint64, nE)
	for e := 0; e < nE; e++ {
		eOrder[e] = e
		eKeys[e] = hilbertKey(m.ElemCenter(e), lo, hi)
	}
	sort.Slice(eOrder, func(i, j int) bool { return eKeys[eOrder[i]] < eKeys[eOrder[j]] })
	elemPerm = make([]int, nE)
	for newID, oldID := range eOrder {
		elemPerm[oldID] = newID
	}
	elems := make([]int, len(m.Elems))
	etags := make([]int, len(m.Etags))
	for oldID, newID := range elemPerm {
		for k, v := range m.Elem(oldID) {
			elems[newID*nv+k] = vertPerm[v]
		}
		etags[newID] = m.Etags[oldID]
	}

	// Faces
	nF := m.NFaces()
	fOrder := make([]int, nF)
	fKeys := make([]uint64, nF)
	for f := 0; f < nF; f++ {
		fOrder[f] = f
		fKeys[f] = hilbertKey(m.FaceCenter(f), lo, hi)
	}
	sort.Slice(fOrder, func(i, j int) bool { return fKeys[fOrder[i]] < fKeys[fOrder[j]] })
	facePerm = make([]int, nF)
	for newID, oldID := range fOrder {
		facePerm[oldID] = newID
	}
	faces := make([]int, len(m.Faces))
	ftags := make([]int, len(m.Ftags))
	for oldID, newID := range facePerm {
		for k, v := range m.Face(oldID) {
			faces[newID*m.ElemDim+k] = vertPerm[v]
		}
		ftags[newID] = m.Ftags[oldID]
	}

	m.Coords = coords
	m.Elems = elems
	m.Etags = etags
	m.Faces = faces
	m.Ftags = ftags
	m.clearAllCaches()
	return vertPerm, elemPerm, facePerm
}
