package mesh

import "sort"

// csr is a compressed row storage for variable-length adjacency lists.
type csr struct {
	offs []int
	vals []int
}

func (c *csr) row(i int) []int { return c.vals[c.offs[i]:c.offs[i+1]] }

// buildCSR assembles a CSR from (row, value) pairs given as parallel slices.
func buildCSR(nRows int, rows, vals []int) *csr {
	offs := make([]int, nRows+1)
	for _, r := range rows {
		offs[r+1]++
	}
	for i := 0; i < nRows; i++ {
		offs[i+1] += offs[i]
	}
	out := make([]int, len(vals))
	cursor := make([]int, nRows)
	for i, r := range rows {
		out[offs[r]+cursor[r]] = vals[i]
		cursor[r]++
	}
	return &csr{offs: offs, vals: out}
}

// faceKey is the canonical (sorted) vertex tuple of a face; unused slots are
// -1 so the same key type serves 2D edges and 3D triangles.
type faceKey [3]int

func newFaceKey(verts []int) faceKey {
	k := faceKey{-1, -1, -1}
	copy(k[:], verts)
	sort.Ints(k[:len(verts)])
	return k
}

func (k faceKey) verts() []int {
	out := make([]int, 0, 3)
	for _, v := range k {
		if v >= 0 {
			out = append(out, v)
		}
	}
	return out
}

// facePair records the one or two elements sharing a face; e1 is -1 for
// boundary faces.
type facePair struct {
	e0, e1 int
}

// elemFaces returns the local faces of a d-simplex as vertex index tuples:
// face i is opposite vertex i, ordered so that for a positively-oriented
// element the face normal points outward.
func elemFaces(elemDim int, conn []int) [][]int {
	switch elemDim {
	case 1:
		return [][]int{{conn[1]}, {conn[0]}}
	case 2:
		return [][]int{
			{conn[1], conn[2]},
			{conn[2], conn[0]},
			{conn[0], conn[1]},
		}
	default:
		return [][]int{
			{conn[1], conn[2], conn[3]},
			{conn[0], conn[3], conn[2]},
			{conn[0], conn[1], conn[3]},
			{conn[0], conn[2], conn[1]},
		}
	}
}

// elemEdges returns the local edges of a d-simplex.
func elemEdges(elemDim int, conn []int) [][2]int {
	switch elemDim {
	case 1:
		return [][2]int{{conn[0], conn[1]}}
	case 2:
		return [][2]int{
			{conn[0], conn[1]},
			{conn[1], conn[2]},
			{conn[2], conn[0]},
		}
	default:
		return [][2]int{
			{conn[0], conn[1]},
			{conn[0], conn[2]},
			{conn[0], conn[3]},
			{conn[1], conn[2]},
			{conn[1], conn[3]},
			{conn[2], conn[3]},
		}
	}
}

// ComputeVertexToElems builds the vertex-to-element connectivity.
func (m *SimplexMesh) ComputeVertexToElems() {
	if m.vertToElems != nil {
		return
	}
	nv := m.ElemDim + 1
	rows := make([]int, 0, len(m.Elems))
	vals := make([]int, 0, len(m.Elems))
	for e := 0; e < m.NElems(); e++ {
		for _, v := range m.Elems[e*nv : (e+1)*nv] {
			rows = append(rows, v)
			vals = append(vals, e)
		}
	}
	m.vertToElems = buildCSR(m.NVerts(), rows, vals)
}

// ClearVertexToElems drops the vertex-to-element connectivity.
func (m *SimplexMesh) ClearVertexToElems() { m.vertToElems = nil }

// VertElems returns the elements adjacent to vertex v, computing the
// connectivity if needed.
func (m *SimplexMesh) VertElems(v int) []int {
	m.ComputeVertexToElems()
	return m.vertToElems.row(v)
}

// ComputeFaceToElems builds the face-to-element connectivity over all
// element faces (not only tagged ones).
func (m *SimplexMesh) ComputeFaceToElems() {
	if m.faceToElems != nil {
		return
	}
	f2e := make(map[faceKey]facePair, m.NElems()*2)
	for e := 0; e < m.NElems(); e++ {
		for _, f := range elemFaces(m.ElemDim, m.Elem(e)) {
			k := newFaceKey(f)
			if p, ok := f2e[k]; ok {
				p.e1 = e
				f2e[k] = p
			} else {
				f2e[k] = facePair{e0: e, e1: -1}
			}
		}
	}
	m.faceToElems = f2e
}

// ClearFaceToElems drops the face-to-element connectivity.
func (m *SimplexMesh) ClearFaceToElems() { m.faceToElems = nil }

// FaceElems returns the elements sharing the face with the given vertices;
// the second element is -1 for a boundary face and both are -1 if the face
// does not exist.
func (m *SimplexMesh) FaceElems(verts []int) (int, int) {
	m.ComputeFaceToElems()
	if p, ok := m.faceToElems[newFaceKey(verts)]; ok {
		return p.e0, p.e1
	}
	return -1, -1
}

// ComputeElemToElems builds the element-to-element connectivity: for each
// element, the neighbor across each local face (-1 on the boundary). The
// face-to-element connectivity is computed if not available.
func (m *SimplexMesh) ComputeElemToElems() {
	if m.elemToElems != nil {
		return
	}
	m.ComputeFaceToElems()
	nf := m.ElemDim + 1
	e2e := make([]int, m.NElems()*nf)
	for e := 0; e < m.NElems(); e++ {
		for i, f := range elemFaces(m.ElemDim, m.Elem(e)) {
			p := m.faceToElems[newFaceKey(f)]
			n := p.e0
			if n == e {
				n = p.e1
			}
			e2e[e*nf+i] = n
		}
	}
	m.elemToElems = e2e
}

// ClearElemToElems drops the element-to-element connectivity.
func (m *SimplexMesh) ClearElemToElems() { m.elemToElems = nil }

// ElemNeighbors returns the neighbors of element e across its local faces
// (-1 on the boundary).
func (m *SimplexMesh) ElemNeighbors(e int) []int {
	m.ComputeElemToElems()
	nf := m.ElemDim + 1
	return m.elemToElems[e*nf : (e+1)*nf]
}

// ComputeEdges builds the unique edge list.
func (m *SimplexMesh) ComputeEdges() {
	if m.edges != nil {
		return
	}
	seen := make(map[[2]int]bool, m.NElems()*3)
	edges := make([][2]int, 0, m.NElems()*3)
	for e := 0; e < m.NElems(); e++ {
		for _, ed := range elemEdges(m.ElemDim, m.Elem(e)) {
			if ed[0] > ed[1] {
				ed[0], ed[1] = ed[1], ed[0]
			}
			if !seen[ed] {
				seen[ed] = true
				edges = append(edges, ed)
			}
		}
	}
	m.edges = edges
}

// ClearEdges drops the edge list.
func (m *SimplexMesh) ClearEdges() { m.edges = nil }

// Edges returns the unique mesh edges, computing them if needed.
func (m *SimplexMesh) Edges() [][2]int {
	m.ComputeEdges()
	return m.edges
}

// ComputeVertexToVertices builds the vertex-to-vertex connectivity; edges
// are computed if not available.
func (m *SimplexMesh) ComputeVertexToVertices() {
	if m.vertToVerts != nil {
		return
	}
	m.ComputeEdges()
	rows := make([]int, 0, 2*len(m.edges))
	vals := make([]int, 0, 2*len(m.edges))
	for _, e := range m.edges {
		rows = append(rows, e[0], e[1])
		vals = append(vals, e[1], e[0])
	}
	m.vertToVerts = buildCSR(m.NVerts(), rows, vals)
}

// ClearVertexToVertices drops the vertex-to-vertex connectivity.
func (m *SimplexMesh) ClearVertexToVertices() { m.vertToVerts = nil }

// VertNeighbors returns the vertices connected to v by an edge.
func (m *SimplexMesh) VertNeighbors(v int) []int {
	m.ComputeVertexToVertices()
	return m.vertToVerts.row(v)
}
