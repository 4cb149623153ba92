package mesh

import (
	"fmt"
	"math"
)

// SubMesh is a mesh extracted from a parent together with the parent
// indices of its entities; the parent-id slices stay valid because
// extraction never renumbers the parent.
type SubMesh struct {
	Mesh    *SimplexMesh
	VertIds []int // parent vertex index of each sub-mesh vertex
	ElemIds []int // parent element index of each sub-mesh element
	FaceIds []int // parent face index of each sub-mesh tagged face
}

// Boundary extracts the tagged faces into a mesh of dimension ElemDim-1 and
// returns the parent vertex indices.
func (m *SimplexMesh) Boundary() (*SimplexMesh, []int) {
	old2new := make(map[int]int)
	vertIds := make([]int, 0)
	conn := make([]int, 0, len(m.Faces))
	for _, v := range m.Faces {
		nv, ok := old2new[v]
		if !ok {
			nv = len(vertIds)
			old2new[v] = nv
			vertIds = append(vertIds, v)
		}
		conn = append(conn, nv)
	}
	coords := make([]float64, 0, len(vertIds)*m.Dim)
	for _, v := range vertIds {
		coords = append(coords, m.Vert(v)...)
	}
	etags := make([]int, len(m.Ftags))
	copy(etags, m.Ftags)
	bdy := &SimplexMesh{
		Dim:     m.Dim,
		ElemDim: m.ElemDim - 1,
		Coords:  coords,
		Elems:   conn,
		Etags:   etags,
		Faces:   []int{},
		Ftags:   []int{},
	}
	return bdy, vertIds
}

// ExtractTags extracts the elements whose tag is in tags, together with the
// tagged faces they carry.
func (m *SimplexMesh) ExtractTags(tags []int) (*SubMesh, error) {
	want := make(map[int]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	ids := make([]int, 0)
	for e := 0; e < m.NElems(); e++ {
		if want[m.Etags[e]] {
			ids = append(ids, e)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no element with tags %v", tags)
	}
	return m.ExtractElems(ids)
}

// ExtractElems extracts the given elements into a new mesh, keeping the
// tagged faces adjacent to them.
func (m *SimplexMesh) ExtractElems(ids []int) (*SubMesh, error) {
	keep := make(map[int]bool, len(ids))
	for _, e := range ids {
		if e < 0 || e >= m.NElems() {
			return nil, fmt.Errorf("element index %d out of range", e)
		}
		keep[e] = true
	}
	nv := m.ElemDim + 1
	old2new := make(map[int]int)
	vertIds := make([]int, 0)
	conn := make([]int, 0, len(ids)*nv)
	etags := make([]int, 0, len(ids))
	for _, e := range ids {
		for _, v := range m.Elem(e) {
			nvid, ok := old2new[v]
			if !ok {
				nvid = len(vertIds)
				old2new[v] = nvid
				vertIds = append(vertIds, v)
			}
			conn = append(conn, nvid)
		}
		etags = append(etags, m.Etags[e])
	}
	m.ComputeFaceToElems()
	faces := make([]int, 0)
	ftags := make([]int, 0)
	faceIds := make([]int, 0)
	for f := 0; f < m.NFaces(); f++ {
		fv := m.Face(f)
		p, ok := m.faceToElems[newFaceKey(fv)]
		if !ok || (!keep[p.e0] && (p.e1 < 0 || !keep[p.e1])) {
			continue
		}
		inSubset := true
		for _, v := range fv {
			if _, ok := old2new[v]; !ok {
				inSubset = false
				break
			}
		}
		if !inSubset {
			continue
		}
		for _, v := range fv {
			faces = append(faces, old2new[v])
		}
		ftags = append(ftags, m.Ftags[f])
		faceIds = append(faceIds, f)
	}
	coords := make([]float64, 0, len(vertIds)*m.Dim)
	for _, v := range vertIds {
		coords = append(coords, m.Vert(v)...)
	}
	elemIds := make([]int, len(ids))
	copy(elemIds, ids)
	sub := &SimplexMesh{
		Dim:     m.Dim,
		ElemDim: m.ElemDim,
		Coords:  coords,
		Elems:   conn,
		Etags:   etags,
		Faces:   faces,
		Ftags:   ftags,
	}
	return &SubMesh{Mesh: sub, VertIds: vertIds, ElemIds: elemIds, FaceIds: faceIds}, nil
}

// Split subdivides every element and tagged face uniformly (edge into 2,
// triangle into 4, tetrahedron into 8 following Bey's rule) and returns the
// refined mesh. Vertex and element field data is not carried over: child
// entities have no unambiguous source.
func (m *SimplexMesh) Split() *SimplexMesh {
	coords := make([]float64, len(m.Coords), 2*len(m.Coords))
	copy(coords, m.Coords)
	mid := make(map[[2]int]int)
	midpoint := func(a, b int) int {
		k := [2]int{a, b}
		if k[0] > k[1] {
			k[0], k[1] = k[1], k[0]
		}
		if v, ok := mid[k]; ok {
			return v
		}
		pa, pb := m.Vert(a), m.Vert(b)
		for d := 0; d < m.Dim; d++ {
			coords = append(coords, 0.5*(pa[d]+pb[d]))
		}
		v := len(coords)/m.Dim - 1
		mid[k] = v
		return v
	}

	elems := make([]int, 0, 8*len(m.Elems))
	etags := make([]int, 0, 8*len(m.Etags))
	addElem := func(tag int, verts ...int) {
		elems = append(elems, verts...)
		etags = append(etags, tag)
	}
	for e := 0; e < m.NElems(); e++ {
		c := m.Elem(e)
		t := m.Etags[e]
		switch m.ElemDim {
		case 1:
			mm := midpoint(c[0], c[1])
			addElem(t, c[0], mm)
			addElem(t, mm, c[1])
		case 2:
			m01 := midpoint(c[0], c[1])
			m12 := midpoint(c[1], c[2])
			m02 := midpoint(c[0], c[2])
			addElem(t, c[0], m01, m02)
			addElem(t, c[1], m12, m01)
			addElem(t, c[2], m02, m12)
			addElem(t, m01, m12, m02)
		default:
			m01 := midpoint(c[0], c[1])
			m02 := midpoint(c[0], c[2])
			m03 := midpoint(c[0], c[3])
			m12 := midpoint(c[1], c[2])
			m13 := midpoint(c[1], c[3])
			m23 := midpoint(c[2], c[3])
			addElem(t, c[0], m01, m02, m03)
			addElem(t, m01, c[1], m12, m13)
			addElem(t, m02, m12, c[2], m23)
			addElem(t, m03, m13, m23, c[3])
			addElem(t, m01, m02, m03, m13)
			addElem(t, m01, m02, m12, m13)
			addElem(t, m02, m03, m13, m23)
			addElem(t, m02, m12, m13, m23)
		}
	}

	faces := make([]int, 0, 4*len(m.Faces))
	ftags := make([]int, 0, 4*len(m.Ftags))
	addFace := func(tag int, verts ...int) {
		faces = append(faces, verts...)
		ftags = append(ftags, tag)
	}
	for f := 0; f < m.NFaces(); f++ {
		c := m.Face(f)
		t := m.Ftags[f]
		switch m.ElemDim {
		case 1:
			addFace(t, c...)
		case 2:
			mm := midpoint(c[0], c[1])
			addFace(t, c[0], mm)
			addFace(t, mm, c[1])
		default:
			m01 := midpoint(c[0], c[1])
			m12 := midpoint(c[1], c[2])
			m02 := midpoint(c[0], c[2])
			addFace(t, c[0], m01, m02)
			addFace(t, c[1], m12, m01)
			addFace(t, c[2], m02, m12)
			addFace(t, m01, m12, m02)
		}
	}

	return &SimplexMesh{
		Dim:     m.Dim,
		ElemDim: m.ElemDim,
		Coords:  coords,
		Elems:   elems,
		Etags:   etags,
		Faces:   faces,
		Ftags:   ftags,
	}
}

// Autotag replaces the face tags by patch identifiers obtained from a
// feature-angle flood fill: adjacent tagged faces whose normals deviate by
// less than angleDeg degrees end up in the same patch. It returns the
// number of patches.
func (m *SimplexMesh) Autotag(angleDeg float64) (int, error) {
	if m.NFaces() == 0 {
		return 0, fmt.Errorf("autotag: mesh has no tagged faces")
	}
	n := m.NFaces()
	faces := make([][]int, n)
	normals := make([][]float64, n)
	for f := 0; f < n; f++ {
		faces[f] = m.Face(f)
		normals[f] = m.FaceNormal(f)
	}
	tags, nPatch := tagByFeatureAngle(m.Dim, faces, normals, angleDeg)
	copy(m.Ftags, tags)
	return nPatch, nil
}

// AutotagBoundary is Autotag for a boundary mesh (ElemDim == Dim-1): it
// retags the elements. It returns the number of patches.
func (m *SimplexMesh) AutotagBoundary(angleDeg float64) (int, error) {
	if m.ElemDim != m.Dim-1 {
		return 0, fmt.Errorf("autotag_bdy: not a boundary mesh (elemDim %d, dim %d)", m.ElemDim, m.Dim)
	}
	n := m.NElems()
	if n == 0 {
		return 0, fmt.Errorf("autotag_bdy: empty mesh")
	}
	faces := make([][]int, n)
	normals := make([][]float64, n)
	for e := 0; e < n; e++ {
		faces[e] = m.Elem(e)
		conn := m.Elem(e)
		pts := make([][]float64, len(conn))
		for k, v := range conn {
			pts[k] = m.Vert(v)
		}
		normals[e] = normalize(faceNormalFromPts(m.Dim, pts))
	}
	tags, nPatch := tagByFeatureAngle(m.Dim, faces, normals, angleDeg)
	copy(m.Etags, tags)
	m.clearAllCaches()
	return nPatch, nil
}

// tagByFeatureAngle flood-fills faces across shared sub-entities (vertices
// in 2D, edges in 3D) whenever the normal deviation stays below angleDeg.
func tagByFeatureAngle(dim int, faces [][]int, normals [][]float64, angleDeg float64) ([]int, int) {
	n := len(faces)
	adj := make(map[faceKey][]int)
	for f, verts := range faces {
		if dim == 2 {
			for _, v := range verts {
				k := newFaceKey([]int{v})
				adj[k] = append(adj[k], f)
			}
		} else {
			for i := 0; i < len(verts); i++ {
				j := (i + 1) % len(verts)
				k := newFaceKey([]int{verts[i], verts[j]})
				adj[k] = append(adj[k], f)
			}
		}
	}
	cosMin := math.Cos(angleDeg * math.Pi / 180.0)
	tags := make([]int, n)
	next := 0
	for seed := 0; seed < n; seed++ {
		if tags[seed] != 0 {
			continue
		}
		next++
		stack := []int{seed}
		tags[seed] = next
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, others := range adjOf(adj, dim, faces[f]) {
				for _, g := range others {
					if tags[g] != 0 || g == f {
						continue
					}
					var dot float64
					for d := 0; d < dim; d++ {
						dot += normals[f][d] * normals[g][d]
					}
					if dot >= cosMin {
						tags[g] = next
						stack = append(stack, g)
					}
				}
			}
		}
	}
	return tags, next
}

func adjOf(adj map[faceKey][]int, dim int, verts []int) [][]int {
	out := make([][]int, 0, len(verts))
	if dim == 2 {
		for _, v := range verts {
			out = append(out, adj[newFaceKey([]int{v})])
		}
		return out
	}
	for i := 0; i < len(verts); i++ {
		j := (i + 1) % len(verts)
		out = append(out, adj[newFaceKey([]int{verts[i], verts[j]})])
	}
	return out
}
