// Package mesh provides the simplex-mesh container used by the remesher:
// vertices, elements and tagged faces in flat arrays, plus lazily-computed
// connectivity caches (vertex/face/element adjacency, edges, volumes and a
// spatial index), field transfer between element and vertex data,
// least-squares derivative reconstruction and metric-field utilities.
//
// The container never performs remeshing; it owns the data and the derived
// queries. Caches are computed on demand and cleared by any structural
// mutation; reading a cache after a mutation recomputes it from scratch.
package mesh

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
)

// SimplexMesh is a mesh of d-simplices in 2D or 3D space.
//
// Dim is the space dimension. ElemDim is the simplex dimension: elements
// have ElemDim+1 vertices and faces have ElemDim vertices. Volume meshes
// have ElemDim == Dim; boundary meshes extracted from them have
// ElemDim == Dim-1.
//
// Coords is row-major n_verts x Dim, Elems is row-major
// n_elems x (ElemDim+1), Faces is row-major n_faces x ElemDim. Etags and
// Ftags carry one integer tag per element and face.
type SimplexMesh struct {
	Dim     int
	ElemDim int
	Coords  []float64
	Elems   []int
	Etags   []int
	Faces   []int
	Ftags   []int

	// Lazily-computed caches; nil until computed, cleared on mutation.
	vertToElems *csr
	faceToElems map[faceKey]facePair
	elemToElems []int
	edges       [][2]int
	vertToVerts *csr
	vols        []float64
	vertVols    []float64
	elemTree    *spatialIndex
	vertTree    *spatialIndex
}

// New creates a mesh after validating array shapes. dim is the space
// dimension and elemDim the simplex dimension (see SimplexMesh). The slices
// are referenced, not copied.
func New(dim, elemDim int, coords []float64, elems, etags, faces, ftags []int) (*SimplexMesh, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("invalid space dimension %d", dim)
	}
	if elemDim < 1 || elemDim > dim {
		return nil, fmt.Errorf("invalid element dimension %d for space dimension %d", elemDim, dim)
	}
	if len(coords)%dim != 0 {
		return nil, fmt.Errorf("coords length %d is not a multiple of dim %d", len(coords), dim)
	}
	nv := elemDim + 1
	if len(elems)%nv != 0 {
		return nil, fmt.Errorf("elems length %d is not a multiple of %d", len(elems), nv)
	}
	if len(etags) != len(elems)/nv {
		return nil, fmt.Errorf("etags length %d does not match %d elements", len(etags), len(elems)/nv)
	}
	nf := elemDim
	if len(faces)%nf != 0 {
		return nil, fmt.Errorf("faces length %d is not a multiple of %d", len(faces), nf)
	}
	if len(ftags) != len(faces)/nf {
		return nil, fmt.Errorf("ftags length %d does not match %d faces", len(ftags), len(faces)/nf)
	}
	nVerts := len(coords) / dim
	for _, v := range elems {
		if v < 0 || v >= nVerts {
			return nil, fmt.Errorf("element vertex index %d out of range [0,%d)", v, nVerts)
		}
	}
	for _, v := range faces {
		if v < 0 || v >= nVerts {
			return nil, fmt.Errorf("face vertex index %d out of range [0,%d)", v, nVerts)
		}
	}
	m := &SimplexMesh{
		Dim:     dim,
		ElemDim: elemDim,
		Coords:  coords,
		Elems:   elems,
		Etags:   etags,
		Faces:   faces,
		Ftags:   ftags,
	}
	log.WithFields(log.Fields{
		"dim":     dim,
		"elemDim": elemDim,
		"nVerts":  m.NVerts(),
		"nElems":  m.NElems(),
		"nFaces":  m.NFaces(),
	}).Info("created simplex mesh")
	return m, nil
}

// NVerts returns the number of vertices.
func (m *SimplexMesh) NVerts() int { return len(m.Coords) / m.Dim }

// NElems returns the number of elements.
func (m *SimplexMesh) NElems() int { return len(m.Elems) / (m.ElemDim + 1) }

// NFaces returns the number of tagged faces.
func (m *SimplexMesh) NFaces() int {
	if m.ElemDim == 0 {
		return 0
	}
	return len(m.Faces) / m.ElemDim
}

// Vert returns the coordinates of vertex i.
func (m *SimplexMesh) Vert(i int) []float64 {
	return m.Coords[i*m.Dim : (i+1)*m.Dim]
}

// Elem returns the vertex indices of element i.
func (m *SimplexMesh) Elem(i int) []int {
	nv := m.ElemDim + 1
	return m.Elems[i*nv : (i+1)*nv]
}

// Face returns the vertex indices of face i.
func (m *SimplexMesh) Face(i int) []int {
	return m.Faces[i*m.ElemDim : (i+1)*m.ElemDim]
}

// clearAllCaches drops every derived cache. Called by all structural
// mutations so that stale connectivity can never be observed.
func (m *SimplexMesh) clearAllCaches() {
	m.vertToElems = nil
	m.faceToElems = nil
	m.elemToElems = nil
	m.edges = nil
	m.vertToVerts = nil
	m.vols = nil
	m.vertVols = nil
	m.elemTree = nil
	m.vertTree = nil
}

// simplexVol returns the signed (ElemDim == Dim) or unsigned measure of the
// simplex with the given vertex coordinates.
func simplexVol(dim, elemDim int, pts [][]float64) float64 {
	switch {
	case elemDim == 1:
		var l2 float64
		for k := 0; k < dim; k++ {
			d := pts[1][k] - pts[0][k]
			l2 += d * d
		}
		return math.Sqrt(l2)
	case elemDim == 2 && dim == 2:
		ax, ay := pts[1][0]-pts[0][0], pts[1][1]-pts[0][1]
		bx, by := pts[2][0]-pts[0][0], pts[2][1]-pts[0][1]
		return 0.5 * (ax*by - ay*bx)
	case elemDim == 2 && dim == 3:
		var a, b, c [3]float64
		for k := 0; k < 3; k++ {
			a[k] = pts[1][k] - pts[0][k]
			b[k] = pts[2][k] - pts[0][k]
		}
		c[0] = a[1]*b[2] - a[2]*b[1]
		c[1] = a[2]*b[0] - a[0]*b[2]
		c[2] = a[0]*b[1] - a[1]*b[0]
		return 0.5 * math.Sqrt(c[0]*c[0]+c[1]*c[1]+c[2]*c[2])
	default: // tetrahedron
		var a, b, c [3]float64
		for k := 0; k < 3; k++ {
			a[k] = pts[1][k] - pts[0][k]
			b[k] = pts[2][k] - pts[0][k]
			c[k] = pts[3][k] - pts[0][k]
		}
		det := a[0]*(b[1]*c[2]-b[2]*c[1]) -
			a[1]*(b[0]*c[2]-b[2]*c[0]) +
			a[2]*(b[0]*c[1]-b[1]*c[0])
		return det / 6.0
	}
}

// ElemVol returns the (signed, for volume meshes) measure of element i.
func (m *SimplexMesh) ElemVol(i int) float64 {
	conn := m.Elem(i)
	pts := make([][]float64, len(conn))
	for k, v := range conn {
		pts[k] = m.Vert(v)
	}
	return simplexVol(m.Dim, m.ElemDim, pts)
}

// ElemVols returns the measures of all elements, computing the volume cache
// if needed.
func (m *SimplexMesh) ElemVols() []float64 {
	m.ComputeVolumes()
	return m.vols
}

// Vol returns the total mesh measure.
func (m *SimplexMesh) Vol() float64 {
	var s float64
	for _, v := range m.ElemVols() {
		s += v
	}
	return s
}

// ComputeVolumes fills the element-volume and vertex-volume caches. The
// vertex volume is the element volume shared equally between the element's
// vertices; vertex volumes sum to the mesh volume.
func (m *SimplexMesh) ComputeVolumes() {
	if m.vols != nil {
		return
	}
	ne := m.NElems()
	nv := m.ElemDim + 1
	m.vols = make([]float64, ne)
	m.vertVols = make([]float64, m.NVerts())
	for i := 0; i < ne; i++ {
		v := m.ElemVol(i)
		m.vols[i] = v
		share := v / float64(nv)
		for _, vid := range m.Elem(i) {
			m.vertVols[vid] += share
		}
	}
}

// ClearVolumes drops the volume caches.
func (m *SimplexMesh) ClearVolumes() {
	m.vols = nil
	m.vertVols = nil
}

// VertVols returns the vertex volumes, computing them if needed.
func (m *SimplexMesh) VertVols() []float64 {
	m.ComputeVolumes()
	return m.vertVols
}

// ElemCenter returns the centroid of element i.
func (m *SimplexMesh) ElemCenter(i int) []float64 {
	c := make([]float64, m.Dim)
	conn := m.Elem(i)
	for _, v := range conn {
		pt := m.Vert(v)
		for k := 0; k < m.Dim; k++ {
			c[k] += pt[k]
		}
	}
	for k := range c {
		c[k] /= float64(len(conn))
	}
	return c
}

// FaceCenter returns the centroid of tagged face i.
func (m *SimplexMesh) FaceCenter(i int) []float64 {
	c := make([]float64, m.Dim)
	conn := m.Face(i)
	for _, v := range conn {
		pt := m.Vert(v)
		for k := 0; k < m.Dim; k++ {
			c[k] += pt[k]
		}
	}
	for k := range c {
		c[k] /= float64(len(conn))
	}
	return c
}

// faceNormalFromPts returns the (non-unit) normal of a face given its vertex
// coordinates: the 90-degree rotation of the edge vector in 2D, the cross
// product in 3D.
func faceNormalFromPts(dim int, pts [][]float64) []float64 {
	if dim == 2 {
		dx := pts[1][0] - pts[0][0]
		dy := pts[1][1] - pts[0][1]
		return []float64{dy, -dx}
	}
	var a, b [3]float64
	for k := 0; k < 3; k++ {
		a[k] = pts[1][k] - pts[0][k]
		b[k] = pts[2][k] - pts[0][k]
	}
	return []float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// FaceNormal returns the unit normal of tagged face i, oriented by the
// face's vertex ordering.
func (m *SimplexMesh) FaceNormal(i int) []float64 {
	conn := m.Face(i)
	pts := make([][]float64, len(conn))
	for k, v := range conn {
		pts[k] = m.Vert(v)
	}
	n := faceNormalFromPts(m.Dim, pts)
	return normalize(n)
}

func normalize(v []float64) []float64 {
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

// Check verifies mesh validity:
//   - every element has a strictly positive volume,
//   - every boundary face is tagged,
//   - every face separating two different element tags is tagged,
//   - no other face is tagged.
func (m *SimplexMesh) Check() error {
	for i := 0; i < m.NElems(); i++ {
		if v := m.ElemVol(i); !(v > 0) {
			return fmt.Errorf("element %d has non-positive volume %v", i, v)
		}
	}
	if m.ElemDim != m.Dim {
		return nil // tag invariant only defined for volume meshes
	}
	m.ComputeFaceToElems()
	tagged := make(map[faceKey]int, m.NFaces())
	for i := 0; i < m.NFaces(); i++ {
		k := newFaceKey(m.Face(i))
		if _, dup := tagged[k]; dup {
			return fmt.Errorf("face %d is tagged twice", i)
		}
		tagged[k] = i
	}
	seen := make(map[faceKey]bool, len(tagged))
	for k, p := range m.faceToElems {
		_, isTagged := tagged[k]
		seen[k] = true
		switch {
		case p.e1 < 0: // boundary face
			if !isTagged {
				return fmt.Errorf("boundary face %v is not tagged", k.verts())
			}
		case m.Etags[p.e0] != m.Etags[p.e1]: // interface between tags
			if !isTagged {
				return fmt.Errorf("face %v between element tags %d and %d is not tagged",
					k.verts(), m.Etags[p.e0], m.Etags[p.e1])
			}
		default:
			if isTagged {
				return fmt.Errorf("internal face %v is tagged", k.verts())
			}
		}
	}
	for k, i := range tagged {
		if !seen[k] {
			return fmt.Errorf("tagged face %d (%v) is not a face of any element", i, k.verts())
		}
	}
	return nil
}

// AddBoundaryFaces tags all untagged boundary faces (and faces between
// different element tags) with a fresh tag, orienting boundary faces
// outward. It returns the number of faces added. Existing internal tagged
// faces are kept.
func (m *SimplexMesh) AddBoundaryFaces() int {
	m.ComputeFaceToElems()
	tagged := make(map[faceKey]bool, m.NFaces())
	for i := 0; i < m.NFaces(); i++ {
		tagged[newFaceKey(m.Face(i))] = true
	}
	newTag := 1
	for _, t := range m.Ftags {
		if t >= newTag {
			newTag = t + 1
		}
	}
	added := 0
	for k, p := range m.faceToElems {
		if tagged[k] {
			continue
		}
		if p.e1 >= 0 && m.Etags[p.e0] == m.Etags[p.e1] {
			continue
		}
		verts := m.orientedFace(p.e0, k)
		m.Faces = append(m.Faces, verts...)
		m.Ftags = append(m.Ftags, newTag)
		added++
	}
	if added > 0 {
		faces, ftags := m.Faces, m.Ftags
		m.clearAllCaches()
		m.Faces, m.Ftags = faces, ftags
	}
	return added
}

// orientedFace returns the vertices of face k ordered so that its normal
// points away from element e0.
func (m *SimplexMesh) orientedFace(e0 int, k faceKey) []int {
	verts := k.verts()
	pts := make([][]float64, len(verts))
	for i, v := range verts {
		pts[i] = m.Vert(v)
	}
	n := faceNormalFromPts(m.Dim, pts)
	c := m.ElemCenter(e0)
	fc := make([]float64, m.Dim)
	for _, v := range verts {
		pt := m.Vert(v)
		for d := 0; d < m.Dim; d++ {
			fc[d] += pt[d] / float64(len(verts))
		}
	}
	var dot float64
	for d := 0; d < m.Dim; d++ {
		dot += n[d] * (fc[d] - c[d])
	}
	if dot < 0 {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return verts
}
