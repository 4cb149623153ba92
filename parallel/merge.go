package parallel

import (
	"fmt"
	"sort"

	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

// tagInterface tags the untagged boundary faces of an extracted subdomain
// with the interface tag. Faces that were already tagged (domain boundary,
// material interfaces) keep their tag.
func tagInterface(sub *mesh.SimplexMesh, itag int) int {
	added := sub.AddBoundaryFaces()
	for i := sub.NFaces() - added; i < sub.NFaces(); i++ {
		sub.Ftags[i] = itag
	}
	return added
}

// crossGroupTags returns the tags of faces separating two assignment groups.
// Such faces lie on a partition interface even though they carry a regular
// tag, so their whole tag must be frozen to keep both sides consistent.
func crossGroupTags(m *mesh.SimplexMesh, assign []int) []int {
	m.ComputeFaceToElems()
	seen := make(map[int]bool)
	for f := 0; f < m.NFaces(); f++ {
		e0, e1 := m.FaceElems(m.Face(f))
		if e0 < 0 || e1 < 0 {
			continue
		}
		if assign[e0] != assign[e1] {
			seen[m.Ftags[f]] = true
		}
	}
	out := make([]int, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// growRegion returns the elements within nLayers element layers of the seed
// vertices.
func growRegion(m *mesh.SimplexMesh, seeds []int, nLayers int) []int {
	active := make(map[int]bool)
	verts := make(map[int]bool, len(seeds))
	frontier := make([]int, 0, len(seeds))
	for _, v := range seeds {
		if !verts[v] {
			verts[v] = true
			frontier = append(frontier, v)
		}
	}
	for layer := 0; layer < nLayers; layer++ {
		next := make([]int, 0)
		for _, v := range frontier {
			for _, e := range m.VertElems(v) {
				if active[e] {
					continue
				}
				active[e] = true
				for _, w := range m.Elem(e) {
					if !verts[w] {
						verts[w] = true
						next = append(next, w)
					}
				}
			}
		}
		frontier = next
	}
	out := make([]int, 0, len(active))
	for e := range active {
		out = append(out, e)
	}
	sort.Ints(out)
	return out
}

type vertKey [3]float64

func keyOf(pt []float64) vertKey {
	var k vertKey
	copy(k[:], pt)
	return k
}

// mergeParts glues subdomain meshes back together. Vertices are identified
// by exact coordinates, which is valid because interface vertices are frozen
// during subdomain remeshing and keep their bits. Interface-tagged faces are
// dropped (they become untagged internal faces); other faces are
// deduplicated by vertex identity.
func mergeParts[M metric.Metric[M]](dim int, parts []partResult[M], itag int) (
	*mesh.SimplexMesh, []M, [][]int, error) {

	coords := make([]float64, 0)
	metrics := make([]M, 0)
	elems := make([]int, 0)
	etags := make([]int, 0)
	faces := make([]int, 0)
	ftags := make([]int, 0)
	byCoord := make(map[vertKey]int)
	seenFaces := make(map[[3]int]bool)
	local2global := make([][]int, len(parts))

	for pi := range parts {
		p := &parts[pi]
		l2g := make([]int, p.msh.NVerts())
		for v := 0; v < p.msh.NVerts(); v++ {
			k := keyOf(p.msh.Vert(v))
			g, ok := byCoord[k]
			if !ok {
				g = len(metrics)
				byCoord[k] = g
				coords = append(coords, p.msh.Vert(v)...)
				metrics = append(metrics, p.metrics[v])
			}
			l2g[v] = g
		}
		local2global[pi] = l2g
		for e := 0; e < p.msh.NElems(); e++ {
			for _, v := range p.msh.Elem(e) {
				elems = append(elems, l2g[v])
			}
			etags = append(etags, p.msh.Etags[e])
		}
		for f := 0; f < p.msh.NFaces(); f++ {
			if p.msh.Ftags[f] == itag {
				continue
			}
			gv := make([]int, 0, 3)
			for _, v := range p.msh.Face(f) {
				gv = append(gv, l2g[v])
			}
			k := [3]int{-1, -1, -1}
			copy(k[:], gv)
			sort.Ints(k[:len(gv)])
			if seenFaces[k] {
				continue
			}
			seenFaces[k] = true
			faces = append(faces, gv...)
			ftags = append(ftags, p.msh.Ftags[f])
		}
	}
	out, err := mesh.New(dim, dim, coords, elems, etags, faces, ftags)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parallel: merge failed: %w", err)
	}
	return out, metrics, local2global, nil
}

// interfaceVerts returns the merged ids of the vertices lying on
// interface-tagged faces of the part meshes.
func interfaceVerts[M metric.Metric[M]](parts []partResult[M], local2global [][]int, itag int) []int {
	out := make([]int, 0)
	for pi := range parts {
		p := &parts[pi]
		for f := 0; f < p.msh.NFaces(); f++ {
			if p.msh.Ftags[f] != itag {
				continue
			}
			for _, v := range p.msh.Face(f) {
				out = append(out, local2global[pi][v])
			}
		}
	}
	return dedupInts(out)
}

func dedupInts(in []int) []int {
	sort.Ints(in)
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}
