package remesher

import (
	"math"
	"sort"
)

// splitPass splits edges longer than sqrt(2), longest first, until no edge
// qualifies or SplitMaxIter sweeps have run.
func (r *Remesher[M]) splitPass() PassStats {
	lCreateMin := math.Max(r.params.SplitMinLAbs, r.params.SplitMinLRel/math.Sqrt2)
	rej := make(rejects)
	applied := 0
	for it := 0; it < r.params.SplitMaxIter; it++ {
		type cand struct {
			v0, v1 int
			l      float64
		}
		cands := make([]cand, 0)
		for _, ed := range r.liveEdges() {
			if l := r.edgeLength(ed[0], ed[1]); l > math.Sqrt2 {
				cands = append(cands, cand{ed[0], ed[1], l})
			}
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].l > cands[j].l })
		n := 0
		for _, c := range cands {
			if r.trySplit(c.v0, c.v1, lCreateMin, rej) {
				n++
			}
		}
		applied += n
		if n == 0 {
			break
		}
	}
	return r.passStats("split", applied, rej)
}

// splitVertexTopo derives the topology of a vertex created on the edge
// (v0, v1) from the boundary faces the edge lies on.
func (r *Remesher[M]) splitVertexTopo(bdyFaces []fkey) vertTopo {
	if len(bdyFaces) == 0 {
		return vertTopo{kind: vInterior}
	}
	tagSet := make(map[int]bool, 2)
	for _, k := range bdyFaces {
		tagSet[r.faces[k].tag] = true
	}
	tags := make([]int, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Ints(tags)
	kind := vBoundary
	if len(tags) > 1 {
		kind = vCorner
	}
	return vertTopo{kind: kind, tags: tags}
}

// trySplit inserts a vertex at the middle of the edge (v0, v1) and
// reconnects its cavity; it commits only when every created element is valid
// and above the quality gate, every created edge is at least lCreateMin
// long, and the boundary constraints hold.
func (r *Remesher[M]) trySplit(v0, v1 int, lCreateMin float64, rej rejects) bool {
	cavity := r.edgeElems(v0, v1)
	if len(cavity) == 0 {
		return false // stale edge from an earlier operation in this sweep
	}
	bdyFaces := r.edgeFaces(v0, v1)
	if r.frozenFace(bdyFaces) {
		rej.add("frozen")
		return false
	}

	// Midpoint, projected back to the geometry for single-patch boundary
	// edges; patch junctions keep the geometric midpoint, which stays on the
	// piecewise-linear geometry.
	topo := r.splitVertexTopo(bdyFaces)
	pt := make([]float64, r.dim)
	p0, p1 := r.vert(v0), r.vert(v1)
	for k := 0; k < r.dim; k++ {
		pt[k] = 0.5 * (p0[k] + p1[k])
	}
	if topo.kind == vBoundary && r.geom != nil {
		proj, _, err := r.geom.Project(pt, topo.tags[0])
		if err != nil {
			rej.add("projection")
			return false
		}
		pt = proj
	}
	m := r.metrics[v0].Interpolate(r.metrics[v1], 0.5)

	// Created edges must not be too short.
	nv := r.addVertex(pt, m, topo)
	for _, e := range cavity {
		for _, w := range r.elem(e) {
			if w == v0 || w == v1 {
				continue
			}
			if r.edgeLength(nv, w) < lCreateMin {
				r.deleteVertex(nv)
				rej.add("short edge")
				return false
			}
		}
	}
	if r.edgeLength(nv, v0) < lCreateMin || r.edgeLength(nv, v1) < lCreateMin {
		r.deleteVertex(nv)
		rej.add("short edge")
		return false
	}

	gate := qualityGate(r.cavityMinQuality(cavity),
		r.params.SplitMinQRel, r.params.SplitMinQAbs)
	newConns := make([][]int, 0, 2*len(cavity))
	newTags := make([]int, 0, 2*len(cavity))
	for _, e := range cavity {
		for _, rep := range [2]int{v0, v1} {
			conn := append([]int(nil), r.elem(e)...)
			for i, w := range conn {
				if w == rep {
					conn[i] = nv
				}
			}
			if !(r.connVol(conn) > 0) || r.connQuality(conn) < gate {
				r.deleteVertex(nv)
				rej.add("quality")
				return false
			}
			newConns = append(newConns, conn)
			newTags = append(newTags, r.etags[e])
		}
	}

	// Split boundary faces carried by the edge and check their normals.
	newFaces := make([]faceRec, 0, 2*len(bdyFaces))
	for _, k := range bdyFaces {
		f := r.faces[k]
		for _, rep := range [2]int{v0, v1} {
			verts := append([]int(nil), f.verts...)
			for i, w := range verts {
				if w == rep {
					verts[i] = nv
				}
			}
			if !r.faceAngleOK(verts, f.tag) {
				r.deleteVertex(nv)
				rej.add("normal angle")
				return false
			}
			newFaces = append(newFaces, faceRec{verts: verts, tag: f.tag})
		}
	}

	for _, e := range cavity {
		r.deleteElem(e)
	}
	for i, conn := range newConns {
		r.addElem(conn, newTags[i])
	}
	for _, k := range bdyFaces {
		r.deleteFace(k)
	}
	for _, f := range newFaces {
		r.addFace(f.verts, f.tag)
	}
	return true
}
