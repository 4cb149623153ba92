package remesher

import (
	"math"
	"sort"
)

// collapsePass removes edges shorter than 1/sqrt(2), shortest first, until
// no edge qualifies or CollapseMaxIter sweeps have run.
func (r *Remesher[M]) collapsePass() PassStats {
	lCreateMax := math.Min(r.params.CollapseMaxLAbs, r.params.CollapseMaxLRel*math.Sqrt2)
	rej := make(rejects)
	applied := 0
	for it := 0; it < r.params.CollapseMaxIter; it++ {
		type cand struct {
			v0, v1 int
			l      float64
		}
		cands := make([]cand, 0)
		for _, ed := range r.liveEdges() {
			if l := r.edgeLength(ed[0], ed[1]); l < 1.0/math.Sqrt2 {
				cands = append(cands, cand{ed[0], ed[1], l})
			}
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].l < cands[j].l })
		n := 0
		for _, c := range cands {
			if r.vDel[c.v0] || r.vDel[c.v1] {
				continue // endpoint removed earlier in this sweep
			}
			if r.tryCollapse(c.v0, c.v1, lCreateMax, rej) ||
				r.tryCollapse(c.v1, c.v0, lCreateMax, rej) {
				n++
			}
		}
		applied += n
		if n == 0 {
			break
		}
	}
	return r.passStats("collapse", applied, rej)
}

// collapseAllowed checks the topological eligibility of removing vertex v by
// sliding it onto target.
func (r *Remesher[M]) collapseAllowed(v, target int) string {
	t := &r.topo[v]
	if t.frozen {
		return "frozen"
	}
	if t.kind == vCorner {
		return "corner"
	}
	if t.kind == vBoundary {
		// A boundary vertex may only slide along its own patch.
		if len(r.edgeFaces(v, target)) == 0 {
			return "off boundary"
		}
		tt := &r.topo[target]
		if tt.kind == vInterior {
			return "off boundary"
		}
		for _, tag := range t.tags {
			found := false
			for _, tag2 := range tt.tags {
				if tag2 == tag {
					found = true
					break
				}
			}
			if !found {
				return "patch change"
			}
		}
	}
	return ""
}

// tryCollapse removes vertex v0 by reconnecting its cavity onto v1.
func (r *Remesher[M]) tryCollapse(v0, v1 int, lCreateMax float64, rej rejects) bool {
	if cause := r.collapseAllowed(v0, v1); cause != "" {
		rej.add(cause)
		return false
	}
	bdyFaces := make([]fkey, 0, len(r.vToF[v0]))
	for k := range r.vToF[v0] {
		bdyFaces = append(bdyFaces, k)
	}
	if r.frozenFace(bdyFaces) {
		rej.add("frozen")
		return false
	}

	// Created edges must not be too long.
	for e := range r.vToE[v0] {
		for _, w := range r.elem(e) {
			if w == v0 || w == v1 {
				continue
			}
			if r.edgeLength(v1, w) > lCreateMax {
				rej.add("long edge")
				return false
			}
		}
	}

	cavity := make([]int, 0, len(r.vToE[v0]))
	for e := range r.vToE[v0] {
		cavity = append(cavity, e)
	}
	sort.Ints(cavity)
	gate := qualityGate(r.cavityMinQuality(cavity),
		r.params.CollapseMinQRel, r.params.CollapseMinQAbs)

	newConns := make([][]int, 0, len(cavity))
	newTags := make([]int, 0, len(cavity))
	for _, e := range cavity {
		conn := r.elem(e)
		drop := false
		for _, w := range conn {
			if w == v1 {
				drop = true // the element carries the collapsed edge
				break
			}
		}
		if drop {
			continue
		}
		repl := append([]int(nil), conn...)
		for i, w := range repl {
			if w == v0 {
				repl[i] = v1
			}
		}
		if r.elemExists(repl) {
			rej.add("duplicate element")
			return false
		}
		if !(r.connVol(repl) > 0) || r.connQuality(repl) < gate {
			rej.add("quality")
			return false
		}
		newConns = append(newConns, repl)
		newTags = append(newTags, r.etags[e])
	}

	// Boundary faces: faces carrying the edge disappear, the others follow
	// the vertex.
	newFaces := make([]faceRec, 0, len(bdyFaces))
	for _, k := range bdyFaces {
		f := r.faces[k]
		onEdge := false
		for _, w := range f.verts {
			if w == v1 {
				onEdge = true
				break
			}
		}
		if onEdge {
			continue
		}
		verts := append([]int(nil), f.verts...)
		for i, w := range verts {
			if w == v0 {
				verts[i] = v1
			}
		}
		if _, dup := r.faces[newFkey(verts)]; dup {
			rej.add("duplicate face")
			return false
		}
		if !r.faceAngleOK(verts, f.tag) {
			rej.add("normal angle")
			return false
		}
		newFaces = append(newFaces, faceRec{verts: verts, tag: f.tag})
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
	r.deleteVertex(v0)
	return true
}
