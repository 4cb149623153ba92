package remesher

import "math"

// smoothPass relocates vertices toward a neighbor average, walking down the
// relaxation ladder until a move keeps every incident element valid and does
// not degrade the worst incident quality. Corner and frozen vertices never
// move; boundary vertices are projected back onto their patch and checked
// against the geometry normals.
func (r *Remesher[M]) smoothPass() PassStats {
	rej := make(rejects)
	applied := 0
	for it := 0; it < r.params.SmoothIter; it++ {
		n := 0
		for v := range r.vDel {
			if r.vDel[v] {
				continue
			}
			if r.trySmooth(v, rej) {
				n++
			}
		}
		applied += n
		if n == 0 {
			break
		}
	}
	return r.passStats("smooth", applied, rej)
}

// vertNeighbors returns the vertices sharing an element with v.
func (r *Remesher[M]) vertNeighbors(v int) []int {
	seen := map[int]bool{v: true}
	out := make([]int, 0, 8)
	for e := range r.vToE[v] {
		for _, w := range r.elem(e) {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	return out
}

// smoothTarget returns the neighbor-average target position for vertex v.
// Boundary vertices only average their on-patch neighbors so that the target
// stays near the patch.
func (r *Remesher[M]) smoothTarget(v int) []float64 {
	onBdy := r.topo[v].kind == vBoundary
	avg := make([]float64, r.dim)
	var wSum float64
	for _, w := range r.vertNeighbors(v) {
		if onBdy && len(r.edgeFaces(v, w)) == 0 {
			continue
		}
		wt := 1.0
		if r.params.SmoothType == SmoothLaplacian2 {
			wt = 1.0 / math.Max(r.edgeLength(v, w), 1e-6)
		}
		pt := r.vert(w)
		for k := 0; k < r.dim; k++ {
			avg[k] += wt * pt[k]
		}
		wSum += wt
	}
	if wSum < 1e-300 {
		return nil
	}
	for k := range avg {
		avg[k] /= wSum
	}
	return avg
}

// trySmooth attempts to move vertex v, committing the first relaxation step
// that yields a valid cavity.
func (r *Remesher[M]) trySmooth(v int, rej rejects) bool {
	t := &r.topo[v]
	if t.frozen || t.kind == vCorner {
		return false
	}
	if t.kind == vBoundary && r.frozenBoundaryVertex(v) {
		return false
	}
	target := r.smoothTarget(v)
	if target == nil {
		return false
	}
	old := append([]float64(nil), r.vert(v)...)

	cavity := make([]int, 0, len(r.vToE[v]))
	for e := range r.vToE[v] {
		cavity = append(cavity, e)
	}
	qOld := r.cavityMinQuality(cavity)

	relax := r.params.SmoothRelax
	if r.params.SmoothType == SmoothAvro {
		// Try the full ladder and keep the best candidate instead of the
		// first acceptable one.
		best, bestQ := -1.0, qOld
		for _, f := range relax {
			if q, ok := r.evalMove(v, old, target, f, cavity); ok && q > bestQ {
				best, bestQ = f, q
			}
		}
		r.restore(v, old)
		if best < 0 {
			rej.add("no valid move")
			return false
		}
		_, _ = r.applyMove(v, old, target, best)
		return true
	}

	for _, f := range relax {
		q, ok := r.evalMove(v, old, target, f, cavity)
		if !ok {
			continue
		}
		if r.params.SmoothKeepLocalMinima && q < qOld {
			continue
		}
		if !r.params.SmoothKeepLocalMinima && q < 0.99*qOld {
			continue
		}
		return true // evalMove left the accepted position in place
	}
	r.restore(v, old)
	rej.add("no valid move")
	return false
}

// frozenBoundaryVertex reports whether v lies on a face with a frozen tag.
func (r *Remesher[M]) frozenBoundaryVertex(v int) bool {
	for k := range r.vToF[v] {
		if r.isFrozenTag(r.faces[k].tag) {
			return true
		}
	}
	return false
}

func (r *Remesher[M]) restore(v int, old []float64) {
	copy(r.vert(v), old)
}

// applyMove writes the relaxed position, projecting boundary vertices back
// onto their patch. It reports the position actually written.
func (r *Remesher[M]) applyMove(v int, old, target []float64, f float64) ([]float64, bool) {
	pt := make([]float64, r.dim)
	for k := 0; k < r.dim; k++ {
		pt[k] = old[k] + f*(target[k]-old[k])
	}
	if r.topo[v].kind == vBoundary && r.geom != nil {
		proj, _, err := r.geom.Project(pt, r.topo[v].tags[0])
		if err != nil {
			return nil, false
		}
		pt = proj
	}
	copy(r.vert(v), pt)
	return pt, true
}

// evalMove applies the relaxed move and validates the cavity: positive
// volumes and, for boundary vertices, acceptable face normals. On failure
// the old position is restored; on success the move stays applied and the
// new worst cavity quality is returned.
func (r *Remesher[M]) evalMove(v int, old, target []float64, f float64, cavity []int) (float64, bool) {
	if _, ok := r.applyMove(v, old, target, f); !ok {
		return 0, false
	}
	for _, e := range cavity {
		if !(r.connVol(r.elem(e)) > 0) {
			r.restore(v, old)
			return 0, false
		}
	}
	if r.topo[v].kind == vBoundary {
		for k := range r.vToF[v] {
			fc := r.faces[k]
			if !r.faceAngleOK(fc.verts, fc.tag) {
				r.restore(v, old)
				return 0, false
			}
		}
	}
	return r.cavityMinQuality(cavity), true
}
