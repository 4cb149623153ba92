package remesher

import "math"

// swapPass improves element quality by reconnection: edge flips in 2D, the
// 2-to-3 face swap and 3-to-2 edge removal in 3D. A swap is committed only
// when it strictly improves the worst quality of its cavity and any created
// edge length stays within the swap bounds. Boundary and interface faces are
// never restructured.
func (r *Remesher[M]) swapPass() PassStats {
	lMin := math.Max(r.params.SwapMinLAbs, r.params.SwapMinLRel/math.Sqrt2)
	lMax := math.Min(r.params.SwapMaxLAbs, r.params.SwapMaxLRel*math.Sqrt2)
	rej := make(rejects)
	applied := 0
	for it := 0; it < r.params.SwapMaxIter; it++ {
		n := 0
		if r.dim == 2 {
			for _, ed := range r.liveEdges() {
				if r.tryFlip2d(ed[0], ed[1], lMin, lMax, rej) {
					n++
				}
			}
		} else {
			for _, ed := range r.liveEdges() {
				if r.trySwap32(ed[0], ed[1], rej) {
					n++
				}
			}
			n += r.faceSwapSweep(lMin, lMax, rej)
		}
		applied += n
		if n == 0 {
			break
		}
	}
	return r.passStats("swap", applied, rej)
}

// tryFlip2d flips the interior edge (v0, v1) to the opposite diagonal.
func (r *Remesher[M]) tryFlip2d(v0, v1 int, lMin, lMax float64, rej rejects) bool {
	if len(r.edgeFaces(v0, v1)) > 0 {
		return false // boundary or interface edge
	}
	shell := r.edgeElems(v0, v1)
	if len(shell) != 2 {
		return false
	}
	third := func(e int) int {
		for _, w := range r.elem(e) {
			if w != v0 && w != v1 {
				return w
			}
		}
		return -1
	}
	a, b := third(shell[0]), third(shell[1])
	if a < 0 || b < 0 || a == b {
		return false
	}
	if l := r.edgeLength(a, b); l < lMin || l > lMax {
		rej.add("edge length")
		return false
	}
	t0 := []int{v0, b, a}
	t1 := []int{v1, a, b}
	if !(r.connVol(t0) > 0) || !(r.connVol(t1) > 0) {
		rej.add("inverted")
		return false
	}
	qOld := r.cavityMinQuality(shell)
	qNew := math.Min(r.connQuality(t0), r.connQuality(t1))
	if qNew <= qOld {
		rej.add("no improvement")
		return false
	}
	tag := r.etags[shell[0]]
	for _, e := range shell {
		r.deleteElem(e)
	}
	r.addElem(t0, tag)
	r.addElem(t1, tag)
	return true
}

// trySwap32 removes the interior edge (v0, v1) when its shell is exactly 3
// tetrahedra, replacing them by 2 tetrahedra on the ring triangle.
func (r *Remesher[M]) trySwap32(v0, v1 int, rej rejects) bool {
	if len(r.edgeFaces(v0, v1)) > 0 {
		return false
	}
	shell := r.edgeElems(v0, v1)
	if len(shell) != 3 {
		return false
	}
	ring := make([]int, 0, 3)
	seen := map[int]bool{v0: true, v1: true}
	for _, e := range shell {
		for _, w := range r.elem(e) {
			if !seen[w] {
				seen[w] = true
				ring = append(ring, w)
			}
		}
	}
	if len(ring) != 3 {
		return false
	}
	a, b, c := ring[0], ring[1], ring[2]
	t0 := []int{a, b, c, v1}
	t1 := []int{a, c, b, v0}
	if r.connVol(t0) < 0 && r.connVol(t1) < 0 {
		t0 = []int{a, c, b, v1}
		t1 = []int{a, b, c, v0}
	}
	if !(r.connVol(t0) > 0) || !(r.connVol(t1) > 0) {
		rej.add("inverted")
		return false
	}
	if r.elemExists(t0) || r.elemExists(t1) {
		rej.add("duplicate element")
		return false
	}
	qOld := r.cavityMinQuality(shell)
	qNew := math.Min(r.connQuality(t0), r.connQuality(t1))
	if qNew <= qOld {
		rej.add("no improvement")
		return false
	}
	tag := r.etags[shell[0]]
	for _, e := range shell {
		r.deleteElem(e)
	}
	r.addElem(t0, tag)
	r.addElem(t1, tag)
	return true
}

// faceSwapSweep performs 2-to-3 swaps over the interior faces.
func (r *Remesher[M]) faceSwapSweep(lMin, lMax float64, rej rejects) int {
	n := 0
	for e := 0; e < r.nElemsTotal(); e++ {
		if r.eDel[e] {
			continue
		}
		conn := append([]int(nil), r.elem(e)...)
		for i := 0; i < 4; i++ {
			face := make([]int, 0, 3)
			for j, w := range conn {
				if j != i {
					face = append(face, w)
				}
			}
			if r.trySwap23(face, lMin, lMax, rej) {
				n++
				break // element e is gone
			}
		}
	}
	return n
}

// trySwap23 replaces the two tetrahedra sharing the interior face by three
// tetrahedra around the apex-to-apex edge.
func (r *Remesher[M]) trySwap23(face []int, lMin, lMax float64, rej rejects) bool {
	if _, tagged := r.faces[newFkey(face)]; tagged {
		return false
	}
	pair := make([]int, 0, 2)
	for f := range r.vToE[face[0]] {
		if _, ok := r.vToE[face[1]][f]; !ok {
			continue
		}
		if _, ok := r.vToE[face[2]][f]; !ok {
			continue
		}
		pair = append(pair, f)
	}
	if len(pair) != 2 {
		return false
	}
	apex := func(f int) int {
		for _, w := range r.elem(f) {
			if w != face[0] && w != face[1] && w != face[2] {
				return w
			}
		}
		return -1
	}
	p, q := apex(pair[0]), apex(pair[1])
	if p < 0 || q < 0 || p == q {
		return false
	}
	if l := r.edgeLength(p, q); l < lMin || l > lMax {
		rej.add("edge length")
		return false
	}
	tets := [][]int{
		{p, q, face[0], face[1]},
		{p, q, face[1], face[2]},
		{p, q, face[2], face[0]},
	}
	neg := 0
	for _, t := range tets {
		if r.connVol(t) < 0 {
			neg++
		}
	}
	if neg == 3 {
		for _, t := range tets {
			t[0], t[1] = t[1], t[0]
		}
	}
	qNew := math.Inf(1)
	for _, t := range tets {
		if !(r.connVol(t) > 0) {
			rej.add("inverted")
			return false
		}
		if r.elemExists(t) {
			rej.add("duplicate element")
			return false
		}
		qNew = math.Min(qNew, r.connQuality(t))
	}
	if qNew <= r.cavityMinQuality(pair) {
		rej.add("no improvement")
		return false
	}
	tag := r.etags[pair[0]]
	for _, f := range pair {
		r.deleteElem(f)
	}
	for _, t := range tets {
		r.addElem(t, tag)
	}
	return true
}
