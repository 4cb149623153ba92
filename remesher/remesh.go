package remesher

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Remesh runs the full adaptation pipeline: NumIter outer iterations of
// split, collapse, swap and smooth passes (doubled with TwoSteps), followed
// by a final swap and smooth cleanup. Statistics are collected per pass and
// returned; they remain available through Stats.
func (r *Remesher[M]) Remesh(params Params) (*Stats, error) {
	if err := params.Check(); err != nil {
		return nil, fmt.Errorf("remesher: %w", err)
	}
	r.params = params
	r.stats = Stats{}
	r.markFrozen()

	steps := 1
	if params.TwoSteps {
		steps = 2
	}
	for iter := 0; iter < params.NumIter*steps; iter++ {
		for _, pass := range []func() PassStats{
			r.splitPass, r.collapsePass, r.swapPass, r.smoothPass,
		} {
			ps := pass()
			r.stats.Passes = append(r.stats.Passes, ps)
			r.logPass(iter, ps)
		}
	}
	if params.NumIter > 0 {
		for _, pass := range []func() PassStats{r.swapPass, r.smoothPass} {
			ps := pass()
			r.stats.Passes = append(r.stats.Passes, ps)
			r.logPass(params.NumIter*steps, ps)
		}
	}
	if err := r.Check(); err != nil {
		return nil, fmt.Errorf("remesher: inconsistent state after remeshing: %w", err)
	}
	return &r.stats, nil
}

// markFrozen flags the vertices of frozen-tagged faces so that no operator
// touches them.
func (r *Remesher[M]) markFrozen() {
	for v := range r.topo {
		r.topo[v].frozen = false
	}
	if len(r.params.FrozenTags) == 0 {
		return
	}
	for _, f := range r.faces {
		if !r.isFrozenTag(f.tag) {
			continue
		}
		for _, v := range f.verts {
			r.topo[v].frozen = true
		}
	}
}

// passStats assembles the record of a finished pass.
func (r *Remesher[M]) passStats(step string, applied int, rej rejects) PassStats {
	ps := PassStats{
		Step:      step,
		NApplied:  applied,
		NVerts:    r.NVerts(),
		NElems:    r.NElems(),
		Lengths:   newHistStats(r.Lengths(), lengthBins),
		Qualities: newHistStats(r.Qualities(), qualityBins),
	}
	if len(rej) > 0 {
		ps.NRejected = map[string]int(rej)
	}
	return ps
}

func (r *Remesher[M]) logPass(iter int, ps PassStats) {
	fields := log.Fields{
		"iter":     iter,
		"step":     ps.Step,
		"applied":  ps.NApplied,
		"rejected": 0,
		"nVerts":   ps.NVerts,
		"nElems":   ps.NElems,
	}
	if ps.NRejected != nil {
		fields["rejected"] = rejects(ps.NRejected).total()
	}
	log.WithFields(fields).Info("remeshing pass")
	if r.params.Debug {
		for cause, n := range ps.NRejected {
			log.WithFields(log.Fields{
				"step":  ps.Step,
				"cause": cause,
				"n":     n,
			}).Debug("pass rejections")
		}
	}
}
