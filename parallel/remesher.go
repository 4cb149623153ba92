package parallel

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/remesh/geometry"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
	"github.com/notargets/remesh/remesher"
)

// Params controls the parallel remeshing protocol.
type Params struct {
	// NLayers is the number of element layers around the old interfaces
	// remeshed at the next level.
	NLayers int
	// NLevels is the number of concurrent levels before the sequential
	// final stage.
	NLevels int
	// MinVerts skips concurrent remeshing of partitions smaller than this;
	// their region is handled by the later levels and the final stage.
	MinVerts int
}

// DefaultParams returns the default parallel parameters.
func DefaultParams() Params {
	return Params{NLayers: 2, NLevels: 1, MinVerts: 0}
}

// PartStats records one partition of one level.
type PartStats struct {
	Part       int             `json:"part"`
	NVertsIn   int             `json:"n_verts_in"`
	NElemsIn   int             `json:"n_elems_in"`
	NVertsOut  int             `json:"n_verts_out"`
	NElemsOut  int             `json:"n_elems_out"`
	Skipped    bool            `json:"skipped,omitempty"`
	DurationMS float64         `json:"duration_ms"`
	Remesher   *remesher.Stats `json:"remesher,omitempty"`
}

// LevelStats records one concurrent level.
type LevelStats struct {
	Level int         `json:"level"`
	Parts []PartStats `json:"parts"`
}

// Stats aggregates a full parallel remeshing run.
type Stats struct {
	Levels []LevelStats `json:"levels"`
	Final  *PartStats   `json:"final,omitempty"`
}

// JSON serializes the statistics.
func (s *Stats) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// ParallelRemesher remeshes a volume mesh by domain decomposition. The mesh
// is partitioned at construction time.
type ParallelRemesher[M metric.Metric[M]] struct {
	msh    *mesh.SimplexMesh
	partnr Partitioner
	part   *Partition
}

// New partitions msh into nParts with the given partitioner; a partitioning
// failure aborts construction.
func New[M metric.Metric[M]](msh *mesh.SimplexMesh, p Partitioner, nParts int) (*ParallelRemesher[M], error) {
	if err := msh.Check(); err != nil {
		return nil, fmt.Errorf("parallel: invalid input mesh: %w", err)
	}
	part, err := NewPartition(msh, p, nParts)
	if err != nil {
		return nil, err
	}
	return &ParallelRemesher[M]{msh: msh, partnr: p, part: part}, nil
}

// Partition returns the element partition computed at construction.
func (r *ParallelRemesher[M]) Partition() *Partition { return r.part }

// PartitionedMesh returns a copy of the input mesh whose element tags are
// the partition ids (1-based), for inspection.
func (r *ParallelRemesher[M]) PartitionedMesh() (*mesh.SimplexMesh, error) {
	etags := make([]int, len(r.part.EToP))
	for e, p := range r.part.EToP {
		etags[e] = p + 1
	}
	out, err := mesh.New(r.msh.Dim, r.msh.ElemDim,
		append([]float64(nil), r.msh.Coords...),
		append([]int(nil), r.msh.Elems...),
		etags,
		append([]int(nil), r.msh.Faces...),
		append([]int(nil), r.msh.Ftags...))
	if err != nil {
		return nil, fmt.Errorf("parallel: partitioned mesh: %w", err)
	}
	return out, nil
}

// partJob is one extracted subdomain within a level.
type partJob[M metric.Metric[M]] struct {
	id      int
	sub     *mesh.SimplexMesh
	metrics []M
	remesh  bool
}

// partResult carries a remeshed (or passed-through) subdomain.
type partResult[M metric.Metric[M]] struct {
	msh     *mesh.SimplexMesh
	metrics []M
	stats   PartStats
}

// Remesh runs the level protocol: concurrent remeshing of the partitions
// with frozen interfaces, merge, NLevels-1 further levels on the interface
// neighborhoods, and a sequential final stage on the remaining interface
// region.
func (r *ParallelRemesher[M]) Remesh(metrics []M, geom *geometry.LinearGeometry,
	rp remesher.Params, pp Params) (*mesh.SimplexMesh, *Stats, error) {

	if len(metrics) != r.msh.NVerts() {
		return nil, nil, fmt.Errorf("parallel: %d metrics for %d vertices", len(metrics), r.msh.NVerts())
	}
	if pp.NLayers < 1 || pp.NLevels < 1 || pp.MinVerts < 0 {
		return nil, nil, fmt.Errorf("parallel: invalid parameters %+v", pp)
	}
	if err := rp.Check(); err != nil {
		return nil, nil, fmt.Errorf("parallel: %w", err)
	}

	itag := r.interfaceTag()
	stats := &Stats{}
	cur := r.msh
	ms := metrics
	var ifVerts []int

	for lvl := 0; lvl < pp.NLevels; lvl++ {
		var assign []int
		if lvl == 0 {
			assign = r.part.EToP
		} else {
			assign = r.levelAssignment(cur, ifVerts, pp.NLayers)
			if assign == nil {
				break // nothing left to remesh concurrently
			}
		}
		var ls LevelStats
		var err error
		cur, ms, ifVerts, ls, err = r.runLevel(cur, ms, assign, geom, rp, pp, itag, lvl)
		if err != nil {
			return nil, nil, err
		}
		stats.Levels = append(stats.Levels, ls)
	}

	cur, _, err := r.finalStage(cur, ms, ifVerts, geom, rp, pp, itag, stats)
	if err != nil {
		return nil, nil, err
	}
	if err := cur.Check(); err != nil {
		return nil, nil, fmt.Errorf("parallel: merged mesh is invalid: %w", err)
	}
	return cur, stats, nil
}

// interfaceTag returns a face tag unused by the input mesh.
func (r *ParallelRemesher[M]) interfaceTag() int {
	t := 1
	for _, ft := range r.msh.Ftags {
		if ft >= t {
			t = ft + 1
		}
	}
	return t
}

// levelAssignment assigns the elements of cur for a level > 0: the NLayers
// neighborhood of the previous interfaces is repartitioned, everything else
// is passive (-1).
func (r *ParallelRemesher[M]) levelAssignment(cur *mesh.SimplexMesh, ifVerts []int, nLayers int) []int {
	active := growRegion(cur, ifVerts, nLayers)
	if len(active) == 0 || len(active) == cur.NElems() {
		return nil
	}
	sub, err := cur.ExtractElems(active)
	if err != nil {
		return nil
	}
	nParts := r.part.NParts
	if nParts > sub.Mesh.NElems() {
		nParts = sub.Mesh.NElems()
	}
	part, err := NewPartition(sub.Mesh, r.partnr, nParts)
	if err != nil {
		return nil
	}
	assign := make([]int, cur.NElems())
	for e := range assign {
		assign[e] = -1
	}
	for i, e := range sub.ElemIds {
		assign[e] = part.EToP[i]
	}
	return assign
}

// runLevel extracts one subdomain per group, freezes the interfaces,
// remeshes the non-passive groups concurrently and merges everything back.
func (r *ParallelRemesher[M]) runLevel(cur *mesh.SimplexMesh, ms []M, assign []int,
	geom *geometry.LinearGeometry, rp remesher.Params, pp Params, itag, lvl int) (
	*mesh.SimplexMesh, []M, []int, LevelStats, error) {

	frozenTags := append(append([]int(nil), rp.FrozenTags...), itag)
	frozenTags = append(frozenTags, crossGroupTags(cur, assign)...)

	groups := make(map[int][]int)
	for e, g := range assign {
		groups[g] = append(groups[g], e)
	}
	gids := make([]int, 0, len(groups))
	for g := range groups {
		gids = append(gids, g)
	}
	sort.Ints(gids)

	jobs := make([]partJob[M], 0, len(gids))
	for _, g := range gids {
		sub, err := cur.ExtractElems(groups[g])
		if err != nil {
			return nil, nil, nil, LevelStats{}, fmt.Errorf("parallel: partition %d: %w", g, err)
		}
		tagInterface(sub.Mesh, itag)
		subMs := make([]M, len(sub.VertIds))
		for i, v := range sub.VertIds {
			subMs[i] = ms[v]
		}
		jobs = append(jobs, partJob[M]{
			id:      g,
			sub:     sub.Mesh,
			metrics: subMs,
			remesh:  g >= 0 && sub.Mesh.NVerts() >= pp.MinVerts,
		})
	}

	results := make([]partResult[M], len(jobs))
	var g errgroup.Group
	for i := range jobs {
		job := &jobs[i]
		res := &results[i]
		g.Go(func() error {
			start := time.Now()
			res.stats = PartStats{
				Part:     job.id,
				NVertsIn: job.sub.NVerts(),
				NElemsIn: job.sub.NElems(),
			}
			if !job.remesh {
				res.msh, res.metrics = job.sub, job.metrics
				res.stats.Skipped = true
				res.stats.NVertsOut = res.stats.NVertsIn
				res.stats.NElemsOut = res.stats.NElemsIn
				res.stats.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
				return nil
			}
			params := rp
			params.FrozenTags = frozenTags
			rm, err := remesher.New(job.sub, job.metrics, geom)
			if err != nil {
				return fmt.Errorf("parallel: partition %d: %w", job.id, err)
			}
			rstats, err := rm.Remesh(params)
			if err != nil {
				return fmt.Errorf("parallel: partition %d: %w", job.id, err)
			}
			out, outMs, err := rm.ToMesh(false)
			if err != nil {
				return fmt.Errorf("parallel: partition %d: %w", job.id, err)
			}
			res.msh, res.metrics = out, outMs
			res.stats.NVertsOut = out.NVerts()
			res.stats.NElemsOut = out.NElems()
			res.stats.Remesher = rstats
			res.stats.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, LevelStats{}, err
	}

	merged, mergedMs, local2global, err := mergeParts(cur.Dim, results, itag)
	if err != nil {
		return nil, nil, nil, LevelStats{}, err
	}
	ifVerts := interfaceVerts(results, local2global, itag)
	// Skipped active partitions stay unadapted: hand their vertices to the
	// next level so the region is eventually remeshed.
	for i := range results {
		if results[i].stats.Skipped && jobs[i].id >= 0 {
			ifVerts = append(ifVerts, local2global[i]...)
		}
	}
	ifVerts = dedupInts(ifVerts)

	ls := LevelStats{Level: lvl}
	for i := range results {
		ls.Parts = append(ls.Parts, results[i].stats)
	}
	log.WithFields(log.Fields{
		"level":  lvl,
		"nParts": len(jobs),
		"nVerts": merged.NVerts(),
		"nElems": merged.NElems(),
	}).Info("merged parallel level")
	return merged, mergedMs, ifVerts, ls, nil
}

// finalStage sequentially remeshes the remaining interface neighborhood
// with its outer boundary frozen.
func (r *ParallelRemesher[M]) finalStage(cur *mesh.SimplexMesh, ms []M, ifVerts []int,
	geom *geometry.LinearGeometry, rp remesher.Params, pp Params, itag int, stats *Stats) (
	*mesh.SimplexMesh, []M, error) {

	if len(ifVerts) == 0 {
		return cur, ms, nil
	}
	active := growRegion(cur, ifVerts, pp.NLayers)
	if len(active) == 0 {
		return cur, ms, nil
	}
	start := time.Now()

	assign := make([]int, cur.NElems())
	for e := range assign {
		assign[e] = -1
	}
	for _, e := range active {
		assign[e] = 0
	}
	frozenTags := append(append([]int(nil), rp.FrozenTags...), itag)
	frozenTags = append(frozenTags, crossGroupTags(cur, assign)...)

	results := make([]partResult[M], 0, 2)
	ps := PartStats{Part: 0}
	for _, g := range []int{0, -1} {
		ids := make([]int, 0)
		for e, a := range assign {
			if a == g {
				ids = append(ids, e)
			}
		}
		if len(ids) == 0 {
			continue
		}
		sub, err := cur.ExtractElems(ids)
		if err != nil {
			return nil, nil, fmt.Errorf("parallel: final stage: %w", err)
		}
		tagInterface(sub.Mesh, itag)
		subMs := make([]M, len(sub.VertIds))
		for i, v := range sub.VertIds {
			subMs[i] = ms[v]
		}
		if g < 0 {
			results = append(results, partResult[M]{msh: sub.Mesh, metrics: subMs})
			continue
		}
		ps.NVertsIn, ps.NElemsIn = sub.Mesh.NVerts(), sub.Mesh.NElems()
		params := rp
		params.FrozenTags = frozenTags
		rm, err := remesher.New(sub.Mesh, subMs, geom)
		if err != nil {
			return nil, nil, fmt.Errorf("parallel: final stage: %w", err)
		}
		rstats, err := rm.Remesh(params)
		if err != nil {
			return nil, nil, fmt.Errorf("parallel: final stage: %w", err)
		}
		out, outMs, err := rm.ToMesh(false)
		if err != nil {
			return nil, nil, fmt.Errorf("parallel: final stage: %w", err)
		}
		ps.NVertsOut, ps.NElemsOut = out.NVerts(), out.NElems()
		ps.Remesher = rstats
		results = append(results, partResult[M]{msh: out, metrics: outMs})
	}

	merged, mergedMs, _, err := mergeParts(cur.Dim, results, itag)
	if err != nil {
		return nil, nil, fmt.Errorf("parallel: final stage: %w", err)
	}
	ps.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
	stats.Final = &ps
	return merged, mergedMs, nil
}
