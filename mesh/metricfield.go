package mesh

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/remesh/metric"
)

// Metric-field utilities: complexity evaluation, scaling to a target element
// count, smoothing, gradation limiting and the implied metric of a mesh.
// Vertex metric fields are []M with one entry per vertex.

// unitVol returns the measure of the ideal unit-edge simplex: the
// equilateral triangle in 2D, the regular tetrahedron in 3D.
func unitVol(dim int) float64 {
	if dim == 2 {
		return math.Sqrt(3.0) / 4.0
	}
	return math.Sqrt(2.0) / 12.0
}

// Complexity returns the number of ideal elements implied by the vertex
// metric field: the integral of 1/(v0 * vol(M)) evaluated with the vertex
// volumes.
func Complexity[M metric.Metric[M]](msh *SimplexMesh, ms []M) (float64, error) {
	if len(ms) != msh.NVerts() {
		return 0, fmt.Errorf("metric field length %d does not match %d vertices", len(ms), msh.NVerts())
	}
	v0 := unitVol(msh.Dim)
	var c float64
	for v, w := range msh.VertVols() {
		c += w / (v0 * ms[v].Vol())
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, fmt.Errorf("non-finite complexity")
	}
	return c, nil
}

// logMean accumulates a weighted log-Euclidean mean through the pairwise
// Interpolate, which is linear in log space.
type logMean[M metric.Metric[M]] struct {
	acc  M
	wSum float64
}

func (a *logMean[M]) add(m M, w float64) {
	if w <= 0 {
		return
	}
	if a.wSum == 0 {
		a.acc = m
		a.wSum = w
		return
	}
	a.acc = a.acc.Interpolate(m, w/(a.wSum+w))
	a.wSum += w
}

// ElemMetricToVertMetric converts a per-element metric field to a per-vertex
// field by volume-weighted log-Euclidean averaging.
func ElemMetricToVertMetric[M metric.Metric[M]](msh *SimplexMesh, ms []M) ([]M, error) {
	if len(ms) != msh.NElems() {
		return nil, fmt.Errorf("metric field length %d does not match %d elements", len(ms), msh.NElems())
	}
	msh.ComputeVolumes()
	msh.ComputeVertexToElems()
	out := make([]M, msh.NVerts())
	for v := range out {
		var mean logMean[M]
		for _, e := range msh.VertElems(v) {
			mean.add(ms[e], msh.vols[e])
		}
		if mean.wSum == 0 {
			return nil, fmt.Errorf("vertex %d has no adjacent element volume", v)
		}
		out[v] = mean.acc
	}
	return out, nil
}

// VertMetricToElemMetric converts a per-vertex metric field to a per-element
// field by log-Euclidean averaging of the element vertices.
func VertMetricToElemMetric[M metric.Metric[M]](msh *SimplexMesh, ms []M) ([]M, error) {
	if len(ms) != msh.NVerts() {
		return nil, fmt.Errorf("metric field length %d does not match %d vertices", len(ms), msh.NVerts())
	}
	out := make([]M, msh.NElems())
	for e := range out {
		var mean logMean[M]
		for _, v := range msh.Elem(e) {
			mean.add(ms[v], 1)
		}
		out[e] = mean.acc
	}
	return out, nil
}

// SmoothMetric replaces each vertex metric by the log-Euclidean mean over the
// vertex and its edge neighbors.
func SmoothMetric[M metric.Metric[M]](msh *SimplexMesh, ms []M) ([]M, error) {
	if len(ms) != msh.NVerts() {
		return nil, fmt.Errorf("metric field length %d does not match %d vertices", len(ms), msh.NVerts())
	}
	out := make([]M, len(ms))
	for v := range out {
		var mean logMean[M]
		mean.add(ms[v], 1)
		for _, n := range msh.VertNeighbors(v) {
			mean.add(ms[n], 1)
		}
		out[v] = mean.acc
	}
	return out, nil
}

func metricChanged[M metric.Metric[M]](a, b M) bool {
	ca, cb := a.Components(), b.Components()
	var ref float64
	for i := range ca {
		ref = math.Max(ref, math.Max(math.Abs(ca[i]), math.Abs(cb[i])))
	}
	for i := range ca {
		if math.Abs(ca[i]-cb[i]) > 1e-8*ref {
			return true
		}
	}
	return false
}

// ApplyMetricGradation limits the metric field in place so that the size
// variation along any edge is bounded by beta: each endpoint metric is
// intersected with the span of the other endpoint's metric across the edge.
// Sweeps repeat until a fixed point or maxIter; the total number of vertex
// corrections is returned.
func ApplyMetricGradation[M metric.Metric[M]](msh *SimplexMesh, ms []M, beta float64, maxIter int) (int, error) {
	if len(ms) != msh.NVerts() {
		return 0, fmt.Errorf("metric field length %d does not match %d vertices", len(ms), msh.NVerts())
	}
	if beta <= 1 {
		return 0, fmt.Errorf("gradation coefficient %v must be > 1", beta)
	}
	if maxIter <= 0 {
		maxIter = 10
	}
	total := 0
	for iter := 0; iter < maxIter; iter++ {
		n := 0
		for _, ed := range msh.Edges() {
			i, j := ed[0], ed[1]
			e := make([]float64, msh.Dim)
			pi, pj := msh.Vert(i), msh.Vert(j)
			for d := 0; d < msh.Dim; d++ {
				e[d] = pj[d] - pi[d]
			}
			l := metric.EdgeLength(e, ms[i], ms[j])
			mi := ms[i].Intersect(ms[j].Span(l, beta))
			if metricChanged(ms[i], mi) {
				ms[i] = mi
				n++
			}
			mj := ms[j].Intersect(ms[i].Span(l, beta))
			if metricChanged(ms[j], mj) {
				ms[j] = mj
				n++
			}
		}
		total += n
		if n == 0 {
			break
		}
	}
	return total, nil
}

// ControlStepMetric bounds each metric's sizes to within a factor step of the
// sizes implied by the current mesh, preventing a single remeshing pass from
// chasing a size field too far from what the mesh resolves. It returns the
// bounded field and the number of modified vertices.
func ControlStepMetric[M metric.Metric[M]](msh *SimplexMesh, ms, implied []M, step float64) ([]M, int, error) {
	if len(ms) != msh.NVerts() || len(implied) != msh.NVerts() {
		return nil, 0, fmt.Errorf("metric field lengths %d/%d do not match %d vertices",
			len(ms), len(implied), msh.NVerts())
	}
	if step <= 1 {
		return nil, 0, fmt.Errorf("step factor %v must be > 1", step)
	}
	d := float64(msh.Dim)
	out := make([]M, len(ms))
	n := 0
	for v := range ms {
		s := math.Pow(implied[v].Vol(), 1.0/d)
		out[v] = ms[v].ScaleWithBounds(1, s/step, s*step)
		if metricChanged(ms[v], out[v]) {
			n++
		}
	}
	return out, n, nil
}

// ScaleMetric scales the vertex metric field in place so that its complexity
// matches nElems, respecting the size bounds [hMin, hMax], an optional fixed
// metric field that the result must refine, and an optional step control
// against the implied metric field. The fixed point is iterated at most
// maxIter times (10 when maxIter <= 0); the final scale factor is returned.
func ScaleMetric[M metric.Metric[M]](msh *SimplexMesh, ms []M, hMin, hMax float64, nElems int,
	fixed, implied []M, step float64, maxIter int) (float64, error) {

	if len(ms) != msh.NVerts() {
		return 0, fmt.Errorf("metric field length %d does not match %d vertices", len(ms), msh.NVerts())
	}
	if nElems <= 0 {
		return 0, fmt.Errorf("target element count %d must be positive", nElems)
	}
	if hMax <= 0 {
		hMax = math.Inf(1)
	}
	if maxIter <= 0 {
		maxIter = 10
	}
	target := float64(nElems)
	exp := 2.0 / float64(msh.Dim)

	c, err := Complexity(msh, ms)
	if err != nil {
		return 0, err
	}
	if c < 1e-300 {
		return 0, fmt.Errorf("zero metric complexity")
	}
	f := math.Pow(target/c, exp)

	scaled := make([]M, len(ms))
	for iter := 0; iter < maxIter; iter++ {
		for v := range ms {
			s := ms[v].ScaleWithBounds(f, hMin, hMax)
			if fixed != nil {
				s = s.Intersect(fixed[v])
			}
			scaled[v] = s
		}
		if implied != nil && step > 1 {
			scaled, _, err = ControlStepMetric(msh, scaled, implied, step)
			if err != nil {
				return 0, err
			}
		}
		c, err = Complexity(msh, scaled)
		if err != nil {
			return 0, err
		}
		log.WithFields(log.Fields{
			"iter":       iter,
			"factor":     f,
			"complexity": c,
			"target":     target,
		}).Debug("metric scaling step")
		if math.Abs(c-target) < 0.01*target {
			break
		}
		f *= math.Pow(target/c, exp)
	}
	copy(ms, scaled)
	return f, nil
}

// MetricInfo summarizes a vertex metric field: size extrema, maximum
// anisotropy ratio and complexity.
type MetricInfo struct {
	HMin       float64
	HMax       float64
	AnisoMax   float64
	Complexity float64
}

// FieldInfo computes the MetricInfo of a vertex metric field.
func FieldInfo[M metric.Metric[M]](msh *SimplexMesh, ms []M) (MetricInfo, error) {
	c, err := Complexity(msh, ms)
	if err != nil {
		return MetricInfo{}, err
	}
	info := MetricInfo{HMin: math.Inf(1), HMax: math.Inf(-1), AnisoMax: 1, Complexity: c}
	for _, m := range ms {
		s := m.Sizes()
		info.HMin = math.Min(info.HMin, s[0])
		info.HMax = math.Max(info.HMax, s[len(s)-1])
		if s[0] > 0 {
			info.AnisoMax = math.Max(info.AnisoMax, s[len(s)-1]/s[0])
		}
	}
	return info, nil
}

// impliedElemComps solves e^T M e = 1 over the element edges for the metric
// components; the edge count of a d-simplex matches the d(d+1)/2 unknowns.
func impliedElemComps(msh *SimplexMesh, e int) ([]float64, error) {
	d := msh.Dim
	n := d * (d + 1) / 2
	a := mat.NewDense(n, n, nil)
	b := mat.NewDense(n, 1, nil)
	dx := make([]float64, d)
	for r, ed := range elemEdges(msh.ElemDim, msh.Elem(e)) {
		p0, p1 := msh.Vert(ed[0]), msh.Vert(ed[1])
		for k := 0; k < d; k++ {
			dx[k] = p1[k] - p0[k]
		}
		if d == 2 {
			a.SetRow(r, []float64{dx[0] * dx[0], dx[1] * dx[1], 2 * dx[0] * dx[1]})
		} else {
			a.SetRow(r, []float64{
				dx[0] * dx[0], dx[1] * dx[1], dx[2] * dx[2],
				2 * dx[0] * dx[1], 2 * dx[1] * dx[2], 2 * dx[0] * dx[2],
			})
		}
		b.Set(r, 0, 1)
	}
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return nil, fmt.Errorf("element %d: implied metric solve failed: %w", e, err)
	}
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		out[k] = x.At(k, 0)
	}
	return out, nil
}

// ImpliedMetric2d returns the vertex metric field for which the current mesh
// elements are unit: the per-element solve of e^T M e = 1 over the edges,
// averaged to the vertices.
func ImpliedMetric2d(msh *SimplexMesh) ([]metric.AnisoMetric2d, error) {
	if msh.Dim != 2 || msh.ElemDim != 2 {
		return nil, fmt.Errorf("implied metric: not a 2D volume mesh")
	}
	elemMs := make([]metric.AnisoMetric2d, msh.NElems())
	for e := range elemMs {
		c, err := impliedElemComps(msh, e)
		if err != nil {
			return nil, err
		}
		elemMs[e] = metric.NewAnisoMetric2d(c)
		if err := elemMs[e].Check(); err != nil {
			return nil, fmt.Errorf("element %d: %w", e, err)
		}
	}
	return ElemMetricToVertMetric(msh, elemMs)
}

// ImpliedMetric3d is ImpliedMetric2d for 3D volume meshes.
func ImpliedMetric3d(msh *SimplexMesh) ([]metric.AnisoMetric3d, error) {
	if msh.Dim != 3 || msh.ElemDim != 3 {
		return nil, fmt.Errorf("implied metric: not a 3D volume mesh")
	}
	elemMs := make([]metric.AnisoMetric3d, msh.NElems())
	for e := range elemMs {
		c, err := impliedElemComps(msh, e)
		if err != nil {
			return nil, err
		}
		elemMs[e] = metric.NewAnisoMetric3d(c)
		if err := elemMs[e].Check(); err != nil {
			return nil, fmt.Errorf("element %d: %w", e, err)
		}
	}
	return ElemMetricToVertMetric(msh, elemMs)
}
