package mesh

import (
	"math"

	"github.com/notargets/remesh/metric"
)

// Element quality and edge-length measurement in a vertex metric field.
//
// The shape quality of a simplex K is
//
//	q(K) = c_d * vol_M(K)^(2/d) / sum_e l_M(e)^2
//
// normalized so that the ideal unit-edge simplex has q = 1; inverted elements
// get q = 0. With the unit isotropic metric this reduces to the usual
// Euclidean shape measure.

func qualityConst(dim int) float64 {
	if dim == 2 {
		return 4.0 * math.Sqrt(3.0)
	}
	return 6.0 * math.Pow(6.0*math.Sqrt(2.0), 2.0/3.0)
}

// ElemQuality returns the metric shape quality of element e under the vertex
// metric field ms.
func ElemQuality[M metric.Metric[M]](msh *SimplexMesh, e int, ms []M) float64 {
	conn := msh.Elem(e)
	var mean logMean[M]
	for _, v := range conn {
		mean.add(ms[v], 1)
	}
	volM := msh.ElemVol(e) / mean.acc.Vol()
	if !(volM > 0) {
		return 0
	}
	var l2 float64
	edge := make([]float64, msh.Dim)
	for _, ed := range elemEdges(msh.ElemDim, conn) {
		p0, p1 := msh.Vert(ed[0]), msh.Vert(ed[1])
		for k := 0; k < msh.Dim; k++ {
			edge[k] = p1[k] - p0[k]
		}
		l := metric.EdgeLength(edge, ms[ed[0]], ms[ed[1]])
		l2 += l * l
	}
	if l2 < 1e-300 {
		return 0
	}
	return qualityConst(msh.Dim) * math.Pow(volM, 2.0/float64(msh.Dim)) / l2
}

// Qualities returns the metric shape quality of every element.
func Qualities[M metric.Metric[M]](msh *SimplexMesh, ms []M) []float64 {
	out := make([]float64, msh.NElems())
	for e := range out {
		out[e] = ElemQuality(msh, e, ms)
	}
	return out
}

// EdgeLengths returns the metric length of every unique mesh edge, in the
// order of Edges().
func EdgeLengths[M metric.Metric[M]](msh *SimplexMesh, ms []M) []float64 {
	edges := msh.Edges()
	out := make([]float64, len(edges))
	edge := make([]float64, msh.Dim)
	for i, ed := range edges {
		p0, p1 := msh.Vert(ed[0]), msh.Vert(ed[1])
		for k := 0; k < msh.Dim; k++ {
			edge[k] = p1[k] - p0[k]
		}
		out[i] = metric.EdgeLength(edge, ms[ed[0]], ms[ed[1]])
	}
	return out
}

// ElemGammas returns the Euclidean shape quality of every element (the
// metric quality under the unit isotropic metric).
func ElemGammas(msh *SimplexMesh) []float64 {
	ms := make([]metric.IsoMetric, msh.NVerts())
	for v := range ms {
		ms[v] = metric.NewIsoMetric(1, msh.Dim)
	}
	return Qualities(msh, ms)
}

// FaceSkewnesses returns, for every interior face, the adjacent element pair
// and the face skewness: the distance from the face center to the line
// through the two element centroids, normalized by the centroid distance.
// A perfectly centered face has skewness 0.
func (m *SimplexMesh) FaceSkewnesses() ([][2]int, []float64) {
	centroid := func(conn []int, out []float64) {
		for k := range out {
			out[k] = 0
		}
		for _, v := range conn {
			p := m.Vert(v)
			for k := range out {
				out[k] += p[k] / float64(len(conn))
			}
		}
	}
	pairs := make([][2]int, 0, m.NElems())
	vals := make([]float64, 0, m.NElems())
	c0 := make([]float64, m.Dim)
	c1 := make([]float64, m.Dim)
	fc := make([]float64, m.Dim)
	for e := 0; e < m.NElems(); e++ {
		faces := elemFaces(m.ElemDim, m.Elem(e))
		for i, n := range m.ElemNeighbors(e) {
			if n <= e {
				continue // boundary, or already visited from the other side
			}
			centroid(m.Elem(e), c0)
			centroid(m.Elem(n), c1)
			centroid(faces[i], fc)
			var l2, w2, dot float64
			for k := 0; k < m.Dim; k++ {
				u := c1[k] - c0[k]
				w := fc[k] - c0[k]
				l2 += u * u
				w2 += w * w
				dot += u * w
			}
			d2 := w2 - dot*dot/math.Max(l2, 1e-300)
			pairs = append(pairs, [2]int{e, n})
			vals = append(vals, math.Sqrt(math.Max(d2, 0)/math.Max(l2, 1e-300)))
		}
	}
	return pairs, vals
}

// EdgeLengthRatios returns, for every element, the ratio of its longest to
// its shortest Euclidean edge.
func (m *SimplexMesh) EdgeLengthRatios() []float64 {
	out := make([]float64, m.NElems())
	for e := range out {
		lMin, lMax := math.Inf(1), 0.0
		for _, ed := range elemEdges(m.ElemDim, m.Elem(e)) {
			var l2 float64
			p0, p1 := m.Vert(ed[0]), m.Vert(ed[1])
			for k := 0; k < m.Dim; k++ {
				d := p1[k] - p0[k]
				l2 += d * d
			}
			lMin = math.Min(lMin, l2)
			lMax = math.Max(lMax, l2)
		}
		out[e] = math.Sqrt(lMax / math.Max(lMin, 1e-300))
	}
	return out
}
