package remesher

import (
	"encoding/json"
	"math"
	"sort"
)

// HistStats summarizes a sample of lengths or qualities: extrema, mean and a
// histogram over fixed bins.
type HistStats struct {
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Mean   float64   `json:"mean"`
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
}

func newHistStats(vals, bins []float64) HistStats {
	s := HistStats{
		Min:    math.Inf(1),
		Max:    math.Inf(-1),
		Bins:   bins,
		Counts: make([]int, len(bins)+1),
	}
	if len(vals) == 0 {
		s.Min, s.Max = 0, 0
		return s
	}
	var sum float64
	for _, v := range vals {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
		i := sort.SearchFloat64s(bins, v)
		s.Counts[i]++
	}
	s.Mean = sum / float64(len(vals))
	return s
}

var (
	lengthBins  = []float64{0.5, 1.0 / math.Sqrt2, 1.0, math.Sqrt2, 2.0}
	qualityBins = []float64{0.2, 0.4, 0.6, 0.8}
)

// PassStats records the outcome of one remeshing pass.
type PassStats struct {
	Step      string         `json:"step"`
	NApplied  int            `json:"n_applied"`
	NRejected map[string]int `json:"n_rejected,omitempty"`
	NVerts    int            `json:"n_verts"`
	NElems    int            `json:"n_elems"`
	Lengths   HistStats      `json:"lengths"`
	Qualities HistStats      `json:"qualities"`
}

// Stats aggregates the pass records of a full Remesh call.
type Stats struct {
	Passes []PassStats `json:"passes"`
}

// JSON serializes the statistics.
func (s *Stats) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// rejects tallies rejection causes within a pass.
type rejects map[string]int

func (r rejects) add(cause string) { r[cause]++ }

func (r rejects) total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}
