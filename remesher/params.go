// Package remesher implements sequential metric-based remeshing of simplex
// meshes: iterative edge split, edge collapse, edge/face swap and vertex
// smoothing passes, each applied through cavity operators that propose a
// local reconnection, validate it (element validity, quality gates, boundary
// constraints) and commit or reject it atomically.
package remesher

import "fmt"

// SmoothingType selects the vertex smoothing strategy.
type SmoothingType int

const (
	// SmoothLaplacian moves vertices toward the arithmetic mean of their
	// neighbors.
	SmoothLaplacian SmoothingType = iota
	// SmoothLaplacian2 weights the neighbors by inverse metric edge length.
	SmoothLaplacian2
	// SmoothAvro picks, per vertex, the neighbor-mean candidate that
	// maximizes the worst incident element quality.
	SmoothAvro
	// SmoothNLOpt is the disabled optimization-based smoother; selecting it
	// is an error.
	SmoothNLOpt
)

func (s SmoothingType) String() string {
	switch s {
	case SmoothLaplacian:
		return "laplacian"
	case SmoothLaplacian2:
		return "laplacian2"
	case SmoothAvro:
		return "avro"
	case SmoothNLOpt:
		return "nlopt"
	}
	return fmt.Sprintf("smoothing(%d)", int(s))
}

// Params controls the remeshing pipeline. Length thresholds are relative to
// the unit-length band [1/sqrt(2), sqrt(2)]: a split may not create edges
// shorter than max(SplitMinLAbs, SplitMinLRel/sqrt(2)) and a collapse may not
// create edges longer than min(CollapseMaxLAbs, CollapseMaxLRel*sqrt(2)).
// Quality gates combine an absolute floor with a fraction of the
// pre-operation cavity quality.
type Params struct {
	// NumIter is the number of outer split/collapse/swap/smooth iterations.
	NumIter int
	// TwoSteps runs every outer iteration twice.
	TwoSteps bool

	SplitMaxIter int
	SplitMinLRel float64
	SplitMinLAbs float64
	SplitMinQRel float64
	SplitMinQAbs float64

	CollapseMaxIter int
	CollapseMaxLRel float64
	CollapseMaxLAbs float64
	CollapseMinQRel float64
	CollapseMinQAbs float64

	SwapMaxIter int
	SwapMinLRel float64
	SwapMinLAbs float64
	SwapMaxLRel float64
	SwapMaxLAbs float64

	SmoothIter int
	SmoothType SmoothingType
	// SmoothRelax is the relaxation ladder tried per vertex; the first
	// factor yielding a valid move wins.
	SmoothRelax []float64
	// SmoothKeepLocalMinima forbids moves that lower the worst incident
	// element quality, even slightly.
	SmoothKeepLocalMinima bool

	// MaxAngle (degrees) bounds the deviation between boundary face normals
	// and the geometry normal for any committed operation.
	MaxAngle float64

	// FrozenTags lists face tags whose vertices and faces must survive
	// remeshing untouched (parallel interface protocol).
	FrozenTags []int

	// Debug enables per-cavity rejection logging.
	Debug bool
}

// DefaultParams returns the default remeshing parameters.
func DefaultParams() Params {
	return Params{
		NumIter:         4,
		TwoSteps:        false,
		SplitMaxIter:    1,
		SplitMinLRel:    1.0,
		SplitMinLAbs:    0.75,
		SplitMinQRel:    0.8,
		SplitMinQAbs:    0.5,
		CollapseMaxIter: 1,
		CollapseMaxLRel: 1.0,
		CollapseMaxLAbs: 1.42,
		CollapseMinQRel: 0.8,
		CollapseMinQAbs: 0.5,
		SwapMaxIter:     2,
		SwapMinLRel:     0.75,
		SwapMinLAbs:     0.5,
		SwapMaxLRel:     1.5,
		SwapMaxLAbs:     2.0,
		SmoothIter:      2,
		SmoothType:      SmoothLaplacian,
		SmoothRelax:     []float64{1.0, 0.5, 0.25},
		MaxAngle:        25.0,
	}
}

// Check validates the parameter combination.
func (p *Params) Check() error {
	if p.NumIter < 0 {
		return fmt.Errorf("invalid NumIter %d", p.NumIter)
	}
	if p.SmoothType == SmoothNLOpt {
		return fmt.Errorf("the nlopt smoother is not available")
	}
	if p.SmoothType < SmoothLaplacian || p.SmoothType > SmoothNLOpt {
		return fmt.Errorf("invalid smoothing type %d", int(p.SmoothType))
	}
	if p.SplitMinQAbs < 0 || p.SplitMinQAbs > 1 || p.CollapseMinQAbs < 0 || p.CollapseMinQAbs > 1 {
		return fmt.Errorf("quality gates must be in [0, 1]")
	}
	if p.MaxAngle <= 0 || p.MaxAngle >= 90 {
		return fmt.Errorf("invalid MaxAngle %v", p.MaxAngle)
	}
	for _, r := range p.SmoothRelax {
		if r <= 0 || r > 1 {
			return fmt.Errorf("invalid smoothing relaxation factor %v", r)
		}
	}
	return nil
}
