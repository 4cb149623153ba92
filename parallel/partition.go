// Package parallel implements domain-decomposed remeshing: the mesh is
// partitioned, the partition interfaces are frozen, the subdomains are
// remeshed concurrently and merged back, and the regions around the old
// interfaces are remeshed in later levels and a final sequential stage.
package parallel

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/remesh/mesh"
)

// Partitioner assigns every element of a volume mesh to one of nParts
// partitions.
type Partitioner interface {
	Partition(m *mesh.SimplexMesh, nParts int) ([]int, error)
}

// PartitionerFunc adapts a function to the Partitioner interface, e.g. to
// inject an external graph partitioner.
type PartitionerFunc func(m *mesh.SimplexMesh, nParts int) ([]int, error)

func (f PartitionerFunc) Partition(m *mesh.SimplexMesh, nParts int) ([]int, error) {
	return f(m, nParts)
}

// PartitionType selects one of the built-in partitioning strategies.
type PartitionType int

const (
	// PartitionHilbert cuts the Hilbert-ordered element sequence into
	// contiguous chunks.
	PartitionHilbert PartitionType = iota
	// PartitionGraphGrowing grows each partition by breadth-first traversal
	// of the element adjacency graph.
	PartitionGraphGrowing
)

func (t PartitionType) String() string {
	switch t {
	case PartitionHilbert:
		return "hilbert"
	case PartitionGraphGrowing:
		return "graph-growing"
	}
	return fmt.Sprintf("partition(%d)", int(t))
}

// NewPartitioner returns the built-in partitioner of the given type.
func NewPartitioner(t PartitionType) (Partitioner, error) {
	switch t {
	case PartitionHilbert:
		return PartitionerFunc(hilbertPartition), nil
	case PartitionGraphGrowing:
		return PartitionerFunc(graphGrowingPartition), nil
	}
	return nil, fmt.Errorf("parallel: unknown partition type %d", int(t))
}

func hilbertPartition(m *mesh.SimplexMesh, nParts int) ([]int, error) {
	order := m.ElemHilbertOrder()
	out := make([]int, len(order))
	chunk := (len(order) + nParts - 1) / nParts
	for i, e := range order {
		p := i / chunk
		if p >= nParts {
			p = nParts - 1
		}
		out[e] = p
	}
	return out, nil
}

func graphGrowingPartition(m *mesh.SimplexMesh, nParts int) ([]int, error) {
	ne := m.NElems()
	out := make([]int, ne)
	for i := range out {
		out[i] = -1
	}
	target := (ne + nParts - 1) / nParts
	next := 0
	for p := 0; p < nParts; p++ {
		size := 0
		budget := target
		if p == nParts-1 {
			budget = ne // last partition absorbs the remainder
		}
		for size < budget {
			for next < ne && out[next] >= 0 {
				next++
			}
			if next == ne {
				break
			}
			queue := []int{next}
			out[next] = p
			size++
			for len(queue) > 0 && size < budget {
				e := queue[0]
				queue = queue[1:]
				for _, n := range m.ElemNeighbors(e) {
					if n < 0 || out[n] >= 0 {
						continue
					}
					out[n] = p
					size++
					queue = append(queue, n)
					if size == budget {
						break
					}
				}
			}
		}
	}
	return out, nil
}

// Partition is a validated element-to-partition assignment with its
// statistics.
type Partition struct {
	NParts int
	// EToP maps each element to its partition.
	EToP []int
	// Counts is the number of elements per partition.
	Counts []int
	// InterfaceFaces counts the element faces shared by two partitions.
	InterfaceFaces int
	// Imbalance is the largest partition size relative to the ideal
	// (1 = perfectly balanced).
	Imbalance float64
}

// NewPartition runs the partitioner on m and validates the layout.
func NewPartition(m *mesh.SimplexMesh, p Partitioner, nParts int) (*Partition, error) {
	if m.ElemDim != m.Dim {
		return nil, fmt.Errorf("parallel: not a volume mesh")
	}
	if nParts < 1 {
		return nil, fmt.Errorf("parallel: invalid partition count %d", nParts)
	}
	if nParts > m.NElems() {
		return nil, fmt.Errorf("parallel: %d partitions for %d elements", nParts, m.NElems())
	}
	etop, err := p.Partition(m, nParts)
	if err != nil {
		return nil, fmt.Errorf("parallel: partitioning failed: %w", err)
	}
	out := &Partition{NParts: nParts, EToP: etop}
	if err := out.Validate(m); err != nil {
		return nil, err
	}
	out.computeStats(m)
	log.WithFields(log.Fields{
		"nParts":         nParts,
		"nElems":         m.NElems(),
		"imbalance":      out.Imbalance,
		"interfaceFaces": out.InterfaceFaces,
	}).Info("partitioned mesh")
	return out, nil
}

// Validate checks the layout: one assignment per element, partition ids in
// range, no empty partition.
func (p *Partition) Validate(m *mesh.SimplexMesh) error {
	if len(p.EToP) != m.NElems() {
		return fmt.Errorf("parallel: assignment length %d does not match %d elements",
			len(p.EToP), m.NElems())
	}
	counts := make([]int, p.NParts)
	for e, part := range p.EToP {
		if part < 0 || part >= p.NParts {
			return fmt.Errorf("parallel: element %d assigned to invalid partition %d", e, part)
		}
		counts[part]++
	}
	for part, n := range counts {
		if n == 0 {
			return fmt.Errorf("parallel: partition %d is empty", part)
		}
	}
	return nil
}

func (p *Partition) computeStats(m *mesh.SimplexMesh) {
	p.Counts = make([]int, p.NParts)
	for _, part := range p.EToP {
		p.Counts[part]++
	}
	maxCount := 0
	for _, n := range p.Counts {
		if n > maxCount {
			maxCount = n
		}
	}
	p.Imbalance = float64(maxCount) * float64(p.NParts) / math.Max(float64(m.NElems()), 1)
	p.InterfaceFaces = 0
	for e := 0; e < m.NElems(); e++ {
		for _, n := range m.ElemNeighbors(e) {
			if n > e && p.EToP[n] != p.EToP[e] {
				p.InterfaceFaces++
			}
		}
	}
}

// PartElems returns the element ids of one partition.
func (p *Partition) PartElems(part int) []int {
	out := make([]int, 0, p.Counts[part])
	for e, pp := range p.EToP {
		if pp == part {
			out = append(out, e)
		}
	}
	return out
}
