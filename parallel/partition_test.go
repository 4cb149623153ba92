package parallel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/remesh/mesh"
)

// gridMesh is a structured n x n triangulation of the unit square with
// outward-oriented boundary faces tagged 1..4.
func gridMesh(t *testing.T, n int) *mesh.SimplexMesh {
	t.Helper()
	vid := func(i, j int) int { return i*(n+1) + j }
	coords := make([]float64, 0, 2*(n+1)*(n+1))
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			coords = append(coords, float64(i)/float64(n), float64(j)/float64(n))
		}
	}
	elems := make([]int, 0, 6*n*n)
	etags := make([]int, 0, 2*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a, b := vid(i, j), vid(i+1, j)
			c, d := vid(i+1, j+1), vid(i, j+1)
			elems = append(elems, a, b, c, a, c, d)
			etags = append(etags, 1, 1)
		}
	}
	faces := make([]int, 0, 8*n)
	ftags := make([]int, 0, 4*n)
	for k := 0; k < n; k++ {
		faces = append(faces, vid(k, 0), vid(k+1, 0))
		ftags = append(ftags, 1)
		faces = append(faces, vid(n, k), vid(n, k+1))
		ftags = append(ftags, 2)
		faces = append(faces, vid(k+1, n), vid(k, n))
		ftags = append(ftags, 3)
		faces = append(faces, vid(0, k+1), vid(0, k))
		ftags = append(ftags, 4)
	}
	m, err := mesh.New(2, 2, coords, elems, etags, faces, ftags)
	require.NoError(t, err)
	require.NoError(t, m.Check())
	return m
}

func TestPartitioners(t *testing.T) {
	m := gridMesh(t, 6)
	for _, pt := range []PartitionType{PartitionHilbert, PartitionGraphGrowing} {
		t.Run(pt.String(), func(t *testing.T) {
			pr, err := NewPartitioner(pt)
			require.NoError(t, err)
			part, err := NewPartition(m, pr, 4)
			require.NoError(t, err)
			require.NoError(t, part.Validate(m))

			assert.Equal(t, 4, part.NParts)
			sum := 0
			for p, n := range part.Counts {
				assert.Greater(t, n, 0, "partition %d", p)
				sum += n
			}
			assert.Equal(t, m.NElems(), sum)
			assert.GreaterOrEqual(t, part.Imbalance, 1.0)
			assert.Less(t, part.Imbalance, 2.0)
			assert.Greater(t, part.InterfaceFaces, 0)

			for p := 0; p < 4; p++ {
				assert.Len(t, part.PartElems(p), part.Counts[p])
			}
		})
	}
}

func TestPartitionErrors(t *testing.T) {
	m := gridMesh(t, 2)
	pr, err := NewPartitioner(PartitionHilbert)
	require.NoError(t, err)

	t.Run("TooManyParts", func(t *testing.T) {
		_, err := NewPartition(m, pr, m.NElems()+1)
		assert.Error(t, err)
	})

	t.Run("ZeroParts", func(t *testing.T) {
		_, err := NewPartition(m, pr, 0)
		assert.Error(t, err)
	})

	t.Run("NotVolumeMesh", func(t *testing.T) {
		bdy, _ := m.Boundary()
		_, err := NewPartition(bdy, pr, 2)
		assert.Error(t, err)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := NewPartitioner(PartitionType(99))
		assert.Error(t, err)
	})
}

func TestPartitionerFunc(t *testing.T) {
	m := gridMesh(t, 2)
	// A custom partitioner splitting by element parity.
	pf := PartitionerFunc(func(m *mesh.SimplexMesh, nParts int) ([]int, error) {
		out := make([]int, m.NElems())
		for e := range out {
			out[e] = e % nParts
		}
		return out, nil
	})
	part, err := NewPartition(m, pf, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, part.Counts)
}
