// Package index holds an exact nearest-neighbour index over chunk embeddings.
package index

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"document-novelty/internal/models"
)

var ErrEmptyIndex = errors.New("index: no vectors")

// Neighbor is a query hit: the position of an indexed vector and its squared
// Euclidean distance to the query.
type Neighbor struct {
	Index    int
	Distance float64
}

// Index is an immutable set of equally sized vectors searched by brute force.
// It is safe for concurrent queries.
type Index struct {
	dimension int
	vectors   [][]float32
}

// Build creates an index over vectors. Position i in vectors is reported as
// Neighbor.Index i.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("index: vector 0 has zero dimension: %w", models.ErrDimensionMismatch)
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("index: vector %d has dimension %d, expected %d: %w",
				i, len(v), dim, models.ErrDimensionMismatch)
		}
		stored[i] = slices.Clone(v)
	}
	return &Index{dimension: dim, vectors: stored}, nil
}

func (x *Index) Len() int {
	return len(x.vectors)
}

func (x *Index) Dimension() int {
	return x.dimension
}

// Query returns the min(k, Len()) nearest vectors to v, nearest first. Equal
// distances are ordered by position.
func (x *Index) Query(v []float32, k int) ([]Neighbor, error) {
	if len(v) != x.dimension {
		return nil, fmt.Errorf("index: query has dimension %d, expected %d: %w",
			len(v), x.dimension, models.ErrDimensionMismatch)
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}
	k = min(k, len(x.vectors))

	all := make([]Neighbor, len(x.vectors))
	for i, stored := range x.vectors {
		all[i] = Neighbor{Index: i, Distance: SquaredL2(v, stored)}
	}
	slices.SortFunc(all, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return all[:k:k], nil
}

// SquaredL2 returns the squared Euclidean distance between two vectors of the
// same length.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
