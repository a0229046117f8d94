package rag

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Hit is one search result. Position is the global insertion position in the index.
type Hit struct {
	Position int
	Distance float64
}

// VectorIndex is a flat, append-only L2 index over all documents' chunk vectors.
// Positions are never reused until Reset.
type VectorIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Add appends vectors and returns the half-open range [start, end) of their positions.
// The first vector added after construction or Reset fixes the dimension.
func (x *VectorIndex) Add(vectors [][]float32) (int, int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	start := len(x.vectors)
	if len(vectors) == 0 {
		return start, start, nil
	}

	dim := x.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	if dim == 0 {
		return start, start, fmt.Errorf("%w: empty vector", ErrIndex)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return start, start, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrIndex, i, len(v), dim)
		}
	}

	x.dim = dim
	for _, v := range vectors {
		cp := make([]float32, len(v))
		copy(cp, v)
		x.vectors = append(x.vectors, cp)
	}
	return start, len(x.vectors), nil
}

// Search returns at most min(k, Len()) hits, ascending by distance.
func (x *VectorIndex) Search(query []float32, k int) ([]Hit, error) {
	return x.SearchFunc(query, k, nil)
}

// SearchFunc is Search restricted to positions for which accept returns true.
// A nil accept admits every position.
func (x *VectorIndex) SearchFunc(query []float32, k int, accept func(position int) bool) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(x.vectors) == 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d", ErrIndex, len(query), x.dim)
	}

	hits := make([]Hit, 0, len(x.vectors))
	for pos, v := range x.vectors {
		if accept != nil && !accept(pos) {
			continue
		}
		hits = append(hits, Hit{Position: pos, Distance: l2(query, v)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Reset drops every vector. Callers must only reset when no document is tracked.
func (x *VectorIndex) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = nil
	x.dim = 0
}

func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

func (x *VectorIndex) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// replace swaps the whole contents. Vectors are owned by the caller's records and not copied.
func (x *VectorIndex) replace(vectors [][]float32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = vectors
	x.dim = 0
	if len(vectors) > 0 {
		x.dim = len(vectors[0])
	}
}
