package rag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorIndex_AddAndSearch(t *testing.T) {
	x := NewVectorIndex()

	start, end, err := x.Add([][]float32{{0, 0}, {3, 4}, {1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)
	assert.Equal(t, 3, x.Len())

	start, end, err = x.Add([][]float32{{10, 10}})
	require.NoError(t, err)
	assert.Equal(t, 3, start)
	assert.Equal(t, 4, end)
	assert.Equal(t, 4, x.Len())

	hits, err := x.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Position)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)
	assert.Equal(t, 2, hits[1].Position)
	assert.InDelta(t, 1, hits[1].Distance, 1e-9)
}

func TestVectorIndex_SearchClampsK(t *testing.T) {
	x := NewVectorIndex()
	_, _, err := x.Add([][]float32{{1}, {5}, {2}})
	require.NoError(t, err)

	hits, err := x.Search([]float32{0}, 50)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}

	hits, err = x.Search([]float32{0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_SearchFunc(t *testing.T) {
	x := NewVectorIndex()
	_, _, err := x.Add([][]float32{{0}, {1}, {2}, {3}})
	require.NoError(t, err)

	hits, err := x.SearchFunc([]float32{0}, 3, func(pos int) bool { return pos%2 == 1 })
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, 3, hits[1].Position)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	x := NewVectorIndex()
	_, _, err := x.Add([][]float32{{1, 2}})
	require.NoError(t, err)

	_, _, err = x.Add([][]float32{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrIndex)
	assert.Equal(t, 1, x.Len())

	_, err = x.Search([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrIndex)
}

func TestVectorIndex_ResetThenAdd(t *testing.T) {
	x := NewVectorIndex()
	_, _, err := x.Add([][]float32{{1, 1}, {2, 2}})
	require.NoError(t, err)

	x.Reset()
	assert.Equal(t, 0, x.Len())
	assert.Equal(t, 0, x.Dim())

	start, end, err := x.Add([][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})
	require.NoError(t, err)
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)
	assert.Equal(t, 3, x.Len())
}

func TestVectorIndex_ConcurrentAdd(t *testing.T) {
	x := NewVectorIndex()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = x.Add([][]float32{{1, 2}, {3, 4}})
			_, _ = x.Search([]float32{0, 0}, 3)
		}()
	}
	wg.Wait()
	assert.Equal(t, 40, x.Len())
}
