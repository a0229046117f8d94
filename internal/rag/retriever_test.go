package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapEmbedder returns the vector registered for a text, or fallback.
type mapEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func (e *mapEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = e.fallback
	}
	return out, nil
}

func newTestRetriever(emb Embedder, size int) *Retriever {
	return NewRetriever(NewChunker(size, 0), emb, NewVectorIndex(), NewDocumentStore(), 2, nil)
}

func TestRetriever_EndToEndHighlightOrder(t *testing.T) {
	emb := &mapEmbedder{
		vectors: map[string][]float32{
			"aaaaaaaaaa": {0.9, 0},
			"bbbbbbbbbb": {5, 0},
			"cccccccccc": {0.3, 0},
			"dddddddddd": {4, 0},
			"question?":  {0, 0},
		},
		fallback: []float32{100, 100},
	}
	r := newTestRetriever(emb, 10)

	chunks, err := r.Index(context.Background(), 1, "aaaaaaaaaabbbbbbbbbbccccccccccdddddddddd")
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	got, err := r.Retrieve(context.Background(), 1, "question?", RetrieveOptions{MaxResults: 5, DistanceThreshold: 1.5})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, got.Indexes)
	assert.Equal(t, []string{"cccccccccc", "aaaaaaaaaa"}, got.Chunks)
	assert.False(t, got.Fallback)
}

func TestRetriever_FallbackToLeadingChunks(t *testing.T) {
	emb := &mapEmbedder{
		vectors:  map[string][]float32{"far away": {0, 0}},
		fallback: []float32{50, 50},
	}
	r := newTestRetriever(emb, 5)

	chunks, err := r.Index(context.Background(), 3, strings.Repeat("x", 25))
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	got, err := r.Retrieve(context.Background(), 3, "far away", RetrieveOptions{})
	require.NoError(t, err)
	assert.True(t, got.Fallback)
	assert.Equal(t, []int{0, 1, 2}, got.Indexes)
	assert.Len(t, got.Chunks, 3)
}

func TestRetriever_FallbackShortDocument(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float32{"q": {0}}, fallback: []float32{9}}
	r := newTestRetriever(emb, 5)

	_, err := r.Index(context.Background(), 1, "0123456789")
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), 1, "q", RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, got.Indexes)
}

func TestRetriever_ClampsKToDocumentChunks(t *testing.T) {
	emb := &mapEmbedder{fallback: []float32{1, 1}}
	r := newTestRetriever(emb, 5)

	_, err := r.Index(context.Background(), 1, "0123456789")
	require.NoError(t, err)
	_, err = r.Index(context.Background(), 2, strings.Repeat("z", 40))
	require.NoError(t, err)

	var requested []int
	inner := r.search
	r.search = func(q []float32, k int, accept func(int) bool) ([]Hit, error) {
		requested = append(requested, k)
		return inner(q, k, accept)
	}

	_, err = r.Retrieve(context.Background(), 1, "q", RetrieveOptions{MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, requested)
}

func TestRetriever_ScopedToDocument(t *testing.T) {
	emb := &mapEmbedder{
		vectors: map[string][]float32{
			"mine-one__": {5, 5},
			"theirs____": {0, 0},
			"q":          {0, 0},
		},
		fallback: []float32{5, 5},
	}
	r := newTestRetriever(emb, 10)

	_, err := r.Index(context.Background(), 1, "mine-one__")
	require.NoError(t, err)
	_, err = r.Index(context.Background(), 2, "theirs____")
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), 1, "q", RetrieveOptions{})
	require.NoError(t, err)
	assert.True(t, got.Fallback)
	assert.Equal(t, []string{"mine-one__"}, got.Chunks)
}

func TestRetriever_Errors(t *testing.T) {
	emb := &mapEmbedder{fallback: []float32{1}}
	r := newTestRetriever(emb, 10)

	_, err := r.Retrieve(context.Background(), 42, "q", RetrieveOptions{})
	assert.ErrorIs(t, err, ErrUnknownDocument)

	_, err = r.Index(context.Background(), 1, "   ")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = r.Index(context.Background(), 1, "some text")
	require.NoError(t, err)
	emb.err = errors.New("provider down")
	_, err = r.Retrieve(context.Background(), 1, "q", RetrieveOptions{})
	assert.ErrorIs(t, err, ErrEmbedding)
}

func TestRetriever_IndexEmbeddingFailureLeavesNoTrace(t *testing.T) {
	emb := &mapEmbedder{err: errors.New("boom")}
	r := newTestRetriever(emb, 4)

	_, err := r.Index(context.Background(), 1, "0123456789")
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.False(t, r.Has(1))
	assert.Equal(t, Stats{}, r.Stats())
}

func TestRetriever_ForgetResetsOnlyWhenEmpty(t *testing.T) {
	emb := &mapEmbedder{fallback: []float32{1, 2}}
	r := newTestRetriever(emb, 5)

	_, err := r.Index(context.Background(), 1, "0123456789")
	require.NoError(t, err)
	_, err = r.Index(context.Background(), 2, "abcde")
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 2, Vectors: 3, Dimension: 2}, r.Stats())

	assert.True(t, r.Forget(1))
	assert.Equal(t, Stats{Documents: 1, Vectors: 3, Tombstones: 2, Dimension: 2}, r.Stats())

	got, err := r.Retrieve(context.Background(), 2, "q", RetrieveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"abcde"}, got.Chunks)

	assert.True(t, r.Forget(2))
	assert.Equal(t, Stats{}, r.Stats())
	assert.False(t, r.Forget(2))

	_, err = r.Index(context.Background(), 3, "fresh")
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 1, Vectors: 1, Dimension: 2}, r.Stats())
}

func TestRetriever_Compact(t *testing.T) {
	emb := &mapEmbedder{
		vectors: map[string][]float32{
			"keep0": {1, 0},
			"keep1": {0, 1},
			"q":     {0, 1},
		},
		fallback: []float32{7, 7},
	}
	r := newTestRetriever(emb, 5)

	_, err := r.Index(context.Background(), 1, "dropdropdrop")
	require.NoError(t, err)
	_, err = r.Index(context.Background(), 2, "keep0keep1")
	require.NoError(t, err)
	r.Forget(1)
	require.Equal(t, 3, r.Stats().Tombstones)

	stats := r.Compact()
	assert.Equal(t, Stats{Documents: 1, Vectors: 2, Dimension: 2}, stats)

	got, err := r.Retrieve(context.Background(), 2, "q", RetrieveOptions{DistanceThreshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got.Indexes)
}

func TestRetriever_EmbedsInBatches(t *testing.T) {
	emb := &mapEmbedder{fallback: []float32{1}}
	r := newTestRetriever(emb, 1)

	_, err := r.Index(context.Background(), 1, "abcde")
	require.NoError(t, err)
	// five chunks, batch size two
	assert.Equal(t, 3, emb.calls)
}

func TestRetriever_CompactWaitsForSearch(t *testing.T) {
	emb := &mapEmbedder{
		vectors: map[string][]float32{
			"ccccc": {3, 0},
			"ddddd": {0.2, 0},
			"q":     {0, 0},
		},
		fallback: []float32{9, 9},
	}
	r := newTestRetriever(emb, 5)

	for id, text := range map[uint]string{1: "aaaaaaaaaa", 2: "bbbbb", 3: "cccccddddd"} {
		_, err := r.Index(context.Background(), id, text)
		require.NoError(t, err)
	}
	require.True(t, r.Forget(1))

	compacted := make(chan Stats, 1)
	inner := r.search
	r.search = func(q []float32, k int, accept func(int) bool) ([]Hit, error) {
		go func() { compacted <- r.Compact() }()
		select {
		case <-compacted:
			t.Error("compaction ran while a search was in flight")
		case <-time.After(20 * time.Millisecond):
		}
		return inner(q, k, accept)
	}

	got, err := r.Retrieve(context.Background(), 3, "q", RetrieveOptions{})
	require.NoError(t, err)
	assert.False(t, got.Fallback)
	assert.Equal(t, []int{1}, got.Indexes)
	assert.Equal(t, []string{"ddddd"}, got.Chunks)

	stats := <-compacted
	assert.Equal(t, 0, stats.Tombstones)
	assert.Equal(t, 3, stats.Vectors)
}
