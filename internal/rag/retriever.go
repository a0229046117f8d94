package rag

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	DefaultMaxResults        = 5
	DefaultDistanceThreshold = 1.5
	DefaultFallbackChunks    = 3
	defaultEmbedBatchSize    = 10
)

// Embedder turns texts into fixed-length vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type RetrieveOptions struct {
	MaxResults        int
	DistanceThreshold float64
	FallbackChunks    int
}

func (o RetrieveOptions) withDefaults() RetrieveOptions {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.DistanceThreshold <= 0 {
		o.DistanceThreshold = DefaultDistanceThreshold
	}
	if o.FallbackChunks <= 0 {
		o.FallbackChunks = DefaultFallbackChunks
	}
	return o
}

// Retrieval is the result of Retrieve. Chunks and Indexes are parallel, best match first.
type Retrieval struct {
	Chunks   []string
	Indexes  []int
	Fallback bool
}

type Stats struct {
	Documents  int `json:"documents"`
	Vectors    int `json:"vectors"`
	Tombstones int `json:"tombstones"`
	Dimension  int `json:"dimension"`
}

// Retriever ties the chunker, embedder, index and document store together.
// maintMu is held exclusively for index bookkeeping (add+register,
// remove+reset, compact) and shared by searches, so a search never sees
// positions from before a compaction. Embedding calls never run under it.
type Retriever struct {
	chunker   *Chunker
	embedder  Embedder
	index     *VectorIndex
	store     *DocumentStore
	batchSize int
	log       *zap.Logger

	search  func(query []float32, k int, accept func(int) bool) ([]Hit, error)
	maintMu sync.RWMutex
}

func NewRetriever(chunker *Chunker, embedder Embedder, index *VectorIndex, store *DocumentStore, batchSize int, log *zap.Logger) *Retriever {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		store:     store,
		batchSize: batchSize,
		log:       log,
		search:    index.SearchFunc,
	}
}

// Index chunks and embeds text and registers it under documentID.
func (r *Retriever) Index(ctx context.Context, documentID uint, text string) ([]Chunk, error) {
	chunks, err := r.chunker.Split(documentID, text)
	if err != nil {
		return nil, err
	}
	if err := r.IndexChunks(ctx, documentID, Texts(chunks)); err != nil {
		return nil, err
	}
	return chunks, nil
}

// IndexChunks embeds already-split chunk texts, e.g. rows restored from the database.
func (r *Retriever) IndexChunks(ctx context.Context, documentID uint, texts []string) error {
	if len(texts) == 0 {
		return ErrEmptyDocument
	}

	vectors, err := r.embedAll(ctx, texts)
	if err != nil {
		return err
	}

	r.maintMu.Lock()
	defer r.maintMu.Unlock()

	start, end, err := r.index.Add(vectors)
	if err != nil {
		return err
	}
	if err := r.store.Put(documentID, texts, vectors, start); err != nil {
		return err
	}
	r.log.Info("document indexed",
		zap.Uint("document_id", documentID),
		zap.Int("chunks", len(texts)),
		zap.Int("position_start", start),
		zap.Int("position_end", end),
	)
	return nil
}

// Forget drops a document from the store. Its vectors stay in the index as
// tombstones unless it was the last document, in which case the index is reset.
func (r *Retriever) Forget(documentID uint) bool {
	r.maintMu.Lock()
	defer r.maintMu.Unlock()

	removed, remaining := r.store.Remove(documentID)
	if removed {
		r.log.Info("removed document embeddings", zap.Uint("document_id", documentID))
	}
	if remaining == 0 && r.index.Len() > 0 {
		r.index.Reset()
		r.store.clearPositions()
		r.log.Info("reset vector index, no documents remain")
	}
	return removed
}

// Compact rebuilds the index from live records, reclaiming tombstoned positions.
func (r *Retriever) Compact() Stats {
	r.maintMu.Lock()
	defer r.maintMu.Unlock()

	before := r.index.Len()
	r.store.relayout(r.index.replace)
	stats := r.statsLocked()
	r.log.Info("compacted vector index",
		zap.Int("vectors_before", before),
		zap.Int("vectors_after", stats.Vectors),
	)
	return stats
}

func (r *Retriever) Stats() Stats {
	r.maintMu.RLock()
	defer r.maintMu.RUnlock()
	return r.statsLocked()
}

func (r *Retriever) statsLocked() Stats {
	return Stats{
		Documents:  r.store.Len(),
		Vectors:    r.index.Len(),
		Tombstones: r.store.Tombstones(),
		Dimension:  r.index.Dim(),
	}
}

// Has reports whether documentID has embeddings in memory.
func (r *Retriever) Has(documentID uint) bool {
	return r.store.Has(documentID)
}

// Retrieve returns the chunks of documentID closest to question. Only hits with
// distance below the threshold are kept; when none survive, the first
// FallbackChunks chunks are returned in document order.
func (r *Retriever) Retrieve(ctx context.Context, documentID uint, question string, opts RetrieveOptions) (*Retrieval, error) {
	opts = opts.withDefaults()

	if !r.store.Has(documentID) {
		return nil, ErrUnknownDocument
	}

	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", ErrEmbedding, len(vectors))
	}

	r.maintMu.RLock()
	defer r.maintMu.RUnlock()

	rec, ok := r.store.Get(documentID)
	if !ok {
		return nil, ErrUnknownDocument
	}
	if len(rec.Chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	k := opts.MaxResults
	if k > len(rec.Chunks) {
		k = len(rec.Chunks)
	}

	owned := r.store.PositionSet(documentID)
	hits, err := r.search(vectors[0], k, func(pos int) bool {
		_, ok := owned[pos]
		return ok
	})
	if err != nil {
		return nil, err
	}

	result := &Retrieval{}
	for _, hit := range hits {
		if hit.Distance >= opts.DistanceThreshold {
			continue
		}
		ref, ok := r.store.Owner(hit.Position)
		if !ok || ref.DocumentID != documentID || ref.ChunkIndex < 0 || ref.ChunkIndex >= len(rec.Chunks) {
			continue
		}
		result.Chunks = append(result.Chunks, rec.Chunks[ref.ChunkIndex])
		result.Indexes = append(result.Indexes, ref.ChunkIndex)
		r.log.Debug("retrieval match",
			zap.Uint("document_id", documentID),
			zap.Int("chunk_index", ref.ChunkIndex),
			zap.Float64("distance", hit.Distance),
		)
	}

	if len(result.Chunks) == 0 {
		n := opts.FallbackChunks
		if n > len(rec.Chunks) {
			n = len(rec.Chunks)
		}
		result.Fallback = true
		for i := 0; i < n; i++ {
			result.Chunks = append(result.Chunks, rec.Chunks[i])
			result.Indexes = append(result.Indexes, i)
		}
		r.log.Warn("no relevant chunks under threshold, using leading chunks",
			zap.Uint("document_id", documentID),
			zap.Int("fallback_chunks", n),
		)
	}
	return result, nil
}

func (r *Retriever) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += r.batchSize {
		end := i + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := r.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedding count mismatch: %d texts, %d vectors", ErrEmbedding, len(texts), len(vectors))
	}
	return vectors, nil
}
