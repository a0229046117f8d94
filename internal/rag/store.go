package rag

import (
	"fmt"
	"sort"
	"sync"
)

// ChunkRef maps a global index position back to its document chunk.
type ChunkRef struct {
	DocumentID uint
	ChunkIndex int
}

// DocumentRecord holds one document's chunks and the parallel vectors.
// Vector i is the embedding of Chunks[i]; Positions[i] is where it sits in the index.
type DocumentRecord struct {
	DocumentID uint
	Chunks     []string
	Vectors    [][]float32
	Positions  []int
}

// DocumentStore is the process-wide document cache and owns the
// position -> chunk mapping. Positions of removed documents are tombstoned,
// not reclaimed, until the index is reset or compacted.
type DocumentStore struct {
	mu         sync.RWMutex
	docs       map[uint]*DocumentRecord
	owners     map[int]ChunkRef
	tombstones int
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:   make(map[uint]*DocumentRecord),
		owners: make(map[int]ChunkRef),
	}
}

// Put registers a document whose vectors occupy [start, start+len(vectors)) in the index.
// An existing record for the same id is replaced wholesale.
func (s *DocumentStore) Put(documentID uint, chunks []string, vectors [][]float32, start int) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", ErrIndex, len(chunks), len(vectors))
	}

	rec := &DocumentRecord{
		DocumentID: documentID,
		Chunks:     chunks,
		Vectors:    vectors,
		Positions:  make([]int, len(chunks)),
	}
	for i := range chunks {
		rec.Positions[i] = start + i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.docs[documentID]; ok {
		s.tombstoneLocked(old)
	}
	s.docs[documentID] = rec
	for i, pos := range rec.Positions {
		s.owners[pos] = ChunkRef{DocumentID: documentID, ChunkIndex: i}
	}
	return nil
}

func (s *DocumentStore) Get(documentID uint) (DocumentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[documentID]
	if !ok {
		return DocumentRecord{}, false
	}
	return *rec, true
}

func (s *DocumentStore) Has(documentID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[documentID]
	return ok
}

// Remove drops a document and reports whether it existed and how many documents remain.
func (s *DocumentStore) Remove(documentID uint) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[documentID]
	if ok {
		s.tombstoneLocked(rec)
		delete(s.docs, documentID)
	}
	return ok, len(s.docs)
}

// Owner resolves a live position. Tombstoned positions are not found.
func (s *DocumentStore) Owner(position int) (ChunkRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.owners[position]
	return ref, ok
}

// PositionSet returns the live positions of one document.
func (s *DocumentStore) PositionSet(documentID uint) map[int]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[documentID]
	if !ok {
		return nil
	}
	set := make(map[int]struct{}, len(rec.Positions))
	for _, pos := range rec.Positions {
		set[pos] = struct{}{}
	}
	return set
}

func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *DocumentStore) Tombstones() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tombstones
}

// clearPositions forgets every position mapping. Used together with an index reset.
func (s *DocumentStore) clearPositions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners = make(map[int]ChunkRef)
	s.tombstones = 0
}

// relayout packs live records densely in ascending id order, swaps the index
// contents through swap while the store lock is held, and rebuilds the mapping.
func (s *DocumentStore) relayout(swap func(vectors [][]float32)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var vectors [][]float32
	owners := make(map[int]ChunkRef)
	for _, id := range ids {
		rec := s.docs[id]
		positions := make([]int, len(rec.Vectors))
		for i := range rec.Vectors {
			pos := len(vectors)
			vectors = append(vectors, rec.Vectors[i])
			positions[i] = pos
			owners[pos] = ChunkRef{DocumentID: id, ChunkIndex: i}
		}
		rec.Positions = positions
	}
	swap(vectors)
	s.owners = owners
	s.tombstones = 0
}

func (s *DocumentStore) tombstoneLocked(rec *DocumentRecord) {
	for _, pos := range rec.Positions {
		if _, ok := s.owners[pos]; ok {
			delete(s.owners, pos)
			s.tombstones++
		}
	}
}
