package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docguard/internal/model"
)

const chunkInsertBatch = 200

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.CreateInBatches(&chunks, chunkInsertBatch).Error; err != nil {
		return fmt.Errorf("create document chunks batch failed: %w", err)
	}
	return nil
}

// ListByDocumentID returns a document's chunks ordered by chunk_index.
func (r *ChunkRepository) ListByDocumentID(documentID uint) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.Where("document_id = ?", documentID).Order("chunk_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list document chunks failed: %w", err)
	}
	return chunks, nil
}

// ListDocumentIDs returns the ids of documents that have at least one chunk row.
func (r *ChunkRepository) ListDocumentIDs() ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&model.DocumentChunk{}).Distinct("document_id").Order("document_id ASC").Pluck("document_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list chunked document ids failed: %w", err)
	}
	return ids, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete document chunks failed: %w", err)
	}
	return nil
}
