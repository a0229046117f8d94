package model

import "time"

// DocumentChunk is the persisted text of one chunk; vectors live only in memory.
type DocumentChunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;uniqueIndex:idx_document_chunk" json:"document_id"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:idx_document_chunk" json:"chunk_index"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
