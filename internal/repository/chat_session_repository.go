package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docguard/internal/model"
)

type ChatSessionRepository struct {
	db *gorm.DB
}

func NewChatSessionRepository(db *gorm.DB) *ChatSessionRepository {
	return &ChatSessionRepository{db: db}
}

func (r *ChatSessionRepository) Create(session *model.ChatSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create chat session failed: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) GetByID(id uint) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat session failed: %w", err)
	}
	return &session, nil
}

func (r *ChatSessionRepository) GetByIDAndDocumentID(id, documentID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.Where("id = ? AND document_id = ?", id, documentID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat session failed: %w", err)
	}
	return &session, nil
}

// ListByDocumentID returns a document's sessions, most recent first.
func (r *ChatSessionRepository) ListByDocumentID(documentID uint) ([]model.ChatSession, error) {
	var list []model.ChatSession
	if err := r.db.Where("document_id = ?", documentID).Order("created_at DESC").Order("id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list chat sessions failed: %w", err)
	}
	return list, nil
}

// ListIDsByDocumentID is used for cascade delete.
func (r *ChatSessionRepository) ListIDsByDocumentID(documentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&model.ChatSession{}).Where("document_id = ?", documentID).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list chat session ids failed: %w", err)
	}
	return ids, nil
}

// DeleteByDocumentID deletes sessions of a document (caller must delete messages first).
func (r *ChatSessionRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.ChatSession{}).Error; err != nil {
		return fmt.Errorf("delete chat sessions failed: %w", err)
	}
	return nil
}
