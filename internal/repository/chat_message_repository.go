package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docguard/internal/model"
)

type ChatMessageRepository struct {
	db *gorm.DB
}

func NewChatMessageRepository(db *gorm.DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

func (r *ChatMessageRepository) Create(message *model.ChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create chat message failed: %w", err)
	}
	return nil
}

// ListBySessionID returns messages oldest first.
func (r *ChatMessageRepository) ListBySessionID(sessionID uint) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	if err := r.db.Where("session_id = ?", sessionID).Order("created_at ASC").Order("id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return messages, nil
}

// ListBySessionIDs groups messages per session, each group oldest first.
func (r *ChatMessageRepository) ListBySessionIDs(sessionIDs []uint) (map[uint][]model.ChatMessage, error) {
	grouped := make(map[uint][]model.ChatMessage, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return grouped, nil
	}
	var messages []model.ChatMessage
	if err := r.db.Where("session_id IN ?", sessionIDs).Order("created_at ASC").Order("id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list chat messages by sessions failed: %w", err)
	}
	for _, m := range messages {
		grouped[m.SessionID] = append(grouped[m.SessionID], m)
	}
	return grouped, nil
}

func (r *ChatMessageRepository) DeleteBySessionIDs(sessionIDs []uint) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	if err := r.db.Where("session_id IN ?", sessionIDs).Delete(&model.ChatMessage{}).Error; err != nil {
		return fmt.Errorf("delete chat messages failed: %w", err)
	}
	return nil
}
