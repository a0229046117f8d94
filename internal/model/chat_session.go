package model

import "time"

type ChatSession struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;index" json:"document_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// SessionHistory is one session of a document's chat history, messages oldest first.
type SessionHistory struct {
	SessionID uint          `json:"session_id"`
	CreatedAt time.Time     `json:"created_at"`
	Messages  []ChatMessage `json:"messages"`
}
