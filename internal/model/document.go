package model

import "time"

// Document is an uploaded file. FilePath points at the stored bytes under the upload dir.
type Document struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:256;not null" json:"title"`
	FilePath    string    `gorm:"size:512;not null" json:"-"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
