package app

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrQuestionEmpty   = errors.New("question is empty")
	ErrFileMissing     = errors.New("no file uploaded")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrTextEmpty       = errors.New("text is empty")

	ErrDocumentNotFound = errors.New("document not found")
	ErrSessionNotFound  = errors.New("session not found")

	ErrKnowledgeBaseUnavailable = errors.New("risk knowledge base is unavailable")
)
