package rag

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyDocument   = errors.New("document has no text to index")
	ErrUnknownDocument = errors.New("document embeddings not found in memory")
	ErrEmbedding       = errors.New("embedding failed")
	ErrIndex           = errors.New("vector index error")
)

// GenerationError wraps a failed LLM call. The caller decides whether to retry.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
