package rag

import "strings"

const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 64
)

// Chunk is a contiguous slice of a document's text. Index starts at 0 with no gaps.
type Chunk struct {
	DocumentID uint   `json:"document_id"`
	Index      int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// Chunker splits text into fixed windows of Size runes. Consecutive windows share
// exactly Overlap runes, so dropping the first Overlap runes of every chunk after
// the first reconstructs the source.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split fails with ErrEmptyDocument for empty or whitespace-only text.
func (c *Chunker) Split(documentID uint, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	runes := []rune(text)
	step := c.Size - c.Overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
