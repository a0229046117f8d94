package rag

import (
	"context"
	"fmt"
	"strings"
)

// Generator sends a single prompt to the LLM backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type AnswerComposer struct {
	gen Generator
}

func NewAnswerComposer(gen Generator) *AnswerComposer {
	return &AnswerComposer{gen: gen}
}

// Compose calls the generator exactly once. Failures come back as *GenerationError.
func (c *AnswerComposer) Compose(ctx context.Context, question string, chunks []string) (string, error) {
	answer, err := c.gen.Generate(ctx, BuildPrompt(question, chunks))
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return strings.TrimSpace(answer), nil
}

// BuildPrompt labels chunks "Chunk 1".."Chunk n" in the given order.
func BuildPrompt(question string, chunks []string) string {
	var ctxBuilder strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			ctxBuilder.WriteString("\n\n")
		}
		fmt.Fprintf(&ctxBuilder, "Chunk %d:\n%s", i+1, chunk)
	}

	return fmt.Sprintf(`You are an AI assistant helping users understand a document. Use the provided context to answer the question accurately and concisely.

Context from the document:
%s

Question: %s

Instructions:
- Answer only from the provided context
- If the context doesn't contain enough information, clearly state what information is missing
- Be specific and cite relevant parts of the context when possible
- Keep your answer focused and relevant to the question

Answer:`, ctxBuilder.String(), question)
}
