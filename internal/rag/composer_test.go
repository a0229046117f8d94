package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGenerator struct {
	prompts []string
	reply   string
	err     error
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func TestAnswerComposer_Compose(t *testing.T) {
	gen := &recordingGenerator{reply: "  The rate is 5%.\n"}
	c := NewAnswerComposer(gen)

	answer, err := c.Compose(context.Background(), "What is the rate?", []string{"rate is 5%", "term is 10y"})
	require.NoError(t, err)
	assert.Equal(t, "The rate is 5%.", answer)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "Chunk 1:\nrate is 5%")
	assert.Contains(t, prompt, "Chunk 2:\nterm is 10y")
	assert.Less(t, strings.Index(prompt, "Chunk 1:"), strings.Index(prompt, "Chunk 2:"))
	assert.Contains(t, prompt, "Question: What is the rate?")
	assert.Contains(t, prompt, "clearly state what information is missing")
}

func TestAnswerComposer_GenerationError(t *testing.T) {
	cause := errors.New("connection refused")
	gen := &recordingGenerator{err: cause}
	c := NewAnswerComposer(gen)

	_, err := c.Compose(context.Background(), "q", []string{"c"})
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, gen.prompts, 1)
}
