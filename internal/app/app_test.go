package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"docguard/internal/model"
	"docguard/internal/rag"
	"docguard/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.AutoMigrate(db))
	return db
}

// stubEmbedder maps known texts to fixed vectors; everything else gets fallback.
type stubEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = e.fallback
		}
	}
	return out, nil
}

type stubGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type stubPublisher struct {
	mu   sync.Mutex
	sent []model.ChatMessage
	err  error
}

func (p *stubPublisher) Publish(_ context.Context, msg model.ChatMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type fixture struct {
	db        *gorm.DB
	embedder  *stubEmbedder
	generator *stubGenerator
	retriever *rag.Retriever
	docs      *DocumentService
	qa        *QAService
	uploadDir string
}

func newFixture(t *testing.T, cache HistoryCache, publisher AsyncMessagePublisher) *fixture {
	t.Helper()
	f := &fixture{
		db:        newTestDB(t),
		embedder:  &stubEmbedder{vectors: map[string][]float32{}, fallback: []float32{100, 100}},
		generator: &stubGenerator{answer: "  grounded answer \n"},
		uploadDir: t.TempDir(),
	}
	f.retriever = rag.NewRetriever(rag.NewChunker(10, 0), f.embedder, rag.NewVectorIndex(), rag.NewDocumentStore(), 4, nil)
	f.docs = NewDocumentService(f.db, f.retriever, cache, f.uploadDir, 1024, nil)
	f.qa = NewQAService(f.db, f.retriever, rag.NewAnswerComposer(f.generator), publisher, cache, rag.RetrieveOptions{}, nil)
	return f
}

func (f *fixture) upload(t *testing.T, name, content string) *model.Document {
	t.Helper()
	doc, err := f.docs.Upload(context.Background(), UploadInput{
		FileName: name,
		Size:     int64(len(content)),
		Content:  strings.NewReader(content),
	})
	require.NoError(t, err)
	return doc
}

var errBoom = errors.New("boom")
