package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docguard/internal/model"
	"docguard/internal/pkg/textextract"
	"docguard/internal/rag"
	"docguard/internal/repository"
)

const defaultMaxUploadBytes = 10 << 20

type DocumentService struct {
	db           *gorm.DB
	docRepo      *repository.DocumentRepository
	chunkRepo    *repository.ChunkRepository
	retriever    *rag.Retriever
	historyCache HistoryCache

	uploadDir      string
	maxUploadBytes int64
	log            *zap.Logger
}

func NewDocumentService(
	db *gorm.DB,
	retriever *rag.Retriever,
	historyCache HistoryCache,
	uploadDir string,
	maxUploadBytes int64,
	log *zap.Logger,
) *DocumentService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentService{
		db:             db,
		docRepo:        repository.NewDocumentRepository(db),
		chunkRepo:      repository.NewChunkRepository(db),
		retriever:      retriever,
		historyCache:   historyCache,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

type UploadInput struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// Upload stores the file, extracts and indexes its text and persists the
// chunks. Any processing failure removes every trace of the document.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	name := filepath.Base(strings.TrimSpace(input.FileName))
	if input.Content == nil || name == "" || name == "." || name == string(filepath.Separator) {
		return nil, ErrFileMissing
	}
	if !textextract.Supported(name) {
		return nil, ErrUnsupportedFile
	}
	if input.Size > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	path, size, err := s.store(name, input.Content)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		Title:       name,
		FilePath:    path,
		ContentType: textextract.ContentType(name),
		SizeBytes:   size,
	}
	if err := s.docRepo.Create(doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	if err := s.process(ctx, doc); err != nil {
		s.log.Warn("document processing failed, rolling back",
			zap.Uint("document_id", doc.ID),
			zap.String("title", doc.Title),
			zap.Error(err),
		)
		s.discard(doc)
		return nil, err
	}

	s.log.Info("document uploaded", zap.Uint("document_id", doc.ID), zap.String("title", doc.Title))
	return doc, nil
}

func (s *DocumentService) store(name string, r io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir failed: %w", err)
	}
	path := filepath.Join(s.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create stored file failed: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, s.maxUploadBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write stored file failed: %w", err)
	}
	if n > s.maxUploadBytes {
		_ = os.Remove(path)
		return "", 0, ErrFileTooLarge
	}
	return path, n, nil
}

func (s *DocumentService) process(ctx context.Context, doc *model.Document) error {
	text, err := textextract.ExtractFile(doc.FilePath)
	if err != nil {
		return err
	}

	chunks, err := s.retriever.Index(ctx, doc.ID, text)
	if err != nil {
		return err
	}

	rows := make([]model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = model.DocumentChunk{DocumentID: doc.ID, ChunkIndex: c.Index, Content: c.Text}
	}
	return s.chunkRepo.CreateBatch(rows)
}

// discard is best effort; each step runs even if an earlier one failed.
func (s *DocumentService) discard(doc *model.Document) {
	s.retriever.Forget(doc.ID)
	if err := s.chunkRepo.DeleteByDocumentID(doc.ID); err != nil {
		s.log.Error("rollback chunks failed", zap.Uint("document_id", doc.ID), zap.Error(err))
	}
	if err := s.docRepo.Delete(doc.ID); err != nil {
		s.log.Error("rollback document failed", zap.Uint("document_id", doc.ID), zap.Error(err))
	}
	if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Error("rollback stored file failed", zap.String("path", doc.FilePath), zap.Error(err))
	}
}

// Delete removes the document, its chunks, its chat sessions and messages,
// the stored file and its in-memory embeddings.
func (s *DocumentService) Delete(ctx context.Context, id uint) error {
	doc, err := s.Get(id)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		sessionRepo := repository.NewChatSessionRepository(tx)
		sessionIDs, err := sessionRepo.ListIDsByDocumentID(id)
		if err != nil {
			return err
		}
		if err := repository.NewChatMessageRepository(tx).DeleteBySessionIDs(sessionIDs); err != nil {
			return err
		}
		if err := sessionRepo.DeleteByDocumentID(id); err != nil {
			return err
		}
		if err := repository.NewChunkRepository(tx).DeleteByDocumentID(id); err != nil {
			return err
		}
		return repository.NewDocumentRepository(tx).Delete(id)
	})
	if err != nil {
		return err
	}

	s.retriever.Forget(id)
	if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("remove stored file failed", zap.String("path", doc.FilePath), zap.Error(err))
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, id)
	}
	s.log.Info("document deleted", zap.Uint("document_id", id))
	return nil
}

func (s *DocumentService) List() ([]model.Document, error) {
	return s.docRepo.List()
}

func (s *DocumentService) Get(id uint) (*model.Document, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) ListChunks(id uint) ([]model.DocumentChunk, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.chunkRepo.ListByDocumentID(id)
}

// ExtractText re-reads the stored file of a document.
func (s *DocumentService) ExtractText(id uint) (string, error) {
	doc, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return textextract.ExtractFile(doc.FilePath)
}

// Warmup re-embeds persisted chunks of documents missing from memory, so
// documents uploaded before a restart can be queried again. Per-document
// failures are logged and skipped.
func (s *DocumentService) Warmup(ctx context.Context) (int, error) {
	ids, err := s.chunkRepo.ListDocumentIDs()
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		if s.retriever.Has(id) {
			continue
		}
		rows, err := s.chunkRepo.ListByDocumentID(id)
		if err != nil {
			s.log.Warn("warmup list chunks failed", zap.Uint("document_id", id), zap.Error(err))
			continue
		}
		texts := make([]string, len(rows))
		for i, row := range rows {
			texts[i] = row.Content
		}
		if err := s.retriever.IndexChunks(ctx, id, texts); err != nil {
			s.log.Warn("warmup index failed", zap.Uint("document_id", id), zap.Error(err))
			continue
		}
		restored++
	}
	s.log.Info("warmup finished", zap.Int("documents", len(ids)), zap.Int("restored", restored))
	return restored, nil
}
