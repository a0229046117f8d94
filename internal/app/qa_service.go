package app

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"docguard/internal/model"
	"docguard/internal/rag"
	"docguard/internal/repository"
)

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.ChatMessage) error
}

// HistoryCache caches per-document chat history.
type HistoryCache interface {
	GetHistory(ctx context.Context, documentID uint) ([]model.SessionHistory, bool, error)
	SetHistory(ctx context.Context, documentID uint, history []model.SessionHistory) error
	DeleteHistory(ctx context.Context, documentID uint) error
	MarkDirty(ctx context.Context, documentID uint) error
	IsDirty(ctx context.Context, documentID uint) (bool, error)
}

type QAService struct {
	docRepo      *repository.DocumentRepository
	sessionRepo  *repository.ChatSessionRepository
	messageRepo  *repository.ChatMessageRepository
	retriever    *rag.Retriever
	composer     *rag.AnswerComposer
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	retrieveOpts rag.RetrieveOptions
	log          *zap.Logger
}

// NewQAService wires the question answering flow. publisher and historyCache
// are optional; without a publisher messages are written synchronously.
func NewQAService(
	db *gorm.DB,
	retriever *rag.Retriever,
	composer *rag.AnswerComposer,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	retrieveOpts rag.RetrieveOptions,
	log *zap.Logger,
) *QAService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QAService{
		docRepo:      repository.NewDocumentRepository(db),
		sessionRepo:  repository.NewChatSessionRepository(db),
		messageRepo:  repository.NewChatMessageRepository(db),
		retriever:    retriever,
		composer:     composer,
		publisher:    publisher,
		historyCache: historyCache,
		retrieveOpts: retrieveOpts,
		log:          log,
	}
}

type AskInput struct {
	DocumentID uint
	Question   string
	SessionID  uint
}

type AskResult struct {
	Answer           string `json:"answer"`
	SessionID        uint   `json:"session_id"`
	HighlightIndexes []int  `json:"highlight_indexes"`
	ChunksUsed       int    `json:"chunks_used"`
}

// Ask answers a question from the document's closest chunks and records the
// exchange in the given session, or a new one when it does not belong to the document.
func (s *QAService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrQuestionEmpty
	}
	if input.DocumentID == 0 {
		return nil, ErrInvalidInput
	}

	doc, err := s.docRepo.GetByID(input.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	retrieval, err := s.retriever.Retrieve(ctx, doc.ID, question, s.retrieveOpts)
	if err != nil {
		return nil, err
	}

	answer, err := s.composer.Compose(ctx, question, retrieval.Chunks)
	if err != nil {
		s.log.Error("answer generation failed", zap.Uint("document_id", doc.ID), zap.Error(err))
		return nil, err
	}

	session, err := s.resolveSession(doc.ID, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := s.record(ctx, doc.ID, model.ChatMessage{
		SessionID: session.ID,
		Question:  question,
		Answer:    answer,
	}); err != nil {
		return nil, err
	}

	return &AskResult{
		Answer:           answer,
		SessionID:        session.ID,
		HighlightIndexes: retrieval.Indexes,
		ChunksUsed:       len(retrieval.Chunks),
	}, nil
}

func (s *QAService) resolveSession(documentID, sessionID uint) (*model.ChatSession, error) {
	if sessionID != 0 {
		session, err := s.sessionRepo.GetByIDAndDocumentID(sessionID, documentID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}
	session := &model.ChatSession{DocumentID: documentID}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// record queues the message when a publisher is configured and falls back to
// a direct insert if publishing fails.
func (s *QAService) record(ctx context.Context, documentID uint, msg model.ChatMessage) error {
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, documentID)
	}
	if s.publisher != nil {
		err := s.publisher.Publish(ctx, msg)
		if err == nil {
			return nil
		}
		s.log.Warn("enqueue chat message failed, writing directly", zap.Uint("session_id", msg.SessionID), zap.Error(err))
	}
	return s.messageRepo.Create(&msg)
}

// History returns the document's sessions, most recent first, each with its
// messages oldest first.
func (s *QAService) History(ctx context.Context, documentID uint) ([]model.SessionHistory, error) {
	if documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, documentID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, documentID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	sessions, err := s.sessionRepo.ListByDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}
	messages, err := s.messageRepo.ListBySessionIDs(ids)
	if err != nil {
		return nil, err
	}

	history := make([]model.SessionHistory, len(sessions))
	for i, session := range sessions {
		history[i] = model.SessionHistory{
			SessionID: session.ID,
			CreatedAt: session.CreatedAt,
			Messages:  messages[session.ID],
		}
		if history[i].Messages == nil {
			history[i].Messages = []model.ChatMessage{}
		}
	}

	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, documentID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, documentID, history)
		}
	}
	return history, nil
}

// GetSession returns one session with its messages.
func (s *QAService) GetSession(id uint) (*model.ChatSession, []model.ChatMessage, error) {
	if id == 0 {
		return nil, nil, ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}
	messages, err := s.messageRepo.ListBySessionID(id)
	if err != nil {
		return nil, nil, err
	}
	return session, messages, nil
}

// InvalidateSession drops the cached history of the session's document. It is
// called once a queued message has been written.
func (s *QAService) InvalidateSession(ctx context.Context, msg *model.ChatMessage) {
	if s.historyCache == nil {
		return
	}
	session, err := s.sessionRepo.GetByID(msg.SessionID)
	if err != nil || session == nil {
		return
	}
	if err := s.historyCache.DeleteHistory(ctx, session.DocumentID); err != nil {
		s.log.Warn("invalidate history cache failed", zap.Uint("document_id", session.DocumentID), zap.Error(err))
	}
}
