package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docguard/internal/ai"
	appsvc "docguard/internal/app"
	"docguard/internal/cache"
	"docguard/internal/config"
	"docguard/internal/platform/database"
	rabbitmqClient "docguard/internal/platform/rabbitmq"
	redisClient "docguard/internal/platform/redis"
	"docguard/internal/rag"
	"docguard/internal/repository"
	"docguard/internal/risk"
	"docguard/internal/worker"
)

// App owns every long-lived dependency of the server process.
type App struct {
	Config *config.Config
	Log    *zap.Logger

	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Retriever     *rag.Retriever
	KnowledgeBase *risk.KnowledgeBase
	Documents     *appsvc.DocumentService
	QA            *appsvc.QAService
	Risk          *appsvc.RiskService

	MessageWorker *worker.MessagePersistWorker
	Compactor     *worker.IndexCompactor
	publisher     *rabbitmqClient.MessagePublisher

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := database.New(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db
	if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	var historyCache appsvc.HistoryCache
	if cfg.Redis.Enabled {
		if a.Redis, err = redisClient.New(ctx, cfg.Redis); err != nil {
			return err
		}
		historyCache = cache.NewHistoryCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	} else {
		a.Log.Info("redis disabled, chat history is not cached")
	}

	var publisher appsvc.AsyncMessagePublisher
	if cfg.RabbitMQ.Enabled {
		if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MessagePersistQueue); err != nil {
			return err
		}
		if a.publisher, err = rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue); err != nil {
			return err
		}
		publisher = a.publisher
	} else {
		a.Log.Info("rabbitmq disabled, chat messages are written synchronously")
	}

	llm := ai.NewClient(cfg.LLM)
	a.Retriever = rag.NewRetriever(
		rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		llm,
		rag.NewVectorIndex(),
		rag.NewDocumentStore(),
		cfg.LLM.EmbeddingBatchSize,
		a.Log.Named("retriever"),
	)
	a.KnowledgeBase = risk.NewKnowledgeBase(cfg.Risk.CorpusPath, a.Log.Named("risk-kb"))

	a.Documents = appsvc.NewDocumentService(db, a.Retriever, historyCache, cfg.Storage.UploadDir, cfg.Storage.MaxUploadBytes, a.Log.Named("documents"))
	a.QA = appsvc.NewQAService(db, a.Retriever, rag.NewAnswerComposer(llm), publisher, historyCache, rag.RetrieveOptions{
		MaxResults:        cfg.RAG.MaxResults,
		DistanceThreshold: cfg.RAG.DistanceThreshold,
		FallbackChunks:    cfg.RAG.FallbackChunks,
	}, a.Log.Named("qa"))
	a.Risk = appsvc.NewRiskService(
		a.KnowledgeBase,
		risk.NewScanner(llm, cfg.Risk.MinTextLength, cfg.Risk.ScanConcurrency, a.Log.Named("risk-scanner")),
		a.Documents,
		a.Log.Named("risk"),
	)

	if a.MQConn != nil {
		a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, repository.NewChatMessageRepository(db), cfg.RabbitMQ.MessagePersistQueue, a.Log)
		a.MessageWorker.OnPersisted = a.QA.InvalidateSession
		if err := a.MessageWorker.Start(ctx); err != nil {
			return fmt.Errorf("start message worker failed: %w", err)
		}
	}

	if cfg.RAG.ReindexOnStart {
		if _, err := a.Documents.Warmup(ctx); err != nil {
			return fmt.Errorf("warmup index failed: %w", err)
		}
	}

	a.Compactor = worker.NewIndexCompactor(
		a.Retriever,
		time.Duration(cfg.RAG.CompactIntervalSeconds)*time.Second,
		cfg.RAG.CompactTombstoneRatio,
		a.Log,
	)
	a.Compactor.Start(ctx)
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Compactor != nil {
		a.Compactor.Close()
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
