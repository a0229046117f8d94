package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docguard/internal/model"
)

// HistoryCache keeps the rendered chat history of a document. A dirty marker
// is set while a new message is in flight so readers skip a stale entry.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, documentID uint) ([]model.SessionHistory, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(documentID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var history []model.SessionHistory
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return history, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, documentID uint, history []model.SessionHistory) error {
	payload, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(documentID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, documentID uint) error {
	if err := c.client.Del(ctx, historyKey(documentID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

// MarkDirty flags the document's history as changing and drops the cached copy.
func (c *HistoryCache) MarkDirty(ctx context.Context, documentID uint) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Set(ctx, dirtyKey(documentID), "1", c.dirtyMarkerTTL)
		pipe.Del(ctx, historyKey(documentID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, documentID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey(documentID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func historyKey(documentID uint) string {
	return fmt.Sprintf("docguard:history:%d", documentID)
}

func dirtyKey(documentID uint) string {
	return fmt.Sprintf("docguard:history:dirty:%d", documentID)
}
