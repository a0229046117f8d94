package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"docguard/internal/rag"
)

// Compactable is the part of rag.Retriever the compactor drives.
type Compactable interface {
	Stats() rag.Stats
	Compact() rag.Stats
}

// IndexCompactor periodically rebuilds the vector index once the share of
// tombstoned positions passes ratio.
type IndexCompactor struct {
	target   Compactable
	interval time.Duration
	ratio    float64
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIndexCompactor(target Compactable, interval time.Duration, ratio float64, log *zap.Logger) *IndexCompactor {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IndexCompactor{
		target:   target,
		interval: interval,
		ratio:    ratio,
		log:      log.Named("index-compactor"),
	}
}

// Start is a no-op when the interval is not positive.
func (c *IndexCompactor) Start(ctx context.Context) {
	if c.cancel != nil || c.interval <= 0 {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				c.RunOnce()
			}
		}
	}()
	c.log.Info("compactor started", zap.Duration("interval", c.interval), zap.Float64("ratio", c.ratio))
}

// RunOnce compacts when the tombstone ratio is reached and reports whether it did.
func (c *IndexCompactor) RunOnce() bool {
	stats := c.target.Stats()
	if stats.Vectors == 0 || stats.Tombstones == 0 {
		return false
	}
	if float64(stats.Tombstones)/float64(stats.Vectors) < c.ratio {
		return false
	}
	after := c.target.Compact()
	c.log.Info("index compacted",
		zap.Int("tombstones", stats.Tombstones),
		zap.Int("vectors_before", stats.Vectors),
		zap.Int("vectors_after", after.Vectors),
	)
	return true
}

func (c *IndexCompactor) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
