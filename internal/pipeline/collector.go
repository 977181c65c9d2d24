package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// collectorLockKey is the distributed lock taken around each collection pass.
const collectorLockKey = "collector"

// Recorder fetches and stores the current prices for one item.
// service.PriceService implements it.
type Recorder interface {
	Record(ctx context.Context, itemID uint32) (domain.PriceRecord, error)
}

// CollectResult summarises one collection pass.
type CollectResult struct {
	Recorded int
	Failed   int
	Skipped  bool // another instance held the collector lock
}

// Collector records prices for a fixed list of watched items.
type Collector struct {
	recorder    Recorder
	items       []uint32
	concurrency int
	locks       domain.LockManager
	lockTTL     time.Duration
	logger      *slog.Logger
}

// NewCollector creates a Collector. concurrency bounds the number of items
// fetched at once; values below 1 mean one at a time.
func NewCollector(recorder Recorder, items []uint32, concurrency int, logger *slog.Logger) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{
		recorder:    recorder,
		items:       items,
		concurrency: concurrency,
		logger:      logger,
	}
}

// WithLock makes RunLoop take a distributed lock around every pass so only
// one instance collects per tick.
func (c *Collector) WithLock(locks domain.LockManager, ttl time.Duration) *Collector {
	c.locks = locks
	c.lockTTL = ttl
	return c
}

// Items returns the watched item ids.
func (c *Collector) Items() []uint32 {
	return c.items
}

// Run records every item once. A failure for one item is logged and counted
// and does not stop the others. The error is non-nil only when ctx ends
// before the pass completes.
func (c *Collector) Run(ctx context.Context, items []uint32) (CollectResult, error) {
	var recorded, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for _, id := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := c.recorder.Record(ctx, id)
			if err != nil {
				failed.Add(1)
				c.logger.WarnContext(ctx, "record price failed",
					slog.Uint64("item_id", uint64(id)),
					slog.String("error", err.Error()),
				)
				return nil
			}
			recorded.Add(1)
			c.logger.DebugContext(ctx, "recorded price",
				slog.Uint64("item_id", uint64(id)),
				slog.String("record_id", rec.ID),
				slog.Uint64("buy_price", uint64(rec.ItemPrice.BuyPrice)),
				slog.Uint64("sell_price", uint64(rec.ItemPrice.SellPrice)),
			)
			return nil
		})
	}
	_ = g.Wait()

	res := CollectResult{Recorded: int(recorded.Load()), Failed: int(failed.Load())}
	return res, ctx.Err()
}

// runOnce performs one pass over the watched items, under the collector
// lock when one is configured.
func (c *Collector) runOnce(ctx context.Context) (CollectResult, error) {
	if c.locks != nil {
		unlock, err := c.locks.Acquire(ctx, collectorLockKey, c.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			c.logger.DebugContext(ctx, "collector lock held elsewhere, skipping pass")
			return CollectResult{Skipped: true}, nil
		}
		if err != nil {
			return CollectResult{}, err
		}
		defer unlock()
	}
	return c.Run(ctx, c.items)
}

// RunLoop runs a pass immediately and then every interval until ctx is
// cancelled.
func (c *Collector) RunLoop(ctx context.Context, interval time.Duration) error {
	c.logger.Info("collector loop started",
		slog.Duration("interval", interval),
		slog.Int("items", len(c.items)),
		slog.Int("concurrency", c.concurrency),
	)

	pass := func() {
		start := time.Now()
		res, err := c.runOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("collection pass failed", slog.String("error", err.Error()))
			}
			return
		}
		if res.Skipped {
			return
		}
		c.logger.Info("collection pass complete",
			slog.Int("recorded", res.Recorded),
			slog.Int("failed", res.Failed),
			slog.Duration("elapsed", time.Since(start)),
		)
	}

	pass()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector loop stopped")
			return ctx.Err()
		case <-ticker.C:
			pass()
		}
	}
}
