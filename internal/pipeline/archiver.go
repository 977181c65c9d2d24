package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// Archiver copies the price history of every watched item to cold storage.
type Archiver struct {
	blobArchiver domain.Archiver
	items        []uint32
	lister       domain.ItemLister
	logger       *slog.Logger
	now          func() time.Time
}

// NewArchiver creates an Archiver for items. When lister is non-nil, items
// it reports are archived too.
func NewArchiver(blobArchiver domain.Archiver, items []uint32, lister domain.ItemLister, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver: blobArchiver,
		items:        items,
		lister:       lister,
		logger:       logger,
		now:          time.Now,
	}
}

// targets returns the sorted, de-duplicated set of item ids to archive.
func (a *Archiver) targets(ctx context.Context) ([]uint32, error) {
	ids := slices.Clone(a.items)
	if a.lister != nil {
		stored, err := a.lister.Items(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing stored items: %w", err)
		}
		ids = append(ids, stored...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Run executes a single archive run. A failed item is logged and the run
// continues; the returned error reports how many items failed.
func (a *Archiver) Run(ctx context.Context) error {
	at := a.now().UTC()
	ids, err := a.targets(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("starting archive run", slog.Time("at", at), slog.Int("items", len(ids)))

	var total int64
	failed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := a.blobArchiver.ArchiveItem(ctx, id, at)
		if err != nil {
			failed++
			a.logger.Error("archive item failed",
				slog.Uint64("item_id", uint64(id)),
				slog.String("error", err.Error()),
			)
			continue
		}
		total += n
	}

	a.logger.Info("archive run complete",
		slog.Int64("records_archived", total),
		slog.Int("items_failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("archiving failed for %d of %d items", failed, len(ids))
	}
	return nil
}

// RunCron runs the archiver on a 5-field cron schedule ("minute hour
// day-of-month month day-of-week", UTC) until ctx is cancelled.
//
// Example: "0 3 * * *" archives every day at 03:00.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := sched.next(a.now().UTC())
		if err != nil {
			return fmt.Errorf("cron %q: %w", cronExpr, err)
		}

		wait := time.Until(next)
		a.logger.Debug("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
