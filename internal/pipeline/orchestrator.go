package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the collector loop and, when configured, the archive
// cron side by side.
type Orchestrator struct {
	collector       *Collector
	archiver        *Archiver
	collectInterval time.Duration
	archiveCron     string
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil to disable
// cold-storage archival.
func NewOrchestrator(
	collector *Collector,
	archiver *Archiver,
	collectInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		collector:       collector,
		archiver:        archiver,
		collectInterval: collectInterval,
		archiveCron:     archiveCron,
		logger:          logger,
	}
}

// Run starts the sub-pipelines in an errgroup and blocks until ctx is
// cancelled or one of them fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("collect_interval", o.collectInterval),
		slog.Bool("archive_enabled", o.archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.collector.RunLoop(ctx, o.collectInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("collector: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
