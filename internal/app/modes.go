package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tpwatch/internal/config"
	"github.com/alanyoungcy/tpwatch/internal/pipeline"
	"github.com/alanyoungcy/tpwatch/internal/server"
	"github.com/alanyoungcy/tpwatch/internal/server/handler"
	"github.com/alanyoungcy/tpwatch/internal/server/ws"
)

// onceSummary is printed as JSON by once mode.
type onceSummary struct {
	Items    []uint32 `json:"items"`
	Recorded int      `json:"recorded"`
	Failed   int      `json:"failed"`
}

// OnceMode records every watched item a single time, prints a summary and
// returns. It fails only when no item could be recorded.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	collector := a.newCollector(deps)

	res, err := collector.Run(ctx, collector.Items())
	if err != nil {
		return fmt.Errorf("once mode: %w", err)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(onceSummary{
		Items:    collector.Items(),
		Recorded: res.Recorded,
		Failed:   res.Failed,
	}); err != nil {
		return fmt.Errorf("once mode: write summary: %w", err)
	}

	if res.Recorded == 0 && res.Failed > 0 {
		return errors.New("once mode: every item failed")
	}
	return nil
}

// CollectMode runs the collector loop and the archive cron until ctx is
// cancelled.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	return a.newOrchestrator(deps).Run(ctx)
}

// ServerMode serves the HTTP and websocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the collector pipeline and the HTTP server together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	orchestrator := a.newOrchestrator(deps)
	g.Go(func() error {
		return orchestrator.Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

func (a *App) newCollector(deps *Dependencies) *pipeline.Collector {
	c := pipeline.NewCollector(
		deps.Prices,
		a.cfg.Collector.Items,
		a.cfg.Collector.Concurrency,
		a.logger.With(slog.String("component", "collector")),
	)
	if deps.LockManager != nil {
		c = c.WithLock(deps.LockManager, a.cfg.Collector.LockTTL.Duration)
	}
	return c
}

func (a *App) newOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	var archiver *pipeline.Archiver
	if deps.Archive != nil {
		archiver = pipeline.NewArchiver(
			deps.Archive,
			a.cfg.Collector.Items,
			deps.Lister,
			a.logger.With(slog.String("component", "archiver")),
		)
	}
	return pipeline.NewOrchestrator(
		a.newCollector(deps),
		archiver,
		a.cfg.Collector.Interval.Duration,
		a.cfg.Archive.Cron,
		a.logger.With(slog.String("component", "orchestrator")),
	)
}

// startHTTPServer adds the websocket hub and the HTTP server to g. The
// server is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger.With(slog.String("component", "ws")))
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Mode, a.logger),
		Prices: handler.NewPriceHandler(deps.Prices, a.logger),
	}
	if deps.Archive != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.Archive, a.logger)
	}

	srv := server.NewServer(serverConfig(a.cfg), handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
	}
}
