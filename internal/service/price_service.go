// Package service holds the application services that coordinate providers,
// stores and the signal bus.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// EventPriceRecorded is the event name published after a successful Record.
const EventPriceRecorded = "price_recorded"

// AggregateProvider serves best-price summaries. gw2.PriceSource implements it.
type AggregateProvider interface {
	Aggregate(ctx context.Context, itemID uint32) (domain.AggregatePrice, error)
}

// PriceEvent is the payload published on domain.ChannelPrices.
type PriceEvent struct {
	Event      string    `json:"event"`
	RecordID   string    `json:"record_id"`
	ItemID     uint32    `json:"item_id"`
	Supply     uint32    `json:"supply"`
	Demand     uint32    `json:"demand"`
	BuyPrice   uint32    `json:"buy_price"`
	SellPrice  uint32    `json:"sell_price"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PriceService fetches snapshots from a provider and retains them in a
// store. The provider and store never talk to each other; Record chains
// them explicitly.
type PriceService struct {
	provider   domain.PricingProvider
	store      domain.PriceStore
	aggregates AggregateProvider
	bus        domain.SignalBus
	logger     *slog.Logger
}

// NewPriceService creates a PriceService. aggregates and bus may be nil.
func NewPriceService(
	provider domain.PricingProvider,
	store domain.PriceStore,
	aggregates AggregateProvider,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		provider:   provider,
		store:      store,
		aggregates: aggregates,
		bus:        bus,
		logger:     logger,
	}
}

// Snapshot returns the current prices for itemID without storing them.
func (s *PriceService) Snapshot(ctx context.Context, itemID uint32) (domain.ItemPrice, error) {
	return s.provider.ForItem(ctx, itemID)
}

// Record fetches the current prices for itemID, stores them and publishes a
// price_recorded event. Nothing is stored when the fetch fails. A publish
// failure is logged and does not fail the call.
func (s *PriceService) Record(ctx context.Context, itemID uint32) (domain.PriceRecord, error) {
	item, err := s.provider.ForItem(ctx, itemID)
	if err != nil {
		return domain.PriceRecord{}, err
	}

	rec, err := s.store.Add(ctx, item)
	if err != nil {
		return domain.PriceRecord{}, fmt.Errorf("price_service: store item %d: %w", itemID, err)
	}

	s.publish(ctx, rec)
	return rec, nil
}

func (s *PriceService) publish(ctx context.Context, rec domain.PriceRecord) {
	if s.bus == nil {
		return
	}

	evt, err := json.Marshal(PriceEvent{
		Event:      EventPriceRecorded,
		RecordID:   rec.ID,
		ItemID:     rec.ItemPrice.ItemID,
		Supply:     rec.ItemPrice.Supply,
		Demand:     rec.ItemPrice.Demand,
		BuyPrice:   rec.ItemPrice.BuyPrice,
		SellPrice:  rec.ItemPrice.SellPrice,
		RecordedAt: rec.RecordedAt,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "price_service: marshal price event failed",
			slog.Uint64("item_id", uint64(rec.ItemPrice.ItemID)),
			slog.String("error", err.Error()),
		)
		return
	}

	if pubErr := s.bus.Publish(ctx, domain.ChannelPrices, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "price_service: publish price event failed",
			slog.Uint64("item_id", uint64(rec.ItemPrice.ItemID)),
			slog.String("error", pubErr.Error()),
		)
	}
}

// History returns the stored records for itemID, oldest first, windowed by
// opts.
func (s *PriceService) History(ctx context.Context, itemID uint32, opts domain.ListOpts) ([]domain.PriceRecord, error) {
	records, err := s.store.ForItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("price_service: history for item %d: %w", itemID, err)
	}
	return opts.Page(records), nil
}

// Aggregate returns the best-price summary for itemID.
func (s *PriceService) Aggregate(ctx context.Context, itemID uint32) (domain.AggregatePrice, error) {
	if s.aggregates == nil {
		return domain.AggregatePrice{}, fmt.Errorf("price_service: aggregate prices unavailable: %w", domain.ErrNotFound)
	}
	return s.aggregates.Aggregate(ctx, itemID)
}

// Items returns the ids of every item with stored history, when the store
// can enumerate them.
func (s *PriceService) Items(ctx context.Context) ([]uint32, error) {
	lister, ok := s.store.(domain.ItemLister)
	if !ok {
		return nil, errors.New("price_service: store cannot list items")
	}
	return lister.Items(ctx)
}
