package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/tpwatch/internal/domain"
	"github.com/alanyoungcy/tpwatch/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	prices map[uint32]domain.ItemPrice
	err    error
	calls  int
}

func (f *fakeProvider) ForItem(_ context.Context, itemID uint32) (domain.ItemPrice, error) {
	f.calls++
	if f.err != nil {
		return domain.ItemPrice{}, f.err
	}
	p, ok := f.prices[itemID]
	if !ok {
		return domain.ItemPrice{}, domain.ErrNotFound
	}
	return p, nil
}

type fakeStore struct {
	adds int
	err  error
}

func (f *fakeStore) Add(_ context.Context, item domain.ItemPrice) (domain.PriceRecord, error) {
	f.adds++
	if f.err != nil {
		return domain.PriceRecord{}, f.err
	}
	return domain.PriceRecord{ID: "x", ItemPrice: item}, nil
}

func (f *fakeStore) ForItem(context.Context, uint32) ([]domain.PriceRecord, error) {
	return nil, f.err
}

type fakeBus struct {
	published [][]byte
	err       error
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	if channel != domain.ChannelPrices {
		return errors.New("unexpected channel " + channel)
	}
	f.published = append(f.published, payload)
	return f.err
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

type fakeAggregates struct{}

func (fakeAggregates) Aggregate(_ context.Context, itemID uint32) (domain.AggregatePrice, error) {
	return domain.AggregatePrice{ItemID: itemID, Whitelisted: true}, nil
}

func samplePrice(id uint32) domain.ItemPrice {
	return domain.ItemPrice{
		ItemID:       id,
		BuyListings:  []domain.ListEntry{{ListingCount: 5, UnitPrice: 10, Quantity: 500}},
		SellListings: []domain.ListEntry{{ListingCount: 10, UnitPrice: 25, Quantity: 10}},
		Supply:       10,
		Demand:       500,
		BuyPrice:     10,
		SellPrice:    25,
	}
}

func TestPriceService_Record_storesAndPublishes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &fakeProvider{prices: map[uint32]domain.ItemPrice{1: samplePrice(1)}}
	store := memory.NewPriceStore()
	bus := &fakeBus{}
	svc := NewPriceService(provider, store, nil, bus, discardLogger())

	rec, err := svc.Record(ctx, 1)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	history, _ := store.ForItem(ctx, 1)
	if len(history) != 1 || history[0].ID != rec.ID {
		t.Fatalf("history got %+v", history)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	var evt PriceEvent
	if err := json.Unmarshal(bus.published[0], &evt); err != nil {
		t.Fatalf("event decode: %v", err)
	}
	if evt.Event != EventPriceRecorded || evt.ItemID != 1 || evt.RecordID != rec.ID || evt.SellPrice != 25 {
		t.Fatalf("event got %+v", evt)
	}
}

func TestPriceService_Record_providerErrorStoresNothing(t *testing.T) {
	t.Parallel()

	transportErr := errors.Join(domain.ErrTransport, errors.New("down"))
	store := &fakeStore{}
	bus := &fakeBus{}
	svc := NewPriceService(&fakeProvider{err: transportErr}, store, nil, bus, discardLogger())

	_, err := svc.Record(context.Background(), 1)
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("got %v, want transport error", err)
	}
	if store.adds != 0 {
		t.Fatalf("store called %d times after provider failure", store.adds)
	}
	if len(bus.published) != 0 {
		t.Fatalf("event published after provider failure")
	}
}

func TestPriceService_Record_storeError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: domain.ErrStore}
	provider := &fakeProvider{prices: map[uint32]domain.ItemPrice{1: samplePrice(1)}}
	svc := NewPriceService(provider, store, nil, nil, discardLogger())

	if _, err := svc.Record(context.Background(), 1); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("got %v, want ErrStore", err)
	}
}

func TestPriceService_Record_publishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{prices: map[uint32]domain.ItemPrice{1: samplePrice(1)}}
	bus := &fakeBus{err: errors.New("bus down")}
	svc := NewPriceService(provider, memory.NewPriceStore(), nil, bus, discardLogger())

	if _, err := svc.Record(context.Background(), 1); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestPriceService_Snapshot_doesNotStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &fakeProvider{prices: map[uint32]domain.ItemPrice{1: samplePrice(1)}}
	store := memory.NewPriceStore()
	svc := NewPriceService(provider, store, nil, nil, discardLogger())

	got, err := svc.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got.SellPrice != 25 {
		t.Fatalf("got %+v", got)
	}
	if history, _ := store.ForItem(ctx, 1); len(history) != 0 {
		t.Fatalf("snapshot stored %d records", len(history))
	}
}

func TestPriceService_History_pages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &fakeProvider{prices: map[uint32]domain.ItemPrice{1: samplePrice(1)}}
	svc := NewPriceService(provider, memory.NewPriceStore(), nil, nil, discardLogger())
	for i := 0; i < 3; i++ {
		if _, err := svc.Record(ctx, 1); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := svc.History(ctx, 1, domain.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len got %d, want 2", len(got))
	}

	empty, err := svc.History(ctx, 2, domain.ListOpts{})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("unknown item got %#v, %v", empty, err)
	}
}

func TestPriceService_Aggregate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := NewPriceService(&fakeProvider{}, memory.NewPriceStore(), fakeAggregates{}, nil, discardLogger())
	got, err := svc.Aggregate(ctx, 3)
	if err != nil || got.ItemID != 3 || !got.Whitelisted {
		t.Fatalf("got %+v, %v", got, err)
	}

	without := NewPriceService(&fakeProvider{}, memory.NewPriceStore(), nil, nil, discardLogger())
	if _, err := without.Aggregate(ctx, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestPriceService_Items(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &fakeProvider{prices: map[uint32]domain.ItemPrice{1: samplePrice(1), 2: samplePrice(2)}}
	svc := NewPriceService(provider, memory.NewPriceStore(), nil, nil, discardLogger())
	_, _ = svc.Record(ctx, 2)
	_, _ = svc.Record(ctx, 1)

	ids, err := svc.Items(ctx)
	if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("got %v, %v", ids, err)
	}

	if _, err := NewPriceService(provider, &fakeStore{}, nil, nil, discardLogger()).Items(ctx); err == nil {
		t.Fatalf("expected error for store without Items")
	}
}
