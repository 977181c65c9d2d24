// Package memory provides an in-process domain.PriceStore.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// PriceStore keeps every recorded ItemPrice in memory, grouped by item id.
// Records are deep-copied on the way in and on the way out, so callers never
// share listing slices with the store. Safe for concurrent use.
type PriceStore struct {
	mu      sync.RWMutex
	records map[uint32][]domain.PriceRecord
	now     func() time.Time
}

// NewPriceStore creates an empty store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		records: make(map[uint32][]domain.PriceRecord),
		now:     time.Now,
	}
}

// Add appends a copy of item to the history for item.ItemID.
func (s *PriceStore) Add(_ context.Context, item domain.ItemPrice) (domain.PriceRecord, error) {
	if err := domain.CheckItemID(item.ItemID); err != nil {
		return domain.PriceRecord{}, err
	}
	rec := domain.PriceRecord{
		ID:         uuid.NewString(),
		ItemPrice:  item.Clone(),
		RecordedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.records[item.ItemID] = append(s.records[item.ItemID], rec)
	s.mu.Unlock()

	return rec.Clone(), nil
}

// ForItem returns copies of every record for itemID in insertion order. The
// result is empty, not nil, when nothing was recorded.
func (s *PriceStore) ForItem(_ context.Context, itemID uint32) ([]domain.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := s.records[itemID]
	out := make([]domain.PriceRecord, 0, len(held))
	for _, r := range held {
		out = append(out, r.Clone())
	}
	return out, nil
}

// Items returns the ids of every item with at least one record, ascending.
func (s *PriceStore) Items(_ context.Context) ([]uint32, error) {
	s.mu.RLock()
	ids := make([]uint32, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	return ids, nil
}

// Compile-time interface checks.
var (
	_ domain.PriceStore = (*PriceStore)(nil)
	_ domain.ItemLister = (*PriceStore)(nil)
)
