package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// itemsKey is the set of every item id with at least one record.
const itemsKey = "prices:items"

func historyKey(itemID uint32) string {
	return "prices:" + strconv.FormatUint(uint64(itemID), 10)
}

// PriceStore implements domain.PriceStore on Redis lists. Each record is
// stored as one JSON element RPUSHed to "prices:{item_id}", so list order
// is insertion order.
type PriceStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewPriceStore creates a PriceStore backed by the given Client.
func NewPriceStore(c *Client) *PriceStore {
	return &PriceStore{rdb: c.Underlying(), now: time.Now}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: redis: %s: %w", domain.ErrStore, op, err)
}

// Add appends item to its history list and registers the item id.
func (s *PriceStore) Add(ctx context.Context, item domain.ItemPrice) (domain.PriceRecord, error) {
	if err := domain.CheckItemID(item.ItemID); err != nil {
		return domain.PriceRecord{}, err
	}
	rec := domain.PriceRecord{
		ID:         uuid.NewString(),
		ItemPrice:  item.Clone(),
		RecordedAt: s.now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return domain.PriceRecord{}, storeErr("marshal record", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, historyKey(item.ItemID), data)
	pipe.SAdd(ctx, itemsKey, item.ItemID)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.PriceRecord{}, storeErr(fmt.Sprintf("append item %d", item.ItemID), err)
	}
	return rec, nil
}

// ForItem returns every record for itemID in insertion order.
func (s *PriceStore) ForItem(ctx context.Context, itemID uint32) ([]domain.PriceRecord, error) {
	vals, err := s.rdb.LRange(ctx, historyKey(itemID), 0, -1).Result()
	if err != nil {
		return nil, storeErr(fmt.Sprintf("read item %d", itemID), err)
	}
	return decodeRecords(vals)
}

// Items returns the ids of every item with at least one record, ascending.
func (s *PriceStore) Items(ctx context.Context) ([]uint32, error) {
	members, err := s.rdb.SMembers(ctx, itemsKey).Result()
	if err != nil {
		return nil, storeErr("list items", err)
	}
	ids := make([]uint32, 0, len(members))
	for _, m := range members {
		id, err := domain.ParseItemID(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func decodeRecords(vals []string) ([]domain.PriceRecord, error) {
	out := make([]domain.PriceRecord, 0, len(vals))
	for i, v := range vals {
		var rec domain.PriceRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, storeErr(fmt.Sprintf("decode record %d", i), err)
		}
		if rec.ItemPrice.BuyListings == nil {
			rec.ItemPrice.BuyListings = []domain.ListEntry{}
		}
		if rec.ItemPrice.SellListings == nil {
			rec.ItemPrice.SellListings = []domain.ListEntry{}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ domain.PriceStore = (*PriceStore)(nil)
	_ domain.ItemLister = (*PriceStore)(nil)
)
