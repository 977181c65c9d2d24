package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

const (
	sideBuy  = "buy"
	sideSell = "sell"
)

// PriceStore implements domain.PriceStore using PostgreSQL. Every Add writes
// one price_records row plus one price_list_entries row per listing, all in
// a single transaction. History is ordered by the BIGSERIAL seq column, so
// ForItem returns records in insertion (sequence) order.
type PriceStore struct {
	pool *pgxpool.Pool
}

// NewPriceStore creates a new PriceStore backed by the given connection pool.
func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: postgres: %s: %w", domain.ErrStore, op, err)
}

// Add inserts item and its listings and returns the stored record.
func (s *PriceStore) Add(ctx context.Context, item domain.ItemPrice) (domain.PriceRecord, error) {
	if err := domain.CheckItemID(item.ItemID); err != nil {
		return domain.PriceRecord{}, err
	}
	rec := domain.PriceRecord{
		ID:        uuid.NewString(),
		ItemPrice: item.Clone(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.PriceRecord{}, storeErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var seq int64
	err = tx.QueryRow(ctx, `
		INSERT INTO price_records (id, item_id, supply, demand, buy_price, sell_price)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
		RETURNING seq, recorded_at`,
		rec.ID, int64(item.ItemID), int64(item.Supply), int64(item.Demand),
		int64(item.BuyPrice), int64(item.SellPrice),
	).Scan(&seq, &rec.RecordedAt)
	if err != nil {
		return domain.PriceRecord{}, storeErr("insert price record", err)
	}

	batch := &pgx.Batch{}
	const entryQuery = `
		INSERT INTO price_list_entries (record_seq, side, position, listing_count, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`
	queueEntries := func(side string, entries []domain.ListEntry) {
		for i, e := range entries {
			batch.Queue(entryQuery, seq, side, i,
				int64(e.ListingCount), int64(e.UnitPrice), int64(e.Quantity))
		}
	}
	queueEntries(sideBuy, item.BuyListings)
	queueEntries(sideSell, item.SellListings)

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return domain.PriceRecord{}, storeErr(fmt.Sprintf("insert list entry %d", i), err)
			}
		}
		if err := br.Close(); err != nil {
			return domain.PriceRecord{}, storeErr("close batch", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.PriceRecord{}, storeErr("commit", err)
	}

	rec.RecordedAt = rec.RecordedAt.UTC()
	return rec, nil
}

// recordRow is a price_records row before its listings are attached.
type recordRow struct {
	seq        int64
	id         string
	itemID     int64
	supply     int64
	demand     int64
	buyPrice   int64
	sellPrice  int64
	recordedAt time.Time
}

// entryRow is one price_list_entries row.
type entryRow struct {
	recordSeq    int64
	side         string
	listingCount int64
	unitPrice    int64
	quantity     int64
}

// ForItem returns every record for itemID in insertion order.
func (s *PriceStore) ForItem(ctx context.Context, itemID uint32) ([]domain.PriceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, id::text, item_id, supply, demand, buy_price, sell_price, recorded_at
		FROM price_records
		WHERE item_id = $1
		ORDER BY seq`, int64(itemID))
	if err != nil {
		return nil, storeErr("query price records", err)
	}
	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, storeErr("scan price records", err)
	}
	if len(records) == 0 {
		return []domain.PriceRecord{}, nil
	}

	seqs := make([]int64, len(records))
	for i, r := range records {
		seqs[i] = r.seq
	}

	rows, err = s.pool.Query(ctx, `
		SELECT record_seq, side, listing_count, unit_price, quantity
		FROM price_list_entries
		WHERE record_seq = ANY($1)
		ORDER BY record_seq, side, position`, seqs)
	if err != nil {
		return nil, storeErr("query list entries", err)
	}
	entries, err := scanEntryRows(rows)
	if err != nil {
		return nil, storeErr("scan list entries", err)
	}

	return assembleRecords(records, entries), nil
}

// Items returns the distinct item ids with at least one record, ascending.
func (s *PriceStore) Items(ctx context.Context) ([]uint32, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT item_id FROM price_records ORDER BY item_id`)
	if err != nil {
		return nil, storeErr("query items", err)
	}
	defer rows.Close()

	ids := []uint32{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan item id", err)
		}
		ids = append(ids, uint32(id))
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate items", err)
	}
	return ids, nil
}

func scanRecordRows(rows pgx.Rows) ([]recordRow, error) {
	defer rows.Close()
	var out []recordRow
	for rows.Next() {
		var r recordRow
		if err := rows.Scan(
			&r.seq, &r.id, &r.itemID, &r.supply, &r.demand,
			&r.buyPrice, &r.sellPrice, &r.recordedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanEntryRows(rows pgx.Rows) ([]entryRow, error) {
	defer rows.Close()
	var out []entryRow
	for rows.Next() {
		var e entryRow
		if err := rows.Scan(&e.recordSeq, &e.side, &e.listingCount, &e.unitPrice, &e.quantity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// assembleRecords attaches entries to their parent records. entries must be
// ordered by position within each (record, side) pair.
func assembleRecords(records []recordRow, entries []entryRow) []domain.PriceRecord {
	out := make([]domain.PriceRecord, len(records))
	index := make(map[int64]int, len(records))
	for i, r := range records {
		index[r.seq] = i
		out[i] = domain.PriceRecord{
			ID: r.id,
			ItemPrice: domain.ItemPrice{
				ItemID:       uint32(r.itemID),
				BuyListings:  []domain.ListEntry{},
				SellListings: []domain.ListEntry{},
				Supply:       uint32(r.supply),
				Demand:       uint32(r.demand),
				BuyPrice:     uint32(r.buyPrice),
				SellPrice:    uint32(r.sellPrice),
			},
			RecordedAt: r.recordedAt.UTC(),
		}
	}

	for _, e := range entries {
		i, ok := index[e.recordSeq]
		if !ok {
			continue
		}
		entry := domain.ListEntry{
			ListingCount: uint32(e.listingCount),
			UnitPrice:    uint32(e.unitPrice),
			Quantity:     uint32(e.quantity),
		}
		p := &out[i].ItemPrice
		switch e.side {
		case sideBuy:
			p.BuyListings = append(p.BuyListings, entry)
		case sideSell:
			p.SellListings = append(p.SellListings, entry)
		}
	}
	return out
}

// Compile-time interface checks.
var (
	_ domain.PriceStore = (*PriceStore)(nil)
	_ domain.ItemLister = (*PriceStore)(nil)
)
