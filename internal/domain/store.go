package domain

import "context"

// PriceStore retains price observations.
//
// Add appends a new record for item.ItemID and never merges with or replaces
// earlier records. ForItem returns every record ever added for the item in
// insertion order, or an empty slice when there are none. Add rejects item
// id 0 with ErrInvalidItemID before touching the backend.
type PriceStore interface {
	Add(ctx context.Context, item ItemPrice) (PriceRecord, error)
	ForItem(ctx context.Context, itemID uint32) ([]PriceRecord, error)
}

// ItemLister is implemented by stores that can enumerate the items they hold
// records for.
type ItemLister interface {
	Items(ctx context.Context) ([]uint32, error)
}

// ListOpts provides pagination for history queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// Page applies opts to records and returns the selected window. A zero Limit
// means no limit.
func (o ListOpts) Page(records []PriceRecord) []PriceRecord {
	if o.Offset >= len(records) {
		return []PriceRecord{}
	}
	if o.Offset > 0 {
		records = records[o.Offset:]
	}
	if o.Limit > 0 && o.Limit < len(records) {
		records = records[:o.Limit]
	}
	return records
}
