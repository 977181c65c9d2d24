package domain

import (
	"fmt"
	"strconv"
	"time"
)

// ListEntry is one price point on one side of an item's order book: how many
// separate listings sit at UnitPrice and how many units they hold in total.
type ListEntry struct {
	ListingCount uint32 `json:"listing_count"`
	UnitPrice    uint32 `json:"unit_price"`
	Quantity     uint32 `json:"quantity"`
}

// ItemPrice is a point-in-time snapshot of the trading post for one item.
//
// BuyListings and SellListings keep the order the upstream API returned them
// in: best price first on each side. Supply, Demand, BuyPrice and SellPrice
// are computed once when the snapshot is built and never recomputed.
type ItemPrice struct {
	ItemID       uint32      `json:"item_id"`
	BuyListings  []ListEntry `json:"buy_listings"`
	SellListings []ListEntry `json:"sell_listings"`

	// Supply is the total number of units offered across all sell listings.
	Supply uint32 `json:"supply"`
	// Demand is the total number of units wanted across all buy listings.
	Demand uint32 `json:"demand"`
	// BuyPrice is the highest buy order price, 0 when nobody is buying.
	BuyPrice uint32 `json:"buy_price"`
	// SellPrice is the lowest sell listing price, 0 when nothing is listed.
	SellPrice uint32 `json:"sell_price"`
}

// Clone returns a deep copy of p. The listing slices of the copy share no
// backing array with p.
func (p ItemPrice) Clone() ItemPrice {
	out := p
	out.BuyListings = cloneEntries(p.BuyListings)
	out.SellListings = cloneEntries(p.SellListings)
	return out
}

func cloneEntries(in []ListEntry) []ListEntry {
	out := make([]ListEntry, len(in))
	copy(out, in)
	return out
}

// PriceRecord is a stored observation of one ItemPrice snapshot.
type PriceRecord struct {
	ID         string    `json:"id"`
	ItemPrice  ItemPrice `json:"item_price"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Clone returns a deep copy of r.
func (r PriceRecord) Clone() PriceRecord {
	out := r
	out.ItemPrice = r.ItemPrice.Clone()
	return out
}

// AggregatePrice is the best-buy / best-sell summary the upstream API serves
// for an item when per-listing detail is not needed.
type AggregatePrice struct {
	ItemID      uint32     `json:"item_id"`
	Whitelisted bool       `json:"whitelisted"`
	Buys        PriceTotal `json:"buys"`
	Sells       PriceTotal `json:"sells"`
}

// PriceTotal is one side of an AggregatePrice.
type PriceTotal struct {
	Quantity  uint32 `json:"quantity"`
	UnitPrice uint32 `json:"unit_price"`
}

// CheckItemID rejects the zero item id, which no store accepts.
func CheckItemID(id uint32) error {
	if id == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidItemID)
	}
	return nil
}

// ParseItemID parses a decimal item id as used in URLs and config files.
// Item ids are positive; zero is rejected.
func ParseItemID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, ErrInvalidItemID
	}
	return uint32(n), nil
}
