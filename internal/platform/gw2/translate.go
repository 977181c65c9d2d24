package gw2

import (
	"math"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// ToDomainItemPrice converts a listings response into the internal snapshot
// representation and computes its derived metrics.
//
// Precondition: l.Buys is sorted highest unit price first and l.Sells lowest
// unit price first, as the upstream API guarantees. BuyPrice and SellPrice
// are read from the first entry of each side and are only the best prices
// while that holds. The ordering is not checked here.
func (l APIListings) ToDomainItemPrice() domain.ItemPrice {
	return domain.ItemPrice{
		ItemID:       l.ID,
		BuyListings:  listEntries(l.Buys),
		SellListings: listEntries(l.Sells),
		Supply:       totalQuantity(l.Sells),
		Demand:       totalQuantity(l.Buys),
		BuyPrice:     firstPrice(l.Buys),
		SellPrice:    firstPrice(l.Sells),
	}
}

// ToDomainAggregatePrice converts a prices response into its domain form.
func (p APIAggregatePrice) ToDomainAggregatePrice() domain.AggregatePrice {
	return domain.AggregatePrice{
		ItemID:      p.ID,
		Whitelisted: p.Whitelisted,
		Buys:        domain.PriceTotal{Quantity: p.Buys.Quantity, UnitPrice: p.Buys.UnitPrice},
		Sells:       domain.PriceTotal{Quantity: p.Sells.Quantity, UnitPrice: p.Sells.UnitPrice},
	}
}

// listEntries maps orders one-to-one into list entries, keeping their order.
func listEntries(orders []APIOrder) []domain.ListEntry {
	entries := make([]domain.ListEntry, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, domain.ListEntry{
			ListingCount: o.Listings,
			UnitPrice:    o.UnitPrice,
			Quantity:     o.Quantity,
		})
	}
	return entries
}

// totalQuantity sums the quantity of every order, saturating at
// math.MaxUint32 instead of wrapping.
func totalQuantity(orders []APIOrder) uint32 {
	var total uint64
	for _, o := range orders {
		total += uint64(o.Quantity)
		if total >= math.MaxUint32 {
			return math.MaxUint32
		}
	}
	return uint32(total)
}

// firstPrice returns the unit price of the first order, or 0 when there are
// none. It is the best price only under the sort precondition documented on
// ToDomainItemPrice.
func firstPrice(orders []APIOrder) uint32 {
	if len(orders) == 0 {
		return 0
	}
	return orders[0].UnitPrice
}
