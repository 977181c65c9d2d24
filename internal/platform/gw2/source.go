package gw2

import (
	"context"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// PriceSource implements domain.PricingProvider against the live API. Each
// ForItem call fetches the item's listings once and translates them; errors
// from the client are returned as they are.
type PriceSource struct {
	client *Client
}

// NewPriceSource creates a PriceSource that uses client for every lookup.
func NewPriceSource(client *Client) *PriceSource {
	return &PriceSource{client: client}
}

// ForItem fetches the current listings for itemID.
func (s *PriceSource) ForItem(ctx context.Context, itemID uint32) (domain.ItemPrice, error) {
	listings, err := s.client.ItemListings(ctx, itemID)
	if err != nil {
		return domain.ItemPrice{}, err
	}
	return listings.ToDomainItemPrice(), nil
}

// Aggregate fetches the best-price summary for itemID.
func (s *PriceSource) Aggregate(ctx context.Context, itemID uint32) (domain.AggregatePrice, error) {
	prices, err := s.client.ItemPrices(ctx, itemID)
	if err != nil {
		return domain.AggregatePrice{}, err
	}
	return prices.ToDomainAggregatePrice(), nil
}

// Compile-time interface check.
var _ domain.PricingProvider = (*PriceSource)(nil)
