package domain

import "context"

// PricingProvider obtains the current trading post snapshot for an item.
// Implementations decide where prices come from (the live API, recorded
// fixtures, ...); callers only see ItemPrice values.
type PricingProvider interface {
	ForItem(ctx context.Context, itemID uint32) (ItemPrice, error)
}
