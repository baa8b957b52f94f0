package domain

import "context"

// MarketCache provides fast market metadata lookups.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, marketID string) (Market, error)
	Invalidate(ctx context.Context, marketID string) error
}
