package pipeline

import (
	"context"
	"errors"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
)

// MarketFetcher retrieves market metadata from the Gamma API.
type MarketFetcher interface {
	GetMarkets(ctx context.Context, limit, offset int, active *bool) ([]polymarket.MarketPayload, error)
	GetMarket(ctx context.Context, id string) (polymarket.MarketPayload, error)
}

// TraderFetcher retrieves per-trader data from the Data API.
type TraderFetcher interface {
	GetPositions(ctx context.Context, user string, sizeThreshold float64) ([]polymarket.PositionPayload, error)
	GetTrades(ctx context.Context, user string, limit, offset int) ([]polymarket.TradePayload, error)
	GetActivity(ctx context.Context, user string, limit int) ([]polymarket.ActivityPayload, error)
}

type fetchStatus int

const (
	fetchFound fetchStatus = iota
	fetchEmpty
	fetchFailed
)

func (s fetchStatus) String() string {
	switch s {
	case fetchFound:
		return "found"
	case fetchEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// fetchResult is the outcome of one gateway call. A not-found response is
// folded into fetchEmpty with notFound set; every other error is fetchFailed.
type fetchResult[T any] struct {
	status   fetchStatus
	items    []T
	notFound bool
	err      error
}

func classify[T any](items []T, err error) fetchResult[T] {
	switch {
	case err == nil && len(items) == 0:
		return fetchResult[T]{status: fetchEmpty}
	case err == nil:
		return fetchResult[T]{status: fetchFound, items: items}
	case errors.Is(err, domain.ErrNotFound):
		return fetchResult[T]{status: fetchEmpty, notFound: true}
	default:
		return fetchResult[T]{status: fetchFailed, err: err}
	}
}
