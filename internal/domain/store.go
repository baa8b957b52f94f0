package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// TraderStore persists trader records keyed by address.
type TraderStore interface {
	GetByAddress(ctx context.Context, address string) (Trader, error)
	// Create inserts t and sets t.ID.
	Create(ctx context.Context, t *Trader) error
	Update(ctx context.Context, t Trader) error
	List(ctx context.Context, opts ListOpts) ([]Trader, error)
	Count(ctx context.Context) (int64, error)
}

// MarketStore persists market metadata keyed by external market id.
type MarketStore interface {
	GetByMarketID(ctx context.Context, marketID string) (Market, error)
	// GetByConditionID returns the earliest stored market carrying conditionID.
	GetByConditionID(ctx context.Context, conditionID string) (Market, error)
	// Exists reports whether id matches a stored market_id or condition_id.
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, m *Market) error
	Update(ctx context.Context, m Market) error
	Count(ctx context.Context) (int64, error)
}

// PositionStore persists current positions keyed by (trader, market, outcome).
type PositionStore interface {
	Get(ctx context.Context, traderID int64, marketID, outcome string) (Position, error)
	Create(ctx context.Context, p *Position) error
	Update(ctx context.Context, p Position) error
	ListByTrader(ctx context.Context, traderID int64) ([]Position, error)
	// CountByMarket returns the number of position rows and the number of
	// distinct traders holding marketID.
	CountByMarket(ctx context.Context, marketID string) (positions, traders int, err error)
	Count(ctx context.Context) (int64, error)
}

// ActivityStore persists the append-only activity ledger.
type ActivityStore interface {
	ExistsByHash(ctx context.Context, traderID int64, txHash string) (bool, error)
	Create(ctx context.Context, a *Activity) error
	ListByTrader(ctx context.Context, traderID int64, opts ListOpts) ([]Activity, error)
	Count(ctx context.Context) (int64, error)
}

// Store groups the entity repositories behind one transaction boundary.
type Store interface {
	Traders() TraderStore
	Markets() MarketStore
	Positions() PositionStore
	Activities() ActivityStore
	// InTx runs fn against a transaction-scoped Store. The transaction is
	// committed when fn returns nil and rolled back otherwise. Calling InTx
	// on a transaction-scoped Store reuses the open transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
