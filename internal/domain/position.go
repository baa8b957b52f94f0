package domain

import "time"

// Position is a trader's current holding in one outcome of one market.
// Identity is (TraderID, MarketID, Outcome). MarketID holds whatever market
// identifier the positions endpoint reports, which is usually a condition id.
type Position struct {
	ID            int64
	TraderID      int64
	MarketID      string
	Outcome       string
	Asset         string
	Title         string
	Size          float64
	AvgPrice      float64
	InitialValue  float64
	CurrentValue  float64
	CurrentPrice  float64
	RealizedPnL   float64
	UnrealizedPnL float64
	LastUpdated   time.Time
	CreatedAt     time.Time
}

// Profitable reports whether the combined realized and unrealized pnl is positive.
func (p Position) Profitable() bool {
	return p.RealizedPnL+p.UnrealizedPnL > 0
}
