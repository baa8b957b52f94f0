package domain

import "time"

// Market is a prediction-market instrument keyed by its external market id.
// ConditionID is a secondary identifier that is not always interchangeable
// with MarketID.
type Market struct {
	ID             int64
	MarketID       string
	ConditionID    string
	Question       string
	Description    *string
	Category       *string
	Slug           string
	Active         bool
	Closed         bool
	Resolved       bool
	Volume         float64
	Liquidity      float64
	Outcomes       string // JSON array
	OutcomePrices  string // JSON array or object, as supplied upstream
	WinningOutcome *string
	StartDate      *time.Time
	EndDate        *time.Time
	ResolutionDate *time.Time
	TotalPositions int
	UniqueTraders  int
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
