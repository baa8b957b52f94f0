package domain

import "time"

// ActivityType enumerates ledger-affecting events.
type ActivityType string

const (
	ActivityTrade      ActivityType = "TRADE"
	ActivitySplit      ActivityType = "SPLIT"
	ActivityMerge      ActivityType = "MERGE"
	ActivityRedeem     ActivityType = "REDEEM"
	ActivityReward     ActivityType = "REWARD"
	ActivityConversion ActivityType = "CONVERSION"
)

// Activity is an immutable ledger row. Rows with a TxHash are unique per
// trader; rows without one are never deduplicated.
type Activity struct {
	ID           int64
	TraderID     int64
	MarketID     string
	TxHash       *string
	Type         ActivityType
	Outcome      string
	Side         string
	Shares       float64
	CashAmount   float64
	Price        *float64
	Fee          float64
	AssetID      string
	FromAssetID  string
	ToAssetID    string
	Timestamp    int64  // unix seconds
	ActivityDate string // RFC 3339, UTC
	RealizedPnL  *float64
	Metadata     []byte // original payload
	CreatedAt    time.Time
}

// NormalizeUnixSeconds converts millisecond timestamps to seconds. Values
// above 1e12 can only be milliseconds for any date this platform has existed.
func NormalizeUnixSeconds(ts int64) int64 {
	if ts > 1_000_000_000_000 {
		return ts / 1000
	}
	return ts
}

// FormatActivityDate formats a unix-seconds timestamp for the activity_date column.
func FormatActivityDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
