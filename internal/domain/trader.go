package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProfileBaseURL is the public profile page prefix for a trader address.
const ProfileBaseURL = "https://polymarket.com/profile/"

// Trader is a platform account identified by its wallet address.
type Trader struct {
	ID              int64
	Address         string
	Username        *string
	Pseudonym       *string
	ProfileURL      string
	TotalVolume     float64
	TotalTrades     int
	MarketsTraded   int
	WinRate         *float64 // nil when the trader holds no positions
	AvgPositionSize *float64 // nil when the trader holds no positions
	FirstTradeAt    *time.Time
	LastTradeAt     *time.Time
	IsActive        bool
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewTrader returns an unsaved trader for a normalized address.
func NewTrader(address string, now time.Time) Trader {
	return Trader{
		Address:      address,
		ProfileURL:   ProfileBaseURL + address,
		IsActive:     true,
		LastSyncedAt: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeAddress validates a hex wallet address and returns its
// lowercase 0x-prefixed form.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}
