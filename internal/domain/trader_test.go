package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  0xAbCdEf0123456789abcdef0123456789ABCDEF01 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", got)

	for _, bad := range []string{"", "0x123", "not-an-address", "0xZZcdef0123456789abcdef0123456789abcdef01"} {
		_, err := NormalizeAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestNewTraderProfileURL(t *testing.T) {
	tr := NewTrader("0xabc", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "https://polymarket.com/profile/0xabc", tr.ProfileURL)
	assert.True(t, tr.IsActive)
	require.NotNil(t, tr.LastSyncedAt)
	assert.Nil(t, tr.WinRate)
}

func TestNormalizeUnixSeconds(t *testing.T) {
	assert.Equal(t, int64(1700000000), NormalizeUnixSeconds(1700000000))
	assert.Equal(t, int64(1700000000), NormalizeUnixSeconds(1700000000123))
	assert.Equal(t, "2023-11-14T22:13:20Z", FormatActivityDate(1700000000))
}

func TestPositionProfitable(t *testing.T) {
	assert.True(t, Position{RealizedPnL: -1, UnrealizedPnL: 2}.Profitable())
	assert.False(t, Position{RealizedPnL: -1, UnrealizedPnL: 1}.Profitable())
	assert.False(t, Position{}.Profitable())
}
