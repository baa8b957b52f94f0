package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "polyinsider", joinKey("polyinsider"))
	assert.Equal(t, "polyinsider:market:512340", joinKey("polyinsider", "market", "512340"))
}

func TestMarketCacheKeys(t *testing.T) {
	mc := NewMarketCache(&Client{prefix: "test"}, 0)
	assert.Equal(t, DefaultMarketTTL, mc.ttl)
	assert.Equal(t, "test:market:512340", mc.marketKey("512340"))
	assert.Equal(t, "test:market:condition:0xabc", mc.conditionKey("0xabc"))
}

func TestDecodeMarketRejectsGarbage(t *testing.T) {
	_, err := decodeMarket("m1", []byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: unmarshal market m1")

	m, err := decodeMarket("m1", []byte(`{"MarketID":"m1","ConditionID":"0xabc","Active":true}`))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", m.ConditionID)
	assert.True(t, m.Active)
}

func TestNewFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := New(ctx, ClientConfig{Addr: "127.0.0.1:1", MaxRetries: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: ping 127.0.0.1:1")
}
