package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// DefaultMarketTTL bounds how stale a cached market can get when an
// invalidation is missed.
const DefaultMarketTTL = 10 * time.Minute

// MarketCache implements domain.MarketCache with JSON string values.
//
// Key schema:
//
//	{prefix}:market:{market_id}         - JSON-encoded domain.Market
//	{prefix}:market:condition:{cond_id} - market_id owning the condition
type MarketCache struct {
	c   *Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache. A non-positive ttl uses DefaultMarketTTL.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{c: c, ttl: ttl}
}

func (mc *MarketCache) marketKey(id string) string    { return mc.c.key("market", id) }
func (mc *MarketCache) conditionKey(id string) string { return mc.c.key("market", "condition", id) }

// Set stores market under its market_id and indexes its condition_id.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.MarketID, err)
	}

	pipe := mc.c.rdb.TxPipeline()
	pipe.Set(ctx, mc.marketKey(market.MarketID), data, mc.ttl)
	if market.ConditionID != "" && market.ConditionID != market.MarketID {
		pipe.Set(ctx, mc.conditionKey(market.ConditionID), market.MarketID, mc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.MarketID, err)
	}
	return nil
}

// Get resolves id as a market_id first, then as a condition_id. It returns
// domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.c.rdb.Get(ctx, mc.marketKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		marketID, cerr := mc.c.rdb.Get(ctx, mc.conditionKey(id)).Result()
		if errors.Is(cerr, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		if cerr != nil {
			return domain.Market{}, fmt.Errorf("redis: get market by condition %s: %w", id, cerr)
		}
		data, err = mc.c.rdb.Get(ctx, mc.marketKey(marketID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}
	return decodeMarket(id, data)
}

// Invalidate drops the market and its condition index entry.
func (mc *MarketCache) Invalidate(ctx context.Context, marketID string) error {
	keys := []string{mc.marketKey(marketID)}

	data, err := mc.c.rdb.Get(ctx, mc.marketKey(marketID)).Bytes()
	switch {
	case err == nil:
		if m, derr := decodeMarket(marketID, data); derr == nil && m.ConditionID != "" {
			keys = append(keys, mc.conditionKey(m.ConditionID))
		}
	case !errors.Is(err, redis.Nil):
		return fmt.Errorf("redis: invalidate market %s: %w", marketID, err)
	}

	if err := mc.c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", marketID, err)
	}
	return nil
}

func decodeMarket(id string, data []byte) (domain.Market, error) {
	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return m, nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
