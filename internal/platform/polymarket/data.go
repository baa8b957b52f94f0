package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// DataClient is the REST client for the Polymarket Data API, which serves
// per-user positions, trades and activity.
type DataClient struct {
	rest *restClient
}

// NewDataClient creates a new Data API client. An empty BaseURL selects
// DefaultDataHost.
func NewDataClient(cfg ClientConfig) *DataClient {
	return &DataClient{rest: newRESTClient(cfg, DefaultDataHost)}
}

// GetPositions returns the user's current positions at or above sizeThreshold.
func (d *DataClient) GetPositions(ctx context.Context, user string, sizeThreshold float64) ([]PositionPayload, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("sizeThreshold", strconv.FormatFloat(sizeThreshold, 'f', -1, 64))

	body, err := d.rest.doGet(ctx, "/positions", params)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get positions %s: %w", user, err)
	}

	var positions []PositionPayload
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}
	return positions, nil
}

// GetTrades returns one page of the user's trade history.
func (d *DataClient) GetTrades(ctx context.Context, user string, limit, offset int) ([]TradePayload, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := d.rest.doGet(ctx, "/trades", params)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get trades %s: %w", user, err)
	}

	var trades []TradePayload
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode trades: %w", err)
	}
	return trades, nil
}

// GetActivity returns up to limit of the user's most recent activity events.
func (d *DataClient) GetActivity(ctx context.Context, user string, limit int) ([]ActivityPayload, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("limit", strconv.Itoa(limit))

	body, err := d.rest.doGet(ctx, "/activity", params)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get activity %s: %w", user, err)
	}

	var activities []ActivityPayload
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode activity: %w", err)
	}
	return activities, nil
}
