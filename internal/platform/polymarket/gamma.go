package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	rest *restClient
}

// NewGammaClient creates a new Gamma API client. An empty BaseURL selects
// DefaultGammaHost.
func NewGammaClient(cfg ClientConfig) *GammaClient {
	return &GammaClient{rest: newRESTClient(cfg, DefaultGammaHost)}
}

// GetMarkets returns one page of markets. A nil active leaves the filter off.
func (g *GammaClient) GetMarkets(ctx context.Context, limit, offset int, active *bool) ([]MarketPayload, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if active != nil {
		params.Set("active", strconv.FormatBool(*active))
	}

	body, err := g.rest.doGet(ctx, "/markets", params)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}

	var markets []MarketPayload
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	return markets, nil
}

// GetMarket returns a single market by its id. Unknown ids fail with an
// *APIError matching domain.ErrNotFound.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (MarketPayload, error) {
	body, err := g.rest.doGet(ctx, "/markets/"+url.PathEscape(id), nil)
	if err != nil {
		return MarketPayload{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var market MarketPayload
	if err := json.Unmarshal(body, &market); err != nil {
		return MarketPayload{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	return market, nil
}
