package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// MarketService is what the market handler needs from the service layer.
type MarketService interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// MarketHandler serves market endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logHandler(logger, "market")}
}

// GetMarket returns a single market by market_id.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeLookupError(w, r, h.logger, "market", err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}
