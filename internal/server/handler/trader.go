package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/service"
)

// TraderService is what the trader handler needs from the service layer.
type TraderService interface {
	GetTrader(ctx context.Context, address string) (domain.Trader, error)
	ListTraders(ctx context.Context, opts domain.ListOpts) ([]domain.Trader, error)
	Positions(ctx context.Context, address string) ([]domain.Position, error)
	Activities(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Activity, error)
	Snapshots(ctx context.Context, address string) ([]domain.BlobInfo, error)
	Snapshot(ctx context.Context, address, runID string) (domain.TraderSnapshot, error)
}

// TraderHandler serves trader endpoints.
type TraderHandler struct {
	traders TraderService
	logger  *slog.Logger
}

// NewTraderHandler creates a TraderHandler.
func NewTraderHandler(traders TraderService, logger *slog.Logger) *TraderHandler {
	return &TraderHandler{traders: traders, logger: logHandler(logger, "trader")}
}

type listTradersResponse struct {
	Traders []domain.Trader `json:"traders"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListTraders returns collected traders by descending volume.
// GET /api/traders?limit=50&offset=0
func (h *TraderHandler) ListTraders(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	traders, err := h.traders.ListTraders(r.Context(), opts)
	if err != nil {
		writeLookupError(w, r, h.logger, "traders", err)
		return
	}
	if traders == nil {
		traders = []domain.Trader{}
	}
	writeJSON(w, http.StatusOK, listTradersResponse{Traders: traders, Limit: opts.Limit, Offset: opts.Offset})
}

// GetTrader returns one trader with its derived statistics.
// GET /api/traders/{address}
func (h *TraderHandler) GetTrader(w http.ResponseWriter, r *http.Request) {
	t, err := h.traders.GetTrader(r.Context(), r.PathValue("address"))
	if err != nil {
		writeLookupError(w, r, h.logger, "trader", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListPositions returns the trader's reconciled positions.
// GET /api/traders/{address}/positions
func (h *TraderHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.traders.Positions(r.Context(), r.PathValue("address"))
	if err != nil {
		writeLookupError(w, r, h.logger, "trader", err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// activityView renders Metadata as embedded JSON instead of base64.
type activityView struct {
	domain.Activity
	Metadata json.RawMessage `json:"Metadata,omitempty"`
}

// ListActivities returns the trader's ledger, newest first.
// GET /api/traders/{address}/activities?limit=50&offset=0&since=1700000000
func (h *TraderHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.traders.Activities(r.Context(), r.PathValue("address"), parseListOpts(r))
	if err != nil {
		writeLookupError(w, r, h.logger, "trader", err)
		return
	}
	views := make([]activityView, 0, len(activities))
	for _, a := range activities {
		v := activityView{Activity: a}
		if json.Valid(a.Metadata) {
			v.Metadata = a.Metadata
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": views})
}

// ListSnapshots returns the archived raw snapshots of the trader.
// GET /api/traders/{address}/snapshots
func (h *TraderHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := h.traders.Snapshots(r.Context(), r.PathValue("address"))
	if errors.Is(err, service.ErrArchiveDisabled) {
		writeError(w, http.StatusNotImplemented, "snapshot archive not configured")
		return
	}
	if err != nil {
		writeLookupError(w, r, h.logger, "snapshots", err)
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": infos})
}

// GetSnapshot returns one archived raw snapshot by collection run id.
// GET /api/traders/{address}/snapshots/{run_id}
func (h *TraderHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.traders.Snapshot(r.Context(), r.PathValue("address"), r.PathValue("run_id"))
	if errors.Is(err, service.ErrArchiveDisabled) {
		writeError(w, http.StatusNotImplemented, "snapshot archive not configured")
		return
	}
	if err != nil {
		writeLookupError(w, r, h.logger, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
