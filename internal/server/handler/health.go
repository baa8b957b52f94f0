package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyinsider/internal/service"
)

// StatusService reports store reachability and entity counts.
type StatusService interface {
	Ping(ctx context.Context) error
	ArchiveHealth(ctx context.Context) error
	Status(ctx context.Context) (service.Status, error)
}

// HealthHandler serves the health and status endpoints.
type HealthHandler struct {
	status StatusService
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(status StatusService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{status: status, logger: logHandler(logger, "health")}
}

// HealthCheck reports whether the store and, when configured, the
// snapshot archive are reachable.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"archive":   "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.status.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "store ping failed", slog.String("error", err.Error()))
		body["status"] = "degraded"
		body["error"] = "store unreachable"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	switch err := h.status.ArchiveHealth(r.Context()); {
	case errors.Is(err, service.ErrArchiveDisabled):
		body["archive"] = "disabled"
	case err != nil:
		h.logger.WarnContext(r.Context(), "archive health check failed", slog.String("error", err.Error()))
		body["status"] = "degraded"
		body["archive"] = "unreachable"
		body["error"] = "archive unreachable"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// Status returns row counts for every entity.
// GET /api/status
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.status.Status(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "status failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
