package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
)

// MarketSet is a set of market identifiers.
type MarketSet map[string]struct{}

// Add inserts id into the set.
func (s MarketSet) Add(id string) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s MarketSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the identifiers in lexical order.
func (s MarketSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PositionReconciler upserts a trader's open positions keyed by
// (trader, market, outcome).
type PositionReconciler struct {
	fetcher       TraderFetcher
	sizeThreshold float64
	logger        *slog.Logger
	now           func() time.Time
}

// NewPositionReconciler creates a PositionReconciler. sizeThreshold is
// passed to the gateway to drop dust positions.
func NewPositionReconciler(fetcher TraderFetcher, sizeThreshold float64, logger *slog.Logger) *PositionReconciler {
	return &PositionReconciler{
		fetcher:       fetcher,
		sizeThreshold: sizeThreshold,
		logger:        logger.With(slog.String("component", "position_reconciler")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile fetches the trader's current positions and upserts each one.
// It returns the distinct market identifiers seen. A not-found response
// means the trader holds nothing and yields an empty set.
func (r *PositionReconciler) Reconcile(ctx context.Context, store domain.Store, trader domain.Trader) (MarketSet, error) {
	res := classify(r.fetcher.GetPositions(ctx, trader.Address, r.sizeThreshold))
	seen := make(MarketSet)

	switch res.status {
	case fetchFailed:
		return nil, fmt.Errorf("fetch positions: %w", res.err)
	case fetchEmpty:
		r.logger.InfoContext(ctx, "no positions",
			slog.String("address", trader.Address),
			slog.String("status", res.status.String()),
			slog.Bool("not_found", res.notFound),
		)
		return seen, nil
	}

	now := r.now()
	skipped := 0
	for _, p := range res.items {
		marketID := strings.TrimSpace(p.ConditionID.Or(""))
		if marketID == "" {
			skipped++
			continue
		}
		if err := r.upsert(ctx, store, trader.ID, marketID, p, now); err != nil {
			return nil, err
		}
		seen.Add(marketID)
	}

	r.logger.InfoContext(ctx, "positions reconciled",
		slog.String("address", trader.Address),
		slog.Int("fetched", len(res.items)),
		slog.Int("markets", len(seen)),
		slog.Int("skipped", skipped),
	)
	return seen, nil
}

func (r *PositionReconciler) upsert(ctx context.Context, store domain.Store, traderID int64, marketID string, p polymarket.PositionPayload, now time.Time) error {
	outcome := p.Outcome.Or("")

	existing, err := store.Positions().Get(ctx, traderID, marketID, outcome)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		pos := domain.Position{
			TraderID:  traderID,
			MarketID:  marketID,
			Outcome:   outcome,
			CreatedAt: now,
		}
		applyPositionSnapshot(&pos, p, now)
		if err := store.Positions().Create(ctx, &pos); err != nil {
			return fmt.Errorf("create position %s/%s: %w", marketID, outcome, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load position %s/%s: %w", marketID, outcome, err)
	}

	applyPositionSnapshot(&existing, p, now)
	if err := store.Positions().Update(ctx, existing); err != nil {
		return fmt.Errorf("update position %s/%s: %w", marketID, outcome, err)
	}
	return nil
}

// applyPositionSnapshot overwrites the snapshot fields of pos with p. Keys
// absent from p keep their stored value.
func applyPositionSnapshot(pos *domain.Position, p polymarket.PositionPayload, now time.Time) {
	mergeFloat(&pos.Size, p.Size)
	mergeFloat(&pos.AvgPrice, p.AvgPrice)
	mergeFloat(&pos.InitialValue, p.InitialValue)
	mergeFloat(&pos.CurrentValue, p.CurrentValue)
	mergeFloat(&pos.CurrentPrice, p.CurPrice)
	mergeFloat(&pos.RealizedPnL, p.RealizedPnL)
	mergeFloat(&pos.UnrealizedPnL, p.CashPnL)
	mergeValue(&pos.Asset, p.Asset)
	mergeValue(&pos.Title, p.Title)
	pos.LastUpdated = now
}
