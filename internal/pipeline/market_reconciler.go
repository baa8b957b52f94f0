package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
)

var errMissingMarketID = errors.New("market payload has no id")

// MarketReconciler upserts market metadata keyed by external market id.
type MarketReconciler struct {
	cache  domain.MarketCache
	logger *slog.Logger
	now    func() time.Time
}

// NewMarketReconciler creates a MarketReconciler. cache may be nil.
func NewMarketReconciler(cache domain.MarketCache, logger *slog.Logger) *MarketReconciler {
	return &MarketReconciler{
		cache:  cache,
		logger: logger.With(slog.String("component", "market_reconciler")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upsert inserts the market described by p or merges p into the stored
// record. On update only fields present in p are overwritten; an explicit
// null clears nullable fields.
func (r *MarketReconciler) Upsert(ctx context.Context, store domain.Store, p polymarket.MarketPayload) (domain.Market, error) {
	id := strings.TrimSpace(p.ID.Or(""))
	if id == "" {
		return domain.Market{}, errMissingMarketID
	}
	now := r.now()

	existing, err := store.Markets().GetByMarketID(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		m := newMarketFromPayload(id, p, now)
		if err := store.Markets().Create(ctx, &m); err != nil {
			return domain.Market{}, fmt.Errorf("create market %s: %w", id, err)
		}
		r.logger.DebugContext(ctx, "created market", slog.String("market_id", id))
		r.invalidate(ctx, id)
		return m, nil
	case err != nil:
		return domain.Market{}, fmt.Errorf("load market %s: %w", id, err)
	}

	mergeMarketPayload(&existing, p, now)
	if err := store.Markets().Update(ctx, existing); err != nil {
		return domain.Market{}, fmt.Errorf("update market %s: %w", id, err)
	}
	r.logger.DebugContext(ctx, "updated market", slog.String("market_id", id))
	r.invalidate(ctx, id)
	return existing, nil
}

func (r *MarketReconciler) invalidate(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, id); err != nil {
		r.logger.WarnContext(ctx, "market cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func newMarketFromPayload(id string, p polymarket.MarketPayload, now time.Time) domain.Market {
	return domain.Market{
		MarketID:       id,
		ConditionID:    p.ConditionID.Or(""),
		Question:       p.Question.Or(""),
		Description:    optString(p.Description),
		Category:       optString(p.Category),
		Slug:           p.Slug.Or(""),
		Active:         bool(p.Active.Or(true)),
		Closed:         bool(p.Closed.Or(false)),
		Resolved:       bool(p.Resolved.Or(false)),
		Volume:         float64(p.Volume.Or(0)),
		Liquidity:      float64(p.Liquidity.Or(0)),
		Outcomes:       string(p.Outcomes.Or("[]")),
		OutcomePrices:  string(p.OutcomePrices.Or("{}")),
		WinningOutcome: optString(p.WinningOutcome),
		StartDate:      optTime(p.StartDate),
		EndDate:        optTime(p.EndDate),
		ResolutionDate: optTime(p.ResolutionDate),
		LastSyncedAt:   &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func mergeMarketPayload(m *domain.Market, p polymarket.MarketPayload, now time.Time) {
	mergeValue(&m.Question, p.Question)
	mergeNullable(&m.Description, p.Description)
	mergeNullable(&m.Category, p.Category)
	mergeFlag(&m.Active, p.Active)
	mergeFlag(&m.Closed, p.Closed)
	mergeFlag(&m.Resolved, p.Resolved)
	mergeFloat(&m.Volume, p.Volume)
	mergeFloat(&m.Liquidity, p.Liquidity)
	if p.Outcomes.Present() {
		m.Outcomes = string(p.Outcomes.Value)
	}
	if p.OutcomePrices.Present() {
		m.OutcomePrices = string(p.OutcomePrices.Value)
	}
	mergeNullable(&m.WinningOutcome, p.WinningOutcome)
	mergeTime(&m.EndDate, p.EndDate)
	mergeTime(&m.ResolutionDate, p.ResolutionDate)

	// Identity-adjacent fields are filled once and never rewritten.
	if m.ConditionID == "" {
		m.ConditionID = p.ConditionID.Or("")
	}
	if m.Slug == "" {
		m.Slug = p.Slug.Or("")
	}
	if m.StartDate == nil {
		m.StartDate = optTime(p.StartDate)
	}

	m.LastSyncedAt = &now
	m.UpdatedAt = now
}

func optString(o polymarket.Opt[string]) *string {
	if !o.Present() {
		return nil
	}
	v := o.Value
	return &v
}

func optTime(o polymarket.Opt[polymarket.FlexTime]) *time.Time {
	if !o.Present() || o.Value.IsZero() {
		return nil
	}
	t := o.Value.Time
	return &t
}

func mergeValue(dst *string, o polymarket.Opt[string]) {
	if o.Present() {
		*dst = o.Value
	}
}

func mergeFlag(dst *bool, o polymarket.Opt[polymarket.FlexBool]) {
	if o.Present() {
		*dst = bool(o.Value)
	}
}

func mergeFloat(dst *float64, o polymarket.Opt[polymarket.FlexFloat]) {
	if o.Present() {
		*dst = float64(o.Value)
	}
}

func mergeNullable(dst **string, o polymarket.Opt[string]) {
	switch {
	case o.Null:
		*dst = nil
	case o.Set:
		*dst = optString(o)
	}
}

func mergeTime(dst **time.Time, o polymarket.Opt[polymarket.FlexTime]) {
	switch {
	case o.Null:
		*dst = nil
	case o.Set:
		if t := optTime(o); t != nil {
			*dst = t
		}
	}
}
