package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
)

// ActivityLedger appends a trader's activity feed, deduplicated by
// transaction hash per trader.
type ActivityLedger struct {
	fetcher TraderFetcher
	limit   int
	logger  *slog.Logger
	now     func() time.Time
}

// NewActivityLedger creates an ActivityLedger that reads at most limit
// events per run.
func NewActivityLedger(fetcher TraderFetcher, limit int, logger *slog.Logger) *ActivityLedger {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return &ActivityLedger{
		fetcher: fetcher,
		limit:   limit,
		logger:  logger.With(slog.String("component", "activity_ledger")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LedgerResult summarizes one Append call.
type LedgerResult struct {
	Fetched   int
	Inserted  int
	Duplicate int
	// Untracked counts inserted events on markets with no current position.
	Untracked int
}

// Append fetches one page of activity and inserts the events not already
// stored. Fetch failures are logged and reported as an empty result; store
// failures are returned.
func (l *ActivityLedger) Append(ctx context.Context, store domain.Store, trader domain.Trader, known MarketSet) (LedgerResult, error) {
	res := classify(l.fetcher.GetActivity(ctx, trader.Address, l.limit))
	if res.status == fetchFailed {
		l.logger.WarnContext(ctx, "activity fetch failed",
			slog.String("address", trader.Address),
			slog.String("error", res.err.Error()),
		)
		return LedgerResult{}, nil
	}

	out := LedgerResult{Fetched: len(res.items)}
	now := l.now()
	for _, p := range res.items {
		hash := p.Hash()
		if hash != "" {
			exists, err := store.Activities().ExistsByHash(ctx, trader.ID, hash)
			if err != nil {
				return out, fmt.Errorf("check activity %s: %w", hash, err)
			}
			if exists {
				out.Duplicate++
				continue
			}
		}

		a, err := newActivity(trader.ID, p, now)
		if err != nil {
			return out, err
		}
		if err := store.Activities().Create(ctx, &a); err != nil {
			return out, fmt.Errorf("create activity: %w", err)
		}
		out.Inserted++
		if a.MarketID != "" && !known.Has(a.MarketID) {
			out.Untracked++
		}
	}

	l.logger.InfoContext(ctx, "activities appended",
		slog.String("address", trader.Address),
		slog.Int("fetched", out.Fetched),
		slog.Int("inserted", out.Inserted),
		slog.Int("duplicate", out.Duplicate),
		slog.Int("untracked_markets", out.Untracked),
	)
	return out, nil
}

func newActivity(traderID int64, p polymarket.ActivityPayload, now time.Time) (domain.Activity, error) {
	typ := domain.ActivityType(strings.ToUpper(strings.TrimSpace(p.Type.Or(""))))
	if typ == "" {
		typ = domain.ActivityTrade
	}

	size := float64(p.Size.Or(0))
	cash := float64(p.USDCSize.Or(0))
	var price *float64
	if p.Price.Present() {
		v := float64(p.Price.Value)
		price = &v
		if !p.USDCSize.Present() {
			cash = size * v
		}
	}

	var realized *float64
	switch {
	case p.RealizedPnL.Present():
		v := float64(p.RealizedPnL.Value)
		realized = &v
	case typ == domain.ActivityReward:
		v := cash
		realized = &v
	}

	ts := domain.NormalizeUnixSeconds(int64(p.Timestamp.Or(0)))
	a := domain.Activity{
		TraderID:    traderID,
		MarketID:    strings.TrimSpace(p.ConditionID.Or("")),
		Type:        typ,
		Outcome:     p.Outcome.Or(""),
		Side:        strings.ToUpper(p.Side.Or("")),
		Shares:      size,
		CashAmount:  cash,
		Price:       price,
		Fee:         float64(p.Fee.Or(0)),
		AssetID:     p.Asset.Or(""),
		FromAssetID: p.FromAsset.Or(""),
		ToAssetID:   p.ToAsset.Or(""),
		Timestamp:   ts,
		RealizedPnL: realized,
		Metadata:    p.Raw,
		CreatedAt:   now,
	}
	if ts > 0 {
		a.ActivityDate = domain.FormatActivityDate(ts)
	}
	if h := p.Hash(); h != "" {
		a.TxHash = &h
	}
	if len(a.Metadata) == 0 {
		raw, err := json.Marshal(p)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("encode activity metadata: %w", err)
		}
		a.Metadata = raw
	}
	return a, nil
}
