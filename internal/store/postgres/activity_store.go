package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// ActivityStore implements domain.ActivityStore using PostgreSQL.
type ActivityStore struct {
	q querier
}

const activityColumns = `
	id, trader_id, market_id, transaction_hash, activity_type, outcome, side,
	shares_amount, cash_amount, price, fee_amount, asset_id, from_asset_id, to_asset_id,
	timestamp, activity_date, realized_pnl, metadata, created_at`

// ExistsByHash reports whether the trader already has an activity with txHash.
func (s *ActivityStore) ExistsByHash(ctx context.Context, traderID int64, txHash string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM activities WHERE trader_id = $1 AND transaction_hash = $2)`,
		traderID, txHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: activity exists %s: %w", txHash, err)
	}
	return exists, nil
}

// Create appends a to the ledger and assigns its ID.
func (s *ActivityStore) Create(ctx context.Context, a *domain.Activity) error {
	const query = `
		INSERT INTO activities (
			trader_id, market_id, transaction_hash, activity_type, outcome, side,
			shares_amount, cash_amount, price, fee_amount, asset_id, from_asset_id, to_asset_id,
			timestamp, activity_date, realized_pnl, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18
		)
		RETURNING id`

	err := s.q.QueryRow(ctx, query,
		a.TraderID, a.MarketID, a.TxHash, string(a.Type), a.Outcome, a.Side,
		a.Shares, a.CashAmount, a.Price, a.Fee, a.AssetID, a.FromAssetID, a.ToAssetID,
		a.Timestamp, a.ActivityDate, a.RealizedPnL, string(a.Metadata), a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("postgres: create activity: %w", mapErr(err))
	}
	return nil
}

// ListByTrader returns the trader's activities, newest first.
func (s *ActivityStore) ListByTrader(ctx context.Context, traderID int64, opts domain.ListOpts) ([]domain.Activity, error) {
	var since int64
	if opts.Since != nil {
		since = opts.Since.Unix()
	}
	rows, err := s.q.Query(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE trader_id = $1 AND timestamp >= $2
		 ORDER BY timestamp DESC, id DESC LIMIT $3 OFFSET $4`,
		traderID, since, limitOrDefault(opts), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activities for trader %d: %w", traderID, err)
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate activities: %w", err)
	}
	return activities, nil
}

// Count returns the number of ledger rows.
func (s *ActivityStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count activities: %w", err)
	}
	return n, nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	var typ, metadata string
	err := row.Scan(
		&a.ID, &a.TraderID, &a.MarketID, &a.TxHash, &typ, &a.Outcome, &a.Side,
		&a.Shares, &a.CashAmount, &a.Price, &a.Fee, &a.AssetID, &a.FromAssetID, &a.ToAssetID,
		&a.Timestamp, &a.ActivityDate, &a.RealizedPnL, &metadata, &a.CreatedAt,
	)
	if err != nil {
		return domain.Activity{}, err
	}
	a.Type = domain.ActivityType(typ)
	a.Metadata = []byte(metadata)
	return a, nil
}
