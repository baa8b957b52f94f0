package sqlite

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// ActivityStore implements domain.ActivityStore on SQLite.
type ActivityStore struct {
	q querier
}

const activityColumns = `
	id, trader_id, market_id, transaction_hash, activity_type, outcome, side,
	shares_amount, cash_amount, price, fee_amount, asset_id, from_asset_id, to_asset_id,
	timestamp, activity_date, realized_pnl, metadata, created_at`

func (s *ActivityStore) ExistsByHash(ctx context.Context, traderID int64, txHash string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM activities WHERE trader_id = ? AND transaction_hash = ?)`,
		traderID, txHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: activity exists %s: %w", txHash, err)
	}
	return exists, nil
}

func (s *ActivityStore) Create(ctx context.Context, a *domain.Activity) error {
	const query = `
		INSERT INTO activities (
			trader_id, market_id, transaction_hash, activity_type, outcome, side,
			shares_amount, cash_amount, price, fee_amount, asset_id, from_asset_id, to_asset_id,
			timestamp, activity_date, realized_pnl, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, query,
		a.TraderID, a.MarketID, nullable(a.TxHash), string(a.Type), a.Outcome, a.Side,
		a.Shares, a.CashAmount, nullable(a.Price), a.Fee, a.AssetID, a.FromAssetID, a.ToAssetID,
		a.Timestamp, a.ActivityDate, nullable(a.RealizedPnL), string(a.Metadata), formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create activity: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: create activity: last insert id: %w", err)
	}
	a.ID = id
	return nil
}

// ListByTrader returns the trader's activities, newest first.
func (s *ActivityStore) ListByTrader(ctx context.Context, traderID int64, opts domain.ListOpts) ([]domain.Activity, error) {
	var since int64
	if opts.Since != nil {
		since = opts.Since.Unix()
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE trader_id = ? AND timestamp >= ?
		 ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`,
		traderID, since, limitOrDefault(opts), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list activities for trader %d: %w", traderID, err)
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate activities: %w", err)
	}
	return activities, nil
}

func (s *ActivityStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count activities: %w", err)
	}
	return n, nil
}

func scanActivity(row scanner) (domain.Activity, error) {
	var (
		a                      domain.Activity
		typ, metadata, created string
	)
	err := row.Scan(
		&a.ID, &a.TraderID, &a.MarketID, &a.TxHash, &typ, &a.Outcome, &a.Side,
		&a.Shares, &a.CashAmount, &a.Price, &a.Fee, &a.AssetID, &a.FromAssetID, &a.ToAssetID,
		&a.Timestamp, &a.ActivityDate, &a.RealizedPnL, &metadata, &created,
	)
	if err != nil {
		return domain.Activity{}, err
	}
	a.Type = domain.ActivityType(typ)
	a.Metadata = []byte(metadata)
	if a.CreatedAt, err = parseTime(created); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}
