package sqlite

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// PositionStore implements domain.PositionStore on SQLite.
type PositionStore struct {
	q querier
}

const positionColumns = `
	id, trader_id, market_id, outcome, asset, title,
	size, avg_price, initial_value, current_value, current_price,
	realized_pnl, unrealized_pnl, last_updated, created_at`

func (s *PositionStore) Get(ctx context.Context, traderID int64, marketID, outcome string) (domain.Position, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE trader_id = ? AND market_id = ? AND outcome = ?`,
		traderID, marketID, outcome,
	)
	p, err := scanPosition(row)
	if err != nil {
		return domain.Position{}, fmt.Errorf("sqlite: get position %s/%s: %w", marketID, outcome, mapErr(err))
	}
	return p, nil
}

func (s *PositionStore) Create(ctx context.Context, p *domain.Position) error {
	const query = `
		INSERT INTO positions (
			trader_id, market_id, outcome, asset, title,
			size, avg_price, initial_value, current_value, current_price,
			realized_pnl, unrealized_pnl, last_updated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, query,
		p.TraderID, p.MarketID, p.Outcome, p.Asset, p.Title,
		p.Size, p.AvgPrice, p.InitialValue, p.CurrentValue, p.CurrentPrice,
		p.RealizedPnL, p.UnrealizedPnL, formatTime(p.LastUpdated), formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create position %s/%s: %w", p.MarketID, p.Outcome, mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: create position %s/%s: last insert id: %w", p.MarketID, p.Outcome, err)
	}
	p.ID = id
	return nil
}

// Update overwrites the snapshot fields of the position identified by p.ID.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			asset          = ?,
			title          = ?,
			size           = ?,
			avg_price      = ?,
			initial_value  = ?,
			current_value  = ?,
			current_price  = ?,
			realized_pnl   = ?,
			unrealized_pnl = ?,
			last_updated   = ?
		WHERE id = ?`

	res, err := s.q.ExecContext(ctx, query,
		p.Asset, p.Title,
		p.Size, p.AvgPrice, p.InitialValue, p.CurrentValue, p.CurrentPrice,
		p.RealizedPnL, p.UnrealizedPnL, formatTime(p.LastUpdated),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update position %d: %w", p.ID, mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: update position %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *PositionStore) ListByTrader(ctx context.Context, traderID int64) ([]domain.Position, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE trader_id = ? ORDER BY id`, traderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list positions for trader %d: %w", traderID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate positions: %w", err)
	}
	return positions, nil
}

// CountByMarket returns the position and distinct trader counts for marketID.
func (s *PositionStore) CountByMarket(ctx context.Context, marketID string) (int, int, error) {
	var positions, traders int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT trader_id) FROM positions WHERE market_id = ?`, marketID,
	).Scan(&positions, &traders)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: count positions for %s: %w", marketID, err)
	}
	return positions, traders, nil
}

func (s *PositionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count positions: %w", err)
	}
	return n, nil
}

func scanPosition(row scanner) (domain.Position, error) {
	var (
		p                domain.Position
		updated, created string
	)
	err := row.Scan(
		&p.ID, &p.TraderID, &p.MarketID, &p.Outcome, &p.Asset, &p.Title,
		&p.Size, &p.AvgPrice, &p.InitialValue, &p.CurrentValue, &p.CurrentPrice,
		&p.RealizedPnL, &p.UnrealizedPnL, &updated, &created,
	)
	if err != nil {
		return domain.Position{}, err
	}
	if p.LastUpdated, err = parseTime(updated); err != nil {
		return domain.Position{}, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}
