package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	q querier
}

const positionColumns = `
	id, trader_id, market_id, outcome, asset, title,
	size, avg_price, initial_value, current_value, current_price,
	realized_pnl, unrealized_pnl, last_updated, created_at`

// Get returns the position identified by (traderID, marketID, outcome).
func (s *PositionStore) Get(ctx context.Context, traderID int64, marketID, outcome string) (domain.Position, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE trader_id = $1 AND market_id = $2 AND outcome = $3`,
		traderID, marketID, outcome,
	)
	p, err := scanPosition(row)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", marketID, outcome, mapErr(err))
	}
	return p, nil
}

// Create inserts a new position and assigns its ID.
func (s *PositionStore) Create(ctx context.Context, p *domain.Position) error {
	const query = `
		INSERT INTO positions (
			trader_id, market_id, outcome, asset, title,
			size, avg_price, initial_value, current_value, current_price,
			realized_pnl, unrealized_pnl, last_updated, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)
		RETURNING id`

	err := s.q.QueryRow(ctx, query,
		p.TraderID, p.MarketID, p.Outcome, p.Asset, p.Title,
		p.Size, p.AvgPrice, p.InitialValue, p.CurrentValue, p.CurrentPrice,
		p.RealizedPnL, p.UnrealizedPnL, p.LastUpdated, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("postgres: create position %s/%s: %w", p.MarketID, p.Outcome, mapErr(err))
	}
	return nil
}

// Update overwrites the snapshot fields of the position identified by p.ID.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			asset          = $2,
			title          = $3,
			size           = $4,
			avg_price      = $5,
			initial_value  = $6,
			current_value  = $7,
			current_price  = $8,
			realized_pnl   = $9,
			unrealized_pnl = $10,
			last_updated   = $11
		WHERE id = $1`

	tag, err := s.q.Exec(ctx, query,
		p.ID, p.Asset, p.Title,
		p.Size, p.AvgPrice, p.InitialValue, p.CurrentValue, p.CurrentPrice,
		p.RealizedPnL, p.UnrealizedPnL, p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %d: %w", p.ID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update position %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// ListByTrader returns every position held by traderID.
func (s *PositionStore) ListByTrader(ctx context.Context, traderID int64) ([]domain.Position, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE trader_id = $1 ORDER BY id`, traderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for trader %d: %w", traderID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate positions: %w", err)
	}
	return positions, nil
}

// CountByMarket returns the position and distinct trader counts for marketID.
func (s *PositionStore) CountByMarket(ctx context.Context, marketID string) (int, int, error) {
	var positions, traders int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT trader_id) FROM positions WHERE market_id = $1`, marketID,
	).Scan(&positions, &traders)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: count positions for %s: %w", marketID, err)
	}
	return positions, traders, nil
}

// Count returns the number of stored positions.
func (s *PositionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM positions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count positions: %w", err)
	}
	return n, nil
}

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.ID, &p.TraderID, &p.MarketID, &p.Outcome, &p.Asset, &p.Title,
		&p.Size, &p.AvgPrice, &p.InitialValue, &p.CurrentValue, &p.CurrentPrice,
		&p.RealizedPnL, &p.UnrealizedPnL, &p.LastUpdated, &p.CreatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	return p, nil
}
