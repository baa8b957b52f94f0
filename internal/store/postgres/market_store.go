package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	q querier
}

const marketColumns = `
	id, market_id, condition_id, question, description, category, slug,
	active, closed, resolved, volume, liquidity, outcomes, outcome_prices,
	winning_outcome, start_date, end_date, resolution_date,
	total_positions, unique_traders, last_synced_at, created_at, updated_at`

// GetByMarketID returns the market with the given external market id.
func (s *MarketStore) GetByMarketID(ctx context.Context, marketID string) (domain.Market, error) {
	row := s.q.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE market_id = $1`, marketID)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", marketID, mapErr(err))
	}
	return m, nil
}

// GetByConditionID returns the earliest stored market with the given condition id.
func (s *MarketStore) GetByConditionID(ctx context.Context, conditionID string) (domain.Market, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE condition_id = $1 AND condition_id <> '' ORDER BY id LIMIT 1`,
		conditionID,
	)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market by condition %s: %w", conditionID, mapErr(err))
	}
	return m, nil
}

// Exists reports whether id matches a stored market_id or condition_id.
func (s *MarketStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM markets WHERE market_id = $1 OR condition_id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: market exists %s: %w", id, err)
	}
	return exists, nil
}

// Create inserts m and assigns its ID.
func (s *MarketStore) Create(ctx context.Context, m *domain.Market) error {
	const query = `
		INSERT INTO markets (
			market_id, condition_id, question, description, category, slug,
			active, closed, resolved, volume, liquidity, outcomes, outcome_prices,
			winning_outcome, start_date, end_date, resolution_date,
			total_positions, unique_traders, last_synced_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21, $21
		)
		RETURNING id`

	err := s.q.QueryRow(ctx, query,
		m.MarketID, m.ConditionID, m.Question, m.Description, m.Category, m.Slug,
		m.Active, m.Closed, m.Resolved, m.Volume, m.Liquidity, m.Outcomes, m.OutcomePrices,
		m.WinningOutcome, m.StartDate, m.EndDate, m.ResolutionDate,
		m.TotalPositions, m.UniqueTraders, m.LastSyncedAt, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.MarketID, mapErr(err))
	}
	return nil
}

// Update overwrites every mutable column of the market keyed by market_id.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			condition_id    = $2,
			question        = $3,
			description     = $4,
			category        = $5,
			slug            = $6,
			active          = $7,
			closed          = $8,
			resolved        = $9,
			volume          = $10,
			liquidity       = $11,
			outcomes        = $12,
			outcome_prices  = $13,
			winning_outcome = $14,
			start_date      = $15,
			end_date        = $16,
			resolution_date = $17,
			total_positions = $18,
			unique_traders  = $19,
			last_synced_at  = $20,
			updated_at      = NOW()
		WHERE market_id = $1`

	tag, err := s.q.Exec(ctx, query,
		m.MarketID, m.ConditionID, m.Question, m.Description, m.Category, m.Slug,
		m.Active, m.Closed, m.Resolved, m.Volume, m.Liquidity, m.Outcomes, m.OutcomePrices,
		m.WinningOutcome, m.StartDate, m.EndDate, m.ResolutionDate,
		m.TotalPositions, m.UniqueTraders, m.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.MarketID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update market %s: %w", m.MarketID, domain.ErrNotFound)
	}
	return nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID, &m.MarketID, &m.ConditionID, &m.Question, &m.Description, &m.Category, &m.Slug,
		&m.Active, &m.Closed, &m.Resolved, &m.Volume, &m.Liquidity, &m.Outcomes, &m.OutcomePrices,
		&m.WinningOutcome, &m.StartDate, &m.EndDate, &m.ResolutionDate,
		&m.TotalPositions, &m.UniqueTraders, &m.LastSyncedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	return m, nil
}
