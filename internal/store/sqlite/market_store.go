package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// MarketStore implements domain.MarketStore on SQLite.
type MarketStore struct {
	q querier
}

const marketColumns = `
	id, market_id, condition_id, question, description, category, slug,
	active, closed, resolved, volume, liquidity, outcomes, outcome_prices,
	winning_outcome, start_date, end_date, resolution_date,
	total_positions, unique_traders, last_synced_at, created_at, updated_at`

func (s *MarketStore) GetByMarketID(ctx context.Context, marketID string) (domain.Market, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+marketColumns+` FROM markets WHERE market_id = ?`, marketID)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: get market %s: %w", marketID, mapErr(err))
	}
	return m, nil
}

func (s *MarketStore) GetByConditionID(ctx context.Context, conditionID string) (domain.Market, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE condition_id = ? AND condition_id <> '' ORDER BY id LIMIT 1`,
		conditionID,
	)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("sqlite: get market by condition %s: %w", conditionID, mapErr(err))
	}
	return m, nil
}

// Exists reports whether id matches a stored market_id or condition_id.
func (s *MarketStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM markets WHERE market_id = ?1 OR condition_id = ?1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: market exists %s: %w", id, err)
	}
	return exists, nil
}

func (s *MarketStore) Create(ctx context.Context, m *domain.Market) error {
	const query = `
		INSERT INTO markets (
			market_id, condition_id, question, description, category, slug,
			active, closed, resolved, volume, liquidity, outcomes, outcome_prices,
			winning_outcome, start_date, end_date, resolution_date,
			total_positions, unique_traders, last_synced_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	created := formatTime(m.CreatedAt)
	res, err := s.q.ExecContext(ctx, query,
		m.MarketID, m.ConditionID, m.Question, nullable(m.Description), nullable(m.Category), m.Slug,
		m.Active, m.Closed, m.Resolved, m.Volume, m.Liquidity, m.Outcomes, m.OutcomePrices,
		nullable(m.WinningOutcome), formatTimePtr(m.StartDate), formatTimePtr(m.EndDate), formatTimePtr(m.ResolutionDate),
		m.TotalPositions, m.UniqueTraders, formatTimePtr(m.LastSyncedAt), created, created,
	)
	if err != nil {
		return fmt.Errorf("sqlite: create market %s: %w", m.MarketID, mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: create market %s: last insert id: %w", m.MarketID, err)
	}
	m.ID = id
	return nil
}

// Update overwrites every mutable column of the market keyed by market_id.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			condition_id    = ?,
			question        = ?,
			description     = ?,
			category        = ?,
			slug            = ?,
			active          = ?,
			closed          = ?,
			resolved        = ?,
			volume          = ?,
			liquidity       = ?,
			outcomes        = ?,
			outcome_prices  = ?,
			winning_outcome = ?,
			start_date      = ?,
			end_date        = ?,
			resolution_date = ?,
			total_positions = ?,
			unique_traders  = ?,
			last_synced_at  = ?,
			updated_at      = ?
		WHERE market_id = ?`

	res, err := s.q.ExecContext(ctx, query,
		m.ConditionID, m.Question, nullable(m.Description), nullable(m.Category), m.Slug,
		m.Active, m.Closed, m.Resolved, m.Volume, m.Liquidity, m.Outcomes, m.OutcomePrices,
		nullable(m.WinningOutcome), formatTimePtr(m.StartDate), formatTimePtr(m.EndDate), formatTimePtr(m.ResolutionDate),
		m.TotalPositions, m.UniqueTraders, formatTimePtr(m.LastSyncedAt), formatTime(time.Now()),
		m.MarketID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update market %s: %w", m.MarketID, mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: update market %s: %w", m.MarketID, domain.ErrNotFound)
	}
	return nil
}

func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count markets: %w", err)
	}
	return n, nil
}

func scanMarket(row scanner) (domain.Market, error) {
	var (
		m                      domain.Market
		start, end, resolution sql.NullString
		synced                 sql.NullString
		created, updated       string
	)
	err := row.Scan(
		&m.ID, &m.MarketID, &m.ConditionID, &m.Question, &m.Description, &m.Category, &m.Slug,
		&m.Active, &m.Closed, &m.Resolved, &m.Volume, &m.Liquidity, &m.Outcomes, &m.OutcomePrices,
		&m.WinningOutcome, &start, &end, &resolution,
		&m.TotalPositions, &m.UniqueTraders, &synced, &created, &updated,
	)
	if err != nil {
		return domain.Market{}, err
	}
	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{start, &m.StartDate},
		{end, &m.EndDate},
		{resolution, &m.ResolutionDate},
		{synced, &m.LastSyncedAt},
	} {
		if *f.dst, err = parseTimePtr(f.src); err != nil {
			return domain.Market{}, err
		}
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return domain.Market{}, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}
