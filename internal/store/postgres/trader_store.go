package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// TraderStore implements domain.TraderStore using PostgreSQL.
type TraderStore struct {
	q querier
}

const traderColumns = `
	id, address, username, pseudonym, trader_url,
	total_volume, total_trades, markets_traded, win_rate, avg_position_size,
	first_trade_ts, last_trade_ts, is_active, last_synced_at, created_at, updated_at`

// GetByAddress returns the trader with the given normalized address.
func (s *TraderStore) GetByAddress(ctx context.Context, address string) (domain.Trader, error) {
	row := s.q.QueryRow(ctx, `SELECT `+traderColumns+` FROM traders WHERE address = $1`, address)
	t, err := scanTrader(row)
	if err != nil {
		return domain.Trader{}, fmt.Errorf("postgres: get trader %s: %w", address, mapErr(err))
	}
	return t, nil
}

// Create inserts t and assigns its ID.
func (s *TraderStore) Create(ctx context.Context, t *domain.Trader) error {
	const query = `
		INSERT INTO traders (
			address, username, pseudonym, trader_url,
			total_volume, total_trades, markets_traded, win_rate, avg_position_size,
			first_trade_ts, first_trade_date, last_trade_ts, last_trade_date,
			is_active, last_synced_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $16
		)
		RETURNING id`

	firstTS, firstDate := unixColumns(t.FirstTradeAt)
	lastTS, lastDate := unixColumns(t.LastTradeAt)
	err := s.q.QueryRow(ctx, query,
		t.Address, t.Username, t.Pseudonym, t.ProfileURL,
		t.TotalVolume, t.TotalTrades, t.MarketsTraded, t.WinRate, t.AvgPositionSize,
		firstTS, firstDate, lastTS, lastDate,
		t.IsActive, t.LastSyncedAt, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("postgres: create trader %s: %w", t.Address, mapErr(err))
	}
	return nil
}

// Update overwrites every mutable column of the trader identified by t.ID.
func (s *TraderStore) Update(ctx context.Context, t domain.Trader) error {
	const query = `
		UPDATE traders SET
			username          = $2,
			pseudonym         = $3,
			trader_url        = $4,
			total_volume      = $5,
			total_trades      = $6,
			markets_traded    = $7,
			win_rate          = $8,
			avg_position_size = $9,
			first_trade_ts    = $10,
			first_trade_date  = $11,
			last_trade_ts     = $12,
			last_trade_date   = $13,
			is_active         = $14,
			last_synced_at    = $15,
			updated_at        = NOW()
		WHERE id = $1`

	firstTS, firstDate := unixColumns(t.FirstTradeAt)
	lastTS, lastDate := unixColumns(t.LastTradeAt)
	tag, err := s.q.Exec(ctx, query,
		t.ID, t.Username, t.Pseudonym, t.ProfileURL,
		t.TotalVolume, t.TotalTrades, t.MarketsTraded, t.WinRate, t.AvgPositionSize,
		firstTS, firstDate, lastTS, lastDate,
		t.IsActive, t.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update trader %s: %w", t.Address, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update trader %s: %w", t.Address, domain.ErrNotFound)
	}
	return nil
}

// List returns traders ordered by total volume, highest first.
func (s *TraderStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Trader, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+traderColumns+` FROM traders ORDER BY total_volume DESC, id LIMIT $1 OFFSET $2`,
		limitOrDefault(opts), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list traders: %w", err)
	}
	defer rows.Close()

	var traders []domain.Trader
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trader: %w", err)
		}
		traders = append(traders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate traders: %w", err)
	}
	return traders, nil
}

// Count returns the number of stored traders.
func (s *TraderStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM traders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count traders: %w", err)
	}
	return n, nil
}

func scanTrader(row pgx.Row) (domain.Trader, error) {
	var t domain.Trader
	var firstTS, lastTS *int64
	err := row.Scan(
		&t.ID, &t.Address, &t.Username, &t.Pseudonym, &t.ProfileURL,
		&t.TotalVolume, &t.TotalTrades, &t.MarketsTraded, &t.WinRate, &t.AvgPositionSize,
		&firstTS, &lastTS, &t.IsActive, &t.LastSyncedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Trader{}, err
	}
	t.FirstTradeAt = fromUnix(firstTS)
	t.LastTradeAt = fromUnix(lastTS)
	return t, nil
}
