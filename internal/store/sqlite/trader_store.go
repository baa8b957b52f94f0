package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// TraderStore implements domain.TraderStore on SQLite.
type TraderStore struct {
	q querier
}

const traderColumns = `
	id, address, username, pseudonym, trader_url,
	total_volume, total_trades, markets_traded, win_rate, avg_position_size,
	first_trade_ts, last_trade_ts, is_active, last_synced_at, created_at, updated_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *TraderStore) GetByAddress(ctx context.Context, address string) (domain.Trader, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+traderColumns+` FROM traders WHERE address = ?`, address)
	t, err := scanTrader(row)
	if err != nil {
		return domain.Trader{}, fmt.Errorf("sqlite: get trader %s: %w", address, mapErr(err))
	}
	return t, nil
}

func (s *TraderStore) Create(ctx context.Context, t *domain.Trader) error {
	const query = `
		INSERT INTO traders (
			address, username, pseudonym, trader_url,
			total_volume, total_trades, markets_traded, win_rate, avg_position_size,
			first_trade_ts, first_trade_date, last_trade_ts, last_trade_date,
			is_active, last_synced_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	firstTS, firstDate := unixColumns(t.FirstTradeAt)
	lastTS, lastDate := unixColumns(t.LastTradeAt)
	created := formatTime(t.CreatedAt)
	res, err := s.q.ExecContext(ctx, query,
		t.Address, nullable(t.Username), nullable(t.Pseudonym), t.ProfileURL,
		t.TotalVolume, t.TotalTrades, t.MarketsTraded, nullable(t.WinRate), nullable(t.AvgPositionSize),
		firstTS, firstDate, lastTS, lastDate,
		t.IsActive, formatTimePtr(t.LastSyncedAt), created, created,
	)
	if err != nil {
		return fmt.Errorf("sqlite: create trader %s: %w", t.Address, mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: create trader %s: last insert id: %w", t.Address, err)
	}
	t.ID = id
	return nil
}

func (s *TraderStore) Update(ctx context.Context, t domain.Trader) error {
	const query = `
		UPDATE traders SET
			username          = ?,
			pseudonym         = ?,
			trader_url        = ?,
			total_volume      = ?,
			total_trades      = ?,
			markets_traded    = ?,
			win_rate          = ?,
			avg_position_size = ?,
			first_trade_ts    = ?,
			first_trade_date  = ?,
			last_trade_ts     = ?,
			last_trade_date   = ?,
			is_active         = ?,
			last_synced_at    = ?,
			updated_at        = ?
		WHERE id = ?`

	firstTS, firstDate := unixColumns(t.FirstTradeAt)
	lastTS, lastDate := unixColumns(t.LastTradeAt)
	res, err := s.q.ExecContext(ctx, query,
		nullable(t.Username), nullable(t.Pseudonym), t.ProfileURL,
		t.TotalVolume, t.TotalTrades, t.MarketsTraded, nullable(t.WinRate), nullable(t.AvgPositionSize),
		firstTS, firstDate, lastTS, lastDate,
		t.IsActive, formatTimePtr(t.LastSyncedAt), formatTime(time.Now()),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update trader %s: %w", t.Address, mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: update trader %s: %w", t.Address, domain.ErrNotFound)
	}
	return nil
}

// List returns traders ordered by total volume, highest first.
func (s *TraderStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Trader, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+traderColumns+` FROM traders ORDER BY total_volume DESC, id LIMIT ? OFFSET ?`,
		limitOrDefault(opts), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list traders: %w", err)
	}
	defer rows.Close()

	var traders []domain.Trader
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan trader: %w", err)
		}
		traders = append(traders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate traders: %w", err)
	}
	return traders, nil
}

func (s *TraderStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM traders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count traders: %w", err)
	}
	return n, nil
}

func scanTrader(row scanner) (domain.Trader, error) {
	var (
		t                domain.Trader
		firstTS, lastTS  sql.NullInt64
		synced           sql.NullString
		created, updated string
	)
	err := row.Scan(
		&t.ID, &t.Address, &t.Username, &t.Pseudonym, &t.ProfileURL,
		&t.TotalVolume, &t.TotalTrades, &t.MarketsTraded, &t.WinRate, &t.AvgPositionSize,
		&firstTS, &lastTS, &t.IsActive, &synced, &created, &updated,
	)
	if err != nil {
		return domain.Trader{}, err
	}
	t.FirstTradeAt = fromUnix(firstTS)
	t.LastTradeAt = fromUnix(lastTS)
	if t.LastSyncedAt, err = parseTimePtr(synced); err != nil {
		return domain.Trader{}, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return domain.Trader{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Trader{}, err
	}
	return t, nil
}
