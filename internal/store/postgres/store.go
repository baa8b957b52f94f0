package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store. A Store returned by InTx is bound to the
// open transaction.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// NewStore creates a pool-backed Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Traders() domain.TraderStore      { return &TraderStore{q: s.q} }
func (s *Store) Markets() domain.MarketStore      { return &MarketStore{q: s.q} }
func (s *Store) Positions() domain.PositionStore  { return &PositionStore{q: s.q} }
func (s *Store) Activities() domain.ActivityStore { return &ActivityStore{q: s.q} }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// InTx runs fn inside a transaction, committing on success.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// mapErr translates driver errors into domain sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}

// unixColumns splits an optional time into the unix and ISO-date columns.
func unixColumns(t *time.Time) (*int64, *string) {
	if t == nil {
		return nil, nil
	}
	ts := t.Unix()
	date := t.UTC().Format(time.RFC3339)
	return &ts, &date
}

func fromUnix(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}

func limitOrDefault(opts domain.ListOpts) int {
	if opts.Limit <= 0 {
		return 100
	}
	return opts.Limit
}
