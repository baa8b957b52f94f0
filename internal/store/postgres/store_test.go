package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: "postgres://u@h/db", Host: "ignored"},
			want: "postgres://u@h/db",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{Host: "db", Database: "polyinsider", User: "app", Password: "pw"},
			want: "postgres://app:pw@db:5432/polyinsider?sslmode=disable",
		},
		{
			name: "custom port and ssl",
			cfg:  ClientConfig{Host: "db", Port: 6543, Database: "x", User: "u", Password: "p", SSLMode: "require"},
			want: "postgres://u:p@db:6543/x?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(tt.cfg))
		})
	}
}

func TestMapErr(t *testing.T) {
	assert.ErrorIs(t, mapErr(fmt.Errorf("scan: %w", pgx.ErrNoRows)), domain.ErrNotFound)

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "traders_address_key"}
	err := mapErr(unique)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "traders_address_key")

	other := &pgconn.PgError{Code: "23503"}
	assert.Same(t, other, mapErr(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapErr(plain))
}

func TestUnixColumns(t *testing.T) {
	ts, date := unixColumns(nil)
	assert.Nil(t, ts)
	assert.Nil(t, date)

	at := time.Unix(1700000000, 0)
	ts, date = unixColumns(&at)
	assert.Equal(t, int64(1700000000), *ts)
	assert.Equal(t, "2023-11-14T22:13:20Z", *date)

	back := fromUnix(ts)
	assert.True(t, at.Equal(*back))
	assert.Nil(t, fromUnix(nil))
}
