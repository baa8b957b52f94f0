package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/service"
	"github.com/alanyoungcy/polyinsider/internal/store/sqlite"
)

const addr = "0xAbCdEf0123456789abcdef0123456789ABCDEF01"

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.RunMigrations(ctx))
	return s
}

type mapCache struct {
	markets map[string]domain.Market
	sets    int
	getErr  error
}

func (c *mapCache) Set(_ context.Context, m domain.Market) error {
	c.sets++
	c.markets[m.MarketID] = m
	return nil
}

func (c *mapCache) Get(_ context.Context, id string) (domain.Market, error) {
	if c.getErr != nil {
		return domain.Market{}, c.getErr
	}
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *mapCache) Invalidate(_ context.Context, id string) error {
	delete(c.markets, id)
	return nil
}

func TestMarketServiceReadThrough(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	m := domain.Market{MarketID: "m1", Question: "Q?", Outcomes: "[]", OutcomePrices: "{}", CreatedAt: time.Now()}
	require.NoError(t, store.Markets().Create(ctx, &m))

	cache := &mapCache{markets: map[string]domain.Market{}}
	svc := service.NewMarketService(store.Markets(), cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := svc.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Q?", got.Question)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second read is served from cache")

	_, err = svc.GetMarket(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketServiceResolvesConditionIDWithoutCache(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	m := domain.Market{MarketID: "9001", ConditionID: "0xc1", Outcomes: "[]", OutcomePrices: "{}", CreatedAt: time.Now()}
	require.NoError(t, store.Markets().Create(ctx, &m))

	svc := service.NewMarketService(store.Markets(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := svc.GetMarket(ctx, "0xc1")
	require.NoError(t, err)
	assert.Equal(t, "9001", got.MarketID)

	got, err = svc.GetMarket(ctx, "9001")
	require.NoError(t, err)
	assert.Equal(t, "0xc1", got.ConditionID)

	_, err = svc.GetMarket(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketServiceCacheErrorFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	m := domain.Market{MarketID: "m1", Outcomes: "[]", OutcomePrices: "{}", CreatedAt: time.Now()}
	require.NoError(t, store.Markets().Create(ctx, &m))

	cache := &mapCache{markets: map[string]domain.Market{}, getErr: errors.New("redis down")}
	svc := service.NewMarketService(store.Markets(), cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := svc.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.MarketID)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTraderServiceNormalizesAddress(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	normalized, err := domain.NormalizeAddress(addr)
	require.NoError(t, err)

	tr := domain.NewTrader(normalized, time.Now())
	require.NoError(t, store.Traders().Create(ctx, &tr))
	now := time.Now()
	p := domain.Position{TraderID: tr.ID, MarketID: "m1", Outcome: "YES", Size: 3, LastUpdated: now, CreatedAt: now}
	require.NoError(t, store.Positions().Create(ctx, &p))

	svc := service.NewTraderService(store, nil)

	got, err := svc.GetTrader(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, normalized, got.Address)

	positions, err := svc.Positions(ctx, addr)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	activities, err := svc.Activities(ctx, addr, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, activities)

	_, err = svc.GetTrader(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = svc.Snapshots(ctx, addr)
	assert.ErrorIs(t, err, service.ErrArchiveDisabled)
	_, err = svc.Snapshot(ctx, addr, "run-1")
	assert.ErrorIs(t, err, service.ErrArchiveDisabled)
}

type fakeCatalog struct {
	snaps map[string]domain.TraderSnapshot
}

func (c *fakeCatalog) ListSnapshots(context.Context, string) ([]domain.BlobInfo, error) {
	return nil, nil
}

func (c *fakeCatalog) FindSnapshot(_ context.Context, address, runID string) (domain.TraderSnapshot, error) {
	snap, ok := c.snaps[address+"/"+runID]
	if !ok {
		return domain.TraderSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func TestTraderServiceSnapshotNormalisesAddress(t *testing.T) {
	ctx := context.Background()
	normalized, err := domain.NormalizeAddress(addr)
	require.NoError(t, err)
	catalog := &fakeCatalog{snaps: map[string]domain.TraderSnapshot{
		normalized + "/run-1": {RunID: "run-1", Address: normalized},
	}}
	svc := service.NewTraderService(openStore(t), catalog)

	snap, err := svc.Snapshot(ctx, addr, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", snap.RunID)

	_, err = svc.Snapshot(ctx, addr, "run-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Snapshot(ctx, "bad", "run-1")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestStatusCountsEveryTable(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tr := domain.NewTrader("0x1111111111111111111111111111111111111111", time.Now())
	require.NoError(t, store.Traders().Create(ctx, &tr))

	svc := service.NewStatusService(store, nil)
	require.NoError(t, svc.Ping(ctx))
	assert.ErrorIs(t, svc.ArchiveHealth(ctx), service.ErrArchiveDisabled)

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.Status{Traders: 1}, st)
}

type healthFunc func(context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func TestStatusArchiveHealth(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("bucket gone")

	healthy := service.NewStatusService(openStore(t), healthFunc(func(context.Context) error { return nil }))
	assert.NoError(t, healthy.ArchiveHealth(ctx))

	broken := service.NewStatusService(openStore(t), healthFunc(func(context.Context) error { return boom }))
	assert.ErrorIs(t, broken.ArchiveHealth(ctx), boom)
}
