package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCollector(store *memStore, gw *fakeGateway, opts TraderOptions) *TraderCollector {
	logger := discardLogger()
	c := NewTraderCollector(store, gw, gw, NewMarketReconciler(nil, logger), nil, opts, logger)
	c.now = func() time.Time { return fixedNow }
	return c
}

func m1Position() polymarket.PositionPayload {
	return polymarket.PositionPayload{
		ConditionID:  str("M1"),
		Outcome:      str("YES"),
		Size:         num(10),
		AvgPrice:     num(0.6),
		InitialValue: num(6.0),
		RealizedPnL:  num(0),
		CashPnL:      num(2.0),
	}
}

func trade(market string, size, price float64, ts int64) polymarket.TradePayload {
	return polymarket.TradePayload{
		ConditionID: str(market),
		Size:        num(size),
		Price:       num(price),
		Timestamp:   polymarket.Some(polymarket.FlexInt(ts)),
	}
}

func TestCollectTraderNewTraderSinglePosition(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{positions: []polymarket.PositionPayload{m1Position()}}

	trader, err := newTestCollector(store, gw, TraderOptions{}).CollectTrader(context.Background(), addrA)
	require.NoError(t, err)

	require.NotNil(t, trader.WinRate)
	require.NotNil(t, trader.AvgPositionSize)
	assert.InDelta(t, 100.0, *trader.WinRate, 1e-9)
	assert.InDelta(t, 6.0, *trader.AvgPositionSize, 1e-9)
	assert.True(t, trader.IsActive)
	require.NotNil(t, trader.LastSyncedAt)
	assert.Equal(t, fixedNow, *trader.LastSyncedAt)

	stored, err := store.Traders().GetByAddress(context.Background(), addrA)
	require.NoError(t, err)
	assert.Equal(t, trader, stored)

	pos, err := store.Positions().Get(context.Background(), trader.ID, "M1", "YES")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, pos.Size, 1e-9)
	assert.InDelta(t, 0.6, pos.AvgPrice, 1e-9)
	assert.InDelta(t, 2.0, pos.UnrealizedPnL, 1e-9)
}

func TestCollectTraderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	hash := "0xabc"
	gw := &fakeGateway{
		positions: []polymarket.PositionPayload{m1Position(), {
			ConditionID: str("M2"), Outcome: str("NO"), Size: num(5), InitialValue: num(2), CashPnL: num(-1),
		}},
		tradePages: [][]polymarket.TradePayload{{trade("M1", 10, 0.6, 1700000000), trade("M2", 5, 0.4, 1700000500000)}},
		activities: []polymarket.ActivityPayload{
			{TransactionHash: str(hash), Type: str("trade"), USDCSize: num(6)},
			{Type: str("REWARD"), USDCSize: num(1)},
		},
	}
	collector := newTestCollector(store, gw, TraderOptions{})

	first, err := collector.CollectTrader(ctx, addrA)
	require.NoError(t, err)
	posCount, _ := store.Positions().Count(ctx)
	actCount, _ := store.Activities().Count(ctx)

	second, err := collector.CollectTrader(ctx, addrA)
	require.NoError(t, err)
	posCount2, _ := store.Positions().Count(ctx)
	actCount2, _ := store.Activities().Count(ctx)

	assert.Equal(t, int64(2), posCount)
	assert.Equal(t, posCount, posCount2)
	// The hashless reward is appended again; the hashed trade is not.
	assert.Equal(t, int64(2), actCount)
	assert.Equal(t, int64(3), actCount2)

	assert.Equal(t, first.WinRate, second.WinRate)
	assert.Equal(t, first.AvgPositionSize, second.AvgPositionSize)
	assert.Equal(t, first.TotalVolume, second.TotalVolume)
	assert.Equal(t, first.TotalTrades, second.TotalTrades)
	assert.InDelta(t, 50.0, *second.WinRate, 1e-9)
	assert.InDelta(t, 4.0, *second.AvgPositionSize, 1e-9)
	assert.InDelta(t, 8.0, second.TotalVolume, 1e-9)
	assert.Equal(t, 2, second.MarketsTraded)
	require.NotNil(t, second.FirstTradeAt)
	assert.Equal(t, int64(1700000000), second.FirstTradeAt.Unix())
	assert.Equal(t, int64(1700000500), second.LastTradeAt.Unix())
}

func TestTradesPaginationStopsAtShortPage(t *testing.T) {
	gw := &fakeGateway{
		tradePages: [][]polymarket.TradePayload{
			{trade("M1", 1, 1, 1), trade("M1", 1, 1, 2)},
			{trade("M2", 1, 1, 3), trade("M2", 1, 1, 4)},
			{trade("M3", 1, 1, 5)},
			{trade("M4", 1, 1, 6)},
		},
	}
	trader, err := newTestCollector(newMemStore(), gw, TraderOptions{TradesPageSize: 2}).CollectTrader(context.Background(), addrA)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 4}, gw.tradeCalls)
	assert.Equal(t, 5, trader.TotalTrades)
	assert.Equal(t, 3, trader.MarketsTraded)
}

func TestTradesPaginationStopsAtEmptyPage(t *testing.T) {
	gw := &fakeGateway{
		tradePages: [][]polymarket.TradePayload{
			{trade("M1", 1, 1, 1), trade("M1", 1, 1, 2)},
		},
	}
	_, err := newTestCollector(newMemStore(), gw, TraderOptions{TradesPageSize: 2}).CollectTrader(context.Background(), addrA)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, gw.tradeCalls)
}

func TestPositionsNotFoundIsEmpty(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{
		positionsErr: &polymarket.APIError{StatusCode: 404, Endpoint: "/positions"},
		tradePages:   [][]polymarket.TradePayload{{trade("M9", 2, 0.5, 1700000000)}},
	}

	trader, err := newTestCollector(store, gw, TraderOptions{}).CollectTrader(context.Background(), addrA)
	require.NoError(t, err)

	assert.Nil(t, trader.WinRate)
	assert.Nil(t, trader.AvgPositionSize)
	assert.False(t, trader.IsActive)
	assert.Equal(t, 1, trader.TotalTrades, "stats pass still runs")
	assert.InDelta(t, 1.0, trader.TotalVolume, 1e-9)

	n, _ := store.Positions().Count(context.Background())
	assert.Zero(t, n)
}

func TestTradesNotFoundKeepsTradeAggregates(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	gw := &fakeGateway{
		positions:  []polymarket.PositionPayload{m1Position()},
		tradePages: [][]polymarket.TradePayload{{trade("M1", 10, 0.6, 1700000000)}},
	}
	collector := newTestCollector(store, gw, TraderOptions{})
	_, err := collector.CollectTrader(ctx, addrA)
	require.NoError(t, err)

	gw.tradesErr = domain.ErrNotFound
	trader, err := collector.CollectTrader(ctx, addrA)
	require.NoError(t, err)

	assert.Equal(t, 1, trader.TotalTrades)
	assert.InDelta(t, 6.0, trader.TotalVolume, 1e-9)
	require.NotNil(t, trader.WinRate)
	assert.InDelta(t, 100.0, *trader.WinRate, 1e-9)
}

func TestPositionsFailureRollsBackTrader(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{positionsErr: &polymarket.APIError{StatusCode: 502, Endpoint: "/positions"}}

	_, err := newTestCollector(store, gw, TraderOptions{}).CollectTrader(context.Background(), addrA)
	require.Error(t, err)

	_, err = store.Traders().GetByAddress(context.Background(), addrA)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTradesFailureRollsBackPositions(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	gw := &fakeGateway{
		positions: []polymarket.PositionPayload{m1Position()},
		tradesErr: errBoom,
	}

	_, err := newTestCollector(store, gw, TraderOptions{}).CollectTrader(ctx, addrA)
	require.ErrorIs(t, err, errBoom)

	n, _ := store.Positions().Count(ctx)
	assert.Zero(t, n)
	n, _ = store.Traders().Count(ctx)
	assert.Zero(t, n)
}

func TestStoreFailureDuringActivitiesRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failActivityCreate = errBoom
	gw := &fakeGateway{
		positions:  []polymarket.PositionPayload{m1Position()},
		activities: []polymarket.ActivityPayload{{Type: str("TRADE")}},
	}

	_, err := newTestCollector(store, gw, TraderOptions{}).CollectTrader(ctx, addrA)
	require.ErrorIs(t, err, errBoom)

	n, _ := store.Positions().Count(ctx)
	assert.Zero(t, n)
	n, _ = store.Traders().Count(ctx)
	assert.Zero(t, n)
}

func TestActivityFetchFailureIsSwallowed(t *testing.T) {
	gw := &fakeGateway{
		positions:     []polymarket.PositionPayload{m1Position()},
		activitiesErr: errBoom,
	}
	trader, err := newTestCollector(newMemStore(), gw, TraderOptions{}).CollectTrader(context.Background(), addrA)
	require.NoError(t, err)
	assert.NotZero(t, trader.ID)
}

func TestCollectTradersIsolatesFailures(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{positions: []polymarket.PositionPayload{m1Position()}}
	collector := newTestCollector(store, gw, TraderOptions{})

	n := collector.CollectTraders(context.Background(), []string{
		"not-an-address",
		addrA,
		strings.ToUpper(addrA[2:]),
		addrB,
	})
	assert.Equal(t, 2, n)

	count, _ := store.Traders().Count(context.Background())
	assert.Equal(t, int64(2), count)
}

func TestCollectTradersAllFailing(t *testing.T) {
	gw := &fakeGateway{positionsErr: errBoom}
	n := newTestCollector(newMemStore(), gw, TraderOptions{}).CollectTraders(context.Background(), []string{addrA, addrB})
	assert.Zero(t, n)
}

func TestCollectTradersRespectsMaxTraders(t *testing.T) {
	gw := &fakeGateway{}
	n := newTestCollector(newMemStore(), gw, TraderOptions{MaxTraders: 1}).CollectTraders(context.Background(), []string{addrA, addrB})
	assert.Equal(t, 1, n)
}

func TestCollectTraderRejectsInvalidAddress(t *testing.T) {
	_, err := newTestCollector(newMemStore(), &fakeGateway{}, TraderOptions{}).CollectTrader(context.Background(), "0x12")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestCollectTraderWithBackfill(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	gw := &fakeGateway{
		positions: []polymarket.PositionPayload{m1Position()},
		market: map[string]polymarket.MarketPayload{
			"M1": {ID: str("M1"), Question: str("Will it?")},
		},
	}

	_, err := newTestCollector(store, gw, TraderOptions{BackfillMarkets: true}).CollectTrader(ctx, addrA)
	require.NoError(t, err)

	m, err := store.Markets().GetByMarketID(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, "Will it?", m.Question)
	assert.Equal(t, 1, m.TotalPositions)
	assert.Equal(t, 1, m.UniqueTraders)
}

type fakeArchiver struct {
	snaps []domain.TraderSnapshot
	err   error
}

func (a *fakeArchiver) ArchiveTrader(_ context.Context, snap domain.TraderSnapshot) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.snaps = append(a.snaps, snap)
	return "snap.json", nil
}

func TestCollectTraderArchivesSnapshotAfterCommit(t *testing.T) {
	logger := discardLogger()
	archiver := &fakeArchiver{}
	store := newMemStore()
	gw := &fakeGateway{
		positions:  []polymarket.PositionPayload{m1Position()},
		tradePages: [][]polymarket.TradePayload{{trade("M1", 1, 1, 1)}},
	}
	c := NewTraderCollector(store, gw, gw, NewMarketReconciler(nil, logger), NewSnapshotRecorder(archiver, logger), TraderOptions{}, logger)

	_, err := c.CollectTrader(context.Background(), addrA)
	require.NoError(t, err)
	require.Len(t, archiver.snaps, 1)
	assert.Equal(t, addrA, archiver.snaps[0].Address)
	assert.Len(t, archiver.snaps[0].Positions, 1)
	assert.Len(t, archiver.snaps[0].Trades, 1)
	assert.NotEmpty(t, archiver.snaps[0].RunID)

	gw.positionsErr = errBoom
	_, err = c.CollectTrader(context.Background(), addrA)
	require.Error(t, err)
	assert.Len(t, archiver.snaps, 1, "rolled back runs are not archived")
}

func TestArchiveFailureDoesNotFailCollection(t *testing.T) {
	logger := discardLogger()
	gw := &fakeGateway{}
	c := NewTraderCollector(newMemStore(), gw, gw, NewMarketReconciler(nil, logger),
		NewSnapshotRecorder(&fakeArchiver{err: errBoom}, logger), TraderOptions{}, logger)

	_, err := c.CollectTrader(context.Background(), addrA)
	assert.NoError(t, err)
}
