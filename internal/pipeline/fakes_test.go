package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memState is the full content of a memStore.
type memState struct {
	nextID     int64
	traders    map[string]domain.Trader
	markets    map[string]domain.Market
	positions  map[string]domain.Position
	activities []domain.Activity
}

func (s memState) clone() memState {
	c := memState{
		nextID:     s.nextID,
		traders:    make(map[string]domain.Trader, len(s.traders)),
		markets:    make(map[string]domain.Market, len(s.markets)),
		positions:  make(map[string]domain.Position, len(s.positions)),
		activities: append([]domain.Activity(nil), s.activities...),
	}
	for k, v := range s.traders {
		c.traders[k] = v
	}
	for k, v := range s.markets {
		c.markets[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	return c
}

// memStore is an in-memory domain.Store. InTx snapshots the state and
// restores it when fn fails.
type memStore struct {
	mu    sync.Mutex
	state memState
	inTx  bool

	failPositionCreate error
	failActivityCreate error
	failMarketCreate   map[string]error
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		traders:   map[string]domain.Trader{},
		markets:   map[string]domain.Market{},
		positions: map[string]domain.Position{},
	}}
}

func (m *memStore) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

func (m *memStore) Traders() domain.TraderStore      { return memTraders{m} }
func (m *memStore) Markets() domain.MarketStore      { return memMarkets{m} }
func (m *memStore) Positions() domain.PositionStore  { return memPositions{m} }
func (m *memStore) Activities() domain.ActivityStore { return memActivities{m} }
func (m *memStore) Ping(context.Context) error       { return nil }

func (m *memStore) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	saved := m.state.clone()
	m.inTx = true
	m.mu.Unlock()

	err := fn(m)

	m.mu.Lock()
	m.inTx = false
	if err != nil {
		m.state = saved
	}
	m.mu.Unlock()
	return err
}

func posKey(traderID int64, marketID, outcome string) string {
	return fmt.Sprintf("%d|%s|%s", traderID, marketID, outcome)
}

type memTraders struct{ m *memStore }

func (s memTraders) GetByAddress(_ context.Context, address string) (domain.Trader, error) {
	t, ok := s.m.state.traders[address]
	if !ok {
		return domain.Trader{}, domain.ErrNotFound
	}
	return t, nil
}

func (s memTraders) Create(_ context.Context, t *domain.Trader) error {
	if _, ok := s.m.state.traders[t.Address]; ok {
		return domain.ErrAlreadyExists
	}
	t.ID = s.m.id()
	s.m.state.traders[t.Address] = *t
	return nil
}

func (s memTraders) Update(_ context.Context, t domain.Trader) error {
	if _, ok := s.m.state.traders[t.Address]; !ok {
		return domain.ErrNotFound
	}
	s.m.state.traders[t.Address] = t
	return nil
}

func (s memTraders) List(context.Context, domain.ListOpts) ([]domain.Trader, error) {
	out := make([]domain.Trader, 0, len(s.m.state.traders))
	for _, t := range s.m.state.traders {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memTraders) Count(context.Context) (int64, error) {
	return int64(len(s.m.state.traders)), nil
}

type memMarkets struct{ m *memStore }

func (s memMarkets) GetByMarketID(_ context.Context, id string) (domain.Market, error) {
	mk, ok := s.m.state.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

func (s memMarkets) GetByConditionID(_ context.Context, id string) (domain.Market, error) {
	var found *domain.Market
	for _, mk := range s.m.state.markets {
		if id != "" && mk.ConditionID == id && (found == nil || mk.ID < found.ID) {
			found = &mk
		}
	}
	if found == nil {
		return domain.Market{}, domain.ErrNotFound
	}
	return *found, nil
}

func (s memMarkets) Exists(_ context.Context, id string) (bool, error) {
	for _, mk := range s.m.state.markets {
		if mk.MarketID == id || mk.ConditionID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s memMarkets) Create(_ context.Context, mk *domain.Market) error {
	if err := s.m.failMarketCreate[mk.MarketID]; err != nil {
		return err
	}
	if _, ok := s.m.state.markets[mk.MarketID]; ok {
		return domain.ErrAlreadyExists
	}
	mk.ID = s.m.id()
	s.m.state.markets[mk.MarketID] = *mk
	return nil
}

func (s memMarkets) Update(_ context.Context, mk domain.Market) error {
	if _, ok := s.m.state.markets[mk.MarketID]; !ok {
		return domain.ErrNotFound
	}
	s.m.state.markets[mk.MarketID] = mk
	return nil
}

func (s memMarkets) Count(context.Context) (int64, error) {
	return int64(len(s.m.state.markets)), nil
}

type memPositions struct{ m *memStore }

func (s memPositions) Get(_ context.Context, traderID int64, marketID, outcome string) (domain.Position, error) {
	p, ok := s.m.state.positions[posKey(traderID, marketID, outcome)]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s memPositions) Create(_ context.Context, p *domain.Position) error {
	if s.m.failPositionCreate != nil {
		return s.m.failPositionCreate
	}
	key := posKey(p.TraderID, p.MarketID, p.Outcome)
	if _, ok := s.m.state.positions[key]; ok {
		return domain.ErrAlreadyExists
	}
	p.ID = s.m.id()
	s.m.state.positions[key] = *p
	return nil
}

func (s memPositions) Update(_ context.Context, p domain.Position) error {
	key := posKey(p.TraderID, p.MarketID, p.Outcome)
	if _, ok := s.m.state.positions[key]; !ok {
		return domain.ErrNotFound
	}
	s.m.state.positions[key] = p
	return nil
}

func (s memPositions) ListByTrader(_ context.Context, traderID int64) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range s.m.state.positions {
		if p.TraderID == traderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memPositions) CountByMarket(_ context.Context, marketID string) (int, int, error) {
	traders := map[int64]struct{}{}
	n := 0
	for _, p := range s.m.state.positions {
		if p.MarketID == marketID {
			n++
			traders[p.TraderID] = struct{}{}
		}
	}
	return n, len(traders), nil
}

func (s memPositions) Count(context.Context) (int64, error) {
	return int64(len(s.m.state.positions)), nil
}

type memActivities struct{ m *memStore }

func (s memActivities) ExistsByHash(_ context.Context, traderID int64, hash string) (bool, error) {
	for _, a := range s.m.state.activities {
		if a.TraderID == traderID && a.TxHash != nil && *a.TxHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s memActivities) Create(_ context.Context, a *domain.Activity) error {
	if s.m.failActivityCreate != nil {
		return s.m.failActivityCreate
	}
	a.ID = s.m.id()
	s.m.state.activities = append(s.m.state.activities, *a)
	return nil
}

func (s memActivities) ListByTrader(_ context.Context, traderID int64, _ domain.ListOpts) ([]domain.Activity, error) {
	var out []domain.Activity
	for _, a := range s.m.state.activities {
		if a.TraderID == traderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s memActivities) Count(context.Context) (int64, error) {
	return int64(len(s.m.state.activities)), nil
}

// fakeGateway is a scripted TraderFetcher and MarketFetcher.
type fakeGateway struct {
	positions    []polymarket.PositionPayload
	positionsErr error

	tradePages [][]polymarket.TradePayload
	tradesErr  error
	tradeCalls []int // offsets requested

	activities    []polymarket.ActivityPayload
	activitiesErr error

	marketPages [][]polymarket.MarketPayload
	marketsErr  error
	market      map[string]polymarket.MarketPayload
	marketErr   map[string]error
	marketCalls []string

	calls []string // upstream endpoints hit, in order
}

func (g *fakeGateway) GetPositions(context.Context, string, float64) ([]polymarket.PositionPayload, error) {
	g.calls = append(g.calls, "positions")
	return g.positions, g.positionsErr
}

func (g *fakeGateway) GetTrades(_ context.Context, _ string, limit, offset int) ([]polymarket.TradePayload, error) {
	g.tradeCalls = append(g.tradeCalls, offset)
	if g.tradesErr != nil {
		return nil, g.tradesErr
	}
	page := offset / limit
	if page >= len(g.tradePages) {
		return nil, nil
	}
	return g.tradePages[page], nil
}

func (g *fakeGateway) GetActivity(context.Context, string, int) ([]polymarket.ActivityPayload, error) {
	return g.activities, g.activitiesErr
}

func (g *fakeGateway) GetMarkets(_ context.Context, limit, offset int, _ *bool) ([]polymarket.MarketPayload, error) {
	g.calls = append(g.calls, "markets")
	if g.marketsErr != nil {
		return nil, g.marketsErr
	}
	page := offset / limit
	if page >= len(g.marketPages) {
		return nil, nil
	}
	return g.marketPages[page], nil
}

func (g *fakeGateway) GetMarket(_ context.Context, id string) (polymarket.MarketPayload, error) {
	g.marketCalls = append(g.marketCalls, id)
	if err := g.marketErr[id]; err != nil {
		return polymarket.MarketPayload{}, err
	}
	p, ok := g.market[id]
	if !ok {
		return polymarket.MarketPayload{}, &polymarket.APIError{StatusCode: 404, Endpoint: "/markets/" + id}
	}
	return p, nil
}

var errBoom = errors.New("boom")

func num(v float64) polymarket.Opt[polymarket.FlexFloat] {
	return polymarket.Some(polymarket.FlexFloat(v))
}

func str(v string) polymarket.Opt[string] { return polymarket.Some(v) }
