package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3blob "github.com/alanyoungcy/polyinsider/internal/blob/s3"
	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/server"
	"github.com/alanyoungcy/polyinsider/internal/server/handler"
	"github.com/alanyoungcy/polyinsider/internal/service"
	"github.com/alanyoungcy/polyinsider/internal/store/sqlite"
)

const addr = "0x56687bf447db6ffa42ffe2204a05edaa20f55839"

func newAPI(t *testing.T, cfg server.Config) (http.Handler, *sqlite.Store) {
	t.Helper()
	return newArchivedAPI(t, cfg, nil, nil)
}

// newArchivedAPI wires the routes with an optional snapshot archive and
// archive health check.
func newArchivedAPI(t *testing.T, cfg server.Config, archive *s3blob.Archiver, health service.HealthChecker) (http.Handler, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.RunMigrations(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(service.NewStatusService(store, health), logger),
		Traders: handler.NewTraderHandler(traderService(store, archive), logger),
		Markets: handler.NewMarketHandler(service.NewMarketService(store.Markets(), nil, logger), logger),
	}
	return server.Routes(cfg, handlers, logger), store
}

func traderService(store *sqlite.Store, archive *s3blob.Archiver) *service.TraderService {
	if archive == nil {
		return service.NewTraderService(store, nil)
	}
	return service.NewTraderService(store, archive)
}

// bucket is an in-memory object store behind the archiver.
type bucket struct {
	objects map[string][]byte
	infos   []domain.BlobInfo
}

func (b *bucket) Put(_ context.Context, path string, data io.Reader, _ string) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.objects[path] = raw
	b.infos = append(b.infos, domain.BlobInfo{Path: path, Size: int64(len(raw)), LastModified: time.Now()})
	return nil
}

func (b *bucket) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return b.Put(ctx, path, data, "")
}

func (b *bucket) Get(_ context.Context, path string) (io.ReadCloser, error) {
	raw, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *bucket) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for _, info := range b.infos {
		if strings.HasPrefix(info.Path, prefix) {
			out = append(out, info)
		}
	}
	return out, nil
}

type healthFunc func(context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	tr := domain.NewTrader(addr, now)
	tr.TotalVolume = 42
	require.NoError(t, store.Traders().Create(ctx, &tr))

	p := domain.Position{TraderID: tr.ID, MarketID: "M1", Outcome: "YES", Size: 10, LastUpdated: now, CreatedAt: now}
	require.NoError(t, store.Positions().Create(ctx, &p))

	hash := "0xfeed"
	a := domain.Activity{
		TraderID:  tr.ID,
		MarketID:  "M1",
		TxHash:    &hash,
		Type:      domain.ActivityTrade,
		Timestamp: 1700000000,
		Metadata:  []byte(`{"type":"TRADE"}`),
		CreatedAt: now,
	}
	require.NoError(t, store.Activities().Create(ctx, &a))

	m := domain.Market{MarketID: "512340", ConditionID: "M1", Question: "Q?", Outcomes: "[]", OutcomePrices: "{}", CreatedAt: now}
	require.NoError(t, store.Markets().Create(ctx, &m))
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthAndStatus(t *testing.T) {
	h, store := newAPI(t, server.Config{})
	seed(t, store)

	rec, body := get(t, h, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["archive"])

	rec, body = get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["traders"])
	assert.Equal(t, 1.0, body["activities"])
}

func TestTraderEndpoints(t *testing.T) {
	h, store := newAPI(t, server.Config{})
	seed(t, store)

	rec, body := get(t, h, "/api/traders")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["traders"], 1)

	rec, body = get(t, h, "/api/traders/0x56687BF447DB6FFA42FFE2204A05EDAA20F55839")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, addr, body["Address"])

	rec, body = get(t, h, "/api/traders/"+addr+"/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["positions"], 1)

	rec, body = get(t, h, "/api/traders/"+addr+"/activities")
	require.Equal(t, http.StatusOK, rec.Code)
	activities := body["activities"].([]any)
	require.Len(t, activities, 1)
	first := activities[0].(map[string]any)
	assert.Equal(t, map[string]any{"type": "TRADE"}, first["Metadata"])

	rec, _ = get(t, h, "/api/traders/"+addr+"/activities?since=1800000000")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, h, "/api/traders/"+addr+"/snapshots")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec, _ = get(t, h, "/api/traders/"+addr+"/snapshots/run-1")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestSnapshotEndpoints(t *testing.T) {
	b := &bucket{objects: map[string][]byte{}}
	archive := s3blob.NewArchiver(b, b, "archive", 0)
	h, store := newArchivedAPI(t, server.Config{}, archive, healthFunc(func(context.Context) error { return nil }))
	seed(t, store)

	_, err := archive.ArchiveTrader(context.Background(), domain.TraderSnapshot{
		RunID:       "01J0RUN",
		Address:     addr,
		CollectedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Positions:   []json.RawMessage{json.RawMessage(`{"size":10}`)},
	})
	require.NoError(t, err)

	rec, body := get(t, h, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["archive"])

	rec, body = get(t, h, "/api/traders/"+addr+"/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["snapshots"], 1)

	rec, body = get(t, h, "/api/traders/"+addr+"/snapshots/01J0RUN")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "01J0RUN", body["run_id"])
	assert.Equal(t, addr, body["address"])
	assert.Len(t, body["positions"], 1)

	rec, _ = get(t, h, "/api/traders/"+addr+"/snapshots/01J0MISSING")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthDegradedWhenArchiveUnreachable(t *testing.T) {
	b := &bucket{objects: map[string][]byte{}}
	archive := s3blob.NewArchiver(b, b, "", 0)
	h, _ := newArchivedAPI(t, server.Config{}, archive, healthFunc(func(context.Context) error {
		return errors.New("no such bucket")
	}))

	rec, body := get(t, h, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unreachable", body["archive"])
}

func TestTraderLookupErrors(t *testing.T) {
	h, _ := newAPI(t, server.Config{})

	rec, body := get(t, h, "/api/traders/not-an-address")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid address", body["error"])

	rec, body = get(t, h, "/api/traders/"+addr)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "trader not found", body["error"])
}

func TestMarketEndpoint(t *testing.T) {
	h, store := newAPI(t, server.Config{})
	seed(t, store)

	rec, body := get(t, h, "/api/markets/512340")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Q?", body["Question"])

	rec, body = get(t, h, "/api/markets/M1")
	require.Equal(t, http.StatusOK, rec.Code, "condition id resolves without a cache")
	assert.Equal(t, "512340", body["MarketID"])

	rec, _ = get(t, h, "/api/markets/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyProtectsAllButHealth(t *testing.T) {
	h, _ := newAPI(t, server.Config{APIKey: "k"})

	rec, _ := get(t, h, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, h, "/api/traders")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
