package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/polyinsider/internal/domain"
	"github.com/alanyoungcy/polyinsider/internal/platform/polymarket"
)

// SnapshotRecorder captures the raw payloads fetched during a trader run
// and hands them to cold storage once the run has committed.
type SnapshotRecorder struct {
	archiver domain.SnapshotArchiver
	logger   *slog.Logger
}

// NewSnapshotRecorder creates a SnapshotRecorder backed by archiver.
func NewSnapshotRecorder(archiver domain.SnapshotArchiver, logger *slog.Logger) *SnapshotRecorder {
	return &SnapshotRecorder{
		archiver: archiver,
		logger:   logger.With(slog.String("component", "snapshot_recorder")),
	}
}

// Wrap returns a TraderFetcher that appends every decoded payload to snap.
func (r *SnapshotRecorder) Wrap(next TraderFetcher, snap *domain.TraderSnapshot) TraderFetcher {
	return &recordingFetcher{next: next, snap: snap}
}

// Store uploads snap. Failures are logged and never returned.
func (r *SnapshotRecorder) Store(ctx context.Context, snap domain.TraderSnapshot) {
	path, err := r.archiver.ArchiveTrader(ctx, snap)
	if err != nil {
		r.logger.WarnContext(ctx, "snapshot archive failed",
			slog.String("address", snap.Address),
			slog.String("run_id", snap.RunID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.DebugContext(ctx, "snapshot archived",
		slog.String("address", snap.Address),
		slog.String("path", path),
	)
}

type recordingFetcher struct {
	next TraderFetcher
	mu   sync.Mutex
	snap *domain.TraderSnapshot
}

func (f *recordingFetcher) GetPositions(ctx context.Context, user string, sizeThreshold float64) ([]polymarket.PositionPayload, error) {
	items, err := f.next.GetPositions(ctx, user, sizeThreshold)
	f.mu.Lock()
	for _, p := range items {
		f.snap.Positions = append(f.snap.Positions, rawOf(p.Raw))
	}
	f.mu.Unlock()
	return items, err
}

func (f *recordingFetcher) GetTrades(ctx context.Context, user string, limit, offset int) ([]polymarket.TradePayload, error) {
	items, err := f.next.GetTrades(ctx, user, limit, offset)
	f.mu.Lock()
	for _, p := range items {
		f.snap.Trades = append(f.snap.Trades, rawOf(p.Raw))
	}
	f.mu.Unlock()
	return items, err
}

func (f *recordingFetcher) GetActivity(ctx context.Context, user string, limit int) ([]polymarket.ActivityPayload, error) {
	items, err := f.next.GetActivity(ctx, user, limit)
	f.mu.Lock()
	for _, p := range items {
		f.snap.Activities = append(f.snap.Activities, rawOf(p.Raw))
	}
	f.mu.Unlock()
	return items, err
}

func rawOf(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
