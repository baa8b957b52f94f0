package domain

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// TraderSnapshot is the raw upstream data fetched for one trader in one run.
type TraderSnapshot struct {
	RunID       string            `json:"run_id"`
	Address     string            `json:"address"`
	CollectedAt time.Time         `json:"collected_at"`
	Positions   []json.RawMessage `json:"positions"`
	Trades      []json.RawMessage `json:"trades"`
	Activities  []json.RawMessage `json:"activities"`
}

// SnapshotArchiver stores raw trader snapshots in cold storage.
type SnapshotArchiver interface {
	ArchiveTrader(ctx context.Context, snap TraderSnapshot) (string, error)
}
