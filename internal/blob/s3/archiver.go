package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

const (
	snapshotContentType = "application/json"

	// DefaultMultipartThreshold is the encoded size above which snapshots
	// go through the multipart uploader.
	DefaultMultipartThreshold = minPartSize
)

// Archiver implements domain.SnapshotArchiver. Snapshots land at
//
//	{prefix}/traders/{address}/{yyyy-mm-dd}/{run_id}.json
type Archiver struct {
	writer    domain.BlobWriter
	reader    domain.BlobReader
	prefix    string
	threshold int64
}

// NewArchiver creates an Archiver. reader may be nil when snapshots are
// only written. A non-positive threshold uses DefaultMultipartThreshold.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, prefix string, threshold int64) *Archiver {
	if threshold <= 0 {
		threshold = DefaultMultipartThreshold
	}
	return &Archiver{
		writer:    writer,
		reader:    reader,
		prefix:    strings.Trim(prefix, "/"),
		threshold: threshold,
	}
}

// ArchiveTrader uploads snap and returns its object path.
func (a *Archiver) ArchiveTrader(ctx context.Context, snap domain.TraderSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal snapshot %s: %w", snap.RunID, err)
	}

	key := a.snapshotPath(snap)
	if int64(len(data)) > a.threshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(data), a.threshold)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(data), snapshotContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive snapshot %s: %w", snap.RunID, err)
	}
	return key, nil
}

// ListSnapshots returns the archived snapshots of address, newest first.
func (a *Archiver) ListSnapshots(ctx context.Context, address string) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, fmt.Errorf("s3blob: list snapshots: archive is write-only")
	}
	infos, err := a.reader.List(ctx, a.traderPrefix(address)+"/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: list snapshots %s: %w", address, err)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].LastModified.After(infos[j].LastModified)
	})
	return infos, nil
}

// LoadSnapshot reads and decodes the snapshot stored at key.
func (a *Archiver) LoadSnapshot(ctx context.Context, key string) (domain.TraderSnapshot, error) {
	if a.reader == nil {
		return domain.TraderSnapshot{}, fmt.Errorf("s3blob: load snapshot: archive is write-only")
	}
	body, err := a.reader.Get(ctx, key)
	if err != nil {
		return domain.TraderSnapshot{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return domain.TraderSnapshot{}, fmt.Errorf("s3blob: read snapshot %s: %w", key, err)
	}
	var snap domain.TraderSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.TraderSnapshot{}, fmt.Errorf("s3blob: decode snapshot %s: %w", key, err)
	}
	return snap, nil
}

// FindSnapshot loads the snapshot that run runID archived for address.
// The date segment of the path is not known up front, so the trader's
// snapshots are listed and matched on file name.
func (a *Archiver) FindSnapshot(ctx context.Context, address, runID string) (domain.TraderSnapshot, error) {
	if runID == "" || strings.ContainsAny(runID, "/\\") {
		return domain.TraderSnapshot{}, fmt.Errorf("s3blob: find snapshot %q: %w", runID, domain.ErrNotFound)
	}
	infos, err := a.ListSnapshots(ctx, address)
	if err != nil {
		return domain.TraderSnapshot{}, err
	}
	want := runID + ".json"
	for _, info := range infos {
		if path.Base(info.Path) == want {
			return a.LoadSnapshot(ctx, info.Path)
		}
	}
	return domain.TraderSnapshot{}, fmt.Errorf("s3blob: find snapshot %s for %s: %w", runID, address, domain.ErrNotFound)
}

func (a *Archiver) traderPrefix(address string) string {
	return path.Join(a.prefix, "traders", address)
}

func (a *Archiver) snapshotPath(snap domain.TraderSnapshot) string {
	return path.Join(
		a.traderPrefix(snap.Address),
		snap.CollectedAt.UTC().Format("2006-01-02"),
		snap.RunID+".json",
	)
}

var _ domain.SnapshotArchiver = (*Archiver)(nil)
