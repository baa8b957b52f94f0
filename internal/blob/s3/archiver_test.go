package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

type memBlob struct {
	objects   map[string][]byte
	infos     []domain.BlobInfo
	multipart []string
	putErr    error
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, _ := io.ReadAll(data)
	m.objects[path] = b
	return nil
}

func (m *memBlob) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	b, _ := io.ReadAll(data)
	m.objects[path] = b
	m.multipart = append(m.multipart, path)
	return nil
}

func (m *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlob) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for _, info := range m.infos {
		if strings.HasPrefix(info.Path, prefix) {
			out = append(out, info)
		}
	}
	return out, nil
}

func snapshot() domain.TraderSnapshot {
	return domain.TraderSnapshot{
		RunID:       "run-1",
		Address:     "0xabc",
		CollectedAt: time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC),
		Positions:   []json.RawMessage{json.RawMessage(`{"size":10}`)},
	}
}

func TestArchiveTraderPath(t *testing.T) {
	blob := &memBlob{objects: map[string][]byte{}}
	a := NewArchiver(blob, blob, "/archive/", 0)

	key, err := a.ArchiveTrader(context.Background(), snapshot())
	require.NoError(t, err)
	assert.Equal(t, "archive/traders/0xabc/2024-06-01/run-1.json", key)
	assert.Empty(t, blob.multipart)

	got, err := a.LoadSnapshot(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Positions, 1)
	assert.JSONEq(t, `{"size":10}`, string(got.Positions[0]))
}

func TestArchiveTraderLargeSnapshotUsesMultipart(t *testing.T) {
	blob := &memBlob{objects: map[string][]byte{}}
	a := NewArchiver(blob, nil, "", 16)

	key, err := a.ArchiveTrader(context.Background(), snapshot())
	require.NoError(t, err)
	assert.Equal(t, "traders/0xabc/2024-06-01/run-1.json", key)
	assert.Equal(t, []string{key}, blob.multipart)

	_, err = a.ListSnapshots(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestArchiveTraderWrapsUploadError(t *testing.T) {
	boom := errors.New("boom")
	a := NewArchiver(&memBlob{objects: map[string][]byte{}, putErr: boom}, nil, "p", 0)

	_, err := a.ArchiveTrader(context.Background(), snapshot())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "s3blob: archive snapshot run-1")
}

func TestListSnapshotsNewestFirst(t *testing.T) {
	now := time.Now()
	blob := &memBlob{infos: []domain.BlobInfo{
		{Path: "p/traders/0xabc/2024-06-01/old.json", LastModified: now.Add(-time.Hour)},
		{Path: "p/traders/0xabc/2024-06-02/new.json", LastModified: now},
		{Path: "p/traders/0xdef/2024-06-02/other.json", LastModified: now},
	}}
	a := NewArchiver(blob, blob, "p", 0)

	infos, err := a.ListSnapshots(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "p/traders/0xabc/2024-06-02/new.json", infos[0].Path)
}

func TestLoadSnapshotMissing(t *testing.T) {
	blob := &memBlob{objects: map[string][]byte{}}
	_, err := NewArchiver(blob, blob, "p", 0).LoadSnapshot(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindSnapshotByRunID(t *testing.T) {
	blob := &memBlob{objects: map[string][]byte{}}
	a := NewArchiver(blob, blob, "p", 0)
	ctx := context.Background()

	key, err := a.ArchiveTrader(ctx, snapshot())
	require.NoError(t, err)
	blob.infos = []domain.BlobInfo{
		{Path: "p/traders/0xabc/2024-05-31/run-0.json"},
		{Path: key},
	}

	got, err := a.FindSnapshot(ctx, "0xabc", "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "0xabc", got.Address)

	_, err = a.FindSnapshot(ctx, "0xabc", "run-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = a.FindSnapshot(ctx, "0xabc", "../run-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = NewArchiver(blob, nil, "p", 0).FindSnapshot(ctx, "0xabc", "run-1")
	assert.Error(t, err)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "https://minio.local", normaliseEndpoint("minio.local", true))
	assert.Equal(t, "http://minio.local", normaliseEndpoint("minio.local", false))
}
