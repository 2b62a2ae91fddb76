package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/snapshot"
)

func TestLocalBackendWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend(t.TempDir())

	require.NoError(t, b.WriteFile(ctx, "sources/a.csv/snapshot_name=v1/snapshot_timestamp=ts/data.parquet", []byte("hello")))

	data, err := b.ReadFile(ctx, "sources/a.csv/snapshot_name=v1/snapshot_timestamp=ts/data.parquet")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestLocalBackendReadMissingFileIsNotFound(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	_, err := b.ReadFile(context.Background(), "missing.txt")
	var nf *snaperr.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestLocalBackendFileExists(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend(t.TempDir())

	exists, err := b.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, b.WriteFile(ctx, "a.txt", []byte("x")))
	exists, err = b.FileExists(ctx, "a.txt")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestLocalBackendDeleteFileIsIdempotent(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	require.NoError(t, b.DeleteFile(context.Background(), "does-not-exist.txt"))
}

func TestLocalBackendListDirectories(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend(t.TempDir())

	require.NoError(t, b.WriteFile(ctx, "sources/a.csv/snapshot_name=v1/snapshot_timestamp=t1/data.parquet", []byte("x")))
	require.NoError(t, b.WriteFile(ctx, "sources/a.csv/snapshot_name=v2/snapshot_timestamp=t1/data.parquet", []byte("x")))

	dirs, err := b.ListDirectories(ctx, "sources/a.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"snapshot_name=v1", "snapshot_name=v2"}, dirs)
}

func TestLocalBackendListSnapshotsSkipsIncomplete(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend(t.TempDir())

	md := snapshot.Metadata{Name: "v1", Source: "a.csv", Created: time.Now().UTC(), RowCount: 3}
	raw, err := json.Marshal(md)
	require.NoError(t, err)

	dir := "sources/a.csv/snapshot_name=v1/snapshot_timestamp=t1"
	require.NoError(t, b.WriteFile(ctx, dir+"/metadata.json", raw))
	require.NoError(t, b.WriteFile(ctx, dir+"/data.parquet", []byte("x")))

	// A second, partial snapshot: metadata.json only, no data.parquet (I2).
	partialDir := "sources/a.csv/snapshot_name=v2/snapshot_timestamp=t1"
	require.NoError(t, b.WriteFile(ctx, partialDir+"/metadata.json", raw))

	snaps, err := b.ListSnapshots(ctx, "a.csv")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, "v1", snaps[0].Name)
}

func TestLocalBackendListSnapshotsForAllSources(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend(t.TempDir())

	require.NoError(t, b.WriteFile(ctx, "sources/a.csv/snapshot_name=v1/snapshot_timestamp=t1/data.parquet", []byte("x")))
	require.NoError(t, b.WriteFile(ctx, "sources/b.csv/snapshot_name=v1/snapshot_timestamp=t1/data.parquet", []byte("x")))

	m, err := b.ListSnapshotsForAllSources(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.csv", "b.csv"}, keysOf(m))
	require.Equal(t, []string{"v1"}, m["a.csv"])
}

func TestLocalBackendListSnapshotsForAllSourcesWithNestedSourcePaths(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend(t.TempDir())

	require.NoError(t, b.WriteFile(ctx, "sources/reports/orders.csv/snapshot_name=v1/snapshot_timestamp=t1/data.parquet", []byte("x")))
	require.NoError(t, b.WriteFile(ctx, "sources/a.csv/snapshot_name=v1/snapshot_timestamp=t1/data.parquet", []byte("x")))

	m, err := b.ListSnapshotsForAllSources(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"reports/orders.csv", "a.csv"}, keysOf(m))
	require.Equal(t, []string{"v1"}, m["reports/orders.csv"])
}

func TestLocalBackendListAllSnapshotsWithNestedSourcePaths(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend(t.TempDir())

	md := snapshot.Metadata{Name: "v1", Source: "reports/orders.csv", Created: time.Now().UTC(), RowCount: 1}
	raw, err := json.Marshal(md)
	require.NoError(t, err)
	dir := "sources/reports/orders.csv/snapshot_name=v1/snapshot_timestamp=t1"
	require.NoError(t, b.WriteFile(ctx, dir+"/metadata.json", raw))
	require.NoError(t, b.WriteFile(ctx, dir+"/data.parquet", raw))

	all, err := b.ListAllSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "reports/orders.csv", all[0].Source)
}

func keysOf(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
