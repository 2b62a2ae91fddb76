package snapstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peter-fm/snapbase/pkg/pathresolver"
	"github.com/peter-fm/snapbase/pkg/snapshot"
	"github.com/peter-fm/snapbase/pkg/storage"
)

func newTestResolver(t *testing.T) (*Resolver, storage.Backend) {
	t.Helper()
	root := t.TempDir()
	paths, err := pathresolver.New(root)
	require.NoError(t, err)
	backend := storage.NewLocalBackend(paths.StorageBase())
	return NewResolver(backend, paths), backend
}

func writeSnapshot(t *testing.T, backend storage.Backend, paths *pathresolver.Resolver, source, name string, created time.Time) {
	t.Helper()
	ctx := context.Background()
	md := snapshot.Metadata{Name: name, Source: source, Created: created, RowCount: 1}
	raw, err := json.Marshal(md)
	require.NoError(t, err)
	dir := paths.HivePath(source, name, snapshot.FormatTimestamp(created))
	require.NoError(t, backend.WriteFile(ctx, dir+"/data.parquet", []byte("x")))
	require.NoError(t, backend.WriteFile(ctx, dir+"/metadata.json", raw))
}

func TestResolveByNameForSourceFindsSnapshot(t *testing.T) {
	root := t.TempDir()
	p, err := pathresolver.New(root)
	require.NoError(t, err)
	b := storage.NewLocalBackend(p.StorageBase())
	r := NewResolver(b, p)

	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeSnapshot(t, b, p, "orders.csv", "v1", created)

	resolved, err := r.ResolveByNameForSource(context.Background(), "orders.csv", "v1")
	require.NoError(t, err)
	require.Equal(t, "v1", resolved.Name)
	require.NotNil(t, resolved.Metadata)
}

func TestResolveByNameForSourceNotFound(t *testing.T) {
	resolver, _ := newTestResolver(t)
	_, err := resolver.ResolveByNameForSource(context.Background(), "orders.csv", "missing")
	require.Error(t, err)
}

func TestLatestSnapshotNamePicksMostRecent(t *testing.T) {
	root := t.TempDir()
	p, err := pathresolver.New(root)
	require.NoError(t, err)
	b := storage.NewLocalBackend(p.StorageBase())
	r := NewResolver(b, p)

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	writeSnapshot(t, b, p, "orders.csv", "v1", older)
	writeSnapshot(t, b, p, "orders.csv", "v2", newer)

	name, ok, err := r.LatestSnapshotName(context.Background(), "orders.csv")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", name)
}

func TestLatestSnapshotNameNoSnapshots(t *testing.T) {
	resolver, _ := newTestResolver(t)
	_, ok, err := resolver.LatestSnapshotName(context.Background(), "orders.csv")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListSnapshotNamesOrderedOldestFirst(t *testing.T) {
	root := t.TempDir()
	p, err := pathresolver.New(root)
	require.NoError(t, err)
	b := storage.NewLocalBackend(p.StorageBase())
	r := NewResolver(b, p)

	writeSnapshot(t, b, p, "orders.csv", "v2", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	writeSnapshot(t, b, p, "orders.csv", "v1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	names, err := r.ListSnapshotNames(context.Background(), "orders.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2"}, names)
}

func TestResolveByDateForSourcePicksLatestAtOrBeforeTarget(t *testing.T) {
	root := t.TempDir()
	p, err := pathresolver.New(root)
	require.NoError(t, err)
	b := storage.NewLocalBackend(p.StorageBase())
	r := NewResolver(b, p)

	writeSnapshot(t, b, p, "orders.csv", "jan", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	writeSnapshot(t, b, p, "orders.csv", "feb", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))

	resolved, err := r.ResolveByDateForSource(context.Background(), "orders.csv", "2024-02-01")
	require.NoError(t, err)
	require.Equal(t, "jan", resolved.Name)
}

func TestParseDateStringAcceptsThreeFormats(t *testing.T) {
	_, err := parseDateString("2024-01-01")
	require.NoError(t, err)
	_, err = parseDateString("2024-01-01 12:30:00")
	require.NoError(t, err)
	_, err = parseDateString("2024-01-01T12:30:00Z")
	require.NoError(t, err)
	_, err = parseDateString("not-a-date")
	require.Error(t, err)
}

func TestRefFromStringClassifiesPathVsName(t *testing.T) {
	require.Equal(t, Ref{Name: "v1"}, RefFromString("v1"))
	require.Equal(t, Ref{Path: "a/b"}, RefFromString("a/b"))
}
