package pathresolver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolverCreation(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)
	require.Equal(t, dir, r.WorkspaceRoot())
	require.Equal(t, filepath.Join(dir, ".snapbase"), r.StorageBase())
}

func TestResolveWorkspacePath(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "test/file.csv"), r.ResolveWorkspacePath("test/file.csv"))
}

func TestHivePath(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)
	got := r.HivePath("test.csv", "v1", "20240101T120000.000000Z")
	require.Equal(t, "sources/test.csv/snapshot_name=v1/snapshot_timestamp=20240101T120000.000000Z", got)
}

func TestIsWithinWorkspace(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)

	require.True(t, r.IsWithinWorkspace("data/test.csv"))
	require.True(t, r.IsWithinWorkspace(filepath.Join(dir, "data/test.csv")))
	require.False(t, r.IsWithinWorkspace("/tmp/external.csv"))
}

func TestMakeRelativeToWorkspace(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)

	rel, ok := r.MakeRelativeToWorkspace(filepath.Join(dir, "data/test.csv"))
	require.True(t, ok)
	require.Equal(t, filepath.Join("data", "test.csv"), rel)

	_, ok = r.MakeRelativeToWorkspace("/tmp/external.csv")
	require.False(t, ok)
}
