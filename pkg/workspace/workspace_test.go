package workspace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peter-fm/snapbase/internal/config"
	"github.com/peter-fm/snapbase/pkg/pathresolver"
	"github.com/peter-fm/snapbase/pkg/storage"
)

// buildBackend's branch selection and CreateSnapshot's workspace-boundary
// guard are pure logic and safe to exercise without a live DuckDB engine.
// The Open/Diff/Query paths require one and are left to manual/integration
// verification, consistent with the rest of this package's test suite.

func TestBuildBackendDefaultsToLocal(t *testing.T) {
	dir := t.TempDir()
	paths, err := pathresolver.New(dir)
	require.NoError(t, err)

	cfg := config.Default()
	backend, err := buildBackend(context.Background(), nil, paths, cfg)
	require.NoError(t, err)

	_, ok := backend.(*storage.LocalBackend)
	require.True(t, ok)
}

func TestBuildBackendRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	paths, err := pathresolver.New(dir)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Storage.Backend = "azure"

	_, err = buildBackend(context.Background(), nil, paths, cfg)
	require.Error(t, err)
}

func TestCreateSnapshotRejectsSourcePathOutsideWorkspace(t *testing.T) {
	dir := t.TempDir()
	paths, err := pathresolver.New(dir)
	require.NoError(t, err)

	w := &Workspace{
		Root:   dir,
		Config: config.Default(),
		Paths:  paths,
	}

	outside := filepath.Join(t.TempDir(), "elsewhere.csv")
	_, err = w.CreateSnapshot(context.Background(), nil, "elsewhere.csv", outside, "v1")
	require.Error(t, err)
}
