// Package workspace wires together every core component of spec §2 (C1-C7)
// around one workspace root: it owns the storage backend and path resolver,
// builds the snapshot writer/resolver on top of them, and exposes the
// three top-level operations a caller (the out-of-scope CLI, or a language
// binding) drives — create a snapshot, diff two snapshots, and query a
// source's snapshot history.
package workspace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/peter-fm/snapbase/internal/config"
	"github.com/peter-fm/snapbase/pkg/diff"
	"github.com/peter-fm/snapbase/pkg/engine"
	"github.com/peter-fm/snapbase/pkg/naming"
	"github.com/peter-fm/snapbase/pkg/pathresolver"
	"github.com/peter-fm/snapbase/pkg/query"
	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/snapshot"
	"github.com/peter-fm/snapbase/pkg/snapstore"
	"github.com/peter-fm/snapbase/pkg/storage"
)

// Workspace is a directory tree rooted at Root containing a configuration
// document and a storage subtree, owning a single storage backend instance
// (spec §3 "Workspace").
type Workspace struct {
	Root     string
	Config   *config.Config
	Paths    *pathresolver.Resolver
	Backend  storage.Backend
	Writer   *snapstore.Writer
	Resolver *snapstore.Resolver

	log *slog.Logger
}

// Open loads (or defaults) root's configuration document and builds the
// storage backend it names. ctx is used only for the S3 backend's startup
// connectivity check (spec §4.1).
func Open(ctx context.Context, root string, log *slog.Logger) (*Workspace, error) {
	paths, err := pathresolver.New(root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(paths.WorkspaceRoot())
	if err != nil {
		return nil, err
	}

	backend, err := buildBackend(ctx, log, paths, cfg)
	if err != nil {
		return nil, err
	}

	resolver := snapstore.NewResolver(backend, paths)
	writer := snapstore.NewWriter(backend, paths, resolver, log)

	return &Workspace{
		Root:     paths.WorkspaceRoot(),
		Config:   cfg,
		Paths:    paths,
		Backend:  backend,
		Writer:   writer,
		Resolver: resolver,
		log:      log,
	}, nil
}

// buildBackend selects and constructs the storage backend named by cfg
// (spec §6's storage.backend key).
func buildBackend(ctx context.Context, log *slog.Logger, paths *pathresolver.Resolver, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		base := cfg.Storage.Local.Path
		if base == "" {
			base = ".snapbase"
		}
		return storage.NewLocalBackend(paths.ResolveWorkspacePath(base)), nil
	case "s3":
		return storage.NewS3Backend(ctx, log, cfg.ToStorageConfig())
	default:
		return nil, snaperr.Config(paths.WorkspaceConfigPath(), fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend))
	}
}

// CreateSnapshot validates that sourcePath resolves inside the workspace
// root (spec §4.4's source validation), generates a name from the
// workspace's configured pattern when name is empty, and delegates to the
// snapshot writer (C4).
func (w *Workspace) CreateSnapshot(ctx context.Context, eng *engine.Engine, source, sourcePath, name string) (*snapshot.Metadata, error) {
	if !w.Paths.IsWithinWorkspace(sourcePath) {
		return nil, snaperr.InvalidInput(sourcePath, "source path is outside the workspace root")
	}

	if name == "" {
		existing, err := w.Resolver.ListSnapshotNames(ctx, source)
		if err != nil {
			return nil, err
		}
		namer := naming.New(w.Config.Snapshot.DefaultNamePattern)
		name = namer.Generate(sourcePath, existing)
	}

	return w.Writer.CreateSnapshot(ctx, eng, snapstore.CreateParams{
		Source:     source,
		SourcePath: sourcePath,
		Name:       name,
	})
}

// Diff resolves baselineRef and currentRef against source and runs the
// three-phase change-detection algorithm between them (spec §4.6, C6).
func (w *Workspace) Diff(ctx context.Context, source, baselineRef, currentRef string) (*diff.Result, error) {
	baseline, err := w.Resolver.ResolveByNameForSource(ctx, source, baselineRef)
	if err != nil {
		return nil, err
	}
	current, err := w.Resolver.ResolveByNameForSource(ctx, source, currentRef)
	if err != nil {
		return nil, err
	}

	baselineRows, err := w.loadSnapshotRows(ctx, baseline)
	if err != nil {
		return nil, err
	}
	currentRows, err := w.loadSnapshotRows(ctx, current)
	if err != nil {
		return nil, err
	}

	result := diff.Detect(baseline.Metadata.Columns, current.Metadata.Columns, baselineRows, currentRows)
	return &result, nil
}

// loadSnapshotRows loads a resolved snapshot's data.parquet through a
// scratch engine instance and trims the appended flag columns before the
// rows are used for hashing or similarity comparison (spec §4.6's
// metadata-column filtering).
func (w *Workspace) loadSnapshotRows(ctx context.Context, resolved *snapstore.Resolved) ([][]string, error) {
	eng, err := engine.Open(ctx, ":memory:", w.log)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	dataPath := w.Backend.GetDuckDBPath(resolved.DataPath)
	if _, err := eng.LoadSource(ctx, dataPath); err != nil {
		return nil, err
	}
	rows, err := eng.ExtractAllData(ctx)
	if err != nil {
		return nil, err
	}
	return diff.TrimFlagColumns(rows, len(resolved.Metadata.Columns)), nil
}

// Query builds a query.Surface (C7) over eng and this workspace's backend.
func (w *Workspace) Query(eng *engine.Engine) *query.Surface {
	return query.New(eng, w.Backend)
}
