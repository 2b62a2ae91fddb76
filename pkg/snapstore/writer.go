package snapstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/peter-fm/snapbase/pkg/diff"
	"github.com/peter-fm/snapbase/pkg/engine"
	"github.com/peter-fm/snapbase/pkg/pathresolver"
	"github.com/peter-fm/snapbase/pkg/rowvalue"
	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/snapshot"
	"github.com/peter-fm/snapbase/pkg/storage"
)

// Writer creates new snapshots: it loads a source through the columnar
// engine, diffs it against the source's prior snapshot (if any), and
// persists data.parquet before metadata.json, per invariant I2.
type Writer struct {
	backend  storage.Backend
	paths    *pathresolver.Resolver
	resolver *Resolver
	log      *slog.Logger
}

func NewWriter(backend storage.Backend, paths *pathresolver.Resolver, resolver *Resolver, log *slog.Logger) *Writer {
	return &Writer{backend: backend, paths: paths, resolver: resolver, log: log}
}

// CreateParams bundles the inputs to CreateSnapshot. Now defaults to
// time.Now when nil; tests override it for deterministic timestamps.
type CreateParams struct {
	Source     string // Hive partition key, e.g. "orders.csv"
	SourcePath string // path or query file passed to the engine
	Name       string // already-resolved snapshot name (pkg/naming)
	Now        func() time.Time
}

func (w *Writer) CreateSnapshot(ctx context.Context, eng *engine.Engine, p CreateParams) (*snapshot.Metadata, error) {
	existing, err := w.resolver.ListSnapshotNames(ctx, p.Source)
	if err != nil {
		return nil, err
	}
	for _, n := range existing {
		if n == p.Name {
			return nil, snaperr.AlreadyExists(p.Source, p.Name)
		}
	}

	info, err := eng.LoadSource(ctx, p.SourcePath)
	if err != nil {
		return nil, err
	}

	currentData, err := eng.ExtractAllData(ctx)
	if err != nil {
		return nil, err
	}

	prior, hasPrior, err := w.priorSnapshot(ctx, p.Source)
	if err != nil {
		return nil, err
	}

	var added, modified []bool
	if hasPrior {
		baselineRows := diff.TrimFlagColumns(prior.data, len(prior.Metadata.Columns))
		result := diff.Detect(prior.Metadata.Columns, info.Columns, baselineRows, currentData)
		added, modified = flagsFromDiff(result.Rows, len(currentData))
	} else {
		added = allTrue(len(currentData))
		modified = make([]bool, len(currentData))
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}
	created := now().UTC()
	hiveDir := w.paths.HivePath(p.Source, p.Name, snapshot.FormatTimestamp(created))
	dataRelPath := hiveDir + "/data.parquet"
	metaRelPath := hiveDir + "/metadata.json"

	if err := w.backend.EnsureDirectory(ctx, hiveDir); err != nil {
		return nil, err
	}

	dataAbsPath := w.backend.GetDuckDBPath(dataRelPath)
	if err := eng.ExportRowsToParquetWithFlags(ctx, dataAbsPath, info.Columns, currentData, added, modified); err != nil {
		return nil, err
	}

	var parentName string
	var sequence int64
	if hasPrior {
		parentName = prior.Metadata.Name
		sequence = prior.Metadata.SequenceNumber + 1
	}

	md := snapshot.Metadata{
		FormatVersion:     snapshot.CurrentFormatVersion,
		Name:              p.Name,
		Created:           created,
		Source:            p.Source,
		SourcePath:        p.SourcePath,
		SourceFingerprint: rowvalue.RowHash([]string{p.Source, p.SourcePath}),
		SourceHash:        schemaHash(info.Columns),
		RowCount:          info.RowCount,
		ColumnCount:       len(info.Columns),
		Columns:           info.Columns,
		ParentSnapshot:    parentName,
		SequenceNumber:    sequence,
	}

	raw, err := json.Marshal(md)
	if err != nil {
		return nil, snaperr.Storage("local", "marshal_metadata", metaRelPath, err)
	}
	// data.parquet already landed above; metadata.json is written last so a
	// reader never observes a metadata-only (I2-incomplete) directory.
	if err := w.backend.WriteFile(ctx, metaRelPath, raw); err != nil {
		return nil, err
	}

	return &md, nil
}

// priorSnapshotData bundles a resolved snapshot with its extracted rows, so
// CreateSnapshot can diff against it without re-querying the backend.
type priorSnapshotData struct {
	Metadata *snapshot.Metadata
	data     [][]string
}

func (w *Writer) priorSnapshot(ctx context.Context, source string) (*priorSnapshotData, bool, error) {
	name, ok, err := w.resolver.LatestSnapshotName(ctx, source)
	if err != nil || !ok {
		return nil, false, err
	}
	resolved, err := w.resolver.ResolveByNameForSource(ctx, source, name)
	if err != nil {
		return nil, false, err
	}

	baselineEngine, err := engine.Open(ctx, ":memory:", w.log)
	if err != nil {
		return nil, false, err
	}
	defer baselineEngine.Close()

	dataPath := w.backend.GetDuckDBPath(resolved.DataPath)
	if _, err := baselineEngine.LoadSource(ctx, dataPath); err != nil {
		return nil, false, err
	}
	rows, err := baselineEngine.ExtractAllData(ctx)
	if err != nil {
		return nil, false, err
	}

	return &priorSnapshotData{Metadata: resolved.Metadata, data: rows}, true, nil
}

func flagsFromDiff(rows diff.RowChanges, total int) (added, modified []bool) {
	added = make([]bool, total)
	modified = make([]bool, total)
	for _, a := range rows.Added {
		if a.RowIndex < total {
			added[a.RowIndex] = true
		}
	}
	for _, m := range rows.Modified {
		if m.RowIndex < total {
			modified[m.RowIndex] = true
		}
	}
	return added, modified
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

func schemaHash(cols []snapshot.ColumnInfo) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name + ":" + c.DataType
	}
	return rowvalue.RowHash(names)
}
