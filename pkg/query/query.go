// Package query implements the Hive-partitioned query surface of spec
// §4.7 (C7): registering a view over all snapshots of one source, or over
// every source in a workspace, so ordinary SQL can filter on
// snapshot_name/snapshot_timestamp like any other column. Callers get rows
// back either parsed from a CSV round-trip or as a single concatenated
// columnar batch.
package query

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/peter-fm/snapbase/pkg/engine"
	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/storage"
)

// Surface ties a columnar engine to a storage backend for Hive-view
// registration and SQL execution over snapshot history.
type Surface struct {
	eng     *engine.Engine
	backend storage.Backend
}

func New(eng *engine.Engine, backend storage.Backend) *Surface {
	return &Surface{eng: eng, backend: backend}
}

// RegisterSource registers viewName (default "data") as the Hive-partitioned
// view over every snapshot of source. Callers then filter by
// snapshot_name/snapshot_timestamp as ordinary SQL predicates.
func (s *Surface) RegisterSource(ctx context.Context, source, viewName string) error {
	if viewName == "" {
		viewName = "data"
	}
	return s.eng.RegisterHiveView(ctx, s.backend, source, viewName)
}

// LatestNameFunc resolves the latest snapshot name for source. Callers
// inject pkg/snapstore's Resolver.LatestSnapshotName here so this package
// has no dependency on the snapshot writer/resolver layer.
type LatestNameFunc func(ctx context.Context, source string) (name string, ok bool, err error)

// RegisterWorkspace registers one view per source that has at least one
// snapshot, named by engine.SanitizeViewName(source). pattern selects which
// snapshots of each source the view covers: "*" for every snapshot,
// "latest" for only the most recently created one (resolved via latest),
// or any other string treated as a snapshot_name glob. It returns the names
// of the views it registered.
func (s *Surface) RegisterWorkspace(ctx context.Context, pattern string, latest LatestNameFunc) ([]string, error) {
	bySource, err := s.backend.ListSnapshotsForAllSources(ctx)
	if err != nil {
		return nil, err
	}

	var registered []string
	for source, names := range bySource {
		if len(names) == 0 {
			continue
		}

		effectivePattern := pattern
		if pattern == "latest" {
			if latest == nil {
				return nil, snaperr.InvalidInput("latest", "no latest-name resolver supplied")
			}
			name, ok, err := latest(ctx, source)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			effectivePattern = name
		}

		viewName := engine.SanitizeViewName(source)
		glob := engine.BuildSnapshotPathPattern(s.backend, source, effectivePattern)
		if err := s.eng.RegisterGlobView(ctx, viewName, glob); err != nil {
			return nil, err
		}
		registered = append(registered, viewName)
	}
	return registered, nil
}

// Row is a single result row, column name to canonical string value.
type Row map[string]string

// QueryRows executes sqlText and returns its result set parsed via the
// COPY...TO CSV round-trip (spec §4.3's "Query to rows"), avoiding
// prepared-statement pitfalls on result sets with heterogeneous column
// types.
func (s *Surface) QueryRows(ctx context.Context, sqlText string) ([]Row, error) {
	tmp, err := os.CreateTemp("", "snapbase-query-*.csv")
	if err != nil {
		return nil, snaperr.Storage("local", "query_rows", "", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := s.eng.QueryCSV(ctx, sqlText, tmpPath); err != nil {
		return nil, err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, snaperr.Storage("local", "query_rows", tmpPath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "query_rows", err.Error()))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, snaperr.Engine(fmt.Errorf("%s: %s", "query_rows", err.Error()))
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ColumnBatch is a single concatenated columnar result: the workspace's
// stand-in for the original's Arrow RecordBatch zero-copy handoff. No
// Arrow library appears anywhere in the example pack, so this is a plain
// column-major struct instead (see DESIGN.md).
type ColumnBatch struct {
	Columns []string
	Data    [][]string // Data[columnIndex][rowIndex]
}

// QueryBatch executes sqlText and returns its result set as one
// ColumnBatch, for callers that want a single concatenated result rather
// than a row slice (spec §4.3's "Query to Arrow").
func (s *Surface) QueryBatch(ctx context.Context, sqlText string) (*ColumnBatch, error) {
	cols, rows, err := s.eng.QueryToStrings(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	batch := &ColumnBatch{Columns: cols, Data: make([][]string, len(cols))}
	for _, row := range rows {
		for i, v := range row {
			if i < len(batch.Data) {
				batch.Data[i] = append(batch.Data[i], v)
			}
		}
	}
	return batch, nil
}
