package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/peter-fm/snapbase/pkg/snaperr"
)

// LoadRowsByIndex returns the canonical-string rendering of exactly the rows
// at indices, keyed by index, without materializing the whole dataset. It
// mirrors the original's transient-indexed-view strategy: a ROW_NUMBER()
// view is created once, queried for just the requested indices, then
// dropped (spec §4.3, "Load specific rows by index").
func (e *Engine) LoadRowsByIndex(ctx context.Context, indices []int) (map[int][]string, error) {
	if len(indices) == 0 {
		return map[int][]string{}, nil
	}

	fromExpr := "data_view"
	if e.streamingQuery != "" {
		fromExpr = fmt.Sprintf("(%s)", e.streamingQuery)
	}

	if err := e.exec(ctx, fmt.Sprintf(
		"CREATE OR REPLACE TEMP TABLE tmp_row_index AS SELECT ROW_NUMBER() OVER () - 1 AS row_num, * FROM %s", fromExpr,
	)); err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "load_rows_by_index", err.Error()))
	}
	defer func() { _ = e.exec(context.Background(), "DROP TABLE IF EXISTS tmp_row_index") }()

	placeholders := make([]string, len(indices))
	args := make([]any, len(indices))
	for i, idx := range indices {
		placeholders[i] = "?"
		args[i] = idx
	}
	query := fmt.Sprintf("SELECT * FROM tmp_row_index WHERE row_num IN (%s)", strings.Join(placeholders, ", "))

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "load_rows_by_index", err.Error()))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "load_rows_by_index", err.Error()))
	}
	// row_num is column 0; the original columns follow.
	valueColumnCount := len(cols) - 1

	result := make(map[int][]string, len(indices))
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, snaperr.Engine(fmt.Errorf("%s: %s", "load_rows_by_index", err.Error()))
		}
		rowNum := int(toInt64(values[0]))
		rendered := make([]string, valueColumnCount)
		for i := 0; i < valueColumnCount; i++ {
			rendered[i] = formatScannedValue(values[i+1])
		}
		result[rowNum] = rendered
	}
	if err := rows.Err(); err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "load_rows_by_index", err.Error()))
	}
	return result, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// QueryToStrings executes an arbitrary SQL statement and renders every
// returned row to its canonical string form, for callers (pkg/query) that
// need direct result access rather than the data_view-scoped
// ExtractAllData.
func (e *Engine) QueryToStrings(ctx context.Context, sqlText string) (columns []string, rows [][]string, err error) {
	result, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, snaperr.Engine(fmt.Errorf("%s: %s", "query", err.Error()))
	}
	defer result.Close()

	cols, err := result.Columns()
	if err != nil {
		return nil, nil, snaperr.Engine(fmt.Errorf("%s: %s", "query", err.Error()))
	}

	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	var out [][]string
	for result.Next() {
		if err := result.Scan(dest...); err != nil {
			return nil, nil, snaperr.Engine(fmt.Errorf("%s: %s", "query", err.Error()))
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatScannedValue(v)
		}
		out = append(out, row)
	}
	if err := result.Err(); err != nil {
		return nil, nil, snaperr.Engine(fmt.Errorf("%s: %s", "query", err.Error()))
	}
	return cols, out, nil
}
