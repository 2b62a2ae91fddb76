package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/peter-fm/snapbase/pkg/snaperr"
)

// ProgressFunc reports rows processed out of the known total, mirroring the
// original's progress_callback parameter.
type ProgressFunc func(processed, total int64)

const progressUpdateEvery = 50_000

// ExtractAllData renders every row of the currently loaded source (or
// streaming SQL query) into the canonical string representation used
// throughout the row hash and diff pipeline (spec §4.3).
func (e *Engine) ExtractAllData(ctx context.Context) ([][]string, error) {
	return e.ExtractAllDataWithProgress(ctx, nil)
}

func (e *Engine) ExtractAllDataWithProgress(ctx context.Context, progress ProgressFunc) ([][]string, error) {
	if e.streamingQuery != "" {
		return e.extractQuery(ctx, e.streamingQuery, progress)
	}
	return e.extractQuery(ctx, "SELECT * FROM data_view", progress)
}

// RowFunc receives one extracted row at a time, in order, alongside its
// zero-based index.
type RowFunc func(index int, row []string) error

// StreamRows renders the currently loaded source (or streaming SQL query)
// row by row, invoking fn as each row is scanned rather than materializing
// the whole table first (spec §4.3, "Stream rows"). It is the lazy
// counterpart to ExtractAllData, for callers that only need to look at
// rows in passing (e.g. export) rather than hold the full dataset in
// memory for hashing/diffing. Returning an error from fn stops iteration
// and that error is returned from StreamRows.
func (e *Engine) StreamRows(ctx context.Context, fn RowFunc) error {
	query := "SELECT * FROM data_view"
	if e.streamingQuery != "" {
		query = e.streamingQuery
	}

	var columnCount int
	if e.streamingQuery != "" {
		columnCount = len(e.cachedColumns)
	} else {
		columns, err := e.columnInfoFromView(ctx, "data_view", true)
		if err != nil {
			return err
		}
		columnCount = len(columns)
	}
	if columnCount == 0 {
		return nil
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return snaperr.Engine(fmt.Errorf("%s: %s", "stream_rows", err.Error()))
	}
	defer rows.Close()

	values := make([]any, columnCount)
	scanDest := make([]any, columnCount)
	for i := range values {
		scanDest[i] = &values[i]
	}

	var index int
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return snaperr.Engine(fmt.Errorf("%s: %s", "stream_rows", err.Error()))
		}
		row := make([]string, columnCount)
		for i, v := range values {
			row[i] = formatScannedValue(v)
		}
		if err := fn(index, row); err != nil {
			return err
		}
		index++
	}
	return rows.Err()
}

func (e *Engine) extractQuery(ctx context.Context, query string, progress ProgressFunc) ([][]string, error) {
	var columnCount int
	if e.streamingQuery != "" {
		columnCount = len(e.cachedColumns)
	} else {
		columns, err := e.columnInfoFromView(ctx, "data_view", true)
		if err != nil {
			return nil, err
		}
		columnCount = len(columns)
	}
	if columnCount == 0 {
		return nil, nil
	}

	total, err := e.scalarInt64(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s)", query))
	if err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "extract", err.Error()))
	}
	if total == 0 {
		return nil, nil
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "extract", err.Error()))
	}
	defer rows.Close()

	all := make([][]string, 0, total)
	values := make([]any, columnCount)
	scanDest := make([]any, columnCount)
	for i := range values {
		scanDest[i] = &values[i]
	}

	var processed int64
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, snaperr.Engine(fmt.Errorf("%s: %s", "extract", err.Error()))
		}
		row := make([]string, columnCount)
		for i, v := range values {
			row[i] = formatScannedValue(v)
		}
		all = append(all, row)
		processed++
		if progress != nil && (processed%progressUpdateEvery == 0 || processed >= total) {
			progress(processed, total)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "extract", err.Error()))
	}
	return all, nil
}

// formatScannedValue renders a value returned by database/sql's generic
// scanning into the canonical textual form of spec §4.3. The DuckDB driver
// surfaces Go-native types (bool, int64, float64, string, []byte, time.Time)
// rather than the richer ValueRef enum the original engine switches on, so
// the classification happens on Go's dynamic type instead.
func formatScannedValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("%d", val)
	case int32:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%.15f", val)
	case float32:
		return fmt.Sprintf("%.10f", val)
	case []byte:
		return fmt.Sprintf("<blob:%d bytes>", len(val))
	case string:
		return val
	case time.Time:
		return formatTimeValue(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatTimeValue distinguishes date-only, time-only, and timestamp values
// the way DuckDB's driver reports them: all three surface as time.Time, so
// the zero date/zero clock component tells them apart (mirroring the
// original's separate Date32/Time64/Timestamp match arms).
func formatTimeValue(t time.Time) string {
	isMidnight := t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
	isEpochDate := t.Year() == 1970 && t.Month() == 1 && t.Day() == 1

	switch {
	case isMidnight && !isEpochDate:
		return t.Format("2006-01-02")
	case isEpochDate && !isMidnight:
		return formatClock(t)
	default:
		micros := t.Nanosecond() / 1000
		if micros > 0 {
			return t.Format("2006-01-02 15:04:05") + fmt.Sprintf(".%06d", micros)
		}
		return t.Format("2006-01-02 15:04:05")
	}
}

func formatClock(t time.Time) string {
	micros := t.Nanosecond() / 1000
	if micros > 0 {
		return t.Format("15:04:05") + fmt.Sprintf(".%06d", micros)
	}
	return t.Format("15:04:05")
}
