package diff

import "strconv"

// TrimFlagColumns drops the trailing metadata columns a data.parquet file
// carries (__snapbase_added, __snapbase_modified, and any Hive partition
// pseudo-columns read back alongside them) before hashing or similarity
// comparison, per spec §4.6: only the first n columns, where n is the
// source metadata's own column count, participate in the diff. Rows
// already exactly n columns wide pass through untouched.
func TrimFlagColumns(rows [][]string, n int) [][]string {
	if n <= 0 {
		return rows
	}
	trimmed := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) > n {
			trimmed[i] = row[:n]
		} else {
			trimmed[i] = row
		}
	}
	return trimmed
}

// StripRowIndexColumn drops a leading row-index pseudo-column from
// file-sourced current data, detected heuristically by every row's first
// value equalling its own row index (spec §4.6, and the Open Question in
// spec §9 acknowledging this can collide with legitimate integer data).
// Rows are left untouched unless every single one matches the pattern.
func StripRowIndexColumn(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	for i, row := range rows {
		if len(row) == 0 || row[0] != strconv.Itoa(i) {
			return rows
		}
	}
	stripped := make([][]string, len(rows))
	for i, row := range rows {
		stripped[i] = row[1:]
	}
	return stripped
}
