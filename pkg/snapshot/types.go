// Package snapshot defines the snapshot metadata model (spec §3). The
// snapshot writer (C4) and resolver (C5) live in pkg/snapstore.
package snapshot

import "time"

// ColumnInfo describes one column of a snapshot's schema, in original file
// order. Ordering must never be alphabetized (spec §4.3).
type ColumnInfo struct {
	Name     string `json:"name" yaml:"name"`
	DataType string `json:"data_type" yaml:"data_type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
}

// Metadata is the sole source of truth for a snapshot's schema; row hashes
// are always derived, never stored (spec §3).
type Metadata struct {
	FormatVersion     int          `json:"format_version"`
	Name              string       `json:"name"`
	Created           time.Time    `json:"created"`
	Source            string       `json:"source"`
	SourcePath        string       `json:"source_path"`
	SourceFingerprint string       `json:"source_fingerprint"`
	SourceHash        string       `json:"source_hash"`
	RowCount          int64        `json:"row_count"`
	ColumnCount       int          `json:"column_count"`
	Columns           []ColumnInfo `json:"columns"`
	ParentSnapshot    string       `json:"parent_snapshot,omitempty"`
	SequenceNumber    int64        `json:"sequence_number"`
}

// CurrentFormatVersion is written into every new snapshot's metadata.
const CurrentFormatVersion = 1

// FlagColumnAdded and FlagColumnModified are the two boolean columns
// appended to every data.parquet file (spec §3, §4.4).
const (
	FlagColumnAdded    = "__snapbase_added"
	FlagColumnModified = "__snapbase_modified"
)

// TimestampFormat is the fixed lexicographically-sortable timestamp format
// used for the snapshot_timestamp Hive partition key (spec §3):
// YYYYMMDDTHHMMSS.ffffffZ, UTC, microsecond precision. Metadata.Created is
// a time.Time and is marshalled in its own RFC 3339 form.
const TimestampFormat = "20060102T150405.000000Z"

// FormatTimestamp renders t in the fixed partition-key format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
