package naming

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestBasicPatternSubstitution(t *testing.T) {
	n := New("{source}_{format}_{seq}")
	result := n.Generate("sales.csv", nil)
	require.True(t, strings.HasPrefix(result, "sales_csv_"))
	require.True(t, strings.HasSuffix(result, "_1"))
}

func TestSequentialNumbering(t *testing.T) {
	n := New("{source}_{seq}")
	result := n.Generate("sales.csv", []string{"sales_1", "sales_2"})
	require.Equal(t, "sales_3", result)
}

func TestFormatDetection(t *testing.T) {
	n := New("{format}")
	require.Equal(t, "csv", n.Generate("test.csv", nil))
	require.Equal(t, "json", n.Generate("test.json", nil))
	require.Equal(t, "parquet", n.Generate("test.parquet", nil))
	require.Equal(t, "sql", n.Generate("test.sql", nil))
	require.Equal(t, "data", n.Generate("test.unknown", nil))
	require.Equal(t, "jsonl", n.Generate("test.ndjson", nil))
	require.Equal(t, "excel", n.Generate("test.xlsx", nil))
}

func TestTimestampPattern(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	n := New("{source}_{timestamp}", WithClock(clock))
	result := n.Generate("test.csv", nil)
	require.Equal(t, "test_20240102_030405", result)
}

func TestDateTimeVariants(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	n := New("{date}|{time}|{iso_date}|{iso_time}", WithClock(clock))
	result := n.Generate("test.csv", nil)
	require.Equal(t, "20240102|030405|2024-01-02|03:04:05", result)
}

func TestSeqIgnoresNonNumericNames(t *testing.T) {
	n := New("{seq}")
	result := n.Generate("test.csv", []string{"sales", "sales_v2_final"})
	require.Equal(t, "1", result)
}

func TestSeqDefaultsToOne(t *testing.T) {
	n := New("{seq}")
	require.Equal(t, "1", n.Generate("test.csv", nil))
}

func TestHashLength(t *testing.T) {
	n := New("{hash}")
	result := n.Generate("test.csv", nil)
	require.Len(t, result, 7)
}
