package diff

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrimFlagColumnsDropsTrailingColumns(t *testing.T) {
	rows := [][]string{
		{"1", "Alice", "true", "false"},
		{"2", "Bob", "true", "false"},
	}
	trimmed := TrimFlagColumns(rows, 2)
	require.Equal(t, [][]string{{"1", "Alice"}, {"2", "Bob"}}, trimmed)
}

func TestTrimFlagColumnsNoopWhenAlreadyExactWidth(t *testing.T) {
	rows := [][]string{{"1", "Alice"}}
	require.Equal(t, rows, TrimFlagColumns(rows, 2))
}

func TestTrimFlagColumnsNoopWhenNIsZero(t *testing.T) {
	rows := [][]string{{"1", "Alice"}}
	require.Equal(t, rows, TrimFlagColumns(rows, 0))
}

func TestStripRowIndexColumnRemovesMatchingSequence(t *testing.T) {
	rows := [][]string{
		{"0", "Alice"},
		{"1", "Bob"},
		{"2", "Carol"},
	}
	stripped := StripRowIndexColumn(rows)
	require.Equal(t, [][]string{{"Alice"}, {"Bob"}, {"Carol"}}, stripped)
}

func TestStripRowIndexColumnLeavesDataAloneWhenNotSequential(t *testing.T) {
	rows := [][]string{
		{"0", "Alice"},
		{"5", "Bob"},
	}
	require.Equal(t, rows, StripRowIndexColumn(rows))
}
