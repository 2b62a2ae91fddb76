package diff

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peter-fm/snapbase/pkg/snapshot"
	"github.com/stretchr/testify/require"
)

func schemaOf(names ...string) []snapshot.ColumnInfo {
	cols := make([]snapshot.ColumnInfo, len(names))
	for i, n := range names {
		cols[i] = snapshot.ColumnInfo{Name: n, DataType: "VARCHAR", Nullable: true}
	}
	return cols
}

func TestBuildRowHashSetAssignsSameHashToIdenticalRows(t *testing.T) {
	rows := [][]string{{"a", "1"}, {"b", "2"}, {"a", "1"}}
	set := BuildRowHashSet(rows)
	require.Equal(t, 2, set.Len())
	require.ElementsMatch(t, []int{0, 2}, set.RowsFor(hashOf(rows[0])))
}

func hashOf(row []string) string {
	set := BuildRowHashSet([][]string{row})
	for h := range set.hashes {
		return h
	}
	return ""
}

func TestIdentifyChangedRowsSymmetricDifference(t *testing.T) {
	baseline := BuildRowHashSet([][]string{{"a", "1"}, {"b", "2"}, {"c", "3"}})
	current := BuildRowHashSet([][]string{{"a", "1"}, {"b", "20"}, {"d", "4"}})

	changed := IdentifyChangedRows(baseline, current)

	require.ElementsMatch(t, []int{1, 2}, changed.BaselineChanged)
	require.ElementsMatch(t, []int{1, 2}, changed.CurrentChanged)
	require.Equal(t, 1, changed.UnchangedCount)
}

func TestDetectSchemaChangesColumnOrder(t *testing.T) {
	baseline := schemaOf("a", "b", "c")
	current := schemaOf("c", "a", "b")

	changes := DetectSchemaChanges(baseline, current)

	require.NotNil(t, changes.ColumnOrder)
	require.Equal(t, []string{"a", "b", "c"}, changes.ColumnOrder.Before)
	require.Equal(t, []string{"c", "a", "b"}, changes.ColumnOrder.After)
	require.Empty(t, changes.ColumnsAdded)
	require.Empty(t, changes.ColumnsRemoved)
	require.Empty(t, changes.ColumnsRenamed)
	require.Empty(t, changes.TypeChanges)
}

func TestDetectSchemaChangesTailAddition(t *testing.T) {
	baseline := schemaOf("a", "b")
	current := schemaOf("a", "b", "c")

	changes := DetectSchemaChanges(baseline, current)

	require.Len(t, changes.ColumnsAdded, 1)
	require.Equal(t, "c", changes.ColumnsAdded[0].Name)
	require.Equal(t, 2, changes.ColumnsAdded[0].Position)
	require.Empty(t, changes.ColumnsRemoved)
}

func TestDetectSchemaChangesTailRemoval(t *testing.T) {
	baseline := schemaOf("a", "b", "c")
	current := schemaOf("a", "b")

	changes := DetectSchemaChanges(baseline, current)

	require.Len(t, changes.ColumnsRemoved, 1)
	require.Equal(t, "c", changes.ColumnsRemoved[0].Name)
}

func TestDetectSchemaChangesRenameAndTypeChange(t *testing.T) {
	baseline := []snapshot.ColumnInfo{{Name: "a", DataType: "INTEGER"}, {Name: "b", DataType: "VARCHAR"}}
	current := []snapshot.ColumnInfo{{Name: "a_renamed", DataType: "BIGINT"}, {Name: "b", DataType: "VARCHAR"}}

	changes := DetectSchemaChanges(baseline, current)

	require.Len(t, changes.ColumnsRenamed, 1)
	require.Equal(t, ColumnRename{From: "a", To: "a_renamed"}, changes.ColumnsRenamed[0])
	require.Len(t, changes.TypeChanges, 1)
	require.Equal(t, TypeChange{Column: "a_renamed", From: "INTEGER", To: "BIGINT"}, changes.TypeChanges[0])
}

func TestFindCommonColumnsPreservesBaselineOrder(t *testing.T) {
	baseline := schemaOf("a", "b", "c")
	current := schemaOf("c", "a", "d")

	common := FindCommonColumns(baseline, current)

	require.Equal(t, []string{"a", "c"}, common)
}

func TestDetectClassifiesModificationAdditionAndRemoval(t *testing.T) {
	schema := schemaOf("id", "name", "status")

	// carol and dave sit at different positions on each side (baseline index
	// 0, current index 2) so phase 3.3's position match can't coincidentally
	// pair them into a modification instead of a genuine removal+addition.
	baseline := [][]string{
		{"3", "carol", "active"},
		{"1", "alice", "active"},
		{"2", "bob", "active"},
	}
	current := [][]string{
		{"1", "alice", "active"},
		{"2", "bob", "inactive"},
		{"4", "dave", "active"},
	}

	result := Detect(schema, schema, baseline, current)

	require.False(t, result.Schema.HasChanges())
	require.Len(t, result.Rows.Modified, 1)
	require.Equal(t, 1, result.Rows.Modified[0].RowIndex)
	require.Equal(t, CellChange{Before: "active", After: "inactive"}, result.Rows.Modified[0].Changes["status"])

	require.Len(t, result.Rows.Removed, 1)
	require.Equal(t, "carol", result.Rows.Removed[0].Data["name"])

	require.Len(t, result.Rows.Added, 1)
	require.Equal(t, "dave", result.Rows.Added[0].Data["name"])
}

func TestDetectTreatsBelowThresholdMatchAsRemovalAndAddition(t *testing.T) {
	schema := schemaOf("id", "name", "status", "region")

	// An unrelated unchanged row shifts the dissimilar rows to different
	// positions on each side (baseline index 1, current index 0), so phase
	// 3.3's position match can't kick in and mask the below-threshold result.
	baseline := [][]string{
		{"9", "unchanged", "active", "north"},
		{"1", "alice", "active", "east"},
	}
	current := [][]string{
		{"2", "zoe", "inactive", "west"},
		{"9", "unchanged", "active", "north"},
	}

	result := Detect(schema, schema, baseline, current)

	require.Empty(t, result.Rows.Modified)
	require.Len(t, result.Rows.Removed, 1)
	require.Len(t, result.Rows.Added, 1)
}

func TestDetectPositionMatchClassifiesResidueAsModification(t *testing.T) {
	schema := schemaOf("id", "name", "status", "region")

	// Same row index on both sides, below the similarity threshold and with
	// no full-row hash match: phase 3.3's position match still pairs them
	// into a single modification instead of a removal/addition pair.
	baseline := [][]string{
		{"1", "alice", "active", "east"},
	}
	current := [][]string{
		{"2", "zoe", "inactive", "west"},
	}

	result := Detect(schema, schema, baseline, current)

	require.Empty(t, result.Rows.Removed)
	require.Empty(t, result.Rows.Added)
	require.Len(t, result.Rows.Modified, 1)
	require.Equal(t, 0, result.Rows.Modified[0].RowIndex)
	require.Equal(t, CellChange{Before: "alice", After: "zoe"}, result.Rows.Modified[0].Changes["name"])
}

func TestDetectNoChangesWhenDatasetsIdentical(t *testing.T) {
	schema := schemaOf("id", "name")
	rows := [][]string{{"1", "alice"}, {"2", "bob"}}

	result := Detect(schema, schema, rows, rows)

	require.False(t, result.Rows.HasChanges())
	require.False(t, result.Schema.HasChanges())
}

// TestFindContentMatchesAgreesAboveParallelThreshold pins down that the
// errgroup-backed scoring pass in findContentMatches produces the exact same
// assignment as the inline path once the residue is large enough to take the
// parallel branch (parallelRowThreshold) — the greedy resolution is
// deterministic regardless of which goroutine scored which row.
func TestFindContentMatchesAgreesAboveParallelThreshold(t *testing.T) {
	schema := schemaOf("id", "name", "status")

	const n = 40 // 40*40 == 1600, comfortably over parallelRowThreshold
	baseline := make([][]string, n)
	current := make([][]string, n)
	for i := 0; i < n; i++ {
		baseline[i] = []string{fmt.Sprintf("%d", i), fmt.Sprintf("name-%d", i), "active"}
		current[i] = []string{fmt.Sprintf("%d", i), fmt.Sprintf("name-%d", i), "inactive"}
	}

	result := Detect(schema, schema, baseline, current)

	require.Empty(t, result.Rows.Added)
	require.Empty(t, result.Rows.Removed)
	require.Len(t, result.Rows.Modified, n)
	for _, m := range result.Rows.Modified {
		require.Equal(t, CellChange{Before: "active", After: "inactive"}, m.Changes["status"])
	}
}

// TestDetectStructuralComparisonViaGoCmp exercises a full Result comparison
// with go-cmp instead of field-by-field require calls, useful once a
// result's Modified/Added/Removed slices need order-independent comparison.
func TestDetectStructuralComparisonViaGoCmp(t *testing.T) {
	schema := schemaOf("id", "name")

	baseline := [][]string{{"1", "alice"}, {"2", "bob"}}
	current := [][]string{{"1", "alice"}, {"2", "bobby"}}

	result := Detect(schema, schema, baseline, current)

	want := RowChanges{
		Modified: []RowModification{
			{RowIndex: 1, Changes: map[string]CellChange{"name": {Before: "bob", After: "bobby"}}},
		},
	}

	if diff := cmp.Diff(want, result.Rows, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("row changes mismatch (-want +got):\n%s", diff)
	}
}
