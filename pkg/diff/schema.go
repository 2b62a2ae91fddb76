package diff

import (
	"sort"

	"github.com/peter-fm/snapbase/pkg/snapshot"
)

type ColumnOrderChange struct {
	Before []string
	After  []string
}

type ColumnAddition struct {
	Name     string
	DataType string
	Position int
	Nullable bool
}

type ColumnRemoval struct {
	Name     string
	DataType string
	Position int
	Nullable bool
}

type ColumnRename struct {
	From string
	To   string
}

type TypeChange struct {
	Column string
	From   string
	To     string
}

type SchemaChanges struct {
	ColumnOrder    *ColumnOrderChange
	ColumnsAdded   []ColumnAddition
	ColumnsRemoved []ColumnRemoval
	ColumnsRenamed []ColumnRename
	TypeChanges    []TypeChange
}

func (s SchemaChanges) HasChanges() bool {
	return s.ColumnOrder != nil || len(s.ColumnsAdded) > 0 || len(s.ColumnsRemoved) > 0 ||
		len(s.ColumnsRenamed) > 0 || len(s.TypeChanges) > 0
}

// DetectSchemaChanges compares two column lists position by position. A
// pure reordering of the same column set is reported as ColumnOrder and
// nothing else: the function returns immediately, so a type change on a
// reordered column is not reported alongside the ColumnOrder change.
// Otherwise, a length mismatch is attributed to a tail addition or removal
// (columns are assumed appended or dropped at the end, never spliced into
// the middle), and any remaining positional mismatch over the common
// length is a rename and/or type change at that position.
func DetectSchemaChanges(baseline, current []snapshot.ColumnInfo) SchemaChanges {
	baselineNames := columnNames(baseline)
	currentNames := columnNames(current)

	var changes SchemaChanges

	if !stringSlicesEqual(baselineNames, currentNames) && len(baseline) == len(current) {
		if sortedEqual(baselineNames, currentNames) {
			changes.ColumnOrder = &ColumnOrderChange{Before: baselineNames, After: currentNames}
			return changes
		}
	}

	if len(baseline) != len(current) {
		if len(current) > len(baseline) {
			for pos := len(baseline); pos < len(current); pos++ {
				col := current[pos]
				changes.ColumnsAdded = append(changes.ColumnsAdded, ColumnAddition{
					Name: col.Name, DataType: col.DataType, Position: pos, Nullable: col.Nullable,
				})
			}
		} else {
			for pos := len(current); pos < len(baseline); pos++ {
				col := baseline[pos]
				changes.ColumnsRemoved = append(changes.ColumnsRemoved, ColumnRemoval{
					Name: col.Name, DataType: col.DataType, Position: pos, Nullable: col.Nullable,
				})
			}
		}
	}

	minLen := len(baseline)
	if len(current) < minLen {
		minLen = len(current)
	}
	for pos := 0; pos < minLen; pos++ {
		b, c := baseline[pos], current[pos]
		if b.Name != c.Name {
			changes.ColumnsRenamed = append(changes.ColumnsRenamed, ColumnRename{From: b.Name, To: c.Name})
		}
		if b.DataType != c.DataType {
			changes.TypeChanges = append(changes.TypeChanges, TypeChange{Column: c.Name, From: b.DataType, To: c.DataType})
		}
	}

	return changes
}

func columnNames(cols []snapshot.ColumnInfo) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	return stringSlicesEqual(sa, sb)
}

// FindCommonColumns returns the baseline column names that also exist in
// current, preserving baseline order.
func FindCommonColumns(baseline, current []snapshot.ColumnInfo) []string {
	currentNames := make(map[string]struct{}, len(current))
	for _, c := range current {
		currentNames[c.Name] = struct{}{}
	}
	var common []string
	for _, b := range baseline {
		if _, ok := currentNames[b.Name]; ok {
			common = append(common, b.Name)
		}
	}
	return common
}
