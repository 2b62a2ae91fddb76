// Package diff implements the three-phase streaming change-detection
// algorithm of spec §5 (C6): a cheap hash-set pass to isolate which rows
// changed at all, followed by detailed classification of only those rows
// into additions, removals, and modifications, plus a separate schema diff.
package diff

import "github.com/peter-fm/snapbase/pkg/rowvalue"

// RowHashSet indexes row hashes to the row indices that produced them,
// supporting duplicate-valued rows (multiple indices sharing one hash).
type RowHashSet struct {
	hashes  map[string][]int
	indices map[int]struct{}
}

func NewRowHashSet() *RowHashSet {
	return &RowHashSet{
		hashes:  make(map[string][]int),
		indices: make(map[int]struct{}),
	}
}

func (s *RowHashSet) Add(rowIndex int, hash string) {
	s.hashes[hash] = append(s.hashes[hash], rowIndex)
	s.indices[rowIndex] = struct{}{}
}

func (s *RowHashSet) Contains(hash string) bool {
	_, ok := s.hashes[hash]
	return ok
}

func (s *RowHashSet) RowsFor(hash string) []int {
	return s.hashes[hash]
}

func (s *RowHashSet) Len() int {
	return len(s.hashes)
}

// BuildRowHashSet is phase 1: hash every rendered row once. rows are
// already in the canonical string form produced by pkg/rowvalue /
// pkg/engine's ExtractAllData.
func BuildRowHashSet(rows [][]string) *RowHashSet {
	set := NewRowHashSet()
	for i, row := range rows {
		set.Add(i, rowvalue.RowHash(row))
	}
	return set
}

// ChangedRows is the result of phase 2: which baseline/current row indices
// are NOT present, by hash, in the other dataset. unchangedCount is purely
// informational (used for summaries), matching the original's
// ChangedRowsResult.
type ChangedRows struct {
	BaselineChanged []int
	CurrentChanged  []int
	UnchangedCount  int
}

// IdentifyChangedRows is phase 2: a symmetric difference over hash sets.
// Baseline rows whose hash has no counterpart in current are
// removed-or-modified; current rows whose hash has no counterpart in
// baseline are added-or-modified. Rows whose hash exists in both are
// unchanged and never examined again — this is what keeps phase 3 cheap
// even for very large, mostly-unchanged datasets.
func IdentifyChangedRows(baseline, current *RowHashSet) ChangedRows {
	var result ChangedRows

	for hash, rowIndices := range baseline.hashes {
		if !current.Contains(hash) {
			result.BaselineChanged = append(result.BaselineChanged, rowIndices...)
		} else {
			result.UnchangedCount += len(rowIndices)
		}
	}

	for hash, rowIndices := range current.hashes {
		if !baseline.Contains(hash) {
			result.CurrentChanged = append(result.CurrentChanged, rowIndices...)
		}
	}

	return result
}
