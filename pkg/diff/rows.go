package diff

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/peter-fm/snapbase/pkg/rowvalue"
	"github.com/peter-fm/snapbase/pkg/snapshot"
)

// parallelRowThreshold is the minimum residue size below which phase 3's
// scoring passes just run inline — splitting a handful of rows across
// goroutines costs more than it saves.
const parallelRowThreshold = 256

// similarityThreshold is the fraction of common-column values that two
// changed rows must strictly exceed to be treated as one modified row rather
// than an independent removal and addition (spec §5, P6).
const similarityThreshold = 0.5

type CellChange struct {
	Before string
	After  string
}

type RowModification struct {
	RowIndex int
	Changes  map[string]CellChange
}

type RowAddition struct {
	RowIndex int
	Data     map[string]string
}

type RowRemoval struct {
	RowIndex int
	Data     map[string]string
}

type RowChanges struct {
	Modified []RowModification
	Added    []RowAddition
	Removed  []RowRemoval
}

func (c RowChanges) HasChanges() bool {
	return len(c.Modified) > 0 || len(c.Added) > 0 || len(c.Removed) > 0
}

func (c RowChanges) TotalChanges() int {
	return len(c.Modified) + len(c.Added) + len(c.Removed)
}

// Result is the full outcome of a three-phase diff: schema changes plus
// classified row changes.
type Result struct {
	Schema SchemaChanges
	Rows   RowChanges
}

// Detect runs the full three-phase algorithm over two already-extracted,
// already-rendered datasets: phase 1 builds hash sets for both sides,
// phase 2 identifies which rows changed at all, and phase 3 classifies
// only those changed rows into modifications, additions, and removals.
// Unchanged rows (the common case) never reach phase 3.
func Detect(baselineSchema, currentSchema []snapshot.ColumnInfo, baselineData, currentData [][]string) Result {
	baselineHashes := BuildRowHashSet(baselineData)
	currentHashes := BuildRowHashSet(currentData)

	changed := IdentifyChangedRows(baselineHashes, currentHashes)

	schemaChanges := DetectSchemaChanges(baselineSchema, currentSchema)
	rowChanges := classifyChangedRows(changed, baselineSchema, currentSchema, baselineData, currentData)

	return Result{Schema: schemaChanges, Rows: rowChanges}
}

// classifyChangedRows is phase 3: it only ever looks at the row indices
// phase 2 flagged as changed, never the full dataset.
func classifyChangedRows(
	changed ChangedRows,
	baselineSchema, currentSchema []snapshot.ColumnInfo,
	baselineData, currentData [][]string,
) RowChanges {
	commonColumns := FindCommonColumns(baselineSchema, currentSchema)

	unmatchedBaseline := append([]int(nil), changed.BaselineChanged...)
	unmatchedCurrent := append([]int(nil), changed.CurrentChanged...)

	var modifications []RowModification
	recordMatch := func(baselineIdx, currentIdx int) {
		baselineRow := baselineData[baselineIdx]
		currentRow := currentData[currentIdx]
		cellChanges := compareRowsSchemaAware(baselineRow, currentRow, baselineSchema, currentSchema)
		if len(cellChanges) > 0 {
			modifications = append(modifications, RowModification{RowIndex: currentIdx, Changes: cellChanges})
		}
	}

	// Phase 3.1: exact content match on the full original row. Two changed
	// rows whose full-row hash coincides are a reorder, not a genuine
	// add+remove pair.
	if len(unmatchedBaseline) > 0 && len(unmatchedCurrent) > 0 {
		matches := findExactMatches(unmatchedBaseline, unmatchedCurrent, baselineData, currentData)
		matched := make(map[int]struct{}, len(matches))
		matchedCur := make(map[int]struct{}, len(matches))
		for _, m := range matches {
			recordMatch(m.baselineIdx, m.currentIdx)
			matched[m.baselineIdx] = struct{}{}
			matchedCur[m.currentIdx] = struct{}{}
		}
		unmatchedBaseline = filterOut(unmatchedBaseline, matched)
		unmatchedCurrent = filterOut(unmatchedCurrent, matchedCur)
	}

	// Phase 3.2: similarity match over the intersection of schemas.
	if len(unmatchedBaseline) > 0 && len(unmatchedCurrent) > 0 && len(commonColumns) > 0 {
		matches := findContentMatches(unmatchedBaseline, unmatchedCurrent, baselineData, currentData, commonColumns, baselineSchema, currentSchema)

		matchedBaseline := make(map[int]struct{}, len(matches))
		matchedCurrent := make(map[int]struct{}, len(matches))

		for _, m := range matches {
			recordMatch(m.baselineIdx, m.currentIdx)
			matchedBaseline[m.baselineIdx] = struct{}{}
			matchedCurrent[m.currentIdx] = struct{}{}
		}

		unmatchedBaseline = filterOut(unmatchedBaseline, matchedBaseline)
		unmatchedCurrent = filterOut(unmatchedCurrent, matchedCurrent)
	}

	// Phase 3.3: position match. Any remaining baseline index that also
	// appears among the remaining current indices is a modification at that
	// position, even though its content cleared neither of the above tests.
	if len(unmatchedBaseline) > 0 && len(unmatchedCurrent) > 0 {
		currentSet := make(map[int]struct{}, len(unmatchedCurrent))
		for _, idx := range unmatchedCurrent {
			currentSet[idx] = struct{}{}
		}

		matchedBaseline := make(map[int]struct{})
		matchedCurrent := make(map[int]struct{})
		for _, idx := range unmatchedBaseline {
			if _, ok := currentSet[idx]; ok {
				recordMatch(idx, idx)
				matchedBaseline[idx] = struct{}{}
				matchedCurrent[idx] = struct{}{}
			}
		}
		unmatchedBaseline = filterOut(unmatchedBaseline, matchedBaseline)
		unmatchedCurrent = filterOut(unmatchedCurrent, matchedCurrent)
	}

	var removals []RowRemoval
	for _, idx := range unmatchedBaseline {
		removals = append(removals, RowRemoval{RowIndex: idx, Data: rowAsMap(baselineSchema, baselineData[idx])})
	}

	var additions []RowAddition
	for _, idx := range unmatchedCurrent {
		additions = append(additions, RowAddition{RowIndex: idx, Data: rowAsMap(currentSchema, currentData[idx])})
	}

	return RowChanges{Modified: modifications, Added: additions, Removed: removals}
}

type rowMatch struct {
	baselineIdx int
	currentIdx  int
}

// findExactMatches is phase 3.1: pair each unmatched baseline index with an
// unmatched current index sharing the same full-row hash. Catches rows that
// were reordered but not mutated at all. Hashing both sides is the only CPU
// cost here, and hashing one row never depends on another, so both passes
// run over row-range chunks in parallel (mirroring the original's
// find_hash_matches_parallel) before the cheap sequential map build/lookup.
func findExactMatches(baselineIndices, currentIndices []int, baselineData, currentData [][]string) []rowMatch {
	currentHashes := hashRows(currentIndices, currentData)
	baselineHashes := hashRows(baselineIndices, baselineData)

	byHash := make(map[string][]int, len(currentIndices))
	for i, idx := range currentIndices {
		byHash[currentHashes[i]] = append(byHash[currentHashes[i]], idx)
	}

	used := make(map[int]struct{})
	var matches []rowMatch
	for i, baselineIdx := range baselineIndices {
		candidates := byHash[baselineHashes[i]]
		for _, currentIdx := range candidates {
			if _, taken := used[currentIdx]; taken {
				continue
			}
			matches = append(matches, rowMatch{baselineIdx: baselineIdx, currentIdx: currentIdx})
			used[currentIdx] = struct{}{}
			break
		}
	}
	return matches
}

// hashRows computes the full-row hash for each of rows[indices[i]] into a
// result slice indexed the same way as indices, splitting the work across
// goroutines once there's enough of it to be worth the overhead.
func hashRows(indices []int, rows [][]string) []string {
	hashes := make([]string, len(indices))

	if len(indices) < parallelRowThreshold {
		for i, idx := range indices {
			hashes[i] = rowvalue.RowHash(rows[idx])
		}
		return hashes
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, idx := range indices {
		i, idx := i, idx
		g.Go(func() error {
			hashes[i] = rowvalue.RowHash(rows[idx])
			return nil
		})
	}
	_ = g.Wait() // RowHash never returns an error
	return hashes
}

// candidateMatch is one baseline row's ranked similarity scores against
// every still-unmatched current row, sorted best-first.
type candidateMatch struct {
	baselineIdx int
	ranked      []scoredCurrent
}

type scoredCurrent struct {
	currentIdx int
	similarity float64
}

// findContentMatches is phase 3.2: it scores every unmatched baseline row
// against every unmatched current row in parallel (scoring is read-only and
// embarrassingly parallel, mirroring the original's Rayon-backed
// find_content_matches_parallel), then resolves the greedy
// highest-scoring-unused-current-index-above-threshold assignment
// sequentially in baseline order, since that resolution has to serialize on
// the shared "used" set regardless of how the scores were computed.
func findContentMatches(
	baselineIndices, currentIndices []int,
	baselineData, currentData [][]string,
	commonColumns []string,
	baselineSchema, currentSchema []snapshot.ColumnInfo,
) []rowMatch {
	baselineColPos := columnPositions(baselineSchema)
	currentColPos := columnPositions(currentSchema)

	candidates := make([]candidateMatch, len(baselineIndices))
	scoreOne := func(i int) {
		baselineIdx := baselineIndices[i]
		baselineRow := baselineData[baselineIdx]
		ranked := make([]scoredCurrent, 0, len(currentIndices))
		for _, currentIdx := range currentIndices {
			similarity := rowSimilarity(baselineRow, currentData[currentIdx], commonColumns, baselineColPos, currentColPos)
			if similarity > similarityThreshold {
				ranked = append(ranked, scoredCurrent{currentIdx: currentIdx, similarity: similarity})
			}
		}
		sortScoredCurrentDesc(ranked)
		candidates[i] = candidateMatch{baselineIdx: baselineIdx, ranked: ranked}
	}

	if len(baselineIndices)*len(currentIndices) < parallelRowThreshold {
		for i := range baselineIndices {
			scoreOne(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range baselineIndices {
			i := i
			g.Go(func() error {
				scoreOne(i)
				return nil
			})
		}
		_ = g.Wait() // scoreOne never returns an error
	}

	used := make(map[int]struct{})
	var matches []rowMatch
	for _, c := range candidates {
		for _, cand := range c.ranked {
			if _, taken := used[cand.currentIdx]; taken {
				continue
			}
			matches = append(matches, rowMatch{baselineIdx: c.baselineIdx, currentIdx: cand.currentIdx})
			used[cand.currentIdx] = struct{}{}
			break
		}
	}

	return matches
}

func sortScoredCurrentDesc(s []scoredCurrent) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].similarity > s[j-1].similarity; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func rowSimilarity(baselineRow, currentRow []string, commonColumns []string, baselineColPos, currentColPos map[string]int) float64 {
	matches, total := 0, 0
	for _, col := range commonColumns {
		bi, bok := baselineColPos[col]
		ci, cok := currentColPos[col]
		if !bok || !cok || bi >= len(baselineRow) || ci >= len(currentRow) {
			continue
		}
		total++
		if baselineRow[bi] == currentRow[ci] {
			matches++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matches) / float64(total)
}

// compareRowsSchemaAware diffs two matched rows column by column, only for
// columns present in both schemas (a renamed or dropped column on either
// side is reported through the schema diff, not as a cell change here).
func compareRowsSchemaAware(baselineRow, currentRow []string, baselineSchema, currentSchema []snapshot.ColumnInfo) map[string]CellChange {
	currentColPos := columnPositions(currentSchema)
	changes := make(map[string]CellChange)

	for i, col := range baselineSchema {
		ci, ok := currentColPos[col.Name]
		if !ok {
			continue
		}
		before := valueAt(baselineRow, i)
		after := valueAt(currentRow, ci)
		if before != after {
			changes[col.Name] = CellChange{Before: before, After: after}
		}
	}
	return changes
}

func valueAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func columnPositions(cols []snapshot.ColumnInfo) map[string]int {
	m := make(map[string]int, len(cols))
	for i, c := range cols {
		m[c.Name] = i
	}
	return m
}

func rowAsMap(schema []snapshot.ColumnInfo, row []string) map[string]string {
	m := make(map[string]string, len(schema))
	for i, col := range schema {
		if i < len(row) {
			m[col.Name] = row[i]
		}
	}
	return m
}

func filterOut(indices []int, exclude map[int]struct{}) []int {
	out := indices[:0:0]
	for _, idx := range indices {
		if _, ok := exclude[idx]; !ok {
			out = append(out, idx)
		}
	}
	return out
}
