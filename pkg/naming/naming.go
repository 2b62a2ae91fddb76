// Package naming generates snapshot names from a templating pattern,
// mirroring the original implementation's SnapshotNamer (spec §4.2).
package naming

import (
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
)

// Namer expands a name pattern such as "{source}_{format}_{seq}" into a
// concrete snapshot name.
type Namer struct {
	pattern string
	clock   clockwork.Clock
	randSrc *rand.Rand
}

// Option configures a Namer.
type Option func(*Namer)

// WithClock overrides the clock used for {timestamp}/{date}/{time}/{iso_*}
// substitution, used by tests that need deterministic output.
func WithClock(clock clockwork.Clock) Option {
	return func(n *Namer) { n.clock = clock }
}

// WithRandSource overrides the source used for {hash}, used by tests that
// need deterministic output.
func WithRandSource(src *rand.Rand) Option {
	return func(n *Namer) { n.randSrc = src }
}

// New builds a Namer for the given pattern.
func New(pattern string, opts ...Option) *Namer {
	n := &Namer{
		pattern: pattern,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Generate expands the pattern for sourcePath, given the names of snapshots
// that already exist for this source (used to derive {seq}).
func (n *Namer) Generate(sourcePath string, existingNames []string) string {
	vars := n.buildVariables(sourcePath, existingNames)

	result := n.pattern
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}

func (n *Namer) buildVariables(sourcePath string, existingNames []string) map[string]string {
	vars := make(map[string]string, 12)

	ext := filepath.Ext(sourcePath)
	sourceExt := strings.TrimPrefix(ext, ".")
	sourceName := strings.TrimSuffix(filepath.Base(sourcePath), ext)
	if sourceName == "" {
		sourceName = "unknown"
	}

	vars["source"] = sourceName
	vars["source_ext"] = sourceExt
	vars["format"] = detectFormat(sourceExt)

	now := n.clock.Now().UTC()
	vars["timestamp"] = now.Format("20060102_150405")
	vars["date"] = now.Format("20060102")
	vars["time"] = now.Format("150405")
	vars["iso_date"] = now.Format("2006-01-02")
	vars["iso_time"] = now.Format("15:04:05")

	vars["seq"] = strconv.Itoa(nextSequence(existingNames))
	vars["hash"] = n.generateHash()
	vars["user"] = currentUsername()

	return vars
}

// detectFormat maps a file extension to the short format tag used in
// {format} substitution. Unrecognized extensions fall back to "data".
func detectFormat(ext string) string {
	switch strings.ToLower(ext) {
	case "csv":
		return "csv"
	case "json":
		return "json"
	case "jsonl", "ndjson":
		return "jsonl"
	case "parquet":
		return "parquet"
	case "sql":
		return "sql"
	case "tsv":
		return "tsv"
	case "txt":
		return "txt"
	case "xlsx", "xls":
		return "excel"
	default:
		return "data"
	}
}

// nextSequence extracts the trailing integer from each existing name and
// returns one more than the maximum found, or 1 if none had a trailing
// integer. Digits elsewhere in a name (e.g. "v2_final") are ignored.
func nextSequence(existingNames []string) int {
	maxSeq := 0
	for _, name := range existingNames {
		if n, ok := lastTrailingNumber(name); ok && n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq + 1
}

func lastTrailingNumber(name string) (int, bool) {
	start := len(name)
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == len(name) {
		return 0, false
	}
	n, err := strconv.Atoi(name[start:])
	if err != nil {
		return 0, false
	}
	return n, true
}

const hashAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func (n *Namer) generateHash() string {
	r := n.randSrc
	if r == nil {
		r = rand.New(rand.NewSource(n.clock.Now().UnixNano()))
	}
	b := make([]byte, 7)
	for i := range b {
		b[i] = hashAlphabet[r.Intn(len(hashAlphabet))]
	}
	return string(b)
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
