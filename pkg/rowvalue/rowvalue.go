// Package rowvalue implements the canonical value rendering contract of
// spec §4.3 and the row-hash contract of §4.6. FormatValue renders typed
// Values; pkg/engine's extraction paths do not call it and render scanned
// driver values with their own formatScannedValue instead.
package rowvalue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"lukechampine.com/blake3"
)

// Kind identifies the engine-level type of a scalar value being rendered.
// It mirrors the column_info.data_type categories the engine adapter
// surfaces, collapsed to the rendering rules of §4.3.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat  // single precision
	KindDouble // double precision
	KindDecimal
	KindText
	KindDate      // days since epoch
	KindTime      // microseconds since midnight
	KindTimestamp // microseconds since epoch
	KindBlob
)

// Value is a single cell together with enough type information to render it
// canonically. Exactly one of the typed fields is meaningful, selected by
// Kind; IsNull short-circuits all of them.
type Value struct {
	Kind    Kind
	IsNull  bool
	Bool    bool
	Int     int64
	Float32 float32
	Float64 float64
	Decimal decimal.Decimal
	Text    string
	Blob    []byte

	// Date/Time/Timestamp share microsecond-or-day integer storage; the
	// column's Kind disambiguates the unit.
	DaysSinceEpoch   int64
	MicrosOfDay      int64
	MicrosSinceEpoch int64
}

// FormatValue renders v per the table in spec §4.3. The output is the exact
// string used both for hashing (joined with "||") and for CSV/text export.
func FormatValue(v Value) string {
	if v.IsNull {
		return ""
	}
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.Float32), 'f', 10, 32)
	case KindDouble:
		return strconv.FormatFloat(v.Float64, 'f', 15, 64)
	case KindDecimal:
		if exp := v.Decimal.Exponent(); exp < 0 {
			return v.Decimal.StringFixed(-exp)
		}
		return v.Decimal.String()
	case KindText:
		return v.Text
	case KindDate:
		return formatDate(v.DaysSinceEpoch)
	case KindTime:
		return formatTime(v.MicrosOfDay)
	case KindTimestamp:
		return formatTimestamp(v.MicrosSinceEpoch)
	case KindBlob:
		return fmt.Sprintf("<blob:%d bytes>", len(v.Blob))
	default:
		return ""
	}
}

func formatDate(days int64) string {
	t := time.Unix(days*86400, 0).UTC()
	return t.Format("2006-01-02")
}

func formatTime(microsOfDay int64) string {
	total := time.Duration(microsOfDay) * time.Microsecond
	h := total / time.Hour
	total -= h * time.Hour
	m := total / time.Minute
	total -= m * time.Minute
	s := total / time.Second
	total -= s * time.Second
	micros := total / time.Microsecond

	base := fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	if micros > 0 {
		return fmt.Sprintf("%s.%06d", base, micros)
	}
	return base
}

func formatTimestamp(microsSinceEpoch int64) string {
	sec := microsSinceEpoch / 1_000_000
	micros := microsSinceEpoch % 1_000_000
	if micros < 0 {
		micros += 1_000_000
		sec--
	}
	t := time.Unix(sec, 0).UTC()
	base := t.Format("2006-01-02 15:04:05")
	if micros > 0 {
		return fmt.Sprintf("%s.%06d", base, micros)
	}
	return base
}

// RowHash computes the row-hash contract of spec §4.6: blake3 over the
// original-column values (flag/pseudo columns excluded by the caller before
// this is invoked) joined with "||", rendered as the full 64-char hex
// digest. The "||" separator is part of the contract, chosen in the
// original implementation to avoid ambiguity with "|" appearing in data.
func RowHash(renderedValues []string) string {
	joined := strings.Join(renderedValues, "||")
	sum := blake3.Sum256([]byte(joined))
	return fmt.Sprintf("%x", sum[:])
}

// RowHashFromValues renders each value and computes its row hash in one step.
func RowHashFromValues(values []Value) string {
	rendered := make([]string, len(values))
	for i, v := range values {
		rendered[i] = FormatValue(v)
	}
	return RowHash(rendered)
}
