package rowvalue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Value{IsNull: true}, ""},
		{"bool true", Value{Kind: KindBool, Bool: true}, "true"},
		{"bool false", Value{Kind: KindBool, Bool: false}, "false"},
		{"int", Value{Kind: KindInt, Int: -42}, "-42"},
		{"float", Value{Kind: KindFloat, Float32: 1.5}, "1.5000000000"},
		{"double", Value{Kind: KindDouble, Float64: 1.5}, "1.500000000000000"},
		{"decimal", Value{Kind: KindDecimal, Decimal: decimal.RequireFromString("3.140")}, "3.140"},
		{"text", Value{Kind: KindText, Text: "hello"}, "hello"},
		{"date", Value{Kind: KindDate, DaysSinceEpoch: 19716}, "2023-12-25"},
		{"time no micros", Value{Kind: KindTime, MicrosOfDay: (13*3600 + 5*60 + 9) * 1_000_000}, "13:05:09"},
		{"time with micros", Value{Kind: KindTime, MicrosOfDay: (13*3600+5*60+9)*1_000_000 + 250000}, "13:05:09.250000"},
		{"timestamp no micros", Value{Kind: KindTimestamp, MicrosSinceEpoch: 1703505600 * 1_000_000}, "2023-12-25 12:00:00"},
		{"timestamp with micros", Value{Kind: KindTimestamp, MicrosSinceEpoch: 1703505600*1_000_000 + 1}, "2023-12-25 12:00:00.000001"},
		{"blob", Value{Kind: KindBlob, Blob: []byte{1, 2, 3}}, "<blob:3 bytes>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, FormatValue(tc.v))
		})
	}
}

func TestRowHashDeterministic(t *testing.T) {
	values := []string{"1", "Alice"}
	h1 := RowHash(values)
	h2 := RowHash(values)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
}

func TestRowHashSeparatorMatters(t *testing.T) {
	// "a|b" as a single value vs "a","b" must hash differently even though
	// joining with a single "|" would collide ("a|b|c" either way).
	h1 := RowHash([]string{"a|b", "c"})
	h2 := RowHash([]string{"a", "b", "c"})
	require.NotEqual(t, h1, h2)
}

func TestRowHashFromValues(t *testing.T) {
	h := RowHashFromValues([]Value{
		{Kind: KindInt, Int: 1},
		{Kind: KindText, Text: "Alice"},
	})
	require.Equal(t, RowHash([]string{"1", "Alice"}), h)
}
