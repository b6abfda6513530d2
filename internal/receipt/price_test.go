package receipt

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForDisplay(t *testing.T) {
	tests := []struct {
		name  string
		input Price
		want  string
	}{
		{name: "groups thousands", input: PriceInt(1234567), want: "1,234,567 LBP"},
		{name: "zero", input: PriceInt(0), want: "0 LBP"},
		{name: "small", input: PriceInt(999), want: "999 LBP"},
		{name: "preformatted is unchanged", input: PriceText("50,000 LBP"), want: "50,000 LBP"},
		{name: "marker anywhere", input: PriceText("LBP 7"), want: "LBP 7"},
		{name: "numeric string", input: PriceText("5000"), want: "5,000 LBP"},
		{name: "numeric string with spaces", input: PriceText(" 12000 "), want: "12,000 LBP"},
		{name: "rounds half up", input: PriceAmount(decimal.RequireFromString("1499.5")), want: "1,500 LBP"},
		{name: "rounds down", input: PriceAmount(decimal.RequireFromString("1499.49")), want: "1,499 LBP"},
		{name: "negative rounds away from zero", input: PriceAmount(decimal.RequireFromString("-2500.5")), want: "-2,501 LBP"},
		{name: "negative fraction below half is zero", input: PriceAmount(decimal.RequireFromString("-0.4")), want: "0 LBP"},
		{name: "beyond int64", input: PriceAmount(decimal.RequireFromString("12345678901234567890123")), want: "12,345,678,901,234,567,890,123 LBP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatForDisplay(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatForDisplayIdempotent(t *testing.T) {
	inputs := []Price{
		PriceInt(0),
		PriceInt(1234567),
		PriceInt(-50000),
		PriceText("50,000 LBP"),
		PriceText("750"),
		PriceAmount(decimal.RequireFromString("0.75")),
	}
	for _, in := range inputs {
		once, err := FormatForDisplay(in)
		require.NoError(t, err)
		twice, err := FormatForDisplay(PriceText(once))
		require.NoError(t, err)
		assert.Equal(t, once, twice, "input %s", in)
	}
}

func TestFormatForDisplayRejectsNonNumericText(t *testing.T) {
	for _, s := range []string{"free", "50,000", "", "12 USD"} {
		_, err := FormatForDisplay(PriceText(s))
		assert.ErrorIs(t, err, ErrNotNumeric, "input %q", s)
	}
}

func TestParsePriceAmount(t *testing.T) {
	p, err := ParsePriceAmount("1.5e3")
	require.NoError(t, err)
	assert.False(t, p.IsText())
	got, err := FormatForDisplay(p)
	require.NoError(t, err)
	assert.Equal(t, "1,500 LBP", got)

	_, err = ParsePriceAmount("true")
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestStripCurrencyNoise(t *testing.T) {
	tests := map[string]string{
		"50,000 LBP":    "50000",
		"LBP 1,234,567": "1234567",
		"  750  ":       "750",
		"1,000LBP":      "1000",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripCurrencyNoise(in), "input %q", in)
	}
}

func TestQuantity(t *testing.T) {
	assert.Equal(t, "2", QuantityInt(2).String())
	assert.Equal(t, "2", QuantityAmount(decimal.RequireFromString("2.0")).String())
	assert.Equal(t, "1.5", QuantityAmount(decimal.RequireFromString("1.50")).String())
	assert.Equal(t, "3 boxes", QuantityText(" 3 boxes ").String())
}

func TestFormatForDisplayRejectsOversizedAmounts(t *testing.T) {
	inputs := []Price{
		PriceAmount(decimal.RequireFromString("1e5000000")),
		PriceAmount(decimal.RequireFromString("1e-5000000")),
		PriceAmount(decimal.RequireFromString("0e5000000")),
		PriceAmount(decimal.RequireFromString("1234567890123456789012345678901")),
		PriceText("1e31"),
	}
	for _, in := range inputs {
		_, err := FormatForDisplay(in)
		assert.ErrorIs(t, err, ErrNotNumeric)
	}

	got, err := FormatForDisplay(PriceAmount(decimal.RequireFromString("999999999999999999999999999999.4")))
	require.NoError(t, err)
	assert.Equal(t, "999,999,999,999,999,999,999,999,999,999 LBP", got)
}
