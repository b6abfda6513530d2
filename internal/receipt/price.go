package receipt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyMarker is appended to every formatted amount.
const CurrencyMarker = "LBP"

// MaxAmountDigits bounds the integer digits of a printable amount, and the
// fractional digits kept before rounding.
const MaxAmountDigits = 30

var ErrNotNumeric = errors.New("value is not numeric")

var grouping = message.NewPrinter(language.English)

// Price is either a raw amount or text the client already formatted.
type Price struct {
	amount decimal.Decimal
	text   string
	isText bool
}

func PriceAmount(d decimal.Decimal) Price { return Price{amount: d} }

func PriceInt(v int64) Price { return Price{amount: decimal.NewFromInt(v)} }

func PriceText(s string) Price { return Price{text: s, isText: true} }

// ParsePriceAmount parses a JSON number literal such as "5000" or "12.5e3".
func ParsePriceAmount(raw string) (Price, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Price{}, fmt.Errorf("%q: %w", raw, ErrNotNumeric)
	}
	return Price{amount: d}, nil
}

func (p Price) IsText() bool { return p.isText }

func (p Price) String() string {
	if p.isText {
		return p.text
	}
	return p.amount.String()
}

// StripCurrencyNoise removes the currency marker and thousands separators
// from a display string, leaving the bare number.
func StripCurrencyNoise(raw string) string {
	s := strings.ReplaceAll(raw, CurrencyMarker, "")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// FormatForDisplay renders p as "1,234,567 LBP". Text that already carries
// the currency marker is returned as is, so formatting is idempotent.
// Amounts are rounded to whole units, half away from zero.
func FormatForDisplay(p Price) (string, error) {
	if !p.isText {
		return formatAmount(p.amount)
	}
	if strings.Contains(p.text, CurrencyMarker) {
		return p.text, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(p.text))
	if err != nil {
		return "", fmt.Errorf("%q: %w", p.text, ErrNotNumeric)
	}
	return formatAmount(d)
}

// CheckMagnitude rejects values with more than MaxAmountDigits integer or
// fractional digits. It only looks at the coefficient and exponent, so it
// is cheap even for literals like 1e5000000.
func CheckMagnitude(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	// A coefficient of 2*MaxAmountDigits digits needs fewer than 7*MaxAmountDigits bits.
	if d.Coefficient().BitLen() > 7*MaxAmountDigits || exp < -MaxAmountDigits ||
		int64(d.NumDigits())+exp > MaxAmountDigits {
		return fmt.Errorf("more than %d digits: %w", MaxAmountDigits, ErrNotNumeric)
	}
	return nil
}

func formatAmount(d decimal.Decimal) (string, error) {
	if err := CheckMagnitude(d); err != nil {
		return "", err
	}
	r := d.Round(0)
	if r.IsZero() {
		return "0 " + CurrencyMarker, nil
	}
	if n := r.BigInt(); n.IsInt64() {
		return grouping.Sprintf("%d", n.Int64()) + " " + CurrencyMarker, nil
	}
	return groupDigits(r.String()) + " " + CurrencyMarker, nil
}

// groupDigits inserts commas into an integer literal too large for int64.
func groupDigits(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String()
}
