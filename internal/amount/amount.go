// Package amount converts currency values to and from the text stored in ledger tables.
//
// Tables written by hand or by older tooling may use either a comma or a dot as
// decimal separator. Parse accepts both; DetectSeparator finds the one existing
// rows use so new rows are written the same way.
package amount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal separators.
const (
	Comma = ","
	Dot   = "."
)

// ValidSeparator reports whether sep is a supported decimal separator.
func ValidSeparator(sep string) bool {
	return sep == Comma || sep == Dot
}

// Parse parses a stored amount. Currency markers and spaces are ignored.
// When both separators occur, the last one is the decimal separator.
func Parse(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	isNegative := strings.HasPrefix(cleaned, "-")
	if isNegative {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "-"))
	}

	for _, marker := range []string{" ", "\u00a0", "PLN", "zł", "EUR", "€", "%"} {
		cleaned = strings.ReplaceAll(cleaned, marker, "")
	}

	lastComma := strings.LastIndex(cleaned, Comma)
	lastDot := strings.LastIndex(cleaned, Dot)

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			cleaned = strings.ReplaceAll(cleaned, Dot, "")
			cleaned = strings.ReplaceAll(cleaned, Comma, Dot)
		} else {
			// 1,234.56
			cleaned = strings.ReplaceAll(cleaned, Comma, "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, Comma) > 1 {
			cleaned = strings.ReplaceAll(cleaned, Comma, "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, Comma, Dot)
		}
	case lastDot >= 0:
		if strings.Count(cleaned, Dot) > 1 {
			cleaned = strings.ReplaceAll(cleaned, Dot, "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", s, cleaned)
	}
	if isNegative {
		d = d.Neg()
	}
	return d, nil
}

// Format renders d with exactly two fractional digits and the given separator.
func Format(d decimal.Decimal, sep string) string {
	return withSeparator(d.StringFixed(2), sep)
}

// FormatPlain renders d without padding, e.g. a VAT rate of 5 as "5" and 8.5 as "8,5".
func FormatPlain(d decimal.Decimal, sep string) string {
	return withSeparator(d.String(), sep)
}

// DetectSeparator returns the decimal separator used by the first value that has one.
// A separator counts only when followed by one or two trailing digits.
// fallback is returned when no value decides it.
func DetectSeparator(values []string, fallback string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		idx := strings.LastIndexAny(v, Comma+Dot)
		if idx < 0 {
			continue
		}
		tail := v[idx+1:]
		if len(tail) < 1 || len(tail) > 2 || !allDigits(tail) {
			continue
		}
		return string(v[idx])
	}
	return fallback
}

func withSeparator(s, sep string) string {
	if sep == Comma {
		return strings.Replace(s, Dot, Comma, 1)
	}
	return s
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
