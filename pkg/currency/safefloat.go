// Package currency normalizes the untyped money cells read back from the spreadsheet.
package currency

import (
	"math"
	"strconv"
	"strings"
)

// NairaPerPoint is the fixed conversion between referral points and revenue.
const NairaPerPoint = 100.0

// Tokens are removed in this order; NGN must go before N.
var stripTokens = []string{"NGN", "₦", ",", "$", "N"}

// SafeFloat converts a cell value (nil, numeric, or a currency formatted string
// such as "₦5,000.00" or "NGN 100") to float64. Anything unparseable is 0.
func SafeFloat(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	case bool:
		return 0
	case string:
		return parse(t)
	case []byte:
		return parse(string(t))
	case interface{ String() string }:
		return parse(t.String())
	}
	return 0
}

func parse(s string) float64 {
	for _, tok := range stripTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Round2 rounds to two decimal places, the precision kept in the Partners sheet.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// RevenueFor returns the revenue that must accompany the given points.
func RevenueFor(points float64) float64 {
	return Round2(points * NairaPerPoint)
}

// PointsFor converts a flat naira amount to points.
func PointsFor(naira float64) float64 {
	return Round2(naira / NairaPerPoint)
}

// Naira formats an amount the way the sheet displays it, e.g. "NGN 3,020.00".
// The ASCII code is used instead of the glyph so the text is safe for logs and SMTP headers.
func Naira(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatFloat(Round2(amount), 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "NGN " + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
