package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats an amount with comma separators and two decimals.
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	d = d.Round(2)
	whole := d.IntPart()
	frac := d.Sub(decimal.NewFromInt(whole)).StringFixed(2)
	return sign + FormatInt(whole) + frac[1:]
}

// FormatPct formats a fraction as a signed percentage, "+4.90%".
// Drops decimals for values >= 100% to keep width compact.
func FormatPct(f float64) string {
	pct := f * 100
	if pct >= 100 || pct <= -100 {
		return fmt.Sprintf("%+.0f%%", pct)
	}
	return fmt.Sprintf("%+.2f%%", pct)
}

// FormatRatio formats a ratio with two decimals, or "-" when it is zero.
func FormatRatio(f float64) string {
	if f == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", f)
}

// Undefined stands in for a metric that could not be computed.
const Undefined = "undefined"

// FormatPctPtr is FormatPct for a metric that may be undefined (nil).
func FormatPctPtr(f *float64) string {
	if f == nil {
		return Undefined
	}
	return FormatPct(*f)
}

// FormatRatioPtr is FormatRatio for a metric that may be undefined (nil).
func FormatRatioPtr(f *float64) string {
	if f == nil {
		return Undefined
	}
	return FormatRatio(*f)
}
