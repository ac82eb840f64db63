package templates

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// FuncMap is available to every template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"money":   Money,
		"ratio":   Ratio,
		"comma":   humanize.Comma,
		"decimal": Decimal,
		"date":    func(t time.Time) string { return t.Format("2006-01-02") },
		"weeks":   func(t time.Time) string { return humanize.RelTime(t, time.Now(), "ago", "from now") },
		"join":    strings.Join,
		"upper":   strings.ToUpper,
	}
}

// Money formats an amount with thousands separators and two decimals.
func Money(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// Ratio renders 0.052 as "+5.2%".
func Ratio(v float64) string {
	return fmt.Sprintf("%+.1f%%", v*100)
}

// Decimal renders a float with up to two decimals and no trailing zeros.
func Decimal(v float64) string {
	return humanize.FtoaWithDigits(v, 2)
}
