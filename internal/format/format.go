// Package format holds the date and number formatting shared by the analytics
// core and its presentation surfaces.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DayLayout is the layout of day keys.
const DayLayout = "2006-01-02"

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// DayKey returns the calendar day of t in loc as yyyy-mm-dd.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format(DayLayout)
}

// ParseDayKey parses a yyyy-mm-dd key as midnight in loc.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DayLayout, key, location(loc))
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(location(loc))
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayLabel renders a short chart label such as "Jan 2".
func DayLabel(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format("Jan 2")
}

// Number groups the integer part of n using the conventions of tag.
func Number(n int64, tag language.Tag) string {
	return message.NewPrinter(tag).Sprintf("%d", n)
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"BRL": "R$",
}

// Currency renders amount with two decimals and the symbol of the ISO code.
// Unknown codes are prefixed verbatim.
func Currency(amount float64, code string, tag language.Tag) string {
	code = strings.ToUpper(code)
	p := message.NewPrinter(tag)

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	formatted := p.Sprintf("%.2f", Round(amount, 2))

	if symbol, ok := currencySymbols[code]; ok {
		return sign + symbol + formatted
	}
	if code == "" {
		return sign + formatted
	}
	return sign + code + " " + formatted
}

// Percent renders v (already scaled to 0..100) with one decimal.
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", Round(v, 1))
}

// SignedPercent renders a percentage change with an explicit sign.
func SignedPercent(v float64) string {
	v = Round(v, 1)
	if v > 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}
	if v == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", v)
}

// Compact abbreviates large counts: 950, 1.2K, 3.4M, 1.1B.
func Compact(n float64) string {
	abs := math.Abs(n)
	switch {
	case abs >= 1e9:
		return trimZero(fmt.Sprintf("%.1f", n/1e9)) + "B"
	case abs >= 1e6:
		return trimZero(fmt.Sprintf("%.1f", n/1e6)) + "M"
	case abs >= 1e3:
		return trimZero(fmt.Sprintf("%.1f", n/1e3)) + "K"
	default:
		return trimZero(fmt.Sprintf("%.1f", n))
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}

// FillDailyGaps returns one point per calendar day of [start, end] in loc,
// taking existing points from points and creating the rest with zero. Points
// outside the window are dropped. points must be keyed by DayKey.
func FillDailyGaps[T any](points []T, start, end time.Time, loc *time.Location, dayOf func(T) string, zero func(day string) T) []T {
	loc = location(loc)
	if end.Before(start) {
		return []T{}
	}

	byDay := make(map[string]T, len(points))
	for _, p := range points {
		byDay[dayOf(p)] = p
	}

	last := StartOfDay(end, loc)
	out := make([]T, 0, int(last.Sub(StartOfDay(start, loc)).Hours()/24)+1)
	for day := StartOfDay(start, loc); !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(DayLayout)
		if p, ok := byDay[key]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, zero(key))
	}
	return out
}
