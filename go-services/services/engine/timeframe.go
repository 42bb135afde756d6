package engine

import (
	"strconv"
	"strings"
)

// FallbackPeriodsPerYear is used for timeframes PeriodsPerYear cannot read.
const FallbackPeriodsPerYear = 252.0

// PeriodsPerYear returns the number of bars per year for a timeframe label:
// 365*24/x for "xH", 365/x for "xD", 365*24*60/x for "xm". Hours and days
// are case-insensitive; minutes must be lowercase. Anything else gets 252.
func PeriodsPerYear(tf string) float64 {
	s := strings.TrimSpace(tf)
	if len(s) < 2 {
		return FallbackPeriodsPerYear
	}
	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil || n <= 0 {
		return FallbackPeriodsPerYear
	}
	switch s[len(s)-1] {
	case 'h', 'H':
		return 365 * 24 / n
	case 'd', 'D':
		return 365 / n
	case 'm':
		return 365 * 24 * 60 / n
	}
	return FallbackPeriodsPerYear
}
