package propagation

import (
	"math"
	"time"
)

// DateLayout is the only accepted date spelling.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight. Impossible
// dates such as 2025-13-40 or 2023-02-29 are rejected, never normalized.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, &DateError{Input: s}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &DateError{Input: s, Err: err}
	}
	return t, nil
}

// ElapsedDays returns the whole signed days from epoch to date.
func ElapsedDays(epoch, date time.Time) int {
	return int(math.Round(date.Sub(epoch).Hours() / 24))
}

// midnight truncates t to its UTC calendar day.
func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
