// Package utils provides date arithmetic and formatting helpers shared by
// the calculation engine and the CLI.
package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date layout used on every record.
const DateLayout = "2006-01-02"

// DaysPerYear is the year length used for durations and elapsed time.
const DaysPerYear = 365.0

// DaysPerMonth is the month approximation used when stepping LGD curves.
const DaysPerMonth = 30

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
}

// ParseDate parses an ISO date or timestamp into a UTC time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// YearsBetween returns the elapsed time in 365-day years. Negative when end
// precedes start.
func YearsBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / DaysPerYear
}

// AddApproxMonths steps t forward by months using 30-day months. The
// resulting calendar drift is intended.
func AddApproxMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, 0, DaysPerMonth*months)
}

// AddMonths steps t forward by months of calendar time. A day that does not
// exist in the target month rolls back to its last day, so Jan 31 + 1 month
// is Feb 28 (or 29), never early March.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
