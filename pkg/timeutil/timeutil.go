// Package timeutil provides calendar helpers for the dojo progression engine.
// All date arithmetic works on civil dates normalised to midnight UTC so that
// results never depend on the host timezone, DST or locale.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current time. Pure functions receive a Clock instead of
// calling time.Now so they stay deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.At
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// ══════════════════════════════════════════════════════════════════════════════
// CIVIL DATES
// ══════════════════════════════════════════════════════════════════════════════

// FormatDate is the standard date format (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// Date creates a civil date at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// StartOfDay drops the clock part of t, keeping its calendar date as seen in
// t's own location, and returns it as midnight UTC.
func StartOfDay(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// StartOfMonth returns the first day of t's month at midnight UTC.
func StartOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// AddMonths adds n calendar months to the civil date of t. The day of month is
// clamped to the last day of the target month, so Jan 31 + 1 month is Feb 28
// (or 29) rather than spilling into March the way time.AddDate does.
func AddMonths(t time.Time, n int) time.Time {
	d := StartOfDay(t)
	first := Date(d.Year(), d.Month()+time.Month(n), 1)
	day := d.Day()
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date(first.Year(), first.Month(), day)
}

// DaysBetween returns the signed number of whole days from t1 to t2, comparing
// civil dates only.
func DaysBetween(t1, t2 time.Time) int {
	return int(StartOfDay(t2).Sub(StartOfDay(t1)).Hours() / 24)
}

// WholeMonths approximates the months elapsed from t1 to t2 as
// floor(days / monthLength). Negative spans count as zero months.
func WholeMonths(t1, t2 time.Time, monthLength int) int {
	if monthLength <= 0 {
		return 0
	}
	days := DaysBetween(t1, t2)
	if days <= 0 {
		return 0
	}
	return days / monthLength
}

// ParseDate parses a YYYY-MM-DD string into a civil date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(FormatDate, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid date %q: %w", value, err)
	}
	return t, nil
}

// FormatDateStr formats t as YYYY-MM-DD.
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTH SETS (closure windows)
// ══════════════════════════════════════════════════════════════════════════════

// MonthSet is an unordered set of calendar months.
type MonthSet map[time.Month]struct{}

// NewMonthSet builds a set from the given months.
func NewMonthSet(months ...time.Month) MonthSet {
	s := make(MonthSet, len(months))
	for _, m := range months {
		s[m] = struct{}{}
	}
	return s
}

// ParseMonthSet parses a comma separated list of month numbers ("7,8").
func ParseMonthSet(value string) (MonthSet, error) {
	s := MonthSet{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 12 {
			return nil, fmt.Errorf("timeutil: invalid month %q", part)
		}
		s[time.Month(n)] = struct{}{}
	}
	return s, nil
}

// Contains reports whether m is in the set.
func (s MonthSet) Contains(m time.Month) bool {
	_, ok := s[m]
	return ok
}

// Months returns the members in calendar order.
func (s MonthSet) Months() []time.Month {
	out := make([]time.Month, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as "7,8".
func (s MonthSet) String() string {
	parts := make([]string, 0, len(s))
	for _, m := range s.Months() {
		parts = append(parts, strconv.Itoa(int(m)))
	}
	return strings.Join(parts, ",")
}

// SkipMonths moves t forward to the first day of the first month that is not
// in the set. Dates outside the set are returned unchanged. A set covering all
// twelve months leaves t unchanged as there is no month to move to.
func SkipMonths(t time.Time, closed MonthSet) time.Time {
	if !closed.Contains(t.Month()) || len(closed) >= 12 {
		return t
	}
	next := StartOfMonth(t)
	for closed.Contains(next.Month()) {
		next = Date(next.Year(), next.Month()+1, 1)
	}
	return next
}
