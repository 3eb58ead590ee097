package domain

import "time"

// DateLayout is the calendar-date format used throughout the service.
const DateLayout = "2006-01-02"

// FormatDate renders t as a calendar date string.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, date)
}

// IsValidDate reports whether date is a well-formed YYYY-MM-DD string.
func IsValidDate(date string) bool {
	_, err := ParseDate(date)
	return err == nil
}

// IsFutureDate reports whether date falls after today.
func IsFutureDate(date string, now time.Time) bool {
	t, err := ParseDate(date)
	if err != nil {
		return false
	}

	return FormatDate(t) > FormatDate(now)
}

// DateRange returns every date from start through end, inclusive.
// Returns nil if start is after end.
func DateRange(start, end time.Time) []string {
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, FormatDate(d))
	}

	return dates
}

// AdjacentDates returns the dates to prefetch around a focus date:
// the previous day always, and the next day unless it is in the future.
func AdjacentDates(date string, now time.Time) []string {
	t, err := ParseDate(date)
	if err != nil {
		return nil
	}

	dates := []string{FormatDate(t.AddDate(0, 0, -1))}

	next := FormatDate(t.AddDate(0, 0, 1))
	if next <= FormatDate(now) {
		dates = append(dates, next)
	}

	return dates
}
