package database

import "time"

// Timestamps are stored as RFC 3339 UTC strings and calendar dates as
// YYYY-MM-DD UTC strings, so lexicographic comparison matches time order.

// FormatTime renders an instant for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// DateOf returns the UTC calendar date of t.
// Daily-quota resets compare this against the stored last_reset_date.
func DateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
