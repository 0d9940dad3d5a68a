package schedule

import "time"

// All engine arithmetic is calendar-day granular: dates are UTC midnights
// and lags are whole days. Business-day and timezone logic belong to an
// external calendar collaborator, not here.

// Dates outside this range fail the affected node with a date-overflow
// conflict instead of wrapping.
var (
	minDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Day returns the UTC midnight for a calendar day.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ToDay truncates an arbitrary time to its UTC calendar day.
func ToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addDays applies a signed day offset, reporting false when the result
// leaves the representable date range.
func addDays(t time.Time, days int) (time.Time, bool) {
	out := t.AddDate(0, 0, days)
	if out.Before(minDate) || out.After(maxDate) {
		return time.Time{}, false
	}
	return out, true
}

// daysBetween returns the whole days from a to b (negative when b precedes a).
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// formatDay renders a date as YYYY-MM-DD for report rules and logs.
func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
