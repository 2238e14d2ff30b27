// Package holidays defines the collaborator interface the pipeline uses to
// exclude holiday observations from day-level analysis. It intentionally
// carries no per-country holiday data: spec.md's Non-goals exclude
// holiday-calendar data, so only the interface and minimal implementations
// needed to exercise the CLI's filtering step end to end are provided.
package holidays

import "time"

// Calendar reports whether a given date is a holiday in the given ISO
// country code.
type Calendar interface {
	IsHoliday(t time.Time, country string) bool
}

// NoHolidays is a Calendar that never reports a holiday, the default when
// no calendar is configured.
type NoHolidays struct{}

// IsHoliday always returns false.
func (NoHolidays) IsHoliday(time.Time, string) bool { return false }

// FixedDateCalendar recognises New Year's Day and Christmas only,
// regardless of country, sufficient to exercise filtering without
// attempting to port a full per-country holiday table.
type FixedDateCalendar struct{}

// IsHoliday returns true for January 1 and December 25.
func (FixedDateCalendar) IsHoliday(t time.Time, _ string) bool {
	return (t.Month() == time.January && t.Day() == 1) ||
		(t.Month() == time.December && t.Day() == 25)
}
