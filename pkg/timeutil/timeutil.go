// Package timeutil provides the canonical time source for the progression engine.
// Streak continuation and daily-challenge validity depend on calendar-day
// boundaries, so every component that cares about "now" receives a Clock
// instead of reading the platform clock directly. Tests inject a ManualClock.
// No external dependencies - uses only standard library.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the single source of the current instant and calendar date.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time

	// Location returns the timezone used for calendar-day boundaries.
	Location() *time.Location
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a SystemClock for the given timezone.
// A nil location defaults to UTC.
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{loc: loc}
}

// Now returns the current wall-clock time in the clock's timezone.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's timezone.
func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// ManualClock is a settable Clock for tests.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock creates a ManualClock fixed at the given instant.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the currently set instant.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Location returns the timezone of the currently set instant.
func (c *ManualClock) Location() *time.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now.Location()
}

// Set moves the clock to the given instant.
func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StartOfDay returns the start of the day (00:00:00) in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of the day in t's location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// IsSameDay checks if two times fall on the same calendar day.
// t2 is converted into t1's location before comparing.
func IsSameDay(t1, t2 time.Time) bool {
	b := t2.In(t1.Location())
	return t1.Year() == b.Year() && t1.YearDay() == b.YearDay()
}

// IsNextDay checks if t2 falls on the calendar day after t1.
func IsNextDay(t1, t2 time.Time) bool {
	return IsSameDay(t1.AddDate(0, 0, 1), t2)
}

// DaysBetween calculates the number of whole calendar days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2.In(t1.Location()))
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// HoursSince returns the elapsed hours between then and now.
func HoursSince(then, now time.Time) float64 {
	return now.Sub(then).Hours()
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04:05"
)

// DayStamp formats a time as its calendar-day key (YYYY-MM-DD).
// Daily challenges and streak records are keyed by this value.
func DayStamp(t time.Time) string {
	return t.Format(FormatDate)
}

// ParseDayStamp parses a calendar-day key in the given location.
func ParseDayStamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(FormatDate, value, loc)
}

// NextMidnight returns the first instant of the day after t.
func NextMidnight(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// UntilNextMidnight returns the duration from t until the next day boundary.
func UntilNextMidnight(t time.Time) time.Duration {
	return NextMidnight(t).Sub(t)
}
