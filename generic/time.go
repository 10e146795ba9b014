package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Calendar date, time-of-day carries no meaning in payroll
// =============================================================================

type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops time-of-day and location from t.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return TimePoint{}, err
	}
	return DateOf(t), nil
}

func Today() TimePoint {
	return DateOf(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

// SameMonth reports whether both dates fall in the same calendar month.
func (tp TimePoint) SameMonth(other TimePoint) bool {
	return tp.Year() == other.Year() && tp.Month() == other.Month()
}

func (tp TimePoint) String() string {
	return tp.Time.Format(time.DateOnly)
}

// =============================================================================
// CALENDAR UTILITIES
// =============================================================================

// DaysInMonth returns the number of calendar days in month/year.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthsElapsed counts calendar months from the month containing start up to
// and including the month containing asOf. A partial month counts as one, so
// the result is at least 1 whenever start <= asOf, and 0 when asOf < start.
func MonthsElapsed(start, asOf TimePoint) int {
	if asOf.Before(start) {
		return 0
	}
	return (asOf.Year()-start.Year())*12 + int(asOf.Month()-start.Month()) + 1
}

// DaysInclusive counts calendar days in [from, to]. Returns 0 when to < from.
func DaysInclusive(from, to TimePoint) int {
	if to.Before(from) {
		return 0
	}
	return DaysBetween(from, to) + 1
}

// DaysBetween is the signed whole-day difference to - from. It works on
// Unix seconds because a time.Duration saturates after about 292 years.
func DaysBetween(from, to TimePoint) int {
	const secondsPerDay = 24 * 60 * 60
	return int((to.normalize().Unix() - from.normalize().Unix()) / secondsPerDay)
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month, DaysInMonth(year, month))
}

// LaterOf returns the later of two dates.
func LaterOf(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}
