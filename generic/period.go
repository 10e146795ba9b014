package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - A pay period, always one calendar month
// =============================================================================

// Period is an inclusive date range. Payroll uses calendar-month periods:
// attendance, current-month earnings and advances never cross a month
// boundary.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MonthOf returns the calendar month containing date.
func MonthOf(date TimePoint) Period {
	return Period{
		Start: StartOfMonth(date.Year(), date.Month()),
		End:   EndOfMonth(date.Year(), date.Month()),
	}
}

// ParseMonth parses a YYYY-MM month into its period.
func ParseMonth(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(DateOf(t)), nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Len is the inclusive number of days in the period.
func (p Period) Len() int { return DaysInclusive(p.Start, p.End) }

// Validate rejects periods that end before they start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Key is the YYYY-MM label used by caches and the API.
func (p Period) Key() string {
	return p.Start.Time.Format("2006-01")
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// NextPeriod returns the following calendar month.
func (p Period) NextPeriod() Period {
	return MonthOf(p.End.AddDays(1))
}

// PreviousPeriod returns the preceding calendar month.
func (p Period) PreviousPeriod() Period {
	return MonthOf(p.Start.AddDays(-1))
}
