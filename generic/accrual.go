package generic

// =============================================================================
// ACCRUAL SCHEDULE - Interface for how obligations accumulate
// =============================================================================

// AccrualSchedule generates accrual events for a time range.
// Implementations define the business logic (monthly salary, per-day, ...).
type AccrualSchedule interface {
	// GenerateAccruals returns accrual events in [from, to].
	GenerateAccruals(from, to TimePoint) []AccrualEvent
}

// AccrualEvent represents a single accrual occurrence.
type AccrualEvent struct {
	At     TimePoint
	Amount Amount
	Reason string
}

// SumAccruals totals the events' amounts in unit.
func SumAccruals(events []AccrualEvent, unit Unit) Amount {
	total := Amount{Unit: unit}
	for _, e := range events {
		total = total.Add(e.Amount)
	}
	return total
}
