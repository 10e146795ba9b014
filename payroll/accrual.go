package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SALARY ACCRUAL - Straight-line monthly model
// =============================================================================

// AccrualInput is the snapshot the accrual calculator works from.
type AccrualInput struct {
	MonthlySalary  decimal.Decimal
	StartDate      generic.TimePoint
	AsOf           generic.TimePoint
	CumulativePaid decimal.Decimal
}

// Accrual is salary owed for elapsed calendar time, ignoring attendance.
type Accrual struct {
	MonthsWorked    int
	TotalSalaryOwed decimal.Decimal
	// RemainingSalary is owed minus paid; negative means overpaid.
	RemainingSalary decimal.Decimal
}

// Overpaid reports whether payments exceed straight-line accrual.
func (a Accrual) Overpaid() bool { return a.RemainingSalary.IsNegative() }

// CalculateAccrual applies the straight-line model: every month touched
// between start and asOf, start month and current partial month included,
// is owed in full.
//
// Not-yet-started employees, a missing start date and negative salaries
// yield zero months and zero owed; payments already made then show as a
// negative remaining balance.
func CalculateAccrual(in AccrualInput) Accrual {
	var months int
	if !in.StartDate.IsZero() && !in.MonthlySalary.IsNegative() {
		months = generic.MonthsElapsed(in.StartDate, in.AsOf)
	}
	owed := decimal.Zero
	if months > 0 {
		owed = in.MonthlySalary.Mul(decimal.NewFromInt(int64(months)))
	}
	return Accrual{
		MonthsWorked:    months,
		TotalSalaryOwed: owed,
		RemainingSalary: owed.Sub(in.CumulativePaid),
	}
}

// =============================================================================
// MONTHLY SALARY SCHEDULE - generic.AccrualSchedule for salary
// =============================================================================

// MonthlySalary emits one accrual event per calendar month of tenure, dated
// on the first of the month (or the start date for the first month).
type MonthlySalary struct {
	Salary    decimal.Decimal
	StartDate generic.TimePoint
}

func (m MonthlySalary) GenerateAccruals(from, to generic.TimePoint) []generic.AccrualEvent {
	if m.Salary.IsNegative() || m.StartDate.IsZero() {
		return nil
	}
	from = generic.LaterOf(from, m.StartDate)
	if to.Before(from) {
		return nil
	}

	var events []generic.AccrualEvent
	current := generic.StartOfMonth(from.Year(), from.Month())
	for current.BeforeOrEqual(to) {
		at := generic.LaterOf(current, from)
		events = append(events, generic.AccrualEvent{
			At:     at,
			Amount: generic.NewMoney(m.Salary),
			Reason: "salary " + generic.MonthOf(at).Key(),
		})
		current = current.AddMonths(1)
	}
	return events
}
