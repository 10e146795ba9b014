package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// ATTENDANCE-BASED EARNINGS - What has actually been earned this month
// =============================================================================

// EarningsInput is the snapshot the earnings calculator works from.
// Attendance may contain records from any month; only asOf's month counts.
type EarningsInput struct {
	MonthlySalary  decimal.Decimal
	StartDate      generic.TimePoint
	AsOf           generic.TimePoint
	CumulativePaid decimal.Decimal
	Attendance     []AttendanceRecord
}

// Earnings answers "how much has this employee earned so far this month,
// and how do payments to date line up against it".
//
// Day counts derived from money (DaysPaidFor and the unpaid-day figures) are
// fractional: they convert currency to days at the current daily rate.
type Earnings struct {
	DailyRate           decimal.Decimal
	DaysInMonth         int
	DaysWorkedThisMonth int
	EarnedThisMonth     decimal.Decimal

	// Full expected window, start date to asOf inclusive.
	TotalDaysShouldWork int
	// Days of the current month inside that window.
	DaysElapsedThisMonth int

	// Payments to date expressed in days at the current daily rate.
	// Historical months at a different salary are not re-priced.
	DaysPaidFor                  decimal.Decimal
	UnpaidDaysFromPreviousMonths decimal.Decimal
	TotalUnpaidDays              decimal.Decimal

	// Straight-line salary of the completed months before this one.
	PriorMonthsOwed decimal.Decimal
	// What is still owed for those months.
	PreviousMonthsRemaining decimal.Decimal
	// This month's earnings not yet covered by payments.
	ThisMonthOutstanding decimal.Decimal
	// Whole days of this month already paid in advance.
	AdvancedDays int
	// Days of this month neither worked nor advanced yet.
	RemainingDaysInMonth int

	OverpaidAmount decimal.Decimal
}

// IsOverpaid reports whether payments exceed what attendance justifies.
func (e Earnings) IsOverpaid() bool { return e.OverpaidAmount.IsPositive() }

// CalculateEarnings evaluates the attendance model at in.AsOf.
func CalculateEarnings(in EarningsInput) Earnings {
	salary := generic.ClampZero(in.MonthlySalary)
	paid := in.CumulativePaid
	month := generic.MonthOf(in.AsOf)

	out := Earnings{DaysInMonth: month.Len()}
	out.DailyRate = salary.Div(decimal.NewFromInt(int64(out.DaysInMonth)))

	out.DaysWorkedThisMonth = countWorked(in.Attendance, month)
	out.EarnedThisMonth = out.DailyRate.Mul(decimal.NewFromInt(int64(out.DaysWorkedThisMonth)))

	started := !in.StartDate.IsZero() && in.StartDate.BeforeOrEqual(in.AsOf)
	if started {
		out.TotalDaysShouldWork = generic.DaysInclusive(in.StartDate, in.AsOf)
		out.DaysElapsedThisMonth = generic.DaysInclusive(generic.LaterOf(in.StartDate, month.Start), in.AsOf)
		if months := generic.MonthsElapsed(in.StartDate, in.AsOf); months > 1 {
			out.PriorMonthsOwed = salary.Mul(decimal.NewFromInt(int64(months - 1)))
		}
	}

	if out.DailyRate.IsPositive() {
		out.DaysPaidFor = paid.Div(out.DailyRate)
	}

	priorDays := decimal.NewFromInt(int64(out.TotalDaysShouldWork - out.DaysElapsedThisMonth))
	worked := decimal.NewFromInt(int64(out.DaysWorkedThisMonth))
	paidDaysThisMonth := generic.ClampZero(out.DaysPaidFor.Sub(priorDays))
	out.UnpaidDaysFromPreviousMonths = generic.ClampZero(priorDays.Sub(out.DaysPaidFor))
	out.TotalUnpaidDays = out.UnpaidDaysFromPreviousMonths.Add(generic.ClampZero(worked.Sub(paidDaysThisMonth)))

	out.PreviousMonthsRemaining = generic.ClampZero(out.PriorMonthsOwed.Sub(paid))
	paidIntoThisMonth := generic.ClampZero(paid.Sub(out.PriorMonthsOwed))
	out.ThisMonthOutstanding = generic.ClampZero(out.EarnedThisMonth.Sub(paidIntoThisMonth))

	aheadOfWork := generic.ClampZero(paidIntoThisMonth.Sub(out.EarnedThisMonth))
	if out.DailyRate.IsPositive() {
		out.AdvancedDays = int(aheadOfWork.Div(out.DailyRate).Floor().IntPart())
	}
	remaining := out.DaysInMonth - out.DaysWorkedThisMonth - out.AdvancedDays
	if remaining > 0 {
		out.RemainingDaysInMonth = remaining
	}

	out.OverpaidAmount = generic.ClampZero(paid.Sub(out.EarnedThisMonth.Add(out.PriorMonthsOwed)))
	return out
}

// countWorked counts dates in period marked worked. A later record for the
// same date replaces an earlier one.
func countWorked(records []AttendanceRecord, period generic.Period) int {
	byDate := make(map[string]bool, len(records))
	for _, r := range records {
		if period.Contains(r.Date) {
			byDate[r.Date.String()] = r.Worked
		}
	}
	n := 0
	for _, worked := range byDate {
		if worked {
			n++
		}
	}
	return n
}

// AllocationInputFor builds the waterfall input for a payment of amount
// against the earnings state e.
func (e Earnings) AllocationInputFor(amount decimal.Decimal) AllocationInput {
	return AllocationInput{
		PreviousMonthsRemaining:     e.PreviousMonthsRemaining,
		ThisMonthEarned:             e.ThisMonthOutstanding,
		PaymentAmount:               amount,
		DailyRate:                   e.DailyRate,
		RemainingDaysInCurrentMonth: e.RemainingDaysInMonth,
	}
}
