/*
Package payroll implements the payroll accrual and reconciliation engine.

PURPOSE:
  Turns "an employee started on date X, earns Y per month, has been marked
  present on certain days, and has been paid Z so far" into a consistent set
  of derived numbers, and allocates an incoming payment across competing
  obligations in a fixed priority order.

COMPONENTS:
  accrual.go:   Straight-line monthly salary accrual
  earnings.go:  Attendance-based current-month earnings
  waterfall.go: Payment allocation over ordered buckets
  contract.go:  Labor contract ledger (open/closed agreements, rollover)
  reconcile.go: Cached vs live earnings drift detection
  service.go:   Read-compute-write orchestration over the stores

PURITY:
  Every calculator is a pure function of its input snapshot. No wall-clock
  reads, no shared state; the as-of date is always supplied. Only
  service.go touches storage, and it serializes work per employee.

SEE ALSO:
  - generic/time.go: Calendar utilities
  - generic/ledger.go: Payment ledger
  - store/sqlite/sqlite.go: Persistence
*/
package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// EMPLOYEE
// =============================================================================

// EmployeeKind is a closed set: salaried employees accrue by calendar time and
// are attendance tracked, project-based employees are paid per labor contract.
type EmployeeKind string

const (
	KindSalaried     EmployeeKind = "COMPANY"
	KindProjectBased EmployeeKind = "PROJECT"
)

func (k EmployeeKind) Valid() bool {
	return k == KindSalaried || k == KindProjectBased
}

// AttendanceTracked reports whether attendance marks apply to this kind.
func (k EmployeeKind) AttendanceTracked() bool { return k == KindSalaried }

// Employee is the record the engine reads. Cumulative paid is not stored
// here; it is replayed from the payment ledger.
type Employee struct {
	ID            generic.EmployeeID
	Name          string
	Kind          EmployeeKind
	MonthlySalary decimal.Decimal
	StartDate     generic.TimePoint
	CreatedAt     generic.TimePoint
}

// Salaried returns the attendance-tracked view of e. The earnings calculator
// is only reachable through that view.
func (e Employee) Salaried() (SalariedEmployee, bool) {
	if !e.Kind.AttendanceTracked() {
		return SalariedEmployee{}, false
	}
	return SalariedEmployee{employee: e}, true
}

// SalariedEmployee is an Employee known to be on the attendance model.
type SalariedEmployee struct {
	employee Employee
}

func (s SalariedEmployee) Employee() Employee { return s.employee }

// Earnings evaluates the attendance-based earnings model for s.
func (s SalariedEmployee) Earnings(asOf generic.TimePoint, cumulativePaid decimal.Decimal, attendance []AttendanceRecord) Earnings {
	return CalculateEarnings(EarningsInput{
		MonthlySalary:  s.employee.MonthlySalary,
		StartDate:      s.employee.StartDate,
		AsOf:           asOf,
		CumulativePaid: cumulativePaid,
		Attendance:     attendance,
	})
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceRecord is an explicit mark. A date with no record is unmarked,
// which is not the same as Worked == false.
type AttendanceRecord struct {
	EmployeeID generic.EmployeeID
	Date       generic.TimePoint
	Worked     bool
}
