/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Money fields are decimal.Decimal and serialize as JSON strings
  ("9677.4193548387"), so clients never see binary float rounding.
  Requests accept either strings or numbers.

DATES:
  Calendar dates are YYYY-MM-DD, months YYYY-MM, audit timestamps RFC3339.

VALIDATION:
  Validation is done in handlers and the service, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - payroll/: Domain types these are converted from
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	StartDate     string          `json:"start_date"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Kind          string          `json:"kind"` // COMPANY or PROJECT
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	StartDate     string          `json:"start_date"`
}

// =============================================================================
// SUMMARY
// =============================================================================

type AccrualDTO struct {
	MonthsWorked    int             `json:"months_worked"`
	TotalSalaryOwed decimal.Decimal `json:"total_salary_owed"`
	RemainingSalary decimal.Decimal `json:"remaining_salary"`
	Overpaid        bool            `json:"overpaid"`
}

type EarningsDTO struct {
	DailyRate                    decimal.Decimal `json:"daily_rate"`
	DaysInMonth                  int             `json:"days_in_month"`
	DaysWorkedThisMonth          int             `json:"days_worked_this_month"`
	EarnedThisMonth              decimal.Decimal `json:"earned_this_month"`
	TotalDaysShouldWork          int             `json:"total_days_should_work"`
	DaysElapsedThisMonth         int             `json:"days_elapsed_this_month"`
	DaysPaidFor                  decimal.Decimal `json:"days_paid_for"`
	UnpaidDaysFromPreviousMonths decimal.Decimal `json:"unpaid_days_from_previous_months"`
	TotalUnpaidDays              decimal.Decimal `json:"total_unpaid_days"`
	PriorMonthsOwed              decimal.Decimal `json:"prior_months_owed"`
	PreviousMonthsRemaining      decimal.Decimal `json:"previous_months_remaining"`
	ThisMonthOutstanding         decimal.Decimal `json:"this_month_outstanding"`
	AdvancedDays                 int             `json:"advanced_days"`
	RemainingDaysInMonth         int             `json:"remaining_days_in_month"`
	OverpaidAmount               decimal.Decimal `json:"overpaid_amount"`
	Overpaid                     bool            `json:"overpaid"`
}

// ReconciliationDTO shows both figures; the client decides whether to refresh.
type ReconciliationDTO struct {
	Cached            *decimal.Decimal `json:"cached"` // null when nothing is cached
	Fresh             decimal.Decimal  `json:"fresh"`
	Drift             decimal.Decimal  `json:"drift"`
	IsSynced          bool             `json:"is_synced"`
	RecomputeRequired bool             `json:"recompute_required"`
	Stale             bool             `json:"stale"`
}

type ContractDTO struct {
	ID          string          `json:"id"`
	EmployeeID  string          `json:"employee_id"`
	Scope       string          `json:"scope"`
	AgreedWage  decimal.Decimal `json:"agreed_wage"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Remaining   decimal.Decimal `json:"remaining"`
	Open        bool            `json:"open"`
	CreatedAt   string          `json:"created_at"`
	ClosedAt    *string         `json:"closed_at,omitempty"`
	CloseReason string          `json:"close_reason,omitempty"`
	Version     int64           `json:"version"`
}

// AccrualEventDTO is one month of straight-line salary.
type AccrualEventDTO struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// SummaryDTO is the employee screen.
type SummaryDTO struct {
	Employee       EmployeeDTO        `json:"employee"`
	AsOf           string             `json:"as_of"`
	CumulativePaid decimal.Decimal    `json:"cumulative_paid"`
	Accrual        AccrualDTO         `json:"accrual"`
	Schedule       []AccrualEventDTO  `json:"schedule,omitempty"`
	Earnings       *EarningsDTO       `json:"earnings,omitempty"`
	Reconciliation *ReconciliationDTO `json:"reconciliation,omitempty"`
	OpenContracts  []ContractDTO      `json:"open_contracts"`
	DataVersion    int64              `json:"data_version"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceDTO struct {
	Date   string `json:"date"`
	Worked bool   `json:"worked"`
}

// MarkAttendanceRequest carries explicit marks, a whole range, or both.
type MarkAttendanceRequest struct {
	Marks []AttendanceDTO `json:"marks"`
	Range *struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Worked bool   `json:"worked"`
	} `json:"range,omitempty"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date"`
	IdempotencyKey string          `json:"idempotency_key"`
	Reason         string          `json:"reason"`
	CreatedBy      string          `json:"created_by"`
}

type AllocationDTO struct {
	PaidToPriorPeriods        decimal.Decimal `json:"paid_to_prior_periods"`
	PaidToCurrentPeriodWorked decimal.Decimal `json:"paid_to_current_period_worked"`
	AdvanceForUnworkedDays    decimal.Decimal `json:"advance_for_unworked_days"`
	AdvanceDays               int             `json:"advance_days"`
	ResidualUnallocated       decimal.Decimal `json:"residual_unallocated"`
	Total                     decimal.Decimal `json:"total"`
}

type PaymentReceiptDTO struct {
	Transaction TransactionDTO `json:"transaction"`
	Allocation  AllocationDTO  `json:"allocation"`
	Accrual     AccrualDTO     `json:"accrual_before"`
	Earnings    *EarningsDTO   `json:"earnings_before,omitempty"`
}

// AllocationPreviewRequest either names an employee (amount and date are
// evaluated against their state) or supplies the waterfall inputs directly.
type AllocationPreviewRequest struct {
	EmployeeID string          `json:"employee_id"`
	Date       string          `json:"date"`
	Amount     decimal.Decimal `json:"amount"`

	PreviousMonthsRemaining     decimal.Decimal `json:"previous_months_remaining"`
	ThisMonthEarned             decimal.Decimal `json:"this_month_earned"`
	PaymentAmount               decimal.Decimal `json:"payment_amount"`
	DailyRate                   decimal.Decimal `json:"daily_rate"`
	RemainingDaysInCurrentMonth int             `json:"remaining_days_in_current_month"`
}

// ReversalRequest is the optional body of a reversal. Date defaults to the
// original payment's effective date.
type ReversalRequest struct {
	Date      string `json:"date,omitempty"`
	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by"`
}

// TransactionDTO represents a ledger transaction.
type TransactionDTO struct {
	ID             string            `json:"id"`
	EmployeeID     string            `json:"employee_id"`
	Scope          string            `json:"scope"`
	EffectiveAt    string            `json:"effective_at"`
	Amount         decimal.Decimal   `json:"amount"`
	Type           string            `json:"type"`
	ReferenceID    string            `json:"reference_id,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedBy      string            `json:"created_by,omitempty"`
	CreatedAt      string            `json:"created_at,omitempty"`
}

type SnapshotDTO struct {
	EmployeeID string          `json:"employee_id"`
	Period     string          `json:"period"`
	Value      decimal.Decimal `json:"value"`
	Version    int64           `json:"version"`
	TakenAt    string          `json:"taken_at"`
	Reason     string          `json:"reason"`
}

// =============================================================================
// CONTRACTS
// =============================================================================

// ContractPaymentRequest is one save of the wage form. Action is "continue"
// (default) or "close_and_reopen" with new_agreed_wage.
type ContractPaymentRequest struct {
	Scope          string           `json:"scope"`
	AgreedWage     *decimal.Decimal `json:"agreed_wage"`
	Amount         decimal.Decimal  `json:"amount"`
	Date           string           `json:"date"`
	Action         string           `json:"action"`
	NewAgreedWage  decimal.Decimal  `json:"new_agreed_wage"`
	IdempotencyKey string           `json:"idempotency_key"`
	CreatedBy      string           `json:"created_by"`
}

type ContractReceiptDTO struct {
	Contract    ContractDTO     `json:"contract"`
	Abandoned   *ContractDTO    `json:"abandoned,omitempty"`
	Opened      bool            `json:"opened"`
	AutoClosed  bool            `json:"auto_closed"`
	Applied     decimal.Decimal `json:"applied"`
	Excess      decimal.Decimal `json:"excess"`
	Transaction *TransactionDTO `json:"transaction,omitempty"`
}

// PreviousWageDTO is what the wage form pre-fills from. Contract is null
// when a new agreed wage must be entered.
type PreviousWageDTO struct {
	Scope    string       `json:"scope"`
	Contract *ContractDTO `json:"contract"`
}

// =============================================================================
// RECONCILIATION & SCENARIOS
// =============================================================================

type DriftRunDTO struct {
	ID         string           `json:"id"`
	EmployeeID string           `json:"employee_id"`
	Period     string           `json:"period"`
	Status     string           `json:"status"`
	Cached     *decimal.Decimal `json:"cached"`
	Fresh      decimal.Decimal  `json:"fresh"`
	Drift      decimal.Decimal  `json:"drift"`
	Error      string           `json:"error,omitempty"`
	CheckedAt  string           `json:"checked_at"`
}

type DriftCheckRequest struct {
	EmployeeID string `json:"employee_id"` // empty checks everyone
	AsOf       string `json:"as_of"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e payroll.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:            string(e.ID),
		Name:          e.Name,
		Kind:          string(e.Kind),
		MonthlySalary: e.MonthlySalary,
		StartDate:     e.StartDate.String(),
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Time.Format(time.RFC3339)
	}
	return dto
}

func toAccrualDTO(a payroll.Accrual) AccrualDTO {
	return AccrualDTO{
		MonthsWorked:    a.MonthsWorked,
		TotalSalaryOwed: a.TotalSalaryOwed,
		RemainingSalary: a.RemainingSalary,
		Overpaid:        a.Overpaid(),
	}
}

func toEarningsDTO(e *payroll.Earnings) *EarningsDTO {
	if e == nil {
		return nil
	}
	return &EarningsDTO{
		DailyRate:                    e.DailyRate,
		DaysInMonth:                  e.DaysInMonth,
		DaysWorkedThisMonth:          e.DaysWorkedThisMonth,
		EarnedThisMonth:              e.EarnedThisMonth,
		TotalDaysShouldWork:          e.TotalDaysShouldWork,
		DaysElapsedThisMonth:         e.DaysElapsedThisMonth,
		DaysPaidFor:                  e.DaysPaidFor,
		UnpaidDaysFromPreviousMonths: e.UnpaidDaysFromPreviousMonths,
		TotalUnpaidDays:              e.TotalUnpaidDays,
		PriorMonthsOwed:              e.PriorMonthsOwed,
		PreviousMonthsRemaining:      e.PreviousMonthsRemaining,
		ThisMonthOutstanding:         e.ThisMonthOutstanding,
		AdvancedDays:                 e.AdvancedDays,
		RemainingDaysInMonth:         e.RemainingDaysInMonth,
		OverpaidAmount:               e.OverpaidAmount,
		Overpaid:                     e.IsOverpaid(),
	}
}

func toReconciliationDTO(r *payroll.Reconciliation) *ReconciliationDTO {
	if r == nil {
		return nil
	}
	dto := &ReconciliationDTO{
		Fresh:             r.Fresh,
		Drift:             r.Drift,
		IsSynced:          r.IsSynced,
		RecomputeRequired: r.RecomputeRequired,
		Stale:             r.Stale,
	}
	if r.HasCache {
		cached := r.Cached
		dto.Cached = &cached
	}
	return dto
}

func toContractDTO(c payroll.LaborContract) ContractDTO {
	dto := ContractDTO{
		ID:          c.ID,
		EmployeeID:  string(c.EmployeeID),
		Scope:       string(c.Scope),
		AgreedWage:  c.AgreedWage,
		PaidAmount:  c.PaidAmount,
		Remaining:   c.Remaining(),
		Open:        c.IsOpen(),
		CreatedAt:   c.CreatedAt.String(),
		CloseReason: string(c.CloseReason),
		Version:     c.Version,
	}
	if c.ClosedAt != nil {
		s := c.ClosedAt.String()
		dto.ClosedAt = &s
	}
	return dto
}

func toContractDTOs(cs []payroll.LaborContract) []ContractDTO {
	dtos := make([]ContractDTO, len(cs))
	for i, c := range cs {
		dtos[i] = toContractDTO(c)
	}
	return dtos
}

func toSummaryDTO(s payroll.Summary) SummaryDTO {
	return SummaryDTO{
		Employee:       toEmployeeDTO(s.Employee),
		AsOf:           s.AsOf.String(),
		CumulativePaid: s.CumulativePaid,
		Accrual:        toAccrualDTO(s.Accrual),
		Schedule:       toAccrualEventDTOs(s.Schedule),
		Earnings:       toEarningsDTO(s.Earnings),
		Reconciliation: toReconciliationDTO(s.Reconciliation),
		OpenContracts:  toContractDTOs(s.OpenContracts),
		DataVersion:    s.DataVersion,
	}
}

func toAccrualEventDTOs(events []generic.AccrualEvent) []AccrualEventDTO {
	if len(events) == 0 {
		return nil
	}
	out := make([]AccrualEventDTO, len(events))
	for i, e := range events {
		out[i] = AccrualEventDTO{Date: e.At.String(), Amount: e.Amount.Value, Reason: e.Reason}
	}
	return out
}

func toAllocationDTO(a payroll.AllocationResult) AllocationDTO {
	return AllocationDTO{
		PaidToPriorPeriods:        a.PaidToPriorPeriods,
		PaidToCurrentPeriodWorked: a.PaidToCurrentPeriodWorked,
		AdvanceForUnworkedDays:    a.AdvanceForUnworkedDays,
		AdvanceDays:               a.AdvanceDays,
		ResidualUnallocated:       a.ResidualUnallocated,
		Total:                     a.Total(),
	}
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:             string(tx.ID),
		EmployeeID:     string(tx.EmployeeID),
		Scope:          string(tx.Scope),
		EffectiveAt:    tx.EffectiveAt.String(),
		Amount:         tx.Amount.Value,
		Type:           string(tx.Type),
		ReferenceID:    tx.ReferenceID,
		Reason:         tx.Reason,
		IdempotencyKey: tx.IdempotencyKey,
		Metadata:       tx.Metadata,
		CreatedBy:      tx.CreatedBy,
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.Time.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toSnapshotDTO(s generic.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		EmployeeID: string(s.EmployeeID),
		Period:     s.Period.Key(),
		Value:      s.Value.Value,
		Version:    s.Version,
		TakenAt:    s.TakenAt.String(),
		Reason:     string(s.Reason),
	}
}

func toDriftRunDTO(r sqlite.DriftRun) DriftRunDTO {
	return DriftRunDTO{
		ID:         r.ID,
		EmployeeID: string(r.EmployeeID),
		Period:     r.Period,
		Status:     r.Status,
		Cached:     r.Cached,
		Fresh:      r.Fresh,
		Drift:      r.Drift,
		Error:      r.Error,
		CheckedAt:  r.CheckedAt.Format(time.RFC3339),
	}
}
