package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SERVICE - read, compute, write, one employee at a time
// =============================================================================

// Service wires the pure calculators to storage.
//
// CONCURRENCY:
//   Every read-compute-write cycle holds a per-employee lock, so two payments
//   for the same employee cannot both allocate against the same remaining
//   balance. Contract writes additionally go through the store's
//   compare-and-swap, which also protects against other processes.
//
// CACHE:
//   Attendance and payment writes bump the employee's data version.
//   Summary compares the cached current-month earnings with a live
//   recomputation and reports drift; only RefreshEarnings replaces the cache.
type Service struct {
	Repo      Repository
	Ledger    generic.Ledger
	Snapshots generic.SnapshotStore
	Logger    *slog.Logger

	// NewID generates transaction and contract IDs.
	NewID func() string

	locks keyedMutex
}

// NewService creates a service over repo with snapshots as the derived cache.
func NewService(repo Repository, snapshots generic.SnapshotStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Repo:      repo,
		Ledger:    generic.NewLedger(repo),
		Snapshots: snapshots,
		Logger:    logger,
		NewID:     uuid.NewString,
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// CreateEmployee validates and stores a new employee. An empty ID is
// generated.
func (s *Service) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	if !e.Kind.Valid() {
		return Employee{}, fmt.Errorf("%w: unknown kind %q", generic.ErrInvalidEmployee, e.Kind)
	}
	if e.MonthlySalary.IsNegative() {
		return Employee{}, fmt.Errorf("%w: negative monthly salary", generic.ErrInvalidEmployee)
	}
	if e.StartDate.IsZero() {
		return Employee{}, fmt.Errorf("%w: start date required", generic.ErrInvalidEmployee)
	}
	if e.ID == "" {
		e.ID = generic.EmployeeID(s.NewID())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = generic.TimePoint{Time: time.Now().UTC()}
	}
	if err := s.Repo.SaveEmployee(ctx, e); err != nil {
		return Employee{}, fmt.Errorf("save employee: %w", err)
	}
	s.Logger.Info("employee created",
		slog.String("employee_id", string(e.ID)),
		slog.String("kind", string(e.Kind)),
	)
	return e, nil
}

// Employee returns one employee.
func (s *Service) Employee(ctx context.Context, id generic.EmployeeID) (Employee, error) {
	e, err := s.Repo.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	return *e, nil
}

// Employees lists every employee.
func (s *Service) Employees(ctx context.Context) ([]Employee, error) {
	return s.Repo.ListEmployees(ctx)
}

// Transactions returns the employee's ledger for scope, oldest first.
func (s *Service) Transactions(ctx context.Context, id generic.EmployeeID, scope generic.Scope) ([]generic.Transaction, error) {
	if _, err := s.Repo.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	return s.Ledger.Transactions(ctx, id, scope)
}

// TransactionsInPeriod returns the ledger entries for scope effective within
// period, oldest first. An empty scope means company.
func (s *Service) TransactionsInPeriod(ctx context.Context, id generic.EmployeeID, scope generic.Scope, period generic.Period) ([]generic.Transaction, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.Repo.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	if scope == "" {
		scope = generic.ScopeCompany
	}
	return s.Ledger.TransactionsInRange(ctx, id, scope, period.Start, period.End)
}

// =============================================================================
// READ MODEL
// =============================================================================

// Summary is everything the employee screen shows at asOf.
type Summary struct {
	Employee       Employee
	AsOf           generic.TimePoint
	CumulativePaid decimal.Decimal
	Accrual        Accrual
	// Schedule lists the month-by-month salary behind Accrual.
	Schedule       []generic.AccrualEvent
	// Earnings and Reconciliation are nil for project-based employees.
	Earnings       *Earnings
	Reconciliation *Reconciliation
	OpenContracts  []LaborContract
	DataVersion    int64
}

type employeeState struct {
	employee   Employee
	paid       decimal.Decimal
	attendance []AttendanceRecord
	accrual    Accrual
	earnings   *Earnings
}

// loadState reads one consistent snapshot of an employee at asOf.
func (s *Service) loadState(ctx context.Context, id generic.EmployeeID, asOf generic.TimePoint) (employeeState, error) {
	emp, err := s.Repo.GetEmployee(ctx, id)
	if err != nil {
		return employeeState{}, err
	}

	paid, err := s.Ledger.PaidAsOf(ctx, id, generic.ScopeCompany, asOf)
	if err != nil {
		return employeeState{}, fmt.Errorf("load payments: %w", err)
	}

	st := employeeState{employee: *emp, paid: paid.Value}
	st.accrual = CalculateAccrual(AccrualInput{
		MonthlySalary:  emp.MonthlySalary,
		StartDate:      emp.StartDate,
		AsOf:           asOf,
		CumulativePaid: paid.Value,
	})

	if salaried, ok := emp.Salaried(); ok {
		st.attendance, err = s.Repo.LoadAttendance(ctx, id, generic.MonthOf(asOf))
		if err != nil {
			return employeeState{}, fmt.Errorf("load attendance: %w", err)
		}
		earnings := salaried.Earnings(asOf, paid.Value, st.attendance)
		st.earnings = &earnings
	}
	return st, nil
}

// Summary computes accrual, earnings and cache drift for an employee.
func (s *Service) Summary(ctx context.Context, id generic.EmployeeID, asOf generic.TimePoint) (Summary, error) {
	st, err := s.loadState(ctx, id, asOf)
	if err != nil {
		return Summary{}, err
	}

	version, err := s.Snapshots.DataVersion(ctx, id)
	if err != nil {
		return Summary{}, fmt.Errorf("load data version: %w", err)
	}

	sum := Summary{
		Employee:       st.employee,
		AsOf:           asOf,
		CumulativePaid: st.paid,
		Accrual:        st.accrual,
		Earnings:       st.earnings,
		DataVersion:    version,
	}
	if st.employee.Kind.AttendanceTracked() {
		schedule := MonthlySalary{Salary: st.employee.MonthlySalary, StartDate: st.employee.StartDate}
		sum.Schedule = schedule.GenerateAccruals(st.employee.StartDate, asOf)
	}

	if st.earnings != nil {
		snap, err := s.Snapshots.GetSnapshot(ctx, id, generic.MonthOf(asOf))
		if err != nil {
			return Summary{}, fmt.Errorf("load snapshot: %w", err)
		}
		rec := ReconcileSnapshot(snap, st.earnings.EarnedThisMonth, version)
		sum.Reconciliation = &rec
		if rec.HasCache && !rec.IsSynced {
			s.Logger.Warn("earnings drift detected",
				slog.String("employee_id", string(id)),
				slog.String("period", generic.MonthOf(asOf).Key()),
				slog.String("cached", rec.Cached.StringFixed(2)),
				slog.String("fresh", rec.Fresh.StringFixed(2)),
			)
		}
	}

	contracts, err := s.Repo.LoadContracts(ctx, id, "")
	if err != nil {
		return Summary{}, fmt.Errorf("load contracts: %w", err)
	}
	for _, c := range contracts {
		if c.IsOpen() {
			sum.OpenContracts = append(sum.OpenContracts, c)
		}
	}
	return sum, nil
}

// CheckDrift recomputes earnings and compares them with the cache without
// changing anything.
func (s *Service) CheckDrift(ctx context.Context, id generic.EmployeeID, asOf generic.TimePoint) (Reconciliation, error) {
	sum, err := s.Summary(ctx, id, asOf)
	if err != nil {
		return Reconciliation{}, err
	}
	if sum.Reconciliation == nil {
		return Reconciliation{}, generic.ErrAttendanceNotTracked
	}
	return *sum.Reconciliation, nil
}

// RefreshEarnings is the explicit recompute action: it stores the live
// current-month earnings as the new cached value.
func (s *Service) RefreshEarnings(ctx context.Context, id generic.EmployeeID, asOf generic.TimePoint) (generic.Snapshot, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	st, err := s.loadState(ctx, id, asOf)
	if err != nil {
		return generic.Snapshot{}, err
	}
	if st.earnings == nil {
		return generic.Snapshot{}, generic.ErrAttendanceNotTracked
	}
	return s.storeSnapshot(ctx, id, asOf, st.earnings.EarnedThisMonth, generic.SnapshotRefresh)
}

func (s *Service) storeSnapshot(ctx context.Context, id generic.EmployeeID, asOf generic.TimePoint, value decimal.Decimal, reason generic.SnapshotReason) (generic.Snapshot, error) {
	version, err := s.Snapshots.DataVersion(ctx, id)
	if err != nil {
		return generic.Snapshot{}, err
	}
	snap := generic.Snapshot{
		EmployeeID: id,
		Period:     generic.MonthOf(asOf),
		Value:      generic.NewMoney(value),
		Version:    version,
		TakenAt:    asOf,
		Reason:     reason,
	}
	if err := s.Snapshots.SaveSnapshot(ctx, snap); err != nil {
		return generic.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	return snap, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceMark is one explicit mark from the UI or a bulk action.
type AttendanceMark struct {
	Date   generic.TimePoint
	Worked bool
}

// MarkAttendance creates or overwrites marks and invalidates the derived
// cache. Project-based employees are rejected.
func (s *Service) MarkAttendance(ctx context.Context, id generic.EmployeeID, marks []AttendanceMark) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	emp, err := s.Repo.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if _, ok := emp.Salaried(); !ok {
		return generic.ErrAttendanceNotTracked
	}
	if len(marks) == 0 {
		return nil
	}

	records := make([]AttendanceRecord, len(marks))
	for i, m := range marks {
		records[i] = AttendanceRecord{EmployeeID: id, Date: m.Date, Worked: m.Worked}
	}

	// The version moves before the data does.
	if _, err := s.Snapshots.BumpDataVersion(ctx, id); err != nil {
		return fmt.Errorf("bump data version: %w", err)
	}
	if err := s.Repo.UpsertAttendance(ctx, records); err != nil {
		return fmt.Errorf("save attendance: %w", err)
	}

	s.Logger.Info("attendance marked",
		slog.String("employee_id", string(id)),
		slog.Int("marks", len(marks)),
	)
	return nil
}

// MarkAttendanceRange marks every day in period with the same value.
func (s *Service) MarkAttendanceRange(ctx context.Context, id generic.EmployeeID, period generic.Period, worked bool) error {
	if err := period.Validate(); err != nil {
		return err
	}
	days := period.Days()
	marks := make([]AttendanceMark, len(days))
	for i, d := range days {
		marks[i] = AttendanceMark{Date: d, Worked: worked}
	}
	return s.MarkAttendance(ctx, id, marks)
}

// Attendance returns the marks of one month.
func (s *Service) Attendance(ctx context.Context, id generic.EmployeeID, period generic.Period) ([]AttendanceRecord, error) {
	if _, err := s.Repo.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	return s.Repo.LoadAttendance(ctx, id, period)
}

// =============================================================================
// SALARY PAYMENTS
// =============================================================================

// PaymentInput is a salary payment being recorded.
type PaymentInput struct {
	EmployeeID     generic.EmployeeID
	Amount         decimal.Decimal
	Date           generic.TimePoint
	IdempotencyKey string
	Reason         string
	CreatedBy      string
}

// PaymentReceipt is what recording a payment produced.
type PaymentReceipt struct {
	Transaction generic.Transaction
	Allocation  AllocationResult
	// State the allocation was computed against.
	AccrualBefore  Accrual
	EarningsBefore *Earnings
}

// RecordSalaryPayment allocates the payment against the employee's state on
// the payment date and appends it to the ledger. Overpayment and residual
// are reported in the receipt, not rejected.
func (s *Service) RecordSalaryPayment(ctx context.Context, in PaymentInput) (PaymentReceipt, error) {
	if in.Amount.IsNegative() {
		return PaymentReceipt{}, generic.ErrInvalidAmount
	}

	unlock := s.locks.Lock(in.EmployeeID)
	defer unlock()

	// A replay must not touch the data version.
	if err := s.rejectDuplicate(ctx, in.IdempotencyKey); err != nil {
		return PaymentReceipt{}, err
	}

	st, err := s.loadState(ctx, in.EmployeeID, in.Date)
	if err != nil {
		return PaymentReceipt{}, err
	}

	var alloc AllocationResult
	if st.earnings != nil {
		alloc = Allocate(st.earnings.AllocationInputFor(in.Amount))
	} else {
		// Project-based: no attendance model, straight-line remaining only.
		alloc = Allocate(AllocationInput{
			PreviousMonthsRemaining: generic.ClampZero(st.accrual.RemainingSalary),
			PaymentAmount:           in.Amount,
		})
	}

	tx := generic.Transaction{
		ID:             generic.TransactionID(s.NewID()),
		EmployeeID:     in.EmployeeID,
		Scope:          generic.ScopeCompany,
		EffectiveAt:    in.Date,
		Amount:         generic.NewMoney(in.Amount),
		Type:           generic.TxSalaryPayment,
		Reason:         in.Reason,
		IdempotencyKey: in.IdempotencyKey,
		Metadata:       allocationMetadata(alloc),
		CreatedBy:      in.CreatedBy,
		CreatedAt:      generic.TimePoint{Time: time.Now().UTC()},
	}

	if _, err := s.Snapshots.BumpDataVersion(ctx, in.EmployeeID); err != nil {
		return PaymentReceipt{}, fmt.Errorf("bump data version: %w", err)
	}
	if err := s.Ledger.Append(ctx, tx); err != nil {
		return PaymentReceipt{}, err
	}

	// The allocation was confirmed against this figure; keep it as the cache.
	if st.earnings != nil {
		if _, err := s.storeSnapshot(ctx, in.EmployeeID, in.Date, st.earnings.EarnedThisMonth, generic.SnapshotPayment); err != nil {
			s.Logger.Error("store earnings snapshot", slog.String("employee_id", string(in.EmployeeID)), slog.Any("error", err))
		}
	}

	logAttrs := []any{
		slog.String("employee_id", string(in.EmployeeID)),
		slog.String("amount", in.Amount.StringFixed(2)),
		slog.String("prior", alloc.PaidToPriorPeriods.StringFixed(2)),
		slog.String("current", alloc.PaidToCurrentPeriodWorked.StringFixed(2)),
		slog.Int("advance_days", alloc.AdvanceDays),
	}
	if alloc.HasResidual() {
		s.Logger.Warn("salary payment exceeds known obligations",
			append(logAttrs, slog.String("residual", alloc.ResidualUnallocated.StringFixed(2)))...)
	} else {
		s.Logger.Info("salary payment recorded", logAttrs...)
	}

	return PaymentReceipt{
		Transaction:    tx,
		Allocation:     alloc,
		AccrualBefore:  st.accrual,
		EarningsBefore: st.earnings,
	}, nil
}

// ReversalInput undoes one salary payment.
type ReversalInput struct {
	TransactionID generic.TransactionID
	Date          generic.TimePoint
	Reason        string
	CreatedBy     string
}

// ReversePayment appends a reversal for a salary payment. The original stays
// in the ledger; a second reversal of the same payment is rejected as a
// duplicate. Contract payments are not reversible here because the contract
// already counted them.
func (s *Service) ReversePayment(ctx context.Context, in ReversalInput) (generic.Transaction, error) {
	orig, err := s.Repo.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return generic.Transaction{}, err
	}
	if orig == nil {
		return generic.Transaction{}, fmt.Errorf("%w: %s", generic.ErrTransactionNotFound, in.TransactionID)
	}
	if orig.Type != generic.TxSalaryPayment {
		return generic.Transaction{}, generic.ErrNotReversible
	}

	unlock := s.locks.Lock(orig.EmployeeID)
	defer unlock()

	idempotencyKey := "reversal-" + string(orig.ID)
	if err := s.rejectDuplicate(ctx, idempotencyKey); err != nil {
		return generic.Transaction{}, err
	}

	date := in.Date
	if date.IsZero() {
		date = orig.EffectiveAt
	}
	tx := generic.Transaction{
		ID:             generic.TransactionID(s.NewID()),
		EmployeeID:     orig.EmployeeID,
		Scope:          orig.Scope,
		EffectiveAt:    date,
		Amount:         orig.Amount,
		Type:           generic.TxReversal,
		ReferenceID:    string(orig.ID),
		Reason:         in.Reason,
		IdempotencyKey: idempotencyKey,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      generic.TimePoint{Time: time.Now().UTC()},
	}

	if _, err := s.Snapshots.BumpDataVersion(ctx, orig.EmployeeID); err != nil {
		return generic.Transaction{}, fmt.Errorf("bump data version: %w", err)
	}
	if err := s.Ledger.Append(ctx, tx); err != nil {
		return generic.Transaction{}, err
	}

	s.Logger.Info("salary payment reversed",
		slog.String("employee_id", string(orig.EmployeeID)),
		slog.String("transaction_id", string(orig.ID)),
		slog.String("amount", orig.Amount.Value.StringFixed(2)),
	)
	return tx, nil
}

// PreviewAllocation runs the waterfall for a hypothetical payment without
// writing anything.
func (s *Service) PreviewAllocation(ctx context.Context, id generic.EmployeeID, amount decimal.Decimal, date generic.TimePoint) (AllocationResult, error) {
	st, err := s.loadState(ctx, id, date)
	if err != nil {
		return AllocationResult{}, err
	}
	if st.earnings == nil {
		return Allocate(AllocationInput{
			PreviousMonthsRemaining: generic.ClampZero(st.accrual.RemainingSalary),
			PaymentAmount:           amount,
		}), nil
	}
	return Allocate(st.earnings.AllocationInputFor(amount)), nil
}

// rejectDuplicate fails with ErrDuplicateIdempotencyKey when key was already
// used. Callers check before any write; the ledger checks again on append.
func (s *Service) rejectDuplicate(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	exists, err := s.Repo.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return generic.ErrDuplicateIdempotencyKey
	}
	return nil
}

func allocationMetadata(a AllocationResult) map[string]string {
	return map[string]string{
		"paid_to_prior_periods":         a.PaidToPriorPeriods.String(),
		"paid_to_current_period_worked": a.PaidToCurrentPeriodWorked.String(),
		"advance_for_unworked_days":     a.AdvanceForUnworkedDays.String(),
		"advance_days":                  fmt.Sprint(a.AdvanceDays),
		"residual_unallocated":          a.ResidualUnallocated.String(),
	}
}

// =============================================================================
// LABOR CONTRACTS
// =============================================================================

// ContractPaymentInput is one save of the wage form for a scope.
type ContractPaymentInput struct {
	EmployeeID     generic.EmployeeID
	Scope          generic.Scope
	AgreedWage     *decimal.Decimal
	Amount         decimal.Decimal
	Date           generic.TimePoint
	Action         ContractAction
	IdempotencyKey string
	CreatedBy      string
}

// ContractReceipt reports the contract transition and the ledger entry.
type ContractReceipt struct {
	Plan        ContractPlan
	Transaction *generic.Transaction
}

// RecordContractPayment applies a wage entry to the employee's contracts for
// the scope. A zero amount only opens (or rolls over) a contract.
func (s *Service) RecordContractPayment(ctx context.Context, in ContractPaymentInput) (ContractReceipt, error) {
	scope := in.Scope
	if scope == "" {
		scope = generic.ScopeCompany
	}

	unlock := s.locks.Lock(in.EmployeeID)
	defer unlock()

	if _, err := s.Repo.GetEmployee(ctx, in.EmployeeID); err != nil {
		return ContractReceipt{}, err
	}

	history, err := s.Repo.LoadContracts(ctx, in.EmployeeID, scope)
	if err != nil {
		return ContractReceipt{}, fmt.Errorf("load contracts: %w", err)
	}

	plan, err := PlanWageEntry(history, WageEntry{
		EmployeeID:    in.EmployeeID,
		Scope:         scope,
		AgreedWage:    in.AgreedWage,
		Payment:       in.Amount,
		At:            in.Date,
		Action:        in.Action,
		NewContractID: s.NewID(),
	})
	if err != nil {
		if generic.IsClientError(err) {
			return ContractReceipt{}, err
		}
		s.Logger.Error("contract history invalid",
			slog.String("employee_id", string(in.EmployeeID)),
			slog.String("scope", string(scope)),
			slog.Any("error", err),
		)
		return ContractReceipt{}, err
	}

	var tx *generic.Transaction
	if in.Amount.IsPositive() {
		if err := s.rejectDuplicate(ctx, in.IdempotencyKey); err != nil {
			return ContractReceipt{}, err
		}
		tx = &generic.Transaction{
			ID:             generic.TransactionID(s.NewID()),
			EmployeeID:     in.EmployeeID,
			Scope:          scope,
			EffectiveAt:    in.Date,
			Amount:         generic.NewMoney(in.Amount),
			Type:           generic.TxContractPayment,
			ReferenceID:    plan.Current.ID,
			IdempotencyKey: in.IdempotencyKey,
			Metadata: map[string]string{
				"applied": plan.Applied.String(),
				"excess":  plan.Excess.String(),
			},
			CreatedBy: in.CreatedBy,
			CreatedAt: generic.TimePoint{Time: time.Now().UTC()},
		}
	}

	if err := s.Repo.SaveContractPlan(ctx, plan, tx); err != nil {
		return ContractReceipt{}, err
	}

	attrs := []any{
		slog.String("employee_id", string(in.EmployeeID)),
		slog.String("scope", string(scope)),
		slog.String("contract_id", plan.Current.ID),
		slog.String("applied", plan.Applied.StringFixed(2)),
		slog.Bool("opened", plan.Opened),
		slog.Bool("closed", plan.AutoClosed),
	}
	if plan.Abandoned != nil {
		attrs = append(attrs,
			slog.String("abandoned_contract_id", plan.Abandoned.ID),
			slog.String("abandoned_remaining", plan.Abandoned.Remaining().StringFixed(2)))
	}
	s.Logger.Info("contract payment recorded", attrs...)

	return ContractReceipt{Plan: plan, Transaction: tx}, nil
}

// PreviousWage returns the open contract for the scope, or nil. An empty
// scope means company.
func (s *Service) PreviousWage(ctx context.Context, id generic.EmployeeID, scope generic.Scope) (*LaborContract, error) {
	if scope == "" {
		scope = generic.ScopeCompany
	}
	history, err := s.Contracts(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	return PreviousWageInfo(history), nil
}

// Contracts lists every contract of the employee for scope ("" for all).
func (s *Service) Contracts(ctx context.Context, id generic.EmployeeID, scope generic.Scope) ([]LaborContract, error) {
	if _, err := s.Repo.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	return s.Repo.LoadContracts(ctx, id, scope)
}

// =============================================================================
// PER-EMPLOYEE LOCKS
// =============================================================================

type keyedMutex struct {
	mu    sync.Mutex
	locks map[generic.EmployeeID]*sync.Mutex
}

// Lock acquires the lock for id and returns its release func.
func (k *keyedMutex) Lock(id generic.EmployeeID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[generic.EmployeeID]*sync.Mutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
