/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to payroll.Service.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List all employees
    POST   /api/employees                          Create employee
    GET    /api/employees/{id}                     Get employee details
    GET    /api/employees/{id}/summary?as_of=      Accrual, earnings, drift

  Attendance:
    POST   /api/employees/{id}/attendance          Mark days (or a range)
    GET    /api/employees/{id}/attendance?month=   Marks for one month

  Payments:
    POST   /api/employees/{id}/payments            Record a salary payment
    GET    /api/employees/{id}/transactions?scope=&month=
                                                   Ledger history
    POST   /api/employees/{id}/earnings/refresh    Recompute cached earnings
    POST   /api/allocations/preview                Dry-run the waterfall

  Transactions:
    GET    /api/transactions?limit=                Latest ledger entries
    POST   /api/transactions/{id}/reverse          Reverse a salary payment

  Contracts:
    GET    /api/employees/{id}/contracts?scope=          Contract history
    GET    /api/employees/{id}/contracts/previous?scope= Open contract, if any
    POST   /api/employees/{id}/contracts/payments        Wage entry

  Reconciliation:
    GET    /api/reconciliation/runs                Drift check history
    POST   /api/reconciliation/check               Run drift checks now

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call payroll.Service
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Employee or contract not found
  - 409: Duplicate idempotency key, lost compare-and-swap
  - 500: Internal errors, multiple open contracts (data-integrity fault)

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears an external cache when a scenario is loaded.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *payroll.Service
	Drift   *DriftChecker
	Logger  *slog.Logger

	// Cache is set when snapshots live outside Store (e.g. Redis).
	Cache Resetter

	// Today is the default as-of date.
	Today func() generic.TimePoint

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over store and svc.
func NewHandler(store *sqlite.Store, svc *payroll.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:   store,
		Service: svc,
		Drift:   NewDriftChecker(store, svc, logger),
		Logger:  logger,
		Today:   generic.Today,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.Employees(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}

	h.writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.Employee(r.Context(), employeeID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get employee", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	startDate, err := generic.ParseDate(req.StartDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}

	emp, err := h.Service.CreateEmployee(r.Context(), payroll.Employee{
		ID:            generic.EmployeeID(req.ID),
		Name:          req.Name,
		Kind:          payroll.EmployeeKind(req.Kind),
		MonthlySalary: req.MonthlySalary,
		StartDate:     startDate,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create employee", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetSummary returns accrual, earnings, open contracts and cache drift.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r.URL.Query().Get("as_of"))
	if !ok {
		return
	}

	sum, err := h.Service.Summary(r.Context(), employeeID(r), asOf)
	if err != nil {
		h.writeServiceError(w, "Failed to compute summary", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// MarkAttendance creates or overwrites attendance marks.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req MarkAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Marks) == 0 && req.Range == nil {
		h.writeError(w, http.StatusBadRequest, "marks or range required", nil)
		return
	}

	var marks []payroll.AttendanceMark
	for _, m := range req.Marks {
		date, err := generic.ParseDate(m.Date)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		marks = append(marks, payroll.AttendanceMark{Date: date, Worked: m.Worked})
	}

	if req.Range != nil {
		from, err := generic.ParseDate(req.Range.From)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid range.from (use YYYY-MM-DD)", err)
			return
		}
		to, err := generic.ParseDate(req.Range.To)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid range.to (use YYYY-MM-DD)", err)
			return
		}
		period := generic.Period{Start: from, End: to}
		if err := period.Validate(); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid range", err)
			return
		}
		for _, d := range period.Days() {
			marks = append(marks, payroll.AttendanceMark{Date: d, Worked: req.Range.Worked})
		}
	}

	if err := h.Service.MarkAttendance(r.Context(), employeeID(r), marks); err != nil {
		h.writeServiceError(w, "Failed to mark attendance", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "marked": len(marks)})
}

// GetAttendance returns the marks of one month (default: current month).
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	period := generic.MonthOf(h.Today())
	if m := r.URL.Query().Get("month"); m != "" {
		p, err := generic.ParseMonth(m)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
			return
		}
		period = p
	}

	records, err := h.Service.Attendance(r.Context(), employeeID(r), period)
	if err != nil {
		h.writeServiceError(w, "Failed to load attendance", err)
		return
	}

	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = AttendanceDTO{Date: rec.Date.String(), Worked: rec.Worked}
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment records a salary payment and returns its allocation.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !req.Amount.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	date, ok := h.asOf(w, req.Date)
	if !ok {
		return
	}

	receipt, err := h.Service.RecordSalaryPayment(r.Context(), payroll.PaymentInput{
		EmployeeID:     employeeID(r),
		Amount:         req.Amount,
		Date:           date,
		IdempotencyKey: req.IdempotencyKey,
		Reason:         req.Reason,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to record payment", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, PaymentReceiptDTO{
		Transaction: toTransactionDTO(receipt.Transaction),
		Allocation:  toAllocationDTO(receipt.Allocation),
		Accrual:     toAccrualDTO(receipt.AccrualBefore),
		Earnings:    toEarningsDTO(receipt.EarningsBefore),
	})
}

// GetTransactions returns the employee's ledger. Without scope, every scope
// is returned; with month, only that month of one scope (default company).
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := employeeID(r)
	scope := generic.Scope(r.URL.Query().Get("scope"))

	var (
		txs []generic.Transaction
		err error
	)
	switch m := r.URL.Query().Get("month"); {
	case m != "":
		period, perr := generic.ParseMonth(m)
		if perr != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", perr)
			return
		}
		txs, err = h.Service.TransactionsInPeriod(r.Context(), id, scope, period)
	case scope == "":
		if _, err = h.Service.Employee(r.Context(), id); err == nil {
			txs, err = h.Store.LoadByEmployee(r.Context(), id)
		}
	default:
		txs, err = h.Service.Transactions(r.Context(), id, scope)
	}
	if err != nil {
		h.writeServiceError(w, "Failed to get transactions", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// ListTransactions returns the latest ledger entries across employees.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	txs, err := h.Store.GetAllTransactions(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// ReversePayment appends a reversal for a salary payment.
func (h *Handler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	var req ReversalRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	var date generic.TimePoint
	if req.Date != "" {
		d, ok := h.asOf(w, req.Date)
		if !ok {
			return
		}
		date = d
	}

	tx, err := h.Service.ReversePayment(r.Context(), payroll.ReversalInput{
		TransactionID: generic.TransactionID(chi.URLParam(r, "id")),
		Date:          date,
		Reason:        req.Reason,
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to reverse payment", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// RefreshEarnings replaces the cached earnings with a live recomputation.
func (h *Handler) RefreshEarnings(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r.URL.Query().Get("as_of"))
	if !ok {
		return
	}

	snap, err := h.Service.RefreshEarnings(r.Context(), employeeID(r), asOf)
	if err != nil {
		h.writeServiceError(w, "Failed to refresh earnings", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// PreviewAllocation runs the waterfall without writing anything.
func (h *Handler) PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	var req AllocationPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.EmployeeID == "" {
		result := payroll.Allocate(payroll.AllocationInput{
			PreviousMonthsRemaining:     req.PreviousMonthsRemaining,
			ThisMonthEarned:             req.ThisMonthEarned,
			PaymentAmount:               req.PaymentAmount,
			DailyRate:                   req.DailyRate,
			RemainingDaysInCurrentMonth: req.RemainingDaysInCurrentMonth,
		})
		h.writeJSON(w, http.StatusOK, toAllocationDTO(result))
		return
	}

	date, ok := h.asOf(w, req.Date)
	if !ok {
		return
	}
	result, err := h.Service.PreviewAllocation(r.Context(), generic.EmployeeID(req.EmployeeID), req.Amount, date)
	if err != nil {
		h.writeServiceError(w, "Failed to preview allocation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAllocationDTO(result))
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns contract history, optionally for one scope.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	scope := generic.Scope(r.URL.Query().Get("scope"))
	contracts, err := h.Service.Contracts(r.Context(), employeeID(r), scope)
	if err != nil {
		h.writeServiceError(w, "Failed to list contracts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, toContractDTOs(contracts))
}

// GetPreviousWage returns the open contract for a scope, or null.
func (h *Handler) GetPreviousWage(w http.ResponseWriter, r *http.Request) {
	scope := generic.Scope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = generic.ScopeCompany
	}

	c, err := h.Service.PreviousWage(r.Context(), employeeID(r), scope)
	if err != nil {
		h.writeServiceError(w, "Failed to load previous wage", err)
		return
	}

	dto := PreviousWageDTO{Scope: string(scope)}
	if c != nil {
		cd := toContractDTO(*c)
		dto.Contract = &cd
	}
	h.writeJSON(w, http.StatusOK, dto)
}

// RecordContractPayment applies a wage entry to the scope's contracts.
func (h *Handler) RecordContractPayment(w http.ResponseWriter, r *http.Request) {
	var req ContractPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := h.asOf(w, req.Date)
	if !ok {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	action := payroll.Continue()
	switch payroll.ContractActionKind(req.Action) {
	case "", payroll.ActionContinue:
	case payroll.ActionCloseAndReopen:
		action = payroll.CloseAndReopen(req.NewAgreedWage)
	default:
		h.writeError(w, http.StatusBadRequest, "Unknown action (use continue or close_and_reopen)", generic.ErrInvalidContractAction)
		return
	}

	receipt, err := h.Service.RecordContractPayment(r.Context(), payroll.ContractPaymentInput{
		EmployeeID:     employeeID(r),
		Scope:          generic.Scope(req.Scope),
		AgreedWage:     req.AgreedWage,
		Amount:         req.Amount,
		Date:           date,
		Action:         action,
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to record contract payment", err)
		return
	}

	dto := ContractReceiptDTO{
		Contract:   toContractDTO(receipt.Plan.Current),
		Opened:     receipt.Plan.Opened,
		AutoClosed: receipt.Plan.AutoClosed,
		Applied:    receipt.Plan.Applied,
		Excess:     receipt.Plan.Excess,
	}
	if receipt.Plan.Abandoned != nil {
		a := toContractDTO(*receipt.Plan.Abandoned)
		dto.Abandoned = &a
	}
	if receipt.Transaction != nil {
		t := toTransactionDTO(*receipt.Transaction)
		dto.Transaction = &t
	}
	h.writeJSON(w, http.StatusCreated, dto)
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// ListDriftRuns returns recorded drift checks, newest first.
func (h *Handler) ListDriftRuns(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.GetDriftRuns(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list drift runs", err)
		return
	}

	dtos := make([]DriftRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toDriftRunDTO(run)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// CheckDrift runs drift checks now, for one employee or everyone.
func (h *Handler) CheckDrift(w http.ResponseWriter, r *http.Request) {
	var req DriftCheckRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	asOf, ok := h.asOf(w, req.AsOf)
	if !ok {
		return
	}

	var (
		runs []sqlite.DriftRun
		err  error
	)
	if req.EmployeeID != "" {
		var run sqlite.DriftRun
		run, err = h.Drift.Check(r.Context(), generic.EmployeeID(req.EmployeeID), asOf)
		runs = []sqlite.DriftRun{run}
	} else {
		runs, err = h.Drift.CheckAll(r.Context(), asOf)
	}
	if err != nil {
		h.writeServiceError(w, "Failed to check drift", err)
		return
	}

	dtos := make([]DriftRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toDriftRunDTO(run)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	if h.Cache != nil {
		if err := h.Cache.Reset(ctx); err != nil {
			return err
		}
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func employeeID(r *http.Request) generic.EmployeeID {
	return generic.EmployeeID(chi.URLParam(r, "id"))
}

// asOf parses a YYYY-MM-DD date, defaulting to today. On failure it writes
// a 400 and returns false.
func (h *Handler) asOf(w http.ResponseWriter, s string) (generic.TimePoint, bool) {
	if s == "" {
		return h.Today(), true
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return generic.TimePoint{}, false
	}
	return d, true
}

// writeJSON writes data with status. The header is already sent when
// encoding fails, so the failure can only be logged.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("encode response",
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	h.writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var conflict *generic.OpenContractConflictError
	status, code := http.StatusInternalServerError, ""

	switch {
	case generic.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		status, code = http.StatusConflict, "duplicate_idempotency_key"
	case generic.IsRetryable(err):
		status, code = http.StatusConflict, "concurrent_modification"
	case errors.As(err, &conflict):
		code = "multiple_open_contracts"
		h.Logger.Error("data integrity fault",
			slog.String("employee_id", string(conflict.EmployeeID)),
			slog.String("scope", string(conflict.Scope)),
			slog.Any("contract_ids", conflict.ContractIDs),
		)
	case generic.IsClientError(err):
		status, code = http.StatusBadRequest, "invalid_request"
	default:
		h.Logger.Error(message, slog.Any("error", err))
	}

	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}
