package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(store, payroll.NewService(store, store, logger), logger)
	h.Today = func() generic.TimePoint { return generic.NewTimePoint(2024, time.March, 15) }
	return h, NewRouter(h)
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func loadScenario(t *testing.T, srv http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestCreateEmployee(t *testing.T) {
	_, srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/employees", map[string]any{
		"id":             "emp-1",
		"name":           "Dana",
		"kind":           "COMPANY",
		"monthly_salary": "30000",
		"start_date":     "2024-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	emp := decode[EmployeeDTO](t, rec)
	assert.Equal(t, "emp-1", emp.ID)
	assert.Equal(t, "30000.00", emp.MonthlySalary.StringFixed(2))

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]EmployeeDTO](t, rec), 1)
}

func TestCreateEmployee_Invalid(t *testing.T) {
	_, srv := newTestServer(t)

	// Unknown kind
	rec := doJSON(t, srv, http.MethodPost, "/api/employees", map[string]any{
		"name": "X", "kind": "INTERN", "monthly_salary": 100, "start_date": "2024-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, rec).Code)

	// Negative salary
	rec = doJSON(t, srv, http.MethodPost, "/api/employees", map[string]any{
		"name": "X", "kind": "COMPANY", "monthly_salary": -1, "start_date": "2024-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bad date
	rec = doJSON(t, srv, http.MethodPost, "/api/employees", map[string]any{
		"name": "X", "kind": "COMPANY", "monthly_salary": 100, "start_date": "01/01/2024",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEmployee_NotFound(t *testing.T) {
	_, srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/employees/nobody/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestGetSummary_MidMonth(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	// WHEN: Summary as of the default date (2024-03-15)
	rec := doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[SummaryDTO](t, rec)

	// THEN: Three months accrued, 35000 outstanding
	assert.Equal(t, "2024-03-15", sum.AsOf)
	assert.Equal(t, 3, sum.Accrual.MonthsWorked)
	assert.Equal(t, "90000.00", sum.Accrual.TotalSalaryOwed.StringFixed(2))
	assert.Equal(t, "35000.00", sum.Accrual.RemainingSalary.StringFixed(2))
	assert.Equal(t, "55000.00", sum.CumulativePaid.StringFixed(2))
	assert.Len(t, sum.Schedule, 3)

	// And ten worked days at 30000/31
	require.NotNil(t, sum.Earnings)
	assert.Equal(t, 10, sum.Earnings.DaysWorkedThisMonth)
	assert.Equal(t, "967.74", sum.Earnings.DailyRate.StringFixed(2))
	assert.Equal(t, "9677.42", sum.Earnings.EarnedThisMonth.StringFixed(2))

	// And the cache written by the scenario agrees
	require.NotNil(t, sum.Reconciliation)
	require.NotNil(t, sum.Reconciliation.Cached)
	assert.True(t, sum.Reconciliation.IsSynced)
	assert.False(t, sum.Reconciliation.RecomputeRequired)
}

func TestGetSummary_InvalidAsOf(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	rec := doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/summary?as_of=March", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	rec := doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/payments", map[string]any{
		"amount":          "5000",
		"date":            "2024-03-15",
		"idempotency_key": "pay-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[PaymentReceiptDTO](t, rec)

	// 60000 owed for Jan+Feb, 55000 paid: the first 5000 closes that gap
	assert.Equal(t, "5000.00", receipt.Allocation.PaidToPriorPeriods.StringFixed(2))
	assert.Equal(t, "5000.00", receipt.Allocation.Total.StringFixed(2))
	assert.Equal(t, string(generic.TxSalaryPayment), receipt.Transaction.Type)
	assert.Equal(t, "35000.00", receipt.Accrual.RemainingSalary.StringFixed(2))

	// Same key again
	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/payments", map[string]any{
		"amount":          "5000",
		"date":            "2024-03-15",
		"idempotency_key": "pay-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_idempotency_key", decode[ErrorResponse](t, rec).Code)
}

func TestRecordPayment_IdempotencyKeyHeader(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/employees/emp-ana/payments",
			bytes.NewBufferString(`{"amount": 100, "date": "2024-03-15"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "hdr-1")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusConflict, send())
}

func TestRecordPayment_Rejected(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	for _, amount := range []string{"0", "-10"} {
		rec := doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/payments", map[string]any{
			"amount": amount,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, amount)
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/employees/nobody/payments", map[string]any{
		"amount": "10",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/payments", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewAllocation(t *testing.T) {
	_, srv := newTestServer(t)

	// Direct inputs
	rec := doJSON(t, srv, http.MethodPost, "/api/allocations/preview", map[string]any{
		"previous_months_remaining":       "20000",
		"this_month_earned":               "9677.42",
		"payment_amount":                  "25000",
		"daily_rate":                      "967.74",
		"remaining_days_in_current_month": 21,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	alloc := decode[AllocationDTO](t, rec)
	assert.Equal(t, "20000.00", alloc.PaidToPriorPeriods.StringFixed(2))
	assert.Equal(t, "5000.00", alloc.PaidToCurrentPeriodWorked.StringFixed(2))
	assert.Equal(t, 0, alloc.AdvanceDays)

	// Against an employee; nothing is written
	loadScenario(t, srv, "salaried-midmonth")
	rec = doJSON(t, srv, http.MethodPost, "/api/allocations/preview", map[string]any{
		"employee_id": "emp-ana",
		"amount":      "5000",
		"date":        "2024-03-15",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]TransactionDTO](t, rec), 2)
}

// =============================================================================
// REVERSALS
// =============================================================================

func TestReversePayment(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	rec := doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/transactions?scope=company", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decode[[]TransactionDTO](t, rec)
	require.Len(t, txs, 2)
	january := txs[0]
	assert.Equal(t, "2024-01-31", january.EffectiveAt)

	// WHEN: The January payment is reversed
	rec = doJSON(t, srv, http.MethodPost, "/api/transactions/"+january.ID+"/reverse",
		map[string]string{"reason": "paid twice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reversal := decode[TransactionDTO](t, rec)

	// THEN: A reversal entry references it and cumulative paid drops
	assert.Equal(t, string(generic.TxReversal), reversal.Type)
	assert.Equal(t, january.ID, reversal.ReferenceID)
	assert.Equal(t, "2024-01-31", reversal.EffectiveAt)

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "25000.00", decode[SummaryDTO](t, rec).CumulativePaid.StringFixed(2))

	// A second reversal is a duplicate
	rec = doJSON(t, srv, http.MethodPost, "/api/transactions/"+january.ID+"/reverse", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Reversals themselves cannot be reversed
	rec = doJSON(t, srv, http.MethodPost, "/api/transactions/"+reversal.ID+"/reverse", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/transactions/missing/reverse", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]TransactionDTO](t, rec), 3)
}

func TestGetTransactions_Month(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	// GIVEN: Payments on January 31 and February 29
	// WHEN/THEN: A month filter returns only that month's entries
	rec := doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/transactions?month=2024-02", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	txs := decode[[]TransactionDTO](t, rec)
	require.Len(t, txs, 1)
	assert.Equal(t, "2024-02-29", txs[0].EffectiveAt)

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/transactions?scope=company&month=2024-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]TransactionDTO](t, rec))

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/transactions?month=02-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/nobody/transactions?month=2024-02", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	// GIVEN: A handler logging into a buffer
	var logs bytes.Buffer
	h := &Handler{Logger: slog.New(slog.NewJSONHandler(&logs, nil))}
	rec := httptest.NewRecorder()

	// WHEN: The body cannot be encoded
	h.writeJSON(rec, http.StatusOK, map[string]any{"updates": make(chan int)})

	// THEN: The status is already sent and the failure is logged
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "encode response")
	assert.Contains(t, logs.String(), "unsupported type")
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestMarkAttendance(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	rec := doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/attendance", map[string]any{
		"marks": []map[string]any{{"date": "2024-03-15", "worked": true}},
		"range": map[string]any{"from": "2024-03-18", "to": "2024-03-19", "worked": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, decode[map[string]any](t, rec)["marked"])

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-ana/attendance?month=2024-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// Fourteen marks from the scenario plus three new ones
	assert.Len(t, decode[[]AttendanceDTO](t, rec), 17)

	// Empty request
	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/attendance", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Backwards range
	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/attendance", map[string]any{
		"range": map[string]any{"from": "2024-03-20", "to": "2024-03-18", "worked": true},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkAttendance_ProjectBasedRejected(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "project-contracts")

	rec := doJSON(t, srv, http.MethodPost, "/api/employees/emp-carla/attendance", map[string]any{
		"marks": []map[string]any{{"date": "2024-03-15", "worked": true}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CONTRACTS
// =============================================================================

func TestContractPayments(t *testing.T) {
	_, srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/employees", map[string]any{
		"id": "emp-p", "name": "Pat", "kind": "PROJECT", "monthly_salary": 0, "start_date": "2024-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Nothing open yet
	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-p/contracts/previous?scope=proj-x", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[PreviousWageDTO](t, rec).Contract)

	// Opening needs a wage
	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-p/contracts/payments", map[string]any{
		"scope": "proj-x", "amount": "400", "date": "2024-03-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-p/contracts/payments", map[string]any{
		"scope": "proj-x", "agreed_wage": "1000", "amount": "400", "date": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[ContractReceiptDTO](t, rec)
	assert.True(t, receipt.Opened)
	assert.Equal(t, "400.00", receipt.Applied.StringFixed(2))
	assert.Equal(t, "600.00", receipt.Contract.Remaining.StringFixed(2))
	require.NotNil(t, receipt.Transaction)

	// The wage form pre-fills from the open contract
	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-p/contracts/previous?scope=proj-x", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prev := decode[PreviousWageDTO](t, rec)
	require.NotNil(t, prev.Contract)
	assert.Equal(t, "1000.00", prev.Contract.AgreedWage.StringFixed(2))

	// Changing the wage in place is refused
	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-p/contracts/payments", map[string]any{
		"scope": "proj-x", "agreed_wage": "2000", "amount": "100", "date": "2024-03-02",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Close and reopen abandons the remaining 600
	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-p/contracts/payments", map[string]any{
		"scope": "proj-x", "action": "close_and_reopen", "new_agreed_wage": "2000",
		"amount": "100", "date": "2024-03-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt = decode[ContractReceiptDTO](t, rec)
	require.NotNil(t, receipt.Abandoned)
	assert.Equal(t, "600.00", receipt.Abandoned.Remaining.StringFixed(2))
	assert.Equal(t, "2000.00", receipt.Contract.AgreedWage.StringFixed(2))

	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-p/contracts/payments", map[string]any{
		"scope": "proj-x", "action": "start_over", "amount": "1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-p/contracts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ContractDTO](t, rec), 2)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestCheckDrift_AfterAttendanceCorrection(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "salaried-midmonth")

	check := func() DriftRunDTO {
		rec := doJSON(t, srv, http.MethodPost, "/api/reconciliation/check", map[string]string{
			"employee_id": "emp-ana", "as_of": "2024-03-15",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		runs := decode[[]DriftRunDTO](t, rec)
		require.Len(t, runs, 1)
		return runs[0]
	}

	// GIVEN: The scenario refreshed the cache
	assert.Equal(t, DriftSynced, check().Status)

	// WHEN: A worked day is corrected to not worked
	rec := doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/attendance", map[string]any{
		"marks": []map[string]any{{"date": "2024-03-04", "worked": false}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: One day's pay of drift is reported and the cache is left alone
	run := check()
	assert.Equal(t, DriftFound, run.Status)
	assert.Equal(t, "967.74", run.Drift.StringFixed(2))
	require.NotNil(t, run.Cached)
	assert.Equal(t, "9677.42", run.Cached.StringFixed(2))

	rec = doJSON(t, srv, http.MethodGet, "/api/reconciliation/runs?status=drift", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]DriftRunDTO](t, rec), 1)

	// An explicit refresh brings it back in sync
	rec = doJSON(t, srv, http.MethodPost, "/api/employees/emp-ana/earnings/refresh?as_of=2024-03-15", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "8709.68", decode[SnapshotDTO](t, rec).Value.StringFixed(2))
	assert.Equal(t, DriftSynced, check().Status)
}

func TestListDriftRuns_InvalidLimit(t *testing.T) {
	_, srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/reconciliation/runs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios(t *testing.T) {
	h, srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(scenarios))
	for _, s := range list {
		_, ok := h.scenarioLoaders()[s.ID]
		assert.True(t, ok, "no loader for %s", s.ID)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Every scenario loads cleanly on top of any other
	for _, s := range list {
		loadScenario(t, srv, s.ID)
		rec = doJSON(t, srv, http.MethodGet, "/api/scenarios/current", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, s.ID, decode[ScenarioDTO](t, rec).ID)

		rec = doJSON(t, srv, http.MethodGet, "/api/employees", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]EmployeeDTO](t, rec), 1, s.ID)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))
}

func TestProjectContractsScenario(t *testing.T) {
	_, srv := newTestServer(t)
	loadScenario(t, srv, "project-contracts")

	rec := doJSON(t, srv, http.MethodGet, "/api/employees/emp-carla/contracts?scope=proj-bridge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contracts := decode[[]ContractDTO](t, rec)
	require.Len(t, contracts, 3)

	open := 0
	for _, c := range contracts {
		if c.Open {
			open++
			assert.Equal(t, "9000.00", c.AgreedWage.StringFixed(2))
		}
	}
	assert.Equal(t, 1, open)

	rec = doJSON(t, srv, http.MethodGet, "/api/employees/emp-carla/summary?as_of=2024-04-30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[SummaryDTO](t, rec)
	assert.Nil(t, sum.Earnings)
	assert.Nil(t, sum.Reconciliation)
	assert.Len(t, sum.OpenContracts, 2)
	// The company-scope contract payment is not salary
	assert.True(t, sum.CumulativePaid.IsZero(), sum.CumulativePaid.String())
}
