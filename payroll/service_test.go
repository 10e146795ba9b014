package payroll_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestService(t *testing.T) (*payroll.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return payroll.NewService(store, store, logger), store
}

func day(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixed(d decimal.Decimal) string { return d.StringFixed(2) }

// setupSalaried creates the mid-March reference employee: 30000/month since
// Jan 1, paid 30000 + 25000, ten weekdays worked in March up to the 14th.
func setupSalaried(t *testing.T, svc *payroll.Service) generic.EmployeeID {
	t.Helper()
	ctx := context.Background()

	emp, err := svc.CreateEmployee(ctx, payroll.Employee{
		ID:            "emp-ana",
		Name:          "Ana",
		Kind:          payroll.KindSalaried,
		MonthlySalary: money("30000"),
		StartDate:     day(2024, time.January, 1),
	})
	require.NoError(t, err)

	for i, p := range []struct {
		amount string
		on     generic.TimePoint
	}{
		{"30000", day(2024, time.January, 31)},
		{"25000", day(2024, time.February, 29)},
	} {
		_, err := svc.RecordSalaryPayment(ctx, payroll.PaymentInput{
			EmployeeID:     emp.ID,
			Amount:         money(p.amount),
			Date:           p.on,
			IdempotencyKey: fmt.Sprintf("setup-%d", i),
		})
		require.NoError(t, err)
	}

	var marks []payroll.AttendanceMark
	for _, d := range []int{1, 4, 5, 6, 7, 8, 11, 12, 13, 14} {
		marks = append(marks, payroll.AttendanceMark{Date: day(2024, time.March, d), Worked: true})
	}
	require.NoError(t, svc.MarkAttendance(ctx, emp.ID, marks))
	return emp.ID
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestService_CreateEmployee_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []payroll.Employee{
		{Kind: "CONTRACTOR", StartDate: day(2024, time.January, 1)},
		{Kind: payroll.KindSalaried, MonthlySalary: money("-1"), StartDate: day(2024, time.January, 1)},
		{Kind: payroll.KindSalaried, MonthlySalary: money("100")},
	}
	for _, c := range cases {
		_, err := svc.CreateEmployee(ctx, c)
		assert.ErrorIs(t, err, generic.ErrInvalidEmployee)
	}

	// An empty ID is generated
	emp, err := svc.CreateEmployee(ctx, payroll.Employee{Kind: payroll.KindProjectBased, StartDate: day(2024, time.January, 1)})
	require.NoError(t, err)
	assert.NotEmpty(t, emp.ID)

	got, err := svc.Employee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.KindProjectBased, got.Kind)
}

func TestService_UnknownEmployee(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Summary(context.Background(), "nobody", day(2024, time.March, 15))
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestService_Summary_MidMonth(t *testing.T) {
	// GIVEN: The reference employee
	svc, _ := newTestService(t)
	id := setupSalaried(t, svc)

	// WHEN: Summarized on March 15
	sum, err := svc.Summary(context.Background(), id, day(2024, time.March, 15))
	require.NoError(t, err)

	// THEN: Straight-line and attendance figures agree with hand calculation
	assert.Equal(t, "55000.00", fixed(sum.CumulativePaid))
	assert.Equal(t, 3, sum.Accrual.MonthsWorked)
	assert.Equal(t, "90000.00", fixed(sum.Accrual.TotalSalaryOwed))
	assert.Equal(t, "35000.00", fixed(sum.Accrual.RemainingSalary))
	assert.Len(t, sum.Schedule, 3)

	require.NotNil(t, sum.Earnings)
	assert.Equal(t, 10, sum.Earnings.DaysWorkedThisMonth)
	assert.Equal(t, "9677.42", fixed(sum.Earnings.EarnedThisMonth))
	assert.Equal(t, "5000.00", fixed(sum.Earnings.PreviousMonthsRemaining))

	// Nothing cached for March yet
	require.NotNil(t, sum.Reconciliation)
	assert.False(t, sum.Reconciliation.HasCache)
	assert.True(t, sum.Reconciliation.RecomputeRequired)
}

func TestService_Summary_PaymentsAfterAsOfIgnored(t *testing.T) {
	svc, _ := newTestService(t)
	id := setupSalaried(t, svc)

	sum, err := svc.Summary(context.Background(), id, day(2024, time.February, 1))
	require.NoError(t, err)
	assert.Equal(t, "30000.00", fixed(sum.CumulativePaid))
	assert.Equal(t, "30000.00", fixed(sum.Accrual.RemainingSalary))
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestService_RecordSalaryPayment_Waterfall(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)

	// WHEN: 25000 is paid on March 15
	receipt, err := svc.RecordSalaryPayment(ctx, payroll.PaymentInput{
		EmployeeID:     id,
		Amount:         money("25000"),
		Date:           day(2024, time.March, 15),
		IdempotencyKey: "march",
		CreatedBy:      "test",
	})
	require.NoError(t, err)

	// THEN: February's 5000 first, then the ten worked days, then ten
	// whole days in advance
	a := receipt.Allocation
	assert.Equal(t, "5000.00", fixed(a.PaidToPriorPeriods))
	assert.Equal(t, "9677.42", fixed(a.PaidToCurrentPeriodWorked))
	assert.Equal(t, 10, a.AdvanceDays)
	assert.Equal(t, "9677.42", fixed(a.AdvanceForUnworkedDays))
	assert.Equal(t, "645.16", fixed(a.ResidualUnallocated))
	assert.True(t, a.Total().Equal(money("25000")))

	assert.Equal(t, "35000.00", fixed(receipt.AccrualBefore.RemainingSalary))
	assert.Equal(t, "5000", receipt.Transaction.Metadata["paid_to_prior_periods"])
	assert.Equal(t, "10", receipt.Transaction.Metadata["advance_days"])

	// And the earnings it was confirmed against become the cache
	sum, err := svc.Summary(ctx, id, day(2024, time.March, 15))
	require.NoError(t, err)
	assert.True(t, sum.Reconciliation.HasCache)
	assert.True(t, sum.Reconciliation.IsSynced)
	assert.False(t, sum.Reconciliation.Stale)
	assert.Equal(t, "80000.00", fixed(sum.CumulativePaid))
	assert.Equal(t, 10, sum.Earnings.AdvancedDays)
}

func TestService_RecordSalaryPayment_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)

	in := payroll.PaymentInput{EmployeeID: id, Amount: money("100"), Date: day(2024, time.March, 15), IdempotencyKey: "retry-me"}
	_, err := svc.RecordSalaryPayment(ctx, in)
	require.NoError(t, err)
	_, err = svc.RecordSalaryPayment(ctx, in)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	sum, err := svc.Summary(ctx, id, day(2024, time.March, 15))
	require.NoError(t, err)
	assert.Equal(t, "55100.00", fixed(sum.CumulativePaid))
}

func TestService_DuplicatePaymentLeavesCacheFresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)
	asOf := day(2024, time.March, 15)

	// GIVEN: A payment whose allocation became the cache
	in := payroll.PaymentInput{EmployeeID: id, Amount: money("100"), Date: asOf, IdempotencyKey: "retry-me"}
	receipt, err := svc.RecordSalaryPayment(ctx, in)
	require.NoError(t, err)
	before, err := svc.Summary(ctx, id, asOf)
	require.NoError(t, err)
	require.False(t, before.Reconciliation.Stale)

	// WHEN: The payment and a reversal are each replayed
	_, err = svc.RecordSalaryPayment(ctx, in)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	_, err = svc.ReversePayment(ctx, payroll.ReversalInput{TransactionID: receipt.Transaction.ID})
	require.NoError(t, err)
	reversed, err := svc.Summary(ctx, id, asOf)
	require.NoError(t, err)
	_, err = svc.ReversePayment(ctx, payroll.ReversalInput{TransactionID: receipt.Transaction.ID})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	// THEN: Rejected replays do not move the data version
	after, err := svc.Summary(ctx, id, asOf)
	require.NoError(t, err)
	assert.Equal(t, before.DataVersion+1, reversed.DataVersion, "only the real reversal counts")
	assert.Equal(t, reversed.DataVersion, after.DataVersion)
	assert.Equal(t, "55000.00", fixed(after.CumulativePaid))
}

func TestService_RecordSalaryPayment_RejectsNegative(t *testing.T) {
	svc, _ := newTestService(t)
	id := setupSalaried(t, svc)
	_, err := svc.RecordSalaryPayment(context.Background(), payroll.PaymentInput{
		EmployeeID: id, Amount: money("-5"), Date: day(2024, time.March, 15),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)
}

func TestService_ConcurrentPayments(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RecordSalaryPayment(ctx, payroll.PaymentInput{
				EmployeeID:     id,
				Amount:         money("100"),
				Date:           day(2024, time.March, 15),
				IdempotencyKey: fmt.Sprintf("concurrent-%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sum, err := svc.Summary(ctx, id, day(2024, time.March, 15))
	require.NoError(t, err)
	assert.Equal(t, "57000.00", fixed(sum.CumulativePaid))
}

func TestService_PreviewAllocation_WritesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)

	preview, err := svc.PreviewAllocation(ctx, id, money("25000"), day(2024, time.March, 15))
	require.NoError(t, err)
	assert.Equal(t, 10, preview.AdvanceDays)

	txs, err := svc.Transactions(ctx, id, generic.ScopeCompany)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestService_TransactionsInPeriod(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)

	feb, err := generic.ParseMonth("2024-02")
	require.NoError(t, err)
	txs, err := svc.TransactionsInPeriod(ctx, id, "", feb)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "2024-02-29", txs[0].EffectiveAt.String())

	mar, err := generic.ParseMonth("2024-03")
	require.NoError(t, err)
	txs, err = svc.TransactionsInPeriod(ctx, id, generic.ScopeCompany, mar)
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = svc.TransactionsInPeriod(ctx, "nobody", "", feb)
	assert.True(t, generic.IsNotFound(err))

	_, err = svc.TransactionsInPeriod(ctx, id, "", generic.Period{Start: mar.End, End: mar.Start})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestService_ReversePayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)

	txs, err := svc.Transactions(ctx, id, generic.ScopeCompany)
	require.NoError(t, err)
	first := txs[0]

	// WHEN: The January payment is reversed
	rev, err := svc.ReversePayment(ctx, payroll.ReversalInput{TransactionID: first.ID, Reason: "paid to wrong account"})
	require.NoError(t, err)
	assert.Equal(t, generic.TxReversal, rev.Type)
	assert.Equal(t, string(first.ID), rev.ReferenceID)

	// THEN: Cumulative paid drops, the original stays in the ledger
	sum, err := svc.Summary(ctx, id, day(2024, time.March, 15))
	require.NoError(t, err)
	assert.Equal(t, "25000.00", fixed(sum.CumulativePaid))

	txs, err = svc.Transactions(ctx, id, generic.ScopeCompany)
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	// A second reversal is a duplicate
	_, err = svc.ReversePayment(ctx, payroll.ReversalInput{TransactionID: first.ID})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	// Reversals themselves are not reversible
	_, err = svc.ReversePayment(ctx, payroll.ReversalInput{TransactionID: rev.ID})
	assert.ErrorIs(t, err, generic.ErrNotReversible)

	_, err = svc.ReversePayment(ctx, payroll.ReversalInput{TransactionID: "missing"})
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// CACHE AND DRIFT
// =============================================================================

func TestService_DriftAfterAttendanceCorrection(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)
	asOf := day(2024, time.March, 15)

	// GIVEN: A fresh cache
	snap, err := svc.RefreshEarnings(ctx, id, asOf)
	require.NoError(t, err)
	assert.Equal(t, generic.SnapshotRefresh, snap.Reason)
	assert.Equal(t, "9677.42", fixed(snap.Value.Value))

	rec, err := svc.CheckDrift(ctx, id, asOf)
	require.NoError(t, err)
	assert.True(t, rec.IsSynced)

	// WHEN: Another day is marked worked
	require.NoError(t, svc.MarkAttendance(ctx, id, []payroll.AttendanceMark{{Date: asOf, Worked: true}}))

	// THEN: Drift is reported and the cache is left alone
	rec, err = svc.CheckDrift(ctx, id, asOf)
	require.NoError(t, err)
	assert.True(t, rec.HasCache)
	assert.False(t, rec.IsSynced)
	assert.True(t, rec.RecomputeRequired)
	assert.True(t, rec.Stale)
	assert.Equal(t, "967.74", fixed(rec.Drift))

	cached, err := store.GetSnapshot(ctx, id, generic.MonthOf(asOf))
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "9677.42", fixed(cached.Value.Value))

	// Only an explicit refresh resolves it
	_, err = svc.RefreshEarnings(ctx, id, asOf)
	require.NoError(t, err)
	rec, err = svc.CheckDrift(ctx, id, asOf)
	require.NoError(t, err)
	assert.True(t, rec.IsSynced)
	assert.False(t, rec.Stale)
}

func TestService_MarkAttendanceRange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)

	march := generic.MonthOf(day(2024, time.March, 1))
	require.NoError(t, svc.MarkAttendanceRange(ctx, id,
		generic.Period{Start: day(2024, time.March, 16), End: day(2024, time.March, 17)}, false))

	records, err := svc.Attendance(ctx, id, march)
	require.NoError(t, err)
	assert.Len(t, records, 12)

	bad := generic.Period{Start: day(2024, time.March, 2), End: day(2024, time.March, 1)}
	assert.ErrorIs(t, svc.MarkAttendanceRange(ctx, id, bad, true), generic.ErrInvalidPeriod)
}

// =============================================================================
// PROJECT-BASED EMPLOYEES AND CONTRACTS
// =============================================================================

func newProjectEmployee(t *testing.T, svc *payroll.Service) generic.EmployeeID {
	t.Helper()
	emp, err := svc.CreateEmployee(context.Background(), payroll.Employee{
		ID:        "emp-carla",
		Name:      "Carla",
		Kind:      payroll.KindProjectBased,
		StartDate: day(2024, time.January, 15),
	})
	require.NoError(t, err)
	return emp.ID
}

func TestService_ProjectBased_NoAttendance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := newProjectEmployee(t, svc)

	err := svc.MarkAttendance(ctx, id, []payroll.AttendanceMark{{Date: day(2024, time.March, 1), Worked: true}})
	assert.ErrorIs(t, err, generic.ErrAttendanceNotTracked)

	_, err = svc.RefreshEarnings(ctx, id, day(2024, time.March, 1))
	assert.ErrorIs(t, err, generic.ErrAttendanceNotTracked)

	sum, err := svc.Summary(ctx, id, day(2024, time.March, 1))
	require.NoError(t, err)
	assert.Nil(t, sum.Earnings)
	assert.Nil(t, sum.Reconciliation)
	assert.Empty(t, sum.Schedule)
}

func TestService_ContractLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := newProjectEmployee(t, svc)
	wage := func(s string) *decimal.Decimal { d := money(s); return &d }

	pay := func(in payroll.ContractPaymentInput) payroll.ContractReceipt {
		t.Helper()
		in.EmployeeID = id
		in.Scope = "proj-bridge"
		r, err := svc.RecordContractPayment(ctx, in)
		require.NoError(t, err)
		return r
	}

	// Open 15000, pay 5000
	r := pay(payroll.ContractPaymentInput{AgreedWage: wage("15000"), Amount: money("5000"), Date: day(2024, time.February, 1), IdempotencyKey: "c-1"})
	assert.True(t, r.Plan.Opened)
	require.NotNil(t, r.Transaction)
	assert.Equal(t, r.Plan.Current.ID, r.Transaction.ReferenceID)

	prev, err := svc.PreviousWage(ctx, id, "proj-bridge")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "15000.00", fixed(prev.AgreedWage))

	// Pay the remaining 10000: closes
	r = pay(payroll.ContractPaymentInput{Amount: money("10000"), Date: day(2024, time.March, 1), IdempotencyKey: "c-2"})
	assert.True(t, r.Plan.AutoClosed)

	prev, err = svc.PreviousWage(ctx, id, "proj-bridge")
	require.NoError(t, err)
	assert.Nil(t, prev)

	// New agreement, then an override
	pay(payroll.ContractPaymentInput{AgreedWage: wage("8000"), Amount: money("2000"), Date: day(2024, time.March, 10), IdempotencyKey: "c-3"})
	r = pay(payroll.ContractPaymentInput{
		Amount:         money("3000"),
		Date:           day(2024, time.April, 2),
		Action:         payroll.CloseAndReopen(money("9000")),
		IdempotencyKey: "c-4",
	})
	require.NotNil(t, r.Plan.Abandoned)
	assert.Equal(t, "6000.00", fixed(r.Plan.Abandoned.Remaining()))

	// THEN: Three contracts, exactly one open
	contracts, err := svc.Contracts(ctx, id, "proj-bridge")
	require.NoError(t, err)
	require.Len(t, contracts, 3)
	open := 0
	for _, c := range contracts {
		if c.IsOpen() {
			open++
			assert.Equal(t, "9000.00", fixed(c.AgreedWage))
			assert.Equal(t, "3000.00", fixed(c.PaidAmount))
		}
	}
	assert.Equal(t, 1, open)

	txs, err := svc.Transactions(ctx, id, "proj-bridge")
	require.NoError(t, err)
	assert.Len(t, txs, 4)

	// Project payments do not count toward company-scope salary
	sum, err := svc.Summary(ctx, id, day(2024, time.April, 30))
	require.NoError(t, err)
	assert.True(t, sum.CumulativePaid.IsZero())
	assert.Len(t, sum.OpenContracts, 1)
}

func TestService_CompanyContractPaymentIsNotSalary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := setupSalaried(t, svc)

	// GIVEN: A one-off company-scope contract paid in full
	wage := money("5000")
	r, err := svc.RecordContractPayment(ctx, payroll.ContractPaymentInput{
		EmployeeID:     id,
		AgreedWage:     &wage,
		Amount:         money("5000"),
		Date:           day(2024, time.March, 5),
		IdempotencyKey: "company-bonus",
	})
	require.NoError(t, err)
	require.True(t, r.Plan.AutoClosed)

	// WHEN: Summarizing the salary
	sum, err := svc.Summary(ctx, id, day(2024, time.March, 15))
	require.NoError(t, err)

	// THEN: The contract payment is in the ledger but not in cumulative paid
	assert.Equal(t, "55000.00", fixed(sum.CumulativePaid))
	assert.Equal(t, "35000.00", fixed(sum.Accrual.RemainingSalary))
	assert.Equal(t, "5000.00", fixed(sum.Earnings.PreviousMonthsRemaining))

	txs, err := svc.Transactions(ctx, id, generic.ScopeCompany)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestService_BackDatedContractStaysReachable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := newProjectEmployee(t, svc)
	wage := func(s string) *decimal.Decimal { d := money(s); return &d }

	pay := func(in payroll.ContractPaymentInput) (payroll.ContractReceipt, error) {
		in.EmployeeID = id
		in.Scope = "proj-bridge"
		return svc.RecordContractPayment(ctx, in)
	}

	// GIVEN: A contract dated March 10 paid off, then a new one entered
	// with an earlier date
	_, err := pay(payroll.ContractPaymentInput{AgreedWage: wage("1000"), Amount: money("1000"), Date: day(2024, time.March, 10), IdempotencyKey: "b-1"})
	require.NoError(t, err)
	opened, err := pay(payroll.ContractPaymentInput{AgreedWage: wage("3000"), Date: day(2024, time.March, 1)})
	require.NoError(t, err)
	require.True(t, opened.Plan.Opened)

	// WHEN: The next entry continues without a wage
	r, err := pay(payroll.ContractPaymentInput{Amount: money("500"), Date: day(2024, time.March, 20), IdempotencyKey: "b-2"})
	require.NoError(t, err)

	// THEN: It pays the back-dated open contract
	assert.False(t, r.Plan.Opened)
	assert.Equal(t, opened.Plan.Current.ID, r.Plan.Current.ID)

	prev, err := svc.PreviousWage(ctx, id, "proj-bridge")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "3000.00", fixed(prev.AgreedWage))
	assert.Equal(t, "500.00", fixed(prev.PaidAmount))
}

func TestService_ContractPayment_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := newProjectEmployee(t, svc)

	// No wage, no open contract
	_, err := svc.RecordContractPayment(ctx, payroll.ContractPaymentInput{
		EmployeeID: id, Amount: money("10"), Date: day(2024, time.March, 1),
	})
	assert.ErrorIs(t, err, generic.ErrWageRequired)

	wage := money("1000")
	in := payroll.ContractPaymentInput{
		EmployeeID: id, AgreedWage: &wage, Amount: money("100"), Date: day(2024, time.March, 1), IdempotencyKey: "k",
	}
	_, err = svc.RecordContractPayment(ctx, in)
	require.NoError(t, err)

	// Replayed request
	_, err = svc.RecordContractPayment(ctx, in)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	// Changing the wage of the open contract
	other := money("1200")
	in.AgreedWage = &other
	in.IdempotencyKey = "k2"
	_, err = svc.RecordContractPayment(ctx, in)
	assert.ErrorIs(t, err, generic.ErrWageImmutable)

	// Default scope is company
	prev, err := svc.PreviousWage(ctx, id, "")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, generic.ScopeCompany, prev.Scope)
}
