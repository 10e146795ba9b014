/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	payroll data. Every scenario goes through payroll.Service, so loading
	one exercises the same paths as the API.

AVAILABLE SCENARIOS:

	salaried-midmonth:  30000/month since 2024-01-01, 55000 paid, ten days
	                    worked by 2024-03-15
	overpaid:           Paid well beyond straight-line accrual
	project-contracts:  Project-based worker with paid-in-full, rollover and
	                    override contracts

HOW SCENARIOS WORK:
 1. Reset database (clear all data and the external cache)
 2. Create employees
 3. Record payments and attendance through the service
 4. Refresh cached earnings where a scenario wants a warm cache

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "salaried-midmonth"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - payroll/service.go: Operations the loaders call
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "salaried-midmonth",
		Name:        "Salaried, Mid-Month",
		Description: "30000/month since Jan 2024, 55000 paid, 10 days worked by March 15",
	},
	{
		ID:          "overpaid",
		Name:        "Overpaid",
		Description: "Payments exceed both straight-line accrual and attendance earnings",
	},
	{
		ID:          "project-contracts",
		Name:        "Project Contracts",
		Description: "Project-based worker: paid-in-full, new agreement, and an override",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		h.writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			h.writeJSON(w, http.StatusOK, s)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loader, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	if err := loader(ctx); err != nil {
		h.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"salaried-midmonth": h.loadSalariedMidMonthScenario,
		"overpaid":          h.loadOverpaidScenario,
		"project-contracts": h.loadProjectContractsScenario,
	}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func money(s string) decimal.Decimal {
	return generic.MustParseDecimal(s)
}

// loadSalariedMidMonthScenario:
// monthly salary 30000 from 2024-01-01, paid 30000 + 25000, and ten
// weekdays worked in March up to the 14th. As of 2024-03-15:
//
//	months worked 3, owed 90000, remaining 35000
//	daily rate 30000/31, earned this month ~9677.42
func (h *Handler) loadSalariedMidMonthScenario(ctx context.Context) error {
	emp, err := h.Service.CreateEmployee(ctx, payroll.Employee{
		ID:            "emp-ana",
		Name:          "Ana Costa",
		Kind:          payroll.KindSalaried,
		MonthlySalary: money("30000"),
		StartDate:     date(2024, time.January, 1),
	})
	if err != nil {
		return err
	}

	payments := []struct {
		amount string
		on     generic.TimePoint
	}{
		{"30000", date(2024, time.January, 31)},
		{"25000", date(2024, time.February, 29)},
	}
	for i, p := range payments {
		if _, err := h.Service.RecordSalaryPayment(ctx, payroll.PaymentInput{
			EmployeeID:     emp.ID,
			Amount:         money(p.amount),
			Date:           p.on,
			IdempotencyKey: fmt.Sprintf("scenario-ana-salary-%d", i+1),
			Reason:         "Monthly salary",
			CreatedBy:      "scenario",
		}); err != nil {
			return err
		}
	}

	if err := h.markWeekdays(ctx, emp.ID, date(2024, time.March, 1), date(2024, time.March, 14)); err != nil {
		return err
	}

	_, err = h.Service.RefreshEarnings(ctx, emp.ID, date(2024, time.March, 15))
	return err
}

// loadOverpaidScenario: 20000/month from 2024-02-01 and a 50000 payment on
// 2024-03-05, against three worked days in March.
func (h *Handler) loadOverpaidScenario(ctx context.Context) error {
	emp, err := h.Service.CreateEmployee(ctx, payroll.Employee{
		ID:            "emp-bruno",
		Name:          "Bruno Lima",
		Kind:          payroll.KindSalaried,
		MonthlySalary: money("20000"),
		StartDate:     date(2024, time.February, 1),
	})
	if err != nil {
		return err
	}

	if err := h.markWeekdays(ctx, emp.ID, date(2024, time.March, 1), date(2024, time.March, 5)); err != nil {
		return err
	}

	if _, err := h.Service.RecordSalaryPayment(ctx, payroll.PaymentInput{
		EmployeeID:     emp.ID,
		Amount:         money("50000"),
		Date:           date(2024, time.March, 5),
		IdempotencyKey: "scenario-bruno-salary-1",
		Reason:         "Advance requested by employee",
		CreatedBy:      "scenario",
	}); err != nil {
		return err
	}

	// A late correction after the payment leaves the cache drifted.
	return h.Service.MarkAttendance(ctx, emp.ID, []payroll.AttendanceMark{
		{Date: date(2024, time.March, 4), Worked: false},
	})
}

// loadProjectContractsScenario: a project-based worker on two projects.
//
//	proj-bridge: 15000 agreed, paid 5000 + 10000 (closes), then 8000 agreed
//	             with 2000 paid, overridden by a 9000 agreement
//	company:     3000 agreed for warehouse work, 1000 paid
func (h *Handler) loadProjectContractsScenario(ctx context.Context) error {
	emp, err := h.Service.CreateEmployee(ctx, payroll.Employee{
		ID:        "emp-carla",
		Name:      "Carla Mendes",
		Kind:      payroll.KindProjectBased,
		StartDate: date(2024, time.January, 15),
	})
	if err != nil {
		return err
	}

	wage := func(s string) *decimal.Decimal {
		d := money(s)
		return &d
	}

	entries := []payroll.ContractPaymentInput{
		{Scope: "proj-bridge", AgreedWage: wage("15000"), Amount: money("5000"), Date: date(2024, time.February, 1)},
		{Scope: "proj-bridge", Amount: money("10000"), Date: date(2024, time.March, 1)},
		{Scope: "proj-bridge", AgreedWage: wage("8000"), Amount: money("2000"), Date: date(2024, time.March, 10)},
		{Scope: "proj-bridge", Amount: money("3000"), Date: date(2024, time.April, 2),
			Action: payroll.CloseAndReopen(money("9000"))},
		{Scope: generic.ScopeCompany, AgreedWage: wage("3000"), Amount: money("1000"), Date: date(2024, time.April, 5)},
	}
	for i, e := range entries {
		e.EmployeeID = emp.ID
		e.IdempotencyKey = fmt.Sprintf("scenario-carla-%d", i+1)
		e.CreatedBy = "scenario"
		if _, err := h.Service.RecordContractPayment(ctx, e); err != nil {
			return fmt.Errorf("contract entry %d: %w", i+1, err)
		}
	}
	return nil
}

// markWeekdays marks Monday to Friday in [from, to] as worked and weekends
// as not worked.
func (h *Handler) markWeekdays(ctx context.Context, id generic.EmployeeID, from, to generic.TimePoint) error {
	var marks []payroll.AttendanceMark
	for _, d := range (generic.Period{Start: from, End: to}).Days() {
		wd := d.Time.Weekday()
		marks = append(marks, payroll.AttendanceMark{
			Date:   d,
			Worked: wd != time.Saturday && wd != time.Sunday,
		})
	}
	return h.Service.MarkAttendance(ctx, id, marks)
}
