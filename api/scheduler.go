/*
scheduler.go - Background drift checker

PURPOSE:
  Periodically compares every salaried employee's cached current-month
  earnings with a live recomputation and records the outcome. It never
  rewrites the cache: a drifted figure may back a payment allocation that
  was already confirmed, so recompute stays an explicit operator action
  (POST /api/employees/{id}/earnings/refresh).

DESIGN:
  - DriftChecker does one pass and records a DriftRun per employee
  - DriftScheduler runs the checker on a ticker in a background goroutine
  - Project-based employees are skipped (no attendance model, no cache)

RUN STATUSES:
  synced    cached and fresh agree within tolerance
  drift     they disagree; recompute required
  no_cache  nothing cached for the month
  failed    the check itself errored

CONFIGURATION:
  - Interval: DRIFT_CHECK_INTERVAL (default 1h, 0 disables)

USAGE:
  scheduler := NewDriftScheduler(handler.Drift, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - payroll/reconcile.go: Reconcile
  - handlers.go: CheckDrift endpoint (manual run)
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

const (
	DriftSynced  = "synced"
	DriftFound   = "drift"
	DriftNoCache = "no_cache"
	DriftFailed  = "failed"
)

// =============================================================================
// DRIFT CHECKER
// =============================================================================

// DriftChecker runs drift checks and records them.
type DriftChecker struct {
	Store   *sqlite.Store
	Service *payroll.Service
	Logger  *slog.Logger
}

// NewDriftChecker creates a checker.
func NewDriftChecker(store *sqlite.Store, svc *payroll.Service, logger *slog.Logger) *DriftChecker {
	return &DriftChecker{Store: store, Service: svc, Logger: logger}
}

// Check compares cached and live earnings for one employee and records the
// run. A failed comparison is recorded with status failed and returned as an
// error.
func (dc *DriftChecker) Check(ctx context.Context, id generic.EmployeeID, asOf generic.TimePoint) (sqlite.DriftRun, error) {
	run := sqlite.DriftRun{
		ID:         uuid.NewString(),
		EmployeeID: id,
		Period:     generic.MonthOf(asOf).Key(),
		CheckedAt:  time.Now(),
	}

	rec, err := dc.Service.CheckDrift(ctx, id, asOf)
	if err != nil {
		if generic.IsNotFound(err) || generic.IsClientError(err) {
			return sqlite.DriftRun{}, err
		}
		run.Status = DriftFailed
		run.Error = err.Error()
		if saveErr := dc.Store.SaveDriftRun(ctx, run); saveErr != nil {
			dc.Logger.Error("save drift run", slog.Any("error", saveErr))
		}
		return run, err
	}

	run.Fresh = rec.Fresh
	run.Drift = rec.Drift
	switch {
	case !rec.HasCache:
		run.Status = DriftNoCache
	case rec.IsSynced:
		run.Status = DriftSynced
	default:
		run.Status = DriftFound
	}
	if rec.HasCache {
		cached := rec.Cached
		run.Cached = &cached
	}

	if err := dc.Store.SaveDriftRun(ctx, run); err != nil {
		return run, fmt.Errorf("failed to save drift run: %w", err)
	}
	return run, nil
}

// CheckAll checks every salaried employee. Individual failures are recorded
// and do not stop the pass.
func (dc *DriftChecker) CheckAll(ctx context.Context, asOf generic.TimePoint) ([]sqlite.DriftRun, error) {
	employees, err := dc.Service.Employees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	runs := []sqlite.DriftRun{}
	counts := map[string]int{}
	for _, emp := range employees {
		if !emp.Kind.AttendanceTracked() {
			continue
		}
		run, err := dc.Check(ctx, emp.ID, asOf)
		if err != nil {
			dc.Logger.Error("drift check failed",
				slog.String("employee_id", string(emp.ID)),
				slog.Any("error", err),
			)
			if run.ID == "" {
				continue
			}
		}
		counts[run.Status]++
		runs = append(runs, run)
	}

	dc.Logger.Info("drift check completed",
		slog.String("period", generic.MonthOf(asOf).Key()),
		slog.Int("synced", counts[DriftSynced]),
		slog.Int("drift", counts[DriftFound]),
		slog.Int("no_cache", counts[DriftNoCache]),
		slog.Int("failed", counts[DriftFailed]),
	)
	return runs, nil
}

// =============================================================================
// DRIFT SCHEDULER
// =============================================================================

// DriftScheduler runs a DriftChecker periodically.
type DriftScheduler struct {
	Checker  *DriftChecker
	Interval time.Duration
	Today    func() generic.TimePoint

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDriftScheduler creates a new scheduler. Interval <= 0 disables it.
func NewDriftScheduler(checker *DriftChecker, interval time.Duration) *DriftScheduler {
	return &DriftScheduler{
		Checker:  checker,
		Interval: interval,
		Today:    generic.Today,
	}
}

// Start begins the scheduler.
func (ds *DriftScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.Interval <= 0 {
		ds.Checker.Logger.Info("drift scheduler disabled")
		return
	}
	if ds.ticker != nil {
		return
	}

	ds.ticker = time.NewTicker(ds.Interval)
	ds.stop = make(chan struct{})
	ds.wg.Add(1)

	go ds.run()

	ds.Checker.Logger.Info("drift scheduler started", slog.Duration("interval", ds.Interval))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (ds *DriftScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		ds.ticker = nil
		ds.Checker.Logger.Info("drift scheduler stopped")
	}
}

func (ds *DriftScheduler) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.RunNow()

	for {
		select {
		case <-ds.ticker.C:
			ds.RunNow()
		case <-ds.stop:
			return
		}
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (ds *DriftScheduler) RunNow() {
	if _, err := ds.Checker.CheckAll(context.Background(), ds.Today()); err != nil {
		ds.Checker.Logger.Error("drift pass failed", slog.Any("error", err))
	}
}
