package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// CONSISTENCY RECONCILER - cached vs live earnings
// =============================================================================

// DriftTolerance is an absolute tolerance in currency units.
var DriftTolerance = decimal.New(1, -2)

// Reconciliation is the verdict of comparing a cached figure with a fresh
// one. Drift is never resolved here: the cached value may back a payment
// allocation that was already confirmed, so both values are exposed and the
// caller has to ask for a recompute explicitly.
type Reconciliation struct {
	Cached decimal.Decimal
	Fresh  decimal.Decimal
	Drift  decimal.Decimal

	IsSynced          bool
	RecomputeRequired bool

	// HasCache is false when nothing was cached for the period.
	HasCache bool
	// Stale is true when attendance or payments changed after the cache
	// was taken, even if the numbers still agree.
	Stale bool
}

// Reconcile compares cached and fresh earnings.
func Reconcile(cached, fresh decimal.Decimal) Reconciliation {
	drift := cached.Sub(fresh).Abs()
	synced := drift.LessThan(DriftTolerance)
	return Reconciliation{
		Cached:            cached,
		Fresh:             fresh,
		Drift:             drift,
		IsSynced:          synced,
		RecomputeRequired: !synced,
		HasCache:          true,
	}
}

// ReconcileSnapshot compares a stored snapshot (possibly nil) with fresh
// earnings, taking the employee's current data version into account.
func ReconcileSnapshot(snap *generic.Snapshot, fresh decimal.Decimal, currentVersion int64) Reconciliation {
	if snap == nil {
		return Reconciliation{Fresh: fresh, Drift: fresh.Abs(), RecomputeRequired: true}
	}
	r := Reconcile(snap.Value.Value, fresh)
	r.Stale = snap.Stale(currentVersion)
	return r
}
