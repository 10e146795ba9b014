package generic

import "context"

// =============================================================================
// SNAPSHOT - Cached derived figure for one employee and pay period
// =============================================================================

// Snapshot captures a derived value (current-month earnings) computed at some
// earlier time, together with the employee's data version at that time.
// Used for:
//   - Fast reads on list and summary screens
//   - Backing an already-confirmed payment allocation
//   - Drift detection against a live recomputation
//
// A snapshot is never rewritten implicitly. Writes to attendance or payments
// bump the employee's data version, which makes older snapshots Stale; only
// an explicit refresh replaces them.
type Snapshot struct {
	EmployeeID EmployeeID
	Period     Period
	Value      Amount
	Version    int64
	TakenAt    TimePoint
	Reason     SnapshotReason
}

type SnapshotReason string

const (
	SnapshotPayment SnapshotReason = "payment" // Stored alongside a payment allocation
	SnapshotRefresh SnapshotReason = "refresh" // Operator requested recompute
)

// Stale reports whether data changed since the snapshot was taken.
func (s Snapshot) Stale(currentVersion int64) bool {
	return s.Version < currentVersion
}

// =============================================================================
// SNAPSHOT STORE - Persistence for snapshots and data versions
// =============================================================================

type SnapshotStore interface {
	// SaveSnapshot replaces the snapshot for (employee, period).
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error

	// GetSnapshot returns the snapshot for (employee, period), or nil.
	GetSnapshot(ctx context.Context, employeeID EmployeeID, period Period) (*Snapshot, error)

	// DataVersion returns the employee's current data version (0 if never bumped).
	DataVersion(ctx context.Context, employeeID EmployeeID) (int64, error)

	// BumpDataVersion increments and returns the employee's data version.
	BumpDataVersion(ctx context.Context, employeeID EmployeeID) (int64, error)
}
