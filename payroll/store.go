package payroll

import (
	"context"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// STORAGE CONTRACTS - implemented by store/sqlite
// =============================================================================

// EmployeeStore provides employee records.
type EmployeeStore interface {
	// GetEmployee returns generic.ErrEmployeeNotFound when id is unknown.
	GetEmployee(ctx context.Context, id generic.EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	SaveEmployee(ctx context.Context, e Employee) error
}

// AttendanceStore holds explicit attendance marks, unique per (employee, date).
type AttendanceStore interface {
	// UpsertAttendance creates or overwrites marks.
	UpsertAttendance(ctx context.Context, records []AttendanceRecord) error
	// LoadAttendance returns marks in period, ordered by date.
	LoadAttendance(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]AttendanceRecord, error)
}

// ContractStore holds labor contracts. SaveContractPlan is the write
// boundary for the single-open-contract invariant: it applies every write
// with a version compare-and-swap and appends tx in the same database
// transaction. A lost race returns generic.ErrConcurrentModification; a
// second open contract returns *generic.OpenContractConflictError.
type ContractStore interface {
	LoadContracts(ctx context.Context, employeeID generic.EmployeeID, scope generic.Scope) ([]LaborContract, error)
	SaveContractPlan(ctx context.Context, plan ContractPlan, tx *generic.Transaction) error
}

// TransactionLookup finds a single ledger entry.
type TransactionLookup interface {
	// GetTransaction returns nil when id is unknown.
	GetTransaction(ctx context.Context, id generic.TransactionID) (*generic.Transaction, error)
}

// Repository is everything the service persists outside the snapshot cache.
type Repository interface {
	generic.Store
	EmployeeStore
	AttendanceStore
	ContractStore
	TransactionLookup
}
