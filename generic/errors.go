/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The payroll package and the stores wrap these errors with context.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Contract errors - Labor contract state machine violations
  3. Store errors - Lookup and concurrency failures

WHAT IS NOT AN ERROR:
  Overpayment, negative remaining salary, and unallocated payment residue
  are business states. They are reported in results, never returned here.

USAGE:
  if errors.Is(err, generic.ErrMultipleOpenContracts) {
      // data-integrity fault, stop and alert
  }
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when a compare-and-swap on a
	// contract or cache version loses the race.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrTransactionNotFound is returned when a referenced transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNotReversible is returned when a reversal targets anything other
	// than a salary payment.
	ErrNotReversible = errors.New("only salary payments can be reversed")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidAmount is returned for negative payments or wages.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAttendanceNotTracked is returned when attendance is written or
	// evaluated for a project-based employee.
	ErrAttendanceNotTracked = errors.New("attendance is not tracked for project-based employees")

	// ErrWageRequired is returned when a new contract must be opened but no
	// agreed wage was supplied.
	ErrWageRequired = errors.New("agreed wage required to open a contract")

	// ErrWageImmutable is returned when a different wage is supplied for an
	// open contract without an explicit close-and-reopen action.
	ErrWageImmutable = errors.New("agreed wage cannot change while contract is open")

	// ErrInvalidEmployee is returned when an employee record is malformed.
	ErrInvalidEmployee = errors.New("invalid employee")

	// ErrInvalidContractAction is returned for an unknown contract action.
	ErrInvalidContractAction = errors.New("invalid contract action")

	// ErrMultipleOpenContracts is a data-integrity fault: more than one open
	// contract exists for the same employee and scope.
	ErrMultipleOpenContracts = errors.New("multiple open contracts for scope")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OpenContractConflictError reports a violation of the single-open-contract
// invariant for one (employee, scope) pair.
type OpenContractConflictError struct {
	EmployeeID  EmployeeID
	Scope       Scope
	ContractIDs []string
}

func (e *OpenContractConflictError) Error() string {
	return fmt.Sprintf("employee %s scope %s has %d open contracts: %v",
		e.EmployeeID, e.Scope, len(e.ContractIDs), e.ContractIDs)
}

func (e *OpenContractConflictError) Unwrap() error {
	return ErrMultipleOpenContracts
}

// WageChangeError provides details when an open contract's wage would change.
type WageChangeError struct {
	ContractID string
	Agreed     decimal.Decimal
	Requested  decimal.Decimal
}

func (e *WageChangeError) Error() string {
	return fmt.Sprintf("contract %s has agreed wage %s, got %s (use close-and-reopen)",
		e.ContractID, e.Agreed, e.Requested)
}

func (e *WageChangeError) Unwrap() error {
	return ErrWageImmutable
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAttendanceNotTracked) ||
		errors.Is(err, ErrWageRequired) ||
		errors.Is(err, ErrWageImmutable) ||
		errors.Is(err, ErrInvalidContractAction) ||
		errors.Is(err, ErrInvalidEmployee) ||
		errors.Is(err, ErrNotReversible)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}
