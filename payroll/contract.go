package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LABOR CONTRACT LEDGER
// =============================================================================
//
// Per (employee, scope) the contracts form a sequence:
//
//   No Contract --wage entry--> Open --paid in full--> Closed
//                                 |
//                                 +--close-and-reopen--> Closed + new Open
//
// The agreed wage of an open contract never changes. A close-and-reopen
// abandons the old contract's remainder; it is not carried into the new one.
// At most one contract per scope is open; the store enforces that with a
// compare-and-swap on contract versions.

type CloseReason string

const (
	ClosePaidInFull CloseReason = "paid_in_full"
	CloseOverride   CloseReason = "override"
)

// LaborContract is one agreed-wage-for-scope agreement.
type LaborContract struct {
	ID          string
	EmployeeID  generic.EmployeeID
	Scope       generic.Scope
	AgreedWage  decimal.Decimal
	PaidAmount  decimal.Decimal
	CreatedAt   generic.TimePoint
	ClosedAt    *generic.TimePoint
	CloseReason CloseReason
	// Version increments on every write; used for compare-and-swap.
	Version int64
}

func (c LaborContract) IsOpen() bool { return c.ClosedAt == nil }

// Remaining is agreed wage minus paid. For an abandoned contract this is
// the amount left behind.
func (c LaborContract) Remaining() decimal.Decimal {
	return c.AgreedWage.Sub(c.PaidAmount)
}

// =============================================================================
// CONTRACT ACTION - replaces an ambient "start new agreement" toggle
// =============================================================================

type ContractActionKind string

const (
	ActionContinue       ContractActionKind = "continue"
	ActionCloseAndReopen ContractActionKind = "close_and_reopen"
)

// ContractAction is passed explicitly with every wage entry.
type ContractAction struct {
	Kind          ContractActionKind
	NewAgreedWage decimal.Decimal
}

func Continue() ContractAction { return ContractAction{Kind: ActionContinue} }

func CloseAndReopen(newAgreedWage decimal.Decimal) ContractAction {
	return ContractAction{Kind: ActionCloseAndReopen, NewAgreedWage: newAgreedWage}
}

// =============================================================================
// WAGE ENTRY PLANNING - pure state transition
// =============================================================================

// WageEntry is one save of the wage form: optionally an agreed wage (needed
// only when a contract has to be opened) and a payment, possibly zero.
type WageEntry struct {
	EmployeeID    generic.EmployeeID
	Scope         generic.Scope
	AgreedWage    *decimal.Decimal
	Payment       decimal.Decimal
	At            generic.TimePoint
	Action        ContractAction
	NewContractID string
}

// ContractWrite is one row change. Insert rows expect no prior version.
type ContractWrite struct {
	Contract        LaborContract
	ExpectedVersion int64
	Insert          bool
}

// ContractPlan is the outcome of a wage entry, applied atomically by the
// store.
type ContractPlan struct {
	EmployeeID generic.EmployeeID
	Scope      generic.Scope
	// Abandoned is the contract closed by an override, if any.
	Abandoned *LaborContract
	// Current is the contract the payment went to, after the payment.
	Current    LaborContract
	Opened     bool
	AutoClosed bool
	Applied    decimal.Decimal
	// Excess is payment beyond Current's remaining wage. It is reported,
	// not absorbed into the contract.
	Excess decimal.Decimal
	Writes []ContractWrite
}

// PreviousWageInfo returns the open contract, nil when every contract is
// closed or none exists. A contract opens only after all others closed, so
// the open one is the latest in the lifecycle whatever its CreatedAt says;
// entries may be back-dated.
func PreviousWageInfo(history []LaborContract) *LaborContract {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsOpen() {
			c := history[i]
			return &c
		}
	}
	return nil
}

// ValidateHistory checks the single-open-contract invariant.
func ValidateHistory(history []LaborContract) error {
	var open []string
	for _, c := range history {
		if c.IsOpen() {
			open = append(open, c.ID)
		}
	}
	if len(open) > 1 {
		first := history[0]
		return &generic.OpenContractConflictError{
			EmployeeID:  first.EmployeeID,
			Scope:       first.Scope,
			ContractIDs: open,
		}
	}
	return nil
}

// PlanWageEntry computes the contract transition for entry against history.
func PlanWageEntry(history []LaborContract, entry WageEntry) (ContractPlan, error) {
	if err := ValidateHistory(history); err != nil {
		return ContractPlan{}, err
	}
	if entry.Payment.IsNegative() {
		return ContractPlan{}, generic.ErrInvalidAmount
	}

	plan := ContractPlan{EmployeeID: entry.EmployeeID, Scope: entry.Scope}
	open := PreviousWageInfo(history)

	switch entry.Action.Kind {
	case ActionCloseAndReopen:
		if !entry.Action.NewAgreedWage.IsPositive() {
			return ContractPlan{}, generic.ErrWageRequired
		}
		if open != nil {
			abandoned := *open
			at := entry.At
			abandoned.ClosedAt = &at
			abandoned.CloseReason = CloseOverride
			abandoned.Version = open.Version + 1
			plan.Abandoned = &abandoned
			plan.Writes = append(plan.Writes, ContractWrite{Contract: abandoned, ExpectedVersion: open.Version})
		}
		plan.Current = newContract(entry, entry.Action.NewAgreedWage)
		plan.Opened = true

	case ActionContinue, "":
		if open == nil {
			if entry.AgreedWage == nil || !entry.AgreedWage.IsPositive() {
				return ContractPlan{}, generic.ErrWageRequired
			}
			plan.Current = newContract(entry, *entry.AgreedWage)
			plan.Opened = true
			break
		}
		if entry.AgreedWage != nil && !entry.AgreedWage.Equal(open.AgreedWage) {
			return ContractPlan{}, &generic.WageChangeError{
				ContractID: open.ID,
				Agreed:     open.AgreedWage,
				Requested:  *entry.AgreedWage,
			}
		}
		plan.Current = *open

	default:
		return ContractPlan{}, generic.ErrInvalidContractAction
	}

	expected := plan.Current.Version
	plan.Applied = decimal.Min(entry.Payment, generic.ClampZero(plan.Current.Remaining()))
	plan.Excess = entry.Payment.Sub(plan.Applied)
	plan.Current.PaidAmount = plan.Current.PaidAmount.Add(plan.Applied)
	if plan.Current.PaidAmount.GreaterThanOrEqual(plan.Current.AgreedWage) {
		at := entry.At
		plan.Current.ClosedAt = &at
		plan.Current.CloseReason = ClosePaidInFull
		plan.AutoClosed = true
	}
	plan.Current.Version = expected + 1
	plan.Writes = append(plan.Writes, ContractWrite{
		Contract:        plan.Current,
		ExpectedVersion: expected,
		Insert:          plan.Opened,
	})
	return plan, nil
}

func newContract(entry WageEntry, wage decimal.Decimal) LaborContract {
	return LaborContract{
		ID:         entry.NewContractID,
		EmployeeID: entry.EmployeeID,
		Scope:      entry.Scope,
		AgreedWage: wage,
		PaidAmount: decimal.Zero,
		CreatedAt:  entry.At,
	}
}
