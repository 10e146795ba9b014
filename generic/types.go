/*
Package generic provides the domain-agnostic core of the payroll engine.

PURPOSE:
  This package contains the building blocks every payroll calculation is
  made of: calendar arithmetic, decimal amounts, the append-only payment
  ledger and the storage contracts behind it. It knows nothing about
  salaries, attendance or labor contracts; the payroll package layers
  those rules on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit
  - Transaction: An immutable ledger entry recording money paid
  - Identifiers: Type-safe employee, scope and transaction IDs

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing employee/scope IDs
  4. Auditability: Every transaction has reason, reference, and idempotency key

USAGE:
  tx := generic.Transaction{
      EmployeeID: "emp-123",
      Scope:      generic.ScopeCompany,
      Amount:     generic.NewMoneyFromString("25000"),
      Type:       generic.TxSalaryPayment,
  }

SEE ALSO:
  - time.go: Calendar utilities
  - ledger.go: Transaction log and cumulative paid
  - store.go: Persistence interfaces
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const UnitCurrency Unit = "currency"

func NewMoney(value decimal.Decimal) Amount {
	return Amount{Value: value, Unit: UnitCurrency}
}

func NewMoneyFromString(s string) Amount {
	return NewMoney(MustParseDecimal(s))
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }

// ClampZero returns max(0, d).
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type TransactionID string

// Scope identifies what a payment or labor contract is for: a project ID,
// or ScopeCompany for non-project labor and salary.
type Scope string

const ScopeCompany Scope = "company"

func (s Scope) IsCompany() bool { return s == "" || s == ScopeCompany }

// =============================================================================
// TRANSACTION - Money paid to an employee
// =============================================================================

type TransactionType string

const (
	TxSalaryPayment   TransactionType = "salary_payment"   // Paid against calendar salary
	TxContractPayment TransactionType = "contract_payment" // Paid against a labor contract
	TxReversal        TransactionType = "reversal"         // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	EmployeeID     EmployeeID
	Scope          Scope
	EffectiveAt    TimePoint
	Amount         Amount
	Type           TransactionType
	ReferenceID    string // contract ID for contract payments, original tx for reversals
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	// Audit fields
	CreatedBy string
	CreatedAt TimePoint
}

// Signed returns the amount the transaction contributes to cumulative paid.
// CountsAsSalary reports whether tx moves the salary cumulative paid. Only
// salary payments are reversible, so every reversal does.
func (tx Transaction) CountsAsSalary() bool {
	return tx.Type == TxSalaryPayment || tx.Type == TxReversal
}

func (tx Transaction) Signed() Amount {
	if tx.Type == TxReversal {
		return tx.Amount.Neg()
	}
	return tx.Amount
}
