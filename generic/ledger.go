/*
ledger.go - Append-only payment log

PURPOSE:
  The Ledger is the immutable record of every amount paid to an employee.
  An employee's cumulative paid figure is always computed by replaying
  transactions, so there is no stored total that can drift from history.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A mistaken payment is not edited. A TxReversal referencing it is
  appended and both stay in the ledger; the net effect is the correction.

SALARY VS CONTRACTS:
  Contract payments share the log but not the salary figure. PaidAsOf
  counts salary payments and their reversals only; contracts keep their
  own paid amount.

SEE ALSO:
  - store.go: Low-level persistence interface
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for all money paid.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// Transactions returns all transactions for employee+scope, chronologically.
	Transactions(ctx context.Context, employeeID EmployeeID, scope Scope) ([]Transaction, error)

	// TransactionsInRange returns transactions in [from, to].
	TransactionsInRange(ctx context.Context, employeeID EmployeeID, scope Scope, from, to TimePoint) ([]Transaction, error)

	// PaidAsOf sums salary paid (net of reversals) effective on or before at.
	PaidAsOf(ctx context.Context, employeeID EmployeeID, scope Scope, at TimePoint) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) Transactions(ctx context.Context, employeeID EmployeeID, scope Scope) ([]Transaction, error) {
	return l.Store.Load(ctx, employeeID, scope)
}

func (l *DefaultLedger) TransactionsInRange(ctx context.Context, employeeID EmployeeID, scope Scope, from, to TimePoint) ([]Transaction, error) {
	return l.Store.LoadRange(ctx, employeeID, scope, from, to)
}

func (l *DefaultLedger) PaidAsOf(ctx context.Context, employeeID EmployeeID, scope Scope, at TimePoint) (Amount, error) {
	txs, err := l.Store.Load(ctx, employeeID, scope)
	if err != nil {
		return Amount{}, err
	}
	return SumPaid(txs, at), nil
}

// SumPaid replays the salary entries of txs (sorted by EffectiveAt) up to
// and including at. Contract payments are skipped.
func SumPaid(txs []Transaction, at TimePoint) Amount {
	paid := Amount{Unit: UnitCurrency}
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			break
		}
		if !tx.CountsAsSalary() {
			continue
		}
		paid = paid.Add(tx.Signed())
	}
	return paid
}
