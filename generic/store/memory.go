// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.Store and generic.SnapshotStore.
type Memory struct {
	mu           sync.RWMutex
	transactions map[key][]generic.Transaction
	idempotency  map[string]bool
	snapshots    map[snapshotKey]generic.Snapshot
	versions     map[generic.EmployeeID]int64
}

type key struct {
	EmployeeID generic.EmployeeID
	Scope      generic.Scope
}

type snapshotKey struct {
	EmployeeID generic.EmployeeID
	Period     string
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[key][]generic.Transaction),
		idempotency:  make(map[string]bool),
		snapshots:    make(map[snapshotKey]generic.Snapshot),
		versions:     make(map[generic.EmployeeID]int64),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(tx)
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) {
	k := key{EmployeeID: tx.EmployeeID, Scope: normalizeScope(tx.Scope)}
	txs := m.transactions[k]

	// Insert after every transaction effective on or before tx.
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})

	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[k] = txs

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
}

func (m *Memory) Load(_ context.Context, employeeID generic.EmployeeID, scope generic.Scope) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := key{EmployeeID: employeeID, Scope: normalizeScope(scope)}
	result := make([]generic.Transaction, len(m.transactions[k]))
	copy(result, m.transactions[k])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, employeeID generic.EmployeeID, scope generic.Scope, from, to generic.TimePoint) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := key{EmployeeID: employeeID, Scope: normalizeScope(scope)}
	var result []generic.Transaction
	for _, tx := range m.transactions[k] {
		if from.BeforeOrEqual(tx.EffectiveAt) && tx.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// SNAPSHOTS (generic.SnapshotStore)
// =============================================================================

func (m *Memory) SaveSnapshot(_ context.Context, snap generic.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshotKey{snap.EmployeeID, snap.Period.Key()}] = snap
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, employeeID generic.EmployeeID, period generic.Period) (*generic.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[snapshotKey{employeeID, period.Key()}]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *Memory) DataVersion(_ context.Context, employeeID generic.EmployeeID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[employeeID], nil
}

func (m *Memory) BumpDataVersion(_ context.Context, employeeID generic.EmployeeID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[employeeID]++
	return m.versions[employeeID], nil
}

// Reset drops everything.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = make(map[key][]generic.Transaction)
	m.idempotency = make(map[string]bool)
	m.snapshots = make(map[snapshotKey]generic.Snapshot)
	m.versions = make(map[generic.EmployeeID]int64)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	saved := tm.copyLedger()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.transactions = saved.transactions
		tm.idempotency = saved.idempotency
		return err
	}
	return nil
}

type ledgerCopy struct {
	transactions map[key][]generic.Transaction
	idempotency  map[string]bool
}

func (tm *TxMemory) copyLedger() ledgerCopy {
	txsCopy := make(map[key][]generic.Transaction, len(tm.transactions))
	for k, v := range tm.transactions {
		txsCopy[k] = append([]generic.Transaction{}, v...)
	}
	idempCopy := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idempCopy[k] = v
	}
	return ledgerCopy{transactions: txsCopy, idempotency: idempCopy}
}

// txMemoryView runs with the parent's lock already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && tv.parent.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	tv.parent.appendLocked(tx)
	return nil
}

func (tv *txMemoryView) Load(_ context.Context, employeeID generic.EmployeeID, scope generic.Scope) ([]generic.Transaction, error) {
	k := key{EmployeeID: employeeID, Scope: normalizeScope(scope)}
	return append([]generic.Transaction{}, tv.parent.transactions[k]...), nil
}

func (tv *txMemoryView) LoadRange(_ context.Context, employeeID generic.EmployeeID, scope generic.Scope, from, to generic.TimePoint) ([]generic.Transaction, error) {
	k := key{EmployeeID: employeeID, Scope: normalizeScope(scope)}
	var result []generic.Transaction
	for _, tx := range tv.parent.transactions[k] {
		if from.BeforeOrEqual(tx.EffectiveAt) && tx.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

func normalizeScope(s generic.Scope) generic.Scope {
	if s.IsCompany() {
		return generic.ScopeCompany
	}
	return s
}
