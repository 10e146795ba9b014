/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the payroll service needs using
  SQLite. The same patterns apply to PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  generic.Store:          Payment ledger persistence
  generic.TxStore:        Atomic multi-append
  generic.SnapshotStore:  Cached earnings and per-employee data versions
  payroll.Repository:     Employees, attendance, labor contracts

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the transactions table
  - No DELETE statements on the transactions table (except Reset)
  - Corrections via reversal transactions only

KEY TABLES:
  employees:          Salaried and project-based employees
  attendance:         One explicit mark per (employee, date)
  transactions:       Immutable ledger of money paid
  labor_contracts:    Agreed wage per (employee, scope), versioned
  earnings_snapshots: Cached current-month earnings
  data_versions:      Bumped on every attendance or payment write
  drift_runs:         Results of scheduled drift checks

SINGLE OPEN CONTRACT:
  idx_contracts_one_open is a partial unique index over open contracts, so
  the database itself refuses a second open contract for a scope. Contract
  updates are compare-and-swap on the version column.

DATES:
  Calendar dates (effective_at, attendance date, start_date) are stored as
  YYYY-MM-DD so that string comparison is date comparison. Audit
  timestamps are RFC3339.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := payroll.NewService(store, store, logger)

SEE ALSO:
  - generic/store.go: Ledger storage interface
  - payroll/store.go: Employee, attendance and contract interfaces
  - generic/store/memory.go: In-memory ledger for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ payroll.Repository    = (*Store)(nil)
	_ generic.TxStore       = (*Store)(nil)
	_ generic.SnapshotStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" gives every connection its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		monthly_salary TEXT NOT NULL DEFAULT '0',
		start_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Attendance (one mark per employee and day; re-marking overwrites)
	CREATE TABLE IF NOT EXISTS attendance (
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		worked BOOLEAN NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, date)
	);

	-- Transactions (append-only payment ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		amount_value TEXT NOT NULL,
		amount_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: cumulative paid per employee and scope
	CREATE INDEX IF NOT EXISTS idx_transactions_employee_scope_date
		ON transactions(employee_id, scope, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Labor contracts
	CREATE TABLE IF NOT EXISTS labor_contracts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		agreed_wage TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		closed_at TEXT,
		close_reason TEXT,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_employee_scope
		ON labor_contracts(employee_id, scope, created_at);

	-- CRITICAL: at most one open contract per employee and scope
	CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_one_open
		ON labor_contracts(employee_id, scope)
		WHERE closed_at IS NULL;

	-- Cached current-month earnings
	CREATE TABLE IF NOT EXISTS earnings_snapshots (
		employee_id TEXT NOT NULL,
		period TEXT NOT NULL,
		value TEXT NOT NULL,
		version INTEGER NOT NULL,
		taken_at TEXT NOT NULL,
		reason TEXT NOT NULL,
		PRIMARY KEY (employee_id, period)
	);

	-- Data versions (cache invalidation)
	CREATE TABLE IF NOT EXISTS data_versions (
		employee_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL
	);

	-- Drift runs (scheduled consistency checks)
	CREATE TABLE IF NOT EXISTS drift_runs (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period TEXT NOT NULL,
		status TEXT NOT NULL,
		cached TEXT,
		fresh TEXT NOT NULL,
		drift TEXT NOT NULL,
		error TEXT,
		checked_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_drift_runs_status
		ON drift_runs(status);
	CREATE INDEX IF NOT EXISTS idx_drift_runs_checked_at
		ON drift_runs(checked_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

const transactionColumns = `
	id, employee_id, scope, effective_at, amount_value, amount_unit,
	tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at`

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, db execer, tx generic.Transaction) error {
	metadataJSON, _ := json.Marshal(tx.Metadata)

	createdAt := tx.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.EmployeeID,
		normalizeScope(tx.Scope),
		formatDate(tx.EffectiveAt),
		tx.Amount.Value.String(),
		tx.Amount.Unit,
		tx.Type,
		nullString(tx.ReferenceID),
		tx.Reason,
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		tx.CreatedBy,
		createdAt.UTC().Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// Load returns all transactions for an employee+scope.
func (s *Store) Load(ctx context.Context, employeeID generic.EmployeeID, scope generic.Scope) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadTransactions(ctx, s.db, employeeID, scope)
}

func loadTransactions(ctx context.Context, db querier, employeeID generic.EmployeeID, scope generic.Scope) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE employee_id = ? AND scope = ?
		ORDER BY effective_at ASC, created_at ASC, rowid ASC`

	return queryTransactions(ctx, db, query, employeeID, normalizeScope(scope))
}

// LoadRange returns transactions effective in [from, to].
func (s *Store) LoadRange(ctx context.Context, employeeID generic.EmployeeID, scope generic.Scope, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE employee_id = ? AND scope = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, created_at ASC, rowid ASC`

	return queryTransactions(ctx, s.db, query, employeeID, normalizeScope(scope),
		formatDate(from), formatDate(to))
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// LoadByEmployee returns every transaction of an employee across scopes.
func (s *Store) LoadByEmployee(ctx context.Context, employeeID generic.EmployeeID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE employee_id = ?
		ORDER BY effective_at ASC, created_at ASC, rowid ASC`

	return queryTransactions(ctx, s.db, query, employeeID)
}

func queryTransactions(ctx context.Context, db querier, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		effectiveAt    string
		amountValue    string
		amountUnit     string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.EmployeeID, &tx.Scope, &effectiveAt, &amountValue, &amountUnit,
		&tx.Type, &referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.EffectiveAt = parseDate(effectiveAt)
	tx.Amount = parseAmount(amountValue, amountUnit)
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		tx.CreatedAt = generic.TimePoint{Time: t}
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata)
	}

	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore reads through the open transaction so fn sees its own writes.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) Load(ctx context.Context, employeeID generic.EmployeeID, scope generic.Scope) ([]generic.Transaction, error) {
	return loadTransactions(ctx, ts.tx, employeeID, scope)
}

func (ts *txStore) LoadRange(ctx context.Context, employeeID generic.EmployeeID, scope generic.Scope, from, to generic.TimePoint) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE employee_id = ? AND scope = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, created_at ASC, rowid ASC`

	return queryTransactions(ctx, ts.tx, query, employeeID, normalizeScope(scope),
		formatDate(from), formatDate(to))
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := ts.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// EMPLOYEE STORE (payroll.EmployeeStore)
// =============================================================================

// SaveEmployee creates or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := emp.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO employees (id, name, kind, monthly_salary, start_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			monthly_salary = excluded.monthly_salary,
			start_date = excluded.start_date
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Kind, emp.MonthlySalary.String(),
		formatDate(emp.StartDate), createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee returns an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emps, err := s.queryEmployees(ctx, `
		SELECT id, name, kind, monthly_salary, start_date, created_at
		FROM employees WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(emps) == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return &emps[0], nil
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEmployees(ctx, `
		SELECT id, name, kind, monthly_salary, start_date, created_at
		FROM employees ORDER BY name`)
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]payroll.Employee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []payroll.Employee
	for rows.Next() {
		var (
			emp                          payroll.Employee
			salary, startDate, createdAt string
		)
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Kind, &salary, &startDate, &createdAt); err != nil {
			return nil, err
		}
		emp.MonthlySalary = parseDecimal(salary)
		emp.StartDate = parseDate(startDate)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			emp.CreatedAt = generic.TimePoint{Time: t}
		}
		employees = append(employees, emp)
	}

	return employees, rows.Err()
}

// =============================================================================
// ATTENDANCE STORE (payroll.AttendanceStore)
// =============================================================================

// UpsertAttendance creates or overwrites marks in one transaction.
func (s *Store) UpsertAttendance(ctx context.Context, records []payroll.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO attendance (employee_id, date, worked, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(employee_id, date) DO UPDATE SET
				worked = excluded.worked,
				updated_at = excluded.updated_at
		`, r.EmployeeID, formatDate(r.Date), r.Worked, now)
		if err != nil {
			return fmt.Errorf("failed to upsert attendance: %w", err)
		}
	}

	return sqlTx.Commit()
}

// LoadAttendance returns marks in period, ordered by date.
func (s *Store) LoadAttendance(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]payroll.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, date, worked
		FROM attendance
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, employeeID, formatDate(period.Start), formatDate(period.End))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []payroll.AttendanceRecord
	for rows.Next() {
		var (
			r    payroll.AttendanceRecord
			date string
		)
		if err := rows.Scan(&r.EmployeeID, &date, &r.Worked); err != nil {
			return nil, err
		}
		r.Date = parseDate(date)
		records = append(records, r)
	}

	return records, rows.Err()
}

// =============================================================================
// CONTRACT STORE (payroll.ContractStore)
// =============================================================================

const contractColumns = `
	id, employee_id, scope, agreed_wage, paid_amount, created_at, closed_at, close_reason, version`

// LoadContracts returns contracts for employee and scope ("" for all scopes)
// in insertion order. CreatedAt is the wage entry's date and may be back-dated.
func (s *Store) LoadContracts(ctx context.Context, employeeID generic.EmployeeID, scope generic.Scope) ([]payroll.LaborContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if scope == "" {
		return queryContracts(ctx, s.db, `SELECT `+contractColumns+`
			FROM labor_contracts WHERE employee_id = ?
			ORDER BY rowid ASC`, employeeID)
	}
	return queryContracts(ctx, s.db, `SELECT `+contractColumns+`
		FROM labor_contracts WHERE employee_id = ? AND scope = ?
		ORDER BY rowid ASC`, employeeID, scope)
}

// SaveContractPlan applies every write with a version compare-and-swap and
// appends tx, all in one database transaction.
func (s *Store) SaveContractPlan(ctx context.Context, plan payroll.ContractPlan, tx *generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, w := range plan.Writes {
		if w.Insert {
			err = insertContract(ctx, sqlTx, w.Contract)
		} else {
			err = updateContract(ctx, sqlTx, w)
		}
		if err == nil {
			continue
		}
		if isUniqueConstraintError(err) {
			return openContractConflict(ctx, sqlTx, plan, w.Contract.ID)
		}
		return err
	}

	if tx != nil {
		if err := appendTx(ctx, sqlTx, *tx); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func insertContract(ctx context.Context, db execer, c payroll.LaborContract) error {
	_, err := db.ExecContext(ctx, `INSERT INTO labor_contracts (`+contractColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.EmployeeID, c.Scope, c.AgreedWage.String(), c.PaidAmount.String(),
		formatDate(c.CreatedAt), nullDate(c.ClosedAt), nullString(string(c.CloseReason)), c.Version,
	)
	return err
}

func updateContract(ctx context.Context, db execer, w payroll.ContractWrite) error {
	c := w.Contract
	res, err := db.ExecContext(ctx, `
		UPDATE labor_contracts
		SET paid_amount = ?, closed_at = ?, close_reason = ?, version = ?
		WHERE id = ? AND version = ?
	`, c.PaidAmount.String(), nullDate(c.ClosedAt), nullString(string(c.CloseReason)), c.Version,
		c.ID, w.ExpectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: contract %s at version %d", generic.ErrConcurrentModification, c.ID, w.ExpectedVersion)
	}
	return nil
}

func openContractConflict(ctx context.Context, sqlTx *sql.Tx, plan payroll.ContractPlan, attemptedID string) error {
	open, err := queryContracts(ctx, sqlTx, `SELECT `+contractColumns+`
		FROM labor_contracts
		WHERE employee_id = ? AND scope = ? AND closed_at IS NULL`,
		plan.EmployeeID, plan.Scope)
	if err != nil {
		return err
	}
	ids := []string{attemptedID}
	for _, c := range open {
		ids = append(ids, c.ID)
	}
	return &generic.OpenContractConflictError{
		EmployeeID:  plan.EmployeeID,
		Scope:       plan.Scope,
		ContractIDs: ids,
	}
}

func queryContracts(ctx context.Context, db querier, query string, args ...any) ([]payroll.LaborContract, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []payroll.LaborContract
	for rows.Next() {
		var (
			c                     payroll.LaborContract
			agreed, paid, created string
			closedAt, closeReason sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.Scope, &agreed, &paid,
			&created, &closedAt, &closeReason, &c.Version); err != nil {
			return nil, err
		}
		c.AgreedWage = parseDecimal(agreed)
		c.PaidAmount = parseDecimal(paid)
		c.CreatedAt = parseDate(created)
		if closedAt.Valid {
			t := parseDate(closedAt.String)
			c.ClosedAt = &t
		}
		c.CloseReason = payroll.CloseReason(closeReason.String)
		contracts = append(contracts, c)
	}

	return contracts, rows.Err()
}

// =============================================================================
// SNAPSHOT STORE (generic.SnapshotStore)
// =============================================================================

// SaveSnapshot replaces the cached earnings for (employee, period).
func (s *Store) SaveSnapshot(ctx context.Context, snap generic.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO earnings_snapshots (employee_id, period, value, version, taken_at, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, period) DO UPDATE SET
			value = excluded.value,
			version = excluded.version,
			taken_at = excluded.taken_at,
			reason = excluded.reason
	`, snap.EmployeeID, snap.Period.Key(), snap.Value.Value.String(), snap.Version,
		formatDate(snap.TakenAt), snap.Reason)
	return err
}

// GetSnapshot returns the cached earnings, or nil if none.
func (s *Store) GetSnapshot(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) (*generic.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		snap           generic.Snapshot
		value, takenAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT value, version, taken_at, reason
		FROM earnings_snapshots
		WHERE employee_id = ? AND period = ?
	`, employeeID, period.Key()).Scan(&value, &snap.Version, &takenAt, &snap.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap.EmployeeID = employeeID
	snap.Period = period
	snap.Value = generic.NewMoney(parseDecimal(value))
	snap.TakenAt = parseDate(takenAt)
	return &snap, nil
}

// DataVersion returns the employee's data version, 0 if never bumped.
func (s *Store) DataVersion(ctx context.Context, employeeID generic.EmployeeID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT version FROM data_versions WHERE employee_id = ?", employeeID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

// BumpDataVersion increments and returns the employee's data version.
func (s *Store) BumpDataVersion(ctx context.Context, employeeID generic.EmployeeID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO data_versions (employee_id, version) VALUES (?, 1)
		ON CONFLICT(employee_id) DO UPDATE SET version = version + 1
		RETURNING version
	`, employeeID).Scan(&version)
	return version, err
}

// =============================================================================
// DRIFT RUNS STORE
// =============================================================================

// DriftRun is the recorded result of one scheduled drift check.
type DriftRun struct {
	ID         string
	EmployeeID generic.EmployeeID
	Period     string // YYYY-MM
	Status     string // synced, drift, no_cache, failed
	Cached     *decimal.Decimal
	Fresh      decimal.Decimal
	Drift      decimal.Decimal
	Error      string
	CheckedAt  time.Time
}

// SaveDriftRun records a drift check.
func (s *Store) SaveDriftRun(ctx context.Context, r DriftRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cached *string
	if r.Cached != nil {
		v := r.Cached.String()
		cached = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drift_runs (id, employee_id, period, status, cached, fresh, drift, error, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.EmployeeID, r.Period, r.Status, cached, r.Fresh.String(), r.Drift.String(),
		nullString(r.Error), r.CheckedAt.UTC().Format(time.RFC3339))
	return err
}

// GetDriftRuns returns drift runs, newest first, optionally filtered by status.
func (s *Store) GetDriftRuns(ctx context.Context, status string, limit int) ([]DriftRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, period, status, cached, fresh, drift, error, checked_at
		FROM drift_runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY checked_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []DriftRun
	for rows.Next() {
		var (
			r                   DriftRun
			cached, errText     sql.NullString
			fresh, drift, taken string
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Period, &r.Status,
			&cached, &fresh, &drift, &errText, &taken); err != nil {
			return nil, err
		}
		if cached.Valid {
			d := parseDecimal(cached.String)
			r.Cached = &d
		}
		r.Fresh = parseDecimal(fresh)
		r.Drift = parseDecimal(drift)
		r.Error = errText.String
		r.CheckedAt, _ = time.Parse(time.RFC3339, taken)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"transactions", "labor_contracts", "attendance", "earnings_snapshots",
		"data_versions", "drift_runs", "employees",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// GetAllTransactions returns the latest transactions (for admin view).
func (s *Store) GetAllTransactions(ctx context.Context, limit int) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY created_at DESC
		LIMIT ?`

	return queryTransactions(ctx, s.db, query, limit)
}

// GetTransaction returns a specific transaction by ID, or nil.
func (s *Store) GetTransaction(ctx context.Context, id generic.TransactionID) (*generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ?`

	txs, err := queryTransactions(ctx, s.db, query, id)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t *generic.TimePoint) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func formatDate(t generic.TimePoint) string {
	return t.Time.Format(time.DateOnly)
}

func parseDate(s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		// Rows written before dates were normalized carry full timestamps.
		t, _ := time.Parse(time.RFC3339, s)
		return generic.DateOf(t)
	}
	return tp
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseAmount(value, unit string) generic.Amount {
	return generic.Amount{
		Value: parseDecimal(value),
		Unit:  generic.Unit(unit),
	}
}

func normalizeScope(s generic.Scope) generic.Scope {
	if s.IsCompany() {
		return generic.ScopeCompany
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
