/*
Package rediscache keeps the derived earnings cache in Redis.

PURPOSE:
  Implements generic.SnapshotStore so several server processes can share
  one earnings cache and one set of data versions. The ledger, attendance
  and contracts stay in SQLite; only derived, recomputable state lives here.

KEYS:
  payroll:snapshot:{employee}:{YYYY-MM}  JSON snapshot, expires after TTL
  payroll:version:{employee}             INCR counter, never expires

  An expired snapshot reads as "no cache", which the reconciler reports as
  RecomputeRequired. Versions must not expire or a stale snapshot could
  look fresh again.

SEE ALSO:
  - generic/snapshot.go: Snapshot and SnapshotStore
  - store/sqlite: the default SnapshotStore
*/
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

const keyPrefix = "payroll:"

// DefaultTTL is how long a cached snapshot is kept.
const DefaultTTL = 35 * 24 * time.Hour

// Cache implements generic.SnapshotStore on Redis.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ generic.SnapshotStore = (*Cache)(nil)

// New wraps an existing client. ttl <= 0 uses DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

type snapshotRecord struct {
	EmployeeID string `json:"employee_id"`
	Period     string `json:"period"`
	Value      string `json:"value"`
	Version    int64  `json:"version"`
	TakenAt    string `json:"taken_at"`
	Reason     string `json:"reason"`
}

func snapshotKey(employeeID generic.EmployeeID, period generic.Period) string {
	return keyPrefix + "snapshot:" + string(employeeID) + ":" + period.Key()
}

func versionKey(employeeID generic.EmployeeID) string {
	return keyPrefix + "version:" + string(employeeID)
}

// SaveSnapshot replaces the snapshot for (employee, period).
func (c *Cache) SaveSnapshot(ctx context.Context, snap generic.Snapshot) error {
	b, err := json.Marshal(snapshotRecord{
		EmployeeID: string(snap.EmployeeID),
		Period:     snap.Period.Key(),
		Value:      snap.Value.Value.String(),
		Version:    snap.Version,
		TakenAt:    snap.TakenAt.String(),
		Reason:     string(snap.Reason),
	})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotKey(snap.EmployeeID, snap.Period), b, c.ttl).Err()
}

// GetSnapshot returns the snapshot, or nil if missing or expired.
func (c *Cache) GetSnapshot(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) (*generic.Snapshot, error) {
	val, err := c.rdb.Get(ctx, snapshotKey(employeeID, period)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec snapshotRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	value, err := decimal.NewFromString(rec.Value)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot value: %w", err)
	}
	takenAt, err := generic.ParseDate(rec.TakenAt)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot date: %w", err)
	}

	return &generic.Snapshot{
		EmployeeID: employeeID,
		Period:     period,
		Value:      generic.NewMoney(value),
		Version:    rec.Version,
		TakenAt:    takenAt,
		Reason:     generic.SnapshotReason(rec.Reason),
	}, nil
}

// DataVersion returns the employee's data version, 0 if never bumped.
func (c *Cache) DataVersion(ctx context.Context, employeeID generic.EmployeeID) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey(employeeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// BumpDataVersion increments and returns the employee's data version.
func (c *Cache) BumpDataVersion(ctx context.Context, employeeID generic.EmployeeID) (int64, error) {
	return c.rdb.Incr(ctx, versionKey(employeeID)).Result()
}

// Reset deletes every key this cache owns.
func (c *Cache) Reset(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
