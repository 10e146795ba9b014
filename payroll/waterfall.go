package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// PAYMENT ALLOCATION WATERFALL
// =============================================================================

// BucketName identifies an obligation a payment can be applied to.
type BucketName string

const (
	BucketPriorPeriods  BucketName = "prior_periods"
	BucketCurrentWorked BucketName = "current_period_worked"
	BucketAdvance       BucketName = "advance_unworked_days"
)

// Bucket is one obligation in the waterfall. When Step is positive the
// bucket only accepts whole multiples of Step (advances are paid per day).
type Bucket struct {
	Name     BucketName
	Capacity decimal.Decimal
	Step     decimal.Decimal
}

// Fill is what one bucket received. Steps is set for stepped buckets.
type Fill struct {
	Name   BucketName
	Amount decimal.Decimal
	Steps  int64
}

// Reduce pours pool through buckets in order. Each bucket takes
// min(pool, capacity), rounded down to its step. Whatever is left after the
// last bucket is returned as residual; fills plus residual always equal pool.
func Reduce(pool decimal.Decimal, buckets []Bucket) ([]Fill, decimal.Decimal) {
	fills := make([]Fill, 0, len(buckets))
	for _, b := range buckets {
		take := decimal.Min(generic.ClampZero(pool), generic.ClampZero(b.Capacity))
		var steps int64
		if b.Step.IsPositive() {
			n := take.Div(b.Step).Floor()
			// Division rounding can overshoot by one step.
			for n.IsPositive() && n.Mul(b.Step).GreaterThan(pool) {
				n = n.Sub(decimal.NewFromInt(1))
			}
			steps = n.IntPart()
			take = n.Mul(b.Step)
		}
		pool = pool.Sub(take)
		fills = append(fills, Fill{Name: b.Name, Amount: take, Steps: steps})
	}
	return fills, pool
}

// AllocationInput is the snapshot a single payment is allocated against.
type AllocationInput struct {
	PreviousMonthsRemaining     decimal.Decimal
	ThisMonthEarned             decimal.Decimal
	PaymentAmount               decimal.Decimal
	DailyRate                   decimal.Decimal
	RemainingDaysInCurrentMonth int
}

// AllocationResult is derived per payment and never cached.
type AllocationResult struct {
	PaidToPriorPeriods        decimal.Decimal
	PaidToCurrentPeriodWorked decimal.Decimal
	AdvanceForUnworkedDays    decimal.Decimal
	AdvanceDays               int
	// Payment beyond every known obligation, including a fully advanced
	// month. Callers decide how to surface it.
	ResidualUnallocated decimal.Decimal
	Fills               []Fill
}

// Total is the sum of all buckets and the residual.
func (r AllocationResult) Total() decimal.Decimal {
	return r.PaidToPriorPeriods.
		Add(r.PaidToCurrentPeriodWorked).
		Add(r.AdvanceForUnworkedDays).
		Add(r.ResidualUnallocated)
}

// HasResidual reports an allocation overflow.
func (r AllocationResult) HasResidual() bool { return r.ResidualUnallocated.IsPositive() }

// AllocationBuckets returns the fixed priority order: prior periods first,
// then this month's worked days, then an advance over this month's unworked
// days. Advances never reach into future months.
func AllocationBuckets(in AllocationInput) []Bucket {
	advance := Bucket{Name: BucketAdvance}
	if in.DailyRate.IsPositive() && in.RemainingDaysInCurrentMonth > 0 {
		advance.Step = in.DailyRate
		advance.Capacity = in.DailyRate.Mul(decimal.NewFromInt(int64(in.RemainingDaysInCurrentMonth)))
	}
	return []Bucket{
		{Name: BucketPriorPeriods, Capacity: generic.ClampZero(in.PreviousMonthsRemaining)},
		{Name: BucketCurrentWorked, Capacity: generic.ClampZero(in.ThisMonthEarned)},
		advance,
	}
}

// Allocate runs the waterfall for one payment. Pure and idempotent.
func Allocate(in AllocationInput) AllocationResult {
	if !in.PaymentAmount.IsPositive() {
		return AllocationResult{ResidualUnallocated: in.PaymentAmount}
	}

	fills, residual := Reduce(in.PaymentAmount, AllocationBuckets(in))
	result := AllocationResult{ResidualUnallocated: residual, Fills: fills}
	for _, f := range fills {
		switch f.Name {
		case BucketPriorPeriods:
			result.PaidToPriorPeriods = f.Amount
		case BucketCurrentWorked:
			result.PaidToCurrentPeriodWorked = f.Amount
		case BucketAdvance:
			result.AdvanceForUnworkedDays = f.Amount
			result.AdvanceDays = int(f.Steps)
		}
	}
	return result
}
