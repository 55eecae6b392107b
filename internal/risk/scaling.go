package risk

import (
	"github.com/shopspring/decimal"
)

// referenceBalance is the core's fixed denominator for BALANCE_BASED
// scaling. The core keeps this fixed rather than configurable per copier.
const referenceBalance = 50000

// ScalingInput carries everything a scaling strategy needs to turn a
// master fill's quantity into a follower order quantity.
type ScalingInput struct {
	MasterQuantity  int
	FixedContracts  *int
	PercentageScale *float64
	FollowerBalance float64
	MaxContracts    *int
}

// FixedContracts scales by a flat contract count, falling back to the
// master quantity when unset.
func FixedContracts(in ScalingInput) int {
	q := in.MasterQuantity
	if in.FixedContracts != nil {
		q = *in.FixedContracts
	}
	return clamp(q, in.MaxContracts)
}

// PercentageScale scales by a ratio of the master quantity, rounding down.
// A ratio of 0 yields 0, which callers treat as "skip this follower".
func PercentageScale(in ScalingInput) int {
	if in.PercentageScale == nil {
		return clamp(in.MasterQuantity, in.MaxContracts)
	}
	q := decimal.NewFromInt(int64(in.MasterQuantity)).
		Mul(decimal.NewFromFloat(*in.PercentageScale)).
		Floor().IntPart()
	return clamp(int(q), in.MaxContracts)
}

// BalanceBased scales proportionally to the follower's current balance
// against the fixed 50000 reference, rounding down.
func BalanceBased(in ScalingInput) int {
	q := decimal.NewFromInt(int64(in.MasterQuantity)).
		Mul(decimal.NewFromFloat(in.FollowerBalance)).
		Div(decimal.NewFromInt(referenceBalance)).
		Floor().IntPart()
	return clamp(int(q), in.MaxContracts)
}

// clamp applies the [0, maxContracts] bound when maxContracts is set.
// maxContracts=0 means the follower is skipped entirely.
func clamp(q int, maxContracts *int) int {
	if q < 0 {
		q = 0
	}
	if maxContracts != nil && q > *maxContracts {
		q = *maxContracts
	}
	return q
}
