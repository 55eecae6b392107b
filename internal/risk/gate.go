package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradecopier/copier/internal/apperr"
)

// DailyLossGate evaluates a follower account's accumulated realized P&L
// against its configured daily loss limit before a new fan-out order is
// allowed to reach that account. The comparison is
// greater-than-or-equal, not greater-than: a loss that exactly matches the
// limit already trips the gate.
type DailyLossGate struct {
	DailyLossLimit *float64
	AutoDisable    bool
}

// Evaluate returns apperr.ErrRiskRejected-kind when the configured daily
// loss limit has been reached or exceeded. realizedPnLToday is expected to
// be zero or negative for a losing day; callers pass the account's signed
// running total, not an absolute value.
func (g DailyLossGate) Evaluate(realizedPnLToday float64) (tripped bool, err error) {
	if g.DailyLossLimit == nil {
		return false, nil
	}

	limit := decimal.NewFromFloat(*g.DailyLossLimit).Abs()
	loss := decimal.NewFromFloat(realizedPnLToday).Abs()

	if realizedPnLToday >= 0 {
		return false, nil
	}

	if loss.GreaterThanOrEqual(limit) {
		return true, apperr.RiskRejected(
			fmt.Sprintf("daily loss limit reached for this follower account (realized %.2f, limit %.2f)",
				realizedPnLToday, *g.DailyLossLimit), nil)
	}
	return false, nil
}

// ShouldDisable reports whether a tripped gate should also disable the
// follower config going forward, per its AutoDisable flag.
func (g DailyLossGate) ShouldDisable(tripped bool) bool {
	return tripped && g.AutoDisable
}
