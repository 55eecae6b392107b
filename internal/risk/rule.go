package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

// EvaluateRules checks every named RiskRule attached to a follower config
// against its realized P&L for the day, in addition to the base
// DailyLossGate. Rules are evaluated in order and the first to trip
// short-circuits the rest; realizedPnLToday follows the same signed-loss
// convention as DailyLossGate.Evaluate. disable reports whether the
// tripped rule's Action is "disable" rather than a one-time reject.
func EvaluateRules(rules []model.RiskRule, realizedPnLToday float64) (tripped bool, disable bool, err error) {
	if realizedPnLToday >= 0 {
		return false, false, nil
	}
	loss := decimal.NewFromFloat(realizedPnLToday).Abs()

	for _, rule := range rules {
		threshold := decimal.NewFromFloat(rule.Threshold).Abs()
		if loss.GreaterThanOrEqual(threshold) {
			return true, rule.Action == "disable", apperr.RiskRejected(
				fmt.Sprintf("risk rule %q tripped (threshold %.2f)", rule.Name, rule.Threshold), nil)
		}
	}
	return false, false, nil
}
