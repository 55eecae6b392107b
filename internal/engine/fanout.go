package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/risk"
)

// handleExecution is invoked once per normalised master execution.
// It persists the master-side Trade (deduped by externalOrderID so a
// redelivered execution never double-records), then fans out to every
// active follower config in parallel: one follower's risk rejection or
// placement failure never blocks, delays, or cancels another's.
func (e *Engine) handleExecution(ctx context.Context, copier *model.Copier, master *model.TradingAccount, exec model.Execution) {
	isEntry := e.positions.Apply(master.AccountNumber, exec.Symbol, signedQty(exec))

	if exec.IsModification {
		if !copier.CopyModifications {
			return
		}
	} else if isEntry && !copier.CopyEntries {
		return
	} else if !isEntry && !copier.CopyExits {
		return
	}

	masterTrade, err := e.findOrCreateMasterTrade(ctx, copier, master, exec)
	if err != nil {
		e.log.WithError(err).WithField("copier_id", copier.ID).Error("recording master trade failed")
		return
	}

	followers, err := e.configs.FindActiveByCopier(ctx, copier.ID)
	if err != nil {
		e.log.WithError(err).WithField("copier_id", copier.ID).Error("loading follower configs failed")
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(followers))
	for i := range followers {
		go func(cfg *model.CopierAccountConfig) {
			defer wg.Done()
			e.fanOutToFollower(ctx, copier, masterTrade, exec, cfg)
		}(&followers[i])
	}
	wg.Wait()
}

func (e *Engine) findOrCreateMasterTrade(ctx context.Context, copier *model.Copier, master *model.TradingAccount, exec model.Execution) (*model.Trade, error) {
	if exec.ExternalOrderID != "" {
		existing, err := e.trades.FindByExternalOrderID(ctx, master.ID, exec.ExternalOrderID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	filledAt := exec.FilledAt
	trade := &model.Trade{
		AccountID:       master.ID,
		CopierID:        &copier.ID,
		Symbol:          exec.Symbol,
		Side:            exec.Side,
		Type:            exec.Type,
		Quantity:        exec.Quantity,
		Status:          exec.Status,
		FilledAt:        &filledAt,
		ExternalOrderID: exec.ExternalOrderID,
		ExternalTradeID: exec.ExternalTradeID,
	}
	if exec.Price != 0 {
		price := exec.Price
		trade.EntryPrice = &price
	}
	if err := e.trades.Create(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// fanOutToFollower runs the risk gate, scaling, placement and persistence
// sequence for one follower config. The (masterTradeID, slaveAccountID)
// mapping is created before the order is placed: a mapping that already
// exists means this exact fan-out has already been attempted, and the
// order is not placed a second time.
func (e *Engine) fanOutToFollower(ctx context.Context, copier *model.Copier, masterTrade *model.Trade, exec model.Execution, cfg *model.CopierAccountConfig) {
	follower, err := e.accounts.FindByID(ctx, cfg.SlaveAccountID)
	if err != nil {
		e.log.WithError(err).WithField("slave_account_id", cfg.SlaveAccountID).Error("loading follower account failed")
		return
	}

	gate := risk.DailyLossGate{DailyLossLimit: cfg.DailyLossLimit, AutoDisable: cfg.AutoDisable}
	pnlToday, err := e.trades.SumRealizedPnLToday(ctx, follower.ID)
	if err != nil {
		e.log.WithError(err).WithField("slave_account_id", follower.ID).Error("reading realized P&L failed")
		return
	}
	tripped, riskErr := gate.Evaluate(pnlToday)
	if tripped {
		e.writeLog(ctx, copier.ID, model.LogWarn, "daily loss limit reached, follower skipped", &masterTrade.ID, nil, &follower.ID)
		if gate.ShouldDisable(tripped) {
			if err := e.configs.Disable(ctx, cfg.ID, riskErr.Error()); err != nil {
				e.log.WithError(err).WithField("config_id", cfg.ID).Error("disabling follower config failed")
			}
		}
		return
	}

	if e.riskRules != nil {
		rules, err := e.riskRules.FindByConfig(ctx, cfg.ID)
		if err != nil {
			e.log.WithError(err).WithField("config_id", cfg.ID).Error("loading risk rules failed")
			return
		}
		if len(rules) > 0 {
			ruleTripped, disable, ruleErr := risk.EvaluateRules(rules, pnlToday)
			if ruleTripped {
				e.writeLog(ctx, copier.ID, model.LogWarn, "risk rule tripped, follower skipped: "+ruleErr.Error(), &masterTrade.ID, nil, &follower.ID)
				if disable {
					if err := e.configs.Disable(ctx, cfg.ID, ruleErr.Error()); err != nil {
						e.log.WithError(err).WithField("config_id", cfg.ID).Error("disabling follower config failed")
					}
				}
				return
			}
		}
	}

	qty := e.scaleQuantity(copier, cfg, exec, follower)
	if qty <= 0 {
		e.writeLog(ctx, copier.ID, model.LogInfo, "scaled quantity is zero, follower skipped", &masterTrade.ID, nil, &follower.ID)
		return
	}

	mapping := &model.TradeMapping{
		CopierID:       copier.ID,
		MasterTradeID:  masterTrade.ID,
		SlaveAccountID: follower.ID,
		Status:         model.MappingPending,
	}
	mapping, created, err := e.mappings.CreateOrGet(ctx, mapping)
	if err != nil {
		e.log.WithError(err).WithField("slave_account_id", follower.ID).Error("creating trade mapping failed")
		return
	}
	if !created {
		e.log.WithField("mapping_id", mapping.ID).Info("fan-out already attempted for this master trade and follower, skipping")
		return
	}

	e.placeFollowerOrder(ctx, copier, masterTrade, mapping, exec, follower, qty)
}

func (e *Engine) scaleQuantity(copier *model.Copier, cfg *model.CopierAccountConfig, exec model.Execution, follower *model.TradingAccount) int {
	in := risk.ScalingInput{
		MasterQuantity:  exec.Quantity,
		FixedContracts:  cfg.FixedContracts,
		PercentageScale: cfg.PercentageScale,
		FollowerBalance: follower.LiveBalance,
		MaxContracts:    cfg.MaxContracts,
	}

	var qty int
	switch cfg.ScalingType {
	case model.ScalingPercentage:
		qty = risk.PercentageScale(in)
	case model.ScalingBalanceBased:
		qty = risk.BalanceBased(in)
	default:
		qty = risk.FixedContracts(in)
	}

	if copier.SessionAware && qty > 0 {
		qty, _ = risk.DampForSession(qty, e.now(), risk.DefaultDamping())
	}
	return qty
}

func (e *Engine) placeFollowerOrder(ctx context.Context, copier *model.Copier, masterTrade *model.Trade, mapping *model.TradeMapping, exec model.Execution, follower *model.TradingAccount, qty int) {
	adapter, err := e.registry.ResolveForAccount(follower)
	if err != nil {
		e.failMapping(ctx, copier.ID, mapping, masterTrade.ID, follower.ID, err)
		return
	}

	order := adapters.TradeOrder{
		AccountID:     follower.AccountNumber,
		Symbol:        exec.Symbol,
		Side:          exec.Side,
		Type:          model.OrderTypeMarket,
		Quantity:      qty,
		StopLoss:      exec.StopLoss,
		TakeProfit:    exec.TakeProfit,
		ClientOrderID: uuid.NewString(),
	}
	result, err := adapter.PlaceOrder(ctx, order)
	if err != nil {
		e.failMapping(ctx, copier.ID, mapping, masterTrade.ID, follower.ID, err)
		return
	}

	followerTrade := &model.Trade{
		AccountID:       follower.ID,
		CopierID:        &copier.ID,
		Symbol:          exec.Symbol,
		Side:            exec.Side,
		Type:            model.OrderTypeMarket,
		Quantity:        qty,
		StopLoss:        exec.StopLoss,
		TakeProfit:      exec.TakeProfit,
		Status:          result.Status,
		ExternalOrderID: result.ExternalOrderID,
		ExternalTradeID: result.ExternalTradeID,
	}
	if err := e.trades.Create(ctx, followerTrade); err != nil {
		e.log.WithError(err).WithField("slave_account_id", follower.ID).Error("persisting follower trade failed")
		return
	}

	if err := e.mappings.MarkSynced(ctx, mapping.ID, followerTrade.ID, e.now()); err != nil {
		e.log.WithError(err).WithField("mapping_id", mapping.ID).Error("marking mapping synced failed")
	}
	e.writeLog(ctx, copier.ID, model.LogInfo, "follower order placed", &masterTrade.ID, &followerTrade.ID, &follower.ID)
}

func (e *Engine) failMapping(ctx context.Context, copierID string, mapping *model.TradeMapping, masterTradeID, followerID string, cause error) {
	if err := e.mappings.MarkFailed(ctx, mapping.ID, cause.Error()); err != nil {
		e.log.WithError(err).WithField("mapping_id", mapping.ID).Error("marking mapping failed")
	}
	e.writeLog(ctx, copierID, model.LogError, "follower order placement failed: "+cause.Error(), &masterTradeID, nil, &followerID)
}

func (e *Engine) writeLog(ctx context.Context, copierID string, level model.LogLevel, message string, masterTradeID, slaveTradeID, slaveAccountID *string) {
	entry := &model.ExecutionLog{
		CopierID:       copierID,
		Level:          level,
		Message:        message,
		MasterTradeID:  masterTradeID,
		SlaveTradeID:   slaveTradeID,
		SlaveAccountID: slaveAccountID,
		CreatedAt:      e.now(),
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		e.log.WithError(err).WithField("copier_id", copierID).Error("writing execution log failed")
	}
}

func signedQty(exec model.Execution) int {
	if exec.Side == model.SideSell {
		return -exec.Quantity
	}
	return exec.Quantity
}
