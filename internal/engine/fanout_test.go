package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradecopier/copier/internal/model"
)

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

type harness struct {
	engine   *Engine
	adapter  *fakeAdapter
	copiers  *fakeCopierStore
	configs  *fakeConfigStore
	accounts *fakeAccountStore
	trades   *fakeTradeStore
	mappings *fakeMappingStore
	logs     *fakeLogStore
	risks    *fakeRiskRuleStore

	copier   *model.Copier
	master   *model.TradingAccount
	follower *model.TradingAccount
	config   *model.CopierAccountConfig
}

// newHarness wires one copier with one active follower config, ready to
// Start and deliver executions against. cfgFn customises the follower
// config before Start is called (scaling type, limits, risk settings).
func newHarness(t *testing.T, cfgFn func(*model.CopierAccountConfig)) *harness {
	t.Helper()

	master := &model.TradingAccount{
		ID: "master-1", UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX,
		AccountNumber: "MASTER-001", IsConnected: true,
	}
	follower := &model.TradingAccount{
		ID: "follower-1", UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX,
		AccountNumber: "FOLLOWER-001", IsConnected: true, LiveBalance: 50000,
	}
	copier := &model.Copier{
		ID: "copier-1", UserID: "user-1", Name: "Test Copier", MasterAccountID: master.ID,
		Status: model.CopierStopped, CopyEntries: true, CopyExits: true,
	}
	cfg := &model.CopierAccountConfig{
		ID: "config-1", CopierID: copier.ID, SlaveAccountID: follower.ID,
		ScalingType: model.ScalingFixed, IsActive: true,
	}
	if cfgFn != nil {
		cfgFn(cfg)
	}

	adapter := newFakeAdapter()
	copiers := newFakeCopierStore(copier)
	configs := newFakeConfigStore(cfg)
	accounts := newFakeAccountStore(master, follower)
	trades := newFakeTradeStore()
	mappings := newFakeMappingStore()
	logs := newFakeLogStore()
	risks := newFakeRiskRuleStore(cfg.ID)

	e := New(Deps{
		Copiers: copiers, Configs: configs, Accounts: accounts,
		Trades: trades, Mappings: mappings, Logs: logs,
		RiskRules: risks,
		Registry:  &fakeRegistry{adapter: adapter},
	})

	require.NoError(t, e.Start(context.Background(), copier.ID))

	return &harness{
		engine: e, adapter: adapter,
		copiers: copiers, configs: configs, accounts: accounts,
		trades: trades, mappings: mappings, logs: logs, risks: risks,
		copier: copier, master: master, follower: follower, config: cfg,
	}
}

func baseExecution() model.Execution {
	return model.Execution{
		AccountID:       "MASTER-001",
		Symbol:          "ESZ5",
		Side:            model.SideBuy,
		Type:            model.OrderTypeMarket,
		Quantity:        4,
		Price:           5800.25,
		Status:          model.TradeStatusFilled,
		ExternalOrderID: "mo-1",
		ExternalTradeID: "mt-1",
		FilledAt:        time.Date(2026, 8, 6, 14, 30, 0, 0, time.UTC),
	}
}

func TestFanOut_HappyPathFixedScaling(t *testing.T) {
	h := newHarness(t, func(c *model.CopierAccountConfig) {
		c.FixedContracts = intPtr(2)
	})

	h.adapter.deliver(h.master.AccountNumber, baseExecution())

	require.Len(t, h.adapter.placedOrders, 1)
	require.Equal(t, 2, h.adapter.placedOrders[0].Quantity)
	require.Equal(t, model.SideBuy, h.adapter.placedOrders[0].Side)

	mapping, ok := h.mappings.byKey[mappingKey("trade-1", h.follower.ID)]
	require.True(t, ok)
	require.Equal(t, model.MappingSynced, mapping.Status)
}

func TestFanOut_PercentageScalingRoundsDown(t *testing.T) {
	h := newHarness(t, func(c *model.CopierAccountConfig) {
		c.ScalingType = model.ScalingPercentage
		c.PercentageScale = floatPtr(0.6)
	})

	exec := baseExecution()
	exec.Quantity = 5 // 5 * 0.6 = 3.0 floored, exercising the floor path
	h.adapter.deliver(h.master.AccountNumber, exec)

	require.Len(t, h.adapter.placedOrders, 1)
	require.Equal(t, 3, h.adapter.placedOrders[0].Quantity)
	h.adapter.placedOrders = nil

	exec.Quantity = 3 // 3 * 0.6 = 1.8, floors to 1
	exec.ExternalOrderID = "mo-2"
	h.adapter.deliver(h.master.AccountNumber, exec)

	require.Len(t, h.adapter.placedOrders, 1)
	require.Equal(t, 1, h.adapter.placedOrders[0].Quantity)
}

func TestFanOut_BalanceBasedScaling(t *testing.T) {
	h := newHarness(t, func(c *model.CopierAccountConfig) {
		c.ScalingType = model.ScalingBalanceBased
	})
	h.follower.LiveBalance = 25000

	exec := baseExecution()
	exec.Quantity = 4 // floor(4 * 25000/50000) = 2
	h.adapter.deliver(h.master.AccountNumber, exec)

	require.Len(t, h.adapter.placedOrders, 1)
	require.Equal(t, 2, h.adapter.placedOrders[0].Quantity)
}

func TestFanOut_RiskGateTripsAndAutoDisables(t *testing.T) {
	h := newHarness(t, func(c *model.CopierAccountConfig) {
		c.FixedContracts = intPtr(2)
		c.DailyLossLimit = floatPtr(500)
		c.AutoDisable = true
	})
	h.trades.pnlToday[h.follower.ID] = -500 // exactly at limit, trips on >=

	h.adapter.deliver(h.master.AccountNumber, baseExecution())

	require.Empty(t, h.adapter.placedOrders, "no order should be placed once the gate trips")
	require.False(t, h.configs.byCopier[h.copier.ID][0].IsActive, "follower config should be auto-disabled")
	require.Contains(t, h.configs.byCopier[h.copier.ID][0].DisabledReason, "-500",
		"disabledReason should carry the exceeding realized P&L, not just a fixed string")

	require.NotEmpty(t, h.logs.entries)
	require.Equal(t, model.LogWarn, h.logs.entries[len(h.logs.entries)-1].Level)
}

func TestFanOut_NamedRiskRuleTripsAndDisables(t *testing.T) {
	h := newHarness(t, func(c *model.CopierAccountConfig) {
		c.FixedContracts = intPtr(2)
	})
	h.risks.byConfig[h.config.ID] = []model.RiskRule{
		{Name: "max-daily-drawdown", Threshold: 300, Action: "disable"},
	}
	h.trades.pnlToday[h.follower.ID] = -350

	h.adapter.deliver(h.master.AccountNumber, baseExecution())

	require.Empty(t, h.adapter.placedOrders, "no order should be placed once a named rule trips")
	require.False(t, h.configs.byCopier[h.copier.ID][0].IsActive, "follower config should be disabled")

	require.NotEmpty(t, h.logs.entries)
	last := h.logs.entries[len(h.logs.entries)-1]
	require.Equal(t, model.LogWarn, last.Level)
	require.Contains(t, last.Message, "max-daily-drawdown")
}

func TestFanOut_NamedRiskRuleBelowThresholdAllowsOrder(t *testing.T) {
	h := newHarness(t, func(c *model.CopierAccountConfig) {
		c.FixedContracts = intPtr(2)
	})
	h.risks.byConfig[h.config.ID] = []model.RiskRule{
		{Name: "max-daily-drawdown", Threshold: 300, Action: "disable"},
	}
	h.trades.pnlToday[h.follower.ID] = -100

	h.adapter.deliver(h.master.AccountNumber, baseExecution())

	require.Len(t, h.adapter.placedOrders, 1)
	require.True(t, h.configs.byCopier[h.copier.ID][0].IsActive)
}

func TestFanOut_FollowerPlacementFailureIsIsolated(t *testing.T) {
	h := newHarness(t, func(c *model.CopierAccountConfig) {
		c.FixedContracts = intPtr(2)
	})
	h.adapter.placeOrderErr = errBroker{"symbol halted"}

	h.adapter.deliver(h.master.AccountNumber, baseExecution())

	mapping, ok := h.mappings.byKey[mappingKey("trade-1", h.follower.ID)]
	require.True(t, ok)
	require.Equal(t, model.MappingFailed, mapping.Status)
	require.Contains(t, mapping.ErrorMessage, "symbol halted")

	var sawError bool
	for _, entry := range h.logs.entries {
		if entry.Level == model.LogError {
			sawError = true
		}
	}
	require.True(t, sawError)
}

func TestFanOut_IdempotentReplay(t *testing.T) {
	h := newHarness(t, func(c *model.CopierAccountConfig) {
		c.FixedContracts = intPtr(2)
	})

	exec := baseExecution()
	h.adapter.deliver(h.master.AccountNumber, exec)
	h.adapter.deliver(h.master.AccountNumber, exec) // redelivery of the same execution

	require.Len(t, h.adapter.placedOrders, 1)
}

type errBroker struct{ msg string }

func (e errBroker) Error() string { return e.msg }
