// cmd/copierd is the trade-copier daemon: it brings up the database, wires
// an Adapter per (platform, firm) pair into the registry, restores every
// previously ACTIVE copier's subscription, and serves the HTTP API until
// terminated. Follows the original daemon's root main.go shape (InitMainDB/
// InitReadOnlyDB then StartServer) and cmd/executor/executor.go (signal
// context, GetConfig-then-StartLoop shape).
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/account"
	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/adapters/ninjatrader"
	"github.com/tradecopier/copier/internal/adapters/projectx"
	"github.com/tradecopier/copier/internal/adapters/rithmic"
	"github.com/tradecopier/copier/internal/adapters/tradovate"
	"github.com/tradecopier/copier/internal/auth"
	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/engine"
	"github.com/tradecopier/copier/internal/httpapi"
	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/registry"
	"github.com/tradecopier/copier/internal/repository"
)

func setupLogger() {
	level, err := logger.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error("copierd panic")
	}
}

// buildRegistry binds one Adapter instance per (platform, firm) pair known
// to ride that platform (RITHMIC ↔ {TOPSTEPX as mock/fallback,
// TAKEPROFIT_TRADER, MYFUNDED_FUTURES, ALPHA_FUTURES, TRADEFY}; PROJECTX ↔
// TOPSTEPX; TRADOVATE/NINJATRADER ↔ {TAKEPROFIT_TRADER, MYFUNDED_FUTURES}).
// A separate instance per firm, rather than one shared per platform family,
// lets each pair carry its own firm-specific base-URL override into
// endpoint discovery and its own Identity(). When cfg.UseRealAdapters is
// false every pair resolves to its own MockAdapter instead, so the daemon
// is runnable end-to-end without brokerage credentials.
func buildRegistry(cfg adapters.Config) *registry.Registry {
	reg := registry.New()

	if !cfg.UseRealAdapters {
		for _, pf := range []struct {
			platform model.Platform
			firm     model.Firm
		}{
			{model.PlatformProjectX, model.FirmTopstepX},
			{model.PlatformRithmic, model.FirmTopstepX},
			{model.PlatformRithmic, model.FirmTakeProfitTrader},
			{model.PlatformRithmic, model.FirmMyFundedFutures},
			{model.PlatformRithmic, model.FirmAlphaFutures},
			{model.PlatformRithmic, model.FirmTradefy},
			{model.PlatformTradovate, model.FirmTakeProfitTrader},
			{model.PlatformTradovate, model.FirmMyFundedFutures},
			{model.PlatformNinjaTrader, model.FirmTakeProfitTrader},
			{model.PlatformNinjaTrader, model.FirmMyFundedFutures},
		} {
			reg.Register(pf.platform, pf.firm, adapters.NewMock(pf.firm, pf.platform))
		}
		logger.Info("registry wired with mock adapters (USE_REAL_ADAPTERS=false)")
		return reg
	}

	reg.Register(model.PlatformProjectX, model.FirmTopstepX,
		projectx.New(model.FirmTopstepX, cfg.ProjectXBaseURL))

	// RITHMIC↔TOPSTEPX stays mocked even with real adapters enabled: TOPSTEPX's
	// primary route is PROJECTX, registered above, and RITHMIC is only its
	// fallback pairing.
	reg.Register(model.PlatformRithmic, model.FirmTopstepX,
		adapters.NewMock(model.FirmTopstepX, model.PlatformRithmic))

	for _, firm := range []model.Firm{
		model.FirmTakeProfitTrader,
		model.FirmMyFundedFutures,
		model.FirmAlphaFutures,
		model.FirmTradefy,
	} {
		reg.Register(model.PlatformRithmic, firm, rithmic.New(firm, cfg.RithmicBaseURL, cfg.RithmicWSURL))
	}

	for _, firm := range []model.Firm{model.FirmTakeProfitTrader, model.FirmMyFundedFutures} {
		reg.Register(model.PlatformTradovate, firm, tradovate.New(firm, cfg.TradovateBaseURL, cfg.TradovateWSURL))
		reg.Register(model.PlatformNinjaTrader, firm, ninjatrader.New(firm, cfg.NinjaTraderBaseURL))
	}

	logger.Info("registry wired with real platform adapters")
	return reg
}

func main() {
	setupLogger()
	defer handlePanic()

	if err := database.Init(); err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}

	adaptersCfg := adapters.GetConfig()
	reg := buildRegistry(adaptersCfg)

	accounts := repository.NewTradingAccountRepository()
	copiers := repository.NewCopierRepository()
	configs := repository.NewCopierAccountConfigRepository()
	trades := repository.NewTradeRepository()
	mappings := repository.NewTradeMappingRepository()
	logs := repository.NewExecutionLogRepository()
	users := repository.NewUserRepository()
	riskRules := repository.NewRiskRuleRepository()

	eng := engine.New(engine.Deps{
		Copiers:   copiers,
		Configs:   configs,
		Accounts:  accounts,
		Trades:    trades,
		Mappings:  mappings,
		Logs:      logs,
		RiskRules: riskRules,
		Registry:  reg,
	})

	mgr := account.New(account.Deps{
		Accounts: accounts,
		Copiers:  copiers,
		Configs:  configs,
		Registry: reg,
	})

	ctx := context.Background()
	if err := eng.Restore(ctx); err != nil {
		logger.WithError(err).Error("failed to restore active copiers on startup")
	}

	authCfg := auth.GetConfig()
	authSvc := auth.NewService(authCfg.SigningKey, authCfg.TokenTTL)

	router := httpapi.NewRouter(httpapi.Deps{
		Accounts:       accounts,
		AccountManager: mgr,
		Copiers:        copiers,
		Configs:        configs,
		Trades:         trades,
		Mappings:       mappings,
		Engine:         eng,
		AuthService:    authSvc,
		Users:          users,
	})

	httpCfg := httpapi.GetConfig()
	httpapi.Serve(":"+httpCfg.ServerPort, router, httpCfg.ShutdownTimeout)
}
