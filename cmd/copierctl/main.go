// cmd/copierctl is the operational CLI for local administration: listing
// copiers/accounts and forcing lifecycle transitions without going through
// the HTTP API. Follows the original CLI's cmd/main.go urfave/cli.Command
// table (one Command per subcommand, Action wired to a Start()-style
// method), generalized from a single flat command list to the registry/
// engine wiring cmd/copierd uses.
package main

import (
	"context"
	"fmt"
	"os"

	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/adapters/ninjatrader"
	"github.com/tradecopier/copier/internal/adapters/projectx"
	"github.com/tradecopier/copier/internal/adapters/rithmic"
	"github.com/tradecopier/copier/internal/adapters/tradovate"
	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/engine"
	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/registry"
	"github.com/tradecopier/copier/internal/repository"
)

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
		return reg
	}

	reg.Register(model.PlatformProjectX, model.FirmTopstepX,
		projectx.New(model.FirmTopstepX, cfg.ProjectXBaseURL))

	reg.Register(model.PlatformRithmic, model.FirmTopstepX,
		adapters.NewMock(model.FirmTopstepX, model.PlatformRithmic))

	for _, firm := range []model.Firm{
		model.FirmTakeProfitTrader, model.FirmMyFundedFutures,
		model.FirmAlphaFutures, model.FirmTradefy,
	} {
		reg.Register(model.PlatformRithmic, firm, rithmic.New(firm, cfg.RithmicBaseURL, cfg.RithmicWSURL))
	}
	for _, firm := range []model.Firm{model.FirmTakeProfitTrader, model.FirmMyFundedFutures} {
		reg.Register(model.PlatformTradovate, firm, tradovate.New(firm, cfg.TradovateBaseURL, cfg.TradovateWSURL))
		reg.Register(model.PlatformNinjaTrader, firm, ninjatrader.New(firm, cfg.NinjaTraderBaseURL))
	}
	return reg
}

func newEngine() *engine.Engine {
	return engine.New(engine.Deps{
		Copiers:   repository.NewCopierRepository(),
		Configs:   repository.NewCopierAccountConfigRepository(),
		Accounts:  repository.NewTradingAccountRepository(),
		Trades:    repository.NewTradeRepository(),
		Mappings:  repository.NewTradeMappingRepository(),
		Logs:      repository.NewExecutionLogRepository(),
		RiskRules: repository.NewRiskRuleRepository(),
		Registry:  buildRegistry(adapters.GetConfig()),
	})
}

func requireDB(_ *cli.Context) error {
	if err := database.Init(); err != nil {
		return fmt.Errorf("copierctl: failed to connect to database: %w", err)
	}
	return nil
}

var (
	listCopiersCMD = cli.Command{
		Name:   "list-copiers",
		Usage:  "list every ACTIVE copier and its status",
		Before: requireDB,
		Action: listCopiersAction,
	}
	listAccountsCMD = cli.Command{
		Name:      "list-accounts",
		Usage:     "list a user's trading accounts and their connection state",
		ArgsUsage: "<user-id>",
		Before:    requireDB,
		Action:    listAccountsAction,
	}
	startCMD = cli.Command{
		Name:      "start",
		Usage:     "force-start a copier",
		ArgsUsage: "<copier-id>",
		Before:    requireDB,
		Action:    startAction,
	}
	stopCMD = cli.Command{
		Name:      "stop",
		Usage:     "force-stop a copier",
		ArgsUsage: "<copier-id>",
		Before:    requireDB,
		Action:    stopAction,
	}
	pauseCMD = cli.Command{
		Name:      "pause",
		Usage:     "pause a copier (tears down its subscription like stop, but records PAUSED)",
		ArgsUsage: "<copier-id>",
		Before:    requireDB,
		Action:    pauseAction,
	}
	restoreCMD = cli.Command{
		Name:   "restore",
		Usage:  "re-subscribe every ACTIVE copier (the same recovery cmd/copierd runs at startup)",
		Before: requireDB,
		Action: restoreAction,
	}
)

func listCopiersAction(c *cli.Context) error {
	copiers := repository.NewCopierRepository()
	all, err := copiers.FindAllActive(context.Background())
	if err != nil {
		return err
	}
	for _, cp := range all {
		fmt.Printf("%s\t%s\t%s\n", cp.ID, cp.Name, cp.Status)
	}
	return nil
}

func listAccountsAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: copierctl list-accounts <user-id>", 1)
	}
	accounts := repository.NewTradingAccountRepository()
	all, err := accounts.FindAllByUser(context.Background(), c.Args().Get(0))
	if err != nil {
		return err
	}
	for _, a := range all {
		fmt.Printf("%s\t%s/%s\t%s\tconnected=%t\n", a.ID, a.Firm, a.Platform, a.AccountNumber, a.IsConnected)
	}
	return nil
}

func startAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: copierctl start <copier-id>", 1)
	}
	return newEngine().Start(context.Background(), c.Args().Get(0))
}

func stopAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: copierctl stop <copier-id>", 1)
	}
	return newEngine().Stop(context.Background(), c.Args().Get(0))
}

func pauseAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: copierctl pause <copier-id>", 1)
	}
	return newEngine().Pause(context.Background(), c.Args().Get(0))
}

func restoreAction(c *cli.Context) error {
	return newEngine().Restore(context.Background())
}

func main() {
	logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})

	app := cli.NewApp()
	app.Name = "copierctl"
	app.Usage = "trade-copier operational CLI"
	app.Commands = []cli.Command{
		listCopiersCMD,
		listAccountsCMD,
		startCMD,
		stopCMD,
		pauseCMD,
		restoreCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
