// Package engine implements the Copier Engine: the state machine that
// takes a Copier from STOPPED to ACTIVE by subscribing to its master
// account's trade stream, and the per-execution fan-out that turns one
// master fill into N follower orders (risk gate, scaling, placement,
// persistence, idempotent mapping). Modeled on the original strategy
// executor (per-action try/log loop against a connector resolved through a
// provider) generalised to a per-follower loop against an adapter resolved
// through the registry.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

type copierStore interface {
	FindByID(ctx context.Context, id string) (*model.Copier, error)
	FindAllActive(ctx context.Context) ([]model.Copier, error)
	UpdateStatus(ctx context.Context, id string, status model.CopierStatus) error
}

type configStore interface {
	FindActiveByCopier(ctx context.Context, copierID string) ([]model.CopierAccountConfig, error)
	Disable(ctx context.Context, id string, reason string) error
}

type accountStore interface {
	FindByID(ctx context.Context, id string) (*model.TradingAccount, error)
}

type tradeStore interface {
	Create(ctx context.Context, trade *model.Trade) error
	FindByExternalOrderID(ctx context.Context, accountID, externalOrderID string) (*model.Trade, error)
	UpdateStatus(ctx context.Context, id string, status model.TradeStatus) error
	SumRealizedPnLToday(ctx context.Context, accountID string) (float64, error)
}

type mappingStore interface {
	CreateOrGet(ctx context.Context, mapping *model.TradeMapping) (*model.TradeMapping, bool, error)
	MarkSynced(ctx context.Context, id string, slaveTradeID string, syncedAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type logStore interface {
	Create(ctx context.Context, entry *model.ExecutionLog) error
}

type riskRuleStore interface {
	FindByConfig(ctx context.Context, configID string) ([]model.RiskRule, error)
}

type adapterResolver interface {
	ResolveForAccount(account *model.TradingAccount) (adapters.Adapter, error)
}

// running tracks one active master subscription so Stop/Pause can tear it
// down cleanly.
type running struct {
	master        *model.TradingAccount
	stopHeartbeat context.CancelFunc
}

// Engine owns every live Copier subscription in the process. One Engine
// runs per daemon instance; there is no cross-instance coordination —
// a single writer is assumed to own each copier's subscriptions.
type Engine struct {
	copiers  copierStore
	configs  configStore
	accounts accountStore
	trades   tradeStore
	mappings mappingStore
	logs     logStore
	riskRules riskRuleStore
	registry adapterResolver

	positions *positionTracker
	now       func() time.Time
	log       *logger.Entry

	heartbeatInterval time.Duration

	mu      sync.Mutex
	running map[string]*running // copierID -> subscription state
}

// Deps bundles the Engine's collaborators so New can stay a single call
// even as the store count grows.
type Deps struct {
	Copiers   copierStore
	Configs   configStore
	Accounts  accountStore
	Trades    tradeStore
	Mappings  mappingStore
	Logs      logStore
	RiskRules riskRuleStore
	Registry  adapterResolver

	// HeartbeatInterval paces the liveness check run against each
	// subscribed master while it's ACTIVE. Zero falls back to
	// adapters.Config's default rather than disabling the heartbeat.
	HeartbeatInterval time.Duration
}

func New(deps Deps) *Engine {
	interval := deps.HeartbeatInterval
	if interval <= 0 {
		interval = adapters.GetConfig().HeartbeatInterval
	}
	return &Engine{
		copiers:           deps.Copiers,
		configs:           deps.Configs,
		accounts:          deps.Accounts,
		trades:            deps.Trades,
		mappings:          deps.Mappings,
		logs:              deps.Logs,
		riskRules:         deps.RiskRules,
		registry:          deps.Registry,
		positions:         newPositionTracker(),
		now:               time.Now,
		log:               logger.WithField("component", "engine"),
		heartbeatInterval: interval,
		running:           make(map[string]*running),
	}
}

// WithClock overrides the engine's time source, used by tests exercising
// the NY-session damper.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Start transitions a STOPPED/PAUSED copier to ACTIVE: validates the
// start preconditions, subscribes to the master's trade stream, and
// records the new status. Starting an already-ACTIVE copier is rejected,
// not silently accepted — callers that want idempotent start should check
// Copier.Status first.
func (e *Engine) Start(ctx context.Context, copierID string) error {
	copier, err := e.copiers.FindByID(ctx, copierID)
	if err != nil {
		return err
	}
	master, err := e.accounts.FindByID(ctx, copier.MasterAccountID)
	if err != nil {
		return err
	}
	followers, err := e.configs.FindActiveByCopier(ctx, copierID)
	if err != nil {
		return err
	}
	if err := copier.CanStart(master.IsConnected, len(followers)); err != nil {
		return err
	}

	if err := e.subscribe(ctx, copier, master); err != nil {
		e.failCopier(ctx, copierID, "start", err)
		return err
	}
	return e.copiers.UpdateStatus(ctx, copierID, model.CopierActive)
}

// recorder builds an apperr.Recorder that persists a captured fault as an
// execution log entry attached to copierID, the closure the engine supplies
// wherever internal/apperr can't depend on internal/model directly.
func (e *Engine) recorder(copierID string) apperr.Recorder {
	return func(ctx context.Context, message string, details map[string]interface{}) error {
		return e.logs.Create(ctx, &model.ExecutionLog{
			ID:        uuid.NewString(),
			CopierID:  copierID,
			Level:     model.LogError,
			Message:   message,
			Details:   details,
			CreatedAt: e.now(),
		})
	}
}

// failCopier marks a copier ERROR after an unrecoverable engine fault,
// capturing the error as an audited execution log entry rather than letting
// it vanish into the caller's bare error return.
func (e *Engine) failCopier(ctx context.Context, copierID, operation string, err error) {
	apperr.Capture(ctx, e.recorder(copierID), "engine", operation, err, map[string]interface{}{
		"copier_id": copierID,
	})
	if uerr := e.copiers.UpdateStatus(ctx, copierID, model.CopierError); uerr != nil {
		e.log.WithError(uerr).WithField("copier_id", copierID).Error("failed to record copier as ERROR after engine fault")
	}
}

// subscribe wires the adapter's trade-update stream for one copier's
// master account. Shared by Start and Restore so crash recovery follows
// exactly the same path as an operator-initiated start.
func (e *Engine) subscribe(ctx context.Context, copier *model.Copier, master *model.TradingAccount) error {
	adapter, err := e.registry.ResolveForAccount(master)
	if err != nil {
		return err
	}

	copierID := copier.ID
	err = adapter.OnTradeUpdate(ctx, master.AccountNumber, func(exec model.Execution) {
		fanoutCtx := context.Background()
		fresh, err := e.copiers.FindByID(fanoutCtx, copierID)
		if err != nil {
			apperr.Capture(fanoutCtx, e.recorder(copierID), "engine", "fanout_reload", err, map[string]interface{}{
				"copier_id": copierID,
			})
			return
		}
		if fresh.Status != model.CopierActive {
			return
		}
		e.handleExecution(fanoutCtx, fresh, master, exec)
	})
	if err != nil {
		return apperr.EngineFault("subscribing to master trade stream failed", err)
	}

	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	e.runHeartbeat(hbCtx, copier.ID, master, adapter)

	e.mu.Lock()
	e.running[copier.ID] = &running{master: master, stopHeartbeat: stopHeartbeat}
	e.mu.Unlock()
	return nil
}

// runHeartbeat starts the periodic liveness check for one subscribed
// master: every heartbeatInterval it asks the adapter's isConnected() for
// the socket/stream's live state, without issuing a network round trip of
// its own. A transport error from the check itself is logged but never
// tears down the subscription — stream reconnects and the poll fallback are
// the adapter's job, not the heartbeat's.
func (e *Engine) runHeartbeat(ctx context.Context, copierID string, master *model.TradingAccount, adapter adapters.Adapter) {
	go func() {
		ticker := time.NewTicker(e.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				connected, err := adapter.IsConnected(ctx, master.AccountNumber)
				if err != nil {
					e.log.WithError(err).WithFields(map[string]interface{}{
						"copier_id": copierID, "account_id": master.AccountNumber,
					}).Warn("master heartbeat check failed")
					continue
				}
				if !connected {
					e.log.WithFields(map[string]interface{}{
						"copier_id": copierID, "account_id": master.AccountNumber,
					}).Warn("master heartbeat reports the account is no longer connected")
				}
			}
		}
	}()
}

// Stop transitions a copier to STOPPED, tearing down its master
// subscription. Calling Stop on an already-STOPPED copier is a no-op.
func (e *Engine) Stop(ctx context.Context, copierID string) error {
	return e.haltTo(ctx, copierID, model.CopierStopped)
}

// Pause transitions a copier to PAUSED. Functionally identical to Stop at
// the subscription level — the distinction is operator intent, preserved
// so a paused copier's follower configs are not implicitly disabled.
func (e *Engine) Pause(ctx context.Context, copierID string) error {
	return e.haltTo(ctx, copierID, model.CopierPaused)
}

func (e *Engine) haltTo(ctx context.Context, copierID string, status model.CopierStatus) error {
	e.mu.Lock()
	r, ok := e.running[copierID]
	delete(e.running, copierID)
	e.mu.Unlock()

	if ok {
		if r.stopHeartbeat != nil {
			r.stopHeartbeat()
		}
		adapter, err := e.registry.ResolveForAccount(r.master)
		if err == nil {
			if err := adapter.Unsubscribe(ctx, r.master.AccountNumber); err != nil {
				apperr.Capture(ctx, e.recorder(copierID), "engine", "unsubscribe", err, map[string]interface{}{
					"copier_id": copierID, "account_id": r.master.AccountNumber,
				})
			}
		}
		e.positions.Reset(r.master.AccountNumber)
	}
	return e.copiers.UpdateStatus(ctx, copierID, status)
}

// Restore re-subscribes every ACTIVE copier on daemon startup, recovering
// from a crash without requiring an operator to manually restart each one.
// A copier whose master account failed to load is left ACTIVE but
// unsubscribed (the account itself may still heal); one whose subscribe
// call fails is moved to ERROR via failCopier rather than left silently
// ACTIVE-but-dead. Either way, one copier's failure never aborts the rest
// of the restore pass.
func (e *Engine) Restore(ctx context.Context) error {
	active, err := e.copiers.FindAllActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active copiers: %w", err)
	}
	for i := range active {
		copier := active[i]
		master, err := e.accounts.FindByID(ctx, copier.MasterAccountID)
		if err != nil {
			e.log.WithError(err).WithField("copier_id", copier.ID).Error("restoring copier: loading master account failed")
			continue
		}
		if !master.IsConnected {
			e.log.WithField("copier_id", copier.ID).Warn("restoring copier: master account not connected, leaving ACTIVE but unsubscribed")
			continue
		}
		if err := e.subscribe(ctx, &copier, master); err != nil {
			e.failCopier(ctx, copier.ID, "restore", err)
		}
	}
	return nil
}
