// Package account implements the Account Manager: platform
// discovery, follower account provisioning, per-account connection
// lifecycle, and the deletion guard that protects accounts still
// referenced by a Copier or CopierAccountConfig. Modeled on the original
// credential-fetch-then-connect sequence in src/executors/start_loop.go
// (decrypt, verify key/secret presence, connect, run) and the
// decode/validate/persist shape of src/handler/userHandler.go.
package account

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

type accountStore interface {
	Create(ctx context.Context, account *model.TradingAccount) error
	FindByID(ctx context.Context, id string) (*model.TradingAccount, error)
	FindByUserFirmAccountNumber(ctx context.Context, userID string, firm model.Firm, accountNumber string) (*model.TradingAccount, error)
	UpdateCredentials(ctx context.Context, id string, creds model.ConnectConfig) error
	UpdateConnectionState(ctx context.Context, id string, connected bool, errMsg string) error
	UpdateBalance(ctx context.Context, id string, liveBalance float64) error
	Delete(ctx context.Context, id string) error
}

type copierStore interface {
	FindByMasterAccount(ctx context.Context, accountID string) ([]model.Copier, error)
}

type configStore interface {
	FindBySlaveAccount(ctx context.Context, accountID string) ([]model.CopierAccountConfig, error)
}

type adapterResolver interface {
	Resolve(platform model.Platform, firm model.Firm) (adapters.Adapter, error)
	ResolveForAccount(account *model.TradingAccount) (adapters.Adapter, error)
}

// Manager implements every trading-account lifecycle operation: create,
// connect, test connection, and discovered-account registration.
type Manager struct {
	accounts accountStore
	copiers  copierStore
	configs  configStore
	registry adapterResolver
	log      *logger.Entry
}

type Deps struct {
	Accounts accountStore
	Copiers  copierStore
	Configs  configStore
	Registry adapterResolver
}

func New(deps Deps) *Manager {
	return &Manager{
		accounts: deps.Accounts,
		copiers:  deps.Copiers,
		configs:  deps.Configs,
		registry: deps.Registry,
		log:      logger.WithField("component", "account_manager"),
	}
}

// CredentialEcho reports which credential shapes were supplied, never the
// values themselves — the core never logs or echoes secrets.
type CredentialEcho struct {
	HasAPIKey        bool `json:"has_api_key"`
	HasEmailPassword bool `json:"has_email_password"`
}

// PlatformConnectSummary is connectPlatform's return value: the accounts
// discovered under one credential bundle, not yet persisted.
type PlatformConnectSummary struct {
	Platform  model.Platform
	Firm      model.Firm
	Accounts  []adapters.AccountSnapshot
	Credential CredentialEcho
}

// ConnectPlatform resolves the (platform, firm) adapter, authenticates with
// the supplied credentials, and discovers every account reachable under
// them. It never persists anything — createAccountsFromPlatform does that
// once the caller has reviewed the discovered list.
func (m *Manager) ConnectPlatform(ctx context.Context, platform model.Platform, firm model.Firm, creds model.ConnectConfig) (*PlatformConnectSummary, error) {
	adapter, err := m.registry.Resolve(platform, firm)
	if err != nil {
		return nil, err
	}

	if err := adapter.Connect(ctx, creds); err != nil {
		return nil, err
	}
	defer func() {
		if err := adapter.Disconnect(ctx, creds.AccountNumber); err != nil {
			apperr.Capture(ctx, nil, "account_manager", "connect_platform_disconnect", err, map[string]interface{}{
				"account_number": creds.AccountNumber, "platform": platform, "firm": firm,
			})
		}
	}()

	discovered, err := adapter.GetAllAccounts(ctx)
	if err != nil || len(discovered) == 0 {
		// Single-account fallback: some platforms expose no "list all
		// accounts" endpoint, only a snapshot of the account just connected.
		snap, snapErr := adapter.GetAccountInfo(ctx, creds.AccountNumber)
		if snapErr != nil {
			if err != nil {
				return nil, err
			}
			return nil, snapErr
		}
		discovered = []adapters.AccountSnapshot{snap}
	}

	return &PlatformConnectSummary{
		Platform: platform,
		Firm:     firm,
		Accounts: discovered,
		Credential: CredentialEcho{
			HasAPIKey:        creds.HasAPIKey(),
			HasEmailPassword: creds.HasEmailPassword(),
		},
	}, nil
}

// CreateAccountsFromPlatform persists every discovered account, upserting
// on (userID, firm, accountNumber): an account seen before has its
// credentials refreshed and is marked connected; a new one is inserted.
func (m *Manager) CreateAccountsFromPlatform(ctx context.Context, userID string, platform model.Platform, firm model.Firm, discovered []adapters.AccountSnapshot, creds model.ConnectConfig) ([]model.TradingAccount, error) {
	out := make([]model.TradingAccount, 0, len(discovered))
	for _, snap := range discovered {
		existing, err := m.accounts.FindByUserFirmAccountNumber(ctx, userID, firm, snap.AccountNumber)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			if err := m.accounts.UpdateCredentials(ctx, existing.ID, creds); err != nil {
				return nil, err
			}
			if err := m.accounts.UpdateBalance(ctx, existing.ID, snap.Balance); err != nil {
				return nil, err
			}
			refreshed, err := m.accounts.FindByID(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, *refreshed)
			continue
		}

		account := &model.TradingAccount{
			UserID:             userID,
			Firm:               firm,
			Platform:           platform,
			AccountNumber:      snap.AccountNumber,
			LiveBalance:        snap.Balance,
			CredentialEmail:    creds.Email,
			CredentialPassword: creds.Password,
			APIKey:             creds.APIKey,
			APISecret:          creds.APISecret,
			AdditionalConfig:   creds.Extra,
			IsConnected:        true,
		}
		if err := m.accounts.Create(ctx, account); err != nil {
			return nil, err
		}
		out = append(out, *account)
	}
	return out, nil
}

// Connect opens a live session for one already-persisted account,
// recording the outcome either way.
func (m *Manager) Connect(ctx context.Context, accountID string) error {
	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	adapter, err := m.registry.ResolveForAccount(account)
	if err != nil {
		return err
	}

	if err := adapter.Connect(ctx, account.Credentials()); err != nil {
		apperr.Capture(ctx, nil, "account_manager", "connect", err, map[string]interface{}{
			"account_id": accountID,
		})
		_ = m.accounts.UpdateConnectionState(ctx, accountID, false, err.Error())
		return err
	}
	return m.accounts.UpdateConnectionState(ctx, accountID, true, "")
}

// Disconnect tears down an account's live session. Idempotent: disconnecting
// an already-disconnected account just re-records the state.
func (m *Manager) Disconnect(ctx context.Context, accountID string) error {
	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}

	adapter, err := m.registry.ResolveForAccount(account)
	if err != nil {
		return err
	}
	if err := adapter.Disconnect(ctx, account.AccountNumber); err != nil {
		apperr.Capture(ctx, nil, "account_manager", "disconnect", err, map[string]interface{}{
			"account_id": accountID,
		})
	}
	return m.accounts.UpdateConnectionState(ctx, accountID, false, "")
}

// TestConnectionResult is testConnection's return value.
type TestConnectionResult struct {
	Success bool
	Message string
	Snapshot *adapters.AccountSnapshot
}

// TestConnection performs a transient connect/getAccountInfo/disconnect
// cycle without touching persisted state, used to validate credentials
// before an account is created.
func (m *Manager) TestConnection(ctx context.Context, platform model.Platform, firm model.Firm, creds model.ConnectConfig) *TestConnectionResult {
	adapter, err := m.registry.Resolve(platform, firm)
	if err != nil {
		return &TestConnectionResult{Success: false, Message: err.Error()}
	}

	if err := adapter.Connect(ctx, creds); err != nil {
		return &TestConnectionResult{Success: false, Message: err.Error()}
	}
	defer func() {
		_ = adapter.Disconnect(ctx, creds.AccountNumber)
	}()

	snap, err := adapter.GetAccountInfo(ctx, creds.AccountNumber)
	if err != nil {
		return &TestConnectionResult{Success: false, Message: err.Error()}
	}
	return &TestConnectionResult{Success: true, Message: "connection succeeded", Snapshot: &snap}
}

// Delete removes an account, refusing when it is still referenced as a
// master or follower, and naming every referencing copier in the error.
func (m *Manager) Delete(ctx context.Context, accountID string) error {
	asMaster, err := m.copiers.FindByMasterAccount(ctx, accountID)
	if err != nil {
		return err
	}
	asFollower, err := m.configs.FindBySlaveAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if len(asMaster) > 0 || len(asFollower) > 0 {
		names := make(map[string]bool)
		for _, c := range asMaster {
			names[c.Name] = true
		}
		for _, cfg := range asFollower {
			if cfg.Copier != nil {
				names[cfg.Copier.Name] = true
			}
		}
		return apperr.Conflict(fmt.Sprintf("account is still referenced by: %s", joinNames(names)), nil)
	}

	return m.accounts.Delete(ctx, accountID)
}

func joinNames(names map[string]bool) string {
	out := ""
	for name := range names {
		if out != "" {
			out += ", "
		}
		out += name
	}
	return out
}
