package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradecopier/copier/internal/account"
	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/auth"
	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/repository"
)

type accountCreator interface {
	Create(ctx context.Context, account *model.TradingAccount) error
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*model.TradingAccount, error)
	FindAllByUser(ctx context.Context, userID string) ([]model.TradingAccount, error)
}

type accountPatcher interface {
	UpdateRiskSettings(ctx context.Context, id string, patch repository.AccountPatch) error
}

// createAccountPayload registers a brokerage account directly, without the
// platform-discovery round trip.
type createAccountPayload struct {
	Firm          model.Firm     `json:"firm"`
	Platform      model.Platform `json:"platform"`
	AccountNumber string         `json:"account_number"`
	Email         string         `json:"email,omitempty"`
	Password      string         `json:"password,omitempty"`
	APIKey        string         `json:"api_key,omitempty"`
	APISecret     string         `json:"api_secret,omitempty"`
	NominalSize   float64        `json:"nominal_size,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// CreateAccountHandler inserts a new trading account owned by the caller.
func CreateAccountHandler(accounts accountCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			writeError(w, apperr.Unauthorised("no authenticated user", nil))
			return
		}

		var payload createAccountPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}
		if payload.AccountNumber == "" || payload.Firm == "" || payload.Platform == "" {
			writeError(w, apperr.Validation("firm, platform, and account_number are required", nil))
			return
		}

		newAccount := &model.TradingAccount{
			UserID:             user.ID,
			Firm:               payload.Firm,
			Platform:           payload.Platform,
			AccountNumber:      payload.AccountNumber,
			NominalSize:        payload.NominalSize,
			CredentialEmail:    payload.Email,
			CredentialPassword: payload.Password,
			APIKey:             payload.APIKey,
			APISecret:          payload.APISecret,
			AdditionalConfig:   payload.Extra,
		}
		if err := accounts.Create(r.Context(), newAccount); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newAccount)
	}
}

// ListAccountsHandler lists every account owned by the caller.
func ListAccountsHandler(accounts accountReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			writeError(w, apperr.Unauthorised("no authenticated user", nil))
			return
		}
		found, err := accounts.FindAllByUser(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

// GetAccountHandler fetches a single account by ID.
func GetAccountHandler(accounts accountReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := accounts.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

type patchAccountPayload struct {
	NominalSize    *float64 `json:"nominal_size,omitempty"`
	MaxDrawdown    *float64 `json:"max_drawdown,omitempty"`
	DailyLossLimit *float64 `json:"daily_loss_limit,omitempty"`
}

// PatchAccountHandler updates an account's risk settings.
func PatchAccountHandler(accounts accountPatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload patchAccountPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}

		err := accounts.UpdateRiskSettings(r.Context(), chi.URLParam(r, "id"), repository.AccountPatch{
			NominalSize:    payload.NominalSize,
			MaxDrawdown:    payload.MaxDrawdown,
			DailyLossLimit: payload.DailyLossLimit,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

type accountDeleter interface {
	Delete(ctx context.Context, accountID string) error
}

// DeleteAccountHandler removes an account, refused by the manager while it
// is still referenced by a Copier.
func DeleteAccountHandler(manager accountDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	}
}

type connectionController interface {
	Connect(ctx context.Context, accountID string) error
	Disconnect(ctx context.Context, accountID string) error
}

// ConnectAccountHandler opens a live adapter session for a persisted account.
func ConnectAccountHandler(manager connectionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Connect(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
	}
}

// DisconnectAccountHandler tears down an account's live session.
func DisconnectAccountHandler(manager connectionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.Disconnect(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
	}
}

type credentialPayload struct {
	Platform      model.Platform `json:"platform"`
	Firm          model.Firm     `json:"firm"`
	Email         string         `json:"email,omitempty"`
	Password      string         `json:"password,omitempty"`
	APIKey        string         `json:"api_key,omitempty"`
	APISecret     string         `json:"api_secret,omitempty"`
	AccountNumber string         `json:"account_number,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

func (p credentialPayload) toConnectConfig() model.ConnectConfig {
	return model.ConnectConfig{
		Email: p.Email, Password: p.Password,
		APIKey: p.APIKey, APISecret: p.APISecret,
		AccountNumber: p.AccountNumber, Extra: p.Extra,
	}
}

type connectionTester interface {
	TestConnection(ctx context.Context, platform model.Platform, firm model.Firm, creds model.ConnectConfig) *account.TestConnectionResult
}

// TestConnectionHandler validates a credential bundle without persisting
// anything (POST /accounts/test-connection).
func TestConnectionHandler(manager connectionTester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload credentialPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}
		result := manager.TestConnection(r.Context(), payload.Platform, payload.Firm, payload.toConnectConfig())
		writeJSON(w, http.StatusOK, result)
	}
}

type platformConnector interface {
	ConnectPlatform(ctx context.Context, platform model.Platform, firm model.Firm, creds model.ConnectConfig) (*account.PlatformConnectSummary, error)
}

// ConnectPlatformHandler discovers every account reachable under one
// credential bundle.
func ConnectPlatformHandler(manager platformConnector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload credentialPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}
		summary, err := manager.ConnectPlatform(r.Context(), payload.Platform, payload.Firm, payload.toConnectConfig())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

type accountProvisioner interface {
	CreateAccountsFromPlatform(ctx context.Context, userID string, platform model.Platform, firm model.Firm, discovered []adapters.AccountSnapshot, creds model.ConnectConfig) ([]model.TradingAccount, error)
}

type createAccountsFromPlatformPayload struct {
	credentialPayload
	Accounts []adapters.AccountSnapshot `json:"accounts"`
}

// CreateAccountsFromPlatformHandler persists the accounts a prior
// connectPlatform call discovered (POST /accounts/platforms/create-accounts).
func CreateAccountsFromPlatformHandler(manager accountProvisioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			writeError(w, apperr.Unauthorised("no authenticated user", nil))
			return
		}

		var payload createAccountsFromPlatformPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}

		created, err := manager.CreateAccountsFromPlatform(r.Context(), user.ID, payload.Platform, payload.Firm, payload.Accounts, payload.toConnectConfig())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}
