package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tradecopier/copier/internal/account"
	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/auth"
	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/repository"
)

type fakeAccountStore struct {
	created     []*model.TradingAccount
	byID        map[string]*model.TradingAccount
	byUser      map[string][]model.TradingAccount
	patchCalled repository.AccountPatch
	createErr   error
}

func (f *fakeAccountStore) Create(ctx context.Context, a *model.TradingAccount) error {
	if f.createErr != nil {
		return f.createErr
	}
	a.ID = "acct-new"
	f.created = append(f.created, a)
	return nil
}

func (f *fakeAccountStore) FindByID(ctx context.Context, id string) (*model.TradingAccount, error) {
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, nil
}

func (f *fakeAccountStore) FindAllByUser(ctx context.Context, userID string) ([]model.TradingAccount, error) {
	return f.byUser[userID], nil
}

func (f *fakeAccountStore) UpdateRiskSettings(ctx context.Context, id string, patch repository.AccountPatch) error {
	f.patchCalled = patch
	return nil
}

func withAuthedUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), &model.User{ID: userID}))
}

func TestCreateAccountHandler_RequiresAuth(t *testing.T) {
	h := CreateAccountHandler(&fakeAccountStore{})
	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAccountHandler_RequiresFields(t *testing.T) {
	h := CreateAccountHandler(&fakeAccountStore{})
	req := withAuthedUser(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString(`{}`)), "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAccountHandler_Succeeds(t *testing.T) {
	store := &fakeAccountStore{}
	h := CreateAccountHandler(store)
	body := `{"firm":"TOPSTEPX","platform":"PROJECTX","account_number":"ACC-1"}`
	req := withAuthedUser(httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString(body)), "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.created, 1)
	require.Equal(t, "u1", store.created[0].UserID)
}

func TestGetAccountHandler_UsesURLParam(t *testing.T) {
	store := &fakeAccountStore{byID: map[string]*model.TradingAccount{"acct-1": {ID: "acct-1"}}}
	r := chi.NewRouter()
	r.Get("/accounts/{id}", GetAccountHandler(store))

	req := httptest.NewRequest(http.MethodGet, "/accounts/acct-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "acct-1")
}

func TestPatchAccountHandler_AppliesRiskSettings(t *testing.T) {
	store := &fakeAccountStore{}
	r := chi.NewRouter()
	r.Patch("/accounts/{id}", PatchAccountHandler(store))

	req := httptest.NewRequest(http.MethodPatch, "/accounts/acct-1", bytes.NewBufferString(`{"daily_loss_limit": 500}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.patchCalled.DailyLossLimit)
	require.Equal(t, 500.0, *store.patchCalled.DailyLossLimit)
}

type fakeAccountDeleter struct{ err error }

func (f *fakeAccountDeleter) Delete(ctx context.Context, accountID string) error { return f.err }

func TestDeleteAccountHandler_PropagatesConflict(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/accounts/{id}", DeleteAccountHandler(&fakeAccountDeleter{err: apperr.Conflict("account is still referenced", nil)}))

	req := httptest.NewRequest(http.MethodDelete, "/accounts/acct-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

type fakeConnectionTester struct{ result *account.TestConnectionResult }

func (f *fakeConnectionTester) TestConnection(ctx context.Context, platform model.Platform, firm model.Firm, creds model.ConnectConfig) *account.TestConnectionResult {
	return f.result
}

func TestTestConnectionHandler_ReturnsResult(t *testing.T) {
	h := TestConnectionHandler(&fakeConnectionTester{result: &account.TestConnectionResult{Success: true, Message: "ok"}})
	req := httptest.NewRequest(http.MethodPost, "/accounts/test-connection", bytes.NewBufferString(`{"platform":"PROJECTX","firm":"TOPSTEPX","api_key":"k","api_secret":"s"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "\"Success\":true")
}

type fakePlatformConnector struct{ summary *account.PlatformConnectSummary }

func (f *fakePlatformConnector) ConnectPlatform(ctx context.Context, platform model.Platform, firm model.Firm, creds model.ConnectConfig) (*account.PlatformConnectSummary, error) {
	return f.summary, nil
}

func TestConnectPlatformHandler_ReturnsSummary(t *testing.T) {
	h := ConnectPlatformHandler(&fakePlatformConnector{summary: &account.PlatformConnectSummary{
		Accounts: []adapters.AccountSnapshot{{AccountNumber: "ACC-1"}},
	}})
	req := httptest.NewRequest(http.MethodPost, "/accounts/platforms/connect", bytes.NewBufferString(`{"platform":"PROJECTX","firm":"TOPSTEPX"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ACC-1")
}
