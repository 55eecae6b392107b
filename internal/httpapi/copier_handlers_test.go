package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/repository"
)

type fakeCopierStore struct {
	created      []*model.Copier
	byID         map[string]*model.Copier
	byUser       map[string][]model.Copier
	updatePatch  repository.CopierPatch
	startCalled  string
	stopCalled   string
	pauseCalled  string
	lifecycleErr error
}

func (f *fakeCopierStore) Create(ctx context.Context, c *model.Copier) error {
	c.ID = "copier-new"
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCopierStore) FindByID(ctx context.Context, id string) (*model.Copier, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, nil
}

func (f *fakeCopierStore) FindAllByUser(ctx context.Context, userID string) ([]model.Copier, error) {
	return f.byUser[userID], nil
}

func (f *fakeCopierStore) Update(ctx context.Context, id string, patch repository.CopierPatch) error {
	f.updatePatch = patch
	return nil
}

func (f *fakeCopierStore) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeCopierStore) Start(ctx context.Context, copierID string) error {
	f.startCalled = copierID
	return f.lifecycleErr
}

func (f *fakeCopierStore) Stop(ctx context.Context, copierID string) error {
	f.stopCalled = copierID
	return f.lifecycleErr
}

func (f *fakeCopierStore) Pause(ctx context.Context, copierID string) error {
	f.pauseCalled = copierID
	return f.lifecycleErr
}

func TestCreateCopierHandler_RequiresFields(t *testing.T) {
	store := &fakeCopierStore{}
	h := CreateCopierHandler(store)
	req := withAuthedUser(httptest.NewRequest(http.MethodPost, "/copiers", bytes.NewBufferString(`{"name":""}`)), "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCopierHandler_Succeeds(t *testing.T) {
	store := &fakeCopierStore{}
	h := CreateCopierHandler(store)
	body := `{"name":"nq-scalper","master_account_id":"acct-master"}`
	req := withAuthedUser(httptest.NewRequest(http.MethodPost, "/copiers", bytes.NewBufferString(body)), "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.created, 1)
	require.Equal(t, model.CopierStopped, store.created[0].Status)
	require.True(t, store.created[0].CopyEntries)
}

func TestGetCopierHandler_UsesURLParam(t *testing.T) {
	store := &fakeCopierStore{byID: map[string]*model.Copier{"cp-1": {ID: "cp-1"}}}
	r := chi.NewRouter()
	r.Get("/copiers/{id}", GetCopierHandler(store))

	req := httptest.NewRequest(http.MethodGet, "/copiers/cp-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cp-1")
}

func TestPatchCopierHandler_DoesNotAcceptStatusField(t *testing.T) {
	store := &fakeCopierStore{}
	r := chi.NewRouter()
	r.Patch("/copiers/{id}", PatchCopierHandler(store))

	req := httptest.NewRequest(http.MethodPatch, "/copiers/cp-1", bytes.NewBufferString(`{"status":"ACTIVE"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchCopierHandler_AppliesPatch(t *testing.T) {
	store := &fakeCopierStore{}
	r := chi.NewRouter()
	r.Patch("/copiers/{id}", PatchCopierHandler(store))

	req := httptest.NewRequest(http.MethodPatch, "/copiers/cp-1", bytes.NewBufferString(`{"latency_tolerance_ms": 500}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.updatePatch.LatencyToleranceMs)
	require.Equal(t, 500, *store.updatePatch.LatencyToleranceMs)
}

func TestStartCopierHandler_PropagatesLifecycleError(t *testing.T) {
	store := &fakeCopierStore{lifecycleErr: apperr.Conflict("master account not connected", nil)}
	r := chi.NewRouter()
	r.Post("/copiers/{id}/start", StartCopierHandler(store))

	req := httptest.NewRequest(http.MethodPost, "/copiers/cp-1/start", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestStopCopierHandler_Succeeds(t *testing.T) {
	store := &fakeCopierStore{}
	r := chi.NewRouter()
	r.Post("/copiers/{id}/stop", StopCopierHandler(store))

	req := httptest.NewRequest(http.MethodPost, "/copiers/cp-1/stop", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "cp-1", store.stopCalled)
}

type fakeSlaveConfigStore struct {
	created     []*model.CopierAccountConfig
	updatePatch repository.ConfigPatch
}

func (f *fakeSlaveConfigStore) Create(ctx context.Context, cfg *model.CopierAccountConfig) error {
	cfg.ID = "cfg-new"
	f.created = append(f.created, cfg)
	return nil
}

func (f *fakeSlaveConfigStore) Update(ctx context.Context, id string, patch repository.ConfigPatch) error {
	f.updatePatch = patch
	return nil
}

func (f *fakeSlaveConfigStore) Delete(ctx context.Context, id string) error { return nil }

func TestAddSlaveHandler_RequiresScalingType(t *testing.T) {
	store := &fakeSlaveConfigStore{}
	h := AddSlaveHandler(store)
	req := httptest.NewRequest(http.MethodPost, "/copiers/cp-1/slaves", bytes.NewBufferString(`{"slave_account_id":"acct-2"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddSlaveHandler_Succeeds(t *testing.T) {
	store := &fakeSlaveConfigStore{}
	r := chi.NewRouter()
	r.Post("/copiers/{id}/slaves", AddSlaveHandler(store))

	body := `{"slave_account_id":"acct-2","scaling_type":"FIXED","fixed_contracts":2}`
	req := httptest.NewRequest(http.MethodPost, "/copiers/cp-1/slaves", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.created, 1)
	require.Equal(t, "cp-1", store.created[0].CopierID)
	require.Equal(t, model.ScalingFixed, store.created[0].ScalingType)
	require.True(t, store.created[0].IsActive)
}

func TestPatchSlaveHandler_AppliesPatch(t *testing.T) {
	store := &fakeSlaveConfigStore{}
	r := chi.NewRouter()
	r.Patch("/copiers/{id}/slaves/{slaveAccountId}", PatchSlaveHandler(store))

	req := httptest.NewRequest(http.MethodPatch, "/copiers/cp-1/slaves/cfg-1", bytes.NewBufferString(`{"is_active": false}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.updatePatch.IsActive)
	require.False(t, *store.updatePatch.IsActive)
}

func TestRemoveSlaveHandler_Succeeds(t *testing.T) {
	store := &fakeSlaveConfigStore{}
	r := chi.NewRouter()
	r.Delete("/copiers/{id}/slaves/{slaveAccountId}", RemoveSlaveHandler(store))

	req := httptest.NewRequest(http.MethodDelete, "/copiers/cp-1/slaves/cfg-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
