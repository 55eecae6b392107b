package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/repository"
)

type fakeTradeStore struct {
	lastOpts repository.TradeSearchOptions
	results  []model.Trade
	byID     map[string]*model.Trade
}

func (f *fakeTradeStore) Search(ctx context.Context, opts repository.TradeSearchOptions) ([]model.Trade, error) {
	f.lastOpts = opts
	return f.results, nil
}

func (f *fakeTradeStore) FindByID(ctx context.Context, id string) (*model.Trade, error) {
	return f.byID[id], nil
}

func TestListTradesHandler_ParsesFilters(t *testing.T) {
	store := &fakeTradeStore{}
	h := ListTradesHandler(store)
	req := httptest.NewRequest(http.MethodGet, "/trades?accountId=acct-1&status=FILLED&limit=10&offset=5", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.lastOpts.AccountID)
	require.Equal(t, "acct-1", *store.lastOpts.AccountID)
	require.NotNil(t, store.lastOpts.Status)
	require.Equal(t, model.TradeStatusFilled, *store.lastOpts.Status)
	require.Equal(t, 10, store.lastOpts.Limit)
	require.Equal(t, 5, store.lastOpts.Offset)
}

func TestListTradesHandler_RejectsInvalidLimit(t *testing.T) {
	store := &fakeTradeStore{}
	h := ListTradesHandler(store)
	req := httptest.NewRequest(http.MethodGet, "/trades?limit=-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTradesHandler_ServesHistoryRoute(t *testing.T) {
	store := &fakeTradeStore{results: []model.Trade{{ID: "t-1", Status: model.TradeStatusCancelled}}}
	h := ListTradesHandler(store)
	req := httptest.NewRequest(http.MethodGet, "/trades/history?status=CANCELLED", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "t-1")
}

func TestGetTradeHandler_UsesURLParam(t *testing.T) {
	store := &fakeTradeStore{byID: map[string]*model.Trade{"t-1": {ID: "t-1", Symbol: "NQ"}}}
	r := chi.NewRouter()
	r.Get("/trades/{id}", GetTradeHandler(store))

	req := httptest.NewRequest(http.MethodGet, "/trades/t-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "NQ")
}

type fakeMappingStore struct {
	byCopier map[string][]model.TradeMapping
}

func (f *fakeMappingStore) FindByCopier(ctx context.Context, copierID string) ([]model.TradeMapping, error) {
	return f.byCopier[copierID], nil
}

func TestListMappingsForCopierHandler_UsesURLParam(t *testing.T) {
	store := &fakeMappingStore{byCopier: map[string][]model.TradeMapping{
		"cp-1": {{ID: "map-1", CopierID: "cp-1", Status: model.MappingPending}},
	}}
	r := chi.NewRouter()
	r.Get("/trades/mappings/{copierId}", ListMappingsForCopierHandler(store))

	req := httptest.NewRequest(http.MethodGet, "/trades/mappings/cp-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "map-1")
}
