package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/repository"
)

type tradeSearcher interface {
	Search(ctx context.Context, opts repository.TradeSearchOptions) ([]model.Trade, error)
}

func parseTradeSearchOptions(r *http.Request) (repository.TradeSearchOptions, error) {
	q := r.URL.Query()
	var opts repository.TradeSearchOptions

	if v := q.Get("accountId"); v != "" {
		opts.AccountID = &v
	}
	if v := q.Get("copierId"); v != "" {
		opts.CopierID = &v
	}
	if v := q.Get("symbol"); v != "" {
		opts.Symbol = &v
	}
	if v := q.Get("status"); v != "" {
		status := model.TradeStatus(v)
		opts.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, apperr.Validation("invalid limit", err)
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, apperr.Validation("invalid offset", err)
		}
		opts.Offset = n
	}
	return opts, nil
}

// ListTradesHandler lists trades matching the supplied filters (GET
// /trades). The same handler serves GET /trades/history — history is simply
// a status=FILLED|CANCELLED|REJECTED filter applied by the caller.
func ListTradesHandler(trades tradeSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := parseTradeSearchOptions(r)
		if err != nil {
			writeError(w, err)
			return
		}
		found, err := trades.Search(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

type tradeReader interface {
	FindByID(ctx context.Context, id string) (*model.Trade, error)
}

// GetTradeHandler fetches a single trade by ID.
func GetTradeHandler(trades tradeReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := trades.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

type mappingsByCopierFinder interface {
	FindByCopier(ctx context.Context, copierID string) ([]model.TradeMapping, error)
}

// ListMappingsForCopierHandler lists every master/follower mapping a copier
// has produced (GET /trades/mappings/{copierId}).
func ListMappingsForCopierHandler(mappings mappingsByCopierFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := mappings.FindByCopier(r.Context(), chi.URLParam(r, "copierId"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}
