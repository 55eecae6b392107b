package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/auth"
	"github.com/tradecopier/copier/internal/model"
	"github.com/tradecopier/copier/internal/repository"
)

type copierCreator interface {
	Create(ctx context.Context, copier *model.Copier) error
}

type createCopierPayload struct {
	Name               string `json:"name"`
	MasterAccountID    string `json:"master_account_id"`
	CopyEntries        *bool  `json:"copy_entries,omitempty"`
	CopyExits          *bool  `json:"copy_exits,omitempty"`
	CopyModifications  *bool  `json:"copy_modifications,omitempty"`
	SessionAware       *bool  `json:"session_aware,omitempty"`
	LatencyToleranceMs *int   `json:"latency_tolerance_ms,omitempty"`
}

// CreateCopierHandler registers a new copier in STOPPED state. Followers are
// added afterwards via POST /copiers/{id}/slaves.
func CreateCopierHandler(copiers copierCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			writeError(w, apperr.Unauthorised("no authenticated user", nil))
			return
		}

		var payload createCopierPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}
		if payload.Name == "" || payload.MasterAccountID == "" {
			writeError(w, apperr.Validation("name and master_account_id are required", nil))
			return
		}

		copier := &model.Copier{
			UserID:            user.ID,
			Name:              payload.Name,
			MasterAccountID:   payload.MasterAccountID,
			Status:            model.CopierStopped,
			CopyEntries:       true,
			CopyExits:         true,
			CopyModifications: false,
		}
		if payload.CopyEntries != nil {
			copier.CopyEntries = *payload.CopyEntries
		}
		if payload.CopyExits != nil {
			copier.CopyExits = *payload.CopyExits
		}
		if payload.CopyModifications != nil {
			copier.CopyModifications = *payload.CopyModifications
		}
		if payload.SessionAware != nil {
			copier.SessionAware = *payload.SessionAware
		}
		if payload.LatencyToleranceMs != nil {
			copier.LatencyToleranceMs = *payload.LatencyToleranceMs
		}

		if err := copiers.Create(r.Context(), copier); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, copier)
	}
}

type copierReader interface {
	FindByID(ctx context.Context, id string) (*model.Copier, error)
	FindAllByUser(ctx context.Context, userID string) ([]model.Copier, error)
}

// ListCopiersHandler lists every copier owned by the caller.
func ListCopiersHandler(copiers copierReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			writeError(w, apperr.Unauthorised("no authenticated user", nil))
			return
		}
		found, err := copiers.FindAllByUser(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

// GetCopierHandler fetches a single copier with its followers preloaded.
func GetCopierHandler(copiers copierReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := copiers.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	}
}

type copierPatcher interface {
	Update(ctx context.Context, id string, patch repository.CopierPatch) error
}

type patchCopierPayload struct {
	Name               *string `json:"name,omitempty"`
	CopyEntries        *bool   `json:"copy_entries,omitempty"`
	CopyExits          *bool   `json:"copy_exits,omitempty"`
	CopyModifications  *bool   `json:"copy_modifications,omitempty"`
	SessionAware       *bool   `json:"session_aware,omitempty"`
	LatencyToleranceMs *int    `json:"latency_tolerance_ms,omitempty"`
}

// PatchCopierHandler updates a copier's non-lifecycle configuration.
func PatchCopierHandler(copiers copierPatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload patchCopierPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}

		err := copiers.Update(r.Context(), chi.URLParam(r, "id"), repository.CopierPatch{
			Name:               payload.Name,
			CopyEntries:        payload.CopyEntries,
			CopyExits:          payload.CopyExits,
			CopyModifications:  payload.CopyModifications,
			SessionAware:       payload.SessionAware,
			LatencyToleranceMs: payload.LatencyToleranceMs,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

type copierDeleter interface {
	Delete(ctx context.Context, id string) error
}

// DeleteCopierHandler removes a copier and its follower bindings (cascade).
// Callers should stop the copier first; deleting an ACTIVE copier leaves its
// engine subscription to be cleaned up on the next Restore cycle.
func DeleteCopierHandler(copiers copierDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := copiers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	}
}

type copierLifecycle interface {
	Start(ctx context.Context, copierID string) error
	Stop(ctx context.Context, copierID string) error
	Pause(ctx context.Context, copierID string) error
}

// StartCopierHandler transitions a copier to ACTIVE.
func StartCopierHandler(engine copierLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Start(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ACTIVE"})
	}
}

// StopCopierHandler transitions a copier to STOPPED.
func StopCopierHandler(engine copierLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Stop(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "STOPPED"})
	}
}

// PauseCopierHandler transitions a copier to PAUSED.
func PauseCopierHandler(engine copierLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Pause(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "PAUSED"})
	}
}

type slaveConfigCreator interface {
	Create(ctx context.Context, cfg *model.CopierAccountConfig) error
}

type addSlavePayload struct {
	SlaveAccountID  string              `json:"slave_account_id"`
	ScalingType     model.ScalingType   `json:"scaling_type"`
	FixedContracts  *int                `json:"fixed_contracts,omitempty"`
	PercentageScale *float64            `json:"percentage_scale,omitempty"`
	MaxContracts    *int                `json:"max_contracts,omitempty"`
	DailyLossLimit  *float64            `json:"daily_loss_limit,omitempty"`
	AutoDisable     bool                `json:"auto_disable,omitempty"`
}

// AddSlaveHandler binds a follower account to a copier (POST
// /copiers/{id}/slaves).
func AddSlaveHandler(configs slaveConfigCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addSlavePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}
		if payload.SlaveAccountID == "" || payload.ScalingType == "" {
			writeError(w, apperr.Validation("slave_account_id and scaling_type are required", nil))
			return
		}

		cfg := &model.CopierAccountConfig{
			CopierID:        chi.URLParam(r, "id"),
			SlaveAccountID:  payload.SlaveAccountID,
			ScalingType:     payload.ScalingType,
			FixedContracts:  payload.FixedContracts,
			PercentageScale: payload.PercentageScale,
			MaxContracts:    payload.MaxContracts,
			DailyLossLimit:  payload.DailyLossLimit,
			AutoDisable:     payload.AutoDisable,
			IsActive:        true,
		}
		if err := configs.Create(r.Context(), cfg); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, cfg)
	}
}

type slaveConfigPatcher interface {
	Update(ctx context.Context, id string, patch repository.ConfigPatch) error
}

type patchSlavePayload struct {
	ScalingType     *model.ScalingType `json:"scaling_type,omitempty"`
	FixedContracts  *int               `json:"fixed_contracts,omitempty"`
	PercentageScale *float64           `json:"percentage_scale,omitempty"`
	MaxContracts    *int               `json:"max_contracts,omitempty"`
	DailyLossLimit  *float64           `json:"daily_loss_limit,omitempty"`
	AutoDisable     *bool              `json:"auto_disable,omitempty"`
	IsActive        *bool              `json:"is_active,omitempty"`
}

// PatchSlaveHandler updates a follower binding's scaling/risk configuration.
// The path param is the CopierAccountConfig ID (named slaveAccountId in the
// route for readability, but it addresses the binding, not the account).
func PatchSlaveHandler(configs slaveConfigPatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload patchSlavePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			writeError(w, apperr.Validation("invalid request body", err))
			return
		}

		err := configs.Update(r.Context(), chi.URLParam(r, "slaveAccountId"), repository.ConfigPatch{
			ScalingType:     payload.ScalingType,
			FixedContracts:  payload.FixedContracts,
			PercentageScale: payload.PercentageScale,
			MaxContracts:    payload.MaxContracts,
			DailyLossLimit:  payload.DailyLossLimit,
			AutoDisable:     payload.AutoDisable,
			IsActive:        payload.IsActive,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

type slaveConfigDeleter interface {
	Delete(ctx context.Context, id string) error
}

// RemoveSlaveHandler unbinds a follower account from a copier.
func RemoveSlaveHandler(configs slaveConfigDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := configs.Delete(r.Context(), chi.URLParam(r, "slaveAccountId")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	}
}
