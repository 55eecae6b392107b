package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/apperr"
)

// writeJSON encodes v as the response body, logging (never failing the
// request) if encoding itself breaks.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response body")
	}
}

// writeError maps a typed apperr.Error onto its HTTP disposition.
// Unrecognised errors are treated as internal and never echo their detail.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logger.WithError(err).Error("unhandled error reached the HTTP boundary")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnauthorised:
		status = http.StatusUnauthorized
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindNotConnected:
		status = http.StatusConflict
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindTransport:
		status = http.StatusBadGateway
	case apperr.KindRiskRejected:
		status = http.StatusConflict
	case apperr.KindEngineFault:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		logger.WithError(appErr).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": appErr.Message})
}
