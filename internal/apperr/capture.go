package apperr

import (
	"context"
	"runtime/debug"

	logger "github.com/sirupsen/logrus"
)

// Recorder persists a captured fault as an audit/execution-log entry. apperr
// cannot depend on internal/model directly (model already imports apperr for
// Copier.CanStart's sentinels), so callers that want persistence close over
// their own store and model type rather than Capture taking one directly.
// A nil Recorder means "log only" — every account-manager call site that has
// no copier in scope to attach the entry to uses that.
type Recorder func(ctx context.Context, message string, details map[string]interface{}) error

// Capture records an unexpected error crossing a component boundary: it
// always logs locally with a stack trace, and persists via record when one
// is supplied. Adapted from the strategy executor's exception capture, which
// did the same local-log-plus-optional-persist split against its own
// exception repository.
func Capture(ctx context.Context, record Recorder, component, operation string, err error, fields map[string]interface{}) {
	if err == nil {
		return
	}

	entry := logger.WithFields(map[string]interface{}{
		"component": component,
		"operation": operation,
	})
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.WithError(err).Error("captured fault crossing component boundary")

	if record == nil {
		return
	}

	details := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		details[k] = v
	}
	details["component"] = component
	details["operation"] = operation
	details["stack"] = string(debug.Stack())

	if rerr := record(ctx, err.Error(), details); rerr != nil {
		logger.WithError(rerr).WithFields(map[string]interface{}{
			"component": component, "operation": operation,
		}).Error("failed to persist captured fault")
	}
}
