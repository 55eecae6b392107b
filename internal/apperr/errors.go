// Package apperr defines the error kinds used across the copier core and
// their disposition: how each kind maps onto an HTTP status and whether a
// caller should retry.
package apperr

import (
	"errors"
	"fmt"
)

// Kind tags an error with its disposition so callers (HTTP handlers, the
// engine) can decide whether to retry, surface, or log-and-continue.
type Kind string

const (
	KindAuth          Kind = "auth"
	KindTransport     Kind = "transport"
	KindNotConnected  Kind = "not_connected"
	KindRiskRejected  Kind = "risk_rejected"
	KindNotFound      Kind = "not_found"
	KindUnauthorised  Kind = "unauthorised"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindEngineFault   Kind = "engine_fault"
)

// Error is the common shape for every typed error in this module.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func new(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Auth(message string, err error) *Error        { return new(KindAuth, message, err) }
func Transport(message string, err error) *Error   { return new(KindTransport, message, err) }
func NotConnected(message string, err error) *Error { return new(KindNotConnected, message, err) }
func RiskRejected(message string, err error) *Error { return new(KindRiskRejected, message, err) }
func NotFound(message string, err error) *Error    { return new(KindNotFound, message, err) }
func Unauthorised(message string, err error) *Error { return new(KindUnauthorised, message, err) }
func Validation(message string, err error) *Error  { return new(KindValidation, message, err) }
func Conflict(message string, err error) *Error    { return new(KindConflict, message, err) }
func EngineFault(message string, err error) *Error { return new(KindEngineFault, message, err) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Copier-state-machine specific sentinels.
var (
	ErrAlreadyRunning     = new(KindValidation, "copier is already ACTIVE", nil)
	ErrMasterNotConnected = new(KindValidation, "master account is not connected", nil)
	ErrNoActiveFollowers  = new(KindValidation, "copier has no active follower configs", nil)
	ErrUnknownAdapter     = new(KindNotFound, "no adapter registered for (platform, firm)", nil)
)
