package runtime

import (
	"context"
	"errors"

	"github.com/gantry-run/gantry/pkg/meta"
	"github.com/gantry-run/gantry/pkg/secretstores"
)

var (
	// ErrNotAllowed is returned when a component is not scoped to the application.
	ErrNotAllowed = errors.New("component not allowed for application")

	// ErrDenied is returned when an admission policy blocks an activation.
	ErrDenied = errors.New("activation denied by policy")

	// ErrInvalidSandbox is returned when a WASM component carries an unusable sandbox configuration.
	ErrInvalidSandbox = errors.New("invalid sandbox configuration")
)

// Error codes recorded with failed activations.
const (
	ErrCodeNotAllowed     = "NOT_ALLOWED"
	ErrCodeDenied         = "POLICY_DENIED"
	ErrCodeSecretNotFound = "SECRET_NOT_FOUND"
	ErrCodeStoreNotFound  = "SECRET_STORE_NOT_FOUND"
	ErrCodeSandbox        = "INVALID_SANDBOX"
	ErrCodeCanceled       = "CANCELED"
	ErrCodeInternal       = "INTERNAL"
)

// ErrorCode maps an activation error to the code recorded in the store and metrics.
func ErrorCode(err error) string {
	var me *meta.MetaError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &me):
		return me.Code
	case errors.Is(err, ErrNotAllowed):
		return ErrCodeNotAllowed
	case errors.Is(err, ErrDenied):
		return ErrCodeDenied
	case errors.Is(err, secretstores.ErrSecretNotFound):
		return ErrCodeSecretNotFound
	case errors.Is(err, secretstores.ErrStoreNotFound):
		return ErrCodeStoreNotFound
	case errors.Is(err, ErrInvalidSandbox):
		return ErrCodeSandbox
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCanceled
	default:
		return ErrCodeInternal
	}
}

// errorClass returns the class label used by the errors_by_class metric.
func errorClass(err error) string {
	if meta.IsPermanent(err) {
		return string(meta.ErrorClassPermanent)
	}
	switch ErrorCode(err) {
	case ErrCodeCanceled:
		return "canceled"
	case ErrCodeInternal:
		return "internal"
	default:
		return string(meta.ErrorClassPermanent)
	}
}
