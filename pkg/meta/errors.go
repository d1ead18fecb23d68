package meta

import (
	"errors"
	"fmt"
)

// ErrorClass classifies resolution errors for callers deciding whether to retry.
type ErrorClass string

const (
	// ErrorClassPermanent means retrying with the same inputs fails the same way.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error codes.
const (
	ErrCodePodNameNotSet = "POD_NAME_NOT_SET"
)

// MetaError is a classified resolution error.
// nolint:revive // MetaError is intentionally named to distinguish from standard errors
type MetaError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code identifies the failure for programmatic handling.
	Code string `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Property is the metadata entry that failed to resolve.
	Property string `json:"property,omitempty"`

	// Component is the component being resolved.
	Component string `json:"component,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`

	// Details carries extra context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *MetaError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Component != "" && e.Property != "":
		msg += fmt.Sprintf(" (component=%s, property=%s)", e.Component, e.Property)
	case e.Property != "":
		msg += fmt.Sprintf(" (property=%s)", e.Property)
	case e.Component != "":
		msg += fmt.Sprintf(" (component=%s)", e.Component)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *MetaError) Unwrap() error {
	return e.Err
}

// Is matches errors with the same class and code.
func (e *MetaError) Is(target error) bool {
	t, ok := target.(*MetaError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithProperty sets the property that failed.
func (e *MetaError) WithProperty(name string) *MetaError {
	e.Property = name
	return e
}

// WithComponent sets the component being resolved.
func (e *MetaError) WithComponent(name string) *MetaError {
	e.Component = name
	return e
}

// WithDetail adds a detail field.
func (e *MetaError) WithDetail(key string, value interface{}) *MetaError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrPodNameNotSet matches any pod-name-not-set error with errors.Is.
var ErrPodNameNotSet = &MetaError{Class: ErrorClassPermanent, Code: ErrCodePodNameNotSet}

// NewPodNameNotSetError reports that property references {podName} while no pod
// name is configured.
func NewPodNameNotSetError(property string) *MetaError {
	return &MetaError{
		Class:    ErrorClassPermanent,
		Code:     ErrCodePodNameNotSet,
		Message:  fmt.Sprintf("failed to parse metadata: property %s refers to %s but podName is not set", property, PlaceholderPodName),
		Property: property,
	}
}

// IsPodNameNotSet reports whether err is a pod-name-not-set error.
func IsPodNameNotSet(err error) bool {
	var e *MetaError
	if errors.As(err, &e) {
		return e.Code == ErrCodePodNameNotSet
	}
	return false
}

// IsPermanent reports whether err is classified as permanent.
func IsPermanent(err error) bool {
	var e *MetaError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}
