package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ActivationStatus represents the outcome of a component activation
type ActivationStatus string

const (
	ActivationSucceeded ActivationStatus = "succeeded"
	ActivationFailed    ActivationStatus = "failed"
	ActivationDenied    ActivationStatus = "denied"
	ActivationSkipped   ActivationStatus = "skipped"
)

// Activation records one attempt to activate a component
type Activation struct {
	ID            string           `json:"id"`
	Component     string           `json:"component"`
	ComponentType string           `json:"component_type"`
	AppID         string           `json:"app_id"`
	Namespace     string           `json:"namespace"`
	Status        ActivationStatus `json:"status"`
	Error         *string          `json:"error,omitempty"`
	ErrorCode     *string          `json:"error_code,omitempty"`
	PropertyCount int              `json:"property_count"`
	Duration      time.Duration    `json:"duration"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ActivationFilter narrows ListActivations. Empty fields match everything.
type ActivationFilter struct {
	Component string
	AppID     string
	Status    ActivationStatus
	Limit     int
	Offset    int
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Activation operations
	RecordActivation(ctx context.Context, activation *Activation) error
	GetActivation(ctx context.Context, id string) (*Activation, error)
	ListActivations(ctx context.Context, filter ActivationFilter) ([]*Activation, error)
	DeleteActivationsBefore(ctx context.Context, before time.Time) (int64, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
