// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Failure kinds for the sensor and store capabilities
// - Typed failures (SensorFailure, StoreFailure) returned by the ports
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
// - ValidationErrors for configuration checks

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Sensor failure kinds
	ErrSensorTimeout      = errors.New("sensor timeout")
	ErrSensorDisconnected = errors.New("sensor disconnected")
	ErrInvalidValue       = errors.New("invalid sensor value")

	// Store failure kinds
	ErrStoreTimeout      = errors.New("store timeout")
	ErrConnectionRefused = errors.New("store connection refused")
	ErrRejected          = errors.New("store rejected record")

	// Validation errors
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrUnknownDriver   = errors.New("unknown driver")

	// Lifecycle errors
	ErrClosed = errors.New("closed")
)

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// ============================================================================
// Sensor failures
// ============================================================================

// SensorFailureKind classifies why a sensor read produced no reading.
type SensorFailureKind int

const (
	SensorTimeout SensorFailureKind = iota
	SensorDisconnected
	SensorInvalidValue
)

// String returns the log/metric label of the kind.
func (k SensorFailureKind) String() string {
	switch k {
	case SensorTimeout:
		return "timeout"
	case SensorDisconnected:
		return "disconnected"
	case SensorInvalidValue:
		return "invalid_value"
	default:
		return fmt.Sprintf("SensorFailureKind(%d)", int(k))
	}
}

func (k SensorFailureKind) sentinel() error {
	switch k {
	case SensorTimeout:
		return ErrSensorTimeout
	case SensorDisconnected:
		return ErrSensorDisconnected
	default:
		return ErrInvalidValue
	}
}

// SensorFailure is the only error type a sensor port returns.
type SensorFailure struct {
	Kind SensorFailureKind
	Err  error
}

// NewSensorFailure builds a SensorFailure. err may be nil.
func NewSensorFailure(kind SensorFailureKind, err error) *SensorFailure {
	return &SensorFailure{Kind: kind, Err: err}
}

// Error implements the error interface.
func (f *SensorFailure) Error() string {
	if f.Err == nil {
		return f.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", f.Kind.sentinel(), f.Err)
}

// Unwrap returns the underlying cause.
func (f *SensorFailure) Unwrap() error {
	return f.Err
}

// Is matches the kind's sentinel, so errors.Is(err, ErrSensorTimeout) works
// on a wrapped SensorFailure.
func (f *SensorFailure) Is(target error) bool {
	return target == f.Kind.sentinel()
}

// ============================================================================
// Store failures
// ============================================================================

// StoreFailureKind classifies why a record was not persisted.
type StoreFailureKind int

const (
	StoreTimeout StoreFailureKind = iota
	StoreConnectionRefused
	StoreRejected
)

// String returns the log/metric label of the kind.
func (k StoreFailureKind) String() string {
	switch k {
	case StoreTimeout:
		return "timeout"
	case StoreConnectionRefused:
		return "connection_refused"
	case StoreRejected:
		return "rejected"
	default:
		return fmt.Sprintf("StoreFailureKind(%d)", int(k))
	}
}

func (k StoreFailureKind) sentinel() error {
	switch k {
	case StoreTimeout:
		return ErrStoreTimeout
	case StoreConnectionRefused:
		return ErrConnectionRefused
	default:
		return ErrRejected
	}
}

// StoreFailure is the only error type a store port returns.
type StoreFailure struct {
	Kind StoreFailureKind
	Err  error
}

// NewStoreFailure builds a StoreFailure. err may be nil.
func NewStoreFailure(kind StoreFailureKind, err error) *StoreFailure {
	return &StoreFailure{Kind: kind, Err: err}
}

// Error implements the error interface.
func (f *StoreFailure) Error() string {
	if f.Err == nil {
		return f.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", f.Kind.sentinel(), f.Err)
}

// Unwrap returns the underlying cause.
func (f *StoreFailure) Unwrap() error {
	return f.Err
}

// Is matches the kind's sentinel.
func (f *StoreFailure) Is(target error) bool {
	return target == f.Kind.sentinel()
}

// ============================================================================
// Helper functions for error checking
// ============================================================================

// IsSensorFailure returns true if err is or wraps a SensorFailure.
func IsSensorFailure(err error) bool {
	var f *SensorFailure
	return errors.As(err, &f)
}

// IsStoreFailure returns true if err is or wraps a StoreFailure.
func IsStoreFailure(err error) bool {
	var f *StoreFailure
	return errors.As(err, &f)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrUnknownDriver)
}

// IsRetriable returns true if the failure is potentially transient.
// A rejected record or an invalid value will fail again the same way;
// everything else may succeed on the next tick.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrSensorTimeout) ||
		errors.Is(err, ErrSensorDisconnected) ||
		errors.Is(err, ErrStoreTimeout) ||
		errors.Is(err, ErrConnectionRefused)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewUnknownDriver creates an unknown driver error.
func NewUnknownDriver(kind, driver string) error {
	return fmt.Errorf("%s driver %q: %w", kind, driver, ErrUnknownDriver)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
