// Package domain contains business logic types and errors.
// Domain errors represent business-level failures, NOT HTTP errors.
// They are infrastructure-agnostic and can be mapped to HTTP/gRPC/etc by adapters.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates business rule validation failed.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates a required dependency is unavailable.
	ErrUnavailable = errors.New("unavailable")

	// ErrConflict indicates a state conflict with an existing entity.
	ErrConflict = errors.New("conflict")

	// ErrForbidden indicates the operation is not permitted.
	ErrForbidden = errors.New("forbidden")
)

// FetchErrorType classifies remote quote-fetch failures.
// Classification only affects logging and the caller's retry policy; the
// resolver never propagates a fetch error past its fallback tier.
type FetchErrorType string

const (
	// FetchErrNetwork is a transport failure or timeout.
	FetchErrNetwork FetchErrorType = "network_error"

	// FetchErrAPIUnavailable is a non-success upstream HTTP status.
	FetchErrAPIUnavailable FetchErrorType = "api_unavailable"

	// FetchErrRateLimit is an upstream or client-side rate limit (HTTP 429).
	FetchErrRateLimit FetchErrorType = "rate_limit"

	// FetchErrInvalidResponse is a well-formed response missing required fields.
	FetchErrInvalidResponse FetchErrorType = "invalid_response"
)

// FetchError is a classified remote quote-fetch failure.
type FetchError struct {
	Type   FetchErrorType
	Status int // upstream HTTP status, 0 if none
	Cause  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("quote fetch failed (%s): %v", e.Type, e.Cause)
	}

	if e.Status != 0 {
		return fmt.Sprintf("quote fetch failed (%s): HTTP %d", e.Type, e.Status)
	}

	return fmt.Sprintf("quote fetch failed (%s)", e.Type)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewFetchError creates a classified fetch error wrapping a cause.
func NewFetchError(t FetchErrorType, cause error) error {
	return &FetchError{Type: t, Cause: cause}
}

// NewFetchStatusError creates a classified fetch error for an upstream status.
func NewFetchStatusError(t FetchErrorType, status int) error {
	return &FetchError{Type: t, Status: status}
}

// ClassifyFetchError extracts the classification from an error chain.
// Unclassified errors (including context cancellation) count as network errors.
func ClassifyFetchError(err error) FetchErrorType {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Type
	}

	return FetchErrNetwork
}

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError provides context for validation errors.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UnavailableError provides context for unavailable errors.
type UnavailableError struct {
	Service string
	Reason  string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q is temporarily unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q is temporarily unavailable", e.Service)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// ConflictError provides context for state conflict errors.
type ConflictError struct {
	Entity string
	Reason string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Reason)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError creates a conflict error with context.
func NewConflictError(entity, reason string) error {
	return &ConflictError{Entity: entity, Reason: reason}
}

// ForbiddenError provides context for forbidden errors.
type ForbiddenError struct {
	Action string
	Reason string
}

// Error implements the error interface.
func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s forbidden: %s", e.Action, e.Reason)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

// NewForbiddenError creates a forbidden error with context.
func NewForbiddenError(action, reason string) error {
	return &ForbiddenError{Action: action, Reason: reason}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsForbidden checks if an error is a forbidden error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
