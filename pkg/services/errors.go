// Package services implements the marketplace's publish and import operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest      = errors.New("invalid request")
	ErrDescriptionRequired = errors.New("description is required unless auto description is requested")
	ErrInvalidGraph        = errors.New("workflow graph is invalid")

	// Authorization Errors (403 Forbidden).
	ErrForbidden = errors.New("permission denied or workflow not found")

	// Not Found Errors (404 Not Found).
	ErrCatalogEntryNotFound    = errors.New("catalog entry not found")
	ErrWorkflowNotFound        = errors.New("workflow not found")
	ErrPersonalProjectNotFound = errors.New("personal project not found")
)

// Infrastructure Errors - These indicate server errors (5xx responses).
var (
	// ErrPersistence reports a failed storage operation. Nothing partial was
	// written, so the whole operation can be retried.
	ErrPersistence = errors.New("the operation could not be completed, please try again")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// ErrorCode exposes Code to packages that cannot import services.
func (e *ServiceError) ErrorCode() string {
	return e.Code
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrDescriptionRequired) ||
		errors.Is(err, ErrInvalidGraph)
}

// IsAuthorizationError checks if an error should return HTTP 403.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrCatalogEntryNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrPersonalProjectNotFound)
}

// IsPersistenceError checks if an error is a storage failure that should return HTTP 500.
func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAuthorizationError creates a new authorization error with context.
func NewAuthorizationError(op string) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    "FORBIDDEN",
		Message: ErrForbidden.Error(),
		Err:     ErrForbidden,
	}
}

// NewNotFoundError creates a new not-found error with context.
func NewNotFoundError(op string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    "NOT_FOUND",
		Message: err.Error(),
		Err:     err,
	}
}

// NewPersistenceError hides the storage failure behind ErrPersistence. The cause
// stays reachable through errors.Is for logging but never shows in Message.
func NewPersistenceError(op string, cause error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    "PERSISTENCE_ERROR",
		Message: ErrPersistence.Error(),
		Err:     errors.Join(ErrPersistence, cause),
	}
}
