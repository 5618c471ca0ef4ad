package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrCatalogEntryNotFound indicates a catalog entry was not found by the given identifier.
	ErrCatalogEntryNotFound = errors.New("catalog entry not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrProjectNotFound indicates a project was not found.
	ErrProjectNotFound = errors.New("project not found")

	// ErrAlreadyExists indicates an insert collided with an existing record.
	ErrAlreadyExists = errors.New("record already exists")
)

// EntityError wraps storage errors with the operation and the record involved.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Upsert", "Delete")
	Entity string // "catalog entry", "workflow", ...
	ID     string
	Err    error
}

func (e *EntityError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewCatalogError creates a new catalog entry error with context.
func NewCatalogError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "catalog entry", ID: id, Err: err}
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "workflow", ID: id, Err: err}
}

// NewProjectError creates a new project error with context.
func NewProjectError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "project", ID: id, Err: err}
}

// IsCatalogEntryNotFound checks if an error indicates a catalog entry was not found.
func IsCatalogEntryNotFound(err error) bool {
	return errors.Is(err, ErrCatalogEntryNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsProjectNotFound checks if an error indicates a project was not found.
func IsProjectNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound)
}
