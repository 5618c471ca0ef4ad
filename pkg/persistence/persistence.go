// Package persistence provides the storage abstraction for catalog entries,
// workflows, ownership records and projects.
package persistence

import (
	"context"

	"github.com/dukex/operion-marketplace/pkg/models"
)

// Persistence is a storage backend.
type Persistence interface {
	Repositories

	// Transact runs fn inside one transaction. The repositories handed to fn see
	// the transaction's writes; if fn returns an error, or the commit fails,
	// nothing fn wrote is kept.
	Transact(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Repositories groups the stores used by the marketplace.
type Repositories interface {
	CatalogRepository() CatalogRepository
	WorkflowRepository() WorkflowRepository
	OwnershipRepository() OwnershipRepository
	ProjectRepository() ProjectRepository
}

// CatalogRepository stores published catalog entries.
type CatalogRepository interface {
	// GetByID returns nil, nil when the entry does not exist.
	GetByID(ctx context.Context, id string) (*models.CatalogEntry, error)

	// GetByOrigin returns the entry an author published from a workflow, or nil.
	GetByOrigin(ctx context.Context, originWorkflowID, authorID string) (*models.CatalogEntry, error)

	// ListVisible returns public entries plus the user's own, most recently
	// updated first, each entry once.
	ListVisible(ctx context.Context, userID string) ([]*models.CatalogEntry, error)

	// Upsert inserts an entry or, when one already exists for the same origin
	// workflow and author, overwrites its published fields in place.
	Upsert(ctx context.Context, upsert *models.CatalogUpsert) (*models.CatalogEntry, error)

	// IncrementDownloads atomically adds delta to the download counter.
	IncrementDownloads(ctx context.Context, id string, delta int64) error

	// Delete removes the entry. It returns ErrCatalogEntryNotFound if there was none.
	Delete(ctx context.Context, id string) error
}

// WorkflowRepository stores user workflows.
type WorkflowRepository interface {
	// GetByID returns nil, nil when the workflow does not exist.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// GetForUser returns the workflow if the user reaches it through a project
	// whose role grants every scope, or nil.
	GetForUser(ctx context.Context, id, userID string, scopes ...models.Scope) (*models.Workflow, error)

	// ListForUser returns the workflows the user reaches with the given scopes.
	ListForUser(ctx context.Context, userID string, scopes ...models.Scope) ([]*models.Workflow, error)

	// Create inserts a new workflow.
	Create(ctx context.Context, workflow *models.Workflow) error

	// Update changes the non-nil fields of the update. It returns
	// ErrWorkflowNotFound if the workflow does not exist.
	Update(ctx context.Context, id string, update models.WorkflowUpdate) error
}

// OwnershipRepository links workflows to projects.
type OwnershipRepository interface {
	Create(ctx context.Context, record *models.OwnershipRecord) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.OwnershipRecord, error)
}

// ProjectRepository resolves workspaces.
type ProjectRepository interface {
	// GetPersonalProject returns ErrProjectNotFound when the user has none.
	GetPersonalProject(ctx context.Context, userID string) (*models.Project, error)

	// Create stores a project together with its member relations.
	Create(ctx context.Context, project *models.Project, relations ...models.ProjectRelation) error
}
