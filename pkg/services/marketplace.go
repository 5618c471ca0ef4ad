package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/operion-marketplace/pkg/clone"
	"github.com/dukex/operion-marketplace/pkg/describe"
	"github.com/dukex/operion-marketplace/pkg/eventbus"
	"github.com/dukex/operion-marketplace/pkg/events"
	"github.com/dukex/operion-marketplace/pkg/log"
	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/otelhelper"
	"github.com/dukex/operion-marketplace/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ImportedSuffix is appended to the name of every imported workflow.
const ImportedSuffix = " (Imported)"

// Describer produces a description for a workflow. It must not fail.
type Describer interface {
	Describe(ctx context.Context, workflow *models.Workflow) string
}

// PublishRequest is the input of Marketplace.Publish.
type PublishRequest struct {
	WorkflowID         string
	Name               string
	Description        string
	Category           string
	IsPublic           *bool // Nil keeps the current visibility, public for new entries
	UseAutoDescription bool
}

// Option configures a Marketplace.
type Option func(*Marketplace)

// WithStrictAccess requires update access, not only read access, to publish a workflow.
func WithStrictAccess(strict bool) Option {
	return func(m *Marketplace) {
		m.strictAccess = strict
	}
}

// WithTracer records a span per operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Marketplace) {
		m.tracer = tracer
	}
}

// Marketplace publishes workflows to the catalog and imports catalog entries
// into users' personal projects.
type Marketplace struct {
	persistence  persistence.Persistence
	describer    Describer
	publisher    eventbus.EventPublisher
	logger       *slog.Logger
	tracer       trace.Tracer
	strictAccess bool
}

// NewMarketplace creates the marketplace service. describer and publisher may be
// nil: descriptions then come from describe.Heuristic and no events are sent.
func NewMarketplace(
	persistence persistence.Persistence,
	describer Describer,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Marketplace {
	m := &Marketplace{
		persistence: persistence,
		describer:   describer,
		publisher:   publisher,
		logger:      logger.With("module", "marketplace"),
		tracer:      otelhelper.NewNoopTracer(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// operation holds the per-call logger and span.
type operation struct {
	name   string
	logger *slog.Logger
	span   trace.Span
}

func (m *Marketplace) start(ctx context.Context, name string, user *models.User, attrs ...any) (context.Context, *operation) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "marketplace."+name,
		attribute.String(otelhelper.OperationKey, name),
		attribute.String(otelhelper.UserIDKey, user.ID),
	)

	logger := log.FromContext(ctx, m.logger).With(append([]any{"op", name, "user_id", user.ID}, attrs...)...)

	return ctx, &operation{name: name, logger: logger, span: span}
}

// fail records err on the span. Persistence failures are logged with their
// cause; callers only ever see the generic message.
func (op *operation) fail(ctx context.Context, err error) error {
	otelhelper.SetError(op.span, err)

	if IsPersistenceError(err) {
		op.logger.ErrorContext(ctx, "Operation failed", "error", err)
	} else {
		op.logger.InfoContext(ctx, "Operation rejected", "error", err)
	}

	return err
}

func (m *Marketplace) emit(ctx context.Context, op *operation, key string, event eventbus.Event) {
	if m.publisher == nil {
		return
	}

	err := m.publisher.Publish(ctx, key, event)
	if err != nil {
		op.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// readableWorkflow returns the workflow if the user holds every scope on it.
// Admins reach every workflow.
func (m *Marketplace) readableWorkflow(
	ctx context.Context,
	user *models.User,
	workflowID string,
	scopes ...models.Scope,
) (*models.Workflow, error) {
	if user.IsAdmin() {
		return m.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	}

	return m.persistence.WorkflowRepository().GetForUser(ctx, workflowID, user.ID, scopes...)
}

func (r PublishRequest) validate() error {
	var missing []string

	if strings.TrimSpace(r.WorkflowID) == "" {
		missing = append(missing, "workflowId")
	}

	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}

	if strings.TrimSpace(r.Category) == "" {
		missing = append(missing, "category")
	}

	if len(missing) > 0 {
		return NewValidationError("publish", "INVALID_REQUEST",
			"missing required fields: "+strings.Join(missing, ", "), ErrInvalidRequest)
	}

	if !r.UseAutoDescription && strings.TrimSpace(r.Description) == "" {
		return NewValidationError("publish", "DESCRIPTION_REQUIRED", ErrDescriptionRequired.Error(), ErrDescriptionRequired)
	}

	return nil
}

func (m *Marketplace) describe(ctx context.Context, workflow *models.Workflow) string {
	if m.describer == nil {
		return describe.Heuristic(workflow)
	}

	return m.describer.Describe(ctx, workflow)
}

// Publish snapshots a workflow into the catalog. Publishing the same workflow
// again as the same author updates the existing entry in place.
func (m *Marketplace) Publish(ctx context.Context, user *models.User, req PublishRequest) (*models.CatalogEntry, error) {
	ctx, op := m.start(ctx, "publish", user, "workflow_id", req.WorkflowID)
	defer op.span.End()

	if err := req.validate(); err != nil {
		return nil, op.fail(ctx, err)
	}

	scopes := []models.Scope{models.ScopeWorkflowRead}
	if m.strictAccess {
		scopes = append(scopes, models.ScopeWorkflowUpdate)
	}

	workflow, err := m.readableWorkflow(ctx, user, req.WorkflowID, scopes...)
	if err != nil {
		return nil, op.fail(ctx, NewPersistenceError("publish", err))
	}

	if workflow == nil {
		return nil, op.fail(ctx, NewAuthorizationError("publish"))
	}

	description := req.Description
	if req.UseAutoDescription {
		description = m.describe(ctx, workflow)
	}

	graph, err := clone.New(op.logger).Graph(workflow.Graph)
	if err != nil {
		return nil, op.fail(ctx, NewPersistenceError("publish", err))
	}

	err = models.ValidateGraph(graph)
	if err != nil {
		if errors.Is(err, models.ErrInvalidGraph) {
			return nil, op.fail(ctx, NewValidationError("publish", "INVALID_GRAPH", err.Error(), ErrInvalidGraph))
		}

		return nil, op.fail(ctx, NewPersistenceError("publish", err))
	}

	upsert := &models.CatalogUpsert{
		Graph:            graph,
		Name:             strings.TrimSpace(req.Name),
		Description:      strings.TrimSpace(description),
		Category:         strings.TrimSpace(req.Category),
		AuthorID:         user.ID,
		AuthorName:       user.DisplayName(),
		IsPublic:         req.IsPublic,
		OriginWorkflowID: workflow.ID,
	}

	var entry *models.CatalogEntry

	err = m.persistence.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var err error

		entry, err = repos.CatalogRepository().Upsert(ctx, upsert)
		if err != nil {
			return fmt.Errorf("failed to upsert catalog entry: %w", err)
		}

		published := true

		err = repos.WorkflowRepository().Update(ctx, workflow.ID, models.WorkflowUpdate{IsPublished: &published})
		if err != nil && !persistence.IsWorkflowNotFound(err) {
			return fmt.Errorf("failed to mark workflow as published: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, op.fail(ctx, NewPersistenceError("publish", err))
	}

	op.span.SetAttributes(attribute.String(otelhelper.EntryIDKey, entry.ID))
	op.logger.InfoContext(ctx, "Workflow published", "entry_id", entry.ID, "is_public", entry.IsPublic)

	m.emit(ctx, op, entry.ID, events.CatalogEntryPublished{
		BaseEvent:        events.NewBaseEvent(events.CatalogEntryPublishedEvent, entry.ID, user.ID),
		OriginWorkflowID: workflow.ID,
		Name:             entry.Name,
		Category:         entry.Category,
		IsPublic:         entry.IsPublic,
	})

	return entry, nil
}

// Import copies a catalog entry into the user's personal project as a new,
// inactive workflow. Downloads count only imports by someone other than the author.
func (m *Marketplace) Import(ctx context.Context, user *models.User, entryID string) (*models.WorkflowSummary, error) {
	ctx, op := m.start(ctx, "import", user, "entry_id", entryID)
	defer op.span.End()

	entry, err := m.persistence.CatalogRepository().GetByID(ctx, entryID)
	if err != nil {
		return nil, op.fail(ctx, NewPersistenceError("import", err))
	}

	if entry == nil {
		return nil, op.fail(ctx, NewNotFoundError("import", ErrCatalogEntryNotFound))
	}

	if !entry.VisibleTo(user) {
		return nil, op.fail(ctx, NewAuthorizationError("import"))
	}

	graph, err := clone.New(op.logger).Graph(entry.Graph)
	if err != nil {
		return nil, op.fail(ctx, NewPersistenceError("import", err))
	}

	project, err := m.persistence.ProjectRepository().GetPersonalProject(ctx, user.ID)
	if err != nil {
		if persistence.IsProjectNotFound(err) {
			return nil, op.fail(ctx, NewNotFoundError("import", ErrPersonalProjectNotFound))
		}

		return nil, op.fail(ctx, NewPersistenceError("import", err))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, op.fail(ctx, NewPersistenceError("import", err))
	}

	workflow := &models.Workflow{
		Graph:     graph,
		ID:        id.String(),
		Name:      entry.Name + ImportedSuffix,
		Active:    false,
		VersionID: uuid.NewString(),
	}

	counted := user.ID != entry.AuthorID

	err = m.persistence.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		err := repos.WorkflowRepository().Create(ctx, workflow)
		if err != nil {
			return fmt.Errorf("failed to create workflow: %w", err)
		}

		err = repos.OwnershipRepository().Create(ctx, &models.OwnershipRecord{
			WorkflowID: workflow.ID,
			ProjectID:  project.ID,
			Role:       models.WorkflowRoleOwner,
		})
		if err != nil {
			return fmt.Errorf("failed to create ownership record: %w", err)
		}

		if counted {
			err = repos.CatalogRepository().IncrementDownloads(ctx, entry.ID, 1)
			if err != nil {
				return fmt.Errorf("failed to count download: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		if persistence.IsCatalogEntryNotFound(err) {
			return nil, op.fail(ctx, NewNotFoundError("import", ErrCatalogEntryNotFound))
		}

		return nil, op.fail(ctx, NewPersistenceError("import", err))
	}

	op.span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, workflow.ID))
	op.logger.InfoContext(ctx, "Catalog entry imported", "workflow_id", workflow.ID, "counted", counted)

	m.emit(ctx, op, entry.ID, events.CatalogEntryImported{
		BaseEvent:  events.NewBaseEvent(events.CatalogEntryImportedEvent, entry.ID, user.ID),
		WorkflowID: workflow.ID,
		ProjectID:  project.ID,
		Counted:    counted,
	})

	summary := workflow.Summary()

	return &summary, nil
}

// FindAll lists every public entry plus the user's own, most recently updated first.
func (m *Marketplace) FindAll(ctx context.Context, user *models.User) ([]*models.CatalogEntry, error) {
	ctx, op := m.start(ctx, "find_all", user)
	defer op.span.End()

	entries, err := m.persistence.CatalogRepository().ListVisible(ctx, user.ID)
	if err != nil {
		return nil, op.fail(ctx, NewPersistenceError("find_all", err))
	}

	seen := make(map[string]bool, len(entries))
	visible := make([]*models.CatalogEntry, 0, len(entries))

	for _, entry := range entries {
		if seen[entry.ID] || !entry.VisibleTo(user) {
			continue
		}

		seen[entry.ID] = true
		visible = append(visible, entry)
	}

	return visible, nil
}

// Delete removes a catalog entry. Only its author or an admin may do so. Copies
// imported earlier are not affected.
func (m *Marketplace) Delete(ctx context.Context, user *models.User, entryID string) error {
	ctx, op := m.start(ctx, "delete", user, "entry_id", entryID)
	defer op.span.End()

	entry, err := m.persistence.CatalogRepository().GetByID(ctx, entryID)
	if err != nil {
		return op.fail(ctx, NewPersistenceError("delete", err))
	}

	if entry == nil {
		return op.fail(ctx, NewNotFoundError("delete", ErrCatalogEntryNotFound))
	}

	if !entry.ManageableBy(user) {
		return op.fail(ctx, NewAuthorizationError("delete"))
	}

	err = m.persistence.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		err := repos.CatalogRepository().Delete(ctx, entry.ID)
		if err != nil {
			return err
		}

		if entry.OriginWorkflowID == nil {
			return nil
		}

		published := false

		err = repos.WorkflowRepository().Update(ctx, *entry.OriginWorkflowID, models.WorkflowUpdate{IsPublished: &published})
		if err != nil && !persistence.IsWorkflowNotFound(err) {
			return fmt.Errorf("failed to unmark origin workflow: %w", err)
		}

		return nil
	})
	if err != nil {
		if persistence.IsCatalogEntryNotFound(err) {
			return op.fail(ctx, NewNotFoundError("delete", ErrCatalogEntryNotFound))
		}

		return op.fail(ctx, NewPersistenceError("delete", err))
	}

	op.logger.InfoContext(ctx, "Catalog entry deleted")

	deleted := events.CatalogEntryDeleted{
		BaseEvent: events.NewBaseEvent(events.CatalogEntryDeletedEvent, entry.ID, user.ID),
	}
	if entry.OriginWorkflowID != nil {
		deleted.OriginWorkflowID = *entry.OriginWorkflowID
	}

	m.emit(ctx, op, entry.ID, deleted)

	return nil
}

// UserWorkflows lists the workflows the user can read, and so could publish.
func (m *Marketplace) UserWorkflows(ctx context.Context, user *models.User) ([]models.WorkflowSummary, error) {
	ctx, op := m.start(ctx, "user_workflows", user)
	defer op.span.End()

	workflows, err := m.persistence.WorkflowRepository().ListForUser(ctx, user.ID, models.ScopeWorkflowRead)
	if err != nil {
		return nil, op.fail(ctx, NewPersistenceError("user_workflows", err))
	}

	summaries := make([]models.WorkflowSummary, 0, len(workflows))
	for _, workflow := range workflows {
		summaries = append(summaries, workflow.Summary())
	}

	return summaries, nil
}

// PreviewDescription returns the description a publish with auto description
// would store, without storing anything.
func (m *Marketplace) PreviewDescription(ctx context.Context, user *models.User, workflowID string) (string, error) {
	ctx, op := m.start(ctx, "preview_description", user, "workflow_id", workflowID)
	defer op.span.End()

	workflow, err := m.readableWorkflow(ctx, user, workflowID, models.ScopeWorkflowRead)
	if err != nil {
		return "", op.fail(ctx, NewPersistenceError("preview_description", err))
	}

	if workflow == nil {
		return "", op.fail(ctx, NewAuthorizationError("preview_description"))
	}

	return m.describe(ctx, workflow), nil
}
