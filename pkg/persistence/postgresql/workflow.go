package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/persistence"
	"github.com/lib/pq"
)

const workflowColumns = `
	w.id
  , w.name
  , w.active
  , w.graph
  , w.version_id
  , w.is_published
  , w.created_at
  , w.updated_at
`

// accessFilter matches workflows reachable by $2 through a project whose role is
// one of $3.
const accessFilter = `
	EXISTS (
		SELECT 1
		FROM workflow_ownerships o
		JOIN project_relations pr ON pr.project_id = o.project_id
		WHERE o.workflow_id = w.id
		  AND pr.user_id = $%d
		  AND pr.role = ANY($%d)
	)
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     dbtx
	logger *slog.Logger
}

func (r *WorkflowRepository) scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow  models.Workflow
		graphJSON []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Active,
		&graphJSON,
		&workflow.VersionID,
		&workflow.IsPublished,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(graphJSON, &workflow.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow graph: %w", err)
	}

	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()

	return &workflow, nil
}

func roleArray(scopes []models.Scope) any {
	roles := models.ProjectRolesWithScopes(scopes...)

	values := make([]string, len(roles))
	for i, role := range roles {
		values[i] = string(role)
	}

	return pq.Array(values)
}

func (r *WorkflowRepository) getOne(ctx context.Context, query string, args ...any) (*models.Workflow, error) {
	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.getOne(ctx, `SELECT `+workflowColumns+` FROM workflows w WHERE w.id = $1`, id)
}

func (r *WorkflowRepository) GetForUser(ctx context.Context, id, userID string, scopes ...models.Scope) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows w WHERE w.id = $1 AND ` + fmt.Sprintf(accessFilter, 2, 3)

	return r.getOne(ctx, query, id, userID, roleArray(scopes))
}

func (r *WorkflowRepository) ListForUser(ctx context.Context, userID string, scopes ...models.Scope) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows w
		WHERE ` + fmt.Sprintf(accessFilter, 1, 2) + `
		ORDER BY w.updated_at DESC, w.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, roleArray(scopes))
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	if workflow.UpdatedAt.IsZero() {
		workflow.UpdatedAt = now
	}

	graphJSON, err := json.Marshal(workflow.Graph)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow graph: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, active, graph, version_id, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Active,
		graphJSON,
		workflow.VersionID,
		workflow.IsPublished,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		if pqCode(err) == uniqueViolation {
			return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrAlreadyExists)
		}

		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// Update changes the given fields in one statement. The update timestamp moves
// only when the name or the active flag change.
func (r *WorkflowRepository) Update(ctx context.Context, id string, update models.WorkflowUpdate) error {
	query := `
		UPDATE workflows SET
			name = COALESCE($2::text, name),
			active = COALESCE($3::boolean, active),
			is_published = COALESCE($4::boolean, is_published),
			updated_at = CASE
				WHEN $2::text IS NOT NULL OR $3::boolean IS NOT NULL THEN $5
				ELSE updated_at
			END
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, update.Name, update.Active, update.IsPublished, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	return expectOneRow(result, persistence.NewWorkflowError("Update", id, persistence.ErrWorkflowNotFound))
}
