package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/persistence"
)

// OwnershipRepository handles workflow ownership records.
type OwnershipRepository struct {
	db     dbtx
	logger *slog.Logger
}

func (r *OwnershipRepository) Create(ctx context.Context, record *models.OwnershipRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workflow_ownerships (workflow_id, project_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, record.WorkflowID, record.ProjectID, string(record.Role), record.CreatedAt)
	if err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return persistence.NewWorkflowError("CreateOwnership", record.WorkflowID, persistence.ErrAlreadyExists)
		case foreignKeyViolation:
			return persistence.NewWorkflowError("CreateOwnership", record.WorkflowID, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to save ownership record: %w", err)
	}

	return nil
}

func (r *OwnershipRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.OwnershipRecord, error) {
	query := `
		SELECT workflow_id, project_id, role, created_at
		FROM workflow_ownerships
		WHERE workflow_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ownership records: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	records := make([]*models.OwnershipRecord, 0)

	for rows.Next() {
		var record models.OwnershipRecord

		err := rows.Scan(&record.WorkflowID, &record.ProjectID, &record.Role, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ownership record: %w", err)
		}

		records = append(records, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating ownership records: %w", err)
	}

	return records, nil
}

// ProjectRepository handles projects and their member relations.
type ProjectRepository struct {
	db     dbtx
	conn   *sql.DB
	logger *slog.Logger
}

func (r *ProjectRepository) GetPersonalProject(ctx context.Context, userID string) (*models.Project, error) {
	query := `
		SELECT p.id, p.name, p.type, p.created_at
		FROM projects p
		JOIN project_relations pr ON pr.project_id = p.id
		WHERE pr.user_id = $1
		  AND pr.role = $2
		  AND p.type = $3
		ORDER BY p.created_at
		LIMIT 1
	`

	var project models.Project

	err := r.db.QueryRowContext(ctx, query, userID, string(models.ProjectRolePersonalOwner), string(models.ProjectTypePersonal)).
		Scan(&project.ID, &project.Name, &project.Type, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewProjectError("GetPersonalProject", userID, persistence.ErrProjectNotFound)
		}

		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	project.CreatedAt = project.CreatedAt.UTC()

	return &project, nil
}

// Create inserts the project and its relations. Outside a transaction it opens
// one so a failed relation does not leave an orphan project.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project, relations ...models.ProjectRelation) error {
	if r.conn == nil {
		return r.create(ctx, r.db, project, relations)
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	err = r.create(ctx, tx, project, relations)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *ProjectRepository) create(ctx context.Context, db dbtx, project *models.Project, relations []models.ProjectRelation) error {
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO projects (id, name, type, created_at) VALUES ($1, $2, $3, $4)`,
		project.ID, project.Name, string(project.Type), project.CreatedAt,
	)
	if err != nil {
		if pqCode(err) == uniqueViolation {
			return persistence.NewProjectError("Create", project.ID, persistence.ErrAlreadyExists)
		}

		return fmt.Errorf("failed to save project: %w", err)
	}

	for _, relation := range relations {
		_, err = db.ExecContext(ctx,
			`INSERT INTO project_relations (project_id, user_id, role) VALUES ($1, $2, $3)
			 ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
			project.ID, relation.UserID, string(relation.Role),
		)
		if err != nil {
			return fmt.Errorf("failed to save project relation: %w", err)
		}
	}

	return nil
}
