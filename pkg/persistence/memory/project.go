package memory

import (
	"context"
	"slices"

	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/persistence"
)

type ownershipRepository struct {
	*repositories
}

func (r *ownershipRepository) Create(ctx context.Context, record *models.OwnershipRecord) error {
	return r.run(ctx, true, func(s *state) error {
		if _, ok := s.workflows[record.WorkflowID]; !ok {
			return persistence.NewWorkflowError("CreateOwnership", record.WorkflowID, persistence.ErrWorkflowNotFound)
		}

		if _, ok := s.projects[record.ProjectID]; !ok {
			return persistence.NewProjectError("CreateOwnership", record.ProjectID, persistence.ErrProjectNotFound)
		}

		for _, existing := range s.ownerships {
			if existing.WorkflowID == record.WorkflowID && existing.ProjectID == record.ProjectID {
				return persistence.NewWorkflowError("CreateOwnership", record.WorkflowID, persistence.ErrAlreadyExists)
			}
		}

		if record.CreatedAt.IsZero() {
			record.CreatedAt = r.now()
		}

		s.ownerships = append(s.ownerships, *record)

		return nil
	})
}

func (r *ownershipRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.OwnershipRecord, error) {
	records := make([]*models.OwnershipRecord, 0)

	err := r.run(ctx, false, func(s *state) error {
		for _, record := range s.ownerships {
			if record.WorkflowID == workflowID {
				copied := record
				records = append(records, &copied)
			}
		}

		return nil
	})

	return records, err
}

type projectRepository struct {
	*repositories
}

func (r *projectRepository) GetPersonalProject(ctx context.Context, userID string) (*models.Project, error) {
	var found *models.Project

	err := r.run(ctx, false, func(s *state) error {
		for _, relation := range s.relations {
			if relation.UserID != userID || relation.Role != models.ProjectRolePersonalOwner {
				continue
			}

			project, ok := s.projects[relation.ProjectID]
			if ok && project.Type == models.ProjectTypePersonal {
				found = &project

				return nil
			}
		}

		return persistence.NewProjectError("GetPersonalProject", userID, persistence.ErrProjectNotFound)
	})

	return found, err
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project, relations ...models.ProjectRelation) error {
	return r.run(ctx, true, func(s *state) error {
		if _, exists := s.projects[project.ID]; exists {
			return persistence.NewProjectError("Create", project.ID, persistence.ErrAlreadyExists)
		}

		if project.CreatedAt.IsZero() {
			project.CreatedAt = r.now()
		}

		s.projects[project.ID] = *project

		for _, relation := range relations {
			relation.ProjectID = project.ID
			if !slices.Contains(s.relations, relation) {
				s.relations = append(s.relations, relation)
			}
		}

		return nil
	})
}
