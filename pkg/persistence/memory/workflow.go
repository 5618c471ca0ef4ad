package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/persistence"
)

type workflowRepository struct {
	*repositories
}

func (r *workflowRepository) copyOut(workflow models.Workflow) (*models.Workflow, error) {
	graph, err := r.cloneGraph(workflow.Graph)
	if err != nil {
		return nil, err
	}

	workflow.Graph = graph

	return &workflow, nil
}

func (r *workflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	var found *models.Workflow

	err := r.run(ctx, false, func(s *state) error {
		workflow, ok := s.workflows[id]
		if !ok {
			return nil
		}

		var err error

		found, err = r.copyOut(workflow)

		return err
	})

	return found, err
}

// accessibleProjects returns the projects in which the user holds a role granting
// every scope.
func accessibleProjects(s *state, userID string, scopes []models.Scope) map[string]bool {
	roles := models.ProjectRolesWithScopes(scopes...)
	projects := make(map[string]bool)

	for _, relation := range s.relations {
		if relation.UserID == userID && slices.Contains(roles, relation.Role) {
			projects[relation.ProjectID] = true
		}
	}

	return projects
}

func reachable(s *state, workflowID string, projects map[string]bool) bool {
	for _, record := range s.ownerships {
		if record.WorkflowID == workflowID && projects[record.ProjectID] {
			return true
		}
	}

	return false
}

func (r *workflowRepository) GetForUser(ctx context.Context, id, userID string, scopes ...models.Scope) (*models.Workflow, error) {
	var found *models.Workflow

	err := r.run(ctx, false, func(s *state) error {
		workflow, ok := s.workflows[id]
		if !ok || !reachable(s, id, accessibleProjects(s, userID, scopes)) {
			return nil
		}

		var err error

		found, err = r.copyOut(workflow)

		return err
	})

	return found, err
}

func (r *workflowRepository) ListForUser(ctx context.Context, userID string, scopes ...models.Scope) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0)

	err := r.run(ctx, false, func(s *state) error {
		projects := accessibleProjects(s, userID, scopes)

		for id, workflow := range s.workflows {
			if !reachable(s, id, projects) {
				continue
			}

			copied, err := r.copyOut(workflow)
			if err != nil {
				return err
			}

			workflows = append(workflows, copied)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return workflows, nil
}

func (r *workflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	graph, err := r.cloneGraph(workflow.Graph)
	if err != nil {
		return err
	}

	return r.run(ctx, true, func(s *state) error {
		if _, exists := s.workflows[workflow.ID]; exists {
			return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrAlreadyExists)
		}

		now := r.now()
		if workflow.CreatedAt.IsZero() {
			workflow.CreatedAt = now
		}

		if workflow.UpdatedAt.IsZero() {
			workflow.UpdatedAt = now
		}

		stored := *workflow
		stored.Graph = graph
		s.workflows[workflow.ID] = stored

		return nil
	})
}

func (r *workflowRepository) Update(ctx context.Context, id string, update models.WorkflowUpdate) error {
	return r.run(ctx, true, func(s *state) error {
		workflow, ok := s.workflows[id]
		if !ok {
			return persistence.NewWorkflowError("Update", id, persistence.ErrWorkflowNotFound)
		}

		if update.Name != nil {
			workflow.Name = *update.Name
			workflow.UpdatedAt = r.now()
		}

		if update.Active != nil {
			workflow.Active = *update.Active
			workflow.UpdatedAt = r.now()
		}

		if update.IsPublished != nil {
			workflow.IsPublished = *update.IsPublished
		}

		s.workflows[id] = workflow

		return nil
	})
}
