// Package persistencetest holds the behaviour every persistence implementation
// must share. Implementations run it from their own tests.
package persistencetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It registers its own cleanup on t.
type Factory func(t *testing.T) persistence.Persistence

// Run executes the shared persistence suite.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	tests := map[string]func(t *testing.T, p persistence.Persistence){
		"upsert inserts with defaults":                testUpsertInsert,
		"upsert updates the same origin and author":   testUpsertUpdate,
		"upsert keeps authors apart":                  testUpsertDifferentAuthors,
		"missing entry is nil":                        testGetMissingEntry,
		"list visible returns public and own entries": testListVisible,
		"increment downloads":                         testIncrementDownloads,
		"concurrent increments are not lost":          testConcurrentIncrements,
		"delete entry":                                testDeleteEntry,
		"workflow create and update":                  testWorkflowCreateUpdate,
		"workflow access follows project roles":       testWorkflowAccess,
		"personal project lookup":                     testPersonalProject,
		"ownership records":                           testOwnership,
		"transaction commits every write":             testTransactCommit,
		"transaction rolls back every write on error": testTransactRollback,
		"stored graphs are independent of the caller": testGraphIndependence,
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test(t, factory(t))
		})
	}
}

// SeedUser creates a personal project owned by userID and returns it.
func SeedUser(t *testing.T, p persistence.Persistence, userID string) *models.Project {
	t.Helper()

	project := &models.Project{
		ID:   uuid.NewString(),
		Name: userID + " personal",
		Type: models.ProjectTypePersonal,
	}

	err := p.ProjectRepository().Create(context.Background(), project, models.ProjectRelation{
		UserID: userID,
		Role:   models.ProjectRolePersonalOwner,
	})
	require.NoError(t, err)

	return project
}

// SeedWorkflow creates a workflow owned by the project.
func SeedWorkflow(t *testing.T, p persistence.Persistence, project *models.Project, name string) *models.Workflow {
	t.Helper()

	ctx := context.Background()
	workflow := &models.Workflow{
		ID:        uuid.NewString(),
		Name:      name,
		VersionID: uuid.NewString(),
		Graph: models.Graph{
			Nodes: []*models.Node{
				{ID: "n1", Name: "Start", Type: "n8n-nodes-base.manualTrigger", TypeVersion: 1, Parameters: map[string]any{}},
				{ID: "n2", Name: "Request", Type: "n8n-nodes-base.httpRequest", TypeVersion: 4.1, Position: [2]int{200, 0}, Parameters: map[string]any{"url": "https://example.com", "options": map[string]any{"timeout": float64(30)}}},
			},
			Connections: models.Connections{"Start": {{Node: "Request", Type: "main"}}},
			Settings:    map[string]any{"timezone": "UTC"},
		},
	}

	require.NoError(t, p.WorkflowRepository().Create(ctx, workflow))
	require.NoError(t, p.OwnershipRepository().Create(ctx, &models.OwnershipRecord{
		WorkflowID: workflow.ID,
		ProjectID:  project.ID,
		Role:       models.WorkflowRoleOwner,
	}))

	return workflow
}

func upsertFor(origin, author string, isPublic *bool) *models.CatalogUpsert {
	return &models.CatalogUpsert{
		Graph: models.Graph{
			Nodes:       []*models.Node{{ID: "n1", Name: "Start", Type: "n8n-nodes-base.manualTrigger", Parameters: map[string]any{"a": "b"}}},
			Connections: models.Connections{},
		},
		Name:             "Entry",
		Description:      "Does things",
		Category:         "ops",
		AuthorID:         author,
		AuthorName:       author + "@example.com",
		IsPublic:         isPublic,
		OriginWorkflowID: origin,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func testUpsertInsert(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	entry, err := p.CatalogRepository().Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Entry", entry.Name)
	assert.Equal(t, int64(0), entry.Downloads)
	assert.True(t, entry.IsPublic)
	assert.Equal(t, "alice", entry.AuthorID)
	assert.Equal(t, "alice", entry.CreatedBy)
	require.NotNil(t, entry.OriginWorkflowID)
	assert.Equal(t, "w1", *entry.OriginWorkflowID)
	assert.Equal(t, "b", entry.Nodes[0].Parameters["a"])
	assert.False(t, entry.CreatedAt.IsZero())

	private, err := p.CatalogRepository().Upsert(ctx, upsertFor("w2", "alice", ptr(false)))
	require.NoError(t, err)
	assert.False(t, private.IsPublic)
}

func testUpsertUpdate(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.CatalogRepository()

	first, err := repo.Upsert(ctx, upsertFor("w1", "alice", ptr(false)))
	require.NoError(t, err)
	require.NoError(t, repo.IncrementDownloads(ctx, first.ID, 3))

	update := upsertFor("w1", "alice", nil)
	update.Name = "Renamed"
	update.Description = "New description"

	second, err := repo.Upsert(ctx, update)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Renamed", second.Name)
	assert.Equal(t, "New description", second.Description)
	assert.Equal(t, int64(3), second.Downloads)
	assert.False(t, second.IsPublic, "omitted visibility keeps the stored value")
	assert.WithinDuration(t, first.CreatedAt, second.CreatedAt, time.Millisecond)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	third, err := repo.Upsert(ctx, upsertFor("w1", "alice", ptr(true)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.True(t, third.IsPublic)

	byOrigin, err := repo.GetByOrigin(ctx, "w1", "alice")
	require.NoError(t, err)
	require.NotNil(t, byOrigin)
	assert.Equal(t, first.ID, byOrigin.ID)
}

func testUpsertDifferentAuthors(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	a, err := p.CatalogRepository().Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	b, err := p.CatalogRepository().Upsert(ctx, upsertFor("w1", "bob", nil))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func testGetMissingEntry(t *testing.T, p persistence.Persistence) {
	entry, err := p.CatalogRepository().GetByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, entry)

	byOrigin, err := p.CatalogRepository().GetByOrigin(context.Background(), "nope", "nobody")
	require.NoError(t, err)
	assert.Nil(t, byOrigin)
}

func testListVisible(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.CatalogRepository()

	public, err := repo.Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	ownPrivate, err := repo.Upsert(ctx, upsertFor("w2", "bob", ptr(false)))
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, upsertFor("w3", "carol", ptr(false)))
	require.NoError(t, err)

	entries, err := repo.ListVisible(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ownPrivate.ID, entries[0].ID, "most recently updated first")
	assert.Equal(t, public.ID, entries[1].ID)

	_, err = repo.Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	entries, err = repo.ListVisible(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, public.ID, entries[0].ID)

	entries, err = repo.ListVisible(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func testIncrementDownloads(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.CatalogRepository()

	entry, err := repo.Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	require.NoError(t, repo.IncrementDownloads(ctx, entry.ID, 1))
	require.NoError(t, repo.IncrementDownloads(ctx, entry.ID, 2))

	stored, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Downloads)

	err = repo.IncrementDownloads(ctx, uuid.NewString(), 1)
	assert.True(t, persistence.IsCatalogEntryNotFound(err))
}

func testConcurrentIncrements(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.CatalogRepository()

	entry, err := repo.Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	const workers = 20

	var wg sync.WaitGroup

	errs := make(chan error, workers)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs <- p.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
				return repos.CatalogRepository().IncrementDownloads(ctx, entry.ID, 1)
			})
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), stored.Downloads)
}

func testDeleteEntry(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.CatalogRepository()

	entry, err := repo.Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, entry.ID))

	stored, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	err = repo.Delete(ctx, entry.ID)
	assert.True(t, persistence.IsCatalogEntryNotFound(err))
}

func testWorkflowCreateUpdate(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	project := SeedUser(t, p, "alice")
	workflow := SeedWorkflow(t, p, project, "Sync")

	stored, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Sync", stored.Name)
	assert.Equal(t, workflow.VersionID, stored.VersionID)
	assert.Equal(t, workflow.Nodes, stored.Nodes)
	assert.Equal(t, workflow.Connections, stored.Connections)
	assert.Equal(t, workflow.Settings, stored.Settings)
	assert.False(t, stored.IsPublished)

	require.NoError(t, p.WorkflowRepository().Update(ctx, workflow.ID, models.WorkflowUpdate{IsPublished: ptr(true)}))

	stored, err = p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPublished)
	assert.Equal(t, "Sync", stored.Name)

	err = p.WorkflowRepository().Update(ctx, uuid.NewString(), models.WorkflowUpdate{Active: ptr(true)})
	assert.True(t, persistence.IsWorkflowNotFound(err))

	missing, err := p.WorkflowRepository().GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testWorkflowAccess(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.WorkflowRepository()

	project := SeedUser(t, p, "alice")
	SeedUser(t, p, "mallory")
	workflow := SeedWorkflow(t, p, project, "Sync")

	team := &models.Project{ID: uuid.NewString(), Name: "Team", Type: models.ProjectTypeTeam}
	require.NoError(t, p.ProjectRepository().Create(ctx, team, models.ProjectRelation{UserID: "victor", Role: models.ProjectRoleViewer}))
	require.NoError(t, p.OwnershipRepository().Create(ctx, &models.OwnershipRecord{WorkflowID: workflow.ID, ProjectID: team.ID, Role: models.WorkflowRoleEditor}))

	owned, err := repo.GetForUser(ctx, workflow.ID, "alice", models.ScopeWorkflowRead, models.ScopeWorkflowUpdate)
	require.NoError(t, err)
	require.NotNil(t, owned)

	viewed, err := repo.GetForUser(ctx, workflow.ID, "victor", models.ScopeWorkflowRead)
	require.NoError(t, err)
	require.NotNil(t, viewed)

	notEditable, err := repo.GetForUser(ctx, workflow.ID, "victor", models.ScopeWorkflowUpdate)
	require.NoError(t, err)
	assert.Nil(t, notEditable)

	stranger, err := repo.GetForUser(ctx, workflow.ID, "mallory", models.ScopeWorkflowRead)
	require.NoError(t, err)
	assert.Nil(t, stranger)

	list, err := repo.ListForUser(ctx, "victor", models.ScopeWorkflowRead)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, workflow.ID, list[0].ID)

	list, err = repo.ListForUser(ctx, "mallory", models.ScopeWorkflowRead)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testPersonalProject(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	project := SeedUser(t, p, "alice")

	found, err := p.ProjectRepository().GetPersonalProject(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, project.ID, found.ID)
	assert.Equal(t, models.ProjectTypePersonal, found.Type)

	_, err = p.ProjectRepository().GetPersonalProject(ctx, "nobody")
	assert.True(t, persistence.IsProjectNotFound(err))
}

func testOwnership(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	project := SeedUser(t, p, "alice")
	workflow := SeedWorkflow(t, p, project, "Sync")

	records, err := p.OwnershipRepository().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, project.ID, records[0].ProjectID)
	assert.Equal(t, models.WorkflowRoleOwner, records[0].Role)

	err = p.OwnershipRepository().Create(ctx, &models.OwnershipRecord{WorkflowID: uuid.NewString(), ProjectID: project.ID, Role: models.WorkflowRoleOwner})
	assert.Error(t, err)
}

func testTransactCommit(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	project := SeedUser(t, p, "bob")

	entry, err := p.CatalogRepository().Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	workflow := &models.Workflow{ID: uuid.NewString(), Name: "Entry (Imported)", VersionID: uuid.NewString(), Graph: entry.Graph}

	err = p.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		if err := repos.WorkflowRepository().Create(ctx, workflow); err != nil {
			return err
		}

		if err := repos.OwnershipRepository().Create(ctx, &models.OwnershipRecord{WorkflowID: workflow.ID, ProjectID: project.ID, Role: models.WorkflowRoleOwner}); err != nil {
			return err
		}

		return repos.CatalogRepository().IncrementDownloads(ctx, entry.ID, 1)
	})
	require.NoError(t, err)

	stored, err := p.WorkflowRepository().GetForUser(ctx, workflow.ID, "bob", models.ScopeWorkflowRead)
	require.NoError(t, err)
	require.NotNil(t, stored)

	updated, err := p.CatalogRepository().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Downloads)
}

func testTransactRollback(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	project := SeedUser(t, p, "bob")

	entry, err := p.CatalogRepository().Upsert(ctx, upsertFor("w1", "alice", nil))
	require.NoError(t, err)

	workflow := &models.Workflow{ID: uuid.NewString(), Name: "Entry (Imported)", VersionID: uuid.NewString(), Graph: entry.Graph}
	boom := errors.New("boom")

	err = p.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		if err := repos.WorkflowRepository().Create(ctx, workflow); err != nil {
			return err
		}

		if err := repos.OwnershipRepository().Create(ctx, &models.OwnershipRecord{WorkflowID: workflow.ID, ProjectID: project.ID, Role: models.WorkflowRoleOwner}); err != nil {
			return err
		}

		if err := repos.CatalogRepository().IncrementDownloads(ctx, entry.ID, 1); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	records, err := p.OwnershipRepository().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	unchanged, err := p.CatalogRepository().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unchanged.Downloads)
}

func testGraphIndependence(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	upsert := upsertFor("w1", "alice", nil)

	entry, err := p.CatalogRepository().Upsert(ctx, upsert)
	require.NoError(t, err)

	upsert.Nodes[0].Parameters["a"] = "changed by caller"
	entry.Nodes[0].Parameters["a"] = "changed by reader"

	stored, err := p.CatalogRepository().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", stored.Nodes[0].Parameters["a"])
}
