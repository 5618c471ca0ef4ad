package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/operion-marketplace/pkg/channels/gochannel"
	"github.com/dukex/operion-marketplace/pkg/describe"
	"github.com/dukex/operion-marketplace/pkg/eventbus"
	"github.com/dukex/operion-marketplace/pkg/events"
	"github.com/dukex/operion-marketplace/pkg/mocks"
	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/otelhelper"
	"github.com/dukex/operion-marketplace/pkg/persistence"
	"github.com/dukex/operion-marketplace/pkg/persistence/memory"
	"github.com/dukex/operion-marketplace/pkg/persistence/persistencetest"
	"github.com/dukex/operion-marketplace/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store       *memory.Persistence
	marketplace *services.Marketplace
	author      *models.User
	project     *models.Project
	workflow    *models.Workflow
}

func newFixture(t *testing.T, opts ...services.Option) *fixture {
	t.Helper()

	store := memory.NewPersistence(testLogger())
	project := persistencetest.SeedUser(t, store, "author")

	return &fixture{
		store:       store,
		marketplace: services.NewMarketplace(store, describe.NewDescriber(testLogger()), nil, testLogger(), opts...),
		author:      &models.User{ID: "author", Email: "author@example.com", Role: models.GlobalRoleMember},
		project:     project,
		workflow:    persistencetest.SeedWorkflow(t, store, project, "Backup"),
	}
}

func (f *fixture) publish(t *testing.T, overrides ...func(*services.PublishRequest)) *models.CatalogEntry {
	t.Helper()

	req := services.PublishRequest{
		WorkflowID:  f.workflow.ID,
		Name:        "Nightly backup",
		Description: "Copies data every night",
		Category:    "ops",
	}

	for _, override := range overrides {
		override(&req)
	}

	entry, err := f.marketplace.Publish(context.Background(), f.author, req)
	require.NoError(t, err)

	return entry
}

func member(id string) *models.User {
	return &models.User{ID: id, Role: models.GlobalRoleMember}
}

func ptr[T any](v T) *T {
	return &v
}

func TestPublish_CreatesPublicEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.publish(t)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Nightly backup", entry.Name)
	assert.Equal(t, "Copies data every night", entry.Description)
	assert.Equal(t, "ops", entry.Category)
	assert.Equal(t, "author", entry.AuthorID)
	assert.Equal(t, "author@example.com", entry.AuthorName)
	assert.True(t, entry.IsPublic)
	assert.Equal(t, int64(0), entry.Downloads)
	require.NotNil(t, entry.OriginWorkflowID)
	assert.Equal(t, f.workflow.ID, *entry.OriginWorkflowID)
	assert.Equal(t, f.workflow.Nodes, entry.Nodes)
	assert.Equal(t, f.workflow.Connections, entry.Connections)

	origin, err := f.store.WorkflowRepository().GetByID(ctx, f.workflow.ID)
	require.NoError(t, err)
	assert.True(t, origin.IsPublished)
}

func TestPublish_SnapshotIsIndependentOfOrigin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.publish(t)

	require.NoError(t, f.store.WorkflowRepository().Update(ctx, f.workflow.ID, models.WorkflowUpdate{Name: ptr("Renamed")}))
	f.workflow.Nodes[1].Parameters["url"] = "https://changed.example.com"

	stored, err := f.store.CatalogRepository().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nightly backup", stored.Name)
	assert.Equal(t, "https://example.com", stored.Nodes[1].Parameters["url"])

	entry.Nodes[1].Parameters["url"] = "https://mutated.example.com"

	stored, err = f.store.CatalogRepository().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", stored.Nodes[1].Parameters["url"])
}

func TestPublish_RepublishUpdatesSameEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.publish(t)
	require.NoError(t, f.store.CatalogRepository().IncrementDownloads(ctx, first.ID, 3))

	second := f.publish(t, func(r *services.PublishRequest) {
		r.Name = "Hourly backup"
		r.Description = "Copies data every hour"
		r.IsPublic = ptr(false)
	})

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Hourly backup", second.Name)
	assert.Equal(t, "Copies data every hour", second.Description)
	assert.False(t, second.IsPublic)
	assert.Equal(t, int64(3), second.Downloads)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	third := f.publish(t)
	assert.Equal(t, first.ID, third.ID)
	assert.False(t, third.IsPublic, "visibility is kept when not given")

	all, err := f.marketplace.FindAll(ctx, f.author)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPublish_AutoDescriptionUsesHeuristic(t *testing.T) {
	f := newFixture(t)

	entry := f.publish(t, func(r *services.PublishRequest) {
		r.Description = ""
		r.UseAutoDescription = true
	})

	assert.Equal(t, `Workflow "Backup" triggered by manualTrigger using httpRequest (2 nodes total)`, entry.Description)
}

func TestPublish_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		override func(*services.PublishRequest)
		expected error
	}{
		{
			name:     "missing description",
			override: func(r *services.PublishRequest) { r.Description = "  " },
			expected: services.ErrDescriptionRequired,
		},
		{
			name:     "missing name",
			override: func(r *services.PublishRequest) { r.Name = "" },
			expected: services.ErrInvalidRequest,
		},
		{
			name:     "missing category",
			override: func(r *services.PublishRequest) { r.Category = "" },
			expected: services.ErrInvalidRequest,
		},
		{
			name:     "missing workflow id",
			override: func(r *services.PublishRequest) { r.WorkflowID = "" },
			expected: services.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			req := services.PublishRequest{
				WorkflowID:  f.workflow.ID,
				Name:        "Nightly backup",
				Description: "Copies data every night",
				Category:    "ops",
			}
			tt.override(&req)

			entry, err := f.marketplace.Publish(context.Background(), f.author, req)
			require.Error(t, err)
			assert.Nil(t, entry)
			assert.ErrorIs(t, err, tt.expected)
			assert.True(t, services.IsValidationError(err))

			all, err := f.marketplace.FindAll(context.Background(), f.author)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestPublish_InvalidGraphIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broken := &models.Workflow{
		ID:    "broken",
		Name:  "Broken",
		Graph: models.Graph{Nodes: []*models.Node{{ID: "1", Name: "", Type: "n8n-nodes-base.set"}}},
	}
	require.NoError(t, f.store.WorkflowRepository().Create(ctx, broken))
	require.NoError(t, f.store.OwnershipRepository().Create(ctx, &models.OwnershipRecord{
		WorkflowID: broken.ID,
		ProjectID:  f.project.ID,
		Role:       models.WorkflowRoleOwner,
	}))

	_, err := f.marketplace.Publish(ctx, f.author, services.PublishRequest{
		WorkflowID:  broken.ID,
		Name:        "Broken",
		Description: "Never stored",
		Category:    "ops",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidGraph)
	assert.True(t, services.IsValidationError(err))
}

func (f *fixture) seedGraph(t *testing.T, id string, graph models.Graph) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, f.store.WorkflowRepository().Create(ctx, &models.Workflow{ID: id, Name: id, Graph: graph}))
	require.NoError(t, f.store.OwnershipRepository().Create(ctx, &models.OwnershipRecord{
		WorkflowID: id,
		ProjectID:  f.project.ID,
		Role:       models.WorkflowRoleOwner,
	}))
}

func TestPublish_NilNodeIsRejected(t *testing.T) {
	f := newFixture(t)
	f.seedGraph(t, "holey", models.Graph{Nodes: []*models.Node{
		nil,
		{ID: "1", Name: "Set", Type: "n8n-nodes-base.set"},
	}})

	_, err := f.marketplace.Publish(context.Background(), f.author, services.PublishRequest{
		WorkflowID:  "holey",
		Name:        "Holey",
		Description: "Has an empty node slot",
		Category:    "ops",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidGraph)
	assert.True(t, services.IsValidationError(err))
}

func TestPublish_NonFiniteAndComplexParametersBecomePlaceholders(t *testing.T) {
	f := newFixture(t)
	f.seedGraph(t, "numeric", models.Graph{Nodes: []*models.Node{{
		ID:   "1",
		Name: "Compute",
		Type: "n8n-nodes-base.code",
		Parameters: map[string]any{
			"nan":     math.NaN(),
			"inf":     math.Inf(1),
			"complex": complex(1, 2),
			"ratio":   0.5,
		},
	}}})

	entry, err := f.marketplace.Publish(context.Background(), f.author, services.PublishRequest{
		WorkflowID:  "numeric",
		Name:        "Numeric",
		Description: "Carries odd numbers",
		Category:    "math",
	})
	require.NoError(t, err)

	params := entry.Nodes[0].Parameters
	assert.Equal(t, "[Unserializable: NaN]", params["nan"])
	assert.Equal(t, "[Unserializable: +Inf]", params["inf"])
	assert.Equal(t, "[Unserializable: complex128]", params["complex"])
	assert.Equal(t, 0.5, params["ratio"])
}

func TestPublish_AccessControl(t *testing.T) {
	ctx := context.Background()

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := newFixture(t)
		persistencetest.SeedUser(t, f.store, "stranger")

		_, err := f.marketplace.Publish(ctx, member("stranger"), services.PublishRequest{
			WorkflowID:  f.workflow.ID,
			Name:        "Stolen",
			Description: "Not mine",
			Category:    "ops",
		})
		require.Error(t, err)
		assert.True(t, services.IsAuthorizationError(err))
		assert.Equal(t, services.ErrForbidden.Error(), err.(*services.ServiceError).Message)
	})

	t.Run("unknown workflow is indistinguishable from forbidden", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.marketplace.Publish(ctx, f.author, services.PublishRequest{
			WorkflowID:  "missing",
			Name:        "Ghost",
			Description: "Does not exist",
			Category:    "ops",
		})
		require.Error(t, err)
		assert.True(t, services.IsAuthorizationError(err))
	})

	t.Run("admin may publish any workflow", func(t *testing.T) {
		f := newFixture(t)
		admin := &models.User{ID: "admin", Role: models.GlobalRoleAdmin}

		entry, err := f.marketplace.Publish(ctx, admin, services.PublishRequest{
			WorkflowID:  f.workflow.ID,
			Name:        "Curated",
			Description: "Picked by an admin",
			Category:    "ops",
		})
		require.NoError(t, err)
		assert.Equal(t, "admin", entry.AuthorID)
	})

	t.Run("viewer may publish unless access is strict", func(t *testing.T) {
		for _, strict := range []bool{false, true} {
			f := newFixture(t, services.WithStrictAccess(strict))

			team := &models.Project{ID: "team", Name: "Team", Type: models.ProjectTypeTeam}
			require.NoError(t, f.store.ProjectRepository().Create(ctx, team,
				models.ProjectRelation{UserID: "viewer", Role: models.ProjectRoleViewer},
			))

			shared := persistencetest.SeedWorkflow(t, f.store, team, "Shared")

			_, err := f.marketplace.Publish(ctx, member("viewer"), services.PublishRequest{
				WorkflowID:  shared.ID,
				Name:        "Shared",
				Description: "Team workflow",
				Category:    "ops",
			})

			if strict {
				assert.True(t, services.IsAuthorizationError(err))
			} else {
				assert.NoError(t, err)
			}
		}
	})
}

func TestImport_CreatesIndependentInactiveCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	importer := member("importer")
	personal := persistencetest.SeedUser(t, f.store, importer.ID)

	entry := f.publish(t)

	summary, err := f.marketplace.Import(ctx, importer, entry.ID)
	require.NoError(t, err)

	assert.NotEqual(t, f.workflow.ID, summary.ID)
	assert.Equal(t, "Nightly backup (Imported)", summary.Name)
	assert.False(t, summary.Active)

	imported, err := f.store.WorkflowRepository().GetForUser(ctx, summary.ID, importer.ID, models.ScopeWorkflowUpdate)
	require.NoError(t, err)
	require.NotNil(t, imported)
	assert.Equal(t, entry.Nodes, imported.Nodes)
	assert.NotEqual(t, f.workflow.VersionID, imported.VersionID)

	ownerships, err := f.store.OwnershipRepository().ListByWorkflow(ctx, summary.ID)
	require.NoError(t, err)
	require.Len(t, ownerships, 1)
	assert.Equal(t, personal.ID, ownerships[0].ProjectID)
	assert.Equal(t, models.WorkflowRoleOwner, ownerships[0].Role)

	imported.Nodes[1].Parameters["url"] = "https://imported.example.com"
	require.NoError(t, f.store.WorkflowRepository().Update(ctx, imported.ID, models.WorkflowUpdate{Active: ptr(true)}))

	stored, err := f.store.CatalogRepository().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", stored.Nodes[1].Parameters["url"])
	assert.Equal(t, int64(1), stored.Downloads)
}

func TestImport_SelfImportIsNotCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.publish(t)

	summary, err := f.marketplace.Import(ctx, f.author, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nightly backup (Imported)", summary.Name)

	stored, err := f.store.CatalogRepository().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Downloads)
}

func TestImport_ConcurrentImportsAreAllCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.publish(t)

	const importers = 25

	users := make([]*models.User, importers)
	for i := range users {
		users[i] = member(fmt.Sprintf("importer-%02d", i))
		persistencetest.SeedUser(t, f.store, users[i].ID)
	}

	var wg sync.WaitGroup

	errs := make(chan error, importers)

	for _, user := range users {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.marketplace.Import(ctx, user, entry.ID)
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.store.CatalogRepository().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(importers), stored.Downloads)
}

func TestImport_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown entry", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.marketplace.Import(ctx, f.author, "missing")
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
		assert.ErrorIs(t, err, services.ErrCatalogEntryNotFound)
	})

	t.Run("private entry of another author", func(t *testing.T) {
		f := newFixture(t)
		persistencetest.SeedUser(t, f.store, "other")

		entry := f.publish(t, func(r *services.PublishRequest) { r.IsPublic = ptr(false) })

		_, err := f.marketplace.Import(ctx, member("other"), entry.ID)
		require.Error(t, err)
		assert.True(t, services.IsAuthorizationError(err))

		_, err = f.marketplace.Import(ctx, f.author, entry.ID)
		assert.NoError(t, err)
	})

	t.Run("caller without personal project", func(t *testing.T) {
		f := newFixture(t)
		entry := f.publish(t)

		_, err := f.marketplace.Import(ctx, member("homeless"), entry.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrPersonalProjectNotFound)

		stored, err := f.store.CatalogRepository().GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stored.Downloads)
	})
}

func TestFindAll_ReturnsPublicAndOwnEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := member("other")
	otherProject := persistencetest.SeedUser(t, f.store, other.ID)
	otherWorkflow := persistencetest.SeedWorkflow(t, f.store, otherProject, "Other")

	mine := f.publish(t, func(r *services.PublishRequest) { r.IsPublic = ptr(false) })

	hidden, err := f.marketplace.Publish(ctx, other, services.PublishRequest{
		WorkflowID:  otherWorkflow.ID,
		Name:        "Hidden",
		Description: "Private to other",
		Category:    "ops",
		IsPublic:    ptr(false),
	})
	require.NoError(t, err)

	// Publishing a second workflow publicly from the same author.
	second := persistencetest.SeedWorkflow(t, f.store, otherProject, "Public")
	public, err := f.marketplace.Publish(ctx, other, services.PublishRequest{
		WorkflowID:  second.ID,
		Name:        "Public",
		Description: "Shared with everyone",
		Category:    "ops",
	})
	require.NoError(t, err)

	entries, err := f.marketplace.FindAll(ctx, f.author)
	require.NoError(t, err)

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}

	assert.ElementsMatch(t, []string{mine.ID, public.ID}, ids)
	assert.NotContains(t, ids, hidden.ID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("author deletes and imports survive", func(t *testing.T) {
		f := newFixture(t)
		importer := member("importer")
		persistencetest.SeedUser(t, f.store, importer.ID)

		entry := f.publish(t)

		imported, err := f.marketplace.Import(ctx, importer, entry.ID)
		require.NoError(t, err)

		require.NoError(t, f.marketplace.Delete(ctx, f.author, entry.ID))

		stored, err := f.store.CatalogRepository().GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Nil(t, stored)

		copied, err := f.store.WorkflowRepository().GetByID(ctx, imported.ID)
		require.NoError(t, err)
		assert.NotNil(t, copied)

		origin, err := f.store.WorkflowRepository().GetByID(ctx, f.workflow.ID)
		require.NoError(t, err)
		assert.False(t, origin.IsPublished)

		_, err = f.marketplace.Import(ctx, importer, entry.ID)
		assert.True(t, services.IsNotFoundError(err))

		err = f.marketplace.Delete(ctx, f.author, entry.ID)
		assert.True(t, services.IsNotFoundError(err))
	})

	t.Run("other members are forbidden", func(t *testing.T) {
		f := newFixture(t)
		entry := f.publish(t)

		err := f.marketplace.Delete(ctx, member("other"), entry.ID)
		require.Error(t, err)
		assert.True(t, services.IsAuthorizationError(err))

		stored, err := f.store.CatalogRepository().GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored)
	})

	t.Run("admin may delete any entry", func(t *testing.T) {
		f := newFixture(t)
		entry := f.publish(t)

		require.NoError(t, f.marketplace.Delete(ctx, &models.User{ID: "root", Role: models.GlobalRoleOwner}, entry.ID))
	})
}

func TestUserWorkflows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	persistencetest.SeedUser(t, f.store, "other")

	workflows, err := f.marketplace.UserWorkflows(ctx, f.author)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, f.workflow.ID, workflows[0].ID)
	assert.Equal(t, "Backup", workflows[0].Name)

	workflows, err = f.marketplace.UserWorkflows(ctx, member("other"))
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestPreviewDescription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	description, err := f.marketplace.PreviewDescription(ctx, f.author, f.workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, `Workflow "Backup" triggered by manualTrigger using httpRequest (2 nodes total)`, description)

	_, err = f.marketplace.PreviewDescription(ctx, member("other"), f.workflow.ID)
	assert.True(t, services.IsAuthorizationError(err))

	all, err := f.marketplace.FindAll(ctx, f.author)
	require.NoError(t, err)
	assert.Empty(t, all)
}

type failingTransactions struct {
	*memory.Persistence
}

func (failingTransactions) Transact(context.Context, func(context.Context, persistence.Repositories) error) error {
	return errors.New("connection reset by peer")
}

func TestPersistenceFailuresAreGeneric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	marketplace := services.NewMarketplace(failingTransactions{f.store}, nil, nil, testLogger())

	_, err := marketplace.Publish(ctx, f.author, services.PublishRequest{
		WorkflowID:  f.workflow.ID,
		Name:        "Nightly backup",
		Description: "Copies data every night",
		Category:    "ops",
	})
	require.Error(t, err)
	assert.True(t, services.IsPersistenceError(err))

	var serviceErr *services.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, services.ErrPersistence.Error(), serviceErr.Message)
	assert.NotContains(t, serviceErr.Message, "connection reset")

	all, err := f.marketplace.FindAll(ctx, f.author)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEventsArePublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.CreateTestChannel(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pubSub, pubSub)

	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan any, 3)
	for _, eventType := range []events.EventType{
		events.CatalogEntryPublishedEvent,
		events.CatalogEntryImportedEvent,
		events.CatalogEntryDeletedEvent,
	} {
		require.NoError(t, bus.Handle(eventType, func(_ context.Context, event any) error {
			received <- event

			return nil
		}))
	}

	require.NoError(t, bus.Subscribe(ctx))

	f := newFixture(t)
	marketplace := services.NewMarketplace(f.store, nil, bus, testLogger())
	importer := member("importer")
	persistencetest.SeedUser(t, f.store, importer.ID)

	entry, err := marketplace.Publish(ctx, f.author, services.PublishRequest{
		WorkflowID:  f.workflow.ID,
		Name:        "Nightly backup",
		Description: "Copies data every night",
		Category:    "ops",
	})
	require.NoError(t, err)

	imported, err := marketplace.Import(ctx, importer, entry.ID)
	require.NoError(t, err)

	require.NoError(t, marketplace.Delete(ctx, f.author, entry.ID))

	next := func() any {
		select {
		case event := <-received:
			return event
		case <-time.After(5 * time.Second):
			t.Fatal("event was not delivered")

			return nil
		}
	}

	published, ok := next().(*events.CatalogEntryPublished)
	require.True(t, ok)
	assert.Equal(t, entry.ID, published.EntryID)
	assert.Equal(t, f.workflow.ID, published.OriginWorkflowID)
	assert.True(t, published.IsPublic)

	importedEvent, ok := next().(*events.CatalogEntryImported)
	require.True(t, ok)
	assert.Equal(t, imported.ID, importedEvent.WorkflowID)
	assert.True(t, importedEvent.Counted)

	deleted, ok := next().(*events.CatalogEntryDeleted)
	require.True(t, ok)
	assert.Equal(t, entry.ID, deleted.EntryID)
}

func TestPublish_EventFailureDoesNotFailPublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("events.CatalogEntryPublished")).
		Return(errors.New("broker unavailable")).Once()

	describer := &mocks.MockDescriber{}
	describer.On("Describe", mock.Anything, mock.MatchedBy(func(w *models.Workflow) bool {
		return w.ID == f.workflow.ID
	})).Return("Generated description").Once()

	marketplace := services.NewMarketplace(f.store, describer, bus, testLogger())

	entry, err := marketplace.Publish(ctx, f.author, services.PublishRequest{
		WorkflowID:         f.workflow.ID,
		Name:               "Nightly backup",
		Category:           "ops",
		UseAutoDescription: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Generated description", entry.Description)

	bus.AssertExpectations(t)
	describer.AssertExpectations(t)
}

func TestPublish_ExplicitDescriptionSkipsDescriber(t *testing.T) {
	f := newFixture(t)

	describer := &mocks.MockDescriber{}
	marketplace := services.NewMarketplace(f.store, describer, nil, testLogger())

	entry, err := marketplace.Publish(context.Background(), f.author, services.PublishRequest{
		WorkflowID:  f.workflow.ID,
		Name:        "Nightly backup",
		Description: "Written by hand",
		Category:    "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, "Written by hand", entry.Description)
	describer.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything)
}

func TestOperationsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	store := memory.NewPersistence(testLogger())
	marketplace := services.NewMarketplace(store, nil, nil, testLogger(),
		services.WithTracer(provider.Tracer("test")),
	)

	_, err := marketplace.Import(context.Background(), member("someone"), "missing")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "marketplace.import", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.ErrorCodeKey, "NOT_FOUND"))
}
