// Package memory provides an in-memory persistence implementation, used for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dukex/operion-marketplace/pkg/clone"
	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/persistence"
)

type state struct {
	entries    map[string]models.CatalogEntry
	workflows  map[string]models.Workflow
	ownerships []models.OwnershipRecord
	projects   map[string]models.Project
	relations  []models.ProjectRelation
}

func newState() *state {
	return &state{
		entries:   make(map[string]models.CatalogEntry),
		workflows: make(map[string]models.Workflow),
		projects:  make(map[string]models.Project),
	}
}

// stage copies the record indexes. Records are values whose graphs are cloned on
// every write and read, so the copy shares nothing mutable with s.
func (s *state) stage() *state {
	return &state{
		entries:    maps.Clone(s.entries),
		workflows:  maps.Clone(s.workflows),
		ownerships: slices.Clone(s.ownerships),
		projects:   maps.Clone(s.projects),
		relations:  slices.Clone(s.relations),
	}
}

// runner executes fn against a state, taking the store lock when needed.
type runner func(ctx context.Context, write bool, fn func(*state) error) error

// Option configures the in-memory store.
type Option func(*Persistence)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Persistence) {
		p.now = now
	}
}

// Persistence keeps all records in process memory behind a single lock.
type Persistence struct {
	mu     sync.RWMutex
	state  *state
	logger *slog.Logger
	now    func() time.Time
}

// NewPersistence creates an empty in-memory store.
func NewPersistence(logger *slog.Logger, opts ...Option) *Persistence {
	p := &Persistence{
		state:  newState(),
		logger: logger.With("module", "memory_persistence"),
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Persistence) run(ctx context.Context, write bool, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if write {
		p.mu.Lock()
		defer p.mu.Unlock()

		staged := p.state.stage()

		if err := fn(staged); err != nil {
			return err
		}

		p.state = staged

		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return fn(p.state)
}

func (p *Persistence) repositories(run runner) *repositories {
	return &repositories{run: run, logger: p.logger, now: p.now}
}

// Transact runs fn with the store locked for writing. Writes go to a staged copy
// that replaces the live state only when fn succeeds.
func (p *Persistence) Transact(
	ctx context.Context,
	fn func(ctx context.Context, repos persistence.Repositories) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	staged := p.state.stage()

	repos := p.repositories(func(ctx context.Context, _ bool, inner func(*state) error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		return inner(staged)
	})

	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.state = staged

	return nil
}

func (p *Persistence) CatalogRepository() persistence.CatalogRepository {
	return p.repositories(p.run).CatalogRepository()
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.repositories(p.run).WorkflowRepository()
}

func (p *Persistence) OwnershipRepository() persistence.OwnershipRepository {
	return p.repositories(p.run).OwnershipRepository()
}

func (p *Persistence) ProjectRepository() persistence.ProjectRepository {
	return p.repositories(p.run).ProjectRepository()
}

// HealthCheck always succeeds.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close drops all records.
func (p *Persistence) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = newState()

	return nil
}

type repositories struct {
	run    runner
	logger *slog.Logger
	now    func() time.Time
}

func (r *repositories) CatalogRepository() persistence.CatalogRepository {
	return &catalogRepository{repositories: r}
}

func (r *repositories) WorkflowRepository() persistence.WorkflowRepository {
	return &workflowRepository{repositories: r}
}

func (r *repositories) OwnershipRepository() persistence.OwnershipRepository {
	return &ownershipRepository{repositories: r}
}

func (r *repositories) ProjectRepository() persistence.ProjectRepository {
	return &projectRepository{repositories: r}
}

func (r *repositories) cloneGraph(graph models.Graph) (models.Graph, error) {
	cloned, err := clone.New(r.logger).Graph(graph)
	if err != nil {
		return models.Graph{}, fmt.Errorf("failed to copy graph: %w", err)
	}

	return cloned, nil
}
