// Package postgresql provides the PostgreSQL persistence implementation for the
// marketplace.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/operion-marketplace/pkg/persistence"
	"github.com/dukex/operion-marketplace/pkg/persistence/sqlbase"
	"github.com/lib/pq"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
	*repositories
}

// NewPersistence connects to databaseURL and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgres_persistence")

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		repositories: newRepositories(database, database, logger),
	}, nil
}

// Transact runs fn inside a database transaction.
func (p *Persistence) Transact(
	ctx context.Context,
	fn func(ctx context.Context, repos persistence.Repositories) error,
) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		// No-op once committed.
		_ = tx.Rollback()
	}()

	err = fn(ctx, newRepositories(tx, nil, p.logger))
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

type repositories struct {
	db dbtx
	// conn is set outside a transaction so multi-statement writes can open one.
	conn   *sql.DB
	logger *slog.Logger
}

func newRepositories(db dbtx, conn *sql.DB, logger *slog.Logger) *repositories {
	return &repositories{db: db, conn: conn, logger: logger}
}

func (r *repositories) CatalogRepository() persistence.CatalogRepository {
	return &CatalogRepository{db: r.db, logger: r.logger}
}

func (r *repositories) WorkflowRepository() persistence.WorkflowRepository {
	return &WorkflowRepository{db: r.db, logger: r.logger}
}

func (r *repositories) OwnershipRepository() persistence.OwnershipRepository {
	return &OwnershipRepository{db: r.db, logger: r.logger}
}

func (r *repositories) ProjectRepository() persistence.ProjectRepository {
	return &ProjectRepository{db: r.db, conn: r.conn, logger: r.logger}
}

type scanner interface {
	Scan(dest ...any) error
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}

	return ""
}
