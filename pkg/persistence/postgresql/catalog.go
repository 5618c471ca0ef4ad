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
	"github.com/google/uuid"
)

const catalogColumns = `
	id
  , name
  , description
  , category
  , author_id
  , author_name
  , graph
  , downloads
  , is_public
  , origin_workflow_id
  , created_by
  , created_at
  , updated_at
`

// CatalogRepository handles catalog entry database operations.
type CatalogRepository struct {
	db     dbtx
	logger *slog.Logger
}

func (r *CatalogRepository) scanEntry(row scanner) (*models.CatalogEntry, error) {
	var (
		entry     models.CatalogEntry
		graphJSON []byte
		origin    sql.NullString
	)

	err := row.Scan(
		&entry.ID,
		&entry.Name,
		&entry.Description,
		&entry.Category,
		&entry.AuthorID,
		&entry.AuthorName,
		&graphJSON,
		&entry.Downloads,
		&entry.IsPublic,
		&origin,
		&entry.CreatedBy,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(graphJSON, &entry.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog graph: %w", err)
	}

	if origin.Valid {
		entry.OriginWorkflowID = &origin.String
	}

	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()

	return &entry, nil
}

func (r *CatalogRepository) getOne(ctx context.Context, query string, args ...any) (*models.CatalogEntry, error) {
	entry, err := r.scanEntry(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
	}

	return entry, nil
}

func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*models.CatalogEntry, error) {
	return r.getOne(ctx, `SELECT `+catalogColumns+` FROM catalog_entries WHERE id = $1`, id)
}

func (r *CatalogRepository) GetByOrigin(ctx context.Context, originWorkflowID, authorID string) (*models.CatalogEntry, error) {
	return r.getOne(ctx,
		`SELECT `+catalogColumns+` FROM catalog_entries WHERE origin_workflow_id = $1 AND author_id = $2`,
		originWorkflowID, authorID,
	)
}

func (r *CatalogRepository) ListVisible(ctx context.Context, userID string) ([]*models.CatalogEntry, error) {
	query := `
		SELECT ` + catalogColumns + `
		FROM catalog_entries
		WHERE is_public OR author_id = $1
		ORDER BY updated_at DESC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog entries: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	entries := make([]*models.CatalogEntry, 0)

	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating catalog entries: %w", err)
	}

	return entries, nil
}

// Upsert writes the entry in a single statement keyed by (origin, author). A nil
// visibility keeps the stored value on update and defaults to public on insert.
func (r *CatalogRepository) Upsert(ctx context.Context, upsert *models.CatalogUpsert) (*models.CatalogEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate catalog entry ID: %w", err)
	}

	graphJSON, err := json.Marshal(upsert.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog graph: %w", err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO catalog_entries (
			id, name, description, category, author_id, author_name, graph,
			downloads, is_public, origin_workflow_id, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, COALESCE($8::boolean, true), $9, $5, $10, $10)
		ON CONFLICT (origin_workflow_id, author_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			author_name = EXCLUDED.author_name,
			graph = EXCLUDED.graph,
			is_public = COALESCE($8::boolean, catalog_entries.is_public),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + catalogColumns

	entry, err := r.scanEntry(r.db.QueryRowContext(ctx, query,
		id.String(),
		upsert.Name,
		upsert.Description,
		upsert.Category,
		upsert.AuthorID,
		upsert.AuthorName,
		graphJSON,
		upsert.IsPublic,
		upsert.OriginWorkflowID,
		now,
	))
	if err != nil {
		return nil, persistence.NewCatalogError("Upsert", upsert.OriginWorkflowID, err)
	}

	return entry, nil
}

func (r *CatalogRepository) IncrementDownloads(ctx context.Context, id string, delta int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE catalog_entries SET downloads = downloads + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}

	return expectOneRow(result, persistence.NewCatalogError("IncrementDownloads", id, persistence.ErrCatalogEntryNotFound))
}

func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM catalog_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}

	return expectOneRow(result, persistence.NewCatalogError("Delete", id, persistence.ErrCatalogEntryNotFound))
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}
