package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/persistence"
	"github.com/google/uuid"
)

type catalogRepository struct {
	*repositories
}

func (r *catalogRepository) copyOut(entry models.CatalogEntry) (*models.CatalogEntry, error) {
	graph, err := r.cloneGraph(entry.Graph)
	if err != nil {
		return nil, err
	}

	entry.Graph = graph

	if entry.OriginWorkflowID != nil {
		origin := *entry.OriginWorkflowID
		entry.OriginWorkflowID = &origin
	}

	return &entry, nil
}

func (r *catalogRepository) GetByID(ctx context.Context, id string) (*models.CatalogEntry, error) {
	var found *models.CatalogEntry

	err := r.run(ctx, false, func(s *state) error {
		entry, ok := s.entries[id]
		if !ok {
			return nil
		}

		var err error

		found, err = r.copyOut(entry)

		return err
	})

	return found, err
}

func (r *catalogRepository) GetByOrigin(ctx context.Context, originWorkflowID, authorID string) (*models.CatalogEntry, error) {
	var found *models.CatalogEntry

	err := r.run(ctx, false, func(s *state) error {
		entry, ok := findByOrigin(s, originWorkflowID, authorID)
		if !ok {
			return nil
		}

		var err error

		found, err = r.copyOut(entry)

		return err
	})

	return found, err
}

func findByOrigin(s *state, originWorkflowID, authorID string) (models.CatalogEntry, bool) {
	for _, entry := range s.entries {
		if entry.OriginWorkflowID != nil && *entry.OriginWorkflowID == originWorkflowID && entry.AuthorID == authorID {
			return entry, true
		}
	}

	return models.CatalogEntry{}, false
}

func (r *catalogRepository) ListVisible(ctx context.Context, userID string) ([]*models.CatalogEntry, error) {
	entries := make([]*models.CatalogEntry, 0)

	err := r.run(ctx, false, func(s *state) error {
		for _, entry := range s.entries {
			if !entry.IsPublic && entry.AuthorID != userID {
				continue
			}

			copied, err := r.copyOut(entry)
			if err != nil {
				return err
			}

			entries = append(entries, copied)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b *models.CatalogEntry) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return entries, nil
}

func (r *catalogRepository) Upsert(ctx context.Context, upsert *models.CatalogUpsert) (*models.CatalogEntry, error) {
	graph, err := r.cloneGraph(upsert.Graph)
	if err != nil {
		return nil, err
	}

	var saved *models.CatalogEntry

	err = r.run(ctx, true, func(s *state) error {
		now := r.now()

		entry, exists := findByOrigin(s, upsert.OriginWorkflowID, upsert.AuthorID)
		if exists {
			entry.Name = upsert.Name
			entry.Description = upsert.Description
			entry.Category = upsert.Category
			entry.AuthorName = upsert.AuthorName
			entry.Graph = graph
			entry.UpdatedAt = now

			if upsert.IsPublic != nil {
				entry.IsPublic = *upsert.IsPublic
			}
		} else {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate catalog entry ID: %w", err)
			}

			origin := upsert.OriginWorkflowID
			entry = models.CatalogEntry{
				Graph:            graph,
				ID:               id.String(),
				Name:             upsert.Name,
				Description:      upsert.Description,
				Category:         upsert.Category,
				AuthorID:         upsert.AuthorID,
				AuthorName:       upsert.AuthorName,
				IsPublic:         true,
				OriginWorkflowID: &origin,
				CreatedBy:        upsert.AuthorID,
				CreatedAt:        now,
				UpdatedAt:        now,
			}

			if upsert.IsPublic != nil {
				entry.IsPublic = *upsert.IsPublic
			}
		}

		s.entries[entry.ID] = entry

		saved, err = r.copyOut(entry)

		return err
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

func (r *catalogRepository) IncrementDownloads(ctx context.Context, id string, delta int64) error {
	return r.run(ctx, true, func(s *state) error {
		entry, ok := s.entries[id]
		if !ok {
			return persistence.NewCatalogError("IncrementDownloads", id, persistence.ErrCatalogEntryNotFound)
		}

		entry.Downloads += delta
		s.entries[id] = entry

		return nil
	})
}

func (r *catalogRepository) Delete(ctx context.Context, id string) error {
	return r.run(ctx, true, func(s *state) error {
		if _, ok := s.entries[id]; !ok {
			return persistence.NewCatalogError("Delete", id, persistence.ErrCatalogEntryNotFound)
		}

		delete(s.entries, id)

		return nil
	})
}
