package web

import (
	"time"

	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/services"
)

// PublishRequest is the body of POST /marketplace/publish.
type PublishRequest struct {
	WorkflowID         string `json:"workflowId"         validate:"required"`
	Name               string `json:"name"               validate:"required,max=128"`
	Description        string `json:"description"        validate:"max=2048"`
	Category           string `json:"category"           validate:"required,max=64"`
	IsPublic           *bool  `json:"isPublic,omitempty"`
	UseAutoDescription bool   `json:"useAutoDescription"`
}

func (r PublishRequest) toService() services.PublishRequest {
	return services.PublishRequest{
		WorkflowID:         r.WorkflowID,
		Name:               r.Name,
		Description:        r.Description,
		Category:           r.Category,
		IsPublic:           r.IsPublic,
		UseAutoDescription: r.UseAutoDescription,
	}
}

// EntryResponse is a catalog entry as listed by the marketplace. The graph is
// only handed out through an import.
type EntryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Downloads   int64     `json:"downloads"`
	IsPublic    bool      `json:"isPublic"`
	AuthorName  string    `json:"authorName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewEntryResponse builds the listed view of a catalog entry.
func NewEntryResponse(entry *models.CatalogEntry) EntryResponse {
	return EntryResponse{
		ID:          entry.ID,
		Name:        entry.Name,
		Description: entry.Description,
		Category:    entry.Category,
		Downloads:   entry.Downloads,
		IsPublic:    entry.IsPublic,
		AuthorName:  entry.AuthorName,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}

type DescriptionResponse struct {
	Description string `json:"description"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}
