package models

import "time"

// CatalogEntry is a published, shareable snapshot of a workflow graph.
type CatalogEntry struct {
	Graph

	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	AuthorID         string    `json:"authorId"`
	AuthorName       string    `json:"authorName"`
	Downloads        int64     `json:"downloads"`
	IsPublic         bool      `json:"isPublic"`
	OriginWorkflowID *string   `json:"originWorkflowId,omitempty"`
	CreatedBy        string    `json:"createdBy"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// VisibleTo reports whether the user may see and import the entry.
func (e *CatalogEntry) VisibleTo(user *User) bool {
	return e.IsPublic || e.AuthorID == user.ID
}

// ManageableBy reports whether the user may delete the entry.
func (e *CatalogEntry) ManageableBy(user *User) bool {
	return user.IsAdmin() || e.AuthorID == user.ID
}

// CatalogUpsert carries the fields written by a publish. IsPublic is nil when the
// caller did not choose a visibility: existing entries keep theirs, new ones are public.
type CatalogUpsert struct {
	Graph

	Name             string
	Description      string
	Category         string
	AuthorID         string
	AuthorName       string
	IsPublic         *bool
	OriginWorkflowID string
}
