// Package models defines the core domain models for the workflow marketplace.
package models

import "time"

// Graph is the structural part of a workflow: what gets snapshotted on publish and
// copied on import.
type Graph struct {
	Nodes       []*Node        `json:"nodes"`
	Connections Connections    `json:"connections"`
	Settings    map[string]any `json:"settings,omitempty"`
	StaticData  map[string]any `json:"staticData,omitempty"`
}

// Workflow is a user-owned automation graph.
type Workflow struct {
	Graph

	ID          string    `json:"id"`
	Name        string    `json:"name"        validate:"required,min=1,max=128"`
	Active      bool      `json:"active"`
	VersionID   string    `json:"versionId"`
	IsPublished bool      `json:"isPublished"` // Set once the workflow has a catalog entry
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WorkflowSummary is the minimal view of a workflow returned to callers.
type WorkflowSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the minimal view of the workflow.
func (w *Workflow) Summary() WorkflowSummary {
	return WorkflowSummary{
		ID:        w.ID,
		Name:      w.Name,
		Active:    w.Active,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

// WorkflowUpdate lists the fields that may be changed without rewriting the graph.
// Nil fields are left untouched.
type WorkflowUpdate struct {
	Name        *string
	Active      *bool
	IsPublished *bool
}
