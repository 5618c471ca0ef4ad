// Package events defines the catalog lifecycle notifications emitted by the marketplace.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every marketplace event.
const Topic = "marketplace.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CatalogEntryPublishedEvent EventType = "marketplace.entry.published"
	CatalogEntryImportedEvent  EventType = "marketplace.entry.imported"
	CatalogEntryDeletedEvent   EventType = "marketplace.entry.deleted"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
}

func NewBaseEvent(eventType EventType, entryID, userID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		EntryID:   entryID,
		UserID:    userID,
	}
}

// CatalogEntryPublished is emitted after a publish commits, for both new and
// updated entries.
type CatalogEntryPublished struct {
	BaseEvent

	OriginWorkflowID string `json:"origin_workflow_id"`
	Name             string `json:"name"`
	Category         string `json:"category"`
	IsPublic         bool   `json:"is_public"`
}

func (e CatalogEntryPublished) GetType() EventType {
	return CatalogEntryPublishedEvent
}

// CatalogEntryImported is emitted after an import commits.
type CatalogEntryImported struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	ProjectID  string `json:"project_id"`
	Counted    bool   `json:"counted"` // False for self-imports, which leave downloads unchanged
}

func (e CatalogEntryImported) GetType() EventType {
	return CatalogEntryImportedEvent
}

// CatalogEntryDeleted is emitted after an entry is removed.
type CatalogEntryDeleted struct {
	BaseEvent

	OriginWorkflowID string `json:"origin_workflow_id,omitempty"`
}

func (e CatalogEntryDeleted) GetType() EventType {
	return CatalogEntryDeletedEvent
}
