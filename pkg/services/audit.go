package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/operion-marketplace/pkg/eventbus"
	"github.com/dukex/operion-marketplace/pkg/events"
)

// Auditor consumes catalog lifecycle events and writes one structured log
// record per event.
type Auditor struct {
	subscriber eventbus.EventSubscriber
	logger     *slog.Logger
}

func NewAuditor(subscriber eventbus.EventSubscriber, logger *slog.Logger) *Auditor {
	return &Auditor{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Start registers the handlers and begins consuming. Consumption stops when ctx
// is cancelled or the bus is closed.
func (a *Auditor) Start(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.CatalogEntryPublishedEvent: a.handlePublished,
		events.CatalogEntryImportedEvent:  a.handleImported,
		events.CatalogEntryDeletedEvent:   a.handleDeleted,
	}

	for eventType, handler := range handlers {
		if err := a.subscriber.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register audit handler for %s: %w", eventType, err)
		}
	}

	return a.subscriber.Subscribe(ctx)
}

func (a *Auditor) record(ctx context.Context, base events.BaseEvent, attrs ...any) {
	a.logger.InfoContext(ctx, "Catalog event",
		append([]any{
			"event_id", base.ID,
			"event_type", base.Type,
			"entry_id", base.EntryID,
			"user_id", base.UserID,
			"at", base.Timestamp,
		}, attrs...)...,
	)
}

func (a *Auditor) handlePublished(ctx context.Context, event any) error {
	published, ok := event.(*events.CatalogEntryPublished)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	a.record(ctx, published.BaseEvent,
		"origin_workflow_id", published.OriginWorkflowID,
		"category", published.Category,
		"is_public", published.IsPublic,
	)

	return nil
}

func (a *Auditor) handleImported(ctx context.Context, event any) error {
	imported, ok := event.(*events.CatalogEntryImported)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	a.record(ctx, imported.BaseEvent,
		"workflow_id", imported.WorkflowID,
		"project_id", imported.ProjectID,
		"counted", imported.Counted,
	)

	return nil
}

func (a *Auditor) handleDeleted(ctx context.Context, event any) error {
	deleted, ok := event.(*events.CatalogEntryDeleted)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	a.record(ctx, deleted.BaseEvent, "origin_workflow_id", deleted.OriginWorkflowID)

	return nil
}
