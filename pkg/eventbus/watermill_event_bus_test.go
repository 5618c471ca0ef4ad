package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/operion-marketplace/pkg/channels/gochannel"
	"github.com/dukex/operion-marketplace/pkg/eventbus"
	"github.com/dukex/operion-marketplace/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.CreateTestChannel(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pubSub, pubSub)

	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *events.CatalogEntryImported, 1)

	require.NoError(t, bus.Handle(events.CatalogEntryImportedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.CatalogEntryImported)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "entry-1", events.CatalogEntryImported{
		BaseEvent:  events.NewBaseEvent(events.CatalogEntryImportedEvent, "entry-1", "user-2"),
		WorkflowID: "wf-1",
		Counted:    true,
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "entry-1", event.EntryID)
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.True(t, event.Counted)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledEventsAreAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.CreateTestChannel(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pubSub, pubSub)

	t.Cleanup(func() { _ = bus.Close() })

	require.NoError(t, bus.Subscribe(ctx))

	done := make(chan error, 1)

	go func() {
		done <- bus.Publish(ctx, "entry-1", events.CatalogEntryDeleted{
			BaseEvent: events.NewBaseEvent(events.CatalogEntryDeletedEvent, "entry-1", "admin"),
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on an unhandled event")
	}

	assert.NotEmpty(t, bus.GenerateID())
}
