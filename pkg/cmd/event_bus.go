package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/operion-marketplace/pkg/channels/gochannel"
	"github.com/dukex/operion-marketplace/pkg/channels/kafka"
	"github.com/dukex/operion-marketplace/pkg/eventbus"
)

// NewEventBus creates the bus marketplace events are published on. "gochannel"
// keeps events in process; "kafka" needs at least one broker.
func NewEventBus(provider string, brokers []string, logger *slog.Logger) (eventbus.EventBus, error) {
	adapter := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		pubSub := gochannel.CreateChannel(adapter)

		return eventbus.NewWatermillEventBus(pubSub, pubSub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(adapter, brokers, "marketplace")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
