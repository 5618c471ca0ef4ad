package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/operion-marketplace/pkg/describe"
	"github.com/redis/go-redis/v9"
)

// DescriberConfig selects the description generator and its cache.
type DescriberConfig struct {
	Enabled  bool
	Bedrock  describe.BedrockConfig
	Timeout  time.Duration
	MaxWords int

	// RedisURL selects a Redis cache shared between instances. Empty keeps
	// descriptions in process memory.
	RedisURL string
	CacheTTL time.Duration
}

// NewDescriber builds the describer. A disabled or unconfigured generator is not
// an error: descriptions then come from the heuristic. The returned close func
// releases the Redis client, if any.
func NewDescriber(ctx context.Context, logger *slog.Logger, config DescriberConfig) (*describe.Describer, func() error, error) {
	noop := func() error { return nil }

	opts := []describe.Option{
		describe.WithTimeout(config.Timeout),
		describe.WithMaxWords(config.MaxWords),
	}

	if !config.Enabled {
		logger.InfoContext(ctx, "Description generator disabled, using heuristic descriptions")

		return describe.NewDescriber(logger, opts...), noop, nil
	}

	config.Bedrock.MaxWords = config.MaxWords

	generator, err := describe.NewBedrockGenerator(logger, config.Bedrock)
	if err != nil {
		if !errors.Is(err, describe.ErrUnavailable) {
			return nil, noop, fmt.Errorf("failed to create description generator: %w", err)
		}

		logger.WarnContext(ctx, "Description generator is not configured, using heuristic descriptions", "error", err)

		return describe.NewDescriber(logger, opts...), noop, nil
	}

	opts = append(opts, describe.WithGenerator(generator))

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = describe.DefaultCacheExpiration
	}

	closer := noop

	if config.RedisURL != "" {
		options, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to parse redis url: %w", err)
		}

		client := redis.NewClient(options)
		closer = client.Close

		opts = append(opts, describe.WithCache(describe.NewRedisCache(logger, client, ttl)))
	} else {
		opts = append(opts, describe.WithCache(describe.NewMemoryCache(ttl, describe.DefaultCacheCleanupInterval)))
	}

	return describe.NewDescriber(logger, opts...), closer, nil
}
