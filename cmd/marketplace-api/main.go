package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dukex/operion-marketplace/pkg/cmd"
	"github.com/dukex/operion-marketplace/pkg/describe"
	"github.com/dukex/operion-marketplace/pkg/log"
	"github.com/dukex/operion-marketplace/pkg/otelhelper"
	"github.com/dukex/operion-marketplace/pkg/services"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort = 9091
	serviceName = "marketplace-api"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Publish workflows to the marketplace and import them",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://... or memory://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers, required with --event-bus=kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Usage:   "HS256 secret for bearer tokens; without it X-User-* headers are trusted",
				Sources: cli.EnvVars("JWT_SECRET"),
			},
			&cli.BoolFlag{
				Name:    "strict-access",
				Usage:   "Require update access, not only read access, to publish a workflow",
				Sources: cli.EnvVars("STRICT_ACCESS"),
			},
			&cli.BoolFlag{
				Name:    "audit-events",
				Usage:   "Log every catalog event consumed from the event bus",
				Value:   true,
				Sources: cli.EnvVars("AUDIT_EVENTS_ENABLED"),
			},
			&cli.BoolFlag{
				Name:    "description-generator",
				Usage:   "Generate descriptions with a Claude model on AWS Bedrock",
				Sources: cli.EnvVars("DESCRIPTION_GENERATOR_ENABLED", "ANTHROPIC_ENABLED"),
			},
			&cli.DurationFlag{
				Name:    "description-timeout",
				Usage:   "Upper bound for one description generation",
				Value:   describe.DefaultTimeout,
				Sources: cli.EnvVars("DESCRIPTION_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "description-max-words",
				Usage:   "Maximum number of words kept from a generated description",
				Value:   describe.DefaultMaxWords,
				Sources: cli.EnvVars("DESCRIPTION_MAX_WORDS"),
			},
			&cli.DurationFlag{
				Name:    "description-cache-ttl",
				Usage:   "How long generated descriptions are cached",
				Value:   describe.DefaultCacheExpiration,
				Sources: cli.EnvVars("DESCRIPTION_CACHE_TTL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the shared description cache; empty caches in memory",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region of the Bedrock runtime",
				Sources: cli.EnvVars("AWS_REGION"),
			},
			&cli.StringFlag{
				Name:    "aws-access-key-id",
				Usage:   "AWS access key; the default credential chain is used when empty",
				Sources: cli.EnvVars("AWS_ACCESS_KEY_ID"),
			},
			&cli.StringFlag{
				Name:    "aws-secret-access-key",
				Usage:   "AWS secret key",
				Sources: cli.EnvVars("AWS_SECRET_ACCESS_KEY"),
			},
			&cli.StringFlag{
				Name:    "bedrock-model",
				Usage:   "Bedrock model ID",
				Value:   describe.DefaultBedrockModel,
				Sources: cli.EnvVars("AWS_BEDROCK_MODEL"),
			},
			&cli.StringFlag{
				Name:    "bedrock-endpoint",
				Usage:   "Custom Bedrock endpoint, for local emulators",
				Sources: cli.EnvVars("AWS_BEDROCK_ENDPOINT"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP (configured by OTEL_EXPORTER_OTLP_*)",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing marketplace API")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	if command.Bool("audit-events") {
		err := services.NewAuditor(eventBus, log.WithModule("audit")).Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start event audit: %w", err)
		}
	}

	describer, closeCache, err := cmd.NewDescriber(ctx, logger, cmd.DescriberConfig{
		Enabled: command.Bool("description-generator"),
		Bedrock: describe.BedrockConfig{
			Region:    command.String("aws-region"),
			AccessKey: command.String("aws-access-key-id"),
			SecretKey: command.String("aws-secret-access-key"),
			Model:     command.String("bedrock-model"),
			Endpoint:  command.String("bedrock-endpoint"),
		},
		Timeout:  command.Duration("description-timeout"),
		MaxWords: command.Int("description-max-words"),
		RedisURL: command.String("redis-url"),
		CacheTTL: command.Duration("description-cache-ttl"),
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := closeCache(); err != nil {
			logger.ErrorContext(ctx, "Failed to close description cache", "error", err)
		}
	}()

	opts := []services.Option{services.WithStrictAccess(command.Bool("strict-access"))}

	if command.Bool("tracing") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			if err := shutdown(shutdownCtx); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()

		opts = append(opts, services.WithTracer(tracer))
	}

	marketplace := services.NewMarketplace(persistence, describer, eventBus, logger, opts...)

	api := NewAPI(logger, persistence, marketplace, []byte(command.String("jwt-secret")))

	return api.Start(command.Int("port"))
}
