// Package main provides the marketplace API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/operion-marketplace/pkg/persistence"
	"github.com/dukex/operion-marketplace/pkg/services"
	"github.com/dukex/operion-marketplace/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	marketplace *services.Marketplace
	validate    *validator.Validate
	jwtSecret   []byte
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	marketplace *services.Marketplace,
	jwtSecret []byte,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		marketplace: marketplace,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		jwtSecret:   jwtSecret,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.marketplace, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Marketplace API")
	})

	app.Get("/health", handlers.HealthCheck)

	m := app.Group("/marketplace")
	m.Use(web.Identity(a.jwtSecret, a.validate, a.logger))
	handlers.Register(m)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
