// Package web provides the HTTP handlers of the marketplace API.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/operion-marketplace/pkg/persistence"
	"github.com/dukex/operion-marketplace/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	marketplace *services.Marketplace
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	marketplace *services.Marketplace,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		marketplace: marketplace,
		persistence: persistence,
		validator:   validator,
	}
}

// Register mounts the marketplace routes on router. Identity must already run
// on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/", h.FindAll)
	router.Post("/publish", h.Publish)
	router.Post("/import/:id", h.Import)
	router.Get("/user-workflows", h.UserWorkflows)
	router.Get("/preview-description/:workflowId", h.PreviewDescription)
	router.Delete("/:id", h.Delete)
}

func (h *APIHandlers) FindAll(c fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return unauthorized(c, "a valid identity is required")
	}

	entries, err := h.marketplace.FindAll(c.Context(), user)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, NewEntryResponse(entry))
	}

	return c.JSON(response)
}

func (h *APIHandlers) Publish(c fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return unauthorized(c, "a valid identity is required")
	}

	var req PublishRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	entry, err := h.marketplace.Publish(c.Context(), user, req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(NewEntryResponse(entry))
}

func (h *APIHandlers) Import(c fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return unauthorized(c, "a valid identity is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Catalog entry ID is required")
	}

	summary, err := h.marketplace.Import(c.Context(), user, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(summary)
}

func (h *APIHandlers) UserWorkflows(c fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return unauthorized(c, "a valid identity is required")
	}

	workflows, err := h.marketplace.UserWorkflows(c.Context(), user)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) PreviewDescription(c fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return unauthorized(c, "a valid identity is required")
	}

	workflowID := c.Params("workflowId")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	description, err := h.marketplace.PreviewDescription(c.Context(), user, workflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DescriptionResponse{Description: description})
}

func (h *APIHandlers) Delete(c fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return unauthorized(c, "a valid identity is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Catalog entry ID is required")
	}

	if err := h.marketplace.Delete(c.Context(), user, id); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DeleteResponse{Success: true})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Marketplace API is healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Marketplace API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repository = "unavailable"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}
