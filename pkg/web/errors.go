package web

import (
	"github.com/dukex/operion-marketplace/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// internalErrorDetail is the only detail a 500 response ever carries.
const internalErrorDetail = "the operation could not be completed, please try again"

func problem(c fiber.Ctx, status int, problemType, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func unauthorized(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusUnauthorized, "unauthenticated", detail)
}

func internalError(c fiber.Ctx) error {
	return problem(c, fiber.StatusInternalServerError, "internal_error", internalErrorDetail)
}

// handleServiceError maps service errors to problem documents. Storage failures
// and anything unexpected share one generic 500.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, serviceMessage(err))

	case services.IsAuthorizationError(err):
		return problem(c, fiber.StatusForbidden, "forbidden", services.ErrForbidden.Error())

	case services.IsNotFoundError(err):
		return problem(c, fiber.StatusNotFound, "not_found", serviceMessage(err))

	default:
		return internalError(c)
	}
}

func serviceMessage(err error) string {
	if serviceErr, ok := err.(*services.ServiceError); ok && serviceErr.Message != "" {
		return serviceErr.Message
	}

	return err.Error()
}
