package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/http/dto"
	"github.com/pactify/backend/internal/services"
)

// respondErr maps the service error taxonomy onto HTTP statuses. Unknown
// errors are masked as 500 so internals never leak to clients.
func respondErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrDenied):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrPrecondition):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, chain.ErrConfirmTimeout):
		// Retryable: the caller keeps the tx hash and retries the same call.
		return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, chain.ErrTxFailed), errors.Is(err, chain.ErrEventMismatch):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
}
