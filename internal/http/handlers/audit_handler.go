package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/http/dto"
	"github.com/pactify/backend/internal/middleware"
	"github.com/pactify/backend/internal/repositories"
	"github.com/pactify/backend/internal/services"
)

type AuditHandler struct {
	audit *repositories.AuditRepo
	pacts *services.PactService
	log   *zap.Logger
}

func NewAuditHandler(audit *repositories.AuditRepo, pacts *services.PactService, log *zap.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, pacts: pacts, log: log}
}

// PactEvents returns the transition history of a pact to its members.
func (h *AuditHandler) PactEvents(c *fiber.Ctx) error {
	pactID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid pact id"})
	}

	// Visibility gate.
	if _, err := h.pacts.Get(c.Context(), pactID, middleware.GetUserID(c)); err != nil {
		return respondErr(c, err)
	}

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	entries, err := h.audit.GetByEntity(c.Context(), "pact", pactID, limit, offset)
	if err != nil {
		h.log.Error("audit query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
