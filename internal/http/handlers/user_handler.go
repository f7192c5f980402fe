package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/http/dto"
	"github.com/pactify/backend/internal/middleware"
	"github.com/pactify/backend/internal/repositories"
	"github.com/pactify/backend/internal/services"
)

type UserHandler struct {
	users  *repositories.UserRepo
	scores *services.ScoreService
	log    *zap.Logger
}

func NewUserHandler(users *repositories.UserRepo, scores *services.ScoreService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, scores: scores, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID := middleware.GetUserID(c)
	if err := h.users.UpdateProfile(c.Context(), userID, req.Handle, req.DisplayName); err != nil {
		h.log.Error("update profile failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) Ping(c *fiber.Ctx) error {
	if err := h.users.Touch(c.Context(), middleware.GetUserID(c)); err != nil {
		h.log.Debug("touch failed", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GetScore exposes any user's reliability score; the breakdown is public
// information between potential pact partners.
func (h *UserHandler) GetScore(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}

	breakdown, err := h.scores.Score(c.Context(), id)
	if err != nil {
		h.log.Error("score failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: breakdown})
}
