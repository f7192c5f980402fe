package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/http/dto"
	"github.com/pactify/backend/internal/middleware"
	"github.com/pactify/backend/internal/models"
	"github.com/pactify/backend/internal/services"
)

type GoalHandler struct {
	goals *services.GoalService
	log   *zap.Logger
}

func NewGoalHandler(goals *services.GoalService, log *zap.Logger) *GoalHandler {
	return &GoalHandler{goals: goals, log: log}
}

func (h *GoalHandler) CreateGoal(c *fiber.Ctx) error {
	var req dto.CreateGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	goal, err := h.goals.Create(c.Context(), middleware.GetUserID(c), services.CreateGoalInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: goal})
}

func (h *GoalHandler) ListGoals(c *fiber.Ctx) error {
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

	goals, err := h.goals.List(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		h.log.Error("list goals failed", zap.Error(err))
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: goals})
}

func (h *GoalHandler) GetGoal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid goal id"})
	}

	goal, err := h.goals.Get(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: goal})
}

func (h *GoalHandler) StakeGoal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid goal id"})
	}

	var req dto.StakeGoalRequest
	if err := c.BodyParser(&req); err != nil || req.TxHash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "tx_hash is required"})
	}

	goal, err := h.goals.Stake(c.Context(), id, middleware.GetUserID(c), req.StakeWei, req.TxHash, req.ForfeitAddress)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: goal})
}

func (h *GoalHandler) CompleteGoal(c *fiber.Ctx) error {
	return h.resolve(c, h.goals.Complete)
}

func (h *GoalHandler) FailGoal(c *fiber.Ctx) error {
	return h.resolve(c, h.goals.Fail)
}

func (h *GoalHandler) resolve(c *fiber.Ctx, fn func(ctx context.Context, goalID, ownerID uuid.UUID) (*models.Goal, error)) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid goal id"})
	}

	goal, err := fn(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: goal})
}
