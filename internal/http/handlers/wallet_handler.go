package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/http/dto"
	"github.com/pactify/backend/internal/middleware"
	"github.com/pactify/backend/internal/services"
)

type WalletHandler struct {
	wallets *services.WalletService
	log     *zap.Logger
}

func NewWalletHandler(wallets *services.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, log: log}
}

// GenerateChallenge issues a linking challenge bound to the current user.
func (h *WalletHandler) GenerateChallenge(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	payload, err := h.wallets.IssueChallenge(c.Context(), &userID)
	if err != nil {
		h.log.Error("issue challenge failed", zap.Error(err))
		return respondErr(c, err)
	}
	return c.JSON(dto.NonceResponse{
		Payload:   payload.Payload,
		ExpiresAt: payload.ExpiresAt.Unix(),
	})
}

func (h *WalletHandler) LinkWallet(c *fiber.Ctx) error {
	var req dto.WalletAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	wallet, err := h.wallets.Link(c.Context(), middleware.GetUserID(c), chain.WalletProof{
		Address:   req.Address,
		Timestamp: req.Timestamp,
		Payload:   req.Payload,
		Signature: req.Signature,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: wallet})
}

func (h *WalletHandler) UnlinkWallet(c *fiber.Ctx) error {
	if err := h.wallets.Unlink(c.Context(), middleware.GetUserID(c)); err != nil {
		h.log.Error("unlink wallet failed", zap.Error(err))
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	wallet, err := h.wallets.ActiveWallet(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: wallet})
}
