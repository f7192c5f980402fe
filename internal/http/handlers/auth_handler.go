package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/auth"
	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/config"
	"github.com/pactify/backend/internal/http/dto"
	"github.com/pactify/backend/internal/services"
)

type AuthHandler struct {
	cfg     *config.Config
	wallets *services.WalletService
	log     *zap.Logger
}

func NewAuthHandler(cfg *config.Config, wallets *services.WalletService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, wallets: wallets, log: log}
}

// Nonce issues a login challenge for the wallet to sign.
func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	payload, err := h.wallets.IssueChallenge(c.Context(), nil)
	if err != nil {
		h.log.Error("issue challenge failed", zap.Error(err))
		return respondErr(c, err)
	}
	return c.JSON(dto.NonceResponse{
		Payload:   payload.Payload,
		ExpiresAt: payload.ExpiresAt.Unix(),
	})
}

// WalletAuth verifies a signed challenge and returns a session token.
// The account is created on first login from a new address.
func (h *AuthHandler) WalletAuth(c *fiber.Ctx) error {
	var req dto.WalletAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Address == "" || req.Payload == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address, payload and signature are required"})
	}

	user, wallet, err := h.wallets.Authenticate(c.Context(), chain.WalletProof{
		Address:   req.Address,
		Timestamp: req.Timestamp,
		Payload:   req.Payload,
		Signature: req.Signature,
	})
	if err != nil {
		return respondErr(c, err)
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, wallet.Address, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("jwt generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, User: user})
}
