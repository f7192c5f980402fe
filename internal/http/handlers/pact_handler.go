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

type PactHandler struct {
	pacts *services.PactService
	log   *zap.Logger
}

func NewPactHandler(pacts *services.PactService, log *zap.Logger) *PactHandler {
	return &PactHandler{pacts: pacts, log: log}
}

func (h *PactHandler) CreatePact(c *fiber.Ctx) error {
	var req dto.CreatePactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	partnerID, err := uuid.Parse(req.PartnerID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid partner_id"})
	}

	actorID := middleware.GetUserID(c)
	pact, partnerAddress, err := h.pacts.Propose(c.Context(), actorID, services.ProposePactInput{
		PartnerID:   partnerID,
		Title:       req.Title,
		Description: req.Description,
		StakeWei:    req.StakeWei,
	})
	if err != nil {
		return respondErr(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.ProposePactResponse{
		Pact:           pact,
		OnchainID:      pact.OnchainID,
		PartnerAddress: partnerAddress,
	})
}

func (h *PactHandler) GetPact(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid pact id"})
	}

	pact, err := h.pacts.Get(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pact})
}

func (h *PactHandler) ListPacts(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.PactFilter{
		UserID: userID,
		Limit:  20,
		Offset: 0,
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("role"); v == "creator" || v == "partner" {
		filter.Role = v
	}

	pacts, err := h.pacts.List(c.Context(), filter)
	if err != nil {
		h.log.Error("list pacts failed", zap.Error(err))
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pacts})
}

// transition runs one tx-hash-backed lifecycle step.
func (h *PactHandler) transition(c *fiber.Ctx, fn func(pactID, actorID uuid.UUID, txHash string) (any, error)) error {
	pactID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid pact id"})
	}

	var req dto.TxHashRequest
	_ = c.BodyParser(&req)

	pact, err := fn(pactID, middleware.GetUserID(c), req.TxHash)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pact})
}

func (h *PactHandler) AcceptPact(c *fiber.Ctx) error {
	return h.transition(c, func(pactID, actorID uuid.UUID, txHash string) (any, error) {
		return h.pacts.Accept(c.Context(), pactID, actorID, txHash)
	})
}

func (h *PactHandler) RejectPact(c *fiber.Ctx) error {
	return h.transition(c, func(pactID, actorID uuid.UUID, _ string) (any, error) {
		return h.pacts.Reject(c.Context(), pactID, actorID)
	})
}

func (h *PactHandler) DismissRejected(c *fiber.Ctx) error {
	return h.transition(c, func(pactID, actorID uuid.UUID, _ string) (any, error) {
		return h.pacts.DismissRejected(c.Context(), pactID, actorID)
	})
}

func (h *PactHandler) SignalCompletion(c *fiber.Ctx) error {
	return h.transition(c, func(pactID, actorID uuid.UUID, txHash string) (any, error) {
		return h.pacts.SignalCompletion(c.Context(), pactID, actorID, txHash)
	})
}

func (h *PactHandler) ConfirmCompletion(c *fiber.Ctx) error {
	return h.transition(c, func(pactID, actorID uuid.UUID, txHash string) (any, error) {
		return h.pacts.ConfirmCompletion(c.Context(), pactID, actorID, txHash)
	})
}

func (h *PactHandler) RequestRevision(c *fiber.Ctx) error {
	return h.transition(c, func(pactID, actorID uuid.UUID, txHash string) (any, error) {
		return h.pacts.RequestRevision(c.Context(), pactID, actorID, txHash)
	})
}

func (h *PactHandler) UploadSubmission(c *fiber.Ctx) error {
	pactID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid pact id"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "file is required"})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "unreadable file"})
	}
	defer f.Close()

	pact, err := h.pacts.SubmitWork(c.Context(), pactID, middleware.GetUserID(c), fileHeader.Filename, f)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pact})
}

func (h *PactHandler) DownloadSubmission(c *fiber.Ctx) error {
	pactID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid pact id"})
	}

	file, fileName, contentType, err := h.pacts.DownloadSubmission(c.Context(), pactID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	defer file.Close()

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+fileName+`"`)
	return c.SendStream(file)
}

func (h *PactHandler) Reconcile(c *fiber.Ctx) error {
	pactID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid pact id"})
	}

	// Membership gate; reconciliation itself is actor-agnostic.
	if _, err := h.pacts.Get(c.Context(), pactID, middleware.GetUserID(c)); err != nil {
		return respondErr(c, err)
	}

	repaired, err := h.pacts.Reconcile(c.Context(), pactID)
	if err != nil {
		h.log.Error("reconcile failed", zap.Error(err))
		return respondErr(c, err)
	}
	return c.JSON(dto.ReconcileResponse{Repaired: repaired})
}
