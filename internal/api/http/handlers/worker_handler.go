package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/api/dto"
	"github.com/spec-kit/expense-whatsapp/internal/service"
	apperrors "github.com/spec-kit/expense-whatsapp/pkg/util"
)

// WorkerHandler exposes the internal processing trigger used when the intake
// and the worker run as separate deployments.
type WorkerHandler struct {
	conversations *service.ConversationService
	logger        *zap.Logger
}

// NewWorkerHandler returns a new handler instance.
func NewWorkerHandler(conversations *service.ConversationService, logger *zap.Logger) *WorkerHandler {
	return &WorkerHandler{conversations: conversations, logger: logger}
}

// Process runs the conversation pipeline for one stored message.
func (h *WorkerHandler) Process(c *fiber.Ctx) error {
	var req dto.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.WaMessageID == "" {
		return apperrors.NewValidationError("wa_message_id is required", nil)
	}

	if err := h.conversations.Process(c.UserContext(), req.WaMessageID); err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return err
		}
		h.logger.Error("processing failed",
			zap.String("wa_message_id", req.WaMessageID),
			zap.Error(err))
		return apperrors.NewInternalError(err)
	}

	return c.JSON(fiber.Map{"status": "processed", "wa_message_id": req.WaMessageID})
}
