package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/api/dto"
	"github.com/spec-kit/expense-whatsapp/internal/extraction"
	apperrors "github.com/spec-kit/expense-whatsapp/pkg/util"
)

// ScanHandler exposes one-shot receipt extraction for images already stored
// outside the WhatsApp flow.
type ScanHandler struct {
	extractor extraction.Extractor
	logger    *zap.Logger
}

// NewScanHandler returns a new handler instance.
func NewScanHandler(extractor extraction.Extractor, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{extractor: extractor, logger: logger}
}

// Scan fetches the image at the given URL and returns the extracted fields.
// Bad input (missing URL, unreachable or empty image) answers 400; model
// failures answer 500.
func (h *ScanHandler) Scan(c *fiber.Ctx) error {
	var req dto.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.ReceiptURL == "" {
		return apperrors.NewValidationError("receiptUrl is required", nil)
	}

	receipt, err := h.extractor.FromURL(c.UserContext(), req.ReceiptURL)
	if err != nil {
		switch {
		case errors.Is(err, extraction.ErrMediaFetch), errors.Is(err, extraction.ErrEmptyImage):
			return apperrors.NewValidationError("could not fetch a usable image", map[string]any{
				"receiptUrl": req.ReceiptURL,
			})
		default:
			h.logger.Error("scan extraction failed",
				zap.String("receipt_url", req.ReceiptURL),
				zap.Error(err))
			return apperrors.NewInternalError(err)
		}
	}

	return c.JSON(receipt)
}
