package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/api/dto"
	"github.com/spec-kit/expense-whatsapp/internal/auth"
	"github.com/spec-kit/expense-whatsapp/internal/config"
	"github.com/spec-kit/expense-whatsapp/internal/domain"
	"github.com/spec-kit/expense-whatsapp/internal/repository"
	"github.com/spec-kit/expense-whatsapp/internal/worker"
)

// WebhookHandler is the WhatsApp Cloud API intake: the GET verification
// handshake and the POST delivery endpoint.
type WebhookHandler struct {
	cfg        config.WhatsAppConfig
	messages   repository.MessageRepository
	dispatcher worker.Dispatcher
	logger     *zap.Logger
}

// NewWebhookHandler returns a new handler instance.
func NewWebhookHandler(cfg config.WhatsAppConfig, messages repository.MessageRepository, dispatcher worker.Dispatcher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, messages: messages, dispatcher: dispatcher, logger: logger}
}

// Verify answers the provider's subscription handshake. The challenge is
// echoed back verbatim on a token match.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.cfg.VerifyToken {
		h.logger.Info("webhook verified")
		return c.Status(fiber.StatusOK).SendString(challenge)
	}
	return c.SendStatus(fiber.StatusForbidden)
}

// Receive handles a delivery. The signature covers the raw request bytes, so
// verification runs before any parsing. Payloads that fail verification are
// never persisted. Everything past the signature check answers 200: the
// provider retries on non-2xx and the pipeline's idempotency makes replays
// cheap, but a poison payload must not cause endless redelivery.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	rawBody := c.Body()

	if !auth.VerifySignature(rawBody, c.Get("X-Hub-Signature-256"), h.cfg.AppSecret) {
		h.logger.Warn("webhook signature verification failed")
		return c.SendStatus(fiber.StatusForbidden)
	}

	var envelope dto.WebhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		h.logger.Warn("webhook payload not parseable", zap.Error(err))
		return c.Status(fiber.StatusOK).SendString("EVENT_RECEIVED")
	}

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			// Status updates and other non-message changes are ignored.
			for _, message := range change.Value.Messages {
				h.ingest(c, rawBody, message)
			}
		}
	}

	return c.Status(fiber.StatusOK).SendString("EVENT_RECEIVED")
}

func (h *WebhookHandler) ingest(c *fiber.Ctx, rawBody []byte, message dto.WebhookMessage) {
	if message.ID == "" || message.From == "" {
		h.logger.Warn("skipping message without id or sender")
		return
	}

	msg := &domain.InboundMessage{
		WaMessageID:     message.ID,
		WaChatID:        message.From,
		SenderPhone:     message.From,
		MessageType:     messageType(message),
		RawPayload:      rawBody,
		ProcessedStatus: domain.ProcessedStatusPending,
	}

	if err := h.messages.UpsertInbound(c.UserContext(), msg); err != nil {
		h.logger.Error("failed to persist inbound message",
			zap.String("wa_message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := h.dispatcher.Dispatch(c.UserContext(), message.ID); err != nil {
		// The stored row stays pending; provider redelivery or a manual
		// trigger picks it up later.
		h.logger.Error("failed to dispatch message",
			zap.String("wa_message_id", message.ID),
			zap.Error(err))
	}
}

func messageType(message dto.WebhookMessage) domain.MessageType {
	switch message.Type {
	case "image":
		return domain.MessageTypeImage
	case "interactive":
		return domain.MessageTypeInteractive
	default:
		return domain.MessageTypeText
	}
}
