package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/config"
	"github.com/spec-kit/expense-whatsapp/internal/events"
)

// NotificationService forwards pipeline events to the configured webhook and
// mirrors them into the log. Without a webhook URL it only logs.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotifyConfig
	client     *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotifyConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventMessageReceived, n.handleEvent)
	n.dispatcher.Subscribe(events.EventExtractionSucceeded, n.handleEvent)
	n.dispatcher.Subscribe(events.EventExtractionFailed, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventSessionCancelled, n.handleEvent)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("pipeline event",
		zap.String("event", string(event.Type)),
		zap.String("wa_message_id", event.WaMessageID),
		zap.Any("payload", event.Payload))
	n.forwardWebhook(ctx, event)
	return nil
}

// forwardWebhook is best-effort; a failed delivery never fails the handler.
func (n *NotificationService) forwardWebhook(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("webhook payload encode failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("webhook request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("url", n.cfg.WebhookURL),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("webhook delivery rejected",
			zap.String("url", n.cfg.WebhookURL),
			zap.String("status", fmt.Sprintf("%d", resp.StatusCode)))
	}
}
