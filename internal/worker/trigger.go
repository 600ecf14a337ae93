package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/api/dto"
	"github.com/spec-kit/expense-whatsapp/internal/auth"
)

// HTTPTrigger dispatches by POSTing the message id to a remote worker
// endpoint, authorized with a short-lived service token. Used when the
// webhook intake and the conversation worker run as separate deployments.
type HTTPTrigger struct {
	url    string
	tokens *auth.TokenManager
	client *http.Client
	logger *zap.Logger
}

// NewHTTPTrigger builds the trigger client.
func NewHTTPTrigger(url string, tokens *auth.TokenManager, logger *zap.Logger) *HTTPTrigger {
	return &HTTPTrigger{
		url:    url,
		tokens: tokens,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Dispatch fires the trigger in the background. The webhook response never
// waits on the worker; delivery failures are logged and left to provider
// redelivery.
func (t *HTTPTrigger) Dispatch(ctx context.Context, waMessageID string) error {
	go func() {
		triggerCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := t.post(triggerCtx, waMessageID); err != nil {
			t.logger.Error("worker trigger failed",
				zap.String("wa_message_id", waMessageID),
				zap.Error(err))
		}
	}()
	return nil
}

func (t *HTTPTrigger) post(ctx context.Context, waMessageID string) error {
	token, err := t.tokens.GenerateServiceToken(waMessageID)
	if err != nil {
		return fmt.Errorf("sign trigger token: %w", err)
	}

	body, err := json.Marshal(dto.ProcessRequest{WaMessageID: waMessageID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("trigger endpoint returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
