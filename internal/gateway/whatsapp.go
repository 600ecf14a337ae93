package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/config"
)

// Button is one interactive reply option.
type Button struct {
	ID    string
	Title string
}

// MessageSender is the outbound surface the conversation worker uses. When
// contextID is non-empty the send references the original message.
type MessageSender interface {
	SendText(ctx context.Context, to, text, contextID string) error
	SendInteractiveButtons(ctx context.Context, to, text string, buttons []Button, contextID string) error
}

// MediaDownloader retrieves provider-hosted media.
type MediaDownloader interface {
	// DownloadMedia resolves the media id to a URL and fetches the binary,
	// both with the provider access token.
	DownloadMedia(ctx context.Context, mediaID string) (data []byte, mimeType string, err error)
}

// WhatsAppClient talks to the WhatsApp Cloud API.
type WhatsAppClient struct {
	baseURL     string
	accessToken string
	phoneID     string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewWhatsAppClient constructs the client.
func NewWhatsAppClient(cfg config.WhatsAppConfig, logger *zap.Logger) *WhatsAppClient {
	return &WhatsAppClient{
		baseURL:     cfg.APIBaseURL,
		accessToken: cfg.AccessToken,
		phoneID:     cfg.PhoneID,
		httpClient:  &http.Client{Timeout: cfg.SendTimeout()},
		logger:      logger,
	}
}

type textPayload struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             textBody        `json:"text"`
	Context          *messageContext `json:"context,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type messageContext struct {
	MessageID string `json:"message_id"`
}

type interactivePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Interactive      interactiveBody `json:"interactive"`
	Context          *messageContext `json:"context,omitempty"`
}

type interactiveBody struct {
	Type   string            `json:"type"`
	Body   textBody          `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveAction struct {
	Buttons []replyButton `json:"buttons"`
}

type replyButton struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendText sends a plain text message.
func (c *WhatsAppClient) SendText(ctx context.Context, to, text, contextID string) error {
	payload := textPayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: text},
	}
	if contextID != "" {
		payload.Context = &messageContext{MessageID: contextID}
	}
	return c.postMessage(ctx, payload)
}

// SendInteractiveButtons sends a reply-button prompt.
func (c *WhatsAppClient) SendInteractiveButtons(ctx context.Context, to, text string, buttons []Button, contextID string) error {
	replies := make([]replyButton, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, replyButton{
			Type:  "reply",
			Reply: buttonReply{ID: b.ID, Title: b.Title},
		})
	}
	payload := interactivePayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "interactive",
		Interactive: interactiveBody{
			Type:   "button",
			Body:   textBody{Body: text},
			Action: interactiveAction{Buttons: replies},
		},
	}
	if contextID != "" {
		payload.Context = &messageContext{MessageID: contextID}
	}
	return c.postMessage(ctx, payload)
}

func (c *WhatsAppClient) postMessage(ctx context.Context, payload any) error {
	if c.accessToken == "" || c.phoneID == "" {
		return fmt.Errorf("whatsapp credentials not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("whatsapp send failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return fmt.Errorf("whatsapp send failed with status %d", resp.StatusCode)
	}
	return nil
}

type mediaMetadata struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// DownloadMedia implements the two-step Cloud API media fetch: resolve the
// media id to a short-lived URL, then download the binary with the same
// token.
func (c *WhatsAppClient) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if c.accessToken == "" {
		return nil, "", fmt.Errorf("whatsapp credentials not configured")
	}

	metaURL := fmt.Sprintf("%s/%s", c.baseURL, mediaID)
	meta, err := c.getJSON(ctx, metaURL)
	if err != nil {
		return nil, "", fmt.Errorf("get media url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, meta.MimeType, nil
}

func (c *WhatsAppClient) getJSON(ctx context.Context, url string) (*mediaMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d body=%q", resp.StatusCode, string(body))
	}

	var meta mediaMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("missing media url in response")
	}
	return &meta, nil
}
