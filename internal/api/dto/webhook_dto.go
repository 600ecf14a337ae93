package dto

// WebhookEnvelope is the WhatsApp Cloud API delivery payload.
type WebhookEnvelope struct {
	Entry []WebhookEntry `json:"entry"`
}

// WebhookEntry groups the changes for one subscribed object.
type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange carries one field change; only "messages" values matter to
// the pipeline, status updates are skipped.
type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

// WebhookValue holds the delivered messages.
type WebhookValue struct {
	Messages []WebhookMessage `json:"messages"`
}

// WebhookMessage is one inbound message.
type WebhookMessage struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	Type        string              `json:"type"`
	Text        *TextContent        `json:"text,omitempty"`
	Image       *ImageContent       `json:"image,omitempty"`
	Interactive *InteractiveContent `json:"interactive,omitempty"`
}

// TextContent is the plain text body.
type TextContent struct {
	Body string `json:"body"`
}

// ImageContent references provider-hosted media.
type ImageContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// InteractiveContent carries button replies.
type InteractiveContent struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
}

// ButtonReply is the option the user tapped; its title doubles as the text
// body in the state machine.
type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ProcessRequest triggers the conversation worker for one stored message.
type ProcessRequest struct {
	WaMessageID string `json:"wa_message_id"`
}

// ScanRequest asks for a one-shot extraction from an object-store URL.
type ScanRequest struct {
	ReceiptURL string `json:"receiptUrl"`
}
