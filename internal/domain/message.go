package domain

import "time"

// ProcessedStatus tracks how far the pipeline got with an inbound message.
type ProcessedStatus string

const (
	ProcessedStatusPending    ProcessedStatus = "pending"
	ProcessedStatusProcessed  ProcessedStatus = "processed"
	ProcessedStatusFailedAuth ProcessedStatus = "failed_auth"
)

// MessageType enumerates the provider message kinds the pipeline handles.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeInteractive MessageType = "interactive"
)

// InboundMessage is one provider-delivered WhatsApp message. WaMessageID is
// stable across provider retries and is the idempotency key.
type InboundMessage struct {
	ID              string
	WaMessageID     string
	WaChatID        string
	SenderPhone     string
	MessageType     MessageType
	RawPayload      []byte
	ProcessedStatus ProcessedStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
