package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/expense-whatsapp/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventMessageReceived     EventType = "message_received"
	EventExtractionSucceeded EventType = "extraction_succeeded"
	EventExtractionFailed    EventType = "extraction_failed"
	EventTicketCreated       EventType = "ticket_created"
	EventSessionCancelled    EventType = "session_cancelled"
)

// Event represents a pipeline event emitted by the conversation worker.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	WaMessageID string      `json:"wa_message_id"`
	PhoneNumber string      `json:"phone_number"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// NewEvent stamps a fresh event for the given message.
func NewEvent(eventType EventType, waMessageID, phoneNumber string, payload interface{}) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		WaMessageID: waMessageID,
		PhoneNumber: phoneNumber,
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
	}
}

// MessageReceivedPayload payload.
type MessageReceivedPayload struct {
	MessageType domain.MessageType  `json:"message_type"`
	State       domain.SessionState `json:"state"`
}

// ExtractionSucceededPayload payload.
type ExtractionSucceededPayload struct {
	MerchantName string  `json:"merchant_name"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Category     string  `json:"category"`
}

// ExtractionFailedPayload payload.
type ExtractionFailedPayload struct {
	Reason string `json:"reason"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID       string  `json:"ticket_id"`
	OrganizationID string  `json:"organization_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}
