package domain

import "time"

// TicketStatus enumerates expense ticket lifecycle states. Tickets created by
// the WhatsApp pipeline always start as pending review.
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "pendiente"
	TicketStatusApproved TicketStatus = "aprobado"
	TicketStatusRejected TicketStatus = "rechazado"
)

// TicketSource marks which intake channel produced the ticket.
type TicketSource string

const (
	TicketSourceWhatsApp TicketSource = "whatsapp"
	TicketSourceManual   TicketSource = "manual"
)

// Ticket is the durable expense record created on confirmation. Exactly one
// of CollaboratorID and CreatedBy is set, depending on how the sender's phone
// number was resolved.
type Ticket struct {
	ID             string
	OrganizationID string
	Date           string
	Amount         float64
	Currency       string
	MerchantName   string
	Category       string
	IvaAmount      *float64
	Status         TicketStatus
	Source         TicketSource
	CollaboratorID *string
	CreatedBy      *string
	CreatedAt      time.Time
}

// HasSingleCreator validates the creator-reference invariant.
func (t *Ticket) HasSingleCreator() bool {
	return (t.CollaboratorID != nil) != (t.CreatedBy != nil)
}
