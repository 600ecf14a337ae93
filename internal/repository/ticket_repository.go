package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/expense-whatsapp/internal/domain"
)

// TicketRepository encapsulates expense ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (organization_id, date, amount, currency, merchant_name, category, iva_amount, status, source, collaborator_id, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.OrganizationID,
		ticket.Date,
		ticket.Amount,
		ticket.Currency,
		ticket.MerchantName,
		ticket.Category,
		ticket.IvaAmount,
		ticket.Status,
		ticket.Source,
		ticket.CollaboratorID,
		ticket.CreatedBy,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}
