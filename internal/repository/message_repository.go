package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/expense-whatsapp/internal/domain"
)

// MessageRepository encapsulates inbound message persistence.
type MessageRepository interface {
	// UpsertInbound inserts the message or refreshes the stored payload when
	// the provider redelivers the same wa_message_id. The processed status of
	// an existing row is never downgraded.
	UpsertInbound(ctx context.Context, msg *domain.InboundMessage) error
	GetByWaMessageID(ctx context.Context, waMessageID string) (*domain.InboundMessage, error)
	UpdateStatus(ctx context.Context, id string, status domain.ProcessedStatus) error
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) UpsertInbound(ctx context.Context, msg *domain.InboundMessage) error {
	const query = `
        INSERT INTO whatsapp_messages (wa_message_id, wa_chat_id, sender_phone, message_type, raw_payload, processed_status)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (wa_message_id) DO UPDATE
            SET raw_payload = EXCLUDED.raw_payload,
                updated_at = NOW()
        RETURNING id, processed_status, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		msg.WaMessageID,
		msg.WaChatID,
		msg.SenderPhone,
		msg.MessageType,
		msg.RawPayload,
		domain.ProcessedStatusPending,
	).Scan(&msg.ID, &msg.ProcessedStatus, &msg.CreatedAt, &msg.UpdatedAt)
}

func (r *messageRepository) GetByWaMessageID(ctx context.Context, waMessageID string) (*domain.InboundMessage, error) {
	const query = `
        SELECT id, wa_message_id, wa_chat_id, sender_phone, message_type, raw_payload, processed_status, created_at, updated_at
        FROM whatsapp_messages WHERE wa_message_id=$1`
	var msg domain.InboundMessage
	if err := r.pool.QueryRow(ctx, query, waMessageID).Scan(
		&msg.ID,
		&msg.WaMessageID,
		&msg.WaChatID,
		&msg.SenderPhone,
		&msg.MessageType,
		&msg.RawPayload,
		&msg.ProcessedStatus,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) UpdateStatus(ctx context.Context, id string, status domain.ProcessedStatus) error {
	const query = `UPDATE whatsapp_messages SET processed_status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
