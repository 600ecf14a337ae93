package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/expense-whatsapp/internal/domain"
)

// SessionRepository encapsulates conversation session persistence. At most one
// session exists per phone number.
type SessionRepository interface {
	GetByPhone(ctx context.Context, phone string) (*domain.ConversationSession, error)
	Create(ctx context.Context, session *domain.ConversationSession) error
	// UpdateState persists a state transition together with the captured
	// fields. Passing nil tempData clears the map.
	UpdateState(ctx context.Context, id string, state domain.SessionState, tempData domain.TempData) error
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository instantiates repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) GetByPhone(ctx context.Context, phone string) (*domain.ConversationSession, error) {
	const query = `
        SELECT id, phone_number, user_id, is_collaborator, current_state, temp_data, created_at, updated_at
        FROM whatsapp_sessions WHERE phone_number=$1`
	var (
		session domain.ConversationSession
		rawTemp []byte
	)
	if err := r.pool.QueryRow(ctx, query, phone).Scan(
		&session.ID,
		&session.PhoneNumber,
		&session.UserID,
		&session.IsCollaborator,
		&session.CurrentState,
		&rawTemp,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawTemp, &session.TempData); err != nil {
		return nil, fmt.Errorf("decode temp_data: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.ConversationSession) error {
	const query = `
        INSERT INTO whatsapp_sessions (phone_number, user_id, is_collaborator, current_state, temp_data)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	temp, err := encodeTempData(session.TempData)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, query,
		session.PhoneNumber,
		session.UserID,
		session.IsCollaborator,
		session.CurrentState,
		temp,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
}

func (r *sessionRepository) UpdateState(ctx context.Context, id string, state domain.SessionState, tempData domain.TempData) error {
	const query = `
        UPDATE whatsapp_sessions SET current_state=$1, temp_data=$2, updated_at=NOW() WHERE id=$3`
	temp, err := encodeTempData(tempData)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, query, state, temp, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func encodeTempData(data domain.TempData) ([]byte, error) {
	if data == nil {
		data = domain.TempData{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode temp_data: %w", err)
	}
	return encoded, nil
}
