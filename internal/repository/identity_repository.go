package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/expense-whatsapp/internal/domain"
)

// IdentityRepository resolves phone numbers and user ids against the identity
// tables owned by the dashboard.
type IdentityRepository interface {
	// ResolvePhone checks profiles first, then collaborators; the first match
	// wins. Returns (nil, nil) when the phone is unknown.
	ResolvePhone(ctx context.Context, phone string) (*domain.Identity, error)
	// CollaboratorOrganization returns the organization of a collaborator
	// record, or pgx.ErrNoRows when userID is not a collaborator.
	CollaboratorOrganization(ctx context.Context, userID string) (string, error)
	// MemberOrganization returns the first organization the user belongs to,
	// or pgx.ErrNoRows.
	MemberOrganization(ctx context.Context, userID string) (string, error)
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository instantiates repository.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) ResolvePhone(ctx context.Context, phone string) (*domain.Identity, error) {
	const profileQuery = `SELECT id FROM profiles WHERE whatsapp_number=$1`
	var userID string
	err := r.pool.QueryRow(ctx, profileQuery, phone).Scan(&userID)
	if err == nil {
		return &domain.Identity{UserID: userID, IsCollaborator: false}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	const collaboratorQuery = `SELECT id FROM collaborators WHERE phone=$1`
	err = r.pool.QueryRow(ctx, collaboratorQuery, phone).Scan(&userID)
	if err == nil {
		return &domain.Identity{UserID: userID, IsCollaborator: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return nil, nil
}

func (r *identityRepository) CollaboratorOrganization(ctx context.Context, userID string) (string, error) {
	const query = `SELECT organization_id FROM collaborators WHERE id=$1`
	var orgID string
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&orgID); err != nil {
		return "", err
	}
	return orgID, nil
}

func (r *identityRepository) MemberOrganization(ctx context.Context, userID string) (string, error) {
	const query = `SELECT organization_id FROM organization_members WHERE user_id=$1 LIMIT 1`
	var orgID string
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&orgID); err != nil {
		return "", err
	}
	return orgID, nil
}
