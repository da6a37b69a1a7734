package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// InvitationRepository persists admin invitations.
type InvitationRepository interface {
	Create(ctx context.Context, invite *domain.AdminInvitation) error
	GetByID(ctx context.Context, id string) (*domain.AdminInvitation, error)
	GetByToken(ctx context.Context, token string) (*domain.AdminInvitation, error)
	FindPendingByEmail(ctx context.Context, email string) (*domain.AdminInvitation, error)
	List(ctx context.Context, status *domain.InviteStatus, limit, offset int) ([]domain.AdminInvitation, error)
	UpdateStatus(ctx context.Context, invite *domain.AdminInvitation) error
}

type invitationRepository struct {
	pool *pgxpool.Pool
}

// NewInvitationRepository constructs repository.
func NewInvitationRepository(pool *pgxpool.Pool) InvitationRepository {
	return &invitationRepository{pool: pool}
}

const invitationColumns = `id, email, role, permissions, COALESCE(invited_by::text, ''), token, expires_at, status, accepted_at, created_at, updated_at`

func (r *invitationRepository) Create(ctx context.Context, invite *domain.AdminInvitation) error {
	const query = `
        INSERT INTO admin_invitations (email, role, permissions, invited_by, token, expires_at, status)
        VALUES ($1,$2,$3,NULLIF($4,'')::uuid,$5,$6,$7)
        RETURNING id, created_at, updated_at`

	perms, err := json.Marshal(nonNilPermissions(invite.Permissions))
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}

	return r.pool.QueryRow(ctx, query,
		invite.Email,
		invite.Role,
		perms,
		invite.InvitedBy,
		invite.Token,
		invite.ExpiresAt,
		invite.Status,
	).Scan(&invite.ID, &invite.CreatedAt, &invite.UpdatedAt)
}

func (r *invitationRepository) GetByID(ctx context.Context, id string) (*domain.AdminInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM admin_invitations WHERE id=$1`
	invite, err := scanInvitation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return invite, nil
}

func (r *invitationRepository) GetByToken(ctx context.Context, token string) (*domain.AdminInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM admin_invitations WHERE token=$1`
	invite, err := scanInvitation(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		return nil, notFound(err)
	}
	return invite, nil
}

func (r *invitationRepository) FindPendingByEmail(ctx context.Context, email string) (*domain.AdminInvitation, error) {
	query := `SELECT ` + invitationColumns + `
        FROM admin_invitations WHERE email=$1 AND status='pending'
        ORDER BY created_at DESC LIMIT 1`
	invite, err := scanInvitation(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, notFound(err)
	}
	return invite, nil
}

func (r *invitationRepository) List(ctx context.Context, status *domain.InviteStatus, limit, offset int) ([]domain.AdminInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM admin_invitations`
	args := []any{}
	if status != nil {
		args = append(args, *status)
		query += " WHERE status=$1"
	}
	limit, offset = pageBounds(limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdminInvitation
	for rows.Next() {
		invite, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *invite)
	}
	return result, rows.Err()
}

// UpdateStatus moves a pending invitation to a terminal state. The WHERE
// clause keeps terminal states terminal even under concurrent writers.
func (r *invitationRepository) UpdateStatus(ctx context.Context, invite *domain.AdminInvitation) error {
	const query = `
        UPDATE admin_invitations SET status=$1, accepted_at=$2, updated_at=NOW()
        WHERE id=$3 AND status='pending'
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, invite.Status, invite.AcceptedAt, invite.ID).Scan(&invite.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrInviteNotPending
		}
		return err
	}
	return nil
}

func scanInvitation(row pgx.Row) (*domain.AdminInvitation, error) {
	var (
		invite     domain.AdminInvitation
		perms      []byte
		acceptedAt *time.Time
	)
	if err := row.Scan(
		&invite.ID,
		&invite.Email,
		&invite.Role,
		&perms,
		&invite.InvitedBy,
		&invite.Token,
		&invite.ExpiresAt,
		&invite.Status,
		&acceptedAt,
		&invite.CreatedAt,
		&invite.UpdatedAt,
	); err != nil {
		return nil, err
	}
	invite.AcceptedAt = acceptedAt
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &invite.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return &invite, nil
}

func nonNilPermissions(perms []domain.PermissionEntry) []domain.PermissionEntry {
	if perms == nil {
		return []domain.PermissionEntry{}
	}
	return perms
}
