package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// IdentityRepository persists every identity kind in one table keyed by a
// kind discriminant.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	Update(ctx context.Context, identity *domain.Identity) error
	UpdateLoginState(ctx context.Context, identity *domain.Identity) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	// FindOne returns the first identity matching email OR username. Active
	// records come first so a promoted identity is not shadowed by the record
	// it replaced, then the position of the kind in precedence, then creation
	// time.
	FindOne(ctx context.Context, identifier domain.Identifier, precedence []domain.Kind) (*domain.Identity, error)
	List(ctx context.Context, filter domain.IdentityFilter) ([]domain.Identity, error)
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

const identityColumns = `id, kind, email, COALESCE(username, ''), name, password_hash, role, is_admin,
        permissions, extension, is_active, login_attempts, lock_until, last_login, created_at, updated_at`

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (kind, email, username, name, password_hash, role, is_admin, permissions, extension, is_active)
        VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`

	perms, ext, err := encodeIdentityJSON(identity)
	if err != nil {
		return err
	}

	return r.pool.QueryRow(ctx, query,
		identity.Kind,
		identity.Email,
		identity.Username,
		identity.Name,
		identity.PasswordHash,
		identity.Role,
		identity.IsAdmin,
		perms,
		ext,
		identity.IsActive,
	).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
}

func (r *identityRepository) Update(ctx context.Context, identity *domain.Identity) error {
	const query = `
        UPDATE identities
        SET email=$1, username=NULLIF($2,''), name=$3, role=$4, is_admin=$5, permissions=$6, extension=$7, is_active=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`

	perms, ext, err := encodeIdentityJSON(identity)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, query,
		identity.Email,
		identity.Username,
		identity.Name,
		identity.Role,
		identity.IsAdmin,
		perms,
		ext,
		identity.IsActive,
		identity.ID,
	).Scan(&identity.UpdatedAt)
	return notFound(err)
}

// UpdateLoginState writes attempts, lock and last login as a plain overwrite.
// Concurrent failures race and the last writer wins.
func (r *identityRepository) UpdateLoginState(ctx context.Context, identity *domain.Identity) error {
	const query = `
        UPDATE identities SET login_attempts=$1, lock_until=$2, last_login=$3
        WHERE id=$4`

	cmd, err := r.pool.Exec(ctx, query,
		identity.LoginAttempts,
		identity.LockUntil,
		identity.LastLogin,
		identity.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *identityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
        UPDATE identities SET password_hash=$1, login_attempts=0, lock_until=NULL, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *identityRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id=$1`
	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return identity, nil
}

func (r *identityRepository) FindOne(ctx context.Context, identifier domain.Identifier, precedence []domain.Kind) (*domain.Identity, error) {
	if identifier.Empty() || len(precedence) == 0 {
		return nil, domain.ErrNotFound
	}

	kinds := make([]string, len(precedence))
	for i, k := range precedence {
		kinds[i] = string(k)
	}

	query := `SELECT ` + identityColumns + `
        FROM identities
        WHERE kind = ANY($1::text[])
          AND (($2 <> '' AND email = $2) OR ($3 <> '' AND lower(username) = lower($3)))
        ORDER BY is_active DESC, array_position($1::text[], kind), created_at ASC, id ASC
        LIMIT 1`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query,
		kinds,
		domain.NormalizeEmail(identifier.Email),
		strings.TrimSpace(identifier.Username),
	))
	if err != nil {
		return nil, notFound(err)
	}
	return identity, nil
}

func (r *identityRepository) List(ctx context.Context, filter domain.IdentityFilter) ([]domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities`
	args := []any{}
	clauses := []string{}

	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("is_active=$%d", len(args)))
	}
	if filter.IsAdmin != nil {
		args = append(args, *filter.IsAdmin)
		clauses = append(clauses, fmt.Sprintf("is_admin=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *identity)
	}
	return result, rows.Err()
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		identity  domain.Identity
		perms     []byte
		ext       []byte
		lockUntil *time.Time
		lastLogin *time.Time
	)
	if err := row.Scan(
		&identity.ID,
		&identity.Kind,
		&identity.Email,
		&identity.Username,
		&identity.Name,
		&identity.PasswordHash,
		&identity.Role,
		&identity.IsAdmin,
		&perms,
		&ext,
		&identity.IsActive,
		&identity.LoginAttempts,
		&lockUntil,
		&lastLogin,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	identity.LockUntil = lockUntil
	identity.LastLogin = lastLogin

	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &identity.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	if len(ext) > 0 {
		if err := json.Unmarshal(ext, &identity.Extension); err != nil {
			return nil, fmt.Errorf("decode extension: %w", err)
		}
	}
	return &identity, nil
}

func encodeIdentityJSON(identity *domain.Identity) ([]byte, []byte, error) {
	perms := identity.Permissions
	if perms == nil {
		perms = []domain.PermissionEntry{}
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return nil, nil, fmt.Errorf("encode permissions: %w", err)
	}
	extJSON, err := json.Marshal(identity.Extension)
	if err != nil {
		return nil, nil, fmt.Errorf("encode extension: %w", err)
	}
	return permsJSON, extJSON, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
