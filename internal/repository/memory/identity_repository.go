// Package memory holds process-local repository implementations. They back
// the service when no database is configured and serve as test doubles.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

type identityRecord struct {
	identity *domain.Identity
	seq      int
}

// IdentityRepository is an in-memory repository.IdentityRepository.
type IdentityRepository struct {
	mu   sync.RWMutex
	rows map[string]*identityRecord
	seq  int
	now  func() time.Time
}

// NewIdentityRepository returns an empty repository.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{rows: map[string]*identityRecord{}, now: time.Now}
}

func (r *IdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	identity.ID = uuid.NewString()
	identity.CreatedAt = r.now().UTC()
	identity.UpdatedAt = identity.CreatedAt
	r.rows[identity.ID] = &identityRecord{identity: cloneIdentity(identity), seq: r.seq}
	return nil
}

func (r *IdentityRepository) Update(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rows[identity.ID]
	if !ok {
		return domain.ErrNotFound
	}
	updated := cloneIdentity(identity)
	updated.PasswordHash = rec.identity.PasswordHash
	updated.LoginAttempts = rec.identity.LoginAttempts
	updated.LockUntil = rec.identity.LockUntil
	updated.LastLogin = rec.identity.LastLogin
	updated.CreatedAt = rec.identity.CreatedAt
	updated.UpdatedAt = r.now().UTC()
	identity.UpdatedAt = updated.UpdatedAt
	rec.identity = updated
	return nil
}

func (r *IdentityRepository) UpdateLoginState(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rows[identity.ID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.identity.LoginAttempts = identity.LoginAttempts
	rec.identity.LockUntil = cloneTime(identity.LockUntil)
	rec.identity.LastLogin = cloneTime(identity.LastLogin)
	return nil
}

func (r *IdentityRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.identity.PasswordHash = passwordHash
	rec.identity.LoginAttempts = 0
	rec.identity.LockUntil = nil
	rec.identity.UpdatedAt = r.now().UTC()
	return nil
}

func (r *IdentityRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *IdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneIdentity(rec.identity), nil
}

// FindOne orders candidates the same way the Postgres query does: active
// first, then kind position in precedence, then insertion order.
func (r *IdentityRepository) FindOne(_ context.Context, identifier domain.Identifier, precedence []domain.Kind) (*domain.Identity, error) {
	email := domain.NormalizeEmail(identifier.Email)
	username := strings.TrimSpace(identifier.Username)
	if email == "" && username == "" {
		return nil, domain.ErrNotFound
	}

	position := make(map[domain.Kind]int, len(precedence))
	for i, k := range precedence {
		if _, seen := position[k]; !seen {
			position[k] = i
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*identityRecord
	for _, rec := range r.rows {
		if _, ok := position[rec.identity.Kind]; !ok {
			continue
		}
		if (email != "" && rec.identity.Email == email) ||
			(username != "" && strings.EqualFold(rec.identity.Username, username)) {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].identity, matches[j].identity
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		if position[a.Kind] != position[b.Kind] {
			return position[a.Kind] < position[b.Kind]
		}
		return matches[i].seq < matches[j].seq
	})
	return cloneIdentity(matches[0].identity), nil
}

func (r *IdentityRepository) List(_ context.Context, filter domain.IdentityFilter) ([]domain.Identity, error) {
	r.mu.RLock()
	var recs []*identityRecord
	for _, rec := range r.rows {
		id := rec.identity
		if filter.Kind != nil && id.Kind != *filter.Kind {
			continue
		}
		if filter.Active != nil && id.IsActive != *filter.Active {
			continue
		}
		if filter.IsAdmin != nil && id.IsAdmin != *filter.IsAdmin {
			continue
		}
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	out := make([]domain.Identity, 0, len(recs))
	for _, rec := range page(recs, filter.Limit, filter.Offset) {
		out = append(out, *cloneIdentity(rec.identity))
	}
	return out, nil
}
