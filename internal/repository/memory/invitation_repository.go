package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// InvitationRepository is an in-memory repository.InvitationRepository.
type InvitationRepository struct {
	mu   sync.RWMutex
	rows map[string]*domain.AdminInvitation
	now  func() time.Time
}

// NewInvitationRepository returns an empty repository.
func NewInvitationRepository() *InvitationRepository {
	return &InvitationRepository{rows: map[string]*domain.AdminInvitation{}, now: time.Now}
}

func (r *InvitationRepository) Create(_ context.Context, invite *domain.AdminInvitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.Token == invite.Token {
			return domain.ErrAlreadyExists
		}
	}
	invite.ID = uuid.NewString()
	invite.CreatedAt = r.now().UTC()
	invite.UpdatedAt = invite.CreatedAt
	r.rows[invite.ID] = cloneInvitation(invite)
	return nil
}

func (r *InvitationRepository) GetByID(_ context.Context, id string) (*domain.AdminInvitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneInvitation(row), nil
}

func (r *InvitationRepository) GetByToken(_ context.Context, token string) (*domain.AdminInvitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.rows {
		if row.Token == token {
			return cloneInvitation(row), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *InvitationRepository) FindPendingByEmail(_ context.Context, email string) (*domain.AdminInvitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.AdminInvitation
	for _, row := range r.rows {
		if row.Email != email || row.Status != domain.InviteStatusPending {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return cloneInvitation(latest), nil
}

func (r *InvitationRepository) List(_ context.Context, status *domain.InviteStatus, limit, offset int) ([]domain.AdminInvitation, error) {
	r.mu.RLock()
	var rows []*domain.AdminInvitation
	for _, row := range r.rows {
		if status != nil && row.Status != *status {
			continue
		}
		rows = append(rows, row)
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})

	out := make([]domain.AdminInvitation, 0, len(rows))
	for _, row := range page(rows, limit, offset) {
		out = append(out, *cloneInvitation(row))
	}
	return out, nil
}

// UpdateStatus only transitions invitations that are still pending.
func (r *InvitationRepository) UpdateStatus(_ context.Context, invite *domain.AdminInvitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[invite.ID]
	if !ok || row.Status != domain.InviteStatusPending {
		return domain.ErrInviteNotPending
	}
	row.Status = invite.Status
	row.AcceptedAt = cloneTime(invite.AcceptedAt)
	row.UpdatedAt = r.now().UTC()
	invite.UpdatedAt = row.UpdatedAt
	return nil
}
