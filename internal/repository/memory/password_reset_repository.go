package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// PasswordResetRepository is an in-memory repository.PasswordResetRepository.
type PasswordResetRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.PasswordResetToken
	now    func() time.Time
}

// NewPasswordResetRepository returns an empty repository.
func NewPasswordResetRepository() *PasswordResetRepository {
	return &PasswordResetRepository{tokens: map[string]*domain.PasswordResetToken{}, now: time.Now}
}

func (r *PasswordResetRepository) Create(_ context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[token.Token]; exists {
		return domain.ErrAlreadyExists
	}
	token.ID = uuid.NewString()
	token.CreatedAt = r.now().UTC()
	r.tokens[token.Token] = cloneResetToken(token)
	return nil
}

func (r *PasswordResetRepository) GetByToken(_ context.Context, token string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.tokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneResetToken(row), nil
}

// MarkUsed consumes a token once; a second call reports domain.ErrNotFound.
func (r *PasswordResetRepository) MarkUsed(_ context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.tokens[token.Token]
	if !ok || row.UsedAt != nil {
		return domain.ErrNotFound
	}
	used := r.now().UTC()
	row.UsedAt = &used
	token.UsedAt = cloneTime(&used)
	return nil
}
