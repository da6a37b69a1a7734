package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// cachedResetToken is the Redis value. The raw token is left out; the key is
// its hash and readers already hold the token they looked up.
type cachedResetToken struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type cachedPasswordResetRepository struct {
	store    PasswordResetRepository
	client   *redis.Client
	keyspace string
	logger   *zap.Logger
	now      func() time.Time
}

// NewCachedPasswordResetRepository fronts the store with a Redis read-through
// cache. Postgres stays authoritative: cache failures fall through to it and
// every state change evicts the cached entry.
func NewCachedPasswordResetRepository(store PasswordResetRepository, client *redis.Client, keyspace string, logger *zap.Logger) PasswordResetRepository {
	if client == nil {
		return store
	}
	if keyspace == "" {
		keyspace = "pwreset"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedPasswordResetRepository{store: store, client: client, keyspace: keyspace, logger: logger, now: time.Now}
}

func (r *cachedPasswordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	if err := r.store.Create(ctx, token); err != nil {
		return err
	}
	r.put(ctx, token)
	return nil
}

func (r *cachedPasswordResetRepository) GetByToken(ctx context.Context, tokenStr string) (*domain.PasswordResetToken, error) {
	raw, err := r.client.Get(ctx, r.key(tokenStr)).Bytes()
	switch {
	case err == nil:
		var cached cachedResetToken
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return &domain.PasswordResetToken{
				ID:         cached.ID,
				IdentityID: cached.IdentityID,
				Token:      tokenStr,
				ExpiresAt:  cached.ExpiresAt,
				CreatedAt:  cached.CreatedAt,
			}, nil
		}
		r.evict(ctx, tokenStr)
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("reset token cache read failed", zap.Error(err))
	}

	token, err := r.store.GetByToken(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	r.put(ctx, token)
	return token, nil
}

func (r *cachedPasswordResetRepository) MarkUsed(ctx context.Context, token *domain.PasswordResetToken) error {
	err := r.store.MarkUsed(ctx, token)
	r.evict(ctx, token.Token)
	return err
}

func (r *cachedPasswordResetRepository) put(ctx context.Context, token *domain.PasswordResetToken) {
	if token.UsedAt != nil {
		return
	}
	ttl := token.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return
	}
	payload, err := json.Marshal(cachedResetToken{
		ID:         token.ID,
		IdentityID: token.IdentityID,
		ExpiresAt:  token.ExpiresAt,
		CreatedAt:  token.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.key(token.Token), payload, ttl).Err(); err != nil {
		r.logger.Warn("reset token cache write failed", zap.Error(err))
	}
}

func (r *cachedPasswordResetRepository) evict(ctx context.Context, tokenStr string) {
	if err := r.client.Del(ctx, r.key(tokenStr)).Err(); err != nil {
		r.logger.Warn("reset token cache evict failed", zap.Error(err))
	}
}

// key hashes the token. Together with cachedResetToken this keeps raw reset
// credentials out of Redis.
func (r *cachedPasswordResetRepository) key(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))
	return r.keyspace + ":" + hex.EncodeToString(sum[:])
}
