package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/events"
	"github.com/spec-kit/storefront-identity/internal/observability"
	"github.com/spec-kit/storefront-identity/internal/repository"
)

// CredentialVerifier checks passwords and maintains lockout state.
type CredentialVerifier struct {
	identities repository.IdentityRepository
	policy     auth.LockoutPolicy
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	burn       func(password string)
}

// NewCredentialVerifier constructs the verifier.
func NewCredentialVerifier(
	identities repository.IdentityRepository,
	policy auth.LockoutPolicy,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	metrics *observability.Metrics,
	now func() time.Time,
) *CredentialVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &CredentialVerifier{
		identities: identities,
		policy:     policy,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		now:        now,
		burn:       func(password string) { auth.BurnCompare(password, bcrypt.DefaultCost) },
	}
}

// WithCost makes every failure path spend a comparison at the bcrypt cost
// stored hashes are created with.
func (v *CredentialVerifier) WithCost(cost int) *CredentialVerifier {
	v.burn = func(password string) { auth.BurnCompare(password, cost) }
	return v
}

// Burn spends the same comparison a wrong password would for callers that
// have no identity to check.
func (v *CredentialVerifier) Burn(password string) {
	v.burn(password)
}

// Verify runs the precondition checks, compares the password and persists the
// resulting login state. Attempts and lock are written as a plain overwrite.
func (v *CredentialVerifier) Verify(ctx context.Context, identity *domain.Identity, password string) error {
	if err := v.Check(ctx, identity, password); err != nil {
		return err
	}
	return v.Succeed(ctx, identity)
}

// Check compares the password after the preconditions without touching state
// on success. A failed precondition still pays for a comparison.
func (v *CredentialVerifier) Check(ctx context.Context, identity *domain.Identity, password string) error {
	if err := v.policy.Precheck(identity, v.now()); err != nil {
		v.burn(password)
		return err
	}
	if err := auth.ComparePassword(identity.PasswordHash, password); err != nil {
		if ferr := v.RecordFailure(ctx, identity); ferr != nil {
			return ferr
		}
		return domain.ErrInvalidCredentials
	}
	return nil
}

// Succeed clears failure state and stamps the login.
func (v *CredentialVerifier) Succeed(ctx context.Context, identity *domain.Identity) error {
	v.policy.RegisterSuccess(identity, v.now())
	return v.identities.UpdateLoginState(ctx, identity)
}

// RecordFailure counts a failed attempt and locks the identity at threshold.
func (v *CredentialVerifier) RecordFailure(ctx context.Context, identity *domain.Identity) error {
	now := v.now()
	wasLocked := identity.IsLocked(now)
	locked := v.policy.RegisterFailure(identity, now)
	if err := v.identities.UpdateLoginState(ctx, identity); err != nil {
		return err
	}
	if locked && !wasLocked {
		v.metrics.RecordLockout()
		v.logger.Warn("identity locked",
			zap.String("identity_id", identity.ID),
			zap.Int("attempts", identity.LoginAttempts),
			zap.Timep("lock_until", identity.LockUntil))
		if v.dispatcher != nil {
			_ = v.dispatcher.Publish(ctx, events.Event{
				Type:       events.EventIdentityLocked,
				IdentityID: identity.ID,
				Timestamp:  now,
				Payload:    events.IdentityLockedPayload{LockUntil: *identity.LockUntil},
			})
		}
	}
	return nil
}
