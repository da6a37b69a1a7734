package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/storefront-identity/internal/config"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// runNow executes background work inline so tests observe its effects.
func runNow(fn func()) { fn() }

func testConfig() config.Config {
	return config.Config{
		App: config.AppConfig{Name: "storefront-identity", Env: "test"},
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			Issuer:                  "storefront-identity",
			BcryptCost:              bcrypt.MinCost,
			StandardTokenTTLHours:   24,
			BusinessTokenTTLHours:   24 * 7,
			AdminTokenTTLHours:      24 * 7,
			LockoutThreshold:        5,
			LockoutMinutes:          120,
			PasswordResetTTLMinutes: 60,
			InviteTTLHours:          24 * 7,
		},
	}
}

// memIdentityRepo counts writes on top of the in-memory repository.
type memIdentityRepo struct {
	*memory.IdentityRepository
	writes int
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{IdentityRepository: memory.NewIdentityRepository()}
}

// seed inserts a record as-is, bypassing the creation pipeline.
func (m *memIdentityRepo) seed(identity *domain.Identity) *domain.Identity {
	if err := m.IdentityRepository.Create(context.Background(), identity); err != nil {
		panic(err)
	}
	return identity
}

func (m *memIdentityRepo) stored(id string) *domain.Identity {
	identity, err := m.GetByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return identity
}

func (m *memIdentityRepo) Create(ctx context.Context, identity *domain.Identity) error {
	m.writes++
	return m.IdentityRepository.Create(ctx, identity)
}

func (m *memIdentityRepo) Update(ctx context.Context, identity *domain.Identity) error {
	m.writes++
	return m.IdentityRepository.Update(ctx, identity)
}

func (m *memIdentityRepo) UpdateLoginState(ctx context.Context, identity *domain.Identity) error {
	m.writes++
	return m.IdentityRepository.UpdateLoginState(ctx, identity)
}

func (m *memIdentityRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.writes++
	return m.IdentityRepository.UpdatePassword(ctx, id, passwordHash)
}

func (m *memIdentityRepo) Delete(ctx context.Context, id string) error {
	m.writes++
	return m.IdentityRepository.Delete(ctx, id)
}

type memInvitationRepo struct {
	*memory.InvitationRepository
}

func newMemInvitationRepo() *memInvitationRepo {
	return &memInvitationRepo{InvitationRepository: memory.NewInvitationRepository()}
}

func (m *memInvitationRepo) stored(id string) *domain.AdminInvitation {
	invite, err := m.GetByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return invite
}

// memResetRepo remembers the last issued token so tests can redeem it.
type memResetRepo struct {
	*memory.PasswordResetRepository
	mu   sync.Mutex
	last string
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{PasswordResetRepository: memory.NewPasswordResetRepository()}
}

func (m *memResetRepo) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	if err := m.PasswordResetRepository.Create(ctx, token); err != nil {
		return err
	}
	m.mu.Lock()
	m.last = token.Token
	m.mu.Unlock()
	return nil
}

func (m *memResetRepo) only() *domain.PasswordResetToken {
	m.mu.Lock()
	last := m.last
	m.mu.Unlock()
	if last == "" {
		return nil
	}
	token, err := m.GetByToken(context.Background(), last)
	if err != nil {
		return nil
	}
	return token
}
