package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/config"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/events"
	"github.com/spec-kit/storefront-identity/internal/observability"
	"github.com/spec-kit/storefront-identity/internal/repository"
)

// AuthResult is the outcome of a successful login or signup.
type AuthResult struct {
	Identity     *domain.Identity
	Capabilities auth.Capabilities
	Session      *domain.Session
}

// AdminAuthResult adds the admin tier reported to the portal.
type AdminAuthResult struct {
	AuthResult
	AdminLevel string
}

// RegisterInput carries self-service signup fields.
type RegisterInput struct {
	Kind         domain.Kind
	Email        string
	Username     string
	Name         string
	Password     string
	Phone        string
	BusinessName string
	BusinessType string
}

// AuthService coordinates registration, login and password flows.
type AuthService struct {
	identities repository.IdentityRepository
	resets     repository.PasswordResetRepository
	resolver   *IdentityResolver
	verifier   *CredentialVerifier
	factory    *identityFactory
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
	background func(func())
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	IdentityRepo      repository.IdentityRepository
	PasswordResetRepo repository.PasswordResetRepository
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
	Metrics           *observability.Metrics
	Clock             func() time.Time
	// Background runs work that must not hold up the response. Defaults to a
	// new goroutine.
	Background func(func())
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	background := deps.Background
	if background == nil {
		background = func(fn func()) { go fn() }
	}

	resolver := NewIdentityResolver(deps.IdentityRepo)
	policy := auth.LockoutPolicy{Threshold: cfg.Auth.LockoutThreshold, Duration: cfg.Auth.LockoutDuration()}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, auth.TokenTTLs{
		domain.TokenContextStandard:    time.Duration(cfg.Auth.StandardTokenTTLHours) * time.Hour,
		domain.TokenContextBusiness:    time.Duration(cfg.Auth.BusinessTokenTTLHours) * time.Hour,
		domain.TokenContextAdminPortal: time.Duration(cfg.Auth.AdminTokenTTLHours) * time.Hour,
	}).WithClock(now)

	return &AuthService{
		identities: deps.IdentityRepo,
		resets:     deps.PasswordResetRepo,
		resolver:   resolver,
		verifier:   NewCredentialVerifier(deps.IdentityRepo, policy, deps.Dispatcher, logger, deps.Metrics, now).WithCost(cfg.Auth.BcryptCost),
		factory:    &identityFactory{identities: deps.IdentityRepo, resolver: resolver, bcryptCost: cfg.Auth.BcryptCost},
		tokenMgr:   tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   cfg.Auth.PasswordResetTTL(),
		now:        now,
		background: background,
	}
}

// Register creates a customer or business owner and signs them in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if input.Kind == "" {
		input.Kind = domain.KindCustomer
	}

	identity := &domain.Identity{
		Kind:     input.Kind,
		Email:    input.Email,
		Username: input.Username,
		Name:     strings.TrimSpace(input.Name),
		IsActive: true,
	}
	tokenCtx := domain.TokenContextStandard
	switch input.Kind {
	case domain.KindCustomer:
		identity.Extension.Customer = &domain.CustomerProfile{Phone: input.Phone}
	case domain.KindBusinessOwner:
		if strings.TrimSpace(input.BusinessName) == "" {
			return nil, fmt.Errorf("%w: business name is required", domain.ErrInvalidInput)
		}
		identity.Extension.BusinessOwner = &domain.BusinessProfile{
			BusinessName: strings.TrimSpace(input.BusinessName),
			BusinessType: input.BusinessType,
		}
		tokenCtx = domain.TokenContextBusiness
	default:
		return nil, fmt.Errorf("%w: %q cannot self-register", domain.ErrInvalidInput, input.Kind)
	}

	if err := s.factory.create(ctx, identity, createOptions{password: input.Password, checkUnique: true}); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:       events.EventIdentityCreated,
		IdentityID: identity.ID,
		Payload:    events.IdentityCreatedPayload{Kind: identity.Kind, Email: identity.Email, Source: "signup"},
	})
	s.logger.Info("identity registered", zap.String("identity_id", identity.ID), zap.String("kind", string(identity.Kind)))

	return s.issue(identity, tokenCtx)
}

// Login authenticates against any kind using the storefront precedence.
func (s *AuthService) Login(ctx context.Context, identifier domain.Identifier, password string) (*AuthResult, error) {
	identity, err := s.authenticate(ctx, "login", identifier, password, LoginPrecedence, nil)
	if err != nil {
		return nil, err
	}
	return s.issue(identity, domain.TokenContextStandard)
}

// BusinessLogin authenticates business owners and issues a business token.
func (s *AuthService) BusinessLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	identity, err := s.authenticate(ctx, "business_login", domain.Identifier{Email: email}, password, []domain.Kind{domain.KindBusinessOwner}, nil)
	if err != nil {
		return nil, err
	}
	return s.issue(identity, domain.TokenContextBusiness)
}

// AdminLogin authenticates with admin-first precedence and requires admin
// access from the resolved record. Login state is only written once access
// is confirmed.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*AdminAuthResult, error) {
	identity, err := s.authenticate(ctx, "admin_login", domain.Identifier{Email: email}, password, AdminPortalPrecedence,
		func(identity *domain.Identity) error {
			if !auth.Evaluate(identity).AdminAccess {
				return domain.ErrInsufficientPermission
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	result, err := s.issue(identity, domain.TokenContextAdminPortal)
	if err != nil {
		return nil, err
	}
	return &AdminAuthResult{AuthResult: *result, AdminLevel: adminLevelOf(identity, result.Capabilities)}, nil
}

// Me reloads the caller and recomputes capabilities.
func (s *AuthService) Me(ctx context.Context, identityID string) (*domain.Identity, auth.Capabilities, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, auth.Capabilities{}, err
	}
	return identity, auth.Evaluate(identity), nil
}

// ChangePassword re-verifies the current password. A new password equal to
// the current one is rejected before anything is written.
func (s *AuthService) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", domain.ErrInvalidInput)
	}
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	if err := s.verifier.Check(ctx, identity, currentPassword); err != nil {
		return err
	}
	if auth.ComparePassword(identity.PasswordHash, newPassword) == nil {
		return domain.ErrPasswordUnchanged
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: events.EventPasswordChanged, IdentityID: identity.ID})
	return nil
}

// RequestPasswordReset returns before any lookup happens. Issuing the token
// runs in the background so known and unknown emails take the same time.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	detached := context.WithoutCancel(ctx)
	s.background(func() { s.issueReset(detached, email) })
	return nil
}

func (s *AuthService) issueReset(ctx context.Context, email string) {
	identity, err := s.resolver.Resolve(ctx, domain.Identifier{Email: email}, LoginPrecedence)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("password reset lookup failed", zap.Error(err))
		}
		return
	}
	if !identity.IsActive {
		return
	}

	value, err := newOpaqueToken()
	if err != nil {
		s.logger.Error("password reset token generation failed", zap.Error(err))
		return
	}
	token := &domain.PasswordResetToken{
		IdentityID: identity.ID,
		Token:      value,
		ExpiresAt:  s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		s.logger.Error("password reset token persist failed", zap.String("identity_id", identity.ID), zap.Error(err))
		return
	}

	s.publish(ctx, events.Event{
		Type:       events.EventPasswordResetRequested,
		IdentityID: identity.ID,
		Payload:    events.PasswordResetPayload{Email: identity.Email, Token: token.Token, ExpiresAt: token.ExpiresAt},
	})
}

// ResetPassword consumes a reset token and sets a new password. Lockout state
// is cleared along with the hash.
func (s *AuthService) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", domain.ErrInvalidInput)
	}
	token, err := s.resets.GetByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}
	if token.UsedAt != nil {
		return domain.ErrTokenInvalid
	}
	if s.now().After(token.ExpiresAt) {
		return domain.ErrTokenExpired
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.resets.MarkUsed(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}
	if err := s.identities.UpdatePassword(ctx, token.IdentityID, hash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}
	s.publish(ctx, events.Event{Type: events.EventPasswordChanged, IdentityID: token.IdentityID})
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// authenticate resolves and checks the credential. gate, when set, runs after
// a correct password and before the successful login is recorded.
func (s *AuthService) authenticate(
	ctx context.Context,
	flow string,
	identifier domain.Identifier,
	password string,
	precedence []domain.Kind,
	gate func(*domain.Identity) error,
) (*domain.Identity, error) {
	identity, err := s.resolver.Resolve(ctx, identifier, precedence)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.verifier.Burn(password)
			s.metrics.RecordAuth(flow, "unknown")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.verifier.Check(ctx, identity, password); err != nil {
		s.metrics.RecordAuth(flow, outcomeOf(err))
		s.logger.Info("authentication failed",
			zap.String("flow", flow),
			zap.String("identity_id", identity.ID),
			zap.String("reason", outcomeOf(err)))
		return nil, err
	}
	if gate != nil {
		if err := gate(identity); err != nil {
			s.metrics.RecordAuth(flow, "forbidden")
			s.logger.Info("authentication rejected after credential check",
				zap.String("flow", flow),
				zap.String("identity_id", identity.ID))
			return nil, err
		}
	}
	if err := s.verifier.Succeed(ctx, identity); err != nil {
		return nil, err
	}
	s.metrics.RecordAuth(flow, "success")
	return identity, nil
}

func (s *AuthService) issue(identity *domain.Identity, tokenCtx domain.TokenContext) (*AuthResult, error) {
	caps := auth.Evaluate(identity)
	session, err := s.tokenMgr.GenerateToken(identity, caps, tokenCtx)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Identity: identity, Capabilities: caps, Session: session}, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInactive):
		return "inactive"
	case errors.Is(err, domain.ErrNoCredential):
		return "no_credential"
	case errors.Is(err, domain.ErrLocked):
		return "locked"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}

// adminLevelOf names the admin tier for the portal. Identities outside the
// admin kind report "super_admin" under the bypass and "delegated" otherwise.
func adminLevelOf(identity *domain.Identity, caps auth.Capabilities) string {
	if identity.Kind == domain.KindAdmin {
		if identity.IsSuperAdminRecord() {
			return string(domain.AdminLevelSuperAdmin)
		}
		if level := identity.AdminLevel(); level != "" {
			return string(level)
		}
		return string(domain.AdminLevelAdmin)
	}
	if caps.SuperAdmin {
		return string(domain.AdminLevelSuperAdmin)
	}
	return "delegated"
}
