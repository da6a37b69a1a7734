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

// CreateInviteInput holds invitation parameters. Nil Permissions selects the
// role's default template.
type CreateInviteInput struct {
	Email       string
	Role        domain.InviteRole
	Permissions []domain.PermissionEntry
}

// AcceptInviteInput carries the credentials chosen by the invitee.
type AcceptInviteInput struct {
	Username string
	Name     string
	Password string
}

// InvitationService manages the staff invitation lifecycle.
type InvitationService struct {
	invites    repository.InvitationRepository
	identities repository.IdentityRepository
	resolver   *IdentityResolver
	factory    *identityFactory
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	inviteTTL  time.Duration
	now        func() time.Time
}

// InvitationDependencies encapsulates collaborators for invitations.
type InvitationDependencies struct {
	InvitationRepo repository.InvitationRepository
	IdentityRepo   repository.IdentityRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Clock          func() time.Time
}

// NewInvitationService constructs the service.
func NewInvitationService(cfg config.Config, deps InvitationDependencies) *InvitationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	ttl := cfg.Auth.InviteTTL()
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	resolver := NewIdentityResolver(deps.IdentityRepo)
	return &InvitationService{
		invites:    deps.InvitationRepo,
		identities: deps.IdentityRepo,
		resolver:   resolver,
		factory:    &identityFactory{identities: deps.IdentityRepo, resolver: resolver, bcryptCost: cfg.Auth.BcryptCost},
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		inviteTTL:  ttl,
		now:        now,
	}
}

// CreateInvite issues a pending invitation. Inviting another admin requires
// admin_management:manage.
func (s *InvitationService) CreateInvite(ctx context.Context, actor *auth.Principal, input CreateInviteInput) (*domain.AdminInvitation, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, ok := input.Role.Kind(); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, input.Role)
	}
	if input.Role == domain.InviteRoleAdmin && !actor.Capabilities.HasPermission(domain.ResourceAdminManagement, domain.ActionManage) {
		return nil, domain.ErrInsufficientPermission
	}

	perms := domain.ClonePermissions(input.Permissions)
	if len(perms) == 0 {
		perms = auth.InviteTemplate(input.Role)
	} else if err := auth.ValidatePermissions(perms); err != nil {
		return nil, err
	}

	exists, err := s.resolver.Exists(ctx, domain.Identifier{Email: email})
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrAlreadyExists
	}

	pending, err := s.invites.FindPendingByEmail(ctx, email)
	switch {
	case err == nil:
		if !s.expireIfDue(ctx, pending) {
			return nil, fmt.Errorf("%w: invitation already pending for %s", domain.ErrAlreadyExists, email)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	token, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	invite := &domain.AdminInvitation{
		Email:       email,
		Role:        input.Role,
		Permissions: perms,
		InvitedBy:   actor.Identity.ID,
		Token:       token,
		ExpiresAt:   s.now().Add(s.inviteTTL),
		Status:      domain.InviteStatusPending,
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, err
	}

	s.metrics.RecordInvitation("created")
	s.logger.Info("invitation created",
		zap.String("invite_id", invite.ID),
		zap.String("role", string(invite.Role)),
		zap.String("invited_by", invite.InvitedBy))
	s.publish(ctx, events.Event{
		Type:    events.EventInviteCreated,
		ActorID: actor.Identity.ID,
		Payload: events.InvitePayload{
			InviteID:  invite.ID,
			Email:     invite.Email,
			Role:      invite.Role,
			Token:     invite.Token,
			ExpiresAt: invite.ExpiresAt,
		},
	})
	return invite, nil
}

// GetInvite looks up an invitation by token, applying lazy expiry.
func (s *InvitationService) GetInvite(ctx context.Context, token string) (*domain.AdminInvitation, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrNotFound
	}
	invite, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	s.expireIfDue(ctx, invite)
	return invite, nil
}

// AcceptInvite creates the invited identity and marks the invitation
// accepted. If the invitation changed state concurrently the new identity is
// removed again.
func (s *InvitationService) AcceptInvite(ctx context.Context, token string, input AcceptInviteInput) (*domain.Identity, error) {
	invite, err := s.GetInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	switch invite.Status {
	case domain.InviteStatusPending:
	case domain.InviteStatusExpired:
		return nil, domain.ErrInviteExpired
	default:
		return nil, domain.ErrInviteNotPending
	}

	kind, _ := invite.Role.Kind()
	identity := &domain.Identity{
		Kind:        kind,
		Email:       invite.Email,
		Username:    input.Username,
		Name:        strings.TrimSpace(input.Name),
		IsActive:    true,
		Permissions: domain.ClonePermissions(invite.Permissions),
	}
	if err := s.factory.create(ctx, identity, createOptions{password: input.Password, checkUnique: true}); err != nil {
		return nil, err
	}

	accepted := s.now()
	invite.Status = domain.InviteStatusAccepted
	invite.AcceptedAt = &accepted
	if err := s.invites.UpdateStatus(ctx, invite); err != nil {
		if derr := s.identities.Delete(ctx, identity.ID); derr != nil {
			s.logger.Error("rollback of accepted identity failed",
				zap.String("identity_id", identity.ID), zap.Error(derr))
		}
		return nil, err
	}

	s.metrics.RecordInvitation("accepted")
	s.logger.Info("invitation accepted", zap.String("invite_id", invite.ID), zap.String("identity_id", identity.ID))
	s.publish(ctx, events.Event{
		Type:       events.EventInviteAccepted,
		IdentityID: identity.ID,
		Payload:    events.InvitePayload{InviteID: invite.ID, Email: invite.Email, Role: invite.Role},
	})
	s.publish(ctx, events.Event{
		Type:       events.EventIdentityCreated,
		IdentityID: identity.ID,
		Payload:    events.IdentityCreatedPayload{Kind: identity.Kind, Email: identity.Email, Source: "invitation"},
	})
	return identity, nil
}

// CancelInvite cancels a pending invitation.
func (s *InvitationService) CancelInvite(ctx context.Context, actor *auth.Principal, id string) error {
	invite, err := s.invites.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.expireIfDue(ctx, invite) {
		return domain.ErrInviteExpired
	}
	if invite.Status.Terminal() {
		return domain.ErrInviteNotPending
	}

	invite.Status = domain.InviteStatusCancelled
	if err := s.invites.UpdateStatus(ctx, invite); err != nil {
		return err
	}
	s.metrics.RecordInvitation("cancelled")
	s.publish(ctx, events.Event{
		Type:    events.EventInviteCancelled,
		ActorID: actor.Identity.ID,
		Payload: events.InvitePayload{InviteID: invite.ID, Email: invite.Email, Role: invite.Role},
	})
	return nil
}

// ListInvites returns invitations, optionally filtered by status. Pending
// invitations past their deadline are flipped to expired on the way out.
func (s *InvitationService) ListInvites(ctx context.Context, status *domain.InviteStatus, limit, offset int) ([]domain.AdminInvitation, error) {
	invites, err := s.invites.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	out := invites[:0]
	for i := range invites {
		s.expireIfDue(ctx, &invites[i])
		if status != nil && invites[i].Status != *status {
			continue
		}
		out = append(out, invites[i])
	}
	return out, nil
}

// expireIfDue flips a pending invitation past its deadline to expired and
// reports whether it did.
func (s *InvitationService) expireIfDue(ctx context.Context, invite *domain.AdminInvitation) bool {
	if !invite.ExpiredAt(s.now()) {
		return false
	}
	invite.Status = domain.InviteStatusExpired
	if err := s.invites.UpdateStatus(ctx, invite); err != nil && !errors.Is(err, domain.ErrInviteNotPending) {
		s.logger.Warn("invitation expiry write failed", zap.String("invite_id", invite.ID), zap.Error(err))
	}
	s.metrics.RecordInvitation("expired")
	return true
}

func (s *InvitationService) publish(ctx context.Context, event events.Event) {
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
