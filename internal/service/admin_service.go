package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/config"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/events"
	"github.com/spec-kit/storefront-identity/internal/repository"
)

// privilegedResources are removed from an identity on demotion.
var privilegedResources = map[domain.Resource]struct{}{
	domain.ResourceAdminManagement: {},
	domain.ResourceSystemConfig:    {},
	domain.ResourceSecurity:        {},
	domain.ResourceBilling:         {},
}

// PromoteInput selects the target kind and its sub-level.
type PromoteInput struct {
	Kind        domain.Kind
	AdminLevel  domain.AdminLevel
	Department  domain.Department
	Level       domain.SupportLevel
	AccessLevel domain.AccessLevel
	Permissions []domain.PermissionEntry
}

// AdminService implements identity administration for the admin portal.
type AdminService struct {
	identities repository.IdentityRepository
	resolver   *IdentityResolver
	factory    *identityFactory
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AdminDependencies encapsulates collaborators for administration.
type AdminDependencies struct {
	IdentityRepo repository.IdentityRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewAdminService constructs the service.
func NewAdminService(cfg config.Config, deps AdminDependencies) *AdminService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	resolver := NewIdentityResolver(deps.IdentityRepo)
	return &AdminService{
		identities: deps.IdentityRepo,
		resolver:   resolver,
		factory:    &identityFactory{identities: deps.IdentityRepo, resolver: resolver, bcryptCost: cfg.Auth.BcryptCost},
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// ListIdentities returns identities matching filter.
func (s *AdminService) ListIdentities(ctx context.Context, filter domain.IdentityFilter) ([]domain.Identity, error) {
	return s.identities.List(ctx, filter)
}

// GetIdentity loads one identity by id.
func (s *AdminService) GetIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	return s.identities.GetByID(ctx, id)
}

// LookupByEmail resolves an email with admin-first precedence.
func (s *AdminService) LookupByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return s.resolver.Resolve(ctx, domain.Identifier{Email: email}, AdminPortalPrecedence)
}

// Promote moves an identity to another kind. A new record is created in the
// target kind carrying the same credentials, and the old record is
// deactivated. The two writes are not atomic.
func (s *AdminService) Promote(ctx context.Context, actor *auth.Principal, id string, input PromoteInput) (*domain.Identity, error) {
	if !input.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, input.Kind)
	}
	if actor.Identity.ID == id {
		return nil, fmt.Errorf("%w: cannot promote yourself", domain.ErrInsufficientPermission)
	}
	if input.Kind == domain.KindAdmin && !actor.Capabilities.SuperAdmin {
		return nil, domain.ErrInsufficientPermission
	}

	current, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return nil, domain.ErrInactive
	}
	if current.Kind == input.Kind {
		return nil, fmt.Errorf("%w: identity is already %s", domain.ErrInvalidInput, input.Kind)
	}

	promoted := &domain.Identity{
		Kind:         input.Kind,
		Email:        current.Email,
		Username:     current.Username,
		Name:         current.Name,
		PasswordHash: current.PasswordHash,
		IsAdmin:      input.Kind == domain.KindAdmin && input.AdminLevel == domain.AdminLevelSuperAdmin,
		Permissions:  domain.ClonePermissions(input.Permissions),
		IsActive:     true,
		Extension:    promotedExtension(input),
	}
	if err := s.factory.create(ctx, promoted, createOptions{}); err != nil {
		return nil, err
	}

	current.IsActive = false
	if err := s.identities.Update(ctx, current); err != nil {
		s.logger.Error("deactivate after promotion failed",
			zap.String("identity_id", current.ID),
			zap.String("promoted_id", promoted.ID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("identity promoted",
		zap.String("actor_id", actor.Identity.ID),
		zap.String("previous_id", current.ID),
		zap.String("identity_id", promoted.ID),
		zap.String("kind", string(promoted.Kind)))
	s.publish(ctx, events.Event{
		Type:       events.EventIdentityPromoted,
		IdentityID: promoted.ID,
		ActorID:    actor.Identity.ID,
		Payload: events.IdentityPromotedPayload{
			PreviousID:   current.ID,
			PreviousKind: current.Kind,
			NewKind:      promoted.Kind,
		},
	})
	return promoted, nil
}

// Demote clears admin signals from an identity. Admin-kind identities are
// deactivated as well, since that kind alone grants portal access.
func (s *AdminService) Demote(ctx context.Context, actor *auth.Principal, id string) (*domain.Identity, error) {
	if actor.Identity.ID == id {
		return nil, fmt.Errorf("%w: cannot demote yourself", domain.ErrInsufficientPermission)
	}
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if auth.Evaluate(identity).SuperAdmin && !actor.Capabilities.SuperAdmin {
		return nil, domain.ErrInsufficientPermission
	}

	identity.IsAdmin = false
	identity.Role = identity.Kind.DefaultRole()
	identity.Permissions = withoutPrivileged(identity.Permissions)
	if identity.Kind == domain.KindAdmin {
		if identity.Extension.Admin != nil {
			identity.Extension.Admin.SuperAdmin = false
		}
		identity.IsActive = false
	}
	if err := s.identities.Update(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("identity demoted", zap.String("actor_id", actor.Identity.ID), zap.String("identity_id", identity.ID))
	s.publish(ctx, events.Event{Type: events.EventIdentityDemoted, IdentityID: identity.ID, ActorID: actor.Identity.ID})
	return identity, nil
}

// UpdatePermissions replaces the explicit grants of an identity. Callers
// cannot edit their own grants, and only super admins may hand out
// privileged resources.
func (s *AdminService) UpdatePermissions(ctx context.Context, actor *auth.Principal, id string, perms []domain.PermissionEntry) (*domain.Identity, error) {
	if actor.Identity.ID == id {
		return nil, fmt.Errorf("%w: cannot edit your own permissions", domain.ErrInsufficientPermission)
	}
	if err := auth.ValidatePermissions(perms); err != nil {
		return nil, err
	}
	if !actor.Capabilities.SuperAdmin && len(withoutPrivileged(perms)) != len(perms) {
		return nil, domain.ErrInsufficientPermission
	}

	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if auth.Evaluate(identity).SuperAdmin && !actor.Capabilities.SuperAdmin {
		return nil, domain.ErrInsufficientPermission
	}

	identity.Permissions = domain.ClonePermissions(perms)
	if err := s.identities.Update(ctx, identity); err != nil {
		return nil, err
	}
	s.logger.Info("permissions updated",
		zap.String("actor_id", actor.Identity.ID),
		zap.String("identity_id", identity.ID),
		zap.Int("entries", len(perms)))
	return identity, nil
}

// DeleteIdentity removes an identity permanently.
func (s *AdminService) DeleteIdentity(ctx context.Context, actor *auth.Principal, id string) error {
	if actor.Identity.ID == id {
		return fmt.Errorf("%w: cannot delete yourself", domain.ErrInsufficientPermission)
	}
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if auth.Evaluate(identity).SuperAdmin && !actor.Capabilities.SuperAdmin {
		return domain.ErrInsufficientPermission
	}
	if err := s.identities.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("identity deleted", zap.String("actor_id", actor.Identity.ID), zap.String("identity_id", id))
	return nil
}

func (s *AdminService) publish(ctx context.Context, event events.Event) {
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

func promotedExtension(input PromoteInput) domain.Extension {
	var ext domain.Extension
	switch input.Kind {
	case domain.KindManager:
		ext.Manager = &domain.ManagerProfile{Department: input.Department}
	case domain.KindSupport:
		ext.Support = &domain.SupportProfile{Level: input.Level}
	case domain.KindViewer:
		ext.Viewer = &domain.ViewerProfile{AccessLevel: input.AccessLevel}
	case domain.KindAdmin:
		ext.Admin = &domain.AdminProfile{
			AdminLevel: input.AdminLevel,
			SuperAdmin: input.AdminLevel == domain.AdminLevelSuperAdmin,
		}
	}
	return auth.NormalizeExtension(input.Kind, ext)
}

func withoutPrivileged(perms []domain.PermissionEntry) []domain.PermissionEntry {
	out := make([]domain.PermissionEntry, 0, len(perms))
	for _, p := range perms {
		if _, ok := privilegedResources[p.Resource]; ok {
			continue
		}
		out = append(out, domain.PermissionEntry{Resource: p.Resource, Actions: append([]domain.Action(nil), p.Actions...)})
	}
	return out
}
