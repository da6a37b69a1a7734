package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-identity/internal/config"
	"github.com/spec-kit/storefront-identity/internal/events"
)

// NotificationService handles emitting notifications for domain events.
// Delivery is stubbed; secrets carried in payloads are never logged.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events and returns the types covered.
func (n *NotificationService) RegisterHandlers() []events.EventType {
	if n.dispatcher == nil {
		return nil
	}
	handlers := []struct {
		eventType events.EventType
		handle    events.EventHandler
	}{
		{events.EventIdentityCreated, n.handleIdentityCreated},
		{events.EventIdentityLocked, n.handleIdentityLocked},
		{events.EventInviteCreated, n.handleInviteCreated},
		{events.EventInviteAccepted, n.handleInviteAccepted},
		{events.EventPasswordResetRequested, n.handlePasswordResetRequested},
		{events.EventPasswordChanged, n.handlePasswordChanged},
		{events.EventIdentityPromoted, n.handleRoleChanged},
		{events.EventIdentityDemoted, n.handleRoleChanged},
	}
	subscribed := make([]events.EventType, 0, len(handlers))
	for _, h := range handlers {
		n.dispatcher.Subscribe(h.eventType, h.handle)
		subscribed = append(subscribed, h.eventType)
	}
	return subscribed
}

func (n *NotificationService) handleIdentityCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("IdentityCreated", zap.String("identity_id", event.IdentityID), zap.Any("payload", event.Payload))
	if p, ok := event.Payload.(events.IdentityCreatedPayload); ok {
		n.sendEmailNotificationStub(ctx, event, p.Email)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleIdentityLocked(ctx context.Context, event events.Event) error {
	n.logger.Warn("IdentityLocked", zap.String("identity_id", event.IdentityID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleInviteCreated(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.InvitePayload)
	if !ok {
		return nil
	}
	n.logger.Info("InviteCreated", zap.String("invite_id", p.InviteID), zap.String("role", string(p.Role)))
	n.sendEmailNotificationStub(ctx, event, p.Email)
	return nil
}

func (n *NotificationService) handleInviteAccepted(ctx context.Context, event events.Event) error {
	n.logger.Info("InviteAccepted", zap.String("identity_id", event.IdentityID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.PasswordResetPayload)
	if !ok {
		return nil
	}
	n.logger.Info("PasswordResetRequested", zap.String("identity_id", event.IdentityID), zap.Time("expires_at", p.ExpiresAt))
	n.sendEmailNotificationStub(ctx, event, p.Email)
	return nil
}

func (n *NotificationService) handlePasswordChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("PasswordChanged", zap.String("identity_id", event.IdentityID))
	return nil
}

func (n *NotificationService) handleRoleChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("RoleChanged",
		zap.String("event_type", string(event.Type)),
		zap.String("identity_id", event.IdentityID),
		zap.String("actor_id", event.ActorID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event, to string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || to == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("identity_id", event.IdentityID),
		zap.String("event_type", string(event.Type)))
}
