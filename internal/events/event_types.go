package events

import (
	"time"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIdentityCreated        EventType = "identity_created"
	EventIdentityPromoted       EventType = "identity_promoted"
	EventIdentityDemoted        EventType = "identity_demoted"
	EventIdentityLocked         EventType = "identity_locked"
	EventInviteCreated          EventType = "invite_created"
	EventInviteAccepted         EventType = "invite_accepted"
	EventInviteCancelled        EventType = "invite_cancelled"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordChanged        EventType = "password_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IdentityID string      `json:"identity_id,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// IdentityCreatedPayload payload.
type IdentityCreatedPayload struct {
	Kind   domain.Kind `json:"kind"`
	Email  string      `json:"email"`
	Source string      `json:"source"`
}

// IdentityPromotedPayload payload.
type IdentityPromotedPayload struct {
	PreviousID   string      `json:"previous_id"`
	PreviousKind domain.Kind `json:"previous_kind"`
	NewKind      domain.Kind `json:"new_kind"`
}

// IdentityLockedPayload payload.
type IdentityLockedPayload struct {
	LockUntil time.Time `json:"lock_until"`
}

// InvitePayload payload. Token is for delivery only and must not be logged.
type InvitePayload struct {
	InviteID  string            `json:"invite_id"`
	Email     string            `json:"email"`
	Role      domain.InviteRole `json:"role"`
	Token     string            `json:"-"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// PasswordResetPayload payload. Token is for delivery only and must not be logged.
type PasswordResetPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
