package domain

import "time"

// InviteStatus enumerates invitation lifecycle states.
type InviteStatus string

const (
	InviteStatusPending   InviteStatus = "pending"
	InviteStatusAccepted  InviteStatus = "accepted"
	InviteStatusExpired   InviteStatus = "expired"
	InviteStatusCancelled InviteStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s InviteStatus) Terminal() bool {
	return s != InviteStatusPending
}

// InviteRole is the staff role an invitation grants.
type InviteRole string

const (
	InviteRoleAdmin   InviteRole = "admin"
	InviteRoleManager InviteRole = "manager"
	InviteRoleSupport InviteRole = "support"
	InviteRoleViewer  InviteRole = "viewer"
)

// Kind maps the invite role onto the identity kind created on acceptance.
func (r InviteRole) Kind() (Kind, bool) {
	switch r {
	case InviteRoleAdmin:
		return KindAdmin, true
	case InviteRoleManager:
		return KindManager, true
	case InviteRoleSupport:
		return KindSupport, true
	case InviteRoleViewer:
		return KindViewer, true
	default:
		return "", false
	}
}

// AdminInvitation is a time-boxed offer to join the staff.
type AdminInvitation struct {
	ID          string
	Email       string
	Role        InviteRole
	Permissions []PermissionEntry
	InvitedBy   string
	Token       string
	ExpiresAt   time.Time
	Status      InviteStatus
	AcceptedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExpiredAt reports whether the invite is pending but past its deadline.
func (i *AdminInvitation) ExpiredAt(now time.Time) bool {
	return i.Status == InviteStatusPending && now.After(i.ExpiresAt)
}
