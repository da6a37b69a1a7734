package domain

import "time"

// TokenContext identifies the flow that issued a session token. Lifetimes are
// keyed by context rather than by identity kind.
type TokenContext string

const (
	TokenContextStandard    TokenContext = "standard"
	TokenContextBusiness    TokenContext = "business"
	TokenContextAdminPortal TokenContext = "admin_portal"
)

// Session describes an issued token.
type Session struct {
	Token     string
	Context   TokenContext
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PasswordResetToken is a persisted, single-use reset credential.
type PasswordResetToken struct {
	ID         string
	IdentityID string
	Token      string
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}
