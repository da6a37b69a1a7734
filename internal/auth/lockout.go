package auth

import (
	"time"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// LockoutPolicy holds the failed-attempt limits.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks for two hours after five consecutive failures.
var DefaultLockoutPolicy = LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour}

func (p LockoutPolicy) normalized() LockoutPolicy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultLockoutPolicy.Threshold
	}
	if p.Duration <= 0 {
		p.Duration = DefaultLockoutPolicy.Duration
	}
	return p
}

// Precheck enforces the conditions that must hold before a password is
// compared at all.
func (p LockoutPolicy) Precheck(identity *domain.Identity, now time.Time) error {
	if !identity.IsActive {
		return domain.ErrInactive
	}
	if identity.PasswordHash == "" {
		return domain.ErrNoCredential
	}
	if identity.IsLocked(now) {
		return domain.ErrLocked
	}
	return nil
}

// RegisterFailure records a failed attempt on the identity and reports
// whether it is now locked. An elapsed lock restarts the count at one.
func (p LockoutPolicy) RegisterFailure(identity *domain.Identity, now time.Time) bool {
	p = p.normalized()
	if identity.LockUntil != nil && !identity.LockUntil.After(now) {
		identity.LoginAttempts = 1
		identity.LockUntil = nil
	} else {
		identity.LoginAttempts++
	}

	if identity.LoginAttempts >= p.Threshold && !identity.IsLocked(now) {
		until := now.Add(p.Duration)
		identity.LockUntil = &until
		return true
	}
	return identity.IsLocked(now)
}

// RegisterSuccess clears lockout state and stamps the login time.
func (p LockoutPolicy) RegisterSuccess(identity *domain.Identity, now time.Time) {
	identity.LoginAttempts = 0
	identity.LockUntil = nil
	stamp := now
	identity.LastLogin = &stamp
}
