package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInactive               = errors.New("identity inactive")
	ErrNoCredential           = errors.New("identity has no password")
	ErrLocked                 = errors.New("identity locked")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrAlreadyExists          = errors.New("identity already exists")
	ErrInviteExpired          = errors.New("invitation expired")
	ErrInviteNotPending       = errors.New("invitation is not pending")
	ErrTokenInvalid           = errors.New("token invalid")
	ErrTokenExpired           = errors.New("token expired")
	ErrPasswordUnchanged      = errors.New("new password must differ from current password")
	ErrInvalidInput           = errors.New("invalid input")
)
