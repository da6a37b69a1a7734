package memory

import "github.com/spec-kit/storefront-identity/internal/domain"

func cloneIdentity(in *domain.Identity) *domain.Identity {
	out := *in
	out.Permissions = domain.ClonePermissions(in.Permissions)
	out.LockUntil = cloneTime(in.LockUntil)
	out.LastLogin = cloneTime(in.LastLogin)

	ext := in.Extension
	if ext.Customer != nil {
		v := *ext.Customer
		ext.Customer = &v
	}
	if ext.BusinessOwner != nil {
		v := *ext.BusinessOwner
		ext.BusinessOwner = &v
	}
	if ext.Manager != nil {
		v := *ext.Manager
		ext.Manager = &v
	}
	if ext.Support != nil {
		v := *ext.Support
		ext.Support = &v
	}
	if ext.Viewer != nil {
		v := *ext.Viewer
		ext.Viewer = &v
	}
	if ext.Admin != nil {
		v := *ext.Admin
		ext.Admin = &v
	}
	out.Extension = ext
	return &out
}

func cloneInvitation(in *domain.AdminInvitation) *domain.AdminInvitation {
	out := *in
	out.Permissions = domain.ClonePermissions(in.Permissions)
	out.AcceptedAt = cloneTime(in.AcceptedAt)
	return &out
}

func cloneResetToken(in *domain.PasswordResetToken) *domain.PasswordResetToken {
	out := *in
	out.UsedAt = cloneTime(in.UsedAt)
	return &out
}

func cloneTime[T any](in *T) *T {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = pageBounds(limit, offset)
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
