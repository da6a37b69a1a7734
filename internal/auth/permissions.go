package auth

import (
	"fmt"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// Capabilities is the effective authorization state of an identity.
type Capabilities struct {
	SuperAdmin  bool           `json:"super_admin"`
	AdminAccess bool           `json:"admin_access"`
	Grants      []domain.Grant `json:"grants"`
}

// Evaluate computes capabilities from the identity's role, admin flag, kind
// and explicit permissions. It never mutates the identity.
func Evaluate(identity *domain.Identity) Capabilities {
	if identity == nil {
		return Capabilities{}
	}

	if isSuperAdmin(identity) {
		return Capabilities{SuperAdmin: true, AdminAccess: true, Grants: allGrants()}
	}

	caps := Capabilities{Grants: flatten(identity.Permissions)}
	caps.AdminAccess = identity.Kind == domain.KindAdmin ||
		caps.HasPermission(domain.ResourceAdminManagement, domain.ActionRead)
	return caps
}

// HasPermission reports whether the capability set covers resource:action.
func (c Capabilities) HasPermission(resource domain.Resource, action domain.Action) bool {
	if c.SuperAdmin {
		return true
	}
	for _, g := range c.Grants {
		if g.Resource == resource && g.Action == action {
			return true
		}
	}
	return false
}

// Entries regroups grants by resource, preserving first-seen order.
func (c Capabilities) Entries() []domain.PermissionEntry {
	index := make(map[domain.Resource]int)
	var out []domain.PermissionEntry
	for _, g := range c.Grants {
		i, ok := index[g.Resource]
		if !ok {
			index[g.Resource] = len(out)
			out = append(out, domain.PermissionEntry{Resource: g.Resource})
			i = len(out) - 1
		}
		out[i].Actions = append(out[i].Actions, g.Action)
	}
	return out
}

// HasPermission evaluates a single check against an identity.
func HasPermission(identity *domain.Identity, resource domain.Resource, action domain.Action) bool {
	return Evaluate(identity).HasPermission(resource, action)
}

func isSuperAdmin(identity *domain.Identity) bool {
	if identity.Role == string(domain.KindAdmin) && identity.IsAdmin {
		return true
	}
	return identity.IsSuperAdminRecord()
}

func flatten(perms []domain.PermissionEntry) []domain.Grant {
	seen := make(map[domain.Grant]struct{})
	grants := make([]domain.Grant, 0, len(perms)*2)
	for _, p := range perms {
		for _, a := range p.Actions {
			g := domain.Grant{Resource: p.Resource, Action: a}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			grants = append(grants, g)
		}
	}
	return grants
}

func allGrants() []domain.Grant {
	grants := make([]domain.Grant, 0, len(domain.AllResources)*len(domain.AllActions))
	for _, r := range domain.AllResources {
		for _, a := range domain.AllActions {
			grants = append(grants, domain.Grant{Resource: r, Action: a})
		}
	}
	return grants
}

func invalidPermission(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}
