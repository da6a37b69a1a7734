package domain

import (
	"strings"
	"time"
)

// Kind partitions identities. It is fixed at creation.
type Kind string

const (
	KindCustomer      Kind = "customer"
	KindBusinessOwner Kind = "business_owner"
	KindManager       Kind = "manager"
	KindSupport       Kind = "support"
	KindViewer        Kind = "viewer"
	KindAdmin         Kind = "admin"
)

// AllKinds lists every kind in login precedence order.
var AllKinds = []Kind{KindCustomer, KindBusinessOwner, KindManager, KindSupport, KindViewer, KindAdmin}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// DefaultRole is the role string assigned to new identities of this kind.
func (k Kind) DefaultRole() string {
	return string(k)
}

// AdminLevel enumerates tiers within the admin kind.
type AdminLevel string

const (
	AdminLevelSuperAdmin AdminLevel = "super_admin"
	AdminLevelAdmin      AdminLevel = "admin"
	AdminLevelModerator  AdminLevel = "moderator"
)

// Department enumerates manager departments.
type Department string

const (
	DepartmentGeneral         Department = "general"
	DepartmentSales           Department = "sales"
	DepartmentInventory       Department = "inventory"
	DepartmentCustomerService Department = "customer_service"
	DepartmentMarketing       Department = "marketing"
)

// SupportLevel enumerates support tiers.
type SupportLevel string

const (
	SupportLevelTier1      SupportLevel = "tier1"
	SupportLevelTier2      SupportLevel = "tier2"
	SupportLevelTier3      SupportLevel = "tier3"
	SupportLevelSupervisor SupportLevel = "supervisor"
)

// AccessLevel enumerates viewer access tiers.
type AccessLevel string

const (
	AccessLevelBasic    AccessLevel = "basic"
	AccessLevelAdvanced AccessLevel = "advanced"
	AccessLevelFull     AccessLevel = "full"
)

// CustomerProfile holds customer-only fields.
type CustomerProfile struct {
	Phone string `json:"phone,omitempty"`
}

// BusinessProfile holds business owner fields.
type BusinessProfile struct {
	BusinessName string `json:"business_name"`
	BusinessType string `json:"business_type,omitempty"`
	IsVerified   bool   `json:"is_verified"`
}

// ManagerProfile holds manager fields.
type ManagerProfile struct {
	Department Department `json:"department"`
}

// SupportProfile holds support fields.
type SupportProfile struct {
	Level SupportLevel `json:"level"`
}

// ViewerProfile holds viewer fields.
type ViewerProfile struct {
	AccessLevel AccessLevel `json:"access_level"`
}

// AdminProfile holds admin fields.
type AdminProfile struct {
	AdminLevel AdminLevel `json:"admin_level"`
	SuperAdmin bool       `json:"superadmin"`
}

// Extension is the kind-specific payload. Only the field matching the
// identity's kind is expected to be set.
type Extension struct {
	Customer      *CustomerProfile `json:"customer,omitempty"`
	BusinessOwner *BusinessProfile `json:"business_owner,omitempty"`
	Manager       *ManagerProfile  `json:"manager,omitempty"`
	Support       *SupportProfile  `json:"support,omitempty"`
	Viewer        *ViewerProfile   `json:"viewer,omitempty"`
	Admin         *AdminProfile    `json:"admin,omitempty"`
}

// Identity is a single authenticatable principal of any kind.
type Identity struct {
	ID            string
	Kind          Kind
	Email         string
	Username      string
	Name          string
	PasswordHash  string
	Role          string
	IsAdmin       bool
	Permissions   []PermissionEntry
	IsActive      bool
	LoginAttempts int
	LockUntil     *time.Time
	LastLogin     *time.Time
	Extension     Extension
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLocked reports whether the lockout window is still open at now.
func (i *Identity) IsLocked(now time.Time) bool {
	return i.LockUntil != nil && i.LockUntil.After(now)
}

// AdminLevel returns the admin tier, or empty for non-admin kinds.
func (i *Identity) AdminLevel() AdminLevel {
	if i.Kind != KindAdmin || i.Extension.Admin == nil {
		return ""
	}
	return i.Extension.Admin.AdminLevel
}

// IsSuperAdminRecord reports whether the admin extension carries the superadmin flag.
func (i *Identity) IsSuperAdminRecord() bool {
	return i.Kind == KindAdmin && i.Extension.Admin != nil && i.Extension.Admin.SuperAdmin
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identifier carries the attributes used to locate an identity. Non-empty
// fields are OR-ed together.
type Identifier struct {
	Email    string
	Username string
}

// Empty reports whether no attribute is set.
func (id Identifier) Empty() bool {
	return strings.TrimSpace(id.Email) == "" && strings.TrimSpace(id.Username) == ""
}

// IdentityFilter narrows identity listings.
type IdentityFilter struct {
	Kind    *Kind
	Active  *bool
	IsAdmin *bool
	Limit   int
	Offset  int
}
