package domain

// Resource names a protected area of the storefront.
type Resource string

const (
	ResourceProducts           Resource = "products"
	ResourceCategories         Resource = "categories"
	ResourceOrders             Resource = "orders"
	ResourceUsers              Resource = "users"
	ResourceCustomers          Resource = "customers"
	ResourceTickets            Resource = "tickets"
	ResourceAnalytics          Resource = "analytics"
	ResourceReports            Resource = "reports"
	ResourceSettings           Resource = "settings"
	ResourceInventory          Resource = "inventory"
	ResourceAdminManagement    Resource = "admin_management"
	ResourceBusinessManagement Resource = "business_management"
	ResourceSystemConfig       Resource = "system_config"
	ResourceSecurity           Resource = "security"
	ResourceBilling            Resource = "billing"
)

// Action names an operation on a resource.
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionManage  Action = "manage"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
)

// AllResources lists every known resource in declaration order.
var AllResources = []Resource{
	ResourceProducts, ResourceCategories, ResourceOrders, ResourceUsers,
	ResourceCustomers, ResourceTickets, ResourceAnalytics, ResourceReports,
	ResourceSettings, ResourceInventory, ResourceAdminManagement,
	ResourceBusinessManagement, ResourceSystemConfig, ResourceSecurity, ResourceBilling,
}

// AllActions lists every known action in declaration order.
var AllActions = []Action{
	ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionManage, ActionApprove, ActionExport,
}

// Valid reports whether r is a known resource.
func (r Resource) Valid() bool {
	for _, known := range AllResources {
		if r == known {
			return true
		}
	}
	return false
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range AllActions {
		if a == known {
			return true
		}
	}
	return false
}

// PermissionEntry is a stored grant list for one resource.
type PermissionEntry struct {
	Resource Resource `json:"resource"`
	Actions  []Action `json:"actions"`
}

// Allows reports whether the entry covers action.
func (p PermissionEntry) Allows(action Action) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Grant is a single (resource, action) capability.
type Grant struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String renders the grant as resource:action.
func (g Grant) String() string {
	return string(g.Resource) + ":" + string(g.Action)
}

// ClonePermissions deep-copies a permission list.
func ClonePermissions(perms []PermissionEntry) []PermissionEntry {
	if perms == nil {
		return nil
	}
	out := make([]PermissionEntry, len(perms))
	for i, p := range perms {
		out[i] = PermissionEntry{Resource: p.Resource, Actions: append([]Action(nil), p.Actions...)}
	}
	return out
}
