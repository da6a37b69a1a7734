package auth

import "github.com/spec-kit/storefront-identity/internal/domain"

var crud = []domain.Action{domain.ActionRead, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete}

func entry(r domain.Resource, actions ...domain.Action) domain.PermissionEntry {
	return domain.PermissionEntry{Resource: r, Actions: actions}
}

var adminTemplates = map[domain.AdminLevel][]domain.PermissionEntry{
	domain.AdminLevelSuperAdmin: {
		entry(domain.ResourceProducts, crud...),
		entry(domain.ResourceCategories, crud...),
		entry(domain.ResourceOrders, crud...),
		entry(domain.ResourceUsers, crud...),
		entry(domain.ResourceAdminManagement, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete, domain.ActionManage),
		entry(domain.ResourceBusinessManagement, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete, domain.ActionApprove, domain.ActionManage),
		entry(domain.ResourceSystemConfig, domain.ActionRead, domain.ActionUpdate, domain.ActionManage),
		entry(domain.ResourceSecurity, domain.ActionRead, domain.ActionUpdate, domain.ActionManage),
		entry(domain.ResourceBilling, domain.ActionRead, domain.ActionUpdate, domain.ActionManage),
		entry(domain.ResourceAnalytics, domain.ActionRead, domain.ActionExport),
		entry(domain.ResourceSettings, domain.ActionRead, domain.ActionUpdate, domain.ActionManage),
	},
	domain.AdminLevelAdmin: {
		entry(domain.ResourceProducts, crud...),
		entry(domain.ResourceCategories, crud...),
		entry(domain.ResourceOrders, crud...),
		entry(domain.ResourceUsers, crud...),
		entry(domain.ResourceAdminManagement, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate),
		entry(domain.ResourceBusinessManagement, domain.ActionRead, domain.ActionUpdate, domain.ActionApprove),
		entry(domain.ResourceSecurity, domain.ActionRead),
		entry(domain.ResourceBilling, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceAnalytics, domain.ActionRead, domain.ActionExport),
		entry(domain.ResourceSettings, domain.ActionRead, domain.ActionUpdate),
	},
	domain.AdminLevelModerator: {
		entry(domain.ResourceProducts, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceCategories, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceOrders, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceUsers, domain.ActionRead),
		entry(domain.ResourceCustomers, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceAdminManagement, domain.ActionRead),
		entry(domain.ResourceAnalytics, domain.ActionRead),
	},
}

var managerTemplates = map[domain.Department][]domain.PermissionEntry{
	domain.DepartmentGeneral: {
		entry(domain.ResourceProducts, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate),
		entry(domain.ResourceCategories, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate),
		entry(domain.ResourceOrders, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceInventory, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceAnalytics, domain.ActionRead),
		entry(domain.ResourceReports, domain.ActionRead),
	},
	domain.DepartmentSales: {
		entry(domain.ResourceProducts, domain.ActionRead),
		entry(domain.ResourceOrders, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate, domain.ActionApprove),
		entry(domain.ResourceCustomers, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceAnalytics, domain.ActionRead, domain.ActionExport),
		entry(domain.ResourceReports, domain.ActionRead, domain.ActionExport),
	},
	domain.DepartmentInventory: {
		entry(domain.ResourceProducts, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate),
		entry(domain.ResourceCategories, domain.ActionRead),
		entry(domain.ResourceInventory, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete, domain.ActionManage),
		entry(domain.ResourceReports, domain.ActionRead),
	},
	domain.DepartmentCustomerService: {
		entry(domain.ResourceOrders, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceCustomers, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceTickets, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate, domain.ActionManage),
	},
	domain.DepartmentMarketing: {
		entry(domain.ResourceProducts, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceCategories, domain.ActionRead),
		entry(domain.ResourceAnalytics, domain.ActionRead, domain.ActionExport),
		entry(domain.ResourceReports, domain.ActionRead),
	},
}

var supportTemplates = map[domain.SupportLevel][]domain.PermissionEntry{
	domain.SupportLevelTier1: {
		entry(domain.ResourceCustomers, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceTickets, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate),
	},
	domain.SupportLevelTier2: {
		entry(domain.ResourceCustomers, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceTickets, crud...),
		entry(domain.ResourceOrders, domain.ActionRead, domain.ActionUpdate),
	},
	domain.SupportLevelTier3: {
		entry(domain.ResourceCustomers, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceTickets, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete, domain.ActionManage),
		entry(domain.ResourceOrders, domain.ActionRead, domain.ActionUpdate),
		entry(domain.ResourceProducts, domain.ActionRead),
	},
	domain.SupportLevelSupervisor: {
		entry(domain.ResourceCustomers, domain.ActionRead, domain.ActionUpdate, domain.ActionDelete),
		entry(domain.ResourceTickets, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete, domain.ActionManage, domain.ActionApprove),
		entry(domain.ResourceOrders, domain.ActionRead, domain.ActionUpdate, domain.ActionApprove),
		entry(domain.ResourceUsers, domain.ActionRead),
		entry(domain.ResourceReports, domain.ActionRead),
	},
}

var viewerTemplates = map[domain.AccessLevel][]domain.PermissionEntry{
	domain.AccessLevelBasic: {
		entry(domain.ResourceProducts, domain.ActionRead),
		entry(domain.ResourceCategories, domain.ActionRead),
	},
	domain.AccessLevelAdvanced: {
		entry(domain.ResourceProducts, domain.ActionRead),
		entry(domain.ResourceCategories, domain.ActionRead),
		entry(domain.ResourceOrders, domain.ActionRead),
		entry(domain.ResourceAnalytics, domain.ActionRead),
	},
	domain.AccessLevelFull: {
		entry(domain.ResourceProducts, domain.ActionRead),
		entry(domain.ResourceCategories, domain.ActionRead),
		entry(domain.ResourceOrders, domain.ActionRead),
		entry(domain.ResourceAnalytics, domain.ActionRead),
		entry(domain.ResourceCustomers, domain.ActionRead),
		entry(domain.ResourceInventory, domain.ActionRead),
		entry(domain.ResourceReports, domain.ActionRead, domain.ActionExport),
	},
}

var businessOwnerTemplate = []domain.PermissionEntry{
	entry(domain.ResourceProducts, crud...),
	entry(domain.ResourceCategories, domain.ActionRead),
	entry(domain.ResourceOrders, domain.ActionRead, domain.ActionUpdate),
	entry(domain.ResourceInventory, domain.ActionRead, domain.ActionCreate, domain.ActionUpdate),
	entry(domain.ResourceAnalytics, domain.ActionRead),
	entry(domain.ResourceReports, domain.ActionRead),
}

var customerTemplate = []domain.PermissionEntry{
	entry(domain.ResourceProducts, domain.ActionRead),
	entry(domain.ResourceCategories, domain.ActionRead),
	entry(domain.ResourceOrders, domain.ActionRead, domain.ActionCreate),
}

// NormalizeExtension fills in the default sub-level for kinds that carry one.
func NormalizeExtension(kind domain.Kind, ext domain.Extension) domain.Extension {
	switch kind {
	case domain.KindCustomer:
		if ext.Customer == nil {
			ext.Customer = &domain.CustomerProfile{}
		}
	case domain.KindBusinessOwner:
		if ext.BusinessOwner == nil {
			ext.BusinessOwner = &domain.BusinessProfile{}
		}
	case domain.KindManager:
		if ext.Manager == nil {
			ext.Manager = &domain.ManagerProfile{}
		}
		if _, ok := managerTemplates[ext.Manager.Department]; !ok {
			ext.Manager.Department = domain.DepartmentGeneral
		}
	case domain.KindSupport:
		if ext.Support == nil {
			ext.Support = &domain.SupportProfile{}
		}
		if _, ok := supportTemplates[ext.Support.Level]; !ok {
			ext.Support.Level = domain.SupportLevelTier1
		}
	case domain.KindViewer:
		if ext.Viewer == nil {
			ext.Viewer = &domain.ViewerProfile{}
		}
		if _, ok := viewerTemplates[ext.Viewer.AccessLevel]; !ok {
			ext.Viewer.AccessLevel = domain.AccessLevelBasic
		}
	case domain.KindAdmin:
		if ext.Admin == nil {
			ext.Admin = &domain.AdminProfile{}
		}
		if _, ok := adminTemplates[ext.Admin.AdminLevel]; !ok {
			ext.Admin.AdminLevel = domain.AdminLevelAdmin
		}
	}
	return ext
}

// DefaultPermissions returns the template for a kind and its extension
// sub-level. The result is a fresh copy.
func DefaultPermissions(kind domain.Kind, ext domain.Extension) []domain.PermissionEntry {
	ext = NormalizeExtension(kind, ext)
	switch kind {
	case domain.KindCustomer:
		return domain.ClonePermissions(customerTemplate)
	case domain.KindBusinessOwner:
		return domain.ClonePermissions(businessOwnerTemplate)
	case domain.KindManager:
		return domain.ClonePermissions(managerTemplates[ext.Manager.Department])
	case domain.KindSupport:
		return domain.ClonePermissions(supportTemplates[ext.Support.Level])
	case domain.KindViewer:
		return domain.ClonePermissions(viewerTemplates[ext.Viewer.AccessLevel])
	case domain.KindAdmin:
		return domain.ClonePermissions(adminTemplates[ext.Admin.AdminLevel])
	default:
		return nil
	}
}

// InviteTemplate returns the default permissions for an invitation role.
func InviteTemplate(role domain.InviteRole) []domain.PermissionEntry {
	kind, ok := role.Kind()
	if !ok {
		return nil
	}
	return DefaultPermissions(kind, domain.Extension{})
}

// AssignDefaultPermissions populates an identity that carries no explicit
// permissions. It is called once from the creation pipeline and reports
// whether anything was assigned.
func AssignDefaultPermissions(identity *domain.Identity) bool {
	identity.Extension = NormalizeExtension(identity.Kind, identity.Extension)
	if len(identity.Permissions) > 0 {
		return false
	}
	identity.Permissions = DefaultPermissions(identity.Kind, identity.Extension)
	return true
}

// ValidatePermissions rejects unknown resources, unknown actions and empty
// action lists.
func ValidatePermissions(perms []domain.PermissionEntry) error {
	for _, p := range perms {
		if !p.Resource.Valid() {
			return invalidPermission("unknown resource %q", p.Resource)
		}
		if len(p.Actions) == 0 {
			return invalidPermission("resource %q has no actions", p.Resource)
		}
		for _, a := range p.Actions {
			if !a.Valid() {
				return invalidPermission("unknown action %q on %q", a, p.Resource)
			}
		}
	}
	return nil
}
