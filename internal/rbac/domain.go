package rbac

import (
	"github.com/google/uuid"
)

// Role enumerates the fixed role hierarchy.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleOrgAdmin   Role = "ORG_ADMIN"
	RoleManager    Role = "MANAGER"
	RoleStaff      Role = "STAFF"
	RoleViewer     Role = "VIEWER"
)

var roleLevels = map[Role]int{
	RoleSuperAdmin: 5,
	RoleOrgAdmin:   4,
	RoleManager:    3,
	RoleStaff:      2,
	RoleViewer:     1,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the position of r in the hierarchy, 0 for unknown roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether r ranks at or above min in the hierarchy.
// Unknown roles never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	lvl, ok := roleLevels[r]
	if !ok {
		return false
	}
	return lvl >= roleLevels[min]
}

// Actor identifies the authenticated caller of a use case. It replaces
// ambient session state: every service operation receives one explicitly.
type Actor struct {
	OrgID    uuid.UUID
	UserID   uuid.UUID
	BranchID *uuid.UUID
	Role     Role
}

// Action names a guarded operation.
type Action string

const (
	ActionSalesWrite       Action = "sales.write"
	ActionProcurementWrite Action = "procurement.write"
	ActionInventoryWrite   Action = "inventory.write"
	ActionFinanceView      Action = "finance.view"
	ActionFinanceWrite     Action = "finance.write"
	ActionHRWrite          Action = "hr.write"
	ActionProjectsWrite    Action = "projects.write"
	ActionApprovalDecide   Action = "approval.decide"
	ActionAuditView        Action = "audit.view"
	ActionSettingsManage   Action = "settings.manage"
	ActionProductManage    Action = "product.manage"
)

// minimumRoles encodes the closed role threshold per action. Actions not
// listed here are readable by every authenticated role.
var minimumRoles = map[Action]Role{
	ActionSalesWrite:       RoleStaff,
	ActionProcurementWrite: RoleStaff,
	ActionInventoryWrite:   RoleStaff,
	ActionFinanceView:      RoleManager,
	ActionFinanceWrite:     RoleStaff,
	ActionHRWrite:          RoleManager,
	ActionProjectsWrite:    RoleStaff,
	ActionApprovalDecide:   RoleManager,
	ActionAuditView:        RoleOrgAdmin,
	ActionSettingsManage:   RoleOrgAdmin,
	ActionProductManage:    RoleManager,
}

// Allowed reports whether the role may perform the action.
func Allowed(role Role, action Action) bool {
	min, ok := minimumRoles[action]
	if !ok {
		return role.Valid()
	}
	return role.AtLeast(min)
}
