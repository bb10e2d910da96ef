package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Runs payroll, cannot approve it
	RoleEmployee Role = "employee" // Regular employee
)

type Permission string

const (
	// Payroll
	PermissionPayrollView    Permission = "payroll.view"
	PermissionPayrollManage  Permission = "payroll.manage"
	PermissionPayrollApprove Permission = "payroll.approve"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		PermissionPayrollView,
		PermissionPayrollManage,
		PermissionPayrollApprove,
	},
	RoleManager: {
		PermissionPayrollView,
		PermissionPayrollManage,
	},
	RoleEmployee: {
		// Employees see their payslips elsewhere
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
