package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       Role
		permission Permission
		want       bool
	}{
		{RoleOwner, PermissionPayrollApprove, true},
		{RoleOwner, PermissionPayrollManage, true},
		{RoleManager, PermissionPayrollManage, true},
		{RoleManager, PermissionPayrollApprove, false},
		{RoleEmployee, PermissionPayrollView, false},
		{Role("auditor"), PermissionPayrollView, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.permission), func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.role, tt.permission))
		})
	}
}
