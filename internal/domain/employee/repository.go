package employee

import (
	"context"
	"time"
)

// EmployeeRepository is read-only; employees are managed by the HR module.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string, companyID string) (Employee, error)
	// GetEmployedDuring returns employees on the payroll at any point of [start, end],
	// ordered by employee code.
	GetEmployedDuring(ctx context.Context, companyID string, start, end time.Time, filter PayrollFilter) ([]Employee, error)
}
