package payroll

import (
	"context"
	"time"
)

// All methods take companyID to prevent cross-company data access.

// SettingsRepository - interface for payroll_settings table
type SettingsRepository interface {
	GetSettings(ctx context.Context, companyID string) (PayrollSettings, error)
	UpsertSettings(ctx context.Context, settings PayrollSettings) (PayrollSettings, error)
}

// ComponentRepository - interface for salary_components table
type ComponentRepository interface {
	Create(ctx context.Context, component SalaryComponent) (SalaryComponent, error)
	GetByID(ctx context.Context, id string, companyID string) (SalaryComponent, error)
	GetByCompanyID(ctx context.Context, companyID string, activeOnly bool) ([]SalaryComponent, error)
	GetByIDs(ctx context.Context, ids []string, companyID string) ([]SalaryComponent, error)
	Update(ctx context.Context, companyID string, req UpdateSalaryComponentRequest) error
	Delete(ctx context.Context, id string, companyID string) error
}

// StructureRepository - interface for salary_structures and salary_structure_components tables
type StructureRepository interface {
	// Create closes the employee's open structure and inserts the new revision atomically.
	Create(ctx context.Context, structure SalaryStructure) (SalaryStructure, error)
	GetByEmployeeID(ctx context.Context, employeeID string, companyID string) ([]SalaryStructure, error)
	// GetActive returns the structure covering the given day, components in sort order.
	GetActive(ctx context.Context, employeeID string, companyID string, day time.Time) (SalaryStructure, error)
	GetCompanyIDsWithActiveStructures(ctx context.Context, day time.Time) ([]string, error)
}

// GenerationRepository - interface for salary_generations and salary_generation_details tables
type GenerationRepository interface {
	// Create inserts the record and its details in one transaction. created is false
	// when a record already exists for the employee and period.
	Create(ctx context.Context, generation SalaryGeneration) (result SalaryGeneration, created bool, err error)
	GetByID(ctx context.Context, id string, companyID string) (SalaryGeneration, error)
	GetEmployeeIDsWithGeneration(ctx context.Context, companyID string, month, year int) (map[string]bool, error)
	List(ctx context.Context, companyID string, filter GenerationFilter) ([]SalaryGeneration, int64, error)
	// UpdateStatus applies the change only while the record still holds change.From.
	UpdateStatus(ctx context.Context, companyID string, change StatusChange) error
	Delete(ctx context.Context, id string, companyID string) error
	GetSummary(ctx context.Context, companyID string, month, year int) (PayrollSummaryResponse, error)
}

// AttendanceRepository - read-only aggregate over attendances, leave_requests and holidays
type AttendanceRepository interface {
	GetSummary(ctx context.Context, companyID string, employeeID string, start, end time.Time, excludeWeekends bool) (AttendanceSummary, error)
}
