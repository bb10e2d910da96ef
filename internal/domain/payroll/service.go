package payroll

import "context"

type PayrollService interface {
	// Settings
	GetSettings(ctx context.Context) (PayrollSettingsResponse, error)
	UpdateSettings(ctx context.Context, req UpdatePayrollSettingsRequest) (PayrollSettingsResponse, error)

	// Components
	CreateComponent(ctx context.Context, req CreateSalaryComponentRequest) (SalaryComponentResponse, error)
	GetComponent(ctx context.Context, id string) (SalaryComponentResponse, error)
	ListComponents(ctx context.Context, activeOnly bool) ([]SalaryComponentResponse, error)
	UpdateComponent(ctx context.Context, req UpdateSalaryComponentRequest) (SalaryComponentResponse, error)
	DeleteComponent(ctx context.Context, id string) error
	ValidateFormula(ctx context.Context, req ValidateFormulaRequest) (ValidateFormulaResponse, error)

	// Structures
	AssignStructure(ctx context.Context, req CreateSalaryStructureRequest) (SalaryStructureResponse, error)
	ListStructures(ctx context.Context, employeeID string) ([]SalaryStructureResponse, error)
	GetActiveStructure(ctx context.Context, employeeID string, date string) (SalaryStructureResponse, error)

	// Generation
	PreviewSalary(ctx context.Context, req PreviewSalaryRequest) (SalaryBreakdownResponse, error)
	GenerateSalaries(ctx context.Context, req GenerateSalaryRequest) (GenerateSalaryResponse, error)
	// GenerateForCompany runs a batch without request claims, for scheduled jobs.
	GenerateForCompany(ctx context.Context, companyID string, req GenerateSalaryRequest) (GenerateSalaryResponse, error)
	GetGeneration(ctx context.Context, id string) (SalaryGenerationResponse, error)
	ListGenerations(ctx context.Context, filter GenerationFilter) (ListSalaryGenerationResponse, error)
	ApproveGenerations(ctx context.Context, req ApproveGenerationsRequest) (BulkStatusResponse, error)
	PayGenerations(ctx context.Context, req PayGenerationsRequest) (BulkStatusResponse, error)
	DeleteGeneration(ctx context.Context, id string) error
	GetSummary(ctx context.Context, month, year int) (PayrollSummaryResponse, error)
}
