package payroll

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/formula"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== SETTINGS DTOs ==========

type PayrollSettingsResponse struct {
	ID                     string          `json:"id,omitempty"`
	CompanyID              string          `json:"company_id"`
	ExcludeWeekends        bool            `json:"exclude_weekends"`
	LateGraceCount         int             `json:"late_grace_count"`
	LatePenaltyDayFraction decimal.Decimal `json:"late_penalty_day_fraction"`
	OvertimeMultiplier     decimal.Decimal `json:"overtime_multiplier"`
	StandardHoursPerDay    decimal.Decimal `json:"standard_hours_per_day"`
}

type UpdatePayrollSettingsRequest struct {
	ExcludeWeekends        *bool            `json:"exclude_weekends,omitempty"`
	LateGraceCount         *int             `json:"late_grace_count,omitempty"`
	LatePenaltyDayFraction *decimal.Decimal `json:"late_penalty_day_fraction,omitempty"`
	OvertimeMultiplier     *decimal.Decimal `json:"overtime_multiplier,omitempty"`
	StandardHoursPerDay    *decimal.Decimal `json:"standard_hours_per_day,omitempty"`
}

func (r *UpdatePayrollSettingsRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.LateGraceCount != nil && *r.LateGraceCount < 0 {
		errs = append(errs, validator.ValidationError{Field: "late_grace_count", Message: "must be non-negative"})
	}
	if r.LatePenaltyDayFraction != nil && r.LatePenaltyDayFraction.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "late_penalty_day_fraction", Message: "must be non-negative"})
	}
	if r.OvertimeMultiplier != nil && !r.OvertimeMultiplier.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: "overtime_multiplier", Message: "must be greater than 0"})
	}
	if r.StandardHoursPerDay != nil && !r.StandardHoursPerDay.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: "standard_hours_per_day", Message: "must be greater than 0"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== COMPONENT DTOs ==========

type CreateSalaryComponentRequest struct {
	Name            string  `json:"name"`
	Code            string  `json:"code"`
	Type            string  `json:"type"`             // "earning" or "deduction"
	CalculationType string  `json:"calculation_type"` // "fixed", "percentage" or "formula"
	Description     *string `json:"description,omitempty"`
}

func (r *CreateSalaryComponentRequest) Validate() error {
	var errs validator.ValidationErrors

	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))

	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "is required"})
	}
	if !validator.IsValidComponentCode(r.Code) {
		errs = append(errs, validator.ValidationError{Field: "code", Message: "must start with a letter and contain only A-Z, 0-9 or _ (max 30)"})
	}
	if !ComponentType(r.Type).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "must be 'earning' or 'deduction'"})
	}
	if !CalculationType(r.CalculationType).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "calculation_type", Message: "must be 'fixed', 'percentage' or 'formula'"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type UpdateSalaryComponentRequest struct {
	ID              string
	Name            *string `json:"name,omitempty"`
	Type            *string `json:"type,omitempty"`
	CalculationType *string `json:"calculation_type,omitempty"`
	Description     *string `json:"description,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

func (r *UpdateSalaryComponentRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Name != nil && validator.IsEmpty(*r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "cannot be empty"})
	}
	if r.Type != nil && !ComponentType(*r.Type).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "must be 'earning' or 'deduction'"})
	}
	if r.CalculationType != nil && !CalculationType(*r.CalculationType).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "calculation_type", Message: "must be 'fixed', 'percentage' or 'formula'"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SalaryComponentResponse struct {
	ID              string  `json:"id"`
	CompanyID       string  `json:"company_id"`
	Name            string  `json:"name"`
	Code            string  `json:"code"`
	Type            string  `json:"type"`
	CalculationType string  `json:"calculation_type"`
	Description     *string `json:"description,omitempty"`
	IsActive        bool    `json:"is_active"`
}

type ValidateFormulaRequest struct {
	Expression string `json:"expression"`
}

type ValidateFormulaResponse struct {
	Expression  string   `json:"expression"`
	Identifiers []string `json:"identifiers"`
}

// ========== STRUCTURE DTOs ==========

type StructureComponentRequest struct {
	ComponentID       string           `json:"component_id"`
	ValueType         string           `json:"value_type"`
	FixedAmount       *decimal.Decimal `json:"fixed_amount,omitempty"`
	PercentageValue   *decimal.Decimal `json:"percentage_value,omitempty"`
	PercentageBase    *string          `json:"percentage_base,omitempty"`
	FormulaExpression *string          `json:"formula_expression,omitempty"`
	IsProrated        bool             `json:"is_prorated"`
}

type CreateSalaryStructureRequest struct {
	EmployeeID    string                      `json:"-"`
	EffectiveFrom string                      `json:"effective_from"`
	Notes         *string                     `json:"notes,omitempty"`
	Components    []StructureComponentRequest `json:"components"`
}

func (r *CreateSalaryStructureRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "must be a valid UUID"})
	}
	if _, ok := validator.IsValidDate(r.EffectiveFrom); !ok {
		errs = append(errs, validator.ValidationError{Field: "effective_from", Message: "must be a date in YYYY-MM-DD format"})
	}
	if len(r.Components) == 0 {
		errs = append(errs, validator.ValidationError{Field: "components", Message: "at least one component is required"})
	}

	seen := make(map[string]bool)
	for i, c := range r.Components {
		field := fmt.Sprintf("components[%d]", i)

		if validator.IsEmpty(c.ComponentID) {
			errs = append(errs, validator.ValidationError{Field: field + ".component_id", Message: "is required"})
		} else if seen[c.ComponentID] {
			errs = append(errs, validator.ValidationError{Field: field + ".component_id", Message: "is listed more than once"})
		}
		seen[c.ComponentID] = true

		switch CalculationType(c.ValueType) {
		case CalculationTypeFixed:
			if c.FixedAmount == nil {
				errs = append(errs, validator.ValidationError{Field: field + ".fixed_amount", Message: "is required for fixed components"})
			} else if c.FixedAmount.IsNegative() {
				errs = append(errs, validator.ValidationError{Field: field + ".fixed_amount", Message: "must be non-negative"})
			}
		case CalculationTypePercentage:
			if c.PercentageValue == nil {
				errs = append(errs, validator.ValidationError{Field: field + ".percentage_value", Message: "is required for percentage components"})
			} else if c.PercentageValue.IsNegative() {
				errs = append(errs, validator.ValidationError{Field: field + ".percentage_value", Message: "must be non-negative"})
			}
			if c.PercentageBase == nil || !validator.IsValidComponentCode(strings.ToUpper(*c.PercentageBase)) {
				errs = append(errs, validator.ValidationError{Field: field + ".percentage_base", Message: "must be a component code"})
			}
		case CalculationTypeFormula:
			if c.FormulaExpression == nil || validator.IsEmpty(*c.FormulaExpression) {
				errs = append(errs, validator.ValidationError{Field: field + ".formula_expression", Message: "is required for formula components"})
			} else if _, err := formula.Parse(*c.FormulaExpression); err != nil {
				errs = append(errs, validator.ValidationError{Field: field + ".formula_expression", Message: err.Error()})
			}
		default:
			errs = append(errs, validator.ValidationError{Field: field + ".value_type", Message: "must be 'fixed', 'percentage' or 'formula'"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type StructureComponentResponse struct {
	ID                string           `json:"id"`
	ComponentID       string           `json:"component_id"`
	ComponentName     string           `json:"component_name"`
	ComponentCode     string           `json:"component_code"`
	ComponentType     string           `json:"component_type"`
	ValueType         string           `json:"value_type"`
	FixedAmount       *decimal.Decimal `json:"fixed_amount,omitempty"`
	PercentageValue   *decimal.Decimal `json:"percentage_value,omitempty"`
	PercentageBase    *string          `json:"percentage_base,omitempty"`
	FormulaExpression *string          `json:"formula_expression,omitempty"`
	IsProrated        bool             `json:"is_prorated"`
	SortOrder         int              `json:"sort_order"`
}

type SalaryStructureResponse struct {
	ID            string                       `json:"id"`
	EmployeeID    string                       `json:"employee_id"`
	EffectiveFrom string                       `json:"effective_from"`
	EffectiveTo   *string                      `json:"effective_to,omitempty"`
	IsActive      bool                         `json:"is_active"`
	Notes         *string                      `json:"notes,omitempty"`
	Components    []StructureComponentResponse `json:"components"`
}

// ========== GENERATION DTOs ==========

type GenerateSalaryRequest struct {
	PeriodMonth  int      `json:"period_month"`
	PeriodYear   int      `json:"period_year"`
	EmployeeIDs  []string `json:"employee_ids,omitempty"` // Empty = all active employees
	DepartmentID *string  `json:"department_id,omitempty"`
}

func (r *GenerateSalaryRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = append(errs, validatePeriod(r.PeriodMonth, r.PeriodYear)...)
	for i, id := range r.EmployeeIDs {
		if !validator.IsValidUUID(id) {
			errs = append(errs, validator.ValidationError{Field: fmt.Sprintf("employee_ids[%d]", i), Message: "must be a valid UUID"})
		}
	}
	if r.DepartmentID != nil && !validator.IsValidUUID(*r.DepartmentID) {
		errs = append(errs, validator.ValidationError{Field: "department_id", Message: "must be a valid UUID"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PreviewSalaryRequest struct {
	EmployeeID  string `json:"employee_id"`
	PeriodMonth int    `json:"period_month"`
	PeriodYear  int    `json:"period_year"`
}

func (r *PreviewSalaryRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "must be a valid UUID"})
	}
	errs = append(errs, validatePeriod(r.PeriodMonth, r.PeriodYear)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePeriod(month, year int) validator.ValidationErrors {
	var errs validator.ValidationErrors
	if month < 1 || month > 12 {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}
	if year < 2020 {
		errs = append(errs, validator.ValidationError{Field: "period_year", Message: "must be 2020 or later"})
	}
	return errs
}

// GenerationError - Per-employee failure inside a batch
type GenerationError struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	Message      string `json:"message"`
}

type GenerateSalaryResponse struct {
	PeriodMonth        int                        `json:"period_month"`
	PeriodYear         int                        `json:"period_year"`
	Generated          []SalaryGenerationResponse `json:"generated"`
	Skipped            int                        `json:"skipped"`
	SkippedEmployeeIDs []string                   `json:"skipped_employee_ids"`
	Errors             []GenerationError          `json:"errors"`
}

type ComponentResultResponse struct {
	ComponentID      *string          `json:"component_id"`
	Name             string           `json:"name"`
	Code             string           `json:"code"`
	Type             string           `json:"type"`
	CalculationType  string           `json:"calculation_type"`
	BaseAmount       decimal.Decimal  `json:"base_amount"`
	CalculatedAmount decimal.Decimal  `json:"calculated_amount"`
	IsProrated       bool             `json:"is_prorated"`
	ProratedAmount   *decimal.Decimal `json:"prorated_amount"`
	Formula          *string          `json:"formula,omitempty"`
}

// SalaryBreakdownResponse - Calculator output, returned by preview
type SalaryBreakdownResponse struct {
	EmployeeID       string                    `json:"employee_id"`
	EmployeeName     string                    `json:"employee_name"`
	PeriodMonth      int                       `json:"period_month"`
	PeriodYear       int                       `json:"period_year"`
	TotalWorkingDays int                       `json:"total_working_days"`
	AttendanceFactor decimal.Decimal           `json:"attendance_factor"`
	Components       []ComponentResultResponse `json:"components"`
	BasicSalary      decimal.Decimal           `json:"basic_salary"`
	TotalEarnings    decimal.Decimal           `json:"total_earnings"`
	TotalDeductions  decimal.Decimal           `json:"total_deductions"`
	GrossSalary      decimal.Decimal           `json:"gross_salary"`
	NetSalary        decimal.Decimal           `json:"net_salary"`
	OvertimePay      decimal.Decimal           `json:"overtime_pay"`
	LateDeduction    decimal.Decimal           `json:"late_deduction"`
	AbsentDeduction  decimal.Decimal           `json:"absent_deduction"`
	LeaveDeduction   decimal.Decimal           `json:"leave_deduction"`
}

type SalaryGenerationResponse struct {
	ID               string                    `json:"id"`
	EmployeeID       string                    `json:"employee_id"`
	EmployeeName     string                    `json:"employee_name"`
	EmployeeCode     string                    `json:"employee_code"`
	DepartmentName   *string                   `json:"department_name,omitempty"`
	PositionName     *string                   `json:"position_name,omitempty"`
	PeriodMonth      int                       `json:"period_month"`
	PeriodYear       int                       `json:"period_year"`
	PeriodStart      string                    `json:"period_start"`
	PeriodEnd        string                    `json:"period_end"`
	TotalWorkingDays int                       `json:"total_working_days"`
	PresentDays      decimal.Decimal           `json:"present_days"`
	AbsentDays       decimal.Decimal           `json:"absent_days"`
	PaidLeaveDays    decimal.Decimal           `json:"paid_leave_days"`
	UnpaidLeaveDays  decimal.Decimal           `json:"unpaid_leave_days"`
	HolidayDays      decimal.Decimal           `json:"holiday_days"`
	WeekOffDays      decimal.Decimal           `json:"week_off_days"`
	OvertimeHours    decimal.Decimal           `json:"overtime_hours"`
	LateCount        int                       `json:"late_count"`
	EarlyExitCount   int                       `json:"early_exit_count"`
	AttendanceFactor decimal.Decimal           `json:"attendance_factor"`
	BasicSalary      decimal.Decimal           `json:"basic_salary"`
	TotalEarnings    decimal.Decimal           `json:"total_earnings"`
	TotalDeductions  decimal.Decimal           `json:"total_deductions"`
	GrossSalary      decimal.Decimal           `json:"gross_salary"`
	NetSalary        decimal.Decimal           `json:"net_salary"`
	OvertimePay      decimal.Decimal           `json:"overtime_pay"`
	LateDeduction    decimal.Decimal           `json:"late_deduction"`
	AbsentDeduction  decimal.Decimal           `json:"absent_deduction"`
	LeaveDeduction   decimal.Decimal           `json:"leave_deduction"`
	Status           string                    `json:"status"`
	ApprovedAt       *string                   `json:"approved_at,omitempty"`
	PaidAt           *string                   `json:"paid_at,omitempty"`
	PaymentReference *string                   `json:"payment_reference,omitempty"`
	Notes            *string                   `json:"notes,omitempty"`
	Details          []ComponentResultResponse `json:"details,omitempty"`
}

// GenerationSortFields are the sort_by values accepted when listing generations.
var GenerationSortFields = []string{"created_at", "period", "employee_name", "employee_code", "net_salary", "status"}

type GenerationFilter struct {
	PeriodMonth *int    `json:"period_month,omitempty"`
	PeriodYear  *int    `json:"period_year,omitempty"`
	Status      *string `json:"status,omitempty"`
	EmployeeID  *string `json:"employee_id,omitempty"`
	Page        int     `json:"page"`
	Limit       int     `json:"limit"`
	SortBy      string  `json:"sort_by"`
	SortOrder   string  `json:"sort_order"`
}

func (f *GenerationFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.PeriodMonth != nil && (*f.PeriodMonth < 1 || *f.PeriodMonth > 12) {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}
	if f.Status != nil && !GenerationStatus(*f.Status).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be 'generated', 'approved' or 'paid'"})
	}
	if f.SortBy != "" && !validator.IsInSlice(f.SortBy, GenerationSortFields) {
		errs = append(errs, validator.ValidationError{Field: "sort_by", Message: "must be one of " + strings.Join(GenerationSortFields, ", ")})
	}
	if f.SortOrder != "" && f.SortOrder != "asc" && f.SortOrder != "desc" {
		errs = append(errs, validator.ValidationError{Field: "sort_order", Message: "must be 'asc' or 'desc'"})
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ListSalaryGenerationResponse struct {
	Data       []SalaryGenerationResponse `json:"data"`
	TotalCount int64                      `json:"total_count"`
	Page       int                        `json:"page"`
	Limit      int                        `json:"limit"`
}

type ApproveGenerationsRequest struct {
	RecordIDs []string `json:"record_ids"`
}

func (r *ApproveGenerationsRequest) Validate() error {
	return validateRecordIDs(r.RecordIDs)
}

type PayGenerationsRequest struct {
	RecordIDs        []string `json:"record_ids"`
	PaymentReference *string  `json:"payment_reference,omitempty"`
}

func (r *PayGenerationsRequest) Validate() error {
	return validateRecordIDs(r.RecordIDs)
}

func validateRecordIDs(ids []string) error {
	var errs validator.ValidationErrors

	if len(ids) == 0 {
		errs = append(errs, validator.ValidationError{Field: "record_ids", Message: "at least one record is required"})
	}
	for i, id := range ids {
		if !validator.IsValidUUID(id) {
			errs = append(errs, validator.ValidationError{Field: fmt.Sprintf("record_ids[%d]", i), Message: "must be a valid UUID"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// StatusChangeResult - Outcome of one record in a bulk approve/pay request
type StatusChangeResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type BulkStatusResponse struct {
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []StatusChangeResult `json:"results"`
}

type PayrollSummaryResponse struct {
	PeriodMonth          int             `json:"period_month"`
	PeriodYear           int             `json:"period_year"`
	TotalEmployees       int             `json:"total_employees"`
	TotalBasicSalary     decimal.Decimal `json:"total_basic_salary"`
	TotalEarnings        decimal.Decimal `json:"total_earnings"`
	TotalDeductions      decimal.Decimal `json:"total_deductions"`
	TotalOvertimePay     decimal.Decimal `json:"total_overtime_pay"`
	TotalLateDeduction   decimal.Decimal `json:"total_late_deduction"`
	TotalAbsentDeduction decimal.Decimal `json:"total_absent_deduction"`
	TotalLeaveDeduction  decimal.Decimal `json:"total_leave_deduction"`
	TotalGrossSalary     decimal.Decimal `json:"total_gross_salary"`
	TotalNetSalary       decimal.Decimal `json:"total_net_salary"`
	GeneratedCount       int             `json:"generated_count"`
	ApprovedCount        int             `json:"approved_count"`
	PaidCount            int             `json:"paid_count"`
}
