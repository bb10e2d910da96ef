package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollSettings - Company payroll policy knobs used by the policy pass of the calculator
type PayrollSettings struct {
	ID                     string
	CompanyID              string
	ExcludeWeekends        bool
	LateGraceCount         int
	LatePenaltyDayFraction decimal.Decimal
	OvertimeMultiplier     decimal.Decimal
	StandardHoursPerDay    decimal.Decimal
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// DefaultSettings returns the policy used when a company has not stored its own.
func DefaultSettings(companyID string) PayrollSettings {
	return PayrollSettings{
		CompanyID:              companyID,
		ExcludeWeekends:        false,
		LateGraceCount:         3,
		LatePenaltyDayFraction: decimal.NewFromFloat(0.1),
		OvertimeMultiplier:     decimal.NewFromFloat(1.5),
		StandardHoursPerDay:    decimal.NewFromInt(8),
	}
}

// ComponentType enum
type ComponentType string

const (
	ComponentTypeEarning   ComponentType = "earning"
	ComponentTypeDeduction ComponentType = "deduction"
)

func (t ComponentType) IsValid() bool {
	return t == ComponentTypeEarning || t == ComponentTypeDeduction
}

// CalculationType enum
type CalculationType string

const (
	CalculationTypeFixed      CalculationType = "fixed"
	CalculationTypePercentage CalculationType = "percentage"
	CalculationTypeFormula    CalculationType = "formula"
	// CalculationTypePolicy marks synthetic lines derived from attendance counters.
	CalculationTypePolicy CalculationType = "policy"
)

func (t CalculationType) IsValid() bool {
	return t == CalculationTypeFixed || t == CalculationTypePercentage || t == CalculationTypeFormula
}

// SalaryComponent - Company-level component definition
type SalaryComponent struct {
	ID              string
	CompanyID       string
	Name            string
	Code            string
	Type            ComponentType
	CalculationType CalculationType
	Description     *string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SalaryStructure - One revision of an employee's salary structure
type SalaryStructure struct {
	ID            string
	EmployeeID    string
	CompanyID     string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	IsActive      bool
	Notes         *string
	CreatedBy     *string
	CreatedAt     time.Time

	Components []StructureComponent
}

// CoversDate reports whether the structure applies on the given day.
func (s SalaryStructure) CoversDate(day time.Time) bool {
	if day.Before(s.EffectiveFrom) {
		return false
	}
	return s.EffectiveTo == nil || !day.After(*s.EffectiveTo)
}

// StructureComponent - Assignment of a component definition inside a structure
type StructureComponent struct {
	ID                string
	StructureID       string
	ComponentID       string
	ValueType         CalculationType
	FixedAmount       *decimal.Decimal
	PercentageValue   *decimal.Decimal
	PercentageBase    *string
	FormulaExpression *string
	IsProrated        bool
	SortOrder         int

	// Joined fields
	ComponentName string
	ComponentCode string
	ComponentType ComponentType
}

// AttendanceSummary - Aggregated attendance counters for one employee over a pay period
type AttendanceSummary struct {
	EmployeeID      string
	PresentDays     decimal.Decimal
	AbsentDays      decimal.Decimal
	PaidLeaveDays   decimal.Decimal
	UnpaidLeaveDays decimal.Decimal
	HolidayDays     decimal.Decimal
	WeekOffDays     decimal.Decimal
	OvertimeHours   decimal.Decimal
	LateCount       int
	EarlyExitCount  int
}

func (a AttendanceSummary) PaidDays() decimal.Decimal {
	return a.PresentDays.Add(a.PaidLeaveDays).Add(a.HolidayDays).Add(a.WeekOffDays)
}

// ComponentResult - One computed line of a salary breakdown
type ComponentResult struct {
	ComponentID      *string
	Name             string
	Code             string
	Type             ComponentType
	CalculationType  CalculationType
	BaseAmount       decimal.Decimal
	CalculatedAmount decimal.Decimal
	IsProrated       bool
	ProratedAmount   *decimal.Decimal
	Formula          *string
}

// SalaryComputation - Output of the calculator for one employee and period
type SalaryComputation struct {
	TotalWorkingDays int
	AttendanceFactor decimal.Decimal
	Components       []ComponentResult
	BasicSalary      decimal.Decimal
	TotalEarnings    decimal.Decimal
	TotalDeductions  decimal.Decimal
	GrossSalary      decimal.Decimal
	NetSalary        decimal.Decimal
	OvertimePay      decimal.Decimal
	LateDeduction    decimal.Decimal
	AbsentDeduction  decimal.Decimal
	LeaveDeduction   decimal.Decimal
}

// GenerationStatus enum
type GenerationStatus string

const (
	GenerationStatusGenerated GenerationStatus = "generated"
	GenerationStatusApproved  GenerationStatus = "approved"
	GenerationStatusPaid      GenerationStatus = "paid"
)

func (s GenerationStatus) IsValid() bool {
	switch s {
	case GenerationStatusGenerated, GenerationStatusApproved, GenerationStatusPaid:
		return true
	}
	return false
}

// RequiredPriorStatus returns the status a record must hold before moving to target.
func RequiredPriorStatus(target GenerationStatus) (GenerationStatus, bool) {
	switch target {
	case GenerationStatusApproved:
		return GenerationStatusGenerated, true
	case GenerationStatusPaid:
		return GenerationStatusApproved, true
	}
	return "", false
}

func (s GenerationStatus) CanDelete() bool {
	return s == GenerationStatusGenerated || s == GenerationStatusApproved
}

// SalaryGeneration - Persisted result of one calculator run for one employee/period
type SalaryGeneration struct {
	ID               string
	CompanyID        string
	EmployeeID       string
	PeriodMonth      int
	PeriodYear       int
	PeriodStart      time.Time
	PeriodEnd        time.Time
	TotalWorkingDays int
	PresentDays      decimal.Decimal
	AbsentDays       decimal.Decimal
	PaidLeaveDays    decimal.Decimal
	UnpaidLeaveDays  decimal.Decimal
	HolidayDays      decimal.Decimal
	WeekOffDays      decimal.Decimal
	OvertimeHours    decimal.Decimal
	LateCount        int
	EarlyExitCount   int
	AttendanceFactor decimal.Decimal
	BasicSalary      decimal.Decimal
	TotalEarnings    decimal.Decimal
	TotalDeductions  decimal.Decimal
	GrossSalary      decimal.Decimal
	NetSalary        decimal.Decimal
	OvertimePay      decimal.Decimal
	LateDeduction    decimal.Decimal
	AbsentDeduction  decimal.Decimal
	LeaveDeduction   decimal.Decimal
	Status           GenerationStatus
	GeneratedBy      *string
	ApprovedBy       *string
	ApprovedAt       *time.Time
	PaidBy           *string
	PaidAt           *time.Time
	PaymentReference *string
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Details []GenerationDetail

	// Joined fields
	EmployeeName   *string
	EmployeeCode   *string
	DepartmentName *string
	PositionName   *string
}

// GenerationDetail - One persisted line item of a generation
type GenerationDetail struct {
	ID               string
	GenerationID     string
	ComponentID      *string
	Name             string
	Code             string
	Type             ComponentType
	CalculationType  CalculationType
	BaseAmount       decimal.Decimal
	CalculatedAmount decimal.Decimal
	IsProrated       bool
	ProratedAmount   *decimal.Decimal
	Formula          *string
	LineOrder        int
}

// StatusChange - Guarded status transition applied to a single record
type StatusChange struct {
	ID               string
	From             GenerationStatus
	To               GenerationStatus
	ChangedBy        string
	ChangedAt        time.Time
	PaymentReference *string
}
