package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/formula"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/validator"
	"github.com/go-chi/jwtauth/v5"
)

const dateLayout = "2006-01-02"

type PayrollServiceImpl struct {
	settingsRepo   payroll.SettingsRepository
	componentRepo  payroll.ComponentRepository
	structureRepo  payroll.StructureRepository
	generationRepo payroll.GenerationRepository
	attendanceRepo payroll.AttendanceRepository
	employeeRepo   employee.EmployeeRepository
	calculator     *Calculator
	metrics        *metrics.Payroll
	workers        int
	now            func() time.Time
}

func NewPayrollService(
	settingsRepo payroll.SettingsRepository,
	componentRepo payroll.ComponentRepository,
	structureRepo payroll.StructureRepository,
	generationRepo payroll.GenerationRepository,
	attendanceRepo payroll.AttendanceRepository,
	employeeRepo employee.EmployeeRepository,
	calculator *Calculator,
	m *metrics.Payroll,
	workers int,
) payroll.PayrollService {
	if workers < 1 {
		workers = 1
	}
	return &PayrollServiceImpl{
		settingsRepo:   settingsRepo,
		componentRepo:  componentRepo,
		structureRepo:  structureRepo,
		generationRepo: generationRepo,
		attendanceRepo: attendanceRepo,
		employeeRepo:   employeeRepo,
		calculator:     calculator,
		metrics:        m,
		workers:        workers,
		now:            time.Now,
	}
}

// Helper to get company_id and user_id from JWT context
func getClaimsFromContext(ctx context.Context) (companyID, userID string, err error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		return "", "", fmt.Errorf("company_id claim is missing or invalid")
	}

	userID, _ = claims["user_id"].(string)

	return companyID, userID, nil
}

// ========== SETTINGS ==========

func (s *PayrollServiceImpl) loadSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	settings, err := s.settingsRepo.GetSettings(ctx, companyID)
	if errors.Is(err, payroll.ErrPayrollSettingsNotFound) {
		return payroll.DefaultSettings(companyID), nil
	}
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to load payroll settings: %w", err)
	}
	return settings, nil
}

func (s *PayrollServiceImpl) GetSettings(ctx context.Context) (payroll.PayrollSettingsResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	return mapToSettingsResponse(settings), nil
}

func (s *PayrollServiceImpl) UpdateSettings(ctx context.Context, req payroll.UpdatePayrollSettingsRequest) (payroll.PayrollSettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	current, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	if req.ExcludeWeekends != nil {
		current.ExcludeWeekends = *req.ExcludeWeekends
	}
	if req.LateGraceCount != nil {
		current.LateGraceCount = *req.LateGraceCount
	}
	if req.LatePenaltyDayFraction != nil {
		current.LatePenaltyDayFraction = *req.LatePenaltyDayFraction
	}
	if req.OvertimeMultiplier != nil {
		current.OvertimeMultiplier = *req.OvertimeMultiplier
	}
	if req.StandardHoursPerDay != nil {
		current.StandardHoursPerDay = *req.StandardHoursPerDay
	}

	updated, err := s.settingsRepo.UpsertSettings(ctx, current)
	if err != nil {
		return payroll.PayrollSettingsResponse{}, err
	}

	return mapToSettingsResponse(updated), nil
}

// ========== COMPONENTS ==========

func (s *PayrollServiceImpl) CreateComponent(ctx context.Context, req payroll.CreateSalaryComponentRequest) (payroll.SalaryComponentResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.SalaryComponentResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryComponentResponse{}, err
	}

	created, err := s.componentRepo.Create(ctx, payroll.SalaryComponent{
		CompanyID:       companyID,
		Name:            strings.TrimSpace(req.Name),
		Code:            req.Code,
		Type:            payroll.ComponentType(req.Type),
		CalculationType: payroll.CalculationType(req.CalculationType),
		Description:     req.Description,
		IsActive:        true,
	})
	if err != nil {
		return payroll.SalaryComponentResponse{}, err
	}

	return mapToComponentResponse(created), nil
}

func (s *PayrollServiceImpl) GetComponent(ctx context.Context, id string) (payroll.SalaryComponentResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryComponentResponse{}, err
	}

	component, err := s.componentRepo.GetByID(ctx, id, companyID)
	if err != nil {
		return payroll.SalaryComponentResponse{}, err
	}

	return mapToComponentResponse(component), nil
}

func (s *PayrollServiceImpl) ListComponents(ctx context.Context, activeOnly bool) ([]payroll.SalaryComponentResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	components, err := s.componentRepo.GetByCompanyID(ctx, companyID, activeOnly)
	if err != nil {
		return nil, err
	}

	result := make([]payroll.SalaryComponentResponse, 0, len(components))
	for _, c := range components {
		result = append(result, mapToComponentResponse(c))
	}
	return result, nil
}

func (s *PayrollServiceImpl) UpdateComponent(ctx context.Context, req payroll.UpdateSalaryComponentRequest) (payroll.SalaryComponentResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.SalaryComponentResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryComponentResponse{}, err
	}

	if err := s.componentRepo.Update(ctx, companyID, req); err != nil {
		return payroll.SalaryComponentResponse{}, err
	}

	return s.GetComponent(ctx, req.ID)
}

func (s *PayrollServiceImpl) DeleteComponent(ctx context.Context, id string) error {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return err
	}

	return s.componentRepo.Delete(ctx, id, companyID)
}

func (s *PayrollServiceImpl) ValidateFormula(ctx context.Context, req payroll.ValidateFormulaRequest) (payroll.ValidateFormulaResponse, error) {
	expr, err := formula.Parse(req.Expression)
	if err != nil {
		return payroll.ValidateFormulaResponse{}, validator.ValidationErrors{
			{Field: "expression", Message: err.Error()},
		}
	}

	return payroll.ValidateFormulaResponse{
		Expression:  expr.String(),
		Identifiers: expr.Identifiers(),
	}, nil
}

// ========== STRUCTURES ==========

func (s *PayrollServiceImpl) AssignStructure(ctx context.Context, req payroll.CreateSalaryStructureRequest) (payroll.SalaryStructureResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	companyID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	if _, err := s.employeeRepo.GetByID(ctx, req.EmployeeID, companyID); err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return payroll.SalaryStructureResponse{}, payroll.ErrEmployeeNotFound
		}
		return payroll.SalaryStructureResponse{}, err
	}

	ids := make([]string, 0, len(req.Components))
	for _, c := range req.Components {
		ids = append(ids, c.ComponentID)
	}
	definitions, err := s.componentRepo.GetByIDs(ctx, ids, companyID)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}
	byID := make(map[string]payroll.SalaryComponent, len(definitions))
	for _, d := range definitions {
		byID[d.ID] = d
	}

	effectiveFrom, _ := time.Parse(dateLayout, req.EffectiveFrom)
	structure := payroll.SalaryStructure{
		EmployeeID:    req.EmployeeID,
		CompanyID:     companyID,
		EffectiveFrom: effectiveFrom,
		IsActive:      true,
		Notes:         req.Notes,
	}
	if userID != "" {
		structure.CreatedBy = &userID
	}

	for i, c := range req.Components {
		def, ok := byID[c.ComponentID]
		if !ok || !def.IsActive {
			return payroll.SalaryStructureResponse{}, fmt.Errorf("%w: %s", payroll.ErrStructureComponentMissing, c.ComponentID)
		}

		sc := payroll.StructureComponent{
			ComponentID:   c.ComponentID,
			ValueType:     payroll.CalculationType(c.ValueType),
			IsProrated:    c.IsProrated,
			SortOrder:     i + 1,
			ComponentName: def.Name,
			ComponentCode: def.Code,
			ComponentType: def.Type,
		}
		// only the field selected by the value type is stored
		switch sc.ValueType {
		case payroll.CalculationTypeFixed:
			sc.FixedAmount = c.FixedAmount
		case payroll.CalculationTypePercentage:
			base := strings.ToUpper(strings.TrimSpace(*c.PercentageBase))
			sc.PercentageValue = c.PercentageValue
			sc.PercentageBase = &base
		case payroll.CalculationTypeFormula:
			expr := strings.TrimSpace(*c.FormulaExpression)
			sc.FormulaExpression = &expr
		}
		structure.Components = append(structure.Components, sc)
	}

	created, err := s.structureRepo.Create(ctx, structure)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	return mapToStructureResponse(created), nil
}

func (s *PayrollServiceImpl) ListStructures(ctx context.Context, employeeID string) ([]payroll.SalaryStructureResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	structures, err := s.structureRepo.GetByEmployeeID(ctx, employeeID, companyID)
	if err != nil {
		return nil, err
	}

	result := make([]payroll.SalaryStructureResponse, 0, len(structures))
	for _, st := range structures {
		result = append(result, mapToStructureResponse(st))
	}
	return result, nil
}

func (s *PayrollServiceImpl) GetActiveStructure(ctx context.Context, employeeID string, date string) (payroll.SalaryStructureResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	day := s.now().UTC().Truncate(24 * time.Hour)
	if date != "" {
		parsed, ok := validator.IsValidDate(date)
		if !ok {
			return payroll.SalaryStructureResponse{}, validator.ValidationErrors{
				{Field: "date", Message: "must be a date in YYYY-MM-DD format"},
			}
		}
		day = parsed
	}

	structure, err := s.structureRepo.GetActive(ctx, employeeID, companyID, day)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	return mapToStructureResponse(structure), nil
}

// ========== MAPPERS ==========

func mapToSettingsResponse(s payroll.PayrollSettings) payroll.PayrollSettingsResponse {
	return payroll.PayrollSettingsResponse{
		ID:                     s.ID,
		CompanyID:              s.CompanyID,
		ExcludeWeekends:        s.ExcludeWeekends,
		LateGraceCount:         s.LateGraceCount,
		LatePenaltyDayFraction: s.LatePenaltyDayFraction,
		OvertimeMultiplier:     s.OvertimeMultiplier,
		StandardHoursPerDay:    s.StandardHoursPerDay,
	}
}

func mapToComponentResponse(c payroll.SalaryComponent) payroll.SalaryComponentResponse {
	return payroll.SalaryComponentResponse{
		ID:              c.ID,
		CompanyID:       c.CompanyID,
		Name:            c.Name,
		Code:            c.Code,
		Type:            string(c.Type),
		CalculationType: string(c.CalculationType),
		Description:     c.Description,
		IsActive:        c.IsActive,
	}
}

func mapToStructureResponse(st payroll.SalaryStructure) payroll.SalaryStructureResponse {
	var effectiveTo *string
	if st.EffectiveTo != nil {
		str := st.EffectiveTo.Format(dateLayout)
		effectiveTo = &str
	}

	components := make([]payroll.StructureComponentResponse, 0, len(st.Components))
	for _, c := range st.Components {
		components = append(components, payroll.StructureComponentResponse{
			ID:                c.ID,
			ComponentID:       c.ComponentID,
			ComponentName:     c.ComponentName,
			ComponentCode:     c.ComponentCode,
			ComponentType:     string(c.ComponentType),
			ValueType:         string(c.ValueType),
			FixedAmount:       c.FixedAmount,
			PercentageValue:   c.PercentageValue,
			PercentageBase:    c.PercentageBase,
			FormulaExpression: c.FormulaExpression,
			IsProrated:        c.IsProrated,
			SortOrder:         c.SortOrder,
		})
	}

	return payroll.SalaryStructureResponse{
		ID:            st.ID,
		EmployeeID:    st.EmployeeID,
		EffectiveFrom: st.EffectiveFrom.Format(dateLayout),
		EffectiveTo:   effectiveTo,
		IsActive:      st.IsActive,
		Notes:         st.Notes,
		Components:    components,
	}
}

func mapToComponentResults(lines []payroll.ComponentResult) []payroll.ComponentResultResponse {
	result := make([]payroll.ComponentResultResponse, 0, len(lines))
	for _, l := range lines {
		result = append(result, payroll.ComponentResultResponse{
			ComponentID:      l.ComponentID,
			Name:             l.Name,
			Code:             l.Code,
			Type:             string(l.Type),
			CalculationType:  string(l.CalculationType),
			BaseAmount:       l.BaseAmount,
			CalculatedAmount: l.CalculatedAmount,
			IsProrated:       l.IsProrated,
			ProratedAmount:   l.ProratedAmount,
			Formula:          l.Formula,
		})
	}
	return result
}

func mapToGenerationResponse(g payroll.SalaryGeneration) payroll.SalaryGenerationResponse {
	employeeName := ""
	employeeCode := ""
	if g.EmployeeName != nil {
		employeeName = *g.EmployeeName
	}
	if g.EmployeeCode != nil {
		employeeCode = *g.EmployeeCode
	}

	resp := payroll.SalaryGenerationResponse{
		ID:               g.ID,
		EmployeeID:       g.EmployeeID,
		EmployeeName:     employeeName,
		EmployeeCode:     employeeCode,
		DepartmentName:   g.DepartmentName,
		PositionName:     g.PositionName,
		PeriodMonth:      g.PeriodMonth,
		PeriodYear:       g.PeriodYear,
		PeriodStart:      g.PeriodStart.Format(dateLayout),
		PeriodEnd:        g.PeriodEnd.Format(dateLayout),
		TotalWorkingDays: g.TotalWorkingDays,
		PresentDays:      g.PresentDays,
		AbsentDays:       g.AbsentDays,
		PaidLeaveDays:    g.PaidLeaveDays,
		UnpaidLeaveDays:  g.UnpaidLeaveDays,
		HolidayDays:      g.HolidayDays,
		WeekOffDays:      g.WeekOffDays,
		OvertimeHours:    g.OvertimeHours,
		LateCount:        g.LateCount,
		EarlyExitCount:   g.EarlyExitCount,
		AttendanceFactor: g.AttendanceFactor,
		BasicSalary:      g.BasicSalary,
		TotalEarnings:    g.TotalEarnings,
		TotalDeductions:  g.TotalDeductions,
		GrossSalary:      g.GrossSalary,
		NetSalary:        g.NetSalary,
		OvertimePay:      g.OvertimePay,
		LateDeduction:    g.LateDeduction,
		AbsentDeduction:  g.AbsentDeduction,
		LeaveDeduction:   g.LeaveDeduction,
		Status:           string(g.Status),
		PaymentReference: g.PaymentReference,
		Notes:            g.Notes,
	}

	if g.ApprovedAt != nil {
		str := g.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &str
	}
	if g.PaidAt != nil {
		str := g.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &str
	}

	if len(g.Details) > 0 {
		lines := make([]payroll.ComponentResult, 0, len(g.Details))
		for _, d := range g.Details {
			lines = append(lines, payroll.ComponentResult{
				ComponentID:      d.ComponentID,
				Name:             d.Name,
				Code:             d.Code,
				Type:             d.Type,
				CalculationType:  d.CalculationType,
				BaseAmount:       d.BaseAmount,
				CalculatedAmount: d.CalculatedAmount,
				IsProrated:       d.IsProrated,
				ProratedAmount:   d.ProratedAmount,
				Formula:          d.Formula,
			})
		}
		resp.Details = mapToComponentResults(lines)
	}

	return resp
}

func mapToGenerationResponses(records []payroll.SalaryGeneration) []payroll.SalaryGenerationResponse {
	result := make([]payroll.SalaryGenerationResponse, 0, len(records))
	for _, r := range records {
		result = append(result, mapToGenerationResponse(r))
	}
	return result
}
