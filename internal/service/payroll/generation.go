package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/formula"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type payPeriod struct {
	year        int
	month       int
	start       time.Time
	end         time.Time
	workingDays int
}

func newPayPeriod(year, month int, excludeWeekends bool) payPeriod {
	start, end := PeriodBounds(year, time.Month(month))
	return payPeriod{
		year:        year,
		month:       month,
		start:       start,
		end:         end,
		workingDays: TotalWorkingDays(year, time.Month(month), excludeWeekends),
	}
}

// employeeOutcome is the result slot for one employee in a batch.
type employeeOutcome struct {
	generation payroll.SalaryGeneration
	skipped    bool
	err        error
}

// ========== PREVIEW ==========

func (s *PayrollServiceImpl) PreviewSalary(ctx context.Context, req payroll.PreviewSalaryRequest) (payroll.SalaryBreakdownResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.SalaryBreakdownResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryBreakdownResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID, companyID)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return payroll.SalaryBreakdownResponse{}, payroll.ErrEmployeeNotFound
		}
		return payroll.SalaryBreakdownResponse{}, err
	}

	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return payroll.SalaryBreakdownResponse{}, err
	}

	period := newPayPeriod(req.PeriodYear, req.PeriodMonth, settings.ExcludeWeekends)
	result, _, err := s.compute(ctx, companyID, emp, settings, period)
	if err != nil {
		return payroll.SalaryBreakdownResponse{}, err
	}

	return payroll.SalaryBreakdownResponse{
		EmployeeID:       emp.ID,
		EmployeeName:     emp.FullName,
		PeriodMonth:      period.month,
		PeriodYear:       period.year,
		TotalWorkingDays: result.TotalWorkingDays,
		AttendanceFactor: result.AttendanceFactor,
		Components:       mapToComponentResults(result.Components),
		BasicSalary:      result.BasicSalary,
		TotalEarnings:    result.TotalEarnings,
		TotalDeductions:  result.TotalDeductions,
		GrossSalary:      result.GrossSalary,
		NetSalary:        result.NetSalary,
		OvertimePay:      result.OvertimePay,
		LateDeduction:    result.LateDeduction,
		AbsentDeduction:  result.AbsentDeduction,
		LeaveDeduction:   result.LeaveDeduction,
	}, nil
}

// compute loads the structure and attendance for one employee and runs the calculator.
func (s *PayrollServiceImpl) compute(ctx context.Context, companyID string, emp employee.Employee, settings payroll.PayrollSettings, period payPeriod) (payroll.SalaryComputation, payroll.AttendanceSummary, error) {
	structure, err := s.structureRepo.GetActive(ctx, emp.ID, companyID, period.end)
	if errors.Is(err, payroll.ErrSalaryStructureNotFound) {
		// employees who left mid-period may only have a structure at the start
		structure, err = s.structureRepo.GetActive(ctx, emp.ID, companyID, period.start)
	}
	if err != nil {
		return payroll.SalaryComputation{}, payroll.AttendanceSummary{}, err
	}

	summary, err := s.attendanceRepo.GetSummary(ctx, companyID, emp.ID, period.start, period.end, settings.ExcludeWeekends)
	if err != nil {
		return payroll.SalaryComputation{}, payroll.AttendanceSummary{}, fmt.Errorf("failed to get attendance summary: %w", err)
	}
	summary.EmployeeID = emp.ID

	result := s.calculator.Calculate(CalculationInput{
		Components:       structure.Components,
		Attendance:       summary,
		TotalWorkingDays: period.workingDays,
		Context:          employeeContext(emp, summary, period),
		Policy:           settings,
	})
	return result, summary, nil
}

// employeeContext exposes employee attributes and attendance counters to formulas.
func employeeContext(emp employee.Employee, summary payroll.AttendanceSummary, period payPeriod) map[string]formula.Value {
	text := func(s *string) formula.Value {
		if s == nil {
			return formula.String("")
		}
		return formula.String(*s)
	}

	return map[string]formula.Value{
		"GRADE":           text(emp.GradeName),
		"DESIGNATION":     text(emp.PositionName),
		"DEPARTMENT":      text(emp.DepartmentName),
		"EMPLOYMENT_TYPE": formula.String(string(emp.EmploymentType)),
		"WORKING_DAYS":    formula.Number(decimal.NewFromInt(int64(period.workingDays))),
		"PRESENT_DAYS":    formula.Number(summary.PresentDays),
		"PAID_DAYS":       formula.Number(summary.PaidDays()),
		"ABSENT_DAYS":     formula.Number(summary.AbsentDays),
		"OVERTIME_HOURS":  formula.Number(summary.OvertimeHours),
		"LATE_COUNT":      formula.Number(decimal.NewFromInt(int64(summary.LateCount))),
	}
}

// ========== GENERATION ==========

func (s *PayrollServiceImpl) GenerateSalaries(ctx context.Context, req payroll.GenerateSalaryRequest) (payroll.GenerateSalaryResponse, error) {
	companyID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.GenerateSalaryResponse{}, err
	}

	var generatedBy *string
	if userID != "" {
		generatedBy = &userID
	}
	return s.generate(ctx, companyID, generatedBy, req)
}

func (s *PayrollServiceImpl) GenerateForCompany(ctx context.Context, companyID string, req payroll.GenerateSalaryRequest) (payroll.GenerateSalaryResponse, error) {
	return s.generate(ctx, companyID, nil, req)
}

func (s *PayrollServiceImpl) generate(ctx context.Context, companyID string, generatedBy *string, req payroll.GenerateSalaryRequest) (payroll.GenerateSalaryResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.GenerateSalaryResponse{}, err
	}
	started := s.now()

	var (
		settings  payroll.PayrollSettings
		employees []employee.Employee
		existing  map[string]bool
	)

	start, end := PeriodBounds(req.PeriodYear, time.Month(req.PeriodMonth))
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		settings, err = s.loadSettings(gCtx, companyID)
		return err
	})

	g.Go(func() error {
		var err error
		employees, err = s.employeeRepo.GetEmployedDuring(gCtx, companyID, start, end, employee.PayrollFilter{
			EmployeeIDs:  req.EmployeeIDs,
			DepartmentID: req.DepartmentID,
		})
		if err != nil {
			return fmt.Errorf("failed to get employees: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		existing, err = s.generationRepo.GetEmployeeIDsWithGeneration(gCtx, companyID, req.PeriodMonth, req.PeriodYear)
		if err != nil {
			return fmt.Errorf("failed to check existing generations: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return payroll.GenerateSalaryResponse{}, err
	}

	period := newPayPeriod(req.PeriodYear, req.PeriodMonth, settings.ExcludeWeekends)
	outcomes := make([]employeeOutcome, len(employees))

	var workers errgroup.Group
	workers.SetLimit(s.workers)
	for i, emp := range employees {
		if existing[emp.ID] {
			outcomes[i].skipped = true
			continue
		}
		i, emp := i, emp
		workers.Go(func() error {
			outcomes[i] = s.generateForEmployee(ctx, companyID, generatedBy, emp, settings, period)
			return nil
		})
	}
	// failures are reported per employee through outcomes
	_ = workers.Wait()

	resp := payroll.GenerateSalaryResponse{
		PeriodMonth:        period.month,
		PeriodYear:         period.year,
		Generated:          make([]payroll.SalaryGenerationResponse, 0, len(employees)),
		SkippedEmployeeIDs: make([]string, 0),
		Errors:             make([]payroll.GenerationError, 0),
	}

	for i, outcome := range outcomes {
		emp := employees[i]
		switch {
		case outcome.err != nil:
			slog.Error("Salary generation failed for employee",
				"company_id", companyID,
				"employee_id", emp.ID,
				"period", fmt.Sprintf("%d-%02d", period.year, period.month),
				"error", outcome.err,
			)
			resp.Errors = append(resp.Errors, payroll.GenerationError{
				EmployeeID:   emp.ID,
				EmployeeName: emp.FullName,
				Message:      outcome.err.Error(),
			})
		case outcome.skipped:
			resp.Skipped++
			resp.SkippedEmployeeIDs = append(resp.SkippedEmployeeIDs, emp.ID)
		default:
			resp.Generated = append(resp.Generated, mapToGenerationResponse(outcome.generation))
		}
	}

	s.metrics.AddGenerations(metrics.OutcomeGenerated, len(resp.Generated))
	s.metrics.AddGenerations(metrics.OutcomeSkipped, resp.Skipped)
	s.metrics.AddGenerations(metrics.OutcomeFailed, len(resp.Errors))
	s.metrics.ObserveBatch(s.now().Sub(started))

	slog.Info("Salary generation completed",
		"company_id", companyID,
		"period", fmt.Sprintf("%d-%02d", period.year, period.month),
		"eligible", len(employees),
		"generated", len(resp.Generated),
		"skipped", resp.Skipped,
		"failed", len(resp.Errors),
	)

	return resp, nil
}

func (s *PayrollServiceImpl) generateForEmployee(ctx context.Context, companyID string, generatedBy *string, emp employee.Employee, settings payroll.PayrollSettings, period payPeriod) employeeOutcome {
	if err := ctx.Err(); err != nil {
		return employeeOutcome{err: err}
	}

	result, summary, err := s.compute(ctx, companyID, emp, settings, period)
	if err != nil {
		return employeeOutcome{err: err}
	}

	record := buildGeneration(companyID, emp, period, summary, result)
	record.GeneratedBy = generatedBy

	created, ok, err := s.generationRepo.Create(ctx, record)
	if err != nil {
		return employeeOutcome{err: fmt.Errorf("failed to save salary generation: %w", err)}
	}
	if !ok {
		// another request generated this employee after the pre-check
		return employeeOutcome{skipped: true}
	}

	created.EmployeeName = &emp.FullName
	created.EmployeeCode = &emp.EmployeeCode
	created.DepartmentName = emp.DepartmentName
	created.PositionName = emp.PositionName
	return employeeOutcome{generation: created}
}

func buildGeneration(companyID string, emp employee.Employee, period payPeriod, summary payroll.AttendanceSummary, result payroll.SalaryComputation) payroll.SalaryGeneration {
	details := make([]payroll.GenerationDetail, 0, len(result.Components))
	for i, line := range result.Components {
		details = append(details, payroll.GenerationDetail{
			ComponentID:      line.ComponentID,
			Name:             line.Name,
			Code:             line.Code,
			Type:             line.Type,
			CalculationType:  line.CalculationType,
			BaseAmount:       line.BaseAmount,
			CalculatedAmount: line.CalculatedAmount,
			IsProrated:       line.IsProrated,
			ProratedAmount:   line.ProratedAmount,
			Formula:          line.Formula,
			LineOrder:        i + 1,
		})
	}

	return payroll.SalaryGeneration{
		CompanyID:        companyID,
		EmployeeID:       emp.ID,
		PeriodMonth:      period.month,
		PeriodYear:       period.year,
		PeriodStart:      period.start,
		PeriodEnd:        period.end,
		TotalWorkingDays: result.TotalWorkingDays,
		PresentDays:      summary.PresentDays,
		AbsentDays:       summary.AbsentDays,
		PaidLeaveDays:    summary.PaidLeaveDays,
		UnpaidLeaveDays:  summary.UnpaidLeaveDays,
		HolidayDays:      summary.HolidayDays,
		WeekOffDays:      summary.WeekOffDays,
		OvertimeHours:    summary.OvertimeHours,
		LateCount:        summary.LateCount,
		EarlyExitCount:   summary.EarlyExitCount,
		AttendanceFactor: result.AttendanceFactor.Round(4),
		BasicSalary:      result.BasicSalary,
		TotalEarnings:    result.TotalEarnings,
		TotalDeductions:  result.TotalDeductions,
		GrossSalary:      result.GrossSalary,
		NetSalary:        result.NetSalary,
		OvertimePay:      result.OvertimePay,
		LateDeduction:    result.LateDeduction,
		AbsentDeduction:  result.AbsentDeduction,
		LeaveDeduction:   result.LeaveDeduction,
		Status:           payroll.GenerationStatusGenerated,
		Details:          details,
	}
}

// ========== RECORDS ==========

func (s *PayrollServiceImpl) GetGeneration(ctx context.Context, id string) (payroll.SalaryGenerationResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.SalaryGenerationResponse{}, err
	}

	record, err := s.generationRepo.GetByID(ctx, id, companyID)
	if err != nil {
		return payroll.SalaryGenerationResponse{}, err
	}

	return mapToGenerationResponse(record), nil
}

func (s *PayrollServiceImpl) ListGenerations(ctx context.Context, filter payroll.GenerationFilter) (payroll.ListSalaryGenerationResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListSalaryGenerationResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ListSalaryGenerationResponse{}, err
	}

	records, totalCount, err := s.generationRepo.List(ctx, companyID, filter)
	if err != nil {
		return payroll.ListSalaryGenerationResponse{}, err
	}

	return payroll.ListSalaryGenerationResponse{
		Data:       mapToGenerationResponses(records),
		TotalCount: totalCount,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) ApproveGenerations(ctx context.Context, req payroll.ApproveGenerationsRequest) (payroll.BulkStatusResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.BulkStatusResponse{}, err
	}
	return s.changeStatus(ctx, req.RecordIDs, payroll.GenerationStatusApproved, nil)
}

func (s *PayrollServiceImpl) PayGenerations(ctx context.Context, req payroll.PayGenerationsRequest) (payroll.BulkStatusResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.BulkStatusResponse{}, err
	}
	return s.changeStatus(ctx, req.RecordIDs, payroll.GenerationStatusPaid, req.PaymentReference)
}

// changeStatus moves each record to target independently. When no record could be
// moved the first failure is returned as the error.
func (s *PayrollServiceImpl) changeStatus(ctx context.Context, ids []string, target payroll.GenerationStatus, paymentReference *string) (payroll.BulkStatusResponse, error) {
	companyID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.BulkStatusResponse{}, err
	}

	prior, ok := payroll.RequiredPriorStatus(target)
	if !ok {
		return payroll.BulkStatusResponse{}, payroll.ErrInvalidStatusTransition
	}

	resp := payroll.BulkStatusResponse{Results: make([]payroll.StatusChangeResult, 0, len(ids))}
	var firstErr error

	for _, id := range ids {
		status, err := s.transition(ctx, companyID, id, payroll.StatusChange{
			ID:               id,
			From:             prior,
			To:               target,
			ChangedBy:        userID,
			ChangedAt:        s.now(),
			PaymentReference: paymentReference,
		})

		result := payroll.StatusChangeResult{ID: id, Status: string(status)}
		if err != nil {
			result.Error = err.Error()
			resp.Failed++
			if firstErr == nil {
				firstErr = err
			}
		} else {
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, result)
	}

	if resp.Succeeded == 0 && firstErr != nil {
		return payroll.BulkStatusResponse{}, firstErr
	}
	return resp, nil
}

func (s *PayrollServiceImpl) transition(ctx context.Context, companyID, id string, change payroll.StatusChange) (payroll.GenerationStatus, error) {
	record, err := s.generationRepo.GetByID(ctx, id, companyID)
	if err != nil {
		return "", err
	}

	if record.Status != change.From {
		return record.Status, fmt.Errorf("%w: record is %s, must be %s to become %s",
			payroll.ErrInvalidStatusTransition, record.Status, change.From, change.To)
	}

	if err := s.generationRepo.UpdateStatus(ctx, companyID, change); err != nil {
		return record.Status, err
	}
	return change.To, nil
}

func (s *PayrollServiceImpl) DeleteGeneration(ctx context.Context, id string) error {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return err
	}

	record, err := s.generationRepo.GetByID(ctx, id, companyID)
	if err != nil {
		return err
	}
	if !record.Status.CanDelete() {
		return payroll.ErrCannotDeletePaid
	}

	return s.generationRepo.Delete(ctx, id, companyID)
}

// ========== SUMMARY ==========

func (s *PayrollServiceImpl) GetSummary(ctx context.Context, month, year int) (payroll.PayrollSummaryResponse, error) {
	if month < 1 || month > 12 || year < 2020 {
		return payroll.PayrollSummaryResponse{}, validator.ValidationErrors{
			{Field: "period", Message: "period_month must be 1-12 and period_year 2020 or later"},
		}
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollSummaryResponse{}, err
	}

	return s.generationRepo.GetSummary(ctx, companyID, month, year)
}
