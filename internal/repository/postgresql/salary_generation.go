package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type salaryGenerationRepository struct {
	db *database.DB
}

func NewSalaryGenerationRepository(db *database.DB) payroll.GenerationRepository {
	return &salaryGenerationRepository{db: db}
}

const salaryGenerationColumns = `
	sg.id, sg.company_id, sg.employee_id, sg.period_month, sg.period_year, sg.period_start, sg.period_end,
	sg.total_working_days, sg.present_days, sg.absent_days, sg.paid_leave_days, sg.unpaid_leave_days,
	sg.holiday_days, sg.week_off_days, sg.overtime_hours, sg.late_count, sg.early_exit_count,
	sg.attendance_factor, sg.basic_salary, sg.total_earnings, sg.total_deductions, sg.gross_salary,
	sg.net_salary, sg.overtime_pay, sg.late_deduction, sg.absent_deduction, sg.leave_deduction,
	sg.status, sg.generated_by, sg.approved_by, sg.approved_at, sg.paid_by, sg.paid_at,
	sg.payment_reference, sg.notes, sg.created_at, sg.updated_at,
	e.full_name, e.employee_code, d.name, p.name`

const salaryGenerationJoins = `
	FROM salary_generations sg
	JOIN employees e ON sg.employee_id = e.id
	LEFT JOIN departments d ON e.department_id = d.id
	LEFT JOIN positions p ON e.position_id = p.id`

func scanSalaryGeneration(row pgx.Row) (payroll.SalaryGeneration, error) {
	var g payroll.SalaryGeneration
	err := row.Scan(
		&g.ID, &g.CompanyID, &g.EmployeeID, &g.PeriodMonth, &g.PeriodYear, &g.PeriodStart, &g.PeriodEnd,
		&g.TotalWorkingDays, &g.PresentDays, &g.AbsentDays, &g.PaidLeaveDays, &g.UnpaidLeaveDays,
		&g.HolidayDays, &g.WeekOffDays, &g.OvertimeHours, &g.LateCount, &g.EarlyExitCount,
		&g.AttendanceFactor, &g.BasicSalary, &g.TotalEarnings, &g.TotalDeductions, &g.GrossSalary,
		&g.NetSalary, &g.OvertimePay, &g.LateDeduction, &g.AbsentDeduction, &g.LeaveDeduction,
		&g.Status, &g.GeneratedBy, &g.ApprovedBy, &g.ApprovedAt, &g.PaidBy, &g.PaidAt,
		&g.PaymentReference, &g.Notes, &g.CreatedAt, &g.UpdatedAt,
		&g.EmployeeName, &g.EmployeeCode, &g.DepartmentName, &g.PositionName,
	)
	return g, err
}

func (r *salaryGenerationRepository) Create(ctx context.Context, generation payroll.SalaryGeneration) (payroll.SalaryGeneration, bool, error) {
	created := false

	err := WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate generation id: %w", err)
		}

		// A conflict on (employee, period) inserts nothing and the caller reports a skip
		err = tx.QueryRow(ctx, `
			INSERT INTO salary_generations (
				id, company_id, employee_id, period_month, period_year, period_start, period_end,
				total_working_days, present_days, absent_days, paid_leave_days, unpaid_leave_days,
				holiday_days, week_off_days, overtime_hours, late_count, early_exit_count,
				attendance_factor, basic_salary, total_earnings, total_deductions, gross_salary,
				net_salary, overtime_pay, late_deduction, absent_deduction, leave_deduction,
				status, generated_by, notes
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
				$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30
			)
			ON CONFLICT (employee_id, period_year, period_month) DO NOTHING
			RETURNING id, created_at, updated_at
		`,
			id.String(), generation.CompanyID, generation.EmployeeID, generation.PeriodMonth, generation.PeriodYear,
			generation.PeriodStart, generation.PeriodEnd,
			generation.TotalWorkingDays, generation.PresentDays, generation.AbsentDays, generation.PaidLeaveDays,
			generation.UnpaidLeaveDays, generation.HolidayDays, generation.WeekOffDays, generation.OvertimeHours,
			generation.LateCount, generation.EarlyExitCount,
			generation.AttendanceFactor, generation.BasicSalary, generation.TotalEarnings, generation.TotalDeductions,
			generation.GrossSalary, generation.NetSalary, generation.OvertimePay, generation.LateDeduction,
			generation.AbsentDeduction, generation.LeaveDeduction,
			generation.Status, generation.GeneratedBy, generation.Notes,
		).Scan(&generation.ID, &generation.CreatedAt, &generation.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to create salary generation: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range generation.Details {
			detailID, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate detail id: %w", err)
			}
			d := &generation.Details[i]
			d.ID = detailID.String()
			d.GenerationID = generation.ID

			batch.Queue(`
				INSERT INTO salary_generation_details (
					id, generation_id, component_id, name, code, type, calculation_type,
					base_amount, calculated_amount, is_prorated, prorated_amount, formula, line_order
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			`, d.ID, d.GenerationID, d.ComponentID, d.Name, d.Code, d.Type, d.CalculationType,
				d.BaseAmount, d.CalculatedAmount, d.IsProrated, d.ProratedAmount, d.Formula, d.LineOrder,
			)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to create salary generation details: %w", err)
			}
		}

		created = true
		return nil
	})
	if err != nil {
		return payroll.SalaryGeneration{}, false, err
	}
	if !created {
		return payroll.SalaryGeneration{}, false, nil
	}

	return generation, true, nil
}

func (r *salaryGenerationRepository) GetByID(ctx context.Context, id string, companyID string) (payroll.SalaryGeneration, error) {
	q := GetQuerier(ctx, r.db)

	g, err := scanSalaryGeneration(q.QueryRow(ctx,
		`SELECT `+salaryGenerationColumns+salaryGenerationJoins+` WHERE sg.id = $1 AND sg.company_id = $2`,
		id, companyID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.SalaryGeneration{}, payroll.ErrGenerationNotFound
		}
		return payroll.SalaryGeneration{}, fmt.Errorf("failed to get salary generation: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, generation_id, component_id, name, code, type, calculation_type,
			   base_amount, calculated_amount, is_prorated, prorated_amount, formula, line_order
		FROM salary_generation_details
		WHERE generation_id = $1
		ORDER BY line_order
	`, g.ID)
	if err != nil {
		return payroll.SalaryGeneration{}, fmt.Errorf("failed to get salary generation details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d payroll.GenerationDetail
		if err := rows.Scan(
			&d.ID, &d.GenerationID, &d.ComponentID, &d.Name, &d.Code, &d.Type, &d.CalculationType,
			&d.BaseAmount, &d.CalculatedAmount, &d.IsProrated, &d.ProratedAmount, &d.Formula, &d.LineOrder,
		); err != nil {
			return payroll.SalaryGeneration{}, fmt.Errorf("failed to scan salary generation detail: %w", err)
		}
		g.Details = append(g.Details, d)
	}
	if err := rows.Err(); err != nil {
		return payroll.SalaryGeneration{}, fmt.Errorf("failed to iterate salary generation details: %w", err)
	}

	return g, nil
}

func (r *salaryGenerationRepository) GetEmployeeIDsWithGeneration(ctx context.Context, companyID string, month, year int) (map[string]bool, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT employee_id
		FROM salary_generations
		WHERE company_id = $1 AND period_month = $2 AND period_year = $3
	`, companyID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to get generated employees: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var employeeID string
		if err := rows.Scan(&employeeID); err != nil {
			return nil, fmt.Errorf("failed to scan employee id: %w", err)
		}
		result[employeeID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generated employees: %w", err)
	}

	return result, nil
}

func (r *salaryGenerationRepository) List(ctx context.Context, companyID string, filter payroll.GenerationFilter) ([]payroll.SalaryGeneration, int64, error) {
	q := GetQuerier(ctx, r.db)

	whereClause := ` WHERE sg.company_id = $1`
	args := []interface{}{companyID}
	argIdx := 2

	if filter.PeriodMonth != nil {
		whereClause += fmt.Sprintf(" AND sg.period_month = $%d", argIdx)
		args = append(args, *filter.PeriodMonth)
		argIdx++
	}
	if filter.PeriodYear != nil {
		whereClause += fmt.Sprintf(" AND sg.period_year = $%d", argIdx)
		args = append(args, *filter.PeriodYear)
		argIdx++
	}
	if filter.Status != nil {
		whereClause += fmt.Sprintf(" AND sg.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.EmployeeID != nil {
		whereClause += fmt.Sprintf(" AND sg.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}

	// Count query
	var totalCount int64
	countQuery := "SELECT COUNT(*)" + salaryGenerationJoins + whereClause
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count salary generations: %w", err)
	}

	// Sort
	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	sortColumns := []string{"sg.created_at"}
	allowedColumns := map[string][]string{
		"created_at":    {"sg.created_at"},
		"period":        {"sg.period_year", "sg.period_month"},
		"employee_name": {"e.full_name"},
		"employee_code": {"e.employee_code"},
		"net_salary":    {"sg.net_salary"},
		"status":        {"sg.status"},
	}
	if cols, ok := allowedColumns[filter.SortBy]; ok {
		sortColumns = cols
	}
	orderParts := make([]string, 0, len(sortColumns)+1)
	for _, col := range sortColumns {
		orderParts = append(orderParts, col+" "+sortOrder)
	}
	orderParts = append(orderParts, "sg.id")
	orderBy := strings.Join(orderParts, ", ")

	// Pagination
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`SELECT %s %s %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		salaryGenerationColumns, salaryGenerationJoins, whereClause, orderBy, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list salary generations: %w", err)
	}
	defer rows.Close()

	var generations []payroll.SalaryGeneration
	for rows.Next() {
		g, err := scanSalaryGeneration(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan salary generation: %w", err)
		}
		generations = append(generations, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate salary generations: %w", err)
	}

	return generations, totalCount, nil
}

func (r *salaryGenerationRepository) UpdateStatus(ctx context.Context, companyID string, change payroll.StatusChange) error {
	q := GetQuerier(ctx, r.db)

	var query string
	args := []interface{}{change.ID, companyID, change.From, change.To, change.ChangedBy, change.ChangedAt}

	switch change.To {
	case payroll.GenerationStatusApproved:
		query = `
			UPDATE salary_generations
			SET status = $4, approved_by = $5, approved_at = $6, updated_at = NOW()
			WHERE id = $1 AND company_id = $2 AND status = $3
		`
	case payroll.GenerationStatusPaid:
		query = `
			UPDATE salary_generations
			SET status = $4, paid_by = $5, paid_at = $6, payment_reference = $7, updated_at = NOW()
			WHERE id = $1 AND company_id = $2 AND status = $3
		`
		args = append(args, change.PaymentReference)
	default:
		return payroll.ErrInvalidStatusTransition
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update salary generation status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: either the record is gone or it moved on
	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM salary_generations WHERE id = $1 AND company_id = $2)`,
		change.ID, companyID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check salary generation: %w", err)
	}
	if !exists {
		return payroll.ErrGenerationNotFound
	}
	return payroll.ErrInvalidStatusTransition
}

func (r *salaryGenerationRepository) Delete(ctx context.Context, id string, companyID string) error {
	q := GetQuerier(ctx, r.db)

	var status payroll.GenerationStatus
	err := q.QueryRow(ctx, `
		WITH deleted AS (
			DELETE FROM salary_generations
			WHERE id = $1 AND company_id = $2 AND status <> 'paid'
			RETURNING status
		)
		SELECT status FROM deleted
		UNION ALL
		SELECT status FROM salary_generations
		WHERE id = $1 AND company_id = $2 AND NOT EXISTS (SELECT 1 FROM deleted)
	`, id, companyID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.ErrGenerationNotFound
		}
		return fmt.Errorf("failed to delete salary generation: %w", err)
	}
	if status == payroll.GenerationStatusPaid {
		return payroll.ErrCannotDeletePaid
	}

	return nil
}

func (r *salaryGenerationRepository) GetSummary(ctx context.Context, companyID string, month, year int) (payroll.PayrollSummaryResponse, error) {
	q := GetQuerier(ctx, r.db)

	summary := payroll.PayrollSummaryResponse{PeriodMonth: month, PeriodYear: year}
	err := q.QueryRow(ctx, `
		SELECT COUNT(*),
			   COALESCE(SUM(basic_salary), 0), COALESCE(SUM(total_earnings), 0), COALESCE(SUM(total_deductions), 0),
			   COALESCE(SUM(overtime_pay), 0), COALESCE(SUM(late_deduction), 0),
			   COALESCE(SUM(absent_deduction), 0), COALESCE(SUM(leave_deduction), 0),
			   COALESCE(SUM(gross_salary), 0), COALESCE(SUM(net_salary), 0),
			   COUNT(*) FILTER (WHERE status = 'generated'),
			   COUNT(*) FILTER (WHERE status = 'approved'),
			   COUNT(*) FILTER (WHERE status = 'paid')
		FROM salary_generations
		WHERE company_id = $1 AND period_month = $2 AND period_year = $3
	`, companyID, month, year).Scan(
		&summary.TotalEmployees,
		&summary.TotalBasicSalary, &summary.TotalEarnings, &summary.TotalDeductions,
		&summary.TotalOvertimePay, &summary.TotalLateDeduction,
		&summary.TotalAbsentDeduction, &summary.TotalLeaveDeduction,
		&summary.TotalGrossSalary, &summary.TotalNetSalary,
		&summary.GeneratedCount, &summary.ApprovedCount, &summary.PaidCount,
	)
	if err != nil {
		return payroll.PayrollSummaryResponse{}, fmt.Errorf("failed to get payroll summary: %w", err)
	}

	return summary, nil
}
