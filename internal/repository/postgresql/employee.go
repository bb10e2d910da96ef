package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `
	e.id, e.company_id, e.department_id, e.position_id, e.grade_id, e.employee_code, e.full_name,
	e.hire_date, e.resignation_date, e.employment_type, e.employment_status,
	e.created_at, e.updated_at, e.deleted_at,
	d.name, p.name, g.name`

const employeeJoins = `
	FROM employees e
	LEFT JOIN departments d ON e.department_id = d.id
	LEFT JOIN positions p ON e.position_id = p.id
	LEFT JOIN grades g ON e.grade_id = g.id`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.CompanyID, &emp.DepartmentID, &emp.PositionID, &emp.GradeID, &emp.EmployeeCode, &emp.FullName,
		&emp.HireDate, &emp.ResignationDate, &emp.EmploymentType, &emp.EmploymentStatus,
		&emp.CreatedAt, &emp.UpdatedAt, &emp.DeletedAt,
		&emp.DepartmentName, &emp.PositionName, &emp.GradeName,
	)
	return emp, err
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string, companyID string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + employeeJoins + `
		WHERE e.id = $1 AND e.company_id = $2 AND e.deleted_at IS NULL`

	emp, err := scanEmployee(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}

	return emp, nil
}

// GetEmployedDuring implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetEmployedDuring(ctx context.Context, companyID string, start, end time.Time, filter employee.PayrollFilter) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	// Resigned employees stay eligible for the period they left in
	query := `SELECT ` + employeeColumns + employeeJoins + `
		WHERE e.company_id = $1
		  AND e.deleted_at IS NULL
		  AND e.hire_date <= $3
		  AND (e.resignation_date IS NULL OR e.resignation_date >= $2)
		  AND (e.employment_status = 'active' OR e.resignation_date IS NOT NULL)`
	args := []interface{}{companyID, start, end}
	argIdx := 4

	if len(filter.EmployeeIDs) > 0 {
		query += fmt.Sprintf(" AND e.id = ANY($%d)", argIdx)
		args = append(args, filter.EmployeeIDs)
		argIdx++
	}
	if filter.DepartmentID != nil {
		query += fmt.Sprintf(" AND e.department_id = $%d", argIdx)
		args = append(args, *filter.DepartmentID)
	}
	query += " ORDER BY e.employee_code"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return employees, nil
}
