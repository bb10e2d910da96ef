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

type salaryComponentRepository struct {
	db *database.DB
}

func NewSalaryComponentRepository(db *database.DB) payroll.ComponentRepository {
	return &salaryComponentRepository{db: db}
}

const salaryComponentColumns = `id, company_id, name, code, type, calculation_type, description, is_active, created_at, updated_at`

func scanSalaryComponent(row pgx.Row) (payroll.SalaryComponent, error) {
	var c payroll.SalaryComponent
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.Code, &c.Type, &c.CalculationType,
		&c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *salaryComponentRepository) Create(ctx context.Context, component payroll.SalaryComponent) (payroll.SalaryComponent, error) {
	q := GetQuerier(ctx, r.db)

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.SalaryComponent{}, fmt.Errorf("failed to generate component id: %w", err)
	}

	query := `
		INSERT INTO salary_components (id, company_id, name, code, type, calculation_type, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + salaryComponentColumns

	c, err := scanSalaryComponent(q.QueryRow(ctx, query,
		id.String(), component.CompanyID, component.Name, component.Code, component.Type,
		component.CalculationType, component.Description, component.IsActive,
	))
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return payroll.SalaryComponent{}, payroll.ErrComponentCodeExists
		}
		return payroll.SalaryComponent{}, fmt.Errorf("failed to create salary component: %w", err)
	}

	return c, nil
}

func (r *salaryComponentRepository) GetByID(ctx context.Context, id string, companyID string) (payroll.SalaryComponent, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + salaryComponentColumns + ` FROM salary_components WHERE id = $1 AND company_id = $2`

	c, err := scanSalaryComponent(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.SalaryComponent{}, payroll.ErrSalaryComponentNotFound
		}
		return payroll.SalaryComponent{}, fmt.Errorf("failed to get salary component: %w", err)
	}

	return c, nil
}

func (r *salaryComponentRepository) GetByCompanyID(ctx context.Context, companyID string, activeOnly bool) ([]payroll.SalaryComponent, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + salaryComponentColumns + ` FROM salary_components WHERE company_id = $1`
	if activeOnly {
		query += " AND is_active = true"
	}
	query += " ORDER BY type, code"

	return r.query(ctx, q, query, companyID)
}

func (r *salaryComponentRepository) GetByIDs(ctx context.Context, ids []string, companyID string) ([]payroll.SalaryComponent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + salaryComponentColumns + ` FROM salary_components WHERE id = ANY($1) AND company_id = $2`

	return r.query(ctx, q, query, ids, companyID)
}

func (r *salaryComponentRepository) query(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]payroll.SalaryComponent, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary components: %w", err)
	}
	defer rows.Close()

	var components []payroll.SalaryComponent
	for rows.Next() {
		c, err := scanSalaryComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate salary components: %w", err)
	}

	return components, nil
}

func (r *salaryComponentRepository) Update(ctx context.Context, companyID string, req payroll.UpdateSalaryComponentRequest) error {
	q := GetQuerier(ctx, r.db)

	setParts := []string{"updated_at = NOW()"}
	args := []interface{}{req.ID, companyID}
	argIdx := 3

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, strings.TrimSpace(*req.Name))
		argIdx++
	}
	if req.Type != nil {
		setParts = append(setParts, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *req.Type)
		argIdx++
	}
	if req.CalculationType != nil {
		setParts = append(setParts, fmt.Sprintf("calculation_type = $%d", argIdx))
		args = append(args, *req.CalculationType)
		argIdx++
	}
	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *req.Description)
		argIdx++
	}
	if req.IsActive != nil {
		setParts = append(setParts, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *req.IsActive)
	}

	query := fmt.Sprintf(`
		UPDATE salary_components
		SET %s
		WHERE id = $1 AND company_id = $2
		RETURNING id
	`, strings.Join(setParts, ", "))

	var updatedID string
	err := q.QueryRow(ctx, query, args...).Scan(&updatedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.ErrSalaryComponentNotFound
		}
		return fmt.Errorf("failed to update salary component: %w", err)
	}

	return nil
}

func (r *salaryComponentRepository) Delete(ctx context.Context, id string, companyID string) error {
	q := GetQuerier(ctx, r.db)

	query := `DELETE FROM salary_components WHERE id = $1 AND company_id = $2 RETURNING id`

	var deletedID string
	err := q.QueryRow(ctx, query, id, companyID).Scan(&deletedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.ErrSalaryComponentNotFound
		}
		// still referenced by a structure
		if pgErrorCode(err) == pgForeignKeyViolation {
			return payroll.ErrComponentInUse
		}
		return fmt.Errorf("failed to delete salary component: %w", err)
	}

	return nil
}
