package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type salaryStructureRepository struct {
	db *database.DB
}

func NewSalaryStructureRepository(db *database.DB) payroll.StructureRepository {
	return &salaryStructureRepository{db: db}
}

const salaryStructureColumns = `id, employee_id, company_id, effective_from, effective_to, is_active, notes, created_by, created_at`

func scanSalaryStructure(row pgx.Row) (payroll.SalaryStructure, error) {
	var s payroll.SalaryStructure
	err := row.Scan(
		&s.ID, &s.EmployeeID, &s.CompanyID, &s.EffectiveFrom, &s.EffectiveTo,
		&s.IsActive, &s.Notes, &s.CreatedBy, &s.CreatedAt,
	)
	return s, err
}

func (r *salaryStructureRepository) Create(ctx context.Context, structure payroll.SalaryStructure) (payroll.SalaryStructure, error) {
	var created payroll.SalaryStructure

	err := WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		// Lock the open revision so concurrent assignments serialize on it
		var currentID string
		var currentFrom time.Time
		err := tx.QueryRow(ctx, `
			SELECT id, effective_from
			FROM salary_structures
			WHERE employee_id = $1 AND company_id = $2 AND effective_to IS NULL
			FOR UPDATE
		`, structure.EmployeeID, structure.CompanyID).Scan(&currentID, &currentFrom)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// first structure for this employee
		case err != nil:
			return fmt.Errorf("failed to lock current salary structure: %w", err)
		default:
			if !structure.EffectiveFrom.After(currentFrom) {
				return payroll.ErrStructureOverlap
			}
			if _, err := tx.Exec(ctx, `
				UPDATE salary_structures
				SET effective_to = $2, is_active = false
				WHERE id = $1
			`, currentID, structure.EffectiveFrom.AddDate(0, 0, -1)); err != nil {
				return fmt.Errorf("failed to close current salary structure: %w", err)
			}
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate structure id: %w", err)
		}

		created, err = scanSalaryStructure(tx.QueryRow(ctx, `
			INSERT INTO salary_structures (id, employee_id, company_id, effective_from, effective_to, is_active, notes, created_by)
			VALUES ($1, $2, $3, $4, NULL, true, $5, $6)
			RETURNING `+salaryStructureColumns,
			id.String(), structure.EmployeeID, structure.CompanyID, structure.EffectiveFrom, structure.Notes, structure.CreatedBy,
		))
		if err != nil {
			return fmt.Errorf("failed to create salary structure: %w", err)
		}

		for _, c := range structure.Components {
			componentID, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate structure component id: %w", err)
			}
			c.ID = componentID.String()
			c.StructureID = created.ID

			if _, err := tx.Exec(ctx, `
				INSERT INTO salary_structure_components (
					id, structure_id, component_id, value_type, fixed_amount, percentage_value,
					percentage_base, formula_expression, is_prorated, sort_order
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, c.ID, c.StructureID, c.ComponentID, c.ValueType, c.FixedAmount, c.PercentageValue,
				c.PercentageBase, c.FormulaExpression, c.IsProrated, c.SortOrder,
			); err != nil {
				if pgErrorCode(err) == pgForeignKeyViolation {
					return payroll.ErrStructureComponentMissing
				}
				return fmt.Errorf("failed to create salary structure component: %w", err)
			}
		}

		// Reload inside the transaction to pick up component names and codes
		components, err := r.getComponents(ContextWithTx(ctx, tx), []string{created.ID})
		if err != nil {
			return err
		}
		created.Components = components[created.ID]

		return nil
	})
	if err != nil {
		return payroll.SalaryStructure{}, err
	}

	return created, nil
}

func (r *salaryStructureRepository) GetByEmployeeID(ctx context.Context, employeeID string, companyID string) ([]payroll.SalaryStructure, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT `+salaryStructureColumns+`
		FROM salary_structures
		WHERE employee_id = $1 AND company_id = $2
		ORDER BY effective_from DESC
	`, employeeID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary structures: %w", err)
	}
	defer rows.Close()

	var structures []payroll.SalaryStructure
	for rows.Next() {
		s, err := scanSalaryStructure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary structure: %w", err)
		}
		structures = append(structures, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate salary structures: %w", err)
	}
	if len(structures) == 0 {
		return structures, nil
	}

	ids := make([]string, 0, len(structures))
	for _, s := range structures {
		ids = append(ids, s.ID)
	}
	components, err := r.getComponents(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range structures {
		structures[i].Components = components[structures[i].ID]
	}

	return structures, nil
}

func (r *salaryStructureRepository) GetActive(ctx context.Context, employeeID string, companyID string, day time.Time) (payroll.SalaryStructure, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanSalaryStructure(q.QueryRow(ctx, `
		SELECT `+salaryStructureColumns+`
		FROM salary_structures
		WHERE employee_id = $1 AND company_id = $2
		  AND effective_from <= $3
		  AND (effective_to IS NULL OR effective_to >= $3)
		ORDER BY effective_from DESC
		LIMIT 1
	`, employeeID, companyID, day))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.SalaryStructure{}, payroll.ErrSalaryStructureNotFound
		}
		return payroll.SalaryStructure{}, fmt.Errorf("failed to get active salary structure: %w", err)
	}

	components, err := r.getComponents(ctx, []string{s.ID})
	if err != nil {
		return payroll.SalaryStructure{}, err
	}
	s.Components = components[s.ID]

	return s, nil
}

// getComponents loads the component assignments of the given structures keyed by structure id.
func (r *salaryStructureRepository) getComponents(ctx context.Context, structureIDs []string) (map[string][]payroll.StructureComponent, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT ssc.id, ssc.structure_id, ssc.component_id, ssc.value_type, ssc.fixed_amount,
			   ssc.percentage_value, ssc.percentage_base, ssc.formula_expression, ssc.is_prorated, ssc.sort_order,
			   sc.name, sc.code, sc.type
		FROM salary_structure_components ssc
		JOIN salary_components sc ON ssc.component_id = sc.id
		WHERE ssc.structure_id = ANY($1)
		ORDER BY ssc.structure_id, ssc.sort_order
	`, structureIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get salary structure components: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]payroll.StructureComponent, len(structureIDs))
	for rows.Next() {
		var c payroll.StructureComponent
		if err := rows.Scan(
			&c.ID, &c.StructureID, &c.ComponentID, &c.ValueType, &c.FixedAmount,
			&c.PercentageValue, &c.PercentageBase, &c.FormulaExpression, &c.IsProrated, &c.SortOrder,
			&c.ComponentName, &c.ComponentCode, &c.ComponentType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan salary structure component: %w", err)
		}
		result[c.StructureID] = append(result[c.StructureID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate salary structure components: %w", err)
	}

	return result, nil
}

func (r *salaryStructureRepository) GetCompanyIDsWithActiveStructures(ctx context.Context, day time.Time) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT DISTINCT company_id
		FROM salary_structures
		WHERE effective_from <= $1 AND (effective_to IS NULL OR effective_to >= $1)
		ORDER BY company_id
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies with salary structures: %w", err)
	}
	defer rows.Close()

	var companyIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company id: %w", err)
		}
		companyIDs = append(companyIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate company ids: %w", err)
	}

	return companyIDs, nil
}
