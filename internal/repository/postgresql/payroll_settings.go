package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// pgErrorCode returns the SQLSTATE of err, or "" if err is not a postgres error.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

type payrollSettingsRepository struct {
	db *database.DB
}

func NewPayrollSettingsRepository(db *database.DB) payroll.SettingsRepository {
	return &payrollSettingsRepository{db: db}
}

func (r *payrollSettingsRepository) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, exclude_weekends, late_grace_count, late_penalty_day_fraction,
			   overtime_multiplier, standard_hours_per_day, created_at, updated_at
		FROM payroll_settings
		WHERE company_id = $1
	`

	var s payroll.PayrollSettings
	err := q.QueryRow(ctx, query, companyID).Scan(
		&s.ID, &s.CompanyID, &s.ExcludeWeekends, &s.LateGraceCount, &s.LatePenaltyDayFraction,
		&s.OvertimeMultiplier, &s.StandardHoursPerDay, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
		}
		return payroll.PayrollSettings{}, fmt.Errorf("failed to get payroll settings: %w", err)
	}

	return s, nil
}

func (r *payrollSettingsRepository) UpsertSettings(ctx context.Context, settings payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_settings (
			id, company_id, exclude_weekends, late_grace_count, late_penalty_day_fraction,
			overtime_multiplier, standard_hours_per_day
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id) DO UPDATE SET
			exclude_weekends = EXCLUDED.exclude_weekends,
			late_grace_count = EXCLUDED.late_grace_count,
			late_penalty_day_fraction = EXCLUDED.late_penalty_day_fraction,
			overtime_multiplier = EXCLUDED.overtime_multiplier,
			standard_hours_per_day = EXCLUDED.standard_hours_per_day,
			updated_at = NOW()
		RETURNING id, company_id, exclude_weekends, late_grace_count, late_penalty_day_fraction,
			overtime_multiplier, standard_hours_per_day, created_at, updated_at
	`

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to generate settings id: %w", err)
	}

	var s payroll.PayrollSettings
	err = q.QueryRow(ctx, query,
		id.String(), settings.CompanyID, settings.ExcludeWeekends, settings.LateGraceCount, settings.LatePenaltyDayFraction,
		settings.OvertimeMultiplier, settings.StandardHoursPerDay,
	).Scan(
		&s.ID, &s.CompanyID, &s.ExcludeWeekends, &s.LateGraceCount, &s.LatePenaltyDayFraction,
		&s.OvertimeMultiplier, &s.StandardHoursPerDay, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollSettings{}, fmt.Errorf("failed to upsert payroll settings: %w", err)
	}

	return s, nil
}
