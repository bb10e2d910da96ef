package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
)

// CompanyLister finds the tenants that have someone to pay.
type CompanyLister interface {
	GetCompanyIDsWithActiveStructures(ctx context.Context, day time.Time) ([]string, error)
}

// PayrollJobs contains payroll-related cron jobs
type PayrollJobs struct {
	payrollService payroll.PayrollService
	companies      CompanyLister
	interval       time.Duration
	now            func() time.Time
}

// NewPayrollJobs creates payroll cron jobs
func NewPayrollJobs(payrollService payroll.PayrollService, companies CompanyLister, interval time.Duration) *PayrollJobs {
	return &PayrollJobs{
		payrollService: payrollService,
		companies:      companies,
		interval:       interval,
		now:            time.Now,
	}
}

// RegisterJobs registers all payroll-related cron jobs
func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob(
		"generate_previous_month_salaries",
		j.interval,
		j.GeneratePreviousMonth,
	)
}

// GeneratePreviousMonth runs on the first day of a month and generates last month's salaries
// for every company. Records that already exist are skipped by the batch, so repeated runs
// on the same day are harmless.
func (j *PayrollJobs) GeneratePreviousMonth(ctx context.Context) error {
	today := j.now().UTC()
	if today.Day() != 1 {
		return nil
	}

	lastMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	companyIDs, err := j.companies.GetCompanyIDsWithActiveStructures(ctx, lastMonth)
	if err != nil {
		return fmt.Errorf("failed to list companies for salary generation: %w", err)
	}

	slog.Info("Scheduled salary generation starting",
		"period_month", int(lastMonth.Month()), "period_year", lastMonth.Year(), "companies", len(companyIDs))

	req := payroll.GenerateSalaryRequest{PeriodMonth: int(lastMonth.Month()), PeriodYear: lastMonth.Year()}
	var failed int
	for _, companyID := range companyIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := j.payrollService.GenerateForCompany(ctx, companyID, req)
		if err != nil {
			failed++
			slog.Error("Scheduled salary generation failed", "company_id", companyID, "error", err)
			continue
		}
		slog.Info("Scheduled salary generation completed",
			"company_id", companyID,
			"generated", len(result.Generated),
			"skipped", result.Skipped,
			"errors", len(result.Errors))
	}

	if failed > 0 {
		return fmt.Errorf("salary generation failed for %d of %d companies", failed, len(companyIDs))
	}
	return nil
}
