package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/database"
)

type payrollAttendanceRepository struct {
	db *database.DB
}

func NewPayrollAttendanceRepository(db *database.DB) payroll.AttendanceRepository {
	return &payrollAttendanceRepository{db: db}
}

// GetSummary aggregates one employee's attendance for [start, end].
//
// Present days are on_time or late records; half_day records count 0.5. Approved leave is
// split into paid and unpaid by leave_types.is_paid and clipped to the period, pro rata to the
// request's total_days. Holidays count only on weekdays. Week-off days are weekend days without
// an attendance record and are only counted when weekends are part of the working-day base.
func (r *payrollAttendanceRepository) GetSummary(ctx context.Context, companyID string, employeeID string, start, end time.Time, excludeWeekends bool) (payroll.AttendanceSummary, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		WITH att AS (
			SELECT
				COALESCE(SUM(CASE
					WHEN status IN ('on_time', 'late') THEN 1
					WHEN status = 'half_day' THEN 0.5
					ELSE 0 END), 0) AS present_days,
				COUNT(*) FILTER (WHERE status = 'absent') AS absent_days,
				COALESCE(SUM(overtime_minutes), 0) / 60.0 AS overtime_hours,
				COUNT(*) FILTER (WHERE status = 'late') AS late_count,
				COUNT(*) FILTER (WHERE early_leave_minutes > 0) AS early_exit_count
			FROM attendances
			WHERE company_id = $1 AND employee_id = $2 AND date BETWEEN $3::date AND $4::date
		),
		lv AS (
			SELECT
				COALESCE(SUM(days) FILTER (WHERE is_paid), 0) AS paid_leave_days,
				COALESCE(SUM(days) FILTER (WHERE NOT is_paid), 0) AS unpaid_leave_days
			FROM (
				SELECT lt.is_paid,
					(LEAST(lr.end_date, $4::date) - GREATEST(lr.start_date, $3::date) + 1)
						* lr.total_days / (lr.end_date - lr.start_date + 1) AS days
				FROM leave_requests lr
				JOIN leave_types lt ON lr.leave_type_id = lt.id
				WHERE lr.employee_id = $2
				  AND lt.company_id = $1
				  AND lr.status = 'approved'
				  AND lr.start_date <= $4::date AND lr.end_date >= $3::date
			) clipped
		),
		hol AS (
			SELECT COUNT(*) AS holiday_days
			FROM holidays
			WHERE company_id = $1 AND date BETWEEN $3::date AND $4::date
			  AND EXTRACT(ISODOW FROM date) < 6
		),
		wo AS (
			SELECT COUNT(*) AS week_off_days
			FROM generate_series($3::date, $4::date, interval '1 day') AS day
			WHERE NOT $5::boolean
			  AND EXTRACT(ISODOW FROM day) >= 6
			  AND NOT EXISTS (
				SELECT 1 FROM attendances a
				WHERE a.company_id = $1 AND a.employee_id = $2 AND a.date = day::date
			  )
		)
		SELECT att.present_days, att.absent_days, lv.paid_leave_days, lv.unpaid_leave_days,
			   hol.holiday_days, wo.week_off_days, att.overtime_hours, att.late_count, att.early_exit_count
		FROM att, lv, hol, wo
	`

	summary := payroll.AttendanceSummary{EmployeeID: employeeID}
	err := q.QueryRow(ctx, query, companyID, employeeID, start, end, excludeWeekends).Scan(
		&summary.PresentDays, &summary.AbsentDays, &summary.PaidLeaveDays, &summary.UnpaidLeaveDays,
		&summary.HolidayDays, &summary.WeekOffDays, &summary.OvertimeHours, &summary.LateCount, &summary.EarlyExitCount,
	)
	if err != nil {
		return payroll.AttendanceSummary{}, fmt.Errorf("failed to get attendance summary: %w", err)
	}

	return summary, nil
}
