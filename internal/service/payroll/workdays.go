package payroll

import (
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// PeriodBounds returns the first and last calendar day of the pay period in UTC.
func PeriodBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}

// TotalWorkingDays counts the days of the month, leaving out Saturdays and Sundays
// when excludeWeekends is set. Company holidays are not subtracted.
func TotalWorkingDays(year int, month time.Month, excludeWeekends bool) int {
	start, end := PeriodBounds(year, month)
	days := end.Day()
	if !excludeWeekends {
		return days
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			days--
		}
	}
	return days
}

// AttendanceFactor is paid days over working days, or 1 when there are no working days.
// The factor is not clamped, so it can exceed 1.
func AttendanceFactor(summary payroll.AttendanceSummary, totalWorkingDays int) decimal.Decimal {
	if totalWorkingDays <= 0 {
		return decimal.NewFromInt(1)
	}
	return summary.PaidDays().Div(decimal.NewFromInt(int64(totalWorkingDays)))
}
