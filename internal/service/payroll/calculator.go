package payroll

import (
	"log/slog"
	"strings"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/formula"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Codes of the synthetic lines produced from attendance counters.
const (
	CodeAbsentDeduction      = "ABSENT_DEDUCTION"
	CodeUnpaidLeaveDeduction = "UNPAID_LEAVE_DEDUCTION"
	CodeLateDeduction        = "LATE_DEDUCTION"
	CodeOvertimePay          = "OVERTIME_PAY"
)

const basicSalaryCode = "BP"

var hundred = decimal.NewFromInt(100)

// CalculationInput is everything the calculator needs for one employee and period.
type CalculationInput struct {
	// Components in structure order. Percentage and formula components only see
	// codes computed before them; a code that is not yet known reads as 0.
	Components       []payroll.StructureComponent
	Attendance       payroll.AttendanceSummary
	TotalWorkingDays int
	// Context holds extra variables such as GRADE or DESIGNATION.
	Context map[string]formula.Value
	Policy  payroll.PayrollSettings
}

// Calculator turns a salary structure and attendance summary into a salary breakdown.
// It performs no I/O and keeps no state between calls.
type Calculator struct {
	logger  *slog.Logger
	metrics *metrics.Payroll
}

func NewCalculator(logger *slog.Logger, m *metrics.Payroll) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger, metrics: m}
}

type breakdown struct {
	result     payroll.SalaryComputation
	basicFound bool
}

func (b *breakdown) add(line payroll.ComponentResult) {
	b.result.Components = append(b.result.Components, line)

	if line.Type == payroll.ComponentTypeDeduction {
		b.result.TotalDeductions = b.result.TotalDeductions.Add(line.CalculatedAmount)
		return
	}

	b.result.TotalEarnings = b.result.TotalEarnings.Add(line.CalculatedAmount)
	if !b.basicFound && line.ComponentID != nil && isBasicComponent(line.Code, line.Name) {
		b.result.BasicSalary = line.CalculatedAmount
		b.basicFound = true
	}
}

func isBasicComponent(code, name string) bool {
	return strings.EqualFold(code, basicSalaryCode) || strings.Contains(strings.ToLower(name), "basic")
}

// Calculate runs the fixed/percentage pass, the formula pass and the policy pass in that order.
func (c *Calculator) Calculate(in CalculationInput) payroll.SalaryComputation {
	factor := AttendanceFactor(in.Attendance, in.TotalWorkingDays)

	b := &breakdown{
		result: payroll.SalaryComputation{
			TotalWorkingDays: in.TotalWorkingDays,
			AttendanceFactor: factor,
			Components:       make([]payroll.ComponentResult, 0, len(in.Components)+4),
		},
	}
	vars := newScope(in.Context)

	for _, comp := range in.Components {
		var base decimal.Decimal
		switch comp.ValueType {
		case payroll.CalculationTypeFixed:
			if comp.FixedAmount != nil {
				base = *comp.FixedAmount
			}
		case payroll.CalculationTypePercentage:
			base = percentageOf(comp, vars)
		default:
			continue
		}

		line := prorate(comp, base, factor)
		b.add(line)
		vars = vars.with(comp.ComponentCode, formula.Number(line.CalculatedAmount))
	}

	for _, comp := range in.Components {
		if comp.ValueType != payroll.CalculationTypeFormula || comp.FormulaExpression == nil {
			continue
		}
		expr := strings.TrimSpace(*comp.FormulaExpression)
		if expr == "" {
			continue
		}

		base, err := formula.Evaluate(expr, vars)
		if err != nil {
			c.logger.Warn("Formula evaluation failed, using 0",
				"component_code", comp.ComponentCode,
				"formula", expr,
				"error", err,
			)
			c.metrics.FormulaError()
			base = decimal.Zero
		}

		line := prorate(comp, base, factor)
		line.Formula = &expr
		b.add(line)
		vars = vars.with(comp.ComponentCode, formula.Number(line.CalculatedAmount))
	}

	c.applyPolicy(b, in)

	b.result.GrossSalary = b.result.TotalEarnings
	b.result.NetSalary = decimal.Max(decimal.Zero, b.result.GrossSalary.Sub(b.result.TotalDeductions))
	return b.result
}

func percentageOf(comp payroll.StructureComponent, vars *scope) decimal.Decimal {
	if comp.PercentageValue == nil || comp.PercentageBase == nil {
		return decimal.Zero
	}
	v, ok := vars.Lookup(*comp.PercentageBase)
	if !ok || v.Kind() != formula.KindNumber {
		return decimal.Zero
	}
	baseValue, _ := v.Decimal()
	return comp.PercentageValue.Div(hundred).Mul(baseValue)
}

func prorate(comp payroll.StructureComponent, base decimal.Decimal, factor decimal.Decimal) payroll.ComponentResult {
	componentID := comp.ComponentID
	base = base.Round(2)

	line := payroll.ComponentResult{
		ComponentID:      &componentID,
		Name:             comp.ComponentName,
		Code:             strings.ToUpper(comp.ComponentCode),
		Type:             comp.ComponentType,
		CalculationType:  comp.ValueType,
		BaseAmount:       base,
		CalculatedAmount: base,
		IsProrated:       comp.IsProrated,
	}

	if comp.IsProrated && factor.LessThan(decimal.NewFromInt(1)) && base.IsPositive() {
		prorated := base.Mul(factor).Round(2)
		line.CalculatedAmount = prorated
		line.ProratedAmount = &prorated
	}
	return line
}

func (c *Calculator) applyPolicy(b *breakdown, in CalculationInput) {
	basic := b.result.BasicSalary
	att := in.Attendance
	policy := in.Policy

	perDayRate := decimal.Zero
	if basic.IsPositive() && in.TotalWorkingDays > 0 {
		perDayRate = basic.Div(decimal.NewFromInt(int64(in.TotalWorkingDays)))
	}

	if att.AbsentDays.IsPositive() && perDayRate.IsPositive() {
		amount := perDayRate.Mul(att.AbsentDays).Round(2)
		b.result.AbsentDeduction = amount
		b.add(policyLine("Absent Deduction", CodeAbsentDeduction, payroll.ComponentTypeDeduction, amount))
	}

	if att.UnpaidLeaveDays.IsPositive() && perDayRate.IsPositive() {
		amount := perDayRate.Mul(att.UnpaidLeaveDays).Round(2)
		b.result.LeaveDeduction = amount
		b.add(policyLine("Unpaid Leave Deduction", CodeUnpaidLeaveDeduction, payroll.ComponentTypeDeduction, amount))
	}

	if att.LateCount > policy.LateGraceCount && perDayRate.IsPositive() {
		excess := decimal.NewFromInt(int64(att.LateCount - policy.LateGraceCount))
		amount := perDayRate.Mul(policy.LatePenaltyDayFraction).Mul(excess).Round(2)
		if amount.IsPositive() {
			b.result.LateDeduction = amount
			b.add(policyLine("Late Arrival Deduction", CodeLateDeduction, payroll.ComponentTypeDeduction, amount))
		}
	}

	if att.OvertimeHours.IsPositive() && basic.IsPositive() && in.TotalWorkingDays > 0 && policy.StandardHoursPerDay.IsPositive() {
		hours := decimal.NewFromInt(int64(in.TotalWorkingDays)).Mul(policy.StandardHoursPerDay)
		hourlyRate := basic.Div(hours)
		amount := hourlyRate.Mul(policy.OvertimeMultiplier).Mul(att.OvertimeHours).Round(2)
		if amount.IsPositive() {
			b.result.OvertimePay = amount
			b.add(policyLine("Overtime Pay", CodeOvertimePay, payroll.ComponentTypeEarning, amount))
		}
	}
}

func policyLine(name, code string, componentType payroll.ComponentType, amount decimal.Decimal) payroll.ComponentResult {
	return payroll.ComponentResult{
		Name:             name,
		Code:             code,
		Type:             componentType,
		CalculationType:  payroll.CalculationTypePolicy,
		BaseAmount:       amount,
		CalculatedAmount: amount,
	}
}
