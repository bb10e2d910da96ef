package payroll

import (
	"testing"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/formula"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

func fixedComponent(code, name string, typ payroll.ComponentType, amount string, prorated bool) payroll.StructureComponent {
	return payroll.StructureComponent{
		ComponentID:   "comp-" + code,
		ValueType:     payroll.CalculationTypeFixed,
		FixedAmount:   decPtr(amount),
		IsProrated:    prorated,
		ComponentName: name,
		ComponentCode: code,
		ComponentType: typ,
	}
}

func percentageComponent(code, name string, typ payroll.ComponentType, pct, base string) payroll.StructureComponent {
	return payroll.StructureComponent{
		ComponentID:     "comp-" + code,
		ValueType:       payroll.CalculationTypePercentage,
		PercentageValue: decPtr(pct),
		PercentageBase:  strPtr(base),
		ComponentName:   name,
		ComponentCode:   code,
		ComponentType:   typ,
	}
}

func formulaComponent(code, name string, typ payroll.ComponentType, expr string) payroll.StructureComponent {
	return payroll.StructureComponent{
		ComponentID:       "comp-" + code,
		ValueType:         payroll.CalculationTypeFormula,
		FormulaExpression: strPtr(expr),
		ComponentName:     name,
		ComponentCode:     code,
		ComponentType:     typ,
	}
}

func fullAttendance(days int) payroll.AttendanceSummary {
	return payroll.AttendanceSummary{EmployeeID: "emp-1", PresentDays: decimal.NewFromInt(int64(days))}
}

func findLine(t *testing.T, result payroll.SalaryComputation, code string) payroll.ComponentResult {
	t.Helper()
	for _, line := range result.Components {
		if line.Code == code {
			return line
		}
	}
	require.Failf(t, "line not found", "code %s", code)
	return payroll.ComponentResult{}
}

func hasLine(result payroll.SalaryComputation, code string) bool {
	for _, line := range result.Components {
		if line.Code == code {
			return true
		}
	}
	return false
}

func newTestCalculator() *Calculator {
	return NewCalculator(nil, nil)
}

func standardStructure() []payroll.StructureComponent {
	return []payroll.StructureComponent{
		fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "30000", true),
		percentageComponent("HRA", "House Rent Allowance", payroll.ComponentTypeEarning, "40", "bp"),
		formulaComponent("BONUS", "Grade Bonus", payroll.ComponentTypeEarning, "GRADE == 'G3' ? 1500 : 500"),
		percentageComponent("PF", "Provident Fund", payroll.ComponentTypeDeduction, "12", "BP"),
		fixedComponent("TAX", "Professional Tax", payroll.ComponentTypeDeduction, "200", false),
	}
}

func TestCalculator_StandardStructure(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components:       standardStructure(),
		Attendance:       fullAttendance(30),
		TotalWorkingDays: 30,
		Context:          map[string]formula.Value{"grade": formula.String("G3")},
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, dec("1").Equal(result.AttendanceFactor))
	assert.True(t, dec("30000").Equal(result.BasicSalary))
	assert.True(t, dec("12000").Equal(findLine(t, result, "HRA").CalculatedAmount))
	assert.True(t, dec("1500").Equal(findLine(t, result, "BONUS").CalculatedAmount))
	assert.True(t, dec("3600").Equal(findLine(t, result, "PF").CalculatedAmount))

	assert.True(t, dec("43500").Equal(result.TotalEarnings))
	assert.True(t, dec("3800").Equal(result.TotalDeductions))
	assert.True(t, dec("43500").Equal(result.GrossSalary))
	assert.True(t, dec("39700").Equal(result.NetSalary))

	// fixed and percentage lines come before formula lines
	codes := make([]string, 0, len(result.Components))
	for _, line := range result.Components {
		codes = append(codes, line.Code)
	}
	assert.Equal(t, []string{"BP", "HRA", "PF", "TAX", "BONUS"}, codes)
}

func TestCalculator_Deterministic(t *testing.T) {
	in := CalculationInput{
		Components: standardStructure(),
		Attendance: payroll.AttendanceSummary{
			PresentDays:     dec("22"),
			AbsentDays:      dec("2"),
			UnpaidLeaveDays: dec("1"),
			OvertimeHours:   dec("6.5"),
			LateCount:       5,
		},
		TotalWorkingDays: 30,
		Context:          map[string]formula.Value{"GRADE": formula.String("G1"), "DESIGNATION": formula.String("Engineer")},
		Policy:           payroll.DefaultSettings("company-1"),
	}

	calc := newTestCalculator()
	first := calc.Calculate(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, calc.Calculate(in))
	}
}

func TestCalculator_NetSalaryNeverNegative(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{
			fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "1000", false),
			fixedComponent("LOAN", "Loan Repayment", payroll.ComponentTypeDeduction, "5000", false),
		},
		Attendance:       fullAttendance(30),
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, dec("1000").Equal(result.GrossSalary))
	assert.True(t, dec("5000").Equal(result.TotalDeductions))
	assert.True(t, result.NetSalary.IsZero())
}

func TestCalculator_GrossEqualsEarnings(t *testing.T) {
	inputs := []CalculationInput{
		{Components: standardStructure(), Attendance: fullAttendance(30), TotalWorkingDays: 30},
		{Components: standardStructure(), Attendance: payroll.AttendanceSummary{PresentDays: dec("10"), OvertimeHours: dec("12")}, TotalWorkingDays: 22},
		{Components: nil, Attendance: fullAttendance(0), TotalWorkingDays: 0},
	}

	for _, in := range inputs {
		in.Policy = payroll.DefaultSettings("company-1")
		result := newTestCalculator().Calculate(in)
		assert.True(t, result.GrossSalary.Equal(result.TotalEarnings))
		assert.False(t, result.NetSalary.IsNegative())
	}
}

func TestCalculator_Proration(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{
			fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "1000", true),
			fixedComponent("MEAL", "Meal Allowance", payroll.ComponentTypeEarning, "500", false),
		},
		Attendance: payroll.AttendanceSummary{
			PresentDays:   dec("20"),
			PaidLeaveDays: dec("2"),
			HolidayDays:   dec("1"),
			WeekOffDays:   dec("1"),
		},
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, dec("0.8").Equal(result.AttendanceFactor))

	bp := findLine(t, result, "BP")
	assert.True(t, dec("800").Equal(bp.CalculatedAmount))
	require.NotNil(t, bp.ProratedAmount)
	assert.True(t, dec("800").Equal(*bp.ProratedAmount))
	assert.True(t, dec("1000").Equal(bp.BaseAmount))

	meal := findLine(t, result, "MEAL")
	assert.True(t, dec("500").Equal(meal.CalculatedAmount))
	assert.Nil(t, meal.ProratedAmount)

	assert.True(t, dec("800").Equal(result.BasicSalary))
}

func TestCalculator_NoProrationWhenFactorAtLeastOne(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components:       []payroll.StructureComponent{fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "1000", true)},
		Attendance:       fullAttendance(31),
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	bp := findLine(t, result, "BP")
	assert.True(t, result.AttendanceFactor.GreaterThan(dec("1")))
	assert.True(t, dec("1000").Equal(bp.CalculatedAmount))
	assert.Nil(t, bp.ProratedAmount)
}

func TestCalculator_FormulaFallback(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{
			fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "10000", false),
			formulaComponent("BROKEN", "Broken Allowance", payroll.ComponentTypeEarning, "(BP * 2"),
			formulaComponent("UNKNOWN", "Unknown Ref", payroll.ComponentTypeEarning, "BP + NOT_DEFINED"),
			formulaComponent("DIVZERO", "Div Zero", payroll.ComponentTypeEarning, "BP / 0"),
			formulaComponent("TRANSPORT", "Transport", payroll.ComponentTypeEarning, "BP * 0.05 + BROKEN"),
		},
		Attendance:       fullAttendance(30),
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	for _, code := range []string{"BROKEN", "UNKNOWN", "DIVZERO"} {
		line := findLine(t, result, code)
		assert.True(t, line.CalculatedAmount.IsZero(), code)
		require.NotNil(t, line.Formula)
	}

	assert.True(t, dec("10000").Equal(findLine(t, result, "BP").CalculatedAmount))
	assert.True(t, dec("500").Equal(findLine(t, result, "TRANSPORT").CalculatedAmount))
	assert.True(t, dec("10500").Equal(result.TotalEarnings))
}

func TestCalculator_EmptyFormulaIsSkipped(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{
			fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "10000", false),
			formulaComponent("EMPTY", "Empty", payroll.ComponentTypeEarning, "   "),
		},
		Attendance:       fullAttendance(30),
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.False(t, hasLine(result, "EMPTY"))
	assert.Len(t, result.Components, 1)
}

func TestCalculator_PercentageOrdering(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{
			percentageComponent("EARLY", "References Later Code", payroll.ComponentTypeEarning, "10", "SPECIAL"),
			fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "20000", false),
			fixedComponent("SPECIAL", "Special Allowance", payroll.ComponentTypeEarning, "4000", false),
			percentageComponent("LATE", "References Earlier Code", payroll.ComponentTypeEarning, "10", "SPECIAL"),
			percentageComponent("GRADEPCT", "String Base", payroll.ComponentTypeEarning, "10", "GRADE"),
		},
		Attendance:       fullAttendance(30),
		TotalWorkingDays: 30,
		Context:          map[string]formula.Value{"GRADE": formula.String("G3")},
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, findLine(t, result, "EARLY").CalculatedAmount.IsZero())
	assert.True(t, dec("400").Equal(findLine(t, result, "LATE").CalculatedAmount))
	assert.True(t, findLine(t, result, "GRADEPCT").CalculatedAmount.IsZero())
}

func TestCalculator_FormulaSeesPercentageAndContext(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{
			formulaComponent("SPECIAL", "Special", payroll.ComponentTypeEarning, "designation == \"Manager\" ? hra * 0.5 : 0"),
			fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "20000", false),
			percentageComponent("HRA", "HRA", payroll.ComponentTypeEarning, "50", "BP"),
		},
		Attendance:       fullAttendance(30),
		TotalWorkingDays: 30,
		Context:          map[string]formula.Value{"DESIGNATION": formula.String("Manager")},
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, dec("5000").Equal(findLine(t, result, "SPECIAL").CalculatedAmount))
}

func TestCalculator_LateArrivalGrace(t *testing.T) {
	calc := newTestCalculator()
	base := CalculationInput{
		Components:       []payroll.StructureComponent{fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "30000", false)},
		Attendance:       fullAttendance(30),
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	}

	atGrace := base
	atGrace.Attendance.LateCount = 3
	result := calc.Calculate(atGrace)
	assert.True(t, result.LateDeduction.IsZero())
	assert.False(t, hasLine(result, CodeLateDeduction))

	overGrace := base
	overGrace.Attendance.LateCount = 4
	result = calc.Calculate(overGrace)
	// perDayRate 1000 * 0.1 * 1
	assert.True(t, dec("100").Equal(result.LateDeduction))
	line := findLine(t, result, CodeLateDeduction)
	assert.Nil(t, line.ComponentID)
	assert.Equal(t, payroll.ComponentTypeDeduction, line.Type)
	assert.True(t, dec("29900").Equal(result.NetSalary))
}

func TestCalculator_OvertimePay(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "30000", false)},
		Attendance: payroll.AttendanceSummary{
			PresentDays:   dec("30"),
			OvertimeHours: dec("10"),
		},
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, dec("1875").Equal(result.OvertimePay))
	line := findLine(t, result, CodeOvertimePay)
	assert.Equal(t, payroll.ComponentTypeEarning, line.Type)
	assert.Equal(t, payroll.CalculationTypePolicy, line.CalculationType)
	assert.True(t, dec("31875").Equal(result.TotalEarnings))
	assert.True(t, result.GrossSalary.Equal(result.TotalEarnings))
}

func TestCalculator_AbsentAndUnpaidLeaveDeductions(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "30000", false)},
		Attendance: payroll.AttendanceSummary{
			PresentDays:     dec("27"),
			AbsentDays:      dec("2"),
			UnpaidLeaveDays: dec("1"),
		},
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, dec("2000").Equal(result.AbsentDeduction))
	assert.True(t, dec("1000").Equal(result.LeaveDeduction))
	assert.True(t, dec("3000").Equal(result.TotalDeductions))
	assert.True(t, dec("27000").Equal(result.NetSalary))
}

func TestCalculator_ZeroGuards(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{fixedComponent("HRA", "House Rent", payroll.ComponentTypeEarning, "5000", true)},
		Attendance: payroll.AttendanceSummary{
			AbsentDays:    dec("3"),
			OvertimeHours: dec("4"),
			LateCount:     10,
		},
		TotalWorkingDays: 0,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, dec("1").Equal(result.AttendanceFactor))
	assert.True(t, result.BasicSalary.IsZero())
	assert.True(t, result.AbsentDeduction.IsZero())
	assert.True(t, result.LateDeduction.IsZero())
	assert.True(t, result.OvertimePay.IsZero())
	assert.Len(t, result.Components, 1)
	assert.True(t, dec("5000").Equal(result.NetSalary))
}

func TestCalculator_BasicSalaryByName(t *testing.T) {
	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{
			fixedComponent("ALW", "Allowance", payroll.ComponentTypeEarning, "1000", false),
			fixedComponent("BASE", "Basic Salary", payroll.ComponentTypeEarning, "24000", false),
			fixedComponent("BASIC2", "Second Basic", payroll.ComponentTypeEarning, "5000", false),
		},
		Attendance:       fullAttendance(30),
		TotalWorkingDays: 30,
		Policy:           payroll.DefaultSettings("company-1"),
	})

	assert.True(t, dec("24000").Equal(result.BasicSalary))
}

func TestCalculator_CustomPolicy(t *testing.T) {
	policy := payroll.DefaultSettings("company-1")
	policy.LateGraceCount = 0
	policy.LatePenaltyDayFraction = dec("0.5")
	policy.OvertimeMultiplier = dec("2")
	policy.StandardHoursPerDay = dec("7.5")

	result := newTestCalculator().Calculate(CalculationInput{
		Components: []payroll.StructureComponent{fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, "30000", false)},
		Attendance: payroll.AttendanceSummary{
			PresentDays:   dec("20"),
			OvertimeHours: dec("3"),
			LateCount:     2,
		},
		TotalWorkingDays: 20,
		Policy:           policy,
	})

	// perDayRate 1500 * 0.5 * 2
	assert.True(t, dec("1500").Equal(result.LateDeduction))
	// 30000 / (20 * 7.5) = 200 per hour * 2 * 3
	assert.True(t, dec("1200").Equal(result.OvertimePay))
}
