package postgresql_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/salary-engine-go/internal/repository/postgresql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBasicPay(t *testing.T, db *database.DB, companyID string) payroll.SalaryComponent {
	t.Helper()
	repo := postgresql.NewSalaryComponentRepository(db)
	c, err := repo.Create(context.Background(), payroll.SalaryComponent{
		CompanyID:       companyID,
		Name:            "Basic Pay",
		Code:            "BP",
		Type:            payroll.ComponentTypeEarning,
		CalculationType: payroll.CalculationTypeFixed,
		IsActive:        true,
	})
	require.NoError(t, err)
	return c
}

func juneGeneration(companyID, employeeID string) payroll.SalaryGeneration {
	amount := decimal.NewFromInt(30000)
	return payroll.SalaryGeneration{
		CompanyID:        companyID,
		EmployeeID:       employeeID,
		PeriodMonth:      6,
		PeriodYear:       2025,
		PeriodStart:      time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:        time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
		TotalWorkingDays: 30,
		PresentDays:      decimal.NewFromInt(30),
		AttendanceFactor: decimal.NewFromInt(1),
		BasicSalary:      amount,
		TotalEarnings:    amount,
		GrossSalary:      amount,
		NetSalary:        amount,
		Status:           payroll.GenerationStatusGenerated,
		Details: []payroll.GenerationDetail{{
			Name:             "Basic Pay",
			Code:             "BP",
			Type:             payroll.ComponentTypeEarning,
			CalculationType:  payroll.CalculationTypeFixed,
			BaseAmount:       amount,
			CalculatedAmount: amount,
			LineOrder:        1,
		}},
	}
}

func TestSalaryComponentRepository_DuplicateCode(t *testing.T) {
	db := newTestDatabase(t)
	companyID := createTestCompany(t, db)
	createBasicPay(t, db, companyID)

	repo := postgresql.NewSalaryComponentRepository(db)
	_, err := repo.Create(context.Background(), payroll.SalaryComponent{
		CompanyID:       companyID,
		Name:            "Basic Pay Again",
		Code:            "BP",
		Type:            payroll.ComponentTypeEarning,
		CalculationType: payroll.CalculationTypeFixed,
		IsActive:        true,
	})
	assert.ErrorIs(t, err, payroll.ErrComponentCodeExists)
}

func TestSalaryStructureRepository_RevisionClosesPrevious(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	companyID := createTestCompany(t, db)
	employeeID := createTestEmployee(t, db, companyID, "2024-0001", "Alice")
	bp := createBasicPay(t, db, companyID)
	repo := postgresql.NewSalaryStructureRepository(db)

	structure := func(from time.Time, amount int64) payroll.SalaryStructure {
		value := decimal.NewFromInt(amount)
		return payroll.SalaryStructure{
			EmployeeID:    employeeID,
			CompanyID:     companyID,
			EffectiveFrom: from,
			IsActive:      true,
			Components: []payroll.StructureComponent{{
				ComponentID: bp.ID,
				ValueType:   payroll.CalculationTypeFixed,
				FixedAmount: &value,
				IsProrated:  true,
				SortOrder:   1,
			}},
		}
	}

	first, err := repo.Create(ctx, structure(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 20000))
	require.NoError(t, err)
	second, err := repo.Create(ctx, structure(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), 25000))
	require.NoError(t, err)

	_, err = repo.Create(ctx, structure(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 1))
	assert.ErrorIs(t, err, payroll.ErrStructureOverlap)

	march, err := repo.GetActive(ctx, employeeID, companyID, time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, first.ID, march.ID)
	require.NotNil(t, march.EffectiveTo)
	assert.Equal(t, "2025-05-31", march.EffectiveTo.Format("2006-01-02"))

	july, err := repo.GetActive(ctx, employeeID, companyID, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, second.ID, july.ID)
	require.Len(t, july.Components, 1)
	assert.Equal(t, "BP", july.Components[0].ComponentCode)
	assert.True(t, decimal.NewFromInt(25000).Equal(*july.Components[0].FixedAmount))
}

func TestSalaryGenerationRepository_CreateIsIdempotentPerPeriod(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	companyID := createTestCompany(t, db)
	employeeID := createTestEmployee(t, db, companyID, "2024-0001", "Alice")
	repo := postgresql.NewSalaryGenerationRepository(db)

	const attempts = 5
	var wg sync.WaitGroup
	created := make([]bool, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created[i], errs[i] = repo.Create(ctx, juneGeneration(companyID, employeeID))
		}()
	}
	wg.Wait()

	count := 0
	for i := range created {
		require.NoError(t, errs[i])
		if created[i] {
			count++
		}
	}
	assert.Equal(t, 1, count)

	existing, err := repo.GetEmployeeIDsWithGeneration(ctx, companyID, 6, 2025)
	require.NoError(t, err)
	assert.True(t, existing[employeeID])
}

func TestSalaryGenerationRepository_StatusGuards(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	companyID := createTestCompany(t, db)
	employeeID := createTestEmployee(t, db, companyID, "2024-0001", "Alice")
	repo := postgresql.NewSalaryGenerationRepository(db)

	record, ok, err := repo.Create(ctx, juneGeneration(companyID, employeeID))
	require.NoError(t, err)
	require.True(t, ok)

	userID := newID(t)
	err = repo.UpdateStatus(ctx, companyID, payroll.StatusChange{
		ID: record.ID, From: payroll.GenerationStatusApproved, To: payroll.GenerationStatusPaid,
		ChangedBy: userID, ChangedAt: time.Now(),
	})
	assert.ErrorIs(t, err, payroll.ErrInvalidStatusTransition)

	stored, err := repo.GetByID(ctx, record.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, payroll.GenerationStatusGenerated, stored.Status)
	require.Len(t, stored.Details, 1)
	assert.Equal(t, "Alice", *stored.EmployeeName)

	require.NoError(t, repo.UpdateStatus(ctx, companyID, payroll.StatusChange{
		ID: record.ID, From: payroll.GenerationStatusGenerated, To: payroll.GenerationStatusApproved,
		ChangedBy: userID, ChangedAt: time.Now(),
	}))
	ref := "TRX-1"
	require.NoError(t, repo.UpdateStatus(ctx, companyID, payroll.StatusChange{
		ID: record.ID, From: payroll.GenerationStatusApproved, To: payroll.GenerationStatusPaid,
		ChangedBy: userID, ChangedAt: time.Now(), PaymentReference: &ref,
	}))

	assert.ErrorIs(t, repo.Delete(ctx, record.ID, companyID), payroll.ErrCannotDeletePaid)
	assert.ErrorIs(t, repo.Delete(ctx, newID(t), companyID), payroll.ErrGenerationNotFound)

	summary, err := repo.GetSummary(ctx, companyID, 6, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalEmployees)
	assert.Equal(t, 1, summary.PaidCount)
	assert.True(t, decimal.NewFromInt(30000).Equal(summary.TotalNetSalary))
}
