package payroll

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func newID(t *testing.T) string {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id.String()
}

func contextWithClaims(t *testing.T, companyID, userID string) context.Context {
	t.Helper()
	token := jwt.New()
	require.NoError(t, token.Set("company_id", companyID))
	require.NoError(t, token.Set("user_id", userID))
	require.NoError(t, token.Set("role", "owner"))
	require.NoError(t, token.Set("type", "access"))
	return jwtauth.NewContext(context.Background(), token, nil)
}

// ---- settings ----

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]payroll.PayrollSettings
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: make(map[string]payroll.PayrollSettings)}
}

func (r *fakeSettingsRepo) GetSettings(ctx context.Context, companyID string) (payroll.PayrollSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[companyID]
	if !ok {
		return payroll.PayrollSettings{}, payroll.ErrPayrollSettingsNotFound
	}
	return s, nil
}

func (r *fakeSettingsRepo) UpsertSettings(ctx context.Context, settings payroll.PayrollSettings) (payroll.PayrollSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings.ID == "" {
		settings.ID = uuid.Must(uuid.NewV7()).String()
	}
	r.settings[settings.CompanyID] = settings
	return settings, nil
}

// ---- components ----

type fakeComponentRepo struct {
	mu         sync.Mutex
	components map[string]payroll.SalaryComponent
}

func newFakeComponentRepo() *fakeComponentRepo {
	return &fakeComponentRepo{components: make(map[string]payroll.SalaryComponent)}
}

func (r *fakeComponentRepo) Create(ctx context.Context, c payroll.SalaryComponent) (payroll.SalaryComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.components {
		if existing.CompanyID == c.CompanyID && existing.Code == c.Code {
			return payroll.SalaryComponent{}, payroll.ErrComponentCodeExists
		}
	}
	c.ID = uuid.Must(uuid.NewV7()).String()
	r.components[c.ID] = c
	return c, nil
}

func (r *fakeComponentRepo) GetByID(ctx context.Context, id string, companyID string) (payroll.SalaryComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.components[id]
	if !ok || c.CompanyID != companyID {
		return payroll.SalaryComponent{}, payroll.ErrSalaryComponentNotFound
	}
	return c, nil
}

func (r *fakeComponentRepo) GetByCompanyID(ctx context.Context, companyID string, activeOnly bool) ([]payroll.SalaryComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payroll.SalaryComponent
	for _, c := range r.components {
		if c.CompanyID == companyID && (!activeOnly || c.IsActive) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *fakeComponentRepo) GetByIDs(ctx context.Context, ids []string, companyID string) ([]payroll.SalaryComponent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payroll.SalaryComponent
	for _, id := range ids {
		if c, ok := r.components[id]; ok && c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeComponentRepo) Update(ctx context.Context, companyID string, req payroll.UpdateSalaryComponentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.components[req.ID]
	if !ok || c.CompanyID != companyID {
		return payroll.ErrSalaryComponentNotFound
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	r.components[c.ID] = c
	return nil
}

func (r *fakeComponentRepo) Delete(ctx context.Context, id string, companyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.components[id]; !ok || c.CompanyID != companyID {
		return payroll.ErrSalaryComponentNotFound
	}
	delete(r.components, id)
	return nil
}

// ---- structures ----

type fakeStructureRepo struct {
	mu         sync.Mutex
	structures []payroll.SalaryStructure
}

func (r *fakeStructureRepo) Create(ctx context.Context, st payroll.SalaryStructure) (payroll.SalaryStructure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.structures {
		if existing.EmployeeID == st.EmployeeID && existing.IsActive {
			if !st.EffectiveFrom.After(existing.EffectiveFrom) {
				return payroll.SalaryStructure{}, payroll.ErrStructureOverlap
			}
			to := st.EffectiveFrom.AddDate(0, 0, -1)
			r.structures[i].EffectiveTo = &to
			r.structures[i].IsActive = false
		}
	}
	st.ID = uuid.Must(uuid.NewV7()).String()
	for i := range st.Components {
		st.Components[i].ID = uuid.Must(uuid.NewV7()).String()
		st.Components[i].StructureID = st.ID
	}
	r.structures = append(r.structures, st)
	return st, nil
}

func (r *fakeStructureRepo) GetByEmployeeID(ctx context.Context, employeeID string, companyID string) ([]payroll.SalaryStructure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payroll.SalaryStructure
	for i := len(r.structures) - 1; i >= 0; i-- {
		if st := r.structures[i]; st.EmployeeID == employeeID && st.CompanyID == companyID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (r *fakeStructureRepo) GetActive(ctx context.Context, employeeID string, companyID string, day time.Time) (payroll.SalaryStructure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.structures {
		if st.EmployeeID == employeeID && st.CompanyID == companyID && st.CoversDate(day) {
			return st, nil
		}
	}
	return payroll.SalaryStructure{}, payroll.ErrSalaryStructureNotFound
}

func (r *fakeStructureRepo) GetCompanyIDsWithActiveStructures(ctx context.Context, day time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, st := range r.structures {
		if st.CoversDate(day) && !seen[st.CompanyID] {
			seen[st.CompanyID] = true
			out = append(out, st.CompanyID)
		}
	}
	return out, nil
}

// ---- generations ----

type fakeGenerationRepo struct {
	mu          sync.Mutex
	generations map[string]payroll.SalaryGeneration
}

func newFakeGenerationRepo() *fakeGenerationRepo {
	return &fakeGenerationRepo{generations: make(map[string]payroll.SalaryGeneration)}
}

func (r *fakeGenerationRepo) Create(ctx context.Context, g payroll.SalaryGeneration) (payroll.SalaryGeneration, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.generations {
		if existing.EmployeeID == g.EmployeeID && existing.PeriodYear == g.PeriodYear && existing.PeriodMonth == g.PeriodMonth {
			return payroll.SalaryGeneration{}, false, nil
		}
	}
	g.ID = uuid.Must(uuid.NewV7()).String()
	for i := range g.Details {
		g.Details[i].ID = uuid.Must(uuid.NewV7()).String()
		g.Details[i].GenerationID = g.ID
	}
	r.generations[g.ID] = g
	return g, true, nil
}

func (r *fakeGenerationRepo) GetByID(ctx context.Context, id string, companyID string) (payroll.SalaryGeneration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.generations[id]
	if !ok || g.CompanyID != companyID {
		return payroll.SalaryGeneration{}, payroll.ErrGenerationNotFound
	}
	return g, nil
}

func (r *fakeGenerationRepo) GetEmployeeIDsWithGeneration(ctx context.Context, companyID string, month, year int) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, g := range r.generations {
		if g.CompanyID == companyID && g.PeriodMonth == month && g.PeriodYear == year {
			out[g.EmployeeID] = true
		}
	}
	return out, nil
}

func (r *fakeGenerationRepo) List(ctx context.Context, companyID string, filter payroll.GenerationFilter) ([]payroll.SalaryGeneration, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payroll.SalaryGeneration
	for _, g := range r.generations {
		if g.CompanyID != companyID {
			continue
		}
		if filter.Status != nil && string(g.Status) != *filter.Status {
			continue
		}
		out = append(out, g)
	}
	return out, int64(len(out)), nil
}

func (r *fakeGenerationRepo) UpdateStatus(ctx context.Context, companyID string, change payroll.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.generations[change.ID]
	if !ok || g.CompanyID != companyID {
		return payroll.ErrGenerationNotFound
	}
	if g.Status != change.From {
		return payroll.ErrInvalidStatusTransition
	}
	g.Status = change.To
	at := change.ChangedAt
	by := change.ChangedBy
	switch change.To {
	case payroll.GenerationStatusApproved:
		g.ApprovedAt, g.ApprovedBy = &at, &by
	case payroll.GenerationStatusPaid:
		g.PaidAt, g.PaidBy = &at, &by
		g.PaymentReference = change.PaymentReference
	}
	r.generations[g.ID] = g
	return nil
}

func (r *fakeGenerationRepo) Delete(ctx context.Context, id string, companyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.generations[id]
	if !ok || g.CompanyID != companyID {
		return payroll.ErrGenerationNotFound
	}
	if g.Status == payroll.GenerationStatusPaid {
		return payroll.ErrCannotDeletePaid
	}
	delete(r.generations, id)
	return nil
}

func (r *fakeGenerationRepo) GetSummary(ctx context.Context, companyID string, month, year int) (payroll.PayrollSummaryResponse, error) {
	return payroll.PayrollSummaryResponse{PeriodMonth: month, PeriodYear: year}, nil
}

func (r *fakeGenerationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.generations)
}

func (r *fakeGenerationRepo) put(g payroll.SalaryGeneration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations[g.ID] = g
}

// ---- attendance ----

type fakeAttendanceRepo struct {
	summaries map[string]payroll.AttendanceSummary
	err       error
}

func (r *fakeAttendanceRepo) GetSummary(ctx context.Context, companyID string, employeeID string, start, end time.Time, excludeWeekends bool) (payroll.AttendanceSummary, error) {
	if r.err != nil {
		return payroll.AttendanceSummary{}, r.err
	}
	return r.summaries[employeeID], nil
}

// ---- employees ----

type fakeEmployeeRepo struct {
	employees []employee.Employee
}

func (r *fakeEmployeeRepo) GetByID(ctx context.Context, id string, companyID string) (employee.Employee, error) {
	for _, e := range r.employees {
		if e.ID == id && e.CompanyID == companyID {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (r *fakeEmployeeRepo) GetEmployedDuring(ctx context.Context, companyID string, start, end time.Time, filter employee.PayrollFilter) ([]employee.Employee, error) {
	wanted := make(map[string]bool)
	for _, id := range filter.EmployeeIDs {
		wanted[id] = true
	}
	var out []employee.Employee
	for _, e := range r.employees {
		if e.CompanyID != companyID || !e.EmployedDuring(start, end) {
			continue
		}
		if len(wanted) > 0 && !wanted[e.ID] {
			continue
		}
		if filter.DepartmentID != nil && (e.DepartmentID == nil || *e.DepartmentID != *filter.DepartmentID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ---- fixture ----

type serviceFixture struct {
	companyID   string
	userID      string
	service     *PayrollServiceImpl
	settings    *fakeSettingsRepo
	components  *fakeComponentRepo
	structures  *fakeStructureRepo
	generations *fakeGenerationRepo
	attendance  *fakeAttendanceRepo
	employees   *fakeEmployeeRepo
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		companyID:   newID(t),
		userID:      newID(t),
		settings:    newFakeSettingsRepo(),
		components:  newFakeComponentRepo(),
		structures:  &fakeStructureRepo{},
		generations: newFakeGenerationRepo(),
		attendance:  &fakeAttendanceRepo{summaries: make(map[string]payroll.AttendanceSummary)},
		employees:   &fakeEmployeeRepo{},
	}
	svc := NewPayrollService(
		f.settings, f.components, f.structures, f.generations, f.attendance, f.employees,
		NewCalculator(nil, nil), nil, 4,
	)
	f.service = svc.(*PayrollServiceImpl)
	f.service.now = func() time.Time { return time.Date(2025, time.July, 10, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *serviceFixture) ctx(t *testing.T) context.Context {
	return contextWithClaims(t, f.companyID, f.userID)
}

// addEmployee registers an active employee with a basic-pay structure effective from 2025-01-01.
func (f *serviceFixture) addEmployee(t *testing.T, name string, basic string) employee.Employee {
	t.Helper()
	emp := employee.Employee{
		ID:               newID(t),
		CompanyID:        f.companyID,
		EmployeeCode:     fmt.Sprintf("2025-%04d", len(f.employees.employees)+1),
		FullName:         name,
		HireDate:         time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		EmploymentType:   employee.EmploymentTypePermanent,
		EmploymentStatus: employee.EmploymentStatusActive,
	}
	f.employees.employees = append(f.employees.employees, emp)

	_, err := f.structures.Create(context.Background(), payroll.SalaryStructure{
		EmployeeID:    emp.ID,
		CompanyID:     f.companyID,
		EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
		Components: []payroll.StructureComponent{
			fixedComponent("BP", "Basic Pay", payroll.ComponentTypeEarning, basic, true),
			percentageComponent("PF", "Provident Fund", payroll.ComponentTypeDeduction, "10", "BP"),
		},
	})
	require.NoError(t, err)

	f.attendance.summaries[emp.ID] = fullAttendance(30)
	return emp
}

func (f *serviceFixture) addEmployeeWithoutStructure(t *testing.T, name string) employee.Employee {
	t.Helper()
	emp := employee.Employee{
		ID:               newID(t),
		CompanyID:        f.companyID,
		EmployeeCode:     fmt.Sprintf("2025-%04d", len(f.employees.employees)+1),
		FullName:         name,
		HireDate:         time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		EmploymentStatus: employee.EmploymentStatusActive,
	}
	f.employees.employees = append(f.employees.employees, emp)
	return emp
}
