package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompanies struct {
	ids []string
	day time.Time
}

func (s *stubCompanies) GetCompanyIDsWithActiveStructures(ctx context.Context, day time.Time) ([]string, error) {
	s.day = day
	return s.ids, nil
}

type stubGenerator struct {
	payroll.PayrollService

	mu      sync.Mutex
	calls   map[string]payroll.GenerateSalaryRequest
	failFor string
}

func (s *stubGenerator) GenerateForCompany(ctx context.Context, companyID string, req payroll.GenerateSalaryRequest) (payroll.GenerateSalaryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]payroll.GenerateSalaryRequest{}
	}
	s.calls[companyID] = req
	if companyID == s.failFor {
		return payroll.GenerateSalaryResponse{}, errors.New("database unavailable")
	}
	return payroll.GenerateSalaryResponse{PeriodMonth: req.PeriodMonth, PeriodYear: req.PeriodYear}, nil
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, 2, 0, 0, 0, time.UTC) }
}

func TestPayrollJobs_GeneratesPreviousMonthOnFirstDay(t *testing.T) {
	companies := &stubCompanies{ids: []string{"c1", "c2"}}
	gen := &stubGenerator{}
	jobs := NewPayrollJobs(gen, companies, time.Hour)
	jobs.now = fixedClock(2025, time.January, 1)

	scheduler := NewScheduler(nil)
	jobs.RegisterJobs(scheduler)
	require.NoError(t, scheduler.RunOnce(context.Background()))

	require.Len(t, gen.calls, 2)
	assert.Equal(t, payroll.GenerateSalaryRequest{PeriodMonth: 12, PeriodYear: 2024}, gen.calls["c1"])
	assert.Equal(t, "2024-12-31", companies.day.Format("2006-01-02"))
}

func TestPayrollJobs_SkipsOtherDays(t *testing.T) {
	gen := &stubGenerator{}
	jobs := NewPayrollJobs(gen, &stubCompanies{ids: []string{"c1"}}, time.Hour)
	jobs.now = fixedClock(2025, time.March, 15)

	require.NoError(t, jobs.GeneratePreviousMonth(context.Background()))
	assert.Empty(t, gen.calls)
}

func TestPayrollJobs_ContinuesAfterCompanyFailure(t *testing.T) {
	gen := &stubGenerator{failFor: "c1"}
	jobs := NewPayrollJobs(gen, &stubCompanies{ids: []string{"c1", "c2"}}, time.Hour)
	jobs.now = fixedClock(2025, time.July, 1)

	err := jobs.GeneratePreviousMonth(context.Background())
	assert.ErrorContains(t, err, "1 of 2 companies")
	assert.Contains(t, gen.calls, "c2")
	assert.Equal(t, 6, gen.calls["c2"].PeriodMonth)
}

func TestScheduler_RunOnceJoinsErrorsAndRecoversPanics(t *testing.T) {
	scheduler := NewScheduler(nil)
	var ran []string
	scheduler.AddJob("fails", time.Hour, func(ctx context.Context) error {
		ran = append(ran, "fails")
		return errors.New("boom")
	})
	scheduler.AddJob("panics", time.Hour, func(ctx context.Context) error {
		ran = append(ran, "panics")
		panic("unexpected")
	})
	scheduler.AddJob("ok", time.Hour, func(ctx context.Context) error {
		ran = append(ran, "ok")
		return nil
	})

	err := scheduler.RunOnce(context.Background())
	assert.ErrorContains(t, err, "boom")
	assert.ErrorContains(t, err, "panicked")
	assert.Equal(t, []string{"fails", "panics", "ok"}, ran)
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(nil)
	done := make(chan struct{}, 1)
	scheduler.AddJob("tick", time.Hour, func(ctx context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	scheduler.Start()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
	scheduler.Stop()
	scheduler.Stop()
}
