package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/salary-engine-go/internal/config"
	appHTTP "github.com/cmlabs-hris/salary-engine-go/internal/handler/http"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/cron"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/salary-engine-go/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/salary-engine-go/internal/service/payroll"
	"github.com/go-chi/httplog/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "salary-engine"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	db, err := database.NewPostgreSQLDB(context.Background(), cfg.DatabaseURL(), database.PoolConfig{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	settingsRepo := postgresql.NewPayrollSettingsRepository(db)
	componentRepo := postgresql.NewSalaryComponentRepository(db)
	structureRepo := postgresql.NewSalaryStructureRepository(db)
	generationRepo := postgresql.NewSalaryGenerationRepository(db)
	attendanceRepo := postgresql.NewPayrollAttendanceRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)

	registry := metrics.NewRegistry()
	payrollMetrics := metrics.NewPayroll(registry)

	JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	if err != nil {
		return err
	}

	calculator := payrollService.NewCalculator(logger, payrollMetrics)
	payrollSvc := payrollService.NewPayrollService(
		settingsRepo,
		componentRepo,
		structureRepo,
		generationRepo,
		attendanceRepo,
		employeeRepo,
		calculator,
		payrollMetrics,
		cfg.Payroll.GenerationWorkers,
	)

	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)
	router := appHTTP.NewRouter(logger, cfg.App.AllowedOrigins, JWTService, metrics.Handler(registry), payrollHandler)

	var scheduler *cron.Scheduler
	if cfg.Payroll.AutoGenerate {
		scheduler = cron.NewScheduler(logger)
		cron.NewPayrollJobs(payrollSvc, structureRepo, cfg.Payroll.AutoGenerateInterval).RegisterJobs(scheduler)
		scheduler.Start()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server running", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if scheduler != nil {
			scheduler.Stop()
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
