package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/user"
	"github.com/cmlabs-hris/salary-engine-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(logger *slog.Logger, allowedOrigins []string, JWTService jwt.Service, metricsHandler http.Handler, payrollHandler PayrollHandler) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/payroll", func(r chi.Router) {
				// Read access
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPayrollView))
					r.Get("/settings", payrollHandler.GetSettings)
					r.Get("/components", payrollHandler.ListComponents)
					r.Get("/components/{id}", payrollHandler.GetComponent)
					r.Get("/employees/{employeeID}/structures", payrollHandler.ListStructures)
					r.Get("/employees/{employeeID}/structures/active", payrollHandler.GetActiveStructure)
					r.Get("/generations", payrollHandler.ListGenerations)
					r.Get("/generations/{id}", payrollHandler.GetGeneration)
					r.Get("/summary", payrollHandler.GetSummary)
				})

				// Setup and generation
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPayrollManage))
					r.Put("/settings", payrollHandler.UpdateSettings)
					r.Post("/components", payrollHandler.CreateComponent)
					r.Put("/components/{id}", payrollHandler.UpdateComponent)
					r.Delete("/components/{id}", payrollHandler.DeleteComponent)
					r.Post("/components/validate-formula", payrollHandler.ValidateFormula)
					r.Post("/employees/{employeeID}/structures", payrollHandler.AssignStructure)
					r.Post("/preview", payrollHandler.PreviewSalary)
					r.Post("/generations", payrollHandler.GenerateSalaries)
					r.Delete("/generations/{id}", payrollHandler.DeleteGeneration)
				})

				// Approval and payment
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPayrollApprove))
					r.Post("/generations/approve", payrollHandler.ApproveGenerations)
					r.Post("/generations/pay", payrollHandler.PayGenerations)
				})
			})
		})
	})
	return r
}
