package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/salary-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Not found
	case errors.Is(err, payroll.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, payroll.ErrSalaryComponentNotFound):
		NotFound(w, "Salary component not found")
	case errors.Is(err, payroll.ErrSalaryStructureNotFound):
		NotFound(w, "No active salary structure for the period")
	case errors.Is(err, payroll.ErrGenerationNotFound):
		NotFound(w, "Salary generation not found")

	// Conflicts
	case errors.Is(err, payroll.ErrComponentCodeExists):
		Conflict(w, "Salary component code already exists")
	case errors.Is(err, payroll.ErrComponentInUse):
		Conflict(w, "Salary component is used by a salary structure")
	case errors.Is(err, payroll.ErrStructureOverlap):
		Conflict(w, "Salary structure must start after the current structure")
	case errors.Is(err, payroll.ErrInvalidStatusTransition):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrCannotDeletePaid):
		Conflict(w, "Paid salary generations cannot be deleted")

	case errors.Is(err, payroll.ErrStructureComponentMissing):
		BadRequest(w, "Structure references an unknown salary component", nil)

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
