package payroll

import "errors"

var (
	ErrPayrollSettingsNotFound   = errors.New("payroll settings not found")
	ErrSalaryComponentNotFound   = errors.New("salary component not found")
	ErrComponentCodeExists       = errors.New("salary component code already exists")
	ErrComponentInUse            = errors.New("salary component is used by a salary structure")
	ErrSalaryStructureNotFound   = errors.New("no active salary structure for the period")
	ErrStructureOverlap          = errors.New("salary structure must start after the current structure")
	ErrStructureComponentMissing = errors.New("structure references an unknown salary component")
	ErrGenerationNotFound        = errors.New("salary generation not found")
	ErrInvalidStatusTransition   = errors.New("invalid salary generation status transition")
	ErrCannotDeletePaid          = errors.New("cannot delete paid salary generation")
	ErrEmployeeNotFound          = errors.New("employee not found")
)
