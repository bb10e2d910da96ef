package employee

import (
	"time"
)

type Employee struct {
	ID               string
	CompanyID        string
	DepartmentID     *string
	PositionID       *string
	GradeID          *string
	EmployeeCode     string
	FullName         string
	HireDate         time.Time
	ResignationDate  *time.Time
	EmploymentType   EmploymentType
	EmploymentStatus EmploymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time

	// Joined fields
	DepartmentName *string
	PositionName   *string
	GradeName      *string
}

// EmployedDuring reports whether the employee was on the payroll for any day of [start, end].
func (e Employee) EmployedDuring(start, end time.Time) bool {
	if e.DeletedAt != nil || e.HireDate.After(end) {
		return false
	}
	if e.ResignationDate != nil && e.ResignationDate.Before(start) {
		return false
	}
	return e.EmploymentStatus == EmploymentStatusActive || e.ResignationDate != nil
}

type EmploymentType string

const (
	EmploymentTypePermanent  EmploymentType = "permanent"
	EmploymentTypeProbation  EmploymentType = "probation"
	EmploymentTypeContract   EmploymentType = "contract"
	EmploymentTypeInternship EmploymentType = "internship"
	EmploymentTypeFreelance  EmploymentType = "freelance"
)

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)
