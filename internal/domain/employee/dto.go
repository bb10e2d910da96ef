package employee

// PayrollFilter narrows the employees picked up by a salary generation run.
type PayrollFilter struct {
	EmployeeIDs  []string
	DepartmentID *string
}
