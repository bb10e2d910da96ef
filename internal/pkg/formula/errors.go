package formula

import "errors"

var (
	ErrEmptyExpression   = errors.New("formula: empty expression")
	ErrExpressionTooLong = errors.New("formula: expression too long")
	ErrTooDeep           = errors.New("formula: expression nested too deeply")
	ErrSyntax            = errors.New("formula: syntax error")
	ErrUnknownIdentifier = errors.New("formula: unknown identifier")
	ErrTypeMismatch      = errors.New("formula: operand type mismatch")
	ErrDivisionByZero    = errors.New("formula: division by zero")
	ErrNonNumericResult  = errors.New("formula: result is not a number")
)
