// Package formula evaluates the small arithmetic language used by salary
// component formulas. Expressions may reference variables by name, combine
// them with arithmetic, comparison and logical operators, and branch with the
// ternary operator. Nothing else is reachable from an expression: there are
// no function calls, member access or assignment.
package formula

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Expression is a parsed formula. It is immutable and safe for concurrent use.
type Expression struct {
	src    string
	root   node
	idents []string
}

func (e *Expression) String() string {
	return e.src
}

// Identifiers returns the upper-cased variable names referenced by the expression.
func (e *Expression) Identifiers() []string {
	out := make([]string, len(e.idents))
	copy(out, e.idents)
	sort.Strings(out)
	return out
}

// Eval evaluates the expression and requires a numeric result.
func (e *Expression) Eval(vars Variables) (decimal.Decimal, error) {
	v, err := e.root.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	if v.Kind() != KindNumber {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrNonNumericResult, v.Kind())
	}
	return v.num, nil
}

// Evaluate parses and evaluates src in one step.
func Evaluate(src string, vars Variables) (decimal.Decimal, error) {
	expr, err := Parse(src)
	if err != nil {
		return decimal.Zero, err
	}
	return expr.Eval(vars)
}

type node interface {
	eval(vars Variables) (Value, error)
}

type literalNode struct {
	value Value
}

func (n *literalNode) eval(Variables) (Value, error) {
	return n.value, nil
}

type identNode struct {
	name string
}

func (n *identNode) eval(vars Variables) (Value, error) {
	if vars == nil {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.name)
	}
	v, ok := vars.Lookup(n.name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.name)
	}
	return v, nil
}

type unaryNode struct {
	op      string
	operand node
}

func (n *unaryNode) eval(vars Variables) (Value, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return Value{}, err
	}
	if n.op == "!" {
		return Bool(!v.truthy()), nil
	}
	d, ok := v.Decimal()
	if !ok {
		return Value{}, fmt.Errorf("%w: unary %s on %s", ErrTypeMismatch, n.op, v.Kind())
	}
	if n.op == "-" {
		return Number(d.Neg()), nil
	}
	return Number(d), nil
}

type logicalNode struct {
	op          string
	left, right node
}

// && and || short-circuit and yield the deciding operand.
func (n *logicalNode) eval(vars Variables) (Value, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return Value{}, err
	}
	if n.op == "&&" && !left.truthy() {
		return left, nil
	}
	if n.op == "||" && left.truthy() {
		return left, nil
	}
	return n.right.eval(vars)
}

type conditionalNode struct {
	cond, then, otherwise node
}

func (n *conditionalNode) eval(vars Variables) (Value, error) {
	c, err := n.cond.eval(vars)
	if err != nil {
		return Value{}, err
	}
	if c.truthy() {
		return n.then.eval(vars)
	}
	return n.otherwise.eval(vars)
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) eval(vars Variables) (Value, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return Value{}, err
	}
	right, err := n.right.eval(vars)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case "==":
		return Bool(equal(left, right)), nil
	case "!=":
		return Bool(!equal(left, right)), nil
	case "<", ">", "<=", ">=":
		return compare(n.op, left, right)
	}

	a, aok := left.Decimal()
	b, bok := right.Decimal()
	if !aok || !bok {
		return Value{}, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, left.Kind(), n.op, right.Kind())
	}

	switch n.op {
	case "+":
		return Number(a.Add(b)), nil
	case "-":
		return Number(a.Sub(b)), nil
	case "*":
		return Number(a.Mul(b)), nil
	case "/":
		if b.IsZero() {
			return Value{}, ErrDivisionByZero
		}
		return Number(a.Div(b)), nil
	case "%":
		if b.IsZero() {
			return Value{}, ErrDivisionByZero
		}
		return Number(a.Mod(b)), nil
	}
	return Value{}, fmt.Errorf("%w: unknown operator %q", ErrSyntax, n.op)
}

func equal(a, b Value) bool {
	as, aIsStr := a.Text()
	bs, bIsStr := b.Text()
	if aIsStr || bIsStr {
		return aIsStr && bIsStr && as == bs
	}
	ad, _ := a.Decimal()
	bd, _ := b.Decimal()
	return ad.Equal(bd)
}

func compare(op string, a, b Value) (Value, error) {
	var cmp int

	as, aIsStr := a.Text()
	bs, bIsStr := b.Text()
	switch {
	case aIsStr && bIsStr:
		switch {
		case as < bs:
			cmp = -1
		case as > bs:
			cmp = 1
		}
	case aIsStr || bIsStr:
		return Value{}, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a.Kind(), op, b.Kind())
	default:
		ad, _ := a.Decimal()
		bd, _ := b.Decimal()
		cmp = ad.Cmp(bd)
	}

	switch op {
	case "<":
		return Bool(cmp < 0), nil
	case ">":
		return Bool(cmp > 0), nil
	case "<=":
		return Bool(cmp <= 0), nil
	default:
		return Bool(cmp >= 0), nil
	}
}
