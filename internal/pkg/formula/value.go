package formula

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a number, string or boolean flowing through an expression.
type Value struct {
	kind Kind
	num  decimal.Decimal
	str  string
	b    bool
}

func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, num: d}
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func (v Value) Kind() Kind {
	return v.kind
}

// Decimal returns the numeric value. Booleans convert to 1 or 0; strings are not numeric.
func (v Value) Decimal() (decimal.Decimal, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.b {
			return decimal.NewFromInt(1), true
		}
		return decimal.Zero, true
	default:
		return decimal.Zero, false
	}
}

// Text returns the string value and whether the value is a string.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) truthy() bool {
	switch v.kind {
	case KindNumber:
		return !v.num.IsZero()
	case KindString:
		return v.str != ""
	default:
		return v.b
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return v.num.String()
	case KindString:
		return fmt.Sprintf("%q", v.str)
	default:
		return fmt.Sprintf("%t", v.b)
	}
}

// Variables resolves identifiers referenced by an expression. Implementations
// must treat names case-insensitively.
type Variables interface {
	Lookup(name string) (Value, bool)
}

// Vars is a plain map of upper-cased names to values.
type Vars map[string]Value

func (v Vars) Lookup(name string) (Value, bool) {
	val, ok := v[strings.ToUpper(name)]
	return val, ok
}
