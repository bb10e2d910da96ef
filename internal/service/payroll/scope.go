package payroll

import (
	"sort"
	"strings"

	"github.com/cmlabs-hris/salary-engine-go/internal/pkg/formula"
)

// scope is an immutable chain of variable bindings. with never modifies the
// receiver, so a scope can be shared between goroutines and later bindings
// shadow earlier ones.
type scope struct {
	parent *scope
	name   string
	value  formula.Value
}

func newScope(vars map[string]formula.Value) *scope {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var s *scope
	for _, name := range names {
		s = s.with(name, vars[name])
	}
	return s
}

func (s *scope) with(name string, value formula.Value) *scope {
	return &scope{parent: s, name: strings.ToUpper(name), value: value}
}

// Lookup implements formula.Variables.
func (s *scope) Lookup(name string) (formula.Value, bool) {
	name = strings.ToUpper(name)
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.value, true
		}
	}
	return formula.Value{}, false
}
