package helpers

import (
	"fmt"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/expr"
)

// resolveOperand resolves a single comparator operand against ev: a Value
// parameter resolves to its literal string; a Reference resolves only if
// the path exists and is a string. This is the one shared routine every
// string comparator builder below calls, mirroring how
// OpBuilderHelperFilter.hpp funnels s_eq/s_ne/s_gt/s_ge/s_lt/s_le through a
// single opBuilderHelperStringComparison instead of duplicating operand
// resolution per comparator.
func resolveOperand(p document.Parameter, ev *document.Event) (string, bool) {
	return p.ResolveString(ev)
}

// RegisterExists registers exists/not_exists.
func RegisterExists(r *Registry) {
	r.Register("exists", func(target, name string, raw []string) (*expr.Term, error) {
		params := document.ParseParameters(raw)
		if err := checkArity(name, params, 0, 0); err != nil {
			return nil, err
		}
		human := target + " exists"
		return expr.NewTerm(human, func(ev *document.Event) document.Result {
			if ev.Exists("/" + target) {
				return document.Success(ev)
			}
			return document.Failure(ev)
		}), nil
	})

	r.Register("not_exists", func(target, name string, raw []string) (*expr.Term, error) {
		params := document.ParseParameters(raw)
		if err := checkArity(name, params, 0, 0); err != nil {
			return nil, err
		}
		human := target + " not_exists"
		return expr.NewTerm(human, func(ev *document.Event) document.Result {
			if !ev.Exists("/" + target) {
				return document.Success(ev)
			}
			return document.Failure(ev)
		}), nil
	})
}

type stringComparator func(a, b string) bool

var stringComparators = map[string]stringComparator{
	"s_eq": func(a, b string) bool { return a == b },
	"s_ne": func(a, b string) bool { return a != b },
	"s_gt": func(a, b string) bool { return a > b },
	"s_ge": func(a, b string) bool { return a >= b },
	"s_lt": func(a, b string) bool { return a < b },
	"s_le": func(a, b string) bool { return a <= b },
}

// RegisterStringComparators registers s_eq/s_ne/s_gt/s_ge/s_lt/s_le, all
// sharing one resolveOperand + lexicographic byte-wise comparison.
func RegisterStringComparators(r *Registry) {
	for helperName, cmp := range stringComparators {
		helperName, cmp := helperName, cmp
		r.Register(helperName, func(target, name string, raw []string) (*expr.Term, error) {
			params := document.ParseParameters(raw)
			if err := checkArity(name, params, 1, 1); err != nil {
				return nil, err
			}
			operand := params[0]
			human := humanName(helperName, target, params)
			return expr.NewTerm(human, func(ev *document.Event) document.Result {
				fieldVal, ok := ev.GetString("/" + target)
				if !ok {
					return document.Failure(ev, document.TraceEntry{Message: fmt.Sprintf("%s: target is not a string", target)})
				}
				opVal, ok := resolveOperand(operand, ev)
				if !ok {
					return document.Failure(ev, document.TraceEntry{Message: "missing or non-string operand reference"})
				}
				if cmp(fieldVal, opVal) {
					return document.Success(ev)
				}
				return document.Failure(ev)
			}), nil
		})
	}
}

type numericComparator func(a, b float64) bool

var numericComparators = map[string]numericComparator{
	"i_eq": func(a, b float64) bool { return a == b },
	"i_ne": func(a, b float64) bool { return a != b },
	"i_gt": func(a, b float64) bool { return a > b },
	"i_ge": func(a, b float64) bool { return a >= b },
	"i_lt": func(a, b float64) bool { return a < b },
	"i_le": func(a, b float64) bool { return a <= b },
}

// RegisterNumericComparators registers i_eq and its analogues: both sides
// must be numeric. Both sides are read as float64 and compared as doubles,
// integer or not; integers beyond 2^53 may lose precision in the
// comparison.
func RegisterNumericComparators(r *Registry) {
	for helperName, cmp := range numericComparators {
		helperName, cmp := helperName, cmp
		r.Register(helperName, func(target, name string, raw []string) (*expr.Term, error) {
			params := document.ParseParameters(raw)
			if err := checkArity(name, params, 1, 1); err != nil {
				return nil, err
			}
			operand := params[0]
			human := humanName(helperName, target, params)
			return expr.NewTerm(human, func(ev *document.Event) document.Result {
				fieldVal, ok := ev.GetDouble("/" + target)
				if !ok {
					return document.Failure(ev, document.TraceEntry{Message: fmt.Sprintf("%s: target is not numeric", target)})
				}
				opVal, ok := operand.ResolveDouble(ev)
				if !ok {
					return document.Failure(ev, document.TraceEntry{Message: "missing or non-numeric operand reference"})
				}
				if cmp(fieldVal, opVal) {
					return document.Success(ev)
				}
				return document.Failure(ev)
			}), nil
		})
	}
}

// RegisterAll registers every canonical filter helper.
func RegisterAll(r *Registry) {
	RegisterExists(r)
	RegisterStringComparators(r)
	RegisterNumericComparators(r)
}
