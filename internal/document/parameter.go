package document

import (
	"strconv"
	"strings"
)

// ParameterKind tags a Parameter as a literal Value or an event Reference.
type ParameterKind int

const (
	KindValue ParameterKind = iota
	KindReference
)

// Parameter is a tagged value arising from tokenizing a helper's raw
// argument list: a token starting with "$" becomes a Reference into the
// event (the JSON pointer path, without the leading "/"); any other token
// is a literal Value.
type Parameter struct {
	Kind ParameterKind
	// Value holds the literal text for KindValue, or the referenced path
	// (already stripped of its leading "$") for KindReference.
	Value string
}

// ParseParameter classifies a single raw token.
func ParseParameter(token string) Parameter {
	if strings.HasPrefix(token, "$") {
		return Parameter{Kind: KindReference, Value: strings.TrimPrefix(token, "$")}
	}
	return Parameter{Kind: KindValue, Value: token}
}

// ParseParameters classifies every token in a raw argument list, the step
// every helper builder performs before validating arity.
func ParseParameters(tokens []string) []Parameter {
	out := make([]Parameter, len(tokens))
	for i, t := range tokens {
		out[i] = ParseParameter(t)
	}
	return out
}

// IsReference reports whether p is a Reference parameter.
func (p Parameter) IsReference() bool { return p.Kind == KindReference }

// String renders p back to its DSL token form ("$x" or the literal).
func (p Parameter) String() string {
	if p.Kind == KindReference {
		return "$" + p.Value
	}
	return p.Value
}

// ResolveString resolves p against ev, returning the operand as a string
// and whether resolution succeeded. A Value resolves to itself. A
// Reference resolves only if the referenced path exists and is a string;
// this is the shared "resolve operand" step every comparator helper uses
// (OpBuilderHelperFilter.hpp groups string/numeric comparators around one
// common operand-resolution routine rather than duplicating it per-helper).
func (p Parameter) ResolveString(ev *Event) (string, bool) {
	if p.Kind == KindValue {
		return p.Value, true
	}
	return ev.GetString("/" + p.Value)
}

// ResolveDouble resolves p as a numeric operand: a Value is parsed as a
// float64 literal; a Reference resolves only if the path exists and is
// numeric.
func (p Parameter) ResolveDouble(ev *Event) (float64, bool) {
	if p.Kind == KindValue {
		return parseFloat(p.Value)
	}
	return ev.GetDouble("/" + p.Value)
}

// ResolveInt resolves p as an integral operand.
func (p Parameter) ResolveInt(ev *Event) (int64, bool) {
	if p.Kind == KindValue {
		return parseInt(p.Value)
	}
	return ev.GetInt("/" + p.Value)
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseInt(s string) (int64, bool) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}
