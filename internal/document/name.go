package document

import "strings"

// ValidTypes enumerates the type tags a Name's first part may carry.
var ValidTypes = map[string]struct{}{
	"policy":  {},
	"filter":  {},
	"decoder": {},
	"rule":    {},
	"output":  {},
}

// Name is an ordered sequence of non-empty string parts, e.g.
// policy/wazuh/0 or filter/allow-all/0. Equality and hashing are
// part-wise, so Name is safe to use as a map key once converted to its
// canonical string form via String.
type Name struct {
	parts []string
}

// ParseName splits "a/b/c" into a Name, rejecting empty parts.
func ParseName(s string) (Name, bool) {
	if s == "" {
		return Name{}, false
	}
	parts := strings.Split(s, "/")
	for _, p := range parts {
		if p == "" {
			return Name{}, false
		}
	}
	return Name{parts: parts}, true
}

// NewName builds a Name directly from parts, rejecting any empty part.
func NewName(parts ...string) (Name, bool) {
	if len(parts) == 0 {
		return Name{}, false
	}
	for _, p := range parts {
		if p == "" {
			return Name{}, false
		}
	}
	cp := make([]string, len(parts))
	copy(cp, parts)
	return Name{parts: cp}, true
}

// Type returns the first part, the type tag.
func (n Name) Type() string {
	if len(n.parts) == 0 {
		return ""
	}
	return n.parts[0]
}

// HasValidType reports whether Type() is one of the recognized type tags.
func (n Name) HasValidType() bool {
	_, ok := ValidTypes[n.Type()]
	return ok
}

// Parts returns the underlying parts; callers must not mutate the slice.
func (n Name) Parts() []string { return n.parts }

// String renders the canonical "a/b/c" form.
func (n Name) String() string { return strings.Join(n.parts, "/") }

// Equal compares part-wise.
func (n Name) Equal(other Name) bool {
	if len(n.parts) != len(other.parts) {
		return false
	}
	for i := range n.parts {
		if n.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// Less orders names by comparing their joined string forms
// lexicographically.
func (n Name) Less(other Name) bool {
	return n.String() < other.String()
}
