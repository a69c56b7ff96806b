// Package document implements the Event document (C1): an in-memory,
// JSON-like tree addressed by RFC-6901-style paths, plus the Name and
// Parameter value types every other component builds on.
package document

import (
	"strconv"
	"strings"
)

// Event is a tree of JSON-like values exclusively owned by the worker
// currently processing it. It is moved through the pipeline, never
// aliased — callers that need to retain a prior version must Clone it
// before mutating.
type Event struct {
	root any
}

// New returns an Event rooted at an empty object.
func New() *Event {
	return &Event{root: map[string]any{}}
}

// FromValue wraps an already-decoded JSON value (map[string]any, []any,
// string, float64/int, bool, or nil) as an Event root.
func FromValue(v any) *Event {
	return &Event{root: v}
}

// Root returns the underlying value tree, for serialization.
func (e *Event) Root() any { return e.root }

// Clone deep-copies the event so mutations on the copy never observe on the
// original.
func (e *Event) Clone() *Event {
	return &Event{root: deepCopy(e.root)}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return t
	}
}

// segment is one decoded path component: either an object key or an array
// index (IsIndex true, Index holds the decimal value).
type segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// splitPath decodes an RFC-6901-style pointer ("/a/b/0/c") into segments,
// undoing ~1 -> / and ~0 -> ~ escaping. An empty path yields no segments
// (the root itself).
func splitPath(path string) []segment {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		p = strings.ReplaceAll(p, "~0", "~")
		if idx, err := strconv.Atoi(p); err == nil && idx >= 0 && isDecimal(p) {
			segs = append(segs, segment{Key: p, Index: idx, IsIndex: true})
		} else {
			segs = append(segs, segment{Key: p})
		}
	}
	return segs
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// navigate walks segs from root, returning the value found (or nil, false
// if any step is absent/type-mismatched). Read-only: never mutates.
func navigate(root any, segs []segment) (any, bool) {
	cur := root
	for _, s := range segs {
		switch t := cur.(type) {
		case map[string]any:
			v, ok := t[s.Key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !s.IsIndex || s.Index >= len(t) {
				return nil, false
			}
			cur = t[s.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Exists reports whether path resolves to any value, regardless of type.
func (e *Event) Exists(path string) bool {
	_, ok := navigate(e.root, splitPath(path))
	return ok
}

// GetString returns the leaf at path only if it exists and is a string;
// any other type or an absent path returns ("", false) — never a failure.
func (e *Event) GetString(path string) (string, bool) {
	v, ok := navigate(e.root, splitPath(path))
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the leaf at path as an int64 only if it exists and is an
// integral number.
func (e *Event) GetInt(path string) (int64, bool) {
	v, ok := navigate(e.root, splitPath(path))
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// GetDouble returns the leaf at path as a float64 only if it exists and is
// numeric (integer or double).
func (e *Event) GetDouble(path string) (float64, bool) {
	v, ok := navigate(e.root, splitPath(path))
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// GetBool returns the leaf at path only if it exists and is a boolean.
func (e *Event) GetBool(path string) (bool, bool) {
	v, ok := navigate(e.root, splitPath(path))
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetArray returns the leaf at path only if it exists and is an array.
func (e *Event) GetArray(path string) ([]any, bool) {
	v, ok := navigate(e.root, splitPath(path))
	if !ok {
		return nil, false
	}
	a, ok := v.([]any)
	return a, ok
}

// GetObject returns the leaf at path only if it exists and is an object.
func (e *Event) GetObject(path string) (map[string]any, bool) {
	v, ok := navigate(e.root, splitPath(path))
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Get returns the raw value at path with no type filtering.
func (e *Event) Get(path string) (any, bool) {
	return navigate(e.root, splitPath(path))
}

// Set writes v at path, creating intermediate objects as needed. It fails
// (returns false) if any intermediate path element already exists and is
// not an object, or if an array index would require appending past the
// next free slot (no null-filling).
func (e *Event) Set(path string, v any) bool {
	segs := splitPath(path)
	if len(segs) == 0 {
		e.root = v
		return true
	}
	newRoot, ok := setAt(e.root, segs, v, true)
	if !ok {
		return false
	}
	e.root = newRoot
	return true
}

// setAt returns a (possibly new) container with v written at segs[0:],
// creating missing containers when createMissing is true.
func setAt(container any, segs []segment, v any, createMissing bool) (any, bool) {
	head := segs[0]
	rest := segs[1:]

	if head.IsIndex {
		arr, ok := container.([]any)
		if container == nil && createMissing {
			arr = []any{}
		} else if !ok {
			return nil, false
		}
		if head.Index > len(arr) {
			return nil, false // no null-fill past the end
		}
		if len(rest) == 0 {
			if head.Index == len(arr) {
				arr = append(arr, v)
			} else {
				arr[head.Index] = v
			}
			return arr, true
		}
		var child any
		if head.Index < len(arr) {
			child = arr[head.Index]
		}
		newChild, ok := setAt(child, rest, v, createMissing)
		if !ok {
			return nil, false
		}
		if head.Index == len(arr) {
			arr = append(arr, newChild)
		} else {
			arr[head.Index] = newChild
		}
		return arr, true
	}

	obj, ok := container.(map[string]any)
	if container == nil && createMissing {
		obj = map[string]any{}
	} else if !ok {
		return nil, false
	}
	if len(rest) == 0 {
		obj[head.Key] = v
		return obj, true
	}
	child := obj[head.Key]
	newChild, ok := setAt(child, rest, v, createMissing)
	if !ok {
		return nil, false
	}
	obj[head.Key] = newChild
	return obj, true
}

// Erase removes the value at path, returning whether anything was removed.
func (e *Event) Erase(path string) bool {
	segs := splitPath(path)
	if len(segs) == 0 {
		return false
	}
	parent, ok := navigate(e.root, segs[:len(segs)-1])
	if !ok {
		return false
	}
	last := segs[len(segs)-1]
	switch t := parent.(type) {
	case map[string]any:
		if _, ok := t[last.Key]; !ok {
			return false
		}
		delete(t, last.Key)
		return true
	case []any:
		if !last.IsIndex || last.Index >= len(t) {
			return false
		}
		copy(t[last.Index:], t[last.Index+1:])
		parentSegs := segs[:len(segs)-1]
		newParent := t[:len(t)-1]
		if len(parentSegs) == 0 {
			e.root = newParent
		} else {
			_, ok := setAt(e.root, parentSegs, newParent, false)
			if !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Append pushes v onto the array at path, creating the array if path is
// currently absent. Fails if path exists and is not an array.
func (e *Event) Append(path string, v any) bool {
	arr, ok := e.GetArray(path)
	if !ok {
		if e.Exists(path) {
			return false
		}
		arr = []any{}
	}
	arr = append(arr, v)
	return e.Set(path, arr)
}
