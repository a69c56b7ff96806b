// Package helpers implements the helper registry (C3): a process-wide,
// append-only-then-read-only catalog of builder functions that turn a DSL
// parameter list into an expr.Node.
package helpers

import (
	"fmt"
	"sync"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/expr"
	"github.com/99souls/routingcore/internal/routererr"
)

// BuilderFn is the calling convention every helper implements: given the
// target field, the helper's own name, and its raw (unclassified) token
// list, produce a compiled Term.
type BuilderFn func(target string, name string, rawParameters []string) (*expr.Term, error)

// Registry is a process-wide mapping helper_name -> BuilderFn. Register is
// only allowed until Seal; after that the map is read-only. Lookup takes a
// read lock either way.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]BuilderFn
	sealed   bool
}

// NewRegistry returns an empty, unsealed Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]BuilderFn)}
}

// Register adds name -> fn. Panics if called after Seal, since that would
// violate the "read-only after init" invariant.
func (r *Registry) Register(name string, fn BuilderFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic("helpers: Register called after registry was sealed")
	}
	r.builders[name] = fn
}

// Seal freezes the registry; any later Register call panics.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup resolves a helper by name. A lookup failure during policy
// compilation is reported by the caller as a COMPILE_ERROR.
func (r *Registry) Lookup(name string) (BuilderFn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.builders[name]
	return fn, ok
}

// Build resolves name and invokes its builder, wrapping an unknown helper
// name as a routererr COMPILE_ERROR.
func (r *Registry) Build(target, name string, rawParameters []string) (*expr.Term, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, routererr.New(routererr.CompileError, fmt.Sprintf("unknown helper %q", name))
	}
	return fn(target, name, rawParameters)
}

// checkArity validates the classified parameter count against [min, max]
// (max < 0 means unbounded), the shared step every builder performs after
// classification and before constructing its closure.
func checkArity(name string, params []document.Parameter, min, max int) error {
	n := len(params)
	if n < min || (max >= 0 && n > max) {
		return routererr.New(routererr.InvalidArgument, fmt.Sprintf("%s: expected between %d and %d arguments, got %d", name, min, max, n))
	}
	return nil
}

// humanName formats "helper_name(target, arg1, arg2, ...)" for tracing,
// per the builder contract's step 4.
func humanName(helperName, target string, params []document.Parameter) string {
	s := helperName + "(" + target
	for _, p := range params {
		s += ", " + p.String()
	}
	return s + ")"
}
