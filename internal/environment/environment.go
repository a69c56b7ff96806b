// Package environment implements the environment builder (C6): combining a
// compiled policy (wrapped in a controller) with a compiled filter
// expression into one ready-to-route Environment.
package environment

import (
	"context"
	"fmt"

	"github.com/99souls/routingcore/internal/controller"
	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/expr"
	"github.com/99souls/routingcore/internal/policy"
	"github.com/99souls/routingcore/internal/routererr"
)

// Environment is the compiled runnable artifact for one entry: a filter
// expression, a controller wrapping the compiled policy, and the policy's
// content hash (used to detect no-op reloads).
type Environment struct {
	Filter     expr.Node
	Controller *controller.Controller
	PolicyHash string
}

// Ingest runs ev through Filter first; only on a filter Success does it
// reach the controller's compiled policy.
func (e *Environment) Ingest(ev *document.Event) (document.Result, error) {
	filterRes := e.Filter.Evaluate(ev)
	if !filterRes.OK {
		return filterRes, nil
	}
	return e.Controller.Ingest(filterRes.Event)
}

// Stop releases the controller's subscribers. Resources held by helpers
// (such as the wdb connection pool) are not released here.
func (e *Environment) Stop() {
	if e.Controller != nil {
		e.Controller.Stop()
	}
}

// Builder constructs Environments from a policy name + filter name pair.
type Builder struct {
	Compiler *policy.Compiler
}

func NewBuilder(compiler *policy.Compiler) *Builder {
	return &Builder{Compiler: compiler}
}

// Build implements §4.6's six steps: validate both names' types, compile
// the policy (reject an empty asset set), wrap it in a fresh controller,
// compile the filter (reusing the asset compiler since a filter is a
// single asset), and assemble the Environment. Any failure stops a
// partially built controller and returns a domain error naming both
// policy and filter.
func (b *Builder) Build(ctx context.Context, policyName, filterName string) (*Environment, error) {
	if err := requireType(policyName, "policy"); err != nil {
		return nil, envError(policyName, filterName, err)
	}
	if err := requireType(filterName, "filter"); err != nil {
		return nil, envError(policyName, filterName, err)
	}

	compiled, err := b.Compiler.CompilePolicy(ctx, policyName)
	if err != nil {
		return nil, envError(policyName, filterName, err)
	}
	if len(compiled.AssetSet) == 0 {
		return nil, envError(policyName, filterName, routererr.New(routererr.CompileError, "policy compiled to an empty asset set"))
	}

	ctrl := controller.New(compiled.Root, compiled.AssetSet, compiled.Hash)

	filterExpr, err := b.Compiler.CompileFilter(ctx, filterName)
	if err != nil {
		ctrl.Stop()
		return nil, envError(policyName, filterName, err)
	}

	return &Environment{Filter: filterExpr, Controller: ctrl, PolicyHash: compiled.Hash}, nil
}

// BuildPolicyOnly compiles just the policy and wraps it in a controller
// with an always-true filter, for the tester path (§4.9), which selects
// its entry by name rather than by filter match.
func (b *Builder) BuildPolicyOnly(ctx context.Context, policyName string) (*Environment, error) {
	if err := requireType(policyName, "policy"); err != nil {
		return nil, envError(policyName, "", err)
	}
	compiled, err := b.Compiler.CompilePolicy(ctx, policyName)
	if err != nil {
		return nil, envError(policyName, "", err)
	}
	if len(compiled.AssetSet) == 0 {
		return nil, envError(policyName, "", routererr.New(routererr.CompileError, "policy compiled to an empty asset set"))
	}
	ctrl := controller.New(compiled.Root, compiled.AssetSet, compiled.Hash)
	alwaysPass := expr.NewTerm("tester:always-pass", func(ev *document.Event) document.Result {
		return document.Success(ev)
	})
	return &Environment{Filter: alwaysPass, Controller: ctrl, PolicyHash: compiled.Hash}, nil
}

// requireType enforces step 1: name's first path segment must match kind.
func requireType(name, kind string) error {
	n, ok := document.ParseName(name)
	if !ok {
		return routererr.New(routererr.InvalidArgument, fmt.Sprintf("malformed name %q", name))
	}
	if n.Type() != kind {
		return routererr.New(routererr.InvalidArgument, fmt.Sprintf("%q is not a %s (type %q)", name, kind, n.Type()))
	}
	return nil
}

func envError(policyName, filterName string, cause error) error {
	return routererr.Wrapf(routererr.KindOf(cause), cause, "build environment (policy=%q, filter=%q)", policyName, filterName)
}
