// Package policy implements the policy compiler (C4): resolving a
// policy name into a dependency-ordered expression tree, its referenced
// asset-name set, and a stable content hash.
package policy

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/99souls/routingcore/internal/routererr"
	"github.com/99souls/routingcore/internal/store"
)

// AssetDoc is the on-disk (YAML) shape of one asset: a decoder, rule,
// output, or filter. Check/Normalize/Map entries are DSL clause strings
// of the form "target_field: +helper_name/arg1/arg2".
type AssetDoc struct {
	Name      string   `yaml:"name"`
	Parents   []string `yaml:"parents,omitempty"`
	Check     []string `yaml:"check,omitempty"`
	Normalize []string `yaml:"normalize,omitempty"`
	Map       []string `yaml:"map,omitempty"`
}

// StageDoc names one stage of a policy (decoders, rules, outputs) and the
// assets assembled into it.
type StageDoc struct {
	Name   string   `yaml:"name"`
	Assets []string `yaml:"assets"`
}

// PolicyDoc is the on-disk shape of a policy: an ordered list of stages.
type PolicyDoc struct {
	Name   string     `yaml:"name"`
	Stages []StageDoc `yaml:"stages"`
}

// DocumentLoader resolves policy and asset documents by name. The default
// implementation reads YAML from a Store under conventional paths; tests
// may substitute an in-memory map-backed loader.
type DocumentLoader interface {
	LoadPolicy(ctx context.Context, name string) (*PolicyDoc, error)
	LoadAsset(ctx context.Context, name string) (*AssetDoc, error)
}

// StoreLoader loads policy/asset documents from a store.Store, under
// "policies/<name>.yaml" and "assets/<name>.yaml" respectively.
type StoreLoader struct {
	Store store.Store
}

func (l *StoreLoader) LoadPolicy(ctx context.Context, name string) (*PolicyDoc, error) {
	path := "policies/" + name + ".yaml"
	data, err := l.Store.Read(ctx, path)
	if err != nil {
		return nil, routererr.Wrapf(routererr.NotFound, err, "load policy %q", name)
	}
	var doc PolicyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, routererr.Wrapf(routererr.CompileError, err, "parse policy %q", name)
	}
	return &doc, nil
}

func (l *StoreLoader) LoadAsset(ctx context.Context, name string) (*AssetDoc, error) {
	path := "assets/" + name + ".yaml"
	data, err := l.Store.Read(ctx, path)
	if err != nil {
		return nil, routererr.Wrapf(routererr.NotFound, err, "load asset %q", name)
	}
	var doc AssetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, routererr.Wrapf(routererr.CompileError, err, "parse asset %q", name)
	}
	return &doc, nil
}

// Clause is one parsed "target_field: +helper_name/arg1/arg2" line.
type Clause struct {
	Target string
	Helper string
	Args   []string
}

// parseClause splits a DSL clause line into its target field and helper
// invocation, per §6's "+helper_name/arg1/arg2/..." syntax.
func parseClause(line string) (Clause, error) {
	target, rhs, ok := cutFirst(line, ":")
	if !ok {
		return Clause{}, routererr.New(routererr.CompileError, fmt.Sprintf("malformed clause %q: missing ':'", line))
	}
	target = trimSpace(target)
	rhs = trimSpace(rhs)
	if len(rhs) == 0 || rhs[0] != '+' {
		return Clause{}, routererr.New(routererr.CompileError, fmt.Sprintf("malformed clause %q: helper invocation must start with '+'", line))
	}
	parts := splitSlash(rhs[1:])
	if len(parts) == 0 || parts[0] == "" {
		return Clause{}, routererr.New(routererr.CompileError, fmt.Sprintf("malformed clause %q: missing helper name", line))
	}
	return Clause{Target: target, Helper: parts[0], Args: parts[1:]}, nil
}

func cutFirst(s, sep string) (before, after string, found bool) {
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

func trimSpace(s string) string {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	end := len(s)
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func splitSlash(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
