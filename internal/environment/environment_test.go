package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/helpers"
	"github.com/99souls/routingcore/internal/policy"
)

type mapLoader struct {
	policies map[string]*policy.PolicyDoc
	assets   map[string]*policy.AssetDoc
}

func (l *mapLoader) LoadPolicy(ctx context.Context, name string) (*policy.PolicyDoc, error) {
	d, ok := l.policies[name]
	if !ok {
		return nil, assertNotFound(name)
	}
	return d, nil
}

func (l *mapLoader) LoadAsset(ctx context.Context, name string) (*policy.AssetDoc, error) {
	d, ok := l.assets[name]
	if !ok {
		return nil, assertNotFound(name)
	}
	return d, nil
}

type notFoundErr struct{ name string }

func (e *notFoundErr) Error() string { return "not found: " + e.name }
func assertNotFound(name string) error { return &notFoundErr{name: name} }

func testRegistry() *helpers.Registry {
	r := helpers.NewRegistry()
	helpers.RegisterAll(r)
	helpers.RegisterSet(r)
	r.Seal()
	return r
}

func newTestBuilder() *Builder {
	loader := &mapLoader{
		policies: map[string]*policy.PolicyDoc{
			"policy/main/0": {
				Name: "policy/main/0",
				Stages: []policy.StageDoc{
					{Name: "decoders", Assets: []string{"decoder/json/0"}},
				},
			},
		},
		assets: map[string]*policy.AssetDoc{
			"decoder/json/0": {
				Name:  "decoder/json/0",
				Check: []string{"queue: +exists"},
				Map:   []string{"parsed: +set/true"},
			},
			"filter/allow/0": {
				Name:  "filter/allow/0",
				Check: []string{"origin: +exists"},
			},
		},
	}
	compiler := policy.NewCompiler(loader, testRegistry())
	return NewBuilder(compiler)
}

func TestBuildProducesWorkingEnvironment(t *testing.T) {
	b := newTestBuilder()
	env, err := b.Build(context.Background(), "policy/main/0", "filter/allow/0")
	require.NoError(t, err)
	assert.NotEmpty(t, env.PolicyHash)

	ev := document.New()
	ev.Set("/origin", "agent")
	ev.Set("/queue", "1")
	res, err := env.Ingest(ev)
	require.NoError(t, err)
	assert.True(t, res.OK)

	env.Stop()
}

func TestBuiltEnvironmentRejectsEventTheFilterBlocks(t *testing.T) {
	b := newTestBuilder()
	env, err := b.Build(context.Background(), "policy/main/0", "filter/allow/0")
	require.NoError(t, err)
	defer env.Stop()

	res, err := env.Ingest(document.New())
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestBuildRejectsWrongNameType(t *testing.T) {
	b := newTestBuilder()
	_, err := b.Build(context.Background(), "filter/allow/0", "policy/main/0")
	assert.Error(t, err)
}
