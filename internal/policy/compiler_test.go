package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/helpers"
)

// mapLoader is an in-memory DocumentLoader for compiler tests, avoiding a
// filesystem round-trip.
type mapLoader struct {
	policies map[string]*PolicyDoc
	assets   map[string]*AssetDoc
}

func newMapLoader() *mapLoader {
	return &mapLoader{policies: map[string]*PolicyDoc{}, assets: map[string]*AssetDoc{}}
}

func (l *mapLoader) LoadPolicy(ctx context.Context, name string) (*PolicyDoc, error) {
	doc, ok := l.policies[name]
	if !ok {
		return nil, assertNotFound(name)
	}
	return doc, nil
}

func (l *mapLoader) LoadAsset(ctx context.Context, name string) (*AssetDoc, error) {
	doc, ok := l.assets[name]
	if !ok {
		return nil, assertNotFound(name)
	}
	return doc, nil
}

func assertNotFound(name string) error {
	return &notFoundErr{name: name}
}

type notFoundErr struct{ name string }

func (e *notFoundErr) Error() string { return "not found: " + e.name }

func testRegistry() *helpers.Registry {
	r := helpers.NewRegistry()
	helpers.RegisterAll(r)
	helpers.RegisterSet(r)
	r.Seal()
	return r
}

func basicPolicy() (*mapLoader, *PolicyDoc) {
	l := newMapLoader()
	l.assets["decoder/json"] = &AssetDoc{
		Name:  "decoder/json",
		Check: []string{"queue: +exists"},
		Map:   []string{"parsed: +set/true"},
	}
	l.assets["rule/alert"] = &AssetDoc{
		Name:    "rule/alert",
		Parents: []string{"decoder/json"},
		Check:   []string{"parsed: +exists"},
		Map:     []string{"alerted: +set/true"},
	}
	l.assets["output/file"] = &AssetDoc{
		Name: "output/file",
		Map:  []string{"written: +set/true"},
	}
	doc := &PolicyDoc{
		Name: "main",
		Stages: []StageDoc{
			{Name: "decoders", Assets: []string{"decoder/json"}},
			{Name: "rules", Assets: []string{"rule/alert"}},
			{Name: "outputs", Assets: []string{"output/file"}},
		},
	}
	l.policies["main"] = doc
	return l, doc
}

func TestCompilePolicyProducesWorkingRoot(t *testing.T) {
	loader, _ := basicPolicy()
	c := NewCompiler(loader, testRegistry())

	compiled, err := c.CompilePolicy(context.Background(), "main")
	require.NoError(t, err)
	assert.Len(t, compiled.AssetSet, 3)
	assert.NotEmpty(t, compiled.Hash)

	ev := document.New()
	require.True(t, ev.Set("/queue", "1"))
	res := compiled.Root.Evaluate(ev)
	assert.True(t, res.OK)

	parsed, ok := res.Event.GetString("/parsed")
	assert.True(t, ok)
	assert.Equal(t, "true", parsed)

	alerted, ok := res.Event.GetString("/alerted")
	assert.True(t, ok)
	assert.Equal(t, "true", alerted)

	written, ok := res.Event.GetString("/written")
	assert.True(t, ok)
	assert.Equal(t, "true", written)
}

func TestCompilePolicyIsDeterministic(t *testing.T) {
	loader, _ := basicPolicy()
	c := NewCompiler(loader, testRegistry())

	first, err := c.CompilePolicy(context.Background(), "main")
	require.NoError(t, err)
	second, err := c.CompilePolicy(context.Background(), "main")
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
}

func TestCompilePolicyRejectsCycle(t *testing.T) {
	loader := newMapLoader()
	loader.assets["a"] = &AssetDoc{Name: "a", Parents: []string{"b"}}
	loader.assets["b"] = &AssetDoc{Name: "b", Parents: []string{"a"}}
	loader.policies["cyclic"] = &PolicyDoc{
		Name:   "cyclic",
		Stages: []StageDoc{{Name: "decoders", Assets: []string{"a"}}},
	}

	c := NewCompiler(loader, testRegistry())
	_, err := c.CompilePolicy(context.Background(), "cyclic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestCompileFilterReusesAssetCompiler(t *testing.T) {
	loader := newMapLoader()
	loader.assets["filter/drop"] = &AssetDoc{
		Name:  "filter/drop",
		Check: []string{"queue: +exists"},
	}
	c := NewCompiler(loader, testRegistry())

	root, err := c.CompileFilter(context.Background(), "filter/drop")
	require.NoError(t, err)

	ev := document.New()
	res := root.Evaluate(ev)
	assert.False(t, res.OK)

	require.True(t, ev.Set("/queue", "x"))
	res = root.Evaluate(ev)
	assert.True(t, res.OK)
}
