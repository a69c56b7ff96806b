package helpers

import (
	"testing"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	RegisterAll(r)
	RegisterSet(r)
	return r
}

func TestExistsNotExistsAreSymmetric(t *testing.T) {
	r := newTestRegistry()
	existsTerm, err := r.Build("x", "exists", nil)
	require.NoError(t, err)
	notExistsTerm, err := r.Build("x", "not_exists", nil)
	require.NoError(t, err)

	present := document.New()
	require.True(t, present.Set("/x", "v"))
	assert.True(t, existsTerm.Evaluate(present).OK)
	assert.False(t, notExistsTerm.Evaluate(present).OK)

	absent := document.New()
	assert.False(t, existsTerm.Evaluate(absent).OK)
	assert.True(t, notExistsTerm.Evaluate(absent).OK)
}

func TestStringEqWithReference(t *testing.T) {
	r := newTestRegistry()
	term, err := r.Build("a", "s_eq", []string{"$b"})
	require.NoError(t, err)

	match := document.New()
	match.Set("/a", "foo")
	match.Set("/b", "foo")
	assert.True(t, term.Evaluate(match).OK)

	mismatch := document.New()
	mismatch.Set("/a", "foo")
	mismatch.Set("/b", "fo")
	assert.False(t, term.Evaluate(mismatch).OK)

	missingRef := document.New()
	missingRef.Set("/a", "foo")
	assert.False(t, term.Evaluate(missingRef).OK, "missing reference operand fails")
}

func TestUnknownHelperIsCompileError(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Build("x", "does_not_exist", nil)
	assert.Error(t, err)
}

func TestSetWritesLiteralAndReference(t *testing.T) {
	r := newTestRegistry()
	literalTerm, err := r.Build("dest", "set", []string{"hello"})
	require.NoError(t, err)
	ev := document.New()
	res := literalTerm.Evaluate(ev)
	require.True(t, res.OK)
	v, _ := ev.GetString("/dest")
	assert.Equal(t, "hello", v)

	refTerm, err := r.Build("dest2", "set", []string{"$src"})
	require.NoError(t, err)
	ev2 := document.New()
	ev2.Set("/src", "copied")
	res2 := refTerm.Evaluate(ev2)
	require.True(t, res2.OK)
	v2, _ := ev2.GetString("/dest2")
	assert.Equal(t, "copied", v2)
}

func TestArityValidation(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Build("x", "s_eq", nil)
	assert.Error(t, err, "s_eq requires exactly one argument")
}

func TestRegisterAfterSealPanics(t *testing.T) {
	r := NewRegistry()
	r.Seal()
	assert.Panics(t, func() {
		r.Register("late", func(string, string, []string) (*expr.Term, error) { return nil, nil })
	})
}
