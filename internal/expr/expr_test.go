package expr

import (
	"testing"

	"github.com/99souls/routingcore/internal/document"
	"github.com/stretchr/testify/assert"
)

func ok(name string) *Term {
	return NewTerm(name, func(ev *document.Event) document.Result { return document.Success(ev) })
}

func fail(name string) *Term {
	return NewTerm(name, func(ev *document.Event) document.Result { return document.Failure(ev) })
}

func TestAndStopsAtFirstFailure(t *testing.T) {
	a := NewAnd("and", ok("a"), fail("b"), ok("c"))
	res := a.Evaluate(document.New())
	assert.False(t, res.OK)
	assert.Len(t, res.Trace, 2, "evaluation must stop at the first failure")
}

func TestAndSucceedsWhenAllSucceed(t *testing.T) {
	a := NewAnd("and", ok("a"), ok("b"))
	res := a.Evaluate(document.New())
	assert.True(t, res.OK)
	assert.Len(t, res.Trace, 2)
}

func TestOrStopsAtFirstSuccess(t *testing.T) {
	o := NewOr("or", fail("a"), ok("b"), fail("c"))
	res := o.Evaluate(document.New())
	assert.True(t, res.OK)
	assert.Len(t, res.Trace, 2, "evaluation must stop at the first success")
}

func TestOrFailsWhenAllFail(t *testing.T) {
	o := NewOr("or", fail("a"), fail("b"))
	res := o.Evaluate(document.New())
	assert.False(t, res.OK)
	assert.Len(t, res.Trace, 2)
}

func TestChainAlwaysSucceeds(t *testing.T) {
	c := NewChain("chain", fail("a"), fail("b"))
	res := c.Evaluate(document.New())
	assert.True(t, res.OK)
	assert.Len(t, res.Trace, 2)
}

func TestBroadcastRunsAllChildren(t *testing.T) {
	b := NewBroadcast("bcast", ok("a"), fail("b"), ok("c"))
	res := b.Evaluate(document.New())
	assert.True(t, res.OK)
	assert.Len(t, res.Trace, 3)
}

func TestImplicationRunsConsequentOnlyOnSuccess(t *testing.T) {
	ran := false
	consequent := NewTerm("consequent", func(ev *document.Event) document.Result {
		ran = true
		return document.Success(ev)
	})
	i := NewImplication("impl", fail("check"), consequent)
	res := i.Evaluate(document.New())
	assert.False(t, res.OK)
	assert.False(t, ran, "consequent must not run when antecedent fails")
}

func TestImplicationOutcomeIsAntecedents(t *testing.T) {
	i := NewImplication("impl", ok("check"), fail("transform"))
	res := i.Evaluate(document.New())
	assert.True(t, res.OK, "Implication's outcome is always the antecedent's")
}

func TestNodeIDsAreUnique(t *testing.T) {
	a, b := ok("a"), ok("b")
	assert.NotEqual(t, a.ID(), b.ID())
}
