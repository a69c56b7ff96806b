// Package expr implements the sum-typed expression tree (C2): Term, And,
// Or, Chain, Broadcast, and Implication nodes over document.Event, each
// with a stable id and a human name for tracing.
package expr

import (
	"sync/atomic"

	"github.com/99souls/routingcore/internal/document"
)

var nextID int64

func newID() int64 { return atomic.AddInt64(&nextID, 1) }

// Node is one node in the compiled expression tree. Every node kind
// implements Evaluate and exposes its stable id and human name.
type Node interface {
	ID() int64
	Name() string
	Evaluate(ev *document.Event) document.Result
}

// Op is the pure function a Term leaf wraps.
type Op func(ev *document.Event) document.Result

// Term is a leaf expression node wrapping a pure Event -> Result function,
// produced by a helper builder.
type Term struct {
	id   int64
	name string
	op   Op
}

// NewTerm builds a Term with a fresh stable id.
func NewTerm(name string, op Op) *Term {
	return &Term{id: newID(), name: name, op: op}
}

func (t *Term) ID() int64    { return t.id }
func (t *Term) Name() string { return t.name }
func (t *Term) Evaluate(ev *document.Event) document.Result {
	res := t.op(ev)
	entry := document.TraceEntry{NodeName: t.name, Success: res.OK}
	if !res.OK && len(res.Trace) > 0 {
		entry.Message = res.Trace[len(res.Trace)-1].Message
	}
	return res.WithTrace(entry)
}

// And evaluates children left-to-right, stopping at the first failure;
// success iff all children succeed.
type And struct {
	id       int64
	name     string
	children []Node
}

func NewAnd(name string, children ...Node) *And {
	return &And{id: newID(), name: name, children: children}
}

func (a *And) ID() int64         { return a.id }
func (a *And) Name() string      { return a.name }
func (a *And) Children() []Node  { return a.children }
func (a *And) Evaluate(ev *document.Event) document.Result {
	cur := ev
	var trace []document.TraceEntry
	for _, c := range a.children {
		res := c.Evaluate(cur)
		trace = append(trace, res.Trace...)
		cur = res.Event
		if !res.OK {
			return document.Result{OK: false, Event: cur, Trace: trace}
		}
	}
	return document.Result{OK: true, Event: cur, Trace: trace}
}

// Or evaluates children left-to-right, stopping at the first success;
// failure iff all children fail.
type Or struct {
	id       int64
	name     string
	children []Node
}

func NewOr(name string, children ...Node) *Or {
	return &Or{id: newID(), name: name, children: children}
}

func (o *Or) ID() int64        { return o.id }
func (o *Or) Name() string     { return o.name }
func (o *Or) Children() []Node { return o.children }
func (o *Or) Evaluate(ev *document.Event) document.Result {
	cur := ev
	var trace []document.TraceEntry
	for _, c := range o.children {
		res := c.Evaluate(cur)
		trace = append(trace, res.Trace...)
		cur = res.Event
		if res.OK {
			return document.Result{OK: true, Event: cur, Trace: trace}
		}
	}
	return document.Result{OK: false, Event: cur, Trace: trace}
}

// Chain evaluates children left-to-right, ignoring their outcomes; always
// succeeds. Used to compose a stage's transform sequence.
type Chain struct {
	id       int64
	name     string
	children []Node
}

func NewChain(name string, children ...Node) *Chain {
	return &Chain{id: newID(), name: name, children: children}
}

func (c *Chain) ID() int64        { return c.id }
func (c *Chain) Name() string     { return c.name }
func (c *Chain) Children() []Node { return c.children }
func (c *Chain) Evaluate(ev *document.Event) document.Result {
	cur := ev
	var trace []document.TraceEntry
	for _, child := range c.children {
		res := child.Evaluate(cur)
		trace = append(trace, res.Trace...)
		cur = res.Event
	}
	return document.Result{OK: true, Event: cur, Trace: trace}
}

// Broadcast runs every child in order, threading each child's resulting
// event into the next (same as Chain) and always succeeds — used to
// compose a stage's sibling rules, each of which may independently
// mutate the event via its own transform clauses.
type Broadcast struct {
	id       int64
	name     string
	children []Node
}

func NewBroadcast(name string, children ...Node) *Broadcast {
	return &Broadcast{id: newID(), name: name, children: children}
}

func (b *Broadcast) ID() int64        { return b.id }
func (b *Broadcast) Name() string     { return b.name }
func (b *Broadcast) Children() []Node { return b.children }
func (b *Broadcast) Evaluate(ev *document.Event) document.Result {
	cur := ev
	var trace []document.TraceEntry
	for _, child := range b.children {
		res := child.Evaluate(cur)
		trace = append(trace, res.Trace...)
		cur = res.Event
	}
	return document.Result{OK: true, Event: cur, Trace: trace}
}

// Implication runs consequent only if antecedent succeeds; the outcome is
// always antecedent's — used to compose an asset's check+transforms as
// Implication(check, Chain(transforms)).
type Implication struct {
	id          int64
	name        string
	antecedent  Node
	consequent  Node
}

func NewImplication(name string, antecedent, consequent Node) *Implication {
	return &Implication{id: newID(), name: name, antecedent: antecedent, consequent: consequent}
}

func (i *Implication) ID() int64 { return i.id }
func (i *Implication) Name() string { return i.name }
func (i *Implication) Children() []Node { return []Node{i.antecedent, i.consequent} }
func (i *Implication) Evaluate(ev *document.Event) document.Result {
	ante := i.antecedent.Evaluate(ev)
	trace := append([]document.TraceEntry(nil), ante.Trace...)
	if !ante.OK {
		return document.Result{OK: false, Event: ante.Event, Trace: trace}
	}
	cons := i.consequent.Evaluate(ante.Event)
	trace = append(trace, cons.Trace...)
	return document.Result{OK: ante.OK, Event: cons.Event, Trace: trace}
}
