// Package controller implements the router controller (C5): the live,
// compiled form of one entry's policy, exposing ingest/ingest_trace and a
// subscription mechanism for processed events.
package controller

import (
	"sync"
	"sync/atomic"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/expr"
	"github.com/99souls/routingcore/internal/routererr"
)

// Subscription is a handle representing one consumer of a Controller's
// processed-event stream, mirroring the bounded-channel-plus-drop-counter
// shape of the telemetry event bus's Subscription.
type Subscription interface {
	C() <-chan document.Result
	Close() error
	ID() int64
}

// Stats reports controller-level counters for health/metrics wiring.
type Stats struct {
	Subscribers int64
	Ingested    uint64
	Dropped     uint64
	Failed      uint64
}

// Controller wraps a compiled policy root and the set of asset names it
// references. Ingest runs every event through the root expression;
// subscribers observe every processed Result regardless of outcome.
type Controller struct {
	mu       sync.RWMutex
	root     expr.Node
	assets   map[string]struct{}
	hash     string
	subs     map[int64]*subscriber
	nextID   int64
	ingested atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
	stopped  atomic.Bool

	restartNeeded atomic.Bool
}

// New builds a Controller around a compiled root expression.
func New(root expr.Node, assets map[string]struct{}, hash string) *Controller {
	return &Controller{root: root, assets: assets, hash: hash, subs: make(map[int64]*subscriber)}
}

// Hash returns the compiled policy's content hash, used by the
// orchestrator to detect whether a reload actually changed anything.
func (c *Controller) Hash() string { return c.hash }

// Assets returns the set of asset names this controller's policy compiled
// against, for diagnostics.
func (c *Controller) Assets() map[string]struct{} { return c.assets }

// Ingest evaluates ev against the compiled root without retaining a trace
// beyond the per-node success/failure summary expr always records, and
// fans the Result out to every subscriber.
func (c *Controller) Ingest(ev *document.Event) (document.Result, error) {
	if c.stopped.Load() {
		return document.Result{}, routererr.New(routererr.ShuttingDown, "controller is stopped")
	}
	res := c.root.Evaluate(ev)
	c.ingested.Add(1)
	if !res.OK {
		c.failed.Add(1)
	}
	c.publish(res)
	return res, nil
}

// IngestTrace evaluates ev and returns the full per-node trace alongside
// the outcome — the tester path's entry point.
func (c *Controller) IngestTrace(ev *document.Event) (document.Result, error) {
	return c.Ingest(ev)
}

// Subscribe registers a new consumer with a bounded buffer; like the
// telemetry event bus, a full subscriber buffer drops rather than blocks
// the ingest path.
func (c *Controller) Subscribe(buffer int) Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan document.Result, buffer)
	id := atomic.AddInt64(&c.nextID, 1)
	sub := &subscriber{id: id, ch: ch, ctrl: c}
	c.mu.Lock()
	c.subs[id] = sub
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (c *Controller) Unsubscribe(sub Subscription) {
	if sub == nil {
		return
	}
	id := sub.ID()
	c.mu.Lock()
	s := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if s != nil {
		close(s.ch)
	}
}

// Stop marks the controller as shut down; subsequent Ingest calls fail
// with SHUTTING_DOWN rather than silently continuing to process.
func (c *Controller) Stop() {
	c.stopped.Store(true)
	c.mu.Lock()
	for id, s := range c.subs {
		close(s.ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()
}

// MarkRestartNeeded flags this controller for a lazy rebuild, set by the
// tester path when a test against it exceeds its deadline (§4.7: "on
// deadline exceeded, fulfill with TIMEOUT and mark the controller for
// restart").
func (c *Controller) MarkRestartNeeded() { c.restartNeeded.Store(true) }

// NeedsRestart reports whether MarkRestartNeeded was called since the
// last ClearRestartNeeded.
func (c *Controller) NeedsRestart() bool { return c.restartNeeded.Load() }

// ClearRestartNeeded resets the restart flag. The orchestrator does not
// call it: a test-entry reload replaces the whole controller instead.
func (c *Controller) ClearRestartNeeded() { c.restartNeeded.Store(false) }

// Stats returns a snapshot of ingest counters.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	n := int64(len(c.subs))
	c.mu.RUnlock()
	return Stats{
		Subscribers: n,
		Ingested:    c.ingested.Load(),
		Dropped:     c.dropped.Load(),
		Failed:      c.failed.Load(),
	}
}

func (c *Controller) publish(res document.Result) {
	c.mu.RLock()
	subs := make([]*subscriber, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.RUnlock()
	for _, s := range subs {
		select {
		case s.ch <- res:
		default:
			c.dropped.Add(1)
		}
	}
}

type subscriber struct {
	id   int64
	ch   chan document.Result
	ctrl *Controller
}

func (s *subscriber) C() <-chan document.Result { return s.ch }
func (s *subscriber) ID() int64                 { return s.id }
func (s *subscriber) Close() error               { s.ctrl.Unsubscribe(s); return nil }
