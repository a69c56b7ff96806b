package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/eventtext"
	"github.com/99souls/routingcore/internal/routererr"
)

// testJob is one tester-path request riding the test queue; resultCh is
// its one-shot future.
type testJob struct {
	entryName string
	event     *document.Event
	opts      TestOptions
	resultCh  chan testResult
}

type testResult struct {
	result document.Result
	err    error
}

// workerPool is the fixed-size set of worker goroutines (C7) bound to the
// orchestrator's prod and test queues, grounded on the teacher pipeline's
// queue-plus-WaitGroup-plus-context-cancellation shape, stripped down to
// the router's single-stage dispatch loop (§4.7).
type workerPool struct {
	o         *Orchestrator
	n         int
	prodQueue chan *document.Event
	testQueue chan *testJob
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func newWorkerPool(o *Orchestrator, n, queueSize int) *workerPool {
	return &workerPool{
		o:         o,
		n:         n,
		prodQueue: make(chan *document.Event, queueSize),
		testQueue: make(chan *testJob, queueSize),
		stopCh:    make(chan struct{}),
	}
}

func (p *workerPool) start() {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// stop sends shutdown to every worker and joins, draining whatever is
// already queued (new submissions after stop are rejected by submit*).
func (p *workerPool) stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// run is one worker's loop: wait on either queue or shutdown; for a
// production event, snapshot the sorted entry list, evaluate each
// enabled entry's filter, first match wins; for a test job, resolve the
// named test entry and run it with trace capture and a deadline.
func (p *workerPool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			for {
				select {
				case ev := <-p.prodQueue:
					p.dispatchProd(ev)
				case job := <-p.testQueue:
					p.dispatchTest(job)
				default:
					return
				}
			}
		case ev, ok := <-p.prodQueue:
			if !ok {
				return
			}
			p.dispatchProd(ev)
		case job, ok := <-p.testQueue:
			if !ok {
				return
			}
			p.dispatchTest(job)
		}
	}
}

func (p *workerPool) dispatchProd(ev *document.Event) {
	start := time.Now()
	entries := p.o.GetEntries()
	for _, entry := range entries {
		if entry.State != StateEnabled || entry.Env == nil {
			continue
		}
		res, err := entry.Env.Ingest(ev)
		if err != nil {
			continue
		}
		if res.OK {
			if m := p.o.cfg.Metrics; m != nil {
				m.IngestDuration.Observe(time.Since(start).Seconds())
				m.EntryMatched.Inc(1, entry.Name)
			}
			return // first match wins
		}
	}
	// no entry matched; event is dropped per §4.7 step 2.
	if m := p.o.cfg.Metrics; m != nil {
		m.IngestDuration.Observe(time.Since(start).Seconds())
		m.EventsDropped.Inc(1)
	}
}

func (p *workerPool) dispatchTest(job *testJob) {
	p.o.mu.RLock()
	te, ok := p.o.testEntries[job.entryName]
	p.o.mu.RUnlock()
	if !ok || te.State != StateEnabled || te.Env == nil {
		job.resultCh <- testResult{err: routererr.Wrap(routererr.NotFound, "test entry not found or disabled", routererr.ErrNotFound)}
		return
	}

	done := make(chan document.Result, 1)
	go func() {
		res, err := te.Env.Controller.IngestTrace(job.event)
		if err == nil {
			done <- res
		}
	}()

	select {
	case res := <-done:
		job.resultCh <- testResult{result: res}
	case <-time.After(p.o.cfg.TestTimeout):
		// §4.7: on deadline exceeded, fulfill with TIMEOUT and mark the
		// controller for restart; touchTestEntry lazily rebuilds it on
		// the next ingest_test call against this entry.
		te.Env.Controller.MarkRestartNeeded()
		if m := p.o.cfg.Metrics; m != nil {
			m.TesterTimeouts.Inc(1)
		}
		job.resultCh <- testResult{err: routererr.Wrapf(routererr.Timeout, routererr.ErrTimeout, "test entry %q exceeded %s", job.entryName, p.o.cfg.TestTimeout)}
	}
}

// submitTest enqueues job, failing fast with QUEUE_FULL semantics (a
// non-blocking push, per §5's "test = non-blocking push returning error
// when full") rather than blocking the caller.
func (p *workerPool) submitTest(ctx context.Context, job *testJob) error {
	select {
	case p.testQueue <- job:
		if m := p.o.cfg.Metrics; m != nil {
			m.TestQueueDepth.Set(float64(len(p.testQueue)))
		}
		return nil
	case <-p.stopCh:
		return routererr.ErrShuttingDown
	default:
		return routererr.New(routererr.RuntimeFailure, "test queue is full")
	}
}

// PostEvent pushes ev onto the production queue, blocking until space is
// available or ctx is canceled, per §5's "prod = blocking push with
// optional try-push."
func (o *Orchestrator) PostEvent(ctx context.Context, ev *document.Event) error {
	select {
	case o.pool.prodQueue <- ev:
		if m := o.cfg.Metrics; m != nil {
			m.EventsAccepted.Inc(1)
			m.ProdQueueDepth.Set(float64(len(o.pool.prodQueue)))
		}
		return nil
	case <-o.pool.stopCh:
		return routererr.ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPostEvent is the non-blocking variant of PostEvent.
func (o *Orchestrator) TryPostEvent(ev *document.Event) error {
	select {
	case o.pool.prodQueue <- ev:
		if m := o.cfg.Metrics; m != nil {
			m.EventsAccepted.Inc(1)
			m.ProdQueueDepth.Set(float64(len(o.pool.prodQueue)))
		}
		return nil
	case <-o.pool.stopCh:
		return routererr.ErrShuttingDown
	default:
		return routererr.New(routererr.RuntimeFailure, "production queue is full")
	}
}

// PostStrEvent parses raw as a wire-format event (§6) and pushes it onto
// the production queue.
func (o *Orchestrator) PostStrEvent(ctx context.Context, raw string) error {
	ev, err := eventtext.Parse(raw)
	if err != nil {
		return err
	}
	return o.PostEvent(ctx, ev)
}
