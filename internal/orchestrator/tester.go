package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/routererr"
	"github.com/99souls/routingcore/internal/store"
)

// TraceLevel filters the traces returned by ingest_test (§4.9).
type TraceLevel int

const (
	TraceNone TraceLevel = iota
	TraceAsset
	TraceAll
)

// TestOptions is ingest_test's opts parameter.
type TestOptions struct {
	EntryName  string
	TraceLevel TraceLevel
	Namespaces []string
}

// TestOutput is ingest_test's success payload. SessionID is a fresh
// identifier for this call, returned to the caller only; it is not attached
// to trace entries or log lines.
type TestOutput struct {
	SessionID string
	Event     *document.Event
	OK        bool
	Traces    []document.TraceEntry
}

// PostTestEntry registers a test entry, compiling its Environment
// synchronously (mirroring PostEntry) and persisting the tester table.
func (o *Orchestrator) PostTestEntry(ctx context.Context, post TestEntryPost) error {
	o.mu.Lock()
	if _, exists := o.testEntries[post.Name]; exists {
		o.mu.Unlock()
		return routererr.Wrap(routererr.AlreadyExists, fmt.Sprintf("test entry %q already exists", post.Name), routererr.ErrAlreadyExists)
	}
	te := &TestEntry{Name: post.Name, PolicyName: post.Policy, Lifetime: post.Lifetime, State: StateBuilding}
	o.testEntries[post.Name] = te
	o.mu.Unlock()

	o.buildTestEntry(ctx, te)
	return o.persistTestTable(ctx)
}

func (o *Orchestrator) buildTestEntry(ctx context.Context, te *TestEntry) {
	env, err := o.builder.BuildPolicyOnly(ctx, te.PolicyName)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		te.State = StateError
		te.Err = err
		return
	}
	te.Env = env
	te.Err = nil
	te.State = StateEnabled
	te.LastUseUTC = time.Now().Unix()
}

// DeleteTestEntry removes a test entry and stops its controller.
func (o *Orchestrator) DeleteTestEntry(ctx context.Context, name string) error {
	o.mu.Lock()
	te, ok := o.testEntries[name]
	if !ok {
		o.mu.Unlock()
		return routererr.Wrap(routererr.NotFound, fmt.Sprintf("test entry %q not found", name), routererr.ErrNotFound)
	}
	delete(o.testEntries, name)
	o.mu.Unlock()
	if te.Env != nil {
		te.Env.Stop()
	}
	return o.persistTestTable(ctx)
}

// GetTestEntry is a snapshot read.
func (o *Orchestrator) GetTestEntry(name string) (*TestEntry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	te, ok := o.testEntries[name]
	if !ok {
		return nil, routererr.Wrap(routererr.NotFound, fmt.Sprintf("test entry %q not found", name), routererr.ErrNotFound)
	}
	return te, nil
}

// GetTestEntries is a snapshot read of every test entry.
func (o *Orchestrator) GetTestEntries() []*TestEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*TestEntry, 0, len(o.testEntries))
	for _, te := range o.testEntries {
		out = append(out, te)
	}
	return out
}

// ReloadTestEntry rebuilds name's Environment from current source.
func (o *Orchestrator) ReloadTestEntry(ctx context.Context, name string) error {
	o.mu.RLock()
	te, ok := o.testEntries[name]
	o.mu.RUnlock()
	if !ok {
		return routererr.Wrap(routererr.NotFound, fmt.Sprintf("test entry %q not found", name), routererr.ErrNotFound)
	}
	newEnv, err := o.builder.BuildPolicyOnly(ctx, te.PolicyName)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		te.State = StateError
		te.Err = err
		return err
	}
	old := te.Env
	te.Env = newEnv
	te.Err = nil
	te.State = StateEnabled
	if old != nil {
		old.Stop()
	}
	return nil
}

// GetAssets returns the asset-name set of name's compiled policy.
func (o *Orchestrator) GetAssets(name string) (map[string]struct{}, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	te, ok := o.testEntries[name]
	if !ok {
		return nil, routererr.Wrap(routererr.NotFound, fmt.Sprintf("test entry %q not found", name), routererr.ErrNotFound)
	}
	if te.Env == nil {
		return nil, routererr.New(routererr.CompileError, fmt.Sprintf("test entry %q is not built", name))
	}
	return te.Env.Controller.Assets(), nil
}

// GetTestTimeout returns the orchestrator's configured tester deadline.
func (o *Orchestrator) GetTestTimeout() int64 {
	return int64(o.cfg.TestTimeout.Seconds())
}

// IngestTest enqueues a test job and blocks on its one-shot future until
// the result arrives, the job's deadline expires (TIMEOUT), or ctx is
// canceled — the synchronous surface over the worker pool's async tester
// path (§4.9).
func (o *Orchestrator) IngestTest(ctx context.Context, ev *document.Event, opts TestOptions) (*TestOutput, error) {
	if err := o.touchTestEntry(opts.EntryName); err != nil {
		return nil, err
	}
	sessionID := uuid.NewString()
	job := &testJob{
		entryName: opts.EntryName,
		event:     ev,
		opts:      opts,
		resultCh:  make(chan testResult, 1),
	}
	if err := o.pool.submitTest(ctx, job); err != nil {
		return nil, err
	}
	select {
	case res := <-job.resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return &TestOutput{SessionID: sessionID, Event: res.result.Event, OK: res.result.OK, Traces: filterTraces(res.result.Trace, opts)}, nil
	case <-ctx.Done():
		return nil, routererr.Wrap(routererr.Timeout, "ingest_test canceled", ctx.Err())
	}
}

// touchTestEntry implements §3/§4.7's test-entry lifecycle: reap name
// lazily if it has sat idle past Lifetime seconds, otherwise bump
// LastUseUTC and, if a prior ingest_test timed out against it, kick off
// an async rebuild via ReloadTestEntry (the controller's "mark for
// restart" is consumed here rather than blocking this call).
func (o *Orchestrator) touchTestEntry(name string) error {
	o.mu.Lock()
	te, ok := o.testEntries[name]
	if !ok {
		o.mu.Unlock()
		return routererr.Wrap(routererr.NotFound, fmt.Sprintf("test entry %q not found", name), routererr.ErrNotFound)
	}
	now := time.Now().Unix()
	if te.Lifetime > 0 && te.LastUseUTC > 0 && now-te.LastUseUTC > te.Lifetime {
		delete(o.testEntries, name)
		o.mu.Unlock()
		if te.Env != nil {
			te.Env.Stop()
		}
		return routererr.Wrap(routererr.NotFound, fmt.Sprintf("test entry %q expired after %ds of inactivity", name, te.Lifetime), routererr.ErrNotFound)
	}
	te.LastUseUTC = now
	needsRestart := te.Env != nil && te.Env.Controller.NeedsRestart()
	o.mu.Unlock()

	if needsRestart {
		go func() { _ = o.ReloadTestEntry(context.Background(), name) }()
	}
	return nil
}

// filterTraces trims a full trace down to opts.TraceLevel. ASSET and ALL
// are treated identically and return the full trace (one entry per
// evaluated Term); NONE drops everything. opts.Namespaces is not applied.
func filterTraces(trace []document.TraceEntry, opts TestOptions) []document.TraceEntry {
	if opts.TraceLevel == TraceNone {
		return nil
	}
	return trace
}

// persistTestTable serializes the tester table to router/tester/0.
func (o *Orchestrator) persistTestTable(ctx context.Context) error {
	o.mu.RLock()
	records := make([]testEntryRecord, 0, len(o.testEntries))
	for _, te := range o.testEntries {
		records = append(records, testEntryRecord{Name: te.Name, Policy: te.PolicyName, Lifetime: te.Lifetime})
	}
	o.mu.RUnlock()

	data, err := json.Marshal(records)
	if err != nil {
		return routererr.Wrapf(routererr.IOError, err, "marshal test entry table")
	}
	if err := o.store.Write(ctx, store.TesterTablePath, data); err != nil {
		return routererr.Wrapf(routererr.IOError, err, "persist test entry table")
	}
	return nil
}

// loadTestTable reads router/tester/0 (if present) and builds every test
// entry concurrently.
func (o *Orchestrator) loadTestTable(ctx context.Context) error {
	data, err := o.store.Read(ctx, store.TesterTablePath)
	if err != nil {
		if routererr.Is(err, routererr.NotFound) {
			return nil
		}
		return err
	}
	var records []testEntryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return routererr.Wrapf(routererr.IOError, err, "parse test entry table")
	}

	var eg errgroup.Group
	for _, rec := range records {
		te := &TestEntry{Name: rec.Name, PolicyName: rec.Policy, Lifetime: rec.Lifetime, State: StateBuilding}
		o.mu.Lock()
		o.testEntries[rec.Name] = te
		o.mu.Unlock()

		eg.Go(func() error {
			o.buildTestEntry(ctx, te)
			return nil
		})
	}
	return eg.Wait()
}
