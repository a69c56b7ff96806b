// Package orchestrator implements the orchestrator (C8) and worker pool
// (C7): the owner of the entry table, the test-entry table, the prod/test
// queues, and the Router/Tester admin APIs, plus the tester path (C9).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/99souls/routingcore/engine/telemetry/metrics"
	"github.com/99souls/routingcore/internal/environment"
	"github.com/99souls/routingcore/internal/routererr"
	"github.com/99souls/routingcore/internal/store"
)

// Config configures an Orchestrator instance.
type Config struct {
	Workers     int
	TestTimeout time.Duration
	QueueSize   int

	// Metrics is optional; a nil value disables instrumentation entirely.
	Metrics *metrics.RouterMetrics
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.TestTimeout <= 0 {
		c.TestTimeout = 5 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	return c
}

// Orchestrator owns the sorted production entry table, the unsorted test
// entry table, the worker pool, and the store handle backing persistence
// to router/router/0 and router/tester/0 (§4.8).
type Orchestrator struct {
	cfg     Config
	builder *environment.Builder
	store   store.Store

	mu          sync.RWMutex
	entries     map[string]*Entry
	order       []*Entry // sorted (priority asc, name asc); rebuilt on mutation
	testEntries map[string]*TestEntry

	pool *workerPool
}

// New builds an Orchestrator. Call Start to load persisted tables and
// launch the worker pool.
func New(builder *environment.Builder, st store.Store, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		cfg:         cfg,
		builder:     builder,
		store:       st,
		entries:     make(map[string]*Entry),
		testEntries: make(map[string]*TestEntry),
	}
	o.pool = newWorkerPool(o, cfg.Workers, cfg.QueueSize)
	return o
}

// Start loads both persisted tables (if present) and builds every entry
// concurrently, per §4.8's "on start, both tables are read and every
// entry is (re)built concurrently; entries that fail to build remain in
// ERROR." It then launches the worker pool.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.loadTable(ctx); err != nil {
		return err
	}
	if err := o.loadTestTable(ctx); err != nil {
		return err
	}
	o.pool.start()
	return nil
}

// Stop sends shutdown to every worker, lets the workers process whatever
// is still queued, then joins, per §5's cancellation model.
func (o *Orchestrator) Stop() {
	o.pool.stop()
	o.mu.Lock()
	for _, e := range o.entries {
		if e.Env != nil {
			e.Env.Stop()
		}
	}
	for _, te := range o.testEntries {
		if te.Env != nil {
			te.Env.Stop()
		}
	}
	o.mu.Unlock()
}

// PostEntry implements post_entry: rejects a duplicate name or occupied
// priority, inserts in BUILDING state, compiles synchronously (simpler
// than the source's async-then-swap, same observable end state), then
// persists.
func (o *Orchestrator) PostEntry(ctx context.Context, post EntryPost) error {
	o.mu.Lock()
	if _, exists := o.entries[post.Name]; exists {
		o.mu.Unlock()
		return routererr.Wrap(routererr.AlreadyExists, fmt.Sprintf("entry %q already exists", post.Name), routererr.ErrAlreadyExists)
	}
	for _, e := range o.entries {
		if e.Priority == post.Priority {
			o.mu.Unlock()
			return routererr.New(routererr.AlreadyExists, fmt.Sprintf("priority %d is already in use by %q", post.Priority, e.Name))
		}
	}
	entry := &Entry{
		Name:       post.Name,
		PolicyName: post.Policy,
		FilterName: post.Filter,
		Priority:   post.Priority,
		State:      StateBuilding,
	}
	if post.Disabled {
		entry.State = StateDisabled
	}
	o.entries[post.Name] = entry
	o.mu.Unlock()

	o.buildEntry(ctx, entry, post.Disabled)
	return o.persistTable(ctx)
}

// buildEntry compiles entry's Environment and transitions it to ENABLED
// (or DISABLED, if requested) on success, ERROR on failure — never
// removing the entry, so a failed build remains visible for diagnosis.
func (o *Orchestrator) buildEntry(ctx context.Context, entry *Entry, disabled bool) {
	env, err := o.builder.Build(ctx, entry.PolicyName, entry.FilterName)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		entry.State = StateError
		entry.Err = err
		o.rebuildOrder()
		return
	}
	entry.Env = env
	entry.Hash = env.PolicyHash
	entry.Err = nil
	if disabled {
		entry.State = StateDisabled
	} else {
		entry.State = StateEnabled
	}
	o.rebuildOrder()
}

// DeleteEntry removes name, stopping its controller, then persists.
func (o *Orchestrator) DeleteEntry(ctx context.Context, name string) error {
	o.mu.Lock()
	entry, ok := o.entries[name]
	if !ok {
		o.mu.Unlock()
		return routererr.Wrap(routererr.NotFound, fmt.Sprintf("entry %q not found", name), routererr.ErrNotFound)
	}
	delete(o.entries, name)
	o.rebuildOrder()
	o.mu.Unlock()

	if entry.Env != nil {
		entry.Env.Stop()
	}
	return o.persistTable(ctx)
}

// GetEntry is a snapshot read.
func (o *Orchestrator) GetEntry(name string) (*Entry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.entries[name]
	if !ok {
		return nil, routererr.Wrap(routererr.NotFound, fmt.Sprintf("entry %q not found", name), routererr.ErrNotFound)
	}
	return entry, nil
}

// GetEntries is a snapshot read of the full sorted table.
func (o *Orchestrator) GetEntries() []*Entry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Entry, len(o.order))
	copy(out, o.order)
	return out
}

// ReloadEntry rebuilds entry's Environment from current source; on
// success it swaps in atomically (under the same lock as every other
// table mutation), on failure it leaves the entry in ERROR while
// preserving the previous Environment operational, per §4.8.
func (o *Orchestrator) ReloadEntry(ctx context.Context, name string) error {
	o.mu.RLock()
	entry, ok := o.entries[name]
	o.mu.RUnlock()
	if !ok {
		return routererr.Wrap(routererr.NotFound, fmt.Sprintf("entry %q not found", name), routererr.ErrNotFound)
	}

	newEnv, err := o.builder.Build(ctx, entry.PolicyName, entry.FilterName)
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		entry.State = StateError
		entry.Err = err
		return err
	}
	oldEnv := entry.Env
	entry.Env = newEnv
	entry.Hash = newEnv.PolicyHash
	entry.Err = nil
	if entry.State != StateDisabled {
		entry.State = StateEnabled
	}
	if oldEnv != nil {
		oldEnv.Stop()
	}
	return nil
}

// ChangeEntryPriority moves name to newPriority, failing if it's already
// occupied (Open Question default: disallow collisions, §9).
func (o *Orchestrator) ChangeEntryPriority(ctx context.Context, name string, newPriority uint32) error {
	o.mu.Lock()
	entry, ok := o.entries[name]
	if !ok {
		o.mu.Unlock()
		return routererr.Wrap(routererr.NotFound, fmt.Sprintf("entry %q not found", name), routererr.ErrNotFound)
	}
	for otherName, e := range o.entries {
		if otherName != name && e.Priority == newPriority {
			o.mu.Unlock()
			return routererr.New(routererr.AlreadyExists, fmt.Sprintf("priority %d is already in use by %q", newPriority, otherName))
		}
	}
	entry.Priority = newPriority
	o.rebuildOrder()
	o.mu.Unlock()
	return o.persistTable(ctx)
}

// rebuildOrder re-sorts the order slice (priority ascending, name
// ascending) — callers must hold o.mu for writing.
func (o *Orchestrator) rebuildOrder() {
	order := make([]*Entry, 0, len(o.entries))
	for _, e := range o.entries {
		order = append(order, e)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].Priority != order[j].Priority {
			return order[i].Priority < order[j].Priority
		}
		return order[i].Name < order[j].Name
	})
	o.order = order
}

// persistTable serializes the full entry table as JSON to router/router/0.
func (o *Orchestrator) persistTable(ctx context.Context) error {
	o.mu.RLock()
	records := make([]entryRecord, 0, len(o.entries))
	for _, e := range o.entries {
		records = append(records, entryRecord{
			Name: e.Name, Policy: e.PolicyName, Filter: e.FilterName,
			Priority: e.Priority, Disabled: e.State == StateDisabled,
		})
	}
	o.mu.RUnlock()
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	data, err := json.Marshal(records)
	if err != nil {
		return routererr.Wrapf(routererr.IOError, err, "marshal entry table")
	}
	if err := o.store.Write(ctx, store.RouterTablePath, data); err != nil {
		return routererr.Wrapf(routererr.IOError, err, "persist entry table")
	}
	return nil
}

// loadTable reads router/router/0 (if present) and builds every entry
// concurrently.
func (o *Orchestrator) loadTable(ctx context.Context) error {
	data, err := o.store.Read(ctx, store.RouterTablePath)
	if err != nil {
		if routererr.Is(err, routererr.NotFound) {
			return nil
		}
		return err
	}
	var records []entryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return routererr.Wrapf(routererr.IOError, err, "parse entry table")
	}

	var eg errgroup.Group
	for _, rec := range records {
		entry := &Entry{Name: rec.Name, PolicyName: rec.Policy, FilterName: rec.Filter, Priority: rec.Priority, State: StateBuilding}
		if rec.Disabled {
			entry.State = StateDisabled
		}
		o.mu.Lock()
		o.entries[rec.Name] = entry
		o.mu.Unlock()

		disabled := rec.Disabled
		eg.Go(func() error {
			o.buildEntry(ctx, entry, disabled)
			return nil
		})
	}
	return eg.Wait()
}
