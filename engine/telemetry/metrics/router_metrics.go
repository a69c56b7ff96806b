package metrics

// RouterMetrics names and holds every instrument the routing core emits,
// built once at daemon startup against whichever Provider backend
// (Prometheus, OTEL, noop) was selected — the concrete metric surface
// SPEC_FULL.md §10.2 calls for: events accepted/dropped, entry match
// counts, ingest latency, queue depth, tester timeout counts, compile
// duration, and wdb pool acquire latency/circuit transitions.
type RouterMetrics struct {
	EventsAccepted        Counter
	EventsDropped         Counter
	EntryMatched          Counter
	IngestDuration        Histogram
	ProdQueueDepth        Gauge
	TestQueueDepth        Gauge
	TesterTimeouts        Counter
	PolicyCompileDuration Histogram
	PolicyCompileFailures Counter
	WdbAcquireLatency     Histogram
	WdbCircuitTransitions Counter
}

// NewRouterMetrics builds the router's named instrument set against p.
func NewRouterMetrics(p Provider) *RouterMetrics {
	const ns = "routingcore"
	return &RouterMetrics{
		EventsAccepted: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "events_accepted_total",
			Help: "events pushed onto the production queue",
		}}),
		EventsDropped: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "events_dropped_total",
			Help: "events that matched no enabled entry",
		}}),
		EntryMatched: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "entry_matched_total",
			Help: "events matched, by entry name", Labels: []string{"entry"},
		}}),
		IngestDuration: p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "ingest_duration_seconds",
			Help: "production dispatch latency per event",
		}}),
		ProdQueueDepth: p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "prod_queue_depth",
			Help: "production queue depth at last enqueue",
		}}),
		TestQueueDepth: p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "test_queue_depth",
			Help: "tester queue depth at last enqueue",
		}}),
		TesterTimeouts: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "tester_timeouts_total",
			Help: "ingest_test calls that resolved to TIMEOUT",
		}}),
		PolicyCompileDuration: p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "policy_compile_duration_seconds",
			Help: "policy compile latency, success or failure",
		}}),
		PolicyCompileFailures: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "policy_compile_failures_total",
			Help: "policy compiles that returned an error",
		}}),
		WdbAcquireLatency: p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "wdb_acquire_latency_seconds",
			Help: "wdb pooled connection acquire latency",
		}}),
		WdbCircuitTransitions: p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
			Namespace: ns, Name: "wdb_circuit_transitions_total",
			Help: "wdb shard circuit breaker state transitions", Labels: []string{"state"},
		}}),
	}
}
