package wdbpool

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"sync"
	"time"

	"github.com/99souls/routingcore/engine/telemetry/metrics"
)

// ErrCircuitOpen is returned when a shard's circuit breaker is open and a
// query is rejected without attempting a connection.
var ErrCircuitOpen = errors.New("wdbpool: circuit open")

// Config configures the Pool.
type Config struct {
	SocketPath   string
	Shards       int           // must be a power of two; default 16
	QueryTimeout time.Duration // per-query socket deadline; default 2s
	BreakerTrip  int           // consecutive failures before opening; default 5
	BreakerCool  time.Duration // cool-down before half-open retry; default 5s
}

func (c Config) withDefaults() Config {
	if c.Shards <= 0 || c.Shards&(c.Shards-1) != 0 {
		c.Shards = 16
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 2 * time.Second
	}
	if c.BreakerTrip <= 0 {
		c.BreakerTrip = 5
	}
	if c.BreakerCool <= 0 {
		c.BreakerCool = 5 * time.Second
	}
	return c
}

type breakerState int

const (
	circuitClosed breakerState = iota
	circuitOpen
	circuitHalfOpen
)

type shard struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	nextAttempt time.Time
	conn        net.Conn
}

// Pool is a sharded, per-worker pooled client to the wazuh-DB UNIX socket,
// each shard carrying its own lazily-dialed connection and circuit
// breaker so one worker's socket trouble does not starve the others —
// adapted from the sharded domainShard/circuit-breaker pattern in
// engine/internal/ratelimit/limiter.go, retargeted from per-domain HTTP
// rate limiting to per-worker wdb connection health.
type Pool struct {
	cfg    Config
	shards []*shard
	mask   uint64
	dial   func(path string) (net.Conn, error)

	// Metrics is optional; a nil value disables instrumentation entirely.
	Metrics *metrics.RouterMetrics
}

// New builds a Pool. workerKey-sharded so concurrent workers rarely
// contend on the same shard's mutex.
func New(cfg Config) *Pool {
	cfg = cfg.withDefaults()
	shards := make([]*shard, cfg.Shards)
	for i := range shards {
		shards[i] = &shard{}
	}
	return &Pool{
		cfg:    cfg,
		shards: shards,
		mask:   uint64(cfg.Shards - 1),
		dial:   func(path string) (net.Conn, error) { return net.Dial("unix", path) },
	}
}

func (p *Pool) shardFor(workerKey string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(workerKey))
	return p.shards[uint64(h.Sum32())&p.mask]
}

// Query sends query over workerKey's pooled connection and returns the
// parsed response. If the shard's circuit is open, it fails fast with
// ErrCircuitOpen instead of attempting to dial.
func (p *Pool) Query(ctx context.Context, workerKey, query string) (QueryResult, error) {
	s := p.shardFor(workerKey)
	s.mu.Lock()
	now := time.Now()
	if s.state == circuitOpen {
		if now.After(s.nextAttempt) {
			s.state = circuitHalfOpen
		} else {
			s.mu.Unlock()
			return QueryResult{}, ErrCircuitOpen
		}
	}
	conn, err := p.connLocked(s)
	if err != nil {
		p.recordFailureLocked(s, now)
		s.mu.Unlock()
		return QueryResult{}, fmt.Errorf("wdbpool: dial: %w", err)
	}
	s.mu.Unlock()

	timeout := p.cfg.QueryTimeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}
	res, err := sendQuery(conn, query, timeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		s.conn = nil
		p.recordFailureLocked(s, time.Now())
		return QueryResult{}, err
	}
	p.recordSuccessLocked(s)
	return res, nil
}

// connLocked returns s's live connection, dialing one if absent. Caller
// must hold s.mu.
func (p *Pool) connLocked(s *shard) (net.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	start := time.Now()
	conn, err := p.dial(p.cfg.SocketPath)
	if p.Metrics != nil {
		p.Metrics.WdbAcquireLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

func (p *Pool) recordFailureLocked(s *shard, now time.Time) {
	s.failures++
	if s.state == circuitHalfOpen || s.failures >= p.cfg.BreakerTrip {
		if s.state != circuitOpen && p.Metrics != nil {
			p.Metrics.WdbCircuitTransitions.Inc(1, "open")
		}
		s.state = circuitOpen
		s.nextAttempt = now.Add(p.cfg.BreakerCool)
	}
}

func (p *Pool) recordSuccessLocked(s *shard) {
	if s.state != circuitClosed && p.Metrics != nil {
		p.Metrics.WdbCircuitTransitions.Inc(1, "closed")
	}
	s.failures = 0
	s.state = circuitClosed
}

// Close releases every shard's pooled connection — called by routerd's
// deferred shutdown, after the orchestrator has stopped.
func (p *Pool) Close() error {
	var firstErr error
	for _, s := range p.shards {
		s.mu.Lock()
		if s.conn != nil {
			if err := s.conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			s.conn = nil
		}
		s.mu.Unlock()
	}
	return firstErr
}

// CircuitStates reports each shard's current breaker state, for the health
// evaluator probe.
func (p *Pool) CircuitStates() []string {
	out := make([]string, len(p.shards))
	for i, s := range p.shards {
		s.mu.Lock()
		switch s.state {
		case circuitOpen:
			out[i] = "open"
		case circuitHalfOpen:
			out[i] = "half_open"
		default:
			out[i] = "closed"
		}
		s.mu.Unlock()
	}
	return out
}
