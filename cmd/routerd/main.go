// Command routerd is the routing core's daemon entrypoint: it wires the
// store, helper registry, policy compiler, environment builder, and
// orchestrator into a long-running process exposing admin, ingest,
// metrics, and health HTTP surfaces.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/99souls/routingcore/engine/telemetry/health"
	"github.com/99souls/routingcore/engine/telemetry/logging"
	"github.com/99souls/routingcore/engine/telemetry/metrics"
	"github.com/99souls/routingcore/internal/config"
	"github.com/99souls/routingcore/internal/environment"
	"github.com/99souls/routingcore/internal/eventtext"
	"github.com/99souls/routingcore/internal/helpers"
	"github.com/99souls/routingcore/internal/orchestrator"
	"github.com/99souls/routingcore/internal/policy"
	"github.com/99souls/routingcore/internal/store"
	"github.com/99souls/routingcore/internal/wdbpool"
)

// preScanConfigPath finds -config's value (if any) ahead of the main flag
// parse, so a config file's values can seed the real flags' defaults —
// letting an explicit flag still win over the file.
func preScanConfigPath(args []string) string {
	fs := flag.NewFlagSet("prescan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var path string
	fs.StringVar(&path, "config", "", "")
	_ = fs.Parse(args)
	return path
}

func main() {
	base := config.Defaults()
	if p := preScanConfigPath(os.Args[1:]); p != "" {
		loaded, err := config.Load(p)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		base = loaded
	}

	var (
		configPath     string
		storeDir       string
		metricsAddr    string
		healthAddr     string
		adminAddr      string
		wdbSocket      string
		workers        int
		testTimeout    time.Duration
		queueSize      int
		showVersion    bool
		metricsBackend string
	)
	flag.StringVar(&configPath, "config", "", "Optional YAML operational config file; changes while running are logged and take effect on restart")
	flag.StringVar(&storeDir, "store", base.StoreDir, "Base directory for the policy/asset/table file store")
	flag.StringVar(&metricsAddr, "metrics", "", "Expose Prometheus metrics on address (e.g. :9090)")
	flag.StringVar(&healthAddr, "health", "", "Expose health endpoint on address (e.g. :9091)")
	flag.StringVar(&adminAddr, "admin", ":9080", "Admin + ingest HTTP address")
	flag.StringVar(&wdbSocket, "wdb-socket", base.WdbSocket, "UNIX socket path for wdb_update/wdb_query helpers (disabled if empty)")
	flag.IntVar(&workers, "workers", base.Workers, "Worker pool size")
	flag.DurationVar(&testTimeout, "test-timeout", base.TestTimeout, "ingest_test deadline")
	flag.IntVar(&queueSize, "queue-size", base.QueueSize, "Production/test queue depth")
	flag.StringVar(&metricsBackend, "metrics-backend", base.MetricsBackend, "Metrics backend: prom|otel|noop")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("routerd – routing core daemon")
		return
	}

	logger := logging.New(slog.Default())

	st, err := store.NewFileStore(storeDir)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	provider := buildMetricsProvider(metricsBackend)
	routerMetrics := metrics.NewRouterMetrics(provider)

	registry := helpers.NewRegistry()
	helpers.RegisterAll(registry)
	helpers.RegisterSet(registry)

	var pool *wdbpool.Pool
	if wdbSocket != "" {
		pool = wdbpool.New(wdbpool.Config{SocketPath: wdbSocket})
		pool.Metrics = routerMetrics
		defer func() { _ = pool.Close() }()
		helpers.RegisterWdb(registry, pool, func() string { return "routerd" })
	}
	registry.Seal()

	loader := &policy.StoreLoader{Store: st}
	compiler := policy.NewCompiler(loader, registry)
	compiler.Metrics = routerMetrics
	builder := environment.NewBuilder(compiler)

	orch := orchestrator.New(builder, st, orchestrator.Config{
		Workers:     workers,
		TestTimeout: testTimeout,
		QueueSize:   queueSize,
		Metrics:     routerMetrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("start orchestrator: %v", err)
	}
	defer orch.Stop()

	logger.InfoCtx(ctx, "routerd started", "store", storeDir, "workers", workers)

	if configPath != "" {
		if watcher, err := config.NewWatcher(configPath); err != nil {
			logger.ErrorCtx(ctx, "config watch disabled", "error", err.Error())
		} else {
			go watchConfig(ctx, logger, watcher)
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.InfoCtx(ctx, "signal received; shutting down")
		cancel()
		<-sigCh
		log.Println("second signal received; forcing exit")
		os.Exit(1)
	}()

	healthEval := buildHealthEvaluator(st, pool)

	if metricsAddr != "" {
		go serveMetrics(ctx, metricsAddr, provider)
	}
	if healthAddr != "" {
		go serveHealth(ctx, healthAddr, healthEval)
	}

	srv := &http.Server{Addr: adminAddr, Handler: newAdminMux(orch)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.InfoCtx(ctx, "admin listening", "addr", adminAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("admin server: %v", err)
	}
}

// watchConfig logs operational config changes detected by the checksum
// diff in config.Watcher. Worker pool size and queue depth are fixed for
// the orchestrator's lifetime once Start is called (§5's fixed-size
// worker pool), so a changed file is surfaced for an operator-triggered
// restart rather than applied in place.
func watchConfig(ctx context.Context, logger logging.Logger, w *config.Watcher) {
	go w.Run(ctx)
	for {
		select {
		case cfg, ok := <-w.Changes:
			if !ok {
				return
			}
			logger.InfoCtx(ctx, "operational config changed; restart routerd to apply",
				"workers", cfg.Workers, "queue_size", cfg.QueueSize, "test_timeout", cfg.TestTimeout.String())
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.ErrorCtx(ctx, "config watch error", "error", err.Error())
		case <-ctx.Done():
			return
		}
	}
}

func buildMetricsProvider(backend string) metrics.Provider {
	switch backend {
	case "prom":
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	case "otel":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{})
	case "noop":
		return metrics.NewNoopProvider()
	default:
		return metrics.NewNoopProvider()
	}
}

func buildHealthEvaluator(st *store.FileStore, pool *wdbpool.Pool) *health.Evaluator {
	probes := []health.Probe{
		health.ProbeFunc(func(ctx context.Context) health.ProbeResult {
			if _, err := st.List(ctx, ""); err != nil {
				return health.Unhealthy("store", err.Error())
			}
			return health.Healthy("store")
		}),
	}
	if pool != nil {
		probes = append(probes, health.ProbeFunc(func(ctx context.Context) health.ProbeResult {
			for _, state := range pool.CircuitStates() {
				if state != "closed" {
					return health.Degraded("wdbpool", state)
				}
			}
			return health.Healthy("wdbpool")
		}))
	}
	return health.NewEvaluator(5*time.Second, probes...)
}

func serveMetrics(ctx context.Context, addr string, provider metrics.Provider) {
	mux := http.NewServeMux()
	if prom, ok := provider.(*metrics.PrometheusProvider); ok {
		mux.Handle("/metrics", prom.MetricsHandler())
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server: %v", err)
	}
}

func serveHealth(ctx context.Context, addr string, eval *health.Evaluator) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := eval.Evaluate(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("health endpoint listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("health server: %v", err)
	}
}

// newAdminMux wires the Router/Tester admin APIs (§4.8/§4.9) plus a raw
// wire-format ingest endpoint over HTTP, since the daemon has no other
// transport in this phase.
func newAdminMux(orch *orchestrator.Orchestrator) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/entries", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, orch.GetEntries())
		case http.MethodPost:
			var post orchestrator.EntryPost
			if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if err := orch.PostEntry(r.Context(), post); err != nil {
				writeError(w, http.StatusConflict, err)
				return
			}
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/ingest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ev, err := eventtext.Parse(string(body))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := orch.PostEvent(r.Context(), ev); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/test-entries", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, orch.GetTestEntries())
		case http.MethodPost:
			var post orchestrator.TestEntryPost
			if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if err := orch.PostTestEntry(r.Context(), post); err != nil {
				writeError(w, http.StatusConflict, err)
				return
			}
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
