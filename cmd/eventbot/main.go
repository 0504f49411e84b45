package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dajanosw/Event-Manager-Bot/internal/analytics"
	"github.com/dajanosw/Event-Manager-Bot/internal/api"
	"github.com/dajanosw/Event-Manager-Bot/internal/circuitbreaker"
	"github.com/dajanosw/Event-Manager-Bot/internal/config"
	"github.com/dajanosw/Event-Manager-Bot/internal/dispatcher"
	"github.com/dajanosw/Event-Manager-Bot/internal/leaderelection"
	"github.com/dajanosw/Event-Manager-Bot/internal/metrics"
	"github.com/dajanosw/Event-Manager-Bot/internal/parse"
	"github.com/dajanosw/Event-Manager-Bot/internal/reconciler"
	"github.com/dajanosw/Event-Manager-Bot/internal/store/postgres"
	"github.com/dajanosw/Event-Manager-Bot/internal/transport/channel"
	"github.com/dajanosw/Event-Manager-Bot/internal/validate"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`eventbot - chat command to calendar event pipeline

Usage:
  eventbot <command>

Commands:
  serve      Start the command intake API and dispatcher
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  SCHEDULE_API_URL          Scheduling API endpoint (required)
  SCHEDULE_API_SECRET       HMAC secret for signing API requests (optional)
  SCHEDULE_API_TIMEOUT      Scheduling API request timeout (default: "30s")
  REDIS_ADDR                Redis address for analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  DEFAULT_TIMEZONE          Zone applied when a command omits one (default: "UTC")

  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  DISPATCHER_DRAIN_TIMEOUT  Time allowed to drain buffered commands on shutdown (default: "30s")
  COMMANDBUS_BUFFER_SIZE    Buffered commands before intake rejects (default: "100")

  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before the breaker opens,
                            0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Open-state cooldown (default: "2m")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  RECONCILE_ENABLED         Enable stale attempt sweeper (default: "false")
  RECONCILE_CRON            Sweep schedule (default: "*/5 * * * *")
  RECONCILE_THRESHOLD       Age before a pending attempt is stale (default: "15m")
  RECONCILE_BATCH_SIZE      Max attempts per sweep (default: "100")

  ANALYTICS_WINDOW          Counter bucket size: 1m, 5m or 1h (default: "1h")
  ANALYTICS_RETENTION       Counter TTL (default: "720h")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("eventbot: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	if err := probeSchema(db); err != nil {
		fmt.Fprintf(os.Stderr, "schema probe failed (have migrations been applied?): %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db)
	extractor := parse.NewExtractor(cfg.DefaultTimezone)
	validator := validate.New()

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("eventbot: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("eventbot: METRICS_ENABLED not set; metrics disabled")
	}

	// Create command bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewCommandBus(cfg.CommandBusBufferSize, busOpts...)

	endpoint := dispatcher.Endpoint{
		URL:     cfg.ScheduleAPIURL,
		Secret:  cfg.ScheduleAPISecret,
		Timeout: cfg.ScheduleAPITimeout,
	}

	disp := dispatcher.New(
		extractor,
		validator,
		store,
		dispatcher.NewHTTPScheduleClient(),
		dispatcher.LogReplySender{},
		endpoint,
	).WithDrainTimeout(cfg.DispatcherDrainTimeout)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	if cfg.CircuitBreakerThreshold > 0 {
		breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		disp = disp.WithBreaker(breaker)
		log.Printf("eventbot: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		window, _ := time.ParseDuration(cfg.AnalyticsWindow)
		sink := analytics.NewRedisSink(redisClient, window, cfg.AnalyticsRetention)
		disp = disp.WithAnalytics(sink)
		log.Printf("eventbot: analytics enabled (redis=%s, window=%s)", cfg.RedisAddr, cfg.AnalyticsWindow)
	} else {
		log.Println("eventbot: REDIS_ADDR not set; analytics disabled")
	}

	apiHandler := api.NewHandler(bus, store, extractor, validator).WithHealthChecker(db)

	mux := http.NewServeMux()
	if metricsSink != nil {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("eventbot: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("eventbot: http server error: %v", err)
		}
	}()

	// Separate contexts for dispatcher and reconciler to enable ordered shutdown.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())

	var dispatcherWg sync.WaitGroup
	var reconcilerWg sync.WaitGroup
	var cancelReconciler context.CancelFunc

	dispatcherWg.Add(1)
	go func() {
		defer dispatcherWg.Done()
		disp.Run(dispatcherCtx, bus.Channel())
	}()

	// Start reconciler if enabled. It runs behind leader election so only
	// one replica sweeps when several share the database.
	if cfg.ReconcileEnabled {
		recon, err := reconciler.New(
			reconciler.Config{
				Schedule:  cfg.ReconcileCron,
				Threshold: cfg.ReconcileThreshold,
				BatchSize: cfg.ReconcileBatchSize,
			},
			store,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start reconciler: %v\n", err)
			cancelDispatcher()
			return exitInvalidConfig
		}
		if metricsSink != nil {
			recon = recon.WithMetrics(metricsSink)
		}

		var leaderWg sync.WaitGroup
		elector := leaderelection.New(
			db,
			cfg.LeaderLockKey,
			cfg.LeaderRetryInterval,
			cfg.LeaderHeartbeatInterval,
			func(leaderCtx context.Context) {
				leaderWg.Add(1)
				go func() {
					defer leaderWg.Done()
					recon.Run(leaderCtx)
				}()
			},
			func() {
				leaderWg.Wait()
			},
		)

		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			elector.Run(reconcilerCtx)
		}()
		log.Printf("eventbot: reconciler enabled (schedule=%q, threshold=%s, batch=%d, lock_key=%d)",
			cfg.ReconcileCron, cfg.ReconcileThreshold, cfg.ReconcileBatchSize, cfg.LeaderLockKey)
	} else {
		log.Println("eventbot: RECONCILE_ENABLED not set; reconciler disabled")
	}

	log.Printf("eventbot: started (http=%s, default_tz=%s, api=%s)",
		cfg.HTTPAddr, cfg.DefaultTimezone, cfg.ScheduleAPIURL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("eventbot: received signal %v, shutting down", received)

	// Phase 1: Stop HTTP intake so no new commands get queued
	log.Println("eventbot: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("eventbot: http server shutdown error: %v", err)
	}
	log.Println("eventbot: http server stopped")

	// Phase 2: Stop reconciler
	if cancelReconciler != nil {
		log.Println("eventbot: stopping reconciler...")
		cancelReconciler()
		reconcilerWg.Wait()
		log.Println("eventbot: reconciler stopped")
	}

	// Phase 3: Stop dispatcher (drains buffered commands before returning)
	log.Println("eventbot: stopping dispatcher (draining commands)...")
	cancelDispatcher()
	dispatcherWg.Wait()
	log.Println("eventbot: dispatcher stopped")

	log.Println("eventbot: stopped")
	return exitSuccess
}

// probeSchema verifies that the core tables exist before serving traffic.
func probeSchema(db *sql.DB) error {
	var one int
	return db.QueryRow(`SELECT 1 FROM information_schema.tables
		WHERE table_name = 'creation_attempts'`).Scan(&one)
}

// logConfigWarnings flags configurations that run but degrade operability.
func logConfigWarnings(cfg *config.Config) {
	if !cfg.ReconcileEnabled {
		log.Println("eventbot: WARNING: RECONCILE_ENABLED=false; a crash mid-retry leaves attempts pending forever")
	}
	if cfg.ScheduleAPISecret == "" {
		log.Println("eventbot: WARNING: SCHEDULE_API_SECRET not set; requests to the scheduling API are unsigned")
	}
	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("eventbot: WARNING: CIRCUIT_BREAKER_THRESHOLD=0; a scheduling API outage will burn full retry cycles per command")
	}
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("eventbot version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
