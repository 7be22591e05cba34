package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/audit"
	"github.com/reflexgate/reflexgate/internal/cache"
	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/events"
	"github.com/reflexgate/reflexgate/internal/logger"
	"github.com/reflexgate/reflexgate/internal/metrics"
	"github.com/reflexgate/reflexgate/internal/pipeline"
	"github.com/reflexgate/reflexgate/internal/ratelimit"
	"github.com/reflexgate/reflexgate/internal/server"
	"github.com/reflexgate/reflexgate/internal/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("ReflexGate %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting ReflexGate",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Shared Redis client for the verdict cache and the rate limiter. A
	// dead store at boot is logged, not fatal: both consumers degrade.
	client, err := storage.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer client.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("Backing store unreachable at startup, serving degraded",
			zap.String("url", storage.MaskURL(cfg.Redis.URL)), zap.Error(err))
	}
	cancelPing()

	store := cache.New(client, cfg.Cache, log)

	tiers, err := ratelimit.LoadTiers(cfg.RateLimit.TiersFile, cfg.RateLimit.DefaultTier)
	if err != nil {
		log.Fatal("Failed to load rate limit tiers", zap.Error(err))
	}
	limiter := ratelimit.New(client, cfg.RateLimit, tiers, log)

	m := metrics.New()

	var hub *events.Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	if cfg.Events.Enabled {
		hub = events.NewHub(cfg.Events, log)
		go hub.Run(hubCtx)
	}

	trail, err := audit.NewTrail(cfg.Audit, log)
	if err != nil {
		log.Fatal("Failed to open audit trail", zap.Error(err))
	}

	pipe, err := pipeline.New(cfg, store, limiter, m, hub, trail, log)
	if err != nil {
		log.Fatal("Failed to build pipeline", zap.Error(err))
	}

	// Detector and policy changes apply without a restart; server and
	// store settings still need one.
	if err := config.Watch(func(next *config.Config) {
		if err := pipe.Reload(next); err != nil {
			log.Error("Config reload rejected", zap.Error(err))
			return
		}
		log.Info("Configuration reloaded",
			zap.String("pii_pattern_set", next.PII.PatternSet),
			zap.String("injection_pattern_set", next.Injection.PatternSet),
			zap.Bool("block_on_high", next.Security.BlockOnHigh),
		)
	}); err != nil {
		log.Warn("Config watch unavailable", zap.Error(err))
	}

	ready := func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
	srv := server.New(cfg, pipe, m, hub, ready, log)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
		}
	}

	// Order matters: no new requests, then no event fan-out, then flush
	// the audit buffer before the process exits.
	stopHub()
	if err := trail.Close(); err != nil {
		log.Error("Failed to close audit trail", zap.Error(err))
	}
	log.Info("Shutdown complete")
}

// performHealthCheck probes a running instance, for container healthchecks.
func performHealthCheck() {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
