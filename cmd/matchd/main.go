// Package main is the entry point for the compatibility matching service.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	scorecache "github.com/onnwee/kindred/internal/cache"
	"github.com/onnwee/kindred/internal/config"
	"github.com/onnwee/kindred/internal/entity"
	"github.com/onnwee/kindred/internal/health"
	"github.com/onnwee/kindred/internal/logging"
	"github.com/onnwee/kindred/internal/match"
	"github.com/onnwee/kindred/internal/proximity"
	"github.com/onnwee/kindred/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Kindred Matching Service")
		fmt.Println()
		fmt.Println("Usage: matchd [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := logging.New(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "kindred-matchd",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down tracer provider", "error", err)
		}
	}()

	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	cancel()

	entities := entity.NewPostgresRepository(db, logger)
	store := scorecache.NewPostgresStore(db, logger)

	checkers := map[string]health.Checker{
		"database": health.NewDBChecker(db),
	}

	// Geo index: Redis when configured, repository scan otherwise.
	var index proximity.Index
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}()
		index = proximity.NewRedisIndex(rdb, entities)
		checkers["redis"] = health.NewRedisChecker(rdb)
		logger.Info("using redis geo index", "addr", cfg.RedisAddr)
	} else {
		index = proximity.NewScanIndex(entities)
		logger.Info("using repository scan geo index")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := match.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	engine, err := match.NewEngine(match.EngineConfig{
		Entities: entities,
		Index:    index,
		Store:    store,
		Weights:  cfg.Weights,
		Tuning:   cfg.Tuning,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Error("failed to build matching engine", "error", err)
		os.Exit(1)
	}

	tracker := match.NewPendingTracker()
	job := match.NewRefreshJob(match.RefreshJobConfig{
		Interval: cfg.RefreshInterval,
		Logger:   logger,
	}, engine, tracker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job.Start(ctx)
	defer job.Stop()

	mux := http.NewServeMux()
	mux.Handle("/health", health.Handler(logger, checkers))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
