package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/api/handlers"
	"github.com/malwarescan/oracle/internal/config"
	"github.com/malwarescan/oracle/internal/ingest"
	"github.com/malwarescan/oracle/internal/kb"
	"github.com/malwarescan/oracle/internal/metrics"
	"github.com/malwarescan/oracle/internal/publish"
	"github.com/malwarescan/oracle/internal/ratelimit"
	"github.com/malwarescan/oracle/internal/registry"
	"github.com/malwarescan/oracle/internal/storage"
	"github.com/malwarescan/oracle/internal/streaming"
	"github.com/malwarescan/oracle/internal/verify"
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")
	_ = godotenv.Load("../../.env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)
	slog.Info("starting oracle API server", "addr", cfg.HTTPAddr, "env", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := storage.NewPostgresClient(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	natsClient, err := streaming.NewNATSClient(cfg.NATSURL)
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	if err := natsClient.EnsureStreams(ctx); err != nil {
		slog.Error("failed to ensure NATS streams", "error", err)
		os.Exit(1)
	}

	var redisCache storage.KBCache
	redis, err := storage.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		// Redis backs the short-TTL status cache only -- the API degrades
		// to direct Postgres reads on every status/ingest check rather
		// than failing to start.
		slog.Warn("redis unavailable; kb cache disabled", "error", err)
	} else {
		defer redis.Close()
		redisCache = redis
	}

	var sink storage.MetricsSink
	if cfg.ClickHouseURL != "" {
		metricsSink, err := storage.NewClickHouseClient(ctx, cfg.ClickHouseURL)
		if err != nil {
			slog.Warn("clickhouse unavailable; metrics will not persist across restarts", "error", err)
		} else {
			defer metricsSink.Close()
			sink = metricsSink
		}
	}

	metricsRegistry := metrics.New(sink)
	defer metricsRegistry.Close()

	jobRegistry := registry.New(pg)
	kbCache := kb.New(redisCache, pg)
	limiter := ratelimit.New()
	defer limiter.Close()

	hub := streaming.NewHub(registry.WSBridgeSource{Registry: jobRegistry})
	go hub.Run()

	fetcher := ingest.NewFetcher()
	ingestor := ingest.NewIngestor(fetcher, pg)
	if cfg.S3Bucket != "" && cfg.S3Endpoint != "" {
		s3Client, err := storage.NewS3Client(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL, cfg.S3SkipBucketVerification)
		if err != nil {
			slog.Warn("s3 unavailable; raw HTML snapshot archival disabled", "error", err)
		} else {
			ingestor.SetArchive(s3Client)
		}
	}
	publisher := publish.New(pg, kbCache)
	verifier := verify.New()

	healthHandler := handlers.NewHealthHandler(
		pg.Ping,
		func(ctx context.Context) error {
			if sink == nil {
				return nil
			}
			return sink.Ping(ctx)
		},
		natsClient.Ping,
		func(ctx context.Context) error {
			if redisCache == nil {
				return nil
			}
			return redisCache.Ping(ctx)
		},
	)

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.CORSOrigins,
		SharedToken:    cfg.BearerToken,
		Limiter:        limiter,

		HealthHandler:      healthHandler,
		RedisHealthHandler: healthHandler,
		MetricsHandler:     handlers.NewMetricsHandler(metricsRegistry, jobRegistry),

		InvokeHandler:    handlers.NewInvokeHandler(jobRegistry, natsClient),
		EventsHandler:    handlers.NewEventsHandler(jobRegistry),
		RunNDJSONHandler: handlers.NewRunNDJSONHandler(jobRegistry, natsClient),

		IngestHandler:   handlers.NewIngestHandler(ingestor, pg, kbCache),
		DiscoverHandler: handlers.NewDiscoverHandler(ingestor, pg),
		FactsHandler:    handlers.NewFactsHandler(publisher),
		GraphHandler:    handlers.NewGraphHandler(publisher),
		ExtractHandler:  handlers.NewExtractHandler(publisher),
		StatusHandler:   handlers.NewStatusHandler(publisher),
		MirrorHandler:   handlers.NewMirrorHandler(publisher),

		VerifyInitiateHandler: handlers.NewVerifyInitiateHandler(pg),
		VerifyCheckHandler:    handlers.NewVerifyCheckHandler(pg, verifier),

		WSHandler: handlers.NewStreamHandler(hub, cfg.CORSOrigins),
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 6 * time.Minute, // covers the run.ndjson/SSE hard ceiling
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("oracle API server stopped")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
