package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/malwarescan/oracle/internal/config"
	"github.com/malwarescan/oracle/internal/registry"
	"github.com/malwarescan/oracle/internal/storage"
	"github.com/malwarescan/oracle/internal/streaming"
	"github.com/malwarescan/oracle/internal/worker"
	"github.com/malwarescan/oracle/internal/worker/precog"
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
	slog.Info("starting oracle worker", "env", cfg.Environment)

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

	jobRegistry := registry.New(pg)

	general := precog.NewGeneralProcessor(cfg.AnthropicAPIKey, "")
	precogs := precog.NewRegistry(general)
	precogs.Register("schema", precog.NewSchemaProcessor(cfg.AnthropicAPIKey, ""))

	consumer := consumerName()
	runtime := worker.NewRuntime(natsClient, jobRegistry, precogs, consumer)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := runtime.Run(ctx); err != nil {
		slog.Error("worker runtime stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("oracle worker stopped")
}

// consumerName derives a per-process consumer tag so multiple worker
// replicas fan out over the same durable pull consumer group.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
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
