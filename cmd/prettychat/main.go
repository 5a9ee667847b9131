package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"

	"PrettyChat/internal/backend"
	"PrettyChat/internal/cache"
	"PrettyChat/internal/chat"
	"PrettyChat/internal/config"
	"PrettyChat/internal/server"
	"PrettyChat/internal/session"
	"PrettyChat/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("prettychat exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer cleanup()

	clients := map[string]backend.Client{
		config.ModeMock: backend.NewMock(),
		config.ModeRAG: backend.NewRAG(backend.RAGOptions{
			Endpoint: cfg.RAG.Endpoint,
			Timeout:  cfg.Timeout,
		}, tracer, meter),
		config.ModeTinyLlama: backend.NewTinyLlama(completionOptions(cfg.TinyLlama, cfg.Timeout), tracer, meter),
		config.ModeLlama318B: backend.NewLlama318B(completionOptions(cfg.Llama318B, cfg.Timeout), tracer, meter),
	}

	registry, err := backend.NewRegistry(clients, cfg.Mode)
	if err != nil {
		return fmt.Errorf("building backend registry: %w", err)
	}

	svc := chat.NewService(
		session.NewMemoryStore(),
		registry,
		cache.New(),
		chat.Options{
			MaxHistoryTurns:  cfg.Chat.MaxHistoryTurns,
			MaxHistoryTokens: cfg.Chat.MaxHistoryTokens,
		},
		tracer,
		meter,
	)

	handler, err := server.NewHandler(svc)
	if err != nil {
		return fmt.Errorf("building handler: %w", err)
	}

	codec := securecookie.New([]byte(cfg.SecretKey), nil)
	router := server.NewRouter(handler, codec)

	srv, err := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	logger.Info("prettychat starting",
		"mode", cfg.Mode,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"debug", cfg.Debug,
	)

	return srv.Run(ctx)
}

func completionOptions(c config.CompletionConfig, timeout time.Duration) backend.CompletionOptions {
	return backend.CompletionOptions{
		Endpoint:    c.Endpoint,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		ContextSize: c.ContextSize,
		Temperature: c.Temperature,
		Stop:        c.Stop,
		Timeout:     timeout,
	}
}
