// Jailbreak dataset generator server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/api"
	"github.com/ashureev/jailbreak-datagen/internal/config"
	"github.com/ashureev/jailbreak-datagen/internal/health"
	"github.com/ashureev/jailbreak-datagen/internal/identity"
	"github.com/ashureev/jailbreak-datagen/internal/middleware"
	"github.com/ashureev/jailbreak-datagen/internal/model"
	"github.com/ashureev/jailbreak-datagen/internal/prompt"
	"github.com/ashureev/jailbreak-datagen/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"provider", cfg.Model.Provider,
		"model", cfg.Model.ClientConfig().ModelName())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	prompts, err := prompt.New()
	if err != nil {
		slog.Error("Failed to load prompt templates", "error", err)
		os.Exit(1)
	}

	models, err := model.NewFactory(cfg.Model.ClientConfig(), cfg.Model.DefaultAPIKey(),
		model.NewLimiter(cfg.Model.RequestsPerMinute), logger)
	if err != nil {
		slog.Error("Failed to initialize model factory", "error", err)
		os.Exit(1)
	}
	if cfg.Model.DefaultAPIKey() == "" {
		slog.Warn("No server API key configured, clients must send X-API-Key", "env", cfg.Model.KeyEnvName())
	}

	limiter := api.NewRateLimiter(cfg.Limits.RateLimitRequests, cfg.Limits.RateLimitWindow)
	defer limiter.Stop()

	handler := api.NewHandler(repo, models, prompts, api.Options{
		Logger:             logger,
		Limiter:            limiter,
		MaxRequestBodySize: cfg.Limits.MaxRequestBodySize,
		HistoryWindow:      cfg.Limits.HistoryWindow,
		OriginPatterns:     originPatterns(cfg.AllowedOrigins()),
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	handler.RegisterRoutes(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Streams can run for minutes, so there is no WriteTimeout. Request
	// contexts derive from ctx so in-flight sessions stop on shutdown.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	store.StartRetentionWorker(ctx, repo, cfg.SessionRetention)
	slog.Info("Retention worker started", "session_retention", cfg.SessionRetention)

	if cfg.GRPCHealthAddr != "" {
		hs := health.New(repo, health.WithLogger(logger))
		go func() {
			if err := hs.ListenAndServe(ctx, cfg.GRPCHealthAddr); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// originPatterns turns CORS origins into the host patterns the WebSocket
// origin check expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, strings.TrimRight(o, "/"))
	}
	return out
}
