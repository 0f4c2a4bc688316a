// Package api provides HTTP handlers for the datagen API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/jailbreak-datagen/internal/model"
	"github.com/ashureev/jailbreak-datagen/internal/prompt"
	"github.com/ashureev/jailbreak-datagen/internal/store"
	"github.com/go-chi/chi/v5"
)

// APIKeyHeader carries a per-request model credential.
const APIKeyHeader = "X-API-Key"

const (
	defaultMaxRequestBodySize = 64 << 10
	noAPIKeyMessage           = "No API key configured. Set ANTHROPIC_API_KEY (or the key for the configured provider) in .env or send it in the X-API-Key header."
)

var errNoAPIKey = errors.New(noAPIKeyMessage)

// ModelFactory creates model clients for a resolved credential.
// *model.Factory implements it.
type ModelFactory interface {
	Provider() model.Provider
	ModelName() string
	ResolveKey(override string) string
	New(ctx context.Context, apiKey string) (model.Client, error)
}

// Options holds optional handler settings.
type Options struct {
	Logger             *slog.Logger
	Limiter            *RateLimiter
	MaxRequestBodySize int64
	HistoryWindow      int
	OriginPatterns     []string
}

// Handler serves the generation, session and metadata endpoints.
type Handler struct {
	repo           store.Repository
	models         ModelFactory
	prompts        *prompt.Builder
	limiter        *RateLimiter
	logger         *slog.Logger
	maxBodySize    int64
	historyWindow  int
	originPatterns []string
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, models ModelFactory, prompts *prompt.Builder, opts Options) *Handler {
	h := &Handler{
		repo:           repo,
		models:         models,
		prompts:        prompts,
		limiter:        opts.Limiter,
		logger:         opts.Logger,
		maxBodySize:    opts.MaxRequestBodySize,
		historyWindow:  opts.HistoryWindow,
		originPatterns: opts.OriginPatterns,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.maxBodySize <= 0 {
		h.maxBodySize = defaultMaxRequestBodySize
	}
	if len(h.originPatterns) == 0 {
		h.originPatterns = []string{"*"}
	}
	return h
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.Generate)
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Get("/sessions/{sessionID}/export", h.ExportSession)
		r.Get("/config/defaults", h.Defaults)
		r.Get("/health", h.Health)
	})
	r.Get("/ws/generate", h.GenerateWS)
}

// resolveAPIKey returns the request's credential, falling back to the
// process default for the configured provider.
func (h *Handler) resolveAPIKey(r *http.Request) (string, error) {
	key := h.models.ResolveKey(r.Header.Get(APIKeyHeader))
	if key == "" {
		return "", errNoAPIKey
	}
	return key, nil
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
