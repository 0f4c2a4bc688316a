package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/model"
)

const healthCheckTimeout = 5 * time.Second

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status":   "healthy",
		"provider": h.models.Provider(),
		"model":    h.models.ModelName(),
		"checks":   checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// Defaults returns the default config and the metadata a client needs to
// build a config form.
func (h *Handler) Defaults(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"config":       domain.DefaultGenerationConfig(),
		"categories":   domain.Categories(),
		"difficulties": domain.Difficulties(),
		"severities":   domain.Severities(),
		"limits": map[string]int{
			"minCount": domain.MinCount,
			"maxCount": domain.MaxCount,
		},
		"provider":     h.models.Provider(),
		"providers":    model.Providers(),
		"model":        h.models.ModelName(),
		"hasServerKey": h.models.ResolveKey("") != "",
	})
}
