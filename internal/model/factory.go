package model

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// Factory builds clients for the configured provider. Clients are created per
// session because the credential can come with each request.
type Factory struct {
	cfg        Config
	defaultKey string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewFactory creates a factory. defaultKey is used when a request carries no
// key of its own. limiter may be nil.
func NewFactory(cfg Config, defaultKey string, limiter *rate.Limiter, logger *slog.Logger) (*Factory, error) {
	if !cfg.Provider.Valid() {
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var httpClient *http.Client
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Factory{
		cfg:        cfg,
		defaultKey: defaultKey,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Provider returns the configured provider.
func (f *Factory) Provider() Provider {
	return f.cfg.Provider
}

// ModelName returns the model requests are sent to.
func (f *Factory) ModelName() string {
	return f.cfg.ModelName()
}

// ResolveKey returns override when set, otherwise the process default key.
func (f *Factory) ResolveKey(override string) string {
	if override != "" {
		return override
	}
	return f.defaultKey
}

// New returns a client authenticated with apiKey.
func (f *Factory) New(ctx context.Context, apiKey string) (Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	var client Client
	switch f.cfg.Provider {
	case ProviderAnthropic:
		client = NewAnthropicClient(apiKey, f.cfg, f.httpClient)
	case ProviderOpenAI:
		client = NewOpenAIClient(apiKey, f.cfg, f.httpClient)
	case ProviderGemini:
		gc, err := NewGeminiClient(ctx, apiKey, f.cfg, f.httpClient)
		if err != nil {
			return nil, err
		}
		client = gc
	default:
		return nil, fmt.Errorf("unsupported model provider %q", f.cfg.Provider)
	}

	f.logger.Debug("Model client created", "provider", f.cfg.Provider, "model", f.cfg.ModelName())
	return WithLimiter(client, f.limiter), nil
}
