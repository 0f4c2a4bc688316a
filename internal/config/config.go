// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Port             string
	FrontendURL      string
	DBPath           string
	GRPCHealthAddr   string // empty disables the gRPC health service
	SessionRetention time.Duration
	LogLevel         string
	Model            ModelConfig
	Limits           LimitsConfig
}

// ModelConfig selects the model provider and holds its credentials.
type ModelConfig struct {
	Provider          model.Provider
	Name              string
	MaxTokens         int64
	Temperature       *float64
	Timeout           time.Duration
	RequestsPerMinute int
	BaseURL           string
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	GeminiAPIKey      string
}

// LimitsConfig bounds what a single client can ask for.
type LimitsConfig struct {
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	MaxRequestBodySize int64
	HistoryWindow      int
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:             "8080",
		DBPath:           "./data/datagen.db",
		SessionRetention: 30 * 24 * time.Hour,
		LogLevel:         "info",
		Model: ModelConfig{
			Provider:  model.ProviderAnthropic,
			MaxTokens: 1024,
			Timeout:   2 * time.Minute,
		},
		Limits: LimitsConfig{
			RateLimitRequests:  10,
			RateLimitWindow:    time.Minute,
			MaxRequestBodySize: 64 << 10,
		},
	}
}

// Load reads configuration: defaults, then the YAML file named by
// DATAGEN_CONFIG if set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("DATAGEN_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.GRPCHealthAddr = getEnv("GRPC_HEALTH_ADDR", c.GRPCHealthAddr)
	c.SessionRetention = getEnvDuration("SESSION_RETENTION", c.SessionRetention)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	m := &c.Model
	m.Provider = model.Provider(strings.ToLower(getEnv("MODEL_PROVIDER", string(m.Provider))))
	m.Name = getEnv("MODEL_NAME", m.Name)
	m.MaxTokens = int64(getEnvInt("MODEL_MAX_TOKENS", int(m.MaxTokens)))
	if t, ok := getEnvFloat("MODEL_TEMPERATURE"); ok {
		m.Temperature = &t
	}
	m.Timeout = getEnvDuration("MODEL_TIMEOUT", m.Timeout)
	m.RequestsPerMinute = getEnvInt("MODEL_REQUESTS_PER_MINUTE", m.RequestsPerMinute)
	m.BaseURL = getEnv("OPENAI_BASE_URL", m.BaseURL)
	m.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", m.AnthropicAPIKey)
	m.OpenAIAPIKey = getEnv("OPENAI_API_KEY", m.OpenAIAPIKey)
	m.GeminiAPIKey = getEnv("GEMINI_API_KEY", m.GeminiAPIKey)

	l := &c.Limits
	l.RateLimitRequests = getEnvInt("RATE_LIMIT_REQUESTS", l.RateLimitRequests)
	l.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", l.RateLimitWindow)
	l.MaxRequestBodySize = int64(getEnvInt("MAX_REQUEST_BODY_SIZE", int(l.MaxRequestBodySize)))
	l.HistoryWindow = getEnvInt("HISTORY_WINDOW", l.HistoryWindow)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if !c.Model.Provider.Valid() {
		return fmt.Errorf("MODEL_PROVIDER %q is not one of anthropic, openai, gemini", c.Model.Provider)
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("MODEL_MAX_TOKENS must be > 0")
	}
	if t := c.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("MODEL_TEMPERATURE must be between 0 and 2")
	}
	if c.Model.RequestsPerMinute < 0 {
		return fmt.Errorf("MODEL_REQUESTS_PER_MINUTE must be >= 0")
	}
	if c.Limits.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.Limits.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Limits.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.Limits.HistoryWindow < 0 {
		return fmt.Errorf("HISTORY_WINDOW must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the API.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

// DefaultAPIKey returns the process-wide key for the configured provider.
func (m ModelConfig) DefaultAPIKey() string {
	switch m.Provider {
	case model.ProviderOpenAI:
		return m.OpenAIAPIKey
	case model.ProviderGemini:
		return m.GeminiAPIKey
	default:
		return m.AnthropicAPIKey
	}
}

// KeyEnvName returns the environment variable holding the provider key.
func (m ModelConfig) KeyEnvName() string {
	switch m.Provider {
	case model.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case model.ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// ClientConfig returns the settings passed to model clients.
func (m ModelConfig) ClientConfig() model.Config {
	return model.Config{
		Provider:    m.Provider,
		Model:       m.Name,
		MaxTokens:   m.MaxTokens,
		Temperature: m.Temperature,
		Timeout:     m.Timeout,
		BaseURL:     m.BaseURL,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string) (float64, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
