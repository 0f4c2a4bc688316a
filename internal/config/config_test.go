package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATAGEN_CONFIG", "PORT", "FRONTEND_URL", "DB_PATH", "GRPC_HEALTH_ADDR",
		"SESSION_RETENTION", "LOG_LEVEL", "MODEL_PROVIDER", "MODEL_NAME",
		"MODEL_MAX_TOKENS", "MODEL_TEMPERATURE", "MODEL_TIMEOUT",
		"MODEL_REQUESTS_PER_MINUTE", "OPENAI_BASE_URL", "ANTHROPIC_API_KEY",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "RATE_LIMIT_REQUESTS",
		"RATE_LIMIT_WINDOW", "MAX_REQUEST_BODY_SIZE", "HISTORY_WINDOW",
	} {
		if v, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { _ = os.Setenv(key, v) })
			_ = os.Unsetenv(key)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" || cfg.Model.Provider != model.ProviderAnthropic || cfg.Model.MaxTokens != 1024 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Model.Temperature != nil {
		t.Fatal("temperature should be unset by default")
	}
	if !cfg.IsDevelopment() {
		t.Fatal("empty FRONTEND_URL should be development")
	}
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Fatalf("unexpected origins: %v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_PROVIDER", "OpenAI")
	t.Setenv("MODEL_TEMPERATURE", "0.7")
	t.Setenv("MODEL_TIMEOUT", "45")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FRONTEND_URL", "https://datagen.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Model.Provider != model.ProviderOpenAI {
		t.Errorf("Provider = %q", cfg.Model.Provider)
	}
	if cfg.Model.Temperature == nil || *cfg.Model.Temperature != 0.7 {
		t.Errorf("Temperature = %v", cfg.Model.Temperature)
	}
	if cfg.Model.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.Model.Timeout)
	}
	if cfg.Limits.RateLimitWindow != 30*time.Second {
		t.Errorf("RateLimitWindow = %v", cfg.Limits.RateLimitWindow)
	}
	if cfg.Model.DefaultAPIKey() != "sk-test" || cfg.Model.KeyEnvName() != "OPENAI_API_KEY" {
		t.Errorf("unexpected key resolution")
	}
	if cfg.IsDevelopment() {
		t.Error("public FRONTEND_URL should not be development")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "datagen.yaml")
	yamlDoc := `
server:
  port: "7000"
  db_path: /tmp/from-file.db
model:
  provider: gemini
  name: gemini-2.5-pro
  temperature: 0.2
  api_keys:
    gemini: ${TEST_GEMINI_KEY}
limits:
  rate_limit_requests: 3
  rate_limit_window: 10s
  history_window: 8
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DATAGEN_CONFIG", path)
	t.Setenv("TEST_GEMINI_KEY", "g-key")
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "7001" {
		t.Errorf("env should win over file, Port = %q", cfg.Port)
	}
	if cfg.DBPath != "/tmp/from-file.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Model.Provider != model.ProviderGemini || cfg.Model.Name != "gemini-2.5-pro" {
		t.Errorf("unexpected model: %+v", cfg.Model)
	}
	if cfg.Model.DefaultAPIKey() != "g-key" {
		t.Errorf("expanded key = %q", cfg.Model.DefaultAPIKey())
	}
	if cfg.Limits.RateLimitRequests != 3 || cfg.Limits.RateLimitWindow != 10*time.Second || cfg.Limits.HistoryWindow != 8 {
		t.Errorf("unexpected limits: %+v", cfg.Limits)
	}
	if cfg.Model.MaxTokens != 1024 {
		t.Errorf("unset file fields should keep defaults, MaxTokens = %d", cfg.Model.MaxTokens)
	}

	mc := cfg.Model.ClientConfig()
	if mc.Provider != model.ProviderGemini || mc.Model != "gemini-2.5-pro" || mc.Temperature == nil {
		t.Errorf("unexpected client config: %+v", mc)
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)

	t.Setenv("DATAGEN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Fatalf("expected read error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("model:\n  timeout: soon\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DATAGEN_CONFIG", path)
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "model.timeout") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	hot := 3.0
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"bad provider", func(c *Config) { c.Model.Provider = "llama" }, "MODEL_PROVIDER"},
		{"zero tokens", func(c *Config) { c.Model.MaxTokens = 0 }, "MODEL_MAX_TOKENS"},
		{"hot temperature", func(c *Config) { c.Model.Temperature = &hot }, "MODEL_TEMPERATURE"},
		{"zero rate", func(c *Config) { c.Limits.RateLimitRequests = 0 }, "RATE_LIMIT_REQUESTS"},
		{"negative history", func(c *Config) { c.Limits.HistoryWindow = -1 }, "HISTORY_WINDOW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
