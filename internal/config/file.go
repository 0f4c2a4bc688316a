package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/model"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML overlay. Unset fields keep their current value.
// ${VAR} references are expanded from the environment before parsing.
type fileConfig struct {
	Server struct {
		Port             string `yaml:"port"`
		FrontendURL      string `yaml:"frontend_url"`
		DBPath           string `yaml:"db_path"`
		GRPCHealthAddr   string `yaml:"grpc_health_addr"`
		SessionRetention string `yaml:"session_retention"`
		LogLevel         string `yaml:"log_level"`
	} `yaml:"server"`

	Model struct {
		Provider          string   `yaml:"provider"`
		Name              string   `yaml:"name"`
		MaxTokens         int64    `yaml:"max_tokens"`
		Temperature       *float64 `yaml:"temperature"`
		Timeout           string   `yaml:"timeout"`
		RequestsPerMinute int      `yaml:"requests_per_minute"`
		BaseURL           string   `yaml:"base_url"`
		APIKeys           struct {
			Anthropic string `yaml:"anthropic"`
			OpenAI    string `yaml:"openai"`
			Gemini    string `yaml:"gemini"`
		} `yaml:"api_keys"`
	} `yaml:"model"`

	Limits struct {
		RateLimitRequests  int    `yaml:"rate_limit_requests"`
		RateLimitWindow    string `yaml:"rate_limit_window"`
		MaxRequestBodySize int64  `yaml:"max_request_body_size"`
		HistoryWindow      int    `yaml:"history_window"`
	} `yaml:"limits"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Port, fc.Server.Port)
	setString(&c.FrontendURL, fc.Server.FrontendURL)
	setString(&c.DBPath, fc.Server.DBPath)
	setString(&c.GRPCHealthAddr, fc.Server.GRPCHealthAddr)
	setString(&c.LogLevel, fc.Server.LogLevel)
	if err := setDuration(&c.SessionRetention, fc.Server.SessionRetention, "server.session_retention"); err != nil {
		return err
	}

	m := &c.Model
	if fc.Model.Provider != "" {
		m.Provider = model.Provider(fc.Model.Provider)
	}
	setString(&m.Name, fc.Model.Name)
	if fc.Model.MaxTokens != 0 {
		m.MaxTokens = fc.Model.MaxTokens
	}
	if fc.Model.Temperature != nil {
		m.Temperature = fc.Model.Temperature
	}
	if err := setDuration(&m.Timeout, fc.Model.Timeout, "model.timeout"); err != nil {
		return err
	}
	if fc.Model.RequestsPerMinute != 0 {
		m.RequestsPerMinute = fc.Model.RequestsPerMinute
	}
	setString(&m.BaseURL, fc.Model.BaseURL)
	setString(&m.AnthropicAPIKey, fc.Model.APIKeys.Anthropic)
	setString(&m.OpenAIAPIKey, fc.Model.APIKeys.OpenAI)
	setString(&m.GeminiAPIKey, fc.Model.APIKeys.Gemini)

	l := &c.Limits
	if fc.Limits.RateLimitRequests != 0 {
		l.RateLimitRequests = fc.Limits.RateLimitRequests
	}
	if err := setDuration(&l.RateLimitWindow, fc.Limits.RateLimitWindow, "limits.rate_limit_window"); err != nil {
		return err
	}
	if fc.Limits.MaxRequestBodySize != 0 {
		l.MaxRequestBodySize = fc.Limits.MaxRequestBodySize
	}
	if fc.Limits.HistoryWindow != 0 {
		l.HistoryWindow = fc.Limits.HistoryWindow
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, field string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	*dst = d
	return nil
}
