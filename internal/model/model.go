// Package model talks to the generative text providers that produce dataset
// records. Every provider is used through the Client interface and is called
// exactly once per request: SDK level retries are disabled.
package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names a supported model backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// Providers returns every supported provider.
func Providers() []Provider {
	return []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGemini}
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
		return true
	}
	return false
}

// DefaultModel returns the model used when none is configured.
func (p Provider) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return "claude-sonnet-4-20250514"
	}
}

// Request is a single-turn completion request.
type Request struct {
	System string
	User   string
}

// Completion is the text returned by the provider.
type Completion struct {
	Text       string
	StopReason string
	Model      string
}

// Client produces one completion per call.
type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Error is a failure of the model call itself, as opposed to unusable output.
// It ends a generation session.
type Error struct {
	Provider   Provider
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoAPIKey is returned when a client is requested without a credential.
var ErrNoAPIKey = errors.New("no API key configured")

// Config holds the provider settings shared by every client.
type Config struct {
	Provider    Provider
	Model       string
	MaxTokens   int64
	Temperature *float64
	Timeout     time.Duration
	BaseURL     string
}

// ModelName returns the configured model or the provider default.
func (c Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return c.Provider.DefaultModel()
}

func (c Config) maxTokens() int64 {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1024
}
