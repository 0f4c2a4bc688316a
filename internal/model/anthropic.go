package model

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	cfg    Config
}

// NewAnthropicClient creates a client for the given key.
func NewAnthropicClient(apiKey string, cfg Config, httpClient *http.Client) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...), cfg: cfg}
}

// Complete sends one user turn and returns the concatenated text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.ModelName()),
		MaxTokens: c.cfg.maxTokens(),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if c.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*c.cfg.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, wrapAnthropic(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Completion{
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Model:      string(msg.Model),
	}, nil
}

func wrapAnthropic(err error) error {
	merr := &Error{Provider: ProviderAnthropic, Err: err}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		merr.StatusCode = apiErr.StatusCode
	}
	return merr
}
