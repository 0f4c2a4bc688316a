package model

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient calls an OpenAI compatible chat completions endpoint. With a
// base URL it also serves OpenRouter, Groq and local servers.
type OpenAIClient struct {
	client openai.Client
	cfg    Config
}

// NewOpenAIClient creates a client for the given key.
func NewOpenAIClient(apiKey string, cfg Config, httpClient *http.Client) *OpenAIClient {
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
	return &OpenAIClient{client: openai.NewClient(opts...), cfg: cfg}
}

// Complete sends a system and a user message and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.cfg.ModelName()),
		Messages:  messages,
		MaxTokens: openai.Int(c.cfg.maxTokens()),
	}
	if c.cfg.Temperature != nil {
		params.Temperature = openai.Float(*c.cfg.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, wrapOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &Error{Provider: ProviderOpenAI, Err: errors.New("response has no choices")}
	}

	choice := resp.Choices[0]
	return Completion{
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
		Model:      resp.Model,
	}, nil
}

func wrapOpenAI(err error) error {
	merr := &Error{Provider: ProviderOpenAI, Err: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		merr.StatusCode = apiErr.StatusCode
	}
	return merr
}
