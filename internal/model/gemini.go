package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	cfg    Config
}

// NewGeminiClient creates a client for the given key.
func NewGeminiClient(ctx context.Context, apiKey string, cfg Config, httpClient *http.Client) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// Complete sends the user prompt with the system prompt as system instruction.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Completion, error) {
	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(c.cfg.maxTokens()),
	}
	if req.System != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.System)}}
	}
	if c.cfg.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*c.cfg.Temperature))
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(req.User)},
	}}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.ModelName(), contents, gc)
	if err != nil {
		return Completion{}, wrapGemini(err)
	}
	if len(resp.Candidates) == 0 {
		return Completion{}, &Error{Provider: ProviderGemini, Err: errors.New("response has no candidates")}
	}

	return Completion{
		Text:       resp.Text(),
		StopReason: string(resp.Candidates[0].FinishReason),
		Model:      resp.ModelVersion,
	}, nil
}

func wrapGemini(err error) error {
	merr := &Error{Provider: ProviderGemini, Err: err}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		merr.StatusCode = apiErr.Code
	}
	return merr
}
