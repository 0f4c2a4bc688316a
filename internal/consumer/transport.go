package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/coder/websocket"
)

// Request headers understood by the server.
const (
	APIKeyHeader   = "X-API-Key"
	ClientIDHeader = "X-Client-ID"
)

// Transport opens a generation stream on the server. The returned reader
// yields the raw NDJSON bytes; cancelling ctx tears the stream down.
type Transport interface {
	Open(ctx context.Context, cfg domain.GenerationConfig, apiKey string) (io.ReadCloser, error)
}

// StatusError is a non-2xx reply to a generation request.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// HTTPTransport posts the config to /api/generate and streams the chunked body.
type HTTPTransport struct {
	BaseURL  string
	ClientID string
	Client   *http.Client
}

// Open implements Transport.
func (t *HTTPTransport) Open(ctx context.Context, cfg domain.GenerationConfig, apiKey string) (io.ReadCloser, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(t.BaseURL, "/")+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setHeaders(req.Header, apiKey, t.ClientID)

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

// WSTransport opens /ws/generate and sends the config as the first message.
// The server answers with one text message per line.
type WSTransport struct {
	BaseURL    string
	ClientID   string
	HTTPClient *http.Client
}

// Open implements Transport.
func (t *WSTransport) Open(ctx context.Context, cfg domain.GenerationConfig, apiKey string) (io.ReadCloser, error) {
	header := http.Header{}
	setHeaders(header, apiKey, t.ClientID)

	conn, resp, err := websocket.Dial(ctx, strings.TrimRight(t.BaseURL, "/")+"/ws/generate", &websocket.DialOptions{
		HTTPClient: t.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, statusError(resp)
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "encode config")
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "send config")
		return nil, fmt.Errorf("send config: %w", err)
	}

	return websocket.NetConn(ctx, conn, websocket.MessageText), nil
}

func setHeaders(h http.Header, apiKey, clientID string) {
	if apiKey != "" {
		h.Set(APIKeyHeader, apiKey)
	}
	if clientID != "" {
		h.Set(ClientIDHeader, clientID)
	}
}

func statusError(resp *http.Response) *StatusError {
	serr := &StatusError{StatusCode: resp.StatusCode}
	if resp.Body != nil {
		var payload struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			serr.Message = payload.Error
		}
	}
	if serr.Message == "" {
		serr.Message = http.StatusText(resp.StatusCode)
	}
	return serr
}
