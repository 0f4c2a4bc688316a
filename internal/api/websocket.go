package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/identity"
	"github.com/ashureev/jailbreak-datagen/internal/stream"
	"github.com/coder/websocket"
)

const configReadTimeout = 30 * time.Second

// GenerateWS streams a generation session over a WebSocket. The first client
// message is the config; every stream line is sent as one text message.
func (h *Handler) GenerateWS(w http.ResponseWriter, r *http.Request) {
	// Credential and throttling are checked before the upgrade so the
	// client sees an ordinary HTTP status.
	apiKey, err := h.resolveAPIKey(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	clientID := identity.ClientIDFromContext(r.Context())
	if !h.limiter.Allow(clientID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error("WebSocket accept failed", "client_id", clientID, "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(h.maxBodySize)

	ctx := r.Context()
	send := func(l stream.Line) error {
		data, err := l.Encode()
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, data)
	}

	cfg, err := readConfig(ctx, conn)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		msg := "Invalid request body"
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Message
		}
		_ = send(stream.Fatal(msg))
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	run, err := h.startSession(ctx, clientID, cfg, apiKey)
	if err != nil {
		h.logger.Error("Failed to start session", "client_id", clientID, "error", err)
		_, msg := startError(err)
		_ = send(stream.Fatal(msg))
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	// CloseRead services control frames and cancels ctx when the peer
	// closes, which stops the orchestrator before its next attempt.
	ctx = conn.CloseRead(ctx)
	run.stream(ctx, send)

	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func readConfig(ctx context.Context, conn *websocket.Conn) (domain.GenerationConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, configReadTimeout)
	defer cancel()

	var cfg domain.GenerationConfig
	_, data, err := conn.Read(ctx)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
