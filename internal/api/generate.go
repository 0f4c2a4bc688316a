package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/generate"
	"github.com/ashureev/jailbreak-datagen/internal/identity"
	"github.com/ashureev/jailbreak-datagen/internal/model"
	"github.com/ashureev/jailbreak-datagen/internal/stream"
	"github.com/google/uuid"
)

// SessionIDHeader names the persisted session a stream belongs to.
const SessionIDHeader = "X-Session-ID"

// Generate streams one generation session as NDJSON.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	apiKey, err := h.resolveAPIKey(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var cfg domain.GenerationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := cfg.Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	clientID := identity.ClientIDFromContext(r.Context())
	// Keyed by client ID only so rotating sessions cannot bypass throttling.
	if !h.limiter.Allow(clientID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	run, err := h.startSession(r.Context(), clientID, cfg, apiKey)
	if err != nil {
		h.logger.Error("Failed to start session", "client_id", clientID, "error", err)
		status, msg := startError(err)
		Error(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set(SessionIDHeader, run.session.ID)
	w.WriteHeader(http.StatusOK)

	sw := stream.NewWriter(w)
	run.stream(r.Context(), sw.WriteLine)

	h.logger.Info("Generation stream closed",
		"session_id", run.session.ID,
		"client_id", clientID,
		"remote_ip", identity.IPFromRequest(r),
		"lines", sw.Lines())
}

// sessionRun ties one orchestrator run to its persisted session.
type sessionRun struct {
	h        *Handler
	session  *domain.Session
	orch     *generate.Orchestrator
	logger   *slog.Logger
	seq      int
	fatalMsg string
}

// startSession creates the model client and the persisted session record.
func (h *Handler) startSession(ctx context.Context, clientID string, cfg domain.GenerationConfig, apiKey string) (*sessionRun, error) {
	client, err := h.models.New(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Config:    cfg.Normalize(),
		Status:    domain.StatusGenerating,
		Provider:  string(h.models.Provider()),
		Model:     h.models.ModelName(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	logger := h.logger.With("session_id", session.ID)
	logger.Info("Generation started",
		"client_id", clientID,
		"count", session.Config.Count,
		"categories", len(session.Config.Categories),
		"difficulty", session.Config.Difficulty,
		"provider", session.Provider,
		"model", session.Model)

	return &sessionRun{
		h:       h,
		session: session,
		orch: generate.New(client, h.prompts,
			generate.WithLogger(logger),
			generate.WithHistoryWindow(h.historyWindow)),
		logger: logger,
	}, nil
}

// stream runs the session, persisting and emitting every line. It returns
// when the run ends, ctx is cancelled, or emit fails.
func (s *sessionRun) stream(ctx context.Context, emit func(stream.Line) error) {
	// Writes outlive the request so a disconnect still leaves a finished record.
	storeCtx := context.WithoutCancel(ctx)

	for line := range s.orch.Run(ctx, s.session.Config) {
		s.persist(storeCtx, line)
		if err := emit(line); err != nil {
			s.logger.Info("Client went away", "error", err)
			break
		}
	}
	s.finish(storeCtx)
}

func (s *sessionRun) persist(ctx context.Context, line stream.Line) {
	var err error
	switch line.Kind {
	case stream.KindData:
		err = s.h.repo.AppendExample(ctx, s.session.ID, s.seq, line.Example)
		s.seq++
	case stream.KindItemError:
		err = s.h.repo.RecordSkip(ctx, s.session.ID, line.Index, line.Message)
	case stream.KindFatal:
		s.fatalMsg = line.Message
	}
	if err != nil {
		s.logger.Error("Failed to persist stream line", "kind", line.Kind.String(), "error", err)
	}
}

func (s *sessionRun) finish(ctx context.Context) {
	status, msg := domain.StatusCompleted, ""
	if s.fatalMsg != "" {
		status, msg = domain.StatusError, s.fatalMsg
	}
	if err := s.h.repo.FinishSession(ctx, s.session.ID, status, msg); err != nil {
		s.logger.Error("Failed to finish session", "error", err)
		return
	}
	s.logger.Info("Generation finished", "status", status, "generated", s.seq)
}

// startError maps a session start failure to a status and message.
func startError(err error) (int, string) {
	if errors.Is(err, model.ErrNoAPIKey) {
		return http.StatusUnauthorized, noAPIKeyMessage
	}
	return http.StatusInternalServerError, "failed to start generation"
}
