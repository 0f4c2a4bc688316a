package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/export"
	"github.com/ashureev/jailbreak-datagen/internal/identity"
	"github.com/go-chi/chi/v5"
)

const maxSessionList = 200

// ListSessions returns the caller's sessions, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSessionList {
			Error(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxSessionList))
			return
		}
		limit = n
	}

	sessions, err := h.repo.ListSessions(r.Context(), identity.ClientIDFromContext(r.Context()), limit)
	if err != nil {
		h.logger.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GetSession returns one session summary.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, session)
}

// ExportSession downloads a session's dataset, optionally filtered and sorted.
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	query, err := export.ParseQuery(q.Get("category"), q.Get("severity"), q.Get("success"), q.Get("search"), q.Get("sort"), q.Get("dir"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	examples, err := h.repo.ListExamples(r.Context(), session.ID)
	if err != nil {
		h.logger.Error("Failed to load examples", "session_id", session.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load dataset")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="jailbreak-dataset-%s.%s"`, shortID(session.ID), format.Extension()))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, format, query.Apply(examples)); err != nil {
		h.logger.Error("Failed to write export", "session_id", session.ID, "error", err)
	}
}

// ownedSession loads the session named in the URL and writes a 404 unless it
// belongs to the caller.
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	session, err := h.repo.GetSession(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	if session == nil || session.ClientID != identity.ClientIDFromContext(r.Context()) {
		Error(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
