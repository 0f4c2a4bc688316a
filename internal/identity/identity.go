// Package identity provides anonymous per-device client identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/store"
)

const (
	CookieName     = "datagen_client_id"
	HeaderName     = "X-Client-ID"
	cookieMaxAge   = 30 * 24 * time.Hour
	clientIDPrefix = "anon_"
)

type contextKey int

const clientIDKey contextKey = iota

var clientIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)

// ClientIDFromContext extracts the client ID from the request context.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey).(string); ok {
		return v
	}
	return ""
}

// WithClientID returns a context carrying the given client ID.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// NewClientID returns a fresh random client ID.
func NewClientID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate client id: %w", err)
	}
	return clientIDPrefix + hex.EncodeToString(buf), nil
}

// IsValidClientID reports whether id has the shape NewClientID produces.
func IsValidClientID(id string) bool {
	return clientIDPattern.MatchString(id)
}

func setCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(cookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// getOrCreateClientID prefers the X-Client-ID header (CLI callers keep no
// cookie jar), then the cookie, then mints a new ID.
func getOrCreateClientID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if id := strings.TrimSpace(r.Header.Get(HeaderName)); IsValidClientID(id) {
		return id, nil
	}

	if c, err := r.Cookie(CookieName); err == nil && IsValidClientID(c.Value) {
		setCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := NewClientID()
	if err != nil {
		return "", err
	}
	setCookie(w, id, isDev)
	return id, nil
}

// Middleware attaches the caller's client ID to the request context and
// records the client in the repository.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := getOrCreateClientID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish client identity"}`, http.StatusInternalServerError)
				return
			}

			now := time.Now()
			if err := repo.UpsertClient(r.Context(), &domain.Client{ID: clientID, LastSeenAt: now, CreatedAt: now}); err != nil {
				http.Error(w, `{"error":"failed to initialize client"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request logging.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
