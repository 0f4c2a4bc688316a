package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ashureev/jailbreak-datagen/internal/store"
)

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func serve(t *testing.T, repo store.Repository, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = ClientIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddlewareMintsAndPersistsClient(t *testing.T) {
	t.Parallel()

	repo := newRepo(t)
	rec, id := serve(t, repo, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if !IsValidClientID(id) {
		t.Fatalf("unexpected client id %q", id)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || cookies[0].Value != id {
		t.Fatalf("expected client cookie, got %+v", cookies)
	}
	if cookies[0].Secure {
		t.Fatal("cookie should not be Secure in development")
	}

	client, err := repo.GetClient(context.Background(), id)
	if err != nil || client == nil {
		t.Fatalf("client not persisted: %v", err)
	}
}

func TestMiddlewareReusesCookie(t *testing.T) {
	t.Parallel()

	repo := newRepo(t)
	existing, err := NewClientID()
	if err != nil {
		t.Fatalf("NewClientID failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: existing})
	_, id := serve(t, repo, req)
	if id != existing {
		t.Fatalf("expected %q, got %q", existing, id)
	}
}

func TestMiddlewareHeaderWinsOverCookie(t *testing.T) {
	t.Parallel()

	repo := newRepo(t)
	fromHeader, _ := NewClientID()
	fromCookie, _ := NewClientID()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderName, fromHeader)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: fromCookie})
	rec, id := serve(t, repo, req)
	if id != fromHeader {
		t.Fatalf("expected header id, got %q", id)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("header callers should not get a cookie")
	}
}

func TestMiddlewareRejectsMalformedIDs(t *testing.T) {
	t.Parallel()

	repo := newRepo(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderName, "anon_not-hex")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "../../etc/passwd"})
	_, id := serve(t, repo, req)
	if !IsValidClientID(id) || id == "anon_not-hex" {
		t.Fatalf("expected a freshly minted id, got %q", id)
	}
}

func TestIPFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if got := IPFromRequest(req); got != "10.0.0.7" {
		t.Fatalf("got %q", got)
	}
	req.RemoteAddr = "10.0.0.8"
	if got := IPFromRequest(req); got != "10.0.0.8" {
		t.Fatalf("got %q", got)
	}
}
