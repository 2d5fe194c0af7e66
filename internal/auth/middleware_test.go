package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/privara/docsearch/internal/domain"
)

func newHandler(t *testing.T) (http.Handler, *Issuer, *domain.User) {
	t.Helper()
	issuer := NewIssuer("test-secret", time.Hour)
	var seen domain.User

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFromContext(r.Context()); ok {
			seen = u
		}
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(issuer)(inner), issuer, &seen
}

func TestMiddleware_ExemptPaths(t *testing.T) {
	handler, _, _ := newHandler(t)

	for _, path := range []string{"/health", "/metrics", "/login", "/fga/check"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d, want 200", path, rec.Code)
		}
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	handler, _, _ := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q, want application/json", ct)
	}
}

func TestMiddleware_WrongScheme(t *testing.T) {
	handler, _, _ := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", rec.Code)
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	handler, _, _ := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", rec.Code)
	}
}

func TestMiddleware_ValidTokenResolvesUser(t *testing.T) {
	handler, issuer, seen := newHandler(t)

	user, _ := Authenticate("bob")
	token, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if *seen != user {
		t.Errorf("context user = %+v, want %+v", *seen, user)
	}
}
