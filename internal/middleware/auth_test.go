package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type stubValidator struct {
	id    uuid.UUID
	email string
	err   error
	seen  string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	s.seen = token
	return s.id, s.email, s.err
}

func TestBearerAuth(t *testing.T) {
	validator := &stubValidator{id: uuid.New(), email: "ops@example.com"}

	var gotActor *Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = ActorFromCtx(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := BearerAuth(validator)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", rec.Code)
	}
	if validator.seen != "tok-123" {
		t.Errorf("token passed to validator: got %q", validator.seen)
	}
	if gotActor == nil || gotActor.ID != validator.id || gotActor.Email != "ops@example.com" {
		t.Errorf("actor in context: %+v", gotActor)
	}
}

func TestBearerAuth_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
		err    error
	}{
		{"missing header", "", nil},
		{"wrong scheme", "Basic abc", nil},
		{"bare bearer", "Bearer", nil},
		{"invalid token", "Bearer bad", errors.New("signature mismatch")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validator := &stubValidator{err: tc.err}
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
			handler := BearerAuth(validator)(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status: got %d, want 401", rec.Code)
			}
			if called {
				t.Error("next handler must not run for rejected requests")
			}
		})
	}
}

func TestBearerAuth_CaseInsensitiveScheme(t *testing.T) {
	validator := &stubValidator{id: uuid.New(), email: "ops@example.com"}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := BearerAuth(validator)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer tok-456")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("lowercase scheme rejected, status %d", rec.Code)
	}
	if validator.seen != "tok-456" {
		t.Errorf("token: got %q", validator.seen)
	}
}

func TestActorFromCtx_Empty(t *testing.T) {
	if a := ActorFromCtx(context.Background()); a != nil {
		t.Errorf("expected nil actor, got %+v", a)
	}
}
