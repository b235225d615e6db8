package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(sawIdentity *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := IdentityFromContext(r.Context()); id != nil {
			*sawIdentity = id.Subject
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareBypass(t *testing.T) {
	denyAll := &Chain{DefaultDecision: Deny}
	var subject string
	handler := Middleware(denyAll, nil, []string{"/healthz"})(okHandler(&subject))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("bypassed endpoint status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareDenies(t *testing.T) {
	denyAll := &Chain{DefaultDecision: Deny}
	var subject string
	handler := Middleware(denyAll, nil, nil)(okHandler(&subject))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/search", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if subject != "" {
		t.Error("handler ran despite denial")
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&fakeAuthenticator{result: Result{Decision: Grant, Identity: &Identity{Subject: "alice"}}},
		},
		DefaultDecision: Deny,
	}

	var subject string
	handler := Middleware(chain, nil, nil)(okHandler(&subject))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/search", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if subject != "alice" {
		t.Errorf("handler saw subject %q, want \"alice\"", subject)
	}
}

func TestMiddlewareEmptySubjectIsServerError(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&fakeAuthenticator{result: Result{Decision: Grant, Identity: &Identity{}}},
		},
		DefaultDecision: Deny,
	}

	var subject string
	handler := Middleware(chain, nil, nil)(okHandler(&subject))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/search", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// allowN rejects after n requests.
type allowN struct {
	n    int
	seen int
}

func (l *allowN) Allow(_ context.Context, _ *Identity) error {
	l.seen++
	if l.seen > l.n {
		return ErrTooManyRequests
	}
	return nil
}

func TestMiddlewareRateLimits(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			&fakeAuthenticator{result: Result{Decision: Grant, Identity: &Identity{Subject: "alice"}}},
		},
		DefaultDecision: Deny,
	}

	var subject string
	handler := Middleware(chain, &allowN{n: 1}, nil)(okHandler(&subject))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/search", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/search", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
}
