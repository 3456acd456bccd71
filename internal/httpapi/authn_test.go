package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradebook.org/internal/auth"
	"tradebook.org/internal/ledger"
	"tradebook.org/internal/market"
	"tradebook.org/internal/stream"
)

func newAuthedAPI(t *testing.T) *API {
	t.Helper()
	t.Setenv("TRADEBOOK_AUTH_SECRET", "authn-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	quotes := market.NewStatic(nil)
	return New(ReadyProbe{}, "test", ledger.NewInMemory(quotes), quotes, stream.New())
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestWithAuthRejectsMissingToken(t *testing.T) {
	api := newAuthedAPI(t)
	handler := api.withAuth(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/abc", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestWithAuthRejectsGarbageToken(t *testing.T) {
	api := newAuthedAPI(t)
	handler := api.withAuth(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/abc", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWithAuthAcceptsValidToken(t *testing.T) {
	api := newAuthedAPI(t)

	var gotOwner string
	handler := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, _ = auth.OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := auth.GenerateToken("alice", time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/abc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotOwner != "alice" {
		t.Fatalf("expected owner alice in context, got %q", gotOwner)
	}
}

func TestWithAuthAllowsPublicPaths(t *testing.T) {
	api := newAuthedAPI(t)
	handler := api.withAuth(http.HandlerFunc(okHandler))

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/v1/auth/token", "/v1/quotes/AAPL"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected %s to be public, got %d", path, rr.Code)
		}
	}
}

func TestWithAuthDisabledPassesThrough(t *testing.T) {
	t.Setenv("TRADEBOOK_AUTH_SECRET", "")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	quotes := market.NewStatic(nil)
	api := New(ReadyProbe{}, "test", ledger.NewInMemory(quotes), quotes, stream.New())
	handler := api.withAuth(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/abc", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected open access without a secret, got %d", rr.Code)
	}
}
