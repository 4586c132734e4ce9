package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthzIsPublic(t *testing.T) {
	router := NewRouter(nil, nil, RouterConfig{JWTSecret: testSecret})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	router := NewRouter(nil, nil, RouterConfig{JWTSecret: testSecret})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	expectError(t, rec, http.StatusNotFound, "not_found")
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(nil, nil, RouterConfig{
		JWTSecret:    testSecret,
		AllowOrigins: []string{"http://localhost:5173"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/quiz/submit", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := IssueToken(testSecret, " user-1 ", time.Hour, now)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	userID, err := parseToken(testSecret, token)
	if err != nil || userID != "user-1" {
		t.Fatalf("parseToken = (%q, %v), want (user-1, nil)", userID, err)
	}

	if _, err := parseToken([]byte("other-secret"), token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}

	expired, err := IssueToken(testSecret, "user-1", time.Minute, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := parseToken(testSecret, expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	if _, err := IssueToken(nil, "user-1", time.Hour, now); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
	if _, err := IssueToken(testSecret, "  ", time.Hour, now); err == nil {
		t.Fatalf("expected empty user to fail")
	}
}
