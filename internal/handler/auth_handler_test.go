package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/taskchat/internal/auth"
	"github.com/hitoshi/taskchat/internal/metrics"
	"github.com/hitoshi/taskchat/internal/middleware"
	"github.com/hitoshi/taskchat/internal/model"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	createSessionFunc func(ctx context.Context, idToken, currentToken string) (*auth.CreateSessionResult, error)
}

func (m *mockAuthService) CreateSession(ctx context.Context, idToken, currentToken string) (*auth.CreateSessionResult, error) {
	return m.createSessionFunc(ctx, idToken, currentToken)
}

func newTestCollector() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		CookieSecure:  false,
		SessionMaxAge: 432000,
	}
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCreateSessionHandler(t *testing.T) {
	service := &mockAuthService{
		createSessionFunc: func(ctx context.Context, idToken, currentToken string) (*auth.CreateSessionResult, error) {
			if idToken != "google-id-token" {
				t.Errorf("expected id token from body, got %q", idToken)
			}
			if currentToken != "" {
				t.Errorf("expected empty current token, got %q", currentToken)
			}
			return &auth.CreateSessionResult{Token: "sealed-token"}, nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), newTestCollector())

	req := httptest.NewRequest(http.MethodPost, "/auth/session",
		strings.NewReader(`{"idToken":"google-id-token"}`))
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cookie := findCookie(t, rec, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "sealed-token" {
		t.Errorf("expected sealed token in cookie, got %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if cookie.Path != "/" {
		t.Errorf("expected cookie path /, got %q", cookie.Path)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite=Lax, got %v", cookie.SameSite)
	}
	if cookie.MaxAge != 432000 {
		t.Errorf("expected MaxAge 432000, got %d", cookie.MaxAge)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["success"] != true || body["reused"] != false {
		t.Errorf("unexpected response body: %v", body)
	}
}

func TestCreateSessionHandlerReused(t *testing.T) {
	service := &mockAuthService{
		createSessionFunc: func(ctx context.Context, idToken, currentToken string) (*auth.CreateSessionResult, error) {
			if currentToken != "existing-token" {
				t.Errorf("expected existing cookie value, got %q", currentToken)
			}
			return &auth.CreateSessionResult{Reused: true}, nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), newTestCollector())

	req := httptest.NewRequest(http.MethodPost, "/auth/session",
		strings.NewReader(`{"idToken":"google-id-token"}`))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "existing-token"})
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cookie := findCookie(t, rec, middleware.SessionCookieName); cookie != nil {
		t.Errorf("expected no cookie reissue for reused session, got %v", cookie)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["reused"] != true {
		t.Errorf("expected reused=true, got %v", body)
	}
}

func TestCreateSessionHandlerInvalidJSON(t *testing.T) {
	service := &mockAuthService{
		createSessionFunc: func(ctx context.Context, idToken, currentToken string) (*auth.CreateSessionResult, error) {
			t.Fatal("service should not be called for malformed body")
			return nil, nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), newTestCollector())

	req := httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(`{invalid`))
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	if body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("expected INVALID_REQUEST, got %s", body.Code)
	}
}

func TestCreateSessionHandlerUnauthorized(t *testing.T) {
	service := &mockAuthService{
		createSessionFunc: func(ctx context.Context, idToken, currentToken string) (*auth.CreateSessionResult, error) {
			return nil, model.NewUnauthorizedError()
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), newTestCollector())

	req := httptest.NewRequest(http.MethodPost, "/auth/session",
		strings.NewReader(`{"idToken":"forged"}`))
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("expected UNAUTHORIZED, got %s", body.Code)
	}
	if cookie := findCookie(t, rec, middleware.SessionCookieName); cookie != nil {
		t.Error("no cookie should be set on rejected login")
	}
}

func TestDeleteSessionHandler(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig(), newTestCollector())

	// Cookieなしでも常に成功
	req := httptest.NewRequest(http.MethodDelete, "/auth/session", nil)
	rec := httptest.NewRecorder()
	h.DeleteSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	cookie := findCookie(t, rec, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected clearing cookie to be set")
	}
	if cookie.Value != "" || cookie.MaxAge != -1 {
		t.Errorf("expected expired empty cookie, got value=%q maxAge=%d", cookie.Value, cookie.MaxAge)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["success"] != true {
		t.Errorf("expected success=true, got %v", body)
	}
}
