package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTokenInfoServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestVerifyIDToken(t *testing.T) {
	futureExp := time.Now().Add(time.Hour).Unix()
	server := newTokenInfoServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id_token"); got != "valid-token" {
			t.Errorf("expected id_token query param, got %q", got)
		}
		fmt.Fprintf(w, `{"sub":"u1","email":"u1@example.com","aud":"client-123","exp":"%d"}`, futureExp)
	})

	verifier := NewGoogleVerifier(GoogleVerifierConfig{
		ClientID:     "client-123",
		TokenInfoURL: server.URL,
	})

	info, err := verifier.VerifyIDToken(context.Background(), "valid-token")
	if err != nil {
		t.Fatalf("VerifyIDToken failed: %v", err)
	}
	if info.SubjectID != "u1" {
		t.Errorf("expected subject u1, got %q", info.SubjectID)
	}
	if info.Email != "u1@example.com" {
		t.Errorf("expected email u1@example.com, got %q", info.Email)
	}
}

func TestVerifyIDTokenEmptyToken(t *testing.T) {
	verifier := NewGoogleVerifier(GoogleVerifierConfig{ClientID: "c"})

	if _, err := verifier.VerifyIDToken(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id token")
	}
}

func TestVerifyIDTokenRejections(t *testing.T) {
	futureExp := time.Now().Add(time.Hour).Unix()
	pastExp := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name     string
		status   int
		body     string
		wantPart string
	}{
		{
			name:     "invalid token",
			status:   http.StatusBadRequest,
			body:     `{"error":"invalid_token"}`,
			wantPart: "status 400",
		},
		{
			name:     "audience mismatch",
			status:   http.StatusOK,
			body:     fmt.Sprintf(`{"sub":"u1","aud":"other-client","exp":"%d"}`, futureExp),
			wantPart: "audience mismatch",
		},
		{
			name:     "missing sub",
			status:   http.StatusOK,
			body:     fmt.Sprintf(`{"sub":"","aud":"client-123","exp":"%d"}`, futureExp),
			wantPart: "empty sub",
		},
		{
			name:     "expired token",
			status:   http.StatusOK,
			body:     fmt.Sprintf(`{"sub":"u1","aud":"client-123","exp":"%d"}`, pastExp),
			wantPart: "expired",
		},
		{
			name:     "malformed response",
			status:   http.StatusOK,
			body:     `{invalid`,
			wantPart: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTokenInfoServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			verifier := NewGoogleVerifier(GoogleVerifierConfig{
				ClientID:     "client-123",
				TokenInfoURL: server.URL,
			})

			_, err := verifier.VerifyIDToken(context.Background(), "some-token")
			if err == nil {
				t.Fatal("expected verification to fail")
			}
			if !strings.Contains(err.Error(), tt.wantPart) {
				t.Errorf("expected error containing %q, got %v", tt.wantPart, err)
			}
		})
	}
}

func TestNewGoogleVerifierDefaultURL(t *testing.T) {
	verifier := NewGoogleVerifier(GoogleVerifierConfig{ClientID: "c"})
	if verifier.config.TokenInfoURL != defaultGoogleTokenInfoURL {
		t.Errorf("expected default tokeninfo URL, got %q", verifier.config.TokenInfoURL)
	}
}
