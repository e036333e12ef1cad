package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sseResponse はchat completions形式のSSEレスポンスを組み立てる。
func sseResponse(deltas []string, done bool) string {
	var b strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
	}
	if done {
		b.WriteString("data: [DONE]\n\n")
	}
	return b.String()
}

func TestStreamGenerate(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseResponse([]string{"He", "llo", " world"}, true))
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: server.URL,
	})

	var fragments []string
	err := client.StreamGenerate(context.Background(), "greet me", func(text string) error {
		fragments = append(fragments, text)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamGenerate failed: %v", err)
	}

	want := []string{"He", "llo", " world"}
	if len(fragments) != len(want) {
		t.Fatalf("expected %d fragments, got %d: %v", len(want), len(fragments), fragments)
	}
	for i, f := range fragments {
		if f != want[i] {
			t.Errorf("fragment %d: expected %q, got %q", i, want[i], f)
		}
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("expected Authorization header 'Bearer test-key', got %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("expected path /chat/completions, got %q", gotPath)
	}
}

func TestStreamGenerateEOFWithoutDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseResponse([]string{"partial"}, false))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", Model: "m", BaseURL: server.URL})

	var fragments []string
	err := client.StreamGenerate(context.Background(), "p", func(text string) error {
		fragments = append(fragments, text)
		return nil
	})
	if err != nil {
		t.Fatalf("expected natural completion on EOF, got %v", err)
	}
	if len(fragments) != 1 || fragments[0] != "partial" {
		t.Errorf("expected [partial], got %v", fragments)
	}
}

func TestStreamGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", Model: "m", BaseURL: server.URL})

	err := client.StreamGenerate(context.Background(), "p", func(string) error {
		t.Fatal("emit should not be called on upstream error")
		return nil
	})
	if err == nil {
		t.Fatal("expected error for non-200 upstream status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestStreamGenerateEmitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseResponse([]string{"a", "b", "c"}, true))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", Model: "m", BaseURL: server.URL})

	wantErr := errors.New("consumer gone")
	calls := 0
	err := client.StreamGenerate(context.Background(), "p", func(string) error {
		calls++
		if calls == 2 {
			return wantErr
		}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected emit error to propagate, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected emit to stop after error, got %d calls", calls)
	}
}

func TestStreamGenerateCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseResponse([]string{"first"}, false))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{APIKey: "k", Model: "m", BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	err := client.StreamGenerate(ctx, "p", func(text string) error {
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewClientDefaultBaseURL(t *testing.T) {
	client := NewClient(Config{APIKey: "k", Model: "m"})
	if client.config.BaseURL != defaultBaseURL {
		t.Errorf("expected default base URL %q, got %q", defaultBaseURL, client.config.BaseURL)
	}
}
