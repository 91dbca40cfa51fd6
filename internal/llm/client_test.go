package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/esp32-copilot/internal/project"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testSettings() project.Settings {
	return project.Settings{Provider: project.ProviderGroq, Model: "llama-test", APIKey: "k-123", Theme: project.ThemeSystem}
}

func TestClient_Generate(t *testing.T) {
	var got completionRequest
	var auth, path string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"## Requirements"}}]}`))
	})

	c := NewClient(5*time.Second, WithBaseURL(project.ProviderGroq, srv.URL+"/"))
	out, err := c.Generate(context.Background(), Request{
		Settings: testSettings(),
		System:   "sys",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "## Requirements" {
		t.Errorf("content = %q", out)
	}
	if path != "/chat/completions" {
		t.Errorf("path = %s", path)
	}
	if auth != "Bearer k-123" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Model != "llama-test" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request = %+v", got)
	}
}

func TestClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewClient(time.Second)
	_, err := c.Generate(context.Background(), Request{Settings: project.Settings{Provider: project.ProviderOpenAI, Model: "gpt-4o"}})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestClient_UpstreamError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})
	c := NewClient(time.Second, WithBaseURL(project.ProviderGroq, srv.URL))
	_, err := c.Generate(context.Background(), Request{Settings: testSettings()})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
	if !strings.Contains(err.Error(), "rate limited") || !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry status and message: %v", err)
	}
}

func TestClient_EmptyChoices(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	c := NewClient(time.Second, WithBaseURL(project.ProviderGroq, srv.URL))
	if _, err := c.Generate(context.Background(), Request{Settings: testSettings()}); !errors.Is(err, ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := NewClient(50*time.Millisecond, WithBaseURL(project.ProviderGroq, srv.URL))
	_, err := c.Generate(context.Background(), Request{Settings: testSettings()})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestClient_UnknownProvider(t *testing.T) {
	c := NewClient(time.Second)
	s := testSettings()
	s.Provider = "mystery"
	if _, err := c.Generate(context.Background(), Request{Settings: s}); err == nil {
		t.Error("unknown provider should fail")
	}
}
