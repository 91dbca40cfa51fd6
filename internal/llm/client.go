// Package llm talks to OpenAI-compatible chat completion endpoints and
// builds the stage prompts for ESP32 project generation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HendryAvila/esp32-copilot/internal/project"
)

var (
	// ErrMissingAPIKey is returned when neither the settings nor the
	// environment provide a key for the selected provider.
	ErrMissingAPIKey = errors.New("llm: API key not configured")
	// ErrTimeout is returned when a generation exceeds its deadline.
	ErrTimeout = errors.New("llm: generation timed out")
	// ErrUpstream wraps every non-2xx provider response.
	ErrUpstream = errors.New("llm: provider error")
)

// DefaultBaseURLs maps providers to their OpenAI-compatible API roots.
var DefaultBaseURLs = map[project.Provider]string{
	project.ProviderOpenAI:     "https://api.openai.com/v1",
	project.ProviderGroq:       "https://api.groq.com/openai/v1",
	project.ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

// ChatMessage is one message of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single generation call.
type Request struct {
	Settings project.Settings
	System   string
	Messages []ChatMessage
}

// Generator produces text for a request. Client is the production
// implementation; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client calls /chat/completions on the provider named in the settings.
type Client struct {
	httpClient *http.Client
	baseURLs   map[project.Provider]string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root of one provider.
func WithBaseURL(p project.Provider, url string) Option {
	return func(c *Client) { c.baseURLs[p] = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a client whose calls are bounded by timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURLs:   make(map[project.Provider]string, len(DefaultBaseURLs)),
		timeout:    timeout,
	}
	for p, u := range DefaultBaseURLs {
		c.baseURLs[p] = u
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends the request and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	settings := req.Settings.Normalize()
	base, ok := c.baseURLs[settings.Provider]
	if !ok {
		return "", fmt.Errorf("llm: unknown provider %q", settings.Provider)
	}
	key := settings.ResolveAPIKey()
	if key == "" {
		return "", fmt.Errorf("%w for provider %s", ErrMissingAPIKey, settings.Provider)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msgs := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.Messages...)

	body, err := json.Marshal(completionRequest{Model: settings.Model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("llm: encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)
	if settings.Provider == project.ProviderOpenRouter {
		httpReq.Header.Set("X-Title", "ESP32 Copilot")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", fmt.Errorf("llm: calling %s: %w", settings.Provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", fmt.Errorf("llm: reading response: %w", err)
	}

	var out completionResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("%w: %s returned %d: %s", ErrUpstream, settings.Provider, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("llm: parsing response: %w", decodeErr)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: %s returned no content", ErrUpstream, settings.Provider)
	}
	return out.Choices[0].Message.Content, nil
}
