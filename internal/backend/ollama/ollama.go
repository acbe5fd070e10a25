// Package ollama implements the generation contract against a local
// Ollama server. It needs no credential, which makes it the cheapest
// refinement backend to try.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxtype/voxtype/internal/backend"
)

// Name is the registry key for this backend.
const Name = "ollama"

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.2"
	defaultTimeout = 120 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different Ollama server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithModel selects the chat model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// Client talks to an Ollama server's chat API.
type Client struct {
	baseURL string
	model   string
	httpc   *http.Client
}

var _ backend.Generator = (*Client)(nil)

// New builds an Ollama client with local-server defaults.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string         { return Name }
func (c *Client) DisplayName() string  { return "Ollama" }
func (c *Client) RequiresAPIKey() bool { return false }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Generate sends a non-streaming chat completion and returns the model's
// reply. The apiKey is ignored.
func (c *Client) Generate(ctx context.Context, apiKey, instruction, input string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: input},
		},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("ollama: encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", backend.WrapError(Name, backend.KindNetwork, err, "chat request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", backend.FromStatus(Name, resp.StatusCode, msg)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", backend.WrapError(Name, backend.KindMalformedResponse, err, "decoding chat response")
	}
	return strings.TrimSpace(out.Message.Content), nil
}
