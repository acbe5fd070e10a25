// Package groq implements the transcription contract against Groq's
// OpenAI-compatible speech-to-text endpoint.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/voxtype/voxtype/internal/backend"
)

// Name is the registry key for this backend.
const Name = "groq"

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "whisper-large-v3"
	defaultTimeout = 120 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithModel selects the transcription model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// Client talks to Groq's hosted Whisper models.
type Client struct {
	baseURL string
	model   string
	httpc   *http.Client
}

var _ backend.Transcriber = (*Client)(nil)

// New builds a Groq client with production defaults.
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
func (c *Client) DisplayName() string  { return "Groq Whisper" }
func (c *Client) RequiresAPIKey() bool { return true }

// Transcribe posts the payload as multipart form data and decodes the
// JSON transcription response.
func (c *Client) Transcribe(ctx context.Context, apiKey string, req backend.Request) (string, error) {
	if apiKey == "" {
		return "", backend.NewError(Name, backend.KindAuth, "api key is empty")
	}
	if len(req.Data) == 0 {
		return "", backend.NewError(Name, backend.KindUnsupportedFormat, "empty audio payload")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", req.Filename)
	if err != nil {
		return "", fmt.Errorf("groq: creating form file: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return "", fmt.Errorf("groq: writing audio payload: %w", err)
	}
	if err := form.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("groq: writing model field: %w", err)
	}
	if req.Language != "" {
		if err := form.WriteField("language", req.Language); err != nil {
			return "", fmt.Errorf("groq: writing language field: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("groq: closing form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("groq: building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", backend.WrapError(Name, backend.KindNetwork, err, "transcription request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", backend.FromStatus(Name, resp.StatusCode, msg)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", backend.WrapError(Name, backend.KindMalformedResponse, err, "decoding transcription response")
	}
	return out.Text, nil
}

// TranscribeAsync runs Transcribe on a goroutine and reports the outcome
// on the returned channel.
func (c *Client) TranscribeAsync(ctx context.Context, apiKey string, req backend.Request) <-chan backend.Result {
	return backend.Async(ctx, c, apiKey, req)
}
