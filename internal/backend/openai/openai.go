// Package openai implements transcription and text generation against the
// OpenAI API, or any OpenAI-compatible endpoint via WithBaseURL.
package openai

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	oai "github.com/sashabaranov/go-openai"

	"github.com/voxtype/voxtype/internal/backend"
)

// Name is the registry key.
const Name = "openai"

const (
	defaultChatModel = "gpt-4o-mini"
	defaultTimeout   = 120 * time.Second
)

// Option tweaks a Client.
type Option func(*Client)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithModels overrides the transcription and chat models.
func WithModels(transcribe, chat string) Option {
	return func(c *Client) {
		if transcribe != "" {
			c.model = transcribe
		}
		if chat != "" {
			c.chatModel = chat
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// Client talks to the OpenAI API. One Client serves both the Transcriber
// and Generator capabilities; credentials arrive per call.
type Client struct {
	baseURL   string
	model     string
	chatModel string
	httpc     *http.Client
}

var (
	_ backend.Transcriber = (*Client)(nil)
	_ backend.Generator   = (*Client)(nil)
)

// New creates a Client with the whisper-1 and gpt-4o-mini defaults.
func New(opts ...Option) *Client {
	c := &Client{
		model:     oai.Whisper1,
		chatModel: defaultChatModel,
		httpc:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string         { return Name }
func (c *Client) DisplayName() string  { return "OpenAI Whisper" }
func (c *Client) RequiresAPIKey() bool { return true }

// Transcribe uploads the audio payload and returns the transcript text.
func (c *Client) Transcribe(ctx context.Context, apiKey string, req backend.Request) (string, error) {
	if apiKey == "" {
		return "", backend.NewError(Name, backend.KindAuth, "missing api key")
	}
	if len(req.Data) == 0 {
		return "", backend.NewError(Name, backend.KindUnsupportedFormat, "empty audio payload")
	}

	resp, err := c.sdk(apiKey).CreateTranscription(ctx, oai.AudioRequest{
		Model:    c.model,
		FilePath: req.Filename,
		Reader:   bytes.NewReader(req.Data),
		Language: req.Language,
	})
	if err != nil {
		return "", classify(err, "transcription request")
	}
	return resp.Text, nil
}

func (c *Client) TranscribeAsync(ctx context.Context, apiKey string, req backend.Request) <-chan backend.Result {
	return backend.Async(ctx, c, apiKey, req)
}

// Generate runs one chat completion with the instruction as system prompt.
func (c *Client) Generate(ctx context.Context, apiKey, instruction, input string) (string, error) {
	if apiKey == "" {
		return "", backend.NewError(Name, backend.KindAuth, "missing api key")
	}

	resp, err := c.sdk(apiKey).CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleSystem, Content: instruction},
			{Role: oai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return "", classify(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", backend.NewError(Name, backend.KindMalformedResponse, "chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// sdk builds a per-call SDK client; the HTTP client underneath is shared so
// connections are pooled across calls.
func (c *Client) sdk(apiKey string) *oai.Client {
	cfg := oai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cfg.HTTPClient = c.httpc
	return oai.NewClientWithConfig(cfg)
}

// classify maps SDK errors onto the shared taxonomy.
func classify(err error, doing string) error {
	var apiErr *oai.APIError
	if errors.As(err, &apiErr) {
		return backend.FromStatus(Name, apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *oai.RequestError
	if errors.As(err, &reqErr) {
		return backend.FromStatus(Name, reqErr.HTTPStatusCode, []byte(reqErr.Error()))
	}
	return backend.WrapError(Name, backend.KindNetwork, err, doing)
}
