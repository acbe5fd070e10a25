package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/voxtype/voxtype/internal/backend"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL+"/v1"), WithHTTPClient(srv.Client()))
}

func TestTranscribeSendsMultipart(t *testing.T) {
	var gotAuth, gotModel, gotFilename, gotLanguage string
	var gotBody []byte

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parsing multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFilename = header.Filename
			gotBody, _ = io.ReadAll(file)
			file.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "hello from whisper"})
	}))

	text, err := c.Transcribe(context.Background(), "sk-test", backend.Request{
		Data:     []byte("RIFFdata"),
		Filename: "recording.wav",
		Language: "en",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if text != "hello from whisper" {
		t.Errorf("text %q, want %q", text, "hello from whisper")
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization %q, want %q", gotAuth, "Bearer sk-test")
	}
	if gotModel != "whisper-1" {
		t.Errorf("model %q, want %q", gotModel, "whisper-1")
	}
	if gotFilename != "recording.wav" {
		t.Errorf("filename %q, want %q", gotFilename, "recording.wav")
	}
	if string(gotBody) != "RIFFdata" {
		t.Errorf("payload %q, want %q", gotBody, "RIFFdata")
	}
	if gotLanguage != "en" {
		t.Errorf("language %q, want %q", gotLanguage, "en")
	}
}

func TestTranscribeClassifiesVendorErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   backend.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, backend.KindAuth},
		{"forbidden", http.StatusForbidden, backend.KindAuth},
		{"rate limited", http.StatusTooManyRequests, backend.KindRateLimited},
		{"server error", http.StatusInternalServerError, backend.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "nope", "type": "test_error"},
				})
			}))

			_, err := c.Transcribe(context.Background(), "sk-test", backend.Request{
				Data:     []byte("x"),
				Filename: "a.wav",
			})
			berr, ok := backend.AsError(err)
			if !ok {
				t.Fatalf("error %v, want *backend.Error", err)
			}
			if berr.Kind != tt.want {
				t.Fatalf("kind %v, want %v", berr.Kind, tt.want)
			}
			if berr.Backend != Name {
				t.Fatalf("backend %q, want %q", berr.Backend, Name)
			}
		})
	}
}

func TestTranscribeConnectionFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse connections

	c := New(WithBaseURL(srv.URL + "/v1"))
	_, err := c.Transcribe(context.Background(), "sk-test", backend.Request{
		Data:     []byte("x"),
		Filename: "a.wav",
	})
	berr, ok := backend.AsError(err)
	if !ok || berr.Kind != backend.KindNetwork {
		t.Fatalf("error %v, want network error", err)
	}
	if !backend.Retryable(err) {
		t.Fatalf("connection failure should be retryable, got %v", err)
	}
}

func TestGenerateRunsChatCompletion(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "  Polished text.  "}},
			},
		})
	}))

	out, err := c.Generate(context.Background(), "sk-test", "fix punctuation", "raw text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Polished text." {
		t.Errorf("output %q, want %q", out, "Polished text.")
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model %q, want %q", gotReq.Model, "gpt-4o-mini")
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("sent %d messages, want 2", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != "fix punctuation" {
		t.Errorf("system message %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[1].Role != "user" || gotReq.Messages[1].Content != "raw text" {
		t.Errorf("user message %+v", gotReq.Messages[1])
	}
}

func TestGenerateNoChoicesIsMalformed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))

	_, err := c.Generate(context.Background(), "sk-test", "instr", "input")
	berr, ok := backend.AsError(err)
	if !ok || berr.Kind != backend.KindMalformedResponse {
		t.Fatalf("error %v, want malformed response error", err)
	}
}

func TestMissingKeyShortCircuits(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := c.Transcribe(context.Background(), "", backend.Request{Data: []byte("x"), Filename: "a.wav"})
	if berr, ok := backend.AsError(err); !ok || berr.Kind != backend.KindAuth {
		t.Fatalf("Transcribe error %v, want auth error", err)
	}

	_, err = c.Generate(context.Background(), "", "instr", "input")
	if berr, ok := backend.AsError(err); !ok || berr.Kind != backend.KindAuth {
		t.Fatalf("Generate error %v, want auth error", err)
	}

	if calls.Load() != 0 {
		t.Fatalf("server saw %d calls, want 0", calls.Load())
	}
}

func TestTranscribeRejectsEmptyPayload(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := c.Transcribe(context.Background(), "sk-test", backend.Request{Filename: "a.wav"})
	if berr, ok := backend.AsError(err); !ok || berr.Kind != backend.KindUnsupportedFormat {
		t.Fatalf("error %v, want unsupported format error", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("server saw %d calls, want 0", calls.Load())
	}
}
