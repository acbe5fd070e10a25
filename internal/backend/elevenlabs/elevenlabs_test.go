package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxtype/voxtype/internal/backend"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestTranscribeSendsScribeRequest(t *testing.T) {
	var gotKey, gotModel, gotFilename, gotLanguage string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/speech-to-text" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotKey = r.Header.Get("xi-api-key")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parsing multipart: %v", err)
		}
		gotModel = r.FormValue("model_id")
		gotLanguage = r.FormValue("language_code")

		if _, header, err := r.FormFile("file"); err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFilename = header.Filename
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "scribe transcript"})
	}))

	text, err := c.Transcribe(context.Background(), "xi-test", backend.Request{
		Data:     []byte("RIFFdata"),
		Filename: "recording.wav",
		Language: "en",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if text != "scribe transcript" {
		t.Errorf("text %q, want %q", text, "scribe transcript")
	}
	if gotKey != "xi-test" {
		t.Errorf("xi-api-key %q, want %q", gotKey, "xi-test")
	}
	if gotModel != "scribe_v1" {
		t.Errorf("model_id %q, want %q", gotModel, "scribe_v1")
	}
	if gotFilename != "recording.wav" {
		t.Errorf("filename %q, want %q", gotFilename, "recording.wav")
	}
	if gotLanguage != "en" {
		t.Errorf("language_code %q, want %q", gotLanguage, "en")
	}
}

func TestTranscribeClassifiesVendorErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   backend.Kind
	}{
		{"bad key", http.StatusUnauthorized, backend.KindAuth},
		{"throttled", http.StatusTooManyRequests, backend.KindRateLimited},
		{"bad audio", http.StatusUnprocessableEntity, backend.KindUnsupportedFormat},
		{"vendor down", http.StatusServiceUnavailable, backend.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "scribe says no", tt.status)
			}))

			_, err := c.Transcribe(context.Background(), "xi-test", backend.Request{
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

func TestTranscribeMalformedResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	}))

	_, err := c.Transcribe(context.Background(), "xi-test", backend.Request{
		Data:     []byte("x"),
		Filename: "a.wav",
	})
	berr, ok := backend.AsError(err)
	if !ok || berr.Kind != backend.KindMalformedResponse {
		t.Fatalf("error %v, want malformed response error", err)
	}
}

func TestTranscribeRequiresKeyAndPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	}))

	_, err := c.Transcribe(context.Background(), "", backend.Request{Data: []byte("x"), Filename: "a.wav"})
	if berr, ok := backend.AsError(err); !ok || berr.Kind != backend.KindAuth {
		t.Fatalf("error %v, want auth error", err)
	}

	_, err = c.Transcribe(context.Background(), "xi-test", backend.Request{Filename: "a.wav"})
	if berr, ok := backend.AsError(err); !ok || berr.Kind != backend.KindUnsupportedFormat {
		t.Fatalf("error %v, want unsupported format error", err)
	}
}
