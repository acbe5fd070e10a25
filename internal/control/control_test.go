package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/voxtype/voxtype/internal/backend"
	"github.com/voxtype/voxtype/internal/chunk"
	"github.com/voxtype/voxtype/internal/engine"
)

type fakeSource struct {
	mu sync.Mutex
	cb func([]float32)
}

func (s *fakeSource) Start(fn func([]float32)) error {
	s.mu.Lock()
	s.cb = fn
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	s.cb = nil
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) push(samples []float32) {
	s.mu.Lock()
	fn := s.cb
	s.mu.Unlock()
	if fn != nil {
		fn(samples)
	}
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(samples []float32, _, _ int) ([]byte, error) {
	return make([]byte, len(samples)), nil
}

type fakeRunner struct{ text string }

func (r fakeRunner) Run(context.Context, backend.Transcriber, string, backend.Request, []chunk.Chunk) (string, error) {
	return r.text, nil
}

type fakeSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *fakeSink) DeliverText(text string) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return nil
}

type stubTranscriber struct{}

func (stubTranscriber) Name() string         { return "stub" }
func (stubTranscriber) DisplayName() string  { return "Stub" }
func (stubTranscriber) RequiresAPIKey() bool { return false }

func (stubTranscriber) Transcribe(context.Context, string, backend.Request) (string, error) {
	return "", nil
}

func (t stubTranscriber) TranscribeAsync(ctx context.Context, apiKey string, req backend.Request) <-chan backend.Result {
	return backend.Async(ctx, t, apiKey, req)
}

type testServer struct {
	srv    *Server
	source *fakeSource
	sink   *fakeSink
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	reg := backend.NewRegistry[backend.Transcriber]()
	if err := reg.Register(stubTranscriber{}); err != nil {
		t.Fatalf("register stub: %v", err)
	}

	source := &fakeSource{}
	sink := &fakeSink{}

	eng, err := engine.New(engine.Config{
		Backend:     "stub",
		MinDuration: -1,
	}, engine.Deps{
		Source:   source,
		Encoder:  fakeEncoder{},
		Backends: reg,
		Runner:   fakeRunner{text: "hello world"},
		Sink:     sink,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	srv := New(eng, Backends{
		Transcribers: []string{"stub"},
		Generators:   []string{"ollama"},
	}, zerolog.Nop())

	return &testServer{srv: srv, source: source, sink: sink}
}

func (ts *testServer) do(t *testing.T, method, path string) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	resp, err := ts.srv.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	resp.Body.Close()

	var decoded map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			t.Fatalf("decoding %q: %v", body, err)
		}
	}
	return resp, decoded
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, "GET", "/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d, want 200", resp.StatusCode)
	}
	if body["state"] != "idle" {
		t.Errorf("state %v, want idle", body["state"])
	}
	if body["config_valid"] != true {
		t.Errorf("config_valid %v, want true", body["config_valid"])
	}
}

func TestBackendsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, "GET", "/backends")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d, want 200", resp.StatusCode)
	}

	transcribers, ok := body["transcribers"].([]any)
	if !ok || len(transcribers) != 1 || transcribers[0] != "stub" {
		t.Errorf("transcribers %v, want [stub]", body["transcribers"])
	}
	generators, ok := body["generators"].([]any)
	if !ok || len(generators) != 1 || generators[0] != "ollama" {
		t.Errorf("generators %v, want [ollama]", body["generators"])
	}
}

func TestStartStopFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, "POST", "/start")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status code %d, want 200", resp.StatusCode)
	}
	if body["state"] != "recording" {
		t.Errorf("state after start %v, want recording", body["state"])
	}

	ts.source.push(make([]float32, 100))

	resp, body = ts.do(t, "POST", "/stop")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status code %d, want 200", resp.StatusCode)
	}
	if body["text"] != "hello world" {
		t.Errorf("text %v, want %q", body["text"], "hello world")
	}

	ts.sink.mu.Lock()
	delivered := len(ts.sink.texts)
	ts.sink.mu.Unlock()
	if delivered != 1 {
		t.Errorf("delivered %d texts, want 1", delivered)
	}
}

func TestStopWithoutRecordingConflicts(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, "POST", "/stop")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status code %d, want 409", resp.StatusCode)
	}
	if body["state"] != "idle" {
		t.Errorf("state %v, want idle", body["state"])
	}
}

func TestStartWhileRecordingConflicts(t *testing.T) {
	ts := newTestServer(t)

	if resp, _ := ts.do(t, "POST", "/start"); resp.StatusCode != http.StatusOK {
		t.Fatalf("first start status code %d, want 200", resp.StatusCode)
	}
	resp, _ := ts.do(t, "POST", "/start")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second start status code %d, want 409", resp.StatusCode)
	}
}

func TestToggleStartsAndStops(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, "POST", "/toggle")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first toggle status code %d, want 200", resp.StatusCode)
	}
	if body["state"] != "recording" {
		t.Errorf("state after first toggle %v, want recording", body["state"])
	}

	ts.source.push(make([]float32, 100))

	resp, body = ts.do(t, "POST", "/toggle")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second toggle status code %d, want 200", resp.StatusCode)
	}
	if body["text"] != "hello world" {
		t.Errorf("text %v, want %q", body["text"], "hello world")
	}
}

func TestDiscardedRecordingReturnsStatus(t *testing.T) {
	ts := newTestServer(t)

	// Start and stop without pushing any samples: nothing to transcribe.
	if resp, _ := ts.do(t, "POST", "/start"); resp.StatusCode != http.StatusOK {
		t.Fatalf("start status code %d, want 200", resp.StatusCode)
	}
	resp, body := ts.do(t, "POST", "/stop")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status code %d, want 200", resp.StatusCode)
	}
	if body["state"] != "idle" {
		t.Errorf("state %v, want idle", body["state"])
	}
	if _, hasText := body["text"]; hasText {
		t.Errorf("body %v carries text for a discarded recording", body)
	}
}
