// Package engine sequences one recording at a time through capture,
// encoding, chunked transcription, optional refinement, and delivery.
// It owns the per-process lifecycle state; every front end (hotkey,
// control API, tray) drives it through Start, Stop, and Toggle.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/backend"
	"github.com/voxtype/voxtype/internal/chunk"
	"github.com/voxtype/voxtype/internal/refine"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	// DefaultMinDuration filters out accidental double-taps of the hotkey.
	DefaultMinDuration = 300 * time.Millisecond

	defaultFilename = "recording.wav"
)

// CaptureSource is a push-style audio producer. Start hands every batch of
// captured samples to onSamples from the capture context; Stop ends capture.
type CaptureSource interface {
	Start(onSamples func([]float32)) error
	Stop() error
}

// Encoder turns raw samples into an uploadable audio payload.
type Encoder interface {
	Encode(samples []float32, sampleRate, channels int) ([]byte, error)
}

// Runner transcribes a chunked payload and returns the merged transcript.
type Runner interface {
	Run(ctx context.Context, tb backend.Transcriber, apiKey string, base backend.Request, chunks []chunk.Chunk) (string, error)
}

// Polisher applies the refinement pass. Apply returns the refined transcript,
// or the original transcript alongside a non-nil error when refinement fails.
type Polisher interface {
	Apply(ctx context.Context, transcript string, p *refine.Preset) (string, error)
}

// presetChecker is implemented by polishers that can tell whether a preset
// is runnable without making a vendor call. Status consults it when a
// preset is active.
type presetChecker interface {
	Check(p *refine.Preset) error
}

// Sink receives the final transcript.
type Sink interface {
	DeliverText(text string) error
}

// PresetFunc resolves the active refinement preset. Nil means none.
type PresetFunc func() *refine.Preset

// KeyFunc resolves the API key for a named backend. Empty means none.
type KeyFunc func(backendName string) string

// Config tunes the pipeline. Zero values take the defaults above; a negative
// MinDuration disables the short-recording check.
type Config struct {
	Backend       string
	Language      string
	SampleRate    int
	Channels      int
	MaxChunkBytes int
	OverlapBytes  int
	MinDuration   time.Duration
}

// Deps are the collaborators the engine drives. Polisher and Preset may be
// nil to disable refinement; Key may be nil when no backend needs a key.
type Deps struct {
	Source   CaptureSource
	Encoder  Encoder
	Backends *backend.Registry[backend.Transcriber]
	Runner   Runner
	Polisher Polisher
	Sink     Sink
	Preset   PresetFunc
	Key      KeyFunc
}

// Outcome is the result of a completed stop: the delivered text plus an
// optional warning describing a non-fatal refinement failure.
type Outcome struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

// Engine is the recording lifecycle controller. At most one recording or
// transcription is in flight per Engine; conflicting requests are rejected
// with a StateError rather than queued.
type Engine struct {
	cfg Config
	log zerolog.Logger

	source   CaptureSource
	encoder  Encoder
	backends *backend.Registry[backend.Transcriber]
	runner   Runner
	polisher Polisher
	sink     Sink
	preset   PresetFunc
	key      KeyFunc

	mu        sync.Mutex
	state     State
	buf       *audio.Buffer
	startedAt time.Time
	observers []func(State)
}

// New wires an Engine. Source, Encoder, Backends, Runner, and Sink are
// required.
func New(cfg Config, deps Deps, log zerolog.Logger) (*Engine, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("engine: nil capture source")
	case deps.Encoder == nil:
		return nil, fmt.Errorf("engine: nil encoder")
	case deps.Backends == nil:
		return nil, fmt.Errorf("engine: nil backend registry")
	case deps.Runner == nil:
		return nil, fmt.Errorf("engine: nil runner")
	case deps.Sink == nil:
		return nil, fmt.Errorf("engine: nil sink")
	}

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.MaxChunkBytes <= 0 {
		cfg.MaxChunkBytes = chunk.DefaultMaxBytes
	}
	if cfg.OverlapBytes <= 0 {
		cfg.OverlapBytes = chunk.DefaultOverlap
	}
	if cfg.MinDuration == 0 {
		cfg.MinDuration = DefaultMinDuration
	}

	return &Engine{
		cfg:      cfg,
		log:      log.With().Str("component", "engine").Logger(),
		source:   deps.Source,
		encoder:  deps.Encoder,
		backends: deps.Backends,
		runner:   deps.Runner,
		polisher: deps.Polisher,
		sink:     deps.Sink,
		preset:   deps.Preset,
		key:      deps.Key,
		state:    StateIdle,
	}, nil
}

// OnState registers an observer called after every state transition. The
// callback runs outside the engine lock and must not block for long.
func (e *Engine) OnState(fn func(State)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status reports the current state and whether the configuration is usable:
// the backend is registered and credentialed if it needs to be, and the
// active preset's generator, if any, is too.
func (e *Engine) Status() StatusResponse {
	return StatusResponse{
		State:       e.State().String(),
		ConfigValid: e.configValid(),
	}
}

// Start begins a new recording. Only valid from idle; in any other state the
// request is rejected with a StateError and nothing changes.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state != StateIdle {
		s := e.state
		e.mu.Unlock()
		return &StateError{Op: "start", State: s}
	}
	e.state = StateRecording
	buf := audio.NewBuffer()
	e.buf = buf
	e.startedAt = time.Now()
	e.mu.Unlock()

	if err := e.source.Start(func(samples []float32) { buf.Append(samples) }); err != nil {
		e.mu.Lock()
		e.state = StateIdle
		e.buf = nil
		e.mu.Unlock()
		return fmt.Errorf("engine: start capture: %w", err)
	}

	e.emit(StateRecording)
	return nil
}

// Stop ends the current recording and runs the full pipeline synchronously:
// drain, encode, split, dispatch, optional refinement, delivery. A nil
// Outcome with a nil error means the recording was discarded (too short, or
// nothing transcribed). On a fatal error the engine is back at idle and
// nothing was delivered. On a delivery failure the Outcome still carries the
// text so the caller can fall back to showing it.
func (e *Engine) Stop(ctx context.Context) (*Outcome, error) {
	e.mu.Lock()
	if e.state != StateRecording {
		s := e.state
		e.mu.Unlock()
		return nil, &StateError{Op: "stop", State: s}
	}
	e.state = StateTranscribing
	buf := e.buf
	e.buf = nil
	elapsed := time.Since(e.startedAt)
	e.mu.Unlock()
	e.emit(StateTranscribing)

	log := e.log.With().Str("op", uuid.NewString()).Logger()

	if err := e.source.Stop(); err != nil {
		log.Warn().Err(err).Msg("stopping capture failed")
	}
	samples := buf.Drain()

	if elapsed < e.cfg.MinDuration {
		log.Debug().Dur("elapsed", elapsed).Msg("recording too short, discarding")
		e.setState(StateIdle)
		return nil, nil
	}
	if len(samples) == 0 {
		log.Debug().Msg("no samples captured")
		e.setState(StateIdle)
		return nil, nil
	}

	tb, err := e.backends.Lookup(e.cfg.Backend)
	if err != nil {
		e.setState(StateIdle)
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown backend %q", e.cfg.Backend), Cause: err}
	}
	apiKey := e.resolveKey(e.cfg.Backend)
	if tb.RequiresAPIKey() && apiKey == "" {
		e.setState(StateIdle)
		return nil, &ConfigError{Reason: fmt.Sprintf("no API key for backend %q", e.cfg.Backend)}
	}

	data, err := e.encoder.Encode(samples, e.cfg.SampleRate, e.cfg.Channels)
	if err != nil {
		e.setState(StateIdle)
		return nil, fmt.Errorf("engine: encode: %w", err)
	}

	chunks := chunk.Split(data, e.cfg.MaxChunkBytes, e.cfg.OverlapBytes)
	base := backend.Request{
		Filename: defaultFilename,
		Language: e.cfg.Language,
		Backend:  e.cfg.Backend,
	}

	log.Info().
		Int("samples", len(samples)).
		Int("bytes", len(data)).
		Int("chunks", len(chunks)).
		Str("backend", tb.Name()).
		Msg("transcribing")

	started := time.Now()
	text, err := e.runner.Run(ctx, tb, apiKey, base, chunks)
	if err != nil {
		e.setState(StateIdle)
		return nil, fmt.Errorf("engine: transcribe: %w", err)
	}
	log.Debug().Dur("took", time.Since(started)).Int("chars", len(text)).Msg("transcription finished")

	text = strings.TrimSpace(text)
	if text == "" {
		log.Info().Msg("empty transcript, nothing to deliver")
		e.setState(StateIdle)
		return nil, nil
	}

	var warning string
	if p := e.activePreset(); p != nil && e.polisher != nil {
		e.setState(StatePolishing)
		refined, rerr := e.polisher.Apply(ctx, text, p)
		if rerr != nil {
			warning = rerr.Error()
			log.Warn().Err(rerr).Str("preset", p.Name).Msg("refinement failed, delivering raw transcript")
		}
		text = refined
	}

	e.setState(StateClipboardReady)
	out := &Outcome{Text: text, Warning: warning}
	derr := e.sink.DeliverText(text)
	e.setState(StateIdle)

	if derr != nil {
		log.Error().Err(derr).Msg("delivery failed")
		return out, fmt.Errorf("engine: deliver: %w", derr)
	}
	log.Info().Int("chars", len(text)).Msg("text delivered")
	return out, nil
}

// Toggle starts a recording when idle and stops one when recording. In any
// other state the request is dropped with a StateError so rapid toggles
// during an in-flight transcription never queue up.
func (e *Engine) Toggle(ctx context.Context) (*Outcome, error) {
	switch s := e.State(); s {
	case StateIdle:
		return nil, e.Start()
	case StateRecording:
		return e.Stop(ctx)
	default:
		return nil, &StateError{Op: "toggle", State: s}
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	if e.state == s {
		e.mu.Unlock()
		return
	}
	e.state = s
	e.mu.Unlock()
	e.emit(s)
}

// emit notifies observers of a transition outside the engine lock.
func (e *Engine) emit(s State) {
	e.mu.Lock()
	obs := append([]func(State)(nil), e.observers...)
	e.mu.Unlock()

	e.log.Debug().Str("state", s.String()).Msg("state changed")
	for _, fn := range obs {
		fn(s)
	}
}

func (e *Engine) configValid() bool {
	tb, err := e.backends.Lookup(e.cfg.Backend)
	if err != nil {
		return false
	}
	if tb.RequiresAPIKey() && e.resolveKey(e.cfg.Backend) == "" {
		return false
	}
	if p := e.activePreset(); p != nil {
		if pc, ok := e.polisher.(presetChecker); ok && pc.Check(p) != nil {
			return false
		}
	}
	return true
}

func (e *Engine) activePreset() *refine.Preset {
	if e.preset == nil {
		return nil
	}
	return e.preset()
}

func (e *Engine) resolveKey(name string) string {
	if e.key == nil {
		return ""
	}
	return e.key(name)
}
