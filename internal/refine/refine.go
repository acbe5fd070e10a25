// Package refine applies an optional cleanup pass to a finished transcript
// through a text-generation backend selected by the active preset.
package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voxtype/voxtype/internal/backend"
)

// Preset bundles a refinement instruction with the generator that runs it.
type Preset struct {
	Name        string
	Instruction string
	Backend     string
}

// Error wraps a refinement failure. Refinement is never fatal: callers
// record the error as a warning and keep the unrefined transcript.
type Error struct {
	Preset string
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("refine: preset %q: %v", e.Preset, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// KeyFunc resolves the API key for a named backend. Empty means none.
type KeyFunc func(backendName string) string

// Refiner runs transcripts through preset generators.
type Refiner struct {
	generators *backend.Registry[backend.Generator]
	key        KeyFunc
	log        zerolog.Logger
}

// New creates a Refiner over the generator registry.
func New(generators *backend.Registry[backend.Generator], key KeyFunc, log zerolog.Logger) *Refiner {
	return &Refiner{generators: generators, key: key, log: log}
}

// Check reports whether a preset could run right now: its generator is
// registered and credentialed. No vendor call is made. A nil preset is
// always fine.
func (r *Refiner) Check(p *Preset) error {
	if p == nil {
		return nil
	}
	gen, err := r.generators.Lookup(p.Backend)
	if err != nil {
		return &Error{Preset: p.Name, Cause: err}
	}
	if gen.RequiresAPIKey() && (r.key == nil || r.key(p.Backend) == "") {
		return &Error{Preset: p.Name, Cause: fmt.Errorf("no api key for backend %q", p.Backend)}
	}
	return nil
}

// Apply returns the refined transcript. A nil preset passes the transcript
// through untouched with zero calls. On any failure (unknown backend,
// missing credential, vendor error, empty response) the original transcript
// comes back alongside a non-nil *Error so the user still gets their text.
func (r *Refiner) Apply(ctx context.Context, transcript string, p *Preset) (string, error) {
	if p == nil {
		return transcript, nil
	}

	gen, err := r.generators.Lookup(p.Backend)
	if err != nil {
		return transcript, &Error{Preset: p.Name, Cause: err}
	}

	var apiKey string
	if r.key != nil {
		apiKey = r.key(p.Backend)
	}
	if gen.RequiresAPIKey() && apiKey == "" {
		return transcript, &Error{Preset: p.Name, Cause: fmt.Errorf("no api key for backend %q", p.Backend)}
	}

	refined, err := gen.Generate(ctx, apiKey, p.Instruction, transcript)
	if err != nil {
		return transcript, &Error{Preset: p.Name, Cause: err}
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return transcript, &Error{Preset: p.Name, Cause: fmt.Errorf("generator %q returned empty text", p.Backend)}
	}

	r.log.Debug().
		Str("preset", p.Name).
		Str("backend", p.Backend).
		Int("in_chars", len(transcript)).
		Int("out_chars", len(refined)).
		Msg("transcript refined")

	return refined, nil
}
