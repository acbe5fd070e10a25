// Package backend defines the capability contracts that vendor services
// implement and a name-indexed registry for selecting one at runtime.
//
// Two capabilities exist:
//   - Transcriber: speech-to-text over an encoded audio payload
//   - Generator: one-shot text generation, used by the refinement pass
//
// The orchestration code holds only these interfaces; adding a vendor means
// registering a new implementation, never touching the dispatcher.
package backend

import "context"

// Request carries one encoded audio payload to a transcription backend.
// It is an immutable value: per-chunk requests are derived from the base
// request via WithData rather than mutated in place.
type Request struct {
	// Data is the encoded audio (WAV unless the filename says otherwise).
	Data []byte
	// Filename is the suggested name, used by vendors that sniff the
	// container format from the extension.
	Filename string
	// Language is an optional ISO-639-1 hint ("" lets the vendor detect).
	Language string
	// Backend is the registry name this request targets.
	Backend string
}

// WithData returns a copy of r carrying different payload bytes and filename.
func (r Request) WithData(data []byte, filename string) Request {
	r.Data = data
	r.Filename = filename
	return r
}

// Result is one asynchronous transcription outcome.
type Result struct {
	Text string
	Err  error
}

// Info identifies a backend in the registry and in user-facing listings.
type Info interface {
	// Name is the stable registry key (e.g. "openai").
	Name() string
	// DisplayName is the label shown to users (e.g. "OpenAI Whisper").
	DisplayName() string
	// RequiresAPIKey reports whether the backend needs a credential.
	RequiresAPIKey() bool
}

// Transcriber converts encoded audio to text. Both entry points share
// identical semantics; the async form exists for callers that dispatch
// many requests concurrently and collect results on channels.
type Transcriber interface {
	Info
	// Transcribe blocks until the vendor responds or ctx is done.
	Transcribe(ctx context.Context, apiKey string, req Request) (string, error)
	// TranscribeAsync starts the same call and reports its outcome on the
	// returned channel. The channel receives exactly one Result.
	TranscribeAsync(ctx context.Context, apiKey string, req Request) <-chan Result
}

// Generator produces text from an instruction and an input transcript.
type Generator interface {
	Info
	Generate(ctx context.Context, apiKey, instruction, input string) (string, error)
}

// Async adapts a blocking transcribe call into the async form. Vendor
// implementations delegate TranscribeAsync here so both entry points run
// one code path. The returned channel is buffered; the caller may abandon
// it without leaking the goroutine.
func Async(ctx context.Context, t Transcriber, apiKey string, req Request) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		text, err := t.Transcribe(ctx, apiKey, req)
		ch <- Result{Text: text, Err: err}
	}()
	return ch
}
