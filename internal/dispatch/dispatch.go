// Package dispatch fans chunked transcription requests out to a backend
// under a bounded-concurrency gate and merges the results by chunk index.
package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxtype/voxtype/internal/backend"
	"github.com/voxtype/voxtype/internal/chunk"
)

const (
	// DefaultMaxConcurrent balances vendor rate limits against latency for
	// long recordings.
	DefaultMaxConcurrent = 3
	// DefaultMaxAttempts is the per-chunk retry budget, first try included.
	// Only rate-limit and network failures are retried.
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 400 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second
)

// Config tunes a Dispatcher. Zero values fall back to the defaults above.
type Config struct {
	MaxConcurrent  int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Dispatcher runs per-chunk transcription calls concurrently and reassembles
// the transcript in chunk order.
type Dispatcher struct {
	cfg     Config
	limiter *Limiter
	log     zerolog.Logger
}

// New creates a Dispatcher with its own admission gate.
func New(cfg Config, log zerolog.Logger) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	return &Dispatcher{
		cfg:     cfg,
		limiter: NewLimiter(cfg.MaxConcurrent),
		log:     log,
	}
}

// indexed pairs one chunk's outcome with its position in the transcript.
type indexed struct {
	index int
	text  string
	err   error
}

// Run transcribes every chunk through tb and returns the index-ordered
// transcript. Zero chunks is a no-op returning "". All units launch
// immediately and contend for the limiter; the first fatal failure aborts
// the merge (fail-fast) while in-flight siblings run to completion, land in
// the buffered channel, and are discarded.
func (d *Dispatcher) Run(ctx context.Context, tb backend.Transcriber, apiKey string, base backend.Request, chunks []chunk.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("dispatch: %w", err)
	}

	d.log.Debug().
		Int("chunks", len(chunks)).
		Int("max_concurrent", d.limiter.Cap()).
		Str("backend", tb.Name()).
		Msg("dispatching transcription")

	results := make(chan indexed, len(chunks))
	for _, c := range chunks {
		go func(c chunk.Chunk) {
			if err := d.limiter.Acquire(ctx); err != nil {
				results <- indexed{index: c.Index, err: fmt.Errorf("dispatch: chunk %d: %w", c.Index, err)}
				return
			}
			defer d.limiter.Release()

			text, err := d.transcribeChunk(ctx, tb, apiKey, base, c, len(chunks))
			results <- indexed{index: c.Index, text: text, err: err}
		}(c)
	}

	texts := make([]string, len(chunks))
	for range chunks {
		res := <-results
		if res.err != nil {
			d.log.Error().Err(res.err).Int("chunk", res.index).Msg("chunk failed, aborting merge")
			return "", res.err
		}
		texts[res.index] = res.text
	}

	return merge(texts), nil
}

// transcribeChunk issues one chunk's call with the bounded retry budget.
// The permit is held across retries; backoff sleeps count against it.
func (d *Dispatcher) transcribeChunk(ctx context.Context, tb backend.Transcriber, apiKey string, base backend.Request, c chunk.Chunk, total int) (string, error) {
	req := base.WithData(c.Data, chunkFilename(base.Filename, c.Index, total))

	backoff := d.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		res := <-tb.TranscribeAsync(ctx, apiKey, req)
		if res.Err == nil {
			return res.Text, nil
		}
		lastErr = res.Err

		if !backend.Retryable(res.Err) || attempt == d.cfg.MaxAttempts {
			break
		}

		delay := jittered(backoff)
		d.log.Warn().
			Err(res.Err).
			Int("chunk", c.Index).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("retrying chunk")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("dispatch: chunk %d: %w", c.Index, ctx.Err())
		case <-timer.C:
		}

		backoff *= 2
		if backoff > d.cfg.MaxBackoff {
			backoff = d.cfg.MaxBackoff
		}
	}

	return "", fmt.Errorf("dispatch: chunk %d: %w", c.Index, lastErr)
}

// merge joins per-chunk texts in index order. Chunks that transcribed to
// nothing (silence) are skipped so the transcript has no doubled spaces.
func merge(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// chunkFilename derives a per-chunk name so vendor dashboards and logs can
// tell the pieces apart. Single-chunk dispatches keep the base name.
func chunkFilename(name string, index, total int) string {
	if total <= 1 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%02d%s", strings.TrimSuffix(name, ext), index, ext)
}

// jittered spreads retries out so parallel chunks throttled together do not
// retry in lockstep.
func jittered(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}
