package audio

import "sync"

// Buffer accumulates samples for one in-progress recording. It has exactly
// one writer (the capture callback) and one reader (the controller at stop).
// Draining closes the buffer for good; a fresh recording gets a fresh Buffer.
type Buffer struct {
	mu      sync.Mutex
	samples []float32
	closed  bool
}

// NewBuffer creates an empty, open buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds samples in arrival order. Appends after Drain are dropped
// silently: the producer is stopped before the drain, so a late batch is a
// benign race, not data loss.
func (b *Buffer) Append(samples []float32) {
	b.mu.Lock()
	if !b.closed {
		b.samples = append(b.samples, samples...)
	}
	b.mu.Unlock()
}

// Drain stops further accepting and returns everything accumulated, in
// order. Ownership of the returned slice passes to the caller.
func (b *Buffer) Drain() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	out := b.samples
	b.samples = nil
	return out
}

// Len reports how many samples are currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}
