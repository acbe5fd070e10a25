// Package chunk splits encoded audio payloads that exceed a vendor's
// single-request size limit into indexed, overlapping byte ranges.
package chunk

const (
	// DefaultMaxBytes is the single-request size threshold. It sits below
	// the 25 MB hard cap the hosted STT services enforce so the overlap can
	// ride on top of a full span without tripping the cap.
	DefaultMaxBytes = 20 << 20

	// DefaultOverlap is the seam width repeated between neighboring chunks,
	// about two seconds of 16 kHz mono 16-bit PCM. Words cut at a boundary
	// appear in both chunks; the merge does not de-duplicate them.
	DefaultOverlap = 64 << 10
)

// Chunk is one contiguous slice of the payload with its dispatch index.
// Data subslices the original payload; it is never mutated downstream.
type Chunk struct {
	Index int
	Data  []byte
}

// Split slices payload for dispatch. An empty payload yields nil. A payload
// within maxBytes yields exactly one chunk spanning the whole payload.
// Anything larger yields ceil(len/maxBytes) chunks with balanced base spans;
// every chunk after the first is extended backward by overlap bytes so
// neighbors share a seam. Base spans never exceed maxBytes; an extended
// chunk can exceed it by at most overlap.
//
// maxBytes <= 0 disables splitting and yields a single chunk.
func Split(payload []byte, maxBytes, overlap int) []Chunk {
	if len(payload) == 0 {
		return nil
	}
	if maxBytes <= 0 || len(payload) <= maxBytes {
		return []Chunk{{Index: 0, Data: payload}}
	}
	if overlap < 0 {
		overlap = 0
	}

	n := (len(payload) + maxBytes - 1) / maxBytes
	span := (len(payload) + n - 1) / n

	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := i * span
		end := start + span
		if end > len(payload) {
			end = len(payload)
		}
		if i > 0 {
			start -= overlap
			if start < 0 {
				start = 0
			}
		}
		chunks = append(chunks, Chunk{Index: i, Data: payload[start:end]})
	}
	return chunks
}

// Count reports how many chunks Split would produce for a payload of the
// given size, without touching any bytes.
func Count(size, maxBytes int) int {
	if size <= 0 {
		return 0
	}
	if maxBytes <= 0 || size <= maxBytes {
		return 1
	}
	return (size + maxBytes - 1) / maxBytes
}
