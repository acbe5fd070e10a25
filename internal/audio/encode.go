package audio

import (
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeError marks a failure turning samples into an uploadable payload.
// Encoding happens before any network dispatch, so it is always fatal to
// the operation.
type EncodeError struct {
	Reason string
	Cause  error
}

func (e *EncodeError) Error() string {
	msg := "audio: encode: " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *EncodeError) Unwrap() error { return e.Cause }

// WAVEncoder renders float32 samples as a 16-bit PCM WAV payload, entirely
// in memory. Recordings never touch disk.
type WAVEncoder struct{}

// Encode converts samples in [-1, 1] to 16-bit PCM and wraps them in a WAV
// container. Values outside the range are clamped.
func (WAVEncoder) Encode(samples []float32, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, &EncodeError{Reason: fmt.Sprintf("invalid format %d Hz / %d ch", sampleRate, channels)}
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = pcm16(s)
	}

	ws := &seekBuffer{}
	enc := wav.NewEncoder(ws, sampleRate, 16, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return nil, &EncodeError{Reason: "writing samples", Cause: err}
	}
	if err := enc.Close(); err != nil {
		return nil, &EncodeError{Reason: "finalizing container", Cause: err}
	}

	return ws.Bytes(), nil
}

// pcm16 converts one float sample to a clamped 16-bit value.
func pcm16(s float32) int {
	v := int(s * 32767)
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return v
}

// seekBuffer is an in-memory io.WriteSeeker. The WAV encoder needs to seek
// back and patch the RIFF sizes on Close, and bytes.Buffer cannot seek.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		if end <= cap(b.buf) {
			b.buf = b.buf[:end]
		} else {
			grown := make([]byte, end)
			copy(grown, b.buf)
			b.buf = grown
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: seek: negative position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

// Bytes returns the encoded payload.
func (b *seekBuffer) Bytes() []byte { return b.buf }
