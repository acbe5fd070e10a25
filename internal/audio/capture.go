package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Recorder captures audio from the default input device and pushes batches
// of float32 samples to a callback. It holds no recording state itself; the
// callback decides where samples go.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	sampleRate uint32
	channels   uint32

	mu        sync.Mutex
	device    *malgo.Device
	onSamples func([]float32)
	capturing bool
}

// NewRecorder initializes the audio context. Call Close when done.
func NewRecorder(sampleRate, channels uint32) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: initializing context: %w", err)
	}

	return &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Start opens the default capture device and begins pushing sample batches
// to onSamples. The callback runs on the audio thread and must not block.
func (r *Recorder) Start(onSamples func([]float32)) error {
	if onSamples == nil {
		return fmt.Errorf("audio: start capture: nil callback")
	}

	r.mu.Lock()
	if r.capturing {
		r.mu.Unlock()
		return fmt.Errorf("audio: already capturing")
	}
	r.onSamples = onSamples
	r.capturing = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: r.onData,
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.reset()
		return fmt.Errorf("audio: initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.reset()
		return fmt.Errorf("audio: starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

// Stop tears down the capture device. Safe to call when not capturing.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.capturing = false
	r.onSamples = nil
	return nil
}

// IsCapturing reports whether a capture device is currently running.
func (r *Recorder) IsCapturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capturing
}

// Close releases the device and the audio context.
func (r *Recorder) Close() error {
	if err := r.Stop(); err != nil {
		return err
	}

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninitializing context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}
	return nil
}

func (r *Recorder) reset() {
	r.mu.Lock()
	r.capturing = false
	r.onSamples = nil
	r.mu.Unlock()
}

// onData is the malgo callback invoked on the audio thread with raw
// little-endian float32 frames.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	r.mu.Lock()
	cb := r.onSamples
	r.mu.Unlock()
	if cb == nil {
		return
	}

	cb(bytesToFloat32(pSample, frameCount*r.channels))
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
