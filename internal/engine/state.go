package engine

import "fmt"

// State is the lifecycle phase of the per-process recording pipeline.
// There is exactly one State per process and only the Engine mutates it.
type State int

const (
	// StateIdle means no recording or transcription is in progress.
	StateIdle State = iota
	// StateRecording means the capture source is feeding the sample buffer.
	StateRecording
	// StateTranscribing means chunks are being dispatched to a backend.
	StateTranscribing
	// StatePolishing means the transcript is in the refinement pass.
	StatePolishing
	// StateClipboardReady means final text is being handed to the sink.
	// It folds back to StateIdle as soon as delivery returns.
	StateClipboardReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StatePolishing:
		return "polishing"
	case StateClipboardReady:
		return "clipboard_ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StatusResponse is the poll-friendly view of the engine, shaped for JSON.
type StatusResponse struct {
	State       string `json:"state"`
	ConfigValid bool   `json:"config_valid"`
}

// StateError reports an operation that does not apply in the current state,
// such as a toggle arriving while a transcription is already in flight.
// Callers treat it as a benign race and drop the request rather than queue it.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("engine: %s ignored in state %s", e.Op, e.State)
}

// ConfigError reports a configuration problem detected before any network
// call is attempted, such as an unknown backend or a missing API key.
type ConfigError struct {
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("engine: config: %s: %v", e.Reason, e.Cause)
	}
	return "engine: config: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Cause }
