package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a backend failure. The dispatcher treats every kind as
// fatal to the merge; Retryable kinds get a bounded retry first.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth: the credential was rejected (401/403).
	KindAuth
	// KindRateLimited: the vendor throttled the request (429).
	KindRateLimited
	// KindNetwork: transport failure or vendor-side error (5xx, timeouts).
	KindNetwork
	// KindMalformedResponse: the vendor answered with something undecodable.
	KindMalformedResponse
	// KindUnsupportedFormat: the vendor refused the audio payload (415).
	KindUnsupportedFormat
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate limited"
	case KindNetwork:
		return "network"
	case KindMalformedResponse:
		return "malformed response"
	case KindUnsupportedFormat:
		return "unsupported format"
	default:
		return "unknown"
	}
}

// Error is a typed failure from a transcription or generation backend.
type Error struct {
	// Backend is the registry name of the failing implementation.
	Backend string
	Kind    Kind
	Message string
	// Cause is the underlying error, if any. Exposed via Unwrap.
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Backend, e.Kind, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether retrying the same request may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindNetwork
}

// NewError builds a typed backend error.
func NewError(backend string, kind Kind, format string, args ...any) *Error {
	return &Error{Backend: backend, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a typed backend error around an underlying cause.
func WrapError(backend string, kind Kind, cause error, message string) *Error {
	return &Error{Backend: backend, Kind: kind, Message: message, Cause: cause}
}

// FromStatus maps a non-2xx vendor HTTP status to a typed error. The body
// is included verbatim in the message; vendors keep their error payloads
// short and the text is what users need to act on (expired key, bad model).
func FromStatus(backend string, status int, body []byte) *Error {
	var kind Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusBadRequest ||
		status == http.StatusUnsupportedMediaType ||
		status == http.StatusUnprocessableEntity:
		// STT vendors answer all three for audio they cannot decode.
		kind = KindUnsupportedFormat
	case status >= 500:
		kind = KindNetwork
	default:
		kind = KindUnknown
	}
	return NewError(backend, kind, "status %d: %s", status, string(body))
}

// AsError extracts the typed backend error from err's chain.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Retryable reports whether err carries a retryable backend failure.
// Non-backend errors are never retried.
func Retryable(err error) bool {
	if be, ok := AsError(err); ok {
		return be.Retryable()
	}
	return false
}
