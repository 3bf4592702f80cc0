package gateway

import (
	"errors"
	"fmt"
)

// Error type tags surfaced in the client-visible error envelope.
const (
	ErrorTypeValidation     = "invalid_request_error"
	ErrorTypeUpstream       = "upstream_error"
	ErrorTypeTransport      = "transport_error"
	ErrorTypeUpstreamShape  = "upstream_shape_error"
	ErrorTypeStreamProtocol = "stream_protocol_error"
)

// ValidationError marks a malformed inbound request. Surfaced as
// HTTP 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// NewValidationError builds a ValidationError with the given reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// UpstreamError carries a non-2xx backend reply verbatim. The status
// code and body are never downgraded or rewritten; callers above the
// gateway decide whether to retry.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// TransportError marks a network or timeout failure talking to the
// backend. Surfaced as 502/504; never retried inside the gateway.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamShapeError marks a 2xx backend reply whose body is missing
// required fields. This is a dialect mismatch, not a client error;
// surfaced as HTTP 500.
type UpstreamShapeError struct {
	Reason string
}

func (e *UpstreamShapeError) Error() string {
	return fmt.Sprintf("malformed upstream response: %s", e.Reason)
}

// StreamProtocolError marks a connection-level break of the upstream
// SSE stream (not a per-event JSON failure, which is swallowed).
// Surfaced in-band as a terminal error chunk.
type StreamProtocolError struct {
	Reason string
}

func (e *StreamProtocolError) Error() string {
	return fmt.Sprintf("stream protocol error: %s", e.Reason)
}

// ErrorType maps an internal error to its envelope type tag.
func ErrorType(err error) string {
	var (
		ve *ValidationError
		ue *UpstreamError
		te *TransportError
		se *UpstreamShapeError
		pe *StreamProtocolError
	)

	switch {
	case errors.As(err, &ve):
		return ErrorTypeValidation
	case errors.As(err, &ue):
		return ErrorTypeUpstream
	case errors.As(err, &te):
		return ErrorTypeTransport
	case errors.As(err, &se):
		return ErrorTypeUpstreamShape
	case errors.As(err, &pe):
		return ErrorTypeStreamProtocol
	default:
		return "api_error"
	}
}
