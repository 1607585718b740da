package upstream

import "fmt"

// Kind classifies an upstream failure for breaker counting and HTTP status
// mapping. See spec §4.A / §7.
type Kind string

const (
	// KindTimeout is a connect/read timeout against the upstream.
	KindTimeout Kind = "timeout"

	// KindClient is an HTTP 4xx response — a caller or contract bug, not an
	// upstream health signal.
	KindClient Kind = "client"

	// KindServer is an HTTP 5xx response.
	KindServer Kind = "server"

	// KindNetwork is a DNS/socket failure below the HTTP layer.
	KindNetwork Kind = "network"

	// KindProtocol is a 200 response whose body doesn't match the expected
	// {"rates":[{"rate":...}]} shape.
	KindProtocol Kind = "protocol"

	// KindGeneric covers anything not classified above.
	KindGeneric Kind = "generic"
)

// CountsTowardBreaker reports whether a failure of this kind should count
// against the circuit breaker's rolling failure window. ClientError and
// ProtocolError are excluded: they reflect caller/contract bugs, not
// upstream health.
func (k Kind) CountsTowardBreaker() bool {
	switch k {
	case KindTimeout, KindServer, KindNetwork:
		return true
	default:
		return false
	}
}

// Error is a typed upstream failure with additional context for logging
// and HTTP status mapping.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v", e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// CountsTowardBreaker reports whether this error should count against the
// circuit breaker's rolling failure window (see breaker.countable).
func (e *Error) CountsTowardBreaker() bool {
	return e.Kind.CountsTowardBreaker()
}

func newError(kind Kind, statusCode int, message string, err error) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Message: message, Err: err}
}
