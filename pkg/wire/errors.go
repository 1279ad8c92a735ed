package wire

import "fmt"

// Kind classifies an Error into one of the protocol's five error categories.
type Kind int

const (
	// KindTransport covers dial/listen/accept failure, DNS failure, bad
	// arguments, and connect timeout. Reported synchronously; never retried
	// inside the core.
	KindTransport Kind = iota
	// KindProtocol covers bad magic, unsupported version, unknown command,
	// unexpected separator, and records that exceed MaxRecord. Terminal for
	// the message; the connection is closed.
	KindProtocol
	// KindAuth covers a missing/unexpected signature header and running-hash
	// mismatches at any chunk or final boundary. Terminal; connection closed.
	KindAuth
	// KindCallback covers a record-consumer callback returning a non-nil
	// error. Terminal; the parser moves to its error state.
	KindCallback
	// KindTimeout covers no byte seen within the process-wide TCP timeout.
	// Terminal; the connection is closed.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindAuth:
		return "auth"
	case KindCallback:
		return "callback"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the wire protocol's single error type. It exposes
// Code/Message/Unwrap accessors, so callers can branch on Kind or match
// the wrapped cause with errors.Is/errors.As.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// NewError constructs a wire Error of the given kind.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Code returns this error's Kind as a number. It is not a wire Status
// byte.
func (e *Error) Code() uint32 { return uint32(e.kind) }

// Message returns a human-readable description of the error.
func (e *Error) Message() string { return e.message }

// Kind reports which of the five protocol error categories this is.
func (e *Error) Kind() Kind { return e.kind }

// Unwrap returns the underlying cause, if any, enabling errors.Is/As to see
// through the wire.Error wrapper.
func (e *Error) Unwrap() error { return e.cause }

// TransportError wraps cause as a KindTransport error.
func TransportError(message string, cause error) *Error {
	return NewError(KindTransport, message, cause)
}

// ProtocolError wraps cause as a KindProtocol error.
func ProtocolError(message string, cause error) *Error {
	return NewError(KindProtocol, message, cause)
}

// AuthError wraps cause as a KindAuth error.
func AuthError(message string, cause error) *Error {
	return NewError(KindAuth, message, cause)
}

// CallbackError wraps cause as a KindCallback error.
func CallbackError(message string, cause error) *Error {
	return NewError(KindCallback, message, cause)
}

// TimeoutError wraps cause as a KindTimeout error.
func TimeoutError(message string, cause error) *Error {
	return NewError(KindTimeout, message, cause)
}

// IsKind reports whether err is a *wire.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	we, ok := err.(*Error)
	return ok && we.kind == kind
}
