package docdb

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure the client can report to a caller.
// Mirrors the closed set of error kinds a reply callback or connection
// can synthesize.
type ErrorKind int

const (
	KindConnectionLost ErrorKind = iota
	KindCannotConnect
	KindReplyShape
	KindServerError
	KindDocumentTooLarge
	KindDecodeFailure
	KindCursorNotFound
	KindShardConfigStale
	KindAuthFailed
	KindInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectionLost:
		return "connection-lost"
	case KindCannotConnect:
		return "cannot-connect"
	case KindReplyShape:
		return "reply-shape"
	case KindServerError:
		return "server-error"
	case KindDocumentTooLarge:
		return "document-too-large"
	case KindDecodeFailure:
		return "decode-failure"
	case KindCursorNotFound:
		return "cursor-not-found"
	case KindShardConfigStale:
		return "shard-config-stale"
	case KindAuthFailed:
		return "auth-failed"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every client-raised failure uses.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    int32 // server-reported error code; only set for KindServerError
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docdb: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("docdb: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ConnectionFatal reports whether this error should terminate the
// connection it occurred on: decode-failure and connection-lost are
// fatal to the connection, everything else is surfaced to the caller
// without closing the socket.
func (e *Error) ConnectionFatal() bool {
	switch e.Kind {
	case KindDecodeFailure, KindConnectionLost:
		return true
	default:
		return false
	}
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func errConnectionLost(cause error) *Error {
	return newError(KindConnectionLost, "socket closed mid-request", cause)
}

func errCannotConnect(message string) *Error {
	return newError(KindCannotConnect, message, nil)
}

func errReplyShape(message string) *Error {
	return newError(KindReplyShape, message, nil)
}

func errServerError(code int32, message string) *Error {
	return &Error{Kind: KindServerError, Message: message, Code: code}
}

func errDocumentTooLarge(message string) *Error {
	return newError(KindDocumentTooLarge, message, nil)
}

func errDecodeFailure(cause error) *Error {
	return newError(KindDecodeFailure, "framing or UTF-8 invalid on the wire", cause)
}

func errCursorNotFound() *Error {
	return newError(KindCursorNotFound, "server closed the cursor", nil)
}

func errShardConfigStale() *Error {
	return newError(KindShardConfigStale, "routing table mismatch", nil)
}

func errAuthFailed(cause error) *Error {
	return newError(KindAuthFailed, "authenticator negotiation failed", cause)
}

func errInterrupted() *Error {
	return newError(KindInterrupted, "close() called while a callback was pending", nil)
}

// ConnectionFatal reports whether err, if it is (or wraps) a *Error,
// should terminate the connection it occurred on.
func ConnectionFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.ConnectionFatal()
	}
	return false
}

// Is implements errors.Is matching by Kind, so callers can write
// errors.Is(err, docdb.KindCannotConnect) style checks via KindError.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindError returns a sentinel *Error of the given kind for use with
// errors.Is, e.g. errors.Is(err, docdb.KindError(docdb.KindCannotConnect)).
func KindError(kind ErrorKind) error {
	return &Error{Kind: kind}
}
