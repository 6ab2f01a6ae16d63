// Package errz defines the backend-agnostic error kinds returned by every
// elasto component, independent of the transport-level HTTP status that
// produced them.
package errz

import "fmt"

// Kind classifies a failure independent of which backend produced it.
type Kind int

const (
	// KindUnknown is the zero value; never returned deliberately.
	KindUnknown Kind = iota
	// KindInvalidArgument marks a caller error detected before any network IO.
	KindInvalidArgument
	// KindNotFound marks a missing resource (404-equivalent).
	KindNotFound
	// KindExists marks a resource that already exists (409-equivalent create).
	KindExists
	// KindPermissionDenied marks an authorization failure distinct from auth.
	KindPermissionDenied
	// KindConflict marks a non-create/exists conflict (e.g. non-empty dir delete).
	KindConflict
	// KindNotSupported marks a backend that cannot perform the requested op.
	KindNotSupported
	// KindTimeout marks an operation that exceeded its deadline.
	KindTimeout
	// KindIO marks a low-level transport or filesystem IO failure.
	KindIO
	// KindOutOfMemory marks an allocation failure.
	KindOutOfMemory
	// KindDataTooLarge marks a response exceeding a caller-supplied buffer.
	KindDataTooLarge
	// KindShortRead marks a read that returned fewer bytes than the caller required.
	KindShortRead
	// KindCorruptResponse marks a response that failed to parse.
	KindCorruptResponse
	// KindAuthFailed marks a signature/credential rejection (401/403 + Azure AuthenticationFailed).
	KindAuthFailed
	// KindTransientRetry marks a transport close mid-flight; handled internally, rarely surfaced.
	KindTransientRetry
	// KindRedirect is internal-only; callers must never observe it.
	KindRedirect
)

// String renders the kind for logging.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid-argument"
	case KindNotFound:
		return "not-found"
	case KindExists:
		return "exists"
	case KindPermissionDenied:
		return "permission-denied"
	case KindConflict:
		return "conflict"
	case KindNotSupported:
		return "not-supported"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io"
	case KindOutOfMemory:
		return "out-of-memory"
	case KindDataTooLarge:
		return "data-too-large"
	case KindShortRead:
		return "short-read"
	case KindCorruptResponse:
		return "corrupt-response"
	case KindAuthFailed:
		return "auth-failed"
	case KindTransientRetry:
		return "transient-retry"
	case KindRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned throughout elasto. It preserves
// the backend HTTP status (when one exists) for logging alongside the
// normalised Kind used for control flow.
type Error struct {
	// K is the normalised failure kind.
	K Kind
	// Msg is a human-readable description.
	Msg string
	// HTTPStatus is the backend's HTTP status code, or 0 if none applies.
	HTTPStatus int
	// RequestID is the backend's request-id header value, if known.
	RequestID string
	// Err is the underlying cause, if any (e.g. a transport error).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("elasto: %s (http %d): %s", e.K, e.HTTPStatus, e.Msg)
	}
	return fmt.Sprintf("elasto: %s: %s", e.K, e.Msg)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the normalised failure kind, unwrapping plain errors to KindIO.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if e, ok := err.(*Error); ok {
		return e.K
	}
	return KindIO
}

// New constructs an *Error with the given kind and formatted message.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{K: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error with the given kind, wrapping an existing error.
func Wrap(k Kind, err error, format string, args ...interface{}) *Error {
	return &Error{K: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithStatus returns a copy of e with the HTTP status and request id set.
func (e *Error) WithStatus(status int, requestID string) *Error {
	cp := *e
	cp.HTTPStatus = status
	cp.RequestID = requestID
	return &cp
}

// FromHTTPStatus maps a raw HTTP status code (plus an Azure-specific error
// code string, which may be empty) onto a Kind.
func FromHTTPStatus(status int, azureCode string) Kind {
	switch {
	case status >= 200 && status < 300:
		return KindUnknown
	case status == 301:
		return KindRedirect
	case status == 401 || status == 403:
		if azureCode == "AuthenticationFailed" || azureCode == "" {
			return KindAuthFailed
		}
		return KindPermissionDenied
	case status == 404:
		return KindNotFound
	case status == 409:
		return KindConflict
	case status == 408:
		return KindTimeout
	case status == 411 || status == 400:
		return KindInvalidArgument
	case status == 413:
		return KindDataTooLarge
	case status == 416:
		return KindInvalidArgument
	case status == 503:
		return KindIO
	case status >= 500:
		return KindIO
	default:
		return KindIO
	}
}

// IsNotFound is a convenience predicate used by callers implementing
// idempotent create/delete.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsExists is the exists-side counterpart to IsNotFound.
func IsExists(err error) bool { return KindOf(err) == KindExists }
