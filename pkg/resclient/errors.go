package resclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ============================================================================
// Error kinds
// ============================================================================

// Kind classifies every failure the client returns. The set is closed.
type Kind uint8

const (
	// KindAPI is the catch-all: unexpected status codes, exhausted retries,
	// cancelled calls.
	KindAPI Kind = iota
	// KindAuthentication is a 401 or a failed token operation.
	KindAuthentication
	// KindValidation is a 400/422 or a request rejected before sending.
	KindValidation
	// KindRateLimit is a 429.
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "api"
	}
}

// ============================================================================
// Error
// ============================================================================

// Error is the typed failure returned by every Client call.
type Error struct {
	Kind Kind

	// StatusCode is the HTTP status of the failing response, 0 when no
	// response was received.
	StatusCode int

	// Message is a human-readable description, taken from the response body
	// when the API supplied one.
	Message string

	// Fields holds field-level validation errors (field name: message).
	Fields map[string]string

	// RetryAfter is the server's back-off hint for rate limited calls.
	RetryAfter time.Duration

	// Method, Endpoint and RequestID identify the call that failed.
	Method    string
	Endpoint  string
	RequestID string

	// Attempts is the number of tries made before giving up.
	Attempts int

	// Err is the underlying cause, if any.
	Err error

	sentinel bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Method != "" || e.Endpoint != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.Endpoint)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Fields[k])
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrRateLimited)
// works for any rate limit failure anywhere in the chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel {
		return false
	}
	return t.Kind == e.Kind
}

// RetryAfterSeconds returns RetryAfter rounded down to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	return int(e.RetryAfter / time.Second)
}

// ============================================================================
// Kind sentinels
// ============================================================================

var (
	// ErrAuthentication matches any KindAuthentication error.
	ErrAuthentication = &Error{Kind: KindAuthentication, Message: "authentication failed", sentinel: true}

	// ErrValidation matches any KindValidation error.
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed", sentinel: true}

	// ErrRateLimited matches any KindRateLimit error.
	ErrRateLimited = &Error{Kind: KindRateLimit, Message: "rate limit exceeded", sentinel: true}

	// ErrAPI matches any KindAPI error.
	ErrAPI = &Error{Kind: KindAPI, Message: "api error", sentinel: true}
)

// NewError creates an Error of the given kind.
func NewError(kind Kind, statusCode int, message string) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Message: message}
}

// AsError returns the outermost *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ============================================================================
// Transport failures
// ============================================================================

// TransportError is a failure to get any response at all: DNS, refused
// connection, TLS, or the per-attempt timeout. The pipeline retries these and
// wraps the last one in a KindAPI Error when it gives up.
type TransportError struct {
	Method  string
	URL     string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	reason := "request failed"
	if e.Timeout {
		reason = "request timed out"
	}
	return fmt.Sprintf("transport: %s %s: %s: %v", e.Method, e.URL, reason, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// statusMessage is the fallback message for bodies without one.
func statusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("HTTP %d: %s", code, text)
	}
	return fmt.Sprintf("HTTP %d", code)
}
